// Package realtime carries row level changes from the backend to listeners.
package realtime

import (
	"encoding/json"
	"time"
)

type Kind string

const (
	KindInsert Kind = "INSERT"
	KindUpdate Kind = "UPDATE"
	KindDelete Kind = "DELETE"
)

const (
	TablePosts         = "posts"
	TableLikes         = "likes"
	TableComments      = "comments"
	TableFollows       = "follows"
	TableNotifications = "notifications"
	TableCollection    = "collection_entries"
)

// Scope keys identify who a change concerns.
const (
	ScopeUserID      = "user_id"
	ScopePostID      = "post_id"
	ScopeFollowerID  = "follower_id"
	ScopeFollowingID = "following_id"
	ScopeKind        = "kind"
)

// Change is a single insert, update or delete. An update with an empty ID
// applies to every row in its scope.
type Change struct {
	Table   string            `json:"table"`
	Kind    Kind              `json:"kind"`
	ID      string            `json:"id"`
	SortKey time.Time         `json:"sort_key"`
	Scope   map[string]string `json:"scope,omitempty"`
	Record  json.RawMessage   `json:"record,omitempty"`
}

// NewChange encodes record into a change. A record that cannot be encoded
// is left out.
func NewChange(table string, kind Kind, id string, sortKey time.Time, scope map[string]string, record any) Change {
	c := Change{Table: table, Kind: kind, ID: id, SortKey: sortKey, Scope: scope}
	if record != nil {
		if b, err := json.Marshal(record); err == nil {
			c.Record = b
		}
	}
	return c
}

// HasRecord reports whether the change carries the row. Oversized rows
// are announced without it.
func (c Change) HasRecord() bool { return len(c.Record) > 0 }

func (c Change) Decode(v any) error {
	return json.Unmarshal(c.Record, v)
}

// Filter decides whether a listener cares about a change.
type Filter func(Change) bool

// Match selects changes of table whose scope carries every given pair.
func Match(table string, scope map[string]string) Filter {
	return func(c Change) bool {
		if c.Table != table {
			return false
		}
		for k, v := range scope {
			if c.Scope[k] != v {
				return false
			}
		}
		return true
	}
}

func (f Filter) And(g Filter) Filter {
	return func(c Change) bool { return f(c) && g(c) }
}
