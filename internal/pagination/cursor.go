// Package pagination implements keyset pagination over lists ordered by
// creation time, newest first.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/Tetsu-is/crate-digger/internal/domain"
)

// Item is anything that can be listed: a unique id plus a creation time.
type Item interface {
	ItemID() string
	SortKey() time.Time
}

// Cursor points at the last item of a fetched page. The next page holds
// items strictly older than it; ID breaks ties between equal timestamps.
type Cursor struct {
	SortKey time.Time `json:"t"`
	ID      string    `json:"id"`
}

func CursorOf[T Item](item T) *Cursor {
	return &Cursor{SortKey: item.SortKey(), ID: item.ItemID()}
}

// Admits reports whether an item sorts strictly after the cursor, i.e. may
// appear on the page that follows it.
func (c *Cursor) Admits(sortKey time.Time, id string) bool {
	if c == nil {
		return true
	}
	if sortKey.Equal(c.SortKey) {
		return id < c.ID
	}
	return sortKey.Before(c.SortKey)
}

// Encode returns the opaque wire form handed to API clients.
func (c *Cursor) Encode() string {
	if c == nil {
		return ""
	}
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses the wire form. An empty string means "no cursor".
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, domain.ErrInvalidCursor
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil || c.ID == "" || c.SortKey.IsZero() {
		return nil, domain.ErrInvalidCursor
	}
	return &c, nil
}

// Less orders items newest first, breaking ties by descending id.
func Less[T Item](a, b T) bool {
	if a.SortKey().Equal(b.SortKey()) {
		return a.ItemID() > b.ItemID()
	}
	return a.SortKey().After(b.SortKey())
}
