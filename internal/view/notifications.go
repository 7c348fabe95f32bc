package view

import (
	"context"
	"sync"
	"time"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/log"
	"github.com/Tetsu-is/crate-digger/internal/optimistic"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
	"github.com/Tetsu-is/crate-digger/internal/realtime"
)

type NotificationActions interface {
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type NotificationsConfig struct {
	UserID  string
	Source  pagination.Source[domain.NotificationWithActor, string]
	Actions NotificationActions
	Limit   int

	// Bus carries both backend changes and the "all read" signal other
	// views of the same user react to.
	Bus         realtime.Bus
	Coordinator *optimistic.Coordinator
}

// Notifications is a user's inbox plus its unread badge.
type Notifications struct {
	*List[domain.NotificationWithActor, string]
	userID  string
	actions NotificationActions
	pub     realtime.Publisher

	unreadMu sync.Mutex
	unread   int64
}

func NewNotifications(cfg NotificationsConfig) *Notifications {
	opts := Options[domain.NotificationWithActor, string]{
		Source: cfg.Source,
		Pred:   cfg.UserID,
		Limit:  cfg.Limit,
		Filter: realtime.Match(realtime.TableNotifications, map[string]string{
			realtime.ScopeUserID: cfg.UserID,
		}),
		OnInsert:    Prepend,
		Merge:       mergeNotification,
		Coordinator: cfg.Coordinator,
	}
	n := &Notifications{userID: cfg.UserID, actions: cfg.Actions}
	if cfg.Bus != nil {
		opts.Bus = cfg.Bus
		n.pub = cfg.Bus
	}
	n.List = NewList(opts)
	n.hooks = hooks[domain.NotificationWithActor]{
		inserted: func(item domain.NotificationWithActor, added bool) {
			if added && !item.Read {
				n.addUnread(1)
			}
		},
		updated: func(old, cur domain.NotificationWithActor) {
			if !old.Read && cur.Read {
				n.addUnread(-1)
			}
		},
		removed: func(item domain.NotificationWithActor) {
			if !item.Read {
				n.addUnread(-1)
			}
		},
		bulk: func(realtime.Change) { n.markAllLocal() },
	}
	return n
}

func mergeNotification(stored, incoming domain.NotificationWithActor) domain.NotificationWithActor {
	if incoming.Actor.ID == "" {
		incoming.Actor = stored.Actor
	}
	return incoming
}

// Open loads the unread count alongside the first page.
func (n *Notifications) Open(ctx context.Context) error {
	if err := n.List.Open(ctx); err != nil {
		return err
	}
	count, err := n.actions.UnreadCount(ctx, n.userID)
	if err != nil {
		return err
	}
	n.setUnread(count)
	return nil
}

func (n *Notifications) Unread() int64 {
	n.unreadMu.Lock()
	defer n.unreadMu.Unlock()
	return n.unread
}

func (n *Notifications) addUnread(delta int64) (prev int64) {
	n.unreadMu.Lock()
	defer n.unreadMu.Unlock()
	prev = n.unread
	n.unread = optimistic.AddDelta(n.unread, delta)
	return prev
}

func (n *Notifications) setUnread(v int64) {
	n.unreadMu.Lock()
	n.unread = optimistic.Clamp(v)
	n.unreadMu.Unlock()
}

// markAllLocal flags every loaded notification read and returns a func
// that restores the previous flags and count.
func (n *Notifications) markAllLocal() func() {
	var restores []func()
	for _, item := range n.state.Snapshot().Items {
		if item.Read {
			continue
		}
		if restore, ok := n.state.Update(item.ID, func(it *domain.NotificationWithActor) { it.Read = true }); ok {
			restores = append(restores, restore)
		}
	}
	n.unreadMu.Lock()
	prev := n.unread
	n.unread = 0
	n.unreadMu.Unlock()

	return func() {
		for _, restore := range restores {
			restore()
		}
		n.setUnread(prev)
	}
}

func (n *Notifications) MarkRead(ctx context.Context, id string) error {
	return n.mutate(ctx, optimistic.Mutation{
		Entity: "notification:" + id,
		Action: "read",
		Apply: func() func() {
			item, ok := n.state.Get(id)
			if !ok || item.Read {
				return nil
			}
			restore, _ := n.state.Update(id, func(it *domain.NotificationWithActor) { it.Read = true })
			prev := n.addUnread(-1)
			return func() {
				restore()
				n.setUnread(prev)
			}
		},
		Commit: func(ctx context.Context) error {
			_, err := n.actions.MarkRead(ctx, n.userID, id)
			return err
		},
	})
}

// MarkAllRead clears the badge at once. Once the backend confirms, other
// views of the same user are told through the bus.
func (n *Notifications) MarkAllRead(ctx context.Context) error {
	return n.mutate(ctx, optimistic.Mutation{
		Entity: "notifications:" + n.userID,
		Action: "read-all",
		Apply:  n.markAllLocal,
		Commit: func(ctx context.Context) error {
			if _, err := n.actions.MarkAllRead(ctx, n.userID); err != nil {
				return err
			}
			n.announceRead(ctx)
			return nil
		},
	})
}

func (n *Notifications) announceRead(ctx context.Context) {
	if n.pub == nil {
		return
	}
	c := AllReadChange(n.userID, time.Now())
	if err := n.pub.Publish(ctx, c); err != nil {
		logger := log.Ctx(ctx)
		logger.Warn().Err(err).Str("user_id", n.userID).Msg("publish notifications read")
	}
}

// AllReadChange is the signal that every notification of userID is read.
func AllReadChange(userID string, at time.Time) realtime.Change {
	return realtime.NewChange(realtime.TableNotifications, realtime.KindUpdate, "", at,
		map[string]string{realtime.ScopeUserID: userID},
		map[string]bool{"read": true})
}
