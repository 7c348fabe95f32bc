package view

import (
	"context"
	"sync"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/optimistic"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
	"github.com/Tetsu-is/crate-digger/internal/realtime"
	"github.com/Tetsu-is/crate-digger/internal/social"
)

type CommentActions interface {
	AddComment(ctx context.Context, userID, postID string, req domain.CreateCommentRequest) (*domain.Comment, error)
	DeleteComment(ctx context.Context, userID, commentID string) (*domain.Comment, error)
}

type CommentsConfig struct {
	Viewer  domain.User
	PostID  string
	Source  pagination.Source[domain.CommentWithAuthor, social.ThreadQuery]
	Actions CommentActions
	Limit   int
	// Count seeds the post's comment counter.
	Count int64

	Bus realtime.Subscriber
	// OnInsert defaults to Prepend.
	OnInsert    *InsertPolicy
	Coordinator *optimistic.Coordinator
}

// Comments is the thread under one post together with its comment count.
type Comments struct {
	*List[domain.CommentWithAuthor, social.ThreadQuery]
	viewer  domain.User
	postID  string
	actions CommentActions

	countMu sync.Mutex
	count   int64
}

func NewComments(cfg CommentsConfig) *Comments {
	policy := Prepend
	if cfg.OnInsert != nil {
		policy = *cfg.OnInsert
	}
	c := &Comments{
		List: NewList(Options[domain.CommentWithAuthor, social.ThreadQuery]{
			Source: cfg.Source,
			Pred:   social.ThreadQuery{PostID: cfg.PostID, ViewerID: cfg.Viewer.ID},
			Limit:  cfg.Limit,
			Bus:    cfg.Bus,
			Filter: realtime.Match(realtime.TableComments, map[string]string{
				realtime.ScopePostID: cfg.PostID,
			}),
			OnInsert:    policy,
			Coordinator: cfg.Coordinator,
		}),
		viewer:  cfg.Viewer,
		postID:  cfg.PostID,
		actions: cfg.Actions,
		count:   optimistic.Clamp(cfg.Count),
	}
	c.hooks = hooks[domain.CommentWithAuthor]{
		inserted: func(_ domain.CommentWithAuthor, added bool) {
			if added {
				c.addCount(1)
			}
		},
		removed: func(domain.CommentWithAuthor) { c.addCount(-1) },
	}
	return c
}

// Count is the post's comment count as this view sees it.
func (c *Comments) Count() int64 {
	c.countMu.Lock()
	defer c.countMu.Unlock()
	return c.count
}

func (c *Comments) addCount(delta int64) (prev int64) {
	c.countMu.Lock()
	defer c.countMu.Unlock()
	prev = c.count
	c.count = optimistic.AddDelta(c.count, delta)
	return prev
}

func (c *Comments) setCount(n int64) {
	c.countMu.Lock()
	c.count = n
	c.countMu.Unlock()
}

// Add posts a comment as the viewer and shows it once the backend accepts it.
func (c *Comments) Add(ctx context.Context, content string) (*domain.CommentWithAuthor, error) {
	if c.isClosed() {
		return nil, domain.ErrViewClosed
	}
	created, err := c.actions.AddComment(ctx, c.viewer.ID, c.postID, domain.CreateCommentRequest{Content: content})
	if err != nil {
		return nil, err
	}
	item := domain.CommentWithAuthor{Comment: *created, Author: c.viewer}
	c.insert(item)
	return &item, nil
}

// Delete removes a comment and decrements the count at once.
func (c *Comments) Delete(ctx context.Context, commentID string) error {
	return c.mutate(ctx, optimistic.Mutation{
		Entity: "comment:" + commentID,
		Action: "delete",
		Apply: func() func() {
			restore, ok := c.state.Remove(commentID)
			if !ok {
				return nil
			}
			prev := c.addCount(-1)
			return func() {
				restore()
				c.setCount(prev)
			}
		},
		Commit: func(ctx context.Context) error {
			_, err := c.actions.DeleteComment(ctx, c.viewer.ID, commentID)
			return err
		},
	})
}
