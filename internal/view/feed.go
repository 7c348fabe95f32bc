package view

import (
	"context"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/optimistic"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
	"github.com/Tetsu-is/crate-digger/internal/realtime"
	"github.com/Tetsu-is/crate-digger/internal/relationship"
)

// PostActions is the backend side of a feed. social.Service satisfies it.
type PostActions interface {
	Like(ctx context.Context, userID, postID string) (*domain.Post, error)
	Unlike(ctx context.Context, userID, postID string) (*domain.Post, error)
	DeletePost(ctx context.Context, userID, postID string) error
}

type FeedConfig struct {
	ViewerID string
	Source   pagination.Source[domain.FeedPost, string]
	Actions  PostActions
	Limit    int

	Bus realtime.Subscriber
	// Follows scopes realtime posts to the viewer and the accounts they
	// follow. Authors, when set, replaces that check. With neither, only
	// the viewer's own new posts are counted.
	Follows relationship.FollowChecker
	Authors func(userID string) bool
	// OnInsert defaults to CountNew.
	OnInsert    InsertPolicy
	Coordinator *optimistic.Coordinator
}

// Feed is the home timeline of one viewer.
type Feed struct {
	*List[domain.FeedPost, string]
	viewerID string
	actions  PostActions
}

func NewFeed(cfg FeedConfig) *Feed {
	return &Feed{
		List: NewList(Options[domain.FeedPost, string]{
			Source:      cfg.Source,
			Pred:        cfg.ViewerID,
			Limit:       cfg.Limit,
			Bus:         cfg.Bus,
			FilterFor:   feedScope(cfg),
			OnInsert:    cfg.OnInsert,
			Merge:       mergeFeedPost,
			Coordinator: cfg.Coordinator,
		}),
		viewerID: cfg.ViewerID,
		actions:  cfg.Actions,
	}
}

// feedScope picks the author check for new posts. Updates and deletes of
// other authors still pass the fallback scope since they only touch posts
// already on the page.
func feedScope(cfg FeedConfig) func(context.Context) realtime.Filter {
	return func(ctx context.Context) realtime.Filter {
		switch {
		case cfg.Authors != nil:
			return realtime.Match(realtime.TablePosts, nil).And(func(c realtime.Change) bool {
				return cfg.Authors(c.Scope[realtime.ScopeUserID])
			})
		case cfg.Follows != nil:
			return relationship.FeedFilter(ctx, cfg.Follows, cfg.ViewerID)
		}
		return realtime.Match(realtime.TablePosts, nil).And(func(c realtime.Change) bool {
			return c.Kind != realtime.KindInsert || c.Scope[realtime.ScopeUserID] == cfg.ViewerID
		})
	}
}

// mergeFeedPost takes counters and content from the change but keeps what
// only this viewer knows.
func mergeFeedPost(stored, incoming domain.FeedPost) domain.FeedPost {
	incoming.IsLiked = stored.IsLiked
	if incoming.Author.ID == "" {
		incoming.Author = stored.Author
	}
	return incoming
}

// ShowNew loads the posts counted since the last refresh.
func (f *Feed) ShowNew(ctx context.Context) error {
	return f.Refresh(ctx)
}

// ToggleLike flips the viewer's like on postID at once and reverts the
// like flag and count if the backend refuses.
func (f *Feed) ToggleLike(ctx context.Context, postID string) error {
	if _, ok := f.Get(postID); !ok {
		return domain.ErrPostNotFound
	}
	var wasLiked bool
	return f.mutate(ctx, optimistic.Mutation{
		Entity: "post:" + postID,
		Action: "like",
		Apply: func() func() {
			var prevCount int64
			_, ok := f.state.Update(postID, func(p *domain.FeedPost) {
				wasLiked, prevCount = p.IsLiked, p.LikesCount
				p.LikesCount = optimistic.AddDelta(p.LikesCount, optimistic.ToggleDelta(p.IsLiked))
				p.IsLiked = !p.IsLiked
			})
			if !ok {
				return nil
			}
			return func() {
				f.state.Update(postID, func(p *domain.FeedPost) {
					p.IsLiked, p.LikesCount = wasLiked, prevCount
				})
			}
		},
		Commit: func(ctx context.Context) error {
			var err error
			if wasLiked {
				_, err = f.actions.Unlike(ctx, f.viewerID, postID)
			} else {
				_, err = f.actions.Like(ctx, f.viewerID, postID)
			}
			return err
		},
	})
}

// DeletePost hides the post at once and puts it back if deletion fails.
func (f *Feed) DeletePost(ctx context.Context, postID string) error {
	return f.mutate(ctx, optimistic.Mutation{
		Entity: "post:" + postID,
		Action: "delete",
		Apply: func() func() {
			restore, _ := f.state.Remove(postID)
			return restore
		},
		Commit: func(ctx context.Context) error {
			return f.actions.DeletePost(ctx, f.viewerID, postID)
		},
	})
}
