package relationship

import (
	"context"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/log"
	"github.com/Tetsu-is/crate-digger/internal/realtime"
)

// FollowChecker answers whether one user follows another. Store satisfies it.
type FollowChecker interface {
	IsFollowing(ctx context.Context, followerID, followingID string) (domain.FollowState, error)
}

// FeedFilter admits post changes by userID and by authors userID follows
// with an accepted edge. Answers are remembered per author until a follows
// change from userID arrives, so the filter must see the follows table too.
// It is not safe for concurrent use; one listener goroutine owns it.
func FeedFilter(ctx context.Context, follows FollowChecker, userID string) realtime.Filter {
	known := make(map[string]bool)
	return func(c realtime.Change) bool {
		switch c.Table {
		case realtime.TableFollows:
			if c.Scope[realtime.ScopeFollowerID] == userID {
				delete(known, c.Scope[realtime.ScopeFollowingID])
			}
			return false
		case realtime.TablePosts:
		default:
			return false
		}

		author := c.Scope[realtime.ScopeUserID]
		if author == userID {
			return true
		}
		if ok, hit := known[author]; hit {
			return ok
		}
		state, err := follows.IsFollowing(ctx, userID, author)
		if err != nil {
			logger := log.Ctx(ctx)
			logger.Warn().Err(err).Str("author", author).Msg("feed filter lookup failed")
			return false
		}
		known[author] = state.IsFollowing
		return state.IsFollowing
	}
}
