package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/memstore"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
	"github.com/Tetsu-is/crate-digger/internal/realtime"
	"github.com/Tetsu-is/crate-digger/internal/relationship"
	"github.com/Tetsu-is/crate-digger/internal/social"
)

const wait = 2 * time.Second

type world struct {
	bus *realtime.MemoryBus
	db  *memstore.Store
	svc *social.Service
	rel *relationship.Store
}

func newWorld(t *testing.T) *world {
	t.Helper()
	bus := realtime.NewMemoryBus()
	t.Cleanup(func() { _ = bus.Close() })
	db := memstore.New(bus)
	svc := social.NewService(social.Backend{Posts: db, Feeds: db, Comments: db, Collections: db, Notifications: db})
	return &world{bus: bus, db: db, svc: svc, rel: relationship.NewStore(db, db, db)}
}

func (w *world) user(t *testing.T, name string) domain.User {
	t.Helper()
	u, err := w.db.CreateUser(context.Background(), uuid.NewString(), name, "password")
	require.NoError(t, err)
	return *u
}

func (w *world) follow(t *testing.T, from, to domain.User) {
	t.Helper()
	_, _, err := w.db.InsertEdge(context.Background(), from.ID, to.ID, domain.FollowAccepted)
	require.NoError(t, err)
}

func (w *world) post(t *testing.T, author domain.User, content string) *domain.Post {
	t.Helper()
	p, err := w.svc.CreatePost(context.Background(), author.ID, domain.CreatePostRequest{Content: content})
	require.NoError(t, err)
	return p
}

// flakyPosts fails likes while down is set.
type flakyPosts struct {
	PostActions
	mu   sync.Mutex
	down bool
}

func (f *flakyPosts) setDown(v bool) {
	f.mu.Lock()
	f.down = v
	f.mu.Unlock()
}

func (f *flakyPosts) Like(ctx context.Context, userID, postID string) (*domain.Post, error) {
	f.mu.Lock()
	down := f.down
	f.mu.Unlock()
	if down {
		return nil, errors.New("connection reset by peer")
	}
	return f.PostActions.Like(ctx, userID, postID)
}

func feedPost(t *testing.T, f *Feed, id string) domain.FeedPost {
	t.Helper()
	p, ok := f.Get(id)
	require.True(t, ok)
	return p
}

func TestFeedLikeRollsBackOnFailure(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	viewer := w.user(t, "viewer")
	author := w.user(t, "author")
	w.follow(t, viewer, author)
	post := w.post(t, author, "kind of blue, 1959 mono")

	actions := &flakyPosts{PostActions: w.svc, down: true}
	feed := NewFeed(FeedConfig{ViewerID: viewer.ID, Source: w.svc.FeedSource(), Actions: actions, Limit: 20})
	t.Cleanup(feed.Close)
	require.NoError(t, feed.Open(ctx))

	err := feed.ToggleLike(ctx, post.ID)
	require.ErrorIs(t, err, domain.ErrTransientIO)
	got := feedPost(t, feed, post.ID)
	assert.False(t, got.IsLiked)
	assert.Equal(t, int64(0), got.LikesCount)

	actions.setDown(false)
	require.NoError(t, feed.ToggleLike(ctx, post.ID))
	got = feedPost(t, feed, post.ID)
	assert.True(t, got.IsLiked)
	assert.Equal(t, int64(1), got.LikesCount)

	require.NoError(t, feed.ToggleLike(ctx, post.ID))
	got = feedPost(t, feed, post.ID)
	assert.False(t, got.IsLiked)
	assert.Equal(t, int64(0), got.LikesCount)
}

func TestFeedToggleLikeUnknownPost(t *testing.T) {
	w := newWorld(t)
	viewer := w.user(t, "viewer")
	feed := NewFeed(FeedConfig{ViewerID: viewer.ID, Source: w.svc.FeedSource(), Actions: w.svc, Limit: 20})
	t.Cleanup(feed.Close)
	require.NoError(t, feed.Open(context.Background()))

	assert.ErrorIs(t, feed.ToggleLike(context.Background(), uuid.NewString()), domain.ErrPostNotFound)
}

func TestFeedCountsNewPostsFromFollowees(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	viewer := w.user(t, "viewer")
	author := w.user(t, "author")
	stranger := w.user(t, "stranger")
	w.follow(t, viewer, author)
	w.post(t, author, "blue train")

	feed := NewFeed(FeedConfig{
		ViewerID: viewer.ID,
		Source:   w.svc.FeedSource(),
		Actions:  w.svc,
		Limit:    20,
		Bus:      w.bus,
		Authors:  func(id string) bool { return id == author.ID || id == viewer.ID },
	})
	t.Cleanup(feed.Close)
	require.NoError(t, feed.Open(ctx))
	require.Len(t, feed.Snapshot().Items, 1)

	w.post(t, stranger, "not for you")
	w.post(t, author, "moanin'")
	assert.Eventually(t, func() bool { return feed.Snapshot().NewItems == 1 }, wait, 10*time.Millisecond)

	require.NoError(t, feed.ShowNew(ctx))
	snap := feed.Snapshot()
	assert.Equal(t, 0, snap.NewItems)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "moanin'", snap.Items[0].Content)
}

func TestFeedCountsOnlyFolloweesThroughRelationships(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	viewer := w.user(t, "viewer")
	followee := w.user(t, "followee")
	stranger := w.user(t, "stranger")
	later := w.user(t, "later")
	_, err := w.rel.Follow(ctx, viewer.ID, followee.ID)
	require.NoError(t, err)

	feed := NewFeed(FeedConfig{
		ViewerID: viewer.ID,
		Source:   w.svc.FeedSource(),
		Actions:  w.svc,
		Limit:    20,
		Bus:      w.bus,
		Follows:  w.rel,
	})
	t.Cleanup(feed.Close)
	require.NoError(t, feed.Open(ctx))

	w.post(t, stranger, "not for you")
	w.post(t, later, "not yet")
	w.post(t, followee, "head hunters")
	assert.Eventually(t, func() bool { return feed.Snapshot().NewItems == 1 }, wait, 10*time.Millisecond)

	// following clears the remembered answer for that author
	_, err = w.rel.Follow(ctx, viewer.ID, later.ID)
	require.NoError(t, err)
	w.post(t, later, "now you see me")
	assert.Eventually(t, func() bool { return feed.Snapshot().NewItems == 2 }, wait, 10*time.Millisecond)

	require.NoError(t, feed.ShowNew(ctx))
	snap := feed.Snapshot()
	assert.Equal(t, 0, snap.NewItems)
	require.Len(t, snap.Items, 3)
	assert.Equal(t, "now you see me", snap.Items[0].Content)
}

func TestFeedWithoutScopeIgnoresOtherAuthors(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	viewer := w.user(t, "viewer")
	stranger := w.user(t, "stranger")

	feed := NewFeed(FeedConfig{ViewerID: viewer.ID, Source: w.svc.FeedSource(), Actions: w.svc, Limit: 20, Bus: w.bus})
	t.Cleanup(feed.Close)
	require.NoError(t, feed.Open(ctx))

	w.post(t, stranger, "not for you")
	w.post(t, viewer, "my own")
	assert.Eventually(t, func() bool { return feed.Snapshot().NewItems == 1 }, wait, 10*time.Millisecond)

	require.NoError(t, feed.ShowNew(ctx))
	snap := feed.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "my own", snap.Items[0].Content)
}

func TestFollowThenFailedLikeReverts(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	a := w.user(t, "a")
	b := w.user(t, "b")
	post := w.post(t, a, "a love supreme, impulse orange label")

	edge, err := w.rel.Follow(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FollowAccepted, edge.Status)

	actions := &flakyPosts{PostActions: w.svc, down: true}
	feed := NewFeed(FeedConfig{
		ViewerID: b.ID,
		Source:   w.svc.FeedSource(),
		Actions:  actions,
		Limit:    20,
		Bus:      w.bus,
		Follows:  w.rel,
	})
	t.Cleanup(feed.Close)
	require.NoError(t, feed.Open(ctx))
	got := feedPost(t, feed, post.ID)
	assert.False(t, got.IsLiked)
	assert.Equal(t, int64(0), got.LikesCount)

	require.ErrorIs(t, feed.ToggleLike(ctx, post.ID), domain.ErrTransientIO)
	got = feedPost(t, feed, post.ID)
	assert.False(t, got.IsLiked)
	assert.Equal(t, int64(0), got.LikesCount)

	stored, err := w.svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.LikesCount)
}

func TestFeedPicksUpRemoteCountsAndDeletes(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	viewer := w.user(t, "viewer")
	author := w.user(t, "author")
	fan := w.user(t, "fan")
	w.follow(t, viewer, author)
	post := w.post(t, author, "somethin' else")

	feed := NewFeed(FeedConfig{ViewerID: viewer.ID, Source: w.svc.FeedSource(), Actions: w.svc, Limit: 20, Bus: w.bus})
	t.Cleanup(feed.Close)
	require.NoError(t, feed.Open(ctx))

	_, err := w.svc.Like(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		p, ok := feed.Get(post.ID)
		return ok && p.LikesCount == 1 && !p.IsLiked && p.Author.ID == author.ID
	}, wait, 10*time.Millisecond)

	require.NoError(t, w.svc.DeletePost(ctx, author.ID, post.ID))
	assert.Eventually(t, func() bool {
		_, ok := feed.Get(post.ID)
		return !ok
	}, wait, 10*time.Millisecond)
}

func TestFeedDeletePostRestoresOnFailure(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	viewer := w.user(t, "viewer")
	author := w.user(t, "author")
	w.follow(t, viewer, author)
	post := w.post(t, author, "not yours to delete")

	feed := NewFeed(FeedConfig{ViewerID: viewer.ID, Source: w.svc.FeedSource(), Actions: w.svc, Limit: 20})
	t.Cleanup(feed.Close)
	require.NoError(t, feed.Open(ctx))

	err := feed.DeletePost(ctx, post.ID)
	require.ErrorIs(t, err, domain.ErrNotOwner)
	_, ok := feed.Get(post.ID)
	assert.True(t, ok)
}

// gateSource blocks every page until release is closed.
type gateSource struct {
	release chan struct{}
	rows    []domain.FeedPost
}

func (g *gateSource) Page(ctx context.Context, _ string, _ *pagination.Cursor, _ int) ([]domain.FeedPost, error) {
	select {
	case <-g.release:
		return g.rows, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCloseDropsLateResultsAndUnsubscribes(t *testing.T) {
	w := newWorld(t)
	src := &gateSource{
		release: make(chan struct{}),
		rows:    []domain.FeedPost{{Post: domain.Post{ID: uuid.NewString(), CreatedAt: time.Now()}}},
	}
	feed := NewFeed(FeedConfig{ViewerID: "viewer", Source: src, Actions: w.svc, Limit: 20, Bus: w.bus})

	opened := make(chan error, 1)
	go func() { opened <- feed.Open(context.Background()) }()
	assert.Eventually(t, func() bool { return feed.Snapshot().Loading }, wait, 5*time.Millisecond)

	feed.Close()
	close(src.release)

	select {
	case err := <-opened:
		assert.ErrorIs(t, err, domain.ErrViewClosed)
	case <-time.After(wait):
		t.Fatal("open did not return")
	}
	assert.Empty(t, feed.Snapshot().Items)

	require.NoError(t, w.bus.Publish(context.Background(),
		realtime.NewChange(realtime.TablePosts, realtime.KindInsert, uuid.NewString(), time.Now(), nil, nil)))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, feed.Snapshot().NewItems)

	assert.ErrorIs(t, feed.ToggleLike(context.Background(), src.rows[0].ID), domain.ErrPostNotFound)
	assert.ErrorIs(t, feed.DeletePost(context.Background(), src.rows[0].ID), domain.ErrViewClosed)
	feed.Close()
}

func TestCommentsPrependAndCount(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	author := w.user(t, "author")
	viewer := w.user(t, "viewer")
	other := w.user(t, "other")
	post := w.post(t, author, "side b is the one")

	comments := NewComments(CommentsConfig{
		Viewer:  viewer,
		PostID:  post.ID,
		Source:  w.svc.CommentsSource(),
		Actions: w.svc,
		Limit:   20,
		Bus:     w.bus,
	})
	t.Cleanup(comments.Close)
	require.NoError(t, comments.Open(ctx))

	mine, err := comments.Add(ctx, "agreed")
	require.NoError(t, err)
	assert.Equal(t, viewer.ID, mine.Author.ID)

	_, err = w.svc.AddComment(ctx, other.ID, post.ID, domain.CreateCommentRequest{Content: "side a though"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(comments.Snapshot().Items) == 2 && comments.Count() == 2
	}, wait, 10*time.Millisecond)
	snap := comments.Snapshot()
	assert.Equal(t, "side a though", snap.Items[0].Content)
	assert.Equal(t, "other", snap.Items[0].Author.Name)

	require.NoError(t, comments.Delete(ctx, mine.ID))
	assert.Equal(t, int64(1), comments.Count())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), comments.Count())

	err = comments.Delete(ctx, snap.Items[0].ID)
	require.ErrorIs(t, err, domain.ErrNotOwner)
	assert.Equal(t, int64(1), comments.Count())
	assert.Len(t, comments.Snapshot().Items, 1)
}

func TestChangesWithoutRecordReload(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	author := w.user(t, "author")
	post := w.post(t, author, "long liner notes")

	// A separate bus so only hand-made changes reach the view.
	quiet := realtime.NewMemoryBus()
	t.Cleanup(func() { _ = quiet.Close() })
	comments := NewComments(CommentsConfig{
		Viewer:  author,
		PostID:  post.ID,
		Source:  w.svc.CommentsSource(),
		Actions: w.svc,
		Limit:   20,
		Bus:     quiet,
	})
	t.Cleanup(comments.Close)
	require.NoError(t, comments.Open(ctx))

	c, err := w.svc.AddComment(ctx, author.ID, post.ID, domain.CreateCommentRequest{Content: "the full essay"})
	require.NoError(t, err)
	scope := map[string]string{realtime.ScopePostID: post.ID, realtime.ScopeUserID: author.ID}
	require.NoError(t, quiet.Publish(ctx, realtime.NewChange(realtime.TableComments, realtime.KindInsert, c.ID, c.CreatedAt, scope, nil)))

	assert.Eventually(t, func() bool {
		got, ok := comments.Get(c.ID)
		return ok && got.Content == "the full essay" && got.Author.ID == author.ID
	}, wait, 10*time.Millisecond)

	require.NoError(t, quiet.Publish(ctx, realtime.NewChange(realtime.TableComments, realtime.KindUpdate, c.ID, c.CreatedAt, scope, nil)))
	require.NoError(t, quiet.Publish(ctx, realtime.NewChange(realtime.TableComments, realtime.KindDelete, c.ID, c.CreatedAt, scope, nil)))
	assert.Eventually(t, func() bool {
		_, ok := comments.Get(c.ID)
		return !ok
	}, wait, 10*time.Millisecond)
}

func TestNotificationsBadge(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	author := w.user(t, "author")
	fan := w.user(t, "fan")
	post := w.post(t, author, "test pressing")

	inbox := NewNotifications(NotificationsConfig{
		UserID:  author.ID,
		Source:  w.svc.NotificationsSource(),
		Actions: w.svc,
		Limit:   20,
		Bus:     w.bus,
	})
	t.Cleanup(inbox.Close)
	require.NoError(t, inbox.Open(ctx))
	assert.Equal(t, int64(0), inbox.Unread())

	_, err := w.svc.Like(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	_, err = w.svc.AddComment(ctx, fan.ID, post.ID, domain.CreateCommentRequest{Content: "want"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return inbox.Unread() == 2 }, wait, 10*time.Millisecond)
	items := inbox.Snapshot().Items
	require.Len(t, items, 2)
	assert.Equal(t, "fan", items[0].Actor.Name)

	require.NoError(t, inbox.MarkRead(ctx, items[1].ID))
	assert.Equal(t, int64(1), inbox.Unread())

	// A second view of the same inbox, such as a header badge.
	badge := NewNotifications(NotificationsConfig{
		UserID:  author.ID,
		Source:  w.svc.NotificationsSource(),
		Actions: w.svc,
		Limit:   20,
		Bus:     w.bus,
	})
	t.Cleanup(badge.Close)
	require.NoError(t, badge.Open(ctx))
	assert.Equal(t, int64(1), badge.Unread())

	require.NoError(t, inbox.MarkAllRead(ctx))
	assert.Equal(t, int64(0), inbox.Unread())
	assert.Eventually(t, func() bool { return badge.Unread() == 0 }, wait, 10*time.Millisecond)
	for _, n := range badge.Snapshot().Items {
		assert.True(t, n.Read)
	}
}

// downInbox refuses every write.
type downInbox struct{ NotificationActions }

func (downInbox) MarkAllRead(context.Context, string) (int64, error) {
	return 0, errors.New("timeout")
}

func TestNotificationsMarkAllReadRollsBack(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	author := w.user(t, "author")
	fan := w.user(t, "fan")
	post := w.post(t, author, "b-side")
	_, err := w.svc.Like(ctx, fan.ID, post.ID)
	require.NoError(t, err)

	inbox := NewNotifications(NotificationsConfig{
		UserID:  author.ID,
		Source:  w.svc.NotificationsSource(),
		Actions: downInbox{w.svc},
		Limit:   20,
	})
	t.Cleanup(inbox.Close)
	require.NoError(t, inbox.Open(ctx))
	require.Equal(t, int64(1), inbox.Unread())

	require.ErrorIs(t, inbox.MarkAllRead(ctx), domain.ErrTransientIO)
	assert.Equal(t, int64(1), inbox.Unread())
	assert.False(t, inbox.Snapshot().Items[0].Read)
}

func TestShelfMoveAndRemove(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	u := w.user(t, "digger")

	shelf := func(kind domain.EntryKind) *Shelf {
		s := NewShelf(ShelfConfig{
			Query:   social.ShelfQuery{UserID: u.ID, Kind: kind},
			Source:  w.svc.ShelfSource(),
			Actions: w.svc,
			Limit:   20,
			Bus:     w.bus,
		})
		t.Cleanup(s.Close)
		require.NoError(t, s.Open(ctx))
		return s
	}
	wishlist := shelf(domain.KindWishlist)
	collection := shelf(domain.KindCollection)

	entry, err := wishlist.Add(ctx, domain.AddEntryRequest{AlbumID: "mingus-ah-um", Title: "Mingus Ah Um", Artist: "Charles Mingus"})
	require.NoError(t, err)
	assert.Len(t, wishlist.Snapshot().Items, 1)

	require.ErrorIs(t, collection.MoveToCollection(ctx, entry.ID), domain.ErrInvalidKind)
	require.NoError(t, wishlist.MoveToCollection(ctx, entry.ID))
	assert.Empty(t, wishlist.Snapshot().Items)
	assert.Eventually(t, func() bool { return len(collection.Snapshot().Items) == 1 }, wait, 10*time.Millisecond)

	moved := collection.Snapshot().Items[0]
	assert.Equal(t, "mingus-ah-um", moved.AlbumID)

	require.NoError(t, collection.Remove(ctx, moved.ID))
	assert.Empty(t, collection.Snapshot().Items)

	err = collection.Remove(ctx, moved.ID)
	require.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestSubscriptionFailureIsReported(t *testing.T) {
	w := newWorld(t)
	viewer := w.user(t, "viewer")
	feed := NewFeed(FeedConfig{ViewerID: viewer.ID, Source: w.svc.FeedSource(), Actions: w.svc, Limit: 20, Bus: w.bus})
	t.Cleanup(feed.Close)
	require.NoError(t, feed.Open(context.Background()))

	require.NoError(t, w.bus.Close())
	assert.Eventually(t, func() bool { return feed.Snapshot().SubscriptionErr != nil }, wait, 10*time.Millisecond)
	assert.ErrorIs(t, feed.Snapshot().SubscriptionErr, domain.ErrSubscription)
}
