package social

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/memstore"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
)

func newService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	db := memstore.New(nil)
	return NewService(Backend{Posts: db, Feeds: db, Comments: db, Collections: db, Notifications: db}), db
}

func user(t *testing.T, db *memstore.Store, name string) domain.User {
	t.Helper()
	u, err := db.CreateUser(context.Background(), uuid.NewString(), name, "password")
	require.NoError(t, err)
	return *u
}

func TestFeedShowsOnlyAcceptedFollowees(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	viewer := user(t, db, "viewer")
	public := user(t, db, "public")
	pending := user(t, db, "pending")
	stranger := user(t, db, "stranger")

	_, _, err := db.InsertEdge(ctx, viewer.ID, public.ID, domain.FollowAccepted)
	require.NoError(t, err)
	_, _, err = db.InsertEdge(ctx, viewer.ID, pending.ID, domain.FollowPending)
	require.NoError(t, err)

	for _, u := range []domain.User{viewer, public, pending, stranger} {
		_, err := svc.CreatePost(ctx, u.ID, domain.CreatePostRequest{Content: "now spinning from " + u.Name})
		require.NoError(t, err)
	}

	page, err := pagination.New(svc.FeedSource()).FetchInitial(ctx, viewer.ID, 10)
	require.NoError(t, err)
	var authors []string
	for _, p := range page.Items {
		authors = append(authors, p.Author.Name)
	}
	assert.Equal(t, []string{"public", "viewer"}, authors)
	assert.False(t, page.HasMore)
}

func TestCreatePostValidation(t *testing.T) {
	svc, db := newService(t)
	u := user(t, db, "u")

	_, err := svc.CreatePost(context.Background(), u.ID, domain.CreatePostRequest{Content: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyContent)

	p, err := svc.CreatePost(context.Background(), u.ID, domain.CreatePostRequest{AlbumID: "a-love-supreme"})
	require.NoError(t, err)
	assert.Equal(t, "a-love-supreme", p.AlbumID)
}

func TestLikeNotifiesAuthorOnce(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	author := user(t, db, "author")
	fan := user(t, db, "fan")
	post, err := svc.CreatePost(ctx, author.ID, domain.CreatePostRequest{Content: "first pressing"})
	require.NoError(t, err)

	for range 2 {
		got, err := svc.Like(ctx, fan.ID, post.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.LikesCount)
	}
	_, err = svc.Like(ctx, author.ID, post.ID)
	require.NoError(t, err)

	unread, err := svc.UnreadCount(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	got, err := svc.Unlike(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.LikesCount)
}

func TestCommentsCountAndOwnership(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	author := user(t, db, "author")
	other := user(t, db, "other")
	post, err := svc.CreatePost(ctx, author.ID, domain.CreatePostRequest{Content: "test pressing"})
	require.NoError(t, err)

	c, err := svc.AddComment(ctx, other.ID, post.ID, domain.CreateCommentRequest{Content: "jealous"})
	require.NoError(t, err)
	_, err = svc.AddComment(ctx, other.ID, post.ID, domain.CreateCommentRequest{Content: ""})
	assert.ErrorIs(t, err, domain.ErrEmptyContent)

	got, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.CommentsCount)

	_, err = svc.DeleteComment(ctx, author.ID, c.ID)
	assert.ErrorIs(t, err, domain.ErrNotOwner)
	_, err = svc.DeleteComment(ctx, other.ID, c.ID)
	require.NoError(t, err)

	got, err = svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.CommentsCount)

	list, err := svc.Comments(ctx, ThreadQuery{PostID: post.ID, ViewerID: author.ID}, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	notes, err := svc.Notifications(ctx, author.ID, nil, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotifyComment, notes[0].Type)
	assert.Equal(t, "other", notes[0].Actor.Name)
}

func TestShelves(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	u := user(t, db, "u")

	_, _, err := svc.AddEntry(ctx, u.ID, "vault", domain.AddEntryRequest{AlbumID: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidKind)

	first, created, err := svc.AddEntry(ctx, u.ID, domain.KindCollection, domain.AddEntryRequest{AlbumID: "kind-of-blue", Title: "Kind of Blue", Artist: "Miles Davis"})
	require.NoError(t, err)
	assert.True(t, created)
	again, created, err := svc.AddEntry(ctx, u.ID, domain.KindCollection, domain.AddEntryRequest{AlbumID: "kind-of-blue"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	shelf, err := svc.Shelf(ctx, ShelfQuery{UserID: u.ID, Kind: domain.KindCollection}, nil, 10)
	require.NoError(t, err)
	assert.Len(t, shelf, 1)

	_, err = svc.RemoveEntry(ctx, u.ID, first.ID)
	require.NoError(t, err)
	_, err = svc.RemoveEntry(ctx, u.ID, first.ID)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestMarkRead(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	author := user(t, db, "author")
	fans := []domain.User{user(t, db, "f1"), user(t, db, "f2")}
	post, err := svc.CreatePost(ctx, author.ID, domain.CreatePostRequest{Content: "new arrival"})
	require.NoError(t, err)
	for _, f := range fans {
		_, err := svc.Like(ctx, f.ID, post.ID)
		require.NoError(t, err)
	}

	notes, err := svc.Notifications(ctx, author.ID, nil, 10)
	require.NoError(t, err)
	require.Len(t, notes, 2)

	for range 2 {
		n, err := svc.MarkRead(ctx, author.ID, notes[0].ID)
		require.NoError(t, err)
		assert.True(t, n.Read)
	}
	unread, err := svc.UnreadCount(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	n, err := svc.MarkAllRead(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	unread, err = svc.UnreadCount(ctx, author.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	_, err = svc.MarkRead(ctx, fans[0].ID, notes[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotifNotFound)
}

func TestContentLength(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	u := user(t, db, "u")

	// characters are counted, not bytes
	_, err := svc.CreatePost(ctx, u.ID, domain.CreatePostRequest{Content: strings.Repeat("盤", domain.MaxContentLength)})
	require.NoError(t, err)

	tests := []struct {
		name string
		run  func(t *testing.T, content string) error
	}{
		{name: "post", run: func(_ *testing.T, content string) error {
			_, err := svc.CreatePost(ctx, u.ID, domain.CreatePostRequest{Content: content})
			return err
		}},
		{name: "comment", run: func(t *testing.T, content string) error {
			post, err := svc.CreatePost(ctx, u.ID, domain.CreatePostRequest{Content: "short"})
			require.NoError(t, err)
			_, err = svc.AddComment(ctx, u.ID, post.ID, domain.CreateCommentRequest{Content: content})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(t, strings.Repeat("a", domain.MaxContentLength+1))
			assert.ErrorIs(t, err, domain.ErrContentTooLong)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestPrivateThreads(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	author := user(t, db, "author")
	follower := user(t, db, "follower")
	stranger := user(t, db, "stranger")
	private := true
	_, err := db.UpdateProfile(ctx, author.ID, domain.UpdateProfileRequest{IsPrivate: &private})
	require.NoError(t, err)
	_, _, err = db.InsertEdge(ctx, follower.ID, author.ID, domain.FollowAccepted)
	require.NoError(t, err)

	post, err := svc.CreatePost(ctx, author.ID, domain.CreatePostRequest{Content: "test pressing"})
	require.NoError(t, err)
	_, err = svc.AddComment(ctx, follower.ID, post.ID, domain.CreateCommentRequest{Content: "nice"})
	require.NoError(t, err)

	_, err = svc.AddComment(ctx, stranger.ID, post.ID, domain.CreateCommentRequest{Content: "hi"})
	assert.ErrorIs(t, err, domain.ErrPrivateProfile)
	_, err = svc.Comments(ctx, ThreadQuery{PostID: post.ID, ViewerID: stranger.ID}, nil, 10)
	assert.ErrorIs(t, err, domain.ErrPrivateProfile)
	assert.ErrorIs(t, svc.CanSeePost(ctx, stranger.ID, post.ID), domain.ErrForbidden)

	for _, viewer := range []domain.User{author, follower} {
		list, err := svc.Comments(ctx, ThreadQuery{PostID: post.ID, ViewerID: viewer.ID}, nil, 10)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	}
}
