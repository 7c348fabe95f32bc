package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
	"github.com/Tetsu-is/crate-digger/internal/realtime"
)

func mustUser(t *testing.T, s *Store, name string) domain.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), uuid.NewString(), name, "password")
	require.NoError(t, err)
	return *u
}

func TestUsers(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	u := mustUser(t, s, "digger")

	_, err := s.CreateUser(ctx, uuid.NewString(), "digger", "x")
	assert.ErrorIs(t, err, domain.ErrDuplicateUser)

	got, err := s.Authenticate(ctx, "digger", "password")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	_, err = s.Authenticate(ctx, "digger", "wrong")
	assert.ErrorIs(t, err, domain.ErrBadCredentials)

	private := true
	updated, err := s.UpdateProfile(ctx, u.ID, domain.UpdateProfileRequest{IsPrivate: &private})
	require.NoError(t, err)
	assert.True(t, updated.IsPrivate)
	assert.Equal(t, "digger", updated.DisplayName)
}

func TestFeedPaginationIsExclusive(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	a := mustUser(t, s, "a")

	var ids []string
	for range 5 {
		p, err := s.CreatePost(ctx, domain.Post{ID: uuid.NewString(), UserID: a.ID, Content: "spin"})
		require.NoError(t, err)
		ids = append([]string{p.ID}, ids...)
	}

	first, err := s.Feed(ctx, a.ID, nil, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, ids[:3], []string{first[0].ID, first[1].ID, first[2].ID})

	rest, err := s.Feed(ctx, a.ID, pagination.CursorOf(first[2]), 3)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, ids[3:], []string{rest[0].ID, rest[1].ID})
}

func TestLikeIsIdempotentAndFloored(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	a := mustUser(t, s, "a")
	p, err := s.CreatePost(ctx, domain.Post{ID: uuid.NewString(), UserID: a.ID, Content: "spin"})
	require.NoError(t, err)

	got, changed, err := s.Like(ctx, p.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(1), got.LikesCount)

	got, changed, err = s.Like(ctx, p.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, int64(1), got.LikesCount)

	for range 3 {
		got, _, err = s.Unlike(ctx, p.ID, a.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(0), got.LikesCount)

	_, _, err = s.Like(ctx, "missing", a.ID)
	assert.ErrorIs(t, err, domain.ErrPostNotFound)
}

func TestWritesPublishChanges(t *testing.T) {
	bus := realtime.NewMemoryBus()
	sub, err := bus.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	s := New(bus)
	ctx := context.Background()
	a := mustUser(t, s, "a")
	b := mustUser(t, s, "b")
	p, err := s.CreatePost(ctx, domain.Post{ID: uuid.NewString(), UserID: a.ID, Content: "spin"})
	require.NoError(t, err)
	_, err = s.CreateComment(ctx, domain.Comment{ID: uuid.NewString(), PostID: p.ID, UserID: b.ID, Content: "great find"})
	require.NoError(t, err)

	var got []realtime.Change
	timeout := time.After(time.Second)
	for len(got) < 3 {
		select {
		case c := <-sub.Events():
			got = append(got, c)
		case <-timeout:
			t.Fatalf("got %d changes", len(got))
		}
	}

	assert.Equal(t, realtime.TablePosts, got[0].Table)
	assert.Equal(t, realtime.KindInsert, got[0].Kind)
	assert.Equal(t, a.ID, got[0].Scope[realtime.ScopeUserID])

	assert.Equal(t, realtime.TableComments, got[1].Table)
	var cw domain.CommentWithAuthor
	require.NoError(t, got[1].Decode(&cw))
	assert.Equal(t, "b", cw.Author.Name)

	assert.Equal(t, realtime.KindUpdate, got[2].Kind)
	var fp domain.FeedPost
	require.NoError(t, got[2].Decode(&fp))
	assert.Equal(t, int64(1), fp.CommentsCount)
}

func TestMoveToCollection(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	a := mustUser(t, s, "a")

	wish, created, err := s.AddEntry(ctx, domain.CollectionEntry{ID: uuid.NewString(), UserID: a.ID, Kind: domain.KindWishlist, AlbumID: "blue-train"})
	require.NoError(t, err)
	require.True(t, created)

	_, created, err = s.AddEntry(ctx, domain.CollectionEntry{ID: uuid.NewString(), UserID: a.ID, Kind: domain.KindWishlist, AlbumID: "blue-train"})
	require.NoError(t, err)
	assert.False(t, created)

	moved, err := s.MoveToCollection(ctx, wish.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.KindCollection, moved.Kind)
	assert.Equal(t, "blue-train", moved.AlbumID)

	wl, err := s.ListEntries(ctx, a.ID, domain.KindWishlist, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, wl)
	col, err := s.ListEntries(ctx, a.ID, domain.KindCollection, nil, 10)
	require.NoError(t, err)
	assert.Len(t, col, 1)

	_, err = s.MoveToCollection(ctx, wish.ID, a.ID)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}
