package domain

import "time"

// ============================================
// Domain Models
// ============================================

type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	AvatarURL   string    `json:"avatar_url"`
	IsPrivate   bool      `json:"is_private"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type UserAuth struct {
	UserID         string    `json:"-"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"-"`
	UpdatedAt      time.Time `json:"-"`
}

type FollowStatus string

const (
	FollowPending  FollowStatus = "pending"
	FollowAccepted FollowStatus = "accepted"
)

// FollowEdge is a directed relationship. At most one edge exists per
// (FollowerID, FollowingID) pair.
type FollowEdge struct {
	ID          string       `json:"id"`
	FollowerID  string       `json:"follower_id"`
	FollowingID string       `json:"following_id"`
	Status      FollowStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (s FollowStatus) Valid() bool { return s == FollowPending || s == FollowAccepted }

func (e FollowEdge) ItemID() string     { return e.ID }
func (e FollowEdge) SortKey() time.Time { return e.CreatedAt }

type FollowState struct {
	IsFollowing bool         `json:"is_following"`
	Status      FollowStatus `json:"status,omitempty"`
	EdgeID      string       `json:"edge_id,omitempty"`
}

type FollowStats struct {
	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
}

type Post struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Content       string    `json:"content"`
	AlbumID       string    `json:"album_id,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	LikesCount    int64     `json:"likes_count"`
	CommentsCount int64     `json:"comments_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p Post) ItemID() string     { return p.ID }
func (p Post) SortKey() time.Time { return p.CreatedAt }

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type EntryKind string

const (
	KindCollection EntryKind = "collection"
	KindWishlist   EntryKind = "wishlist"
)

func (k EntryKind) Valid() bool { return k == KindCollection || k == KindWishlist }

// CollectionEntry is a record on a user's shelf or wishlist. AlbumID and
// CoverURL are opaque values handed over by the catalog and the image store.
type CollectionEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      EntryKind `json:"kind"`
	AlbumID   string    `json:"album_id"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	CoverURL  string    `json:"cover_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (e CollectionEntry) ItemID() string     { return e.ID }
func (e CollectionEntry) SortKey() time.Time { return e.CreatedAt }

type NotificationType string

const (
	NotifyFollow         NotificationType = "follow"
	NotifyFollowRequest  NotificationType = "follow_request"
	NotifyFollowAccepted NotificationType = "follow_accepted"
	NotifyLike           NotificationType = "like"
	NotifyComment        NotificationType = "comment"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	ActorID   string           `json:"actor_id"`
	Type      NotificationType `json:"type"`
	PostID    string           `json:"post_id,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

func (n Notification) ItemID() string     { return n.ID }
func (n Notification) SortKey() time.Time { return n.CreatedAt }

// ============================================
// Query DTOs (one per join shape)
// ============================================

type FeedPost struct {
	Post
	Author  User `json:"author"`
	IsLiked bool `json:"is_liked"`
}

type CommentWithAuthor struct {
	Comment
	Author User `json:"author"`
}

func (c CommentWithAuthor) ItemID() string     { return c.ID }
func (c CommentWithAuthor) SortKey() time.Time { return c.CreatedAt }

// Connection is one row of a followers or following list.
type Connection struct {
	Edge FollowEdge `json:"edge"`
	User User       `json:"user"`
}

func (c Connection) ItemID() string     { return c.Edge.ID }
func (c Connection) SortKey() time.Time { return c.Edge.CreatedAt }

type NotificationWithActor struct {
	Notification
	Actor User `json:"actor"`
}

type PendingRequest struct {
	Edge     FollowEdge `json:"edge"`
	Follower User       `json:"follower"`
}

func (r PendingRequest) ItemID() string     { return r.Edge.ID }
func (r PendingRequest) SortKey() time.Time { return r.Edge.CreatedAt }

type Profile struct {
	User     User        `json:"user"`
	Stats    FollowStats `json:"stats"`
	Relation FollowState `json:"relation"`
}

// ============================================
// Request/Response Models
// ============================================

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type SignupRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type SignupResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatar_url"`
	IsPrivate   *bool   `json:"is_private"`
}

// MaxContentLength caps post and comment text, in characters.
const MaxContentLength = 1000

type CreatePostRequest struct {
	Content  string `json:"content"`
	AlbumID  string `json:"album_id"`
	ImageURL string `json:"image_url"`
}

type CreateCommentRequest struct {
	Content string `json:"content"`
}

type AddEntryRequest struct {
	AlbumID  string `json:"album_id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	CoverURL string `json:"cover_url"`
}

type Pagination struct {
	Count      int    `json:"count"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

type PageResponse[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

type GetUsersResponse struct {
	Users []User `json:"users"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}
