package models

import "time"

// TimeLayout is how timestamps are written to the store. All values are UTC,
// so string comparison in SQL matches chronological order.
const TimeLayout = "2006-01-02 15:04:05"

const (
	DefaultBio    = "Web Developer | ReactJS Enthusiast"
	DefaultAvatar = "👤"
)

// Viewer identifies who is looking at a view. The zero value is anonymous.
type Viewer int64

const Anonymous Viewer = 0

func (v Viewer) Authenticated() bool { return v > 0 }

func (v Viewer) UserID() int64 { return int64(v) }

type User struct {
	ID           int64     `json:"user_id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Bio          string    `json:"bio"`
	Avatar       string    `json:"avatar"`
	CreatedAt    time.Time `json:"created_at"`
}

type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session can still authenticate requests at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}

// PostRow is a post as read from the store: author fields joined in, reply and
// like counts aggregated, and the immediate parent's preview when it is a reply.
type PostRow struct {
	ID             int64
	UserID         int64
	Username       string
	DisplayName    string
	Avatar         string
	Content        string
	ParentID       *int64
	ParentContent  *string
	ParentUsername *string
	CreatedAt      time.Time
	Likes          int
	Replies        int
	BookmarkedAt   *time.Time
}

// PostView is the representation every endpoint returns for a post.
type PostView struct {
	ID               int64      `json:"post_id"`
	UserID           int64      `json:"user_id"`
	Username         string     `json:"username"`
	DisplayName      string     `json:"display_name"`
	Avatar           string     `json:"avatar"`
	Content          string     `json:"content"`
	CreatedAt        time.Time  `json:"created_at"`
	ParentID         *int64     `json:"parent_post_id"`
	ParentContent    *string    `json:"parent_content"`
	ParentUsername   *string    `json:"parent_username"`
	IsReply          bool       `json:"is_reply"`
	Likes            int        `json:"likes"`
	Replies          int        `json:"replies"`
	LikedByUser      bool       `json:"liked_by_user"`
	BookmarkedByUser bool       `json:"bookmarked_by_user"`
	BookmarkedAt     *time.Time `json:"bookmarked_at,omitempty"`
}

type Thread struct {
	MainPost PostView   `json:"main_post"`
	Replies  []PostView `json:"replies"`
}

type Profile struct {
	User         *User      `json:"user"`
	Posts        []PostView `json:"posts"`
	IsFollowing  bool       `json:"is_following"`
	IsOwnProfile bool       `json:"is_own_profile"`
}
