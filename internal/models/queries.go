package models

import (
	"context"
	"database/sql"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrSelfFollow        = errors.New("cannot follow yourself")
)

func constraintCode(err error) sqlite3.ErrNoExtended {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode
	}
	return 0
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// users

const userColumns = `user_id, username, display_name, password_hash, bio, avatar, created_at`

func scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.Bio, &u.Avatar, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func CreateUser(ctx context.Context, db *sql.DB, username, displayName, passwordHash string) (int64, error) {
	res, err := db.ExecContext(ctx, `INSERT INTO users (username, display_name, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		username, displayName, passwordHash, time.Now().UTC().Format(TimeLayout))
	if err != nil {
		if constraintCode(err) == sqlite3.ErrConstraintUnique {
			return 0, ErrDuplicateUsername
		}
		return 0, errors.Wrap(err, "insert user")
	}
	return res.LastInsertId()
}

func GetUserByID(ctx context.Context, db *sql.DB, id int64) (*User, error) {
	return scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, id))
}

func GetUserByUsername(ctx context.Context, db *sql.DB, username string) (*User, error) {
	return scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

// UpdateUserProfile sets the non-nil fields and leaves the others untouched.
func UpdateUserProfile(ctx context.Context, db *sql.DB, userID int64, displayName, bio *string) error {
	res, err := db.ExecContext(ctx, `UPDATE users SET display_name = COALESCE(?, display_name), bio = COALESCE(?, bio) WHERE user_id = ?`,
		displayName, bio, userID)
	if err != nil {
		return errors.Wrap(err, "update user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// sessions

func CreateSession(ctx context.Context, db *sql.DB, userID int64, sessionID string, expires time.Time) error {
	// revoke existing
	_, err := db.ExecContext(ctx, `UPDATE sessions SET revoked_at = CURRENT_TIMESTAMP WHERE user_id = ? AND revoked_at IS NULL`, userID)
	if err != nil {
		return errors.Wrap(err, "revoke sessions")
	}
	_, err = db.ExecContext(ctx, `INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		sessionID, userID, time.Now().UTC().Format(TimeLayout), expires.UTC().Format(TimeLayout))
	return errors.Wrap(err, "insert session")
}

func GetSession(ctx context.Context, db *sql.DB, id string) (*Session, error) {
	row := db.QueryRowContext(ctx, `SELECT id, user_id, created_at, expires_at, revoked_at FROM sessions WHERE id = ?`, id)
	var s Session
	var revoked sql.NullTime
	if err := row.Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &revoked); err != nil {
		return nil, notFound(err)
	}
	if revoked.Valid {
		s.RevokedAt = &revoked.Time
	}
	return &s, nil
}

func RevokeSession(ctx context.Context, db *sql.DB, id string) error {
	_, err := db.ExecContext(ctx, `UPDATE sessions SET revoked_at = CURRENT_TIMESTAMP WHERE id = ? AND revoked_at IS NULL`, id)
	return errors.Wrap(err, "revoke session")
}

// posts

const postColumns = `SELECT p.post_id, p.user_id, u.username, u.display_name, u.avatar, p.content, p.parent_post_id, p.created_at,
    (SELECT COUNT(*) FROM likes l WHERE l.post_id = p.post_id) AS like_count,
    (SELECT COUNT(*) FROM posts r WHERE r.parent_post_id = p.post_id) AS reply_count,
    pp.content AS parent_content, pu.username AS parent_username`

const postFrom = ` FROM posts p
JOIN users u ON u.user_id = p.user_id
LEFT JOIN posts pp ON pp.post_id = p.parent_post_id
LEFT JOIN users pu ON pu.user_id = pp.user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostRow(rs rowScanner, extra ...any) (PostRow, error) {
	var p PostRow
	var parentID sql.NullInt64
	var parentContent, parentUsername sql.NullString
	dest := []any{&p.ID, &p.UserID, &p.Username, &p.DisplayName, &p.Avatar, &p.Content, &parentID, &p.CreatedAt,
		&p.Likes, &p.Replies, &parentContent, &parentUsername}
	if err := rs.Scan(append(dest, extra...)...); err != nil {
		return p, err
	}
	if parentID.Valid {
		id := parentID.Int64
		p.ParentID = &id
	}
	if parentContent.Valid {
		p.ParentContent = &parentContent.String
	}
	if parentUsername.Valid {
		p.ParentUsername = &parentUsername.String
	}
	return p, nil
}

func CreatePost(ctx context.Context, db *sql.DB, userID int64, content string, parentID *int64, at time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `INSERT INTO posts (user_id, content, parent_post_id, created_at) VALUES (?, ?, ?, ?)`,
		userID, content, parentID, at.UTC().Format(TimeLayout))
	if err != nil {
		if constraintCode(err) == sqlite3.ErrConstraintForeignKey {
			return 0, ErrNotFound
		}
		return 0, errors.Wrap(err, "insert post")
	}
	return res.LastInsertId()
}

func GetPostOwner(ctx context.Context, db *sql.DB, postID int64) (int64, error) {
	var owner int64
	if err := db.QueryRowContext(ctx, `SELECT user_id FROM posts WHERE post_id = ?`, postID).Scan(&owner); err != nil {
		return 0, notFound(err)
	}
	return owner, nil
}

// DeletePost removes the post. Replies, likes and bookmarks go with it through
// ON DELETE CASCADE.
func DeletePost(ctx context.Context, db *sql.DB, postID int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM posts WHERE post_id = ?`, postID)
	if err != nil {
		return errors.Wrap(err, "delete post")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func QueryPosts(ctx context.Context, db *sql.DB, f PostFilter) ([]PostRow, error) {
	where := And(f.Clauses()...)
	page, pageArgs := f.page()
	q := postColumns + postFrom + where.Where() + f.orderBy() + page
	rows, err := db.QueryContext(ctx, q, append(where.Args, pageArgs...)...)
	if err != nil {
		return nil, errors.Wrap(err, "query posts")
	}
	defer rows.Close()
	posts := []PostRow{}
	for rows.Next() {
		p, err := scanPostRow(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan post")
		}
		posts = append(posts, p)
	}
	return posts, errors.Wrap(rows.Err(), "iterate posts")
}

func GetPostRow(ctx context.Context, db *sql.DB, postID int64) (*PostRow, error) {
	posts, err := QueryPosts(ctx, db, PostFilter{PostID: &postID})
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrNotFound
	}
	return &posts[0], nil
}

// ListBookmarkedPosts returns the posts userID saved, most recently saved first.
func ListBookmarkedPosts(ctx context.Context, db *sql.DB, userID int64) ([]PostRow, error) {
	q := postColumns + `, b.created_at` + postFrom + `
JOIN bookmarks b ON b.post_id = p.post_id
WHERE b.user_id = ?
ORDER BY b.created_at DESC, b.bookmark_id DESC`
	rows, err := db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query bookmarks")
	}
	defer rows.Close()
	posts := []PostRow{}
	for rows.Next() {
		var at time.Time
		p, err := scanPostRow(rows, &at)
		if err != nil {
			return nil, errors.Wrap(err, "scan bookmark")
		}
		p.BookmarkedAt = &at
		posts = append(posts, p)
	}
	return posts, errors.Wrap(rows.Err(), "iterate bookmarks")
}

// counts and relation checks

func count(ctx context.Context, db *sql.DB, q string, args ...any) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return n, nil
}

func exists(ctx context.Context, db *sql.DB, q string, args ...any) (bool, error) {
	var ok bool
	if err := db.QueryRowContext(ctx, `SELECT EXISTS(`+q+`)`, args...).Scan(&ok); err != nil {
		return false, errors.Wrap(err, "exists")
	}
	return ok, nil
}

func CountLikes(ctx context.Context, db *sql.DB, postID int64) (int, error) {
	return count(ctx, db, `SELECT COUNT(*) FROM likes WHERE post_id = ?`, postID)
}

// CountReplies counts direct replies only. List queries aggregate the same
// number inline; DeletePost callers use it to report what a cascade removes.
func CountReplies(ctx context.Context, db *sql.DB, postID int64) (int, error) {
	return count(ctx, db, `SELECT COUNT(*) FROM posts WHERE parent_post_id = ?`, postID)
}

func HasLike(ctx context.Context, db *sql.DB, postID, userID int64) (bool, error) {
	return exists(ctx, db, `SELECT 1 FROM likes WHERE post_id = ? AND user_id = ?`, postID, userID)
}

func HasBookmark(ctx context.Context, db *sql.DB, postID, userID int64) (bool, error) {
	return exists(ctx, db, `SELECT 1 FROM bookmarks WHERE post_id = ? AND user_id = ?`, postID, userID)
}

func HasFollow(ctx context.Context, db *sql.DB, followerID, followingID int64) (bool, error) {
	return exists(ctx, db, `SELECT 1 FROM follows WHERE follower_id = ? AND following_id = ?`, followerID, followingID)
}

// toggles

// relation names a two-column link table. Its (left, right) pair is unique.
type relation struct {
	table, left, right string
}

var (
	likeRelation     = relation{"likes", "post_id", "user_id"}
	bookmarkRelation = relation{"bookmarks", "post_id", "user_id"}
	followRelation   = relation{"follows", "follower_id", "following_id"}
)

// toggle deletes the (left, right) row if present, otherwise inserts it, and
// reports whether the row exists afterwards.
func toggle(ctx context.Context, db *sql.DB, rel relation, left, right int64) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "begin toggle")
	}
	defer tx.Rollback()

	match := ` WHERE ` + rel.left + ` = ? AND ` + rel.right + ` = ?`
	res, err := tx.ExecContext(ctx, `DELETE FROM `+rel.table+match, left, right)
	if err != nil {
		return false, errors.Wrapf(err, "delete from %s", rel.table)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, errors.Wrap(tx.Commit(), "commit toggle")
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO `+rel.table+` (`+rel.left+`, `+rel.right+`, created_at) VALUES (?, ?, ?)`,
		left, right, time.Now().UTC().Format(TimeLayout))
	switch constraintCode(err) {
	case 0:
	case sqlite3.ErrConstraintUnique:
		// a concurrent toggle inserted the same pair first
		return true, nil
	case sqlite3.ErrConstraintForeignKey:
		return false, ErrNotFound
	case sqlite3.ErrConstraintCheck:
		return false, ErrSelfFollow
	}
	if err != nil {
		return false, errors.Wrapf(err, "insert into %s", rel.table)
	}
	return true, errors.Wrap(tx.Commit(), "commit toggle")
}

func ToggleLike(ctx context.Context, db *sql.DB, postID, userID int64) (bool, error) {
	return toggle(ctx, db, likeRelation, postID, userID)
}

func ToggleBookmark(ctx context.Context, db *sql.DB, postID, userID int64) (bool, error) {
	return toggle(ctx, db, bookmarkRelation, postID, userID)
}

func ToggleFollow(ctx context.Context, db *sql.DB, followerID, followingID int64) (bool, error) {
	return toggle(ctx, db, followRelation, followerID, followingID)
}
