// Package feed composes post views (feeds, threads, profiles, bookmarks and
// search results) and applies the mutations behind them.
package feed

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"socialfeed/internal/apperr"
	"socialfeed/internal/models"
)

type Service struct {
	DB *sql.DB

	log      *zap.Logger
	views    *Assembler
	validate *validator.Validate
	now      func() time.Time
}

func NewService(db *sql.DB, log *zap.Logger) *Service {
	return &Service{
		DB:       db,
		log:      log,
		views:    NewAssembler(sqlRelations{db}, log),
		validate: newValidator(),
		now:      time.Now,
	}
}

// sqlRelations backs the Assembler with the record store.
type sqlRelations struct{ db *sql.DB }

func (r sqlRelations) HasLike(ctx context.Context, postID, userID int64) (bool, error) {
	return models.HasLike(ctx, r.db, postID, userID)
}

func (r sqlRelations) HasBookmark(ctx context.Context, postID, userID int64) (bool, error) {
	return models.HasBookmark(ctx, r.db, postID, userID)
}

func storeFailure(what string, err error) error {
	return apperr.Wrap(apperr.Internal, what, err)
}

func requireViewer(viewer models.Viewer) error {
	if !viewer.Authenticated() {
		return apperr.New(apperr.Unauthenticated, "not authenticated")
	}
	return nil
}

func (s *Service) list(ctx context.Context, f models.PostFilter, viewer models.Viewer) ([]models.PostView, error) {
	rows, err := models.QueryPosts(ctx, s.DB, f)
	if err != nil {
		return nil, storeFailure("load posts", err)
	}
	return s.views.DecorateAll(ctx, rows, viewer), nil
}

// Feed returns every post, replies included, newest first.
func (s *Service) Feed(ctx context.Context, viewer models.Viewer) ([]models.PostView, error) {
	return s.list(ctx, models.PostFilter{}, viewer)
}

// FirstLevelFeed returns top-level posts and their direct replies, newest
// first. Deeper replies are left to thread drill-down.
func (s *Service) FirstLevelFeed(ctx context.Context, viewer models.Viewer) ([]models.PostView, error) {
	return s.list(ctx, models.PostFilter{FirstLevel: true}, viewer)
}

// Thread returns a post with its direct replies, oldest reply first.
func (s *Service) Thread(ctx context.Context, postID int64, viewer models.Viewer) (*models.Thread, error) {
	row, err := models.GetPostRow(ctx, s.DB, postID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "post not found")
	}
	if err != nil {
		return nil, storeFailure("load post", err)
	}
	replies, err := s.Replies(ctx, postID, viewer)
	if err != nil {
		return nil, err
	}
	return &models.Thread{
		MainPost: s.views.Decorate(ctx, *row, viewer),
		Replies:  replies,
	}, nil
}

// Replies returns the direct replies of postID, oldest first. An unknown post
// has no replies.
func (s *Service) Replies(ctx context.Context, postID int64, viewer models.Viewer) ([]models.PostView, error) {
	return s.list(ctx, models.PostFilter{ParentID: &postID, Order: models.OldestFirst}, viewer)
}

func (s *Service) Profile(ctx context.Context, userID int64, viewer models.Viewer) (*models.Profile, error) {
	user, err := models.GetUserByID(ctx, s.DB, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return nil, storeFailure("load user", err)
	}
	posts, err := s.list(ctx, models.PostFilter{AuthorID: &userID}, viewer)
	if err != nil {
		return nil, err
	}
	p := &models.Profile{
		User:         user,
		Posts:        posts,
		IsOwnProfile: viewer.Authenticated() && viewer.UserID() == userID,
	}
	if viewer.Authenticated() && !p.IsOwnProfile {
		p.IsFollowing, err = models.HasFollow(ctx, s.DB, viewer.UserID(), userID)
		if err != nil {
			return nil, storeFailure("load follow", err)
		}
	}
	return p, nil
}

// Search applies every populated filter together, newest first.
func (s *Service) Search(ctx context.Context, in SearchInput, viewer models.Viewer) ([]models.PostView, error) {
	f, err := in.filter()
	if err != nil {
		return nil, err
	}
	return s.list(ctx, f, viewer)
}

// Bookmarks returns the viewer's saved posts, most recently saved first.
func (s *Service) Bookmarks(ctx context.Context, viewer models.Viewer) ([]models.PostView, error) {
	if err := requireViewer(viewer); err != nil {
		return nil, err
	}
	rows, err := models.ListBookmarkedPosts(ctx, s.DB, viewer.UserID())
	if err != nil {
		return nil, storeFailure("load bookmarks", err)
	}
	return s.views.DecorateAll(ctx, rows, viewer), nil
}

func (s *Service) CreatePost(ctx context.Context, viewer models.Viewer, in CreatePostInput) (*models.PostView, error) {
	if err := requireViewer(viewer); err != nil {
		return nil, err
	}
	in.Content = strings.TrimSpace(in.Content)
	if err := s.check(in); err != nil {
		return nil, err
	}
	id, err := models.CreatePost(ctx, s.DB, viewer.UserID(), in.Content, in.ParentPostID, s.now())
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "parent post not found")
	}
	if err != nil {
		return nil, storeFailure("create post", err)
	}
	row, err := models.GetPostRow(ctx, s.DB, id)
	if err != nil {
		return nil, storeFailure("load created post", err)
	}
	s.log.Info("post created", zap.Int64("post_id", id), zap.Int64("user_id", viewer.UserID()), zap.Bool("is_reply", in.ParentPostID != nil))
	view := s.views.Decorate(ctx, *row, viewer)
	return &view, nil
}

// DeletePost removes a post owned by the viewer, together with its replies.
func (s *Service) DeletePost(ctx context.Context, viewer models.Viewer, postID int64) error {
	if err := requireViewer(viewer); err != nil {
		return err
	}
	owner, err := models.GetPostOwner(ctx, s.DB, postID)
	if errors.Is(err, models.ErrNotFound) {
		return apperr.New(apperr.NotFound, "post not found")
	}
	if err != nil {
		return storeFailure("load post owner", err)
	}
	if owner != viewer.UserID() {
		return apperr.New(apperr.Forbidden, "not authorized to delete this post")
	}
	replies, err := models.CountReplies(ctx, s.DB, postID)
	if err != nil {
		return storeFailure("count replies", err)
	}
	err = models.DeletePost(ctx, s.DB, postID)
	if errors.Is(err, models.ErrNotFound) {
		return apperr.New(apperr.NotFound, "post not found")
	}
	if err != nil {
		return storeFailure("delete post", err)
	}
	s.log.Info("post deleted", zap.Int64("post_id", postID), zap.Int64("user_id", viewer.UserID()),
		zap.Int("direct_replies_removed", replies))
	return nil
}

type LikeState struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

func (s *Service) ToggleLike(ctx context.Context, viewer models.Viewer, postID int64) (*LikeState, error) {
	if err := requireViewer(viewer); err != nil {
		return nil, err
	}
	liked, err := models.ToggleLike(ctx, s.DB, postID, viewer.UserID())
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "post not found")
	}
	if err != nil {
		return nil, storeFailure("toggle like", err)
	}
	recordToggle("like", liked)
	n, err := models.CountLikes(ctx, s.DB, postID)
	if err != nil {
		return nil, storeFailure("count likes", err)
	}
	return &LikeState{Liked: liked, Likes: n}, nil
}

func (s *Service) ToggleBookmark(ctx context.Context, viewer models.Viewer, postID int64) (bool, error) {
	if err := requireViewer(viewer); err != nil {
		return false, err
	}
	saved, err := models.ToggleBookmark(ctx, s.DB, postID, viewer.UserID())
	if errors.Is(err, models.ErrNotFound) {
		return false, apperr.New(apperr.NotFound, "post not found")
	}
	if err != nil {
		return false, storeFailure("toggle bookmark", err)
	}
	recordToggle("bookmark", saved)
	return saved, nil
}

func (s *Service) ToggleFollow(ctx context.Context, viewer models.Viewer, userID int64) (bool, error) {
	if err := requireViewer(viewer); err != nil {
		return false, err
	}
	if viewer.UserID() == userID {
		return false, apperr.New(apperr.InvalidOperation, "cannot follow yourself")
	}
	following, err := models.ToggleFollow(ctx, s.DB, viewer.UserID(), userID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return false, apperr.New(apperr.NotFound, "user not found")
	case errors.Is(err, models.ErrSelfFollow):
		return false, apperr.New(apperr.InvalidOperation, "cannot follow yourself")
	case err != nil:
		return false, storeFailure("toggle follow", err)
	}
	recordToggle("follow", following)
	return following, nil
}
