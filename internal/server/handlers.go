package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"socialfeed/internal/apperr"
	"socialfeed/internal/feed"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation, apperr.InvalidOperation:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.Unauthenticated:
		return http.StatusUnauthorized
	case apperr.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(statusFor(kind), gin.H{"message": apperr.Message(err)})
}

func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.fail(c, apperr.Wrap(apperr.Validation, "invalid request body", err))
		return false
	}
	return true
}

func (s *Server) idParam(c *gin.Context, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		s.fail(c, apperr.New(apperr.Validation, what+" ID required"))
		return 0, false
	}
	return id, true
}

// auth

func (s *Server) handleSignup(c *gin.Context) {
	var in feed.SignupInput
	if !s.bindJSON(c, &in) {
		return
	}
	user, err := s.Feed.Signup(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.startSession(c, user.ID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully", "user": user})
}

func (s *Server) handleLogin(c *gin.Context) {
	var in feed.LoginInput
	if !s.bindJSON(c, &in) {
		return
	}
	user, err := s.Feed.Authenticate(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.startSession(c, user.ID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "user": user})
}

func (s *Server) handleLogout(c *gin.Context) {
	s.endSession(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (s *Server) handleSession(c *gin.Context) {
	viewer := viewerOf(c)
	if !viewer.Authenticated() {
		c.JSON(http.StatusOK, gin.H{"logged_in": false})
		return
	}
	user, err := s.Feed.User(c.Request.Context(), viewer.UserID())
	if apperr.KindOf(err) == apperr.NotFound {
		c.JSON(http.StatusOK, gin.H{"logged_in": false})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged_in": true, "user": user})
}

// views

func (s *Server) handleFeed(c *gin.Context) {
	posts, err := s.Feed.Feed(c.Request.Context(), viewerOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (s *Server) handleFirstLevelFeed(c *gin.Context) {
	posts, err := s.Feed.FirstLevelFeed(c.Request.Context(), viewerOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (s *Server) handleThread(c *gin.Context) {
	id, ok := s.idParam(c, "Post")
	if !ok {
		return
	}
	thread, err := s.Feed.Thread(c.Request.Context(), id, viewerOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (s *Server) handleReplies(c *gin.Context) {
	id, ok := s.idParam(c, "Post")
	if !ok {
		return
	}
	replies, err := s.Feed.Replies(c.Request.Context(), id, viewerOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, replies)
}

func (s *Server) handleProfile(c *gin.Context) {
	id, ok := s.idParam(c, "User")
	if !ok {
		return
	}
	profile, err := s.Feed.Profile(c.Request.Context(), id, viewerOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) handleBookmarks(c *gin.Context) {
	posts, err := s.Feed.Bookmarks(c.Request.Context(), viewerOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// handleSearch bounds the limit: absent means the default, and nothing larger
// than the configured maximum is passed on.
func (s *Server) handleSearch(c *gin.Context) {
	var in feed.SearchInput
	if err := c.ShouldBindQuery(&in); err != nil {
		s.fail(c, apperr.Wrap(apperr.Validation, "invalid search parameters", err))
		return
	}
	if in.Limit <= 0 {
		in.Limit = s.SearchDefaultLimit
	}
	if in.Limit > s.SearchMaxLimit {
		in.Limit = s.SearchMaxLimit
	}
	if in.Offset < 0 {
		in.Offset = 0
	}
	posts, err := s.Feed.Search(c.Request.Context(), in, viewerOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// mutations

func (s *Server) handleCreatePost(c *gin.Context) {
	var in feed.CreatePostInput
	if !s.bindJSON(c, &in) {
		return
	}
	post, err := s.Feed.CreatePost(c.Request.Context(), viewerOf(c), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Post created successfully", "post_id": post.ID, "post": post})
}

func (s *Server) handleDeletePost(c *gin.Context) {
	id, ok := s.idParam(c, "Post")
	if !ok {
		return
	}
	if err := s.Feed.DeletePost(c.Request.Context(), viewerOf(c), id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

func (s *Server) handleToggleLike(c *gin.Context) {
	id, ok := s.idParam(c, "Post")
	if !ok {
		return
	}
	state, err := s.Feed.ToggleLike(c.Request.Context(), viewerOf(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	msg := "Post unliked"
	if state.Liked {
		msg = "Post liked"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "liked": state.Liked, "likes": state.Likes})
}

func (s *Server) handleToggleBookmark(c *gin.Context) {
	id, ok := s.idParam(c, "Post")
	if !ok {
		return
	}
	saved, err := s.Feed.ToggleBookmark(c.Request.Context(), viewerOf(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	msg := "Bookmark removed"
	if saved {
		msg = "Post bookmarked"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "bookmarked": saved})
}

func (s *Server) handleToggleFollow(c *gin.Context) {
	id, ok := s.idParam(c, "User")
	if !ok {
		return
	}
	following, err := s.Feed.ToggleFollow(c.Request.Context(), viewerOf(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	msg := "Unfollowed"
	if following {
		msg = "Followed"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "is_following": following})
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	var in feed.UpdateProfileInput
	if !s.bindJSON(c, &in) {
		return
	}
	user, err := s.Feed.UpdateProfile(c.Request.Context(), viewerOf(c), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": user})
}
