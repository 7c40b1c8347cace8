package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"socialfeed/internal/apperr"
	"socialfeed/internal/models"
)

const viewerKey = "viewer"

// identify resolves the session cookie to a viewer for every API request.
// Requests without a live session continue as anonymous.
func (s *Server) identify(c *gin.Context) {
	c.Set(viewerKey, s.currentViewer(c))
	c.Next()
}

func (s *Server) requireAuth(c *gin.Context) {
	if !viewerOf(c).Authenticated() {
		s.fail(c, apperr.New(apperr.Unauthenticated, "not authenticated"))
		return
	}
	c.Next()
}

func viewerOf(c *gin.Context) models.Viewer {
	if v, ok := c.Get(viewerKey); ok {
		if viewer, ok := v.(models.Viewer); ok {
			return viewer
		}
	}
	return models.Anonymous
}

func (s *Server) currentViewer(c *gin.Context) models.Viewer {
	sid, err := c.Cookie(s.CookieName)
	if err != nil || sid == "" {
		return models.Anonymous
	}
	sess, err := models.GetSession(c.Request.Context(), s.DB, sid)
	if err != nil || !sess.Active(time.Now()) {
		return models.Anonymous
	}
	return models.Viewer(sess.UserID)
}

// startSession issues a fresh session for userID and sets its cookie.
func (s *Server) startSession(c *gin.Context, userID int64) error {
	sid := uuid.NewString()
	expires := time.Now().Add(s.SessionTTL)
	if err := models.CreateSession(c.Request.Context(), s.DB, userID, sid, expires); err != nil {
		return apperr.Wrap(apperr.Internal, "could not create session", err)
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     s.CookieName,
		Value:    sid,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Server) endSession(c *gin.Context) {
	if sid, err := c.Cookie(s.CookieName); err == nil && sid != "" {
		if err := models.RevokeSession(c.Request.Context(), s.DB, sid); err != nil {
			s.log.Warn("revoke session failed", zap.Error(err))
		}
	}
	http.SetCookie(c.Writer, &http.Cookie{Name: s.CookieName, Path: "/", MaxAge: -1, HttpOnly: true})
}
