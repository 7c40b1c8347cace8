package server

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"socialfeed/internal/config"
	"socialfeed/internal/feed"
)

type Server struct {
	DB   *sql.DB
	Feed *feed.Service

	log    *zap.Logger
	engine *gin.Engine

	CookieName         string
	SessionTTL         time.Duration
	SearchDefaultLimit int
	SearchMaxLimit     int
}

func New(db *sql.DB, cfg config.Config, log *zap.Logger) *Server {
	s := &Server{
		DB:                 db,
		Feed:               feed.NewService(db, log),
		log:                log,
		CookieName:         cfg.CookieName,
		SessionTTL:         cfg.SessionTTL,
		SearchDefaultLimit: cfg.SearchDefaultLimit,
		SearchMaxLimit:     cfg.SearchMaxLimit,
	}
	s.engine = s.routes(cfg.AllowedOrigins)
	return s
}

func (s *Server) routes(origins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), instrument())
	if len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", s.identify)

	auth := api.Group("/auth")
	auth.POST("/signup", s.handleSignup)
	auth.POST("/login", s.handleLogin)
	auth.POST("/logout", s.handleLogout)
	auth.GET("/session", s.handleSession)

	api.GET("/feed", s.handleFeed)
	api.GET("/feed/first-level", s.handleFirstLevelFeed)
	api.GET("/search", s.handleSearch)

	api.POST("/posts", s.requireAuth, s.handleCreatePost)
	api.DELETE("/posts/:id", s.requireAuth, s.handleDeletePost)
	api.GET("/posts/:id/thread", s.handleThread)
	api.GET("/posts/:id/replies", s.handleReplies)
	api.POST("/posts/:id/like", s.requireAuth, s.handleToggleLike)
	api.POST("/posts/:id/bookmark", s.requireAuth, s.handleToggleBookmark)
	api.GET("/bookmarks", s.requireAuth, s.handleBookmarks)

	api.GET("/users/:id", s.handleProfile)
	api.PUT("/users/me", s.requireAuth, s.handleUpdateProfile)
	api.POST("/users/:id/follow", s.requireAuth, s.handleToggleFollow)
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
