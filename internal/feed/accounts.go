package feed

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"socialfeed/internal/apperr"
	"socialfeed/internal/models"
)

var errBadCredentials = apperr.New(apperr.Unauthenticated, "invalid username or password")

func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := s.check(in); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, storeFailure("hash password", err)
	}
	id, err := models.CreateUser(ctx, s.DB, in.Username, in.DisplayName, string(hash))
	if errors.Is(err, models.ErrDuplicateUsername) {
		return nil, apperr.New(apperr.Conflict, "username already exists")
	}
	if err != nil {
		return nil, storeFailure("create user", err)
	}
	s.log.Info("user signed up", zap.Int64("user_id", id), zap.String("username", in.Username))
	return s.User(ctx, id)
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords fail the same way.
func (s *Service) Authenticate(ctx context.Context, in LoginInput) (*models.User, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	user, err := models.GetUserByUsername(ctx, s.DB, in.Username)
	if errors.Is(err, models.ErrNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, storeFailure("load user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		return nil, errBadCredentials
	}
	return user, nil
}

func (s *Service) User(ctx context.Context, userID int64) (*models.User, error) {
	user, err := models.GetUserByID(ctx, s.DB, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return nil, storeFailure("load user", err)
	}
	return user, nil
}

// UpdateProfile changes the viewer's display name and/or bio.
func (s *Service) UpdateProfile(ctx context.Context, viewer models.Viewer, in UpdateProfileInput) (*models.User, error) {
	if err := requireViewer(viewer); err != nil {
		return nil, err
	}
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Bio = strings.TrimSpace(in.Bio)
	if err := s.check(in); err != nil {
		return nil, err
	}
	err := models.UpdateUserProfile(ctx, s.DB, viewer.UserID(), nonEmpty(in.DisplayName), nonEmpty(in.Bio))
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return nil, storeFailure("update profile", err)
	}
	return s.User(ctx, viewer.UserID())
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
