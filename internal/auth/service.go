package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/internal/users"
	pkgAuth "github.com/iamnithishraja/klinic-sub000/pkg/auth"
	"github.com/iamnithishraja/klinic-sub000/pkg/auth/session"
	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/security"
)

func badCredentials() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
}

// Service issues and rotates access/refresh token pairs.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Refresh(ctx context.Context, accessToken string, req RefreshRequest) (*TokenResponse, error)
	Logout(ctx context.Context, accessID string) error
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
}

type service struct {
	users    userRepository
	sessions sessionManager
	jwt      config.JWTConfig
	now      func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.UserRepo == nil:
		return nil, errors.New("user repository is required")
	case p.SessionManager == nil:
		return nil, errors.New("session manager is required")
	}
	return &service{
		users:    p.UserRepo,
		sessions: p.SessionManager,
		jwt:      p.JWTConfig,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Login checks the password, stamps last_login_at and opens a new session.
func (s *service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, badCredentials()
	}
	user, err := s.activeUser(s.users.FindByEmail(ctx, email))
	if err != nil {
		return nil, err
	}
	ok, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, badCredentials()
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now

	accessID := session.NewAccessID()
	refresh, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}
	return s.pair(user, accessID, refresh, now)
}

// Refresh trades a refresh token for a new pair. The presented access token
// may be expired, but its signature must hold; its jti names the session.
func (s *service) Refresh(ctx context.Context, accessToken string, req RefreshRequest) (*TokenResponse, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwt, strings.TrimSpace(accessToken))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}
	user, err := s.activeUser(s.users.FindByID(ctx, claims.UserID))
	if err != nil {
		return nil, err
	}

	accessID, refresh, err := s.sessions.Rotate(ctx, claims.ID, req.RefreshToken)
	switch {
	case errors.Is(err, session.ErrInvalidRefreshToken):
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate refresh token")
	}
	return s.pair(user, accessID, refresh, s.now())
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session")
	}
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

// activeUser folds a repository lookup into the single credentials error
// callers see for unknown, disabled or malformed accounts.
func (s *service) activeUser(user *models.User, err error) (*models.User, error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, badCredentials()
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	case !user.IsActive || !user.Role.IsValid():
		return nil, badCredentials()
	}
	return user, nil
}

func (s *service) pair(user *models.User, accessID, refresh string, now time.Time) (*TokenResponse, error) {
	access, err := pkgAuth.MintAccessToken(s.jwt, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &TokenResponse{AccessToken: access, RefreshToken: refresh, User: users.FromModel(user)}, nil
}
