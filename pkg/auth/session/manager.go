package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	redisclient "github.com/iamnithishraja/klinic-sub000/pkg/redis"
)

const refreshTokenBytes = 32

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errMissingAccessID     = errors.New("access id is required")
)

// Store is the slice of the Redis client the manager needs.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is what the auth middleware consults on every request.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Manager maps each access token id (the JWT jti) to exactly one refresh
// token. Logging out or rotating removes the mapping, which also invalidates
// the access token at the middleware.
type Manager struct {
	store Store
	ttl   time.Duration
}

// NewManager validates the token lifetimes and binds the manager to Redis.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	refreshTTL := cfg.RefreshTokenTTL()
	accessTTL := time.Duration(cfg.ExpirationMinutes) * time.Minute
	switch {
	case refreshTTL <= 0:
		return nil, errors.New("refresh token ttl must be positive")
	case refreshTTL <= accessTTL:
		return nil, fmt.Errorf("refresh token ttl %s must be longer than access token ttl %s", refreshTTL, accessTTL)
	}
	return &Manager{store: client, ttl: refreshTTL}, nil
}

// NewAccessID returns a fresh jti.
func NewAccessID() string {
	return uuid.NewString()
}

// Generate issues a refresh token bound to accessID.
func (m *Manager) Generate(ctx context.Context, accessID string) (string, error) {
	if blank(accessID) {
		return "", errMissingAccessID
	}
	return m.issue(ctx, accessID)
}

// Rotate trades a valid (accessID, refresh token) pair for a new pair. The old
// mapping is removed only after the new one is stored.
func (m *Manager) Rotate(ctx context.Context, accessID, refreshToken string) (string, string, error) {
	if blank(accessID) || blank(refreshToken) {
		return "", "", ErrInvalidRefreshToken
	}
	current, err := m.lookup(ctx, accessID)
	if err != nil {
		return "", "", err
	}
	if current == "" || subtle.ConstantTimeCompare([]byte(current), []byte(refreshToken)) != 1 {
		return "", "", ErrInvalidRefreshToken
	}

	nextID := NewAccessID()
	nextToken, err := m.issue(ctx, nextID)
	if err != nil {
		return "", "", err
	}
	if err := m.store.Del(ctx, m.store.AccessSessionKey(accessID)); err != nil {
		return "", "", err
	}
	return nextID, nextToken, nil
}

// Revoke drops the session for accessID. Missing sessions are not an error.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if blank(accessID) {
		return errMissingAccessID
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

// HasSession reports whether accessID still maps to a refresh token.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if blank(accessID) {
		return false, errMissingAccessID
	}
	current, err := m.lookup(ctx, accessID)
	if err != nil {
		return false, err
	}
	return current != "", nil
}

func (m *Manager) issue(ctx context.Context, accessID string) (string, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	if err := m.store.Set(ctx, m.store.AccessSessionKey(accessID), token, m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// lookup returns "" with a nil error when no session exists.
func (m *Manager) lookup(ctx context.Context, accessID string) (string, error) {
	v, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	if errors.Is(err, redislib.Nil) {
		return "", nil
	}
	return v, err
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
