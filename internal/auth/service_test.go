package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgAuth "github.com/iamnithishraja/klinic-sub000/pkg/auth"
	"github.com/iamnithishraja/klinic-sub000/pkg/auth/session"
	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/security"
)

var testPasswordCfg = config.PasswordConfig{
	ArgonMemoryKB:    64,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

var testJWTCfg = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "klinic",
	ExpirationMinutes: 30,
}

func TestServiceLoginMintsRoleClaim(t *testing.T) {
	user := newUser(t, enums.UserRoleLaboratory, "lab-secret1")
	svc, sessions := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "  LABORATORY@example.com ", Password: "lab-secret1"})
	require.NoError(t, err)

	claims, err := pkgAuth.ParseAccessToken(testJWTCfg, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleLaboratory, claims.Role)
	assert.Equal(t, user.ID, claims.UserID)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, resp.RefreshToken, sessions.tokens[claims.ID])
	require.NotNil(t, resp.User.LastLoginAt)
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	user := newUser(t, enums.UserRolePatient, "patient-pw1")
	svc, _ := buildTestService(t, user)
	ctx := context.Background()

	_, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: "wrong-pw1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "patient-pw1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	user.IsActive = false
	_, err = svc.Login(ctx, LoginRequest{Email: user.Email, Password: "patient-pw1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestServiceRefreshRotatesSession(t *testing.T) {
	user := newUser(t, enums.UserRoleDeliveryPartner, "rider-pw1")
	svc, sessions := buildTestService(t, user)
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: "rider-pw1"})
	require.NoError(t, err)
	oldClaims, err := pkgAuth.ParseAccessToken(testJWTCfg, login.AccessToken)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, login.AccessToken, RefreshRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	newClaims, err := pkgAuth.ParseAccessToken(testJWTCfg, refreshed.AccessToken)
	require.NoError(t, err)
	assert.NotEqual(t, oldClaims.ID, newClaims.ID)
	assert.NotContains(t, sessions.tokens, oldClaims.ID)
	assert.Equal(t, enums.UserRoleDeliveryPartner, newClaims.Role)

	_, err = svc.Refresh(ctx, login.AccessToken, RefreshRequest{RefreshToken: login.RefreshToken})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "old refresh token is single use")

	_, err = svc.Refresh(ctx, "not-a-jwt", RefreshRequest{RefreshToken: refreshed.RefreshToken})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestServiceLogoutRevokes(t *testing.T) {
	user := newUser(t, enums.UserRolePatient, "patient-pw1")
	svc, sessions := buildTestService(t, user)
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: "patient-pw1"})
	require.NoError(t, err)
	claims, err := pkgAuth.ParseAccessToken(testJWTCfg, login.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims.ID))
	assert.Empty(t, sessions.tokens)
	assert.True(t, pkgerrors.IsCode(svc.Logout(ctx, ""), pkgerrors.CodeUnauthorized))
}

func newUser(t *testing.T, role enums.UserRole, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, testPasswordCfg)
	require.NoError(t, err)
	return &models.User{
		ID:           uuid.New(),
		Name:         "Test User",
		Email:        fmt.Sprintf("%s@example.com", role),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
}

func buildTestService(t *testing.T, user *models.User) (Service, *fakeSessions) {
	t.Helper()
	sessions := &fakeSessions{tokens: map[string]string{}}
	svc, err := NewService(ServiceParams{
		UserRepo:       &fakeUserRepo{user: user},
		SessionManager: sessions,
		JWTConfig:      testJWTCfg,
	})
	require.NoError(t, err)
	return svc, sessions
}

type fakeUserRepo struct {
	user *models.User
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if f.user != nil && f.user.Email == email {
		return f.user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if f.user != nil && f.user.ID == id {
		return f.user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) UpdateLastLogin(context.Context, uuid.UUID, time.Time) error {
	return nil
}

type fakeSessions struct {
	tokens map[string]string
	seq    int
}

func (f *fakeSessions) Generate(_ context.Context, accessID string) (string, error) {
	f.seq++
	token := fmt.Sprintf("refresh-%d", f.seq)
	f.tokens[accessID] = token
	return token, nil
}

func (f *fakeSessions) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := f.tokens[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(f.tokens, oldAccessID)
	newID := session.NewAccessID()
	token, err := f.Generate(ctx, newID)
	return newID, token, err
}

func (f *fakeSessions) Revoke(_ context.Context, accessID string) error {
	delete(f.tokens, accessID)
	return nil
}
