package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamnithishraja/klinic-sub000/api/middleware"
	"github.com/iamnithishraja/klinic-sub000/internal/auth"
	"github.com/iamnithishraja/klinic-sub000/internal/users"
	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
)

type stubAuthService struct {
	login     func(context.Context, auth.LoginRequest) (*auth.TokenResponse, error)
	refreshed string
	loggedOut string
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.TokenResponse, error) {
	if s.login != nil {
		return s.login(ctx, req)
	}
	return &auth.TokenResponse{AccessToken: "access", RefreshToken: "refresh", User: &users.UserDTO{Email: req.Email}}, nil
}

func (s *stubAuthService) Refresh(_ context.Context, accessToken string, req auth.RefreshRequest) (*auth.TokenResponse, error) {
	s.refreshed = accessToken + "|" + req.RefreshToken
	return &auth.TokenResponse{AccessToken: "next", RefreshToken: "rotated"}, nil
}

func (s *stubAuthService) Logout(_ context.Context, accessID string) error {
	if accessID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session")
	}
	s.loggedOut = accessID
	return nil
}

type stubRegister struct {
	got auth.RegisterRequest
	err error
}

func (s *stubRegister) Register(_ context.Context, req auth.RegisterRequest) (*users.UserDTO, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &users.UserDTO{ID: uuid.New(), Email: req.Email, Role: req.Role}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestLogin(t *testing.T) {
	handler := Login(&stubAuthService{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"lab@klinic.test","password":"pw"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.True(t, env.Success)

	var tokens auth.TokenResponse
	require.NoError(t, json.Unmarshal(env.Data, &tokens))
	assert.Equal(t, "access", tokens.AccessToken)
}

func TestLoginValidation(t *testing.T) {
	handler := Login(&stubAuthService{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"not-an-email","password":""}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), decode(t, rec).Error.Code)
}

func TestRegisterSignsIn(t *testing.T) {
	reg := &stubRegister{}
	handler := Register(reg, &stubAuthService{}, nil)
	body := `{"name":"Asha","email":"asha@klinic.test","password":"secret","role":"patient"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, enums.UserRolePatient, reg.got.Role)
	assert.Equal(t, "account created", decode(t, rec).Message)
}

func TestRegisterPropagatesConflict(t *testing.T) {
	reg := &stubRegister{err: pkgerrors.New(pkgerrors.CodeConflict, "email already registered")}
	handler := Register(reg, &stubAuthService{}, nil)
	body := `{"name":"Asha","email":"asha@klinic.test","password":"secret","role":"patient"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminRegisterDisabledInProd(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: config.AppEnvProd}}
	handler := AdminRegister(nil, &stubAuthService{}, cfg, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/auth/register", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRefreshReadsBearer(t *testing.T) {
	svc := &stubAuthService{}
	handler := Refresh(svc, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"refresh_token":"r1"}`))
	req.Header.Set("Authorization", "Bearer expired-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "expired-token|r1", svc.refreshed)
}

func TestRefreshRequiresBearer(t *testing.T) {
	handler := Refresh(&stubAuthService{}, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"refresh_token":"r1"}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc := &stubAuthService{}
	handler := Logout(svc, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req = req.WithContext(middleware.WithAccessID(req.Context(), "jti-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jti-1", svc.loggedOut)
}

func TestLoginWithoutServiceIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	Login(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"abc":          "abc",
		"":             "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", header)
		assert.Equal(t, want, bearerToken(req), header)
	}
}
