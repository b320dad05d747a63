package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamnithishraja/klinic-sub000/api/controllers"
	"github.com/iamnithishraja/klinic-sub000/internal/orders"
	pkgAuth "github.com/iamnithishraja/klinic-sub000/pkg/auth"
	"github.com/iamnithishraja/klinic-sub000/pkg/auth/session"
	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/metrics"
	"github.com/iamnithishraja/klinic-sub000/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessions struct{}

func (stubSessions) HasSession(context.Context, string) (bool, error) {
	return true, nil
}

type stubOrders struct {
	orders.Service
}

func (stubOrders) ListPatientOrders(context.Context, uuid.UUID, orders.PatientOrderFilters, pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{Items: []orders.OrderDTO{}}, nil
}

func (stubOrders) ListDeliveryOrders(context.Context, uuid.UUID, orders.DeliveryOrderFilters, pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{Items: []orders.OrderDTO{}}, nil
}

func (stubOrders) ListAdminOrders(context.Context, orders.AdminOrderFilters, pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{Items: []orders.OrderDTO{}}, nil
}

func testConfig(env string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: env, CORSOrigins: "http://localhost:3000"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "klinic", ExpirationMinutes: 15},
	}
}

func newTestRouter(t *testing.T, env string) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig(env)
	reg := prometheus.NewRegistry()
	metrics.NewOrderMetrics(reg).IncCreated(string(enums.OrderKindLaboratory))

	return NewRouter(Deps{
		Config:   cfg,
		Logger:   logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard}),
		Sessions: stubSessions{},
		Pingers:  map[string]controllers.Pinger{"postgres": stubPinger{}},
		Metrics:  reg,
		Orders:   stubOrders{},
	}), cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(router http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t, "dev")

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health/live", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health/ready", "").Code)

	rec := serve(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "klinic_orders_created_total")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t, "dev")

	rec := serve(router, http.MethodGet, "/api/v1/orders/mine", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"success":false`))
}

func TestRoleGates(t *testing.T) {
	router, cfg := newTestRouter(t, "dev")

	tests := []struct {
		name   string
		method string
		path   string
		role   enums.UserRole
		want   int
	}{
		{"patient lists own orders", http.MethodGet, "/api/v1/orders/mine", enums.UserRolePatient, http.StatusOK},
		{"lab cannot use patient listing", http.MethodGet, "/api/v1/orders/mine", enums.UserRoleLaboratory, http.StatusForbidden},
		{"patient cannot list lab orders", http.MethodGet, "/api/v1/orders/lab", enums.UserRolePatient, http.StatusForbidden},
		{"partner lists deliveries", http.MethodGet, "/api/v1/delivery/orders", enums.UserRoleDeliveryPartner, http.StatusOK},
		{"patient cannot list deliveries", http.MethodGet, "/api/v1/delivery/orders", enums.UserRolePatient, http.StatusForbidden},
		{"admin lists all orders", http.MethodGet, "/api/v1/admin/orders", enums.UserRoleAdmin, http.StatusOK},
		{"lab cannot use admin listing", http.MethodGet, "/api/v1/admin/orders", enums.UserRoleLaboratory, http.StatusForbidden},
		{"patient cannot claim", http.MethodPost, "/api/v1/orders/" + uuid.NewString() + "/claim", enums.UserRolePatient, http.StatusForbidden},
		{"doctor cannot pay", http.MethodPost, "/api/v1/payments/orders", enums.UserRoleDoctor, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, tt.method, tt.path, bearer(t, cfg, tt.role))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestAdminRegisterHiddenInProd(t *testing.T) {
	router, _ := newTestRouter(t, config.AppEnvProd)
	rec := serve(router, http.MethodPost, "/api/v1/admin/auth/register", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	router, _ = newTestRouter(t, "dev")
	rec = serve(router, http.MethodPost, "/api/v1/admin/auth/register", "")
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
}

func TestCatalogIsPublic(t *testing.T) {
	router, _ := newTestRouter(t, "dev")
	// no product service wired, but the route must not demand a token
	rec := serve(router, http.MethodGet, "/api/v1/products", "")
	assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
}
