package orders

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamnithishraja/klinic-sub000/api/middleware"
	"github.com/iamnithishraja/klinic-sub000/internal/tracking"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
)

func trackServer(t *testing.T, svc *stubOrdersService, hub *tracking.Hub) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithUserID(req.Context(), uuid.NewString())
			ctx = middleware.WithRole(ctx, enums.UserRolePatient)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/orders/{orderId}/track", Track(svc, hub, []string{"*"}, testLogger()))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestTrackSendsSnapshotThenUpdates(t *testing.T) {
	hub := tracking.NewHub(testLogger())
	srv := trackServer(t, &stubOrdersService{}, hub)
	orderID := uuid.New()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/orders/" + orderID.String() + "/track"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var snapshot tracking.StatusMessage
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, "snapshot", snapshot.Type)
	assert.Equal(t, orderID, snapshot.OrderID)
	assert.Equal(t, enums.OrderStatusConfirmed, snapshot.Status)
	assert.Equal(t, 1, hub.Subscribers(orderID))

	hub.Broadcast(tracking.StatusMessage{Type: "status", OrderID: orderID, Status: enums.OrderStatusOutForDelivery})

	var update tracking.StatusMessage
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "status", update.Type)
	assert.Equal(t, enums.OrderStatusOutForDelivery, update.Status)
}

func TestTrackRejectsInvisibleOrder(t *testing.T) {
	svc := &stubOrdersService{getErr: pkgerrors.New(pkgerrors.CodeForbidden, "order not visible")}
	srv := trackServer(t, svc, tracking.NewHub(testLogger()))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/orders/" + uuid.NewString() + "/track"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.klinic.in"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, check(req), "non-browser clients send no origin")

	req.Header.Set("Origin", "https://APP.klinic.in")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
}
