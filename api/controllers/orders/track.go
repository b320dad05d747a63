package orders

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/iamnithishraja/klinic-sub000/api/responses"
	"github.com/iamnithishraja/klinic-sub000/api/validators"
	internalorders "github.com/iamnithishraja/klinic-sub000/internal/orders"
	"github.com/iamnithishraja/klinic-sub000/internal/tracking"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

const trackPongWait = 60 * time.Second

type trackingHub interface {
	Subscribe(orderID uuid.UUID, client *tracking.Client) func()
}

// Track upgrades to a websocket streaming status changes of one order. The
// caller must be able to view the order; the first frame is a snapshot.
func Track(svc internalorders.Service, hub trackingHub, origins []string, logg *logger.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{CheckOrigin: originChecker(origins)}

	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || hub == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOrder(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// the upgrader has already written the handshake error
			return
		}
		defer conn.Close()

		ctx := logg.WithOrderID(r.Context(), orderID.String())
		client := tracking.NewClient(conn)
		unsubscribe := hub.Subscribe(orderID, client)
		defer unsubscribe()

		if err := client.Send(snapshotFor(order)); err != nil {
			logg.Warn(ctx, "tracking snapshot write failed")
			return
		}
		logg.Debug(ctx, "order tracker connected")

		_ = conn.SetReadDeadline(time.Now().Add(trackPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(trackPongWait))
		})

		clientClosed := make(chan struct{})
		go func() {
			defer close(clientClosed)
			for {
				if _, _, readErr := conn.ReadMessage(); readErr != nil {
					return
				}
				_ = conn.SetReadDeadline(time.Now().Add(trackPongWait))
			}
		}()

		select {
		case <-clientClosed:
		case <-r.Context().Done():
		}
		logg.Debug(ctx, "order tracker disconnected")
	}
}

func snapshotFor(order *internalorders.OrderDTO) tracking.StatusMessage {
	return tracking.StatusMessage{
		OrderID:           order.ID,
		Status:            order.Status,
		IsPaid:            order.IsPaid,
		LaboratoryUserID:  order.LaboratoryUserID,
		DeliveryPartnerID: order.DeliveryPartnerID,
		RejectionReason:   order.RejectionReason,
		UpdatedAt:         order.UpdatedAt.UTC(),
	}.Snapshot()
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			allowed[strings.ToLower(o)] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}
}
