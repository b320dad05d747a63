package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamnithishraja/klinic-sub000/internal/analytics/router"
	"github.com/iamnithishraja/klinic-sub000/internal/analytics/types"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox"
)

type recordingHandler struct {
	seen []types.Envelope
	err  error
}

func (h *recordingHandler) Handle(_ context.Context, env types.Envelope) error {
	h.seen = append(h.seen, env)
	return h.err
}

type markerStore struct {
	processed bool
	checkErr  error
	checked   []uuid.UUID
	deleted   []uuid.UUID
}

func (m *markerStore) CheckAndMarkProcessed(_ context.Context, _ string, eventID uuid.UUID) (bool, error) {
	m.checked = append(m.checked, eventID)
	return m.processed, m.checkErr
}

func (m *markerStore) Delete(_ context.Context, _ string, eventID uuid.UUID) error {
	m.deleted = append(m.deleted, eventID)
	return nil
}

type replayReceiver struct {
	messages  []*gcppubsub.Message
	delivered int
}

func (r *replayReceiver) Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error {
	for _, msg := range r.messages {
		f(ctx, msg)
		r.delivered++
	}
	return nil
}

func message(env outbox.PayloadEnvelope, attrs map[string]string) *gcppubsub.Message {
	data, _ := json.Marshal(env)
	return &gcppubsub.Message{ID: "msg-1", Data: data, Attributes: attrs}
}

func orderAttrs(eventType string) map[string]string {
	return map[string]string{"event_type": eventType, "aggregate_type": "order", "aggregate_id": "ord-1"}
}

func orderCreated() *gcppubsub.Message {
	return message(outbox.PayloadEnvelope{
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"order_id":"ord-1"}`),
	}, orderAttrs("order_created"))
}

func newWorker(h Handler, m *markerStore) *Service {
	return &Service{handler: h, manager: m, logg: logger.New(logger.Options{ServiceName: "analytics-test"})}
}

func TestDecodeEnvelope(t *testing.T) {
	occurred := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.NewString()

	env, err := decodeEnvelope(message(outbox.PayloadEnvelope{
		EventID:    id,
		OccurredAt: occurred,
		Data:       json.RawMessage(`{"order_id":"ord-1"}`),
	}, orderAttrs("order_created")))
	require.NoError(t, err)
	assert.Equal(t, enums.EventOrderCreated, env.EventType)
	assert.Equal(t, enums.AggregateOrder, env.AggregateType)
	assert.Equal(t, "ord-1", env.AggregateID)
	assert.Equal(t, id, env.EventID)
	assert.Equal(t, occurred, env.OccurredAt)
	assert.JSONEq(t, `{"order_id":"ord-1"}`, string(env.Payload))
}

func TestDecodeEnvelopeAttributeFallbacks(t *testing.T) {
	id := uuid.NewString()
	created := time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC)
	attrs := orderAttrs("order_paid")
	attrs["event_id"] = id
	attrs["created_at"] = created.Format(time.RFC3339Nano)

	env, err := decodeEnvelope(message(outbox.PayloadEnvelope{Data: json.RawMessage(`{}`)}, attrs))
	require.NoError(t, err)
	assert.Equal(t, id, env.EventID)
	assert.True(t, env.OccurredAt.Equal(created))
}

func TestDecodeEnvelopeRejects(t *testing.T) {
	cases := map[string]*gcppubsub.Message{
		"unknown event type": message(outbox.PayloadEnvelope{EventID: uuid.NewString()}, orderAttrs("ad_click")),
		"no event id":        message(outbox.PayloadEnvelope{}, orderAttrs("order_created")),
		"not json":           {Data: []byte("invalid json")},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeEnvelope(msg)
			assert.Error(t, err)
		})
	}
}

func TestProcessDisposition(t *testing.T) {
	tests := []struct {
		name        string
		msg         *gcppubsub.Message
		handlerErr  error
		marker      markerStore
		want        disposition
		wantHandled int
		wantDeleted int
	}{
		{name: "handled", msg: orderCreated(), want: ack, wantHandled: 1},
		{name: "already processed", msg: orderCreated(), marker: markerStore{processed: true}, want: ack},
		{name: "handler failure retries", msg: orderCreated(), handlerErr: errors.New("boom"), want: nack, wantHandled: 1, wantDeleted: 1},
		{name: "unsupported event drops", msg: orderCreated(), handlerErr: router.ErrUnsupportedEventType, want: ack, wantHandled: 1},
		{name: "marker store down", msg: orderCreated(), marker: markerStore{checkErr: errors.New("redis down")}, want: nack},
		{name: "poison message", msg: &gcppubsub.Message{Data: []byte("{")}, want: ack},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandler{err: tt.handlerErr}
			m := tt.marker
			svc := newWorker(h, &m)

			assert.Equal(t, tt.want, svc.process(context.Background(), tt.msg))
			assert.Len(t, h.seen, tt.wantHandled)
			assert.Len(t, m.deleted, tt.wantDeleted)
		})
	}
}

func TestRunDeliversEachMessage(t *testing.T) {
	h := &recordingHandler{}
	svc := newWorker(h, &markerStore{})
	recv := &replayReceiver{messages: []*gcppubsub.Message{orderCreated(), orderCreated()}}
	svc.subscription = recv

	require.NoError(t, svc.Run(context.Background()))
	assert.Equal(t, 2, recv.delivered)
	assert.Len(t, h.seen, 2)
}

func TestHandlerFuncAdapts(t *testing.T) {
	var got enums.OutboxEventType
	h := HandlerFunc(func(_ context.Context, env types.Envelope) error {
		got = env.EventType
		return nil
	})
	require.NoError(t, h.Handle(context.Background(), types.Envelope{EventType: enums.EventOrderPaid}))
	assert.Equal(t, enums.EventOrderPaid, got)
}
