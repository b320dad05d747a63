package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
)

type publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

// Notifier publishes committed order changes on a Redis channel so every API
// instance can fan them out to its websocket clients.
type Notifier struct {
	pub     publisher
	channel string
}

// NewNotifier builds a notifier publishing on channel.
func NewNotifier(pub publisher, channel string) (*Notifier, error) {
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if channel == "" {
		return nil, errors.New("channel is required")
	}
	return &Notifier{pub: pub, channel: channel}, nil
}

// NotifyOrder publishes the order's current status.
func (n *Notifier) NotifyOrder(ctx context.Context, order models.Order) error {
	payload, err := json.Marshal(NewStatusMessage(order))
	if err != nil {
		return fmt.Errorf("marshal status message: %w", err)
	}
	if err := n.pub.Publish(ctx, n.channel, string(payload)); err != nil {
		return fmt.Errorf("publish order status: %w", err)
	}
	return nil
}
