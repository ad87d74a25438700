package messaging

import (
	"context"
	"errors"
	"fmt"
	"route-results-service/internal/domain"
	"route-results-service/internal/ports"
)

// Wire form of a push message.
type PushPayload struct {
	Type     string         `json:"type"`
	DriverID int64          `json:"driver_id"`
	Text     string         `json:"text"`
	Data     map[string]any `json:"data"`
}

// PushNotifier hands push messages to the push gateway topic.
type PushNotifier struct {
	Publisher *Publisher
	Topic     string
}

func NewPushNotifier(p *Publisher) *PushNotifier {
	return &PushNotifier{Publisher: p, Topic: TopicDriverPush}
}

func (n *PushNotifier) Notify(ctx context.Context, msg domain.PushMessage) error {
	if n.Publisher == nil {
		return errors.New("push notifier: publisher is nil")
	}
	if msg.DriverID == 0 {
		return fmt.Errorf("push notifier: %s message without driver", msg.Type)
	}

	payload := PushPayload{Type: string(msg.Type), DriverID: msg.DriverID, Text: msg.Text, Data: msg.Data}
	if err := n.Publisher.Publish(ctx, n.Topic, payload); err != nil {
		return fmt.Errorf("push notifier: driver %d: %w", msg.DriverID, err)
	}
	return nil
}

var _ ports.Notifier = (*PushNotifier)(nil)
