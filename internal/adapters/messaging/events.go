package messaging

import (
	"context"
	"route-results-service/internal/domain"
	"route-results-service/internal/platform/logging"
	"route-results-service/internal/ports"
	"time"
)

// Wire form of an activity feed entry.
type EventPayload struct {
	OptimisationID int64          `json:"optimisation_id"`
	Type           string         `json:"event"`
	Params         map[string]any `json:"params"`
	At             time.Time      `json:"at"`
}

// EventFeed logs optimisation events and publishes them for the activity
// feed. Publishing failures are logged only.
type EventFeed struct {
	Publisher *Publisher
	Topic     string
}

func NewEventFeed(p *Publisher) *EventFeed {
	return &EventFeed{Publisher: p, Topic: TopicOptimisationEvents}
}

func (f *EventFeed) Emit(ctx context.Context, ev domain.Event) {
	log := logging.Ctx(ctx)
	log.Info().
		Int64("optimisation_id", ev.OptimisationID).
		Str("event", string(ev.Type)).
		Fields(ev.Params).
		Msg("optimisation event")

	if f.Publisher == nil {
		return
	}
	payload := EventPayload{OptimisationID: ev.OptimisationID, Type: string(ev.Type), Params: ev.Params, At: ev.At}
	if err := f.Publisher.Publish(ctx, f.Topic, payload); err != nil {
		log.Error().Err(err).Str("event", string(ev.Type)).Msg("optimisation event not published")
	}
}

var _ ports.EventSink = (*EventFeed)(nil)
