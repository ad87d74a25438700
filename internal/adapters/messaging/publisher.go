package messaging

import (
	"context"
	"errors"
	"fmt"
	"route-results-service/internal/platform/logging"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
)

const (
	TopicDriverPush         = "driver.push"
	TopicOptimisationEvents = "optimisation.events"

	correlationIDKey = "correlation_id"
)

var ErrPublisherClosed = errors.New("publisher is closed")

type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "publisher",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Publisher sends JSON payloads to a watermill publisher. Publishing goes
// through a circuit breaker so a dead broker fails fast.
type Publisher struct {
	pub message.Publisher
	cb  *gobreaker.CircuitBreaker[struct{}]

	mu     sync.RWMutex
	closed bool
}

func NewPublisher(pub message.Publisher, cfg BreakerConfig) *Publisher {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}
	return &Publisher{pub: pub, cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

// Publish marshals payload and sends it to topic.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("publish %s: marshal payload: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(correlationIDKey, id)
	}
	msg.SetContext(ctx)

	_, err = p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.pub.Publish(topic, msg)
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// BreakerState reports the breaker state for health output.
func (p *Publisher) BreakerState() string {
	return p.cb.State().String()
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.pub.Close()
}
