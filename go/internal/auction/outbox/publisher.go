package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// EventPublisher delivers a staged event to the real-time fan-out
// collaborator. Delivery is best-effort; the worker retries a few times and
// moves on.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NATSPublisher publishes events to NATS subjects of the form
// <prefix>.auction.<EventType>.
type NATSPublisher struct {
	conn          *nats.Conn
	subjectPrefix string
	logger        zerolog.Logger
}

func NewNATSPublisher(conn *nats.Conn, subjectPrefix string, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:          conn,
		subjectPrefix: subjectPrefix,
		logger:        logger,
	}
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	subject := fmt.Sprintf("%s.auction.%s", p.subjectPrefix, event.EventType)

	envelope := map[string]interface{}{
		"eventId":   event.ID.String(),
		"eventType": event.EventType,
		"roundId":   event.RoundID.String(),
		"timestamp": event.CreatedAt,
		"payload":   json.RawMessage(event.Payload),
	}

	messageBytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.conn.Publish(subject, messageBytes); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug().
		Str("subject", subject).
		Str("event_id", event.ID.String()).
		Int("size", len(messageBytes)).
		Msg("published event")

	return nil
}

// LogPublisher logs events instead of delivering them. Used in development
// and tests.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", event.EventType).
		Str("round_id", event.RoundID.String()).
		Msg("publishing event")
	return nil
}
