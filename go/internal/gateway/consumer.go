package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// ConsumerConfig holds the NATS subscription settings for the event feed.
type ConsumerConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "leagueforge",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// EventConsumer subscribes to the auction event subjects and hands frames
// to the connection manager for fan-out.
type EventConsumer struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	sub               *nats.Subscription
	config            ConsumerConfig
	logger            zerolog.Logger
}

func NewEventConsumer(cm *ConnectionManager, config ConsumerConfig, logger zerolog.Logger) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &EventConsumer{
		connectionManager: cm,
		nc:                nc,
		config:            config,
		logger:            logger,
	}, nil
}

// Start subscribes to every auction event subject and blocks until the
// context is cancelled.
func (ec *EventConsumer) Start(ctx context.Context) error {
	subject := fmt.Sprintf("%s.auction.>", ec.config.SubjectPrefix)

	sub, err := ec.nc.Subscribe(subject, func(msg *nats.Msg) {
		if err := ec.processMessage(msg.Data); err != nil {
			ec.logger.Error().Err(err).
				Str("subject", msg.Subject).
				Msg("failed to process event")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	ec.sub = sub

	ec.logger.Info().Str("subject", subject).Msg("event consumer started")
	<-ctx.Done()
	return nil
}

func (ec *EventConsumer) processMessage(data []byte) error {
	var envelope struct {
		EventID   string          `json:"eventId"`
		EventType string          `json:"eventType"`
		RoundID   string          `json:"roundId"`
		Timestamp time.Time       `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	if !knownEventTypes[envelope.EventType] {
		return fmt.Errorf("unknown event type: %s", envelope.EventType)
	}
	roundID, err := uuid.Parse(envelope.RoundID)
	if err != nil {
		return fmt.Errorf("failed to parse round id: %w", err)
	}

	ec.connectionManager.BroadcastToRound(roundID, &AuctionEvent{
		ID:        envelope.EventID,
		RoundID:   envelope.RoundID,
		Type:      envelope.EventType,
		Timestamp: envelope.Timestamp,
		Data:      envelope.Payload,
	})
	return nil
}

// Stop drains the subscription and closes the connection.
func (ec *EventConsumer) Stop() {
	if ec.sub != nil {
		ec.sub.Unsubscribe()
	}
	if ec.nc != nil {
		ec.nc.Close()
	}
}
