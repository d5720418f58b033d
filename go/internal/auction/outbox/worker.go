package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config tunes the outbox polling worker.
type Config struct {
	PollInterval time.Duration
	BatchSize    int32
	MaxRetries   int
	RetryDelay   time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 2 * time.Second,
		BatchSize:    100,
		MaxRetries:   3,
		RetryDelay:   time.Second,
	}
}

// Worker drains the outbox table and hands events to the publisher.
// Publish failures are logged and retried on the next poll; they never
// affect the state change that staged the event.
type Worker struct {
	db        *sql.DB
	queries   *Queries
	publisher EventPublisher
	config    Config
	logger    zerolog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewWorker(database *sql.DB, publisher EventPublisher, cfg Config, logger zerolog.Logger) *Worker {
	return &Worker{
		db:        database,
		queries:   NewQueries(),
		publisher: publisher,
		config:    cfg,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info().
		Dur("poll_interval", w.config.PollInterval).
		Int32("batch_size", w.config.BatchSize).
		Msg("outbox worker started")

	return nil
}

func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	w.logger.Info().Msg("outbox worker stopped")
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on start
	w.processOutbox(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processOutbox(ctx)
		}
	}
}

func (w *Worker) processOutbox(ctx context.Context) {
	txn, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to begin transaction")
		return
	}
	committed := false
	defer func() {
		if !committed {
			_ = txn.Rollback()
		}
	}()

	events, err := w.queries.FetchUnsent(ctx, txn, w.config.BatchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to fetch unsent events")
		return
	}
	if len(events) == 0 {
		return
	}

	var successfulIDs []uuid.UUID
	for _, event := range events {
		if err := w.publishWithRetry(ctx, event); err != nil {
			w.logger.Error().
				Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Msg("failed to publish event")
			continue
		}
		successfulIDs = append(successfulIDs, event.ID)
	}

	if err := w.queries.MarkSent(ctx, txn, successfulIDs); err != nil {
		w.logger.Error().Err(err).Msg("failed to mark events as sent")
		return
	}

	if err := txn.Commit(); err != nil {
		w.logger.Error().Err(err).Msg("failed to commit transaction")
		return
	}
	committed = true

	w.logger.Debug().
		Int("total", len(events)).
		Int("successful", len(successfulIDs)).
		Msg("processed outbox events")
}

func (w *Worker) publishWithRetry(ctx context.Context, event Event) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}
		if err := w.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("failed after %d attempts: %w", w.config.MaxRetries+1, lastErr)
}
