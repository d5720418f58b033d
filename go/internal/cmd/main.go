package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/leagueforge/auctioneer/go/internal/auction/fault"
	"github.com/leagueforge/auctioneer/go/internal/auction/outbox"
	"github.com/leagueforge/auctioneer/go/internal/gateway"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Err(err).Msg("could not load .env file")
	}

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := setupDatabase(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up database")
	}
	defer database.Close()

	clock := clockwork.NewRealClock()
	services := setupServices(database, config, clock, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event delivery: outbox worker publishes to NATS, gateway consumer
	// fans out to websocket clients. Without NATS the service still runs;
	// events are logged instead of delivered.
	var publisher outbox.EventPublisher = outbox.NewLogPublisher(logger)
	natsURL := getEnv("NATS_URL", nats.DefaultURL)
	nc, err := nats.Connect(natsURL)
	if err != nil {
		logger.Warn().Err(err).Str("url", natsURL).Msg("NATS unavailable, events will be logged only")
	} else {
		defer nc.Close()
		publisher = outbox.NewNATSPublisher(nc, getEnv("NATS_SUBJECT_PREFIX", "leagueforge"), logger)
	}

	outboxConfig := outbox.DefaultConfig()
	outboxConfig.PollInterval = duration(config.Engine.OutboxPollInterval, outboxConfig.PollInterval)
	if config.Engine.OutboxBatchSize > 0 {
		outboxConfig.BatchSize = config.Engine.OutboxBatchSize
	}
	worker := outbox.NewWorker(database, publisher, outboxConfig, logger)
	if err := worker.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start outbox worker")
	}
	defer worker.Stop()

	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), logger)
	go cm.Start(ctx)

	if nc != nil {
		consumerConfig := gateway.DefaultConsumerConfig()
		consumerConfig.URL = natsURL
		consumerConfig.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", "leagueforge")
		consumer, err := gateway.NewEventConsumer(cm, consumerConfig, logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to start gateway event consumer")
		} else {
			defer consumer.Stop()
			go func() {
				if err := consumer.Start(ctx); err != nil {
					logger.Error().Err(err).Msg("gateway event consumer stopped")
				}
			}()
		}
	}

	go runFinalizeSweep(ctx, services, duration(config.Engine.FinalizeSweepInterval, time.Minute), logger)

	server := setupServer(services, database, cm, logger)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("auction server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
}

// runFinalizeSweep periodically finalizes auto-mode rounds whose window has
// closed, and resumes tiebreak-pending rounds once their tiebreaker
// resolves. Precondition failures are expected while a tiebreaker is live.
func runFinalizeSweep(ctx context.Context, services *Services, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := services.Rounds.FetchDueForFinalization(ctx, 20)
			if err != nil {
				logger.Error().Err(err).Msg("finalize sweep fetch failed")
				continue
			}
			for _, id := range ids {
				if _, err := services.Allocations.FinalizeRound(ctx, id); err != nil {
					if fault.KindOf(err) == fault.KindPrecondition || fault.KindOf(err) == fault.KindConflict {
						continue
					}
					logger.Error().Err(err).Str("round_id", id.String()).Msg("sweep finalization failed")
				}
			}
		}
	}
}
