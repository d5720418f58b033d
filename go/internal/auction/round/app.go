package round

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/leagueforge/auctioneer/go/internal/auction/fault"
	"github.com/leagueforge/auctioneer/go/internal/models"
	"github.com/leagueforge/auctioneer/go/internal/sqlutil"
	"github.com/rs/zerolog"
)

// App handles round lifecycle logic. Round duration is evaluated lazily:
// the next relevant request performs the expiry transition instead of a
// held timer.
type App struct {
	db      *sql.DB
	queries *Queries
	clock   clockwork.Clock
	logger  zerolog.Logger
}

func NewApp(db *sql.DB, clock clockwork.Clock, logger zerolog.Logger) *App {
	return &App{
		db:      db,
		queries: NewQueries(),
		clock:   clock,
		logger:  logger,
	}
}

// Queries exposes the round SQL to sibling apps that need round reads
// inside their own transactions.
func (a *App) Queries() *Queries {
	return a.queries
}

// CreateRound registers a round and its player list.
func (a *App) CreateRound(ctx context.Context, req CreateRoundRequest) (*models.Round, error) {
	if req.BasePrice <= 0 {
		return nil, fault.Validation(fault.ReasonBadInput, "base price must be positive")
	}
	if req.RequiredBids <= 0 {
		return nil, fault.Validation(fault.ReasonBadInput, "required bids must be positive")
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, fault.Validation(fault.ReasonBadInput, "round must end after it starts")
	}

	err := sqlutil.Run(ctx, a.db, func(tx *sql.Tx) error {
		if err := a.queries.Create(ctx, tx, req); err != nil {
			return err
		}
		return a.queries.AddPlayers(ctx, tx, req.ID, req.PlayerIDs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create round: %w", err)
	}
	return a.GetRound(ctx, req.ID)
}

// GetRound fetches a round by id.
func (a *App) GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	r, err := a.queries.Get(ctx, a.db, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fault.Precondition(fault.ReasonRoundNotFound, "round does not exist")
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetForBidding returns the round only if it currently accepts bids,
// applying lazy activation and expiry as side effects.
func (a *App) GetForBidding(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	r, err := a.GetRound(ctx, id)
	if err != nil {
		return nil, err
	}

	now := a.clock.Now()

	if r.Status == models.RoundStatusScheduled && !now.Before(r.StartsAt) {
		if _, err := a.queries.Activate(ctx, a.db, id, now); err != nil {
			return nil, err
		}
		r.Status = models.RoundStatusActive
	}

	if r.Status == models.RoundStatusActive && !now.Before(r.EndsAt) {
		closed, err := a.queries.CloseExpired(ctx, a.db, id, now)
		if err != nil {
			return nil, err
		}
		if closed {
			a.logger.Info().Str("round_id", id.String()).Msg("closed expired round")
		}
		r.Status = models.RoundStatusClosed
	}

	if !r.AcceptsBids() {
		return nil, fault.Precondition(fault.ReasonRoundNotActive, "round is not accepting bids").
			With("round_status", string(r.Status))
	}
	return r, nil
}

// ClaimFinalization attempts the single-winner transition into FINALIZING
// and classifies the outcome for losers of the claim.
func (a *App) ClaimFinalization(ctx context.Context, id uuid.UUID) (ClaimResult, *models.Round, error) {
	r, err := a.GetRound(ctx, id)
	if err != nil {
		return "", nil, err
	}

	// Lazy expiry before claiming so auto rounds can be finalized by the
	// first request that arrives after their window closes.
	if r.Status == models.RoundStatusActive && !a.clock.Now().Before(r.EndsAt) {
		if _, err := a.queries.CloseExpired(ctx, a.db, id, a.clock.Now()); err != nil {
			return "", nil, err
		}
		r.Status = models.RoundStatusClosed
	}

	claimed, err := a.queries.ClaimFinalization(ctx, a.db, id)
	if err != nil {
		return "", nil, err
	}
	if claimed {
		r.Status = models.RoundStatusFinalizing
		return ClaimWon, r, nil
	}

	// Lost the claim: report why.
	r, err = a.GetRound(ctx, id)
	if err != nil {
		return "", nil, err
	}
	switch r.Status {
	case models.RoundStatusCompleted:
		return ClaimAlreadyCompleted, r, nil
	case models.RoundStatusFinalizing:
		return ClaimInProgress, r, nil
	default:
		return ClaimNotFinalizable, r, nil
	}
}

// FetchDueForFinalization lists auto rounds ready for the finalize sweep.
func (a *App) FetchDueForFinalization(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	return a.queries.FetchDueForFinalization(ctx, a.db, a.clock.Now(), limit)
}
