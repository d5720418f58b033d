package bid

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/leagueforge/auctioneer/go/internal/auction/budget"
	"github.com/leagueforge/auctioneer/go/internal/auction/events"
	"github.com/leagueforge/auctioneer/go/internal/auction/outbox"
	"github.com/leagueforge/auctioneer/go/internal/auction/round"
	"github.com/leagueforge/auctioneer/go/internal/models"
	"github.com/leagueforge/auctioneer/go/internal/sqlutil"
)

// Guard failure sentinels surfaced to the app layer.
var (
	// ErrGuardFailed means a conditional budget/roster update matched no
	// row: a concurrent operation consumed the headroom first.
	ErrGuardFailed = errors.New("budget or roster guard failed")
	// ErrNoOpenBid means there was no open bid to withdraw.
	ErrNoOpenBid = errors.New("no open bid")
)

// Repository implements BidRepository on Postgres. Each mutation runs the
// bid row change, the ledger update, and the outbox insert in one
// transaction.
type Repository struct {
	db      *sql.DB
	bids    *Queries
	rounds  *round.Queries
	budgets *budget.Queries
	outbox  *outbox.Queries
}

func NewRepository(db *sql.DB, budgets *budget.Queries, rounds *round.Queries, outboxQ *outbox.Queries) *Repository {
	return &Repository{
		db:      db,
		bids:    NewQueries(),
		rounds:  rounds,
		budgets: budgets,
		outbox:  outboxQ,
	}
}

func (r *Repository) PlaceBid(ctx context.Context, b models.Bid, seasonID uuid.UUID, pool models.CurrencyPool) (int, int64, error) {
	var openBids int
	var available int64
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		if err := r.bids.Insert(ctx, tx, b); err != nil {
			return err
		}
		ok, err := r.budgets.Reserve(ctx, tx, b.TeamID, seasonID, pool, b.Amount)
		if err != nil {
			return err
		}
		if !ok {
			return ErrGuardFailed
		}

		count, err := r.bids.CountOpenForTeam(ctx, tx, b.RoundID, b.TeamID)
		if err != nil {
			return err
		}
		openBids = count

		budgetRow, err := r.budgets.Get(ctx, tx, b.TeamID, seasonID, pool)
		if err != nil {
			return err
		}
		available = budgetRow.Available()

		return r.outbox.InsertJSON(ctx, tx, b.RoundID, events.TypeBidPlaced, events.BidPlacedPayload{
			RoundID:        b.RoundID.String(),
			TeamID:         b.TeamID.String(),
			PlayerID:       b.PlayerID.String(),
			Amount:         b.Amount,
			ResultingCount: count,
			PlacedAt:       b.PlacedAt,
		})
	})
	if err != nil {
		return 0, 0, err
	}
	return openBids, available, nil
}

func (r *Repository) WithdrawBid(ctx context.Context, roundID, teamID, playerID, seasonID uuid.UUID, pool models.CurrencyPool) (int, error) {
	var openBids int
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		amount, found, err := r.bids.DeleteOpen(ctx, tx, roundID, teamID, playerID)
		if err != nil {
			return err
		}
		if !found {
			return ErrNoOpenBid
		}
		if err := r.budgets.Release(ctx, tx, teamID, seasonID, pool, amount); err != nil {
			return err
		}

		count, err := r.bids.CountOpenForTeam(ctx, tx, roundID, teamID)
		if err != nil {
			return err
		}
		openBids = count

		return r.outbox.InsertJSON(ctx, tx, roundID, events.TypeBidWithdrawn, events.BidWithdrawnPayload{
			RoundID:        roundID.String(),
			TeamID:         teamID.String(),
			PlayerID:       playerID.String(),
			ResultingCount: count,
			WithdrawnAt:    nowUTC(),
		})
	})
	if err != nil {
		return 0, err
	}
	return openBids, nil
}

func (r *Repository) ListTeamBids(ctx context.Context, roundID, teamID uuid.UUID) ([]models.Bid, error) {
	return r.bids.ListByRoundTeam(ctx, r.db, roundID, teamID)
}

func (r *Repository) PlayerInRound(ctx context.Context, roundID, playerID uuid.UUID) (bool, error) {
	return r.rounds.PlayerInRound(ctx, r.db, roundID, playerID)
}

func (r *Repository) PlayerAllocated(ctx context.Context, roundID, playerID uuid.UUID) (bool, error) {
	return r.bids.PlayerAllocated(ctx, r.db, roundID, playerID)
}

func (r *Repository) HasBid(ctx context.Context, roundID, teamID, playerID uuid.UUID) (bool, error) {
	return r.bids.HasBid(ctx, r.db, roundID, teamID, playerID)
}

func (r *Repository) GetBudget(ctx context.Context, teamID, seasonID uuid.UUID, pool models.CurrencyPool) (*models.TeamBudget, error) {
	return r.budgets.Get(ctx, r.db, teamID, seasonID, pool)
}

func nowUTC() time.Time { return time.Now().UTC() }
