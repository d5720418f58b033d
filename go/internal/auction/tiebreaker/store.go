package tiebreaker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leagueforge/auctioneer/go/internal/auction/bid"
	"github.com/leagueforge/auctioneer/go/internal/auction/budget"
	"github.com/leagueforge/auctioneer/go/internal/auction/events"
	"github.com/leagueforge/auctioneer/go/internal/auction/outbox"
	"github.com/leagueforge/auctioneer/go/internal/auction/round"
	"github.com/leagueforge/auctioneer/go/internal/models"
	"github.com/leagueforge/auctioneer/go/internal/sqlutil"
)

var (
	// ErrRaceLost means the conditional leader update matched no row: a
	// concurrent bid got there first. The caller should refresh and retry.
	ErrRaceLost = errors.New("lost leader update race")
	// ErrGuardFailed means the budget guard rejected the raise.
	ErrGuardFailed = errors.New("budget guard failed")
)

// AllocationRecorder writes the winner's allocation row inside the resolve
// transaction.
type AllocationRecorder interface {
	Insert(ctx context.Context, db sqlutil.DBTX, a models.Allocation) error
}

// Repository implements TiebreakerRepository on Postgres.
type Repository struct {
	db        *sql.DB
	tiebreaks *Queries
	bids      *bid.Queries
	budgets   *budget.Queries
	rounds    *round.Queries
	allocs    AllocationRecorder
	outbox    *outbox.Queries
}

func NewRepository(db *sql.DB, bids *bid.Queries, budgets *budget.Queries, rounds *round.Queries, allocs AllocationRecorder, outboxQ *outbox.Queries) *Repository {
	return &Repository{
		db:        db,
		tiebreaks: NewQueries(),
		bids:      bids,
		budgets:   budgets,
		rounds:    rounds,
		allocs:    allocs,
		outbox:    outboxQ,
	}
}

func (r *Repository) GetTiebreaker(ctx context.Context, id uuid.UUID) (*models.Tiebreaker, error) {
	return r.tiebreaks.Get(ctx, r.db, id)
}

func (r *Repository) GetParticipant(ctx context.Context, tiebreakerID, teamID uuid.UUID) (*models.TiebreakerParticipant, error) {
	return r.tiebreaks.GetParticipant(ctx, r.db, tiebreakerID, teamID)
}

func (r *Repository) ListParticipants(ctx context.Context, tiebreakerID uuid.UUID) ([]models.TiebreakerParticipant, error) {
	return r.tiebreaks.ListParticipants(ctx, r.db, tiebreakerID)
}

func (r *Repository) ActiveParticipants(ctx context.Context, tiebreakerID uuid.UUID) ([]models.TiebreakerParticipant, error) {
	return r.tiebreaks.ActiveParticipants(ctx, r.db, tiebreakerID)
}

func (r *Repository) ListBidHistory(ctx context.Context, tiebreakerID uuid.UUID) ([]models.TiebreakerBidRecord, error) {
	return r.tiebreaks.ListBidHistory(ctx, r.db, tiebreakerID)
}

func (r *Repository) GetRound(ctx context.Context, roundID uuid.UUID) (*models.Round, error) {
	return r.rounds.Get(ctx, r.db, roundID)
}

func (r *Repository) GetBudget(ctx context.Context, teamID, seasonID uuid.UUID, pool models.CurrencyPool) (*models.TeamBudget, error) {
	return r.budgets.Get(ctx, r.db, teamID, seasonID, pool)
}

// PlaceBid grows the team's hold by delta, installs the new leader via the
// conditional write, and records the bid, all in one transaction. The
// rollback on ErrRaceLost returns the extra hold automatically.
func (r *Repository) PlaceBid(ctx context.Context, rd *models.Round, tb *models.Tiebreaker, teamID uuid.UUID, delta, amount int64, placedAt time.Time) (int, error) {
	var activeCount int
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		ok, err := r.budgets.AdjustReserve(ctx, tx, teamID, rd.SeasonID, rd.Pool, delta)
		if err != nil {
			return err
		}
		if !ok {
			return ErrGuardFailed
		}

		ok, err = r.tiebreaks.CompareAndSetLeader(ctx, tx, tb.ID, teamID, amount, placedAt)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRaceLost
		}

		if err := r.tiebreaks.SetParticipantBid(ctx, tx, tb.ID, teamID, amount); err != nil {
			return err
		}
		if err := r.tiebreaks.InsertBidRecord(ctx, tx, models.TiebreakerBidRecord{
			ID:           uuid.New(),
			TiebreakerID: tb.ID,
			TeamID:       teamID,
			Amount:       amount,
			PlacedAt:     placedAt,
		}); err != nil {
			return err
		}

		count, err := r.tiebreaks.CountActive(ctx, tx, tb.ID)
		if err != nil {
			return err
		}
		activeCount = count

		return r.outbox.InsertJSON(ctx, tx, tb.RoundID, events.TypeTiebreakerBidPlaced, events.TiebreakerBidPlacedPayload{
			RoundID:        tb.RoundID.String(),
			TiebreakerID:   tb.ID.String(),
			TeamID:         teamID.String(),
			Amount:         amount,
			ResultingCount: count,
			PlacedAt:       placedAt,
		})
	})
	if err != nil {
		return 0, err
	}
	return activeCount, nil
}

// Withdraw marks the participant withdrawn, releases their hold, and flips
// their round bid to LOST. The participant row is re-read under a row lock
// inside the transaction; the caller's copy of current_bid may be stale
// against a concurrent raise.
func (r *Repository) Withdraw(ctx context.Context, rd *models.Round, tb *models.Tiebreaker, p *models.TiebreakerParticipant, at time.Time) (int, error) {
	var activeCount int
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		locked, err := r.tiebreaks.GetParticipantForUpdate(ctx, tx, tb.ID, p.TeamID)
		if err != nil {
			return err
		}

		ok, err := r.tiebreaks.WithdrawParticipant(ctx, tx, tb.ID, p.TeamID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrParticipantNotFound
		}

		if err := r.budgets.Release(ctx, tx, p.TeamID, rd.SeasonID, rd.Pool, locked.CurrentBid); err != nil {
			return err
		}
		if err := r.bids.MarkStatus(ctx, tx, tb.RoundID, p.TeamID, tb.PlayerID, models.BidStatusLost); err != nil {
			return err
		}

		count, err := r.tiebreaks.CountActive(ctx, tx, tb.ID)
		if err != nil {
			return err
		}
		activeCount = count

		return r.outbox.InsertJSON(ctx, tx, tb.RoundID, events.TypeTiebreakerWithdrawn, events.TiebreakerWithdrawnPayload{
			RoundID:        tb.RoundID.String(),
			TiebreakerID:   tb.ID.String(),
			TeamID:         p.TeamID.String(),
			ResultingCount: count,
			WithdrawnAt:    at,
		})
	})
	if err != nil {
		return 0, err
	}
	return activeCount, nil
}

// Resolve settles the tiebreaker in the winner's favor: the status flip,
// the spend conversion, the allocation row, and the settlement of any
// remaining active losers commit together. A second resolve attempt finds
// the status already flipped and does nothing.
func (r *Repository) Resolve(ctx context.Context, rd *models.Round, tb *models.Tiebreaker, winner models.TiebreakerParticipant, at time.Time) error {
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		ok, err := r.tiebreaks.SetStatus(ctx, tx, tb.ID,
			[]models.TiebreakerStatus{
				models.TiebreakerStatusActive,
				models.TiebreakerStatusOngoing,
				models.TiebreakerStatusAutoFinalizePending,
			},
			models.TiebreakerStatusResolved,
		)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		committed, err := r.budgets.CommitSpend(ctx, tx, winner.TeamID, rd.SeasonID, rd.Pool, winner.CurrentBid, winner.CurrentBid)
		if err != nil {
			return err
		}
		if !committed {
			return fmt.Errorf("budget commit failed for tiebreaker winner %s", winner.TeamID)
		}
		if err := r.bids.MarkStatus(ctx, tx, tb.RoundID, winner.TeamID, tb.PlayerID, models.BidStatusWon); err != nil {
			return err
		}
		if err := r.allocs.Insert(ctx, tx, models.Allocation{
			ID:          uuid.New(),
			RoundID:     tb.RoundID,
			TeamID:      winner.TeamID,
			PlayerID:    tb.PlayerID,
			Price:       winner.CurrentBid,
			Phase:       models.AllocationPhaseTiebreak,
			AllocatedAt: at,
		}); err != nil {
			return err
		}

		// Force-resolve can leave losers still active; settle them here.
		participants, err := r.tiebreaks.ListParticipants(ctx, tx, tb.ID)
		if err != nil {
			return err
		}
		for _, p := range participants {
			if p.TeamID == winner.TeamID || p.Status != models.ParticipantStatusActive {
				continue
			}
			if err := r.budgets.Release(ctx, tx, p.TeamID, rd.SeasonID, rd.Pool, p.CurrentBid); err != nil {
				return err
			}
			if err := r.bids.MarkStatus(ctx, tx, tb.RoundID, p.TeamID, tb.PlayerID, models.BidStatusLost); err != nil {
				return err
			}
		}

		return r.outbox.InsertJSON(ctx, tx, tb.RoundID, events.TypeTiebreakerResolved, events.TiebreakerResolvedPayload{
			RoundID:      tb.RoundID.String(),
			TiebreakerID: tb.ID.String(),
			PlayerID:     tb.PlayerID.String(),
			WinnerTeamID: winner.TeamID.String(),
			Amount:       winner.CurrentBid,
			ResolvedAt:   at,
		})
	})
}

// MarkAutoFinalizePending parks the tiebreaker for manual recovery after a
// failed auto-resolution.
func (r *Repository) MarkAutoFinalizePending(ctx context.Context, tiebreakerID uuid.UUID) error {
	_, err := r.tiebreaks.SetStatus(ctx, r.db, tiebreakerID,
		[]models.TiebreakerStatus{models.TiebreakerStatusActive, models.TiebreakerStatusOngoing},
		models.TiebreakerStatusAutoFinalizePending,
	)
	return err
}
