package allocation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leagueforge/auctioneer/go/internal/auction/bid"
	"github.com/leagueforge/auctioneer/go/internal/auction/budget"
	"github.com/leagueforge/auctioneer/go/internal/auction/events"
	"github.com/leagueforge/auctioneer/go/internal/auction/outbox"
	"github.com/leagueforge/auctioneer/go/internal/auction/round"
	"github.com/leagueforge/auctioneer/go/internal/auction/tiebreaker"
	"github.com/leagueforge/auctioneer/go/internal/models"
	"github.com/leagueforge/auctioneer/go/internal/sqlutil"
	"github.com/rs/zerolog"
)

// Repository commits engine decisions to Postgres. Every commit path runs
// the allocation rows, the ledger conversions, the bid status flips, the
// round transition, and the outbox insert in a single transaction.
type Repository struct {
	db        *sql.DB
	allocs    *Queries
	bids      *bid.Queries
	rounds    *round.Queries
	budgets   *budget.Queries
	tiebreaks *tiebreaker.Queries
	outbox    *outbox.Queries
	logger    zerolog.Logger
}

func NewRepository(db *sql.DB, bids *bid.Queries, rounds *round.Queries, budgets *budget.Queries, tiebreaks *tiebreaker.Queries, outboxQ *outbox.Queries, logger zerolog.Logger) *Repository {
	return &Repository{
		db:        db,
		allocs:    NewQueries(),
		bids:      bids,
		rounds:    rounds,
		budgets:   budgets,
		tiebreaks: tiebreaks,
		outbox:    outboxQ,
		logger:    logger,
	}
}

func (r *Repository) ListRoundBids(ctx context.Context, roundID uuid.UUID) ([]models.Bid, error) {
	return r.bids.ListByRound(ctx, r.db, roundID)
}

func (r *Repository) ListAllocations(ctx context.Context, roundID uuid.UUID) ([]models.Allocation, error) {
	return r.allocs.ListByRound(ctx, r.db, roundID)
}

func (r *Repository) UnresolvedTiebreakers(ctx context.Context, roundID uuid.UUID) (int, error) {
	return r.tiebreaks.CountUnresolvedForRound(ctx, r.db, roundID)
}

// ReleaseClaim backs the round out of FINALIZING when processing fails
// after the claim was won.
func (r *Repository) ReleaseClaim(ctx context.Context, roundID uuid.UUID, to models.RoundStatus) error {
	return r.rounds.SetStatus(ctx, r.db, roundID, models.RoundStatusFinalizing, to)
}

// CommitFinal applies the full allocation set, releases every losing
// reservation, and completes the round.
func (r *Repository) CommitFinal(ctx context.Context, rd *models.Round, pending []Pending) ([]models.Allocation, error) {
	var final []models.Allocation
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		for _, p := range pending {
			committed, err := r.commitOne(ctx, tx, rd, p)
			if err != nil {
				return err
			}
			if !committed {
				// Average pricing can exceed what an incomplete team has
				// left. The team keeps its money and loses the player.
				if p.Phase != models.AllocationPhaseIncomplete {
					return fmt.Errorf("budget commit failed for team %s player %s", p.TeamID, p.PlayerID)
				}
				r.logger.Warn().
					Str("round_id", rd.ID.String()).
					Str("team_id", p.TeamID.String()).
					Str("player_id", p.PlayerID.String()).
					Int64("price", p.Price).
					Msg("average price not affordable, skipping incomplete-team allocation")
				if err := r.loseBid(ctx, tx, rd, p.TeamID, p.PlayerID, p.ReservedAmount); err != nil {
					return err
				}
			}
		}

		if err := r.releaseOpenBids(ctx, tx, rd); err != nil {
			return err
		}
		if err := r.rounds.SetStatus(ctx, tx, rd.ID, models.RoundStatusFinalizing, models.RoundStatusCompleted); err != nil {
			return err
		}

		allocations, err := r.allocs.ListByRound(ctx, tx, rd.ID)
		if err != nil {
			return err
		}
		final = allocations

		summaries := make([]events.AllocationSummary, len(final))
		for i, a := range final {
			summaries[i] = events.AllocationSummary{
				TeamID:   a.TeamID.String(),
				PlayerID: a.PlayerID.String(),
				Price:    a.Price,
				Phase:    string(a.Phase),
			}
		}
		return r.outbox.InsertJSON(ctx, tx, rd.ID, events.TypeRoundFinalized, events.RoundFinalizedPayload{
			RoundID:        rd.ID.String(),
			Allocations:    summaries,
			ResultingCount: len(final),
			FinalizedAt:    nowUTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	return final, nil
}

// CommitWithTie applies the partial allocation decided before the tie,
// creates the tiebreaker among exactly the tied teams, and parks the round
// until resolution. Losing reservations stay held; they are settled when
// finalization resumes.
func (r *Repository) CommitWithTie(ctx context.Context, rd *models.Round, partial []Pending, tb models.Tiebreaker, participants []models.TiebreakerParticipant) error {
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		for _, p := range partial {
			committed, err := r.commitOne(ctx, tx, rd, p)
			if err != nil {
				return err
			}
			if !committed {
				return fmt.Errorf("budget commit failed for team %s player %s", p.TeamID, p.PlayerID)
			}
		}

		if err := r.tiebreaks.Insert(ctx, tx, tb); err != nil {
			return err
		}
		for _, p := range participants {
			if err := r.tiebreaks.InsertParticipant(ctx, tx, p); err != nil {
				return err
			}
		}
		if err := r.rounds.SetStatus(ctx, tx, rd.ID, models.RoundStatusFinalizing, models.RoundStatusTiebreakPending); err != nil {
			return err
		}

		teamIDs := make([]string, len(participants))
		for i, p := range participants {
			teamIDs[i] = p.TeamID.String()
		}
		return r.outbox.InsertJSON(ctx, tx, rd.ID, events.TypeTieDetected, events.TieDetectedPayload{
			RoundID:        rd.ID.String(),
			TiebreakerID:   tb.ID.String(),
			PlayerID:       tb.PlayerID.String(),
			TeamIDs:        teamIDs,
			Amount:         tb.HighestAmount,
			ResultingCount: len(participants),
			DeadlineAt:     tb.DeadlineAt,
			DetectedAt:     tb.CreatedAt,
		})
	})
}

// commitOne converts one winner's reservation into a spend, flips the bid
// to WON, and writes the allocation row. A false return means the ledger
// guard rejected the price.
func (r *Repository) commitOne(ctx context.Context, tx *sql.Tx, rd *models.Round, p Pending) (bool, error) {
	ok, err := r.budgets.CommitSpend(ctx, tx, p.TeamID, rd.SeasonID, rd.Pool, p.ReservedAmount, p.Price)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := r.bids.MarkStatus(ctx, tx, rd.ID, p.TeamID, p.PlayerID, models.BidStatusWon); err != nil {
		return false, err
	}
	return true, r.allocs.Insert(ctx, tx, models.Allocation{
		ID:          uuid.New(),
		RoundID:     rd.ID,
		TeamID:      p.TeamID,
		PlayerID:    p.PlayerID,
		Price:       p.Price,
		Phase:       p.Phase,
		AllocatedAt: nowUTC(),
	})
}

func (r *Repository) loseBid(ctx context.Context, tx *sql.Tx, rd *models.Round, teamID, playerID uuid.UUID, amount int64) error {
	if err := r.budgets.Release(ctx, tx, teamID, rd.SeasonID, rd.Pool, amount); err != nil {
		return err
	}
	return r.bids.MarkStatus(ctx, tx, rd.ID, teamID, playerID, models.BidStatusLost)
}

// releaseOpenBids settles every bid still open after allocation: the money
// goes back and the bid is marked LOST.
func (r *Repository) releaseOpenBids(ctx context.Context, tx *sql.Tx, rd *models.Round) error {
	bids, err := r.bids.ListByRound(ctx, tx, rd.ID)
	if err != nil {
		return err
	}
	for _, b := range bids {
		if b.Status != models.BidStatusOpen {
			continue
		}
		if err := r.loseBid(ctx, tx, rd, b.TeamID, b.PlayerID, b.Amount); err != nil {
			return err
		}
	}
	return nil
}

func nowUTC() time.Time { return time.Now().UTC() }
