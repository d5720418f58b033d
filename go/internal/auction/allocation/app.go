package allocation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/leagueforge/auctioneer/go/internal/auction/fault"
	"github.com/leagueforge/auctioneer/go/internal/auction/round"
	"github.com/leagueforge/auctioneer/go/internal/models"
	"github.com/rs/zerolog"
)

// AllocationRepository defines what finalization needs from persistence.
// Commit methods are transactional: allocations, ledger conversions, bid
// flips, the round transition, and the staged event land together.
type AllocationRepository interface {
	ListRoundBids(ctx context.Context, roundID uuid.UUID) ([]models.Bid, error)
	ListAllocations(ctx context.Context, roundID uuid.UUID) ([]models.Allocation, error)
	UnresolvedTiebreakers(ctx context.Context, roundID uuid.UUID) (int, error)
	CommitFinal(ctx context.Context, rd *models.Round, pending []Pending) ([]models.Allocation, error)
	CommitWithTie(ctx context.Context, rd *models.Round, partial []Pending, tb models.Tiebreaker, participants []models.TiebreakerParticipant) error
	ReleaseClaim(ctx context.Context, roundID uuid.UUID, to models.RoundStatus) error
}

// RoundApp defines what finalization needs from the round lifecycle.
type RoundApp interface {
	ClaimFinalization(ctx context.Context, id uuid.UUID) (round.ClaimResult, *models.Round, error)
}

// Config carries the finalization tunables.
type Config struct {
	// TiebreakerDuration is the hard deadline for a new tiebreaker.
	TiebreakerDuration time.Duration
	// FallbackPrice is charged to incomplete teams when no winning price
	// exists to average over. Zero means use the round's base price.
	FallbackPrice int64
}

// App runs round finalization.
type App struct {
	repo   AllocationRepository
	rounds RoundApp
	clock  clockwork.Clock
	cfg    Config
	logger zerolog.Logger
}

func NewApp(repo AllocationRepository, rounds RoundApp, clock clockwork.Clock, cfg Config, logger zerolog.Logger) *App {
	if cfg.TiebreakerDuration <= 0 {
		cfg.TiebreakerDuration = 24 * time.Hour
	}
	return &App{
		repo:   repo,
		rounds: rounds,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
}

// FinalizeRound runs the greedy allocation over a round's bids. Exactly one
// caller wins the claim; losers observe already-finalized or in-progress
// without side effects. A detected tie halts processing after committing
// the partial allocation; re-invoking after the tiebreaker resolves resumes
// where it left off.
func (a *App) FinalizeRound(ctx context.Context, roundID uuid.UUID) (*FinalizeOutcome, error) {
	claim, rd, err := a.rounds.ClaimFinalization(ctx, roundID)
	if err != nil {
		return nil, err
	}
	switch claim {
	case round.ClaimAlreadyCompleted:
		allocations, err := a.repo.ListAllocations(ctx, roundID)
		if err != nil {
			return nil, fault.Internal("failed to load allocations", err)
		}
		return &FinalizeOutcome{Status: FinalizeAlreadyDone, Allocations: allocations}, nil
	case round.ClaimInProgress:
		return nil, fault.Conflict(fault.ReasonFinalizationInProgress, "round is being finalized by another caller")
	case round.ClaimNotFinalizable:
		return nil, fault.Precondition(fault.ReasonNotFinalizable, "round cannot be finalized in its current status").
			With("round_status", string(rd.Status))
	}

	unresolved, err := a.repo.UnresolvedTiebreakers(ctx, roundID)
	if err != nil {
		a.releaseClaim(ctx, roundID, models.RoundStatusClosed)
		return nil, fault.Internal("failed to check tiebreakers", err)
	}
	if unresolved > 0 {
		a.releaseClaim(ctx, roundID, models.RoundStatusTiebreakPending)
		return nil, fault.Precondition(fault.ReasonTiebreakerUnresolved, "round has an unresolved tiebreaker").
			With("unresolved", unresolved)
	}

	in, err := a.loadInput(ctx, rd)
	if err != nil {
		a.releaseClaim(ctx, roundID, models.RoundStatusClosed)
		return nil, fault.Internal("failed to load round state", err)
	}

	out := RunEngine(in)

	if out.Tie != nil {
		return a.commitTie(ctx, rd, out)
	}

	final, err := a.repo.CommitFinal(ctx, rd, out.Allocations)
	if err != nil {
		a.releaseClaim(ctx, roundID, models.RoundStatusClosed)
		return nil, fault.Internal("failed to commit allocations", err)
	}

	a.logger.Info().
		Str("round_id", roundID.String()).
		Int("allocations", len(final)).
		Int64("average_price", out.AveragePrice).
		Msg("round finalized")
	return &FinalizeOutcome{Status: FinalizeCompleted, Allocations: final}, nil
}

// ListAllocations returns the round's committed allocations.
func (a *App) ListAllocations(ctx context.Context, roundID uuid.UUID) ([]models.Allocation, error) {
	allocations, err := a.repo.ListAllocations(ctx, roundID)
	if err != nil {
		return nil, fault.Internal("failed to load allocations", err)
	}
	return allocations, nil
}

func (a *App) commitTie(ctx context.Context, rd *models.Round, out Outcome) (*FinalizeOutcome, error) {
	now := a.clock.Now()
	tb := models.Tiebreaker{
		ID:             uuid.New(),
		RoundID:        rd.ID,
		PlayerID:       out.Tie.PlayerID,
		Status:         models.TiebreakerStatusActive,
		HighestAmount:  out.Tie.Amount,
		DeadlineAt:     now.Add(a.cfg.TiebreakerDuration),
		LastActivityAt: now,
		CreatedAt:      now,
	}
	participants := make([]models.TiebreakerParticipant, len(out.Tie.TeamIDs))
	for i, teamID := range out.Tie.TeamIDs {
		participants[i] = models.TiebreakerParticipant{
			TiebreakerID: tb.ID,
			TeamID:       teamID,
			Status:       models.ParticipantStatusActive,
			CurrentBid:   out.Tie.Amount,
		}
	}

	if err := a.repo.CommitWithTie(ctx, rd, out.Allocations, tb, participants); err != nil {
		a.releaseClaim(ctx, rd.ID, models.RoundStatusClosed)
		return nil, fault.Internal("failed to commit tie", err)
	}

	a.logger.Info().
		Str("round_id", rd.ID.String()).
		Str("tiebreaker_id", tb.ID.String()).
		Str("player_id", tb.PlayerID.String()).
		Int("tied_teams", len(participants)).
		Msg("tie detected, finalization halted")
	return &FinalizeOutcome{
		Status: FinalizeTiePending,
		Tie: &TieInfo{
			TiebreakerID: tb.ID,
			PlayerID:     tb.PlayerID,
			TeamIDs:      out.Tie.TeamIDs,
			Amount:       out.Tie.Amount,
			DeadlineAt:   tb.DeadlineAt,
		},
	}, nil
}

func (a *App) loadInput(ctx context.Context, rd *models.Round) (Input, error) {
	bids, err := a.repo.ListRoundBids(ctx, rd.ID)
	if err != nil {
		return Input{}, err
	}
	prior, err := a.repo.ListAllocations(ctx, rd.ID)
	if err != nil {
		return Input{}, err
	}

	in := Input{
		BidCounts:        make(map[uuid.UUID]int),
		AllocatedTeams:   make(map[uuid.UUID]bool),
		AllocatedPlayers: make(map[uuid.UUID]bool),
		RequiredBids:     rd.RequiredBids,
		FallbackPrice:    a.cfg.FallbackPrice,
	}
	if in.FallbackPrice <= 0 {
		in.FallbackPrice = rd.BasePrice
	}
	for _, b := range bids {
		in.BidCounts[b.TeamID]++
		if b.Status == models.BidStatusOpen {
			in.OpenBids = append(in.OpenBids, EngineBid{
				TeamID:   b.TeamID,
				PlayerID: b.PlayerID,
				Amount:   b.Amount,
				PlacedAt: b.PlacedAt,
			})
		}
	}
	for _, al := range prior {
		in.AllocatedTeams[al.TeamID] = true
		in.AllocatedPlayers[al.PlayerID] = true
		in.PriorPrices = append(in.PriorPrices, al.Price)
	}
	return in, nil
}

// releaseClaim backs out of FINALIZING on a processing failure so the next
// attempt is not locked out. Best effort; a failure here leaves the round
// for the operator.
func (a *App) releaseClaim(ctx context.Context, roundID uuid.UUID, to models.RoundStatus) {
	if err := a.repo.ReleaseClaim(ctx, roundID, to); err != nil {
		a.logger.Error().Err(err).
			Str("round_id", roundID.String()).
			Str("to_status", string(to)).
			Msg("failed to release finalization claim")
	}
}
