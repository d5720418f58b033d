package bid

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/leagueforge/auctioneer/go/internal/auction/fault"
	"github.com/leagueforge/auctioneer/go/internal/auction/reserve"
	"github.com/leagueforge/auctioneer/go/internal/models"
	"github.com/rs/zerolog"
)

// BidRepository defines what the app layer needs from bid persistence.
// Mutations are transactional: the bid row, the budget reservation, and the
// staged change event commit or roll back together.
type BidRepository interface {
	PlaceBid(ctx context.Context, b models.Bid, seasonID uuid.UUID, pool models.CurrencyPool) (openBids int, available int64, err error)
	WithdrawBid(ctx context.Context, roundID, teamID, playerID, seasonID uuid.UUID, pool models.CurrencyPool) (openBids int, err error)
	ListTeamBids(ctx context.Context, roundID, teamID uuid.UUID) ([]models.Bid, error)
	PlayerInRound(ctx context.Context, roundID, playerID uuid.UUID) (bool, error)
	HasBid(ctx context.Context, roundID, teamID, playerID uuid.UUID) (bool, error)
	PlayerAllocated(ctx context.Context, roundID, playerID uuid.UUID) (bool, error)
	GetBudget(ctx context.Context, teamID, seasonID uuid.UUID, pool models.CurrencyPool) (*models.TeamBudget, error)
}

// RoundApp defines what the app layer needs from the round lifecycle.
type RoundApp interface {
	GetForBidding(ctx context.Context, id uuid.UUID) (*models.Round, error)
	GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
}

// ReserveApp is the soft reserve check consulted before accepting a bid.
type ReserveApp interface {
	ForRosterGap(ctx context.Context, r *models.Round, gap int) reserve.Requirement
}

// App handles bid intake business logic.
type App struct {
	repo     BidRepository
	rounds   RoundApp
	reserves ReserveApp
	clock    clockwork.Clock
	logger   zerolog.Logger
}

func NewApp(repo BidRepository, rounds RoundApp, reserves ReserveApp, clock clockwork.Clock, logger zerolog.Logger) *App {
	return &App{
		repo:     repo,
		rounds:   rounds,
		reserves: reserves,
		clock:    clock,
		logger:   logger,
	}
}

// PlaceBid validates and records one team's bid on one player. The
// precondition chain runs in order; each failure carries its own reason.
func (a *App) PlaceBid(ctx context.Context, req PlaceBidRequest) (*Receipt, error) {
	r, err := a.rounds.GetForBidding(ctx, req.RoundID)
	if err != nil {
		return nil, err
	}

	inRound, err := a.repo.PlayerInRound(ctx, req.RoundID, req.PlayerID)
	if err != nil {
		return nil, fault.Internal("failed to check round players", err)
	}
	if !inRound {
		return nil, fault.Precondition(fault.ReasonPlayerNotInRound, "player is not part of this round")
	}

	allocated, err := a.repo.PlayerAllocated(ctx, req.RoundID, req.PlayerID)
	if err != nil {
		return nil, fault.Internal("failed to check player allocation", err)
	}
	if allocated {
		return nil, fault.Precondition(fault.ReasonPlayerAllocated, "player has already been allocated")
	}

	exists, err := a.repo.HasBid(ctx, req.RoundID, req.TeamID, req.PlayerID)
	if err != nil {
		return nil, fault.Internal("failed to check existing bid", err)
	}
	if exists {
		return nil, fault.Precondition(fault.ReasonDuplicateBid, "team already bid on this player in this round")
	}

	b, err := a.repo.GetBudget(ctx, req.TeamID, r.SeasonID, r.Pool)
	if err != nil {
		return nil, fault.Internal("failed to load team budget", err)
	}

	if b.RosterHeadroom() <= 0 {
		return nil, fault.Precondition(fault.ReasonRosterFull, "no roster capacity left for another bid").
			With("roster_size", b.RosterSize).
			With("open_bids", b.OpenBids).
			With("roster_capacity", b.RosterCapacity)
	}

	if b.Available() < r.BasePrice {
		return nil, fault.Precondition(fault.ReasonInsufficientBudget, "available budget does not cover the round's base price").
			With("available", b.Available()).
			With("base_price", r.BasePrice)
	}

	// Reserve check: the gap excludes the slot this bid would claim.
	req2 := a.reserves.ForRosterGap(ctx, r, b.RosterHeadroom()-1)
	if req2.RequiresReserve && b.Available()-r.BasePrice < req2.MinimumReserve {
		return nil, fault.Precondition(fault.ReasonReserveViolation, "bid would leave less than the reserve required for later rounds").
			With("available", b.Available()).
			With("minimum_reserve", req2.MinimumReserve).
			With("explanation", req2.Explanation)
	}

	newBid := models.Bid{
		ID:       uuid.New(),
		RoundID:  req.RoundID,
		TeamID:   req.TeamID,
		PlayerID: req.PlayerID,
		Amount:   r.BasePrice,
		Status:   models.BidStatusOpen,
		PlacedAt: a.clock.Now(),
	}

	openBids, available, err := a.repo.PlaceBid(ctx, newBid, r.SeasonID, r.Pool)
	if errors.Is(err, ErrDuplicate) {
		return nil, fault.Precondition(fault.ReasonDuplicateBid, "team already bid on this player in this round")
	}
	if errors.Is(err, ErrGuardFailed) {
		// Lost a race against a concurrent bid; re-report against the
		// guards that actually held.
		return nil, fault.Precondition(fault.ReasonInsufficientBudget, "budget or roster capacity was consumed by a concurrent bid")
	}
	if err != nil {
		return nil, fault.Internal("failed to place bid", err)
	}

	a.logger.Info().
		Str("round_id", req.RoundID.String()).
		Str("team_id", req.TeamID.String()).
		Str("player_id", req.PlayerID.String()).
		Int64("amount", newBid.Amount).
		Msg("bid placed")

	return &Receipt{Bid: newBid, OpenBids: openBids, AvailableBudget: available}, nil
}

// WithdrawBid removes an open bid and releases its reservation. Legal only
// while the round is active.
func (a *App) WithdrawBid(ctx context.Context, req WithdrawBidRequest) error {
	r, err := a.rounds.GetForBidding(ctx, req.RoundID)
	if err != nil {
		return err
	}

	_, err = a.repo.WithdrawBid(ctx, req.RoundID, req.TeamID, req.PlayerID, r.SeasonID, r.Pool)
	if errors.Is(err, ErrNoOpenBid) {
		return fault.Precondition(fault.ReasonBidNotFound, "no open bid for this player in this round")
	}
	if err != nil {
		return fault.Internal("failed to withdraw bid", err)
	}

	a.logger.Info().
		Str("round_id", req.RoundID.String()).
		Str("team_id", req.TeamID.String()).
		Str("player_id", req.PlayerID.String()).
		Msg("bid withdrawn")
	return nil
}

// ListTeamBids returns one team's bids in a round.
func (a *App) ListTeamBids(ctx context.Context, roundID, teamID uuid.UUID) ([]models.Bid, error) {
	if _, err := a.rounds.GetRound(ctx, roundID); err != nil {
		return nil, err
	}
	bids, err := a.repo.ListTeamBids(ctx, roundID, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team bids: %w", err)
	}
	return bids, nil
}
