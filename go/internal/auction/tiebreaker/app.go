package tiebreaker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/leagueforge/auctioneer/go/internal/auction/fault"
	"github.com/leagueforge/auctioneer/go/internal/auction/reserve"
	"github.com/leagueforge/auctioneer/go/internal/models"
	"github.com/rs/zerolog"
)

// TiebreakerRepository defines what the app layer needs from tiebreaker
// persistence. PlaceBid, Withdraw, and Resolve are transactional.
type TiebreakerRepository interface {
	GetTiebreaker(ctx context.Context, id uuid.UUID) (*models.Tiebreaker, error)
	GetParticipant(ctx context.Context, tiebreakerID, teamID uuid.UUID) (*models.TiebreakerParticipant, error)
	ListParticipants(ctx context.Context, tiebreakerID uuid.UUID) ([]models.TiebreakerParticipant, error)
	ActiveParticipants(ctx context.Context, tiebreakerID uuid.UUID) ([]models.TiebreakerParticipant, error)
	ListBidHistory(ctx context.Context, tiebreakerID uuid.UUID) ([]models.TiebreakerBidRecord, error)
	GetRound(ctx context.Context, roundID uuid.UUID) (*models.Round, error)
	GetBudget(ctx context.Context, teamID, seasonID uuid.UUID, pool models.CurrencyPool) (*models.TeamBudget, error)
	PlaceBid(ctx context.Context, rd *models.Round, tb *models.Tiebreaker, teamID uuid.UUID, delta, amount int64, placedAt time.Time) (activeCount int, err error)
	Withdraw(ctx context.Context, rd *models.Round, tb *models.Tiebreaker, p *models.TiebreakerParticipant, at time.Time) (activeCount int, err error)
	Resolve(ctx context.Context, rd *models.Round, tb *models.Tiebreaker, winner models.TiebreakerParticipant, at time.Time) error
	MarkAutoFinalizePending(ctx context.Context, tiebreakerID uuid.UUID) error
}

// ReserveApp is the soft reserve check consulted before accepting a raise.
type ReserveApp interface {
	ForRosterGap(ctx context.Context, r *models.Round, gap int) reserve.Requirement
}

// App handles the live "last team standing" auction for a contested player.
type App struct {
	repo     TiebreakerRepository
	reserves ReserveApp
	clock    clockwork.Clock
	logger   zerolog.Logger
}

func NewApp(repo TiebreakerRepository, reserves ReserveApp, clock clockwork.Clock, logger zerolog.Logger) *App {
	return &App{
		repo:     repo,
		reserves: reserves,
		clock:    clock,
		logger:   logger,
	}
}

// PlaceBid accepts a raise in an open tiebreaker. Non-leaders must beat the
// current highest; the leader may raise their own bid. Losing the leader
// race returns a conflict the client resolves by refreshing and retrying.
func (a *App) PlaceBid(ctx context.Context, req PlaceBidRequest) (*BidReceipt, error) {
	if req.Amount <= 0 {
		return nil, fault.Validation(fault.ReasonBadInput, "amount must be positive")
	}

	tb, p, err := a.loadOpen(ctx, req.TiebreakerID, req.TeamID)
	if err != nil {
		return nil, err
	}

	leader := tb.HighestTeamID != nil && *tb.HighestTeamID == req.TeamID
	if leader {
		if req.Amount <= p.CurrentBid {
			return nil, fault.Precondition(fault.ReasonBidTooLow, "self-raise must exceed your previous bid").
				With("current_bid", p.CurrentBid)
		}
	} else if req.Amount <= tb.HighestAmount {
		return nil, fault.Precondition(fault.ReasonBidTooLow, "bid must exceed the current highest").
			With("highest_amount", tb.HighestAmount)
	}

	rd, err := a.repo.GetRound(ctx, tb.RoundID)
	if err != nil {
		return nil, fault.Internal("failed to load round", err)
	}
	b, err := a.repo.GetBudget(ctx, req.TeamID, rd.SeasonID, rd.Pool)
	if err != nil {
		return nil, fault.Internal("failed to load team budget", err)
	}

	// The team already holds CurrentBid; only the raise needs new money.
	delta := req.Amount - p.CurrentBid
	if b.Available() < delta {
		return nil, fault.Precondition(fault.ReasonInsufficientBudget, "available budget does not cover the raise").
			With("available", b.Available()).
			With("required", delta)
	}
	reserveReq := a.reserves.ForRosterGap(ctx, rd, b.RosterHeadroom())
	if reserveReq.RequiresReserve && b.Available()-delta < reserveReq.MinimumReserve {
		return nil, fault.Precondition(fault.ReasonReserveViolation, "raise would leave less than the reserve required for later rounds").
			With("available", b.Available()).
			With("minimum_reserve", reserveReq.MinimumReserve).
			With("explanation", reserveReq.Explanation)
	}

	now := a.clock.Now()
	activeCount, err := a.repo.PlaceBid(ctx, rd, tb, req.TeamID, delta, req.Amount, now)
	if errors.Is(err, ErrRaceLost) {
		return nil, fault.Conflict(fault.ReasonBidRaceLost, "another bid was accepted first, refresh and retry")
	}
	if errors.Is(err, ErrGuardFailed) {
		return nil, fault.Precondition(fault.ReasonInsufficientBudget, "budget was consumed by a concurrent operation")
	}
	if err != nil {
		return nil, fault.Internal("failed to place tiebreaker bid", err)
	}

	a.logger.Info().
		Str("tiebreaker_id", tb.ID.String()).
		Str("team_id", req.TeamID.String()).
		Int64("amount", req.Amount).
		Int("active_participants", activeCount).
		Msg("tiebreaker bid placed")

	resolved := a.maybeAutoFinalize(ctx, rd, tb, activeCount)
	return &BidReceipt{
		TiebreakerID:       tb.ID,
		TeamID:             req.TeamID,
		Amount:             req.Amount,
		ActiveParticipants: activeCount,
		Resolved:           resolved,
	}, nil
}

// Withdraw removes a team from the tiebreaker. The current leader cannot
// withdraw; they are either outbid or they win. A withdrawal that leaves
// one team standing resolves the tiebreaker immediately.
func (a *App) Withdraw(ctx context.Context, tiebreakerID, teamID uuid.UUID) (*WithdrawReceipt, error) {
	tb, p, err := a.loadOpen(ctx, tiebreakerID, teamID)
	if err != nil {
		return nil, err
	}

	if tb.HighestTeamID != nil && *tb.HighestTeamID == teamID {
		return nil, fault.Precondition(fault.ReasonLeaderCannotWithdraw, "the current leader cannot withdraw")
	}

	rd, err := a.repo.GetRound(ctx, tb.RoundID)
	if err != nil {
		return nil, fault.Internal("failed to load round", err)
	}

	activeCount, err := a.repo.Withdraw(ctx, rd, tb, p, a.clock.Now())
	if errors.Is(err, ErrParticipantNotFound) {
		return nil, fault.Precondition(fault.ReasonParticipantWithdrawn, "team already withdrew from this tiebreaker")
	}
	if err != nil {
		return nil, fault.Internal("failed to withdraw from tiebreaker", err)
	}

	a.logger.Info().
		Str("tiebreaker_id", tb.ID.String()).
		Str("team_id", teamID.String()).
		Int("active_participants", activeCount).
		Msg("team withdrew from tiebreaker")

	resolved := a.maybeAutoFinalize(ctx, rd, tb, activeCount)
	return &WithdrawReceipt{
		TiebreakerID:       tb.ID,
		TeamID:             teamID,
		ActiveParticipants: activeCount,
		Resolved:           resolved,
	}, nil
}

// ForceResolve settles the tiebreaker in favor of the current leader. It is
// the operator's path for expired tiebreakers and for auto-finalize-pending
// recovery.
func (a *App) ForceResolve(ctx context.Context, tiebreakerID uuid.UUID) (*Resolution, error) {
	tb, err := a.getTiebreaker(ctx, tiebreakerID)
	if err != nil {
		return nil, err
	}
	if tb.Status == models.TiebreakerStatusResolved {
		return nil, fault.Precondition(fault.ReasonTiebreakerClosed, "tiebreaker is already resolved")
	}

	winner, err := a.pickWinner(ctx, tb)
	if err != nil {
		return nil, err
	}
	rd, err := a.repo.GetRound(ctx, tb.RoundID)
	if err != nil {
		return nil, fault.Internal("failed to load round", err)
	}
	if err := a.repo.Resolve(ctx, rd, tb, *winner, a.clock.Now()); err != nil {
		return nil, fault.Internal("failed to resolve tiebreaker", err)
	}

	a.logger.Info().
		Str("tiebreaker_id", tb.ID.String()).
		Str("winner_team_id", winner.TeamID.String()).
		Int64("amount", winner.CurrentBid).
		Msg("tiebreaker force-resolved")
	return &Resolution{
		TiebreakerID: tb.ID,
		RoundID:      tb.RoundID,
		PlayerID:     tb.PlayerID,
		WinnerTeamID: winner.TeamID,
		Amount:       winner.CurrentBid,
	}, nil
}

// GetState returns the tiebreaker, its participants, and the bid history.
func (a *App) GetState(ctx context.Context, tiebreakerID uuid.UUID) (*State, error) {
	tb, err := a.getTiebreaker(ctx, tiebreakerID)
	if err != nil {
		return nil, err
	}
	participants, err := a.repo.ListParticipants(ctx, tiebreakerID)
	if err != nil {
		return nil, fault.Internal("failed to load participants", err)
	}
	history, err := a.repo.ListBidHistory(ctx, tiebreakerID)
	if err != nil {
		return nil, fault.Internal("failed to load bid history", err)
	}
	return &State{Tiebreaker: *tb, Participants: participants, History: history}, nil
}

func (a *App) getTiebreaker(ctx context.Context, id uuid.UUID) (*models.Tiebreaker, error) {
	tb, err := a.repo.GetTiebreaker(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fault.Precondition(fault.ReasonTiebreakerNotFound, "tiebreaker does not exist")
	}
	if err != nil {
		return nil, fault.Internal("failed to load tiebreaker", err)
	}
	return tb, nil
}

// loadOpen fetches the tiebreaker and the caller's participant row, and
// rejects anything that can no longer take team actions.
func (a *App) loadOpen(ctx context.Context, tiebreakerID, teamID uuid.UUID) (*models.Tiebreaker, *models.TiebreakerParticipant, error) {
	tb, err := a.getTiebreaker(ctx, tiebreakerID)
	if err != nil {
		return nil, nil, err
	}
	if !tb.Open() {
		return nil, nil, fault.Precondition(fault.ReasonTiebreakerClosed, "tiebreaker is not open").
			With("status", string(tb.Status))
	}
	if tb.Expired(a.clock.Now()) {
		return nil, nil, fault.Timeout(fault.ReasonDeadlineExceeded, "tiebreaker deadline has passed, awaiting operator resolution").
			With("deadline_at", tb.DeadlineAt)
	}

	p, err := a.repo.GetParticipant(ctx, tiebreakerID, teamID)
	if errors.Is(err, ErrParticipantNotFound) {
		return nil, nil, fault.Precondition(fault.ReasonNotParticipant, "team is not part of this tiebreaker")
	}
	if err != nil {
		return nil, nil, fault.Internal("failed to load participant", err)
	}
	if p.Status == models.ParticipantStatusWithdrawn {
		return nil, nil, fault.Precondition(fault.ReasonParticipantWithdrawn, "team has withdrawn from this tiebreaker")
	}
	return tb, p, nil
}

// maybeAutoFinalize resolves the tiebreaker when exactly one active
// participant remains. A transient resolution failure parks the tiebreaker
// as auto-finalize-pending instead of losing the result; the triggering
// operation still succeeds.
func (a *App) maybeAutoFinalize(ctx context.Context, rd *models.Round, tb *models.Tiebreaker, activeCount int) bool {
	if activeCount != 1 {
		return false
	}
	active, err := a.repo.ActiveParticipants(ctx, tb.ID)
	if err != nil || len(active) != 1 {
		a.logger.Error().Err(err).
			Str("tiebreaker_id", tb.ID.String()).
			Msg("failed to load sole active participant for auto-finalize")
		return false
	}
	winner := active[0]

	if err := a.repo.Resolve(ctx, rd, tb, winner, a.clock.Now()); err != nil {
		a.logger.Error().Err(err).
			Str("tiebreaker_id", tb.ID.String()).
			Str("winner_team_id", winner.TeamID.String()).
			Msg("auto-finalization failed, parking for manual recovery")
		if markErr := a.repo.MarkAutoFinalizePending(ctx, tb.ID); markErr != nil {
			a.logger.Error().Err(markErr).
				Str("tiebreaker_id", tb.ID.String()).
				Msg("failed to mark tiebreaker auto-finalize-pending")
		}
		return false
	}

	a.logger.Info().
		Str("tiebreaker_id", tb.ID.String()).
		Str("winner_team_id", winner.TeamID.String()).
		Int64("amount", winner.CurrentBid).
		Msg("tiebreaker auto-finalized")
	return true
}

// pickWinner chooses who a forced resolution favors: the current leader,
// or the sole remaining active team when nobody ever bid.
func (a *App) pickWinner(ctx context.Context, tb *models.Tiebreaker) (*models.TiebreakerParticipant, error) {
	if tb.HighestTeamID != nil {
		p, err := a.repo.GetParticipant(ctx, tb.ID, *tb.HighestTeamID)
		if err != nil {
			return nil, fault.Internal("failed to load leading participant", err)
		}
		return p, nil
	}
	active, err := a.repo.ActiveParticipants(ctx, tb.ID)
	if err != nil {
		return nil, fault.Internal("failed to load active participants", err)
	}
	if len(active) != 1 {
		return nil, fault.Precondition(fault.ReasonTiebreakerUnresolved, "no current leader to resolve in favor of").
			With("active_participants", len(active))
	}
	return &active[0], nil
}
