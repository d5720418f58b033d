// Package reserve computes the minimum balance a team must keep
// uncommitted so it can still meet the minimum-bid obligations of rounds
// that have not yet opened. Reserve protection is a soft guarantee: if the
// computation fails, bidding proceeds without it and the failure is logged.
package reserve

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/leagueforge/auctioneer/go/internal/auction/budget"
	"github.com/leagueforge/auctioneer/go/internal/auction/fault"
	"github.com/leagueforge/auctioneer/go/internal/auction/round"
	"github.com/leagueforge/auctioneer/go/internal/models"
	"github.com/rs/zerolog"
)

// Requirement is the reserve the team must keep uncommitted at this point
// in the season's bidding schedule.
type Requirement struct {
	RequiresReserve bool   `json:"requires_reserve"`
	MinimumReserve  int64  `json:"minimum_reserve"`
	Explanation     string `json:"explanation"`
}

// App is the reserve calculator.
type App struct {
	db      *sql.DB
	rounds  *round.Queries
	budgets *budget.Queries
	logger  zerolog.Logger
}

func NewApp(db *sql.DB, rounds *round.Queries, budgets *budget.Queries, logger zerolog.Logger) *App {
	return &App{
		db:      db,
		rounds:  rounds,
		budgets: budgets,
		logger:  logger,
	}
}

// RequiredReserve computes the reserve for a team at the given round.
// Round and team must exist; schedule lookup failures degrade to "no
// reserve enforced" rather than blocking bidding.
func (a *App) RequiredReserve(ctx context.Context, teamID, roundID uuid.UUID) (Requirement, error) {
	r, err := a.rounds.Get(ctx, a.db, roundID)
	if errors.Is(err, round.ErrNotFound) {
		return Requirement{}, fault.Precondition(fault.ReasonRoundNotFound, "round does not exist")
	}
	if err != nil {
		return Requirement{}, err
	}

	b, err := a.budgets.Get(ctx, a.db, teamID, r.SeasonID, r.Pool)
	if errors.Is(err, budget.ErrNotFound) {
		return Requirement{}, fault.Precondition(fault.ReasonInsufficientBudget, "team has no budget in this season and pool")
	}
	if err != nil {
		return Requirement{}, err
	}

	return a.ForRosterGap(ctx, r, b.RosterCapacity-b.RosterSize-b.OpenBids), nil
}

// ForRosterGap computes the reserve given a roster-capacity gap the team
// still has to fill in later rounds. Bid intake passes the gap net of the
// bid being validated.
func (a *App) ForRosterGap(ctx context.Context, r *models.Round, gap int) Requirement {
	if gap <= 0 {
		return Requirement{Explanation: "roster already covered by current holdings and open bids"}
	}

	upcoming, err := a.rounds.ScheduledAfter(ctx, a.db, r.SeasonID, r.Pool, r.ID)
	if err != nil {
		// Soft guarantee: never block bidding on a schedule lookup failure.
		a.logger.Warn().Err(err).
			Str("round_id", r.ID.String()).
			Msg("reserve calculation unavailable, proceeding without reserve check")
		return Requirement{Explanation: "reserve check unavailable"}
	}

	var minimum int64
	remaining := gap
	counted := 0
	for _, future := range upcoming {
		if remaining <= 0 {
			break
		}
		slots := future.RequiredBids
		if slots > remaining {
			slots = remaining
		}
		minimum += int64(slots) * future.BasePrice
		remaining -= slots
		counted++
	}

	if minimum == 0 {
		return Requirement{Explanation: "no upcoming rounds require a reserve"}
	}
	return Requirement{
		RequiresReserve: true,
		MinimumReserve:  minimum,
		Explanation: fmt.Sprintf("%d upcoming round(s) require %d in minimum bids for %d remaining roster slot(s)",
			counted, minimum, gap),
	}
}
