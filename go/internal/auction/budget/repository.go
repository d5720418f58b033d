package budget

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/leagueforge/auctioneer/go/internal/models"
	"github.com/leagueforge/auctioneer/go/internal/sqlutil"
)

// Queries is the single atomic update path for team money and roster
// counters. Every component that changes a team's available budget goes
// through these statements; guards live in the WHERE clause so concurrent
// callers can never overdraw, regardless of interleaving.
type Queries struct{}

func NewQueries() *Queries {
	return &Queries{}
}

// Get fetches the budget state for one team, season, and pool.
func (q *Queries) Get(ctx context.Context, db sqlutil.DBTX, teamID, seasonID uuid.UUID, pool models.CurrencyPool) (*models.TeamBudget, error) {
	var b models.TeamBudget
	err := db.QueryRowContext(ctx,
		`SELECT team_id, season_id, pool, total, spent, reserved, roster_size, roster_capacity, open_bids
		 FROM team_budgets
		 WHERE team_id = $1 AND season_id = $2 AND pool = $3`,
		teamID, seasonID, string(pool),
	).Scan(&b.TeamID, &b.SeasonID, &b.Pool, &b.Total, &b.Spent, &b.Reserved, &b.RosterSize, &b.RosterCapacity, &b.OpenBids)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team budget: %w", err)
	}
	return &b, nil
}

// Create inserts a fresh budget row. Used by season setup and tests.
func (q *Queries) Create(ctx context.Context, db sqlutil.DBTX, b models.TeamBudget) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO team_budgets (team_id, season_id, pool, total, spent, reserved, roster_size, roster_capacity, open_bids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.TeamID, b.SeasonID, string(b.Pool), b.Total, b.Spent, b.Reserved, b.RosterSize, b.RosterCapacity, b.OpenBids,
	)
	if err != nil {
		return fmt.Errorf("failed to create team budget: %w", err)
	}
	return nil
}

// Reserve places a hold for a new open bid: reserved += amount and
// open_bids += 1, guarded by both the budget and roster invariants.
// Returns false when either guard would be violated.
func (q *Queries) Reserve(ctx context.Context, db sqlutil.DBTX, teamID, seasonID uuid.UUID, pool models.CurrencyPool, amount int64) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE team_budgets
		 SET reserved = reserved + $4, open_bids = open_bids + 1
		 WHERE team_id = $1 AND season_id = $2 AND pool = $3
		   AND spent + reserved + $4 <= total
		   AND roster_size + open_bids + 1 <= roster_capacity`,
		teamID, seasonID, string(pool), amount,
	)
	if err != nil {
		return false, fmt.Errorf("failed to reserve budget: %w", err)
	}
	return affected(res), nil
}

// AdjustReserve grows (or shrinks) an existing hold without touching the
// open-bid counter. Tiebreaker raises use this to track the contested bid's
// committed amount. Returns false when the budget guard would be violated.
func (q *Queries) AdjustReserve(ctx context.Context, db sqlutil.DBTX, teamID, seasonID uuid.UUID, pool models.CurrencyPool, delta int64) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE team_budgets
		 SET reserved = reserved + $4
		 WHERE team_id = $1 AND season_id = $2 AND pool = $3
		   AND spent + reserved + $4 <= total
		   AND reserved + $4 >= 0`,
		teamID, seasonID, string(pool), delta,
	)
	if err != nil {
		return false, fmt.Errorf("failed to adjust reservation: %w", err)
	}
	return affected(res), nil
}

// Release drops a hold when a bid is withdrawn or lost: reserved -= amount
// and open_bids -= 1.
func (q *Queries) Release(ctx context.Context, db sqlutil.DBTX, teamID, seasonID uuid.UUID, pool models.CurrencyPool, amount int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE team_budgets
		 SET reserved = reserved - $4, open_bids = open_bids - 1
		 WHERE team_id = $1 AND season_id = $2 AND pool = $3
		   AND reserved >= $4 AND open_bids > 0`,
		teamID, seasonID, string(pool), amount,
	)
	if err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	if !affected(res) {
		return fmt.Errorf("release of %d found no matching reservation for team %s", amount, teamID)
	}
	return nil
}

// CommitSpend converts a hold into a purchase at the allocation price,
// which may differ from the reserved amount (phase-2 average pricing).
// Returns false when the price would break the budget invariant.
func (q *Queries) CommitSpend(ctx context.Context, db sqlutil.DBTX, teamID, seasonID uuid.UUID, pool models.CurrencyPool, reservedAmount, price int64) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE team_budgets
		 SET spent = spent + $5,
		     reserved = reserved - $4,
		     open_bids = open_bids - 1,
		     roster_size = roster_size + 1
		 WHERE team_id = $1 AND season_id = $2 AND pool = $3
		   AND reserved >= $4 AND open_bids > 0
		   AND spent + $5 + reserved - $4 <= total
		   AND roster_size + 1 <= roster_capacity`,
		teamID, seasonID, string(pool), reservedAmount, price,
	)
	if err != nil {
		return false, fmt.Errorf("failed to commit spend: %w", err)
	}
	return affected(res), nil
}

func affected(res sql.Result) bool {
	n, err := res.RowsAffected()
	return err == nil && n > 0
}
