package allocation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/leagueforge/auctioneer/go/internal/models"
	"github.com/leagueforge/auctioneer/go/internal/sqlutil"
)

// Queries holds the allocation SQL.
type Queries struct{}

func NewQueries() *Queries {
	return &Queries{}
}

const allocationColumns = `id, round_id, team_id, player_id, price, phase, allocated_at`

// Insert records a final assignment. The unique index on (round_id,
// player_id) backs the player-allocated-once invariant.
func (q *Queries) Insert(ctx context.Context, db sqlutil.DBTX, a models.Allocation) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO allocations (`+allocationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.RoundID, a.TeamID, a.PlayerID, a.Price, string(a.Phase), a.AllocatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert allocation: %w", err)
	}
	return nil
}

// ListByRound returns the round's allocations in commit order.
func (q *Queries) ListByRound(ctx context.Context, db sqlutil.DBTX, roundID uuid.UUID) ([]models.Allocation, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+allocationColumns+` FROM allocations WHERE round_id = $1 ORDER BY allocated_at, id`,
		roundID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer rows.Close()

	var allocations []models.Allocation
	for rows.Next() {
		var a models.Allocation
		if err := rows.Scan(&a.ID, &a.RoundID, &a.TeamID, &a.PlayerID, &a.Price, &a.Phase, &a.AllocatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocations = append(allocations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate allocations: %w", err)
	}
	return allocations, nil
}
