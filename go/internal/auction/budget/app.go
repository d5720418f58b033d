package budget

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/leagueforge/auctioneer/go/internal/auction/fault"
	"github.com/leagueforge/auctioneer/go/internal/models"
)

// ErrNotFound is returned when no budget row exists for the team/season/pool.
var ErrNotFound = errors.New("team budget not found")

// App exposes ledger reads to handlers and collaborators. Mutations happen
// through Queries inside the owning component's transaction.
type App struct {
	db      *sql.DB
	queries *Queries
}

func NewApp(db *sql.DB) *App {
	return &App{
		db:      db,
		queries: NewQueries(),
	}
}

// Queries returns the shared atomic update path.
func (a *App) Queries() *Queries {
	return a.queries
}

// Create registers a fresh ledger row for a team entering a season pool.
func (a *App) Create(ctx context.Context, b models.TeamBudget) error {
	if b.Total < 0 {
		return fault.Validation(fault.ReasonBadInput, "total budget cannot be negative")
	}
	if b.RosterCapacity <= 0 {
		return fault.Validation(fault.ReasonBadInput, "roster capacity must be positive")
	}
	if err := a.queries.Create(ctx, a.db, b); err != nil {
		return fmt.Errorf("failed to create budget for team %s: %w", b.TeamID, err)
	}
	return nil
}

// Get returns the current budget state for a team.
func (a *App) Get(ctx context.Context, teamID, seasonID uuid.UUID, pool models.CurrencyPool) (*models.TeamBudget, error) {
	b, err := a.queries.Get(ctx, a.db, teamID, seasonID, pool)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load budget for team %s: %w", teamID, err)
	}
	return b, nil
}
