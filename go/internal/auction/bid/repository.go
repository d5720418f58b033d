package bid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/leagueforge/auctioneer/go/internal/models"
	"github.com/leagueforge/auctioneer/go/internal/sqlutil"
)

// ErrDuplicate is returned when a (round, team, player) bid already exists.
var ErrDuplicate = errors.New("bid already exists")

const pgUniqueViolation = "23505"

// Queries holds the bid SQL.
type Queries struct{}

func NewQueries() *Queries {
	return &Queries{}
}

const bidColumns = `id, round_id, team_id, player_id, amount, status, placed_at`

// Insert records a bid. The unique index on (round_id, team_id, player_id)
// enforces the one-bid-per-triple invariant under concurrency.
func (q *Queries) Insert(ctx context.Context, db sqlutil.DBTX, b models.Bid) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO bids (`+bidColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.RoundID, b.TeamID, b.PlayerID, b.Amount, string(b.Status), b.PlacedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// DeleteOpen removes an open bid and returns its amount. Only open bids can
// be withdrawn; finalized bids are immutable.
func (q *Queries) DeleteOpen(ctx context.Context, db sqlutil.DBTX, roundID, teamID, playerID uuid.UUID) (int64, bool, error) {
	var amount int64
	err := db.QueryRowContext(ctx,
		`DELETE FROM bids
		 WHERE round_id = $1 AND team_id = $2 AND player_id = $3 AND status = $4
		 RETURNING amount`,
		roundID, teamID, playerID, string(models.BidStatusOpen),
	).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to delete bid: %w", err)
	}
	return amount, true, nil
}

// ListByRound returns every bid in the round, all statuses. The allocation
// engine needs prior WON/LOST bids to judge team completeness on resume.
func (q *Queries) ListByRound(ctx context.Context, db sqlutil.DBTX, roundID uuid.UUID) ([]models.Bid, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE round_id = $1 ORDER BY placed_at, id`,
		roundID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list round bids: %w", err)
	}
	return collectBids(rows)
}

// ListByRoundTeam returns one team's bids in a round.
func (q *Queries) ListByRoundTeam(ctx context.Context, db sqlutil.DBTX, roundID, teamID uuid.UUID) ([]models.Bid, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE round_id = $1 AND team_id = $2 ORDER BY placed_at, id`,
		roundID, teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list team bids: %w", err)
	}
	return collectBids(rows)
}

// CountOpenForTeam counts a team's open bids in a round.
func (q *Queries) CountOpenForTeam(ctx context.Context, db sqlutil.DBTX, roundID, teamID uuid.UUID) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT count(*) FROM bids WHERE round_id = $1 AND team_id = $2 AND status = $3`,
		roundID, teamID, string(models.BidStatusOpen),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open bids: %w", err)
	}
	return count, nil
}

// HasBid reports whether the team already holds a bid on this player in the
// round, any status. Withdrawn bids are deleted, so a prior withdrawal does
// not block a re-bid.
func (q *Queries) HasBid(ctx context.Context, db sqlutil.DBTX, roundID, teamID, playerID uuid.UUID) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM bids WHERE round_id = $1 AND team_id = $2 AND player_id = $3)`,
		roundID, teamID, playerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check existing bid: %w", err)
	}
	return exists, nil
}

// PlayerAllocated reports whether the player already has an allocation in
// this round.
func (q *Queries) PlayerAllocated(ctx context.Context, db sqlutil.DBTX, roundID, playerID uuid.UUID) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM allocations WHERE round_id = $1 AND player_id = $2)`,
		roundID, playerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check player allocation: %w", err)
	}
	return exists, nil
}

// MarkStatus flips an open bid to WON or LOST during finalization.
func (q *Queries) MarkStatus(ctx context.Context, db sqlutil.DBTX, roundID, teamID, playerID uuid.UUID, to models.BidStatus) error {
	res, err := db.ExecContext(ctx,
		`UPDATE bids SET status = $5
		 WHERE round_id = $1 AND team_id = $2 AND player_id = $3 AND status = $4`,
		roundID, teamID, playerID, string(models.BidStatusOpen), string(to),
	)
	if err != nil {
		return fmt.Errorf("failed to mark bid %s: %w", to, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("no open bid to mark %s for round=%s team=%s player=%s", to, roundID, teamID, playerID)
	}
	return nil
}

func collectBids(rows *sql.Rows) ([]models.Bid, error) {
	defer rows.Close()
	var bids []models.Bid
	for rows.Next() {
		var b models.Bid
		if err := rows.Scan(&b.ID, &b.RoundID, &b.TeamID, &b.PlayerID, &b.Amount, &b.Status, &b.PlacedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bids: %w", err)
	}
	return bids, nil
}
