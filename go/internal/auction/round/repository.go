package round

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leagueforge/auctioneer/go/internal/models"
	"github.com/leagueforge/auctioneer/go/internal/sqlutil"
)

// ErrNotFound is returned when a round does not exist.
var ErrNotFound = errors.New("round not found")

// Queries holds the round SQL. Status transitions are conditional updates
// so that exactly one caller can win any given transition.
type Queries struct{}

func NewQueries() *Queries {
	return &Queries{}
}

const roundColumns = `id, season_id, pool, status, base_price, required_bids, starts_at, ends_at, finalization_mode, created_at, updated_at`

func scanRound(row interface{ Scan(...any) error }) (*models.Round, error) {
	var r models.Round
	err := row.Scan(&r.ID, &r.SeasonID, &r.Pool, &r.Status, &r.BasePrice, &r.RequiredBids,
		&r.StartsAt, &r.EndsAt, &r.FinalizationMode, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan round: %w", err)
	}
	return &r, nil
}

func (q *Queries) Get(ctx context.Context, db sqlutil.DBTX, id uuid.UUID) (*models.Round, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE id = $1`, id)
	return scanRound(row)
}

func (q *Queries) Create(ctx context.Context, db sqlutil.DBTX, req CreateRoundRequest) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO rounds (id, season_id, pool, status, base_price, required_bids, starts_at, ends_at, finalization_mode, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())`,
		req.ID, req.SeasonID, string(req.Pool), string(models.RoundStatusScheduled),
		req.BasePrice, req.RequiredBids, req.StartsAt, req.EndsAt, string(req.FinalizationMode),
	)
	if err != nil {
		return fmt.Errorf("failed to create round: %w", err)
	}
	return nil
}

// AddPlayers registers the players up for bidding in a round.
func (q *Queries) AddPlayers(ctx context.Context, db sqlutil.DBTX, roundID uuid.UUID, playerIDs []uuid.UUID) error {
	for _, playerID := range playerIDs {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO round_players (round_id, player_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			roundID, playerID,
		); err != nil {
			return fmt.Errorf("failed to add player %s to round: %w", playerID, err)
		}
	}
	return nil
}

// PlayerInRound reports whether a player is up for bidding in the round.
func (q *Queries) PlayerInRound(ctx context.Context, db sqlutil.DBTX, roundID, playerID uuid.UUID) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM round_players WHERE round_id = $1 AND player_id = $2)`,
		roundID, playerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check round player: %w", err)
	}
	return exists, nil
}

// Activate flips a scheduled round to active once its window opens.
func (q *Queries) Activate(ctx context.Context, db sqlutil.DBTX, id uuid.UUID, now time.Time) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE rounds SET status = $3, updated_at = now()
		 WHERE id = $1 AND status = $2 AND starts_at <= $4`,
		id, string(models.RoundStatusScheduled), string(models.RoundStatusActive), now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to activate round: %w", err)
	}
	return affected(res), nil
}

// CloseExpired lazily closes an active round whose window has ended.
// Returns true when this caller performed the close.
func (q *Queries) CloseExpired(ctx context.Context, db sqlutil.DBTX, id uuid.UUID, now time.Time) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE rounds SET status = $3, updated_at = now()
		 WHERE id = $1 AND status = $2 AND ends_at <= $4`,
		id, string(models.RoundStatusActive), string(models.RoundStatusClosed), now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to close expired round: %w", err)
	}
	return affected(res), nil
}

// ClaimFinalization is the single-winner claim step: only one caller can
// move the round into FINALIZING.
func (q *Queries) ClaimFinalization(ctx context.Context, db sqlutil.DBTX, id uuid.UUID) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE rounds SET status = $2, updated_at = now()
		 WHERE id = $1 AND status = ANY($3)`,
		id, string(models.RoundStatusFinalizing),
		[]string{
			string(models.RoundStatusActive),
			string(models.RoundStatusClosed),
			string(models.RoundStatusTiebreakPending),
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim finalization: %w", err)
	}
	return affected(res), nil
}

// SetStatus moves a round out of FINALIZING to the given terminal/pending
// status. Only the finalization claim holder calls this.
func (q *Queries) SetStatus(ctx context.Context, db sqlutil.DBTX, id uuid.UUID, from, to models.RoundStatus) error {
	res, err := db.ExecContext(ctx,
		`UPDATE rounds SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, string(from), string(to),
	)
	if err != nil {
		return fmt.Errorf("failed to set round status: %w", err)
	}
	if !affected(res) {
		return fmt.Errorf("round %s was not in status %s", id, from)
	}
	return nil
}

// FetchDueForFinalization returns auto-finalize rounds whose window has
// ended, for the expiry sweep. Tiebreak-pending rounds are included so the
// sweep resumes finalization once their tiebreaker resolves.
func (q *Queries) FetchDueForFinalization(ctx context.Context, db sqlutil.DBTX, now time.Time, limit int32) ([]uuid.UUID, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id FROM rounds
		 WHERE status = ANY($1) AND ends_at <= $2 AND finalization_mode = $3
		 ORDER BY ends_at
		 LIMIT $4`,
		[]string{
			string(models.RoundStatusActive),
			string(models.RoundStatusClosed),
			string(models.RoundStatusTiebreakPending),
		},
		now, string(models.FinalizationModeAuto), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rounds due for finalization: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan round id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rounds: %w", err)
	}
	return ids, nil
}

// ScheduledAfter returns rounds in the same season and pool that have not
// yet opened, ordered by start time. The reserve calculator sums their
// minimum-bid obligations.
func (q *Queries) ScheduledAfter(ctx context.Context, db sqlutil.DBTX, seasonID uuid.UUID, pool models.CurrencyPool, excludeRoundID uuid.UUID) ([]models.Round, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+roundColumns+` FROM rounds
		 WHERE season_id = $1 AND pool = $2 AND status = $3 AND id <> $4
		 ORDER BY starts_at`,
		seasonID, string(pool), string(models.RoundStatusScheduled), excludeRoundID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scheduled rounds: %w", err)
	}
	defer rows.Close()

	var rounds []models.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scheduled rounds: %w", err)
	}
	return rounds, nil
}

func affected(res sql.Result) bool {
	n, err := res.RowsAffected()
	return err == nil && n > 0
}
