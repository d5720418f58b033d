package tiebreaker

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

var (
	// ErrNotFound is returned when a tiebreaker does not exist.
	ErrNotFound = errors.New("tiebreaker not found")
	// ErrParticipantNotFound is returned when a team is not part of a
	// tiebreaker.
	ErrParticipantNotFound = errors.New("tiebreaker participant not found")
)

// Queries holds the tiebreaker SQL. The leader fields are only ever written
// through the conditional update in CompareAndSetLeader, so the stored
// highest bid is never stale relative to accepted bids.
type Queries struct{}

func NewQueries() *Queries {
	return &Queries{}
}

const tiebreakerColumns = `id, round_id, player_id, status, highest_amount, highest_team_id, deadline_at, last_activity_at, created_at`

func scanTiebreaker(row interface{ Scan(...any) error }) (*models.Tiebreaker, error) {
	var t models.Tiebreaker
	var leader uuid.NullUUID
	err := row.Scan(&t.ID, &t.RoundID, &t.PlayerID, &t.Status, &t.HighestAmount,
		&leader, &t.DeadlineAt, &t.LastActivityAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan tiebreaker: %w", err)
	}
	t.HighestTeamID = sqlutil.FromNullUUID(leader)
	return &t, nil
}

func (q *Queries) Get(ctx context.Context, db sqlutil.DBTX, id uuid.UUID) (*models.Tiebreaker, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+tiebreakerColumns+` FROM tiebreakers WHERE id = $1`, id)
	return scanTiebreaker(row)
}

func (q *Queries) Insert(ctx context.Context, db sqlutil.DBTX, t models.Tiebreaker) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO tiebreakers (`+tiebreakerColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.RoundID, t.PlayerID, string(t.Status), t.HighestAmount,
		sqlutil.ToNullUUID(t.HighestTeamID), t.DeadlineAt, t.LastActivityAt, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tiebreaker: %w", err)
	}
	return nil
}

func (q *Queries) InsertParticipant(ctx context.Context, db sqlutil.DBTX, p models.TiebreakerParticipant) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO tiebreaker_participants (tiebreaker_id, team_id, status, current_bid)
		 VALUES ($1, $2, $3, $4)`,
		p.TiebreakerID, p.TeamID, string(p.Status), p.CurrentBid,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tiebreaker participant: %w", err)
	}
	return nil
}

func (q *Queries) GetParticipant(ctx context.Context, db sqlutil.DBTX, tiebreakerID, teamID uuid.UUID) (*models.TiebreakerParticipant, error) {
	var p models.TiebreakerParticipant
	err := db.QueryRowContext(ctx,
		`SELECT tiebreaker_id, team_id, status, current_bid
		 FROM tiebreaker_participants
		 WHERE tiebreaker_id = $1 AND team_id = $2`,
		tiebreakerID, teamID,
	).Scan(&p.TiebreakerID, &p.TeamID, &p.Status, &p.CurrentBid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tiebreaker participant: %w", err)
	}
	return &p, nil
}

// GetParticipantForUpdate reads the participant row with a row lock, so the
// caller's transaction sees a current_bid no concurrent raise can move.
func (q *Queries) GetParticipantForUpdate(ctx context.Context, db sqlutil.DBTX, tiebreakerID, teamID uuid.UUID) (*models.TiebreakerParticipant, error) {
	var p models.TiebreakerParticipant
	err := db.QueryRowContext(ctx,
		`SELECT tiebreaker_id, team_id, status, current_bid
		 FROM tiebreaker_participants
		 WHERE tiebreaker_id = $1 AND team_id = $2
		 FOR UPDATE`,
		tiebreakerID, teamID,
	).Scan(&p.TiebreakerID, &p.TeamID, &p.Status, &p.CurrentBid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock tiebreaker participant: %w", err)
	}
	return &p, nil
}

func (q *Queries) ListParticipants(ctx context.Context, db sqlutil.DBTX, tiebreakerID uuid.UUID) ([]models.TiebreakerParticipant, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT tiebreaker_id, team_id, status, current_bid
		 FROM tiebreaker_participants
		 WHERE tiebreaker_id = $1
		 ORDER BY team_id`,
		tiebreakerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiebreaker participants: %w", err)
	}
	defer rows.Close()

	var participants []models.TiebreakerParticipant
	for rows.Next() {
		var p models.TiebreakerParticipant
		if err := rows.Scan(&p.TiebreakerID, &p.TeamID, &p.Status, &p.CurrentBid); err != nil {
			return nil, fmt.Errorf("failed to scan tiebreaker participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tiebreaker participants: %w", err)
	}
	return participants, nil
}

// ActiveParticipants returns the teams still standing.
func (q *Queries) ActiveParticipants(ctx context.Context, db sqlutil.DBTX, tiebreakerID uuid.UUID) ([]models.TiebreakerParticipant, error) {
	all, err := q.ListParticipants(ctx, db, tiebreakerID)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, p := range all {
		if p.Status == models.ParticipantStatusActive {
			active = append(active, p)
		}
	}
	return active, nil
}

// CompareAndSetLeader installs a new current highest bid. The write succeeds
// only while the tiebreaker is open and the stored highest is still below
// amount; a false return means another bid won the race and the caller
// should refresh and retry. A leader raising their own bid passes the same
// guard because their previous bid is the stored highest.
func (q *Queries) CompareAndSetLeader(ctx context.Context, db sqlutil.DBTX, id, teamID uuid.UUID, amount int64, now time.Time) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE tiebreakers
		 SET highest_amount = $2, highest_team_id = $3, last_activity_at = $4, status = $5
		 WHERE id = $1 AND status = ANY($6) AND highest_amount < $2`,
		id, amount, teamID, now, string(models.TiebreakerStatusOngoing),
		[]string{string(models.TiebreakerStatusActive), string(models.TiebreakerStatusOngoing)},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update tiebreaker leader: %w", err)
	}
	return affected(res), nil
}

// SetParticipantBid records a team's committed amount after an accepted bid.
func (q *Queries) SetParticipantBid(ctx context.Context, db sqlutil.DBTX, tiebreakerID, teamID uuid.UUID, amount int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE tiebreaker_participants SET current_bid = $3
		 WHERE tiebreaker_id = $1 AND team_id = $2 AND status = $4`,
		tiebreakerID, teamID, amount, string(models.ParticipantStatusActive),
	)
	if err != nil {
		return fmt.Errorf("failed to set participant bid: %w", err)
	}
	if !affected(res) {
		return ErrParticipantNotFound
	}
	return nil
}

// WithdrawParticipant flips an active participant to withdrawn. Returns
// false when the team already withdrew or is not a participant.
func (q *Queries) WithdrawParticipant(ctx context.Context, db sqlutil.DBTX, tiebreakerID, teamID uuid.UUID) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE tiebreaker_participants SET status = $3
		 WHERE tiebreaker_id = $1 AND team_id = $2 AND status = $4`,
		tiebreakerID, teamID, string(models.ParticipantStatusWithdrawn), string(models.ParticipantStatusActive),
	)
	if err != nil {
		return false, fmt.Errorf("failed to withdraw participant: %w", err)
	}
	return affected(res), nil
}

func (q *Queries) CountActive(ctx context.Context, db sqlutil.DBTX, tiebreakerID uuid.UUID) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT count(*) FROM tiebreaker_participants
		 WHERE tiebreaker_id = $1 AND status = $2`,
		tiebreakerID, string(models.ParticipantStatusActive),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active participants: %w", err)
	}
	return count, nil
}

// InsertBidRecord appends to the audit history of accepted bids.
func (q *Queries) InsertBidRecord(ctx context.Context, db sqlutil.DBTX, rec models.TiebreakerBidRecord) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO tiebreaker_bids (id, tiebreaker_id, team_id, amount, placed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.TiebreakerID, rec.TeamID, rec.Amount, rec.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tiebreaker bid record: %w", err)
	}
	return nil
}

func (q *Queries) ListBidHistory(ctx context.Context, db sqlutil.DBTX, tiebreakerID uuid.UUID) ([]models.TiebreakerBidRecord, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, tiebreaker_id, team_id, amount, placed_at
		 FROM tiebreaker_bids
		 WHERE tiebreaker_id = $1
		 ORDER BY placed_at, id`,
		tiebreakerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiebreaker bids: %w", err)
	}
	defer rows.Close()

	var records []models.TiebreakerBidRecord
	for rows.Next() {
		var rec models.TiebreakerBidRecord
		if err := rows.Scan(&rec.ID, &rec.TiebreakerID, &rec.TeamID, &rec.Amount, &rec.PlacedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tiebreaker bid: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tiebreaker bids: %w", err)
	}
	return records, nil
}

// SetStatus moves the tiebreaker between lifecycle states, conditional on
// the current state so only one caller wins any transition.
func (q *Queries) SetStatus(ctx context.Context, db sqlutil.DBTX, id uuid.UUID, from []models.TiebreakerStatus, to models.TiebreakerStatus) (bool, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}
	res, err := db.ExecContext(ctx,
		`UPDATE tiebreakers SET status = $2 WHERE id = $1 AND status = ANY($3)`,
		id, string(to), fromStrs,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set tiebreaker status: %w", err)
	}
	return affected(res), nil
}

// CountUnresolvedForRound counts tiebreakers in the round that have not yet
// resolved. Finalization cannot resume while any remain.
func (q *Queries) CountUnresolvedForRound(ctx context.Context, db sqlutil.DBTX, roundID uuid.UUID) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT count(*) FROM tiebreakers WHERE round_id = $1 AND status <> $2`,
		roundID, string(models.TiebreakerStatusResolved),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unresolved tiebreakers: %w", err)
	}
	return count, nil
}

func affected(res sql.Result) bool {
	n, err := res.RowsAffected()
	return err == nil && n > 0
}
