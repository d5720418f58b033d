package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/leagueforge/auctioneer/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

// Queries holds the outbox SQL. Methods take a DBTX so inserts can join the
// transaction of the state change they announce.
type Queries struct{}

func NewQueries() *Queries {
	return &Queries{}
}

// Insert stages an event. payload must be JSON.
func (q *Queries) Insert(ctx context.Context, db sqlutil.DBTX, roundID uuid.UUID, eventType string, payload []byte) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO outbox_events (id, round_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, $4, now())`,
		uuid.New(), roundID, eventType, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s outbox event: %w", eventType, err)
	}
	return nil
}

// InsertJSON marshals payload and stages it.
func (q *Queries) InsertJSON(ctx context.Context, db sqlutil.DBTX, roundID uuid.UUID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return q.Insert(ctx, db, roundID, eventType, data)
}

// FetchUnsent returns up to limit unsent events, locking the rows so
// concurrent workers skip them.
func (q *Queries) FetchUnsent(ctx context.Context, db sqlutil.DBTX, limit int32) ([]Event, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, round_id, event_type, payload, created_at
		 FROM outbox_events
		 WHERE sent_at IS NULL
		 ORDER BY created_at
		 LIMIT $1
		 FOR UPDATE SKIP LOCKED`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var payload pqtype.NullRawMessage
		if err := rows.Scan(&e.ID, &e.RoundID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		if payload.Valid {
			e.Payload = payload.RawMessage
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox events: %w", err)
	}
	return events, nil
}

// MarkSent stamps the given events as delivered.
func (q *Queries) MarkSent(ctx context.Context, db sqlutil.DBTX, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.ExecContext(ctx,
		`UPDATE outbox_events SET sent_at = now() WHERE id = ANY($1::uuid[])`,
		uuidArray(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox events as sent: %w", err)
	}
	return nil
}

func uuidArray(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
