package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is a staged change notification awaiting best-effort delivery.
// Rows are written in the same transaction as the state change they
// describe, so delivery can never observe a write that was rolled back.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	RoundID   uuid.UUID       `json:"round_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}
