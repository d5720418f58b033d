package models

import (
	"time"

	"github.com/google/uuid"
)

// TiebreakerStatus defines the lifecycle status of a tiebreaker auction.
type TiebreakerStatus string

const (
	TiebreakerStatusActive              TiebreakerStatus = "ACTIVE"
	TiebreakerStatusOngoing             TiebreakerStatus = "ONGOING"
	TiebreakerStatusResolved            TiebreakerStatus = "RESOLVED"
	TiebreakerStatusAutoFinalizePending TiebreakerStatus = "AUTO_FINALIZE_PENDING"
)

// ParticipantStatus defines a team's standing within a tiebreaker.
type ParticipantStatus string

const (
	ParticipantStatusActive    ParticipantStatus = "ACTIVE"
	ParticipantStatusWithdrawn ParticipantStatus = "WITHDRAWN"
)

// Tiebreaker is a live ascending sub-auction for exactly one contested
// player among the teams that tied for the top bid. The highest amount is
// monotonically non-decreasing; once the first bid lands there is always
// exactly one current leader.
type Tiebreaker struct {
	ID             uuid.UUID        `json:"id"`
	RoundID        uuid.UUID        `json:"round_id"`
	PlayerID       uuid.UUID        `json:"player_id"`
	Status         TiebreakerStatus `json:"status"`
	HighestAmount  int64            `json:"highest_amount"`
	HighestTeamID  *uuid.UUID       `json:"highest_team_id,omitempty"`
	DeadlineAt     time.Time        `json:"deadline_at"`
	LastActivityAt time.Time        `json:"last_activity_at"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Open reports whether the tiebreaker still accepts bids (deadline aside).
func (t *Tiebreaker) Open() bool {
	return t.Status == TiebreakerStatusActive || t.Status == TiebreakerStatusOngoing
}

// Expired reports whether the hard deadline has elapsed at the given time.
func (t *Tiebreaker) Expired(now time.Time) bool {
	return now.After(t.DeadlineAt)
}

// TiebreakerParticipant is a team's standing within one tiebreaker.
// A withdrawn team cannot re-enter.
type TiebreakerParticipant struct {
	TiebreakerID uuid.UUID         `json:"tiebreaker_id"`
	TeamID       uuid.UUID         `json:"team_id"`
	Status       ParticipantStatus `json:"status"`
	CurrentBid   int64             `json:"current_bid"`
}

// TiebreakerBidRecord is one accepted tiebreaker bid in the append-only
// audit history.
type TiebreakerBidRecord struct {
	ID           uuid.UUID `json:"id"`
	TiebreakerID uuid.UUID `json:"tiebreaker_id"`
	TeamID       uuid.UUID `json:"team_id"`
	Amount       int64     `json:"amount"`
	PlacedAt     time.Time `json:"placed_at"`
}
