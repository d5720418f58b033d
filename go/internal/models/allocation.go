package models

import (
	"time"

	"github.com/google/uuid"
)

// AllocationPhase records which part of finalization produced an allocation.
type AllocationPhase string

const (
	AllocationPhaseComplete   AllocationPhase = "COMPLETE"   // phase 1, complete teams
	AllocationPhaseIncomplete AllocationPhase = "INCOMPLETE" // phase 2, average-priced
	AllocationPhaseTiebreak   AllocationPhase = "TIEBREAK"   // tiebreaker resolution
)

// Allocation is a final (team, player, price) assignment produced by round
// finalization. A player appears at most once per round.
type Allocation struct {
	ID          uuid.UUID       `json:"id"`
	RoundID     uuid.UUID       `json:"round_id"`
	TeamID      uuid.UUID       `json:"team_id"`
	PlayerID    uuid.UUID       `json:"player_id"`
	Price       int64           `json:"price"`
	Phase       AllocationPhase `json:"phase"`
	AllocatedAt time.Time       `json:"allocated_at"`
}
