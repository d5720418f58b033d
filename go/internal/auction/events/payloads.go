package events

import (
	"time"
)

// Event payload types that are shared between the auction and gateway packages

// Event type names used in outbox rows and gateway envelopes.
const (
	TypeBidPlaced           = "BidPlaced"
	TypeBidWithdrawn        = "BidWithdrawn"
	TypeRoundFinalized      = "RoundFinalized"
	TypeTieDetected         = "TieDetected"
	TypeTiebreakerBidPlaced = "TiebreakerBidPlaced"
	TypeTiebreakerWithdrawn = "TiebreakerWithdrawn"
	TypeTiebreakerResolved  = "TiebreakerResolved"
)

// BidPlacedPayload is the payload for a BidPlaced event.
type BidPlacedPayload struct {
	RoundID        string    `json:"round_id"`
	TeamID         string    `json:"team_id"`
	PlayerID       string    `json:"player_id"`
	Amount         int64     `json:"amount"`
	ResultingCount int       `json:"resulting_count"` // team's open bids in the round
	PlacedAt       time.Time `json:"placed_at"`
}

// BidWithdrawnPayload is the payload for a BidWithdrawn event.
type BidWithdrawnPayload struct {
	RoundID        string    `json:"round_id"`
	TeamID         string    `json:"team_id"`
	PlayerID       string    `json:"player_id"`
	ResultingCount int       `json:"resulting_count"`
	WithdrawnAt    time.Time `json:"withdrawn_at"`
}

// AllocationSummary is one allocation inside a RoundFinalized payload.
type AllocationSummary struct {
	TeamID   string `json:"team_id"`
	PlayerID string `json:"player_id"`
	Price    int64  `json:"price"`
	Phase    string `json:"phase"`
}

// RoundFinalizedPayload is the payload for a RoundFinalized event.
type RoundFinalizedPayload struct {
	RoundID        string              `json:"round_id"`
	Allocations    []AllocationSummary `json:"allocations"`
	ResultingCount int                 `json:"resulting_count"` // total allocations
	FinalizedAt    time.Time           `json:"finalized_at"`
}

// TieDetectedPayload is the payload for a TieDetected event.
type TieDetectedPayload struct {
	RoundID        string    `json:"round_id"`
	TiebreakerID   string    `json:"tiebreaker_id"`
	PlayerID       string    `json:"player_id"`
	TeamIDs        []string  `json:"team_ids"`
	Amount         int64     `json:"amount"`
	ResultingCount int       `json:"resulting_count"` // tied teams
	DeadlineAt     time.Time `json:"deadline_at"`
	DetectedAt     time.Time `json:"detected_at"`
}

// TiebreakerBidPlacedPayload is the payload for a TiebreakerBidPlaced event.
type TiebreakerBidPlacedPayload struct {
	RoundID        string    `json:"round_id"`
	TiebreakerID   string    `json:"tiebreaker_id"`
	TeamID         string    `json:"team_id"`
	Amount         int64     `json:"amount"`
	ResultingCount int       `json:"resulting_count"` // active participants
	PlacedAt       time.Time `json:"placed_at"`
}

// TiebreakerWithdrawnPayload is the payload for a TiebreakerWithdrawn event.
type TiebreakerWithdrawnPayload struct {
	RoundID        string    `json:"round_id"`
	TiebreakerID   string    `json:"tiebreaker_id"`
	TeamID         string    `json:"team_id"`
	ResultingCount int       `json:"resulting_count"` // active participants left
	WithdrawnAt    time.Time `json:"withdrawn_at"`
}

// TiebreakerResolvedPayload is the payload for a TiebreakerResolved event.
type TiebreakerResolvedPayload struct {
	RoundID      string    `json:"round_id"`
	TiebreakerID string    `json:"tiebreaker_id"`
	PlayerID     string    `json:"player_id"`
	WinnerTeamID string    `json:"winner_team_id"`
	Amount       int64     `json:"amount"`
	ResolvedAt   time.Time `json:"resolved_at"`
}
