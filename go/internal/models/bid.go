package models

import (
	"time"

	"github.com/google/uuid"
)

// BidStatus tracks what happened to a bid once its round was finalized.
type BidStatus string

const (
	BidStatusOpen BidStatus = "OPEN"
	BidStatusWon  BidStatus = "WON"
	BidStatusLost BidStatus = "LOST"
)

// Bid is one team's claim on one player within a round. At most one bid
// exists per (round, team, player) triple. The amount is fixed at the
// round's base price for bulk rounds; tiebreaker bids are team-chosen and
// tracked separately on the tiebreaker aggregate.
type Bid struct {
	ID       uuid.UUID `json:"id"`
	RoundID  uuid.UUID `json:"round_id"`
	TeamID   uuid.UUID `json:"team_id"`
	PlayerID uuid.UUID `json:"player_id"`
	Amount   int64     `json:"amount"`
	Status   BidStatus `json:"status"`
	PlacedAt time.Time `json:"placed_at"`
}
