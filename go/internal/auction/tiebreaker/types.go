package tiebreaker

import (
	"github.com/google/uuid"
	"github.com/leagueforge/auctioneer/go/internal/models"
)

// PlaceBidRequest is one team's raise in a live tiebreaker. Unlike bulk
// rounds, the amount is team-chosen.
type PlaceBidRequest struct {
	TiebreakerID uuid.UUID `json:"tiebreaker_id"`
	TeamID       uuid.UUID `json:"team_id"`
	Amount       int64     `json:"amount"`
}

// BidReceipt confirms an accepted tiebreaker bid.
type BidReceipt struct {
	TiebreakerID       uuid.UUID `json:"tiebreaker_id"`
	TeamID             uuid.UUID `json:"team_id"`
	Amount             int64     `json:"amount"`
	ActiveParticipants int       `json:"active_participants"`
	// Resolved is true when this bid left one team standing and the
	// tiebreaker auto-finalized.
	Resolved bool `json:"resolved"`
}

// WithdrawReceipt confirms a withdrawal.
type WithdrawReceipt struct {
	TiebreakerID       uuid.UUID `json:"tiebreaker_id"`
	TeamID             uuid.UUID `json:"team_id"`
	ActiveParticipants int       `json:"active_participants"`
	Resolved           bool      `json:"resolved"`
}

// Resolution reports the winner of a resolved tiebreaker.
type Resolution struct {
	TiebreakerID uuid.UUID `json:"tiebreaker_id"`
	RoundID      uuid.UUID `json:"round_id"`
	PlayerID     uuid.UUID `json:"player_id"`
	WinnerTeamID uuid.UUID `json:"winner_team_id"`
	Amount       int64     `json:"amount"`
}

// State is the full tiebreaker view served to clients.
type State struct {
	Tiebreaker   models.Tiebreaker              `json:"tiebreaker"`
	Participants []models.TiebreakerParticipant `json:"participants"`
	History      []models.TiebreakerBidRecord   `json:"history"`
}
