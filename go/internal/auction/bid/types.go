package bid

import (
	"github.com/google/uuid"
	"github.com/leagueforge/auctioneer/go/internal/models"
)

// PlaceBidRequest identifies the bid to place. The amount is the round's
// base price; bulk rounds do not take team-chosen amounts.
type PlaceBidRequest struct {
	RoundID  uuid.UUID `json:"round_id"`
	TeamID   uuid.UUID `json:"team_id"`
	PlayerID uuid.UUID `json:"player_id"`
}

// WithdrawBidRequest identifies the bid to withdraw.
type WithdrawBidRequest struct {
	RoundID  uuid.UUID `json:"round_id"`
	TeamID   uuid.UUID `json:"team_id"`
	PlayerID uuid.UUID `json:"player_id"`
}

// Receipt confirms an accepted bid and tells the team where it stands.
type Receipt struct {
	Bid             models.Bid `json:"bid"`
	OpenBids        int        `json:"open_bids"`
	AvailableBudget int64      `json:"available_budget"`
}
