package round

import (
	"time"

	"github.com/google/uuid"
	"github.com/leagueforge/auctioneer/go/internal/models"
)

// CreateRoundRequest describes a new bidding round. Rounds are created by
// the season scheduling collaborator.
type CreateRoundRequest struct {
	ID               uuid.UUID               `json:"id"`
	SeasonID         uuid.UUID               `json:"season_id"`
	Pool             models.CurrencyPool     `json:"pool"`
	BasePrice        int64                   `json:"base_price"`
	RequiredBids     int                     `json:"required_bids"`
	StartsAt         time.Time               `json:"starts_at"`
	EndsAt           time.Time               `json:"ends_at"`
	FinalizationMode models.FinalizationMode `json:"finalization_mode"`
	PlayerIDs        []uuid.UUID             `json:"player_ids"`
}

// ClaimResult reports the outcome of a finalization claim attempt.
type ClaimResult string

const (
	ClaimWon              ClaimResult = "CLAIM_WON"
	ClaimAlreadyCompleted ClaimResult = "ALREADY_COMPLETED"
	ClaimInProgress       ClaimResult = "IN_PROGRESS"
	ClaimNotFinalizable   ClaimResult = "NOT_FINALIZABLE"
)
