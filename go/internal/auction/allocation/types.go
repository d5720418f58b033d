package allocation

import (
	"time"

	"github.com/google/uuid"
	"github.com/leagueforge/auctioneer/go/internal/models"
)

// FinalizeStatus tells the caller how finalization ended.
type FinalizeStatus string

const (
	// FinalizeCompleted means every allocation committed and the round is done.
	FinalizeCompleted FinalizeStatus = "COMPLETED"
	// FinalizeTiePending means a tie halted processing; a tiebreaker was
	// created and the round waits on its resolution.
	FinalizeTiePending FinalizeStatus = "TIE_PENDING"
	// FinalizeAlreadyDone means another caller finalized the round first.
	FinalizeAlreadyDone FinalizeStatus = "ALREADY_FINALIZED"
)

// TieInfo describes the tiebreaker created when finalization halted.
type TieInfo struct {
	TiebreakerID uuid.UUID   `json:"tiebreaker_id"`
	PlayerID     uuid.UUID   `json:"player_id"`
	TeamIDs      []uuid.UUID `json:"team_ids"`
	Amount       int64       `json:"amount"`
	DeadlineAt   time.Time   `json:"deadline_at"`
}

// FinalizeOutcome is the result of FinalizeRound. Allocations holds the
// round's full allocation set when Status is COMPLETED or ALREADY_FINALIZED.
type FinalizeOutcome struct {
	Status      FinalizeStatus      `json:"status"`
	Allocations []models.Allocation `json:"allocations,omitempty"`
	Tie         *TieInfo            `json:"tie,omitempty"`
}
