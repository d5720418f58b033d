package gateway

import (
	"encoding/json"
	"time"

	"github.com/leagueforge/auctioneer/go/internal/auction/events"
)

// AuctionEvent is the frame pushed to websocket clients watching a round.
// Data carries the original outbox payload untouched.
type AuctionEvent struct {
	ID        string          `json:"id"`
	RoundID   string          `json:"round_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// knownEventTypes guards against forwarding frames this gateway version
// does not understand.
var knownEventTypes = map[string]bool{
	events.TypeBidPlaced:           true,
	events.TypeBidWithdrawn:        true,
	events.TypeRoundFinalized:      true,
	events.TypeTieDetected:         true,
	events.TypeTiebreakerBidPlaced: true,
	events.TypeTiebreakerWithdrawn: true,
	events.TypeTiebreakerResolved:  true,
}
