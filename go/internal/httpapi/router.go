package httpapi

import (
	"database/sql"
	"net/http"

	"github.com/leagueforge/auctioneer/go/internal/gateway"
)

// NewRouter wires the operation surface onto a ServeMux.
func NewRouter(h *Handler, ws *gateway.Handler, db *sql.DB, cm *gateway.ConnectionManager) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /rounds", h.CreateRound)
	mux.HandleFunc("GET /rounds/{roundID}", h.GetRound)
	mux.HandleFunc("POST /rounds/{roundID}/bids", h.PlaceBid)
	mux.HandleFunc("DELETE /rounds/{roundID}/bids/{playerID}", h.WithdrawBid)
	mux.HandleFunc("GET /rounds/{roundID}/teams/{teamID}/bids", h.ListTeamBids)
	mux.HandleFunc("POST /rounds/{roundID}/finalize", h.FinalizeRound)
	mux.HandleFunc("GET /rounds/{roundID}/allocations", h.ListAllocations)

	mux.HandleFunc("POST /tiebreakers/{tiebreakerID}/bids", h.PlaceTiebreakerBid)
	mux.HandleFunc("POST /tiebreakers/{tiebreakerID}/withdraw", h.WithdrawFromTiebreaker)
	mux.HandleFunc("POST /tiebreakers/{tiebreakerID}/force-resolve", h.ForceResolveTiebreaker)
	mux.HandleFunc("GET /tiebreakers/{tiebreakerID}", h.GetTiebreaker)

	mux.HandleFunc("POST /budgets", h.CreateBudget)
	mux.HandleFunc("GET /teams/{teamID}/budget", h.GetBudget)
	mux.HandleFunc("GET /teams/{teamID}/rounds/{roundID}/reserve", h.GetReserveRequirement)

	mux.HandleFunc("GET /ws/rounds/{roundID}", ws.ServeRound)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"connections": cm.Stats(),
		})
	})

	return mux
}
