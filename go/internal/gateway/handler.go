package gateway

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handler serves the websocket endpoint for watching a round.
type Handler struct {
	manager *ConnectionManager
	logger  zerolog.Logger
}

func NewHandler(manager *ConnectionManager, logger zerolog.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

// ServeRound upgrades GET /ws/rounds/{roundID}. An optional team_id query
// parameter tags the connection for team-targeted frames.
func (h *Handler) ServeRound(w http.ResponseWriter, r *http.Request) {
	roundID, err := uuid.Parse(r.PathValue("roundID"))
	if err != nil {
		http.Error(w, "invalid round id", http.StatusBadRequest)
		return
	}
	teamID := r.URL.Query().Get("team_id")

	if err := h.manager.UpgradeConnection(w, r, teamID, roundID); err != nil {
		h.logger.Error().Err(err).
			Str("round_id", roundID.String()).
			Msg("failed to establish websocket connection")
	}
}
