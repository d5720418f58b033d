package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/leagueforge/auctioneer/go/internal/auction/fault"
	"github.com/rs/zerolog"
)

// errorBody is the JSON shape of every rejection.
type errorBody struct {
	Kind    fault.Kind     `json:"kind"`
	Reason  string         `json:"reason"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// writeError maps the fault taxonomy onto HTTP status codes. Unclassified
// errors surface as opaque 500s.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	e, ok := fault.As(err)
	if !ok {
		logger.Error().Err(err).Msg("unclassified error")
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Kind:    fault.KindInternal,
			Reason:  fault.ReasonStorage,
			Message: "internal error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch e.Kind {
	case fault.KindValidation:
		status = http.StatusBadRequest
	case fault.KindPrecondition:
		status = http.StatusUnprocessableEntity
	case fault.KindConflict:
		status = http.StatusConflict
	case fault.KindTimeout:
		status = http.StatusGone
	case fault.KindInternal:
		logger.Error().Err(err).Msg("internal error")
	}

	writeJSON(w, status, errorBody{
		Kind:    e.Kind,
		Reason:  e.Reason,
		Message: e.Message,
		Details: e.Details,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Kind:    fault.KindValidation,
			Reason:  fault.ReasonBadInput,
			Message: "invalid JSON body",
		})
		return false
	}
	return true
}
