package httpapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/leagueforge/auctioneer/go/internal/auction/allocation"
	"github.com/leagueforge/auctioneer/go/internal/auction/bid"
	"github.com/leagueforge/auctioneer/go/internal/auction/budget"
	"github.com/leagueforge/auctioneer/go/internal/auction/fault"
	"github.com/leagueforge/auctioneer/go/internal/auction/reserve"
	"github.com/leagueforge/auctioneer/go/internal/auction/round"
	"github.com/leagueforge/auctioneer/go/internal/auction/tiebreaker"
	"github.com/leagueforge/auctioneer/go/internal/models"
	"github.com/rs/zerolog"
)

// Handler exposes the auction operations as an HTTP JSON API.
type Handler struct {
	rounds      *round.App
	bids        *bid.App
	budgets     *budget.App
	allocations *allocation.App
	tiebreakers *tiebreaker.App
	reserves    *reserve.App
	logger      zerolog.Logger
}

func NewHandler(rounds *round.App, bids *bid.App, budgets *budget.App, allocations *allocation.App, tiebreakers *tiebreaker.App, reserves *reserve.App, logger zerolog.Logger) *Handler {
	return &Handler{
		rounds:      rounds,
		bids:        bids,
		budgets:     budgets,
		allocations: allocations,
		tiebreakers: tiebreakers,
		reserves:    reserves,
		logger:      logger,
	}
}

func (h *Handler) CreateRound(w http.ResponseWriter, r *http.Request) {
	var req round.CreateRoundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	created, err := h.rounds.CreateRound(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetRound(w http.ResponseWriter, r *http.Request) {
	roundID, ok := pathUUID(w, r, "roundID")
	if !ok {
		return
	}
	rd, err := h.rounds.GetRound(r.Context(), roundID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rd)
}

func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	roundID, ok := pathUUID(w, r, "roundID")
	if !ok {
		return
	}
	var req bid.PlaceBidRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.RoundID = roundID

	receipt, err := h.bids.PlaceBid(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) WithdrawBid(w http.ResponseWriter, r *http.Request) {
	roundID, ok := pathUUID(w, r, "roundID")
	if !ok {
		return
	}
	playerID, ok := pathUUID(w, r, "playerID")
	if !ok {
		return
	}
	teamID, err := uuid.Parse(r.URL.Query().Get("team_id"))
	if err != nil {
		writeError(w, h.logger, fault.Validation(fault.ReasonBadInput, "team_id query parameter is required"))
		return
	}

	err = h.bids.WithdrawBid(r.Context(), bid.WithdrawBidRequest{
		RoundID:  roundID,
		TeamID:   teamID,
		PlayerID: playerID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListTeamBids(w http.ResponseWriter, r *http.Request) {
	roundID, ok := pathUUID(w, r, "roundID")
	if !ok {
		return
	}
	teamID, ok := pathUUID(w, r, "teamID")
	if !ok {
		return
	}
	bids, err := h.bids.ListTeamBids(r.Context(), roundID, teamID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": bids})
}

func (h *Handler) FinalizeRound(w http.ResponseWriter, r *http.Request) {
	roundID, ok := pathUUID(w, r, "roundID")
	if !ok {
		return
	}
	outcome, err := h.allocations.FinalizeRound(r.Context(), roundID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	roundID, ok := pathUUID(w, r, "roundID")
	if !ok {
		return
	}
	allocations, err := h.allocations.ListAllocations(r.Context(), roundID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"allocations": allocations})
}

func (h *Handler) PlaceTiebreakerBid(w http.ResponseWriter, r *http.Request) {
	tiebreakerID, ok := pathUUID(w, r, "tiebreakerID")
	if !ok {
		return
	}
	var req tiebreaker.PlaceBidRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.TiebreakerID = tiebreakerID

	receipt, err := h.tiebreakers.PlaceBid(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) WithdrawFromTiebreaker(w http.ResponseWriter, r *http.Request) {
	tiebreakerID, ok := pathUUID(w, r, "tiebreakerID")
	if !ok {
		return
	}
	var req struct {
		TeamID uuid.UUID `json:"team_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	receipt, err := h.tiebreakers.Withdraw(r.Context(), tiebreakerID, req.TeamID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) ForceResolveTiebreaker(w http.ResponseWriter, r *http.Request) {
	tiebreakerID, ok := pathUUID(w, r, "tiebreakerID")
	if !ok {
		return
	}
	resolution, err := h.tiebreakers.ForceResolve(r.Context(), tiebreakerID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resolution)
}

func (h *Handler) GetTiebreaker(w http.ResponseWriter, r *http.Request) {
	tiebreakerID, ok := pathUUID(w, r, "tiebreakerID")
	if !ok {
		return
	}
	state, err := h.tiebreakers.GetState(r.Context(), tiebreakerID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	var req models.TeamBudget
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.budgets.Create(r.Context(), req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	teamID, ok := pathUUID(w, r, "teamID")
	if !ok {
		return
	}
	seasonID, err := uuid.Parse(r.URL.Query().Get("season_id"))
	if err != nil {
		writeError(w, h.logger, fault.Validation(fault.ReasonBadInput, "season_id query parameter is required"))
		return
	}
	pool := models.CurrencyPool(r.URL.Query().Get("pool"))

	b, err := h.budgets.Get(r.Context(), teamID, seasonID, pool)
	if errors.Is(err, budget.ErrNotFound) {
		writeError(w, h.logger, fault.Precondition(fault.ReasonBudgetNotFound, "team has no budget in this season and pool"))
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) GetReserveRequirement(w http.ResponseWriter, r *http.Request) {
	teamID, ok := pathUUID(w, r, "teamID")
	if !ok {
		return
	}
	roundID, ok := pathUUID(w, r, "roundID")
	if !ok {
		return
	}
	requirement, err := h.reserves.RequiredReserve(r.Context(), teamID, roundID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, requirement)
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Kind:    fault.KindValidation,
			Reason:  fault.ReasonBadInput,
			Message: "invalid " + name,
		})
		return uuid.Nil, false
	}
	return id, true
}
