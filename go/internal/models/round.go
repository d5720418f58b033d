package models

import (
	"time"

	"github.com/google/uuid"
)

// RoundStatus defines the lifecycle status of a bidding round.
type RoundStatus string

const (
	RoundStatusScheduled       RoundStatus = "SCHEDULED"
	RoundStatusActive          RoundStatus = "ACTIVE"
	RoundStatusClosed          RoundStatus = "CLOSED"
	RoundStatusFinalizing      RoundStatus = "FINALIZING"
	RoundStatusTiebreakPending RoundStatus = "TIEBREAK_PENDING"
	RoundStatusCompleted       RoundStatus = "COMPLETED"
)

// FinalizationMode controls how a round is finalized once it expires.
type FinalizationMode string

const (
	FinalizationModeAuto   FinalizationMode = "AUTO"
	FinalizationModeManual FinalizationMode = "MANUAL"
)

// Round represents a time-boxed bidding window for one roster
// position/category. New bids are accepted only while the round is ACTIVE.
type Round struct {
	ID               uuid.UUID        `json:"id"`
	SeasonID         uuid.UUID        `json:"season_id"`
	Pool             CurrencyPool     `json:"pool"`
	Status           RoundStatus      `json:"status"`
	BasePrice        int64            `json:"base_price"`
	RequiredBids     int              `json:"required_bids"`
	StartsAt         time.Time        `json:"starts_at"`
	EndsAt           time.Time        `json:"ends_at"`
	FinalizationMode FinalizationMode `json:"finalization_mode"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// AcceptsBids reports whether the round accepts bid placement/withdrawal.
func (r *Round) AcceptsBids() bool {
	return r.Status == RoundStatusActive
}
