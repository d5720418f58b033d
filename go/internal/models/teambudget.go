package models

import (
	"github.com/google/uuid"
)

// CurrencyPool identifies an independently tracked budget pool. Football
// money and real-player money never mix.
type CurrencyPool string

const (
	PoolFootball CurrencyPool = "FOOTBALL"
	PoolPlayer   CurrencyPool = "PLAYER"
)

// TeamBudget is the authoritative budget state for one team in one season
// and currency pool. Invariants, enforced by conditional updates at the
// storage layer:
//
//	Spent + Reserved <= Total
//	RosterSize + OpenBids <= RosterCapacity
type TeamBudget struct {
	TeamID         uuid.UUID    `json:"team_id"`
	SeasonID       uuid.UUID    `json:"season_id"`
	Pool           CurrencyPool `json:"pool"`
	Total          int64        `json:"total"`
	Spent          int64        `json:"spent"`
	Reserved       int64        `json:"reserved"`
	RosterSize     int          `json:"roster_size"`
	RosterCapacity int          `json:"roster_capacity"`
	OpenBids       int          `json:"open_bids"`
}

// Available returns the budget not yet spent or held by open reservations.
func (b *TeamBudget) Available() int64 {
	return b.Total - b.Spent - b.Reserved
}

// RosterHeadroom returns how many more players the team can still commit to,
// counting open bids as claims on roster slots.
func (b *TeamBudget) RosterHeadroom() int {
	return b.RosterCapacity - b.RosterSize - b.OpenBids
}
