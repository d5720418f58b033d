package models

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
)

func TestTeamBudget_Available(t *testing.T) {
	b := TeamBudget{Total: 1000, Spent: 300, Reserved: 250}
	check.Equal(t, int64(450), b.Available())
}

func TestTeamBudget_RosterHeadroomCountsOpenBids(t *testing.T) {
	b := TeamBudget{RosterCapacity: 10, RosterSize: 6, OpenBids: 3}
	check.Equal(t, 1, b.RosterHeadroom())

	b.OpenBids = 4
	check.Equal(t, 0, b.RosterHeadroom())
}

func TestRound_AcceptsBidsOnlyWhileActive(t *testing.T) {
	r := Round{Status: RoundStatusActive}
	check.True(t, r.AcceptsBids())

	for _, status := range []RoundStatus{
		RoundStatusScheduled,
		RoundStatusClosed,
		RoundStatusFinalizing,
		RoundStatusTiebreakPending,
		RoundStatusCompleted,
	} {
		r.Status = status
		check.False(t, r.AcceptsBids())
	}
}

func TestTiebreaker_OpenStatuses(t *testing.T) {
	tb := Tiebreaker{Status: TiebreakerStatusActive}
	check.True(t, tb.Open())

	tb.Status = TiebreakerStatusOngoing
	check.True(t, tb.Open())

	tb.Status = TiebreakerStatusResolved
	check.False(t, tb.Open())

	tb.Status = TiebreakerStatusAutoFinalizePending
	check.False(t, tb.Open())
}

func TestTiebreaker_Expired(t *testing.T) {
	deadline := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tb := Tiebreaker{DeadlineAt: deadline}

	check.False(t, tb.Expired(deadline))
	check.True(t, tb.Expired(deadline.Add(time.Second)))
}
