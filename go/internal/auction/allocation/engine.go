package allocation

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/leagueforge/auctioneer/go/internal/models"
)

// EngineBid is one open bid as seen by the allocation engine.
type EngineBid struct {
	TeamID   uuid.UUID
	PlayerID uuid.UUID
	Amount   int64
	PlacedAt time.Time
}

// Input is everything the engine needs, loaded up front so the algorithm
// itself is pure and deterministic.
type Input struct {
	// OpenBids are the round's still-open bids.
	OpenBids []EngineBid
	// BidCounts maps team id to the number of bids the team placed in the
	// round, regardless of current bid status. Completeness is judged on
	// what was placed, not on what is still open after a tiebreaker.
	BidCounts map[uuid.UUID]int
	// AllocatedTeams and AllocatedPlayers reflect allocations already
	// committed by an earlier, tie-interrupted pass over this round.
	AllocatedTeams   map[uuid.UUID]bool
	AllocatedPlayers map[uuid.UUID]bool
	// PriorPrices are the winning prices of those prior allocations; they
	// join phase-1 prices in the phase-2 average.
	PriorPrices []int64
	// RequiredBids is the round's required-bids-per-team.
	RequiredBids int
	// FallbackPrice is charged in phase 2 when no winning price exists to
	// average over.
	FallbackPrice int64
}

// Pending is an allocation the engine decided on but that has not been
// committed to storage yet.
type Pending struct {
	TeamID         uuid.UUID
	PlayerID       uuid.UUID
	Price          int64 // amount charged on commit
	ReservedAmount int64 // bid amount currently held as a reservation
	Phase          models.AllocationPhase
}

// Tie describes equal top bids on the same player by two or more teams.
type Tie struct {
	PlayerID uuid.UUID
	TeamIDs  []uuid.UUID
	Amount   int64
}

// Outcome is the engine's result: either a full allocation list, or the
// allocations decided before a tie halted processing plus the tie itself.
type Outcome struct {
	Allocations  []Pending
	Tie          *Tie
	AveragePrice int64
}

// RunEngine executes the greedy allocation over a round's bids.
//
// Phase 1 considers only complete teams: repeatedly take the maximum
// remaining bid; a unique holder wins the player at the bid amount, equal
// top bids on one player halt processing with a tie. Phase 2 gives each
// incomplete team its own best remaining player at the phase-1 average
// price. The algorithm is deterministic: candidates at equal amounts are
// ordered by placement time, then player id, then team id.
func RunEngine(in Input) Outcome {
	remaining := make([]EngineBid, 0, len(in.OpenBids))
	for _, b := range in.OpenBids {
		if in.AllocatedTeams[b.TeamID] || in.AllocatedPlayers[b.PlayerID] {
			continue
		}
		remaining = append(remaining, b)
	}
	sortBids(remaining)

	complete := func(teamID uuid.UUID) bool {
		return in.BidCounts[teamID] >= in.RequiredBids
	}

	var out Outcome
	allocatedTeams := make(map[uuid.UUID]bool)
	allocatedPlayers := make(map[uuid.UUID]bool)

	// Phase 1: complete teams, highest bid first.
	for {
		best := -1
		for i, b := range remaining {
			if !complete(b.TeamID) || allocatedTeams[b.TeamID] || allocatedPlayers[b.PlayerID] {
				continue
			}
			if best == -1 || b.Amount > remaining[best].Amount {
				best = i
			}
		}
		if best == -1 {
			break
		}

		top := remaining[best]
		tied := tiedTeams(remaining, top, allocatedTeams, complete)
		if len(tied) >= 2 {
			out.Tie = &Tie{PlayerID: top.PlayerID, TeamIDs: tied, Amount: top.Amount}
			break
		}

		out.Allocations = append(out.Allocations, Pending{
			TeamID:         top.TeamID,
			PlayerID:       top.PlayerID,
			Price:          top.Amount,
			ReservedAmount: top.Amount,
			Phase:          models.AllocationPhaseComplete,
		})
		allocatedTeams[top.TeamID] = true
		allocatedPlayers[top.PlayerID] = true
	}

	out.AveragePrice = averagePrice(in, out.Allocations)

	if out.Tie != nil {
		return out
	}

	// Phase 2: each incomplete team gets its own top remaining bid at the
	// average price. Ties are not re-checked here; an incomplete team's
	// top bid is accepted outright.
	for _, teamID := range incompleteTeams(in) {
		if allocatedTeams[teamID] || in.AllocatedTeams[teamID] {
			continue
		}
		best := -1
		for i, b := range remaining {
			if b.TeamID != teamID || allocatedPlayers[b.PlayerID] {
				continue
			}
			if best == -1 || b.Amount > remaining[best].Amount {
				best = i
			}
		}
		if best == -1 {
			continue
		}
		top := remaining[best]
		out.Allocations = append(out.Allocations, Pending{
			TeamID:         teamID,
			PlayerID:       top.PlayerID,
			Price:          out.AveragePrice,
			ReservedAmount: top.Amount,
			Phase:          models.AllocationPhaseIncomplete,
		})
		allocatedTeams[teamID] = true
		allocatedPlayers[top.PlayerID] = true
	}

	return out
}

// tiedTeams returns every distinct complete team holding a bid equal to
// top.Amount on top.PlayerID, sorted for determinism. Incomplete teams never
// join a phase-1 tie.
func tiedTeams(bids []EngineBid, top EngineBid, skipTeams map[uuid.UUID]bool, complete func(uuid.UUID) bool) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var teams []uuid.UUID
	for _, b := range bids {
		if b.PlayerID != top.PlayerID || b.Amount != top.Amount {
			continue
		}
		if !complete(b.TeamID) || skipTeams[b.TeamID] || seen[b.TeamID] {
			continue
		}
		seen[b.TeamID] = true
		teams = append(teams, b.TeamID)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].String() < teams[j].String() })
	return teams
}

func averagePrice(in Input, phase1 []Pending) int64 {
	var sum int64
	var n int64
	for _, p := range in.PriorPrices {
		sum += p
		n++
	}
	for _, p := range phase1 {
		sum += p.Price
		n++
	}
	if n == 0 {
		return in.FallbackPrice
	}
	return int64(math.Round(float64(sum) / float64(n)))
}

func incompleteTeams(in Input) []uuid.UUID {
	var teams []uuid.UUID
	for teamID, count := range in.BidCounts {
		if count > 0 && count < in.RequiredBids {
			teams = append(teams, teamID)
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].String() < teams[j].String() })
	return teams
}

// sortBids orders by placement time, then player, then team, so that equal
// amounts always resolve the same way regardless of load order.
func sortBids(bids []EngineBid) {
	sort.Slice(bids, func(i, j int) bool {
		if !bids[i].PlacedAt.Equal(bids[j].PlacedAt) {
			return bids[i].PlacedAt.Before(bids[j].PlacedAt)
		}
		if bids[i].PlayerID != bids[j].PlayerID {
			return bids[i].PlayerID.String() < bids[j].PlayerID.String()
		}
		return bids[i].TeamID.String() < bids[j].TeamID.String()
	})
}
