package allocation

import (
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leagueforge/auctioneer/go/internal/models"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

var (
	teamA = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	teamB = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000002")
	teamC = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000003")

	playerX = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000001")
	playerY = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002")
	playerZ = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000003")
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func engineBid(teamID, playerID uuid.UUID, amount int64, offset time.Duration) EngineBid {
	return EngineBid{TeamID: teamID, PlayerID: playerID, Amount: amount, PlacedAt: baseTime.Add(offset)}
}

func sortedTeams(teams ...uuid.UUID) []uuid.UUID {
	out := append([]uuid.UUID(nil), teams...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func TestRunEngine_NoBids(t *testing.T) {
	out := RunEngine(Input{
		BidCounts:        map[uuid.UUID]int{},
		AllocatedTeams:   map[uuid.UUID]bool{},
		AllocatedPlayers: map[uuid.UUID]bool{},
		RequiredBids:     2,
		FallbackPrice:    10,
	})

	check.Nil(t, out.Tie)
	check.Equal(t, 0, len(out.Allocations))
	check.Equal(t, int64(10), out.AveragePrice)
}

func TestRunEngine_UniqueMaxWins(t *testing.T) {
	out := RunEngine(Input{
		OpenBids: []EngineBid{
			engineBid(teamA, playerX, 100, 0),
			engineBid(teamB, playerY, 90, time.Second),
		},
		BidCounts:        map[uuid.UUID]int{teamA: 1, teamB: 1},
		AllocatedTeams:   map[uuid.UUID]bool{},
		AllocatedPlayers: map[uuid.UUID]bool{},
		RequiredBids:     1,
		FallbackPrice:    10,
	})

	assert.Nil(t, out.Tie)
	assert.Equal(t, 2, len(out.Allocations))

	check.Equal(t, teamA, out.Allocations[0].TeamID)
	check.Equal(t, playerX, out.Allocations[0].PlayerID)
	check.Equal(t, int64(100), out.Allocations[0].Price)
	check.Equal(t, models.AllocationPhaseComplete, out.Allocations[0].Phase)

	check.Equal(t, teamB, out.Allocations[1].TeamID)
	check.Equal(t, playerY, out.Allocations[1].PlayerID)
	check.Equal(t, int64(90), out.Allocations[1].Price)

	check.Equal(t, int64(95), out.AveragePrice)
}

func TestRunEngine_TieHaltsProcessing(t *testing.T) {
	// A and B both hold the top bid on X; C's lower bid must not be
	// processed once the tie halts the loop.
	out := RunEngine(Input{
		OpenBids: []EngineBid{
			engineBid(teamA, playerX, 100, 0),
			engineBid(teamB, playerX, 100, time.Second),
			engineBid(teamC, playerY, 90, 2*time.Second),
		},
		BidCounts:        map[uuid.UUID]int{teamA: 1, teamB: 1, teamC: 1},
		AllocatedTeams:   map[uuid.UUID]bool{},
		AllocatedPlayers: map[uuid.UUID]bool{},
		RequiredBids:     1,
		FallbackPrice:    10,
	})

	assert.NotNil(t, out.Tie)
	check.Equal(t, playerX, out.Tie.PlayerID)
	check.Equal(t, int64(100), out.Tie.Amount)
	check.Equal(t, sortedTeams(teamA, teamB), out.Tie.TeamIDs)
	check.Equal(t, 0, len(out.Allocations))
}

func TestRunEngine_PartialRetainedBeforeTie(t *testing.T) {
	// C wins Z uniquely at 120 before A and B tie on X at 100.
	out := RunEngine(Input{
		OpenBids: []EngineBid{
			engineBid(teamC, playerZ, 120, 0),
			engineBid(teamA, playerX, 100, time.Second),
			engineBid(teamB, playerX, 100, 2*time.Second),
		},
		BidCounts:        map[uuid.UUID]int{teamA: 1, teamB: 1, teamC: 1},
		AllocatedTeams:   map[uuid.UUID]bool{},
		AllocatedPlayers: map[uuid.UUID]bool{},
		RequiredBids:     1,
		FallbackPrice:    10,
	})

	assert.NotNil(t, out.Tie)
	assert.Equal(t, 1, len(out.Allocations))
	check.Equal(t, teamC, out.Allocations[0].TeamID)
	check.Equal(t, playerZ, out.Allocations[0].PlayerID)
	check.Equal(t, sortedTeams(teamA, teamB), out.Tie.TeamIDs)
}

func TestRunEngine_TeamAllocatedAtMostOnce(t *testing.T) {
	// A holds the two highest bids but can only win one player; B takes
	// the other.
	out := RunEngine(Input{
		OpenBids: []EngineBid{
			engineBid(teamA, playerX, 100, 0),
			engineBid(teamA, playerY, 95, time.Second),
			engineBid(teamB, playerY, 80, 2*time.Second),
		},
		BidCounts:        map[uuid.UUID]int{teamA: 2, teamB: 2},
		AllocatedTeams:   map[uuid.UUID]bool{},
		AllocatedPlayers: map[uuid.UUID]bool{},
		RequiredBids:     2,
		FallbackPrice:    10,
	})

	assert.Nil(t, out.Tie)
	assert.Equal(t, 2, len(out.Allocations))
	check.Equal(t, teamA, out.Allocations[0].TeamID)
	check.Equal(t, playerX, out.Allocations[0].PlayerID)
	check.Equal(t, teamB, out.Allocations[1].TeamID)
	check.Equal(t, playerY, out.Allocations[1].PlayerID)
}

func TestRunEngine_EqualAmountsResolveByPlacementTime(t *testing.T) {
	// Bulk rounds fix every bid at the base price, so equal amounts on
	// different players are the norm; the earliest placed bid goes first.
	out := RunEngine(Input{
		OpenBids: []EngineBid{
			engineBid(teamB, playerY, 50, 2*time.Second),
			engineBid(teamA, playerX, 50, 0),
		},
		BidCounts:        map[uuid.UUID]int{teamA: 1, teamB: 1},
		AllocatedTeams:   map[uuid.UUID]bool{},
		AllocatedPlayers: map[uuid.UUID]bool{},
		RequiredBids:     1,
		FallbackPrice:    10,
	})

	assert.Nil(t, out.Tie)
	assert.Equal(t, 2, len(out.Allocations))
	check.Equal(t, teamA, out.Allocations[0].TeamID)
	check.Equal(t, playerX, out.Allocations[0].PlayerID)
}

func TestRunEngine_IncompleteTeamChargedAverage(t *testing.T) {
	// A and B are complete and win at 100 and 80; C under-filled its
	// slate and pays the phase-1 average of 90, not its own 85.
	out := RunEngine(Input{
		OpenBids: []EngineBid{
			engineBid(teamA, playerX, 100, 0),
			engineBid(teamB, playerY, 80, time.Second),
			engineBid(teamC, playerZ, 85, 2*time.Second),
		},
		BidCounts:        map[uuid.UUID]int{teamA: 2, teamB: 2, teamC: 1},
		AllocatedTeams:   map[uuid.UUID]bool{},
		AllocatedPlayers: map[uuid.UUID]bool{},
		RequiredBids:     2,
		FallbackPrice:    10,
	})

	assert.Nil(t, out.Tie)
	assert.Equal(t, 3, len(out.Allocations))
	check.Equal(t, int64(90), out.AveragePrice)

	last := out.Allocations[2]
	check.Equal(t, teamC, last.TeamID)
	check.Equal(t, playerZ, last.PlayerID)
	check.Equal(t, int64(90), last.Price)
	check.Equal(t, int64(85), last.ReservedAmount)
	check.Equal(t, models.AllocationPhaseIncomplete, last.Phase)
}

func TestRunEngine_AverageRoundsToNearestUnit(t *testing.T) {
	out := RunEngine(Input{
		OpenBids: []EngineBid{
			engineBid(teamA, playerX, 100, 0),
			engineBid(teamB, playerY, 95, time.Second),
		},
		BidCounts:        map[uuid.UUID]int{teamA: 1, teamB: 1},
		AllocatedTeams:   map[uuid.UUID]bool{},
		AllocatedPlayers: map[uuid.UUID]bool{},
		RequiredBids:     1,
		FallbackPrice:    10,
	})

	check.Equal(t, int64(98), out.AveragePrice)
}

func TestRunEngine_FallbackPriceWhenPhaseOneEmpty(t *testing.T) {
	// Only incomplete teams bid; phase 2 charges the fallback price.
	out := RunEngine(Input{
		OpenBids: []EngineBid{
			engineBid(teamA, playerX, 70, 0),
		},
		BidCounts:        map[uuid.UUID]int{teamA: 1},
		AllocatedTeams:   map[uuid.UUID]bool{},
		AllocatedPlayers: map[uuid.UUID]bool{},
		RequiredBids:     3,
		FallbackPrice:    25,
	})

	assert.Nil(t, out.Tie)
	assert.Equal(t, 1, len(out.Allocations))
	check.Equal(t, int64(25), out.Allocations[0].Price)
	check.Equal(t, models.AllocationPhaseIncomplete, out.Allocations[0].Phase)
}

func TestRunEngine_IncompleteTeamsSkipTieCheck(t *testing.T) {
	// Two incomplete teams hold equal bids on the same player. No tie:
	// the first team in deterministic order takes it outright.
	out := RunEngine(Input{
		OpenBids: []EngineBid{
			engineBid(teamA, playerX, 60, 0),
			engineBid(teamB, playerX, 60, time.Second),
		},
		BidCounts:        map[uuid.UUID]int{teamA: 1, teamB: 1},
		AllocatedTeams:   map[uuid.UUID]bool{},
		AllocatedPlayers: map[uuid.UUID]bool{},
		RequiredBids:     2,
		FallbackPrice:    10,
	})

	assert.Nil(t, out.Tie)
	assert.Equal(t, 1, len(out.Allocations))
	check.Equal(t, teamA, out.Allocations[0].TeamID)
	check.Equal(t, playerX, out.Allocations[0].PlayerID)
}

func TestRunEngine_IncompleteBidDoesNotJoinPhaseOneTie(t *testing.T) {
	// B is complete and C is not; C's equal bid on X must not turn B's
	// win into a tie.
	out := RunEngine(Input{
		OpenBids: []EngineBid{
			engineBid(teamB, playerX, 100, 0),
			engineBid(teamB, playerY, 40, time.Second),
			engineBid(teamC, playerX, 100, 2*time.Second),
		},
		BidCounts:        map[uuid.UUID]int{teamB: 2, teamC: 1},
		AllocatedTeams:   map[uuid.UUID]bool{},
		AllocatedPlayers: map[uuid.UUID]bool{},
		RequiredBids:     2,
		FallbackPrice:    10,
	})

	assert.Nil(t, out.Tie)
	assert.Equal(t, 1, len(out.Allocations))
	check.Equal(t, teamB, out.Allocations[0].TeamID)
	check.Equal(t, playerX, out.Allocations[0].PlayerID)
	check.Equal(t, models.AllocationPhaseComplete, out.Allocations[0].Phase)
}

func TestRunEngine_ResumeAfterTiebreak(t *testing.T) {
	// A already won X at 110 through the tiebreaker. The resumed pass
	// must skip A and X, allocate B, and fold the prior price into the
	// average for C.
	out := RunEngine(Input{
		OpenBids: []EngineBid{
			engineBid(teamA, playerY, 100, 0),
			engineBid(teamB, playerY, 90, time.Second),
			engineBid(teamC, playerZ, 50, 2*time.Second),
		},
		BidCounts:        map[uuid.UUID]int{teamA: 2, teamB: 2, teamC: 1},
		AllocatedTeams:   map[uuid.UUID]bool{teamA: true},
		AllocatedPlayers: map[uuid.UUID]bool{playerX: true},
		PriorPrices:      []int64{110},
		RequiredBids:     2,
		FallbackPrice:    10,
	})

	assert.Nil(t, out.Tie)
	assert.Equal(t, 2, len(out.Allocations))

	check.Equal(t, teamB, out.Allocations[0].TeamID)
	check.Equal(t, playerY, out.Allocations[0].PlayerID)
	check.Equal(t, int64(90), out.Allocations[0].Price)

	// Average of prior 110 and phase-1 90.
	check.Equal(t, int64(100), out.AveragePrice)
	check.Equal(t, teamC, out.Allocations[1].TeamID)
	check.Equal(t, int64(100), out.Allocations[1].Price)
}
