package allocation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/leagueforge/auctioneer/go/internal/auction/fault"
	"github.com/leagueforge/auctioneer/go/internal/auction/round"
	"github.com/leagueforge/auctioneer/go/internal/models"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/rs/zerolog"
)

var finalizeRoundID = uuid.MustParse("ffffffff-0000-0000-0000-000000000001")

// fakeAllocRepo is an in-memory AllocationRepository for finalization tests.
type fakeAllocRepo struct {
	bids        []models.Bid
	allocations []models.Allocation
	unresolved  int

	committed    []Pending
	tiePartial   []Pending
	tiebreaker   *models.Tiebreaker
	participants []models.TiebreakerParticipant
	released     []models.RoundStatus
}

func (f *fakeAllocRepo) ListRoundBids(_ context.Context, _ uuid.UUID) ([]models.Bid, error) {
	return f.bids, nil
}

func (f *fakeAllocRepo) ListAllocations(_ context.Context, _ uuid.UUID) ([]models.Allocation, error) {
	return f.allocations, nil
}

func (f *fakeAllocRepo) UnresolvedTiebreakers(_ context.Context, _ uuid.UUID) (int, error) {
	return f.unresolved, nil
}

func (f *fakeAllocRepo) CommitFinal(_ context.Context, rd *models.Round, pending []Pending) ([]models.Allocation, error) {
	f.committed = pending
	out := make([]models.Allocation, len(pending))
	for i, p := range pending {
		out[i] = models.Allocation{
			ID:       uuid.New(),
			RoundID:  rd.ID,
			TeamID:   p.TeamID,
			PlayerID: p.PlayerID,
			Price:    p.Price,
			Phase:    p.Phase,
		}
	}
	return out, nil
}

func (f *fakeAllocRepo) CommitWithTie(_ context.Context, _ *models.Round, partial []Pending, tb models.Tiebreaker, participants []models.TiebreakerParticipant) error {
	f.tiePartial = partial
	f.tiebreaker = &tb
	f.participants = participants
	return nil
}

func (f *fakeAllocRepo) ReleaseClaim(_ context.Context, _ uuid.UUID, to models.RoundStatus) error {
	f.released = append(f.released, to)
	return nil
}

type fakeRoundApp struct {
	claim round.ClaimResult
	round *models.Round
}

func (f *fakeRoundApp) ClaimFinalization(_ context.Context, _ uuid.UUID) (round.ClaimResult, *models.Round, error) {
	return f.claim, f.round, nil
}

func openBid(teamID, playerID uuid.UUID, amount int64, offset time.Duration) models.Bid {
	return models.Bid{
		ID:       uuid.New(),
		RoundID:  finalizeRoundID,
		TeamID:   teamID,
		PlayerID: playerID,
		Amount:   amount,
		Status:   models.BidStatusOpen,
		PlacedAt: baseTime.Add(offset),
	}
}

func newFinalizeFixture(t *testing.T) (*App, *fakeAllocRepo, *fakeRoundApp) {
	t.Helper()
	repo := &fakeAllocRepo{}
	rounds := &fakeRoundApp{
		claim: round.ClaimWon,
		round: &models.Round{
			ID:           finalizeRoundID,
			Status:       models.RoundStatusFinalizing,
			BasePrice:    50,
			RequiredBids: 1,
		},
	}
	clock := clockwork.NewFakeClockAt(baseTime)
	app := NewApp(repo, rounds, clock, Config{TiebreakerDuration: 6 * time.Hour}, zerolog.Nop())
	return app, repo, rounds
}

func TestFinalizeRound_AlreadyCompleted(t *testing.T) {
	app, repo, rounds := newFinalizeFixture(t)
	rounds.claim = round.ClaimAlreadyCompleted
	repo.allocations = []models.Allocation{
		{ID: uuid.New(), RoundID: finalizeRoundID, TeamID: teamA, PlayerID: playerX, Price: 50},
	}

	outcome, err := app.FinalizeRound(context.Background(), finalizeRoundID)

	assert.Nil(t, err)
	check.Equal(t, FinalizeAlreadyDone, outcome.Status)
	check.Equal(t, 1, len(outcome.Allocations))
	check.Equal(t, 0, len(repo.committed))
}

func TestFinalizeRound_InProgressIsConflict(t *testing.T) {
	app, _, rounds := newFinalizeFixture(t)
	rounds.claim = round.ClaimInProgress

	_, err := app.FinalizeRound(context.Background(), finalizeRoundID)

	assert.NotNil(t, err)
	check.Equal(t, fault.KindConflict, fault.KindOf(err))
	fe, ok := fault.As(err)
	assert.True(t, ok)
	check.Equal(t, fault.ReasonFinalizationInProgress, fe.Reason)
}

func TestFinalizeRound_NotFinalizable(t *testing.T) {
	app, _, rounds := newFinalizeFixture(t)
	rounds.claim = round.ClaimNotFinalizable
	rounds.round.Status = models.RoundStatusActive

	_, err := app.FinalizeRound(context.Background(), finalizeRoundID)

	assert.NotNil(t, err)
	fe, ok := fault.As(err)
	assert.True(t, ok)
	check.Equal(t, fault.ReasonNotFinalizable, fe.Reason)
	check.Equal(t, "ACTIVE", fe.Details["round_status"])
}

func TestFinalizeRound_UnresolvedTiebreakerRevertsClaim(t *testing.T) {
	app, repo, _ := newFinalizeFixture(t)
	repo.unresolved = 1

	_, err := app.FinalizeRound(context.Background(), finalizeRoundID)

	assert.NotNil(t, err)
	fe, ok := fault.As(err)
	assert.True(t, ok)
	check.Equal(t, fault.ReasonTiebreakerUnresolved, fe.Reason)
	assert.Equal(t, 1, len(repo.released))
	check.Equal(t, models.RoundStatusTiebreakPending, repo.released[0])
}

func TestFinalizeRound_CommitsFullAllocation(t *testing.T) {
	app, repo, _ := newFinalizeFixture(t)
	repo.bids = []models.Bid{
		openBid(teamA, playerX, 50, 0),
		openBid(teamB, playerY, 50, time.Second),
	}

	outcome, err := app.FinalizeRound(context.Background(), finalizeRoundID)

	assert.Nil(t, err)
	check.Equal(t, FinalizeCompleted, outcome.Status)
	check.Equal(t, 2, len(outcome.Allocations))
	assert.Equal(t, 2, len(repo.committed))
	check.Equal(t, teamA, repo.committed[0].TeamID)
	check.Equal(t, playerX, repo.committed[0].PlayerID)
	check.Equal(t, 0, len(repo.released))
}

func TestFinalizeRound_TieHaltsAndOpensTiebreaker(t *testing.T) {
	app, repo, _ := newFinalizeFixture(t)
	repo.bids = []models.Bid{
		openBid(teamC, playerZ, 50, 0),
		openBid(teamA, playerX, 50, time.Second),
		openBid(teamB, playerX, 50, 2*time.Second),
	}

	outcome, err := app.FinalizeRound(context.Background(), finalizeRoundID)

	assert.Nil(t, err)
	check.Equal(t, FinalizeTiePending, outcome.Status)
	assert.NotNil(t, outcome.Tie)
	check.Equal(t, playerX, outcome.Tie.PlayerID)
	check.Equal(t, int64(50), outcome.Tie.Amount)
	check.Equal(t, baseTime.Add(6*time.Hour), outcome.Tie.DeadlineAt)

	// C's unique win on Z commits before the tie halts processing.
	assert.Equal(t, 1, len(repo.tiePartial))
	check.Equal(t, teamC, repo.tiePartial[0].TeamID)

	assert.NotNil(t, repo.tiebreaker)
	check.Equal(t, models.TiebreakerStatusActive, repo.tiebreaker.Status)
	check.Equal(t, int64(50), repo.tiebreaker.HighestAmount)
	check.Nil(t, repo.tiebreaker.HighestTeamID)

	assert.Equal(t, 2, len(repo.participants))
	for _, p := range repo.participants {
		check.Equal(t, models.ParticipantStatusActive, p.Status)
		check.Equal(t, int64(50), p.CurrentBid)
	}
}

func TestFinalizeRound_ResumesAfterTiebreakResolution(t *testing.T) {
	app, repo, _ := newFinalizeFixture(t)
	// The tiebreaker already allocated X to A at 80; A's other open bid and
	// X must be skipped on resume.
	repo.allocations = []models.Allocation{
		{ID: uuid.New(), RoundID: finalizeRoundID, TeamID: teamA, PlayerID: playerX, Price: 80, Phase: models.AllocationPhaseTiebreak},
	}
	repo.bids = []models.Bid{
		openBid(teamA, playerY, 50, 0),
		openBid(teamB, playerY, 50, time.Second),
	}

	outcome, err := app.FinalizeRound(context.Background(), finalizeRoundID)

	assert.Nil(t, err)
	check.Equal(t, FinalizeCompleted, outcome.Status)
	assert.Equal(t, 1, len(repo.committed))
	check.Equal(t, teamB, repo.committed[0].TeamID)
	check.Equal(t, playerY, repo.committed[0].PlayerID)
}

func TestFinalizeRound_FallbackPriceDefaultsToBasePrice(t *testing.T) {
	app, repo, rounds := newFinalizeFixture(t)
	rounds.round.RequiredBids = 3
	rounds.round.BasePrice = 40
	// One incomplete team, no phase-1 winners: price falls back to the
	// round's base price.
	repo.bids = []models.Bid{openBid(teamA, playerX, 40, 0)}

	outcome, err := app.FinalizeRound(context.Background(), finalizeRoundID)

	assert.Nil(t, err)
	assert.Equal(t, 1, len(repo.committed))
	check.Equal(t, int64(40), repo.committed[0].Price)
	check.Equal(t, models.AllocationPhaseIncomplete, repo.committed[0].Phase)
	check.Equal(t, FinalizeCompleted, outcome.Status)
}
