package bid

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/leagueforge/auctioneer/go/internal/auction/fault"
	"github.com/leagueforge/auctioneer/go/internal/auction/reserve"
	"github.com/leagueforge/auctioneer/go/internal/models"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/rs/zerolog"
)

var (
	roundID   = uuid.MustParse("eeeeeeee-0000-0000-0000-000000000001")
	teamID    = uuid.MustParse("eeeeeeee-0000-0000-0000-000000000002")
	playerID  = uuid.MustParse("eeeeeeee-0000-0000-0000-000000000003")
	seasonID  = uuid.MustParse("eeeeeeee-0000-0000-0000-000000000004")
	otherTeam = uuid.MustParse("eeeeeeee-0000-0000-0000-000000000005")
)

var bidNow = time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)

// fakeBidRepo is an in-memory BidRepository for app-layer tests.
type fakeBidRepo struct {
	inRound   bool
	allocated bool
	hasBid    bool
	budget    *models.TeamBudget
	placeErr  error
	withdrawn bool
	placed    []models.Bid
	bids      []models.Bid
}

func (f *fakeBidRepo) PlaceBid(_ context.Context, b models.Bid, _ uuid.UUID, _ models.CurrencyPool) (int, int64, error) {
	if f.placeErr != nil {
		return 0, 0, f.placeErr
	}
	f.placed = append(f.placed, b)
	f.budget.OpenBids++
	f.budget.Reserved += b.Amount
	return f.budget.OpenBids, f.budget.Available(), nil
}

func (f *fakeBidRepo) WithdrawBid(_ context.Context, _, _, _, _ uuid.UUID, _ models.CurrencyPool) (int, error) {
	if !f.withdrawn {
		return 0, ErrNoOpenBid
	}
	return 0, nil
}

func (f *fakeBidRepo) ListTeamBids(_ context.Context, _, _ uuid.UUID) ([]models.Bid, error) {
	return f.bids, nil
}

func (f *fakeBidRepo) PlayerInRound(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return f.inRound, nil
}

func (f *fakeBidRepo) PlayerAllocated(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return f.allocated, nil
}

func (f *fakeBidRepo) HasBid(_ context.Context, _, _, _ uuid.UUID) (bool, error) {
	return f.hasBid, nil
}

func (f *fakeBidRepo) GetBudget(_ context.Context, _, _ uuid.UUID, _ models.CurrencyPool) (*models.TeamBudget, error) {
	return f.budget, nil
}

type fakeRounds struct {
	round *models.Round
}

func (f *fakeRounds) GetForBidding(_ context.Context, _ uuid.UUID) (*models.Round, error) {
	if f.round == nil {
		return nil, fault.Precondition(fault.ReasonRoundNotFound, "round does not exist")
	}
	if !f.round.AcceptsBids() {
		return nil, fault.Precondition(fault.ReasonRoundNotActive, "round is not accepting bids").
			With("status", string(f.round.Status))
	}
	return f.round, nil
}

func (f *fakeRounds) GetRound(_ context.Context, _ uuid.UUID) (*models.Round, error) {
	if f.round == nil {
		return nil, fault.Precondition(fault.ReasonRoundNotFound, "round does not exist")
	}
	return f.round, nil
}

type fakeReserves struct {
	requirement reserve.Requirement
}

func (f *fakeReserves) ForRosterGap(_ context.Context, _ *models.Round, _ int) reserve.Requirement {
	return f.requirement
}

func newBidFixture(t *testing.T) (*App, *fakeBidRepo, *fakeRounds) {
	t.Helper()
	repo := &fakeBidRepo{
		inRound: true,
		budget: &models.TeamBudget{
			TeamID:         teamID,
			SeasonID:       seasonID,
			Pool:           models.PoolFootball,
			Total:          500,
			Spent:          100,
			Reserved:       50,
			RosterSize:     2,
			RosterCapacity: 8,
			OpenBids:       1,
		},
	}
	rounds := &fakeRounds{
		round: &models.Round{
			ID:           roundID,
			SeasonID:     seasonID,
			Pool:         models.PoolFootball,
			Status:       models.RoundStatusActive,
			BasePrice:    50,
			RequiredBids: 3,
		},
	}
	clock := clockwork.NewFakeClockAt(bidNow)
	app := NewApp(repo, rounds, &fakeReserves{}, clock, zerolog.Nop())
	return app, repo, rounds
}

func placeReq() PlaceBidRequest {
	return PlaceBidRequest{RoundID: roundID, TeamID: teamID, PlayerID: playerID}
}

func TestPlaceBid_RoundNotFound(t *testing.T) {
	app, _, rounds := newBidFixture(t)
	rounds.round = nil

	_, err := app.PlaceBid(context.Background(), placeReq())

	assert.NotNil(t, err)
	fe, ok := fault.As(err)
	assert.True(t, ok)
	check.Equal(t, fault.ReasonRoundNotFound, fe.Reason)
}

func TestPlaceBid_RoundNotActive(t *testing.T) {
	app, _, rounds := newBidFixture(t)
	rounds.round.Status = models.RoundStatusClosed

	_, err := app.PlaceBid(context.Background(), placeReq())

	assert.NotNil(t, err)
	fe, ok := fault.As(err)
	assert.True(t, ok)
	check.Equal(t, fault.ReasonRoundNotActive, fe.Reason)
}

func TestPlaceBid_PlayerNotInRound(t *testing.T) {
	app, repo, _ := newBidFixture(t)
	repo.inRound = false

	_, err := app.PlaceBid(context.Background(), placeReq())

	assert.NotNil(t, err)
	fe, ok := fault.As(err)
	assert.True(t, ok)
	check.Equal(t, fault.ReasonPlayerNotInRound, fe.Reason)
}

func TestPlaceBid_PlayerAlreadyAllocated(t *testing.T) {
	app, repo, _ := newBidFixture(t)
	repo.allocated = true

	_, err := app.PlaceBid(context.Background(), placeReq())

	assert.NotNil(t, err)
	fe, ok := fault.As(err)
	assert.True(t, ok)
	check.Equal(t, fault.ReasonPlayerAllocated, fe.Reason)
}

func TestPlaceBid_RosterFull(t *testing.T) {
	app, repo, _ := newBidFixture(t)
	repo.budget.RosterSize = 6
	repo.budget.OpenBids = 2

	_, err := app.PlaceBid(context.Background(), placeReq())

	assert.NotNil(t, err)
	fe, ok := fault.As(err)
	assert.True(t, ok)
	check.Equal(t, fault.ReasonRosterFull, fe.Reason)
	check.Equal(t, 6, fe.Details["roster_size"])
}

func TestPlaceBid_InsufficientBudget(t *testing.T) {
	app, repo, _ := newBidFixture(t)
	repo.budget.Reserved = 360 // available 40, base price 50

	_, err := app.PlaceBid(context.Background(), placeReq())

	assert.NotNil(t, err)
	fe, ok := fault.As(err)
	assert.True(t, ok)
	check.Equal(t, fault.ReasonInsufficientBudget, fe.Reason)
}

func TestPlaceBid_ReserveViolation(t *testing.T) {
	app, repo, rounds := newBidFixture(t)
	reserves := &fakeReserves{requirement: reserve.Requirement{
		RequiresReserve: true,
		MinimumReserve:  320,
		Explanation:     "later rounds require 320",
	}}
	app = NewApp(repo, rounds, reserves, clockwork.NewFakeClockAt(bidNow), zerolog.Nop())

	// Available is 350; paying the 50 base price would leave 300.
	_, err := app.PlaceBid(context.Background(), placeReq())

	assert.NotNil(t, err)
	fe, ok := fault.As(err)
	assert.True(t, ok)
	check.Equal(t, fault.ReasonReserveViolation, fe.Reason)
}

func TestPlaceBid_DuplicateBid(t *testing.T) {
	app, repo, _ := newBidFixture(t)
	repo.hasBid = true

	_, err := app.PlaceBid(context.Background(), placeReq())

	assert.NotNil(t, err)
	fe, ok := fault.As(err)
	assert.True(t, ok)
	check.Equal(t, fault.ReasonDuplicateBid, fe.Reason)
}

func TestPlaceBid_DuplicateReportedBeforeRosterAndBudget(t *testing.T) {
	// A team re-bidding on a player while roster-full must hear about the
	// duplicate, not the roster.
	app, repo, _ := newBidFixture(t)
	repo.hasBid = true
	repo.budget.RosterSize = 7
	repo.budget.OpenBids = 1
	repo.budget.Reserved = 400

	_, err := app.PlaceBid(context.Background(), placeReq())

	assert.NotNil(t, err)
	fe, ok := fault.As(err)
	assert.True(t, ok)
	check.Equal(t, fault.ReasonDuplicateBid, fe.Reason)
}

func TestPlaceBid_InsertRaceStillReportsDuplicate(t *testing.T) {
	// Two concurrent first bids: the chain check sees no bid, the unique
	// index catches the race at insert.
	app, repo, _ := newBidFixture(t)
	repo.placeErr = ErrDuplicate

	_, err := app.PlaceBid(context.Background(), placeReq())

	assert.NotNil(t, err)
	fe, ok := fault.As(err)
	assert.True(t, ok)
	check.Equal(t, fault.ReasonDuplicateBid, fe.Reason)
}

func TestPlaceBid_ConcurrentGuardFailure(t *testing.T) {
	app, repo, _ := newBidFixture(t)
	repo.placeErr = ErrGuardFailed

	_, err := app.PlaceBid(context.Background(), placeReq())

	assert.NotNil(t, err)
	fe, ok := fault.As(err)
	assert.True(t, ok)
	check.Equal(t, fault.ReasonInsufficientBudget, fe.Reason)
}

func TestPlaceBid_AmountIsRoundBasePrice(t *testing.T) {
	app, repo, _ := newBidFixture(t)

	receipt, err := app.PlaceBid(context.Background(), placeReq())

	assert.Nil(t, err)
	check.Equal(t, int64(50), receipt.Bid.Amount)
	check.Equal(t, models.BidStatusOpen, receipt.Bid.Status)
	check.Equal(t, bidNow, receipt.Bid.PlacedAt)
	check.Equal(t, 2, receipt.OpenBids)
	check.Equal(t, int64(300), receipt.AvailableBudget)

	assert.Equal(t, 1, len(repo.placed))
	check.Equal(t, roundID, repo.placed[0].RoundID)
	check.Equal(t, teamID, repo.placed[0].TeamID)
	check.Equal(t, playerID, repo.placed[0].PlayerID)
}

func TestWithdrawBid_RoundMustBeActive(t *testing.T) {
	app, _, rounds := newBidFixture(t)
	rounds.round.Status = models.RoundStatusFinalizing

	err := app.WithdrawBid(context.Background(), WithdrawBidRequest{RoundID: roundID, TeamID: teamID, PlayerID: playerID})

	assert.NotNil(t, err)
	fe, ok := fault.As(err)
	assert.True(t, ok)
	check.Equal(t, fault.ReasonRoundNotActive, fe.Reason)
}

func TestWithdrawBid_NoOpenBid(t *testing.T) {
	app, _, _ := newBidFixture(t)

	err := app.WithdrawBid(context.Background(), WithdrawBidRequest{RoundID: roundID, TeamID: teamID, PlayerID: playerID})

	assert.NotNil(t, err)
	fe, ok := fault.As(err)
	assert.True(t, ok)
	check.Equal(t, fault.ReasonBidNotFound, fe.Reason)
}

func TestWithdrawBid_ReleasesOpenBid(t *testing.T) {
	app, repo, _ := newBidFixture(t)
	repo.withdrawn = true

	err := app.WithdrawBid(context.Background(), WithdrawBidRequest{RoundID: roundID, TeamID: teamID, PlayerID: playerID})

	check.Nil(t, err)
}

func TestListTeamBids_ReturnsTeamBids(t *testing.T) {
	app, repo, _ := newBidFixture(t)
	repo.bids = []models.Bid{
		{ID: uuid.New(), RoundID: roundID, TeamID: teamID, PlayerID: playerID, Amount: 50, Status: models.BidStatusOpen},
		{ID: uuid.New(), RoundID: roundID, TeamID: teamID, PlayerID: otherTeam, Amount: 50, Status: models.BidStatusLost},
	}

	bids, err := app.ListTeamBids(context.Background(), roundID, teamID)

	assert.Nil(t, err)
	check.Equal(t, 2, len(bids))
}
