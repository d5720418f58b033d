package main

import (
	"database/sql"

	"github.com/jonboulle/clockwork"
	"github.com/leagueforge/auctioneer/go/internal/auction/allocation"
	"github.com/leagueforge/auctioneer/go/internal/auction/bid"
	"github.com/leagueforge/auctioneer/go/internal/auction/budget"
	"github.com/leagueforge/auctioneer/go/internal/auction/outbox"
	"github.com/leagueforge/auctioneer/go/internal/auction/reserve"
	"github.com/leagueforge/auctioneer/go/internal/auction/round"
	"github.com/leagueforge/auctioneer/go/internal/auction/tiebreaker"
	"github.com/rs/zerolog"
)

type Services struct {
	Rounds      *round.App
	Bids        *bid.App
	Budgets     *budget.App
	Reserves    *reserve.App
	Allocations *allocation.App
	Tiebreakers *tiebreaker.App
}

func setupServices(database *sql.DB, config *Config, clock clockwork.Clock, logger zerolog.Logger) *Services {
	// Queries layer → Repository layer → App layer
	budgetQueries := budget.NewQueries()
	roundQueries := round.NewQueries()
	bidQueries := bid.NewQueries()
	tiebreakerQueries := tiebreaker.NewQueries()
	allocationQueries := allocation.NewQueries()
	outboxQueries := outbox.NewQueries()

	roundApp := round.NewApp(database, clock, logger)
	budgetApp := budget.NewApp(database)
	reserveApp := reserve.NewApp(database, roundQueries, budgetQueries, logger)

	bidRepo := bid.NewRepository(database, budgetQueries, roundQueries, outboxQueries)
	bidApp := bid.NewApp(bidRepo, roundApp, reserveApp, clock, logger)

	allocationRepo := allocation.NewRepository(database, bidQueries, roundQueries, budgetQueries, tiebreakerQueries, outboxQueries, logger)
	allocationApp := allocation.NewApp(allocationRepo, roundApp, clock, allocation.Config{
		TiebreakerDuration: duration(config.Engine.TiebreakerDuration, 0),
		FallbackPrice:      config.Engine.FallbackPrice,
	}, logger)

	tiebreakerRepo := tiebreaker.NewRepository(database, bidQueries, budgetQueries, roundQueries, allocationQueries, outboxQueries)
	tiebreakerApp := tiebreaker.NewApp(tiebreakerRepo, reserveApp, clock, logger)

	return &Services{
		Rounds:      roundApp,
		Bids:        bidApp,
		Budgets:     budgetApp,
		Reserves:    reserveApp,
		Allocations: allocationApp,
		Tiebreakers: tiebreakerApp,
	}
}
