package main

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/leagueforge/auctioneer/go/internal/gateway"
	"github.com/leagueforge/auctioneer/go/internal/httpapi"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(services *Services, database *sql.DB, cm *gateway.ConnectionManager, logger zerolog.Logger) *http.Server {
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	apiHandler := httpapi.NewHandler(
		services.Rounds,
		services.Bids,
		services.Budgets,
		services.Allocations,
		services.Tiebreakers,
		services.Reserves,
		logger,
	)
	wsHandler := gateway.NewHandler(cm, logger)
	mux := httpapi.NewRouter(apiHandler, wsHandler, database, cm)

	handler := c.Handler(mux)

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", getEnv("PORT", "8080")),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}
