package main

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// setupDatabase opens the Postgres pool from DB_* env vars. The auction
// engine leans on short conditional updates, so the pool stays small.
func setupDatabase(logger zerolog.Logger) (*sql.DB, error) {
	host := getEnv("DB_HOST", "localhost")
	port := getEnvAsInt("DB_PORT", 5432)
	name := getEnv("DB_NAME", "auctioneer")

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		host, port, name,
		getEnv("DB_SSLMODE", "disable"),
	)

	database, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	database.SetMaxOpenConns(getEnvAsInt("DB_MAX_OPEN_CONNS", 25))
	database.SetMaxIdleConns(getEnvAsInt("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(30 * time.Minute)

	if err := database.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("host", host).
		Int("port", port).
		Str("database", name).
		Msg("connected to database")
	return database, nil
}
