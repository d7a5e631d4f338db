package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/safar/go-shop-orders/internal/config"
	"github.com/safar/go-shop-orders/internal/database"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if len(os.Args) < 2 {
		logger.Fatal().Msg("Usage: go run scripts/run_migrations.go [up|down]")
	}
	direction := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to database")
	}
	defer db.Close()

	applied, err := database.RunMigrations(db, "migrations", direction)
	if err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	for _, name := range applied {
		logger.Info().Str("file", name).Msg("migration applied")
	}
	logger.Info().Int("count", len(applied)).Str("direction", direction).Msg("migrations complete")
}
