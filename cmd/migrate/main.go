package main

import (
	"errors"
	"os"

	"music-battle/internal/config"
	"music-battle/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
)

func main() {
	logger.Setup(os.Stderr, false)
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	m, err := migrate.New("file://db/migrations", mustDatabaseURL())
	if err != nil {
		log.Fatal().Err(err).Msg("migration setup failed")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal().Err(err).Msg("database migration failed")
	}
	log.Info().Msg("database migrations applied")
}

func mustDatabaseURL() string {
	dsn := config.Load().DatabaseURL
	if dsn == "" {
		log.Fatal().Msg("DATABASE_URL is not set")
	}
	return dsn
}
