package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	Port                     string
	StoreBackend             string
	DatabaseURL              string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int
	StorePollMillis          int
	StoreURL                 string

	MaxRooms              int
	SweepIntervalSeconds  int
	InactivitySeconds     int
	PostGameDeleteSeconds int
	RematchDeleteSeconds  int
	RematchWindowSeconds  int
	RematchEnabled        bool
	GraceSeconds          int
	WarningClearSeconds   int
	TickMillis            int
	SimilarityThreshold   float64
	CatalogBaseURL        string
	CoverArtBaseURL       string
	CatalogUserAgent      string
	CatalogRequestsPerSec float64
	RateLimitPerSecond    float64
	RateLimitBurst        int
	ServerSweep           bool
}

// LoadDotEnv reads each env file that exists, in order. Variables already
// set, including those from an earlier file, keep their value.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return err
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func Default() Config {
	return Config{
		Port:                     "8080",
		StoreBackend:             BackendMemory,
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
		StorePollMillis:          500,
		StoreURL:                 "http://localhost:8080",
		MaxRooms:                 20,
		SweepIntervalSeconds:     300,
		InactivitySeconds:        600,
		PostGameDeleteSeconds:    10,
		RematchDeleteSeconds:     30,
		RematchWindowSeconds:     30,
		RematchEnabled:           true,
		GraceSeconds:             3,
		WarningClearSeconds:      2,
		TickMillis:               1000,
		SimilarityThreshold:      0.70,
		CatalogBaseURL:           "https://musicbrainz.org/ws/2",
		CoverArtBaseURL:          "https://coverartarchive.org",
		CatalogUserAgent:         "MusicBattleGame/2.0",
		CatalogRequestsPerSec:    1,
		RateLimitPerSecond:       20,
		RateLimitBurst:           40,
		ServerSweep:              false,
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("PORT"); raw != "" {
		cfg.Port = raw
	}
	if raw := strings.ToLower(os.Getenv("STORE_BACKEND")); raw == BackendMemory || raw == BackendPostgres {
		cfg.StoreBackend = raw
	}
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		cfg.DatabaseURL = raw
	}
	positiveInt("DB_MAX_OPEN_CONNS", &cfg.DBMaxOpenConns)
	positiveInt("DB_MAX_IDLE_CONNS", &cfg.DBMaxIdleConns)
	positiveInt("DB_CONN_MAX_LIFETIME_SECONDS", &cfg.DBConnMaxLifetimeSeconds)
	positiveInt("DB_CONN_MAX_IDLE_SECONDS", &cfg.DBConnMaxIdleTimeSeconds)
	positiveInt("STORE_POLL_MILLIS", &cfg.StorePollMillis)
	if raw := os.Getenv("STORE_URL"); raw != "" {
		cfg.StoreURL = strings.TrimRight(raw, "/")
	}
	positiveInt("MAX_ROOMS", &cfg.MaxRooms)
	positiveInt("SWEEP_INTERVAL_SECONDS", &cfg.SweepIntervalSeconds)
	positiveInt("INACTIVITY_SECONDS", &cfg.InactivitySeconds)
	positiveInt("POST_GAME_DELETE_SECONDS", &cfg.PostGameDeleteSeconds)
	positiveInt("REMATCH_DELETE_SECONDS", &cfg.RematchDeleteSeconds)
	positiveInt("REMATCH_WINDOW_SECONDS", &cfg.RematchWindowSeconds)
	boolean("REMATCH_ENABLED", &cfg.RematchEnabled)
	positiveInt("GRACE_SECONDS", &cfg.GraceSeconds)
	positiveInt("WARNING_CLEAR_SECONDS", &cfg.WarningClearSeconds)
	positiveInt("TICK_MILLIS", &cfg.TickMillis)
	if raw := os.Getenv("SIMILARITY_THRESHOLD"); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil && value > 0 && value <= 1 {
			cfg.SimilarityThreshold = value
		}
	}
	if raw := os.Getenv("CATALOG_BASE_URL"); raw != "" {
		cfg.CatalogBaseURL = strings.TrimRight(raw, "/")
	}
	if raw := os.Getenv("COVER_ART_BASE_URL"); raw != "" {
		cfg.CoverArtBaseURL = strings.TrimRight(raw, "/")
	}
	if raw := os.Getenv("CATALOG_USER_AGENT"); raw != "" {
		cfg.CatalogUserAgent = raw
	}
	positiveFloat("CATALOG_REQUESTS_PER_SECOND", &cfg.CatalogRequestsPerSec)
	positiveFloat("RATE_LIMIT_PER_SECOND", &cfg.RateLimitPerSecond)
	positiveInt("RATE_LIMIT_BURST", &cfg.RateLimitBurst)
	boolean("SERVER_SWEEP", &cfg.ServerSweep)
	return cfg
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c Config) Inactivity() time.Duration {
	return time.Duration(c.InactivitySeconds) * time.Second
}

func (c Config) PostGameDelete() time.Duration {
	return time.Duration(c.PostGameDeleteSeconds) * time.Second
}

func (c Config) RematchDelete() time.Duration {
	return time.Duration(c.RematchDeleteSeconds) * time.Second
}

func (c Config) RematchWindow() time.Duration {
	return time.Duration(c.RematchWindowSeconds) * time.Second
}

func (c Config) Grace() time.Duration {
	return time.Duration(c.GraceSeconds) * time.Second
}

func (c Config) WarningClear() time.Duration {
	return time.Duration(c.WarningClearSeconds) * time.Second
}

func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickMillis) * time.Millisecond
}

func (c Config) StorePoll() time.Duration {
	return time.Duration(c.StorePollMillis) * time.Millisecond
}

func positiveInt(key string, dst *int) {
	if raw := os.Getenv(key); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			*dst = value
		}
	}
}

func positiveFloat(key string, dst *float64) {
	if raw := os.Getenv(key); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil && value > 0 {
			*dst = value
		}
	}
}

func boolean(key string, dst *bool) {
	if raw := os.Getenv(key); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			*dst = value
		}
	}
}
