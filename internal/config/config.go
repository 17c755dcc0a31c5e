package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	User               string
	Password           string
	SPARQLEndpoint     string
	DatabaseURL        string
	UserAgent          string
	MaxConflictRetries int
	LocationBatchSize  int
	WorkerCount        int
	HTTPTimeout        time.Duration
	DryRun             bool
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	return &Config{
		User:               getEnv("LLBOT_USER", ""),
		Password:           getEnv("LLBOT_PASSWORD", ""),
		SPARQLEndpoint:     getEnv("SPARQL_ENDPOINT", "https://query.wikidata.org/sparql"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		UserAgent:          getEnv("USER_AGENT", "llbot/1.0 (https://lingualibre.org)"),
		MaxConflictRetries: getEnvInt("MAX_CONFLICT_RETRIES", 5),
		LocationBatchSize:  getEnvInt("LOCATION_BATCH_SIZE", 50),
		WorkerCount:        getEnvInt("WORKER_COUNT", 4),
		HTTPTimeout:        time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 60)) * time.Second,
		DryRun:             getEnvBool("LLBOT_DRY_RUN", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid integer, using default")
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid boolean, using default")
		return fallback
	}
	return b
}
