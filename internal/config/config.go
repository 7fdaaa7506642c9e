package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	WorkerCount     int
	FileTimeout     time.Duration
	OutputFormat    string
	TextEncoding    string
	PascalMinLength int
	PrintableRunMin int
	LogLevel        string
	DatabaseURL     string
	Neo4jURI        string
	Neo4jUser       string
	Neo4jPassword   string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	return &Config{
		WorkerCount:     getEnvInt("WORKER_COUNT", 8),
		FileTimeout:     getEnvDuration("FILE_TIMEOUT", 30*time.Second),
		OutputFormat:    getEnv("OUTPUT_FORMAT", "json"),
		TextEncoding:    getEnv("TEXT_ENCODING", "latin1"),
		PascalMinLength: getEnvInt("PASCAL_MIN_LENGTH", 5),
		PrintableRunMin: getEnvInt("PRINTABLE_RUN_MIN", 10),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		Neo4jURI:        getEnv("NEO4J_URI", ""),
		Neo4jUser:       getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:   getEnv("NEO4J_PASSWORD", ""),
	}
}

// StoreEnabled reports whether a Postgres URL is configured.
func (c *Config) StoreEnabled() bool { return c.DatabaseURL != "" }

// GraphEnabled reports whether a Neo4j URI is configured.
func (c *Config) GraphEnabled() bool { return c.Neo4jURI != "" }

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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid duration, using default")
		return fallback
	}
	return d
}
