// Package config loads service settings from environment variables, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Observation source for training and stats: "csv" or "postgres".
	Source      string
	CSVPath     string
	PostgresDSN string

	// Ingest (Kafka -> Postgres) settings.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
	BatchSize    int

	// Artifact persistence.
	ArtifactDir string

	// Balancing policy: "oversample" or "class-weight".
	BalanceStrategy  string
	BalanceRatio     float64
	BalanceNeighbors int

	// Classifier hyperparameters.
	ForestTrees    int
	ForestMaxDepth int
	Seed           int64
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load() // missing .env is fine

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	batchSize, err := parseInt("BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}

	balanceRatio, err := parseFloat("BALANCE_RATIO", 1.0)
	if err != nil {
		return nil, err
	}
	balanceNeighbors, err := parseInt("BALANCE_NEIGHBORS", 5)
	if err != nil {
		return nil, err
	}

	forestTrees, err := parseInt("FOREST_TREES", 200)
	if err != nil {
		return nil, err
	}
	forestMaxDepth, err := parseInt("FOREST_MAX_DEPTH", 10)
	if err != nil {
		return nil, err
	}
	seed, err := parseInt("RANDOM_SEED", 42)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Source:      envOrDefault("OBSERVATION_SOURCE", "csv"),
		CSVPath:     envOrDefault("CSV_PATH", "data/observations.csv"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		KafkaBrokers: splitCSV(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "raw-incident-reports"),
		KafkaGroupID: envOrDefault("KAFKA_GROUP_ID", "accident-risk-ingest"),
		BatchSize:    batchSize,

		ArtifactDir: envOrDefault("ARTIFACT_DIR", "artifacts"),

		BalanceStrategy:  envOrDefault("BALANCE_STRATEGY", "oversample"),
		BalanceRatio:     balanceRatio,
		BalanceNeighbors: balanceNeighbors,

		ForestTrees:    forestTrees,
		ForestMaxDepth: forestMaxDepth,
		Seed:           int64(seed),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Source {
	case "csv":
		if c.CSVPath == "" {
			return errors.New("CSV_PATH is required when OBSERVATION_SOURCE=csv")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required when OBSERVATION_SOURCE=postgres")
		}
	default:
		return fmt.Errorf("invalid OBSERVATION_SOURCE %q (want csv or postgres)", c.Source)
	}

	switch c.BalanceStrategy {
	case "oversample", "class-weight":
	default:
		return fmt.Errorf("invalid BALANCE_STRATEGY %q (want oversample or class-weight)", c.BalanceStrategy)
	}
	if c.BalanceRatio <= 0 || c.BalanceRatio > 1 {
		return errors.New("BALANCE_RATIO must be in (0, 1]")
	}

	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.BatchSize <= 0 {
		return errors.New("BATCH_SIZE must be positive")
	}
	if c.ForestTrees <= 0 {
		return errors.New("FOREST_TREES must be positive")
	}
	if c.ForestMaxDepth <= 0 {
		return errors.New("FOREST_MAX_DEPTH must be positive")
	}
	if c.ArtifactDir == "" {
		return errors.New("ARTIFACT_DIR is required")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}
