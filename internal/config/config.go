package config

import (
	"os"
	"strconv"

	"colsense/internal/errors"
)

// Config represents the complete engine configuration
type Config struct {
	Store  StoreConfig
	Engine EngineConfig
	Vocab  VocabConfig
}

// StoreConfig selects and locates the knowledge store backend
type StoreConfig struct {
	Driver string // "sqlite" or "postgres"
	Path   string // sqlite file path
	URL    string // postgres connection URL
}

// EngineConfig holds the scoring contract. HeaderWeight/ValueWeight is the
// single canonical fusion pair used everywhere header and value evidence
// are combined. ResolverOriginalWeight/ResolverHeuristicWeight is the
// separate pair the conflict resolver uses to blend original confidence
// with the discriminating heuristic score.
type EngineConfig struct {
	HeaderWeight            float64
	ValueWeight             float64
	ResolverOriginalWeight  float64
	ResolverHeuristicWeight float64
	MappedThreshold         float64
	UncertainThreshold      float64
	SampleCap               int
	MaxSuggestions          int
	TieEpsilon              float64
}

// VocabConfig points at an optional YAML vocabulary overlay
type VocabConfig struct {
	OverlayFile string
}

// Default returns the documented contract values; library callers never
// need environment variables.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "colsense.db",
		},
		Engine: EngineConfig{
			HeaderWeight:            0.45,
			ValueWeight:             0.55,
			ResolverOriginalWeight:  0.4,
			ResolverHeuristicWeight: 0.6,
			MappedThreshold:         80,
			UncertainThreshold:      50,
			SampleCap:               300,
			MaxSuggestions:          5,
			TieEpsilon:              0.5,
		},
	}
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := Default()

	config.Store = StoreConfig{
		Driver: getEnvOrDefault("COLSENSE_STORE_DRIVER", config.Store.Driver),
		Path:   getEnvOrDefault("COLSENSE_STORE_PATH", config.Store.Path),
		URL:    getEnvOrDefault("COLSENSE_STORE_URL", ""),
	}

	config.Engine.HeaderWeight = getEnvFloatOrDefault("COLSENSE_HEADER_WEIGHT", config.Engine.HeaderWeight)
	config.Engine.ValueWeight = getEnvFloatOrDefault("COLSENSE_VALUE_WEIGHT", config.Engine.ValueWeight)
	config.Engine.MappedThreshold = getEnvFloatOrDefault("COLSENSE_MAPPED_THRESHOLD", config.Engine.MappedThreshold)
	config.Engine.UncertainThreshold = getEnvFloatOrDefault("COLSENSE_UNCERTAIN_THRESHOLD", config.Engine.UncertainThreshold)
	config.Engine.SampleCap = getEnvIntOrDefault("COLSENSE_SAMPLE_CAP", config.Engine.SampleCap)

	config.Vocab.OverlayFile = getEnvOrDefault("COLSENSE_VOCAB_FILE", "")

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func validateConfig(config *Config) error {
	switch config.Store.Driver {
	case "sqlite":
		if config.Store.Path == "" {
			return errors.ConfigInvalid("COLSENSE_STORE_PATH is required for the sqlite driver")
		}
	case "postgres":
		if config.Store.URL == "" {
			return errors.ConfigInvalid("COLSENSE_STORE_URL is required for the postgres driver")
		}
	case "memory":
	default:
		return errors.ConfigInvalid("COLSENSE_STORE_DRIVER must be sqlite, postgres, or memory")
	}

	e := config.Engine
	if e.HeaderWeight < 0 || e.ValueWeight < 0 || e.HeaderWeight+e.ValueWeight == 0 {
		return errors.ConfigInvalid("fusion weights must be non-negative and not both zero")
	}
	if e.UncertainThreshold > e.MappedThreshold {
		return errors.ConfigInvalid("uncertain threshold cannot exceed mapped threshold")
	}
	if e.SampleCap < 3 {
		return errors.ConfigInvalid("sample cap must be at least 3")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
