package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Environment     string
	LogLevel        string
	LogFormat       string
	Port            string
	DatabasePath    string
	TransactionsCSV string
	CatalogCSV      string
	RefreshSchedule string
	EngineFile      string
	Engine          EngineConfig
}

// EngineConfig holds the recommendation engine tuning parameters. It
// can be overridden from a YAML file via STYLEHIVE_ENGINE_FILE.
type EngineConfig struct {
	MinSupport     float64 `yaml:"min_support"`
	MinConfidence  float64 `yaml:"min_confidence"`
	MaxItemsetSize int     `yaml:"max_itemset_size"`
	CFRank         int     `yaml:"cf_rank"`
	TopK           int     `yaml:"top_k"`
	MBAWeight      float64 `yaml:"mba_weight"`
	CFWeight       float64 `yaml:"cf_weight"`
	Aggregation    string  `yaml:"aggregation"`
}

// DefaultEngineConfig returns the documented engine defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinSupport:     0.01,
		MinConfidence:  0.3,
		MaxItemsetSize: 3,
		CFRank:         3,
		TopK:           5,
		MBAWeight:      0.5,
		CFWeight:       0.5,
		Aggregation:    "sum",
	}
}

// LoadConfig loads configuration from environment variables, then
// overlays the engine section from the YAML file if one is configured.
func LoadConfig() (*Config, error) {
	config := &Config{
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		Port:            getEnv("PORT", "8080"),
		DatabasePath:    getEnv("STYLEHIVE_DB_PATH", "stylehive.db"),
		TransactionsCSV: getEnv("STYLEHIVE_TRANSACTIONS_CSV", ""),
		CatalogCSV:      getEnv("STYLEHIVE_CATALOG_CSV", ""),
		RefreshSchedule: getEnv("STYLEHIVE_REFRESH_SCHEDULE", "@hourly"),
		EngineFile:      getEnv("STYLEHIVE_ENGINE_FILE", ""),
		Engine:          DefaultEngineConfig(),
	}

	config.Engine.MinSupport = getEnvAsFloat("STYLEHIVE_MIN_SUPPORT", config.Engine.MinSupport)
	config.Engine.MinConfidence = getEnvAsFloat("STYLEHIVE_MIN_CONFIDENCE", config.Engine.MinConfidence)
	config.Engine.MaxItemsetSize = getEnvAsInt("STYLEHIVE_MAX_ITEMSET_SIZE", config.Engine.MaxItemsetSize)
	config.Engine.CFRank = getEnvAsInt("STYLEHIVE_CF_RANK", config.Engine.CFRank)
	config.Engine.TopK = getEnvAsInt("STYLEHIVE_TOP_K", config.Engine.TopK)
	config.Engine.MBAWeight = getEnvAsFloat("STYLEHIVE_MBA_WEIGHT", config.Engine.MBAWeight)
	config.Engine.CFWeight = getEnvAsFloat("STYLEHIVE_CF_WEIGHT", config.Engine.CFWeight)
	config.Engine.Aggregation = getEnv("STYLEHIVE_AGGREGATION", config.Engine.Aggregation)

	if config.EngineFile != "" {
		if err := loadEngineFile(config.EngineFile, &config.Engine); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// loadEngineFile overlays engine parameters from a YAML file. Fields
// absent from the file keep their current values.
func loadEngineFile(path string, engine *EngineConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read engine config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, engine); err != nil {
		return fmt.Errorf("failed to parse engine config %s: %w", path, err)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
