package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfig tests configuration loading
func TestLoadConfig(t *testing.T) {
	// Set test environment variables
	os.Setenv("ENVIRONMENT", "test")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("PORT", "9090")
	os.Setenv("STYLEHIVE_MIN_SUPPORT", "0.05")
	os.Setenv("STYLEHIVE_CF_RANK", "7")
	os.Setenv("STYLEHIVE_AGGREGATION", "max")

	defer func() {
		os.Unsetenv("ENVIRONMENT")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("PORT")
		os.Unsetenv("STYLEHIVE_MIN_SUPPORT")
		os.Unsetenv("STYLEHIVE_CF_RANK")
		os.Unsetenv("STYLEHIVE_AGGREGATION")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Environment != "test" {
		t.Errorf("Expected environment 'test', got '%s'", cfg.Environment)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", cfg.LogLevel)
	}

	if cfg.Port != "9090" {
		t.Errorf("Expected port '9090', got '%s'", cfg.Port)
	}

	if cfg.Engine.MinSupport != 0.05 {
		t.Errorf("Expected MinSupport 0.05, got %v", cfg.Engine.MinSupport)
	}

	if cfg.Engine.CFRank != 7 {
		t.Errorf("Expected CFRank 7, got %d", cfg.Engine.CFRank)
	}

	if cfg.Engine.Aggregation != "max" {
		t.Errorf("Expected aggregation 'max', got '%s'", cfg.Engine.Aggregation)
	}
}

// TestLoadConfigDefaults tests default values
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Expected default environment 'development', got '%s'", cfg.Environment)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port '8080', got '%s'", cfg.Port)
	}

	if cfg.RefreshSchedule != "@hourly" {
		t.Errorf("Expected default schedule '@hourly', got '%s'", cfg.RefreshSchedule)
	}

	if cfg.Engine != DefaultEngineConfig() {
		t.Errorf("Expected default engine config, got %+v", cfg.Engine)
	}
}

// TestLoadConfigEngineFile tests the YAML overlay
func TestLoadConfigEngineFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	content := "min_support: 0.02\nmba_weight: 0.7\ncf_weight: 0.3\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write engine file: %v", err)
	}

	os.Setenv("STYLEHIVE_ENGINE_FILE", path)
	defer os.Unsetenv("STYLEHIVE_ENGINE_FILE")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Engine.MinSupport != 0.02 {
		t.Errorf("Expected MinSupport 0.02 from file, got %v", cfg.Engine.MinSupport)
	}

	if cfg.Engine.MBAWeight != 0.7 || cfg.Engine.CFWeight != 0.3 {
		t.Errorf("Expected weights 0.7/0.3 from file, got %v/%v", cfg.Engine.MBAWeight, cfg.Engine.CFWeight)
	}

	// Fields absent from the file keep their defaults.
	if cfg.Engine.MinConfidence != 0.3 {
		t.Errorf("Expected default MinConfidence 0.3, got %v", cfg.Engine.MinConfidence)
	}
}

// TestLoadConfigMissingEngineFile tests the error path for a bad path
func TestLoadConfigMissingEngineFile(t *testing.T) {
	os.Setenv("STYLEHIVE_ENGINE_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	defer os.Unsetenv("STYLEHIVE_ENGINE_FILE")

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error for missing engine file")
	}
}

// TestLoadConfigBadFloat tests that unparseable values fall back to defaults
func TestLoadConfigBadFloat(t *testing.T) {
	os.Setenv("STYLEHIVE_MIN_SUPPORT", "not-a-number")
	defer os.Unsetenv("STYLEHIVE_MIN_SUPPORT")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Engine.MinSupport != 0.01 {
		t.Errorf("Expected fallback 0.01, got %v", cfg.Engine.MinSupport)
	}
}
