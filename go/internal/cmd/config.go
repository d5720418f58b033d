package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries the engine tunables loaded from YAML. Everything has a
// default so the service runs without a config file.
type Config struct {
	Engine struct {
		TiebreakerDuration    string `yaml:"tiebreaker_duration"`
		FallbackPrice         int64  `yaml:"fallback_price"`
		OutboxPollInterval    string `yaml:"outbox_poll_interval"`
		OutboxBatchSize       int32  `yaml:"outbox_batch_size"`
		FinalizeSweepInterval string `yaml:"finalize_sweep_interval"`
	} `yaml:"engine"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads the YAML config. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	var config Config
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}

// duration parses a config duration string, falling back when absent or
// malformed.
func duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
