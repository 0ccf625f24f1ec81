package config

import (
	"os"
	"strconv"
	"time"

	"permutest/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig
	Simulation SimulationConfig
	Data       DataConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// SimulationConfig holds simulation defaults and determinism settings
type SimulationConfig struct {
	Seed            int64
	DefaultSpeed    int
	DefaultTotal    int
	DefaultTail     string
	BlockingEnabled bool
}

// DataConfig holds optional data import settings
type DataConfig struct {
	// ImportFile optionally points at an .xlsx/.csv worksheet loaded into
	// the table at startup.
	ImportFile string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("PORT", "8080"),
			ShutdownTimeout: getEnvDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Simulation: SimulationConfig{
			Seed:            getEnvInt64OrDefault("SIM_SEED", 42),
			DefaultSpeed:    getEnvIntOrDefault("SIM_DEFAULT_SPEED", 50),
			DefaultTotal:    getEnvIntOrDefault("SIM_DEFAULT_ITERATIONS", 1000),
			DefaultTail:     getEnvOrDefault("SIM_DEFAULT_TAIL", "two"),
			BlockingEnabled: getEnvBoolOrDefault("SIM_BLOCKING", false),
		},
		Data: DataConfig{
			ImportFile: getEnvOrDefault("IMPORT_FILE", ""),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if config.Simulation.DefaultSpeed < 1 || config.Simulation.DefaultSpeed > 100 {
		return errors.ConfigInvalid("SIM_DEFAULT_SPEED must be in [1,100]")
	}
	if config.Simulation.DefaultTotal < 1 || config.Simulation.DefaultTotal > 10000 {
		return errors.ConfigInvalid("SIM_DEFAULT_ITERATIONS must be in [1,10000]")
	}
	switch config.Simulation.DefaultTail {
	case "two", "left", "right":
	default:
		return errors.ConfigInvalid("SIM_DEFAULT_TAIL must be two, left or right")
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

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
