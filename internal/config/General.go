package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// EngineURL is the base URL of the pool engine's admin API, the sink every
	// recomputed fee is pushed to.
	EngineURL string
	// EngineTimeout bounds a single fee push to the pool engine.
	EngineTimeout time.Duration

	// AllowedCallers is the list of caller identities permitted to poke the
	// controller. An empty list denies everyone.
	AllowedCallers []string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	EngineURL, err = getEnv("DFC_ENGINE_URL")
	if err != nil {
		return err
	}
	EngineURL = strings.TrimRight(EngineURL, "/")

	timeoutSeconds, err := getEnvAsUint64("DFC_ENGINE_TIMEOUT_SECONDS")
	if err != nil {
		return err
	}
	EngineTimeout = time.Duration(timeoutSeconds) * time.Second

	callers, err := getEnv("DFC_ALLOWED_CALLERS")
	if err != nil {
		return err
	}
	AllowedCallers = nil
	for _, c := range strings.Split(callers, ",") {
		if c = strings.TrimSpace(c); c != "" {
			AllowedCallers = append(AllowedCallers, c)
		}
	}

	log.Debug().
		Str("EngineURL", EngineURL).
		Dur("EngineTimeout", EngineTimeout).
		Int("AllowedCallers", len(AllowedCallers)).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}
