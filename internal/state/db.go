// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	// Fee units are integers; ratio-space values are 18-decimal fixed point.
	// Both are stored as NUMERIC text so nothing ever round-trips through a
	// float.
	schemaSQL := `
		CREATE TABLE IF NOT EXISTS fee_parameters (
			params_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			category VARCHAR(255) NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			min_fee NUMERIC(40, 0) NOT NULL,
			max_fee NUMERIC(40, 0) NOT NULL,
			base_max_fee_delta NUMERIC(40, 0) NOT NULL,
			lookback_period INTEGER NOT NULL,
			min_period_seconds BIGINT NOT NULL,
			ratio_tolerance NUMERIC(60, 18) NOT NULL,
			linear_slope NUMERIC(60, 18) NOT NULL,
			max_current_ratio NUMERIC(60, 18) NOT NULL,
			upper_side_factor NUMERIC(60, 18) NOT NULL,
			lower_side_factor NUMERIC(60, 18) NOT NULL,
			CONSTRAINT uq_fee_parameters_category_version UNIQUE (category, version)
		);
		CREATE INDEX IF NOT EXISTS idx_fee_parameters_category_active ON fee_parameters(category, is_active, activated_at DESC);

		CREATE TABLE IF NOT EXISTS pool_fee_state (
			pool_id BIGINT PRIMARY KEY,
			category VARCHAR(255) NOT NULL,
			current_fee NUMERIC(40, 0) NOT NULL,
			target_ratio NUMERIC(60, 18) NOT NULL,
			last_update_timestamp TIMESTAMPTZ,
			streak INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_pool_fee_state_category ON pool_fee_state(category);

		CREATE TABLE IF NOT EXISTS fee_transitions (
			transition_id SERIAL PRIMARY KEY,
			pool_id BIGINT NOT NULL,
			poke_id VARCHAR(64) NOT NULL,
			old_fee NUMERIC(40, 0) NOT NULL,
			new_fee NUMERIC(40, 0) NOT NULL,
			old_target NUMERIC(60, 18) NOT NULL,
			observed_ratio NUMERIC(60, 18) NOT NULL,
			new_target NUMERIC(60, 18) NOT NULL,
			side VARCHAR(16) NOT NULL,
			streak INTEGER NOT NULL,
			transition_timestamp TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_fee_transitions_pool_id ON fee_transitions(pool_id, transition_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_fee_transitions_timestamp ON fee_transitions(transition_timestamp DESC);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
