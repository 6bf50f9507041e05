// ./internal/state/pool_state_store.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/ammforge/dfc/internal/types"
)

// UpsertPoolState writes the full fee state of one pool. Called on pool
// configuration and after every successful poke; the row always reflects the
// committed in-memory state.
func UpsertPoolState(s types.FeeState) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	var lastUpdate interface{}
	if !s.LastUpdateTimestamp.IsZero() {
		lastUpdate = s.LastUpdateTimestamp
	}

	stmt := `
        INSERT INTO pool_fee_state (
            pool_id, category, current_fee, target_ratio, last_update_timestamp, streak, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (pool_id) DO UPDATE SET
            category = EXCLUDED.category,
            current_fee = EXCLUDED.current_fee,
            target_ratio = EXCLUDED.target_ratio,
            last_update_timestamp = EXCLUDED.last_update_timestamp,
            streak = EXCLUDED.streak,
            updated_at = EXCLUDED.updated_at;`

	_, err := DB.Exec(stmt,
		int64(s.PoolID), s.Category,
		s.CurrentFee.String(), s.TargetRatio.String(),
		lastUpdate, s.Streak, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pool fee state for pool %d: %w", s.PoolID, err)
	}
	return nil
}

// LoadAllPoolStates loads the fee state of every configured pool, keyed by
// pool ID. Used at startup to hydrate the controller.
func LoadAllPoolStates() (map[types.PoolID]types.FeeState, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT pool_id, category, current_fee, target_ratio, last_update_timestamp, streak
        FROM pool_fee_state;`

	rows, err := DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pool fee states: %w", err)
	}
	defer rows.Close()

	result := make(map[types.PoolID]types.FeeState)
	for rows.Next() {
		var poolID int64
		var category, fee, target string
		var lastUpdate sql.NullTime
		var streak int32

		if err := rows.Scan(&poolID, &category, &fee, &target, &lastUpdate, &streak); err != nil {
			return nil, fmt.Errorf("failed to scan pool fee state row: %w", err)
		}

		s := types.FeeState{
			PoolID:   types.PoolID(poolID),
			Category: category,
			Streak:   streak,
		}
		var ok bool
		if s.CurrentFee, ok = sdkmath.NewIntFromString(fee); !ok {
			return nil, fmt.Errorf("invalid current_fee value '%s' for pool %d", fee, poolID)
		}
		if s.TargetRatio, err = sdkmath.LegacyNewDecFromStr(target); err != nil {
			return nil, fmt.Errorf("invalid target_ratio value '%s' for pool %d: %w", target, poolID, err)
		}
		if lastUpdate.Valid {
			s.LastUpdateTimestamp = lastUpdate.Time
		}
		result[s.PoolID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pool fee state rows: %w", err)
	}

	log.Info().Int("pools", len(result)).Msg("Loaded fee state for all configured pools")
	return result, nil
}
