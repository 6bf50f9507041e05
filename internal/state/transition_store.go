// ./internal/state/transition_store.go
package state

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/ammforge/dfc/internal/types"
)

// InsertTransition appends one transition record to the audit log.
func InsertTransition(t types.Transition) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
        INSERT INTO fee_transitions (
            pool_id, poke_id, old_fee, new_fee,
            old_target, observed_ratio, new_target,
            side, streak, transition_timestamp
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

	_, err := DB.Exec(stmt,
		int64(t.PoolID), t.PokeID,
		t.OldFee.String(), t.NewFee.String(),
		t.OldTarget.String(), t.ObservedRatio.String(), t.NewTarget.String(),
		t.Side.String(), t.Streak, t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fee transition for pool %d: %w", t.PoolID, err)
	}
	return nil
}

// GetRecentTransitions returns the most recent transitions for a pool, newest
// first.
func GetRecentTransitions(poolID types.PoolID, limit int) ([]types.Transition, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
        SELECT pool_id, poke_id, old_fee, new_fee,
               old_target, observed_ratio, new_target,
               side, streak, transition_timestamp
        FROM fee_transitions
        WHERE pool_id = $1
        ORDER BY transition_timestamp DESC, transition_id DESC
        LIMIT $2;`

	rows, err := DB.Query(query, int64(poolID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fee transitions for pool %d: %w", poolID, err)
	}
	defer rows.Close()

	var result []types.Transition
	for rows.Next() {
		var t types.Transition
		var id int64
		var oldFee, newFee, oldTarget, observed, newTarget, side string

		if err := rows.Scan(&id, &t.PokeID, &oldFee, &newFee, &oldTarget, &observed, &newTarget, &side, &t.Streak, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan fee transition row: %w", err)
		}
		t.PoolID = types.PoolID(id)

		var ok bool
		if t.OldFee, ok = sdkmath.NewIntFromString(oldFee); !ok {
			return nil, fmt.Errorf("invalid old_fee value '%s'", oldFee)
		}
		if t.NewFee, ok = sdkmath.NewIntFromString(newFee); !ok {
			return nil, fmt.Errorf("invalid new_fee value '%s'", newFee)
		}
		if t.OldTarget, err = sdkmath.LegacyNewDecFromStr(oldTarget); err != nil {
			return nil, fmt.Errorf("invalid old_target value '%s': %w", oldTarget, err)
		}
		if t.ObservedRatio, err = sdkmath.LegacyNewDecFromStr(observed); err != nil {
			return nil, fmt.Errorf("invalid observed_ratio value '%s': %w", observed, err)
		}
		if t.NewTarget, err = sdkmath.LegacyNewDecFromStr(newTarget); err != nil {
			return nil, fmt.Errorf("invalid new_target value '%s': %w", newTarget, err)
		}
		switch side {
		case "above":
			t.Side = types.SideAbove
		case "below":
			t.Side = types.SideBelow
		default:
			t.Side = types.SideInBand
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fee transition rows: %w", err)
	}
	return result, nil
}
