// ./internal/state/params_store.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/ammforge/dfc/internal/types"
)

// SaveFeeParams saves a new version of a category's fee parameter bundle.
// When makeActive is set, the previously active bundle for the category is
// deactivated in the same transaction, so readers never observe two active
// bundles.
func SaveFeeParams(params types.FeeParams, category string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE fee_parameters SET is_active = FALSE WHERE category = $1 AND is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate, category)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", category, err)
		}
	}

	stmt := `
        INSERT INTO fee_parameters (
            version, category, is_active, activated_at, created_at,
            min_fee, max_fee, base_max_fee_delta,
            lookback_period, min_period_seconds,
            ratio_tolerance, linear_slope, max_current_ratio,
            upper_side_factor, lower_side_factor
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8,
            $9, $10,
            $11, $12, $13,
            $14, $15
        ) RETURNING params_id;`

	var paramsID int64
	currentTime := time.Now()
	err = tx.QueryRow(
		stmt,
		version, category, makeActive, currentTime, currentTime,
		params.MinFee.String(), params.MaxFee.String(), params.BaseMaxFeeDelta.String(),
		params.LookbackPeriod, int64(params.MinPeriod/time.Second),
		params.RatioTolerance.String(), params.LinearSlope.String(), params.MaxCurrentRatio.String(),
		params.UpperSideFactor.String(), params.LowerSideFactor.String(),
	).Scan(&paramsID)

	if err != nil {
		return 0, fmt.Errorf("failed to insert fee parameters: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("category", category).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved fee parameters")
	return paramsID, nil
}

// LoadActiveFeeParams loads the currently active bundle for a category.
func LoadActiveFeeParams(category string) (*types.FeeParams, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT
            min_fee, max_fee, base_max_fee_delta,
            lookback_period, min_period_seconds,
            ratio_tolerance, linear_slope, max_current_ratio,
            upper_side_factor, lower_side_factor
        FROM fee_parameters
        WHERE category = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	row := DB.QueryRow(query, category)
	p, err := scanFeeParams(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no active fee parameters found for category '%s'", category)
		}
		return nil, fmt.Errorf("failed to scan active fee parameters for category '%s': %w", category, err)
	}
	log.Info().Str("category", category).Msg("Loaded active fee parameters")
	return p, nil
}

// LoadAllActiveFeeParams loads the active bundle of every category, keyed by
// category name. Used at startup to hydrate the controller.
func LoadAllActiveFeeParams() (map[string]types.FeeParams, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT
            category,
            min_fee, max_fee, base_max_fee_delta,
            lookback_period, min_period_seconds,
            ratio_tolerance, linear_slope, max_current_ratio,
            upper_side_factor, lower_side_factor
        FROM fee_parameters
        WHERE is_active = TRUE;`

	rows, err := DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active fee parameters: %w", err)
	}
	defer rows.Close()

	result := make(map[string]types.FeeParams)
	for rows.Next() {
		var category string
		var minFee, maxFee, baseDelta string
		var lookback uint32
		var minPeriodSeconds int64
		var tolerance, slope, maxRatio, upper, lower string

		if err := rows.Scan(
			&category,
			&minFee, &maxFee, &baseDelta,
			&lookback, &minPeriodSeconds,
			&tolerance, &slope, &maxRatio,
			&upper, &lower,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fee parameters row: %w", err)
		}

		p, err := buildFeeParams(minFee, maxFee, baseDelta, lookback, minPeriodSeconds, tolerance, slope, maxRatio, upper, lower)
		if err != nil {
			return nil, fmt.Errorf("failed to decode fee parameters for category '%s': %w", category, err)
		}
		result[category] = *p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fee parameters rows: %w", err)
	}

	log.Info().Int("categories", len(result)).Msg("Loaded active fee parameters for all categories")
	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeeParams(row rowScanner) (*types.FeeParams, error) {
	var minFee, maxFee, baseDelta string
	var lookback uint32
	var minPeriodSeconds int64
	var tolerance, slope, maxRatio, upper, lower string

	if err := row.Scan(
		&minFee, &maxFee, &baseDelta,
		&lookback, &minPeriodSeconds,
		&tolerance, &slope, &maxRatio,
		&upper, &lower,
	); err != nil {
		return nil, err
	}
	return buildFeeParams(minFee, maxFee, baseDelta, lookback, minPeriodSeconds, tolerance, slope, maxRatio, upper, lower)
}

func buildFeeParams(minFee, maxFee, baseDelta string, lookback uint32, minPeriodSeconds int64, tolerance, slope, maxRatio, upper, lower string) (*types.FeeParams, error) {
	p := &types.FeeParams{LookbackPeriod: lookback, MinPeriod: time.Duration(minPeriodSeconds) * time.Second}

	var ok bool
	if p.MinFee, ok = sdkmath.NewIntFromString(minFee); !ok {
		return nil, fmt.Errorf("invalid min_fee value '%s'", minFee)
	}
	if p.MaxFee, ok = sdkmath.NewIntFromString(maxFee); !ok {
		return nil, fmt.Errorf("invalid max_fee value '%s'", maxFee)
	}
	if p.BaseMaxFeeDelta, ok = sdkmath.NewIntFromString(baseDelta); !ok {
		return nil, fmt.Errorf("invalid base_max_fee_delta value '%s'", baseDelta)
	}

	var err error
	if p.RatioTolerance, err = sdkmath.LegacyNewDecFromStr(tolerance); err != nil {
		return nil, fmt.Errorf("invalid ratio_tolerance value '%s': %w", tolerance, err)
	}
	if p.LinearSlope, err = sdkmath.LegacyNewDecFromStr(slope); err != nil {
		return nil, fmt.Errorf("invalid linear_slope value '%s': %w", slope, err)
	}
	if p.MaxCurrentRatio, err = sdkmath.LegacyNewDecFromStr(maxRatio); err != nil {
		return nil, fmt.Errorf("invalid max_current_ratio value '%s': %w", maxRatio, err)
	}
	if p.UpperSideFactor, err = sdkmath.LegacyNewDecFromStr(upper); err != nil {
		return nil, fmt.Errorf("invalid upper_side_factor value '%s': %w", upper, err)
	}
	if p.LowerSideFactor, err = sdkmath.LegacyNewDecFromStr(lower); err != nil {
		return nil, fmt.Errorf("invalid lower_side_factor value '%s': %w", lower, err)
	}
	return p, nil
}
