/*

This file contains the per-category fee parameter bundle and its validation rules.

A bundle is validated in full before it is accepted; a rejected bundle never
replaces the active one. Bundles are immutable once stored — an update writes a
new version and flips the active flag.

*/

package types

import (
	"fmt"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
)

// Global safety ceilings. Per-category bundles may tighten these but never
// exceed them.
var (
	// GlobalMaxFee is the hard ceiling for any pool fee, in fee units
	// (1 unit = 0.0001%, so 10,000,000 units = 1000%).
	GlobalMaxFee = sdkmath.NewInt(10_000_000)

	// GlobalMaxRatio is the hard ceiling for any observed or target ratio.
	GlobalMaxRatio = sdkmath.LegacyNewDec(1_000_000)

	// MaxRatioTolerance caps the deadband half-width (10.0 = 1000%).
	MaxRatioTolerance = sdkmath.LegacyNewDec(10)

	// MaxLinearSlope caps the deviation-to-adjustment sensitivity.
	MaxLinearSlope = sdkmath.LegacyNewDec(1_000)

	// MaxSideFactor caps the asymmetric side multipliers.
	MaxSideFactor = sdkmath.LegacyNewDec(100)
)

// MaxStreakMagnitude is the saturation ceiling for the streak counter. The
// per-poke fee delta cap grows linearly with the streak up to this magnitude
// and no further.
const MaxStreakMagnitude = int32(8)

// FeeParams holds all tunable bounds, rates, and factors the fee controller
// uses for one pool category. Fees are integer fee units; ratio-space fields
// are 18-decimal fixed-point.
type FeeParams struct {
	// MinFee and MaxFee are the inclusive bounds the current fee can never
	// leave, in fee units.
	MinFee sdkmath.Int `json:"min_fee"`
	MaxFee sdkmath.Int `json:"max_fee"`

	// BaseMaxFeeDelta is the largest fee change a single, non-streaking poke
	// can apply, in fee units.
	BaseMaxFeeDelta sdkmath.Int `json:"base_max_fee_delta"`

	// LookbackPeriod is the EMA smoothing window length, in periods. The
	// target moves 1/LookbackPeriod of the way toward each observation.
	LookbackPeriod uint32 `json:"lookback_period"`

	// MinPeriod is the cooldown between successful pokes of the same pool.
	MinPeriod time.Duration `json:"min_period"`

	// RatioTolerance is the fractional deadband half-width around the target
	// (1.0 = 100%). Observations inside the band leave the fee untouched.
	RatioTolerance sdkmath.LegacyDec `json:"ratio_tolerance"`

	// LinearSlope translates relative deviation from the target into an
	// adjustment rate.
	LinearSlope sdkmath.LegacyDec `json:"linear_slope"`

	// MaxCurrentRatio is the largest admissible observed ratio for pools in
	// this category, itself capped by GlobalMaxRatio.
	MaxCurrentRatio sdkmath.LegacyDec `json:"max_current_ratio"`

	// UpperSideFactor and LowerSideFactor scale the throttled delta when the
	// observation lands above, respectively below, the deadband.
	UpperSideFactor sdkmath.LegacyDec `json:"upper_side_factor"`
	LowerSideFactor sdkmath.LegacyDec `json:"lower_side_factor"`
}

// Validate checks every field against its sanity range and the cross-field
// ordering rules. All violations are collected so the caller sees the full
// list, not just the first offender.
func (p FeeParams) Validate() error {
	var faults []string

	if p.MinFee.IsNil() || !p.MinFee.IsPositive() {
		faults = append(faults, "min_fee: must be a positive integer")
	}
	if p.MaxFee.IsNil() || !p.MaxFee.IsPositive() {
		faults = append(faults, "max_fee: must be a positive integer")
	} else {
		if !p.MinFee.IsNil() && p.MinFee.GT(p.MaxFee) {
			faults = append(faults, "min_fee: exceeds max_fee")
		}
		if p.MaxFee.GT(GlobalMaxFee) {
			faults = append(faults, fmt.Sprintf("max_fee: exceeds global ceiling %s", GlobalMaxFee))
		}
	}
	if p.BaseMaxFeeDelta.IsNil() || !p.BaseMaxFeeDelta.IsPositive() {
		faults = append(faults, "base_max_fee_delta: must be a positive integer")
	}
	if p.LookbackPeriod < 1 {
		faults = append(faults, "lookback_period: must be at least 1")
	}
	if p.MinPeriod < 0 {
		faults = append(faults, "min_period: must not be negative")
	}
	if p.RatioTolerance.IsNil() || p.RatioTolerance.IsNegative() {
		faults = append(faults, "ratio_tolerance: must not be negative")
	} else if p.RatioTolerance.GT(MaxRatioTolerance) {
		faults = append(faults, fmt.Sprintf("ratio_tolerance: exceeds sanity ceiling %s", MaxRatioTolerance))
	}
	if p.LinearSlope.IsNil() || !p.LinearSlope.IsPositive() {
		faults = append(faults, "linear_slope: must be positive")
	} else if p.LinearSlope.GT(MaxLinearSlope) {
		faults = append(faults, fmt.Sprintf("linear_slope: exceeds sanity ceiling %s", MaxLinearSlope))
	}
	if p.MaxCurrentRatio.IsNil() || !p.MaxCurrentRatio.IsPositive() {
		faults = append(faults, "max_current_ratio: must be positive")
	} else if p.MaxCurrentRatio.GT(GlobalMaxRatio) {
		faults = append(faults, fmt.Sprintf("max_current_ratio: exceeds global ceiling %s", GlobalMaxRatio))
	}
	if p.UpperSideFactor.IsNil() || !p.UpperSideFactor.IsPositive() {
		faults = append(faults, "upper_side_factor: must be positive")
	} else if p.UpperSideFactor.GT(MaxSideFactor) {
		faults = append(faults, fmt.Sprintf("upper_side_factor: exceeds sanity ceiling %s", MaxSideFactor))
	}
	if p.LowerSideFactor.IsNil() || !p.LowerSideFactor.IsPositive() {
		faults = append(faults, "lower_side_factor: must be positive")
	} else if p.LowerSideFactor.GT(MaxSideFactor) {
		faults = append(faults, fmt.Sprintf("lower_side_factor: exceeds sanity ceiling %s", MaxSideFactor))
	}

	if len(faults) > 0 {
		return ErrInvalidParams.Wrap(strings.Join(faults, "; "))
	}
	return nil
}

// RatioCap returns the effective admissibility ceiling for observed ratios:
// the category cap tightened by the global ceiling.
func (p FeeParams) RatioCap() sdkmath.LegacyDec {
	if p.MaxCurrentRatio.GT(GlobalMaxRatio) {
		return GlobalMaxRatio
	}
	return p.MaxCurrentRatio
}
