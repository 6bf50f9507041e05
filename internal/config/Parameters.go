/*

This file contains the default fee parameter bundle for the controller.

These parameters are calibrated for pools pricing real volume in a production
environment. Each value balances responsiveness against stability: the fee
must track sustained activity shifts, but a single noisy observation must
never move it far.

*/

package config

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/ammforge/dfc/internal/types"
)

// DefaultCategory is the category newly registered pools fall into unless the
// operator assigns another bundle.
const DefaultCategory = "default"

// DefaultFeeParams provides a baseline bundle for the default pool category.
// These values are used if no active bundle is found in the database during
// initialization.
var DefaultFeeParams = types.FeeParams{
	MinFee: sdkmath.NewInt(100), // 0.01% floor.
	// Rationale: a fee below one basis point no longer covers LP risk on any
	// realistic pool; the controller should saturate here rather than race to zero.

	MaxFee: sdkmath.NewInt(100_000), // 10% ceiling.
	// Rationale: above 10% a pool is effectively closed to trade. Sustained
	// pressure beyond this point is an operator problem, not a pricing one.

	BaseMaxFeeDelta: sdkmath.NewInt(500), // 0.05% per non-streaking poke.
	// Rationale: a single observation, however extreme, moves the fee at most
	// five basis points. Sustained pressure is what earns larger steps, via
	// the streak multiplier.

	LookbackPeriod: 30, // EMA window of 30 periods.
	// Rationale: the target should absorb roughly a month of daily pokes before
	// fully adopting a new activity regime. Shorter windows chase noise.

	MinPeriod: 24 * time.Hour, // One poke per pool per day.
	// Rationale: the cooldown is the controller's only rate limit. Daily pokes
	// match the cadence of the activity data the ratio is computed from.

	RatioTolerance: sdkmath.LegacyNewDecWithPrec(2, 1), // 20% deadband half-width.
	// Rationale: activity ratios are noisy; a generous band keeps the fee
	// still through ordinary fluctuation and reserves adjustments for genuine
	// regime shifts.

	LinearSlope: sdkmath.LegacyOneDec(), // 1.0 sensitivity.
	// Rationale: a deviation of 100% of the target translates into an
	// adjustment rate of 100% of the current fee, before throttling. The
	// delta cap does the real safety work; the slope just sets proportion.

	MaxCurrentRatio: sdkmath.LegacyNewDec(1_000),
	// Rationale: a volume-to-liquidity ratio above 1000x is not a market
	// signal, it is a data error. Reject it before it poisons the EMA.

	UpperSideFactor: sdkmath.LegacyOneDec(),
	LowerSideFactor: sdkmath.LegacyOneDec(),
	// Rationale: symmetric response by default. Categories that should shed
	// fees faster than they raise them (e.g. stable pairs) override the lower
	// factor upward.
}
