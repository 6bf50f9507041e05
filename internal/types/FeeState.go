/*

This file contains the per-pool mutable fee state and the band classification
type. The state is created when a pool is configured and mutated only by a
successful poke.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// PoolID identifies a pool in the external pool engine.
type PoolID uint64

// Side classifies an observed ratio against the deadband around the target.
// It is a tagged variant rather than a pair of booleans so the streak-reset
// rule has exactly one interpretation.
type Side int8

const (
	SideInBand Side = 0
	SideAbove  Side = 1
	SideBelow  Side = -1
)

func (s Side) String() string {
	switch s {
	case SideAbove:
		return "above"
	case SideBelow:
		return "below"
	default:
		return "in_band"
	}
}

// FeeState is the mutable controller state for one pool.
//
// Invariants, re-established after every successful poke:
//   - MinFee <= CurrentFee <= MaxFee for the pool's category bundle
//   - 0 < TargetRatio <= MaxCurrentRatio
type FeeState struct {
	PoolID   PoolID `json:"pool_id"`
	Category string `json:"category"`

	// CurrentFee is the fee last pushed to the pool engine, in fee units.
	CurrentFee sdkmath.Int `json:"current_fee"`

	// TargetRatio is the EMA-smoothed reference ratio at the center of the
	// deadband. Strictly positive at all times.
	TargetRatio sdkmath.LegacyDec `json:"target_ratio"`

	// LastUpdateTimestamp is the time of the most recent successful poke.
	// Zero until the first poke, so a freshly configured pool is always
	// admissible.
	LastUpdateTimestamp time.Time `json:"last_update_timestamp"`

	// Streak counts consecutive pokes landing on the same band side: positive
	// for an Above run, negative for a Below run, zero after an in-band
	// landing. Its magnitude saturates at MaxStreakMagnitude.
	Streak int32 `json:"streak"`
}

// StreakFor returns the updated streak after a poke landing on side, given
// the previous streak. Same side increments the magnitude (saturating);
// a side change restarts the run at magnitude one; in-band clears it.
func StreakFor(prev int32, side Side) int32 {
	switch side {
	case SideInBand:
		return 0
	case SideAbove:
		if prev > 0 {
			if prev >= MaxStreakMagnitude {
				return MaxStreakMagnitude
			}
			return prev + 1
		}
		return 1
	default: // SideBelow
		if prev < 0 {
			if prev <= -MaxStreakMagnitude {
				return -MaxStreakMagnitude
			}
			return prev - 1
		}
		return -1
	}
}

// StreakMultiplier is the saturating throttle multiplier for the per-poke fee
// delta cap: linear in the streak magnitude, never below one, capped at
// MaxStreakMagnitude. Sustained one-sided pressure therefore converges faster
// than alternating pressure, but a single poke can never move the fee by more
// than MaxStreakMagnitude times the base delta.
func StreakMultiplier(streak int32) sdkmath.LegacyDec {
	magnitude := streak
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude < 1 {
		magnitude = 1
	}
	if magnitude > MaxStreakMagnitude {
		magnitude = MaxStreakMagnitude
	}
	return sdkmath.LegacyNewDec(int64(magnitude))
}
