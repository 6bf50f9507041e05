package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Transition is the record emitted for every successful poke. It captures the
// complete before/after picture so the fee history of a pool can be replayed
// and audited from the transition log alone.
type Transition struct {
	PoolID PoolID `json:"pool_id"`

	// PokeID is the trace ID tying this transition to the log lines of the
	// poke that produced it.
	PokeID string `json:"poke_id"`

	OldFee sdkmath.Int `json:"old_fee"`
	NewFee sdkmath.Int `json:"new_fee"`

	OldTarget     sdkmath.LegacyDec `json:"old_target"`
	ObservedRatio sdkmath.LegacyDec `json:"observed_ratio"`
	NewTarget     sdkmath.LegacyDec `json:"new_target"`

	// Side is where the observation landed relative to the deadband, and
	// Streak the signed run length after this poke.
	Side   Side  `json:"side"`
	Streak int32 `json:"streak"`

	Timestamp time.Time `json:"timestamp"`
}

// FeeDelta returns the signed fee change this transition applied.
func (t Transition) FeeDelta() sdkmath.Int {
	return t.NewFee.Sub(t.OldFee)
}
