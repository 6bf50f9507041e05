/*

This file contains the poke path: admissibility checks, band classification,
the bounded/throttled fee adjustment, and the EMA target update.

All arithmetic is 18-decimal fixed point and rounds toward zero. A delta that
truncates to zero is a legitimate outcome, not an error. Division by the
target is always safe because TargetRatio is invariantly strictly positive.

*/

package controller

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/ammforge/dfc/internal/metrics"
	"github.com/ammforge/dfc/internal/types"
)

// Poke advances a pool's fee state machine from one observed activity ratio.
//
// Preconditions are checked in order — pause gate, access gate, pool
// configured, ratio admissible, cooldown elapsed — and any failure aborts
// with no state change. On success the new fee has been pushed to the pool
// engine, the transition persisted, and the in-memory state committed, as one
// indivisible unit: a failing sink push or store write leaves the pre-poke
// state fully intact.
func (c *Controller) Poke(ctx context.Context, caller string, poolID types.PoolID, observedRatio sdkmath.LegacyDec) (*types.Transition, error) {
	if c.paused.Load() {
		metrics.PokesTotal.WithLabelValues(metrics.OutcomePaused).Inc()
		return nil, types.ErrPaused
	}
	if !c.gate.Allowed(caller) {
		metrics.PokesTotal.WithLabelValues(metrics.OutcomeUnauthorized).Inc()
		return nil, types.ErrUnauthorized.Wrapf("caller '%s'", caller)
	}

	entry, ok := c.getEntry(poolID)
	if !ok {
		metrics.PokesTotal.WithLabelValues(metrics.OutcomeNotConfigured).Inc()
		return nil, types.ErrPoolNotConfigured.Wrapf("pool %d", poolID)
	}

	// Single-writer discipline per pool: the entry lock covers the whole
	// check-compute-push-persist-commit sequence.
	entry.mu.Lock()
	defer entry.mu.Unlock()

	params, ok := c.getParams(entry.state.Category)
	if !ok {
		metrics.PokesTotal.WithLabelValues(metrics.OutcomeNotConfigured).Inc()
		return nil, types.ErrCategoryNotFound.Wrapf("category '%s'", entry.state.Category)
	}

	if observedRatio.IsNil() || !observedRatio.IsPositive() {
		metrics.PokesTotal.WithLabelValues(metrics.OutcomeInvalidRatio).Inc()
		return nil, types.ErrInvalidRatio.Wrap("observed ratio must be strictly positive")
	}
	if observedRatio.GT(params.RatioCap()) {
		metrics.PokesTotal.WithLabelValues(metrics.OutcomeInvalidRatio).Inc()
		return nil, types.ErrInvalidRatio.Wrapf("observed ratio %s exceeds cap %s", observedRatio, params.RatioCap())
	}

	now := c.clock.Now()
	if !entry.state.LastUpdateTimestamp.IsZero() {
		elapsed := now.Sub(entry.state.LastUpdateTimestamp)
		if elapsed < params.MinPeriod {
			metrics.PokesTotal.WithLabelValues(metrics.OutcomeCooldown).Inc()
			return nil, types.ErrCooldownNotElapsed.Wrapf("pool %d: %s of %s elapsed", poolID, elapsed, params.MinPeriod)
		}
	}

	pokeID := uuid.New().String()
	newState, transition := advance(entry.state, params, observedRatio, now, pokeID)

	// Commit barrier: the engine must price trades at the new fee before the
	// controller remembers it.
	if err := c.sink.SetPoolFee(ctx, poolID, newState.CurrentFee); err != nil {
		metrics.PokesTotal.WithLabelValues(metrics.OutcomeSinkFailure).Inc()
		metrics.FeeSinkFailures.Inc()
		c.logger.Error().Err(err).Uint64("pool_id", uint64(poolID)).Str("poke_id", pokeID).Msg("Poke aborted: fee sink push failed")
		return nil, err
	}
	if err := c.store.SavePoolState(newState); err != nil {
		metrics.PokesTotal.WithLabelValues(metrics.OutcomeStoreFailure).Inc()
		c.logger.Error().Err(err).Uint64("pool_id", uint64(poolID)).Str("poke_id", pokeID).Msg("Poke aborted: state persistence failed")
		return nil, err
	}
	if err := c.store.RecordTransition(transition); err != nil {
		metrics.PokesTotal.WithLabelValues(metrics.OutcomeStoreFailure).Inc()
		c.logger.Error().Err(err).Uint64("pool_id", uint64(poolID)).Str("poke_id", pokeID).Msg("Poke aborted: transition persistence failed")
		return nil, err
	}

	entry.state = newState
	publishPoolGauges(newState)
	metrics.PokesTotal.WithLabelValues(metrics.OutcomeCommitted).Inc()

	c.logger.Info().
		Uint64("pool_id", uint64(poolID)).
		Str("poke_id", pokeID).
		Str("side", transition.Side.String()).
		Int32("streak", transition.Streak).
		Str("observed", observedRatio.String()).
		Str("old_fee", transition.OldFee.String()).
		Str("new_fee", transition.NewFee.String()).
		Str("new_target", transition.NewTarget.String()).
		Msg("Poke committed")

	return &transition, nil
}

// advance is the pure state-transition function: given the pre-poke state,
// the active bundle, and an admissible observation, it produces the post-poke
// state and the transition record. It touches nothing outside its arguments.
func advance(s types.FeeState, p types.FeeParams, observed sdkmath.LegacyDec, now time.Time, pokeID string) (types.FeeState, types.Transition) {
	target := s.TargetRatio
	fee := s.CurrentFee

	side := classify(observed, target, p.RatioTolerance)
	streak := types.StreakFor(s.Streak, side)

	newFee := fee
	if side != types.SideInBand {
		newFee = adjustFee(fee, observed, target, side, streak, p)
	}

	newTarget := advanceTarget(target, observed, p)

	next := types.FeeState{
		PoolID:              s.PoolID,
		Category:            s.Category,
		CurrentFee:          newFee,
		TargetRatio:         newTarget,
		LastUpdateTimestamp: now,
		Streak:              streak,
	}
	record := types.Transition{
		PoolID:        s.PoolID,
		PokeID:        pokeID,
		OldFee:        fee,
		NewFee:        newFee,
		OldTarget:     target,
		ObservedRatio: observed,
		NewTarget:     newTarget,
		Side:          side,
		Streak:        streak,
		Timestamp:     now,
	}
	return next, record
}

// classify places the observation relative to the deadband
// [max(0, T - T*tol), T + T*tol].
func classify(observed, target, tolerance sdkmath.LegacyDec) types.Side {
	halfWidth := target.MulTruncate(tolerance)
	upper := target.Add(halfWidth)
	lower := target.Sub(halfWidth)
	if lower.IsNegative() {
		lower = sdkmath.LegacyZeroDec()
	}

	switch {
	case observed.GT(upper):
		return types.SideAbove
	case observed.LT(lower):
		return types.SideBelow
	default:
		return types.SideInBand
	}
}

// adjustFee computes the bounded, throttled, side-scaled fee step and applies
// it with saturation at the configured bounds. A fee already pinned at its
// bound remains pinned.
func adjustFee(fee sdkmath.Int, observed, target sdkmath.LegacyDec, side types.Side, streak int32, p types.FeeParams) sdkmath.Int {
	deviation := observed.Sub(target).Abs()
	adjustmentRate := deviation.MulTruncate(p.LinearSlope).QuoTruncate(target)
	rawDelta := adjustmentRate.MulTruncate(sdkmath.LegacyNewDecFromInt(fee))

	deltaCap := sdkmath.LegacyNewDecFromInt(p.BaseMaxFeeDelta).MulTruncate(types.StreakMultiplier(streak))
	throttledDelta := rawDelta
	if throttledDelta.GT(deltaCap) {
		throttledDelta = deltaCap
	}

	sideFactor := p.UpperSideFactor
	if side == types.SideBelow {
		sideFactor = p.LowerSideFactor
	}
	scaledDelta := throttledDelta.MulTruncate(sideFactor).TruncateInt()

	if side == types.SideAbove {
		newFee := fee.Add(scaledDelta)
		if newFee.GT(p.MaxFee) {
			return p.MaxFee
		}
		return newFee
	}

	// Below: a delta at least the size of the fee floors out rather than
	// crossing zero.
	if scaledDelta.GTE(fee) {
		return p.MinFee
	}
	newFee := fee.Sub(scaledDelta)
	if newFee.LT(p.MinFee) {
		return p.MinFee
	}
	return newFee
}

// advanceTarget moves the EMA target 1/LookbackPeriod of the way toward the
// observation, clamped to (0, MaxCurrentRatio]. If truncation would drive the
// target to zero or below, the prior target is retained so strict positivity
// survives without an invented epsilon.
func advanceTarget(target, observed sdkmath.LegacyDec, p types.FeeParams) sdkmath.LegacyDec {
	step := observed.Sub(target).QuoTruncate(sdkmath.LegacyNewDec(int64(p.LookbackPeriod)))
	newTarget := target.Add(step)

	if newTarget.GT(p.MaxCurrentRatio) {
		return p.MaxCurrentRatio
	}
	if !newTarget.IsPositive() {
		return target
	}
	return newTarget
}
