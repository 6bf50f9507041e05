package controller

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/ammforge/dfc/internal/engine"
	"github.com/ammforge/dfc/internal/logger"
	"github.com/ammforge/dfc/internal/metrics"
	"github.com/ammforge/dfc/internal/types"
)

// Clock supplies "now" for cooldown checks and transition timestamps. The
// execution environment guarantees it is monotonically non-decreasing.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// AccessGate is the external authorization check, modeled as a boolean
// precondition on the caller identity.
type AccessGate interface {
	Allowed(caller string) bool
}

// AllowlistGate authorizes a static set of caller identities.
type AllowlistGate struct {
	allowed map[string]struct{}
}

// NewAllowlistGate builds a gate from an allowlist. An empty list denies
// every caller.
func NewAllowlistGate(callers []string) *AllowlistGate {
	g := &AllowlistGate{allowed: make(map[string]struct{}, len(callers))}
	for _, c := range callers {
		g.allowed[c] = struct{}{}
	}
	return g
}

func (g *AllowlistGate) Allowed(caller string) bool {
	_, ok := g.allowed[caller]
	return ok
}

// Store is the durable persistence surface the controller writes through.
// Every write happens before the corresponding in-memory commit.
type Store interface {
	// SaveParams persists a new active bundle version for a category.
	SaveParams(params types.FeeParams, category string) error

	// SavePoolState persists the full fee state of one pool.
	SavePoolState(s types.FeeState) error

	// RecordTransition appends one transition to the audit log.
	RecordTransition(t types.Transition) error
}

// Config holds the configuration for creating a new Controller instance.
type Config struct {
	Store      Store
	FeeSink    engine.FeeSink
	AccessGate AccessGate
	Clock      Clock // defaults to SystemClock

	// Params and PoolStates hydrate the controller from durable state at
	// startup. Both may be empty on a fresh deployment.
	Params     map[string]types.FeeParams
	PoolStates map[types.PoolID]types.FeeState
}

// poolEntry pairs one pool's state with its writer lock. A poke locks only
// its own pool; pools never contend with each other.
type poolEntry struct {
	mu    sync.Mutex
	state types.FeeState
}

// Controller is the dynamic fee controller: a keyed table of per-pool fee
// state machines advanced exactly once per successful poke, plus the
// per-category parameter bundles that govern them.
type Controller struct {
	logger zerolog.Logger
	store  Store
	sink   engine.FeeSink
	clock  Clock
	gate   AccessGate

	paused atomic.Bool

	paramsMu sync.RWMutex
	params   map[string]types.FeeParams

	poolsMu sync.RWMutex
	pools   map[types.PoolID]*poolEntry
}

// New creates a Controller with dependency injection.
func New(cfg Config) (*Controller, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("controller configuration validation failed: %w", err)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	c := &Controller{
		logger: logger.GetForComponent("fee_controller"),
		store:  cfg.Store,
		sink:   cfg.FeeSink,
		clock:  clock,
		gate:   cfg.AccessGate,
		params: make(map[string]types.FeeParams, len(cfg.Params)),
		pools:  make(map[types.PoolID]*poolEntry, len(cfg.PoolStates)),
	}

	for category, p := range cfg.Params {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("hydrated bundle for category '%s' is invalid: %w", category, err)
		}
		c.params[category] = p
	}
	for poolID, s := range cfg.PoolStates {
		if _, ok := c.params[s.Category]; !ok {
			return nil, fmt.Errorf("pool %d references unknown category '%s'", poolID, s.Category)
		}
		s.PoolID = poolID
		c.pools[poolID] = &poolEntry{state: s}
		publishPoolGauges(s)
	}

	c.logger.Info().
		Int("categories", len(c.params)).
		Int("pools", len(c.pools)).
		Msg("Fee controller created")

	return c, nil
}

func validateConfig(cfg Config) error {
	if cfg.Store == nil {
		return fmt.Errorf("store cannot be nil")
	}
	if cfg.FeeSink == nil {
		return fmt.Errorf("fee sink cannot be nil")
	}
	if cfg.AccessGate == nil {
		return fmt.Errorf("access gate cannot be nil")
	}
	return nil
}

// Pause makes every subsequent poke fail with ErrPaused until Resume.
func (c *Controller) Pause() {
	c.paused.Store(true)
	c.logger.Warn().Msg("Fee controller paused")
}

// Resume lifts a pause.
func (c *Controller) Resume() {
	c.paused.Store(false)
	c.logger.Info().Msg("Fee controller resumed")
}

// Paused reports whether the pause gate is set.
func (c *Controller) Paused() bool {
	return c.paused.Load()
}

// SetParams validates a bundle and atomically replaces the stored bundle for
// the category. A rejected bundle leaves the prior configuration untouched,
// and the replacement never retroactively alters stored fee or target state.
func (c *Controller) SetParams(category string, p types.FeeParams) error {
	if category == "" {
		return types.ErrInvalidParams.Wrap("category: must not be empty")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	// Persist before swapping so a storage failure cannot leave memory ahead
	// of the durable record.
	if err := c.store.SaveParams(p, category); err != nil {
		return fmt.Errorf("failed to persist fee parameters for category '%s': %w", category, err)
	}

	c.paramsMu.Lock()
	c.params[category] = p
	c.paramsMu.Unlock()

	c.logger.Info().
		Str("category", category).
		Str("min_fee", p.MinFee.String()).
		Str("max_fee", p.MaxFee.String()).
		Msg("Fee parameters replaced")
	return nil
}

// ConfigurePool creates the fee state for a pool under an existing category.
// The initial fee and target are validated against the category bundle.
// Re-configuring an existing pool is rejected; replacement of a live pool's
// state is not an operation this controller offers.
func (c *Controller) ConfigurePool(poolID types.PoolID, category string, initialFee sdkmath.Int, initialTarget sdkmath.LegacyDec) error {
	p, ok := c.getParams(category)
	if !ok {
		return types.ErrCategoryNotFound.Wrapf("category '%s'", category)
	}

	if initialFee.IsNil() || initialFee.LT(p.MinFee) || initialFee.GT(p.MaxFee) {
		return types.ErrInvalidParams.Wrapf("initial fee must be within [%s, %s]", p.MinFee, p.MaxFee)
	}
	if initialTarget.IsNil() || !initialTarget.IsPositive() || initialTarget.GT(p.RatioCap()) {
		return types.ErrInvalidParams.Wrapf("initial target must be in (0, %s]", p.RatioCap())
	}

	s := types.FeeState{
		PoolID:      poolID,
		Category:    category,
		CurrentFee:  initialFee,
		TargetRatio: initialTarget,
		// LastUpdateTimestamp stays zero so the first poke is admissible
		// regardless of the cooldown.
	}

	c.poolsMu.Lock()
	defer c.poolsMu.Unlock()
	if _, exists := c.pools[poolID]; exists {
		return types.ErrPoolExists.Wrapf("pool %d", poolID)
	}

	if err := c.store.SavePoolState(s); err != nil {
		return fmt.Errorf("failed to persist initial state for pool %d: %w", poolID, err)
	}
	c.pools[poolID] = &poolEntry{state: s}
	publishPoolGauges(s)

	c.logger.Info().
		Uint64("pool_id", uint64(poolID)).
		Str("category", category).
		Str("initial_fee", initialFee.String()).
		Str("initial_target", initialTarget.String()).
		Msg("Pool configured")
	return nil
}

// GetFee returns the current fee for a pool.
func (c *Controller) GetFee(poolID types.PoolID) (sdkmath.Int, error) {
	s, err := c.GetState(poolID)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return s.CurrentFee, nil
}

// GetState returns a copy of a pool's full fee state.
func (c *Controller) GetState(poolID types.PoolID) (types.FeeState, error) {
	entry, ok := c.getEntry(poolID)
	if !ok {
		return types.FeeState{}, types.ErrPoolNotConfigured.Wrapf("pool %d", poolID)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.state, nil
}

// GetParams returns the active bundle for a category.
func (c *Controller) GetParams(category string) (types.FeeParams, error) {
	p, ok := c.getParams(category)
	if !ok {
		return types.FeeParams{}, types.ErrCategoryNotFound.Wrapf("category '%s'", category)
	}
	return p, nil
}

func (c *Controller) getParams(category string) (types.FeeParams, bool) {
	c.paramsMu.RLock()
	defer c.paramsMu.RUnlock()
	p, ok := c.params[category]
	return p, ok
}

func (c *Controller) getEntry(poolID types.PoolID) (*poolEntry, bool) {
	c.poolsMu.RLock()
	defer c.poolsMu.RUnlock()
	entry, ok := c.pools[poolID]
	return entry, ok
}

func publishPoolGauges(s types.FeeState) {
	id := fmt.Sprintf("%d", s.PoolID)
	fee, err := s.CurrentFee.ToLegacyDec().Float64()
	if err == nil {
		metrics.PoolFee.WithLabelValues(id).Set(fee)
	}
	target, err := s.TargetRatio.Float64()
	if err == nil {
		metrics.PoolTargetRatio.WithLabelValues(id).Set(target)
	}
}
