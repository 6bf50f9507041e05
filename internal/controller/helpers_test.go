package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/ammforge/dfc/internal/types"
)

// manualClock is a Clock the tests advance by hand.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memStore keeps everything in memory and can be told to fail, so the tests
// can check the commit-or-abort discipline.
type memStore struct {
	mu          sync.Mutex
	params      map[string]types.FeeParams
	states      map[types.PoolID]types.FeeState
	transitions []types.Transition

	failSaveParams bool
	failSaveState  bool
	failRecord     bool
}

func newMemStore() *memStore {
	return &memStore{
		params: make(map[string]types.FeeParams),
		states: make(map[types.PoolID]types.FeeState),
	}
}

func (s *memStore) SaveParams(p types.FeeParams, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaveParams {
		return errors.New("store down")
	}
	s.params[category] = p
	return nil
}

func (s *memStore) SavePoolState(st types.FeeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaveState {
		return errors.New("store down")
	}
	s.states[st.PoolID] = st
	return nil
}

func (s *memStore) RecordTransition(t types.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRecord {
		return errors.New("store down")
	}
	s.transitions = append(s.transitions, t)
	return nil
}

// stubSink records every fee push and can be told to reject them.
type stubSink struct {
	mu    sync.Mutex
	fees  map[types.PoolID]sdkmath.Int
	calls int
	fail  bool
}

func newStubSink() *stubSink {
	return &stubSink{fees: make(map[types.PoolID]sdkmath.Int)}
}

func (s *stubSink) SetPoolFee(ctx context.Context, poolID types.PoolID, fee sdkmath.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return types.ErrFeeSinkUnavailable.Wrap("engine down")
	}
	s.fees[poolID] = fee
	return nil
}

func (s *stubSink) Close() error { return nil }

func (s *stubSink) lastFee(poolID types.PoolID) (sdkmath.Int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fee, ok := s.fees[poolID]
	return fee, ok
}

// openGate authorizes everyone; closedGate no one.
type openGate struct{}

func (openGate) Allowed(string) bool { return true }

type closedGate struct{}

func (closedGate) Allowed(string) bool { return false }

// testParams is a permissive bundle the algorithm tests start from.
func testParams() types.FeeParams {
	return types.FeeParams{
		MinFee:          sdkmath.NewInt(100),
		MaxFee:          sdkmath.NewInt(10_000),
		BaseMaxFeeDelta: sdkmath.NewInt(500),
		LookbackPeriod:  30,
		MinPeriod:       time.Hour,
		RatioTolerance:  sdkmath.LegacyNewDecWithPrec(2, 1), // 0.2
		LinearSlope:     sdkmath.LegacyOneDec(),
		MaxCurrentRatio: sdkmath.LegacyNewDec(1_000_000),
		UpperSideFactor: sdkmath.LegacyOneDec(),
		LowerSideFactor: sdkmath.LegacyOneDec(),
	}
}

type harness struct {
	ctrl  *Controller
	store *memStore
	sink  *stubSink
	clock *manualClock
}

// newHarness builds a controller around the test doubles with one category
// ("default") and no pools.
func newHarness(t interface{ Fatalf(string, ...interface{}) }, p types.FeeParams) *harness {
	store := newMemStore()
	sink := newStubSink()
	clock := newManualClock()

	ctrl, err := New(Config{
		Store:      store,
		FeeSink:    sink,
		AccessGate: openGate{},
		Clock:      clock,
		Params:     map[string]types.FeeParams{"default": p},
	})
	if err != nil {
		t.Fatalf("failed to build controller: %v", err)
	}
	return &harness{ctrl: ctrl, store: store, sink: sink, clock: clock}
}

// configurePool registers a pool in the default category.
func (h *harness) configurePool(t interface{ Fatalf(string, ...interface{}) }, poolID types.PoolID, fee int64, target string) {
	targetDec := sdkmath.LegacyMustNewDecFromStr(target)
	if err := h.ctrl.ConfigurePool(poolID, "default", sdkmath.NewInt(fee), targetDec); err != nil {
		t.Fatalf("failed to configure pool %d: %v", poolID, err)
	}
}

// poke advances the clock past the cooldown and pokes as an authorized caller.
func (h *harness) poke(poolID types.PoolID, ratio sdkmath.LegacyDec) (*types.Transition, error) {
	h.clock.Advance(25 * time.Hour)
	return h.ctrl.Poke(context.Background(), "keeper", poolID, ratio)
}

func dec(s string) sdkmath.LegacyDec { return sdkmath.LegacyMustNewDecFromStr(s) }
