package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammforge/dfc/internal/controller"
	"github.com/ammforge/dfc/internal/types"
)

type nopStore struct{}

func (nopStore) SaveParams(types.FeeParams, string) error { return nil }
func (nopStore) SavePoolState(types.FeeState) error { return nil }
func (nopStore) RecordTransition(types.Transition) error { return nil }

type nopSink struct{}

func (nopSink) SetPoolFee(context.Context, types.PoolID, sdkmath.Int) error { return nil }
func (nopSink) Close() error { return nil }

func testServer(t *testing.T) *WebServer {
	t.Helper()

	params := types.FeeParams{
		MinFee:          sdkmath.NewInt(100),
		MaxFee:          sdkmath.NewInt(10_000),
		BaseMaxFeeDelta: sdkmath.NewInt(500),
		LookbackPeriod:  30,
		MinPeriod:       0, // no cooldown, requests fire back to back
		RatioTolerance:  sdkmath.LegacyNewDecWithPrec(2, 1),
		LinearSlope:     sdkmath.LegacyOneDec(),
		MaxCurrentRatio: sdkmath.LegacyNewDec(1_000),
		UpperSideFactor: sdkmath.LegacyOneDec(),
		LowerSideFactor: sdkmath.LegacyOneDec(),
	}

	ctrl, err := controller.New(controller.Config{
		Store:      nopStore{},
		FeeSink:    nopSink{},
		AccessGate: controller.NewAllowlistGate([]string{"keeper"}),
		Params:     map[string]types.FeeParams{"default": params},
	})
	require.NoError(t, err)

	return NewWebServer("0", ctrl)
}

func doJSON(t *testing.T, ws *WebServer, method, path, caller string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(CallerHeader, caller)
	}
	rec := httptest.NewRecorder()
	ws.Router().ServeHTTP(rec, req)
	return rec
}

func configureTestPool(t *testing.T, ws *WebServer, poolID string) {
	t.Helper()
	rec := doJSON(t, ws, http.MethodPost, "/api/pools/"+poolID, "", configurePoolRequest{
		Category:      "default",
		InitialFee:    "500",
		InitialTarget: "1.0",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestConfigurePoolEndpoint(t *testing.T) {
	ws := testServer(t)
	configureTestPool(t, ws, "1")

	var st types.FeeState
	require.NoError(t, json.Unmarshal(doJSON(t, ws, http.MethodGet, "/api/pools/1/state", "", nil).Body.Bytes(), &st))
	assert.Equal(t, types.PoolID(1), st.PoolID)
	assert.Equal(t, "default", st.Category)
	assert.Equal(t, "500", st.CurrentFee.String())

	// Duplicate registration is a client error.
	rec := doJSON(t, ws, http.MethodPost, "/api/pools/1", "", configurePoolRequest{
		Category:      "default",
		InitialFee:    "500",
		InitialTarget: "1.0",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Malformed inputs never reach the controller.
	rec = doJSON(t, ws, http.MethodPost, "/api/pools/2", "", configurePoolRequest{
		Category:      "default",
		InitialFee:    "not-a-number",
		InitialTarget: "1.0",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, ws, http.MethodPost, "/api/pools/not-a-number", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPokeEndpoint(t *testing.T) {
	ws := testServer(t)
	configureTestPool(t, ws, "1")

	rec := doJSON(t, ws, http.MethodPost, "/api/pools/1/poke", "keeper", pokeRequest{ObservedRatio: "5.0"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tr types.Transition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
	assert.Equal(t, types.PoolID(1), tr.PoolID)
	assert.Equal(t, types.SideAbove, tr.Side)
	assert.Equal(t, "500", tr.OldFee.String())
	assert.Equal(t, "1000", tr.NewFee.String())
	assert.NotEmpty(t, tr.PokeID)
}

func TestPokeEndpoint_ErrorStatuses(t *testing.T) {
	ws := testServer(t)
	configureTestPool(t, ws, "1")

	// Unknown caller.
	rec := doJSON(t, ws, http.MethodPost, "/api/pools/1/poke", "stranger", pokeRequest{ObservedRatio: "5.0"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Missing caller header.
	rec = doJSON(t, ws, http.MethodPost, "/api/pools/1/poke", "", pokeRequest{ObservedRatio: "5.0"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Unconfigured pool.
	rec = doJSON(t, ws, http.MethodPost, "/api/pools/99/poke", "keeper", pokeRequest{ObservedRatio: "5.0"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Non-positive ratio is rejected at the parse layer.
	rec = doJSON(t, ws, http.MethodPost, "/api/pools/1/poke", "keeper", pokeRequest{ObservedRatio: "-1.0"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Ratio above the category cap is rejected by the controller.
	rec = doJSON(t, ws, http.MethodPost, "/api/pools/1/poke", "keeper", pokeRequest{ObservedRatio: "1001"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Paused controller answers 423 for everything.
	require.Equal(t, http.StatusOK, doJSON(t, ws, http.MethodPost, "/api/pause", "", nil).Code)
	rec = doJSON(t, ws, http.MethodPost, "/api/pools/1/poke", "keeper", pokeRequest{ObservedRatio: "5.0"})
	assert.Equal(t, http.StatusLocked, rec.Code)
	require.Equal(t, http.StatusOK, doJSON(t, ws, http.MethodPost, "/api/resume", "", nil).Code)
	rec = doJSON(t, ws, http.MethodPost, "/api/pools/1/poke", "keeper", pokeRequest{ObservedRatio: "5.0"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPokeEndpoint_CooldownStatus(t *testing.T) {
	ws := testServer(t)

	// A category with a real cooldown: the second immediate poke gets 429.
	params := map[string]interface{}{
		"min_fee":            "100",
		"max_fee":            "10000",
		"base_max_fee_delta": "500",
		"lookback_period":    30,
		"min_period":         int64(time.Hour),
		"ratio_tolerance":    "0.2",
		"linear_slope":       "1.0",
		"max_current_ratio":  "1000.0",
		"upper_side_factor":  "1.0",
		"lower_side_factor":  "1.0",
	}
	rec := doJSON(t, ws, http.MethodPut, "/api/categories/slow/params", "", params)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, ws, http.MethodPost, "/api/pools/1", "", configurePoolRequest{
		Category:      "slow",
		InitialFee:    "500",
		InitialTarget: "1.0",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, ws, http.MethodPost, "/api/pools/1/poke", "keeper", pokeRequest{ObservedRatio: "5.0"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, ws, http.MethodPost, "/api/pools/1/poke", "keeper", pokeRequest{ObservedRatio: "5.0"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestGetFeeEndpoint(t *testing.T) {
	ws := testServer(t)
	configureTestPool(t, ws, "1")

	rec := doJSON(t, ws, http.MethodGet, "/api/pools/1/fee", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "500", resp["current_fee"])

	rec = doJSON(t, ws, http.MethodGet, "/api/pools/99/fee", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParamsEndpoints(t *testing.T) {
	ws := testServer(t)

	rec := doJSON(t, ws, http.MethodGet, "/api/categories/default/params", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, ws, http.MethodGet, "/api/categories/exotic/params", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// An invalid bundle is rejected with the itemized faults in the message.
	bad := map[string]interface{}{
		"min_fee":            "0",
		"max_fee":            "10000",
		"base_max_fee_delta": "500",
		"lookback_period":    0,
		"ratio_tolerance":    "0.2",
		"linear_slope":       "1.0",
		"max_current_ratio":  "1000.0",
		"upper_side_factor":  "1.0",
		"lower_side_factor":  "1.0",
	}
	rec = doJSON(t, ws, http.MethodPut, "/api/categories/default/params", "", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "min_fee")
	assert.Contains(t, rec.Body.String(), "lookback_period")
}

func TestHealthEndpoint(t *testing.T) {
	ws := testServer(t)

	// No database wired in tests, so health reports degraded.
	rec := doJSON(t, ws, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "DEGRADED")
}

func TestMetricsEndpoint(t *testing.T) {
	ws := testServer(t)
	rec := doJSON(t, ws, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	ws := testServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/pools/1/poke", nil)
	rec := httptest.NewRecorder()
	ws.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
