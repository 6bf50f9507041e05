package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammforge/dfc/internal/types"
)

func TestNewClient(t *testing.T) {
	_, err := NewClient("", time.Second)
	require.Error(t, err)

	c, err := NewClient("http://localhost:8080", 0)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, c.httpClient.Timeout, "non-positive timeout should fall back to the default")
}

func TestSetPoolFee_Success(t *testing.T) {
	var gotPath string
	var gotBody setFeeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SetPoolFee(context.Background(), 42, sdkmath.NewInt(1_500)))
	assert.Equal(t, "/v1/pools/42/fee", gotPath)
	assert.Equal(t, "1500", gotBody.Fee)
}

func TestSetPoolFee_EngineRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "pool is migrating", http.StatusConflict)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	err = c.SetPoolFee(context.Background(), 42, sdkmath.NewInt(1_500))
	require.ErrorIs(t, err, types.ErrFeeSinkUnavailable)
	assert.Contains(t, err.Error(), "409")
}

func TestSetPoolFee_EngineUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening anymore

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	err = c.SetPoolFee(context.Background(), 42, sdkmath.NewInt(1_500))
	require.ErrorIs(t, err, types.ErrFeeSinkUnavailable)
}

func TestSetPoolFee_RefusesInvalidFee(t *testing.T) {
	c, err := NewClient("http://localhost:8080", time.Second)
	require.NoError(t, err)

	require.Error(t, c.SetPoolFee(context.Background(), 1, sdkmath.Int{}))
	require.Error(t, c.SetPoolFee(context.Background(), 1, sdkmath.NewInt(-5)))
}

func TestSetPoolFee_ContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c, err := NewClient(srv.URL, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = c.SetPoolFee(ctx, 42, sdkmath.NewInt(1_500))
	require.ErrorIs(t, err, types.ErrFeeSinkUnavailable)
}
