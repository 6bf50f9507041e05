package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/ammforge/dfc/internal/logger"
	"github.com/ammforge/dfc/internal/types"
)

// Client is the live FeeSink implementation. It pushes fee updates to the
// pool engine's admin API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// setFeeRequest is the engine admin API payload. The fee travels as a string
// so it never degrades through a JSON number.
type setFeeRequest struct {
	Fee string `json:"fee"`
}

// NewClient creates a live engine client against the given admin API base URL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("engine base URL cannot be empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.GetForComponent("engine_client"),
	}, nil
}

// SetPoolFee pushes the new current fee for a pool to the engine. Any
// transport failure or non-2xx response is reported as ErrFeeSinkUnavailable
// so the caller aborts its commit.
func (c *Client) SetPoolFee(ctx context.Context, poolID types.PoolID, fee sdkmath.Int) error {
	if fee.IsNil() || fee.IsNegative() {
		return fmt.Errorf("refusing to push invalid fee for pool %d", poolID)
	}

	body, err := json.Marshal(setFeeRequest{Fee: fee.String()})
	if err != nil {
		return fmt.Errorf("failed to encode fee payload: %w", err)
	}

	url := fmt.Sprintf("%s/v1/pools/%d/fee", c.baseURL, poolID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build fee update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Uint64("pool_id", uint64(poolID)).Msg("Fee push failed")
		return types.ErrFeeSinkUnavailable.Wrapf("pool %d: %v", poolID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a bounded slice of the body for the log line; the engine's
		// error text is often the only clue.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error().
			Int("status", resp.StatusCode).
			Uint64("pool_id", uint64(poolID)).
			Str("detail", string(detail)).
			Msg("Engine rejected fee update")
		return types.ErrFeeSinkUnavailable.Wrapf("pool %d: engine returned status %d", poolID, resp.StatusCode)
	}

	c.logger.Debug().
		Uint64("pool_id", uint64(poolID)).
		Str("fee", fee.String()).
		Msg("Fee pushed to engine")
	return nil
}

// Close releases idle connections held by the underlying HTTP client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
