package engine

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/ammforge/dfc/internal/types"
)

// FeeSink defines the interface for pushing recomputed fees to the external
// pool engine. This interface abstracts away the transport, allowing for
// different implementations (live, simulation, test stubs).
//
// A SetPoolFee failure must abort the poke that produced the fee: the
// controller never commits state the engine has not acknowledged.
type FeeSink interface {
	// SetPoolFee sets the current trading fee for a pool, in fee units.
	SetPoolFee(ctx context.Context, poolID types.PoolID, fee sdkmath.Int) error

	// Close cleans up any resources used by the sink.
	Close() error
}
