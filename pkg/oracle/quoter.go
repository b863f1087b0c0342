package oracle

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Quoter prices baseAmount of base in quote at a pool tick.
// A production deployment may back this by a time-weighted oracle; the tick passed in is
// whatever the adapter read from the pool.
type Quoter interface {
	QuoteAtTick(ctx context.Context, pool common.Address, tick int32, baseAmount *big.Int, base, quote common.Address) (*big.Int, error)
}

// TickMathQuoter quotes with exact Uniswap V3 tick math
type TickMathQuoter struct{}

func (TickMathQuoter) QuoteAtTick(_ context.Context, _ common.Address, tick int32, baseAmount *big.Int, base, quote common.Address) (*big.Int, error) {
	return QuoteAtTick(tick, baseAmount, base, quote)
}
