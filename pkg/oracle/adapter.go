package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/triggerswap/pkg/order"
	"github.com/uhyunpark/triggerswap/pkg/route"
)

// ErrPoolNotFound is returned when no pool exists for a hop
var ErrPoolNotFound = errors.New("pool not found")

// PoolSource locates pools and reads their current tick
type PoolSource interface {
	PoolFor(tokenA, tokenB common.Address, fee uint32) (common.Address, bool)
	CurrentTick(pool common.Address) (int32, error)
}

// DecimalsSource reports a token's native precision
type DecimalsSource interface {
	Decimals(token common.Address) (uint8, error)
}

// Adapter turns pool ticks into 18-decimal prices denominated in the quote asset
type Adapter struct {
	Pools    PoolSource
	Decimals DecimalsSource
	Quoter   Quoter

	Bridge        common.Address
	Quote         common.Address
	ReferencePool common.Address // bridge/quote pool used for two-hop composition
}

// QuotePrice returns the price of one whole base token in quote tokens, scaled to 1e18.
func (a *Adapter) QuotePrice(ctx context.Context, base, quote, pool common.Address) (*big.Int, error) {
	baseDec, err := a.Decimals.Decimals(base)
	if err != nil {
		return nil, fmt.Errorf("decimals of %s: %w", base.Hex(), err)
	}
	quoteDec, err := a.Decimals.Decimals(quote)
	if err != nil {
		return nil, fmt.Errorf("decimals of %s: %w", quote.Hex(), err)
	}
	tick, err := a.Pools.CurrentTick(pool)
	if err != nil {
		return nil, fmt.Errorf("tick of %s: %w", pool.Hex(), err)
	}

	quoted, err := a.Quoter.QuoteAtTick(ctx, pool, tick, Pow10(baseDec), base, quote)
	if err != nil {
		return nil, fmt.Errorf("quote %s/%s at tick %d: %w", base.Hex(), quote.Hex(), tick, err)
	}

	price := new(big.Int).Mul(quoted, order.PriceScale)
	return price.Quo(price, Pow10(quoteDec)), nil
}

// PriceInQuoteAsset prices the base asset of path in the quote asset.
// Only the first hop is read: if it touches the quote asset the pool is quoted directly,
// otherwise the base is priced in the bridge asset and converted through the reference pool.
func (a *Adapter) PriceInQuoteAsset(ctx context.Context, path []byte) (*big.Int, error) {
	hops, err := route.DecodePath(path)
	if err != nil {
		return nil, err
	}
	h := hops[0]

	pool, ok := a.Pools.PoolFor(h.TokenA, h.TokenB, h.Fee)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s fee %d", ErrPoolNotFound, h.TokenA.Hex(), h.TokenB.Hex(), h.Fee)
	}

	switch a.Quote {
	case h.TokenA:
		return a.QuotePrice(ctx, h.TokenB, a.Quote, pool)
	case h.TokenB:
		return a.QuotePrice(ctx, h.TokenA, a.Quote, pool)
	}

	var base common.Address
	switch a.Bridge {
	case h.TokenA:
		base = h.TokenB
	case h.TokenB:
		base = h.TokenA
	default:
		return nil, fmt.Errorf("%w: first hop %s/%s touches neither quote nor bridge",
			order.ErrUnsupportedBridgeAsset, h.TokenA.Hex(), h.TokenB.Hex())
	}

	inBridge, err := a.QuotePrice(ctx, base, a.Bridge, pool)
	if err != nil {
		return nil, err
	}
	bridgeInQuote, err := a.QuotePrice(ctx, a.Bridge, a.Quote, a.ReferencePool)
	if err != nil {
		return nil, err
	}

	price := new(big.Int).Mul(inBridge, bridgeInQuote)
	return price.Quo(price, order.PriceScale), nil
}

// Pow10 returns 10^n
func Pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
