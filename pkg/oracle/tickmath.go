package oracle

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Tick bounds of a Uniswap V3 compatible pool
const (
	MinTick = -887272
	MaxTick = 887272
)

// ErrTickOutOfRange is returned for ticks outside [MinTick, MaxTick]
var ErrTickOutOfRange = errors.New("tick out of range")

var (
	q32        = new(big.Int).Lsh(big.NewInt(1), 32)
	q64        = new(big.Int).Lsh(big.NewInt(1), 64)
	q128       = new(big.Int).Lsh(big.NewInt(1), 128)
	q192       = new(big.Int).Lsh(big.NewInt(1), 192)
	maxUint128 = new(big.Int).Sub(q128, big.NewInt(1))
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// 1/sqrt(1.0001)^(2^i) as Q128.128, indexed by bit i of |tick|
var tickRatios = func() []*big.Int {
	hexes := []string{
		"fffcb933bd6fad37aa2d162d1a594001",
		"fff97272373d413259a46990580e213a",
		"fff2e50f5f656932ef12357cf3c7fdcc",
		"ffe5caca7e10e4e61c3624eaa0941cd0",
		"ffcb9843d60f6159c9db58835c926644",
		"ff973b41fa98c081472e6896dfb254c0",
		"ff2ea16466c96a3843ec78b326b52861",
		"fe5dee046a99a2a811c461f1969c3053",
		"fcbe86c7900a88aedcffc83b479aa3a4",
		"f987a7253ac413176f2b074cf7815e54",
		"f3392b0822b70005940c7a398e4b70f3",
		"e7159475a2c29b7443b29c7fa6e889d9",
		"d097f3bdfd2022b8845ad8f792aa5825",
		"a9f746462d870fdf8a65dc1f90e061e5",
		"70d869a156d2a1b890bb3df62baf32f7",
		"31be135f97d08fd981231505542fcfa6",
		"9aa508b5b7a84e1c677de54f3e99bc9",
		"5d6af8dedb81196699c329225ee604",
		"2216e584f5fa1ea926041bedfe98",
		"48a170391f7dc42444e8fa2",
	}
	out := make([]*big.Int, len(hexes))
	for i, h := range hexes {
		v, ok := new(big.Int).SetString(h, 16)
		if !ok {
			panic("oracle: bad tick ratio constant " + h)
		}
		out[i] = v
	}
	return out
}()

// SqrtRatioAtTick returns sqrt(1.0001^tick) as a Q64.96 fixed-point number,
// rounded up exactly like TickMath.getSqrtRatioAtTick.
func SqrtRatioAtTick(tick int32) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("%w: %d", ErrTickOutOfRange, tick)
	}
	abs := int64(tick)
	if abs < 0 {
		abs = -abs
	}

	ratio := new(big.Int).Set(q128)
	for i, r := range tickRatios {
		if abs&(1<<uint(i)) == 0 {
			continue
		}
		if i == 0 {
			ratio.Set(r)
			continue
		}
		ratio.Mul(ratio, r)
		ratio.Rsh(ratio, 128)
	}
	if tick > 0 {
		ratio.Quo(maxUint256, ratio)
	}

	// Q128.128 -> Q64.96, rounding up
	rem := new(big.Int).Mod(ratio, q32)
	sqrt := ratio.Rsh(ratio, 32)
	if rem.Sign() != 0 {
		sqrt.Add(sqrt, big.NewInt(1))
	}
	return sqrt, nil
}

// QuoteAtTick returns how much quote token baseAmount of base token is worth at tick.
// The pool price is token1/token0 where token0 sorts lower by address.
func QuoteAtTick(tick int32, baseAmount *big.Int, base, quote common.Address) (*big.Int, error) {
	if baseAmount == nil || baseAmount.Sign() < 0 {
		return nil, errors.New("base amount must be non-negative")
	}
	sqrt, err := SqrtRatioAtTick(tick)
	if err != nil {
		return nil, err
	}
	baseIsToken0 := bytes.Compare(base.Bytes(), quote.Bytes()) < 0

	out := new(big.Int)
	if sqrt.Cmp(maxUint128) <= 0 {
		ratioX192 := new(big.Int).Mul(sqrt, sqrt)
		if baseIsToken0 {
			return mulDiv(out, ratioX192, baseAmount, q192), nil
		}
		return mulDiv(out, q192, baseAmount, ratioX192), nil
	}

	ratioX128 := mulDiv(new(big.Int), sqrt, sqrt, q64)
	if baseIsToken0 {
		return mulDiv(out, ratioX128, baseAmount, q128), nil
	}
	return mulDiv(out, q128, baseAmount, ratioX128), nil
}

// mulDiv sets z = floor(a*b/d) at full precision.
func mulDiv(z, a, b, d *big.Int) *big.Int {
	z.Mul(a, b)
	return z.Quo(z, d)
}
