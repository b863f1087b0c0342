package amm

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/triggerswap/pkg/ledger"
	"github.com/uhyunpark/triggerswap/pkg/oracle"
	"github.com/uhyunpark/triggerswap/pkg/order"
	"github.com/uhyunpark/triggerswap/pkg/route"
)

var (
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrTooLittleReceived     = errors.New("too little received")
	ErrTooMuchRequested      = errors.New("too much requested")
	ErrZeroAmount            = errors.New("zero swap amount")
)

const feeDenominator = 1_000_000

var (
	feeDen = big.NewInt(feeDenominator)
	q192   = new(big.Int).Lsh(big.NewInt(1), 192)
)

// Error is a swap the venue refused. The whole unit of work must be rolled back.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("router %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }
func (e *Error) Kind() string  { return order.KindVenueRejected }

// ExactInputParams swaps exactly AmountIn along Path (tokenIn first)
type ExactInputParams struct {
	Path             []byte
	Payer            common.Address
	Recipient        common.Address
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
}

// ExactOutputParams buys exactly AmountOut along Path (tokenOut first)
type ExactOutputParams struct {
	Path            []byte
	Payer           common.Address
	Recipient       common.Address
	AmountOut       *big.Int
	AmountInMaximum *big.Int
}

// Router executes multi-hop swaps against registry pools at their current tick.
// Payers must approve Address; pools pay out of their own ledger balances.
type Router struct {
	Address common.Address
}

func NewRouter(addr common.Address) *Router {
	return &Router{Address: addr}
}

type leg struct {
	pool     ledger.Pool
	tokenIn  common.Address
	tokenOut common.Address
	in       *big.Int
	out      *big.Int
}

// ExactInput returns the amount delivered to the recipient
func (r *Router) ExactInput(_ context.Context, tx *ledger.Tx, p ExactInputParams) (*big.Int, error) {
	const op = "exactInput"
	if p.AmountIn == nil || p.AmountIn.Sign() <= 0 {
		return nil, &Error{op, ErrZeroAmount}
	}
	hops, err := route.DecodePath(p.Path)
	if err != nil {
		return nil, &Error{op, err}
	}

	legs := make([]leg, len(hops))
	amount := new(big.Int).Set(p.AmountIn)
	for i, h := range hops {
		pool, err := lookup(tx, h)
		if err != nil {
			return nil, &Error{op, err}
		}
		out, err := amountOut(pool, h.TokenA, h.TokenB, amount)
		if err != nil {
			return nil, &Error{op, err}
		}
		if err := checkReserve(tx, pool, h.TokenB, out); err != nil {
			return nil, &Error{op, err}
		}
		legs[i] = leg{pool: pool, tokenIn: h.TokenA, tokenOut: h.TokenB, in: amount, out: out}
		amount = out
	}

	if p.AmountOutMinimum != nil && amount.Cmp(p.AmountOutMinimum) < 0 {
		return nil, &Error{op, fmt.Errorf("%w: %s < minimum %s", ErrTooLittleReceived, amount, p.AmountOutMinimum)}
	}
	if err := r.settle(tx, p.Payer, p.Recipient, legs); err != nil {
		return nil, &Error{op, err}
	}
	return amount, nil
}

// ExactOutput returns the amount taken from the payer
func (r *Router) ExactOutput(_ context.Context, tx *ledger.Tx, p ExactOutputParams) (*big.Int, error) {
	const op = "exactOutput"
	if p.AmountOut == nil || p.AmountOut.Sign() <= 0 {
		return nil, &Error{op, ErrZeroAmount}
	}
	hops, err := route.DecodePath(p.Path)
	if err != nil {
		return nil, &Error{op, err}
	}

	// walk from the output end: hop i delivers TokenA and consumes TokenB
	legs := make([]leg, len(hops))
	amount := new(big.Int).Set(p.AmountOut)
	for i, h := range hops {
		pool, err := lookup(tx, h)
		if err != nil {
			return nil, &Error{op, err}
		}
		if err := checkReserve(tx, pool, h.TokenA, amount); err != nil {
			return nil, &Error{op, err}
		}
		in, err := amountIn(pool, h.TokenB, h.TokenA, amount)
		if err != nil {
			return nil, &Error{op, err}
		}
		legs[len(hops)-1-i] = leg{pool: pool, tokenIn: h.TokenB, tokenOut: h.TokenA, in: in, out: amount}
		amount = in
	}

	if p.AmountInMaximum != nil && amount.Cmp(p.AmountInMaximum) > 0 {
		return nil, &Error{op, fmt.Errorf("%w: %s > maximum %s", ErrTooMuchRequested, amount, p.AmountInMaximum)}
	}
	if err := r.settle(tx, p.Payer, p.Recipient, legs); err != nil {
		return nil, &Error{op, err}
	}
	return amount, nil
}

// Quote prices an exact-input swap without moving tokens
func (r *Router) Quote(tx *ledger.Tx, path []byte, amountIn *big.Int) (*big.Int, error) {
	hops, err := route.DecodePath(path)
	if err != nil {
		return nil, err
	}
	amount := new(big.Int).Set(amountIn)
	for _, h := range hops {
		pool, err := lookup(tx, h)
		if err != nil {
			return nil, err
		}
		if amount, err = amountOut(pool, h.TokenA, h.TokenB, amount); err != nil {
			return nil, err
		}
	}
	return amount, nil
}

// settle moves tokens payer → pool → ... → recipient in execution order
func (r *Router) settle(tx *ledger.Tx, payer, recipient common.Address, legs []leg) error {
	first := legs[0]
	if err := tx.TransferFrom(first.tokenIn, r.Address, payer, first.pool.Address, first.in); err != nil {
		return err
	}
	for i, l := range legs {
		to := recipient
		if i+1 < len(legs) {
			to = legs[i+1].pool.Address
		}
		if err := tx.Transfer(l.tokenOut, l.pool.Address, to, l.out); err != nil {
			if errors.Is(err, ledger.ErrInsufficientBalance) {
				return fmt.Errorf("%w: pool %s: %v", ErrInsufficientLiquidity, l.pool.Address.Hex(), err)
			}
			return err
		}
	}
	return nil
}

func lookup(tx *ledger.Tx, h route.Hop) (ledger.Pool, error) {
	pool, ok := tx.Pool(PoolAddress(h.TokenA, h.TokenB, h.Fee))
	if !ok {
		return ledger.Pool{}, fmt.Errorf("%w: %s/%s fee %d", ErrInsufficientLiquidity, h.TokenA.Hex(), h.TokenB.Hex(), h.Fee)
	}
	return pool, nil
}

func checkReserve(tx *ledger.Tx, pool ledger.Pool, token common.Address, out *big.Int) error {
	if reserve := tx.BalanceOf(token, pool.Address); reserve.Cmp(out) < 0 {
		return fmt.Errorf("%w: pool %s holds %s of %s, swap needs %s",
			ErrInsufficientLiquidity, pool.Address.Hex(), reserve, token.Hex(), out)
	}
	return nil
}

// amountOut prices in tokenIn net of the pool fee, rounding down
func amountOut(pool ledger.Pool, tokenIn, tokenOut common.Address, in *big.Int) (*big.Int, error) {
	ratio, err := ratioX192(pool.Tick)
	if err != nil {
		return nil, err
	}
	net := new(big.Int).Mul(in, big.NewInt(int64(feeDenominator-pool.Fee)))
	net.Quo(net, feeDen)

	out := new(big.Int)
	if tokenIn == pool.Token0 {
		out.Mul(net, ratio).Quo(out, q192)
	} else {
		out.Mul(net, q192).Quo(out, ratio)
	}
	if out.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s of %s rounds to nothing", ErrInsufficientLiquidity, in, tokenIn.Hex())
	}
	return out, nil
}

// amountIn is the gross tokenIn needed for out of tokenOut, rounding up
func amountIn(pool ledger.Pool, tokenIn, tokenOut common.Address, out *big.Int) (*big.Int, error) {
	ratio, err := ratioX192(pool.Tick)
	if err != nil {
		return nil, err
	}
	var net *big.Int
	if tokenIn == pool.Token0 {
		net = ceilDiv(new(big.Int).Mul(out, q192), ratio)
	} else {
		net = ceilDiv(new(big.Int).Mul(out, ratio), q192)
	}
	gross := new(big.Int).Mul(net, feeDen)
	return ceilDiv(gross, big.NewInt(int64(feeDenominator-pool.Fee))), nil
}

func ratioX192(tick int32) (*big.Int, error) {
	sqrt, err := oracle.SqrtRatioAtTick(tick)
	if err != nil {
		return nil, err
	}
	return sqrt.Mul(sqrt, sqrt), nil
}

func ceilDiv(a, b *big.Int) *big.Int {
	q, m := new(big.Int).QuoRem(a, b, new(big.Int))
	if m.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
