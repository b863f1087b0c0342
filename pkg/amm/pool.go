package amm

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/uhyunpark/triggerswap/pkg/ledger"
	"github.com/uhyunpark/triggerswap/pkg/oracle"
)

// SortTokens orders a pair the way pools do: token0 has the lower address
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		return b, a
	}
	return a, b
}

// PoolAddress derives the deterministic address of the (pair, fee) pool
func PoolAddress(tokenA, tokenB common.Address, fee uint32) common.Address {
	t0, t1 := SortTokens(tokenA, tokenB)
	h := crypto.Keccak256(t0.Bytes(), t1.Bytes(), []byte{byte(fee >> 16), byte(fee >> 8), byte(fee)})
	return common.BytesToAddress(h[12:])
}

// Registry exposes the ledger's pools to the oracle and manages their ticks.
// Reads see committed state only.
type Registry struct {
	l *ledger.Ledger
}

func NewRegistry(l *ledger.Ledger) *Registry {
	return &Registry{l: l}
}

// CreatePool registers the (pair, fee) pool inside tx
func (r *Registry) CreatePool(tx *ledger.Tx, tokenA, tokenB common.Address, fee uint32, tick int32) (ledger.Pool, error) {
	if tokenA == tokenB {
		return ledger.Pool{}, fmt.Errorf("pool needs two distinct tokens, got %s twice", tokenA.Hex())
	}
	if fee >= feeDenominator {
		return ledger.Pool{}, fmt.Errorf("fee %d must be below %d", fee, feeDenominator)
	}
	if _, err := oracle.SqrtRatioAtTick(tick); err != nil {
		return ledger.Pool{}, err
	}
	t0, t1 := SortTokens(tokenA, tokenB)
	p := ledger.Pool{
		Address: PoolAddress(t0, t1, fee),
		Token0:  t0,
		Token1:  t1,
		Fee:     fee,
		Tick:    tick,
	}
	if err := tx.RegisterPool(p); err != nil {
		return ledger.Pool{}, err
	}
	return p, nil
}

// SetTick moves a pool's price in its own unit of work
func (r *Registry) SetTick(pool common.Address, tick int32) error {
	if _, err := oracle.SqrtRatioAtTick(tick); err != nil {
		return err
	}
	tx := r.l.Begin()
	defer tx.Rollback()
	if err := tx.SetTick(pool, tick); err != nil {
		return err
	}
	return tx.Commit()
}

// PoolFor returns the (pair, fee) pool if it is registered
func (r *Registry) PoolFor(tokenA, tokenB common.Address, fee uint32) (common.Address, bool) {
	addr := PoolAddress(tokenA, tokenB, fee)
	if _, ok := r.l.Pool(addr); !ok {
		return common.Address{}, false
	}
	return addr, true
}

// CurrentTick returns a pool's committed tick
func (r *Registry) CurrentTick(pool common.Address) (int32, error) {
	p, ok := r.l.Pool(pool)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ledger.ErrUnknownPool, pool.Hex())
	}
	return p.Tick, nil
}

// Pools lists every registered pool
func (r *Registry) Pools() []ledger.Pool {
	return r.l.Pools()
}
