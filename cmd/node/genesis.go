package main

import (
	"fmt"

	"github.com/uhyunpark/triggerswap/params"
	"github.com/uhyunpark/triggerswap/pkg/amm"
	"github.com/uhyunpark/triggerswap/pkg/ledger"
)

// applyGenesis seeds an empty ledger in one unit of work. A ledger that already
// holds tokens is left untouched.
func applyGenesis(l *ledger.Ledger, reg *amm.Registry, g *params.Genesis) (bool, error) {
	if len(l.Tokens()) > 0 {
		return false, nil
	}

	tx := l.Begin()
	defer tx.Rollback()

	for _, t := range g.Tokens {
		if err := tx.RegisterToken(ledger.Token{Address: t.Address, Symbol: t.Symbol, Decimals: t.Decimals}); err != nil {
			return false, err
		}
	}
	for i, p := range g.Pools {
		pool, err := reg.CreatePool(tx, p.TokenA, p.TokenB, p.Fee, p.Tick)
		if err != nil {
			return false, fmt.Errorf("pool %d: %w", i, err)
		}
		// LoadGenesis already checked every amount
		reserveA, _ := params.Amount(p.ReserveA)
		reserveB, _ := params.Amount(p.ReserveB)
		if err := tx.Mint(p.TokenA, pool.Address, reserveA); err != nil {
			return false, fmt.Errorf("pool %d reserve: %w", i, err)
		}
		if err := tx.Mint(p.TokenB, pool.Address, reserveB); err != nil {
			return false, fmt.Errorf("pool %d reserve: %w", i, err)
		}
	}
	for i, b := range g.Balances {
		amount, _ := params.Amount(b.Amount)
		if err := tx.Mint(b.Token, b.Owner, amount); err != nil {
			return false, fmt.Errorf("balance %d: %w", i, err)
		}
	}
	for i, a := range g.Allowances {
		amount, _ := params.Amount(a.Amount)
		if err := tx.Approve(a.Token, a.Owner, a.Spender, amount); err != nil {
			return false, fmt.Errorf("allowance %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
