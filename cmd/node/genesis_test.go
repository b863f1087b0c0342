package main

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/triggerswap/params"
	"github.com/uhyunpark/triggerswap/pkg/amm"
	"github.com/uhyunpark/triggerswap/pkg/ledger"
)

var (
	usdc   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	weth   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	trader = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	execAt = common.HexToAddress("0x00000000000000000000000000000000000000e0")
)

func TestApplyGenesis(t *testing.T) {
	store, err := ledger.OpenMemStore()
	if err != nil {
		t.Fatal(err)
	}
	l, err := ledger.Open(store, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	reg := amm.NewRegistry(l)

	g := &params.Genesis{
		Tokens: []params.GenesisToken{
			{Address: usdc, Symbol: "USDC", Decimals: 6},
			{Address: weth, Symbol: "WETH", Decimals: 18},
		},
		Pools: []params.GenesisPool{
			{TokenA: weth, TokenB: usdc, Fee: 500, Tick: 0, ReserveA: "1000", ReserveB: "2000"},
		},
		Balances:   []params.GenesisBalance{{Token: usdc, Owner: trader, Amount: "50"}},
		Allowances: []params.GenesisAllowance{{Token: usdc, Owner: trader, Spender: execAt, Amount: "40"}},
	}

	applied, err := applyGenesis(l, reg, g)
	if err != nil || !applied {
		t.Fatalf("applyGenesis = %v, %v", applied, err)
	}
	pool, ok := reg.PoolFor(usdc, weth, 500)
	if !ok {
		t.Fatal("pool not registered")
	}
	if got := l.BalanceOf(usdc, pool); got.Cmp(big.NewInt(2000)) != 0 {
		t.Errorf("pool usdc reserve = %s, want 2000", got)
	}
	if got := l.BalanceOf(usdc, trader); got.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("trader balance = %s, want 50", got)
	}
	if got := l.Allowance(usdc, trader, execAt); got.Cmp(big.NewInt(40)) != 0 {
		t.Errorf("allowance = %s, want 40", got)
	}

	// a seeded ledger is never re-seeded
	applied, err = applyGenesis(l, reg, g)
	if err != nil || applied {
		t.Fatalf("second applyGenesis = %v, %v, want false, nil", applied, err)
	}
}

func TestApplyGenesis_RollsBackOnError(t *testing.T) {
	store, err := ledger.OpenMemStore()
	if err != nil {
		t.Fatal(err)
	}
	l, err := ledger.Open(store, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	g := &params.Genesis{
		Tokens: []params.GenesisToken{{Address: usdc, Symbol: "USDC", Decimals: 6}},
		// weth was never registered
		Pools: []params.GenesisPool{{TokenA: weth, TokenB: usdc, Fee: 500}},
	}
	if _, err := applyGenesis(l, amm.NewRegistry(l), g); err == nil {
		t.Fatal("applyGenesis accepted a pool over an unknown token")
	}
	if len(l.Tokens()) != 0 {
		t.Errorf("tokens committed despite failure: %v", l.Tokens())
	}
}
