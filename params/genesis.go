package params

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
)

// Genesis seeds an empty ledger with tokens, pools and funded accounts.
// Amounts are base-10 strings in each token's native units.
type Genesis struct {
	Tokens     []GenesisToken     `json:"tokens"`
	Pools      []GenesisPool      `json:"pools"`
	Balances   []GenesisBalance   `json:"balances"`
	Allowances []GenesisAllowance `json:"allowances"`
}

type GenesisToken struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// GenesisPool creates the (tokenA, tokenB, fee) pool at Tick and funds its reserves
type GenesisPool struct {
	TokenA   common.Address `json:"tokenA"`
	TokenB   common.Address `json:"tokenB"`
	Fee      uint32         `json:"fee"`
	Tick     int32          `json:"tick"`
	ReserveA string         `json:"reserveA"`
	ReserveB string         `json:"reserveB"`
}

type GenesisBalance struct {
	Token  common.Address `json:"token"`
	Owner  common.Address `json:"owner"`
	Amount string         `json:"amount"`
}

type GenesisAllowance struct {
	Token   common.Address `json:"token"`
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Amount  string         `json:"amount"`
}

// LoadGenesis reads and checks a genesis JSON file
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse genesis %s: %w", path, err)
	}
	if err := g.check(); err != nil {
		return nil, fmt.Errorf("genesis %s: %w", path, err)
	}
	return &g, nil
}

func (g *Genesis) check() error {
	for i, p := range g.Pools {
		if _, err := Amount(p.ReserveA); err != nil {
			return fmt.Errorf("pool %d reserveA: %w", i, err)
		}
		if _, err := Amount(p.ReserveB); err != nil {
			return fmt.Errorf("pool %d reserveB: %w", i, err)
		}
	}
	for i, b := range g.Balances {
		if _, err := Amount(b.Amount); err != nil {
			return fmt.Errorf("balance %d: %w", i, err)
		}
	}
	for i, a := range g.Allowances {
		if _, err := Amount(a.Amount); err != nil {
			return fmt.Errorf("allowance %d: %w", i, err)
		}
	}
	return nil
}

// Amount parses a non-negative base-10 integer; the empty string is zero
func Amount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
