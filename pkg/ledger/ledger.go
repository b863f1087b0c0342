package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	ErrUnknownToken          = errors.New("unknown token")
	ErrTokenExists           = errors.New("token already registered")
	ErrUnknownPool           = errors.New("unknown pool")
	ErrPoolExists            = errors.New("pool already registered")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrNegativeAmount        = errors.New("negative amount")
	ErrTxDone                = errors.New("transaction already committed or rolled back")
)

// Token is a registered fungible asset
type Token struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// Pool is a liquidity pool and its current tick. Reserves are the pool address's balances.
type Pool struct {
	Address common.Address `json:"address"`
	Token0  common.Address `json:"token0"`
	Token1  common.Address `json:"token1"`
	Fee     uint32         `json:"fee"`
	Tick    int32          `json:"tick"`
}

// Persisted entry shapes; keys are never parsed back
type balanceEntry struct {
	Token  common.Address `json:"token"`
	Owner  common.Address `json:"owner"`
	Amount string         `json:"amount"`
}

type allowanceEntry struct {
	Token   common.Address `json:"token"`
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Amount  string         `json:"amount"`
}

type nonceEntry struct {
	Account common.Address `json:"account"`
	Nonce   string         `json:"nonce"`
}

type executionEntry struct {
	Account common.Address  `json:"account"`
	Nonce   string          `json:"nonce"`
	Record  json.RawMessage `json:"record"`
}

// state is the committed view of the ledger
type state struct {
	tokens     map[common.Address]Token
	pools      map[common.Address]Pool
	balances   map[balKey]*big.Int
	allowances map[allowKey]*big.Int
	nonces     map[replayKey]struct{}
	executions map[replayKey][]byte
}

func newState() *state {
	return &state{
		tokens:     make(map[common.Address]Token),
		pools:      make(map[common.Address]Pool),
		balances:   make(map[balKey]*big.Int),
		allowances: make(map[allowKey]*big.Int),
		nonces:     make(map[replayKey]struct{}),
		executions: make(map[replayKey][]byte),
	}
}

// Ledger holds token balances, allowances, pools and the replay table.
// All mutations go through a Tx; at most one Tx is open at a time, which totally orders
// every state-mutating request.
type Ledger struct {
	store *Store
	log   *zap.SugaredLogger

	txMu sync.Mutex   // held for the lifetime of a Tx
	mu   sync.RWMutex // guards st
	st   *state
}

// Open loads all committed state from store
func Open(store *Store, log *zap.SugaredLogger) (*Ledger, error) {
	l := &Ledger{store: store, log: log, st: newState()}
	if err := l.load(); err != nil {
		return nil, err
	}
	log.Infow("ledger_loaded",
		"tokens", len(l.st.tokens),
		"pools", len(l.st.pools),
		"balances", len(l.st.balances),
		"used_nonces", len(l.st.nonces),
	)
	return l, nil
}

func (l *Ledger) load() error {
	st := l.st
	if err := l.store.scan(prefixToken, func(v []byte) error {
		var t Token
		if err := json.Unmarshal(v, &t); err != nil {
			return err
		}
		st.tokens[t.Address] = t
		return nil
	}); err != nil {
		return err
	}

	if err := l.store.scan(prefixPool, func(v []byte) error {
		var p Pool
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		st.pools[p.Address] = p
		return nil
	}); err != nil {
		return err
	}

	if err := l.store.scan(prefixBalance, func(v []byte) error {
		var e balanceEntry
		if err := json.Unmarshal(v, &e); err != nil {
			return err
		}
		amt, ok := new(big.Int).SetString(e.Amount, 10)
		if !ok {
			return fmt.Errorf("bad balance %q", e.Amount)
		}
		st.balances[balKey{e.Token, e.Owner}] = amt
		return nil
	}); err != nil {
		return err
	}

	if err := l.store.scan(prefixAllowance, func(v []byte) error {
		var e allowanceEntry
		if err := json.Unmarshal(v, &e); err != nil {
			return err
		}
		amt, ok := new(big.Int).SetString(e.Amount, 10)
		if !ok {
			return fmt.Errorf("bad allowance %q", e.Amount)
		}
		st.allowances[allowKey{e.Token, e.Owner, e.Spender}] = amt
		return nil
	}); err != nil {
		return err
	}

	if err := l.store.scan(prefixNonce, func(v []byte) error {
		var e nonceEntry
		if err := json.Unmarshal(v, &e); err != nil {
			return err
		}
		st.nonces[replayKey{e.Account, e.Nonce}] = struct{}{}
		return nil
	}); err != nil {
		return err
	}

	return l.store.scan(prefixExecution, func(v []byte) error {
		var e executionEntry
		if err := json.Unmarshal(v, &e); err != nil {
			return err
		}
		st.executions[replayKey{e.Account, e.Nonce}] = e.Record
		return nil
	})
}

// Close closes the underlying store
func (l *Ledger) Close() error {
	return l.store.Close()
}

// Begin opens the unit of work, blocking until any other Tx finishes.
// The caller must Commit or Rollback.
func (l *Ledger) Begin() *Tx {
	l.txMu.Lock()
	return newTx(l)
}

// Token returns a registered token
func (l *Ledger) Token(addr common.Address) (Token, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.st.tokens[addr]
	return t, ok
}

// Tokens returns all registered tokens ordered by address
func (l *Ledger) Tokens() []Token {
	l.mu.RLock()
	out := make([]Token, 0, len(l.st.tokens))
	for _, t := range l.st.tokens {
		out = append(out, t)
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Address.Hex() < out[j].Address.Hex() })
	return out
}

// Decimals returns a token's native precision
func (l *Ledger) Decimals(token common.Address) (uint8, error) {
	t, ok := l.Token(token)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	return t.Decimals, nil
}

// Pool returns a registered pool
func (l *Ledger) Pool(addr common.Address) (Pool, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.st.pools[addr]
	return p, ok
}

// Pools returns all registered pools ordered by address
func (l *Ledger) Pools() []Pool {
	l.mu.RLock()
	out := make([]Pool, 0, len(l.st.pools))
	for _, p := range l.st.pools {
		out = append(out, p)
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Address.Hex() < out[j].Address.Hex() })
	return out
}

// BalanceOf returns the committed balance of owner
func (l *Ledger) BalanceOf(token, owner common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyOrZero(l.st.balances[balKey{token, owner}])
}

// Allowance returns how much spender may move from owner
func (l *Ledger) Allowance(token, owner, spender common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyOrZero(l.st.allowances[allowKey{token, owner, spender}])
}

// NonceUsed reports whether (account, nonce) already authorized an execution
func (l *Ledger) NonceUsed(account common.Address, nonce *big.Int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, used := l.st.nonces[newReplayKey(account, nonce)]
	return used
}

// Execution returns the record committed for (account, nonce)
func (l *Ledger) Execution(account common.Address, nonce *big.Int) ([]byte, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.st.executions[newReplayKey(account, nonce)]
	return rec, ok
}

func copyOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
