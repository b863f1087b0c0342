package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Tx is the single atomic unit of work. Writes are staged in an overlay and reach the
// committed state, and Pebble, only on Commit. Rollback discards them.
type Tx struct {
	l    *Ledger
	done bool

	tokens     map[common.Address]Token
	pools      map[common.Address]Pool
	balances   map[balKey]*big.Int
	allowances map[allowKey]*big.Int
	nonces     map[replayKey]struct{}
	executions map[replayKey][]byte
}

func newTx(l *Ledger) *Tx {
	return &Tx{
		l:          l,
		tokens:     make(map[common.Address]Token),
		pools:      make(map[common.Address]Pool),
		balances:   make(map[balKey]*big.Int),
		allowances: make(map[allowKey]*big.Int),
		nonces:     make(map[replayKey]struct{}),
		executions: make(map[replayKey][]byte),
	}
}

// Tokens

// RegisterToken adds a token to the registry
func (tx *Tx) RegisterToken(t Token) error {
	if _, ok := tx.Token(t.Address); ok {
		return fmt.Errorf("%w: %s", ErrTokenExists, t.Address.Hex())
	}
	tx.tokens[t.Address] = t
	return nil
}

func (tx *Tx) Token(addr common.Address) (Token, bool) {
	if t, ok := tx.tokens[addr]; ok {
		return t, true
	}
	return tx.l.Token(addr)
}

func (tx *Tx) Decimals(token common.Address) (uint8, error) {
	t, ok := tx.Token(token)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	return t.Decimals, nil
}

// Pools

// RegisterPool adds a pool over two registered tokens
func (tx *Tx) RegisterPool(p Pool) error {
	if _, ok := tx.Pool(p.Address); ok {
		return fmt.Errorf("%w: %s", ErrPoolExists, p.Address.Hex())
	}
	for _, token := range []common.Address{p.Token0, p.Token1} {
		if _, ok := tx.Token(token); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
		}
	}
	tx.pools[p.Address] = p
	return nil
}

func (tx *Tx) Pool(addr common.Address) (Pool, bool) {
	if p, ok := tx.pools[addr]; ok {
		return p, true
	}
	return tx.l.Pool(addr)
}

// SetTick moves a pool's price
func (tx *Tx) SetTick(pool common.Address, tick int32) error {
	p, ok := tx.Pool(pool)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPool, pool.Hex())
	}
	p.Tick = tick
	tx.pools[pool] = p
	return nil
}

// Balances and allowances

func (tx *Tx) BalanceOf(token, owner common.Address) *big.Int {
	k := balKey{token, owner}
	if v, ok := tx.balances[k]; ok {
		return new(big.Int).Set(v)
	}
	return tx.l.BalanceOf(token, owner)
}

func (tx *Tx) Allowance(token, owner, spender common.Address) *big.Int {
	k := allowKey{token, owner, spender}
	if v, ok := tx.allowances[k]; ok {
		return new(big.Int).Set(v)
	}
	return tx.l.Allowance(token, owner, spender)
}

// Mint credits new supply to owner
func (tx *Tx) Mint(token, to common.Address, amount *big.Int) error {
	if err := tx.checkAmount(token, amount); err != nil {
		return err
	}
	bal := tx.BalanceOf(token, to)
	tx.balances[balKey{token, to}] = bal.Add(bal, amount)
	return nil
}

// Approve sets spender's allowance over owner's token
func (tx *Tx) Approve(token, owner, spender common.Address, amount *big.Int) error {
	if err := tx.checkAmount(token, amount); err != nil {
		return err
	}
	tx.allowances[allowKey{token, owner, spender}] = new(big.Int).Set(amount)
	return nil
}

// Transfer moves amount from from to to
func (tx *Tx) Transfer(token, from, to common.Address, amount *big.Int) error {
	if err := tx.checkAmount(token, amount); err != nil {
		return err
	}
	fromBal := tx.BalanceOf(token, from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s",
			ErrInsufficientBalance, from.Hex(), fromBal, token.Hex(), amount)
	}
	tx.balances[balKey{token, from}] = fromBal.Sub(fromBal, amount)
	toBal := tx.BalanceOf(token, to)
	tx.balances[balKey{token, to}] = toBal.Add(toBal, amount)
	return nil
}

// TransferFrom moves amount from from to to on behalf of spender, spending its allowance
func (tx *Tx) TransferFrom(token, spender, from, to common.Address, amount *big.Int) error {
	if err := tx.checkAmount(token, amount); err != nil {
		return err
	}
	allowance := tx.Allowance(token, from, spender)
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s may move %s of %s from %s, needs %s",
			ErrInsufficientAllowance, spender.Hex(), allowance, token.Hex(), from.Hex(), amount)
	}
	if err := tx.Transfer(token, from, to, amount); err != nil {
		return err
	}
	tx.allowances[allowKey{token, from, spender}] = allowance.Sub(allowance, amount)
	return nil
}

func (tx *Tx) checkAmount(token common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeAmount, amount)
	}
	if _, ok := tx.Token(token); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	return nil
}

// Replay table

func (tx *Tx) NonceUsed(account common.Address, nonce *big.Int) bool {
	if _, ok := tx.nonces[newReplayKey(account, nonce)]; ok {
		return true
	}
	return tx.l.NonceUsed(account, nonce)
}

// MarkNonceUsed flags (account, nonce). It is never cleared once committed.
func (tx *Tx) MarkNonceUsed(account common.Address, nonce *big.Int) {
	tx.nonces[newReplayKey(account, nonce)] = struct{}{}
}

// Record stores the JSON execution record for (account, nonce)
func (tx *Tx) Record(account common.Address, nonce *big.Int, record []byte) {
	tx.executions[newReplayKey(account, nonce)] = append([]byte(nil), record...)
}

// Commit writes the overlay in one Pebble batch and publishes it
func (tx *Tx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	defer tx.finish()

	b := tx.l.store.newBatch()
	defer b.close()
	if err := tx.writeTo(b); err != nil {
		return err
	}
	if err := b.commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	tx.l.mu.Lock()
	st := tx.l.st
	for k, v := range tx.tokens {
		st.tokens[k] = v
	}
	for k, v := range tx.pools {
		st.pools[k] = v
	}
	for k, v := range tx.balances {
		st.balances[k] = v
	}
	for k, v := range tx.allowances {
		st.allowances[k] = v
	}
	for k := range tx.nonces {
		st.nonces[k] = struct{}{}
	}
	for k, v := range tx.executions {
		st.executions[k] = v
	}
	tx.l.mu.Unlock()

	tx.l.log.Debugw("ledger_commit",
		"balances", len(tx.balances),
		"allowances", len(tx.allowances),
		"nonces", len(tx.nonces),
		"executions", len(tx.executions),
	)
	return nil
}

func (tx *Tx) writeTo(b *batch) error {
	for _, t := range tx.tokens {
		if err := b.setJSON(tokenKey(t.Address), t); err != nil {
			return err
		}
	}
	for _, p := range tx.pools {
		if err := b.setJSON(poolKey(p.Address), p); err != nil {
			return err
		}
	}
	for k, v := range tx.balances {
		e := balanceEntry{Token: k.token, Owner: k.owner, Amount: v.String()}
		if err := b.setJSON(balanceKey(k), e); err != nil {
			return err
		}
	}
	for k, v := range tx.allowances {
		e := allowanceEntry{Token: k.token, Owner: k.owner, Spender: k.spender, Amount: v.String()}
		if err := b.setJSON(allowanceKey(k), e); err != nil {
			return err
		}
	}
	for k := range tx.nonces {
		if err := b.setJSON(nonceKey(k), nonceEntry{Account: k.account, Nonce: k.nonce}); err != nil {
			return err
		}
	}
	for k, v := range tx.executions {
		if err := b.setJSON(executionKey(k), executionEntry{Account: k.account, Nonce: k.nonce, Record: v}); err != nil {
			return err
		}
	}
	return nil
}

// Rollback discards every staged write. It is a no-op after Commit.
func (tx *Tx) Rollback() {
	if tx.done {
		return
	}
	tx.finish()
}

func (tx *Tx) finish() {
	tx.done = true
	tx.l.txMu.Unlock()
}
