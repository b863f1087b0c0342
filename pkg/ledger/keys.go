package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Key schema:
//
//	tok:<token>                      → Token
//	pool:<pool>                      → Pool
//	bal:<token>:<owner>              → balanceEntry
//	allow:<token>:<owner>:<spender>  → allowanceEntry
//	nonce:<account>:<nonce>          → nonceEntry
//	exec:<account>:<nonce>           → execution record bytes
const (
	prefixToken     = "tok:"
	prefixPool      = "pool:"
	prefixBalance   = "bal:"
	prefixAllowance = "allow:"
	prefixNonce     = "nonce:"
	prefixExecution = "exec:"
)

func tokenKey(token common.Address) []byte {
	return []byte(prefixToken + token.Hex())
}

func poolKey(pool common.Address) []byte {
	return []byte(prefixPool + pool.Hex())
}

func balanceKey(k balKey) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, k.token.Hex(), k.owner.Hex()))
}

func allowanceKey(k allowKey) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%s", prefixAllowance, k.token.Hex(), k.owner.Hex(), k.spender.Hex()))
}

func nonceKey(k replayKey) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixNonce, k.account.Hex(), k.nonce))
}

func executionKey(k replayKey) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixExecution, k.account.Hex(), k.nonce))
}

// keyUpperBound returns the smallest key greater than every key with prefix
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// In-memory map keys

type balKey struct {
	token common.Address
	owner common.Address
}

type allowKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

type replayKey struct {
	account common.Address
	nonce   string // base-10
}

func newReplayKey(account common.Address, nonce *big.Int) replayKey {
	return replayKey{account: account, nonce: nonce.String()}
}
