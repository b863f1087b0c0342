package executor

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/triggerswap/pkg/ledger"
	"github.com/uhyunpark/triggerswap/pkg/order"
)

// consumeNonce marks (account, nonce) used inside tx. The mark only survives if tx commits.
func consumeNonce(tx *ledger.Tx, account common.Address, nonce *big.Int) error {
	if tx.NonceUsed(account, nonce) {
		return fmt.Errorf("%w: account %s nonce %s", order.ErrNonceAlreadyUsed, account.Hex(), nonce)
	}
	tx.MarkNonceUsed(account, nonce)
	return nil
}

// checkDeadline fails once now is strictly past deadline (unix seconds)
func checkDeadline(now time.Time, deadline *big.Int) error {
	if big.NewInt(now.Unix()).Cmp(deadline) > 0 {
		return fmt.Errorf("%w: deadline %s, now %d", order.ErrOrderExpired, deadline, now.Unix())
	}
	return nil
}
