package executor

import (
	"fmt"

	"github.com/uhyunpark/triggerswap/pkg/crypto"
	"github.com/uhyunpark/triggerswap/pkg/order"
)

// authenticate recovers the signer of o's typed-data digest and requires it to be o.Account
func authenticate(domain *crypto.EIP712Signer, o *order.Order, sig []byte) error {
	signer, err := domain.RecoverOrderSigner(o.EIP712(), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", order.ErrInvalidSignature, err)
	}
	if signer != o.Account {
		return fmt.Errorf("%w: signed by %s, order account %s", order.ErrInvalidSignature, signer.Hex(), o.Account.Hex())
	}
	return nil
}
