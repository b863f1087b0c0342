package order

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/uhyunpark/triggerswap/pkg/crypto"
)

// SignedOrder is the wire form accepted by the execution endpoint
type SignedOrder struct {
	Order     *OrderPayload `json:"order"`
	Signature string        `json:"signature"` // Hex-encoded [R || S || V] (0x...)
}

// OrderPayload carries integers as base-10 strings and bytes as 0x hex
type OrderPayload struct {
	Account      string `json:"account"`      // Ethereum address (0x...)
	Nonce        string `json:"nonce"`        // BigInt as string
	Path         string `json:"path"`         // Packed route (0x...)
	Amount       string `json:"amount"`       // BigInt as string
	TriggerPrice string `json:"triggerPrice"` // 18-decimal fixed point as string
	Slippage     string `json:"slippage"`     // Parts per million as string
	OrderType    uint8  `json:"orderType"`    // 0=LIMIT, 1=STOP
	OrderSide    uint8  `json:"orderSide"`    // 0=BUY, 1=SELL
	Deadline     string `json:"deadline"`     // Unix seconds as string
}

func parseUint(name, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: invalid %s: %q", ErrMalformedOrder, name, s)
	}
	return v, nil
}

// ToOrder converts the payload into a validated Order
func (p *OrderPayload) ToOrder() (*Order, error) {
	if !common.IsHexAddress(p.Account) {
		return nil, fmt.Errorf("%w: invalid account %q", ErrMalformedOrder, p.Account)
	}
	path, err := hexutil.Decode(p.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid path: %v", ErrMalformedOrder, err)
	}

	o := &Order{
		Account: common.HexToAddress(p.Account),
		Path:    path,
		Type:    Type(p.OrderType),
		Side:    Side(p.OrderSide),
	}
	if o.Nonce, err = parseUint("nonce", p.Nonce); err != nil {
		return nil, err
	}
	if o.Amount, err = parseUint("amount", p.Amount); err != nil {
		return nil, err
	}
	if o.TriggerPrice, err = parseUint("triggerPrice", p.TriggerPrice); err != nil {
		return nil, err
	}
	if o.Slippage, err = parseUint("slippage", p.Slippage); err != nil {
		return nil, err
	}
	if o.Deadline, err = parseUint("deadline", p.Deadline); err != nil {
		return nil, err
	}

	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// FromOrder converts an Order to its wire payload
func FromOrder(o *Order) *OrderPayload {
	return &OrderPayload{
		Account:      o.Account.Hex(),
		Nonce:        o.Nonce.String(),
		Path:         hexutil.Encode(o.Path),
		Amount:       o.Amount.String(),
		TriggerPrice: o.TriggerPrice.String(),
		Slippage:     o.Slippage.String(),
		OrderType:    uint8(o.Type),
		OrderSide:    uint8(o.Side),
		Deadline:     o.Deadline.String(),
	}
}

// EIP712 returns the typed-data view of the order used for signing and recovery
func (o *Order) EIP712() *crypto.OrderEIP712 {
	return &crypto.OrderEIP712{
		Account:      o.Account,
		Nonce:        o.Nonce,
		Path:         o.Path,
		Amount:       o.Amount,
		TriggerPrice: o.TriggerPrice,
		Slippage:     o.Slippage,
		OrderType:    uint8(o.Type),
		OrderSide:    uint8(o.Side),
		Deadline:     o.Deadline,
	}
}

// Sign produces a SignedOrder for o using the given domain signer
func Sign(e *crypto.EIP712Signer, signer *crypto.Signer, o *Order) (*SignedOrder, error) {
	sig, err := e.SignOrder(signer, o.EIP712())
	if err != nil {
		return nil, err
	}
	return &SignedOrder{Order: FromOrder(o), Signature: hexutil.Encode(sig)}, nil
}

// Decode parses the payload and signature bytes
func (s *SignedOrder) Decode() (*Order, []byte, error) {
	if s.Order == nil {
		return nil, nil, fmt.Errorf("%w: missing order payload", ErrMalformedOrder)
	}
	o, err := s.Order.ToOrder()
	if err != nil {
		return nil, nil, err
	}
	sig, err := hexutil.Decode(s.Signature)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid signature encoding: %v", ErrMalformedOrder, err)
	}
	if len(sig) != crypto.SignatureLength {
		return nil, nil, fmt.Errorf("%w: signature must be %d bytes, got %d", ErrMalformedOrder, crypto.SignatureLength, len(sig))
	}
	return o, sig, nil
}

// Serialize converts SignedOrder to JSON bytes
func (s *SignedOrder) Serialize() ([]byte, error) {
	return json.Marshal(s)
}

// Deserialize parses JSON bytes into SignedOrder
func Deserialize(data []byte) (*SignedOrder, error) {
	var s SignedOrder
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal order: %v", ErrMalformedOrder, err)
	}
	return &s, nil
}
