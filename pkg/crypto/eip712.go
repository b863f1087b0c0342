package crypto

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain represents the domain separator for EIP-712 typed data
// This prevents replay attacks across different chains/contracts
type EIP712Domain struct {
	Name              string         // Protocol name (e.g., "TriggerSwap")
	Version           string         // Protocol version (e.g., "1")
	ChainID           *big.Int       // Chain ID (1337 for local, 1 for mainnet)
	VerifyingContract common.Address // Executor address
}

// OrderEIP712 is the typed data a user signs to pre-authorize a conditional swap.
// Field order matches the Order type string and must not change.
type OrderEIP712 struct {
	Account      common.Address // Authorizing account, source of funds
	Nonce        *big.Int       // One-time tag per account
	Path         []byte         // Packed route, hashed with keccak256 inside the digest
	Amount       *big.Int       // Sold amount (SELL) or bought amount (BUY)
	TriggerPrice *big.Int       // Quote per base, 18-decimal fixed point
	Slippage     *big.Int       // Parts per million
	OrderType    uint8          // 0 = LIMIT, 1 = STOP
	OrderSide    uint8          // 0 = BUY, 1 = SELL
	Deadline     *big.Int       // Unix seconds
}

var orderTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Order": []apitypes.Type{
		{Name: "account", Type: "address"},
		{Name: "nonce", Type: "uint256"},
		{Name: "path", Type: "bytes"},
		{Name: "amount", Type: "uint256"},
		{Name: "triggerPrice", Type: "uint256"},
		{Name: "slippage", Type: "uint256"},
		{Name: "orderType", Type: "uint8"},
		{Name: "orderSide", Type: "uint8"},
		{Name: "deadline", Type: "uint256"},
	},
}

// EIP712Signer handles EIP-712 typed data signing for orders
type EIP712Signer struct {
	domain EIP712Domain
}

// NewEIP712Signer creates a new EIP-712 signer with given domain
func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

// DefaultDomain returns the local devnet domain
func DefaultDomain() EIP712Domain {
	return EIP712Domain{
		Name:              "TriggerSwap",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.Address{},
	}
}

// Domain returns the domain this signer is bound to.
func (e *EIP712Signer) Domain() EIP712Domain {
	return e.domain
}

func (e *EIP712Signer) typedDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              e.domain.Name,
		Version:           e.domain.Version,
		ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
		VerifyingContract: e.domain.VerifyingContract.Hex(),
	}
}

func orderMessage(order *OrderEIP712, path interface{}) (apitypes.TypedDataMessage, error) {
	if order.Nonce == nil || order.Amount == nil || order.TriggerPrice == nil ||
		order.Slippage == nil || order.Deadline == nil {
		return nil, fmt.Errorf("order has unset integer fields")
	}
	return apitypes.TypedDataMessage{
		"account":      order.Account.Hex(),
		"nonce":        order.Nonce.String(),
		"path":         path,
		"amount":       order.Amount.String(),
		"triggerPrice": order.TriggerPrice.String(),
		"slippage":     order.Slippage.String(),
		"orderType":    fmt.Sprintf("%d", order.OrderType),
		"orderSide":    fmt.Sprintf("%d", order.OrderSide),
		"deadline":     order.Deadline.String(),
	}, nil
}

// DomainSeparator returns hashStruct(EIP712Domain) for this signer's domain.
func (e *EIP712Signer) DomainSeparator() ([]byte, error) {
	typedData := apitypes.TypedData{Types: orderTypes, Domain: e.typedDomain()}
	separator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	return separator, nil
}

// HashOrder hashes an order according to EIP-712 spec
// Returns the digest that should be signed
func (e *EIP712Signer) HashOrder(order *OrderEIP712) ([]byte, error) {
	message, err := orderMessage(order, order.Path)
	if err != nil {
		return nil, err
	}

	typedData := apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain:      e.typedDomain(),
		Message:     message,
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	// Final digest: keccak256("\x19\x01" || domainSeparator || typedDataHash)
	rawData := make([]byte, 0, 2+len(domainSeparator)+len(typedDataHash))
	rawData = append(rawData, 0x19, 0x01)
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, typedDataHash...)

	return crypto.Keccak256(rawData), nil
}

// SignOrder signs an order and returns the signature
func (e *EIP712Signer) SignOrder(signer *Signer, order *OrderEIP712) ([]byte, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return nil, fmt.Errorf("failed to hash order: %w", err)
	}

	signature, err := signer.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign order: %w", err)
	}

	return signature, nil
}

// VerifyOrderSignature reports whether signature was produced by order.Account.
func (e *EIP712Signer) VerifyOrderSignature(order *OrderEIP712, signature []byte) (bool, error) {
	recovered, err := e.RecoverOrderSigner(order, signature)
	if err != nil {
		return false, err
	}
	return recovered == order.Account, nil
}

// RecoverOrderSigner recovers the address that signed an order
func (e *EIP712Signer) RecoverOrderSigner(order *OrderEIP712, signature []byte) (common.Address, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash order: %w", err)
	}

	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover address: %w", err)
	}
	return recovered, nil
}

// OrderToJSON converts an order to JSON for frontend/wallet signing
// MetaMask and other wallets use this format for eth_signTypedData_v4
func (e *EIP712Signer) OrderToJSON(order *OrderEIP712) (string, error) {
	message, err := orderMessage(order, hexutil.Encode(order.Path))
	if err != nil {
		return "", err
	}

	typedData := apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain:      e.typedDomain(),
		Message:     message,
	}

	jsonBytes, err := json.MarshalIndent(typedData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return string(jsonBytes), nil
}
