package order

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// OneHundredPercent is the slippage denominator (parts per million)
const OneHundredPercent = 1_000_000

// PriceDecimals is the fixed-point scale of trigger and quoted prices
const PriceDecimals = 18

// PriceScale is 10^PriceDecimals
var PriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(PriceDecimals), nil)

// Type is the trigger style of an order
type Type uint8

const (
	Limit Type = 0
	Stop  Type = 1
)

func (t Type) String() string {
	switch t {
	case Limit:
		return "LIMIT"
	case Stop:
		return "STOP"
	default:
		return "unknown"
	}
}

func (t Type) Valid() bool { return t == Limit || t == Stop }

// ParseType accepts "LIMIT"/"STOP" in any case
func ParseType(s string) (Type, error) {
	switch strings.ToUpper(s) {
	case "LIMIT":
		return Limit, nil
	case "STOP":
		return Stop, nil
	default:
		return 0, fmt.Errorf("%w: unknown order type %q", ErrMalformedOrder, s)
	}
}

// Side is the direction of the trade relative to the base asset
type Side uint8

const (
	Buy  Side = 0
	Sell Side = 1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "unknown"
	}
}

func (s Side) Valid() bool { return s == Buy || s == Sell }

// ParseSide accepts "BUY"/"SELL" in any case
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(s) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	default:
		return 0, fmt.Errorf("%w: unknown order side %q", ErrMalformedOrder, s)
	}
}

// Order is a signed intent to swap once a price condition holds.
// It exists only as a signature; nothing but its replay marker is stored.
type Order struct {
	Account      common.Address
	Nonce        *big.Int
	Path         []byte
	Amount       *big.Int // denominated in the sold asset (SELL) or the bought asset (BUY)
	TriggerPrice *big.Int // quote per base, 18 decimals
	Slippage     *big.Int // parts per million of OneHundredPercent
	Type         Type
	Side         Side
	Deadline     *big.Int // unix seconds
}

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Validate checks structural invariants; it does not touch signatures or routes.
func (o *Order) Validate() error {
	fields := []struct {
		name string
		v    *big.Int
	}{
		{"nonce", o.Nonce},
		{"amount", o.Amount},
		{"triggerPrice", o.TriggerPrice},
		{"slippage", o.Slippage},
		{"deadline", o.Deadline},
	}
	for _, f := range fields {
		if f.v == nil {
			return fmt.Errorf("%w: missing %s", ErrMalformedOrder, f.name)
		}
		if f.v.Sign() < 0 || f.v.Cmp(maxUint256) > 0 {
			return fmt.Errorf("%w: %s out of uint256 range", ErrMalformedOrder, f.name)
		}
	}
	if o.Account == (common.Address{}) {
		return fmt.Errorf("%w: missing account", ErrMalformedOrder)
	}
	if o.Amount.Sign() == 0 {
		return fmt.Errorf("%w: amount must be positive", ErrMalformedOrder)
	}
	if o.TriggerPrice.Sign() == 0 {
		return fmt.Errorf("%w: trigger price must be positive", ErrMalformedOrder)
	}
	if o.Slippage.Cmp(big.NewInt(OneHundredPercent)) > 0 {
		return fmt.Errorf("%w: slippage %s exceeds 100%%", ErrMalformedOrder, o.Slippage)
	}
	if !o.Type.Valid() {
		return fmt.Errorf("%w: order type %d", ErrMalformedOrder, o.Type)
	}
	if !o.Side.Valid() {
		return fmt.Errorf("%w: order side %d", ErrMalformedOrder, o.Side)
	}
	return nil
}
