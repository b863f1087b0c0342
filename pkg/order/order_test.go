package order

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/triggerswap/pkg/crypto"
)

func TestTriggered_TruthTable(t *testing.T) {
	trigger := big.NewInt(1_000)
	below := big.NewInt(999)
	equal := big.NewInt(1_000)
	above := big.NewInt(1_001)

	tests := []struct {
		typ                 Type
		side                Side
		below, equal, above bool
	}{
		{Stop, Buy, false, true, true},
		{Stop, Sell, true, true, false},
		{Limit, Buy, true, true, false},
		{Limit, Sell, false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String()+"_"+tt.side.String(), func(t *testing.T) {
			if got := Triggered(tt.typ, tt.side, below, trigger); got != tt.below {
				t.Errorf("below: got %v, want %v", got, tt.below)
			}
			if got := Triggered(tt.typ, tt.side, equal, trigger); got != tt.equal {
				t.Errorf("equal: got %v, want %v", got, tt.equal)
			}
			if got := Triggered(tt.typ, tt.side, above, trigger); got != tt.above {
				t.Errorf("above: got %v, want %v", got, tt.above)
			}
		})
	}

	if Triggered(Type(9), Buy, equal, trigger) {
		t.Error("unknown type must never fire")
	}
}

func validOrder() *Order {
	return &Order{
		Account:      common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"),
		Nonce:        big.NewInt(1),
		Path:         []byte{0x01},
		Amount:       big.NewInt(100),
		TriggerPrice: new(big.Int).Set(PriceScale),
		Slippage:     big.NewInt(10_000),
		Type:         Limit,
		Side:         Sell,
		Deadline:     big.NewInt(1_900_000_000),
	}
}

func TestValidate(t *testing.T) {
	if err := validOrder().Validate(); err != nil {
		t.Fatalf("valid order rejected: %v", err)
	}

	tests := map[string]func(o *Order){
		"missing nonce":     func(o *Order) { o.Nonce = nil },
		"negative amount":   func(o *Order) { o.Amount = big.NewInt(-1) },
		"zero amount":       func(o *Order) { o.Amount = big.NewInt(0) },
		"zero trigger":      func(o *Order) { o.TriggerPrice = big.NewInt(0) },
		"slippage over 100": func(o *Order) { o.Slippage = big.NewInt(OneHundredPercent + 1) },
		"bad type":          func(o *Order) { o.Type = 2 },
		"bad side":          func(o *Order) { o.Side = 2 },
		"zero account":      func(o *Order) { o.Account = common.Address{} },
		"overflow deadline": func(o *Order) { o.Deadline = new(big.Int).Lsh(big.NewInt(1), 256) },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			o := validOrder()
			mutate(o)
			if err := o.Validate(); !errors.Is(err, ErrMalformedOrder) {
				t.Errorf("Validate() = %v, want ErrMalformedOrder", err)
			}
		})
	}

	full := validOrder()
	full.Slippage = big.NewInt(OneHundredPercent)
	if err := full.Validate(); err != nil {
		t.Errorf("100%% slippage should be accepted: %v", err)
	}
}

func TestSignedOrder_SignAndDecode(t *testing.T) {
	signer, _ := crypto.GenerateKey()
	e := crypto.NewEIP712Signer(crypto.DefaultDomain())

	o := validOrder()
	o.Account = signer.Address()

	signed, err := Sign(e, signer, o)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	data, err := signed.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	parsed, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	decoded, sig, err := parsed.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	valid, err := e.VerifyOrderSignature(decoded.EIP712(), sig)
	if err != nil {
		t.Fatalf("VerifyOrderSignature: %v", err)
	}
	if !valid {
		t.Error("decoded order no longer matches its signature")
	}
}

func TestSignedOrder_DecodeErrors(t *testing.T) {
	good := FromOrder(validOrder())

	tests := map[string]*SignedOrder{
		"missing payload":   {Signature: "0x00"},
		"bad signature hex": {Order: good, Signature: "zz"},
		"short signature":   {Order: good, Signature: "0x0102"},
		"bad account":       {Order: &OrderPayload{Account: "nope"}, Signature: "0x"},
	}
	for name, s := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := s.Decode(); !errors.Is(err, ErrMalformedOrder) {
				t.Errorf("Decode() = %v, want ErrMalformedOrder", err)
			}
		})
	}

	bad := *good
	bad.Amount = "12abc"
	if _, err := bad.ToOrder(); !errors.Is(err, ErrMalformedOrder) {
		t.Errorf("ToOrder() = %v, want ErrMalformedOrder", err)
	}

	if _, err := Deserialize([]byte("{")); !errors.Is(err, ErrMalformedOrder) {
		t.Errorf("Deserialize() = %v, want ErrMalformedOrder", err)
	}
}

type venueErr struct{}

func (venueErr) Error() string { return "venue" }
func (venueErr) Kind() string  { return "VenueRejected" }

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInvalidSignature, KindInvalidSignature},
		{fmt.Errorf("wrapped: %w", ErrNonceAlreadyUsed), KindNonceAlreadyUsed},
		{ErrTriggerConditionNotMet, KindTriggerConditionNotMet},
		{fmt.Errorf("swap: %w", venueErr{}), "VenueRejected"},
		{errors.New("disk on fire"), KindInternal},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestParseTypeAndSide(t *testing.T) {
	if typ, err := ParseType("stop"); err != nil || typ != Stop {
		t.Errorf("ParseType(stop) = %v, %v", typ, err)
	}
	if side, err := ParseSide("Sell"); err != nil || side != Sell {
		t.Errorf("ParseSide(Sell) = %v, %v", side, err)
	}
	if _, err := ParseType("twap"); !errors.Is(err, ErrMalformedOrder) {
		t.Errorf("ParseType(twap) = %v, want ErrMalformedOrder", err)
	}
	if _, err := ParseSide("hold"); !errors.Is(err, ErrMalformedOrder) {
		t.Errorf("ParseSide(hold) = %v, want ErrMalformedOrder", err)
	}
}
