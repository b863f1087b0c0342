package route

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/triggerswap/pkg/order"
)

// Packed path layout: token(20) | fee(3) | token(20) [| fee(3) | token(20)]
const (
	AddrSize = common.AddressLength
	FeeSize  = 3
	HopSize  = AddrSize + FeeSize
	MaxHops  = 2
	MaxFee   = 1<<24 - 1
)

// Hop is one pool crossing in path order
type Hop struct {
	TokenA common.Address
	TokenB common.Address
	Fee    uint32 // pool fee tier in hundredths of a bip
}

// EncodePath packs tokens and fee tiers; len(fees) must be len(tokens)-1.
func EncodePath(tokens []common.Address, fees []uint32) ([]byte, error) {
	if len(tokens) < 2 || len(fees) != len(tokens)-1 {
		return nil, fmt.Errorf("%w: %d tokens with %d fees", order.ErrInvalidPath, len(tokens), len(fees))
	}
	out := make([]byte, 0, AddrSize+HopSize*len(fees))
	out = append(out, tokens[0].Bytes()...)
	for i, fee := range fees {
		if fee > MaxFee {
			return nil, fmt.Errorf("%w: fee %d exceeds uint24", order.ErrInvalidPath, fee)
		}
		out = append(out, byte(fee>>16), byte(fee>>8), byte(fee))
		out = append(out, tokens[i+1].Bytes()...)
	}
	return out, nil
}

// DecodePath splits a packed path into hops, rejecting anything longer than MaxHops.
func DecodePath(path []byte) ([]Hop, error) {
	if len(path) < AddrSize+HopSize || (len(path)-AddrSize)%HopSize != 0 {
		return nil, fmt.Errorf("%w: malformed length %d", order.ErrInvalidPath, len(path))
	}
	n := (len(path) - AddrSize) / HopSize
	if n > MaxHops {
		return nil, fmt.Errorf("%w: %d hops exceeds max %d", order.ErrInvalidPath, n, MaxHops)
	}

	hops := make([]Hop, n)
	for i := range hops {
		off := i * HopSize
		h := Hop{
			TokenA: common.BytesToAddress(path[off : off+AddrSize]),
			Fee:    uint32(path[off+AddrSize])<<16 | uint32(path[off+AddrSize+1])<<8 | uint32(path[off+AddrSize+2]),
			TokenB: common.BytesToAddress(path[off+HopSize : off+HopSize+AddrSize]),
		}
		if h.TokenA == h.TokenB {
			return nil, fmt.Errorf("%w: hop %d swaps %s for itself", order.ErrInvalidPath, i, h.TokenA.Hex())
		}
		hops[i] = h
	}
	return hops, nil
}

// Tokens lists every token along the hops in path order
func Tokens(hops []Hop) []common.Address {
	if len(hops) == 0 {
		return nil
	}
	out := []common.Address{hops[0].TokenA}
	for _, h := range hops {
		out = append(out, h.TokenB)
	}
	return out
}
