package route

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/triggerswap/pkg/order"
)

// Route is a validated path oriented for execution
type Route struct {
	TokenIn  common.Address
	TokenOut common.Address
	Hops     []Hop
}

// Validator checks paths against the protocol's bridge and quote assets
type Validator struct {
	Bridge common.Address
	Quote  common.Address
}

// Validate decodes path and orients it for side.
// Paths are written base first, quote last: a SELL swaps exactly in that order, a BUY
// reads the same path as exact-output so the roles of the endpoints swap.
func (v Validator) Validate(side order.Side, path []byte) (Route, error) {
	if !side.Valid() {
		return Route{}, fmt.Errorf("%w: order side %d", order.ErrMalformedOrder, side)
	}

	hops, err := DecodePath(path)
	if err != nil {
		return Route{}, err
	}

	if len(hops) == 2 && hops[0].TokenB != v.Bridge {
		return Route{}, fmt.Errorf("%w: middle asset %s, want %s",
			order.ErrUnsupportedBridgeAsset, hops[0].TokenB.Hex(), v.Bridge.Hex())
	}

	first, last := hops[0].TokenA, hops[len(hops)-1].TokenB
	r := Route{TokenIn: first, TokenOut: last, Hops: hops}
	if side == order.Buy {
		r.TokenIn, r.TokenOut = last, first
	}

	settle := r.TokenOut
	if side == order.Buy {
		settle = r.TokenIn
	}
	if settle != v.Quote {
		return Route{}, fmt.Errorf("%w: route settles in %s, want %s",
			order.ErrUnsupportedQuoteAsset, settle.Hex(), v.Quote.Hex())
	}

	return r, nil
}
