package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/triggerswap/pkg/order"
	"github.com/uhyunpark/triggerswap/pkg/route"
)

var (
	uni  = common.HexToAddress("0x0000000000000000000000000000000000000001")
	link = common.HexToAddress("0x0000000000000000000000000000000000000002")
	usdc = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	weth = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

func TestSqrtRatioAtTick(t *testing.T) {
	tests := []struct {
		tick int32
		want string
	}{
		{0, new(big.Int).Lsh(big.NewInt(1), 96).String()},
		{MinTick, "4295128739"},
		{MaxTick, "1461446703485210103287273052203988822378723970342"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.tick), func(t *testing.T) {
			got, err := SqrtRatioAtTick(tt.tick)
			if err != nil {
				t.Fatalf("SqrtRatioAtTick: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("SqrtRatioAtTick(%d) = %s, want %s", tt.tick, got, tt.want)
			}
		})
	}

	for _, tick := range []int32{MinTick - 1, MaxTick + 1} {
		if _, err := SqrtRatioAtTick(tick); !errors.Is(err, ErrTickOutOfRange) {
			t.Errorf("SqrtRatioAtTick(%d) = %v, want ErrTickOutOfRange", tick, err)
		}
	}
}

func TestSqrtRatioAtTick_Monotonic(t *testing.T) {
	prev, _ := SqrtRatioAtTick(-1000)
	for tick := int32(-999); tick <= 1000; tick += 37 {
		cur, err := SqrtRatioAtTick(tick)
		if err != nil {
			t.Fatal(err)
		}
		if cur.Cmp(prev) <= 0 {
			t.Fatalf("sqrt ratio not increasing at tick %d", tick)
		}
		prev = cur
	}
}

func TestQuoteAtTick(t *testing.T) {
	oneE18 := order.PriceScale

	got, err := QuoteAtTick(0, oneE18, uni, usdc)
	if err != nil {
		t.Fatal(err)
	}
	if got.Cmp(oneE18) != 0 {
		t.Errorf("tick 0 quote = %s, want 1:1", got)
	}

	// uni sorts below usdc, so it is token0 and the price at tick 100 is 1.0001^100
	got, _ = QuoteAtTick(100, oneE18, uni, usdc)
	if want := "1010049662092876568"; got.String() != want {
		t.Errorf("token0 quote at tick 100 = %s, want %s", got, want)
	}
	got, _ = QuoteAtTick(100, oneE18, usdc, uni)
	if want := "990050328741209481"; got.String() != want {
		t.Errorf("token1 quote at tick 100 = %s, want %s", got, want)
	}

	// Above uint128 the X128 branch is taken
	if _, err := QuoteAtTick(MaxTick, big.NewInt(1), uni, usdc); err != nil {
		t.Errorf("quote at max tick: %v", err)
	}
	if _, err := QuoteAtTick(0, big.NewInt(-1), uni, usdc); err == nil {
		t.Error("expected error for negative base amount")
	}
}

type fakePools struct {
	pools map[string]common.Address
	ticks map[common.Address]int32
}

func pairKey(a, b common.Address, fee uint32) string {
	if a.Hex() > b.Hex() {
		a, b = b, a
	}
	return fmt.Sprintf("%s/%s/%d", a.Hex(), b.Hex(), fee)
}

func (f *fakePools) add(a, b common.Address, fee uint32, tick int32) common.Address {
	pool := common.BigToAddress(big.NewInt(int64(0xf000 + len(f.pools))))
	f.pools[pairKey(a, b, fee)] = pool
	f.ticks[pool] = tick
	return pool
}

func (f *fakePools) PoolFor(a, b common.Address, fee uint32) (common.Address, bool) {
	p, ok := f.pools[pairKey(a, b, fee)]
	return p, ok
}

func (f *fakePools) CurrentTick(pool common.Address) (int32, error) {
	tick, ok := f.ticks[pool]
	if !ok {
		return 0, ErrPoolNotFound
	}
	return tick, nil
}

type fakeDecimals map[common.Address]uint8

func (d fakeDecimals) Decimals(token common.Address) (uint8, error) {
	dec, ok := d[token]
	if !ok {
		return 0, fmt.Errorf("unknown token %s", token.Hex())
	}
	return dec, nil
}

func newAdapter(decimals fakeDecimals) (*Adapter, *fakePools) {
	pools := &fakePools{pools: map[string]common.Address{}, ticks: map[common.Address]int32{}}
	return &Adapter{
		Pools:    pools,
		Decimals: decimals,
		Quoter:   TickMathQuoter{},
		Bridge:   weth,
		Quote:    usdc,
	}, pools
}

func path(t *testing.T, tokens []common.Address, fees []uint32) []byte {
	t.Helper()
	p, err := route.EncodePath(tokens, fees)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPriceInQuoteAsset_DecimalNormalization(t *testing.T) {
	a, pools := newAdapter(fakeDecimals{uni: 18, usdc: 6, weth: 18})
	pools.add(uni, usdc, 3000, 0)

	// 1e18 base units buy 1e18 quote units at tick 0; with 6 quote decimals that is 1e12 whole usdc
	got, err := a.PriceInQuoteAsset(context.Background(), path(t, []common.Address{uni, usdc}, []uint32{3000}))
	if err != nil {
		t.Fatal(err)
	}
	want := new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
	if got.Cmp(want) != 0 {
		t.Errorf("price = %s, want %s", got, want)
	}
}

func TestPriceInQuoteAsset_BridgeIdentity(t *testing.T) {
	ctx := context.Background()
	a, pools := newAdapter(fakeDecimals{uni: 18, usdc: 18, weth: 18})

	for _, tick := range []int32{-5000, -1, 0, 1, 4242, 69081} {
		t.Run(fmt.Sprint(tick), func(t *testing.T) {
			pools.pools = map[string]common.Address{}
			pools.ticks = map[common.Address]int32{}
			pools.add(uni, usdc, 3000, tick)
			pools.add(uni, weth, 3000, tick)
			a.ReferencePool = pools.add(weth, usdc, 500, 0)

			direct, err := a.PriceInQuoteAsset(ctx, path(t, []common.Address{uni, usdc}, []uint32{3000}))
			if err != nil {
				t.Fatal(err)
			}
			bridged, err := a.PriceInQuoteAsset(ctx, path(t, []common.Address{uni, weth, usdc}, []uint32{3000, 500}))
			if err != nil {
				t.Fatal(err)
			}
			if direct.Cmp(bridged) != 0 {
				t.Errorf("bridged price %s != direct price %s", bridged, direct)
			}
		})
	}
}

func TestPriceInQuoteAsset_Composition(t *testing.T) {
	a, pools := newAdapter(fakeDecimals{link: 18, usdc: 6, weth: 18})
	pools.add(link, weth, 3000, 0)
	a.ReferencePool = pools.add(weth, usdc, 500, 0)

	// link = 1 weth, weth carries 18 vs 6 decimals at tick 0
	got, err := a.PriceInQuoteAsset(context.Background(), path(t, []common.Address{link, weth, usdc}, []uint32{3000, 500}))
	if err != nil {
		t.Fatal(err)
	}
	want := new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
	if got.Cmp(want) != 0 {
		t.Errorf("price = %s, want %s", got, want)
	}
}

func TestPriceInQuoteAsset_Errors(t *testing.T) {
	ctx := context.Background()
	a, pools := newAdapter(fakeDecimals{uni: 18, link: 18, usdc: 6, weth: 18})
	pools.add(uni, link, 3000, 0)

	if _, err := a.PriceInQuoteAsset(ctx, []byte{0x01}); !errors.Is(err, order.ErrInvalidPath) {
		t.Errorf("short path: got %v, want ErrInvalidPath", err)
	}
	if _, err := a.PriceInQuoteAsset(ctx, path(t, []common.Address{uni, usdc}, []uint32{500})); !errors.Is(err, ErrPoolNotFound) {
		t.Errorf("missing pool: got %v, want ErrPoolNotFound", err)
	}
	if _, err := a.PriceInQuoteAsset(ctx, path(t, []common.Address{uni, link}, []uint32{3000})); !errors.Is(err, order.ErrUnsupportedBridgeAsset) {
		t.Errorf("no bridge: got %v, want ErrUnsupportedBridgeAsset", err)
	}
}

func TestPriceInQuoteAsset_UnknownDecimals(t *testing.T) {
	a, pools := newAdapter(fakeDecimals{usdc: 6})
	pools.add(uni, usdc, 3000, 0)
	if _, err := a.PriceInQuoteAsset(context.Background(), path(t, []common.Address{uni, usdc}, []uint32{3000})); err == nil {
		t.Error("expected error for token without decimals")
	}
}
