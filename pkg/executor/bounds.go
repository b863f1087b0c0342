package executor

import (
	"math/big"

	"github.com/uhyunpark/triggerswap/pkg/oracle"
	"github.com/uhyunpark/triggerswap/pkg/order"
)

var hundredPercent = big.NewInt(order.OneHundredPercent)

// SellBounds returns the output expected at the trigger price and the minimum the swap must
// deliver. Divisions happen left to right and round down.
//
//	amountOut        = amount * triggerPrice / 10^inDec * 10^outDec / 1e18
//	amountOutMinimum = amountOut * (1e6 - slippage) / 1e6
func SellBounds(amount, triggerPrice, slippage *big.Int, inDec, outDec uint8) (amountOut, amountOutMinimum *big.Int) {
	amountOut = new(big.Int).Mul(amount, triggerPrice)
	amountOut.Quo(amountOut, oracle.Pow10(inDec))
	amountOut.Mul(amountOut, oracle.Pow10(outDec))
	amountOut.Quo(amountOut, order.PriceScale)

	tolerance := new(big.Int).Sub(hundredPercent, slippage)
	amountOutMinimum = new(big.Int).Mul(amountOut, tolerance)
	amountOutMinimum.Quo(amountOutMinimum, hundredPercent)
	return amountOut, amountOutMinimum
}

// BuyBounds returns the cost of amount tokenOut at the trigger price and the most the swap
// may take.
//
//	amountIn        = amount * triggerPrice / 10^outDec * 10^inDec / 1e18
//	amountInMaximum = amountIn * (1e6 + slippage) / 1e6
func BuyBounds(amount, triggerPrice, slippage *big.Int, inDec, outDec uint8) (amountIn, amountInMaximum *big.Int) {
	amountIn = new(big.Int).Mul(amount, triggerPrice)
	amountIn.Quo(amountIn, oracle.Pow10(outDec))
	amountIn.Mul(amountIn, oracle.Pow10(inDec))
	amountIn.Quo(amountIn, order.PriceScale)

	tolerance := new(big.Int).Add(hundredPercent, slippage)
	amountInMaximum = new(big.Int).Mul(amountIn, tolerance)
	amountInMaximum.Quo(amountInMaximum, hundredPercent)
	return amountIn, amountInMaximum
}
