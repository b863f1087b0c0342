package order

import "math/big"

// Triggered reports whether an order of the given type and side fires at price current.
// Boundaries are inclusive:
//
//	STOP  BUY  current >= trigger     LIMIT BUY  current <= trigger
//	STOP  SELL current <= trigger     LIMIT SELL current >= trigger
func Triggered(t Type, s Side, current, trigger *big.Int) bool {
	cmp := current.Cmp(trigger)
	switch {
	case t == Stop && s == Buy, t == Limit && s == Sell:
		return cmp >= 0
	case t == Stop && s == Sell, t == Limit && s == Buy:
		return cmp <= 0
	default:
		return false
	}
}
