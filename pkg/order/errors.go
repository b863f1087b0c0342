package order

import "errors"

var (
	// ErrInvalidSignature is returned when the recovered signer is not the order account
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrNonceAlreadyUsed is returned when (account, nonce) already authorized an execution
	ErrNonceAlreadyUsed = errors.New("nonce already used")
	// ErrOrderExpired is returned when the current time is past the order deadline
	ErrOrderExpired = errors.New("order expired")
	// ErrInvalidPath is returned for undecodable paths or more than MaxHops hops
	ErrInvalidPath = errors.New("invalid path")
	// ErrUnsupportedBridgeAsset is returned when a two-hop route does not pass through the bridge asset
	ErrUnsupportedBridgeAsset = errors.New("unsupported bridge asset")
	// ErrUnsupportedQuoteAsset is returned when the route does not settle against the quote asset
	ErrUnsupportedQuoteAsset = errors.New("unsupported quote asset")
	// ErrTriggerConditionNotMet means the price condition is false right now; retry later
	ErrTriggerConditionNotMet = errors.New("trigger condition not met")
	// ErrTransferFailed is returned when moving the account's tokens fails (balance or allowance)
	ErrTransferFailed = errors.New("token transfer failed")
	// ErrMalformedOrder covers structurally invalid payloads (missing fields, out-of-range values)
	ErrMalformedOrder = errors.New("malformed order")
)

// Error kinds, stable strings for API responses and metrics labels
const (
	KindInvalidSignature       = "InvalidSignature"
	KindNonceAlreadyUsed       = "NonceAlreadyUsed"
	KindOrderExpired           = "OrderExpired"
	KindInvalidPath            = "InvalidPath"
	KindUnsupportedBridgeAsset = "UnsupportedBridgeAsset"
	KindUnsupportedQuoteAsset  = "UnsupportedQuoteAsset"
	KindTriggerConditionNotMet = "TriggerConditionNotMet"
	KindMalformedOrder         = "MalformedOrder"
	KindTransferFailed         = "TransferFailed"
	KindVenueRejected          = "VenueRejected"
	KindInternal               = "Internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidSignature, KindInvalidSignature},
	{ErrNonceAlreadyUsed, KindNonceAlreadyUsed},
	{ErrOrderExpired, KindOrderExpired},
	{ErrInvalidPath, KindInvalidPath},
	{ErrUnsupportedBridgeAsset, KindUnsupportedBridgeAsset},
	{ErrUnsupportedQuoteAsset, KindUnsupportedQuoteAsset},
	{ErrTriggerConditionNotMet, KindTriggerConditionNotMet},
	{ErrMalformedOrder, KindMalformedOrder},
	{ErrTransferFailed, KindTransferFailed},
}

// Kind classifies err into one of the engine's error kinds.
// Errors that carry their own kind (venue failures) report it through a Kind() method.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	var kinded interface{ Kind() string }
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	return KindInternal
}
