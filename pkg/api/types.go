package api

import (
	"github.com/uhyunpark/triggerswap/pkg/executor"
	"github.com/uhyunpark/triggerswap/pkg/order"
)

// API request/response types for REST endpoints and WebSocket messages

// ==============================
// REST Types
// ==============================

// ExecuteOrderRequest is the signed order exactly as produced by the signing tool
type ExecuteOrderRequest = order.SignedOrder

// ExecuteOrderResponse is returned once an execution has committed
type ExecuteOrderResponse struct {
	Status    string                    `json:"status"` // always "executed"
	Execution *executor.ExecutionRecord `json:"execution"`
}

// PriceResponse is the current price of a path's base asset in the quote asset
type PriceResponse struct {
	Path         string `json:"path"`
	Price        string `json:"price"`        // 18-decimal fixed point
	PriceDecimal string `json:"priceDecimal"` // human readable, e.g. "2013.75"
}

// NonceResponse tells whether an (account, nonce) pair can still execute
type NonceResponse struct {
	Account string `json:"account"`
	Nonce   string `json:"nonce"`
	Used    bool   `json:"used"`
}

// DomainResponse describes the EIP-712 domain orders must be signed under
type DomainResponse struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	ChainID           string `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
	Separator         string `json:"separator"` // 0x keccak256 domain separator
}

// ErrorResponse carries the stable error kind and a human message
type ErrorResponse struct {
	Error   string `json:"error"`             // error kind, e.g. "NonceAlreadyUsed"
	Message string `json:"message,omitempty"` // detailed message
}

// ==============================
// WebSocket Types
// ==============================

// WSSubscribeRequest is sent by clients to manage channel subscriptions
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // "executions" or "executions:{account}"
}

// ExecutionUpdate is pushed to subscribers of the execution channels
type ExecutionUpdate struct {
	Type      string                    `json:"type"` // "execution"
	Channel   string                    `json:"channel"`
	Execution *executor.ExecutionRecord `json:"execution"`
	Timestamp int64                     `json:"timestamp"` // Unix milliseconds
}
