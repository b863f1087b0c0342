package executor

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ExecutionRecord is emitted and persisted for every committed execution.
// Integers are base-10 strings, matching the order payload.
type ExecutionRecord struct {
	Account      common.Address `json:"account"`
	Nonce        string         `json:"nonce"`
	Path         hexutil.Bytes  `json:"path"`
	TokenIn      common.Address `json:"tokenIn"`
	TokenOut     common.Address `json:"tokenOut"`
	Amount       string         `json:"amount"`
	TriggerPrice string         `json:"triggerPrice"`
	Slippage     string         `json:"slippage"`
	OrderType    string         `json:"orderType"`
	OrderSide    string         `json:"orderSide"`

	Price     string `json:"price"`     // quote per base observed at execution, 1e18 scale
	AmountIn  string `json:"amountIn"`  // taken from the account, net of refund
	AmountOut string `json:"amountOut"` // delivered to the account
	Bound     string `json:"bound"`     // amountOutMinimum (SELL) or amountInMaximum (BUY)
	Refund    string `json:"refund"`    // BUY only
	Timestamp int64  `json:"timestamp"`
}

func (r *ExecutionRecord) marshal() ([]byte, error) {
	return json.Marshal(r)
}

func unmarshalRecord(data []byte) (*ExecutionRecord, error) {
	var r ExecutionRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
