package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/triggerswap/pkg/amm"
	"github.com/uhyunpark/triggerswap/pkg/crypto"
	"github.com/uhyunpark/triggerswap/pkg/ledger"
	"github.com/uhyunpark/triggerswap/pkg/metrics"
	"github.com/uhyunpark/triggerswap/pkg/order"
	"github.com/uhyunpark/triggerswap/pkg/route"
	"github.com/uhyunpark/triggerswap/pkg/util"
)

// Venue performs swaps inside the caller's unit of work
type Venue interface {
	ExactInput(ctx context.Context, tx *ledger.Tx, p amm.ExactInputParams) (*big.Int, error)
	ExactOutput(ctx context.Context, tx *ledger.Tx, p amm.ExactOutputParams) (*big.Int, error)
}

// PriceOracle prices a path's base asset in the quote asset
type PriceOracle interface {
	PriceInQuoteAsset(ctx context.Context, path []byte) (*big.Int, error)
}

type Options struct {
	Ledger        *ledger.Ledger
	Domain        *crypto.EIP712Signer
	Routes        route.Validator
	Oracle        PriceOracle
	Venue         Venue
	RouterAddress common.Address
	Clock         util.Clock
	Metrics       *metrics.Collector
	Logger        *zap.SugaredLogger
}

// Executor validates signed orders and executes them against the venue.
// Each execution is one ledger unit of work: it commits entirely or leaves no trace.
type Executor struct {
	ledger  *ledger.Ledger
	domain  *crypto.EIP712Signer
	routes  route.Validator
	oracle  PriceOracle
	venue   Venue
	router  common.Address
	self    common.Address
	clock   util.Clock
	metrics *metrics.Collector
	log     *zap.SugaredLogger

	hooksMu sync.RWMutex
	hooks   []func(*ExecutionRecord)
}

func New(opts Options) (*Executor, error) {
	switch {
	case opts.Ledger == nil:
		return nil, errors.New("executor: ledger is required")
	case opts.Domain == nil:
		return nil, errors.New("executor: EIP-712 domain is required")
	case opts.Oracle == nil:
		return nil, errors.New("executor: price oracle is required")
	case opts.Venue == nil:
		return nil, errors.New("executor: venue is required")
	}
	if opts.Clock == nil {
		opts.Clock = util.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Executor{
		ledger:  opts.Ledger,
		domain:  opts.Domain,
		routes:  opts.Routes,
		oracle:  opts.Oracle,
		venue:   opts.Venue,
		router:  opts.RouterAddress,
		self:    opts.Domain.Domain().VerifyingContract,
		clock:   opts.Clock,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}, nil
}

// Address is where pulled funds sit during a swap; it is the domain's verifying contract
func (e *Executor) Address() common.Address { return e.self }

// Domain returns the typed-data domain orders must be signed under
func (e *Executor) Domain() crypto.EIP712Domain { return e.domain.Domain() }

// OnExecuted registers fn to run after every committed execution
func (e *Executor) OnExecuted(fn func(*ExecutionRecord)) {
	e.hooksMu.Lock()
	e.hooks = append(e.hooks, fn)
	e.hooksMu.Unlock()
}

// PriceInQuoteAsset previews the current price without side effects
func (e *Executor) PriceInQuoteAsset(ctx context.Context, path []byte) (*big.Int, error) {
	return e.oracle.PriceInQuoteAsset(ctx, path)
}

// NonceUsed reports whether (account, nonce) can no longer execute
func (e *Executor) NonceUsed(account common.Address, nonce *big.Int) bool {
	return e.ledger.NonceUsed(account, nonce)
}

// Execution returns the committed record for (account, nonce)
func (e *Executor) Execution(account common.Address, nonce *big.Int) (*ExecutionRecord, bool, error) {
	data, ok := e.ledger.Execution(account, nonce)
	if !ok {
		return nil, false, nil
	}
	rec, err := unmarshalRecord(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode execution record: %w", err)
	}
	return rec, true, nil
}

// ExecuteOrder runs one signed order to completion or rolls everything back
func (e *Executor) ExecuteOrder(ctx context.Context, so *order.SignedOrder) (*ExecutionRecord, error) {
	start := time.Now()
	rec, err := e.execute(ctx, so)
	took := time.Since(start)

	if err != nil {
		kind := order.Kind(err)
		e.metrics.Rejected(kind, took)
		fields := []interface{}{"kind", kind, "error", err, "took", took}
		if so != nil && so.Order != nil {
			fields = append(fields, "account", so.Order.Account, "nonce", so.Order.Nonce)
		}
		if kind == order.KindTriggerConditionNotMet {
			e.log.Debugw("order_not_triggered", fields...)
		} else {
			e.log.Warnw("order_rejected", fields...)
		}
		return nil, err
	}

	e.metrics.Executed(rec.OrderType, rec.OrderSide, took)
	e.log.Infow("order_executed",
		"account", rec.Account.Hex(),
		"nonce", rec.Nonce,
		"type", rec.OrderType,
		"side", rec.OrderSide,
		"price", rec.Price,
		"amount_in", rec.AmountIn,
		"amount_out", rec.AmountOut,
		"took", took,
	)

	e.hooksMu.RLock()
	hooks := e.hooks
	e.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(rec)
	}
	return rec, nil
}

func (e *Executor) execute(ctx context.Context, so *order.SignedOrder) (*ExecutionRecord, error) {
	if so == nil {
		return nil, fmt.Errorf("%w: empty request", order.ErrMalformedOrder)
	}
	o, sig, err := so.Decode()
	if err != nil {
		return nil, err
	}

	// Validating: no state is touched before both checks pass
	r, err := e.routes.Validate(o.Side, o.Path)
	if err != nil {
		return nil, err
	}
	if err := authenticate(e.domain, o, sig); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx := e.ledger.Begin()
	defer tx.Rollback()

	if err := consumeNonce(tx, o.Account, o.Nonce); err != nil {
		return nil, err
	}
	now := e.clock.Now()
	if err := checkDeadline(now, o.Deadline); err != nil {
		return nil, err
	}

	// TriggerChecked
	price, err := e.oracle.PriceInQuoteAsset(ctx, o.Path)
	if err != nil {
		return nil, fmt.Errorf("price %s: %w", r.TokenIn.Hex(), err)
	}
	if !order.Triggered(o.Type, o.Side, price, o.TriggerPrice) {
		return nil, fmt.Errorf("%w: %s %s with price %s against trigger %s",
			order.ErrTriggerConditionNotMet, o.Type, o.Side, price, o.TriggerPrice)
	}

	inDec, err := tx.Decimals(r.TokenIn)
	if err != nil {
		return nil, err
	}
	outDec, err := tx.Decimals(r.TokenOut)
	if err != nil {
		return nil, err
	}

	rec := &ExecutionRecord{
		Account:      o.Account,
		Nonce:        o.Nonce.String(),
		Path:         o.Path,
		TokenIn:      r.TokenIn,
		TokenOut:     r.TokenOut,
		Amount:       o.Amount.String(),
		TriggerPrice: o.TriggerPrice.String(),
		Slippage:     o.Slippage.String(),
		OrderType:    o.Type.String(),
		OrderSide:    o.Side.String(),
		Price:        price.String(),
		Timestamp:    now.Unix(),
	}

	if o.Side == order.Sell {
		err = e.sell(ctx, tx, o, r, inDec, outDec, rec)
	} else {
		err = e.buy(ctx, tx, o, r, inDec, outDec, rec)
	}
	if err != nil {
		return nil, err
	}

	// Settled
	data, err := rec.marshal()
	if err != nil {
		return nil, fmt.Errorf("encode execution record: %w", err)
	}
	tx.Record(o.Account, o.Nonce, data)
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// sell swaps exactly o.Amount of tokenIn, delivering at least the slippage-adjusted output
func (e *Executor) sell(ctx context.Context, tx *ledger.Tx, o *order.Order, r route.Route, inDec, outDec uint8, rec *ExecutionRecord) error {
	_, minOut := SellBounds(o.Amount, o.TriggerPrice, o.Slippage, inDec, outDec)

	// FundsPulled
	if err := e.pull(tx, r.TokenIn, o.Account, o.Amount); err != nil {
		return err
	}
	if err := tx.Approve(r.TokenIn, e.self, e.router, o.Amount); err != nil {
		return err
	}

	// Swapped
	out, err := e.venue.ExactInput(ctx, tx, amm.ExactInputParams{
		Path:             o.Path,
		Payer:            e.self,
		Recipient:        o.Account,
		AmountIn:         o.Amount,
		AmountOutMinimum: minOut,
	})
	if err != nil {
		return err
	}
	if err := tx.Approve(r.TokenIn, e.self, e.router, new(big.Int)); err != nil {
		return err
	}

	rec.AmountIn = o.Amount.String()
	rec.AmountOut = out.String()
	rec.Bound = minOut.String()
	rec.Refund = "0"
	return nil
}

// buy receives exactly o.Amount of tokenOut, paying at most the slippage-adjusted cost and
// returning whatever the venue did not consume
func (e *Executor) buy(ctx context.Context, tx *ledger.Tx, o *order.Order, r route.Route, inDec, outDec uint8, rec *ExecutionRecord) error {
	_, maxIn := BuyBounds(o.Amount, o.TriggerPrice, o.Slippage, inDec, outDec)

	// FundsPulled
	if err := e.pull(tx, r.TokenIn, o.Account, maxIn); err != nil {
		return err
	}
	if err := tx.Approve(r.TokenIn, e.self, e.router, maxIn); err != nil {
		return err
	}

	// Swapped
	spent, err := e.venue.ExactOutput(ctx, tx, amm.ExactOutputParams{
		Path:            o.Path,
		Payer:           e.self,
		Recipient:       o.Account,
		AmountOut:       o.Amount,
		AmountInMaximum: maxIn,
	})
	if err != nil {
		return err
	}
	if spent.Cmp(maxIn) > 0 {
		return fmt.Errorf("venue spent %s over maximum %s", spent, maxIn)
	}

	refund := new(big.Int).Sub(maxIn, spent)
	if refund.Sign() > 0 {
		if err := tx.Transfer(r.TokenIn, e.self, o.Account, refund); err != nil {
			return fmt.Errorf("%w: refund %s: %w", order.ErrTransferFailed, refund, err)
		}
	}
	if err := tx.Approve(r.TokenIn, e.self, e.router, new(big.Int)); err != nil {
		return err
	}

	rec.AmountIn = spent.String()
	rec.AmountOut = o.Amount.String()
	rec.Bound = maxIn.String()
	rec.Refund = refund.String()
	return nil
}

// pull moves amount from account to the executor under the account's allowance
func (e *Executor) pull(tx *ledger.Tx, token, account common.Address, amount *big.Int) error {
	if err := tx.TransferFrom(token, e.self, account, e.self, amount); err != nil {
		return fmt.Errorf("%w: pull %s of %s from %s: %w",
			order.ErrTransferFailed, amount, token.Hex(), account.Hex(), err)
	}
	return nil
}
