package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/uhyunpark/triggerswap/pkg/crypto"
	"github.com/uhyunpark/triggerswap/pkg/order"
	"github.com/uhyunpark/triggerswap/pkg/route"
)

func main() {
	app := &cli.App{
		Name:  "sign-order",
		Usage: "sign a conditional swap order and print the payload accepted by POST /api/v1/orders/execute",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Usage: "hex private key; a fresh key is generated when empty", EnvVars: []string{"SIGNER_KEY"}},
			&cli.StringFlag{Name: "tokens", Usage: "comma-separated route, base asset first and quote asset last", Required: true},
			&cli.StringFlag{Name: "fees", Usage: "comma-separated pool fee tiers, one per hop", Value: "3000"},
			&cli.StringFlag{Name: "amount", Usage: "amount in native units of the sold (SELL) or bought (BUY) asset", Required: true},
			&cli.StringFlag{Name: "trigger", Usage: "trigger price in quote per base, e.g. 2013.75", Required: true},
			&cli.Uint64Flag{Name: "slippage", Usage: "tolerance in parts per million (10000 = 1%)", Value: 5000},
			&cli.StringFlag{Name: "type", Usage: "LIMIT or STOP", Value: "LIMIT"},
			&cli.StringFlag{Name: "side", Usage: "BUY or SELL", Value: "SELL"},
			&cli.StringFlag{Name: "nonce", Usage: "order nonce; random when empty"},
			&cli.DurationFlag{Name: "ttl", Usage: "time until the order expires", Value: 24 * time.Hour},
			&cli.StringFlag{Name: "domain-name", Value: crypto.DefaultDomain().Name},
			&cli.StringFlag{Name: "domain-version", Value: crypto.DefaultDomain().Version},
			&cli.Int64Flag{Name: "chain-id", Value: crypto.DefaultDomain().ChainID.Int64()},
			&cli.StringFlag{Name: "executor", Usage: "verifying contract (executor) address", Value: "0x000000000000000000000000000000000000e0e0"},
			&cli.BoolFlag{Name: "typed-data", Usage: "also print the eth_signTypedData_v4 document"},
		},
		Action: signOrder,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func signOrder(c *cli.Context) error {
	signer, err := loadSigner(c.String("key"))
	if err != nil {
		return err
	}

	path, err := buildPath(c.String("tokens"), c.String("fees"))
	if err != nil {
		return err
	}
	amount, ok := new(big.Int).SetString(c.String("amount"), 10)
	if !ok {
		return fmt.Errorf("invalid amount %q", c.String("amount"))
	}
	trigger, err := parsePrice(c.String("trigger"))
	if err != nil {
		return err
	}
	typ, err := order.ParseType(c.String("type"))
	if err != nil {
		return err
	}
	side, err := order.ParseSide(c.String("side"))
	if err != nil {
		return err
	}
	nonce, err := parseNonce(c.String("nonce"))
	if err != nil {
		return err
	}
	if !common.IsHexAddress(c.String("executor")) {
		return fmt.Errorf("invalid executor address %q", c.String("executor"))
	}

	o := &order.Order{
		Account:      signer.Address(),
		Nonce:        nonce,
		Path:         path,
		Amount:       amount,
		TriggerPrice: trigger,
		Slippage:     new(big.Int).SetUint64(c.Uint64("slippage")),
		Type:         typ,
		Side:         side,
		Deadline:     big.NewInt(time.Now().Add(c.Duration("ttl")).Unix()),
	}
	if err := o.Validate(); err != nil {
		return err
	}

	domain := crypto.NewEIP712Signer(crypto.EIP712Domain{
		Name:              c.String("domain-name"),
		Version:           c.String("domain-version"),
		ChainID:           big.NewInt(c.Int64("chain-id")),
		VerifyingContract: common.HexToAddress(c.String("executor")),
	})
	so, err := order.Sign(domain, signer, o)
	if err != nil {
		return err
	}

	// Verify before printing so a bad payload never leaves this tool
	_, sig, err := so.Decode()
	if err != nil {
		return err
	}
	recovered, err := domain.RecoverOrderSigner(o.EIP712(), sig)
	if err != nil {
		return err
	}
	if recovered != o.Account {
		return fmt.Errorf("signature recovers %s, expected %s", recovered.Hex(), o.Account.Hex())
	}

	fmt.Fprintf(os.Stderr, "Signer: %s\n", signer.Address().Hex())
	if c.String("key") == "" {
		fmt.Fprintf(os.Stderr, "Private Key: %s (KEEP SECRET!)\n", signer.PrivateKeyHex())
		fmt.Fprintf(os.Stderr, "The account must approve the executor %s before submitting.\n", c.String("executor"))
	}

	if c.Bool("typed-data") {
		doc, err := domain.OrderToJSON(o.EIP712())
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Typed data:")
		fmt.Fprintln(os.Stderr, doc)
	}

	out, err := json.MarshalIndent(so, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func loadSigner(key string) (*crypto.Signer, error) {
	if key == "" {
		return crypto.GenerateKey()
	}
	return crypto.FromPrivateKeyHex(key)
}

func buildPath(tokenList, feeList string) ([]byte, error) {
	var tokens []common.Address
	for _, t := range strings.Split(tokenList, ",") {
		t = strings.TrimSpace(t)
		if !common.IsHexAddress(t) {
			return nil, fmt.Errorf("invalid token address %q", t)
		}
		tokens = append(tokens, common.HexToAddress(t))
	}
	var fees []uint32
	for _, f := range strings.Split(feeList, ",") {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 24)
		if err != nil {
			return nil, fmt.Errorf("invalid fee %q: %w", f, err)
		}
		fees = append(fees, uint32(v))
	}
	return route.EncodePath(tokens, fees)
}

// parsePrice converts a human decimal into 18-decimal fixed point, truncating extra digits
func parsePrice(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid trigger price %q: %w", s, err)
	}
	if !d.IsPositive() {
		return nil, fmt.Errorf("trigger price must be positive, got %s", s)
	}
	return d.Shift(order.PriceDecimals).BigInt(), nil
}

func parseNonce(s string) (*big.Int, error) {
	if s == "" {
		return crypto.GenerateNonce()
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid nonce %q", s)
	}
	return n, nil
}
