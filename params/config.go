package params

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Domain is the EIP-712 domain orders are signed under
type Domain struct {
	Name    string
	Version string
	ChainID *big.Int
	// VerifyingContract is also the executor's own ledger address
	VerifyingContract common.Address
}

// Assets fixes the protocol's settlement and routing assets
type Assets struct {
	Quote  common.Address // every order settles against this asset
	Bridge common.Address // middle asset of two-hop routes
	// ReferencePoolFee selects the bridge/quote pool used to convert bridge prices
	ReferencePoolFee uint32
}

type Node struct {
	DataDir     string // empty means an in-memory ledger
	APIAddr     string
	LogFile     string
	LogLevel    string
	GenesisFile string
	CORSOrigins []string
	Router      common.Address
}

type Config struct {
	Domain Domain
	Assets Assets
	Node   Node
}

func Default() Config {
	return Config{
		Domain: Domain{
			Name:              "TriggerSwap",
			Version:           "1",
			ChainID:           big.NewInt(1337),
			VerifyingContract: common.HexToAddress("0x000000000000000000000000000000000000e0e0"),
		},
		Assets: Assets{
			Quote:            common.HexToAddress("0x000000000000000000000000000000000000c0c0"),
			Bridge:           common.HexToAddress("0x000000000000000000000000000000000000e1e1"),
			ReferencePoolFee: 500,
		},
		Node: Node{
			APIAddr:     ":8080",
			LogFile:     "data/node.log",
			LogLevel:    "info",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
			Router:      common.HexToAddress("0x000000000000000000000000000000000000f0f0"),
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Domain.Name = getEnv("DOMAIN_NAME", cfg.Domain.Name)
	cfg.Domain.Version = getEnv("DOMAIN_VERSION", cfg.Domain.Version)
	if id := os.Getenv("CHAIN_ID"); id != "" {
		v, ok := new(big.Int).SetString(id, 10)
		if !ok || v.Sign() <= 0 {
			return Config{}, fmt.Errorf("CHAIN_ID: invalid chain id %q", id)
		}
		cfg.Domain.ChainID = v
	}

	addrs := []struct {
		key string
		dst *common.Address
	}{
		{"EXECUTOR_ADDRESS", &cfg.Domain.VerifyingContract},
		{"ROUTER_ADDRESS", &cfg.Node.Router},
		{"QUOTE_ASSET", &cfg.Assets.Quote},
		{"BRIDGE_ASSET", &cfg.Assets.Bridge},
	}
	for _, a := range addrs {
		v := os.Getenv(a.key)
		if v == "" {
			continue
		}
		if !common.IsHexAddress(v) {
			return Config{}, fmt.Errorf("%s: invalid address %q", a.key, v)
		}
		*a.dst = common.HexToAddress(v)
	}

	if fee := os.Getenv("REFERENCE_POOL_FEE"); fee != "" {
		v, err := strconv.ParseUint(fee, 10, 24)
		if err != nil {
			return Config{}, fmt.Errorf("REFERENCE_POOL_FEE: %w", err)
		}
		cfg.Assets.ReferencePoolFee = uint32(v)
	}

	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.LogLevel = getEnv("LOG_LEVEL", cfg.Node.LogLevel)
	cfg.Node.GenesisFile = getEnv("GENESIS_FILE", cfg.Node.GenesisFile)

	// Example: "http://localhost:3000,https://app.example.org"
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Node.CORSOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Node.CORSOrigins = append(cfg.Node.CORSOrigins, o)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the executor cannot run with
func (c Config) Validate() error {
	switch {
	case c.Assets.Quote == c.Assets.Bridge:
		return fmt.Errorf("quote and bridge asset must differ, both are %s", c.Assets.Quote.Hex())
	case c.Domain.VerifyingContract == (common.Address{}):
		return fmt.Errorf("executor address must be set")
	case c.Node.Router == c.Domain.VerifyingContract:
		return fmt.Errorf("router and executor must have distinct addresses")
	case c.Assets.ReferencePoolFee >= 1_000_000:
		return fmt.Errorf("reference pool fee %d must be below 1000000", c.Assets.ReferencePoolFee)
	}
	return nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
