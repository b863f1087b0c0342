package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/uhyunpark/triggerswap/params"
	"github.com/uhyunpark/triggerswap/pkg/amm"
	"github.com/uhyunpark/triggerswap/pkg/api"
	"github.com/uhyunpark/triggerswap/pkg/crypto"
	"github.com/uhyunpark/triggerswap/pkg/executor"
	"github.com/uhyunpark/triggerswap/pkg/ledger"
	"github.com/uhyunpark/triggerswap/pkg/metrics"
	"github.com/uhyunpark/triggerswap/pkg/oracle"
	"github.com/uhyunpark/triggerswap/pkg/route"
	"github.com/uhyunpark/triggerswap/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg, err := params.LoadFromEnv("") // "" means load from .env in current directory
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, cfg.Node.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile, "level", cfg.Node.LogLevel)

	if err := run(cfg, sugar); err != nil {
		sugar.Fatalw("node_failed", "error", err)
	}
}

func run(cfg params.Config, sugar *zap.SugaredLogger) (err error) {
	// ---- Ledger ----
	var store *ledger.Store
	if cfg.Node.DataDir == "" {
		store, err = ledger.OpenMemStore()
		sugar.Warnw("ledger_in_memory", "reason", "DATA_DIR not set, state is lost on exit")
	} else {
		store, err = ledger.OpenStore(cfg.Node.DataDir)
	}
	if err != nil {
		return err
	}
	l, err := ledger.Open(store, sugar.Named("ledger"))
	if err != nil {
		return multierr.Append(err, store.Close())
	}
	defer func() { err = multierr.Append(err, l.Close()) }()

	reg := amm.NewRegistry(l)
	if cfg.Node.GenesisFile != "" {
		g, err := params.LoadGenesis(cfg.Node.GenesisFile)
		if err != nil {
			return err
		}
		applied, err := applyGenesis(l, reg, g)
		if err != nil {
			return err
		}
		sugar.Infow("genesis", "file", cfg.Node.GenesisFile, "applied", applied,
			"tokens", len(g.Tokens), "pools", len(g.Pools))
	}

	// ---- Execution core ----
	domain := crypto.NewEIP712Signer(crypto.EIP712Domain{
		Name:              cfg.Domain.Name,
		Version:           cfg.Domain.Version,
		ChainID:           cfg.Domain.ChainID,
		VerifyingContract: cfg.Domain.VerifyingContract,
	})
	m := metrics.New()

	exec, err := executor.New(executor.Options{
		Ledger: l,
		Domain: domain,
		Routes: route.Validator{Bridge: cfg.Assets.Bridge, Quote: cfg.Assets.Quote},
		Oracle: &oracle.Adapter{
			Pools:         reg,
			Decimals:      l,
			Quoter:        oracle.TickMathQuoter{},
			Bridge:        cfg.Assets.Bridge,
			Quote:         cfg.Assets.Quote,
			ReferencePool: amm.PoolAddress(cfg.Assets.Bridge, cfg.Assets.Quote, cfg.Assets.ReferencePoolFee),
		},
		Venue:         amm.NewRouter(cfg.Node.Router),
		RouterAddress: cfg.Node.Router,
		Clock:         util.RealClock{},
		Metrics:       m,
		Logger:        sugar.Named("executor"),
	})
	if err != nil {
		return err
	}
	if _, ok := reg.PoolFor(cfg.Assets.Bridge, cfg.Assets.Quote, cfg.Assets.ReferencePoolFee); !ok {
		sugar.Warnw("reference_pool_missing",
			"bridge", cfg.Assets.Bridge.Hex(),
			"quote", cfg.Assets.Quote.Hex(),
			"fee", cfg.Assets.ReferencePoolFee)
	}

	// ---- API Server ----
	apiServer := api.NewServer(api.Options{
		Engine:      exec,
		Metrics:     m,
		Logger:      sugar.Named("api"),
		CORSOrigins: cfg.Node.CORSOrigins,
	})
	// Hook executor to API server: broadcast every committed execution
	exec.OnExecuted(apiServer.BroadcastExecution)

	sugar.Infow("node_starting",
		"executor", exec.Address().Hex(),
		"router", cfg.Node.Router.Hex(),
		"quote", cfg.Assets.Quote.Hex(),
		"bridge", cfg.Assets.Bridge.Hex(),
		"chain_id", cfg.Domain.ChainID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return apiServer.Run(ctx, cfg.Node.APIAddr)
	})
	return g.Wait()
}
