// Package main runs the liquidation agent: watchlist bootstrap, the
// tracking loop, and liquidation dispatch.
package main

import (
	"context"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"

	"github.com/meridian-research/aave-liquidator/internal/adapters/outbound/artifacts"
	"github.com/meridian-research/aave-liquidator/internal/adapters/outbound/chain"
	"github.com/meridian-research/aave-liquidator/internal/adapters/outbound/mempool"
	redisstore "github.com/meridian-research/aave-liquidator/internal/adapters/outbound/redis"
	"github.com/meridian-research/aave-liquidator/internal/adapters/outbound/subgraph"
	"github.com/meridian-research/aave-liquidator/internal/pkg/env"
	"github.com/meridian-research/aave-liquidator/internal/pkg/httpclient"
	"github.com/meridian-research/aave-liquidator/internal/services/catalog"
	"github.com/meridian-research/aave-liquidator/internal/services/liquidator"
	"github.com/meridian-research/aave-liquidator/internal/services/shared"
	"github.com/meridian-research/aave-liquidator/internal/services/tracker"
)

// Default Polygon deployment addresses; every one of them is overridable
// through the environment.
const (
	defaultLendingPool  = "0x8dFf5E27EA6b7AC08EbFdf9eB090F32ee9a30fcf"
	defaultDataProvider = "0x7551b5D2763519d4e37e8B81929D336De671d46d"
	defaultPriceOracle  = "0x0229F777B0fAb107F9591a41d5F02E4e98dB6f2d"
	defaultMulticall3   = "0xcA11bde05977b3631167028862bE2a173976CA11"
	defaultSubgraphURL  = "https://api.thegraph.com/subgraphs/name/aave/aave-v2-matic"
	defaultChainID      = 137
)

// Stablecoin aTokens on the default deployment, for the swap-fee tier.
var defaultStableATokens = []string{
	"0x1a13F4Ca1d028320A707D99520AbFefca3998b7F", // amUSDC
	"0x60D55F02A771d515e077c9C2403a1ef324885CeC", // amUSDT
	"0x27F8D03b3a2196956ED754baDc28D73be8830A6e", // amDAI
}

func main() {
	// A .env file is a convenience for local runs; absence is fine.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: env.ParseLogLevel(slog.LevelInfo),
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	rpcURL, err := env.MustGet("RPC_URL")
	if err != nil {
		return err
	}
	wsURL, err := env.MustGet("WS_URL")
	if err != nil {
		return err
	}
	privateKey, err := env.MustGet("PRIVATE_KEY")
	if err != nil {
		return err
	}
	contractAddr, err := env.MustGet("LIQUIDATOR_CONTRACT_ADDRESS")
	if err != nil {
		return err
	}

	chainID := big.NewInt(env.GetInt64("CHAIN_ID", defaultChainID))
	addresses := chain.Addresses{
		LendingPool:  common.HexToAddress(env.Get("LENDING_POOL_ADDRESS", defaultLendingPool)),
		DataProvider: common.HexToAddress(env.Get("DATA_PROVIDER_ADDRESS", defaultDataProvider)),
		PriceOracle:  common.HexToAddress(env.Get("PRICE_ORACLE_ADDRESS", defaultPriceOracle)),
		Multicall3:   common.HexToAddress(env.Get("MULTICALL3_ADDRESS", defaultMulticall3)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down...", "signal", sig)
		cancel()
	}()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return err
	}
	defer client.Close()

	reader, err := chain.NewReader(client, addresses, logger)
	if err != nil {
		return err
	}
	executor, err := chain.NewExecutor(client, privateKey, common.HexToAddress(contractAddr), chainID, logger)
	if err != nil {
		return err
	}

	stream, err := mempool.NewSubscriber(mempool.Config{
		WebSocketURL: wsURL,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := stream.Unsubscribe(); err != nil {
			logger.Warn("failed to close mempool stream", "error", err)
		}
	}()

	store, err := redisstore.NewWatchlist(redisstore.Config{
		Addr:     env.Get("REDIS_ADDR", "localhost:6379"),
		Password: env.Get("REDIS_PASSWORD", ""),
		DB:       env.GetInt("REDIS_DB", 0),
	}, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		return err
	}

	enumerator := subgraph.NewClient(
		env.Get("SUBGRAPH_URL", defaultSubgraphURL),
		httpclient.NewClient(httpclient.DefaultConfig(), logger),
		logger,
	)

	telemetry, err := shared.NewTelemetry()
	if err != nil {
		return err
	}

	writer := artifacts.NewWriter(env.Get("ARTIFACT_DIR", "."))
	cat := catalog.NewService(reader, logger)
	fees := liquidator.NewFeePolicy(
		parseAddressList(env.Get("STABLE_ATOKENS", ""), defaultStableATokens),
		parseAddressList(env.Get("EXOTIC_ATOKENS", ""), nil),
	)
	watchdog := liquidator.NewWatchdog(executor, stream, telemetry, logger)
	liq := liquidator.NewService(cat, reader, executor, watchdog, fees, writer, telemetry, logger)

	trackerConfig := tracker.ConfigDefaults()
	trackerConfig.TrackedSetSize = env.GetInt("TRACK_SET_SIZE", trackerConfig.TrackedSetSize)
	trackerConfig.Interval = time.Duration(env.GetInt64("TRACK_INTERVAL_MS", 0)) * time.Millisecond
	trackerConfig.Logger = logger
	trackerConfig.Telemetry = telemetry

	trk := tracker.NewService(trackerConfig, cat, reader, store, enumerator, func(ctx context.Context, borrower common.Address) {
		outcome := liq.Execute(ctx, borrower)
		// Historical exit-code contract, kept for the operator tooling:
		// 1 means a transaction was dispatched, 0 means none was (the send
		// failed or the attempt was aborted before it). A fresh process
		// resumes tracking on an up-to-date view.
		if outcome.Submitted {
			os.Exit(1)
		}
		os.Exit(0)
	})

	if err := trk.Bootstrap(ctx, writer); err != nil {
		return err
	}

	logger.Info("tracking loop starting", "trackedSetSize", trackerConfig.TrackedSetSize)
	return trk.Run(ctx)
}

// parseAddressList splits a comma-separated address list, falling back to
// the built-in defaults when the variable is empty.
func parseAddressList(raw string, defaults []string) []common.Address {
	items := defaults
	if raw != "" {
		items = strings.Split(raw, ",")
	}
	out := make([]common.Address, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if common.IsHexAddress(item) {
			out = append(out, common.HexToAddress(item))
		}
	}
	return out
}
