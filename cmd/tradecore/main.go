// Command tradecore is a minimal demo binary wiring the façade end to
// end: it starts the ingestion scheduler, periodically prints a
// snapshot for each tracked symbol, and shuts down cleanly on
// SIGINT/SIGTERM. It has no HTTP server or persistence — this module
// is a library meant to be embedded (spec.md §1); this binary exists
// only to exercise it standalone.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantis-labs/tradecore/internal/config"
	"github.com/quantis-labs/tradecore/internal/facade"
	"github.com/quantis-labs/tradecore/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML runtime config file (optional)")
	production := flag.Bool("production", false, "use production (JSON) log encoding")
	flag.Parse()

	logger, sync := telemetry.NewLogger(*production, "tradecore")
	defer func() {
		if err := sync(); err != nil {
			logger.Warn("logger sync failed", "error", err)
		}
	}()

	runtimeCfg := config.DefaultRuntimeConfig()
	if *configPath != "" {
		loaded, err := config.Load[config.RuntimeConfig](*configPath)
		if err != nil {
			logger.Error("failed to load config, falling back to defaults", "error", err)
		} else {
			runtimeCfg = *loaded
		}
	}

	f := facade.New(logger)
	f.SetSymbols(runtimeCfg.Symbols)
	f.SetAPIKey(runtimeCfg.APIKey)
	if runtimeCfg.MinUpdateIntervalMs > 0 {
		f.SetMinUpdateInterval(runtimeCfg.MinUpdateInterval())
	}
	if runtimeCfg.UpdateIntervalMs > 0 {
		f.SetUpdateInterval(runtimeCfg.UpdateInterval())
	}

	if !f.Start() {
		logger.Error("failed to start ingestion scheduler")
		os.Exit(1)
	}
	logger.Info("tradecore started", "symbols", f.GetSymbols())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			f.Stop()
			return
		case <-ticker.C:
			printSnapshots(logger, f)
		}
	}
}

func printSnapshots(logger *slog.Logger, f *facade.Facade) {
	for _, symbol := range f.GetSymbols() {
		md := f.GetMarketData(symbol)
		if !md.Valid {
			continue
		}
		logger.Info("snapshot",
			"symbol", symbol,
			"bestBid", md.BestBid,
			"bestAsk", md.BestAsk,
			"lastPrice", md.LastPrice,
			"spread", md.Spread,
			"volume", md.Volume,
		)
	}
}
