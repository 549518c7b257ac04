// Command fetchinvestors scrapes per-fund investor counts from the fund
// provider's public pages and records them, together with the current ETF
// catalog, in the snapshot store.
//
// Usage:
//
//	fetchinvestors --config config.yaml
//
// Requires the TINKOFF_TOKEN environment variable.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/suenot/etf-monitor/config"
	"github.com/suenot/etf-monitor/internal/clients"
	"github.com/suenot/etf-monitor/internal/services/scraper"
	"github.com/suenot/etf-monitor/internal/storage/etfsnapshots"
)

const pauseBetweenFunds = 2 * time.Second

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Get()
	if err != nil {
		logger.Fatal("failed to get configuration", zap.Error(err))
	}
	if cfg.Token == "" {
		logger.Fatal(config.EnvToken + " env is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := clients.NewTinkoffClient(ctx, cfg.Token, "", logger)
	if err != nil {
		logger.Fatal("failed to create broker client", zap.Error(err))
	}
	defer client.Stop()

	store, err := etfsnapshots.NewWALStore(cfg.SnapshotWALDir)
	if err != nil {
		logger.Fatal("failed to open snapshot store", zap.Error(err))
	}
	defer store.Close()

	etfs, err := client.ListEtfs(ctx)
	if err != nil {
		logger.Fatal("failed to load ETF catalog", zap.Error(err))
	}

	wanted := make(map[string]struct{}, len(cfg.Basket))
	for _, ticker := range cfg.Basket {
		wanted[ticker] = struct{}{}
	}

	investorsScraper := scraper.NewInvestorsScraper("", logger)
	fetched, failed := 0, 0
	for _, etf := range etfs {
		if _, ok := wanted[etf.Ticker]; !ok {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		if err := store.SaveEtf(etf); err != nil {
			logger.Error("failed to save catalog snapshot",
				zap.String("ticker", etf.Ticker), zap.Error(err))
		}

		snapshot, err := investorsScraper.FetchInvestors(ctx, etf.Ticker, etf.Figi)
		if err != nil {
			logger.Warn("failed to scrape investor count",
				zap.String("ticker", etf.Ticker), zap.Error(err))
			failed++
			continue
		}
		if err := store.SaveInvestors(snapshot); err != nil {
			logger.Error("failed to save investors snapshot",
				zap.String("ticker", etf.Ticker), zap.Error(err))
			failed++
			continue
		}

		logger.Info("investor count recorded",
			zap.String("ticker", etf.Ticker),
			zap.Int64("investors", snapshot.Investors))
		fetched++

		// be polite to the provider's site
		select {
		case <-ctx.Done():
		case <-time.After(pauseBetweenFunds):
		}
	}

	logger.Info("investor scrape finished",
		zap.Int("fetched", fetched), zap.Int("failed", failed))
}
