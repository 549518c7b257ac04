// Command etf-monitor runs the ETF portfolio rebalancing daemon. It keeps a
// basket of exchange-traded funds weighted by market capitalization, trades
// only during historically calm hours and serves a live dashboard.
//
// Usage:
//
//	etf-monitor --config config.yaml
//	etf-monitor setup   (interactive configuration wizard)
//
// Required environment variables:
//
//	TINKOFF_TOKEN  broker API token
//	ACCOUNT_ID     account id, or ISS / BROKER to pick by account type
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suenot/etf-monitor/config"
	"github.com/suenot/etf-monitor/internal/clients"
	"github.com/suenot/etf-monitor/internal/services/balancer"
	"github.com/suenot/etf-monitor/internal/services/timing"
	"github.com/suenot/etf-monitor/internal/services/trader"
	"github.com/suenot/etf-monitor/internal/setup"
	"github.com/suenot/etf-monitor/internal/storage/rebalances"
	"github.com/suenot/etf-monitor/internal/web"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Get()
	if err != nil {
		logger.Fatal("failed to get configuration", zap.Error(err))
	}
	if cfg.Token == "" {
		logger.Fatal(config.EnvToken + " env is not set")
	}
	if cfg.AccountSelector == "" {
		logger.Fatal(config.EnvAccountID + " env is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := clients.NewTinkoffClient(ctx, cfg.Token, "", logger)
	if err != nil {
		logger.Fatal("failed to create broker client", zap.Error(err))
	}
	defer client.Stop()

	if err := client.ResolveAccount(ctx, cfg.AccountSelector); err != nil {
		logger.Fatal("failed to resolve trading account", zap.Error(err))
	}

	store, err := rebalances.NewWALStore(cfg.RebalanceWALDir)
	if err != nil {
		logger.Fatal("failed to open rebalance store", zap.Error(err))
	}
	defer store.Close()

	analyzer := timing.NewAnalyzer(client, cfg.MovingAverageDays, logger)
	gate := timing.NewGate(cfg.AllowedHours, cfg.VolatilityThreshold)
	advisor := timing.NewAdvisor(analyzer, gate, client, logger)

	executor := trader.NewTinkoffTrader(client, cfg.DryRun, logger)
	if cfg.DryRun {
		logger.Info("dry-run mode: orders will be logged, not sent")
	}

	bal := balancer.New(client, client, client, executor, advisor, store, balancer.Config{
		Basket:              cfg.Basket,
		CashReservePercent:  cfg.CashReservePercent,
		MaxDeviationPercent: cfg.MaxDeviationPercent,
		MinOrderValue:       cfg.MinOrderValue,
		SleepBetweenOrders:  cfg.SleepBetweenOrders,
		DryRun:              cfg.DryRun,
	}, logger)

	scheduler := cron.New()
	_, err = scheduler.AddFunc("@every "+cfg.RebalanceInterval.String(), func() {
		result := bal.Rebalance(ctx)
		logger.Info("scheduled rebalance finished",
			zap.String("status", result.Status.String()),
			zap.String("reason", result.Reason))
	})
	if err != nil {
		logger.Fatal("failed to schedule rebalance job", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		server := web.NewServer(cfg.WebAddr, store, balancerState{bal}, logger)
		return server.Start(gctx)
	})

	g.Go(func() error {
		// first cycle runs right away, the scheduler takes over afterwards
		result := bal.Rebalance(gctx)
		logger.Info("initial rebalance finished",
			zap.String("status", result.Status.String()),
			zap.String("reason", result.Reason))

		scheduler.Start()
		<-gctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})

	logger.Info("etf-monitor started",
		zap.Int("basket_size", len(cfg.Basket)),
		zap.Duration("rebalance_interval", cfg.RebalanceInterval),
		zap.String("web_addr", cfg.WebAddr))

	if err := g.Wait(); err != nil {
		logger.Error("daemon stopped with error", zap.Error(err))
	}
}

type balancerState struct {
	bal *balancer.Balancer
}

func (s balancerState) State() string {
	return s.bal.State().String()
}
