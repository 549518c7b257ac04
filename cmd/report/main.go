// Command report prints a styled summary of recorded rebalance cycles and,
// when a broker token is available, the current trend state of each fund.
//
// Usage:
//
//	report --config config.yaml
package main

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/suenot/etf-monitor/config"
	"github.com/suenot/etf-monitor/internal/clients"
	"github.com/suenot/etf-monitor/internal/domain"
	"github.com/suenot/etf-monitor/internal/services/market"
	"github.com/suenot/etf-monitor/internal/services/timing"
	"github.com/suenot/etf-monitor/internal/storage/etfsnapshots"
	"github.com/suenot/etf-monitor/internal/storage/rebalances"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#4d4d4d", Dark: "#9c9c9c"})

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2).
			MarginBottom(1)
)

func main() {
	_ = godotenv.Load()

	logger := zap.NewNop()

	cfg, err := config.Get()
	if err != nil {
		fmt.Println(badStyle.Render("failed to get configuration: " + err.Error()))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println(titleStyle.Render("ETF MONITOR REPORT"))

	printHistory(cfg)
	printInvestors(cfg)

	if cfg.Token != "" {
		printTrends(ctx, cfg, logger)
	} else {
		fmt.Println(headerStyle.Render("Set " + config.EnvToken + " to include fund trend and volatility snapshots."))
	}
}

func printHistory(cfg config.Config) {
	store, err := rebalances.NewWALStore(cfg.RebalanceWALDir)
	if err != nil {
		fmt.Println(badStyle.Render("failed to open rebalance store: " + err.Error()))
		return
	}
	defer store.Close()

	records, err := store.All()
	if err != nil {
		fmt.Println(badStyle.Render("failed to read history: " + err.Error()))
		return
	}
	if len(records) == 0 {
		fmt.Println(boxStyle.Render("No rebalance cycles recorded yet."))
		return
	}

	var lines []string
	lines = append(lines, headerStyle.Render(fmt.Sprintf("%-20s %-10s %-12s %s", "TIME", "STATUS", "OPERATIONS", "REASON")))

	executed, balanced, aborted := 0, 0, 0
	for _, record := range records {
		result := record.Result
		switch result.Status {
		case domain.StatusExecuted:
			executed++
		case domain.StatusBalanced:
			balanced++
		case domain.StatusAborted:
			aborted++
		}

		status := result.Status.String()
		switch result.Status {
		case domain.StatusBalanced:
			status = okStyle.Render(status)
		case domain.StatusExecuted:
			if result.SuccessCount == result.TotalCount {
				status = okStyle.Render(status)
			} else {
				status = warnStyle.Render(status)
			}
		default:
			status = badStyle.Render(status)
		}

		lines = append(lines, fmt.Sprintf("%-20s %-21s %-12s %s",
			result.Timestamp.Format("2006-01-02 15:04:05"),
			status,
			fmt.Sprintf("%d/%d", result.SuccessCount, result.TotalCount),
			result.Reason))
	}

	succeeded := 0
	for _, record := range records {
		if record.Result.Succeeded() {
			succeeded++
		}
	}
	successRate := float64(succeeded) / float64(len(records)) * 100
	lastRemainder := records[len(records)-1].Result.UninvestedRemainder

	lines = append(lines, "")
	lines = append(lines, headerStyle.Render(fmt.Sprintf(
		"cycles: %d   executed: %d   balanced: %d   aborted: %d   success rate: %.1f%%   last remainder: %s",
		len(records), executed, balanced, aborted, successRate, lastRemainder.StringFixed(2))))

	fmt.Println(boxStyle.Render(strings.Join(lines, "\n")))
}

func printInvestors(cfg config.Config) {
	store, err := etfsnapshots.NewWALStore(cfg.SnapshotWALDir)
	if err != nil {
		return
	}
	defer store.Close()

	latest, err := store.LatestInvestors()
	if err != nil || len(latest) == 0 {
		return
	}

	snapshots := make([]domain.InvestorsSnapshot, 0, len(latest))
	for _, snapshot := range latest {
		snapshots = append(snapshots, snapshot)
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Investors > snapshots[j].Investors })
	if len(snapshots) > 10 {
		snapshots = snapshots[:10]
	}

	var lines []string
	lines = append(lines, headerStyle.Render(fmt.Sprintf("%-8s %-12s %s", "FUND", "INVESTORS", "CAPTURED")))
	for _, snapshot := range snapshots {
		lines = append(lines, fmt.Sprintf("%-8s %-12d %s",
			snapshot.Ticker, snapshot.Investors, snapshot.CapturedAt.Format("2006-01-02")))
	}

	fmt.Println(boxStyle.Render(strings.Join(lines, "\n")))
}

func printVolatility(ctx context.Context, cfg config.Config, client *clients.TinkoffClient, logger *zap.Logger) {
	analyzer := timing.NewAnalyzer(client, cfg.MovingAverageDays, logger)
	advisor := timing.NewAdvisor(analyzer, timing.NewGate(cfg.AllowedHours, cfg.VolatilityThreshold), client, logger)

	decision, err := advisor.Decide(ctx, cfg.Basket)
	if err != nil {
		fmt.Println(warnStyle.Render("volatility analysis unavailable: " + err.Error()))
		return
	}

	figis := make([]string, 0, len(cfg.Basket))
	for _, ticker := range cfg.Basket {
		if meta, err := client.GetInstrumentMeta(ctx, ticker); err == nil {
			figis = append(figis, meta.Figi)
		}
	}
	profile, err := analyzer.Profile(ctx, figis)
	if err != nil {
		fmt.Println(warnStyle.Render("volatility profile unavailable: " + err.Error()))
		return
	}
	stats := profile.Stats()

	var lines []string
	lines = append(lines, headerStyle.Render("HOURLY VOLATILITY (high-low)/open"))
	lines = append(lines, fmt.Sprintf("min: %s   max: %s   avg: %s   sampled hours: %d",
		stats.Min.StringFixed(4), stats.Max.StringFixed(4), stats.Avg.StringFixed(4), stats.SampledHours))
	if decision.QuietestHour >= 0 {
		lines = append(lines, fmt.Sprintf("quietest hour: %02d:00 UTC (volatility %s)",
			decision.QuietestHour, decision.MinVolatility.StringFixed(4)))
	}
	lines = append(lines, fmt.Sprintf("timing: %s (%s)", decision.Action, decision.Reason))

	fmt.Println(boxStyle.Render(strings.Join(lines, "\n")))
}

func printTrends(ctx context.Context, cfg config.Config, logger *zap.Logger) {
	client, err := clients.NewTinkoffClient(ctx, cfg.Token, "", logger)
	if err != nil {
		fmt.Println(badStyle.Render("failed to create broker client: " + err.Error()))
		return
	}
	defer client.Stop()

	printVolatility(ctx, cfg, client, logger)

	var lines []string
	lines = append(lines, headerStyle.Render(fmt.Sprintf("%-8s %-12s %-12s %-12s %s", "FUND", "CLOSE", "EMA", "ATR", "TREND")))

	for _, ticker := range cfg.Basket {
		meta, err := client.GetInstrumentMeta(ctx, ticker)
		if err != nil {
			lines = append(lines, fmt.Sprintf("%-8s %s", ticker, warnStyle.Render("not in catalog")))
			continue
		}
		candles, err := client.GetHistoricalCandles(ctx, meta.Figi, cfg.MovingAverageDays)
		if err != nil {
			lines = append(lines, fmt.Sprintf("%-8s %s", ticker, warnStyle.Render("no candles")))
			continue
		}
		snapshot, err := market.BuildTrendSnapshot(ticker, candles)
		if err != nil {
			lines = append(lines, fmt.Sprintf("%-8s %s", ticker, warnStyle.Render(err.Error())))
			continue
		}

		trendTag := badStyle.Render("below")
		if snapshot.AboveTrend {
			trendTag = okStyle.Render("above")
		}
		lines = append(lines, fmt.Sprintf("%-8s %-12s %-12s %-12s %s",
			ticker,
			snapshot.LastClose.StringFixed(4),
			snapshot.Ema.StringFixed(4),
			snapshot.Atr.StringFixed(4),
			trendTag))
	}

	fmt.Println(boxStyle.Render(strings.Join(lines, "\n")))
}
