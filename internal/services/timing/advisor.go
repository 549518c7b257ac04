package timing

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/suenot/etf-monitor/internal/domain"
)

// FigiResolver maps reference tickers to instrument identifiers.
type FigiResolver interface {
	GetInstrumentMeta(ctx context.Context, ticker string) (domain.InstrumentMeta, error)
}

// Advisor combines the analyzer and the gate into the single timing question
// the orchestrator asks: trade now or wait.
type Advisor struct {
	analyzer *Analyzer
	gate     *Gate
	resolver FigiResolver
	logger   *zap.Logger
}

// NewAdvisor creates a timing advisor.
func NewAdvisor(analyzer *Analyzer, gate *Gate, resolver FigiResolver, logger *zap.Logger) *Advisor {
	return &Advisor{analyzer: analyzer, gate: gate, resolver: resolver, logger: logger}
}

// Decide resolves the reference tickers, builds the volatility profile and
// applies the gate. Errors propagate to the caller, which fails closed: an
// unavailable analysis means wait, never trade.
func (a *Advisor) Decide(ctx context.Context, referenceTickers []string) (domain.TimingDecision, error) {
	figis := make([]string, 0, len(referenceTickers))
	for _, ticker := range referenceTickers {
		meta, err := a.resolver.GetInstrumentMeta(ctx, ticker)
		if err != nil {
			a.logger.Warn("reference ticker not resolvable, excluded from timing analysis",
				zap.String("ticker", ticker), zap.Error(err))
			continue
		}
		figis = append(figis, meta.Figi)
	}
	if len(figis) == 0 {
		return domain.TimingDecision{}, errors.New("no reference instruments resolvable for timing analysis")
	}

	profile, err := a.analyzer.Profile(ctx, figis)
	if err != nil {
		return domain.TimingDecision{}, errors.Wrap(err, "build volatility profile")
	}

	return a.gate.Decide(profile), nil
}
