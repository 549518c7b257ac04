package timing

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suenot/etf-monitor/internal/domain"
)

const (
	defaultAnalysisTTL   = time.Hour
	defaultMaxConcurrent = 4
	defaultWindowDays    = 7
)

// CandleProvider supplies historical hourly candles for an instrument.
type CandleProvider interface {
	GetHistoricalCandles(ctx context.Context, figi string, windowDays int) ([]domain.Candle, error)
}

// ErrNoVolatilityData is returned when no reference instrument yields candles.
var ErrNoVolatilityData = errors.New("no volatility data could be collected")

// Analyzer builds a portfolio-level volatility profile from a set of
// reference instruments and caches the analysis for a while, since hourly
// curves change slowly.
type Analyzer struct {
	candles       CandleProvider
	windowDays    int
	maxConcurrent int
	ttl           time.Duration
	logger        *zap.Logger

	mu         sync.Mutex
	cached     *Profile
	analyzedAt time.Time
}

// NewAnalyzer creates a volatility analyzer over the given candle provider.
func NewAnalyzer(candles CandleProvider, windowDays int, logger *zap.Logger) *Analyzer {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	return &Analyzer{
		candles:       candles,
		windowDays:    windowDays,
		maxConcurrent: defaultMaxConcurrent,
		ttl:           defaultAnalysisTTL,
		logger:        logger,
	}
}

// Profile returns the merged hourly volatility curve for the reference
// instruments. Candle fetches run concurrently in a bounded batch to respect
// broker rate limits; all results are collected before the merge so the curve
// never reflects a partial basket. A missing instrument is a data-quality
// warning, not a fatal error.
func (a *Analyzer) Profile(ctx context.Context, figis []string) (Profile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil && time.Since(a.analyzedAt) < a.ttl {
		return *a.cached, nil
	}

	profiles := make([]Profile, 0, len(figis))
	var profilesMu sync.Mutex

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxConcurrent)

	for _, figi := range figis {
		figi := figi
		g.Go(func() error {
			candles, err := a.candles.GetHistoricalCandles(groupCtx, figi, a.windowDays)
			if err != nil {
				a.logger.Warn("failed to fetch candles for volatility analysis",
					zap.String("figi", figi), zap.Error(err))
				return nil
			}
			if len(candles) == 0 {
				a.logger.Warn("no historical candles for instrument",
					zap.String("figi", figi))
				return nil
			}

			profile := BuildInstrumentProfile(candles)
			profilesMu.Lock()
			profiles = append(profiles, profile)
			profilesMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Profile{}, errors.Wrap(err, "volatility analysis")
	}
	if len(profiles) == 0 {
		return Profile{}, ErrNoVolatilityData
	}

	merged := MergeProfiles(profiles)
	a.cached = &merged
	a.analyzedAt = time.Now()

	a.logger.Info("volatility analysis completed",
		zap.Int("instruments", len(profiles)),
		zap.Int("window_days", a.windowDays))

	return merged, nil
}

// Invalidate drops the cached analysis so the next call rebuilds it.
func (a *Analyzer) Invalidate() {
	a.mu.Lock()
	a.cached = nil
	a.mu.Unlock()
}
