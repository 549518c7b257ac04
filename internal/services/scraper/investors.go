// Package scraper collects investor counts from the fund provider's public
// pages. The broker API does not expose this number.
package scraper

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/suenot/etf-monitor/internal/domain"
)

const (
	defaultBaseURL = "https://www.tbank.ru/invest/etfs"
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	investorsSelector = `span[data-qa="investors-count"]`

	requestTimeout = 30 * time.Second
)

// InvestorsScraper fetches and parses the per-fund investor counter.
type InvestorsScraper struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

// NewInvestorsScraper creates a scraper. The base URL may be empty, in which
// case the provider's production site is used.
func NewInvestorsScraper(baseURL string, logger *zap.Logger) *InvestorsScraper {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &InvestorsScraper{
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// FetchInvestors loads the fund page and extracts the investor count.
func (s *InvestorsScraper) FetchInvestors(ctx context.Context, ticker, figi string) (domain.InvestorsSnapshot, error) {
	url := s.baseURL + "/" + ticker + "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.InvestorsSnapshot{}, errors.Wrap(err, "build request")
	}
	// the provider serves a captcha page to clients without a browser UA
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.InvestorsSnapshot{}, errors.Wrapf(err, "fetch fund page for %s", ticker)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.InvestorsSnapshot{}, errors.Errorf("fund page for %s returned status %d", ticker, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return domain.InvestorsSnapshot{}, errors.Wrap(err, "parse fund page")
	}

	text := strings.TrimSpace(doc.Find(investorsSelector).First().Text())
	if text == "" {
		return domain.InvestorsSnapshot{}, errors.Errorf("investor counter not found on page for %s", ticker)
	}

	count, err := parseInvestorsText(text)
	if err != nil {
		return domain.InvestorsSnapshot{}, errors.Wrapf(err, "parse investor counter for %s", ticker)
	}

	s.logger.Debug("investor count scraped",
		zap.String("ticker", ticker), zap.Int64("investors", count))

	return domain.InvestorsSnapshot{
		Figi:       figi,
		Ticker:     ticker,
		Investors:  count,
		CapturedAt: time.Now().UTC(),
	}, nil
}

// parseInvestorsText turns a localized counter like "1 234 567" or
// "1,234,567 investors" into a number.
func parseInvestorsText(text string) (int64, error) {
	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, errors.Errorf("no digits in counter text %q", text)
	}

	count, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse counter digits")
	}
	return count, nil
}
