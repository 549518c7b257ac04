package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// the real page separates thousands with non-breaking spaces
const fundPage = "<!DOCTYPE html><html><body><div class=\"fund-stats\">" +
	"<span data-qa=\"price\">5,38 ₽</span>" +
	"<span data-qa=\"investors-count\">1 234 567</span>" +
	"</div></body></html>"

func TestFetchInvestors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/TRUR/", r.URL.Path)
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		_, _ = w.Write([]byte(fundPage))
	}))
	defer server.Close()

	scraper := NewInvestorsScraper(server.URL, zap.NewNop())
	snapshot, err := scraper.FetchInvestors(context.Background(), "TRUR", "F_TRUR")
	require.NoError(t, err)

	assert.Equal(t, int64(1234567), snapshot.Investors)
	assert.Equal(t, "TRUR", snapshot.Ticker)
	assert.Equal(t, "F_TRUR", snapshot.Figi)
	assert.False(t, snapshot.CapturedAt.IsZero())
}

func TestFetchInvestors_CounterMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>no counter here</p></body></html>`))
	}))
	defer server.Close()

	scraper := NewInvestorsScraper(server.URL, zap.NewNop())
	_, err := scraper.FetchInvestors(context.Background(), "TRUR", "F_TRUR")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFetchInvestors_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	scraper := NewInvestorsScraper(server.URL, zap.NewNop())
	_, err := scraper.FetchInvestors(context.Background(), "TRUR", "F_TRUR")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestParseInvestorsText(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1 234 567", 1234567},
		{"1,234,567", 1234567},
		{"1 234 567 инвесторов", 1234567},
		{"42", 42},
	}
	for _, tc := range cases {
		got, err := parseInvestorsText(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}

	_, err := parseInvestorsText("no numbers")
	assert.Error(t, err)
}
