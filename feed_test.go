// FILE: feed_test.go
// Package main – Feed parsing, window merge, and cached fallback.

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func candleBody(start int64, close float64) string {
	return fmt.Sprintf(`{"start":"%d","open":"%.1f","high":"%.1f","low":"%.1f","close":"%.1f","volume":"1"}`,
		start, close, close+1, close-1, close)
}

func newTestFeed(url string, ttl time.Duration) *CandleFeed {
	cfg := testConfig()
	cfg.FeedURL = url
	cfg.FeedTimeoutSec = 2
	return &CandleFeed{
		baseURL:     url,
		productID:   cfg.ProductID,
		granularity: cfg.Granularity,
		timeout:     2 * time.Second,
		cacheTTL:    ttl,
		maxKeep:     100,
		client:      &http.Client{},
	}
}

func TestFeedLatestParsesAndMerges(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Hour).Unix()
	var mu sync.Mutex
	closePx := 100.0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		px := closePx
		mu.Unlock()
		fmt.Fprintf(w, `{"candles":[%s,%s]}`, candleBody(base-3600, 99), candleBody(base, px))
	}))
	defer srv.Close()

	f := newTestFeed(srv.URL, 5*time.Minute)
	win, fromCache, err := f.Latest(context.Background())
	require.NoError(t, err)
	require.False(t, fromCache)
	require.Len(t, win, 2)
	require.InDelta(t, 100.0, win[1].Close, 1e-9)
	require.True(t, win[0].Time.Before(win[1].Time))

	// The forming bar is replaced in place, not duplicated.
	mu.Lock()
	closePx = 101.0
	mu.Unlock()
	win, _, err = f.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, win, 2)
	require.InDelta(t, 101.0, win[1].Close, 1e-9)
}

func TestFeedServesCacheThenFails(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Hour).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `[%s]`, candleBody(base, 100))
	}))

	f := newTestFeed(srv.URL, 5*time.Minute)
	_, fromCache, err := f.Latest(context.Background())
	require.NoError(t, err)
	require.False(t, fromCache)
	srv.Close()

	// Within TTL: cached window, flagged.
	win, fromCache, err := f.Latest(context.Background())
	require.NoError(t, err)
	require.True(t, fromCache)
	require.Len(t, win, 1)

	// Cache aged out: the tick must abort.
	f.cacheTTL = 0
	f.fetchedAt = time.Now().UTC().Add(-time.Minute)
	_, _, err = f.Latest(context.Background())
	require.ErrorIs(t, err, ErrFeedUnavailable)
}

func TestNormalizeCandlesForms(t *testing.T) {
	bare := []any{map[string]any{"start": "100", "open": "1", "high": "2", "low": "0.5", "close": float64(1.5), "volume": "3"}}
	rows := normalizeCandles(bare)
	require.Len(t, rows, 1)
	require.Equal(t, "1.5", rows[0].Close, "numeric json values are stringified")

	wrapped := map[string]any{"candles": bare}
	require.Len(t, normalizeCandles(wrapped), 1)

	require.Empty(t, normalizeCandles("garbage"))
}

func TestGranularitySeconds(t *testing.T) {
	require.Equal(t, 3600, granularitySeconds("ONE_HOUR"))
	require.Equal(t, 3600, granularitySeconds(" one_hour "))
	require.Equal(t, 86400, granularitySeconds("ONE_DAY"))
	require.Zero(t, granularitySeconds("THREE_WEEK"))
}
