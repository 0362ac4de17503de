// FILE: feed.go
// Package main – Market data feed with cached-window fallback.
//
// The feed pulls OHLCV candles from a bridge HTTP endpoint (/candles) and
// keeps the merged, time-ascending window in memory. Every fetch is bounded
// by a timeout; when the bridge is unreachable the feed serves the cached
// window as long as it is younger than the configured TTL, otherwise the
// tick is aborted with ErrFeedUnavailable before any state is touched.
//
// Accepts either a bare JSON array or {"candles":[...]} response forms.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type candleJSON struct {
	Start  string `json:"start"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

// CandleFeed fetches and caches the rolling candle window for one product.
type CandleFeed struct {
	baseURL     string
	productID   string
	granularity string
	timeout     time.Duration
	cacheTTL    time.Duration
	maxKeep     int
	client      *http.Client

	mu        sync.Mutex
	window    []Candle
	fetchedAt time.Time
}

func NewCandleFeed(cfg Config) *CandleFeed {
	return &CandleFeed{
		baseURL:     strings.TrimRight(cfg.FeedURL, "/"),
		productID:   cfg.ProductID,
		granularity: cfg.Granularity,
		timeout:     time.Duration(cfg.FeedTimeoutSec) * time.Second,
		cacheTTL:    time.Duration(cfg.FeedCacheTTLSec) * time.Second,
		maxKeep:     cfg.MaxHistoryCandles,
		client:      &http.Client{},
	}
}

// Warmup backfills up to want candles, paging backward by time, so the
// indicators are defined before the first live tick.
func (f *CandleFeed) Warmup(ctx context.Context, want int) error {
	if want <= 0 {
		want = 300
	}
	pageLimit := 300
	end := time.Now().UTC().Unix()
	step := int64(granularitySeconds(f.granularity))
	if step == 0 {
		step = 3600
	}
	seen := make(map[int64]struct{}, want)
	var out []Candle

	for len(out) < want {
		start := end - step*int64(pageLimit)
		rows, err := f.fetchPage(ctx, start, end)
		if err != nil {
			return fmt.Errorf("warmup page: %w", err)
		}
		if len(rows) == 0 {
			break
		}
		added := 0
		for _, c := range rows {
			ts := c.Time.Unix()
			if _, ok := seen[ts]; ok {
				continue
			}
			seen[ts] = struct{}{}
			out = append(out, c)
			added++
		}
		if added == 0 {
			break
		}
		end = start
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	if len(out) > want {
		out = out[len(out)-want:]
	}

	f.mu.Lock()
	f.window = out
	f.fetchedAt = time.Now().UTC()
	f.mu.Unlock()
	log.Printf("[BOOT] feed warmup: %d candles (%s %s)", len(out), f.productID, f.granularity)
	return nil
}

// Latest refreshes the tail of the window and returns a copy of it. The
// second return is true when the result came from the cache after a fetch
// failure; callers flag the tick accordingly.
func (f *CandleFeed) Latest(ctx context.Context) ([]Candle, bool, error) {
	step := int64(granularitySeconds(f.granularity))
	if step == 0 {
		step = 3600
	}
	end := time.Now().UTC().Unix()
	rows, err := f.fetchPage(ctx, end-step*10, end)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		age := time.Since(f.fetchedAt)
		if len(f.window) > 0 && age <= f.cacheTTL {
			log.Printf("[WARN] feed: fetch failed (%v), serving cached window age=%s", err, age.Round(time.Second))
			IncFeedFallback()
			return append([]Candle(nil), f.window...), true, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}

	f.merge(rows)
	f.fetchedAt = time.Now().UTC()
	return append([]Candle(nil), f.window...), false, nil
}

// merge folds freshly fetched rows into the window, replacing any row with
// the same timestamp (the still-forming bar gets updated in place).
func (f *CandleFeed) merge(rows []Candle) {
	for _, r := range rows {
		n := len(f.window)
		idx := sort.Search(n, func(i int) bool { return !f.window[i].Time.Before(r.Time) })
		if idx < n && f.window[idx].Time.Equal(r.Time) {
			f.window[idx] = r
			continue
		}
		f.window = append(f.window, Candle{})
		copy(f.window[idx+1:], f.window[idx:])
		f.window[idx] = r
	}
	if f.maxKeep > 0 && len(f.window) > f.maxKeep {
		f.window = f.window[len(f.window)-f.maxKeep:]
	}
}

func (f *CandleFeed) fetchPage(ctx context.Context, start, end int64) ([]Candle, error) {
	q := url.Values{}
	q.Set("product_id", f.productID)
	q.Set("granularity", f.granularity)
	q.Set("start", strconv.FormatInt(start, 10))
	q.Set("end", strconv.FormatInt(end, 10))
	u := f.baseURL + "/candles?" + q.Encode()

	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("feed status %d", resp.StatusCode)
	}
	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	rows := normalizeCandles(raw)
	out := make([]Candle, 0, len(rows))
	for _, r := range rows {
		ts, _ := strconv.ParseInt(strings.TrimSpace(r.Start), 10, 64)
		if ts == 0 {
			continue
		}
		o, _ := strconv.ParseFloat(r.Open, 64)
		h, _ := strconv.ParseFloat(r.High, 64)
		l, _ := strconv.ParseFloat(r.Low, 64)
		c, _ := strconv.ParseFloat(r.Close, 64)
		v, _ := strconv.ParseFloat(r.Volume, 64)
		out = append(out, Candle{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: v,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func normalizeCandles(raw any) []candleJSON {
	switch v := raw.(type) {
	case []any:
		return toCandleJSON(v)
	case map[string]any:
		if c, ok := v["candles"]; ok {
			if arr, ok := c.([]any); ok {
				return toCandleJSON(arr)
			}
		}
	}
	return nil
}

func toCandleJSON(arr []any) []candleJSON {
	out := make([]candleJSON, 0, len(arr))
	for _, it := range arr {
		if m, ok := it.(map[string]any); ok {
			out = append(out, candleJSON{
				Start:  asStr(m["start"]),
				Open:   asStr(m["open"]),
				High:   asStr(m["high"]),
				Low:    asStr(m["low"]),
				Close:  asStr(m["close"]),
				Volume: asStr(m["volume"]),
			})
		}
	}
	return out
}

func asStr(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func granularitySeconds(g string) int {
	switch strings.ToUpper(strings.TrimSpace(g)) {
	case "ONE_MINUTE":
		return 60
	case "FIVE_MINUTE":
		return 5 * 60
	case "FIFTEEN_MINUTE":
		return 15 * 60
	case "THIRTY_MINUTE":
		return 30 * 60
	case "ONE_HOUR":
		return 60 * 60
	case "TWO_HOUR":
		return 2 * 60 * 60
	case "FOUR_HOUR":
		return 4 * 60 * 60
	case "SIX_HOUR":
		return 6 * 60 * 60
	case "ONE_DAY":
		return 24 * 60 * 60
	default:
		return 0
	}
}
