// FILE: config.go
// Package main – Runtime configuration model, env loader, and remote overlay.
//
// This file defines the Config struct (all the knobs the agent uses), a
// helper to populate it from environment variables, and a ConfigSource
// that overlays remote key/value rows (published CSV) on top of the env
// defaults. The remote fetch is cached to disk; when the live source is
// unreachable the last good copy is served and the tick is flagged stale.
//
// Typical flow (see main.go):
//   loadBotEnv()
//   cfg := loadConfigFromEnv()
//   src := NewConfigSource(cfg)
//   cfg, stale := src.Refresh(ctx, cfg)

package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime knobs for the decision pipeline and operations.
type Config struct {
	// Trading target
	ProductID   string // e.g., "BTC-USD"
	Granularity string // e.g., "ONE_HOUR"

	// Accumulation (DCA)
	DCADropPct     float64 // fractional drop from the last reference, e.g. 0.03
	DCANotionalUSD float64 // fixed buy size per accumulation fill
	DCACooldownMin int     // minutes between accumulation fills

	// Swing entries & stops
	SwingNotionalUSD float64 // discretionary entry size
	StopATRMult      float64 // k in stop = entry - k*ATR
	MaxSwingLots     int     // open swing lots allowed at once

	// Regime classification
	TrendFastN        int     // short SMA period
	TrendSlowN        int     // long SMA period
	TrendThresholdPct float64 // trend magnitude (pct) separating bull/bear from chop
	TrendDeadBandPct  float64 // hysteresis band around the threshold
	RSIExhaustLevel   float64 // RSI at/above this blocks a bull label

	// Advisory gate
	AdvisorURL           string  // empty = built-in heuristic advisor
	AdvisorMinConfidence float64 // approve requires confidence >= this
	AdvisorTimeoutSec    int

	// Guardrails
	Paused           bool    // global pause; rejects all non-exit intents
	PositionLimitPct float64 // cap on open notional as a fraction of equity
	DailyLossCapPct  float64 // negative fraction, e.g. -0.03
	MaxTradesPerDay  int     // 0 disables the trade budget

	// Portfolio & fees
	CashUSD    float64 // starting cash when no persisted state exists
	FeeRatePct float64 // % fee applied on simulated fills

	// Feed
	FeedURL           string // bridge base URL for /candles and /price
	FeedTimeoutSec    int
	FeedCacheTTLSec   int // serve cached candles for this long on feed failure
	WarmupCandles     int // bars fetched at boot
	MaxHistoryCandles int

	// Remote config overlay
	ConfigURL       string // published CSV of key,value rows; empty disables
	ConfigCachePath string
	ConfigTTLSec    int

	// Ops
	Port         int
	StateFile    string // path to persist portfolio state
	LedgerFile   string // path to the append-only decision ledger
	PersistState bool
}

// loadConfigFromEnv reads the process env (already hydrated by loadBotEnv())
// and returns a Config with sane defaults if keys are missing.
func loadConfigFromEnv() Config {
	return Config{
		ProductID:   getEnv("PRODUCT_ID", "BTC-USD"),
		Granularity: getEnv("GRANULARITY", "ONE_HOUR"),

		DCADropPct:     getEnvFloat("DCA_DROP_PCT", 0.03),
		DCANotionalUSD: getEnvFloat("DCA_NOTIONAL_USD", 50.0),
		DCACooldownMin: getEnvInt("DCA_COOLDOWN_MIN", 60),

		SwingNotionalUSD: getEnvFloat("SWING_NOTIONAL_USD", 100.0),
		StopATRMult:      getEnvFloat("STOP_ATR_MULT", 2.0),
		MaxSwingLots:     getEnvInt("MAX_SWING_LOTS", 1),

		TrendFastN:        getEnvInt("TREND_FAST_N", 20),
		TrendSlowN:        getEnvInt("TREND_SLOW_N", 50),
		TrendThresholdPct: getEnvFloat("TREND_THRESHOLD_PCT", 0.5),
		TrendDeadBandPct:  getEnvFloat("TREND_DEADBAND_PCT", 0.1),
		RSIExhaustLevel:   getEnvFloat("RSI_EXHAUST_LEVEL", 80.0),

		AdvisorURL:           getEnv("ADVISOR_URL", ""),
		AdvisorMinConfidence: getEnvFloat("ADVISOR_MIN_CONFIDENCE", 0.6),
		AdvisorTimeoutSec:    getEnvInt("ADVISOR_TIMEOUT_SEC", 5),

		Paused:           getEnvBool("GLOBAL_PAUSE", false),
		PositionLimitPct: getEnvFloat("POSITION_LIMIT_PCT", 0.80),
		DailyLossCapPct:  getEnvFloat("DAILY_LOSS_CAP_PCT", -0.03),
		MaxTradesPerDay:  getEnvInt("MAX_TRADES_PER_DAY", 0),

		CashUSD:    getEnvFloat("CASH_USD", 10000.0),
		FeeRatePct: getEnvFloat("FEE_RATE_PCT", 0.3),

		FeedURL:           getEnv("FEED_URL", ""),
		FeedTimeoutSec:    getEnvInt("FEED_TIMEOUT_SEC", 5),
		FeedCacheTTLSec:   getEnvInt("FEED_CACHE_TTL_SEC", 300),
		WarmupCandles:     getEnvInt("WARMUP_CANDLES", 300),
		MaxHistoryCandles: getEnvInt("MAX_HISTORY_CANDLES", 1000),

		ConfigURL:       getEnv("CONFIG_URL", ""),
		ConfigCachePath: getEnv("CONFIG_CACHE_PATH", "state/config_cache.json"),
		ConfigTTLSec:    getEnvInt("CONFIG_TTL_SEC", 900),

		Port:         getEnvInt("PORT", 8080),
		StateFile:    getEnv("STATE_FILE", "state/portfolio.json"),
		LedgerFile:   getEnv("LEDGER_FILE", "state/decisions.csv"),
		PersistState: getEnvBool("PERSIST_STATE", true),
	}
}

// DCACooldown returns the accumulation cooldown as a duration.
func (c *Config) DCACooldown() time.Duration {
	return time.Duration(c.DCACooldownMin) * time.Minute
}

// AdvisorTimeout returns the advisory deadline as a duration.
func (c *Config) AdvisorTimeout() time.Duration {
	return time.Duration(c.AdvisorTimeoutSec) * time.Second
}

// ---- Remote key/value overlay ----

// ConfigSource fetches a flat key,value CSV from a published URL and caches
// the merged map to disk so restarts and outages keep the last good values.
type ConfigSource struct {
	url       string
	cachePath string
	ttl       time.Duration

	lastGood map[string]string
	lastAt   time.Time
}

func NewConfigSource(cfg Config) *ConfigSource {
	return &ConfigSource{
		url:       cfg.ConfigURL,
		cachePath: cfg.ConfigCachePath,
		ttl:       time.Duration(cfg.ConfigTTLSec) * time.Second,
	}
}

// Refresh overlays remote values onto cfg. It returns the updated config and
// whether the tick is running on stale (cached) values. With no URL set the
// env-derived config passes through unchanged and is never stale.
func (s *ConfigSource) Refresh(ctx context.Context, cfg Config) (Config, bool) {
	if s == nil || s.url == "" {
		return cfg, false
	}
	kv, err := s.fetch(ctx)
	if err == nil {
		s.lastGood = kv
		s.lastAt = time.Now().UTC()
		s.writeCache(kv)
		applyOverrides(&cfg, kv)
		return cfg, false
	}

	// Live source unreachable: fall back to the in-memory copy, then disk.
	log.Printf("[WARN] config: live fetch failed (%v); using cached values", err)
	if s.lastGood == nil {
		if cached, at, cerr := s.readCache(); cerr == nil {
			s.lastGood = cached
			s.lastAt = at
		}
	}
	if s.lastGood != nil {
		applyOverrides(&cfg, s.lastGood)
		return cfg, true
	}
	return cfg, true
}

func (s *ConfigSource) fetch(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigStale, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: config source %d: %s", ErrConfigStale, resp.StatusCode, string(b))
	}
	return parseKVCSV(resp.Body)
}

// parseKVCSV reads key,value rows. A header row of "key,value" is skipped;
// blank keys and short rows are ignored.
func parseKVCSV(r io.Reader) (map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	out := map[string]string{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 2 {
			continue
		}
		k := strings.TrimSpace(rec[0])
		v := strings.TrimSpace(rec[1])
		if k == "" || strings.EqualFold(k, "key") {
			continue
		}
		out[k] = v
	}
	return out, nil
}

type configCacheFile struct {
	FetchedAt time.Time         `json:"fetched_at"`
	Values    map[string]string `json:"values"`
}

func (s *ConfigSource) writeCache(kv map[string]string) {
	if s.cachePath == "" {
		return
	}
	bs, err := json.MarshalIndent(configCacheFile{FetchedAt: time.Now().UTC(), Values: kv}, "", " ")
	if err != nil {
		return
	}
	if err := writeFileAtomic(s.cachePath, bs, 0644); err != nil {
		log.Printf("[WARN] config: cache write failed: %v", err)
	}
}

func (s *ConfigSource) readCache() (map[string]string, time.Time, error) {
	bs, err := os.ReadFile(s.cachePath)
	if err != nil {
		return nil, time.Time{}, err
	}
	var cf configCacheFile
	if err := json.Unmarshal(bs, &cf); err != nil {
		return nil, time.Time{}, err
	}
	if s.ttl > 0 && time.Since(cf.FetchedAt) > s.ttl {
		return nil, time.Time{}, fmt.Errorf("%w: cache older than ttl", ErrConfigStale)
	}
	return cf.Values, cf.FetchedAt, nil
}

// applyOverrides maps known remote keys onto the Config. Unknown keys are
// ignored so the sheet can carry settings for other consumers.
func applyOverrides(cfg *Config, kv map[string]string) {
	for k, v := range kv {
		switch strings.ToUpper(k) {
		case "DCA_DROP_PCT":
			setFloat(&cfg.DCADropPct, v)
		case "DCA_NOTIONAL_USD":
			setFloat(&cfg.DCANotionalUSD, v)
		case "DCA_COOLDOWN_MIN":
			setInt(&cfg.DCACooldownMin, v)
		case "SWING_NOTIONAL_USD":
			setFloat(&cfg.SwingNotionalUSD, v)
		case "STOP_ATR_MULT":
			setFloat(&cfg.StopATRMult, v)
		case "ADVISOR_MIN_CONFIDENCE":
			setFloat(&cfg.AdvisorMinConfidence, v)
		case "GLOBAL_PAUSE":
			setBool(&cfg.Paused, v)
		case "POSITION_LIMIT_PCT":
			setFloat(&cfg.PositionLimitPct, v)
		case "DAILY_LOSS_CAP_PCT":
			setFloat(&cfg.DailyLossCapPct, v)
		case "MAX_TRADES_PER_DAY":
			setInt(&cfg.MaxTradesPerDay, v)
		case "TREND_THRESHOLD_PCT":
			setFloat(&cfg.TrendThresholdPct, v)
		case "TREND_DEADBAND_PCT":
			setFloat(&cfg.TrendDeadBandPct, v)
		}
	}
}

func setFloat(dst *float64, v string) {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = f
	}
}
func setInt(dst *int, v string) {
	if i, err := strconv.Atoi(v); err == nil {
		*dst = i
	}
}
func setBool(dst *bool, v string) {
	switch strings.ToLower(v) {
	case "1", "true", "y", "yes":
		*dst = true
	case "0", "false", "n", "no":
		*dst = false
	}
}
