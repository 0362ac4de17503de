// FILE: main.go
// Package main – Program entrypoint and HTTP/metrics server.
//
// Boot sequence:
//   1) loadBotEnv()               – read .env (no shell exports required)
//   2) cfg := loadConfigFromEnv() – build runtime Config
//   3) wire feed/advisor/broker/ledger/trader
//   4) start Prometheus /healthz server on cfg.Port
//   5) runReplay or runLive based on flags
//
// Flags:
//   -replay <csv>     Replay a historical CSV through the pipeline
//   -interval <sec>   Tick interval in seconds (default 60)
//
// Example:
//   go run . -interval 15
//
// Notes:
//   - FEED_URL must point at a running candle bridge for live mode.
//   - No environment exports are needed; keep editing .env and restart.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// ---- Flags ----
	var csvReplay string
	var intervalSec int
	flag.StringVar(&csvReplay, "replay", "", "Path to CSV (time,open,high,low,close,volume)")
	flag.IntVar(&intervalSec, "interval", 60, "Tick interval in seconds")
	flag.Parse()

	// ---- Environment & Config ----
	loadBotEnv()
	cfg := loadConfigFromEnv()

	var src *ConfigSource
	if cfg.ConfigURL != "" {
		src = NewConfigSource(cfg)
		// Apply remote overrides once before wiring so boot values match.
		merged, stale := src.Refresh(context.Background(), cfg)
		if stale {
			log.Printf("[WARN] config: remote source unreachable at boot, using cache/env")
		}
		cfg = merged
	}

	// ---- Wiring ----
	var advisor Advisor
	if cfg.AdvisorURL != "" {
		advisor = NewHTTPAdvisor(cfg.AdvisorURL)
	} else {
		advisor = HeuristicAdvisor{}
	}
	log.Printf("[BOOT] advisor=%s", advisor.Name())

	broker := NewPaperBroker(cfg.FeeRatePct)
	feed := NewCandleFeed(cfg)

	ledger, err := OpenLedger(cfg.LedgerFile, cfg.ProductID)
	if err != nil {
		log.Fatalf("ledger init: %v", err)
	}
	defer ledger.Close()

	trader := NewTrader(cfg, broker, advisor, ledger)

	// ---- HTTP metrics/health ----
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		log.Printf("serving metrics on :%d/metrics", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	// ---- Run ----
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if csvReplay != "" {
		runReplay(ctx, csvReplay, trader)
	} else {
		runLive(ctx, trader, feed, src, intervalSec)
	}

	// ---- Graceful shutdown for HTTP server ----
	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
}
