// FILE: live.go
// Package main – Real-time tick loop.
//
// runLive drives the agent at a fixed cadence: refresh config (with cached
// fallback), pull the candle window, sync the paper mark, then hand the
// window to the single-threaded step(). A tick that cannot get usable data
// is aborted whole; no partial evaluation, no state mutation.

package main

import (
	"context"
	"errors"
	"log"
	"time"
)

// runLive executes the real-time loop with cadence intervalSec (seconds).
func runLive(ctx context.Context, t *Trader, feed *CandleFeed, src *ConfigSource, intervalSec int) {
	if intervalSec <= 0 {
		intervalSec = 60
	}
	base := t.cfg
	log.Printf("Starting %s product=%s granularity=%s interval=%ds",
		t.broker.Name(), base.ProductID, base.Granularity, intervalSec)
	log.Printf("[SAFETY] DCA_DROP_PCT=%.4f | DCA_COOLDOWN_MIN=%d | STOP_ATR_MULT=%.2f | POSITION_LIMIT_PCT=%.2f | DAILY_LOSS_CAP_PCT=%.4f | ADVISOR_MIN_CONFIDENCE=%.2f",
		base.DCADropPct, base.DCACooldownMin, base.StopATRMult, base.PositionLimitPct, base.DailyLossCapPct, base.AdvisorMinConfidence)

	// Bootstrap enough history for the indicators before the first tick.
	var warmErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if warmErr = feed.Warmup(ctx, base.WarmupCandles); warmErr == nil {
			break
		}
		log.Printf("[WARN] warmup attempt %d/3: %v", attempt, warmErr)
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
	if warmErr != nil {
		log.Fatalf("warmup failed: %v", warmErr)
	}

	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] live loop: shutting down")
			return
		case <-ticker.C:
		}
		runTick(ctx, t, feed, src, base)
	}
}

// runTick evaluates exactly one tick. Config staleness and feed fallback
// are resolved here so step() only sees a window plus a stale flag.
func runTick(ctx context.Context, t *Trader, feed *CandleFeed, src *ConfigSource, base Config) {
	stale := false
	if src != nil {
		merged, s := src.Refresh(ctx, base)
		stale = s
		t.SetConfig(merged)
	}

	candles, fromCache, err := feed.Latest(ctx)
	if err != nil {
		log.Printf("[WARN] tick aborted before evaluation: %v", err)
		IncTick("aborted")
		return
	}
	if pb, ok := t.broker.(*PaperBroker); ok && len(candles) > 0 {
		pb.SetPrice(candles[len(candles)-1].Close)
	}

	d, err := t.step(ctx, candles, stale || fromCache)
	if err != nil {
		if errors.Is(err, ErrPersistence) {
			log.Printf("[WARN] tick failed to persist, decision discarded: %v", err)
		} else {
			log.Printf("[WARN] tick aborted: %v", err)
		}
		IncTick("aborted")
		return
	}
	IncTick("ok")
	log.Printf("[INFO] tick: action=%s reason=%s price=%.2f regime=%s stale=%v",
		d.Action.String(), d.ReasonCode, d.Price, d.Regime, d.ConfigStale)
}
