// FILE: step.go
// Package main – Synchronized decision tick.
//
// Overview
//   step(ctx, candles, stale) is the single-threaded per-tick evaluation:
//   indicators → regime → stop scan → accumulation → discretionary entry →
//   guardrails → state mutation → ledger append → notification. Exactly one
//   tick is in flight at a time; the next tick does not start until this one
//   fully settles.
//
// Priority
//   Stop-exit > DCA-buy > Swing-entry > Hold. At most one trade intent is
//   applied per tick; a guardrail rejection ends the tick as Hold with the
//   rejection's reason code (no retry within the tick).
//
// Inputs / Outputs
//   Input:  []Candle history (last element is the most recent bar), plus a
//           flag saying whether the tick is running on cached config.
//   Output: (*Decision, error). An empty window returns ErrFeedUnavailable
//           before any state is touched. A persistence failure returns an
//           error wrapping ErrPersistence and suppresses ledger/notify so a
//           tick never reports success it cannot back with durable state.
//
// Concurrency & Locks
//   • Takes t.mu at the top and RELEASES it around the advisory call and
//     around the outbound ledger/notification I/O at the end of the tick.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

func (t *Trader) step(ctx context.Context, c []Candle, cfgStale bool) (*Decision, error) {
	if len(c) == 0 {
		return nil, fmt.Errorf("%w: empty bar window", ErrFeedUnavailable)
	}

	// Acquire lock (no defer): released around advisory/notify I/O.
	t.mu.Lock()

	last := c[len(c)-1]
	price := last.Close
	now := last.Time
	if now.IsZero() {
		now = time.Now().UTC()
	}

	// 1) Day baseline roll before guardrail evaluation.
	t.rollDay(now, t.equityAt(price))

	// Echo the externally toggled pause flag into the persisted state.
	t.state.Paused = t.cfg.Paused

	// First observed close establishes the accumulation reference; nothing
	// can fire on this tick.
	if t.state.LastDCARef <= 0 {
		t.state.LastDCARef = price
		log.Printf("[INFO] dca: reference initialized to %.2f", price)
	}

	// 2) Indicators and regime.
	snap := computeSnapshot(c)
	regime := classifyRegime(c, snap, t.prevRegime, t.cfg)
	t.prevRegime = regime

	gs := guardrailState(t.cfg, t.equityAt(price), t.state.DayStartEquity, t.openNotionalAt(price), t.state.TradesToday)

	d := &Decision{
		TickTime:    now,
		Action:      Hold,
		ReasonCode:  reasonNoTrigger,
		Price:       price,
		Regime:      regime,
		Indicators:  snap,
		Guardrail:   GuardrailVerdict{Allowed: true, ReasonCode: reasonOK},
		ConfigStale: cfgStale,
	}

	// 3) Stop scan: trail first, then check the intratick low for a breach.
	trailStops(t.state.Lots, price, snap, t.cfg.StopATRMult)
	if idx := firstBreachedSwing(t.state.Lots, last.Low); idx >= 0 {
		lot := t.state.Lots[idx]
		d.Guardrail = checkExit(gs)
		fill, err := t.broker.PlaceMarketBase(ctx, t.cfg.ProductID, SideSell, lot.Quantity)
		if err != nil {
			t.mu.Unlock()
			return nil, fmt.Errorf("stop exit fill: %w", err)
		}
		t.state.CashUSD += fill.QuoteSpent - fill.CommissionUSD
		t.state.Lots = append(t.state.Lots[:idx], t.state.Lots[idx+1:]...)
		t.state.TradesToday++
		d.Action = Sell
		d.ReasonCode = reasonStopExit
		d.Quantity = fill.BaseSize
		d.Price = fill.Price
		mtxOrders.WithLabelValues(t.broker.Name(), string(SideSell)).Inc()
		log.Printf("[INFO] stop exit: lot=%d qty=%.8f stop=%.2f low=%.2f fill=%.2f",
			lot.LotID, lot.Quantity, lot.StopPrice, last.Low, fill.Price)
		return t.settle(d, price)
	}

	// 4) Accumulation scheduler.
	if plan := planDCA(t.state.LastDCARef, t.state.LastDCATime, now, price, t.cfg); plan.Fire {
		d.Guardrail = checkEntry(gs, plan.NotionalUSD)
		if !d.Guardrail.Allowed {
			d.ReasonCode = d.Guardrail.ReasonCode
			mtxGuardrailRejects.WithLabelValues(d.Guardrail.ReasonCode).Inc()
			log.Printf("[INFO] dca blocked: %s (drop=%.4f)", d.Guardrail.ReasonCode, plan.DropPct)
			return t.settle(d, price)
		}
		cost := plan.NotionalUSD * (1 + t.cfg.FeeRatePct/100.0)
		if cost > t.state.CashUSD {
			d.ReasonCode = reasonInsufficientCash
			log.Printf("[WARN] dca skipped: need %.2f cash, have %.2f", cost, t.state.CashUSD)
			return t.settle(d, price)
		}
		fill, err := t.broker.PlaceMarketQuote(ctx, t.cfg.ProductID, SideBuy, plan.NotionalUSD)
		if err != nil {
			t.mu.Unlock()
			return nil, fmt.Errorf("dca fill: %w", err)
		}
		t.state.CashUSD -= fill.QuoteSpent + fill.CommissionUSD
		t.state.Lots = append(t.state.Lots, &Position{
			LotID:        t.nextLotID(),
			Kind:         LotDCA,
			EntryPrice:   fill.Price,
			Quantity:     fill.BaseSize,
			EntryTime:    now,
			EntryOrderID: fill.ID,
		})
		// Re-base off this fill so consecutive buys ladder down from each
		// fill rather than one-shot from the original reference.
		t.state.LastDCARef = price
		t.state.LastDCATime = now
		t.state.TradesToday++
		d.Action = Buy
		d.ReasonCode = reasonDCABuy
		d.Quantity = fill.BaseSize
		d.Price = fill.Price
		mtxOrders.WithLabelValues(t.broker.Name(), string(SideBuy)).Inc()
		log.Printf("[INFO] dca buy: %.2f USD at %.2f (drop=%.4f), ref re-based", fill.QuoteSpent, fill.Price, plan.DropPct)
		return t.settle(d, price)
	}

	// 5) Discretionary swing entry, advisory-gated. Suppressed when the
	// indicators are undefined or the regime is not bull.
	if !snap.RSIOK || !snap.ATROK {
		d.ReasonCode = reasonNoHistory
		return t.settle(d, price)
	}
	if regime != RegimeBull {
		d.ReasonCode = reasonRegime
		return t.settle(d, price)
	}
	if t.swingLotCount() >= t.cfg.MaxSwingLots {
		d.ReasonCode = reasonNoTrigger
		return t.settle(d, price)
	}

	ac := AdvisoryContext{
		ProductID: t.cfg.ProductID,
		Regime:    regime,
		RSI:       snap.RSI,
		ATR:       snap.ATR,
		LastClose: price,
	}
	minConf := t.cfg.AdvisorMinConfidence
	timeout := t.cfg.AdvisorTimeout()
	adv := t.advisor

	// Release the lock for the advisory network call; single-tick-in-flight
	// means the state cannot change underneath us.
	t.mu.Unlock()
	approved, verdict, aerr := consultAdvisor(ctx, adv, ac, minConf, timeout)
	t.mu.Lock()

	d.Rationale = verdict.Rationale
	if aerr != nil {
		// Fail-closed: a missing or broken advisory capability never lets
		// an entry through silently.
		d.ReasonCode = reasonAdvisorError
		if errors.Is(aerr, ErrAdvisoryTimeout) {
			d.ReasonCode = reasonAdvisorTimeout
		}
		mtxAdvisory.WithLabelValues("error").Inc()
		log.Printf("[WARN] advisory failed (fail-closed): %v", aerr)
		return t.settle(d, price)
	}
	if !approved {
		d.ReasonCode = reasonAdvisorReject
		mtxAdvisory.WithLabelValues("reject").Inc()
		return t.settle(d, price)
	}
	mtxAdvisory.WithLabelValues("approve").Inc()

	d.Guardrail = checkEntry(gs, t.cfg.SwingNotionalUSD)
	if !d.Guardrail.Allowed {
		d.ReasonCode = d.Guardrail.ReasonCode
		mtxGuardrailRejects.WithLabelValues(d.Guardrail.ReasonCode).Inc()
		return t.settle(d, price)
	}
	cost := t.cfg.SwingNotionalUSD * (1 + t.cfg.FeeRatePct/100.0)
	if cost > t.state.CashUSD {
		d.ReasonCode = reasonInsufficientCash
		log.Printf("[WARN] swing skipped: need %.2f cash, have %.2f", cost, t.state.CashUSD)
		return t.settle(d, price)
	}
	fill, err := t.broker.PlaceMarketQuote(ctx, t.cfg.ProductID, SideBuy, t.cfg.SwingNotionalUSD)
	if err != nil {
		t.mu.Unlock()
		return nil, fmt.Errorf("swing fill: %w", err)
	}
	lot := &Position{
		LotID:        t.nextLotID(),
		Kind:         LotSwing,
		EntryPrice:   fill.Price,
		Quantity:     fill.BaseSize,
		EntryTime:    now,
		StopPrice:    initialStop(fill.Price, snap.ATR, t.cfg.StopATRMult),
		EntryOrderID: fill.ID,
	}
	t.state.CashUSD -= fill.QuoteSpent + fill.CommissionUSD
	t.state.Lots = append(t.state.Lots, lot)
	t.state.TradesToday++
	d.Action = Buy
	d.ReasonCode = reasonSwingEntry
	d.Quantity = fill.BaseSize
	d.Price = fill.Price
	mtxOrders.WithLabelValues(t.broker.Name(), string(SideBuy)).Inc()
	log.Printf("[INFO] swing entry: %.2f USD at %.2f stop=%.2f conf=%.2f",
		fill.QuoteSpent, fill.Price, lot.StopPrice, verdict.Confidence)
	return t.settle(d, price)
}

// settle persists the mutated state, appends the audit record, and (for
// executed actions) emits a notification. Caller holds t.mu; settle
// releases it. Persistence failure aborts before ledger/notify.
func (t *Trader) settle(d *Decision, price float64) (*Decision, error) {
	if err := t.saveStateLocked(); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	mtxDecisions.WithLabelValues(actionLabel(d.Action)).Inc()
	mtxEquity.Set(t.equityAt(price))
	top := 0.0
	for _, l := range t.state.Lots {
		if l.Kind == LotSwing && l.StopPrice > top {
			top = l.StopPrice
		}
	}
	mtxStopPrice.Set(top)
	if d.ConfigStale {
		mtxConfigStale.Set(1)
	} else {
		mtxConfigStale.Set(0)
	}
	ledger := t.ledger
	t.mu.Unlock()

	if ledger != nil {
		if err := ledger.Append(d); err != nil {
			log.Printf("[WARN] ledger append: %v", err)
		}
	}
	if d.Action != Hold {
		notifyAction(d)
	}
	return d, nil
}

func actionLabel(a Action) string {
	switch a {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "hold"
	}
}
