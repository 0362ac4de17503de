// FILE: metrics.go
// Package main – Prometheus metrics for observability.
//
// Exposes the metrics the agent updates during operation:
//   • bot_orders_total{mode,side}        – Count of orders placed (mode: paper|live)
//   • bot_decisions_total{action}        – Count of tick decisions (buy|sell|hold)
//   • bot_equity_usd                     – Current equity snapshot (gauge)
//   • bot_guardrail_rejects_total{reason}– Entries blocked by a guardrail, by reason code
//   • bot_advisory_total{outcome}        – Advisory consults (approve|reject|error)
//   • bot_stop_price_usd                 – Highest armed swing stop (gauge, 0 when flat)
//   • bot_config_stale                   – 1 while ticks run on cached config, else 0
//   • bot_feed_fallbacks_total           – Ticks served from the cached candle window
//   • bot_ticks_total{result}            – Ticks by result (ok|aborted)
//
// These are registered in init() and served by the HTTP handler started in main.go
// at /metrics (Prometheus text exposition format).

package main

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Orders placed",
		},
		[]string{"mode", "side"},
	)

	mtxDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_decisions_total",
			Help: "Tick decisions taken",
		},
		[]string{"action"},
	)

	mtxEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_equity_usd",
			Help: "Equity in USD",
		},
	)

	// Counts entry intents blocked by a guardrail; reasons are things like
	// paused, position_limit, daily_loss_cap, trade_budget.
	mtxGuardrailRejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_guardrail_rejects_total",
			Help: "Entry intents blocked by a guardrail, split by reason code",
		},
		[]string{"reason"},
	)

	mtxAdvisory = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_advisory_total",
			Help: "Advisory consults by outcome (approve|reject|error)",
		},
		[]string{"outcome"},
	)

	mtxStopPrice = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_stop_price_usd",
			Help: "Highest armed swing stop price, 0 when no swing lot is open",
		},
	)

	// Flipped between 0/1 rather than counted so dashboards can alert on
	// "stale right now" instead of a lifetime total.
	mtxConfigStale = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_config_stale",
			Help: "1 while ticks run on cached config values, else 0",
		},
	)

	mtxFeedFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_feed_fallbacks_total",
			Help: "Ticks evaluated from the cached candle window after a feed failure",
		},
	)

	mtxTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_ticks_total",
			Help: "Ticks by result (ok|aborted)",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(mtxOrders, mtxDecisions, mtxEquity)
	prometheus.MustRegister(mtxGuardrailRejects, mtxAdvisory, mtxStopPrice)
	prometheus.MustRegister(mtxConfigStale, mtxFeedFallbacks, mtxTicks)
}

// Helper setters used by the tick loop.
func IncFeedFallback()      { mtxFeedFallbacks.Inc() }
func IncTick(result string) { mtxTicks.WithLabelValues(result).Inc() }
