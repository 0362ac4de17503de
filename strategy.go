// FILE: strategy.go
// Package main – Core market-data and decision types used across the agent.
//
// This file declares the normalized candle row, the action enum
// (Buy/Sell/Hold), the market regime enum (Bull/Bear/Chop), the indicator
// snapshot with explicit defined/undefined markers, lot kinds, and the
// immutable per-tick Decision audit record.
//
// Conventions:
//   • RSI/ATR values are only meaningful when their OK flag is true;
//     callers must never treat a zero as a valid extreme reading.
//   • A Decision is produced exactly once per tick and appended to the
//     ledger; it is never mutated after creation.

package main

import (
	"time"
)

// Candle is the normalized OHLCV row the agent uses everywhere.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Action is the resolved intent for one tick.
type Action int

const (
	Hold Action = iota
	Buy
	Sell
)

// String implements fmt.Stringer for pretty logging.
func (a Action) String() string {
	switch a {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Side converts the action into a broker side. Hold has no side.
func (a Action) Side() OrderSide {
	if a == Sell {
		return SideSell
	}
	return SideBuy
}

// Regime labels the market condition used to gate discretionary entries.
type Regime string

const (
	RegimeBull Regime = "bull"
	RegimeBear Regime = "bear"
	RegimeChop Regime = "chop"
)

// IndicatorSnapshot carries the per-tick indicator values. RSI/ATR are
// undefined (OK=false) until enough bars exist; the numeric fields are
// zero then and must not be read.
type IndicatorSnapshot struct {
	RSI   float64
	RSIOK bool
	ATR   float64
	ATROK bool
}

// LotKind distinguishes accumulation lots from discretionary swing lots.
// Only swing lots carry an active trailing stop.
type LotKind string

const (
	LotDCA   LotKind = "dca"
	LotSwing LotKind = "swing"
)

// Reason codes recorded on Decision and guardrail verdicts.
const (
	reasonOK               = "ok"
	reasonStopExit         = "stop_exit"
	reasonDCABuy           = "dca_buy"
	reasonSwingEntry       = "swing_entry"
	reasonPaused           = "paused"
	reasonPositionLimit    = "position_limit"
	reasonDailyLossCap     = "daily_loss_cap"
	reasonTradeBudget      = "trade_budget"
	reasonAdvisorReject    = "advisor_reject"
	reasonAdvisorError     = "advisor_error"
	reasonAdvisorTimeout   = "advisor_timeout"
	reasonInsufficientCash = "insufficient_cash"
	reasonNoHistory        = "insufficient_history"
	reasonRegime           = "regime_unfavorable"
	reasonNoTrigger        = "no_trigger"
)

// GuardrailVerdict is the final allow/deny recorded per decision.
type GuardrailVerdict struct {
	Allowed    bool   `json:"allowed"`
	ReasonCode string `json:"reason_code"`
}

// Decision is the immutable audit record for one tick.
type Decision struct {
	TickTime    time.Time
	Action      Action
	ReasonCode  string
	Quantity    float64 // base units moved (0 on Hold)
	Price       float64 // mark used for the tick
	Regime      Regime
	Indicators  IndicatorSnapshot
	Guardrail   GuardrailVerdict
	Rationale   string // advisory rationale, display-only
	ConfigStale bool   // tick ran on cached config values
}
