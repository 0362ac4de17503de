// FILE: guardrails.go
// Package main – Final-authority risk guardrails.
//
// Guardrails run after strategy logic proposes an action and before any
// state mutation. The state they evaluate is an explicit struct built per
// tick from config plus the portfolio, never ambient globals, so arbitrary
// guardrail states can be injected in tests.
//
// Precedence for entries: paused > position_limit > daily_loss_cap >
// trade_budget > ok. Exits are always permitted; a paused flag is logged
// for the record but a stop exit reduces risk and must go through.
//
// Rejections are not retried within the tick; the rejected intent is simply
// not applied and the tick's Decision records Hold with the reason code.

package main

import (
	"log"
	"time"
)

// GuardrailState is the complete input to an entry check.
type GuardrailState struct {
	Paused           bool
	PositionLimitUSD float64 // absolute cap on open notional; <=0 disables
	DailyLossCapPct  float64 // negative fraction, e.g. -0.03; 0 disables
	MaxTradesPerDay  int     // 0 disables

	Equity         float64
	DayStartEquity float64
	OpenNotional   float64 // marked at the tick price
	TradesToday    int
}

// guardrailState assembles the per-tick state. The position cap is a
// fraction of current equity, mirroring how the caps are operated.
func guardrailState(cfg Config, equity, dayStartEquity, openNotional float64, tradesToday int) GuardrailState {
	limit := 0.0
	if cfg.PositionLimitPct > 0 {
		limit = cfg.PositionLimitPct * equity
	}
	return GuardrailState{
		Paused:           cfg.Paused,
		PositionLimitUSD: limit,
		DailyLossCapPct:  cfg.DailyLossCapPct,
		MaxTradesPerDay:  cfg.MaxTradesPerDay,
		Equity:           equity,
		DayStartEquity:   dayStartEquity,
		OpenNotional:     openNotional,
		TradesToday:      tradesToday,
	}
}

// checkEntry gates a buy intent (DCA or swing) of the given notional.
func checkEntry(gs GuardrailState, intentNotionalUSD float64) GuardrailVerdict {
	if gs.Paused {
		return GuardrailVerdict{Allowed: false, ReasonCode: reasonPaused}
	}
	if gs.PositionLimitUSD > 0 && gs.OpenNotional+intentNotionalUSD > gs.PositionLimitUSD {
		return GuardrailVerdict{Allowed: false, ReasonCode: reasonPositionLimit}
	}
	if gs.DailyLossCapPct < 0 && gs.DayStartEquity > 0 {
		dayPnLPct := (gs.Equity - gs.DayStartEquity) / gs.DayStartEquity
		if dayPnLPct <= gs.DailyLossCapPct {
			return GuardrailVerdict{Allowed: false, ReasonCode: reasonDailyLossCap}
		}
	}
	if gs.MaxTradesPerDay > 0 && gs.TradesToday >= gs.MaxTradesPerDay {
		return GuardrailVerdict{Allowed: false, ReasonCode: reasonTradeBudget}
	}
	return GuardrailVerdict{Allowed: true, ReasonCode: reasonOK}
}

// checkExit always allows; pause is noted in the log only.
func checkExit(gs GuardrailState) GuardrailVerdict {
	if gs.Paused {
		log.Printf("[INFO] guardrail: paused, honoring safety exit anyway")
	}
	return GuardrailVerdict{Allowed: true, ReasonCode: reasonOK}
}

// midnightUTC truncates a timestamp to its UTC day boundary.
func midnightUTC(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
