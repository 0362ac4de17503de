// FILE: helpers_test.go
// Package main – Shared fixtures for the pipeline tests.

package main

import (
	"context"
	"testing"
	"time"
)

var testT0 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// testConfig returns a config with persistence off and fees zeroed so the
// accounting in assertions stays exact.
func testConfig() Config {
	return Config{
		ProductID:   "BTC-USD",
		Granularity: "ONE_HOUR",

		DCADropPct:     0.04,
		DCANotionalUSD: 50.0,
		DCACooldownMin: 60,

		SwingNotionalUSD: 100.0,
		StopATRMult:      2.0,
		MaxSwingLots:     1,

		TrendFastN:        5,
		TrendSlowN:        10,
		TrendThresholdPct: 0.5,
		TrendDeadBandPct:  0.1,
		RSIExhaustLevel:   80.0,

		AdvisorMinConfidence: 0.6,
		AdvisorTimeoutSec:    1,

		PositionLimitPct: 0.80,
		DailyLossCapPct:  -0.03,

		CashUSD:    10000.0,
		FeeRatePct: 0.0,

		MaxHistoryCandles: 1000,
		PersistState:      false,
	}
}

// flatCandles returns n hourly bars with O=H=L=C=price.
func flatCandles(n int, price float64) []Candle {
	out := make([]Candle, n)
	for i := range out {
		out[i] = Candle{
			Time:  testT0.Add(time.Duration(i) * time.Hour),
			Open:  price,
			High:  price,
			Low:   price,
			Close: price,
		}
	}
	return out
}

// risingCandles returns n hourly bars climbing by step per bar.
func risingCandles(n int, start, step float64) []Candle {
	out := make([]Candle, n)
	px := start
	for i := range out {
		out[i] = Candle{
			Time:  testT0.Add(time.Duration(i) * time.Hour),
			Open:  px,
			High:  px + step,
			Low:   px,
			Close: px + step,
		}
		px += step
	}
	return out
}

// withBar appends one more hourly bar to a window.
func withBar(c []Candle, o, h, l, cl float64) []Candle {
	t := testT0
	if len(c) > 0 {
		t = c[len(c)-1].Time.Add(time.Hour)
	}
	return append(append([]Candle(nil), c...), Candle{Time: t, Open: o, High: h, Low: l, Close: cl})
}

// stubAdvisor returns a fixed verdict or error.
type stubAdvisor struct {
	v   AdvisoryVerdict
	err error
}

func (stubAdvisor) Name() string { return "stub" }

func (s stubAdvisor) Evaluate(_ context.Context, _ AdvisoryContext) (AdvisoryVerdict, error) {
	return s.v, s.err
}

// newTestTrader wires a trader to a paper broker with the mark pre-set.
func newTestTrader(t *testing.T, cfg Config, adv Advisor, mark float64) (*Trader, *PaperBroker) {
	t.Helper()
	pb := NewPaperBroker(cfg.FeeRatePct)
	pb.SetPrice(mark)
	return NewTrader(cfg, pb, adv, nil), pb
}
