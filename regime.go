// FILE: regime.go
// Package main – Market regime classification with hysteresis.
//
// classifyRegime is a pure function: it takes the bar window, the indicator
// snapshot, the previous tick's regime, and the config, and returns the
// regime for this tick. Keeping the previous regime an explicit parameter
// (instead of hidden classifier state) makes the function deterministic and
// trivially testable.
//
// Labels:
//   • bull: trend above +threshold and RSI not exhausted-overbought
//   • bear: trend below -threshold
//   • chop: trend magnitude inside the threshold, or indicators undefined
//
// Hysteresis: when |trend| lands inside the dead-band around the threshold,
// the previous regime is returned unchanged to stop label flapping on a
// trend that is oscillating right at the boundary.

package main

import "math"

// trendPct returns the fast-vs-slow SMA divergence of closes in percent.
// NaN when the window is too short for the slow average.
func trendPct(c []Candle, fastN, slowN int) float64 {
	if len(c) < slowN {
		return math.NaN()
	}
	i := len(c) - 1
	fast := SMA(c, fastN)[i]
	slow := SMA(c, slowN)[i]
	if math.IsNaN(fast) || math.IsNaN(slow) || slow == 0 {
		return math.NaN()
	}
	return (fast - slow) / slow * 100.0
}

// classifyRegime labels the current market condition. Undefined indicators
// or an unavailable trend force chop (conservative default); the caller
// suppresses discretionary entries on that tick.
func classifyRegime(c []Candle, snap IndicatorSnapshot, prev Regime, cfg Config) Regime {
	if !snap.RSIOK || !snap.ATROK {
		return RegimeChop
	}
	trend := trendPct(c, cfg.TrendFastN, cfg.TrendSlowN)
	if math.IsNaN(trend) {
		return RegimeChop
	}

	th := cfg.TrendThresholdPct
	band := cfg.TrendDeadBandPct

	// Dead-band: |trend| within threshold±band keeps the previous label.
	if band > 0 && math.Abs(math.Abs(trend)-th) <= band {
		if prev == "" {
			return RegimeChop
		}
		return prev
	}

	switch {
	case trend >= th:
		if snap.RSI >= cfg.RSIExhaustLevel {
			// Overbought exhaustion: strong trend but no fresh bull label.
			return RegimeChop
		}
		return RegimeBull
	case trend <= -th:
		return RegimeBear
	default:
		return RegimeChop
	}
}
