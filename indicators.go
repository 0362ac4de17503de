// FILE: indicators.go
// Package main – Technical indicators for the decision pipeline.
//
// This file implements the TA helpers used by the regime classifier and
// the stop manager:
//   • SMA(c, n)            – Simple Moving Average of Close
//   • RSI(c, n)            – Relative Strength Index (Wilder’s smoothing)
//   • ATR(c, n)            – Average True Range (Wilder’s smoothing)
//   • computeSnapshot(c)   – latest RSI(14)/ATR(14) with explicit defined flags
//
// Notes
//   - All functions accept a slice of Candle (defined in strategy.go).
//   - Series outputs are aligned to input length; unavailable lookbacks emit
//     NaN/0 as noted per function. computeSnapshot is the only API the
//     pipeline consumes; it converts warmup sentinels into explicit
//     undefined markers so callers never mistake them for real extremes.
//   - Everything recomputes from scratch each tick; no incremental state,
//     so a restart or replay yields identical values.
package main

import (
	"math"
)

const indicatorPeriod = 14

// SMA returns the n-period simple moving average of Close, aligned to c.
// For indices < n-1, the function returns NaN.
func SMA(c []Candle, n int) []float64 {
	out := make([]float64, len(c))
	if n <= 0 || len(c) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	var sum float64
	for i := range c {
		sum += c[i].Close
		if i >= n {
			sum -= c[i-n].Close
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// RSI returns the n-period Relative Strength Index using Wilder’s smoothing.
// Indices before the first full window are zero (0); use computeSnapshot
// for undefined-aware access.
func RSI(c []Candle, n int) []float64 {
	out := make([]float64, len(c))
	if n <= 0 || len(c) == 0 {
		return out
	}
	var gain, loss float64
	for i := 1; i < len(c); i++ {
		d := c[i].Close - c[i-1].Close
		if i <= n {
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
			if i == n {
				gain /= float64(n)
				loss /= float64(n)
				out[i] = rsiValue(gain, loss)
			}
		} else {
			// Wilder smoothing
			if d > 0 {
				gain = (gain*float64(n-1) + d) / float64(n)
				loss = (loss * float64(n-1)) / float64(n)
			} else {
				gain = (gain * float64(n-1)) / float64(n)
				loss = (loss*float64(n-1) - d) / float64(n)
			}
			out[i] = rsiValue(gain, loss)
		}
	}
	return out
}

// rsiValue maps smoothed gain/loss averages onto the 0-100 scale. With no
// losses the index saturates at 100; a completely flat window is neutral 50.
func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// trueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func trueRange(cur, prev Candle) float64 {
	tr := cur.High - cur.Low
	if v := math.Abs(cur.High - prev.Close); v > tr {
		tr = v
	}
	if v := math.Abs(cur.Low - prev.Close); v > tr {
		tr = v
	}
	return tr
}

// ATR returns the n-period Average True Range using Wilder’s smoothing.
// Indices before the first full window are zero (0); use computeSnapshot
// for undefined-aware access.
func ATR(c []Candle, n int) []float64 {
	out := make([]float64, len(c))
	if n <= 0 || len(c) < n+1 {
		return out
	}
	var sum float64
	for i := 1; i <= n; i++ {
		sum += trueRange(c[i], c[i-1])
	}
	atr := sum / float64(n)
	out[n] = atr
	for i := n + 1; i < len(c); i++ {
		atr = (atr*float64(n-1) + trueRange(c[i], c[i-1])) / float64(n)
		out[i] = atr
	}
	return out
}

// computeSnapshot derives the latest RSI(14)/ATR(14) for the window. Both
// values need at least period+1 bars (14 periods plus one for differencing);
// below that the corresponding OK flag is false and the value is unusable.
func computeSnapshot(c []Candle) IndicatorSnapshot {
	var snap IndicatorSnapshot
	if len(c) < indicatorPeriod+1 {
		return snap
	}
	i := len(c) - 1
	snap.RSI = RSI(c, indicatorPeriod)[i]
	snap.RSIOK = true
	snap.ATR = ATR(c, indicatorPeriod)[i]
	snap.ATROK = true
	return snap
}
