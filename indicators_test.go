// FILE: indicators_test.go
// Package main – RSI/ATR warmup, known values, and determinism.

package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotUndefinedBelowWarmup(t *testing.T) {
	for n := 0; n <= indicatorPeriod; n++ {
		snap := computeSnapshot(flatCandles(n, 100))
		require.False(t, snap.RSIOK, "RSI must be undefined at %d bars", n)
		require.False(t, snap.ATROK, "ATR must be undefined at %d bars", n)
	}
	snap := computeSnapshot(flatCandles(indicatorPeriod+1, 100))
	require.True(t, snap.RSIOK)
	require.True(t, snap.ATROK)
}

func TestSMAWarmupAndValue(t *testing.T) {
	c := risingCandles(10, 100, 1) // closes 101..110
	out := SMA(c, 5)
	require.True(t, math.IsNaN(out[3]))
	// last 5 closes: 106..110
	require.InDelta(t, 108.0, out[9], 1e-9)
}

func TestRSIExtremes(t *testing.T) {
	up := RSI(risingCandles(30, 100, 1), indicatorPeriod)
	require.InDelta(t, 100.0, up[29], 1e-9, "pure uptrend saturates RSI")

	flat := RSI(flatCandles(30, 100), indicatorPeriod)
	require.InDelta(t, 50.0, flat[29], 1e-9, "flat window is neutral")

	down := make([]Candle, 30)
	px := 200.0
	for i := range down {
		down[i] = Candle{Time: testT0, Open: px, High: px, Low: px - 1, Close: px - 1}
		px--
	}
	d := RSI(down, indicatorPeriod)
	require.Less(t, d[29], 1.0, "pure downtrend pins RSI near zero")
}

func TestATRConstantRange(t *testing.T) {
	c := make([]Candle, 30)
	for i := range c {
		c[i] = Candle{Time: testT0, Open: 100, High: 101, Low: 99, Close: 100}
	}
	out := ATR(c, indicatorPeriod)
	require.Zero(t, out[indicatorPeriod-1], "no value before a full window")
	require.InDelta(t, 2.0, out[indicatorPeriod], 1e-9)
	require.InDelta(t, 2.0, out[29], 1e-9, "constant true range is a fixpoint")
}

func TestSnapshotDeterministic(t *testing.T) {
	c := risingCandles(60, 100, 0.5)
	a := computeSnapshot(c)
	b := computeSnapshot(c)
	require.Equal(t, a, b)
}
