// FILE: stops.go
// Package main – ATR-scaled trailing stops for swing lots.
//
// Only swing lots carry a stop; accumulation lots are held unconditionally.
// The stop is set at entry as entry - k*ATR and may only ratchet upward
// afterwards (monotonic non-decreasing while the lot is open). A breach is
// checked against the intratick low, not the close, so a wick through the
// stop still exits.
//
// Stop exits bypass the advisory gate and are never blocked by guardrails;
// they reduce risk and must always be honored.

package main

import "math"

// initialStop computes the entry stop for a new swing lot.
func initialStop(entryPrice, atr, k float64) float64 {
	return entryPrice - k*atr
}

// trailStops raises the stop on every open swing lot that is in profit.
// Returns true when any stop moved (so the caller knows state is dirty).
// ATR must be defined; with no fresh ATR the stops simply hold.
func trailStops(lots []*Position, close float64, snap IndicatorSnapshot, k float64) bool {
	if !snap.ATROK {
		return false
	}
	moved := false
	for _, lot := range lots {
		if lot.Kind != LotSwing {
			continue
		}
		if close <= lot.EntryPrice {
			continue
		}
		candidate := close - k*snap.ATR
		if next := math.Max(lot.StopPrice, candidate); next > lot.StopPrice {
			lot.StopPrice = next
			moved = true
		}
	}
	return moved
}

// firstBreachedSwing returns the index of the first swing lot whose stop is
// breached by the tick's low, or -1. At most one exit is applied per tick;
// any further breached lots are picked up on subsequent ticks.
func firstBreachedSwing(lots []*Position, low float64) int {
	for i, lot := range lots {
		if lot.Kind != LotSwing || lot.StopPrice <= 0 {
			continue
		}
		if low <= lot.StopPrice {
			return i
		}
	}
	return -1
}
