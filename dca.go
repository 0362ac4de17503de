// FILE: dca.go
// Package main – Accumulation (DCA) scheduler.
//
// planDCA decides whether a fixed-notional accumulation buy should fire on
// this tick. Pure function over the persisted reference price and cooldown
// timer, so restarts and replays give identical answers.
//
// Trigger: the close has dropped at least DCADropPct (fraction) from the
// last reference AND the cooldown since the last fill has elapsed. On a
// fill the orchestrator re-bases the reference to the fill close, so a
// sustained decline produces a geometric ladder of buys keyed off each
// fill rather than a one-shot from the original reference.

package main

import "time"

// DCAPlan is the scheduler's answer for one tick.
type DCAPlan struct {
	Fire        bool
	NotionalUSD float64
	DropPct     float64 // observed fractional drop from the reference
}

// planDCA evaluates the accumulation trigger. ref <= 0 means no reference
// has been established yet (first tick); nothing can fire until the
// orchestrator initializes it from the first observed close.
func planDCA(ref float64, lastFill time.Time, now time.Time, close float64, cfg Config) DCAPlan {
	if ref <= 0 || close <= 0 {
		return DCAPlan{}
	}
	drop := (ref - close) / ref
	if drop < cfg.DCADropPct {
		return DCAPlan{DropPct: drop}
	}
	if cd := cfg.DCACooldown(); cd > 0 && !lastFill.IsZero() && now.Sub(lastFill) < cd {
		return DCAPlan{DropPct: drop}
	}
	return DCAPlan{Fire: true, NotionalUSD: cfg.DCANotionalUSD, DropPct: drop}
}
