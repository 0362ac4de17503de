// FILE: errors.go
// Package main – Error taxonomy for the tick pipeline.
//
// Sentinels are matched with errors.Is at the orchestrator and live loop:
//   • ErrFeedUnavailable – abort the tick before any mutation; retry next tick
//   • ErrAdvisoryTimeout – advisory call exceeded its deadline (fail-closed)
//   • ErrAdvisory        – advisory call failed or returned garbage (fail-closed)
//   • ErrConfigStale     – live config source unreachable; cached values in use
//   • ErrPersistence     – state could not be durably written; fatal for the tick
//
// Guardrail rejections are NOT errors; they are normal control flow recorded
// via a reason code on the Decision.

package main

import "errors"

var (
	ErrFeedUnavailable = errors.New("feed unavailable")
	ErrAdvisoryTimeout = errors.New("advisory timeout")
	ErrAdvisory        = errors.New("advisory error")
	ErrConfigStale     = errors.New("config stale")
	ErrPersistence     = errors.New("persistence failure")
)
