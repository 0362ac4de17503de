// FILE: dca_test.go
// Package main – Accumulation trigger arithmetic and cooldown gating.

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPlanDCADropThreshold(t *testing.T) {
	cfg := testConfig() // 4% drop, 60 min cooldown
	now := testT0

	p := planDCA(100, time.Time{}, now, 96, cfg)
	require.True(t, p.Fire, "4%% drop from 100 to 96 fires")
	require.Equal(t, cfg.DCANotionalUSD, p.NotionalUSD)
	require.InDelta(t, 0.04, p.DropPct, 1e-9)

	p = planDCA(100, time.Time{}, now, 96.5, cfg)
	require.False(t, p.Fire, "3.5%% drop is below the threshold")
	require.InDelta(t, 0.035, p.DropPct, 1e-9)
}

func TestPlanDCACooldown(t *testing.T) {
	cfg := testConfig()
	now := testT0

	p := planDCA(100, now.Add(-30*time.Minute), now, 95, cfg)
	require.False(t, p.Fire, "cooldown not elapsed")

	p = planDCA(100, now.Add(-61*time.Minute), now, 95, cfg)
	require.True(t, p.Fire, "cooldown elapsed")

	cfg.DCACooldownMin = 0
	p = planDCA(100, now.Add(-time.Minute), now, 95, cfg)
	require.True(t, p.Fire, "zero cooldown never blocks")
}

func TestPlanDCANoReference(t *testing.T) {
	cfg := testConfig()
	require.False(t, planDCA(0, time.Time{}, testT0, 96, cfg).Fire, "no reference yet")
	require.False(t, planDCA(-1, time.Time{}, testT0, 96, cfg).Fire)
	require.False(t, planDCA(100, time.Time{}, testT0, 0, cfg).Fire, "no usable close")
}

func TestPlanDCARiseNeverFires(t *testing.T) {
	cfg := testConfig()
	p := planDCA(100, time.Time{}, testT0, 104, cfg)
	require.False(t, p.Fire)
	require.Less(t, p.DropPct, 0.0)
}
