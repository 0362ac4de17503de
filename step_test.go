// FILE: step_test.go
// Package main – Per-tick orchestration: priority, single action, pause behavior.

package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStepEmptyWindowAbortsBeforeMutation(t *testing.T) {
	tr, _ := newTestTrader(t, testConfig(), HeuristicAdvisor{}, 100)
	_, err := tr.step(context.Background(), nil, false)
	require.ErrorIs(t, err, ErrFeedUnavailable)
	require.Zero(t, tr.State().LastDCARef, "aborted tick must not touch state")
}

func TestStepFirstTickInitializesReferenceWithoutFiring(t *testing.T) {
	tr, _ := newTestTrader(t, testConfig(), HeuristicAdvisor{}, 100)
	c := flatCandles(30, 100)

	d, err := tr.step(context.Background(), c, false)
	require.NoError(t, err)
	require.Equal(t, Hold, d.Action)
	st := tr.State()
	require.InDelta(t, 100.0, st.LastDCARef, 1e-9, "first close becomes the reference")
	require.Empty(t, st.Lots)
	require.InDelta(t, 10000.0, st.CashUSD, 1e-9)
}

func TestStepDCABuyRebasesReference(t *testing.T) {
	cfg := testConfig()
	tr, pb := newTestTrader(t, cfg, HeuristicAdvisor{}, 100)
	ctx := context.Background()

	c := flatCandles(30, 100)
	_, err := tr.step(ctx, c, false)
	require.NoError(t, err)

	// 4% drop from the reference fires a fixed-notional buy.
	c = withBar(c, 100, 100, 96, 96)
	pb.SetPrice(96)
	d, err := tr.step(ctx, c, false)
	require.NoError(t, err)
	require.Equal(t, Buy, d.Action)
	require.Equal(t, reasonDCABuy, d.ReasonCode)
	require.InDelta(t, 50.0/96.0, d.Quantity, 1e-9)

	st := tr.State()
	require.Len(t, st.Lots, 1)
	require.Equal(t, LotDCA, st.Lots[0].Kind)
	require.Zero(t, st.Lots[0].StopPrice, "accumulation lots are held without stops")
	require.InDelta(t, 9950.0, st.CashUSD, 1e-9)
	require.InDelta(t, 96.0, st.LastDCARef, 1e-9, "reference re-bases to the fill close")
	require.Equal(t, 1, st.TradesToday)
}

func TestStepDCACooldownBlocksNextRung(t *testing.T) {
	cfg := testConfig()
	cfg.DCACooldownMin = 240 // hourly bars, so the next ladder rung is too soon
	tr, pb := newTestTrader(t, cfg, HeuristicAdvisor{}, 100)
	ctx := context.Background()

	c := flatCandles(30, 100)
	_, err := tr.step(ctx, c, false)
	require.NoError(t, err)

	c = withBar(c, 100, 100, 96, 96)
	pb.SetPrice(96)
	d, err := tr.step(ctx, c, false)
	require.NoError(t, err)
	require.Equal(t, Buy, d.Action)

	// Another qualifying drop one hour later: cooldown holds it back.
	c = withBar(c, 96, 96, 92, 92)
	pb.SetPrice(92)
	d, err = tr.step(ctx, c, false)
	require.NoError(t, err)
	require.Equal(t, Hold, d.Action)
	require.Len(t, tr.State().Lots, 1)
}

func TestStepPauseBlocksDCA(t *testing.T) {
	cfg := testConfig()
	cfg.Paused = true
	tr, pb := newTestTrader(t, cfg, HeuristicAdvisor{}, 96)
	tr.state.LastDCARef = 100

	c := withBar(flatCandles(30, 100), 100, 100, 96, 96)
	pb.SetPrice(96)
	d, err := tr.step(context.Background(), c, false)
	require.NoError(t, err)
	require.Equal(t, Hold, d.Action)
	require.Equal(t, reasonPaused, d.ReasonCode)
	require.False(t, d.Guardrail.Allowed)
	st := tr.State()
	require.Empty(t, st.Lots)
	require.InDelta(t, 10000.0, st.CashUSD, 1e-9)
}

func TestStepStopExitOutranksDCAAndBypassesPause(t *testing.T) {
	cfg := testConfig()
	cfg.Paused = true
	tr, pb := newTestTrader(t, cfg, HeuristicAdvisor{}, 95)
	tr.state.LastDCARef = 100 // a 5% drop would also qualify for DCA
	tr.state.Lots = []*Position{
		{LotID: 1, Kind: LotSwing, EntryPrice: 100, Quantity: 1, StopPrice: 96},
	}
	tr.state.CashUSD = 100

	c := withBar(flatCandles(30, 100), 100, 100, 95, 95)
	pb.SetPrice(95)
	d, err := tr.step(context.Background(), c, false)
	require.NoError(t, err)

	require.Equal(t, Sell, d.Action, "stop exit wins the tick")
	require.Equal(t, reasonStopExit, d.ReasonCode)
	require.True(t, d.Guardrail.Allowed, "pause never blocks a safety exit")

	st := tr.State()
	require.Empty(t, st.Lots, "exactly one action per tick: the exit, no DCA buy")
	require.InDelta(t, 195.0, st.CashUSD, 1e-9)
}

// bullWindow builds an uptrend whose indicators are defined and whose trend
// clears the threshold, with the RSI veto parked out of reach.
func bullWindow() []Candle {
	return risingCandles(40, 100, 1)
}

func bullConfig() Config {
	cfg := testConfig()
	cfg.RSIExhaustLevel = 101
	return cfg
}

func TestStepSwingEntryOnApproval(t *testing.T) {
	cfg := bullConfig()
	adv := stubAdvisor{v: AdvisoryVerdict{Approve: true, Confidence: 0.9, Rationale: "breakout holding"}}
	c := bullWindow()
	last := c[len(c)-1].Close
	tr, _ := newTestTrader(t, cfg, adv, last)

	d, err := tr.step(context.Background(), c, false)
	require.NoError(t, err)
	require.Equal(t, Buy, d.Action)
	require.Equal(t, reasonSwingEntry, d.ReasonCode)
	require.Equal(t, "breakout holding", d.Rationale)

	st := tr.State()
	require.Len(t, st.Lots, 1)
	require.Equal(t, LotSwing, st.Lots[0].Kind)
	require.InDelta(t, last-cfg.StopATRMult*d.Indicators.ATR, st.Lots[0].StopPrice, 1e-9)
	require.InDelta(t, 10000.0-cfg.SwingNotionalUSD, st.CashUSD, 1e-9)
}

func TestStepSwingRejectedBelowConfidenceFloor(t *testing.T) {
	adv := stubAdvisor{v: AdvisoryVerdict{Approve: true, Confidence: 0.4, Rationale: "weak setup"}}
	c := bullWindow()
	tr, _ := newTestTrader(t, bullConfig(), adv, c[len(c)-1].Close)

	d, err := tr.step(context.Background(), c, false)
	require.NoError(t, err)
	require.Equal(t, Hold, d.Action)
	require.Equal(t, reasonAdvisorReject, d.ReasonCode)
	require.Equal(t, "weak setup", d.Rationale, "rationale is recorded on rejections too")
	require.Empty(t, tr.State().Lots)
}

func TestStepAdvisorFailureIsFailClosed(t *testing.T) {
	c := bullWindow()

	tr, _ := newTestTrader(t, bullConfig(), stubAdvisor{err: errors.New("model offline")}, c[len(c)-1].Close)
	d, err := tr.step(context.Background(), c, false)
	require.NoError(t, err)
	require.Equal(t, Hold, d.Action)
	require.Equal(t, reasonAdvisorError, d.ReasonCode)
	require.Empty(t, tr.State().Lots)

	tr, _ = newTestTrader(t, bullConfig(), stubAdvisor{err: context.DeadlineExceeded}, c[len(c)-1].Close)
	d, err = tr.step(context.Background(), c, false)
	require.NoError(t, err)
	require.Equal(t, Hold, d.Action)
	require.Equal(t, reasonAdvisorTimeout, d.ReasonCode)
	require.Empty(t, tr.State().Lots)
}

func TestStepSwingSuppressedOutsideBull(t *testing.T) {
	adv := stubAdvisor{v: AdvisoryVerdict{Approve: true, Confidence: 0.99}}
	tr, _ := newTestTrader(t, testConfig(), adv, 100)

	d, err := tr.step(context.Background(), flatCandles(30, 100), false)
	require.NoError(t, err)
	require.Equal(t, Hold, d.Action)
	require.Equal(t, reasonRegime, d.ReasonCode)
	require.Empty(t, tr.State().Lots)
}

func TestStepSwingSlotLimit(t *testing.T) {
	adv := stubAdvisor{v: AdvisoryVerdict{Approve: true, Confidence: 0.99}}
	cfg := bullConfig()
	c := bullWindow()
	tr, _ := newTestTrader(t, cfg, adv, c[len(c)-1].Close)
	tr.state.Lots = []*Position{
		{LotID: 1, Kind: LotSwing, EntryPrice: 10, Quantity: 0.1, StopPrice: 5},
	}

	d, err := tr.step(context.Background(), c, false)
	require.NoError(t, err)
	require.Equal(t, Hold, d.Action)
	require.Len(t, tr.State().Lots, 1, "slot already taken, no second swing lot")
}

func TestStepDeterministicReplay(t *testing.T) {
	c := withBar(flatCandles(30, 100), 100, 100, 96, 96)

	run := func() []Decision {
		tr, pb := newTestTrader(t, testConfig(), HeuristicAdvisor{}, 100)
		var out []Decision
		for i := indicatorPeriod + 1; i <= len(c); i++ {
			w := c[:i]
			pb.SetPrice(w[len(w)-1].Close)
			d, err := tr.step(context.Background(), w, false)
			require.NoError(t, err)
			out = append(out, *d)
		}
		return out
	}

	a, b := run(), run()
	require.Equal(t, len(a), len(b))
	for i := range a {
		require.Equal(t, a[i].Action, b[i].Action, "tick %d", i)
		require.Equal(t, a[i].ReasonCode, b[i].ReasonCode, "tick %d", i)
		require.Equal(t, a[i].Regime, b[i].Regime, "tick %d", i)
	}
}
