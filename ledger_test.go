// FILE: ledger_test.go
// Package main – Decision ledger: header once, append-only, Hold rows included.

package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleDecision(action Action, reason string) *Decision {
	return &Decision{
		TickTime:   testT0,
		Action:     action,
		ReasonCode: reason,
		Price:      100.25,
		Quantity:   0.5,
		Regime:     RegimeChop,
		Indicators: IndicatorSnapshot{RSI: 48.3, RSIOK: true, ATR: 1.25, ATROK: true},
		Guardrail:  GuardrailVerdict{Allowed: true, ReasonCode: reasonOK},
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestLedgerAppendsEveryTickIncludingHold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.csv")
	l, err := OpenLedger(path, "BTC-USD")
	require.NoError(t, err)

	require.NoError(t, l.Append(sampleDecision(Hold, reasonNoTrigger)))
	require.NoError(t, l.Append(sampleDecision(Buy, reasonDCABuy)))
	require.NoError(t, l.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	require.Equal(t, ledgerHeader, rows[0])
	require.Equal(t, "HOLD", rows[1][1])
	require.Equal(t, reasonNoTrigger, rows[1][5])
	require.Equal(t, "BUY", rows[2][1])
	require.Equal(t, "BTC-USD", rows[2][2])
	require.Equal(t, "48.30", rows[2][7])
}

func TestLedgerHeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.csv")

	l, err := OpenLedger(path, "BTC-USD")
	require.NoError(t, err)
	require.NoError(t, l.Append(sampleDecision(Hold, reasonNoTrigger)))
	require.NoError(t, l.Close())

	// Reopen: rows keep appending under the original header.
	l, err = OpenLedger(path, "BTC-USD")
	require.NoError(t, err)
	require.NoError(t, l.Append(sampleDecision(Sell, reasonStopExit)))
	require.NoError(t, l.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	require.Equal(t, ledgerHeader, rows[0])
	require.NotEqual(t, ledgerHeader, rows[1])
	require.Equal(t, "SELL", rows[2][1])
}

func TestLedgerBlanksUndefinedIndicators(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.csv")
	l, err := OpenLedger(path, "BTC-USD")
	require.NoError(t, err)

	d := sampleDecision(Hold, reasonNoHistory)
	d.Indicators = IndicatorSnapshot{}
	d.ConfigStale = true
	require.NoError(t, l.Append(d))
	require.NoError(t, l.Close())

	rows := readRows(t, path)
	require.Equal(t, "", rows[1][7], "undefined RSI must not be written as 0")
	require.Equal(t, "", rows[1][8], "undefined ATR must not be written as 0")
	require.Contains(t, rows[1][9], "config_stale")
}
