// FILE: ledger.go
// Package main – Append-only CSV decision ledger.
//
// Every evaluated tick appends exactly one row, Hold included, so the file
// is a complete replayable audit trail of what the agent saw and did.
// Rows are never updated or deleted. The writer keeps the file open in
// append mode and fsyncs after each row.
//
// Columns: time,action,source,price,qty,reason,regime,rsi,atr,note

package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

var ledgerHeader = []string{"time", "action", "source", "price", "qty", "reason", "regime", "rsi", "atr", "note"}

// Ledger serializes appends to a single CSV file.
type Ledger struct {
	mu     sync.Mutex
	f      *os.File
	w      *csv.Writer
	source string // product id stamped on every row
}

// OpenLedger opens (or creates) the CSV at path and writes the header when
// the file is empty.
func OpenLedger(path, source string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ledger open: %w", err)
	}
	l := &Ledger{f: f, w: csv.NewWriter(f), source: source}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ledger stat: %w", err)
	}
	if st.Size() == 0 {
		if err := l.writeRow(ledgerHeader); err != nil {
			f.Close()
			return nil, err
		}
	}
	return l, nil
}

// Append writes one decision row. Indicator columns are blank when the
// reading is undefined so a zero is never mistaken for a real value.
func (l *Ledger) Append(d *Decision) error {
	rsi, atr := "", ""
	if d.Indicators.RSIOK {
		rsi = strconv.FormatFloat(d.Indicators.RSI, 'f', 2, 64)
	}
	if d.Indicators.ATROK {
		atr = strconv.FormatFloat(d.Indicators.ATR, 'f', 4, 64)
	}
	note := d.Rationale
	if d.ConfigStale {
		if note != "" {
			note += "; "
		}
		note += "config_stale"
	}
	row := []string{
		d.TickTime.UTC().Format(time.RFC3339),
		d.Action.String(),
		l.source,
		strconv.FormatFloat(d.Price, 'f', 2, 64),
		strconv.FormatFloat(d.Quantity, 'f', 8, 64),
		d.ReasonCode,
		string(d.Regime),
		rsi,
		atr,
		note,
	}
	return l.writeRow(row)
}

func (l *Ledger) writeRow(row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("ledger write: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("ledger flush: %w", err)
	}
	return l.f.Sync()
}

// Close flushes and closes the underlying file.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	return l.f.Close()
}
