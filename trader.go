// FILE: trader.go
// Package main – Portfolio state, durability, and the trader core.
//
// What’s here:
//   • Position (one lot: DCA or swing) and PortfolioState (the single
//     durable record of cash, lots, DCA reference/cooldown, day baseline)
//   • Trader: holds config, broker, advisor, ledger, mutex, and the state
//   • Atomic persistence: tmp file + fsync + rename, so a crash mid-write
//     leaves either the old snapshot or the new one, never a torn file
//   • UTC day rollover for the daily-loss-cap baseline
//
// Concurrency design:
//   - One tick is processed at a time (see step.go); t.mu guards the state
//     for external readers (HTTP handlers, metrics) while a tick runs.
//   - PortfolioState is mutated exactly once per tick and persisted before
//     the tick reports success. A persistence failure aborts the tick's
//     notification path: prefer losing a tick's progress over recording a
//     duplicate or phantom trade.

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Position is one owned lot with its entry metadata. Only swing lots carry
// a stop price.
type Position struct {
	LotID        int       `json:"lot_id"`
	Kind         LotKind   `json:"kind"`
	EntryPrice   float64   `json:"entry_price"`
	Quantity     float64   `json:"quantity"`
	EntryTime    time.Time `json:"entry_time"`
	StopPrice    float64   `json:"stop_price,omitempty"`
	EntryOrderID string    `json:"entry_order_id,omitempty"`
}

// NotionalAt marks the lot against a price.
func (p *Position) NotionalAt(price float64) float64 {
	return p.Quantity * price
}

// PortfolioState is the persistent snapshot. Reference prices and cooldown
// timers live here so they survive restarts unchanged.
type PortfolioState struct {
	CashUSD        float64     `json:"cash_usd"`
	Lots           []*Position `json:"lots"`
	LastDCARef     float64     `json:"last_dca_reference_price"`
	LastDCATime    time.Time   `json:"last_dca_time"`
	DayStartEquity float64     `json:"day_start_equity"`
	DayStartTime   time.Time   `json:"day_start_timestamp"`
	Paused         bool        `json:"paused"`
	TradesToday    int         `json:"trades_today"`
	NextLotSeq     int         `json:"next_lot_seq"`
	Version        int         `json:"version"`
}

type Trader struct {
	cfg     Config
	broker  Broker
	advisor Advisor
	ledger  *Ledger

	mu    sync.RWMutex
	state PortfolioState

	// previous tick's regime, input to the classifier's hysteresis
	prevRegime Regime

	stateFile string
}

func NewTrader(cfg Config, broker Broker, advisor Advisor, ledger *Ledger) *Trader {
	t := &Trader{
		cfg:       cfg,
		broker:    broker,
		advisor:   advisor,
		ledger:    ledger,
		stateFile: cfg.StateFile,
		state: PortfolioState{
			CashUSD:      cfg.CashUSD,
			DayStartTime: midnightUTC(time.Now().UTC()),
			NextLotSeq:   1,
			Version:      1,
		},
	}

	// Persistence guard: tests and dry experiments set PERSIST_STATE=false.
	if !t.cfg.PersistState {
		t.stateFile = ""
		log.Printf("[INFO] persistence disabled (PERSIST_STATE=false); starting fresh state")
		return t
	}

	if err := t.loadState(); err == nil {
		log.Printf("[INFO] portfolio state restored from %s", t.stateFile)
	} else {
		log.Printf("[INFO] no prior state restored: %v", err)
		if dir := filepath.Dir(t.stateFile); dir != "" {
			if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
				log.Fatalf("[FATAL] state dir %s not writable: %v", dir, mkErr)
			}
		}
	}
	return t
}

// SetConfig swaps in a refreshed config (remote overlay) between ticks.
func (t *Trader) SetConfig(cfg Config) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg = cfg
}

// State returns a deep-enough copy for external readers.
func (t *Trader) State() PortfolioState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st := t.state
	st.Lots = make([]*Position, len(t.state.Lots))
	for i, lot := range t.state.Lots {
		cp := *lot
		st.Lots[i] = &cp
	}
	return st
}

// equityAt marks the whole portfolio against a price. Invariant:
// equity = cash + Σ lot quantity·price.
func (t *Trader) equityAt(price float64) float64 {
	eq := t.state.CashUSD
	for _, lot := range t.state.Lots {
		eq += lot.NotionalAt(price)
	}
	return eq
}

// openNotionalAt marks only the open lots against a price.
func (t *Trader) openNotionalAt(price float64) float64 {
	var n float64
	for _, lot := range t.state.Lots {
		n += lot.NotionalAt(price)
	}
	return n
}

// swingLotCount counts open discretionary lots.
func (t *Trader) swingLotCount() int {
	n := 0
	for _, lot := range t.state.Lots {
		if lot.Kind == LotSwing {
			n++
		}
	}
	return n
}

// rollDay re-baselines the daily-loss-cap tracking at the first tick after
// a UTC day boundary, using that tick's equity as the new baseline. That is
// an approximation (not true midnight equity) carried over deliberately
// from how the caps have always been operated. Also resets the day's trade
// budget and re-arms a portfolio previously capped by daily_loss_cap.
func (t *Trader) rollDay(now time.Time, equity float64) bool {
	day := midnightUTC(now)
	if day.Equal(t.state.DayStartTime) {
		if t.state.DayStartEquity <= 0 {
			t.state.DayStartEquity = equity
			return true
		}
		return false
	}
	t.state.DayStartTime = day
	t.state.DayStartEquity = equity
	t.state.TradesToday = 0
	log.Printf("[INFO] day roll: baseline equity %.2f at %s", equity, day.Format(time.RFC3339))
	return true
}

// nextLotID hands out stable lot identifiers.
func (t *Trader) nextLotID() int {
	id := t.state.NextLotSeq
	t.state.NextLotSeq++
	return id
}

// ---- Persistence helpers ----

// saveStateLocked writes the current snapshot assuming the caller holds t.mu.
func (t *Trader) saveStateLocked() error {
	if t.stateFile == "" || !t.cfg.PersistState {
		return nil
	}
	bs, err := json.MarshalIndent(t.state, "", " ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrPersistence, err)
	}
	if err := writeFileAtomic(t.stateFile, bs, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (t *Trader) loadState() error {
	if t.stateFile == "" || !t.cfg.PersistState {
		return fmt.Errorf("no state file configured")
	}
	bs, err := os.ReadFile(t.stateFile)
	if err != nil {
		return err
	}
	var st PortfolioState
	if err := json.Unmarshal(bs, &st); err != nil {
		return err
	}
	if st.CashUSD < 0 {
		return fmt.Errorf("refusing state with negative cash %.2f", st.CashUSD)
	}
	if st.NextLotSeq < 1 {
		st.NextLotSeq = 1
	}
	t.state = st
	return nil
}

// writeFileAtomic writes data to path atomically (tmp file + fsync + rename).
// On Unix it also fsyncs the parent directory to harden the rename durability.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	// best-effort fsync parent dir (Unix)
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
