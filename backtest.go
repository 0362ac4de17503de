// FILE: backtest.go
// Package main – CSV loader and deterministic replay runner.
//
// What’s here:
//   • loadCSV(path) -> []Candle   : reads time,open,high,low,close,volume
//   • runReplay(ctx, csvPath, trader)
//       - replays the candle series tick by tick through step()
//       - tallies actions and logs periodic progress
//
// Replaying the same CSV against the same starting state reproduces the
// same decision sequence, which is the main reason this runner exists.
//
// Notes:
//   • Time column accepts RFC3339 or UNIX seconds.
//   • Unknown columns are ignored; headers are case-insensitive.

package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// loadCSV reads a generic candle CSV with headers:
// time|timestamp, open, high, low, close, volume
func loadCSV(path string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []Candle
	var headers []string
	rowIdx := 0

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if rowIdx == 0 {
			headers = rec
			rowIdx++
			continue
		}
		row := map[string]string{}
		for j, h := range headers {
			k := strings.ToLower(strings.TrimSpace(h))
			if j < len(rec) {
				row[k] = strings.TrimSpace(rec[j])
			}
		}
		ts := first(row, "time", "timestamp")
		op := first(row, "open")
		hp := first(row, "high")
		lp := first(row, "low")
		cp := first(row, "close")
		vp := first(row, "volume", "vol")
		if ts == "" || op == "" || cp == "" {
			continue
		}
		tt, err := parseTimeFlexible(ts)
		if err != nil {
			continue
		}
		o, _ := strconv.ParseFloat(op, 64)
		h, _ := strconv.ParseFloat(hp, 64)
		l, _ := strconv.ParseFloat(lp, 64)
		c, _ := strconv.ParseFloat(cp, 64)
		v, _ := strconv.ParseFloat(vp, 64)
		out = append(out, Candle{Time: tt, Open: o, High: h, Low: l, Close: c, Volume: v})
		rowIdx++
	}

	sortCandles(out)
	return out, nil
}

// parseTimeFlexible supports RFC3339 or UNIX seconds.
func parseTimeFlexible(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time: %s", s)
}

// sortCandles ensures ascending time.
func sortCandles(c []Candle) {
	sort.Slice(c, func(i, j int) bool { return c[i].Time.Before(c[j].Time) })
}

// first returns the first non-empty value for keys in m.
func first(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}

// runReplay feeds the CSV series through the decision pipeline one bar at
// a time, exactly as the live loop would.
func runReplay(ctx context.Context, csvPath string, trader *Trader) {
	candles, err := loadCSV(csvPath)
	if err != nil {
		log.Fatalf("replay load: %v", err)
	}
	warm := indicatorPeriod + 1
	if len(candles) < warm {
		log.Fatalf("need >=%d candles, have %d", warm, len(candles))
	}

	pb, _ := trader.broker.(*PaperBroker)
	counts := map[string]int{}
	for i := warm; i < len(candles); i++ {
		select {
		case <-ctx.Done():
			log.Println("replay canceled")
			return
		default:
		}
		window := candles[:i+1]
		if pb != nil {
			pb.SetPrice(window[len(window)-1].Close)
		}
		d, err := trader.step(ctx, window, false)
		if err != nil {
			log.Printf("[BT] i=%d step err: %v", i, err)
			continue
		}
		counts[d.ReasonCode]++
		if i%100 == 0 {
			log.Printf("[BT] i=%d action=%s reason=%s price=%.2f regime=%s",
				i, d.Action.String(), d.ReasonCode, d.Price, d.Regime)
		}
	}

	last := candles[len(candles)-1].Close
	st := trader.State()
	eq := st.CashUSD
	for _, l := range st.Lots {
		eq += l.Quantity * last
	}
	log.Printf("Replay complete. Equity=%.2f", eq)
	for reason, n := range counts {
		log.Printf("[BT] reason=%s count=%d", reason, n)
	}
}
