// Export candles from the feed bridge as CSV for the agent's -replay mode.
//
// Usage:
//   FEED_URL=http://localhost:8787 go run ./tools/export_candles.go \
//     -product BTC-USD -granularity ONE_HOUR -limit 300 -out data/BTC-USD.csv
//
// The bridge /candles endpoint returns objects whose fields (start, open,
// high, low, close, volume) are strings of UNIX seconds and decimals; this
// tool converts start to RFC3339 and writes the header the replay loader
// expects: time,open,high,low,close,volume.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

func main() {
	product := flag.String("product", "BTC-USD", "Product ID")
	granularity := flag.String("granularity", "ONE_HOUR", "Granularity")
	limit := flag.Int("limit", 300, "Candles to fetch (API max typically 350)")
	outPath := flag.String("out", "data/BTC-USD.csv", "Output CSV path")
	flag.Parse()

	feedURL := os.Getenv("FEED_URL")
	if feedURL == "" {
		feedURL = "http://bridge:8787" // matches the Compose service name
	}

	rows, err := fetchRows(feedURL, *product, *granularity, *limit)
	if err != nil {
		log.Fatalf("fetch: %v", err)
	}
	if err := writeCSV(*outPath, rows); err != nil {
		log.Fatalf("write: %v", err)
	}
	fmt.Printf("Wrote %s (%d rows)\n", *outPath, len(rows))
}

// row is one exported candle, already converted to CSV-ready strings.
type row struct {
	unix          int64
	rfc3339       string
	o, h, l, c, v string
}

func fetchRows(feedURL, product, granularity string, limit int) ([]row, error) {
	u := fmt.Sprintf("%s/candles?product_id=%s&granularity=%s&limit=%d",
		strings.TrimRight(feedURL, "/"), product, granularity, limit)
	resp, err := http.Get(u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bridge /candles status %d", resp.StatusCode)
	}

	// Bare array or {"candles":[...]} are both accepted.
	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		items, _ = v["candles"].([]any)
	}

	var out []row
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		sec, _ := strconv.ParseInt(field(m, "start"), 10, 64)
		if sec == 0 {
			continue
		}
		out = append(out, row{
			unix:    sec,
			rfc3339: time.Unix(sec, 0).UTC().Format(time.RFC3339),
			o:       field(m, "open"),
			h:       field(m, "high"),
			l:       field(m, "low"),
			c:       field(m, "close"),
			v:       field(m, "volume"),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no candles returned")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].unix < out[j].unix })
	return out, nil
}

func writeCSV(path string, rows []row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{r.rfc3339, r.o, r.h, r.l, r.c, r.v}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// field stringifies a JSON value that may arrive as string or number.
func field(m map[string]any, k string) string {
	switch t := m[k].(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
