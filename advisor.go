// FILE: advisor.go
// Package main – Advisory confidence gate for discretionary entries.
//
// Discretionary swing entries (never DCA, never stop exits) are run past an
// Advisor before the guardrails see them. The gate approves only when the
// advisor approves AND its confidence clears the configured floor; any
// error or timeout from the advisor is a rejection (fail-closed). The
// rationale text is carried onto the Decision audit record either way; it
// is display-only.
//
// Implementations:
//   • HeuristicAdvisor – deterministic RSI rule set, the default
//   • HTTPAdvisor      – JSON POST to an external service (ADVISOR_URL)

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AdvisoryContext is the market context handed to the advisor.
type AdvisoryContext struct {
	ProductID string  `json:"product_id"`
	Regime    Regime  `json:"regime"`
	RSI       float64 `json:"rsi"`
	ATR       float64 `json:"atr"`
	LastClose float64 `json:"last_close"`
}

// AdvisoryVerdict is the advisor's answer.
type AdvisoryVerdict struct {
	Approve    bool    `json:"approve"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Advisor is the capability interface; any implementation (rule heuristic,
// remote model, test stub) satisfies the same contract.
type Advisor interface {
	Name() string
	Evaluate(ctx context.Context, ac AdvisoryContext) (AdvisoryVerdict, error)
}

// consultAdvisor runs the advisor under a bounded deadline and applies the
// confidence floor. approved is false on any error (fail-closed); the
// verdict's rationale is still returned when available so the audit record
// can carry it.
func consultAdvisor(ctx context.Context, adv Advisor, ac AdvisoryContext, minConf float64, timeout time.Duration) (bool, AdvisoryVerdict, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	v, err := adv.Evaluate(cctx, ac)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return false, v, fmt.Errorf("%w: %s", ErrAdvisoryTimeout, adv.Name())
		}
		return false, v, fmt.Errorf("%w: %s: %v", ErrAdvisory, adv.Name(), err)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return false, v, fmt.Errorf("%w: %s: confidence %.4f out of range", ErrAdvisory, adv.Name(), v.Confidence)
	}
	return v.Approve && v.Confidence >= minConf, v, nil
}

// ---- Heuristic advisor (default) ----

// HeuristicAdvisor approves dip entries on oversold RSI and rejects
// everything else. Deterministic; useful both as the default capability
// and as a stand-in when no remote advisor is configured.
type HeuristicAdvisor struct{}

func (HeuristicAdvisor) Name() string { return "heuristic" }

func (HeuristicAdvisor) Evaluate(_ context.Context, ac AdvisoryContext) (AdvisoryVerdict, error) {
	switch {
	case ac.RSI < 32:
		return AdvisoryVerdict{
			Approve:    true,
			Confidence: 0.72,
			Rationale:  fmt.Sprintf("dip: RSI %.1f oversold in %s regime", ac.RSI, ac.Regime),
		}, nil
	case ac.RSI > 70:
		return AdvisoryVerdict{
			Approve:    false,
			Confidence: 0.68,
			Rationale:  fmt.Sprintf("peak: RSI %.1f overbought, no fresh entry", ac.RSI),
		}, nil
	default:
		return AdvisoryVerdict{
			Approve:    false,
			Confidence: 0.55,
			Rationale:  fmt.Sprintf("consolidation: RSI %.1f neutral, waiting", ac.RSI),
		}, nil
	}
}

// ---- HTTP advisor ----

// HTTPAdvisor POSTs the context to an external endpoint and expects an
// AdvisoryVerdict JSON body back. The caller owns the deadline via ctx.
type HTTPAdvisor struct {
	URL    string
	Client *http.Client
}

func NewHTTPAdvisor(url string) *HTTPAdvisor {
	return &HTTPAdvisor{URL: url, Client: http.DefaultClient}
}

func (a *HTTPAdvisor) Name() string { return "http" }

func (a *HTTPAdvisor) Evaluate(ctx context.Context, ac AdvisoryContext) (AdvisoryVerdict, error) {
	var v AdvisoryVerdict
	bs, err := json.Marshal(ac)
	if err != nil {
		return v, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", a.URL, bytes.NewReader(bs))
	if err != nil {
		return v, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.Client.Do(req)
	if err != nil {
		return v, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return v, fmt.Errorf("advisor %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return v, err
	}
	return v, nil
}
