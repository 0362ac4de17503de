// FILE: broker_paper.go
// Package main – In-memory paper broker (no external dependencies).
//
// This broker simulates execution at the latest known mark. The live loop
// syncs the mark from the feed each tick (SetPrice); orders here never
// touch an exchange.
//
// Methods:
//   • Name() string
//   • SetPrice(px)                                 – sync mark from the feed
//   • GetNowPrice(ctx, product) (float64, error)
//   • PlaceMarketQuote(ctx, product, side, quoteUSD) (*PlacedOrder, error)
//   • PlaceMarketBase(ctx, product, side, baseSize) (*PlacedOrder, error)
package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaperBroker keeps a single mutable price used to simulate fills.
type PaperBroker struct {
	price      float64
	feeRatePct float64
	mu         sync.Mutex
}

func NewPaperBroker(feeRatePct float64) *PaperBroker {
	return &PaperBroker{feeRatePct: feeRatePct}
}

func (p *PaperBroker) Name() string { return "paper" }

// SetPrice updates the simulated mark.
func (p *PaperBroker) SetPrice(px float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if px > 0 {
		p.price = px
	}
}

func (p *PaperBroker) GetNowPrice(ctx context.Context, product string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.price <= 0 {
		return 0, errors.New("paper broker has no mark yet (feed not synced)")
	}
	return p.price, nil
}

// PlaceMarketQuote simulates a market order by converting quoteUSD at the mark.
func (p *PaperBroker) PlaceMarketQuote(ctx context.Context, product string, side OrderSide, quoteUSD float64) (*PlacedOrder, error) {
	if quoteUSD <= 0 {
		return nil, errors.New("quoteUSD must be > 0")
	}
	price, err := p.GetNowPrice(ctx, product)
	if err != nil {
		return nil, err
	}
	base := quoteUSD / price
	return &PlacedOrder{
		ID:            uuid.New().String(),
		ProductID:     product,
		Side:          side,
		Price:         price,
		BaseSize:      base,
		QuoteSpent:    quoteUSD,
		CommissionUSD: quoteUSD * (p.feeRatePct / 100.0),
		CreateTime:    time.Now().UTC(),
	}, nil
}

// PlaceMarketBase simulates a market order for a fixed base size (used for
// full-lot exits).
func (p *PaperBroker) PlaceMarketBase(ctx context.Context, product string, side OrderSide, baseSize float64) (*PlacedOrder, error) {
	if baseSize <= 0 {
		return nil, errors.New("baseSize must be > 0")
	}
	price, err := p.GetNowPrice(ctx, product)
	if err != nil {
		return nil, err
	}
	quote := baseSize * price
	return &PlacedOrder{
		ID:            uuid.New().String(),
		ProductID:     product,
		Side:          side,
		Price:         price,
		BaseSize:      baseSize,
		QuoteSpent:    quote,
		CommissionUSD: quote * (p.feeRatePct / 100.0),
		CreateTime:    time.Now().UTC(),
	}, nil
}
