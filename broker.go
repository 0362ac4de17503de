// FILE: broker.go
// Package main – Execution abstraction for resolved trade intents.
//
// The pipeline only ever produces intents; this interface is the narrow
// surface that turns an accepted intent into a fill record. The shipped
// implementation is the paper broker (broker_paper.go); live order
// routing is out of scope for this system.
//
// Types:
//   • OrderSide, PlacedOrder
//   • Broker interface: price lookup, market order by quote USD
package main

import (
	"context"
	"time"
)

// OrderSide is the side of a trade.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// PlacedOrder is a normalized view of a filled market order.
type PlacedOrder struct {
	ID            string
	ProductID     string
	Side          OrderSide
	Price         float64 // average/assumed execution price
	BaseSize      float64 // filled base (e.g., BTC)
	QuoteSpent    float64 // spent quote (e.g., USD)
	CommissionUSD float64
	CreateTime    time.Time
}

// Broker is the minimal surface the orchestrator needs to settle intents.
type Broker interface {
	Name() string
	GetNowPrice(ctx context.Context, product string) (float64, error)
	PlaceMarketQuote(ctx context.Context, product string, side OrderSide, quoteUSD float64) (*PlacedOrder, error)
	PlaceMarketBase(ctx context.Context, product string, side OrderSide, baseSize float64) (*PlacedOrder, error)
}
