package orderbook

import (
	"github.com/shopspring/decimal"
)

// PriceLevel is one side of the book at one price (spec.md §3.1).
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBook is a point-in-time snapshot of one symbol's ladders.
// Bids are sorted strictly descending by price, asks strictly
// ascending; neither side has duplicate prices or non-positive
// quantities (spec.md §3.2).
type OrderBook struct {
	Symbol       string
	Bids         []PriceLevel
	Asks         []PriceLevel
	LastUpdateID uint64
	TimestampMS  int64
}

// BestBid returns the highest bid, or the zero value and false if the
// side is empty.
func (b OrderBook) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask, or the zero value and false if the
// side is empty.
func (b OrderBook) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// L1Metrics is the top-of-book summary computed by GetL1.
type L1Metrics struct {
	Symbol          string
	BestBid         decimal.Decimal
	BestAsk         decimal.Decimal
	BidSize         decimal.Decimal
	AskSize         decimal.Decimal
	Mid             decimal.Decimal
	MicroPrice      decimal.Decimal
	SpreadBps       float64
	SpreadMilliBps  float64
	TimestampMS     int64
}

// L2Level is one depth level with its cumulative size from the top of
// book down to and including this level.
type L2Level struct {
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	Cumulative decimal.Decimal
}

// L2Depth is the top-depth levels per side with cumulative size.
type L2Depth struct {
	Symbol       string
	Bids         []L2Level
	Asks         []L2Level
	LastUpdateID uint64
	TimestampMS  int64
}

// HealthStatus reports the per-symbol connection and staleness state
// (spec.md §4.1).
type HealthStatus struct {
	Connected        bool
	WSConnected      bool
	LastUpdateAgeMS  int64
	NeedsResync      bool
	DroppedEvents    int64
}

// State names the lifecycle states of a symbol's book (spec.md §4.1).
// The engine does not store a State value; it tracks the same
// lifecycle through symbolState's wsConnected and needsResync flags.
type State string

const (
	StateInitializing State = "initializing"
	StateLive          State = "live"
	StateNeedsResync    State = "needs_resync"
	StateDisconnected   State = "disconnected"
)
