package analytics

import (
	"github.com/sawpanic/binance-marketintel/internal/apperrors"
	"github.com/sawpanic/binance-marketintel/internal/orderbook"
	"github.com/sawpanic/binance-marketintel/internal/persist"
)

const (
	minFlowWindowSeconds = 10
	maxFlowWindowSeconds = 300
)

// OrderFlowFromHistory computes the order-flow primitive (spec.md
// §4.4) over a window of book snapshots and trades already scoped to
// [windowSeconds] by the caller. Snapshots must be in ascending time
// order.
func OrderFlowFromHistory(sym string, windowSeconds int, snapshots []persist.BookSnapshotRecord, trades []persist.AggTrade) (OrderFlow, error) {
	if windowSeconds < minFlowWindowSeconds || windowSeconds > maxFlowWindowSeconds {
		return OrderFlow{}, apperrors.New(apperrors.InvalidInput, "order flow window must be in [10,300] seconds")
	}

	bidAdds, askAdds := countLevelAdds(snapshots)

	windowF := float64(windowSeconds)
	bidRate := float64(bidAdds) / windowF
	askRate := float64(askAdds) / windowF
	netFlow := bidRate - askRate

	var delta float64
	for _, t := range trades {
		qty, _ := t.Quantity.Float64()
		if t.BuyerMaker {
			delta -= qty // taker sell
		} else {
			delta += qty // taker buy
		}
	}

	return OrderFlow{
		Symbol:          sym,
		WindowSeconds:   windowSeconds,
		BidFlowRate:     bidRate,
		AskFlowRate:     askRate,
		NetFlow:         netFlow,
		Direction:       classifyFlow(bidRate, askRate),
		CumulativeDelta: delta,
	}, nil
}

// classifyFlow buckets the bid/ask flow-rate ratio into the five
// direction tiers (spec.md §4.4).
func classifyFlow(bidRate, askRate float64) FlowDirection {
	if askRate <= 0 {
		if bidRate > 0 {
			return StrongBuy
		}
		return Neutral
	}
	r := bidRate / askRate
	switch {
	case r > 2:
		return StrongBuy
	case r >= 1.2:
		return ModerateBuy
	case r >= 0.8:
		return Neutral
	case r >= 0.5:
		return ModerateSell
	default:
		return StrongSell
	}
}

// countLevelAdds counts new (previously absent) price levels appearing
// between consecutive snapshots, per side, across the whole window.
func countLevelAdds(snapshots []persist.BookSnapshotRecord) (bidAdds, askAdds int) {
	if len(snapshots) < 2 {
		return 0, 0
	}
	for i := 1; i < len(snapshots); i++ {
		bidAdds += newLevelCount(snapshots[i-1].Bids, snapshots[i].Bids)
		askAdds += newLevelCount(snapshots[i-1].Asks, snapshots[i].Asks)
	}
	return bidAdds, askAdds
}

func newLevelCount(prev, cur []orderbook.PriceLevel) int {
	prevPrices := make(map[string]struct{}, len(prev))
	for _, lv := range prev {
		prevPrices[lv.Price.String()] = struct{}{}
	}
	count := 0
	for _, lv := range cur {
		if _, ok := prevPrices[lv.Price.String()]; !ok {
			count++
		}
	}
	return count
}
