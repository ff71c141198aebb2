package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/sawpanic/binance-marketintel/internal/clock"
	"github.com/sawpanic/binance-marketintel/internal/persist"
)

const (
	absorptionSizeMultiple = 5.0
	minRefillCount         = 3 // K: refills required within the window
)

// AbsorptionEventsFromHistory detects levels whose size is at least
// 5x the median level size and which refill at least K times after
// being partially consumed across the snapshot window (spec.md §4.4).
func AbsorptionEventsFromHistory(snapshots []persist.BookSnapshotRecord) []AbsorptionEvent {
	if len(snapshots) < 3 {
		return nil
	}

	medianBid := medianLevelSize(snapshots, true)
	medianAsk := medianLevelSize(snapshots, false)

	bidRefills := trackRefills(snapshots, true, medianBid)
	askRefills := trackRefills(snapshots, false, medianAsk)

	var out []AbsorptionEvent
	for price, count := range bidRefills {
		if count >= minRefillCount {
			out = append(out, AbsorptionEvent{Price: price, RefillCount: count, Direction: Accumulation})
		}
	}
	for price, count := range askRefills {
		if count >= minRefillCount {
			out = append(out, AbsorptionEvent{Price: price, RefillCount: count, Direction: Distribution})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

// AbsorptionAnomalies converts detected absorption events into the
// anomaly record shape, for the report's market_anomalies section
// (spec.md §9's binding resolution: absorption is reported alongside
// the other anomaly types rather than as a standalone order-flow
// metric, since {id, type, severity, confidence, ...} fits the
// detector output better than a numeric-only section).
func AbsorptionAnomalies(sym string, events []AbsorptionEvent) []Anomaly {
	out := make([]Anomaly, 0, len(events))
	for _, e := range events {
		sev := SeverityMedium
		if e.RefillCount >= minRefillCount*2 {
			sev = SeverityHigh
		}
		out = append(out, Anomaly{
			ID:             clock.NewID(),
			Type:           AnomalyAbsorption,
			Severity:       sev,
			Confidence:     minClamp(float64(e.RefillCount)/float64(minRefillCount*2), 1),
			Timestamp:      time.Now(),
			AffectedLevels: []float64{e.Price},
			Description:    fmt.Sprintf("%s: level %.8f refilled %d times (%s)", sym, e.Price, e.RefillCount, e.Direction),
			Recommendation: "Treat this level as actively defended; expect renewed liquidity after each sweep.",
		})
	}
	return out
}

// trackRefills follows each large price level's quantity across
// consecutive snapshots, counting "refill" transitions: a strict
// decrease (partial consumption) immediately followed by a strict
// increase back toward the prior size.
func trackRefills(snapshots []persist.BookSnapshotRecord, bidSide bool, median float64) map[float64]int {
	refills := make(map[float64]int)
	if median <= 0 {
		return refills
	}
	threshold := median * absorptionSizeMultiple

	prevQty := make(map[float64]float64)
	consumedSince := make(map[float64]bool)

	for _, snap := range snapshots {
		levels := snap.Asks
		if bidSide {
			levels = snap.Bids
		}
		seen := make(map[float64]struct{}, len(levels))
		for _, lv := range levels {
			price, _ := lv.Price.Float64()
			qty, _ := lv.Quantity.Float64()
			seen[price] = struct{}{}

			if qty < threshold {
				delete(prevQty, price)
				delete(consumedSince, price)
				continue
			}

			prior, existed := prevQty[price]
			switch {
			case !existed:
				// first time seen above threshold
			case qty < prior:
				consumedSince[price] = true
			case qty > prior && consumedSince[price]:
				refills[price]++
				consumedSince[price] = false
			}
			prevQty[price] = qty
		}
		for price := range prevQty {
			if _, ok := seen[price]; !ok {
				delete(prevQty, price)
				delete(consumedSince, price)
			}
		}
	}
	return refills
}

func medianLevelSize(snapshots []persist.BookSnapshotRecord, bidSide bool) float64 {
	var sizes []float64
	for _, snap := range snapshots {
		levels := snap.Asks
		if bidSide {
			levels = snap.Bids
		}
		for _, lv := range levels {
			q, _ := lv.Quantity.Float64()
			sizes = append(sizes, q)
		}
	}
	if len(sizes) == 0 {
		return 0
	}
	sort.Float64s(sizes)
	mid := len(sizes) / 2
	if len(sizes)%2 == 0 {
		return (sizes[mid-1] + sizes[mid]) / 2
	}
	return sizes[mid]
}
