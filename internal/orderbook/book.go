package orderbook

import (
	"sort"

	"github.com/shopspring/decimal"
)

// side identifies which ladder a set of updates applies to.
type side int

const (
	sideBid side = iota
	sideAsk
)

// applyLevels mutates levels (sorted per side's ordering) by
// inserting, replacing, or removing entries from updates. A zero
// quantity removes the level; otherwise the level is inserted or its
// quantity replaced (spec.md §4.1 "Update application").
func applyLevels(levels []PriceLevel, updates []PriceLevel, s side) []PriceLevel {
	for _, u := range updates {
		idx := sort.Search(len(levels), func(i int) bool {
			if s == sideBid {
				return levels[i].Price.LessThanOrEqual(u.Price)
			}
			return levels[i].Price.GreaterThanOrEqual(u.Price)
		})

		found := idx < len(levels) && levels[idx].Price.Equal(u.Price)

		if u.Quantity.IsZero() || u.Quantity.IsNegative() {
			if found {
				levels = append(levels[:idx], levels[idx+1:]...)
			}
			continue
		}

		if found {
			levels[idx].Quantity = u.Quantity
			continue
		}

		levels = append(levels, PriceLevel{})
		copy(levels[idx+1:], levels[idx:])
		levels[idx] = PriceLevel{Price: u.Price, Quantity: u.Quantity}
	}
	return levels
}

// isSorted reports whether levels are strictly monotonic in the
// direction s requires, with no duplicate prices and all positive
// quantities (spec.md §3.2 "Book ordering").
func isSorted(levels []PriceLevel, s side) bool {
	for i, lv := range levels {
		if !lv.Quantity.IsPositive() {
			return false
		}
		if i == 0 {
			continue
		}
		prev := levels[i-1].Price
		if s == sideBid {
			if lv.Price.GreaterThanOrEqual(prev) {
				return false
			}
		} else {
			if lv.Price.LessThanOrEqual(prev) {
				return false
			}
		}
	}
	return true
}

// crossed reports whether the book violates the non-crossed invariant:
// whenever both sides are non-empty, best ask must exceed best bid
// (spec.md §3.2).
func crossed(bids, asks []PriceLevel) bool {
	if len(bids) == 0 || len(asks) == 0 {
		return false
	}
	return asks[0].Price.LessThanOrEqual(bids[0].Price)
}

// sortLevels sorts a freshly-decoded REST snapshot into the ladder's
// required order, dropping non-positive-quantity entries.
func sortLevels(levels []PriceLevel, s side) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for _, lv := range levels {
		if lv.Quantity.IsPositive() {
			out = append(out, lv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if s == sideBid {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

// depthWithCumulative builds the L2Level slice (top n) with running
// cumulative size for GetL2.
func depthWithCumulative(levels []PriceLevel, n int) []L2Level {
	if n > len(levels) {
		n = len(levels)
	}
	out := make([]L2Level, n)
	cum := decimal.Zero
	for i := 0; i < n; i++ {
		cum = cum.Add(levels[i].Quantity)
		out[i] = L2Level{Price: levels[i].Price, Quantity: levels[i].Quantity, Cumulative: cum}
	}
	return out
}
