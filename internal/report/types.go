// Package report assembles the cached, structured market report from
// the order-book engine, the persistence store, and the analytics
// primitives (spec.md §4.5). Section construction fans out in
// parallel and degrades gracefully: a failed section becomes a
// SectionError rather than aborting the whole report.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/sawpanic/binance-marketintel/internal/analytics"
	"github.com/sawpanic/binance-marketintel/internal/orderbook"
)

// ReportOptions customizes report generation (spec.md §3.1).
type ReportOptions struct {
	IncludeSections   []string // optional ordered set of section tags; empty means all
	VolumeWindowHours int      // [1,168]
	OrderbookLevels   int      // [1,100]
}

// CacheKey renders the composite cache key from options (spec.md
// §4.5 step 2): "{SYMBOL}:sections:{S};volume:{V};levels:{L}".
func (o ReportOptions) CacheKey(sym string) string {
	tags := append([]string(nil), o.IncludeSections...)
	sort.Strings(tags)
	s := "all"
	if len(tags) > 0 {
		s = strings.Join(tags, ",")
	}
	return strings.ToUpper(sym) + ":sections:" + s + ";volume:" + itoa(o.VolumeWindowHours) + ";levels:" + itoa(o.OrderbookLevels)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Section tags, in the fixed assembly order (spec.md §4.5 step 4).
const (
	SectionHeader        = "header"
	SectionPriceOverview  = "price_overview"
	SectionOrderBook      = "order_book"
	SectionLiquidity      = "liquidity"
	SectionMicrostructure = "microstructure"
	SectionAnomalies      = "anomalies"
	SectionHealth         = "health"
	SectionDataHealth     = "data_health"
)

// FixedSectionOrder is the order sections are assembled and rendered in.
var FixedSectionOrder = []string{
	SectionHeader, SectionPriceOverview, SectionOrderBook, SectionLiquidity,
	SectionMicrostructure, SectionAnomalies, SectionHealth, SectionDataHealth,
}

// bodySectionOrder is FixedSectionOrder without the always-present
// header, i.e. the tags include_sections can select among.
var bodySectionOrder = []string{
	SectionPriceOverview, SectionOrderBook, SectionLiquidity,
	SectionMicrostructure, SectionAnomalies, SectionHealth, SectionDataHealth,
}

// resolveSections filters bodySectionOrder down to the requested
// tags, preserving the fixed order (spec.md §4.5 step 5). An empty or
// nil tags selects every body section.
func resolveSections(tags []string) []string {
	if len(tags) == 0 {
		return append([]string(nil), bodySectionOrder...)
	}
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	var out []string
	for _, tag := range bodySectionOrder {
		if want[tag] {
			out = append(out, tag)
		}
	}
	return out
}

// includedSet is resolveSections' result as a membership set, for
// O(1) per-section filtering of an already-built MarketReport.
func includedSet(sections []string) map[string]bool {
	out := make(map[string]bool, len(sections))
	for _, s := range sections {
		out[s] = true
	}
	return out
}

// SectionError records a single section's failure without aborting
// the report.
type SectionError struct {
	Section string
	Kind    string
	Message string
}

// PriceOverview is the 24h-ticker-derived section.
type PriceOverview struct {
	LastPrice  string
	PriceChangePct float64
	High24h    string
	Low24h     string
	Volume24h  string
}

// OrderBookSection is the L1/L2 book section.
type OrderBookSection struct {
	L1    orderbook.L1Metrics
	L2    orderbook.L2Depth
}

// LiquiditySection holds the volume profile and liquidity vacuums.
type LiquiditySection struct {
	Profile analytics.VolumeProfile
	Vacuums []analytics.LiquidityVacuum
}

// MicrostructureSection holds the order-flow metrics. Absorption
// events are reported under AnomaliesSection (spec.md §9).
type MicrostructureSection struct {
	Flow analytics.OrderFlow
}

// AnomaliesSection holds detected anomalies.
type AnomaliesSection struct {
	Anomalies []analytics.Anomaly
}

// HealthSection holds the microstructure health composite.
type HealthSection struct {
	Health analytics.MicrostructureHealth
}

// DataHealthSection reports pipeline connectivity/staleness.
type DataHealthSection struct {
	Status orderbook.HealthStatus
}

// MarketReport is the fully assembled report (spec.md §3.1).
type MarketReport struct {
	Symbol           string
	GeneratedAt      time.Time
	GenerationTimeMS int64
	FromCache        bool

	// Sections is the resolved, include_sections-filtered list of
	// body tags this report carries, in FixedSectionOrder. Render
	// uses it to decide what to print at all, independent of whether
	// a given build happened to succeed or fail.
	Sections []string

	Header        string
	PriceOverview *PriceOverview
	OrderBook     *OrderBookSection
	Liquidity     *LiquiditySection
	Microstructure *MicrostructureSection
	Anomalies     *AnomaliesSection
	Health        *HealthSection
	DataHealth    *DataHealthSection

	Errors []SectionError
}
