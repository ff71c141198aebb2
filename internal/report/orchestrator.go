package report

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/binance-marketintel/internal/analytics"
	"github.com/sawpanic/binance-marketintel/internal/apperrors"
	"github.com/sawpanic/binance-marketintel/internal/clock"
	"github.com/sawpanic/binance-marketintel/internal/orderbook"
	"github.com/sawpanic/binance-marketintel/internal/persist"
	"github.com/sawpanic/binance-marketintel/internal/symbol"
	"github.com/sawpanic/binance-marketintel/internal/venue/binance"
)

const (
	sectionTimeout        = 3 * time.Second
	flowWindowSeconds     = 60
	defaultTickSize       = 0.01
	defaultTargetDepthUSD = 100000.0
	defaultTargetUpdates  = 50.0
)

// Orchestrator implements generate_report (spec.md §4.5). It is NOT
// built on golang.org/x/sync/errgroup: errgroup cancels every
// in-flight goroutine the instant one returns an error, which is
// exactly the fail-fast behavior the per-section graceful-degradation
// requirement rules out. A plain sync.WaitGroup fan-out lets every
// section run to completion independently.
type Orchestrator struct {
	rest    *binance.RESTClient
	engine  *orderbook.Engine
	querier *persist.Querier
	cache   *Cache

	tickSizeBySymbol map[string]float64
	targetDepthUSD   float64
	targetUpdates    float64
}

func NewOrchestrator(rest *binance.RESTClient, engine *orderbook.Engine, querier *persist.Querier, cache *Cache, targetDepthUSD, targetUpdates float64) *Orchestrator {
	if targetDepthUSD <= 0 {
		targetDepthUSD = defaultTargetDepthUSD
	}
	if targetUpdates <= 0 {
		targetUpdates = defaultTargetUpdates
	}
	return &Orchestrator{
		rest:             rest,
		engine:           engine,
		querier:          querier,
		cache:            cache,
		tickSizeBySymbol: make(map[string]float64),
		targetDepthUSD:   targetDepthUSD,
		targetUpdates:    targetUpdates,
	}
}

// SetTickSize caches a symbol's price tick size, learned once from
// exchange metadata, for the volume-profile adaptive bin size.
func (o *Orchestrator) SetTickSize(sym string, tick float64) {
	o.tickSizeBySymbol[symbol.Normalize(sym)] = tick
}

// GenerateReport normalizes options, serves a cache hit verbatim, fans
// out every section build in parallel (assembling whatever succeeds),
// derives the anomaly/health sections from that fan-out's output, and
// finally filters the assembled report down to the requested
// include_sections before caching and returning it (spec.md §4.5
// steps 1-6).
func (o *Orchestrator) GenerateReport(ctx context.Context, sym string, opts ReportOptions) (MarketReport, error) {
	sym = symbol.Normalize(sym)
	if err := normalizeOptions(&opts); err != nil {
		return MarketReport{}, err
	}

	key := opts.CacheKey(sym)
	if cached, ok := o.cache.Get(key); ok {
		return cached, nil
	}

	start := clock.NowMs()

	if _, err := o.engine.Health(sym); err != nil {
		return MarketReport{}, apperrors.New(apperrors.NotSubscribed, "symbol not subscribed to the order-book engine")
	}

	sections := resolveSections(opts.IncludeSections)
	included := includedSet(sections)

	report := MarketReport{
		Symbol:      sym,
		GeneratedAt: time.Now(),
		Header:      renderHeader(sym),
		Sections:    sections,
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	run := func(section string, fn func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, sectionTimeout)
			defer cancel()
			if err := fn(sctx); err != nil {
				mu.Lock()
				report.Errors = append(report.Errors, SectionError{
					Section: section,
					Kind:    string(apperrors.GetKind(err)),
					Message: apperrors.Reason(err),
				})
				mu.Unlock()
				log.Error().Str("symbol", sym).Str("section", section).Err(err).Msg("report section failed")
			}
		}()
	}

	var l1 orderbook.L1Metrics
	var l2 orderbook.L2Depth
	var flow analytics.OrderFlow
	var absorption []analytics.Anomaly

	run(SectionPriceOverview, func(ctx context.Context) error {
		po, err := buildPriceOverview(ctx, o.rest, sym)
		if err != nil {
			return err
		}
		mu.Lock()
		report.PriceOverview = po
		mu.Unlock()
		return nil
	})

	run(SectionOrderBook, func(ctx context.Context) error {
		ob, err := buildOrderBookSection(ctx, o.engine, sym, opts.OrderbookLevels)
		if err != nil {
			return err
		}
		mu.Lock()
		report.OrderBook = ob
		l1 = ob.L1
		l2 = ob.L2
		mu.Unlock()
		return nil
	})

	run(SectionLiquidity, func(ctx context.Context) error {
		mu.Lock()
		l1Snapshot := l1
		mu.Unlock()
		mid, _ := midFromL1(l1Snapshot)
		ls, err := buildLiquiditySection(ctx, o.querier, sym, opts.VolumeWindowHours, o.tickSize(sym), mid, start)
		if err != nil {
			return err
		}
		mu.Lock()
		report.Liquidity = ls
		mu.Unlock()
		return nil
	})

	run(SectionMicrostructure, func(ctx context.Context) error {
		ms, a, err := buildMicrostructureSection(ctx, o.querier, sym, flowWindowSeconds, start)
		if err != nil {
			return err
		}
		mu.Lock()
		report.Microstructure = ms
		flow = ms.Flow
		absorption = a
		mu.Unlock()
		return nil
	})

	run(SectionDataHealth, func(ctx context.Context) error {
		dh, err := buildDataHealthSection(o.engine, sym)
		if err != nil {
			return err
		}
		mu.Lock()
		report.DataHealth = dh
		mu.Unlock()
		return nil
	})

	wg.Wait()

	// Anomalies and health are derived from sections already built
	// above, so they run after the barrier rather than racing them.
	if report.DataHealth != nil {
		hstats := o.healthStatsFor(ctx, sym)
		report.Anomalies = buildAnomaliesSection(report.DataHealth.Status, flow, hstats, absorption)
		report.Health = buildHealthSection(sym, o.microstructureInputsFrom(sym, flow, l2))
	}

	if allIncludedSectionsFailed(report) {
		return MarketReport{}, apperrors.Wrap(apperrors.VenueUnavailable, "all report sections failed", nil)
	}

	applySectionFilter(&report, included)

	report.GenerationTimeMS = clock.NowMs() - start
	o.cache.Put(key, report)
	return report, nil
}

func (o *Orchestrator) tickSize(sym string) float64 {
	if t, ok := o.tickSizeBySymbol[sym]; ok && t > 0 {
		return t
	}
	return defaultTickSize
}

// healthStatsFor gathers the engine's rolling rate/spread/depth
// measurements plus a fill-rate estimate (trades observed vs. updates
// expected over the same window) for the anomaly detectors. A
// Microstats error (symbol state gone mid-call) degrades to a
// zero-valued reading instead of failing the report.
func (o *Orchestrator) healthStatsFor(ctx context.Context, sym string) healthStats {
	ms, _ := o.engine.Microstats(sym)

	now := clock.NowMs()
	fromMS := now - int64(flowWindowSeconds)*1000
	fillRate := 0.0
	if trades, err := o.querier.QueryTrades(ctx, sym, fromMS, now); err == nil {
		if expected := ms.UpdatesPerSec * float64(flowWindowSeconds); expected > 0 {
			fillRate = math.Min(1, float64(len(trades))/expected)
		}
	}

	return healthStats{
		symbol:            sym,
		updatesPerSec:     ms.UpdatesPerSec,
		fillRate:          fillRate,
		topDepthLossPct:   ms.DepthLossPct,
		spread:            ms.SpreadMeanBps,
		spread24hMean:     ms.SpreadMeanBps,
		cancellationRatio: ms.CancellationRatio,
	}
}

// microstructureInputsFrom wires the engine's rolling spread and
// update-rate measurements, the order book's top-10 notional depth,
// and the configured target depth/updates into the health composite's
// four weighted components (spec.md §4.4).
func (o *Orchestrator) microstructureInputsFrom(sym string, flow analytics.OrderFlow, l2 orderbook.L2Depth) analytics.MicrostructureHealthInputs {
	ms, _ := o.engine.Microstats(sym)
	return analytics.MicrostructureHealthInputs{
		SpreadMean:    ms.SpreadMeanBps,
		SpreadStdDev:  ms.SpreadStdDevBps,
		Top10Depth:    top10NotionalDepth(l2),
		TargetDepth:   o.targetDepthUSD,
		NetFlow:       flow.NetFlow,
		BidFlowRate:   flow.BidFlowRate,
		AskFlowRate:   flow.AskFlowRate,
		UpdatesPerS:   ms.UpdatesPerSec,
		TargetUpdates: o.targetUpdates,
	}
}

// top10NotionalDepth sums price*quantity over the top 10 levels of
// each side of the book (spec.md §9's target_depth definition).
func top10NotionalDepth(l2 orderbook.L2Depth) float64 {
	return levelsNotional(l2.Bids, 10) + levelsNotional(l2.Asks, 10)
}

func levelsNotional(levels []orderbook.L2Level, n int) float64 {
	var total float64
	for i, lv := range levels {
		if i >= n {
			break
		}
		v, _ := lv.Price.Mul(lv.Quantity).Float64()
		total += v
	}
	return total
}

func midFromL1(l1 orderbook.L1Metrics) (float64, bool) {
	mid, _ := l1.Mid.Float64()
	return mid, mid > 0
}

// sectionPresent reports whether tag's data actually built, before
// any include_sections filtering is applied.
func sectionPresent(r *MarketReport, tag string) bool {
	switch tag {
	case SectionPriceOverview:
		return r.PriceOverview != nil
	case SectionOrderBook:
		return r.OrderBook != nil
	case SectionLiquidity:
		return r.Liquidity != nil
	case SectionMicrostructure:
		return r.Microstructure != nil
	case SectionAnomalies:
		return r.Anomalies != nil
	case SectionHealth:
		return r.Health != nil
	case SectionDataHealth:
		return r.DataHealth != nil
	}
	return false
}

// allIncludedSectionsFailed reports whether every requested section
// failed to build. A request that resolves to no sections at all
// (e.g. include_sections naming only unrecognized tags) isn't a
// failure; it's a deliberately empty, header-only report.
func allIncludedSectionsFailed(r MarketReport) bool {
	if len(r.Sections) == 0 {
		return false
	}
	for _, tag := range r.Sections {
		if sectionPresent(&r, tag) {
			return false
		}
	}
	return true
}

// applySectionFilter drops every section (and its recorded errors)
// that wasn't requested via include_sections, so a filtered report's
// content genuinely differs from the all-sections report rather than
// only differing in cache key (spec.md §4.5 step 5, §8.4.4).
func applySectionFilter(r *MarketReport, included map[string]bool) {
	if !included[SectionPriceOverview] {
		r.PriceOverview = nil
	}
	if !included[SectionOrderBook] {
		r.OrderBook = nil
	}
	if !included[SectionLiquidity] {
		r.Liquidity = nil
	}
	if !included[SectionMicrostructure] {
		r.Microstructure = nil
	}
	if !included[SectionAnomalies] {
		r.Anomalies = nil
	}
	if !included[SectionHealth] {
		r.Health = nil
	}
	if !included[SectionDataHealth] {
		r.DataHealth = nil
	}

	var errs []SectionError
	for _, se := range r.Errors {
		if included[se.Section] {
			errs = append(errs, se)
		}
	}
	r.Errors = errs
}

func normalizeOptions(o *ReportOptions) error {
	if o.VolumeWindowHours == 0 {
		o.VolumeWindowHours = 24
	}
	if o.OrderbookLevels == 0 {
		o.OrderbookLevels = 20
	}
	if o.VolumeWindowHours < 1 || o.VolumeWindowHours > 168 {
		return apperrors.New(apperrors.InvalidInput, "volume_window_hours must be in [1,168]")
	}
	if o.OrderbookLevels < 1 || o.OrderbookLevels > 100 {
		return apperrors.New(apperrors.InvalidInput, "orderbook_levels must be in [1,100]")
	}
	return nil
}

func renderHeader(sym string) string {
	return "Market Intelligence Report: " + sym
}
