package report

import (
	"context"
	"fmt"

	"github.com/sawpanic/binance-marketintel/internal/analytics"
	"github.com/sawpanic/binance-marketintel/internal/apperrors"
	"github.com/sawpanic/binance-marketintel/internal/orderbook"
	"github.com/sawpanic/binance-marketintel/internal/persist"
	"github.com/sawpanic/binance-marketintel/internal/venue/binance"
)

// buildPriceOverview fetches the 24h ticker via REST (spec.md §4.5
// step 3).
func buildPriceOverview(ctx context.Context, rest *binance.RESTClient, sym string) (*PriceOverview, error) {
	t, err := rest.Ticker24hr(ctx, sym)
	if err != nil {
		return nil, err
	}
	pct, _ := parseFloat(t.PriceChangePercent)
	return &PriceOverview{
		LastPrice:      t.LastPrice,
		PriceChangePct: pct,
		High24h:        t.HighPrice,
		Low24h:         t.LowPrice,
		Volume24h:      t.Volume,
	}, nil
}

// buildOrderBookSection reads L1/L2 from the live engine.
func buildOrderBookSection(ctx context.Context, engine *orderbook.Engine, sym string, levels int) (*OrderBookSection, error) {
	l1, err := engine.GetL1(ctx, sym)
	if err != nil {
		return nil, err
	}
	l2, err := engine.GetL2(ctx, sym, levels)
	if err != nil {
		return nil, err
	}
	return &OrderBookSection{L1: l1, L2: l2}, nil
}

// buildLiquiditySection computes the volume profile and liquidity
// vacuums over the requested window.
func buildLiquiditySection(ctx context.Context, querier *persist.Querier, sym string, windowHours int, tickSize float64, mid float64, nowMS int64) (*LiquiditySection, error) {
	fromMS := nowMS - int64(windowHours)*3600*1000
	trades, err := querier.QueryTrades(ctx, sym, fromMS, nowMS)
	if err != nil {
		return nil, err
	}

	profile, err := analytics.VolumeProfileFromTrades(sym, windowHours, tickSize, trades)
	if err != nil {
		return nil, err
	}

	vacuums := analytics.LiquidityVacuumsFromProfile(profile, mid)
	return &LiquiditySection{Profile: profile, Vacuums: vacuums}, nil
}

// buildMicrostructureSection computes order flow over a fixed
// default window, and the absorption events detected over the same
// recent snapshots (reported under AnomaliesSection, not here).
func buildMicrostructureSection(ctx context.Context, querier *persist.Querier, sym string, windowSeconds int, nowMS int64) (*MicrostructureSection, []analytics.Anomaly, error) {
	fromMS := nowMS - int64(windowSeconds)*1000
	snapshots, err := querier.QuerySnapshots(ctx, sym, fromMS, nowMS)
	if err != nil {
		return nil, nil, err
	}
	trades, err := querier.QueryTrades(ctx, sym, fromMS, nowMS)
	if err != nil {
		return nil, nil, err
	}

	flow, err := analytics.OrderFlowFromHistory(sym, windowSeconds, snapshots, trades)
	if err != nil {
		return nil, nil, err
	}

	absorption := analytics.AbsorptionAnomalies(sym, analytics.AbsorptionEventsFromHistory(snapshots))
	return &MicrostructureSection{Flow: flow}, absorption, nil
}

// buildAnomaliesSection runs the quote-stuffing and flash-crash
// detectors over recent book/update statistics and folds in any
// absorption events already detected alongside the microstructure
// section. It does not run iceberg detection, so the section never
// contains iceberg anomalies.
func buildAnomaliesSection(health orderbook.HealthStatus, flow analytics.OrderFlow, hstats healthStats, absorption []analytics.Anomaly) *AnomaliesSection {
	var anomalies []analytics.Anomaly
	anomalies = append(anomalies, absorption...)

	if a := analytics.DetectQuoteStuffing(hstats.symbol, hstats.updatesPerSec, hstats.fillRate); a != nil {
		anomalies = append(anomalies, *a)
	}
	if a := analytics.DetectFlashCrashRisk(hstats.symbol, hstats.topDepthLossPct, hstats.spread, hstats.spread24hMean, hstats.cancellationRatio); a != nil {
		anomalies = append(anomalies, *a)
	}

	return &AnomaliesSection{Anomalies: anomalies}
}

// buildHealthSection computes the microstructure-health composite.
func buildHealthSection(sym string, in analytics.MicrostructureHealthInputs) *HealthSection {
	return &HealthSection{Health: analytics.ComputeMicrostructureHealth(sym, in)}
}

// buildDataHealthSection reads engine connectivity/staleness.
func buildDataHealthSection(engine *orderbook.Engine, sym string) (*DataHealthSection, error) {
	h, err := engine.Health(sym)
	if err != nil {
		return nil, err
	}
	return &DataHealthSection{Status: h}, nil
}

// healthStats carries the small set of rolling statistics the
// anomaly and health sections need, computed by the orchestrator after
// the fan-out completes, from the engine's microstats and recent trades.
type healthStats struct {
	symbol            string
	updatesPerSec     float64
	fillRate          float64
	topDepthLossPct   float64
	spread            float64
	spread24hMean     float64
	cancellationRatio float64
}

func parseFloat(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.VenueUnavailable, "parse venue numeric field", err)
	}
	return f, nil
}
