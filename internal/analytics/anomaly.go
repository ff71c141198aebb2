package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/sawpanic/binance-marketintel/internal/clock"
)

const (
	quoteStuffingMedium   = 500.0
	quoteStuffingHigh     = 750.0
	quoteStuffingCritical = 1000.0
	quoteStuffingFillMax  = 0.10

	icebergZThreshold      = 1.96
	icebergRefillMultiple  = 5.0

	flashCrashDepthLossPct   = 0.80
	flashCrashSpreadMultiple = 10.0
	flashCrashCancelRatio    = 0.90
)

// DetectQuoteStuffing flags a burst of updates with a low fill rate
// over the trailing window (spec.md §4.4).
func DetectQuoteStuffing(sym string, updatesPerSec, fillRate float64) *Anomaly {
	if updatesPerSec <= quoteStuffingMedium || fillRate >= quoteStuffingFillMax {
		return nil
	}

	var sev Severity
	switch {
	case updatesPerSec > quoteStuffingCritical:
		sev = SeverityCritical
	case updatesPerSec > quoteStuffingHigh:
		sev = SeverityHigh
	default:
		sev = SeverityMedium
	}

	return &Anomaly{
		ID:             clock.NewID(),
		Type:           AnomalyQuoteStuffing,
		Severity:       sev,
		Confidence:     math.Min(1, updatesPerSec/quoteStuffingCritical),
		Timestamp:      time.Now(),
		Description:    fmt.Sprintf("%s: %.0f updates/s with fill rate %.2f%%", sym, updatesPerSec, fillRate*100),
		Recommendation: "Widen execution tolerance or defer non-urgent orders until the update rate normalizes.",
	}
}

// DetectIceberg flags a price level whose refill rate is a
// statistically significant outlier against its own rolling history
// (spec.md §4.4).
func DetectIceberg(sym string, price, refillRate, historicalMean, historicalStdDev, historicalMedian float64) *Anomaly {
	if historicalStdDev <= 0 {
		return nil
	}
	z := (refillRate - historicalMean) / historicalStdDev
	if math.Abs(z) <= icebergZThreshold || refillRate <= historicalMedian*icebergRefillMultiple {
		return nil
	}

	return &Anomaly{
		ID:             clock.NewID(),
		Type:           AnomalyIceberg,
		Severity:       SeverityMedium,
		Confidence:     1 - twoSidedP(z),
		Timestamp:      time.Now(),
		AffectedLevels: []float64{price},
		Description:    fmt.Sprintf("%s: level %.8f refills at %.2f/min, z=%.2f against rolling history", sym, price, refillRate, z),
		Recommendation: "Treat displayed size at this level as a floor, not the true resting size.",
	}
}

// DetectFlashCrashRisk flags the all-factors-AND condition of a rapid
// depth collapse, spread blowout, and cancellation spike within the
// last second (spec.md §4.4). Any single factor missing suppresses
// the alert.
func DetectFlashCrashRisk(sym string, topDepthLossPct, spread, spread24hMean, cancellationRatio float64) *Anomaly {
	depthFactor := topDepthLossPct > flashCrashDepthLossPct
	spreadFactor := spread24hMean > 0 && spread > spread24hMean*flashCrashSpreadMultiple
	cancelFactor := cancellationRatio > flashCrashCancelRatio

	if !(depthFactor && spreadFactor && cancelFactor) {
		return nil
	}

	confidence := (minClamp(topDepthLossPct/1.0, 1) + minClamp(cancellationRatio, 1)) / 2

	return &Anomaly{
		ID:         clock.NewID(),
		Type:       AnomalyFlashCrash,
		Severity:   SeverityCritical,
		Confidence: confidence,
		Timestamp:  time.Now(),
		Description: fmt.Sprintf("%s: top-20 depth down %.0f%%, spread %.1fx 24h mean, cancel ratio %.0f%%",
			sym, topDepthLossPct*100, spread/floatMax(spread24hMean, 1e-12), cancellationRatio*100),
		Recommendation: "Halt passive quoting and reassess liquidity before routing new orders.",
	}
}

// twoSidedP returns the two-sided p-value of a standard-normal z-score.
func twoSidedP(z float64) float64 {
	return 2 * (1 - normalCDF(math.Abs(z)))
}

func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

func minClamp(v, max float64) float64 {
	if v > max {
		return max
	}
	if v < 0 {
		return 0
	}
	return v
}

func floatMax(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
