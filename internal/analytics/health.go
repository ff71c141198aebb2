package analytics

import "math"

const (
	weightSpreadStability = 0.25
	weightLiquidityDepth  = 0.35
	weightFlowBalance     = 0.25
	weightUpdateRate      = 0.15

	healthExcellentComposite = 80.0
	healthExcellentMinComp   = 50.0
	healthGoodComposite      = 60.0
	healthFairComposite      = 40.0
	healthPoorComposite      = 20.0
)

// MicrostructureHealthInputs carries the raw measurements the
// composite score is derived from (spec.md §4.4).
type MicrostructureHealthInputs struct {
	SpreadMean   float64
	SpreadStdDev float64
	Top10Depth   float64
	TargetDepth  float64
	NetFlow      float64
	BidFlowRate  float64
	AskFlowRate  float64
	UpdatesPerS  float64
	TargetUpdates float64
}

// ComputeMicrostructureHealth derives the four weighted components
// and the composite score, then assigns the monotonic label (spec.md
// §4.4, invariant 7).
func ComputeMicrostructureHealth(sym string, in MicrostructureHealthInputs) MicrostructureHealth {
	spreadStability := 0.0
	if in.SpreadMean > 0 {
		spreadStability = 100 * math.Max(0, 1-in.SpreadStdDev/in.SpreadMean)
	}

	liquidityDepth := 0.0
	if in.TargetDepth > 0 {
		liquidityDepth = 100 * math.Min(1, in.Top10Depth/in.TargetDepth)
	}

	flowTotal := in.BidFlowRate + in.AskFlowRate
	flowBalance := 100.0
	if flowTotal > 0 {
		flowBalance = 100 * (1 - math.Abs(in.NetFlow)/flowTotal)
	}

	updateRate := 0.0
	if in.TargetUpdates > 0 {
		updateRate = 100 * math.Min(1, in.UpdatesPerS/in.TargetUpdates)
	}

	composite := weightSpreadStability*spreadStability +
		weightLiquidityDepth*liquidityDepth +
		weightFlowBalance*flowBalance +
		weightUpdateRate*updateRate

	return MicrostructureHealth{
		Symbol:          sym,
		SpreadStability: spreadStability,
		LiquidityDepth:  liquidityDepth,
		FlowBalance:     flowBalance,
		UpdateRate:      updateRate,
		Composite:       composite,
		Label:           healthLabel(composite, spreadStability, liquidityDepth, flowBalance, updateRate),
	}
}

// healthLabel assigns the label tier. Excellent additionally requires
// every component at or above 50, so improving any one component can
// never move the label down (spec.md §4.4, §8.1 invariant 7).
func healthLabel(composite, a, b, c, d float64) HealthLabel {
	allAbove50 := a >= healthExcellentMinComp && b >= healthExcellentMinComp &&
		c >= healthExcellentMinComp && d >= healthExcellentMinComp

	switch {
	case allAbove50 && composite >= healthExcellentComposite:
		return HealthExcellent
	case composite >= healthGoodComposite:
		return HealthGood
	case composite >= healthFairComposite:
		return HealthFair
	case composite >= healthPoorComposite:
		return HealthPoor
	default:
		return HealthCritical
	}
}
