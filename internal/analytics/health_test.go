package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestHealthLabel_Monotonicity covers spec.md §8.1 invariant 7:
// increasing any single component score cannot decrease the label.
func TestHealthLabel_Monotonicity(t *testing.T) {
	base := []float64{55, 55, 55, 55} // all components at 55
	baseComposite := weightSpreadStability*base[0] + weightLiquidityDepth*base[1] +
		weightFlowBalance*base[2] + weightUpdateRate*base[3]
	baseLabel := healthLabel(baseComposite, base[0], base[1], base[2], base[3])

	for i := range base {
		improved := append([]float64(nil), base...)
		improved[i] = 90
		composite := weightSpreadStability*improved[0] + weightLiquidityDepth*improved[1] +
			weightFlowBalance*improved[2] + weightUpdateRate*improved[3]
		label := healthLabel(composite, improved[0], improved[1], improved[2], improved[3])

		assert.GreaterOrEqual(t, rank(label), rank(baseLabel),
			"improving component %d must not lower the label (%s -> %s)", i, baseLabel, label)
	}
}

func rank(l HealthLabel) int {
	switch l {
	case HealthCritical:
		return 0
	case HealthPoor:
		return 1
	case HealthFair:
		return 2
	case HealthGood:
		return 3
	case HealthExcellent:
		return 4
	default:
		return -1
	}
}

func TestComputeMicrostructureHealth_ExcellentRequiresAllComponents(t *testing.T) {
	in := MicrostructureHealthInputs{
		SpreadMean: 10, SpreadStdDev: 0, // spread_stability = 100
		Top10Depth: 200000, TargetDepth: 100000, // liquidity_depth = 100 (capped)
		NetFlow: 0, BidFlowRate: 10, AskFlowRate: 10, // flow_balance = 100
		UpdatesPerS: 5, TargetUpdates: 50, // update_rate = 10 (< 50)
	}
	h := ComputeMicrostructureHealth("BTCUSDT", in)
	assert.Less(t, h.UpdateRate, 50.0)
	assert.NotEqual(t, HealthExcellent, h.Label, "one component below 50 must block Excellent")
}
