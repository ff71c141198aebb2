package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/binance-marketintel/internal/analytics"
	"github.com/sawpanic/binance-marketintel/internal/orderbook"
)

func TestParseFloat(t *testing.T) {
	f, err := parseFloat("1.2500")
	require.NoError(t, err)
	assert.InDelta(t, 1.25, f, 0.0001)

	_, err = parseFloat("not-a-number")
	assert.Error(t, err)
}

func TestBuildAnomaliesSection_EmptyWhenNoThresholdsCrossed(t *testing.T) {
	s := buildAnomaliesSection(orderbook.HealthStatus{}, analytics.OrderFlow{}, healthStats{symbol: "BTCUSDT"}, nil)
	assert.Empty(t, s.Anomalies)
}

func TestBuildAnomaliesSection_QuoteStuffingDetected(t *testing.T) {
	hs := healthStats{symbol: "BTCUSDT", updatesPerSec: 900, fillRate: 0.02}
	s := buildAnomaliesSection(orderbook.HealthStatus{}, analytics.OrderFlow{}, hs, nil)
	require.Len(t, s.Anomalies, 1)
	assert.Equal(t, analytics.AnomalyQuoteStuffing, s.Anomalies[0].Type)
}

func TestBuildAnomaliesSection_IncludesAbsorptionEvents(t *testing.T) {
	absorption := []analytics.Anomaly{{Type: analytics.AnomalyAbsorption}}
	s := buildAnomaliesSection(orderbook.HealthStatus{}, analytics.OrderFlow{}, healthStats{symbol: "BTCUSDT"}, absorption)
	require.Len(t, s.Anomalies, 1)
	assert.Equal(t, analytics.AnomalyAbsorption, s.Anomalies[0].Type)
}

func TestBuildHealthSection(t *testing.T) {
	hs := buildHealthSection("BTCUSDT", analytics.MicrostructureHealthInputs{
		BidFlowRate: 10, AskFlowRate: 10, TargetUpdates: 50,
	})
	require.NotNil(t, hs)
	assert.Equal(t, "BTCUSDT", hs.Health.Symbol)
}
