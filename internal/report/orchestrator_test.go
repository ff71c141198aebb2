package report

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/binance-marketintel/internal/orderbook"
)

func TestNormalizeOptions_AppliesDefaultsAndValidates(t *testing.T) {
	o := ReportOptions{}
	require.NoError(t, normalizeOptions(&o))
	assert.Equal(t, 24, o.VolumeWindowHours)
	assert.Equal(t, 20, o.OrderbookLevels)

	bad := ReportOptions{VolumeWindowHours: 200}
	assert.Error(t, normalizeOptions(&bad))

	bad2 := ReportOptions{OrderbookLevels: 500}
	assert.Error(t, normalizeOptions(&bad2))
}

func TestAllIncludedSectionsFailed(t *testing.T) {
	assert.False(t, allIncludedSectionsFailed(MarketReport{}), "no sections requested is not a failure")
	assert.True(t, allIncludedSectionsFailed(MarketReport{Sections: []string{SectionPriceOverview}}))
	assert.False(t, allIncludedSectionsFailed(MarketReport{
		Sections:      []string{SectionPriceOverview},
		PriceOverview: &PriceOverview{},
	}))
	assert.True(t, allIncludedSectionsFailed(MarketReport{
		Sections:  []string{SectionPriceOverview},
		OrderBook: &OrderBookSection{},
	}), "a built section not in Sections doesn't count")
}

func TestSectionPresent(t *testing.T) {
	r := MarketReport{PriceOverview: &PriceOverview{}}
	assert.True(t, sectionPresent(&r, SectionPriceOverview))
	assert.False(t, sectionPresent(&r, SectionOrderBook))
}

func TestApplySectionFilter_DropsUnrequestedSectionsAndErrors(t *testing.T) {
	r := MarketReport{
		PriceOverview: &PriceOverview{},
		OrderBook:     &OrderBookSection{},
		Errors: []SectionError{
			{Section: SectionPriceOverview, Message: "x"},
			{Section: SectionOrderBook, Message: "y"},
		},
	}
	applySectionFilter(&r, includedSet([]string{SectionPriceOverview}))
	assert.NotNil(t, r.PriceOverview)
	assert.Nil(t, r.OrderBook)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, SectionPriceOverview, r.Errors[0].Section)
}

func TestMidFromL1(t *testing.T) {
	mid, ok := midFromL1(orderbook.L1Metrics{Mid: decimal.RequireFromString("100.5")})
	assert.True(t, ok)
	assert.InDelta(t, 100.5, mid, 0.001)

	_, ok = midFromL1(orderbook.L1Metrics{})
	assert.False(t, ok)
}

func TestRenderHeader(t *testing.T) {
	assert.Equal(t, "Market Intelligence Report: BTCUSDT", renderHeader("BTCUSDT"))
}

func TestOrchestrator_TickSize_FallsBackToDefault(t *testing.T) {
	o := NewOrchestrator(nil, nil, nil, NewCache(0, 1), 0, 0)
	assert.Equal(t, defaultTickSize, o.tickSize("BTCUSDT"))

	o.SetTickSize("BTCUSDT", 0.5)
	assert.Equal(t, 0.5, o.tickSize("BTCUSDT"))
}
