package orderbook

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lvl(price, qty string) PriceLevel {
	return PriceLevel{Price: decimal.RequireFromString(price), Quantity: decimal.RequireFromString(qty)}
}

func TestApplyLevels_InsertUpdateDelete(t *testing.T) {
	bids := []PriceLevel{lvl("100", "1"), lvl("99", "2")}

	t.Run("insert new level", func(t *testing.T) {
		out := applyLevels(bids, []PriceLevel{lvl("99.5", "3")}, sideBid)
		require.Len(t, out, 3)
		assert.True(t, out[0].Price.Equal(decimal.RequireFromString("100")))
		assert.True(t, out[1].Price.Equal(decimal.RequireFromString("99.5")))
		assert.True(t, out[2].Price.Equal(decimal.RequireFromString("99")))
	})

	t.Run("update existing level quantity", func(t *testing.T) {
		out := applyLevels(bids, []PriceLevel{lvl("100", "5")}, sideBid)
		require.Len(t, out, 2)
		assert.True(t, out[0].Quantity.Equal(decimal.RequireFromString("5")))
	})

	t.Run("zero quantity removes level", func(t *testing.T) {
		out := applyLevels(bids, []PriceLevel{lvl("100", "0")}, sideBid)
		require.Len(t, out, 1)
		assert.True(t, out[0].Price.Equal(decimal.RequireFromString("99")))
	})

	t.Run("zero quantity on absent level is a no-op", func(t *testing.T) {
		out := applyLevels(bids, []PriceLevel{lvl("50", "0")}, sideBid)
		assert.Len(t, out, 2)
	})
}

func TestIsSorted(t *testing.T) {
	assert.True(t, isSorted([]PriceLevel{lvl("100", "1"), lvl("99", "1")}, sideBid))
	assert.False(t, isSorted([]PriceLevel{lvl("99", "1"), lvl("100", "1")}, sideBid))
	assert.False(t, isSorted([]PriceLevel{lvl("100", "1"), lvl("100", "1")}, sideBid))
	assert.False(t, isSorted([]PriceLevel{lvl("100", "0")}, sideBid))

	assert.True(t, isSorted([]PriceLevel{lvl("99", "1"), lvl("100", "1")}, sideAsk))
	assert.False(t, isSorted([]PriceLevel{lvl("100", "1"), lvl("99", "1")}, sideAsk))
}

func TestCrossed(t *testing.T) {
	bids := []PriceLevel{lvl("100", "1")}
	asks := []PriceLevel{lvl("101", "1")}
	assert.False(t, crossed(bids, asks))

	crossedAsks := []PriceLevel{lvl("99", "1")}
	assert.True(t, crossed(bids, crossedAsks))

	assert.False(t, crossed(nil, asks))
	assert.False(t, crossed(bids, nil))
}

func TestSortLevels(t *testing.T) {
	raw := []PriceLevel{lvl("99", "1"), lvl("101", "0"), lvl("100", "2")}
	bids := sortLevels(raw, sideBid)
	require.Len(t, bids, 2)
	assert.True(t, bids[0].Price.Equal(decimal.RequireFromString("100")))
	assert.True(t, bids[1].Price.Equal(decimal.RequireFromString("99")))

	asks := sortLevels(raw, sideAsk)
	require.Len(t, asks, 2)
	assert.True(t, asks[0].Price.Equal(decimal.RequireFromString("99")))
	assert.True(t, asks[1].Price.Equal(decimal.RequireFromString("100")))
}

func TestDepthWithCumulative(t *testing.T) {
	levels := []PriceLevel{lvl("100", "1"), lvl("99", "2"), lvl("98", "3")}
	out := depthWithCumulative(levels, 2)
	require.Len(t, out, 2)
	assert.True(t, out[0].Cumulative.Equal(decimal.RequireFromString("1")))
	assert.True(t, out[1].Cumulative.Equal(decimal.RequireFromString("3")))
}
