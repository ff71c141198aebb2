package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/binance-marketintel/internal/venue/binance"
)

func TestSnapshotToBook(t *testing.T) {
	snap := &binance.DepthResponse{
		LastUpdateID: 100,
		Bids:         [][]string{{"99", "1"}, {"98", "2"}},
		Asks:         [][]string{{"101", "1"}, {"102", "2"}},
	}
	book := snapshotToBook("BTCUSDT", snap)
	require.Len(t, book.Bids, 2)
	require.Len(t, book.Asks, 2)
	assert.Equal(t, uint64(100), book.LastUpdateID)
	assert.True(t, book.Bids[0].Price.GreaterThan(book.Bids[1].Price))
	assert.True(t, book.Asks[0].Price.LessThan(book.Asks[1].Price))
}

func TestApplyDiffEvent_AdvancesLastUpdateID(t *testing.T) {
	book := OrderBook{
		Symbol:       "BTCUSDT",
		Bids:         []PriceLevel{lvl("99", "1")},
		Asks:         []PriceLevel{lvl("101", "1")},
		LastUpdateID: 100,
	}
	ev := binance.DepthDiffEvent{
		FirstUpdateID: 101,
		FinalUpdateID: 105,
		Bids:          [][]string{{"99.5", "2"}},
		Asks:          [][]string{{"101", "0"}},
	}
	err := applyDiffEvent(&book, ev)
	require.NoError(t, err)
	assert.Equal(t, uint64(105), book.LastUpdateID)
	assert.Len(t, book.Asks, 0)
	require.Len(t, book.Bids, 2)
}

func TestApplyBufferedChain_FindsBridgingEvent(t *testing.T) {
	book := OrderBook{
		Symbol:       "BTCUSDT",
		Bids:         []PriceLevel{lvl("99", "1")},
		Asks:         []PriceLevel{lvl("101", "1")},
		LastUpdateID: 100,
	}
	buffered := []binance.DepthDiffEvent{
		{FirstUpdateID: 95, FinalUpdateID: 99}, // stale, before bridging point
		{FirstUpdateID: 98, FinalUpdateID: 102, Bids: [][]string{{"99", "3"}}},
		{FirstUpdateID: 103, FinalUpdateID: 104, Asks: [][]string{{"101", "5"}}},
	}
	err := applyBufferedChain(&book, buffered)
	require.NoError(t, err)
	assert.Equal(t, uint64(104), book.LastUpdateID)
}

func TestApplyBufferedChain_NoBridgingEventErrors(t *testing.T) {
	book := OrderBook{LastUpdateID: 100}
	buffered := []binance.DepthDiffEvent{
		{FirstUpdateID: 200, FinalUpdateID: 210},
	}
	err := applyBufferedChain(&book, buffered)
	assert.Error(t, err)
}

func TestGetBook_NotSubscribedReturnsError(t *testing.T) {
	e := NewEngine(nil, "wss://example.invalid")
	_, err := e.GetBook(nil, "BTCUSDT") //nolint:staticcheck // nil context acceptable: state() never uses ctx
	assert.Error(t, err)
}
