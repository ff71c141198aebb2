package persist

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/binance-marketintel/internal/orderbook"
	"github.com/sawpanic/binance-marketintel/internal/store"
)

func newTestQuerier(t *testing.T) (*Querier, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewQuerier(st), st
}

func TestQuerySnapshots_ReturnsRecordsInWindow(t *testing.T) {
	q, st := newTestQuerier(t)
	ctx := context.Background()

	rec := BookSnapshotRecord{
		Symbol:       "BTCUSDT",
		TimestampMS:  1_700_000_010_000,
		LastUpdateID: 1,
		Bids:         []orderbook.PriceLevel{{Price: decimal.RequireFromString("100"), Quantity: decimal.RequireFromString("1")}},
	}
	require.NoError(t, st.Put(ctx, SnapshotKey("BTCUSDT", 1_700_000_010), EncodeSnapshot(rec)))

	out, err := q.QuerySnapshots(ctx, "btcusdt", 1_700_000_000_000, 1_700_000_020_000)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(1), out[0].LastUpdateID)
}

func TestQueryTrades_FlattensBatches(t *testing.T) {
	q, st := newTestQuerier(t)
	ctx := context.Background()

	batch := TradeBatch{
		Symbol:      "ETHUSDT",
		TimestampMS: 1_700_000_001_000,
		Trades: []AggTrade{
			{Symbol: "ETHUSDT", TradeID: 1, Price: decimal.RequireFromString("3000"), Quantity: decimal.RequireFromString("1"), TimestampMS: 1_700_000_001_000},
		},
	}
	require.NoError(t, st.Put(ctx, TradeKey("ETHUSDT", 1_700_000_001_000), EncodeTradeBatch(batch)))

	out, err := q.QueryTrades(ctx, "ETHUSDT", 1_700_000_000_000, 1_700_000_002_000)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].TradeID)
}

func TestQueryTrades_ExcludesTradesOutsideWindowWithinAMatchedBatch(t *testing.T) {
	q, st := newTestQuerier(t)
	ctx := context.Background()

	// The batch key is the flush time; individual trades inside it can
	// carry an earlier trade-time that falls outside the requested
	// window even though the batch itself matched the scan range.
	batch := TradeBatch{
		Symbol:      "ETHUSDT",
		TimestampMS: 1_700_000_005_000,
		Trades: []AggTrade{
			{Symbol: "ETHUSDT", TradeID: 1, Price: decimal.RequireFromString("2990"), Quantity: decimal.RequireFromString("1"), TimestampMS: 1_700_000_003_000},
			{Symbol: "ETHUSDT", TradeID: 2, Price: decimal.RequireFromString("3000"), Quantity: decimal.RequireFromString("1"), TimestampMS: 1_700_000_004_500},
		},
	}
	require.NoError(t, st.Put(ctx, TradeKey("ETHUSDT", 1_700_000_005_000), EncodeTradeBatch(batch)))

	out, err := q.QueryTrades(ctx, "ETHUSDT", 1_700_000_004_000, 1_700_000_006_000)
	require.NoError(t, err)
	require.Len(t, out, 1, "trade 1 precedes the window and must be excluded even though its batch matched")
	assert.Equal(t, int64(2), out[0].TradeID)
}

func TestQuerySnapshots_RejectsWindowOverRetentionHorizon(t *testing.T) {
	q, _ := newTestQuerier(t)
	_, err := q.QuerySnapshots(context.Background(), "BTCUSDT", 0, int64(8*24*3600*1000))
	assert.Error(t, err)
}

func TestQuerySnapshots_RejectsInvertedWindow(t *testing.T) {
	q, _ := newTestQuerier(t)
	_, err := q.QuerySnapshots(context.Background(), "BTCUSDT", 1000, 500)
	assert.Error(t, err)
}
