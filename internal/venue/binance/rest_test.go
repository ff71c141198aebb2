package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/binance-marketintel/internal/apperrors"
	"github.com/sawpanic/binance-marketintel/internal/ratelimit"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *RESTClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewRESTClient(server.URL, ratelimit.New(1000, 100, time.Second))
}

func TestDepth_ClampsLimitAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/depth", r.URL.Path)
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"lastUpdateId":1,"bids":[["100","1"]],"asks":[["101","1"]]}`))
	})

	depth, err := c.Depth(context.Background(), "BTCUSDT", 999999)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), depth.LastUpdateID)
	require.Len(t, depth.Bids, 1)
}

func TestDepth_RateLimitedStatusMapsToRateLimitExceeded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{}`))
	})

	_, err := c.Depth(context.Background(), "BTCUSDT", 100)
	require.Error(t, err)
	assert.Equal(t, apperrors.RateLimitExceeded, apperrors.GetKind(err))
}

func TestDepth_ServerErrorMapsToVenueUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Depth(context.Background(), "BTCUSDT", 100)
	require.Error(t, err)
	assert.Equal(t, apperrors.VenueUnavailable, apperrors.GetKind(err))
}

func TestKlines_DecodesPositionalRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1000,"100","110","90","105","1000",2000,"100000",50]]`))
	})

	klines, err := c.Klines(context.Background(), "BTCUSDT", "1m", 1)
	require.NoError(t, err)
	require.Len(t, klines, 1)
	assert.Equal(t, int64(1000), klines[0].OpenTimeMS)
	assert.Equal(t, "105", klines[0].Close)
	assert.Equal(t, int64(50), klines[0].NumTrades)
}
