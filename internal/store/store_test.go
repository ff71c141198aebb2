package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/binance-marketintel/internal/apperrors"
)

func openTestStore(t *testing.T, byteBudget int64) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), byteBudget)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet_RoundTrip(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, []byte("snapshots:BTCUSDT:00000000001700000000"), []byte("hello")))

	val, ok, err := s.Get([]byte("snapshots:BTCUSDT:00000000001700000000"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", string(val))

	_, ok, err = s.Get([]byte("missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPut_RefusesOverByteBudget(t *testing.T) {
	s := openTestStore(t, 1)
	s.usedBytes.Store(1000)

	err := s.Put(context.Background(), []byte("k"), []byte("v"))
	require.Error(t, err)
	assert.Equal(t, apperrors.StorageLimitExceeded, apperrors.GetKind(err))
}

func TestScanPrefix_IteratesInKeyOrder(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, []byte("trades:BTCUSDT:00000000000001000000"), []byte("a")))
	require.NoError(t, s.Put(ctx, []byte("trades:BTCUSDT:00000000000002000000"), []byte("b")))
	require.NoError(t, s.Put(ctx, []byte("trades:ETHUSDT:00000000000001000000"), []byte("c")))

	var keys []string
	err := s.ScanPrefix([]byte("trades:BTCUSDT:"), func(key, value []byte) bool {
		keys = append(keys, string(key))
		return true
	})
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Contains(t, keys[0], "00000000000001000000")
}

func TestScanRange_RespectsBounds(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()
	prefix := []byte("snapshots:BTCUSDT:")
	require.NoError(t, s.Put(ctx, append(append([]byte(nil), prefix...), []byte("00000000000000001000")...), []byte("a")))
	require.NoError(t, s.Put(ctx, append(append([]byte(nil), prefix...), []byte("00000000000000002000")...), []byte("b")))
	require.NoError(t, s.Put(ctx, append(append([]byte(nil), prefix...), []byte("00000000000000003000")...), []byte("c")))

	var got []string
	err := s.ScanRange(prefix, []byte("00000000000000001500"), []byte("00000000000000002500"), func(key, value []byte) bool {
		got = append(got, string(value))
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, got)
}

func TestDeletePrefix_RemovesOnlyUpToCutoff(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()
	prefix := []byte("snapshots:BTCUSDT:")
	require.NoError(t, s.Put(ctx, append(append([]byte(nil), prefix...), []byte("00000000000000001000")...), []byte("old")))
	require.NoError(t, s.Put(ctx, append(append([]byte(nil), prefix...), []byte("00000000000000009000")...), []byte("new")))

	n, err := s.DeletePrefix(prefix, []byte("00000000000000005000"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, _ := s.Get(append(append([]byte(nil), prefix...), []byte("00000000000000001000")...))
	assert.False(t, ok)
	_, ok, _ = s.Get(append(append([]byte(nil), prefix...), []byte("00000000000000009000")...))
	assert.True(t, ok)
}
