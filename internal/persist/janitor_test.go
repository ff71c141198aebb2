package persist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/binance-marketintel/internal/store"
)

func TestJanitor_Tick_RemovesExpiredAndKeepsRecent(t *testing.T) {
	st, err := store.Open(t.TempDir(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	now := time.Now().UnixMilli()
	expired := now - int64(48*time.Hour/time.Millisecond)

	require.NoError(t, st.Put(ctx, SnapshotKey("BTCUSDT", expired/1000), []byte("old")))
	require.NoError(t, st.Put(ctx, SnapshotKey("BTCUSDT", now/1000), []byte("fresh")))

	j := NewJanitor(st, []string{"BTCUSDT"}, 24*time.Hour)
	j.tick(ctx)

	_, ok, _ := st.Get(SnapshotKey("BTCUSDT", expired/1000))
	assert.False(t, ok, "expired snapshot should have been deleted")

	_, ok, _ = st.Get(SnapshotKey("BTCUSDT", now/1000))
	assert.True(t, ok, "fresh snapshot should remain")
}

func TestJanitor_EnforceByteBudget_LogsWithoutDeleting(t *testing.T) {
	st, err := store.Open(t.TempDir(), 1)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	j := NewJanitor(st, nil, 24*time.Hour)
	j.enforceByteBudget(context.Background()) // should not panic even when over budget
}
