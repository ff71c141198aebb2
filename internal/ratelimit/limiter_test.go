package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/binance-marketintel/internal/apperrors"
)

func TestAcquire_AllowsWithinBurst(t *testing.T) {
	l := New(10, 2, time.Second)
	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, l.Acquire(context.Background()))
}

func TestAcquire_TimesOutAsRateLimitExceeded(t *testing.T) {
	l := New(1, 1, 20*time.Millisecond)
	require.NoError(t, l.Acquire(context.Background())) // consumes the single burst token

	err := l.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.RateLimitExceeded, apperrors.GetKind(err))
}

func TestAcquire_CallerCancellationPropagates(t *testing.T) {
	l := New(1, 1, time.Second)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAllow(t *testing.T) {
	l := New(1, 1, time.Second)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}
