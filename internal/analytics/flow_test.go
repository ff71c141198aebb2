package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/binance-marketintel/internal/apperrors"
)

func TestClassifyFlow(t *testing.T) {
	cases := []struct {
		name             string
		bidRate, askRate float64
		want             FlowDirection
	}{
		{"strong buy", 10, 4, StrongBuy},
		{"moderate buy", 6, 4, ModerateBuy},
		{"neutral", 5, 5, Neutral},
		{"moderate sell", 3, 5, ModerateSell},
		{"strong sell", 1, 5, StrongSell},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, classifyFlow(c.bidRate, c.askRate))
		})
	}
}

func TestOrderFlowFromHistory_InvalidWindow(t *testing.T) {
	_, err := OrderFlowFromHistory("BTCUSDT", 9, nil, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.InvalidInput, apperrors.GetKind(err))

	_, err = OrderFlowFromHistory("BTCUSDT", 301, nil, nil)
	require.Error(t, err)
}
