package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextBackoff_DoublesAndCaps(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(1*time.Second))
	assert.Equal(t, 4*time.Second, nextBackoff(2*time.Second))
	assert.Equal(t, backoffCap, nextBackoff(backoffCap))
	assert.Equal(t, backoffCap, nextBackoff(40*time.Second))
}

func TestJitter_StaysWithinFraction(t *testing.T) {
	d := 10 * time.Second
	for i := 0; i < 50; i++ {
		j := jitter(d)
		lo := time.Duration(float64(d) * (1 - jitterFraction))
		hi := time.Duration(float64(d) * (1 + jitterFraction))
		assert.True(t, j >= lo && j <= hi, "jitter %v out of [%v,%v]", j, lo, hi)
	}
}

func TestDepthStreamURL_AndAggTradeStreamURL(t *testing.T) {
	assert.Equal(t, "wss://stream.binance.com:9443/ws/btcusdt@depth", DepthStreamURL("wss://stream.binance.com:9443", "btcusdt"))
	assert.Equal(t, "wss://stream.binance.com:9443/ws/btcusdt@aggTrade", AggTradeStreamURL("wss://stream.binance.com:9443", "btcusdt"))
}

func TestStream_Run_DeliversMessagesAndReportsConnected(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"hello":"world"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	s := NewStream(wsURL, "test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgReceived := make(chan []byte, 1)
	stateChanges := make(chan bool, 4)

	go s.Run(ctx, func(b []byte) {
		select {
		case msgReceived <- b:
		default:
		}
	}, func(connected bool) {
		select {
		case stateChanges <- connected:
		default:
		}
	})

	select {
	case msg := <-msgReceived:
		assert.Contains(t, string(msg), "hello")
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	select {
	case connected := <-stateChanges:
		assert.True(t, connected)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for connected state")
	}
}

func TestStream_Run_StopsOnContextCancel(t *testing.T) {
	s := NewStream("ws://127.0.0.1:1/nonexistent", "test")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx, func([]byte) {}, func(bool) {})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
	require.True(t, true)
}
