package binance

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	backoffInitial     = 1 * time.Second
	backoffCap         = 60 * time.Second
	sustainedConnected = 30 * time.Second
	jitterFraction     = 0.10
)

// Stream is a reconnecting TLS WebSocket consumer for a single Binance
// stream URL (diff-depth or aggTrade). Reconnects use exponential
// backoff (initial 1s, x2 per failure, capped at 60s, ±10% jitter),
// reset to the initial backoff after a connection survives 30s
// (spec.md §6.1, §4.1 state machine).
type Stream struct {
	url    string
	name   string
	dialer *websocket.Dialer

	connectedCh chan struct{}
}

// NewStream builds a Stream for the given fully-qualified wss:// URL.
// name is used only for logging.
func NewStream(url, name string) *Stream {
	return &Stream{
		url:  url,
		name: name,
		dialer: &websocket.Dialer{
			HandshakeTimeout: wsHandshakeTimeout,
		},
		connectedCh: make(chan struct{}, 1),
	}
}

// Run connects and reads frames until ctx is cancelled, invoking
// onMessage for each text/binary frame and onStateChange whenever the
// connected status changes. It never returns until ctx.Done(); reconnect
// failures are logged at ERROR and retried, never surfaced to the
// caller, per spec.md §4.1's "reconnect loops never terminate the
// engine" failure semantics.
func (s *Stream) Run(ctx context.Context, onMessage func([]byte), onStateChange func(connected bool)) {
	backoff := backoffInitial

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			if onStateChange != nil {
				onStateChange(false)
			}
			log.Error().Str("stream", s.name).Err(err).Dur("backoff", backoff).Msg("ws dial failed, retrying")
			if !sleepOrDone(ctx, jitter(backoff)) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		if onStateChange != nil {
			onStateChange(true)
		}
		connectedAt := time.Now()
		readErr := s.readLoop(ctx, conn, onMessage)
		_ = conn.Close()
		if onStateChange != nil {
			onStateChange(false)
		}

		if ctx.Err() != nil {
			return
		}

		if time.Since(connectedAt) >= sustainedConnected {
			backoff = backoffInitial
		} else {
			backoff = nextBackoff(backoff)
		}

		log.Error().Str("stream", s.name).Err(readErr).Dur("backoff", backoff).Msg("ws read loop ended, reconnecting")
		if !sleepOrDone(ctx, jitter(backoff)) {
			return
		}
	}
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn, onMessage func([]byte)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		onMessage(msg)
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > backoffCap {
		next = backoffCap
	}
	return next
}

func jitter(d time.Duration) time.Duration {
	delta := float64(d) * jitterFraction
	offset := (rand.Float64()*2 - 1) * delta
	return time.Duration(float64(d) + offset)
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// DepthStreamURL builds the diff-depth WebSocket URL for a symbol.
func DepthStreamURL(wsBaseURL, symbolLower string) string {
	return fmt.Sprintf("%s/ws/%s@depth", wsBaseURL, symbolLower)
}

// AggTradeStreamURL builds the aggregate-trade WebSocket URL for a symbol.
func AggTradeStreamURL(wsBaseURL, symbolLower string) string {
	return fmt.Sprintf("%s/ws/%s@aggTrade", wsBaseURL, symbolLower)
}
