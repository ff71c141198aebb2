// Package symbol normalizes trading-pair identifiers to the canonical
// upper-case form used everywhere else in the service.
package symbol

import "strings"

// Normalize upper-cases and trims a raw symbol string, e.g. "btcusdt"
// -> "BTCUSDT". Every entry point into the order-book engine,
// persistence layer, and analytics accepts raw input and normalizes it
// exactly once here.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Lower returns the lower-case form Binance's WebSocket stream names
// require, e.g. "BTCUSDT" -> "btcusdt".
func Lower(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
