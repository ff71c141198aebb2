// Package clock provides the monotonic and wall-clock timestamps used
// across the ingestion pipeline, plus identifier generation for
// analytics records.
package clock

import (
	"time"

	"github.com/google/uuid"
)

// NowMs returns the current wall-clock time as Unix milliseconds.
func NowMs() int64 {
	return time.Now().UnixMilli()
}

// NowSeconds returns the current wall-clock time as Unix seconds,
// matching the snapshot key schema's second resolution.
func NowSeconds() int64 {
	return time.Now().Unix()
}

// RoundToSecondMs rounds a millisecond timestamp down to the
// containing second, in milliseconds.
func RoundToSecondMs(ms int64) int64 {
	return ms - ms%1000
}

// monoStart gives an ever-increasing reference for latency/age
// calculations that must not be perturbed by wall-clock adjustments.
var monoStart = time.Now()

// MonotonicMs returns milliseconds elapsed since process start.
func MonotonicMs() int64 {
	return time.Since(monoStart).Milliseconds()
}

// NewID generates a v4 UUID string for anomaly and report records.
func NewID() string {
	return uuid.NewString()
}
