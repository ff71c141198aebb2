package orderbook

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/binance-marketintel/internal/symbol"
)

// secondCounter counts events per wall-clock second and reports the
// most recently completed second's rate, so a burst mid-second isn't
// read back as a partial, misleadingly low count.
type secondCounter struct {
	mu       sync.Mutex
	sec      int64
	cur      int64
	lastFull int64
}

func (c *secondCounter) tick(nowSec int64) {
	c.tickBy(nowSec, 1)
}

func (c *secondCounter) tickBy(nowSec int64, n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if nowSec != c.sec {
		c.lastFull = 0
		if nowSec == c.sec+1 {
			c.lastFull = c.cur
		}
		c.cur = 0
		c.sec = nowSec
	}
	c.cur += n
}

// value returns the count of the second that had fully elapsed as of
// the most recent tick, the best available estimate of a steady
// per-second rate.
func (c *secondCounter) value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.lastFull)
}

// ringStat is a bounded circular buffer of float64 samples supporting
// mean/stddev and an earliest-vs-latest comparison, used for rolling
// spread and depth history without unbounded retention.
type ringStat struct {
	mu     sync.Mutex
	buf    []float64
	cap    int
	size   int
	next   int
	filled bool
}

func newRingStat(capacity int) *ringStat {
	return &ringStat{buf: make([]float64, capacity), cap: capacity}
}

func (r *ringStat) add(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = v
	r.next = (r.next + 1) % r.cap
	if r.size < r.cap {
		r.size++
	} else {
		r.filled = true
	}
}

func (r *ringStat) meanStdDev() (mean, stddev float64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size == 0 {
		return 0, 0, false
	}
	var sum float64
	for i := 0; i < r.size; i++ {
		sum += r.buf[i]
	}
	mean = sum / float64(r.size)
	if r.size < 2 {
		return mean, 0, true
	}
	var sq float64
	for i := 0; i < r.size; i++ {
		d := r.buf[i] - mean
		sq += d * d
	}
	stddev = math.Sqrt(sq / float64(r.size-1))
	return mean, stddev, true
}

// earliestLatest returns the oldest retained sample and the most
// recent one, for a before/after comparison such as depth loss.
func (r *ringStat) earliestLatest() (earliest, latest float64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size == 0 {
		return 0, 0, false
	}
	latestIdx := (r.next - 1 + r.cap) % r.cap
	earliestIdx := 0
	if r.filled {
		earliestIdx = r.next
	}
	return r.buf[earliestIdx], r.buf[latestIdx], true
}

// ringHistorySize bounds the spread/depth rolling windows to roughly
// one sample per applied book change over the last few hundred
// updates; enough to compare "recent" against "a bit less recent"
// without retaining full history.
const ringHistorySize = 256

// MicroStats carries the rolling, per-symbol measurements the report
// orchestrator feeds into the anomaly detectors and the microstructure
// health composite (spec.md §4.4). Cancellation ratio and depth-loss
// are measured over the same bounded in-process window as the rest of
// the engine's book history rather than a literal trailing 1s/24h
// window, since the engine does not retain that much raw history;
// this is documented as a deliberate approximation.
type MicroStats struct {
	UpdatesPerSec     float64
	CancellationRatio float64
	SpreadMeanBps     float64
	SpreadStdDevBps   float64
	DepthLossPct      float64
}

// Microstats returns the current rolling measurements for sym.
func (e *Engine) Microstats(sym string) (MicroStats, error) {
	sym = symbol.Normalize(sym)
	st, err := e.state(sym)
	if err != nil {
		return MicroStats{}, err
	}

	updates := st.updateRate.value()
	cancels := st.cancelRate.value()
	cancellationRatio := 0.0
	if updates > 0 {
		cancellationRatio = math.Min(1, cancels/updates)
	}

	mean, stddev, _ := st.spreadHistory.meanStdDev()

	depthLoss := 0.0
	if first, last, ok := st.depthHistory.earliestLatest(); ok && first > 0 {
		depthLoss = math.Max(0, (first-last)/first)
	}

	return MicroStats{
		UpdatesPerSec:     updates,
		CancellationRatio: cancellationRatio,
		SpreadMeanBps:     mean,
		SpreadStdDevBps:   stddev,
		DepthLossPct:      depthLoss,
	}, nil
}

// topNotional sums price*quantity over the top n levels of one side.
func topNotional(levels []PriceLevel, n int) float64 {
	var total float64
	for i, lv := range levels {
		if i >= n {
			break
		}
		v, _ := lv.Price.Mul(lv.Quantity).Float64()
		total += v
	}
	return total
}

// spreadBpsOf computes the current top-of-book spread in basis points,
// or 0 if the book is not two-sided.
func spreadBpsOf(book OrderBook) float64 {
	bid, hasBid := book.BestBid()
	ask, hasAsk := book.BestAsk()
	if !hasBid || !hasAsk {
		return 0
	}
	mid := bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2))
	if !mid.IsPositive() {
		return 0
	}
	spread := ask.Price.Sub(bid.Price)
	bps, _ := spread.Div(mid).Mul(decimal.NewFromInt(10000)).Float64()
	return bps
}

// countZeroQty counts raw depth-diff entries carrying a zero quantity
// (a level removal/cancellation) among a decoded update batch.
func countZeroQty(raw [][]string) int64 {
	var n int64
	for _, e := range raw {
		if len(e) < 2 {
			continue
		}
		qty, err := decimal.NewFromString(e[1])
		if err == nil && qty.IsZero() {
			n++
		}
	}
	return n
}
