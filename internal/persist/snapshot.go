package persist

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/binance-marketintel/internal/orderbook"
	"github.com/sawpanic/binance-marketintel/internal/store"
)

const snapshotDepthPersisted = 50

// SnapshotPersister writes one book snapshot per tracked symbol to the
// store on a fixed interval (default 1000ms, spec.md §6.4
// snapshot_interval_ms), truncated to the top N levels per side.
type SnapshotPersister struct {
	st       *store.Store
	engine   *orderbook.Engine
	symbols  []string
	interval time.Duration
}

func NewSnapshotPersister(st *store.Store, engine *orderbook.Engine, symbols []string, interval time.Duration) *SnapshotPersister {
	return &SnapshotPersister{st: st, engine: engine, symbols: symbols, interval: interval}
}

// Run ticks at the configured interval until ctx is cancelled,
// snapshotting every tracked symbol's current book. A symbol whose
// book can't be read (not subscribed, or a pending resync that fails)
// is skipped for that tick rather than aborting the whole run.
func (p *SnapshotPersister) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *SnapshotPersister) tick(ctx context.Context) {
	for _, sym := range p.symbols {
		book, err := p.engine.GetBook(ctx, sym)
		if err != nil {
			log.Debug().Str("symbol", sym).Err(err).Msg("snapshot persister: book unavailable, skipping")
			continue
		}

		rec := BookSnapshotRecord{
			Symbol:       sym,
			TimestampMS:  book.TimestampMS,
			LastUpdateID: book.LastUpdateID,
			Bids:         truncate(book.Bids, snapshotDepthPersisted),
			Asks:         truncate(book.Asks, snapshotDepthPersisted),
		}

		key := SnapshotKey(sym, book.TimestampMS/1000)
		if err := p.st.Put(ctx, key, EncodeSnapshot(rec)); err != nil {
			log.Error().Str("symbol", sym).Err(err).Msg("snapshot persister: write failed")
		}
	}
}

func truncate(levels []orderbook.PriceLevel, n int) []orderbook.PriceLevel {
	if len(levels) <= n {
		return levels
	}
	out := make([]orderbook.PriceLevel, n)
	copy(out, levels[:n])
	return out
}
