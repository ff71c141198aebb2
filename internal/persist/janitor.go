package persist

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/binance-marketintel/internal/clock"
	"github.com/sawpanic/binance-marketintel/internal/store"
)

const janitorInterval = time.Hour

// Janitor enforces the retention window and the store's hard byte
// budget (spec.md §4.2 "Janitor", §6.3). It runs hourly, deleting
// snapshot and trade records older than retention for every tracked
// symbol, then runs the store's value-log GC.
type Janitor struct {
	st        *store.Store
	symbols   []string
	retention time.Duration
}

func NewJanitor(st *store.Store, symbols []string, retention time.Duration) *Janitor {
	return &Janitor{st: st, symbols: symbols, retention: retention}
}

func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	j.tick(ctx) // run once at startup so long-idle restarts don't wait an hour

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.tick(ctx)
		}
	}
}

func (j *Janitor) tick(ctx context.Context) {
	cutoff := clock.NowMs() - j.retention.Milliseconds()

	for _, sym := range j.symbols {
		snapCutoff := SuffixFor(cutoff / 1000)
		n, err := j.st.DeletePrefix(SnapshotPrefix(sym), snapCutoff)
		if err != nil {
			log.Error().Str("symbol", sym).Err(err).Msg("janitor: snapshot retention sweep failed")
		} else if n > 0 {
			log.Info().Str("symbol", sym).Int("deleted", n).Msg("janitor: expired snapshots removed")
		}

		tradeCutoff := SuffixFor(cutoff)
		n, err = j.st.DeletePrefix(TradePrefix(sym), tradeCutoff)
		if err != nil {
			log.Error().Str("symbol", sym).Err(err).Msg("janitor: trade retention sweep failed")
		} else if n > 0 {
			log.Info().Str("symbol", sym).Int("deleted", n).Msg("janitor: expired trade batches removed")
		}
	}

	j.enforceByteBudget(ctx)
	j.st.RunValueLogGC(ctx)
}

// enforceByteBudget is the hard guard beyond soft retention: if the
// store is still over budget after the retention sweep, it is logged
// at ERROR so an operator can shorten retention or grow the budget.
// The store itself refuses new writes once over budget (store.Put),
// so this never evicts data automatically beyond the retention window.
func (j *Janitor) enforceByteBudget(ctx context.Context) {
	used := j.st.UsedBytes()
	budget := j.st.ByteBudget()
	if budget > 0 && used > budget {
		log.Error().Int64("used_bytes", used).Int64("budget_bytes", budget).
			Msg("janitor: store over byte budget after retention sweep, writes will be refused")
	}
}
