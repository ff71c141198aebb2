// Package store wraps an embedded, compressed key-value store used to
// persist order-book snapshots and trade batches (spec.md §4.2, §6.3).
// The dependency is named from the retrieval pack's manifests rather
// than grounded on in-pack source; its usage here follows badger's own
// documented idioms (Update/View transactions, PrefixIterator,
// explicit value-log GC).
package store

import (
	"bytes"
	"context"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	bdoptions "github.com/dgraph-io/badger/v4/options"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/binance-marketintel/internal/apperrors"
)

// Store is a thin, domain-agnostic wrapper over a badger database:
// byte-key/byte-value puts, prefix scans, and range deletes, plus a
// running estimate of on-disk size used to enforce the store's hard
// byte budget (spec.md §4.2 "Storage limits").
type Store struct {
	db *badger.DB

	byteBudget int64
	usedBytes  atomic.Int64
}

// Open opens (creating if absent) a badger database at path, applying
// the configured byte budget as a ceiling checked by Put and BatchPut.
func Open(path string, byteBudget int64) (*Store, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithCompression(bdoptions.Snappy)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StorageError, "open store", err)
	}

	s := &Store{db: db, byteBudget: byteBudget}
	s.refreshUsage()
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) refreshUsage() {
	lsm, vlog := s.db.Size()
	s.usedBytes.Store(lsm + vlog)
}

// UsedBytes returns the last-measured approximate on-disk size.
func (s *Store) UsedBytes() int64 {
	return s.usedBytes.Load()
}

// ByteBudget returns the configured ceiling.
func (s *Store) ByteBudget() int64 {
	return s.byteBudget
}

// Put writes one key/value pair. It refuses writes once the store is
// over its configured byte budget, surfacing StorageLimitExceeded so
// callers (e.g. the snapshot/trade persisters) can drop new writes
// rather than grow unbounded (spec.md §4.2).
func (s *Store) Put(ctx context.Context, key, value []byte) error {
	if s.byteBudget > 0 && s.usedBytes.Load() > s.byteBudget {
		return apperrors.New(apperrors.StorageLimitExceeded, "store over byte budget, write refused")
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return apperrors.Wrap(apperrors.StorageError, "put failed", err)
	}
	return nil
}

// BatchPut writes multiple key/value pairs in one write batch. The
// snapshot and trade persisters write through Put, not BatchPut.
func (s *Store) BatchPut(ctx context.Context, kvs map[string][]byte) error {
	if s.byteBudget > 0 && s.usedBytes.Load() > s.byteBudget {
		return apperrors.New(apperrors.StorageLimitExceeded, "store over byte budget, write refused")
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for k, v := range kvs {
		if err := wb.Set([]byte(k), v); err != nil {
			return apperrors.Wrap(apperrors.StorageError, "batch set failed", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return apperrors.Wrap(apperrors.StorageError, "batch flush failed", err)
	}
	return nil
}

// Get reads a single key; returns apperrors.Stale-kind-free "not
// found" as a plain (nil, false) since absence of a key is an
// expected, non-exceptional outcome for range queries.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.StorageError, "get failed", err)
	}
	return out, out != nil, nil
}

// ScanPrefix iterates all keys with the given prefix in key order,
// invoking fn with a copy of each key and value. Iteration stops early
// if fn returns false.
func (s *Store) ScanPrefix(prefix []byte, fn func(key, value []byte) bool) error {
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := append([]byte(nil), item.Key()...)
			cont := true
			if err := item.Value(func(val []byte) error {
				cont = fn(key, append([]byte(nil), val...))
				return nil
			}); err != nil {
				return err
			}
			if !cont {
				break
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.StorageError, "scan failed", err)
	}
	return nil
}

// ScanRange iterates keys with the given prefix whose suffix (the
// remainder after the prefix) falls within [lowSuffix, highSuffix]
// lexically, used by query_snapshots/query_trades for time-bounded
// windows encoded as zero-padded decimal suffixes.
func (s *Store) ScanRange(prefix []byte, lowSuffix, highSuffix []byte, fn func(key, value []byte) bool) error {
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		start := append(append([]byte(nil), prefix...), lowSuffix...)
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.Key()
			suffix := key[len(prefix):]
			if bytes.Compare(suffix, highSuffix) > 0 {
				break
			}
			cont := true
			if err := item.Value(func(val []byte) error {
				cont = fn(append([]byte(nil), key...), append([]byte(nil), val...))
				return nil
			}); err != nil {
				return err
			}
			if !cont {
				break
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.StorageError, "range scan failed", err)
	}
	return nil
}

// DeletePrefix removes every key under prefix whose suffix is <= cutoffSuffix
// lexically, used by the retention janitor to drop expired records.
func (s *Store) DeletePrefix(prefix []byte, cutoffSuffix []byte) (int, error) {
	var toDelete [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			suffix := key[len(prefix):]
			if bytes.Compare(suffix, cutoffSuffix) > 0 {
				break
			}
			toDelete = append(toDelete, append([]byte(nil), key...))
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.StorageError, "delete-prefix scan failed", err)
	}
	if len(toDelete) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range toDelete {
		if err := wb.Delete(k); err != nil {
			return 0, apperrors.Wrap(apperrors.StorageError, "delete-prefix batch failed", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, apperrors.Wrap(apperrors.StorageError, "delete-prefix flush failed", err)
	}
	return len(toDelete), nil
}

// RunValueLogGC runs badger's value-log garbage collection repeatedly
// until badger reports nothing more to collect (or ctx is done), then
// refreshes the cached usage estimate; intended to be called from the
// janitor's hourly tick (spec.md §4.2 "Janitor").
func (s *Store) RunValueLogGC(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.db.RunValueLogGC(0.5); err != nil {
			break
		}
	}
	s.refreshUsage()
	log.Debug().Int64("used_bytes", s.usedBytes.Load()).Int64("budget", s.byteBudget).Msg("store gc complete")
}
