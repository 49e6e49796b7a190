package cachestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const keyPrefix = "entry/"

// BadgerConfig configures the persistent store.
type BadgerConfig struct {
	// Path is the directory holding the database files. Ignored in memory mode.
	Path string
	// InMemory keeps everything in RAM, used by tests.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// Logger receives badger's internal messages. nil silences them.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns the configuration used for a cache directory.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path}
}

// InMemoryBadgerConfig returns a configuration for an ephemeral database.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Badger is a Store persisted in BadgerDB. Entries are JSON documents under
// "entry/<node id>/<mode>" keys.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens, or creates, the database described by cfg.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("cache path is required for a persistent store")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	return &Badger{db: db}, nil
}

// Get implements Store.
func (b *Badger) Get(ctx context.Context, nodeID, mode string) (*Entry, bool, error) {
	var e *Entry
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + entryKey(nodeID, mode)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			e = &Entry{}
			return json.Unmarshal(val, e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry for node '%s': %w", nodeID, err)
	}
	return e, true, nil
}

// Put implements Store.
func (b *Badger) Put(ctx context.Context, e *Entry) error {
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry for node '%s': %w", e.NodeID, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+entryKey(e.NodeID, e.Mode)), val)
	})
}

// Delete implements Store.
func (b *Badger) Delete(ctx context.Context, nodeID string) error {
	return b.dropPrefix(keyPrefix + nodeID + "/")
}

// Range implements Store.
func (b *Badger) Range(ctx context.Context, fn func(*Entry) bool) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			e := &Entry{}
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, e)
			}); err != nil {
				return fmt.Errorf("failed to decode cache entry '%s': %w", it.Item().Key(), err)
			}
			if !fn(e) {
				return nil
			}
		}
		return nil
	})
}

// Clear implements Store.
func (b *Badger) Clear(ctx context.Context) error {
	return b.dropPrefix(keyPrefix)
}

// Close implements Store.
func (b *Badger) Close() error {
	return b.db.Close()
}

func (b *Badger) dropPrefix(prefix string) error {
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}
