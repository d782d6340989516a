// Package cache stores API lookups for a bounded time, in memory or on disk.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// Store is a byte-valued TTL cache.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, val []byte, ttl time.Duration) error
	Close() error
}

type memoryEntry struct {
	val     []byte
	expires time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.val, true, nil
}

// Set stores val. A zero ttl never expires.
func (m *MemoryStore) Set(key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// BadgerStore persists entries in a Badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens the database at path. An empty path keeps it in memory.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(strings.TrimSpace(path)).WithLogger(nil)
	if opts.Dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open cache")
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Get(key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "cache get %s", key)
	}
	return out, true, nil
}

// Set stores val. A zero ttl never expires.
func (s *BadgerStore) Set(key string, val []byte, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), val)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

func (s *BadgerStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetOrLoad returns the cached JSON value at key, or calls load and caches
// its result for ttl. A nil store always loads. Cache failures fall through
// to load.
func GetOrLoad[T any](ctx context.Context, store Store, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if store != nil {
		if raw, ok, err := store.Get(key); err == nil && ok {
			var cached T
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if store != nil {
		if raw, err := json.Marshal(v); err == nil {
			_ = store.Set(key, raw, ttl)
		}
	}
	return v, nil
}
