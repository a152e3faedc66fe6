package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/jeffbrin/SHFT/errors"
	"github.com/jeffbrin/SHFT/natsclient"
	"github.com/jeffbrin/SHFT/pkg/retry"
	"github.com/jeffbrin/SHFT/reading"
)

// KVDataStore implements DataStore over a NATS JetStream key-value bucket.
// List results are cached locally; the cache is refreshed on forceRefresh
// and invalidated by writes through this instance. Writes from other
// processes become visible on the next refresh.
type KVDataStore struct {
	kv       *natsclient.KVStore
	logger   *slog.Logger
	retryCfg retry.Config

	mu     sync.RWMutex
	cache  []reading.Reading
	cached bool
}

// NewKVDataStore creates a DataStore backed by the given KV bucket
func NewKVDataStore(kv *natsclient.KVStore, logger *slog.Logger) *KVDataStore {
	return &KVDataStore{
		kv:       kv,
		logger:   logger.With("component", "KVDataStore", "bucket", kv.Bucket()),
		retryCfg: retry.DefaultConfig(),
	}
}

// Add stores a new item keyed by its reading key
func (s *KVDataStore) Add(ctx context.Context, item reading.Reading) error {
	data, err := json.Marshal(item)
	if err != nil {
		return errors.WrapInvalid(err, "KVDataStore", "Add", "marshal item")
	}

	if err := s.putWithRetry(ctx, item.Key, data); err != nil {
		return errors.Wrap(err, "KVDataStore", "Add", "store write")
	}

	s.invalidate()
	return nil
}

// Update overwrites an existing item in place. The key must already exist.
func (s *KVDataStore) Update(ctx context.Context, item reading.Reading) error {
	if _, err := s.kv.Get(ctx, item.Key); err != nil {
		return errors.Wrap(err, "KVDataStore", "Update", "lookup existing item")
	}

	data, err := json.Marshal(item)
	if err != nil {
		return errors.WrapInvalid(err, "KVDataStore", "Update", "marshal item")
	}

	if err := s.putWithRetry(ctx, item.Key, data); err != nil {
		return errors.Wrap(err, "KVDataStore", "Update", "store write")
	}

	s.invalidate()
	return nil
}

// Delete removes an item by its reading key
func (s *KVDataStore) Delete(ctx context.Context, item reading.Reading) error {
	if err := s.kv.Delete(ctx, item.Key); err != nil {
		return errors.Wrap(err, "KVDataStore", "Delete", "store delete")
	}

	s.invalidate()
	return nil
}

// List returns all items in the bucket. Without forceRefresh a previously
// cached snapshot may be returned.
func (s *KVDataStore) List(ctx context.Context, forceRefresh bool) ([]reading.Reading, error) {
	if !forceRefresh {
		s.mu.RLock()
		if s.cached {
			snapshot := make([]reading.Reading, len(s.cache))
			copy(snapshot, s.cache)
			s.mu.RUnlock()
			return snapshot, nil
		}
		s.mu.RUnlock()
	}

	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "KVDataStore", "List", "list keys")
	}

	items := make([]reading.Reading, 0, len(keys))
	for _, key := range keys {
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			if natsclient.IsNotFound(err) {
				// Deleted between Keys and Get
				continue
			}
			return nil, errors.Wrap(err, "KVDataStore", "List", "get item")
		}

		var item reading.Reading
		if err := json.Unmarshal(entry.Value, &item); err != nil {
			s.logger.Warn("Skipping undecodable store entry", "key", key, "error", err)
			continue
		}
		items = append(items, item)
	}

	s.mu.Lock()
	s.cache = items
	s.cached = true
	s.mu.Unlock()

	snapshot := make([]reading.Reading, len(items))
	copy(snapshot, items)
	return snapshot, nil
}

// putWithRetry retries bucket writes with backoff. Only transient failures
// are retried; invalid payloads fail immediately.
func (s *KVDataStore) putWithRetry(ctx context.Context, key string, data []byte) error {
	return retry.Do(ctx, s.retryCfg, func() error {
		_, err := s.kv.Put(ctx, key, data)
		if err != nil && errors.IsInvalid(err) {
			return retry.NonRetryable(err)
		}
		return err
	})
}

func (s *KVDataStore) invalidate() {
	s.mu.Lock()
	s.cached = false
	s.cache = nil
	s.mu.Unlock()
}
