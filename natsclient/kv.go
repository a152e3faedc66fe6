package natsclient

import (
	stderrors "errors"
	"context"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/jeffbrin/SHFT/errors"
)

// KVOptions configures a key-value bucket
type KVOptions struct {
	Bucket      string
	Description string
	TTL         time.Duration
	History     uint8
	Replicas    int
}

// DefaultKVOptions returns sensible defaults for a KV bucket
func DefaultKVOptions(bucket string) KVOptions {
	return KVOptions{
		Bucket:   bucket,
		History:  1,
		Replicas: 1,
	}
}

// KVEntry represents a key-value entry with revision metadata
type KVEntry struct {
	Key      string
	Value    []byte
	Revision uint64
	Created  time.Time
}

// KVStore wraps a JetStream key-value bucket
type KVStore struct {
	kv     jetstream.KeyValue
	bucket string
}

// NewKVStore creates or binds to a key-value bucket via the client
func NewKVStore(ctx context.Context, client *Client, opts KVOptions) (*KVStore, error) {
	if opts.Bucket == "" {
		return nil, errors.WrapInvalid(
			stderrors.New("bucket name is required"),
			"KVStore", "NewKVStore", "validate options")
	}

	cfg := jetstream.KeyValueConfig{
		Bucket:      opts.Bucket,
		Description: opts.Description,
		TTL:         opts.TTL,
		History:     opts.History,
		Replicas:    opts.Replicas,
	}

	kv, err := client.CreateKeyValueBucket(ctx, cfg)
	if err != nil {
		return nil, errors.WrapTransient(err, "KVStore", "NewKVStore", "create bucket")
	}

	return &KVStore{kv: kv, bucket: opts.Bucket}, nil
}

// Bucket returns the bucket name
func (s *KVStore) Bucket() string {
	return s.bucket
}

// Get retrieves a value by key
func (s *KVStore) Get(ctx context.Context, key string) (*KVEntry, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, errors.WrapInvalid(errors.ErrKeyNotFound, "KVStore", "Get", "key "+key)
		}
		return nil, errors.WrapTransient(err, "KVStore", "Get", "get key")
	}

	return &KVEntry{
		Key:      entry.Key(),
		Value:    entry.Value(),
		Revision: entry.Revision(),
		Created:  entry.Created(),
	}, nil
}

// Put stores a value, creating or overwriting the key
func (s *KVStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	rev, err := s.kv.Put(ctx, key, value)
	if err != nil {
		return 0, errors.WrapTransient(err, "KVStore", "Put", "put key")
	}
	return rev, nil
}

// Create stores a value only if the key does not already exist
func (s *KVStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	rev, err := s.kv.Create(ctx, key, value)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrKeyExists) {
			return 0, errors.WrapInvalid(err, "KVStore", "Create", "key already exists")
		}
		return 0, errors.WrapTransient(err, "KVStore", "Create", "create key")
	}
	return rev, nil
}

// Update stores a value only if the latest revision matches
func (s *KVStore) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	rev, err := s.kv.Update(ctx, key, value, revision)
	if err != nil {
		return 0, errors.WrapTransient(err, "KVStore", "Update", "update key")
	}
	return rev, nil
}

// Delete removes a key
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return errors.WrapInvalid(errors.ErrKeyNotFound, "KVStore", "Delete", "key "+key)
		}
		return errors.WrapTransient(err, "KVStore", "Delete", "delete key")
	}
	return nil
}

// Keys lists all keys in the bucket. An empty bucket returns an empty slice.
func (s *KVStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoKeysFound) {
			return []string{}, nil
		}
		return nil, errors.WrapTransient(err, "KVStore", "Keys", "list keys")
	}
	return keys, nil
}

// IsNotFound reports whether the error indicates a missing key
func IsNotFound(err error) bool {
	return stderrors.Is(err, errors.ErrKeyNotFound) || stderrors.Is(err, jetstream.ErrKeyNotFound)
}
