// Package store persists readings and thresholds in NATS JetStream
// key-value buckets.
//
// The DataStore interface is a generic keyed CRUD surface; KVDataStore backs
// it with a KV bucket and a local list cache, and MemoryStore backs it with a
// map for tests. On top of DataStore sit two domain stores: HistoricalStore,
// an append-only retention-bounded archive of readings with idempotent
// uploads, and ThresholdStore, which keeps one record per derived min/max
// key and updates in place.
//
// Writes are not assumed to be synchronously visible to a following List;
// callers that need fresh data pass forceRefresh.
package store
