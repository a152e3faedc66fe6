// Package stream delivers raw telemetry events from the partitioned event
// stream and accepts checkpoint commits.
//
// KafkaStream is the production source: one consumer-group reader feeding
// per-partition dispatch goroutines, so batches from different partitions
// are handled concurrently while order within a partition is preserved.
// Committing an event's offset durably marks stream-read progress for that
// partition; the broker redelivers from the last committed offset after a
// reconnect, so consumers must tolerate at-least-once delivery.
//
// MemoryStream is an in-process source for tests.
package stream
