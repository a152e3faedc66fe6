package stream

import (
	"context"
	"time"
)

// Event is one raw message from the telemetry stream
type Event struct {
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time

	// commitRef carries the source-specific handle needed to commit this
	// event's position.
	commitRef any
}

// Handler processes one delivered event. Handlers for different partitions
// run concurrently; within a partition invocations are sequential and each
// runs to completion once started.
type Handler func(ctx context.Context, ev Event)

// Source delivers events to a registered handler and accepts checkpoint
// commits.
type Source interface {
	// RegisterHandler sets the delivery callback. Must be called before Start.
	RegisterHandler(h Handler)

	// Commit durably records the event's position for its partition.
	Commit(ctx context.Context, ev Event) error
}
