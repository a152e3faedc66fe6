package stream

import (
	"context"
	"sync"
	"time"

	"github.com/jeffbrin/SHFT/errors"
)

// MemoryStream is an in-process Source for tests. Deliver pushes an event
// through the registered handler synchronously, preserving the per-partition
// sequential contract when the caller delivers from one goroutine per
// partition.
type MemoryStream struct {
	mu      sync.Mutex
	handler Handler
	commits map[int][]int64

	// FailCommits makes Commit return an error
	FailCommits bool
}

// NewMemoryStream creates an empty in-process stream
func NewMemoryStream() *MemoryStream {
	return &MemoryStream{commits: make(map[int][]int64)}
}

// RegisterHandler sets the delivery callback
func (s *MemoryStream) RegisterHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Deliver invokes the handler with a synthetic event
func (s *MemoryStream) Deliver(ctx context.Context, partition int, offset int64, payload []byte) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler == nil {
		return
	}

	handler(ctx, Event{
		Partition: partition,
		Offset:    offset,
		Value:     payload,
		Time:      time.Now(),
	})
}

// Commit records the committed offset for assertions
func (s *MemoryStream) Commit(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCommits {
		return errors.WrapTransient(errors.ErrCheckpointFailed, "MemoryStream", "Commit", "commit offset")
	}

	s.commits[ev.Partition] = append(s.commits[ev.Partition], ev.Offset)
	return nil
}

// Commits returns the offsets committed for a partition
func (s *MemoryStream) Commits(partition int) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.commits[partition]))
	copy(out, s.commits[partition])
	return out
}
