package stream

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffbrin/SHFT/component"
	"github.com/jeffbrin/SHFT/metric"
)

// fakeReader feeds a fixed message sequence and records commits
type fakeReader struct {
	mu       sync.Mutex
	messages []kafka.Message
	pos      int
	closed   chan struct{}
	commits  []kafka.Message
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{messages: msgs, closed: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.pos < len(r.messages) {
		msg := r.messages[r.pos]
		r.pos++
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()

	// Block until closed, like a live reader with no traffic
	select {
	case <-r.closed:
		return kafka.Message{}, io.EOF
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	select {
	case <-r.closed:
	default:
		close(r.closed)
	}
	return nil
}

func testDeps(t *testing.T) component.Dependencies {
	t.Helper()
	return component.Dependencies{
		MetricsRegistry: metric.NewMetricsRegistry(),
		DeviceID:        "container-test",
	}
}

func testStream(t *testing.T, reader *fakeReader) *KafkaStream {
	t.Helper()
	s := NewKafkaStream(KafkaConfig{
		Brokers:    []string{"localhost:9092"},
		Topic:      "telemetry-events",
		GroupID:    "test-group",
		Partitions: 2,
	}, testDeps(t))
	s.newReader = func() kafkaReader { return reader }
	return s
}

func TestInitializeValidates(t *testing.T) {
	deps := testDeps(t)

	tests := []struct {
		name string
		cfg  KafkaConfig
	}{
		{"missing brokers", KafkaConfig{Topic: "t", GroupID: "g"}},
		{"missing topic", KafkaConfig{Brokers: []string{"b:9092"}, GroupID: "g"}},
		{"missing group", KafkaConfig{Brokers: []string{"b:9092"}, Topic: "t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewKafkaStream(tt.cfg, deps)
			assert.Error(t, s.Initialize())
		})
	}

	s := NewKafkaStream(KafkaConfig{
		Brokers: []string{"b:9092"}, Topic: "t", GroupID: "g",
	}, deps)
	assert.NoError(t, s.Initialize())
}

func TestStartRequiresHandler(t *testing.T) {
	s := testStream(t, newFakeReader())
	require.NoError(t, s.Initialize())
	assert.Error(t, s.Start(context.Background()))
}

func TestDeliversInPartitionOrder(t *testing.T) {
	reader := newFakeReader(
		kafka.Message{Partition: 0, Offset: 1, Value: []byte("a")},
		kafka.Message{Partition: 0, Offset: 2, Value: []byte("b")},
		kafka.Message{Partition: 1, Offset: 1, Value: []byte("c")},
		kafka.Message{Partition: 0, Offset: 3, Value: []byte("d")},
	)
	s := testStream(t, reader)
	require.NoError(t, s.Initialize())

	var mu sync.Mutex
	received := make(map[int][]int64)
	total := make(chan struct{}, 16)
	s.RegisterHandler(func(_ context.Context, ev Event) {
		mu.Lock()
		received[ev.Partition] = append(received[ev.Partition], ev.Offset)
		mu.Unlock()
		total <- struct{}{}
	})

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(2 * time.Second) }()

	for i := 0; i < 4; i++ {
		select {
		case <-total:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for deliveries")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{1, 2, 3}, received[0])
	assert.Equal(t, []int64{1}, received[1])
}

func TestCommitForwardsToReader(t *testing.T) {
	reader := newFakeReader(
		kafka.Message{Partition: 0, Offset: 7, Value: []byte("x")},
	)
	s := testStream(t, reader)
	require.NoError(t, s.Initialize())

	events := make(chan Event, 1)
	s.RegisterHandler(func(_ context.Context, ev Event) {
		events <- ev
	})

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(2 * time.Second) }()

	var ev Event
	select {
	case ev = <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	require.NoError(t, s.Commit(context.Background(), ev))

	reader.mu.Lock()
	defer reader.mu.Unlock()
	require.Len(t, reader.commits, 1)
	assert.Equal(t, int64(7), reader.commits[0].Offset)
}

func TestCommitWithoutHandleFails(t *testing.T) {
	s := testStream(t, newFakeReader())
	err := s.Commit(context.Background(), Event{Partition: 0, Offset: 1})
	assert.Error(t, err)
}

func TestStopIsIdempotent(t *testing.T) {
	reader := newFakeReader()
	s := testStream(t, reader)
	require.NoError(t, s.Initialize())
	s.RegisterHandler(func(context.Context, Event) {})
	require.NoError(t, s.Start(context.Background()))

	assert.NoError(t, s.Stop(2*time.Second))
	assert.NoError(t, s.Stop(2*time.Second))
}

func TestDoubleStart(t *testing.T) {
	s := testStream(t, newFakeReader())
	require.NoError(t, s.Initialize())
	s.RegisterHandler(func(context.Context, Event) {})
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(2 * time.Second) }()

	assert.Error(t, s.Start(context.Background()))
}

func TestMemoryStreamCommits(t *testing.T) {
	ms := NewMemoryStream()
	var got []Event
	ms.RegisterHandler(func(_ context.Context, ev Event) {
		got = append(got, ev)
	})

	ctx := context.Background()
	ms.Deliver(ctx, 1, 5, []byte("payload"))
	require.Len(t, got, 1)

	require.NoError(t, ms.Commit(ctx, got[0]))
	assert.Equal(t, []int64{5}, ms.Commits(1))
	assert.Empty(t, ms.Commits(0))
}
