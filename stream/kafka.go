package stream

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jeffbrin/SHFT/component"
	"github.com/jeffbrin/SHFT/errors"
	"github.com/jeffbrin/SHFT/metric"
)

const (
	defaultMinBytes = 1
	defaultMaxBytes = 10 << 20

	// Per-partition dispatch buffer. Fetching stalls when a partition's
	// handler falls this far behind, which is the desired backpressure.
	dispatchQueueDepth = 64
)

// KafkaConfig configures the Kafka event source
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	GroupID    string
	Partitions int
	MinBytes   int
	MaxBytes   int
	MaxWait    time.Duration
}

// kafkaReader is the subset of kafka.Reader the stream uses, extracted so
// tests can substitute a fake.
type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaStream consumes the telemetry topic through a consumer group and
// fans messages out to one dispatch goroutine per partition.
type KafkaStream struct {
	cfg     KafkaConfig
	deps    component.Dependencies
	metrics *metric.Metrics

	reader  kafkaReader
	handler Handler

	// newReader is swapped in tests
	newReader func() kafkaReader

	mu        sync.Mutex
	state     component.State
	startTime time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
	queues    map[int]chan Event
	queueWG   sync.WaitGroup
}

// NewKafkaStream creates a Kafka-backed event source
func NewKafkaStream(cfg KafkaConfig, deps component.Dependencies) *KafkaStream {
	s := &KafkaStream{
		cfg:     cfg,
		deps:    deps,
		metrics: deps.MetricsRegistry.CoreMetrics(),
		state:   component.StateCreated,
	}
	s.newReader = func() kafkaReader {
		minBytes := cfg.MinBytes
		if minBytes <= 0 {
			minBytes = defaultMinBytes
		}
		maxBytes := cfg.MaxBytes
		if maxBytes <= 0 {
			maxBytes = defaultMaxBytes
		}
		maxWait := cfg.MaxWait
		if maxWait <= 0 {
			maxWait = time.Second
		}
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: minBytes,
			MaxBytes: maxBytes,
			MaxWait:  maxWait,
		})
	}
	return s
}

// RegisterHandler sets the delivery callback. Must be called before Start.
func (s *KafkaStream) RegisterHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Initialize validates configuration
func (s *KafkaStream) Initialize() error {
	if len(s.cfg.Brokers) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "KafkaStream", "Initialize", "brokers required")
	}
	if s.cfg.Topic == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "KafkaStream", "Initialize", "topic required")
	}
	if s.cfg.GroupID == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "KafkaStream", "Initialize", "group id required")
	}

	s.mu.Lock()
	s.state = component.StateInitialized
	s.mu.Unlock()
	return nil
}

// Start begins fetching messages and dispatching them per partition
func (s *KafkaStream) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == component.StateStarted {
		s.mu.Unlock()
		return errors.ErrAlreadyStarted
	}
	if s.handler == nil {
		s.mu.Unlock()
		return errors.WrapFatal(errors.ErrMissingConfig, "KafkaStream", "Start", "handler not registered")
	}

	s.reader = s.newReader()
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.queues = make(map[int]chan Event)
	s.state = component.StateStarted
	s.startTime = time.Now()
	s.mu.Unlock()

	logger := s.deps.GetLoggerWithComponent("KafkaStream")
	logger.Info("Starting telemetry stream consumer",
		"topic", s.cfg.Topic,
		"group_id", s.cfg.GroupID,
		"brokers", s.cfg.Brokers)

	go s.fetchLoop(ctx)
	return nil
}

func (s *KafkaStream) fetchLoop(ctx context.Context) {
	logger := s.deps.GetLoggerWithComponent("KafkaStream")
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || s.stopped() {
				return
			}
			s.metrics.ErrorsTotal.WithLabelValues("KafkaStream", "transient").Inc()
			logger.Warn("Fetch failed, reader will retry", "error", err)
			continue
		}

		s.metrics.EventsReceived.WithLabelValues(strconv.Itoa(msg.Partition)).Inc()

		ev := Event{
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       msg.Key,
			Value:     msg.Value,
			Time:      msg.Time,
			commitRef: msg,
		}

		s.queueFor(msg.Partition) <- ev
	}
}

// queueFor returns the dispatch channel for a partition, creating the
// dispatcher goroutine on first use.
func (s *KafkaStream) queueFor(partition int) chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q, ok := s.queues[partition]; ok {
		return q
	}

	q := make(chan Event, dispatchQueueDepth)
	s.queues[partition] = q
	s.queueWG.Add(1)

	handler := s.handler
	go func() {
		defer s.queueWG.Done()
		for ev := range q {
			handler(context.Background(), ev)
		}
	}()

	return q
}

// Commit durably records the event's offset with the consumer group
func (s *KafkaStream) Commit(ctx context.Context, ev Event) error {
	msg, ok := ev.commitRef.(kafka.Message)
	if !ok {
		return errors.WrapInvalid(errors.ErrCheckpointFailed, "KafkaStream", "Commit", "event has no commit handle")
	}

	s.mu.Lock()
	reader := s.reader
	s.mu.Unlock()
	if reader == nil {
		return errors.ErrNotStarted
	}

	if err := reader.CommitMessages(ctx, msg); err != nil {
		return errors.WrapTransient(err, "KafkaStream", "Commit", "commit offset")
	}
	return nil
}

// Stop halts fetching, drains per-partition queues, and closes the reader.
// In-flight handler invocations run to completion within the grace period.
func (s *KafkaStream) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if s.state != component.StateStarted {
		s.mu.Unlock()
		return nil
	}
	s.state = component.StateStopped
	close(s.stopCh)
	reader := s.reader
	s.mu.Unlock()

	// Unblock FetchMessage
	var closeErr error
	if reader != nil {
		closeErr = reader.Close()
	}

	done := make(chan struct{})
	go func() {
		<-s.doneCh
		s.mu.Lock()
		for _, q := range s.queues {
			close(q)
		}
		s.mu.Unlock()
		s.queueWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrShuttingDown, "KafkaStream", "Stop", "drain dispatch queues")
	}

	if closeErr != nil {
		return errors.Wrap(closeErr, "KafkaStream", "Stop", "close reader")
	}
	return nil
}

// Health returns the stream health status
func (s *KafkaStream) Health() component.HealthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := component.HealthStatus{
		Healthy:   s.state == component.StateStarted,
		LastCheck: time.Now(),
	}
	if s.state == component.StateStarted {
		status.Uptime = time.Since(s.startTime)
	}
	return status
}

func (s *KafkaStream) stopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}
