package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jeffbrin/SHFT/reading"
	"github.com/jeffbrin/SHFT/subsystem"
)

// Observer receives one state change per call. Observers run synchronously
// on the change path and must not block.
type Observer func(subsystem.Change)

// Publisher mirrors changes onto the message bus
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// ChangeSource is the holder-side registration surface
type ChangeSource interface {
	Subscribe(subsystem.Listener) func()
}

// changeEvent is the wire form of a published state change
type changeEvent struct {
	Subsystem string        `json:"subsystem"`
	Type      reading.Type  `json:"reading_type"`
	Value     reading.Value `json:"value"`
	Unit      reading.Unit  `json:"reading_unit"`
	Timestamp time.Time     `json:"timestamp"`
}

// Notifier is the change hub. Subsystem holders are attached once at
// startup; observers come and go at runtime with explicit registration and
// removal.
type Notifier struct {
	logger    *slog.Logger
	publisher Publisher
	subject   string

	mu        sync.RWMutex
	observers map[int]Observer
	nextID    int
	detach    []func()
}

// NotifierOption customizes a Notifier
type NotifierOption func(*Notifier)

// WithPublisher mirrors every change onto subject.<subsystem> on the bus
func WithPublisher(p Publisher, subjectPrefix string) NotifierOption {
	return func(n *Notifier) {
		n.publisher = p
		n.subject = subjectPrefix
	}
}

// NewNotifier creates a change hub
func NewNotifier(logger *slog.Logger, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		logger:    logger.With("component", "Notifier"),
		subject:   "telemetry.changes",
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Attach wires a subsystem holder into the hub. The returned detach is also
// recorded so Close can unwind every attachment.
func (n *Notifier) Attach(source ChangeSource) func() {
	unsubscribe := source.Subscribe(n.dispatch)
	n.mu.Lock()
	n.detach = append(n.detach, unsubscribe)
	n.mu.Unlock()
	return unsubscribe
}

// Register adds an observer and returns its removal func
func (n *Notifier) Register(o Observer) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.observers[id] = o
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.observers, id)
		n.mu.Unlock()
	}
}

// ObserverCount reports how many observers are registered
func (n *Notifier) ObserverCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.observers)
}

// dispatch fans one change out to every observer, then mirrors it to the
// bus when a publisher is configured.
func (n *Notifier) dispatch(c subsystem.Change) {
	n.mu.RLock()
	observers := make([]Observer, 0, len(n.observers))
	for _, o := range n.observers {
		observers = append(observers, o)
	}
	n.mu.RUnlock()

	for _, o := range observers {
		o(c)
	}

	if n.publisher != nil {
		n.publish(c)
	}
}

func (n *Notifier) publish(c subsystem.Change) {
	event := changeEvent{
		Subsystem: c.Subsystem,
		Type:      c.Reading.Type,
		Value:     c.Reading.Value,
		Unit:      c.Reading.Unit,
		Timestamp: c.Reading.Timestamp,
	}
	data, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("Failed to encode change event", "error", err)
		return
	}

	subject := fmt.Sprintf("%s.%s", n.subject, strings.ToLower(c.Subsystem))
	if err := n.publisher.Publish(context.Background(), subject, data); err != nil {
		n.logger.Warn("Failed to publish change event",
			"subject", subject,
			"error", err)
	}
}

// Close detaches the hub from every subsystem holder
func (n *Notifier) Close() {
	n.mu.Lock()
	detach := n.detach
	n.detach = nil
	n.mu.Unlock()

	for _, d := range detach {
		d()
	}
}
