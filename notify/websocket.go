package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/jeffbrin/SHFT/component"
	"github.com/jeffbrin/SHFT/config"
	"github.com/jeffbrin/SHFT/errors"
	"github.com/jeffbrin/SHFT/metric"
	"github.com/jeffbrin/SHFT/subsystem"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// wsClient is one connected UI observer. Each client carries its own rate
// limiter; changes arriving faster than the client's budget are dropped
// for that client only.
type wsClient struct {
	conn    *websocket.Conn
	limiter *rate.Limiter

	// writeMu serializes writes; the websocket library does not allow
	// concurrent writers on one connection.
	writeMu sync.Mutex
	closed  bool
}

// Broadcaster serves the live state-change feed over a websocket endpoint.
// It registers itself as a Notifier observer on Start and pushes each
// change to every connected client within that client's rate budget.
type Broadcaster struct {
	notifier *Notifier
	cfg      config.NotifyConfig
	deps     component.Dependencies
	metrics  *metric.Metrics

	upgrader websocket.Upgrader
	server   *http.Server

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*wsClient

	mu         sync.Mutex
	state      component.State
	startTime  time.Time
	errCount   int
	lastErr    error
	unregister func()
	shutdown   chan struct{}
	wg         sync.WaitGroup
}

// NewBroadcaster creates the websocket feed
func NewBroadcaster(notifier *Notifier, cfg config.NotifyConfig, deps component.Dependencies) *Broadcaster {
	return &Broadcaster{
		notifier: notifier,
		cfg:      cfg,
		deps:     deps,
		metrics:  deps.MetricsRegistry.CoreMetrics(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*wsClient),
		state:   component.StateCreated,
	}
}

// Initialize validates the feed configuration
func (b *Broadcaster) Initialize() error {
	if b.notifier == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "Broadcaster", "Initialize", "notifier required")
	}
	if b.cfg.Addr == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "Broadcaster", "Initialize", "listen address required")
	}
	if b.cfg.RatePerSecond <= 0 || b.cfg.RateBurst <= 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Broadcaster", "Initialize", "client rate budget must be positive")
	}

	b.mu.Lock()
	b.state = component.StateInitialized
	b.mu.Unlock()
	return nil
}

// Start begins serving the websocket endpoint and observing changes
func (b *Broadcaster) Start(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == component.StateStarted {
		return errors.ErrAlreadyStarted
	}
	if b.state != component.StateInitialized {
		return errors.WrapFatal(errors.ErrNotStarted, "Broadcaster", "Start", "not initialized")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.handleUpgrade)
	b.server = &http.Server{
		Addr:              b.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	b.shutdown = make(chan struct{})
	b.unregister = b.notifier.Register(b.broadcast)

	logger := b.deps.GetLoggerWithComponent("Broadcaster")

	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			b.recordError(err)
			logger.Error("Websocket server failed", "error", err)
		}
	}()
	go b.maintainClients()

	b.state = component.StateStarted
	b.startTime = time.Now()
	logger.Info("State-change feed started", "addr", b.cfg.Addr)
	return nil
}

// handleUpgrade accepts a new websocket client
func (b *Broadcaster) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.recordError(err)
		b.metrics.ErrorsTotal.WithLabelValues("Broadcaster", "transient").Inc()
		return
	}

	client := &wsClient{
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(b.cfg.RatePerSecond), b.cfg.RateBurst),
	}

	b.clientsMu.Lock()
	b.clients[conn] = client
	b.clientsMu.Unlock()

	b.wg.Add(1)
	go b.readLoop(client)
}

// readLoop drains client frames to keep pong handling alive. Clients are
// observers only; any data they send is ignored.
func (b *Broadcaster) readLoop(client *wsClient) {
	defer b.wg.Done()
	defer b.removeClient(client)

	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		select {
		case <-b.shutdown:
			return
		default:
		}
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// broadcast pushes one change to every connected client. A client whose
// rate budget is exhausted misses this change; the next snapshot read
// catches it up.
func (b *Broadcaster) broadcast(c subsystem.Change) {
	event := changeEvent{
		Subsystem: c.Subsystem,
		Type:      c.Reading.Type,
		Value:     c.Reading.Value,
		Unit:      c.Reading.Unit,
		Timestamp: c.Reading.Timestamp,
	}
	data, err := json.Marshal(event)
	if err != nil {
		b.recordError(err)
		return
	}

	for _, client := range b.clientSnapshot() {
		if !client.limiter.Allow() {
			continue
		}
		if err := b.send(client, data); err != nil {
			b.removeClient(client)
		}
	}
}

func (b *Broadcaster) clientSnapshot() []*wsClient {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	clients := make([]*wsClient, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	return clients
}

func (b *Broadcaster) send(client *wsClient, data []byte) error {
	client.writeMu.Lock()
	defer client.writeMu.Unlock()
	if client.closed {
		return errors.ErrConnectionLost
	}
	_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return client.conn.WriteMessage(websocket.TextMessage, data)
}

func (b *Broadcaster) removeClient(client *wsClient) {
	client.writeMu.Lock()
	alreadyClosed := client.closed
	client.closed = true
	client.writeMu.Unlock()
	if alreadyClosed {
		return
	}

	b.clientsMu.Lock()
	delete(b.clients, client.conn)
	b.clientsMu.Unlock()
	_ = client.conn.Close()
}

// maintainClients pings clients so dead connections are reaped by their
// read deadline.
func (b *Broadcaster) maintainClients() {
	defer b.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-b.shutdown:
			return
		case <-ticker.C:
			for _, client := range b.clientSnapshot() {
				client.writeMu.Lock()
				if !client.closed {
					_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
					_ = client.conn.WriteMessage(websocket.PingMessage, nil)
				}
				client.writeMu.Unlock()
			}
		}
	}
}

// Stop deregisters from the notifier, closes the server, and drops clients
func (b *Broadcaster) Stop(timeout time.Duration) error {
	b.mu.Lock()
	if b.state != component.StateStarted {
		b.mu.Unlock()
		return nil
	}
	b.state = component.StateStopped
	unregister := b.unregister
	b.unregister = nil
	close(b.shutdown)
	b.mu.Unlock()

	if unregister != nil {
		unregister()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = b.server.Shutdown(ctx)

	for _, client := range b.clientSnapshot() {
		b.removeClient(client)
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrShuttingDown, "Broadcaster", "Stop", "goroutines did not drain in time")
	}

	b.deps.GetLoggerWithComponent("Broadcaster").Info("State-change feed stopped")
	return nil
}

// Health returns the broadcaster health status
func (b *Broadcaster) Health() component.HealthStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	status := component.HealthStatus{
		Healthy:    b.state == component.StateStarted,
		LastCheck:  time.Now(),
		ErrorCount: b.errCount,
	}
	if b.lastErr != nil {
		status.LastError = b.lastErr.Error()
	}
	if b.state == component.StateStarted {
		status.Uptime = time.Since(b.startTime)
	}
	return status
}

// ClientCount reports how many clients are connected
func (b *Broadcaster) ClientCount() int {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) recordError(err error) {
	b.mu.Lock()
	b.errCount++
	b.lastErr = err
	b.mu.Unlock()
}
