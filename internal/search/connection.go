package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"booking-search-platform/internal/logger"
)

var (
	// ErrLockTimeout reports that the exclusive connect section could not
	// be entered within the bounded wait. It is distinct from a connect
	// failure: the store may be fine and another caller simply slow.
	ErrLockTimeout = errors.New("timed out waiting for connection lock")

	// ErrConnectTimeout reports that connection establishment exhausted
	// its bounded retries without producing a usable handle.
	ErrConnectTimeout = errors.New("timed out establishing store connection")

	// ErrManagerClosed reports use of a manager after Close.
	ErrManagerClosed = errors.New("connection manager is closed")
)

// ConnState is the connection lifecycle state machine:
// Uninitialized -> Connecting -> Ready | Failed. Failed transitions back
// to Connecting on the next establishment attempt.
type ConnState int32

const (
	StateUninitialized ConnState = iota
	StateConnecting
	StateReady
	StateFailed
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnectionEventKind classifies observer notifications.
type ConnectionEventKind int

const (
	EventConnected ConnectionEventKind = iota
	EventConnectionLost
	EventConnectionError
)

// ConnectionEvent is delivered to registered observers on connection
// transitions.
type ConnectionEvent struct {
	Kind     ConnectionEventKind
	Endpoint string
	Err      error
}

// Subscription is the disposable registration token returned by
// Subscribe. Cancel removes the observer; cancelling twice is a no-op.
type Subscription struct {
	once sync.Once
	m    *Manager
	id   int
}

func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.m.lmu.Lock()
		delete(s.m.listeners, s.id)
		s.m.lmu.Unlock()
	})
}

// ConnectionInfo is a read-only snapshot of the manager's state.
type ConnectionInfo struct {
	Connected         bool      `json:"connected"`
	State             string    `json:"state"`
	Endpoint          string    `json:"endpoint"`
	LastReconnect     time.Time `json:"last_reconnect"`
	TotalConnections  int64     `json:"total_connections"`
	FailedConnections int64     `json:"failed_connections"`
}

// Policy bounds the manager's waiting and retrying.
type Policy struct {
	LockWait       time.Duration // max wait to enter the exclusive connect section
	ConnectTimeout time.Duration // overall bound on one Connect call
	MaxRetries     int           // attempts per establishment, and rounds in Database
}

// DefaultPolicy matches the platform defaults: 10s lock wait, 60s
// connect bound, 3 attempts.
func DefaultPolicy() Policy {
	return Policy{LockWait: 10 * time.Second, ConnectTimeout: 60 * time.Second, MaxRetries: 3}
}

// Manager owns the single multiplexed connection to the search store.
// It is a process-wide singleton shared by request-serving and
// background-indexing goroutines; only connection creation is
// write-exclusive, issued commands share the handle freely.
type Manager struct {
	opts   *redis.Options
	policy Policy

	mu     sync.Mutex
	state  ConnState
	client *redis.Client

	// connectGate serializes establishment; acquisition is bounded by
	// policy.LockWait so callers never queue indefinitely.
	connectGate chan struct{}

	totalConnections  atomic.Int64
	failedConnections atomic.Int64

	lastReconnect atomic.Int64 // unix nanos

	lmu       sync.Mutex
	listeners map[int]func(ConnectionEvent)
	nextSubID int

	// dial and probe are replaceable for tests.
	dial  func(opts *redis.Options) *redis.Client
	probe func(ctx context.Context, c *redis.Client) error
}

// NewManager creates a manager around the given client options. No
// connection is made until the first accessor call.
func NewManager(opts *redis.Options, policy Policy) *Manager {
	if policy.MaxRetries < 1 {
		policy.MaxRetries = 1
	}
	return &Manager{
		opts:        opts,
		policy:      policy,
		connectGate: make(chan struct{}, 1),
		listeners:   make(map[int]func(ConnectionEvent)),
		dial:        redis.NewClient,
		probe: func(ctx context.Context, c *redis.Client) error {
			return c.Ping(ctx).Err()
		},
	}
}

// Subscribe registers an observer for connection transitions and
// returns its cancellation token.
func (m *Manager) Subscribe(fn func(ConnectionEvent)) *Subscription {
	m.lmu.Lock()
	defer m.lmu.Unlock()
	m.nextSubID++
	id := m.nextSubID
	m.listeners[id] = fn
	return &Subscription{m: m, id: id}
}

func (m *Manager) notify(ev ConnectionEvent) {
	m.lmu.Lock()
	fns := make([]func(ConnectionEvent), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.lmu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Connect is the synchronous path: it enters the exclusive connect
// section (bounded wait), establishes a connection if none is live, and
// returns a ready handle. A caller that cannot enter the section in
// time gets ErrLockTimeout rather than a possibly-stale handle.
func (m *Manager) Connect(ctx context.Context) (*redis.Client, error) {
	if err := m.acquireGate(ctx); err != nil {
		return nil, err
	}
	defer m.releaseGate()

	// Another caller may have connected while we waited on the gate.
	if c := m.liveClient(ctx); c != nil {
		return c, nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.policy.ConnectTimeout)
	defer cancel()
	return m.establish(ctx)
}

// Database returns a ready command handle, reconnecting if the current
// connection is absent or dead. Up to MaxRetries rounds are made; the
// final round returns the raw handle without a liveness probe as a
// last-resort fallback, so callers must treat it as possibly stale.
func (m *Manager) Database(ctx context.Context) (*redis.Client, error) {
	var lastErr error

	for round := 1; round <= m.policy.MaxRetries; round++ {
		last := round == m.policy.MaxRetries

		m.mu.Lock()
		state, client := m.state, m.client
		m.mu.Unlock()
		if state == StateClosed {
			return nil, ErrManagerClosed
		}

		if client != nil && state == StateReady {
			if last {
				return client, nil
			}
			if err := m.probe(ctx, client); err == nil {
				return client, nil
			} else {
				lastErr = err
				logger.Warn("Search store liveness probe failed",
					"endpoint", m.opts.Addr, "round", round, "error", err)
			}
		}

		// Guarded reconnect: only one caller establishes, the rest reuse
		// what the winner produced on their next round.
		client, err := m.Connect(ctx)
		if err == nil {
			if last {
				return client, nil
			}
			if perr := m.probe(ctx, client); perr == nil {
				return client, nil
			} else {
				lastErr = perr
			}
			continue
		}
		lastErr = err

		if errors.Is(err, ctx.Err()) {
			return nil, err
		}
	}

	if lastErr == nil {
		lastErr = ErrConnectTimeout
	}
	return nil, fmt.Errorf("no usable store connection after %d rounds: %w", m.policy.MaxRetries, lastErr)
}

// PubSub returns a subscription handle on the shared connection's
// endpoint for the given channels.
func (m *Manager) PubSub(ctx context.Context, channels ...string) (*redis.PubSub, error) {
	client, err := m.Database(ctx)
	if err != nil {
		return nil, err
	}
	return client.Subscribe(ctx, channels...), nil
}

// IsConnected actively probes the current connection; it never reports
// a cached flag.
func (m *Manager) IsConnected(ctx context.Context) bool {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return false
	}
	return m.probe(ctx, client) == nil
}

// Reconnect forces a fresh connection: the existing one is disposed
// best-effort and a new one established, updating statistics.
func (m *Manager) Reconnect(ctx context.Context) error {
	if err := m.acquireGate(ctx); err != nil {
		return err
	}
	defer m.releaseGate()

	m.mu.Lock()
	old := m.client
	m.client = nil
	if m.state != StateClosed {
		m.state = StateUninitialized
	}
	m.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			logger.Warn("Failed to close stale store connection", "endpoint", m.opts.Addr, "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, m.policy.ConnectTimeout)
	defer cancel()
	_, err := m.establish(ctx)
	return err
}

// Info returns a read-only snapshot of connection state and statistics.
func (m *Manager) Info() ConnectionInfo {
	m.mu.Lock()
	state := m.state
	connected := m.client != nil && state == StateReady
	m.mu.Unlock()

	var last time.Time
	if ns := m.lastReconnect.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}

	return ConnectionInfo{
		Connected:         connected,
		State:             state.String(),
		Endpoint:          m.opts.Addr,
		LastReconnect:     last,
		TotalConnections:  m.totalConnections.Load(),
		FailedConnections: m.failedConnections.Load(),
	}
}

// Close disposes the connection and rejects further use.
func (m *Manager) Close() error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.state = StateClosed
	m.mu.Unlock()

	if client != nil {
		return client.Close()
	}
	return nil
}

func (m *Manager) acquireGate(ctx context.Context) error {
	select {
	case m.connectGate <- struct{}{}:
		return nil
	case <-time.After(m.policy.LockWait):
		return ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) releaseGate() {
	<-m.connectGate
}

// liveClient returns the current handle when it is ready and passes a
// probe, nil otherwise. Caller must hold the connect gate.
func (m *Manager) liveClient(ctx context.Context) *redis.Client {
	m.mu.Lock()
	state, client := m.state, m.client
	m.mu.Unlock()
	if client == nil || state != StateReady {
		return nil
	}
	if err := m.probe(ctx, client); err != nil {
		return nil
	}
	return client
}

// establish runs the per-call retry policy: up to MaxRetries attempts
// with exponential backoff (2^attempt seconds) on transient failures.
// Caller must hold the connect gate.
func (m *Manager) establish(ctx context.Context) (*redis.Client, error) {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	wasFailed := m.state == StateFailed
	m.state = StateConnecting
	m.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= m.policy.MaxRetries; attempt++ {
		m.totalConnections.Add(1)

		client := m.dial(m.opts)
		err := m.probe(ctx, client)
		if err == nil {
			m.mu.Lock()
			m.state = StateReady
			m.client = client
			m.mu.Unlock()
			m.lastReconnect.Store(time.Now().UnixNano())

			logger.Info("Search store connection established",
				"endpoint", m.opts.Addr, "attempt", attempt)
			if wasFailed {
				m.notify(ConnectionEvent{Kind: EventConnected, Endpoint: m.opts.Addr})
			}
			return client, nil
		}

		m.failedConnections.Add(1)
		lastErr = err
		_ = client.Close()
		logger.Warn("Search store connect attempt failed",
			"endpoint", m.opts.Addr, "attempt", attempt, "error", err)
		m.notify(ConnectionEvent{Kind: EventConnectionError, Endpoint: m.opts.Addr, Err: err})

		if attempt == m.policy.MaxRetries {
			break
		}
		backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			m.markFailed(ctx.Err())
			return nil, fmt.Errorf("%w: %v", ErrConnectTimeout, ctx.Err())
		}
	}

	m.markFailed(lastErr)
	return nil, fmt.Errorf("%w: %v", ErrConnectTimeout, lastErr)
}

func (m *Manager) markFailed(cause error) {
	m.mu.Lock()
	if m.state != StateClosed {
		m.state = StateFailed
	}
	m.mu.Unlock()

	logger.Error("Search store connection lost", "endpoint", m.opts.Addr, "error", cause)
	m.notify(ConnectionEvent{Kind: EventConnectionLost, Endpoint: m.opts.Addr, Err: cause})
}
