package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// probeControl lets a test flip the fake liveness probe between healthy
// and failing while the manager runs.
type probeControl struct {
	mu  sync.Mutex
	err error
}

func (p *probeControl) set(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *probeControl) probe(ctx context.Context, c *redis.Client) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func newTestManager(policy Policy) (*Manager, *probeControl) {
	m := NewManager(&redis.Options{Addr: "store.test:6379"}, policy)
	pc := &probeControl{}
	m.dial = func(opts *redis.Options) *redis.Client {
		// Never used for real commands; the probe is stubbed.
		return redis.NewClient(opts)
	}
	m.probe = pc.probe
	return m, pc
}

func fastPolicy() Policy {
	return Policy{LockWait: 200 * time.Millisecond, ConnectTimeout: 2 * time.Second, MaxRetries: 3}
}

func TestConcurrentDatabaseSharesOneConnection(t *testing.T) {
	m, _ := newTestManager(fastPolicy())
	defer m.Close()

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Database(context.Background()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Database: %v", err)
	}

	if got := m.totalConnections.Load(); got != 1 {
		t.Fatalf("totalConnections = %d, want exactly 1 for %d concurrent callers", got, callers)
	}
	if info := m.Info(); !info.Connected || info.State != "ready" {
		t.Fatalf("Info = %+v, want connected/ready", info)
	}
}

func TestConnectLockTimeout(t *testing.T) {
	m, _ := newTestManager(Policy{LockWait: 50 * time.Millisecond, ConnectTimeout: time.Second, MaxRetries: 1})
	defer m.Close()

	// Occupy the exclusive connect section.
	m.connectGate <- struct{}{}
	defer func() { <-m.connectGate }()

	_, err := m.Connect(context.Background())
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}

func TestEstablishFailureExhaustsAndNotifies(t *testing.T) {
	m, pc := newTestManager(Policy{LockWait: 100 * time.Millisecond, ConnectTimeout: time.Second, MaxRetries: 1})
	defer m.Close()
	pc.set(errors.New("connection refused"))

	var mu sync.Mutex
	var kinds []ConnectionEventKind
	sub := m.Subscribe(func(ev ConnectionEvent) {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
	})
	defer sub.Cancel()

	_, err := m.Connect(context.Background())
	if !errors.Is(err, ErrConnectTimeout) {
		t.Fatalf("expected ErrConnectTimeout, got %v", err)
	}

	if got := m.failedConnections.Load(); got != 1 {
		t.Errorf("failedConnections = %d, want 1", got)
	}
	if info := m.Info(); info.State != "failed" {
		t.Errorf("state = %s, want failed", info.State)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != 2 || kinds[0] != EventConnectionError || kinds[1] != EventConnectionLost {
		t.Errorf("events = %v, want [error, lost]", kinds)
	}
}

func TestEstablishBackoffRespectsContext(t *testing.T) {
	m, pc := newTestManager(fastPolicy())
	defer m.Close()
	pc.set(errors.New("connection refused"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := m.Connect(ctx)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrConnectTimeout) {
		t.Fatalf("expected ErrConnectTimeout, got %v", err)
	}
	// The first retry backoff alone is 2s; cancellation must cut it short.
	if elapsed > time.Second {
		t.Fatalf("backoff ignored context cancellation, took %v", elapsed)
	}
}

func TestRecoveryAfterFailureNotifiesConnected(t *testing.T) {
	m, pc := newTestManager(Policy{LockWait: 100 * time.Millisecond, ConnectTimeout: time.Second, MaxRetries: 1})
	defer m.Close()

	pc.set(errors.New("connection refused"))
	if _, err := m.Connect(context.Background()); err == nil {
		t.Fatal("expected first connect to fail")
	}

	var mu sync.Mutex
	var recovered bool
	sub := m.Subscribe(func(ev ConnectionEvent) {
		if ev.Kind == EventConnected {
			mu.Lock()
			recovered = true
			mu.Unlock()
		}
	})
	defer sub.Cancel()

	pc.set(nil)
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("recovery connect failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !recovered {
		t.Fatal("expected EventConnected after recovery from failed state")
	}
}

func TestIsConnectedProbesActively(t *testing.T) {
	m, pc := newTestManager(fastPolicy())
	defer m.Close()
	ctx := context.Background()

	if m.IsConnected(ctx) {
		t.Fatal("IsConnected must be false before any connect")
	}
	if _, err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !m.IsConnected(ctx) {
		t.Fatal("IsConnected must be true with healthy probe")
	}

	// Store dies underneath the cached handle.
	pc.set(errors.New("broken pipe"))
	if m.IsConnected(ctx) {
		t.Fatal("IsConnected must re-probe, not report a cached flag")
	}
}

func TestReconnectReplacesConnection(t *testing.T) {
	m, _ := newTestManager(fastPolicy())
	defer m.Close()
	ctx := context.Background()

	if _, err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	before := m.Info()

	if err := m.Reconnect(ctx); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	after := m.Info()

	if after.TotalConnections != before.TotalConnections+1 {
		t.Errorf("totalConnections = %d, want %d", after.TotalConnections, before.TotalConnections+1)
	}
	if !after.Connected || after.State != "ready" {
		t.Errorf("Info after reconnect = %+v", after)
	}
	if after.LastReconnect.IsZero() {
		t.Errorf("LastReconnect not recorded")
	}
}

func TestClosedManagerRejectsUse(t *testing.T) {
	m, _ := newTestManager(fastPolicy())
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := m.Database(context.Background()); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected ErrManagerClosed, got %v", err)
	}
	if _, err := m.Connect(context.Background()); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected ErrManagerClosed from Connect, got %v", err)
	}
}

func TestSubscriptionCancelTwice(t *testing.T) {
	m, _ := newTestManager(fastPolicy())
	defer m.Close()

	sub := m.Subscribe(func(ConnectionEvent) {})
	sub.Cancel()
	sub.Cancel() // no-op, must not panic

	m.lmu.Lock()
	n := len(m.listeners)
	m.lmu.Unlock()
	if n != 0 {
		t.Fatalf("listeners = %d after cancel, want 0", n)
	}
}
