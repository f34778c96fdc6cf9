package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chatvault/core/internal/logging"
	"github.com/chatvault/core/internal/uuid"
)

const (
	// DefaultRequestTimeout bounds a single bridge round trip.
	DefaultRequestTimeout = 10 * time.Second
	// DefaultInitTimeout bounds the wait for store readiness.
	DefaultInitTimeout = 10 * time.Second
	// readyPollInterval is how often WaitReady re-checks the ready flag.
	readyPollInterval = 50 * time.Millisecond
)

// Config holds bridge construction parameters.
type Config struct {
	// DSN is the SQLite data source, e.g. a file path under the data
	// directory or "file::memory:?cache=shared" in tests.
	DSN string
	// RequestTimeout overrides DefaultRequestTimeout when positive.
	RequestTimeout time.Duration
	// InitTimeout overrides DefaultInitTimeout when positive.
	InitTimeout time.Duration
}

// Bridge is the request/response proxy in front of the storage runtime.
// Any number of calls may be in flight at once; the runtime applies them
// in its own order and each request gets exactly one matching response or
// times out.
type Bridge struct {
	cfg     Config
	runtime *runtime

	mu      sync.Mutex
	pending map[string]chan response

	ready  atomic.Bool
	closed atomic.Bool
}

// New creates a Bridge and starts its storage runtime. The store is not
// usable until Initialize has completed.
func New(cfg Config) *Bridge {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = DefaultInitTimeout
	}

	b := &Bridge{
		cfg:     cfg,
		pending: make(map[string]chan response),
	}
	b.runtime = newRuntime(cfg.DSN, b.deliver)
	go b.runtime.loop()
	return b
}

// Initialize performs the one-time handshake: the runtime opens the
// database, applies migrations, and the ready flag flips on success.
func (b *Bridge) Initialize(ctx context.Context) error {
	resp, err := b.submit(ctx, request{Kind: RequestInitialize})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("bridge: initialization failed: %w", resp.Err)
	}
	b.ready.Store(true)
	logging.Info("storage bridge initialized", map[string]interface{}{"dsn": b.cfg.DSN})
	return nil
}

// Ready reports whether initialization has completed.
func (b *Bridge) Ready() bool {
	return b.ready.Load()
}

// WaitReady blocks until the store is initialized, polling the ready flag.
// It fails after the configured init timeout so callers cannot hang on a
// store that never came up.
func (b *Bridge) WaitReady(ctx context.Context) error {
	if b.ready.Load() {
		return nil
	}

	deadline := time.Now().Add(b.cfg.InitTimeout)
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("bridge: wait for initialization: %w", ctx.Err())
		case <-ticker.C:
			if b.ready.Load() {
				return nil
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("bridge: initialization timeout after %s", b.cfg.InitTimeout)
			}
		}
	}
}

// Query runs a SELECT and returns the matched rows.
func (b *Bridge) Query(ctx context.Context, sql string, params ...interface{}) ([]Row, error) {
	resp, err := b.submit(ctx, request{
		Kind: RequestQuery,
		Stmt: Statement{SQL: sql, Params: params},
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, resp.Err
	}
	return resp.Rows, nil
}

// Run executes a mutating statement and reports affected rows.
func (b *Bridge) Run(ctx context.Context, sql string, params ...interface{}) (*RunResult, error) {
	resp, err := b.submit(ctx, request{
		Kind: RequestRun,
		Stmt: Statement{SQL: sql, Params: params},
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, resp.Err
	}
	return resp.Result, nil
}

// Transaction executes ops atomically, in order.
func (b *Bridge) Transaction(ctx context.Context, ops []Statement) error {
	resp, err := b.submit(ctx, request{Kind: RequestTransaction, Ops: ops})
	if err != nil {
		return err
	}
	if !resp.Success {
		return resp.Err
	}
	return nil
}

// Close shuts down the storage runtime. In-flight requests fail with a
// timeout once their window elapses.
func (b *Bridge) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.ready.Store(false)
	return b.runtime.close()
}

// submit registers a pending entry, posts the request, and waits for the
// matching response or the timeout. No retries happen at this layer.
func (b *Bridge) submit(ctx context.Context, req request) (response, error) {
	if b.closed.Load() {
		return response{}, fmt.Errorf("bridge: connection closed")
	}

	req.ID = uuid.New()
	ch := make(chan response, 1)

	b.mu.Lock()
	b.pending[req.ID] = ch
	b.mu.Unlock()

	if err := b.runtime.post(req); err != nil {
		b.unregister(req.ID)
		return response{}, err
	}

	timer := time.NewTimer(b.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		b.unregister(req.ID)
		return response{}, fmt.Errorf("bridge: request %s canceled: %w", req.Kind, ctx.Err())
	case <-timer.C:
		b.unregister(req.ID)
		return response{}, fmt.Errorf("bridge: %s request timeout after %s", req.Kind, b.cfg.RequestTimeout)
	}
}

// deliver routes a runtime response to its pending request. Responses that
// match no pending id (e.g. the request already timed out) are dropped.
func (b *Bridge) deliver(resp response) {
	b.mu.Lock()
	ch, ok := b.pending[resp.ID]
	if ok {
		delete(b.pending, resp.ID)
	}
	b.mu.Unlock()

	if !ok {
		logging.Debug("dropping unmatched bridge response", map[string]interface{}{"id": resp.ID})
		return
	}
	ch <- resp
}

func (b *Bridge) unregister(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}
