package syncerr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() *Handler {
	// Millisecond backoff keeps the retry tests fast.
	return NewHandler(3, time.Millisecond)
}

func TestWithRetryEventualSuccess(t *testing.T) {
	h := newTestHandler()

	calls := 0
	err := h.WithRetry(context.Background(), "op.flaky", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("network unreachable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 0, h.Attempts("op.flaky"), "success must reset the failure counter")
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	h := newTestHandler()

	calls := 0
	err := h.WithRetry(context.Background(), "op.dead", func(ctx context.Context) error {
		calls++
		return errors.New("connection refused")
	})

	require.Error(t, err)
	assert.Equal(t, KindConnectionFailed, KindOf(err))
	// First attempt plus maxRetries retries.
	assert.Equal(t, 4, calls)
	assert.Equal(t, 0, h.Attempts("op.dead"), "giving up must reset the counter")
}

func TestWithRetryNonRetryableFailsImmediately(t *testing.T) {
	h := newTestHandler()

	calls := 0
	err := h.WithRetry(context.Background(), "op.denied", func(ctx context.Context) error {
		calls++
		return errors.New("permission denied")
	})

	require.Error(t, err)
	assert.Equal(t, KindPermissionDenied, KindOf(err))
	assert.Equal(t, 1, calls)
}

func TestWithRetryCountersArePerOperation(t *testing.T) {
	h := newTestHandler()

	sentinel := errors.New("network down")
	aCalls, bCalls := 0, 0

	_ = h.WithRetry(context.Background(), "op.a", func(ctx context.Context) error {
		aCalls++
		return sentinel
	})
	_ = h.WithRetry(context.Background(), "op.b", func(ctx context.Context) error {
		bCalls++
		return sentinel
	})

	// Each operation gets its own full budget.
	assert.Equal(t, 4, aCalls)
	assert.Equal(t, 4, bCalls)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	h := NewHandler(3, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := h.WithRetry(ctx, "op.cancelled", func(ctx context.Context) error {
		calls++
		return errors.New("connection reset")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestHandleClassifiesAndNotifies(t *testing.T) {
	h := newTestHandler()

	var got *Error
	h.SetErrorCallback(func(e *Error) { got = e })

	ce := h.Handle(errors.New("sql logic error"), "store.create_chat")
	require.NotNil(t, ce)
	assert.Equal(t, KindQueryFailed, ce.Kind)
	assert.Equal(t, "store.create_chat", ce.Context)
	assert.Same(t, ce, got)

	assert.Nil(t, h.Handle(nil, "noop"))
}

func TestRecoverQuota(t *testing.T) {
	h := newTestHandler()

	pruned := false
	h.SetQuotaPruner(func(ctx context.Context) error {
		pruned = true
		return nil
	})

	ok := h.Recover(context.Background(), New(KindStorageQuotaExceeded, "disk full"))
	assert.True(t, ok)
	assert.True(t, pruned)
}

func TestRecoverQuotaPruneFailure(t *testing.T) {
	h := newTestHandler()
	h.SetQuotaPruner(func(ctx context.Context) error {
		return errors.New("still full")
	})

	assert.False(t, h.Recover(context.Background(), New(KindStorageQuotaExceeded, "disk full")))
}

func TestRecoverWorkerReinit(t *testing.T) {
	h := newTestHandler()

	reinits := 0
	h.SetWorkerReinit(func(ctx context.Context) error {
		reinits++
		return nil
	})

	ok := h.Recover(context.Background(), New(KindWorkerError, "runtime gone"))
	assert.True(t, ok)
	assert.Equal(t, 1, reinits)
}

func TestRecoverConnectionWaitsForProbe(t *testing.T) {
	h := newTestHandler()

	probes := 0
	h.SetConnectivityProbe(func(ctx context.Context) bool {
		probes++
		return probes >= 2
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ok := h.Recover(ctx, New(KindConnectionFailed, "connection lost"))
	assert.True(t, ok)
	assert.GreaterOrEqual(t, probes, 2)
}

func TestRecoverWithoutHooks(t *testing.T) {
	h := newTestHandler()

	assert.False(t, h.Recover(context.Background(), New(KindStorageQuotaExceeded, "disk full")))
	assert.False(t, h.Recover(context.Background(), New(KindWorkerError, "runtime gone")))
	assert.False(t, h.Recover(context.Background(), New(KindQueryFailed, "bad sql")))
}

func TestHandlerDefaults(t *testing.T) {
	h := NewHandler(0, 0)
	assert.Equal(t, DefaultMaxRetries, h.maxRetries)
	assert.Equal(t, DefaultBaseDelay, h.baseDelay)
}
