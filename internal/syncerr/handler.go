package syncerr

import (
	"context"
	"sync"
	"time"

	"github.com/chatvault/core/internal/logging"
	"github.com/chatvault/core/internal/telemetry"
)

const (
	// DefaultMaxRetries bounds retries after the first attempt.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the backoff unit: delay = base * 2^attempt.
	DefaultBaseDelay = time.Second
	// defaultProbeInterval is how often connectivity is polled during recovery.
	defaultProbeInterval = 2 * time.Second
)

// Handler classifies failures, retries retryable ones with exponential
// backoff, and runs best-effort recovery actions per kind.
type Handler struct {
	maxRetries int
	baseDelay  time.Duration

	mu       sync.Mutex
	attempts map[string]int // operation id -> consecutive failures

	onError func(*Error)

	// Recovery hooks, all optional.
	pruneQuota  func(ctx context.Context) error // reclaim local storage
	reinit      func(ctx context.Context) error // restart the storage runtime
	probeOnline func(ctx context.Context) bool  // connectivity check
}

// NewHandler creates a Handler with the given retry policy. Non-positive
// arguments select the defaults.
func NewHandler(maxRetries int, baseDelay time.Duration) *Handler {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Handler{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		attempts:   make(map[string]int),
	}
}

// SetErrorCallback registers a callback invoked with every classified error.
func (h *Handler) SetErrorCallback(fn func(*Error)) {
	h.onError = fn
}

// SetQuotaPruner registers the storage-reclaim action used to recover from
// quota exhaustion.
func (h *Handler) SetQuotaPruner(fn func(ctx context.Context) error) {
	h.pruneQuota = fn
}

// SetWorkerReinit registers the action that reinitializes the storage runtime.
func (h *Handler) SetWorkerReinit(fn func(ctx context.Context) error) {
	h.reinit = fn
}

// SetConnectivityProbe registers the check polled while waiting for
// connectivity to return.
func (h *Handler) SetConnectivityProbe(fn func(ctx context.Context) bool) {
	h.probeOnline = fn
}

// Handle classifies err, logs it, and reports it to the error callback.
// Returns nil when err is nil.
func (h *Handler) Handle(err error, operation string) *Error {
	if err == nil {
		return nil
	}

	ce := Classify(err)
	if ce.Context == "" {
		ce.Context = operation
	}

	logging.Error("operation failed", ce, map[string]interface{}{
		"kind":      string(ce.Kind),
		"operation": operation,
		"retryable": ce.Kind.Retryable(),
	})

	telemetry.TrackError(ce, map[string]string{"kind": string(ce.Kind), "operation": operation})
	if h.onError != nil {
		h.onError(ce)
	}
	return ce
}

// WithRetry executes fn, retrying retryable failures with exponential
// backoff (base * 2^attempt) until success, a non-retryable classification,
// the retry budget for operationID is exhausted, or ctx is done. The failure
// counter is keyed by operationID and resets on success.
func (h *Handler) WithRetry(ctx context.Context, operationID string, fn func(ctx context.Context) error) error {
	for {
		err := fn(ctx)
		if err == nil {
			h.resetAttempts(operationID)
			return nil
		}

		ce := h.Handle(err, operationID)
		if !ce.Kind.Retryable() {
			h.resetAttempts(operationID)
			return ce
		}

		attempt := h.bumpAttempts(operationID)
		if attempt > h.maxRetries {
			h.resetAttempts(operationID)
			return ce
		}

		delay := h.baseDelay * (1 << (attempt - 1))
		logging.Warn("retrying operation", map[string]interface{}{
			"operation": operationID,
			"attempt":   attempt,
			"max":       h.maxRetries,
			"delay_ms":  delay.Milliseconds(),
		})

		select {
		case <-ctx.Done():
			return Wrap(ce.Kind, "retry aborted", ctx.Err())
		case <-time.After(delay):
		}
	}
}

func (h *Handler) bumpAttempts(operationID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts[operationID]++
	return h.attempts[operationID]
}

func (h *Handler) resetAttempts(operationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.attempts, operationID)
}

// Attempts returns the current consecutive-failure count for an operation.
func (h *Handler) Attempts(operationID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts[operationID]
}

// Recover runs the kind-specific recovery action for err and reports whether
// recovery is believed to have succeeded. Callers are expected to re-attempt
// the original operation afterward.
func (h *Handler) Recover(ctx context.Context, err error) bool {
	ce := Classify(err)
	if ce == nil {
		return true
	}

	switch ce.Kind {
	case KindStorageQuotaExceeded:
		if h.pruneQuota == nil {
			return false
		}
		if pruneErr := h.pruneQuota(ctx); pruneErr != nil {
			logging.Error("quota recovery failed", pruneErr)
			return false
		}
		logging.Info("reclaimed local storage after quota error")
		return true

	case KindWorkerError:
		if h.reinit == nil {
			return false
		}
		if reinitErr := h.reinit(ctx); reinitErr != nil {
			logging.Error("storage runtime reinit failed", reinitErr)
			return false
		}
		logging.Info("storage runtime reinitialized")
		return true

	case KindConnectionFailed:
		if h.probeOnline == nil {
			return false
		}
		ticker := time.NewTicker(defaultProbeInterval)
		defer ticker.Stop()
		for {
			if h.probeOnline(ctx) {
				logging.Info("connectivity restored")
				return true
			}
			select {
			case <-ctx.Done():
				return false
			case <-ticker.C:
			}
		}

	default:
		return false
	}
}
