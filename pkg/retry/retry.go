package retry

import (
	"context"
	"fmt"
	"sync"
	"time"

	backoff "github.com/sethvargo/go-retry"

	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
	"github.com/charmforge/charmforge-backend/pkg/logger"
)

const defaultBaseDelay = time.Second

// Policy bounds the retry loop: the first attempt plus up to MaxRetries
// re-attempts, waiting BaseDelay * 2^attempt between them.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// FailureRecord keeps the most recent failure for an operation key.
type FailureRecord struct {
	Err error
	At  time.Time
}

// Executor wraps operations with classified, bounded exponential retry.
// Attempt bookkeeping is tracked per caller-supplied key so independent
// operations (different carts, different orders) do not interfere.
type Executor struct {
	policy   Policy
	classify func(error) bool
	logg     *logger.Logger

	mu          sync.Mutex
	attempts    map[string]int
	lastFailure map[string]FailureRecord
}

// NewExecutor builds an executor around the shared error classifier.
func NewExecutor(policy Policy, logg *logger.Logger) (*Executor, error) {
	if policy.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries cannot be negative")
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = defaultBaseDelay
	}
	return &Executor{
		policy:      policy,
		classify:    pkgerrors.IsRetryable,
		logg:        logg,
		attempts:    map[string]int{},
		lastFailure: map[string]FailureRecord{},
	}, nil
}

// Do runs op, retrying transient failures with exponential backoff.
// Non-retryable failures short-circuit immediately; on exhaustion the last
// operation error is returned unchanged. Effects are not deduplicated across
// attempts, so op must be idempotent from the caller's perspective.
func (e *Executor) Do(ctx context.Context, key string, op func(ctx context.Context) error) error {
	b := backoff.WithMaxRetries(uint64(e.policy.MaxRetries), backoff.NewExponential(e.policy.BaseDelay))

	return backoff.Do(ctx, b, func(ctx context.Context) error {
		e.recordAttempt(key)

		opErr := op(ctx)
		if opErr == nil {
			return nil
		}

		e.recordFailure(key, opErr)
		if !e.classify(opErr) {
			return opErr
		}

		if e.logg != nil {
			logCtx := e.logg.WithFields(ctx, map[string]any{
				"operation": key,
				"attempt":   e.Attempts(key),
			})
			e.logg.Warn(logCtx, "retryable failure, backing off")
		}
		return backoff.RetryableError(opErr)
	})
}

// Attempts returns how many times the keyed operation has been invoked.
func (e *Executor) Attempts(key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts[key]
}

// LastFailure returns the most recent failure recorded for the key.
func (e *Executor) LastFailure(key string) (FailureRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	record, ok := e.lastFailure[key]
	return record, ok
}

// Clear drops the bookkeeping for the key.
func (e *Executor) Clear(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.attempts, key)
	delete(e.lastFailure, key)
}

func (e *Executor) recordAttempt(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts[key]++
}

func (e *Executor) recordFailure(key string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastFailure[key] = FailureRecord{Err: err, At: time.Now()}
}
