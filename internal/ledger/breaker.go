// Package ledger guards calls to the ledger collaborator.
//
// The ledger is the only side effect of a settlement. When it is slow or
// failing, Breaker stops sending batches after repeated failures and fails
// fast with ErrUnavailable until the cool-down elapses, so callers get a
// retryable error instead of piling up on a dead dependency.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mmynk/groupexchange/internal/models"
)

// ErrUnavailable is returned while the breaker rejects calls.
var ErrUnavailable = errors.New("ledger temporarily unavailable")

// Poster posts a batch of ledger entries atomically and voids batches that
// were never acknowledged.
type Poster interface {
	PostBatch(ctx context.Context, batch models.LedgerBatch) ([]string, error)
	VoidBatch(ctx context.Context, key string) error
}

// BreakerConfig controls when the breaker trips.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker when reached.
	ConsecutiveFailures uint32
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// Interval clears counts while closed; zero never clears.
	Interval time.Duration
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32
}

// DefaultBreakerConfig trips after five consecutive failures.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 5,
		Timeout:             30 * time.Second,
		Interval:            time.Minute,
		MaxRequests:         1,
	}
}

// StateListener is notified on breaker state changes.
// States are reported as 0 (closed), 1 (half-open) and 2 (open).
type StateListener func(state int)

// Breaker wraps a Poster with a circuit breaker.
type Breaker struct {
	next Poster
	cb   *gobreaker.CircuitBreaker
}

var _ Poster = (*Breaker)(nil)

// NewBreaker wraps next. listener may be nil.
func NewBreaker(next Poster, cfg BreakerConfig, listener StateListener) *Breaker {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultBreakerConfig().ConsecutiveFailures
	}

	settings := gobreaker.Settings{
		Name:        "ledger",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Ledger circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if listener != nil {
				listener(stateValue(to))
			}
		},
		// Caller cancellations say nothing about ledger health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// PostBatch forwards to the wrapped ledger unless the breaker is open.
func (b *Breaker) PostBatch(ctx context.Context, batch models.LedgerBatch) ([]string, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.PostBatch(ctx, batch)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}

	ids, _ := result.([]string)
	return ids, nil
}

// VoidBatch forwards to the wrapped ledger unless the breaker is open.
func (b *Breaker) VoidBatch(ctx context.Context, key string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.VoidBatch(ctx, key)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

// State reports the breaker state as 0 (closed), 1 (half-open) or 2 (open).
func (b *Breaker) State() int {
	return stateValue(b.cb.State())
}

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
