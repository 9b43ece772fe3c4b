package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/username/goldfolio/backend/src/logger"
)

// ErrExhausted is returned when every attempt in a chain failed and no
// terminal fallback was configured.
var ErrExhausted = errors.New("all attempts exhausted")

// Attempt is one named try in a fallback chain, typically a call to a single
// remote provider.
type Attempt[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Chain runs an ordered list of attempts with a bounded timeout per attempt,
// stopping at the first success. If every attempt fails, the terminal
// Fallback (when present) produces a result so callers always get a value.
//
// The caller's context deadline bounds the whole chain: each attempt receives
// at most AttemptTimeout, clipped to whatever budget remains, so N slow
// providers cannot sum to an unbounded wait.
type Chain[T any] struct {
	Name           string
	AttemptTimeout time.Duration
	Attempts       []Attempt[T]
	Fallback       func() (T, string)
}

// Result carries the value together with the name of the attempt (or
// fallback source) that produced it.
type Result[T any] struct {
	Value  T
	Source string
}

// Execute walks the chain. Individual attempt errors are logged and
// swallowed; only total exhaustion without a fallback surfaces an error.
func (c Chain[T]) Execute(ctx context.Context) (Result[T], error) {
	var zero Result[T]
	var lastErr error

	for _, attempt := range c.Attempts {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.AttemptTimeout)
		value, err := attempt.Run(attemptCtx)
		cancel()

		if err == nil {
			return Result[T]{Value: value, Source: attempt.Name}, nil
		}

		lastErr = err
		logger.L.Warn("Chain attempt failed", "chain", c.Name, "attempt", attempt.Name, "error", err)
	}

	if c.Fallback != nil {
		value, source := c.Fallback()
		logger.L.Info("Chain fell back to terminal source", "chain", c.Name, "source", source)
		return Result[T]{Value: value, Source: source}, nil
	}

	if lastErr != nil {
		return zero, fmt.Errorf("%w: %s: %v", ErrExhausted, c.Name, lastErr)
	}
	return zero, fmt.Errorf("%w: %s: no attempts configured", ErrExhausted, c.Name)
}
