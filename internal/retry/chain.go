package retry

import (
	"context"
	"errors"
)

// ErrEmptyChain is returned by Chain when no attempts are given.
var ErrEmptyChain = errors.New("retry: empty attempt chain")

// Attempt is one step of a fallback chain, for example one quality tier.
type Attempt[T any] struct {
	Name   string
	Budget Budget
	Run    func(ctx context.Context) (T, error)
}

// Chain evaluates attempts in order, each under its own budget, and returns
// the first success. onFallback, when set, sees every abandoned attempt.
// If every attempt fails the last attempt's error is returned. A cancelled
// context stops the chain without trying the remaining attempts.
func Chain[T any](ctx context.Context, p Policy, onFallback func(name string, err error), attempts ...Attempt[T]) (T, error) {
	var zero T
	if len(attempts) == 0 {
		return zero, ErrEmptyChain
	}
	var lastErr error
	for i, attempt := range attempts {
		out, err := Do(ctx, p, attempt.Budget, attempt.Run)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if onFallback != nil && i < len(attempts)-1 {
			onFallback(attempt.Name, err)
		}
	}
	return zero, lastErr
}
