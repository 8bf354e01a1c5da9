// Package retry runs provider calls with exponential backoff and evaluates
// ordered fallback chains of such calls.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Budget bounds the retries of one operation. Delays double after every
// retry: InitialDelay, 2*InitialDelay, 4*InitialDelay, ...
type Budget struct {
	MaxRetries   int
	InitialDelay time.Duration
}

// Budgets used across the generation stages.
var (
	DefaultBudget      = Budget{MaxRetries: 3, InitialDelay: 2 * time.Second}
	AnalyzeBudget      = Budget{MaxRetries: 2, InitialDelay: time.Second}
	ResearchBudget     = Budget{MaxRetries: 1, InitialDelay: time.Second}
	StrategyProBudget  = Budget{MaxRetries: 1, InitialDelay: time.Second}
	StrategyBudget     = Budget{MaxRetries: 2, InitialDelay: time.Second}
	CopyBudget         = DefaultBudget
	TransformProBudget = Budget{MaxRetries: 1, InitialDelay: 2 * time.Second}
	TransformStdBudget = DefaultBudget
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Classifier reports whether err is worth retrying.
type Classifier func(err error) bool

// Policy configures how failures are classified and how backoff waits.
// The zero value retries rate-limit errors and sleeps on the wall clock.
type Policy struct {
	Sleep    Sleeper
	Classify Classifier
	OnRetry  func(attempt int, delay time.Duration, err error)
}

// Run executes op. A retryable failure with retries left waits
// initialDelay and tries again with one retry fewer and twice the delay.
// Any other failure is returned unchanged.
func (p Policy) Run(ctx context.Context, op func(ctx context.Context) error, maxRetries int, initialDelay time.Duration) error {
	_, err := Do(ctx, p, Budget{MaxRetries: maxRetries, InitialDelay: initialDelay}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Do is the value returning form of Policy.Run.
func Do[T any](ctx context.Context, p Policy, b Budget, op func(ctx context.Context) (T, error)) (T, error) {
	classify := p.Classify
	if classify == nil {
		classify = IsRateLimit
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	retries, delay := b.MaxRetries, b.InitialDelay
	for attempt := 1; ; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		if retries <= 0 || !classify(err) {
			return out, err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			var zero T
			return zero, serr
		}
		retries--
		delay *= 2
	}
}

// Sleep blocks for d and returns ctx.Err() if the context ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type statusCoder interface {
	StatusCode() int
}

type coder interface {
	Code() int
}

var rateLimitMarkers = []string{"429", "quota", "RESOURCE_EXHAUSTED"}

// IsRateLimit reports whether err signals request quota exhaustion: an HTTP
// 429 status or a message mentioning 429, quota or RESOURCE_EXHAUSTED.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var sc statusCoder
	if errors.As(err, &sc) && sc.StatusCode() == 429 {
		return true
	}
	var c coder
	if errors.As(err, &c) && c.Code() == 429 {
		return true
	}
	msg := err.Error()
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Any combines classifiers; an error is retryable when one of them agrees.
func Any(classifiers ...Classifier) Classifier {
	return func(err error) bool {
		for _, c := range classifiers {
			if c != nil && c(err) {
				return true
			}
		}
		return false
	}
}
