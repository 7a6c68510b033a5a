package task

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrTimedOut is returned when an operation times out
type ErrTimedOut struct {
	// Reason is the reason for the timeout
	Reason string
	// Attempts is the number of times the task ran before giving up
	Attempts int
}

func (e *ErrTimedOut) Error() string {
	errString := "timed out performing task."
	if len(e.Reason) > 0 {
		errString = fmt.Sprintf("%s, Error was: %s", errString, e.Reason)
	}

	return errString
}

// Timeout marks ErrTimedOut as a timeout failure
func (e *ErrTimedOut) Timeout() bool {
	return true
}

// Task returns an output, whether to retry on error and the error itself
type Task func() (interface{}, bool, error)

// Opts controls a retry loop
type Opts struct {
	// Timeout bounds the fixed interval loop. The loop sleeps at most Timeout/TimeBeforeRetry times.
	Timeout time.Duration
	// TimeBeforeRetry is the fixed delay between attempts
	TimeBeforeRetry time.Duration
	// Backoff, when set, replaces the fixed interval policy. Its own limits bound the loop.
	// Timeout and TimeBeforeRetry, when TimeBeforeRetry is set, still reject a degenerate budget.
	Backoff backoff.BackOff
	// OnRetry is called before every sleep
	OnRetry func(attempt int, err error, next time.Duration)

	timer backoff.Timer
}

// DoRetryWithTimeout performs given task with given timeout and timeBeforeRetry
func DoRetryWithTimeout(t Task, timeout, timeBeforeRetry time.Duration) (interface{}, error) {
	return DoRetryWithContext(context.Background(), t, Opts{
		Timeout:         timeout,
		TimeBeforeRetry: timeBeforeRetry,
	})
}

// DoRetryWithContext runs t until it succeeds, returns a non retryable error,
// the retry budget runs out or ctx is done.
func DoRetryWithContext(ctx context.Context, t Task, opts Opts) (interface{}, error) {
	// a budget shorter than one interval fails before the first attempt,
	// whichever policy would have driven the loop
	if opts.Backoff == nil || opts.TimeBeforeRetry > 0 {
		if opts.TimeBeforeRetry <= 0 {
			return nil, fmt.Errorf("retry interval must be positive, got %v", opts.TimeBeforeRetry)
		}
		if opts.Timeout < opts.TimeBeforeRetry {
			return nil, &ErrTimedOut{
				Reason: fmt.Sprintf("timeout %v is shorter than retry interval %v", opts.Timeout, opts.TimeBeforeRetry),
			}
		}
	}
	policy := opts.Backoff
	if policy == nil {
		maxSleeps := uint64(opts.Timeout / opts.TimeBeforeRetry)
		policy = backoff.WithMaxRetries(backoff.NewConstantBackOff(opts.TimeBeforeRetry), maxSleeps)
	}

	var (
		out       interface{}
		attempts  int
		permanent bool
	)
	operation := func() error {
		attempts++
		var (
			retry bool
			err   error
		)
		out, retry, err = t()
		if err != nil && !retry {
			permanent = true
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		if opts.OnRetry != nil {
			opts.OnRetry(attempts, err, next)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, backoff.WithContext(policy, ctx), notify, opts.timer)
	if err == nil || permanent {
		return out, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, fmt.Errorf("retry cancelled after %d attempts: %w", attempts, ctxErr)
	}
	return out, &ErrTimedOut{
		Reason:   err.Error(),
		Attempts: attempts,
	}
}

// NewExponentialBackOff returns a backoff policy that gives up after maxElapsed
func NewExponentialBackOff(initial, maxInterval, maxElapsed time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = maxElapsed
	b.Reset()
	return b
}
