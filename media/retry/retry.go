// Package retry runs one logical request with a bounded number of attempts
// and exponential backoff between them.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxAttempts is the default attempt budget of one phase call.
	DefaultMaxAttempts = 3
	// DefaultBaseWait is the wait after the first failed attempt.
	DefaultBaseWait = time.Second
)

// Policy retries an operation up to MaxAttempts times.
// The wait after the failed attempt with 0-based index k is BaseWait * 2^k.
// Every error counts against the budget unless it is wrapped with Permanent.
type Policy struct {
	MaxAttempts int
	BaseWait    time.Duration

	// Timer is used for backoff waits. Tests can replace it; nil means a real timer.
	Timer backoff.Timer

	// Notify is called after every failed attempt that is followed by a retry.
	Notify func(err error, attempt int, wait time.Duration)
}

// DefaultPolicy returns a policy with the default attempt budget and base wait.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseWait:    DefaultBaseWait,
	}
}

// Operation is one attempt. attempt is 0-based.
type Operation func(ctx context.Context, attempt int) error

// Do runs op until it succeeds, returns a permanent error, the budget is used up
// or ctx is done. It returns the number of attempts made and the last error.
func (p Policy) Do(ctx context.Context, op Operation) (int, error) {
	attempts := 0
	operation := func() error {
		attempt := attempts
		attempts++
		return op(ctx, attempt)
	}

	notify := func(err error, wait time.Duration) {
		if p.Notify != nil {
			p.Notify(err, attempts-1, wait)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, p.backOff(ctx), notify, p.timer())
	return attempts, err
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) backOff(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseWait
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxInterval = time.Duration(math.MaxInt64)
	exp.MaxElapsedTime = 0

	retries := uint64(p.maxAttempts() - 1)
	return backoff.WithContext(backoff.WithMaxRetries(exp, retries), ctx)
}

func (p Policy) timer() backoff.Timer {
	if p.Timer != nil {
		return p.Timer
	}
	return &clockTimer{}
}

// Permanent marks err as not retryable.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Sleep blocks for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, t backoff.Timer, d time.Duration) error {
	if t == nil {
		t = &clockTimer{}
	}
	t.Start(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}

type clockTimer struct {
	timer *time.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = time.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}
