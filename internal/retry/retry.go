// Package retry implements the bounded retry policy used for DynamoDB calls.
// Only failures the classifier marks transient are retried; everything else
// surfaces immediately.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/aws/smithy-go"
)

// Default policy knobs, matching the store client's historical behavior:
// three attempts, backoff doubling from half a second.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
)

// throttleCodes are the DynamoDB error codes worth waiting out.
var throttleCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"ThrottlingException":                    true,
	"RequestLimitExceeded":                   true,
}

// Throttled reports whether err is a transient throttling failure.
func Throttled(err error) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && throttleCodes[ae.ErrorCode()]
}

// Policy is an injectable retry policy. The sleep function is swappable so
// tests can run against a fake clock.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	sleep       func(context.Context, time.Duration) error
}

// NewPolicy builds a policy that sleeps on the real clock.
func NewPolicy(maxAttempts int, baseDelay time.Duration) Policy {
	return Policy{MaxAttempts: maxAttempts, BaseDelay: baseDelay, sleep: sleepCtx}
}

// Default returns the standard three-attempt policy.
func Default() Policy {
	return NewPolicy(DefaultMaxAttempts, DefaultBaseDelay)
}

// WithSleep returns a copy of the policy using the given sleep function.
func (p Policy) WithSleep(sleep func(context.Context, time.Duration) error) Policy {
	p.sleep = sleep
	return p
}

// Do runs op, retrying throttled failures with exponential backoff
// (base, 2*base, 4*base, ...). It returns the last error once the attempt
// budget is spent; the caller classifies that as throttle exhaustion.
// Context cancellation aborts between attempts.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		// a misconfigured budget must never skip the operation entirely
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := p.BaseDelay * time.Duration(1<<uint(attempt-1))
			if serr := sleep(ctx, delay); serr != nil {
				return serr
			}
		}
		err = op(ctx)
		if err == nil || !Throttled(err) {
			return err
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
