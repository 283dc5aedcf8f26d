package service

import (
	"context"
	"errors"
	"time"

	"github.com/slack-go/slack"

	"timeoff-bot/internal/store"
)

// RetryPolicy bounds retries of Slack and store calls.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy is used when a zero policy is configured.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	return p
}

// retry runs fn until it succeeds, fails permanently or runs out of attempts.
// The delay doubles after each attempt; Slack rate limits extend it to Retry-After.
func retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	p = p.normalized()
	delay := p.BaseDelay

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= p.MaxAttempts || permanent(err) {
			return err
		}

		wait := delay
		var limited *slack.RateLimitedError
		if errors.As(err, &limited) && limited.RetryAfter > wait {
			wait = limited.RetryAfter
		}
		if serr := sleep(ctx, wait); serr != nil {
			return err
		}
		delay *= 2
	}
}

// permanent reports errors a second attempt cannot fix.
func permanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrStatusMismatch) {
		return true
	}
	var apiErr slack.SlackErrorResponse
	return errors.As(err, &apiErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
