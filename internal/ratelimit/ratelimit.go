// Package ratelimit consults an external sliding-window rate limiter.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/bcnelson/free-api/internal/domain"
)

// Result is the outcome of a rate-limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is when the oldest request in the window expires. Zero when
	// unknown.
	Reset time.Time
}

// ResetUnix returns Reset as unix seconds, or 0 when unset.
func (r *Result) ResetUnix() int64 {
	if r.Reset.IsZero() {
		return 0
	}
	return r.Reset.Unix()
}

// Limiter decides whether one more request for identifier is allowed.
type Limiter interface {
	Allow(ctx context.Context, identifier string) (*Result, error)
	Close() error
}

// Disabled is used when no limiter backend is configured. Every request is
// allowed and the result carries informational values only.
type Disabled struct{}

// disabledRemaining is the informational remaining count reported when rate
// limiting is off.
const disabledRemaining = 999

func (Disabled) Allow(ctx context.Context, identifier string) (*Result, error) {
	return &Result{Allowed: true, Limit: 0, Remaining: disabledRemaining}, nil
}

func (Disabled) Close() error { return nil }

// Unavailable stands in for a limiter that could not be built. Every check
// fails with domain.ErrUnavailable so limiting is never silently skipped.
type Unavailable struct {
	cause error
}

// NewUnavailable creates an Unavailable limiter reporting cause.
func NewUnavailable(cause error) *Unavailable {
	return &Unavailable{cause: cause}
}

func (u *Unavailable) Allow(ctx context.Context, identifier string) (*Result, error) {
	return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrUnavailable, u.cause)
}

func (u *Unavailable) Close() error { return nil }
