package retry

import (
	"errors"
	"math"
	"time"
)

// Defaults applied by NewPolicy when an option leaves a field unset.
const (
	DefaultMaxAttempts       = 3
	DefaultInitialInterval   = time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultMaxInterval       = 30 * time.Second
)

// Policy describes how a failing node handler is retried. A Policy is
// immutable once constructed; the With* methods return modified copies.
type Policy struct {
	// MaxAttempts is the total number of handler invocations, including
	// the first. Always >= 1.
	MaxAttempts int

	// InitialInterval is the delay before the first re-invocation.
	InitialInterval time.Duration

	// BackoffMultiplier scales the delay after each failed attempt.
	// Always >= 1.
	BackoffMultiplier float64

	// MaxInterval caps the computed delay.
	MaxInterval time.Duration

	// RetryOn lists the failure kinds eligible for retry, matched with
	// errors.Is. An empty list retries on any failure.
	RetryOn []error
}

// Option configures a Policy at construction time.
type Option func(*Policy)

// WithMaxAttempts sets the total attempt budget.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		p.MaxAttempts = n
	}
}

// WithInitialInterval sets the delay before the first retry.
func WithInitialInterval(d time.Duration) Option {
	return func(p *Policy) {
		p.InitialInterval = d
	}
}

// WithBackoffMultiplier sets the per-attempt delay multiplier.
func WithBackoffMultiplier(m float64) Option {
	return func(p *Policy) {
		p.BackoffMultiplier = m
	}
}

// WithMaxInterval caps the backoff delay.
func WithMaxInterval(d time.Duration) Option {
	return func(p *Policy) {
		p.MaxInterval = d
	}
}

// WithRetryOn restricts retries to the given failure kinds.
func WithRetryOn(kinds ...error) Option {
	return func(p *Policy) {
		p.RetryOn = kinds
	}
}

// NewPolicy builds a Policy from the defaults and the given options.
// Out-of-range values are clamped rather than rejected.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		MaxAttempts:       DefaultMaxAttempts,
		InitialInterval:   DefaultInitialInterval,
		BackoffMultiplier: DefaultBackoffMultiplier,
		MaxInterval:       DefaultMaxInterval,
	}
	for _, o := range opts {
		o(p)
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BackoffMultiplier < 1 {
		p.BackoffMultiplier = 1
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	return p
}

// ShouldRetry reports whether another attempt is allowed after the given
// 1-based attempt failed with err.
func (p *Policy) ShouldRetry(attempt int, err error) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	return p.Retryable(err)
}

// Retryable reports whether err matches the policy's retryable set.
func (p *Policy) Retryable(err error) bool {
	if len(p.RetryOn) == 0 {
		return err != nil
	}
	for _, kind := range p.RetryOn {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// DelayFor returns the backoff delay applied after the given 1-based
// attempt: min(InitialInterval * BackoffMultiplier^(attempt-1), MaxInterval).
func (p *Policy) DelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.InitialInterval) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if delay > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	return time.Duration(delay)
}

// WithAttempts returns a copy of the policy with a different attempt budget.
func (p *Policy) WithAttempts(n int) *Policy {
	c := p.clone()
	c.MaxAttempts = n
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	return c
}

// WithKinds returns a copy of the policy retrying only on the given kinds.
func (p *Policy) WithKinds(kinds ...error) *Policy {
	c := p.clone()
	c.RetryOn = append([]error(nil), kinds...)
	return c
}

func (p *Policy) clone() *Policy {
	c := *p
	c.RetryOn = append([]error(nil), p.RetryOn...)
	return &c
}
