// Package resilience wraps outbound HTTP calls with retries and a circuit
// breaker. The payment provider client is built on it.
package resilience

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// RetryPolicy controls how often and how patiently a call is repeated.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Jitter is a fraction (0..1) of the backoff added or removed at random.
	Jitter float64
	// RetryOn lists response statuses worth another attempt.
	RetryOn []int
}

// DefaultRetryPolicy retries throttling and gateway failures three times.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2,
		Jitter:         0.1,
		RetryOn: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

func (p RetryPolicy) retries(status int) bool {
	for _, s := range p.RetryOn {
		if s == status {
			return true
		}
	}
	return false
}

// backoff returns the wait before attempt n (n >= 1). A Retry-After hint
// from the previous response wins when present, capped at MaxBackoff.
func (p RetryPolicy) backoff(n int, hint time.Duration) time.Duration {
	if hint > 0 {
		if p.MaxBackoff > 0 && hint > p.MaxBackoff {
			return p.MaxBackoff
		}
		return hint
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialBackoff) * math.Pow(mult, float64(n-1))
	if p.MaxBackoff > 0 && d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerPolicy controls when the breaker trips and recovers.
type BreakerPolicy struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int
	// SuccessThreshold half-open successes close it again.
	SuccessThreshold int
	// Cooldown is how long an open breaker rejects calls.
	Cooldown time.Duration
	// OnStateChange runs after every transition, outside the breaker lock.
	OnStateChange func(from, to State)
}

// DefaultBreakerPolicy trips after five failures and retries after 30s.
func DefaultBreakerPolicy() BreakerPolicy {
	return BreakerPolicy{FailureThreshold: 5, SuccessThreshold: 2, Cooldown: 30 * time.Second}
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	policy BreakerPolicy

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	lastErr   error
	now       func() time.Time
}

// NewBreaker returns a closed breaker.
func NewBreaker(policy BreakerPolicy) *Breaker {
	if policy.FailureThreshold <= 0 {
		policy.FailureThreshold = 1
	}
	if policy.SuccessThreshold <= 0 {
		policy.SuccessThreshold = 1
	}
	return &Breaker{policy: policy, now: time.Now}
}

// Allow reports whether a call may proceed. An open breaker whose cooldown
// elapsed moves to half-open and lets the call through as a trial.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	if b.state != StateOpen {
		b.mu.Unlock()
		return nil
	}
	if b.now().Sub(b.openedAt) < b.policy.Cooldown {
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	notify := b.moveLocked(StateHalfOpen)
	b.mu.Unlock()
	notify()
	return nil
}

// Success records a healthy call.
func (b *Breaker) Success() {
	b.mu.Lock()
	notify := func() {}
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.policy.SuccessThreshold {
			notify = b.moveLocked(StateClosed)
		}
	}
	b.mu.Unlock()
	notify()
}

// Failure records a failed call.
func (b *Breaker) Failure(err error) {
	b.mu.Lock()
	b.lastErr = err
	notify := func() {}
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.policy.FailureThreshold {
			notify = b.moveLocked(StateOpen)
		}
	case StateHalfOpen:
		notify = b.moveLocked(StateOpen)
	}
	b.mu.Unlock()
	notify()
}

func (b *Breaker) moveLocked(to State) func() {
	from := b.state
	b.state = to
	b.failures, b.successes = 0, 0
	if to == StateOpen {
		b.openedAt = b.now()
	}
	cb := b.policy.OnStateChange
	if cb == nil || from == to {
		return func() {}
	}
	return func() { cb(from, to) }
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// LastError returns the most recent recorded failure.
func (b *Breaker) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Config assembles a Client.
type Config struct {
	// Base performs the actual round trips. Defaults to a pooled client
	// with a 30s timeout.
	Base    *http.Client
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

// Stats is a snapshot of client counters.
type Stats struct {
	Requests  int64
	Succeeded int64
	Failed    int64
	Retried   int64
	State     State
}

// Client retries transient failures and stops calling a provider that keeps
// failing. It satisfies httputil.Doer.
type Client struct {
	base    *http.Client
	retry   RetryPolicy
	breaker *Breaker

	requests  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config) *Client {
	base := cfg.Base
	if base == nil {
		base = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			},
		}
	}
	return &Client{base: base, retry: cfg.Retry, breaker: NewBreaker(cfg.Breaker)}
}

// Do sends req, retrying per the policy. The body is buffered once so every
// attempt sends the same bytes. When retries run out on a retryable status
// the last response is returned to the caller unread.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.requests.Add(1)
	if err := c.breaker.Allow(); err != nil {
		c.failed.Add(1)
		return nil, err
	}

	var payload []byte
	if req.Body != nil && req.Body != http.NoBody {
		data, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			c.failed.Add(1)
			return nil, err
		}
		payload = data
	}

	ctx := req.Context()
	var (
		lastErr error
		hint    time.Duration
	)
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			c.retried.Add(1)
			timer := time.NewTimer(c.retry.backoff(attempt, hint))
			select {
			case <-ctx.Done():
				timer.Stop()
				c.failed.Add(1)
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		try := req.Clone(ctx)
		if payload != nil {
			try.Body = io.NopCloser(bytes.NewReader(payload))
			try.ContentLength = int64(len(payload))
		}

		resp, err := c.base.Do(try)
		if err != nil {
			lastErr = err
			hint = 0
			if transient(err) {
				continue
			}
			break
		}
		if !c.retry.retries(resp.StatusCode) {
			c.breaker.Success()
			c.succeeded.Add(1)
			return resp, nil
		}
		lastErr = &StatusError{StatusCode: resp.StatusCode}
		if attempt == c.retry.MaxRetries {
			c.breaker.Failure(lastErr)
			c.failed.Add(1)
			return resp, nil
		}
		hint = retryAfter(resp.Header.Get("Retry-After"))
		resp.Body.Close()
	}

	c.breaker.Failure(lastErr)
	c.failed.Add(1)
	return nil, lastErr
}

// Stats returns the current counters.
func (c *Client) Stats() Stats {
	return Stats{
		Requests:  c.requests.Load(),
		Succeeded: c.succeeded.Load(),
		Failed:    c.failed.Load(),
		Retried:   c.retried.Load(),
		State:     c.breaker.State(),
	}
}

// State returns the breaker position.
func (c *Client) State() State {
	return c.breaker.State()
}

// StatusError is the failure recorded for a retryable response status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return "upstream status " + strconv.Itoa(e.StatusCode) + " " + http.StatusText(e.StatusCode)
}

func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// retryAfter parses the delta-seconds form of Retry-After.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
