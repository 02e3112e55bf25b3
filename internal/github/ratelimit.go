// internal/github/ratelimit.go
package github

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v62/github"
)

// DefaultSafetyMargin is added to the reset time before calls resume.
const DefaultSafetyMargin = 100 * time.Second

// bucket is the rate limit category a call is charged to. Search has its
// own, much smaller, budget.
type bucket int

const (
	coreBucket bucket = iota
	searchBucket
)

func (b bucket) String() string {
	if b == searchBucket {
		return "search"
	}
	return "core"
}

// RateLimitState is the remaining budget of one category as last observed.
// It is owned by a single Client and is not safe for concurrent use.
type RateLimitState struct {
	Remaining int
	ResetAt   time.Time
	known     bool
}

// Known reports whether the state was ever observed.
func (s *RateLimitState) Known() bool {
	return s.known
}

func (s *RateLimitState) exhausted() bool {
	return !s.known || s.Remaining <= 1
}

func (s *RateLimitState) set(rate github.Rate) {
	s.Remaining = rate.Remaining
	s.ResetAt = rate.Reset.Time
	s.known = true
}

// observe updates the state from response headers, or counts the call
// locally when the response carried none.
func (s *RateLimitState) observe(rate github.Rate) {
	if rate.Limit > 0 {
		s.set(rate)
		return
	}
	if s.known && s.Remaining > 0 {
		s.Remaining--
	}
}

func (c *Client) state(b bucket) *RateLimitState {
	if b == searchBucket {
		return c.search
	}
	return c.core
}

// RefreshRateLimit reads the current core and search budgets from the rate
// limit endpoint. The endpoint itself does not count against either.
func (c *Client) RefreshRateLimit(ctx context.Context) error {
	limits, _, err := c.gh.RateLimit.Get(ctx)
	if err != nil {
		return classifyError(err)
	}
	if limits.Core != nil {
		c.core.set(*limits.Core)
	}
	if limits.Search != nil {
		c.search.set(*limits.Search)
	}
	return nil
}

// waitForBudget blocks until at least two calls are left in b. The state is
// re-read after every sleep because the reset may not have happened yet.
func (c *Client) waitForBudget(ctx context.Context, b bucket) error {
	state := c.state(b)
	if !state.exhausted() {
		return nil
	}
	if err := c.RefreshRateLimit(ctx); err != nil {
		return err
	}
	for state.Known() && state.Remaining <= 1 {
		wait := max(state.ResetAt.Sub(c.now()), 0) + c.safetyMargin

		c.logger.Warn("Rate limit exhausted, sleeping until reset",
			"bucket", b,
			"remaining", state.Remaining,
			"reset_at", state.ResetAt,
			"sleep", wait,
		)
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
		if err := c.RefreshRateLimit(ctx); err != nil {
			return err
		}
	}
	return nil
}

// rateLimitWait is how long to back off after a rate limited response: until
// the primary reset, or for the server's Retry-After, plus the safety margin.
func (c *Client) rateLimitWait(err error) time.Duration {
	var wait time.Duration

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	var respErr *github.ErrorResponse
	switch {
	case errors.As(err, &rateErr):
		wait = rateErr.Rate.Reset.Time.Sub(c.now())
	case errors.As(err, &abuseErr):
		if abuseErr.RetryAfter != nil {
			wait = *abuseErr.RetryAfter
		}
	case errors.As(err, &respErr):
		wait = retryAfter(respErr.Response)
	}
	return max(wait, 0) + c.safetyMargin
}

func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
