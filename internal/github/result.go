// internal/github/result.go
package github

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v62/github"
)

// Outcome tells a caller how an API call ended.
type Outcome int

const (
	Success Outcome = iota
	// NotFound means the resource is legitimately absent (404).
	NotFound
	// Transient covers every other failure. The caller skips the unit of work
	// and it is picked up again next cycle.
	Transient
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NotFound:
		return "not_found"
	default:
		return "transient"
	}
}

// Result is the value of an API call together with its outcome.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.Outcome == Success
}

func ok[T any](v T) Result[T] {
	return Result[T]{Value: v, Outcome: Success}
}

func notFound[T any](err error) Result[T] {
	return Result[T]{Outcome: NotFound, Err: err}
}

func transient[T any](err error) Result[T] {
	return Result[T]{Outcome: Transient, Err: err}
}

// ErrorKind classifies API failures.
type ErrorKind string

const (
	KindHTTPError   ErrorKind = "http_error"
	KindRateLimited ErrorKind = "rate_limited"
	KindNotFound    ErrorKind = "not_found"
	KindTransport   ErrorKind = "transport"
)

// APIError wraps a failed API call.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("github api %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("github api %s: %v", e.Kind, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyError maps go-github errors onto an APIError.
func classifyError(err error) *APIError {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &APIError{Kind: KindRateLimited, StatusCode: statusOf(rateErr.Response), Err: err}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &APIError{Kind: KindRateLimited, StatusCode: statusOf(abuseErr.Response), Err: err}
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		code := statusOf(respErr.Response)
		if code == http.StatusNotFound {
			return &APIError{Kind: KindNotFound, StatusCode: code, Err: err}
		}
		if code == http.StatusTooManyRequests {
			return &APIError{Kind: KindRateLimited, StatusCode: code, Err: err}
		}
		return &APIError{Kind: KindHTTPError, StatusCode: code, Err: err}
	}
	return &APIError{Kind: KindTransport, Err: err}
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
