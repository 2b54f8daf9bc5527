package social

import (
	"fmt"
	"time"
)

type APIError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type RateLimitInfo struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// APIResponse is the envelope every provider operation returns. Success is
// true exactly when Data is present and Error is nil; build values with OK
// and Fail to keep it that way.
type APIResponse[T any] struct {
	Success    bool           `json:"success"`
	Data       T              `json:"data,omitempty"`
	Error      *APIError      `json:"error,omitempty"`
	RateLimit  *RateLimitInfo `json:"rate_limit,omitempty"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func OK[T any](data T) *APIResponse[T] {
	return &APIResponse[T]{Success: true, Data: data}
}

func Fail[T any](code, message string, details ...string) *APIResponse[T] {
	return &APIResponse[T]{Error: &APIError{Code: code, Message: message, Details: details}}
}

func FailWith[T any](apiErr *APIError) *APIResponse[T] {
	if apiErr == nil {
		apiErr = &APIError{Code: CodePlatformError, Message: "unknown failure"}
	}
	return &APIResponse[T]{Error: apiErr}
}

// Forward re-types a failed response so a multi-step operation can return
// the failure of one of its steps. A nil response stays nil.
func Forward[T, U any](r *APIResponse[U]) *APIResponse[T] {
	if r == nil {
		return nil
	}
	out := FailWith[T](r.Error)
	out.RateLimit = r.RateLimit
	return out
}

func NotImplemented[T any](platform Platform, operation string) *APIResponse[T] {
	return Fail[T](CodeNotImplemented, fmt.Sprintf("%s is not implemented for %s", operation, platform))
}

func (r *APIResponse[T]) WithRateLimit(rl *RateLimitInfo) *APIResponse[T] {
	if rl != nil {
		r.RateLimit = rl
	}
	return r
}

func (r *APIResponse[T]) WithCursor(cursor string) *APIResponse[T] {
	r.NextCursor = cursor
	return r
}

// Err returns the failure as an error, or nil for a successful response.
func (r *APIResponse[T]) Err() error {
	if r == nil {
		return &APIError{Code: CodePlatformError, Message: "no response"}
	}
	if r.Success {
		return nil
	}
	return r.Error
}
