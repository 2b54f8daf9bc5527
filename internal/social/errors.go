package social

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	CodeNotImplemented      = "NOT_IMPLEMENTED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeAuthFailed          = "AUTH_FAILED"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeNetwork             = "NETWORK_ERROR"
	CodeParse               = "PARSE_ERROR"
	CodeHTTP                = "HTTP_ERROR"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeNoAccount           = "NO_ACCOUNT"
	CodeUnsupportedPlatform = "UNSUPPORTED_PLATFORM"
	CodeProcessingFailed    = "PROCESSING_FAILED"
	CodeProcessingTimeout   = "PROCESSING_TIMEOUT"
	CodeTokenExchange       = "TOKEN_EXCHANGE_FAILED"
	CodePlatformError       = "PLATFORM_ERROR"
	CodePanic               = "PANIC"
)

// SocialMediaError is the base of the error taxonomy.
type SocialMediaError struct {
	Platform Platform
	Code     string
	Message  string
	Err      error
}

func (e *SocialMediaError) Error() string {
	if e.Platform == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Platform, e.Code, e.Message)
}

func (e *SocialMediaError) Unwrap() error { return e.Err }

// RateLimitError is returned, never retried, when a platform answers 429.
type RateLimitError struct {
	SocialMediaError
	RetryAfter time.Duration
}

func NewRateLimitError(platform Platform, retryAfter time.Duration, message string) *RateLimitError {
	if message == "" {
		message = "rate limit exceeded"
	}
	return &RateLimitError{
		SocialMediaError: SocialMediaError{Platform: platform, Code: CodeRateLimited, Message: message},
		RetryAfter:       retryAfter,
	}
}

// AuthenticationError is returned, never retried, when a platform rejects the token.
type AuthenticationError struct {
	SocialMediaError
}

func NewAuthenticationError(platform Platform, message string) *AuthenticationError {
	if message == "" {
		message = "authentication failed"
	}
	return &AuthenticationError{
		SocialMediaError: SocialMediaError{Platform: platform, Code: CodeAuthFailed, Message: message},
	}
}

// ValidationError lists every human readable problem found in a post.
type ValidationError struct {
	SocialMediaError
	Issues []string
}

// NewValidationError returns nil when there are no issues.
func NewValidationError(platform Platform, issues []string) error {
	if len(issues) == 0 {
		return nil
	}
	return &ValidationError{
		SocialMediaError: SocialMediaError{
			Platform: platform,
			Code:     CodeValidationFailed,
			Message:  strings.Join(issues, "; "),
		},
		Issues: issues,
	}
}

// IsFatal reports whether err must stop the caller instead of being folded
// into a failed response: rate limiting and authentication.
func IsFatal(err error) bool {
	var rl *RateLimitError
	var ae *AuthenticationError
	return errors.As(err, &rl) || errors.As(err, &ae)
}

// ErrorCode extracts the taxonomy code of err, or "" when err is foreign.
func ErrorCode(err error) string {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.Code
	}
	var ae *AuthenticationError
	if errors.As(err, &ae) {
		return ae.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	var se *SocialMediaError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// ToAPIError converts any error into the structured error of an APIResponse.
func ToAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return &APIError{Code: ve.Code, Message: "post validation failed", Details: ve.Issues}
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		apiErr := &APIError{Code: rl.Code, Message: rl.Message}
		if rl.RetryAfter > 0 {
			apiErr.Details = []string{"retry after " + rl.RetryAfter.String()}
		}
		return apiErr
	}
	var ae *AuthenticationError
	if errors.As(err, &ae) {
		return &APIError{Code: ae.Code, Message: ae.Message}
	}
	var se *SocialMediaError
	if errors.As(err, &se) {
		return &APIError{Code: se.Code, Message: se.Message}
	}
	return &APIError{Code: CodePlatformError, Message: err.Error()}
}
