package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second

	maxBodySize = 64 << 20
)

// Request describes one platform API call. Exactly one of JSON, Form and
// Body is used as the payload; all of them are replayed on retry.
type Request struct {
	Method      string
	URL         string
	Query       url.Values
	Token       string
	Header      http.Header
	JSON        any
	Form        url.Values
	Body        []byte
	ContentType string
	// MaxBodySize caps the response body. Zero means 64MB.
	MaxBodySize int64
}

// ErrBodyTooLarge is returned when a response body exceeds the request's
// MaxBodySize.
var ErrBodyTooLarge = errors.New("response body too large")

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RateLimit  *RateLimitInfo
}

func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Requester issues platform requests with bearer injection, a per attempt
// timeout and exponential backoff on transient failures.
type Requester struct {
	platform   Platform
	client     *http.Client
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
	metrics    Metrics
	now        func() time.Time
}

type RequesterOption func(*Requester)

func WithHTTPClient(c *http.Client) RequesterOption {
	return func(r *Requester) { r.client = c }
}

func WithTimeout(d time.Duration) RequesterOption {
	return func(r *Requester) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxRetries sets the total number of attempts, the first one included.
func WithMaxRetries(n int) RequesterOption {
	return func(r *Requester) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

func WithBaseDelay(d time.Duration) RequesterOption {
	return func(r *Requester) {
		if d > 0 {
			r.baseDelay = d
		}
	}
}

func WithMetrics(m Metrics) RequesterOption {
	return func(r *Requester) {
		if m != nil {
			r.metrics = m
		}
	}
}

func NewRequester(platform Platform, opts ...RequesterOption) *Requester {
	r := &Requester{
		platform:   platform,
		client:     http.DefaultClient,
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		metrics:    NopMetrics(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Client exposes the underlying HTTP client for SDKs that bring their own
// request handling.
func (r *Requester) Client() *http.Client { return r.client }

func (r *Requester) Platform() Platform { return r.platform }

// newBackOff yields base, 2*base, 4*base... between attempts.
func (r *Requester) newBackOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     r.baseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         r.baseDelay << 10,
	}
	b.Reset()
	return b
}

// Do sends req and returns the last response received. Rate limiting and
// authentication failures are returned as typed errors at once. Server
// errors, network errors and decode errors raised by decode are retried
// until the attempts run out, then returned as a *SocialMediaError. Other
// non-2xx responses are returned with a nil error and no retry.
func (r *Requester) Do(ctx context.Context, req Request, decode func(*Response) error) (*Response, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, &SocialMediaError{Platform: r.platform, Code: CodeInvalidRequest, Message: err.Error(), Err: err}
	}

	var last *Response
	attempt := 0
	operation := func() (*Response, error) {
		attempt++
		if attempt > 1 {
			r.metrics.ObserveRetry(r.platform)
		}
		start := r.now()
		resp, err := r.send(ctx, req, body, contentType)
		if err != nil {
			r.metrics.ObserveRequest(r.platform, OutcomeNetwork, time.Since(start))
			slog.Debug("platform request failed", "platform", r.platform, "url", req.URL, "attempt", attempt, "error", err)
			if errors.Is(err, ErrBodyTooLarge) {
				return nil, backoff.Permanent(&SocialMediaError{Platform: r.platform, Code: CodeInvalidRequest, Message: err.Error(), Err: err})
			}
			netErr := &SocialMediaError{Platform: r.platform, Code: CodeNetwork, Message: err.Error(), Err: err}
			if ctx.Err() != nil {
				return nil, backoff.Permanent(netErr)
			}
			return nil, netErr
		}
		last = resp

		outcome := OutcomeOK
		defer func() {
			r.metrics.ObserveRequest(r.platform, outcome, time.Since(start))
			slog.Debug("platform request", "platform", r.platform, "method", req.Method, "url", req.URL, "status", resp.StatusCode, "attempt", attempt)
		}()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			outcome = OutcomeRateLimited
			return nil, backoff.Permanent(NewRateLimitError(r.platform, RetryAfter(resp.Header, r.now()), ErrorMessage(resp.Body)))
		case resp.StatusCode == http.StatusUnauthorized:
			outcome = OutcomeAuthFailed
			return nil, backoff.Permanent(NewAuthenticationError(r.platform, ErrorMessage(resp.Body)))
		case resp.StatusCode >= 500:
			outcome = OutcomeServerError
			return nil, &SocialMediaError{Platform: r.platform, Code: CodeHTTP, Message: httpMessage(resp)}
		case !resp.OK():
			outcome = OutcomeHTTPError
			return resp, nil
		}

		if decode != nil {
			if err := decode(resp); err != nil {
				outcome = OutcomeParse
				return nil, &SocialMediaError{Platform: r.platform, Code: CodeParse, Message: "decode response: " + err.Error(), Err: err}
			}
		}
		return resp, nil
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(r.maxRetries)),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		var se *SocialMediaError
		if !errors.As(err, &se) {
			err = &SocialMediaError{Platform: r.platform, Code: CodeNetwork, Message: err.Error(), Err: err}
		}
		return last, err
	}
	return resp, nil
}

func (r *Requester) send(ctx context.Context, req Request, body []byte, contentType string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	target := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	limit := req.MaxBodySize
	if limit <= 0 {
		limit = maxBodySize
	}
	data, err := io.ReadAll(io.LimitReader(httpResp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes from %s", ErrBodyTooLarge, limit, req.URL)
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		RateLimit:  ParseRateLimit(httpResp.Header, r.now()),
	}, nil
}

func encodeBody(req Request) ([]byte, string, error) {
	switch {
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return data, "application/json", nil
	case req.Form != nil:
		return []byte(req.Form.Encode()), "application/x-www-form-urlencoded", nil
	case req.Body != nil:
		return req.Body, req.ContentType, nil
	}
	return nil, req.ContentType, nil
}

// MakeRequest sends req and decodes a JSON 2xx body into T inside the retry
// loop. An empty body decodes to the zero value.
func MakeRequest[T any](ctx context.Context, r *Requester, req Request) (*APIResponse[T], error) {
	var out T
	resp, err := r.Do(ctx, req, func(resp *Response) error {
		var v T
		if len(bytes.TrimSpace(resp.Body)) > 0 {
			if err := json.Unmarshal(resp.Body, &v); err != nil {
				return err
			}
		}
		out = v
		return nil
	})

	var rl *RateLimitInfo
	if resp != nil {
		rl = resp.RateLimit
	}
	if err != nil {
		if IsFatal(err) {
			return nil, err
		}
		return FailWith[T](ToAPIError(err)).WithRateLimit(rl), nil
	}
	if !resp.OK() {
		return FailWith[T](HTTPError(resp)).WithRateLimit(rl), nil
	}
	return OK(out).WithRateLimit(rl), nil
}

// HTTPError builds the structured failure of a non-2xx response.
func HTTPError(resp *Response) *APIError {
	return &APIError{
		Code:    CodeHTTP,
		Message: httpMessage(resp),
		Details: []string{"status " + strconv.Itoa(resp.StatusCode)},
	}
}

func httpMessage(resp *Response) string {
	if msg := ErrorMessage(resp.Body); msg != "" {
		return msg
	}
	return fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

type platformError struct {
	Error            json.RawMessage `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Message          string          `json:"message"`
	Detail           string          `json:"detail"`
	Title            string          `json:"title"`
	Errors           []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// ErrorMessage pulls the human readable message out of the error bodies the
// supported platforms send. It returns "" when none is found.
func ErrorMessage(body []byte) string {
	var pe platformError
	if err := json.Unmarshal(body, &pe); err != nil {
		return ""
	}
	if len(pe.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
			Code    any    `json:"code"`
		}
		if json.Unmarshal(pe.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var s string
		if json.Unmarshal(pe.Error, &s) == nil && s != "" {
			if pe.ErrorDescription != "" {
				return s + ": " + pe.ErrorDescription
			}
			return s
		}
	}
	switch {
	case pe.Detail != "":
		return pe.Detail
	case pe.Message != "":
		return pe.Message
	case len(pe.Errors) > 0 && pe.Errors[0].Message != "":
		return pe.Errors[0].Message
	case pe.ErrorDescription != "":
		return pe.ErrorDescription
	case pe.Title != "":
		return pe.Title
	}
	return ""
}

// RetryAfter reads Retry-After as seconds or an HTTP date, falling back to
// the rate limit reset headers. It returns 0 when nothing usable is present.
func RetryAfter(h http.Header, now time.Time) time.Duration {
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil {
			if d := t.Sub(now); d > 0 {
				return d
			}
			return 0
		}
	}
	if rl := ParseRateLimit(h, now); rl != nil && !rl.ResetAt.IsZero() {
		if d := rl.ResetAt.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}

// ParseRateLimit reads the x-rate-limit-*, x-ratelimit-* and Facebook
// x-app-usage headers. It returns nil when none is present.
func ParseRateLimit(h http.Header, now time.Time) *RateLimitInfo {
	for _, prefix := range []string{"X-Rate-Limit-", "X-Ratelimit-"} {
		limit := h.Get(prefix + "Limit")
		remaining := h.Get(prefix + "Remaining")
		if limit == "" && remaining == "" {
			continue
		}
		info := &RateLimitInfo{}
		info.Limit, _ = strconv.Atoi(limit)
		info.Remaining, _ = strconv.Atoi(remaining)
		if reset, err := strconv.ParseInt(h.Get(prefix+"Reset"), 10, 64); err == nil {
			info.ResetAt = resetTime(reset, now)
		}
		return info
	}

	if usage := h.Get("X-App-Usage"); usage != "" {
		var u struct {
			CallCount    int `json:"call_count"`
			TotalTime    int `json:"total_time"`
			TotalCPUTime int `json:"total_cputime"`
		}
		if json.Unmarshal([]byte(usage), &u) == nil {
			used := max(u.CallCount, u.TotalTime, u.TotalCPUTime)
			return &RateLimitInfo{
				Limit:     100,
				Remaining: max(0, 100-used),
				ResetAt:   now.Add(time.Hour),
			}
		}
	}
	return nil
}

// resetTime accepts both epoch seconds and seconds from now.
func resetTime(v int64, now time.Time) time.Time {
	if v > 1_000_000_000 {
		return time.Unix(v, 0)
	}
	return now.Add(time.Duration(v) * time.Second)
}

// Download fetches public media, typically staged on object storage, so it
// can be re-uploaded to a platform. A body larger than maxBytes fails rather
// than being truncated. Every failure is a failed response; the media host is
// not the platform.
func Download(ctx context.Context, r *Requester, rawURL string, maxBytes int64) *APIResponse[MediaUpload] {
	resp, err := r.Do(ctx, Request{URL: rawURL, Header: http.Header{"Accept": {"*/*"}}, MaxBodySize: maxBytes}, nil)
	if err != nil {
		apiErr := ToAPIError(err)
		apiErr.Message = "download " + rawURL + ": " + apiErr.Message
		return FailWith[MediaUpload](apiErr)
	}
	if !resp.OK() {
		return FailWith[MediaUpload](HTTPError(resp))
	}
	name := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	return OK(MediaUpload{
		Filename:    name,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        resp.Body,
	})
}
