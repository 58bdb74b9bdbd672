// Package httpclient performs provider API calls through the shared rate
// limiter with retries on network failures, 5xx and 429 responses.
package httpclient

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/apperrors"
	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/ratelimit"
	"github.com/spigell/jobradar/internal/retry"
)

const (
	defaultUserAgent = "jobradar/1.0"
	contentEncoding  = "gzip"
	maxBodyBytes     = 8 << 20
)

type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	// Credential selects the rate limit window. Empty means unlimited.
	Credential string
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// StatusError describes an unsuccessful HTTP status.
type StatusError struct {
	Code   int
	Status string
	Wait   time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status: %s", e.Status)
}

func (e *StatusError) RetryAfter() time.Duration {
	return e.Wait
}

// DeniedError is returned when the local limiter refuses the request.
type DeniedError struct {
	Credential string
	Wait       time.Duration
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("rate limit for %q exhausted, retry after %s", e.Credential, e.Wait)
}

func (e *DeniedError) RetryAfter() time.Duration {
	return e.Wait
}

// ErrBodyTooLarge is returned for responses bigger than Client.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body exceeds the size limit")

type Client struct {
	HTTPClient   *http.Client
	UserAgent    string
	MaxBodyBytes int64

	limiter *ratelimit.Limiter
	policy  retry.Policy
	logger  *zap.Logger
}

func New(limiter *ratelimit.Limiter, policy retry.Policy, log *zap.Logger) *Client {
	return &Client{
		HTTPClient:   &http.Client{},
		UserAgent:    defaultUserAgent,
		MaxBodyBytes: maxBodyBytes,
		limiter:      limiter,
		policy:       policy,
		logger:       logger.OrNop(log),
	}
}

// Do executes the request. Denials by the limiter surface as RATE_LIMITED
// errors, 401 and 403 as AUTH, any other 4xx as FATAL.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	policy := c.policy
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.logger.Debug("retrying request",
			zap.String("url", r.URL),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}

	var resp *Response
	err := retry.Do(ctx, policy, func(ctx context.Context, _ int) error {
		var err error
		resp, err = c.attempt(ctx, r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) attempt(ctx context.Context, r Request) (*Response, error) {
	if c.limiter != nil && r.Credential != "" {
		if d := c.limiter.TryAcquire(r.Credential); !d.Allowed {
			return nil, apperrors.RateLimited("request denied by rate limiter", &DeniedError{Credential: r.Credential, Wait: d.RetryAfter})
		}
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, nil)
	if err != nil {
		return nil, apperrors.InvalidInput("build request", err)
	}
	if len(r.Query) > 0 {
		req.URL.RawQuery = r.Query.Encode()
	}
	for k, values := range r.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	httpResp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, apperrors.Transient("http request failed", err)
	}
	defer httpResp.Body.Close()

	body, err := readBody(httpResp, c.MaxBodyBytes)
	if err != nil {
		return nil, apperrors.Transient("read response body", err)
	}

	if err := c.classify(r, httpResp); err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}

func (c *Client) classify(r Request, resp *http.Response) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}

	statusErr := &StatusError{Code: code, Status: resp.Status}
	switch {
	case code == http.StatusTooManyRequests:
		statusErr.Wait = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		if c.limiter != nil && r.Credential != "" {
			c.limiter.Penalize(r.Credential, statusErr.Wait)
		}
		return apperrors.Transient("provider throttled request", statusErr)
	case code >= 500:
		return apperrors.Transient("provider unavailable", statusErr)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperrors.Auth("provider rejected credentials", statusErr)
	default:
		return apperrors.Fatal("provider rejected request", statusErr)
	}
}

// readBody fails on bodies larger than limit rather than returning a
// truncated document.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	var reader io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}
	if limit <= 0 {
		limit = maxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, limit)
	}
	return body, nil
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// IsDenied reports whether err came from the local rate limiter or a provider 429.
func IsDenied(err error) bool {
	if apperrors.Is(err, apperrors.TypeRateLimited) {
		return true
	}
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusTooManyRequests
}
