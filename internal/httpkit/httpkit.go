// Package httpkit builds the HTTP clients used for every outbound call:
// model providers, literature APIs, web search and page fetches.
package httpkit

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/nugget/savant/internal/buildinfo"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultResponseHeader = 30 * time.Second

	// maxRetryAfter caps how long a Retry-After header may stall a request.
	maxRetryAfter = 30 * time.Second
)

// Option configures a client built by NewClient.
type Option func(*options)

type options struct {
	timeout        time.Duration
	responseHeader time.Duration
	userAgent      string
	retries        int
	backoff        time.Duration
	logger         *slog.Logger
}

// WithTimeout sets the whole-request timeout. Zero disables it and
// leaves cancellation to the request context.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithResponseHeaderTimeout bounds the wait for response headers after
// the request is written. Model providers need minutes for long prompts.
func WithResponseHeaderTimeout(d time.Duration) Option {
	return func(o *options) { o.responseHeader = d }
}

// WithUserAgent overrides the buildinfo User-Agent.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithRetry retries dial failures and throttled responses up to n
// times. The wait starts at backoff and doubles, unless the server
// sends Retry-After. Requests whose body cannot be rewound are not
// retried.
func WithRetry(n int, backoff time.Duration) Option {
	return func(o *options) {
		o.retries = n
		o.backoff = backoff
	}
}

// WithLogger logs retries at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewClient builds an *http.Client with the shared defaults.
func NewClient(opts ...Option) *http.Client {
	o := options{
		timeout:        defaultTimeout,
		responseHeader: defaultResponseHeader,
		userAgent:      buildinfo.UserAgent(),
	}
	for _, fn := range opts {
		fn(&o)
	}

	var rt http.RoundTripper = &agentTransport{base: newTransport(o.responseHeader), userAgent: o.userAgent}
	if o.retries > 0 {
		rt = &retryTransport{base: rt, retries: o.retries, backoff: o.backoff, logger: o.logger}
	}
	return &http.Client{Timeout: o.timeout, Transport: rt}
}

func newTransport(responseHeader time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: responseHeader,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		ForceAttemptHTTP2:     true,
	}
}

// agentTransport sets User-Agent when the caller did not.
type agentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *agentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rewindable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
	wait := t.backoff

	resp, err := t.base.RoundTrip(req)
	for attempt := 1; attempt <= t.retries && rewindable && retryable(resp, err); attempt++ {
		delay := wait
		if resp != nil {
			if ra := retryAfter(resp); ra > 0 {
				delay = ra
			}
			DrainAndClose(resp.Body, 4096)
		}
		if t.logger != nil {
			t.logger.Debug("retrying request",
				"method", req.Method, "host", req.URL.Host,
				"attempt", attempt, "wait", delay, "error", err)
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(delay):
		}
		wait *= 2

		next := req.Clone(req.Context())
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, fmt.Errorf("retry: rewind body: %w", bodyErr)
			}
			next.Body = body
		}
		resp, err = t.base.RoundTrip(next)
	}
	return resp, err
}

// retryable reports throttling and failures that happened before the
// server saw the request. ECONNRESET is excluded because the server
// may already have acted.
func retryable(resp *http.Response, err error) bool {
	if err != nil {
		var errno syscall.Errno
		if !errors.As(err, &errno) {
			return false
		}
		return errno == syscall.ECONNREFUSED || errno == syscall.EHOSTUNREACH || errno == syscall.ENETUNREACH
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter)
}

// DrainAndClose discards up to limit bytes of rc and closes it so the
// connection returns to the pool.
func DrainAndClose(rc io.ReadCloser, limit int64) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, limit))
	rc.Close()
}

// ReadErrorBody returns up to limit bytes of rc for an error message
// and closes it.
func ReadErrorBody(rc io.ReadCloser, limit int64) string {
	if rc == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(rc, limit))
	DrainAndClose(rc, 1024)
	if err != nil {
		return fmt.Sprintf("(failed to read error body: %v)", err)
	}
	return string(body)
}
