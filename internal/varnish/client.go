package varnish

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/nao1215/varnisher/internal/metrics"
	"github.com/nao1215/varnisher/internal/urls"
	"golang.org/x/net/proxy"
)

const (
	// DefaultTimeout bounds a whole purge request: dial, write and read.
	DefaultTimeout = 10 * time.Second

	// maxDrainSize caps how much of a response body is read and discarded.
	maxDrainSize = 64 * 1024
)

// Kind selects the purge method.
type Kind int

const (
	// Page evicts a single URL with PURGE.
	Page Kind = iota

	// Domain evicts every object of a host with DOMAINPURGE.
	Domain
)

// Method returns the HTTP method sent for the kind.
func (k Kind) Method() string {
	if k == Domain {
		return "DOMAINPURGE"
	}
	return "PURGE"
}

// String returns the kind name.
func (k Kind) String() string {
	if k == Domain {
		return "domain"
	}
	return "page"
}

// Result is the outcome of one purge request.
type Result struct {
	// Target is the URL or hostname the caller asked to purge.
	Target string

	// Method is PURGE or DOMAINPURGE.
	Method string

	// Host is the value sent in the Host header.
	Host string

	// Path is the request path sent to the proxy.
	Path string

	// StatusCode is the status returned by the proxy, 0 if none was read.
	StatusCode int

	// Purged is true iff the proxy answered 200.
	Purged bool

	// Err explains why the purge failed. It wraps one of the package
	// sentinel errors and is nil when Purged is true.
	Err error

	// Duration is the time spent on the request.
	Duration time.Duration
}

// Client sends purge requests to one cache proxy.
// It is safe for concurrent use; every call opens its own connection.
type Client struct {
	// addr is the proxy address in host:port form.
	addr string

	// dialer opens the TCP connection to the proxy.
	dialer proxy.ContextDialer

	// timeout bounds each request.
	timeout time.Duration

	// metrics records purge outcomes. May be nil.
	metrics *metrics.Collector
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithMetrics records every purge in the given collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a client for the proxy at addr (host:port).
func NewClient(addr string, opts ...Option) *Client {
	c := &Client{
		addr:    addr,
		dialer:  proxy.Direct,
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Addr returns the proxy address.
func (c *Client) Addr() string {
	return c.addr
}

// Check verifies that a TCP connection to the proxy can be opened.
func (c *Client) Check(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Purge asks the proxy to evict target. For Page the target is an absolute
// URL; for Domain it is a bare hostname.
func (c *Client) Purge(ctx context.Context, target string, kind Kind) Result {
	start := time.Now()
	res := Result{
		Target: target,
		Method: kind.Method(),
	}

	host, path, err := requestTarget(target, kind)
	if err != nil {
		res.Err = err
		c.observe(res)
		return res
	}
	res.Host = host
	res.Path = path

	res.StatusCode, res.Err = c.send(ctx, res.Method, host, path)
	res.Duration = time.Since(start)

	if res.Err == nil {
		if res.StatusCode == http.StatusOK {
			res.Purged = true
		} else {
			res.Err = fmt.Errorf("%w: %s %s on %s returned %d",
				ErrPurgeRejected, res.Method, path, host, res.StatusCode)
		}
	}

	c.observe(res)
	return res
}

// requestTarget splits the purge target into the Host header and the path.
func requestTarget(target string, kind Kind) (host, path string, err error) {
	target = strings.TrimSpace(target)

	if kind == Domain {
		name := target
		if h, _, err := net.SplitHostPort(target); err == nil {
			name = h
		}
		if !urls.IsHostname(name) && net.ParseIP(name) == nil {
			return "", "", fmt.Errorf("%w: %q is not a hostname", ErrInvalidTarget, target)
		}
		return target, "/", nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q: %w", ErrInvalidTarget, target, err)
	}
	if u.Host == "" || u.Opaque != "" {
		return "", "", fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidTarget, target)
	}

	return u.Host, u.RequestURI(), nil
}

// send performs one request and returns the status code of the reply.
func (c *Client) send(ctx context.Context, method, host, path string) (int, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProxyUnreachable, err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	req := method + " " + path + " HTTP/1.1\r\nHost: " + host + "\r\n\r\n"
	if _, err := io.WriteString(conn, req); err != nil {
		return 0, c.ioError(ctx, err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), &http.Request{Method: method})
	if err != nil {
		return 0, c.ioError(ctx, err)
	}
	// The status is what matters; a slow body does not fail the purge.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainSize))
	_ = resp.Body.Close()

	return resp.StatusCode, nil
}

// dial opens a connection to the proxy within the request timeout.
func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(dialCtx, "tcp", c.addr)
	if err != nil {
		// A canceled run says nothing about the proxy.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrProxyUnreachable, c.addr, err)
	}
	return conn, nil
}

// ioError classifies an error that happened after the connection was open.
func (c *Client) ioError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}

	var netErr net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: no reply from %s within %s", ErrTimeout, c.addr, c.timeout)
	}

	return fmt.Errorf("%w: invalid reply from %s: %w", ErrPurgeRejected, c.addr, err)
}

// Outcome classifies the result as one of the metrics outcome labels.
func (r Result) Outcome() string {
	switch {
	case r.Purged:
		return metrics.OutcomePurged
	case errors.Is(r.Err, ErrInvalidTarget):
		return metrics.OutcomeInvalid
	case errors.Is(r.Err, ErrProxyUnreachable):
		return metrics.OutcomeUnreachable
	case errors.Is(r.Err, ErrTimeout):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeRejected
	}
}

func (c *Client) observe(res Result) {
	c.metrics.ObservePurge(res.Method, res.Outcome(), res.Duration)
}
