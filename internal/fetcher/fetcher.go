package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/varnisher/internal/metrics"
	"github.com/nao1215/varnisher/internal/urls"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/proxy"
)

const (
	// DefaultUserAgent is sent with every crawl request.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_14_0) AppleWebKit/537.36 (KHTML, like Gecko) varnisher"

	// DefaultAccept is the Accept header of crawl requests.
	DefaultAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	// DefaultAcceptCharset is the Accept-Charset header of crawl requests.
	DefaultAcceptCharset = "utf-8;q=0.7,*;q=0.3"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRedirects is the hop budget of Follow.
	DefaultMaxRedirects = 10

	// DefaultMaxBodySize caps how much of a body is read.
	DefaultMaxBodySize int64 = 5 * 1024 * 1024
)

// Page is a fetched document.
type Page struct {
	// URL is the final URL after redirects.
	URL *url.URL

	// StatusCode is the status of the final response.
	StatusCode int

	// ContentType is the Content-Type header of the final response.
	ContentType string

	// Body is the response body decoded to UTF-8, truncated to the
	// configured maximum size.
	Body []byte

	// Redirects is the number of redirects followed.
	Redirects int
}

// IsHTML reports whether the page looks like an HTML document. A missing
// Content-Type is taken as HTML.
func (p *Page) IsHTML() bool {
	ct := strings.ToLower(p.ContentType)
	return ct == "" || strings.Contains(ct, "html")
}

// Fetcher issues GET requests for crawl and purge runs.
// It is safe for concurrent use.
type Fetcher struct {
	// client does the actual requests. Automatic redirects are disabled.
	client *http.Client

	// userAgent is the User-Agent header.
	userAgent string

	// headers are added to every request.
	headers map[string]string

	// cookie is sent as the Cookie header when non-empty.
	cookie string

	// maxRedirects is the hop budget of Follow.
	maxRedirects int

	// maxBodySize caps how much of a response body is read.
	maxBodySize int64

	// timeout bounds each request.
	timeout time.Duration

	// dialer opens connections. nil means the transport default.
	dialer proxy.Dialer

	// metrics records fetch outcomes. May be nil.
	metrics *metrics.Collector
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = timeout
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithHeaders adds custom headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(f *Fetcher) {
		f.headers = headers
	}
}

// WithCookie sends the given raw cookie string with every request.
func WithCookie(cookie string) Option {
	return func(f *Fetcher) {
		f.cookie = cookie
	}
}

// WithMaxRedirects sets the hop budget of Follow.
func WithMaxRedirects(n int) Option {
	return func(f *Fetcher) {
		f.maxRedirects = n
	}
}

// WithMaxBodySize sets how much of a body is read.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = size
	}
}

// WithDialer routes every connection through dialer, for example a SOCKS5
// proxy from golang.org/x/net/proxy.
func WithDialer(dialer proxy.Dialer) Option {
	return func(f *Fetcher) {
		f.dialer = dialer
	}
}

// WithSOCKS5 routes every connection through the SOCKS5 proxy at addr.
// An empty addr leaves the fetcher on direct connections.
func WithSOCKS5(addr string) Option {
	return func(f *Fetcher) {
		if addr == "" {
			return
		}
		dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
		if err != nil {
			return
		}
		WithDialer(dialer)(f)
	}
}

// WithMetrics records every fetch in the given collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		userAgent:    DefaultUserAgent,
		maxRedirects: DefaultMaxRedirects,
		maxBodySize:  DefaultMaxBodySize,
		timeout:      DefaultTimeout,
	}

	for _, opt := range opts {
		opt(f)
	}

	f.client = f.newHTTPClient()
	return f
}

// newHTTPClient builds the client used for every request.
func (f *Fetcher) newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16
	transport.IdleConnTimeout = 30 * time.Second

	if f.dialer != nil {
		dialer := f.dialer
		transport.Proxy = nil
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
	}

	return &http.Client{
		Transport: &headerInjectingTransport{
			base:    transport,
			cookie:  f.cookie,
			headers: f.headers,
		},
		Timeout: f.timeout,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Follow fetches u and follows up to the configured number of redirects.
//
// allow is consulted for every redirect target before it is requested; a
// false return stops the walk with ErrRedirectRejected. A nil allow accepts
// every http(s) target. The first URL is not passed to allow.
func (f *Fetcher) Follow(ctx context.Context, u *url.URL, allow func(*url.URL) bool) (*Page, error) {
	current := u
	redirects := 0

	for {
		resp, err := f.get(ctx, current)
		if err != nil {
			f.metrics.FetchFailed("network")
			return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailure, current, err)
		}

		if !isRedirect(resp.StatusCode) {
			page, err := f.readPage(resp, current)
			if err != nil {
				f.metrics.FetchFailed("status")
				return nil, err
			}
			page.Redirects = redirects
			f.metrics.PageFetched()
			return page, nil
		}

		location := resp.Header.Get("Location")
		drain(resp)

		if location == "" {
			f.metrics.FetchFailed("status")
			return nil, fmt.Errorf("%w: %s: %d without Location", ErrFetchFailure, current, resp.StatusCode)
		}
		if redirects >= f.maxRedirects {
			f.metrics.FetchFailed("redirects")
			return nil, fmt.Errorf("%w: %s: more than %d redirects", ErrRedirectLoopExceeded, u, f.maxRedirects)
		}

		next, err := urls.Resolve(current, location)
		if err != nil {
			f.metrics.FetchFailed("status")
			return nil, fmt.Errorf("%w: %s: bad Location: %w", ErrFetchFailure, current, err)
		}
		if allow != nil && !allow(next) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrRedirectRejected, current, next)
		}

		redirects++
		current = next
	}
}

// get issues a single GET for u.
func (f *Fetcher) get(ctx context.Context, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", DefaultAccept)
	req.Header.Set("Accept-Charset", DefaultAcceptCharset)

	return f.client.Do(req)
}

// readPage turns a final response into a Page.
func (f *Fetcher) readPage(resp *http.Response, u *url.URL) (*Page, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetchFailure, u, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	body := io.LimitReader(resp.Body, f.maxBodySize)

	decoded, err := charset.NewReader(body, contentType)
	if err != nil {
		// Unknown charset: keep the raw bytes.
		decoded = body
	}

	data, err := io.ReadAll(decoded)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: %s: reading body: %w", ErrFetchFailure, u, err)
	}

	return &Page{
		URL:         u,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        data,
	}, nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
}

// headerInjectingTransport adds custom headers and a cookie to every
// request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.cookie == "" && len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
