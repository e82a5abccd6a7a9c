package crawler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/varnisher/internal/extract"
	"github.com/nao1215/varnisher/internal/fetcher"
	"github.com/nao1215/varnisher/internal/metrics"
	"github.com/nao1215/varnisher/internal/pipeline"
	"github.com/nao1215/varnisher/internal/urls"
	"golang.org/x/sync/semaphore"
)

// Spider crawls every page of one host reachable from a seed page.
//
// A Spider keeps the state of its last run. Run resets it, so a Spider can
// be reused for several crawls, one at a time.
type Spider struct {
	// fetcher performs the GET requests.
	fetcher *fetcher.Fetcher

	// maxPages stops the crawl once more pages than this were hit.
	// A negative value means no limit.
	maxPages int

	// workers is the number of concurrent fetches.
	workers int

	// rate caps requests per second. 0 means no limit.
	rate float64

	// policy decides which URLs are the same page.
	policy urls.Policy

	// scope restricts link extraction to the subtrees matching this CSS
	// selector. Empty means the whole page.
	scope string

	// ignorePatterns are URL path patterns never enqueued.
	ignorePatterns []string

	// followPatterns, when set, are the only URL path patterns enqueued.
	followPatterns []string

	// logger reports crawl progress.
	logger *slog.Logger

	// metrics records frontier size. May be nil.
	metrics *metrics.Collector

	// seed is the first URL of the current run.
	seed *url.URL

	// visited holds every URL claimed during the run.
	visited *VisitedSet

	// frontier holds URLs waiting to be fetched.
	frontier *pipeline.Queue

	// hits counts successfully fetched pages.
	hits atomic.Int64

	// slots holds one token per page the limit allows. A page hit keeps its
	// token; a failed crawl hands it back. nil when there is no limit.
	slots *semaphore.Weighted

	// limitCtx is canceled once the limit is reached, releasing workers
	// waiting for a slot.
	limitCtx  context.Context
	stopLimit context.CancelFunc

	// mu protects pages and failed.
	mu     sync.Mutex
	pages  []string
	failed []Failure
}

// Failure is a URL that could not be crawled.
type Failure struct {
	URL string
	Err error
}

// Result summarizes a crawl.
type Result struct {
	// Seed is the URL the crawl started from.
	Seed string

	// PagesHit is the number of pages fetched successfully.
	PagesHit int

	// Pages are the canonical URLs of the fetched pages, in the order they
	// were fetched.
	Pages []string

	// Visited are all URLs claimed during the crawl, including redirect
	// targets and failed pages.
	Visited []string

	// Failed are the URLs whose fetch failed.
	Failed []Failure

	// Duration is the wall time of the crawl.
	Duration time.Duration
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxPages sets the page limit. A negative value means no limit.
func WithMaxPages(n int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = n
	}
}

// WithConcurrency sets the number of concurrent fetches.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithRate caps the number of requests per second.
func WithRate(rate float64) SpiderOption {
	return func(s *Spider) {
		s.rate = rate
	}
}

// WithPolicy sets the URL normalization policy.
func WithPolicy(p urls.Policy) SpiderOption {
	return func(s *Spider) {
		s.policy = p
	}
}

// WithScope restricts link extraction to the parts of each page matching
// the CSS selector.
func WithScope(selector string) SpiderOption {
	return func(s *Spider) {
		s.scope = selector
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled. The seed is
// always crawled.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// WithMetrics records the frontier size in the given collector.
func WithMetrics(m *metrics.Collector) SpiderOption {
	return func(s *Spider) {
		s.metrics = m
	}
}

// NewSpider creates a Spider that fetches pages with f.
func NewSpider(f *fetcher.Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:  f,
		maxPages: -1,
		workers:  pipeline.DefaultWorkers,
		policy:   urls.DefaultPolicy(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Run crawls the site starting at target, which is an absolute URL or a
// bare hostname. The seed page is fetched first, then the frontier is
// worked off concurrently.
//
// When ctx is canceled the crawl stops after the pages in flight and Run
// returns the partial result together with ctx.Err().
func (s *Spider) Run(ctx context.Context, target string) (*Result, error) {
	seed, err := urls.SeedURL(target)
	if err != nil {
		return nil, err
	}
	seed = urls.AsHTTP(urls.Normalize(seed, s.policy))

	s.reset(seed)
	s.limitCtx, s.stopLimit = context.WithCancel(ctx)
	defer s.stopLimit()
	if s.maxPages >= 0 {
		s.slots = semaphore.NewWeighted(int64(s.maxPages) + 1)
	}
	startTime := time.Now()

	s.logger.Info("beginning spider", "url", seed.String())

	if err := s.crawlReserved(ctx, seed); err != nil {
		s.logger.Warn("failed to crawl seed page", "url", seed.String(), "error", err)
	}

	var runErr error
	if !s.limitReached() {
		pool := pipeline.NewPool(
			pipeline.WithWorkers(s.workers),
			pipeline.WithRate(s.rate),
			pipeline.WithLogger(s.logger),
		)
		runErr = pool.Run(ctx, s.frontier, s.handle)
	}
	s.frontier.Close()

	result := s.result(time.Since(startTime))
	s.logger.Info("spider finished",
		"pages_hit", result.PagesHit,
		"failed", len(result.Failed),
		"elapsed", result.Duration,
	)

	return result, runErr
}

// handle is the pool handler for frontier items.
func (s *Spider) handle(ctx context.Context, item string) {
	if s.limitReached() {
		s.frontier.Close()
		return
	}

	u, err := url.Parse(item)
	if err != nil {
		return
	}

	err = s.crawlReserved(ctx, u)
	if s.limitReached() {
		return
	}
	if err != nil && !errors.Is(err, ErrAlreadyVisited) {
		s.logger.Debug("page not crawled", "url", item, "error", err)
	}
}

// crawlReserved runs CrawlPage once a page slot is free, so that no more
// than limit+1 pages are hit whatever the concurrency.
func (s *Spider) crawlReserved(ctx context.Context, u *url.URL) error {
	if s.slots != nil {
		if err := s.slots.Acquire(s.limitCtx, 1); err != nil {
			return err
		}
	}

	err := s.CrawlPage(ctx, u)
	if err != nil && s.slots != nil {
		s.slots.Release(1)
	}

	if s.limitReached() {
		s.logger.Debug("page limit reached", "pages_hit", s.hits.Load(), "limit", s.maxPages)
		s.stopLimit()
		s.frontier.Close()
	}
	return err
}

// CrawlPage fetches one page and enqueues the links found on it.
//
// It returns ErrAlreadyVisited when the URL was claimed before,
// fetcher.ErrRedirectRejected when a redirect led to a claimed URL or off
// the host, and a fetcher error when the fetch failed. The page counts as
// hit only when CrawlPage returns nil.
func (s *Spider) CrawlPage(ctx context.Context, u *url.URL) error {
	if s.seed == nil {
		s.reset(urls.Normalize(u, s.policy))
	}

	key := urls.Canonical(u, s.policy)
	if !s.visited.Add(key) {
		return ErrAlreadyVisited
	}

	page, err := s.fetcher.Follow(ctx, u, s.allowRedirect)
	if err != nil {
		if !errors.Is(err, fetcher.ErrRedirectRejected) {
			s.recordFailure(key, err)
		}
		return err
	}

	if page.IsHTML() {
		s.enqueueLinks(page)
	}

	n := s.hits.Add(1)
	final := urls.Canonical(page.URL, s.policy)
	s.recordPage(final)
	s.logger.Debug("fetched page", "url", final, "pages_hit", n)

	return nil
}

// allowRedirect claims redirect targets on the seed host.
func (s *Spider) allowRedirect(next *url.URL) bool {
	if !urls.IsCrawlable(next, s.seed.Host) {
		return false
	}
	return s.visited.Add(urls.Canonical(next, s.policy))
}

// enqueueLinks pushes the crawlable links of page to the frontier.
func (s *Spider) enqueueLinks(page *fetcher.Page) {
	doc := extract.Parse(bytes.NewReader(page.Body))

	for _, ref := range extract.Links(doc, s.scope) {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(ref)), "mailto:") {
			continue
		}

		u, err := urls.Resolve(page.URL, ref)
		if err != nil {
			continue
		}
		u = urls.Normalize(u, s.policy)
		if !urls.IsCrawlable(u, s.seed.Host) {
			continue
		}
		u = urls.AsHTTP(u)
		if !shouldCrawl(u.Path, s.ignorePatterns, s.followPatterns) {
			continue
		}

		key := u.String()
		if s.visited.Contains(key) || s.frontier.Contains(key) {
			continue
		}
		s.frontier.Push(key)
	}
}

// limitReached reports whether more pages than the limit were hit.
func (s *Spider) limitReached() bool {
	return s.maxPages >= 0 && s.hits.Load() > int64(s.maxPages)
}

// PagesHit returns the number of pages fetched in the current run.
func (s *Spider) PagesHit() int {
	return int(s.hits.Load())
}

func (s *Spider) reset(seed *url.URL) {
	s.seed = seed
	s.visited = NewVisitedSet()
	s.frontier = pipeline.NewQueue(pipeline.WithLengthObserver(s.metrics.SetFrontierSize))
	s.hits.Store(0)
	s.slots = nil

	s.mu.Lock()
	s.pages = nil
	s.failed = nil
	s.mu.Unlock()
}

func (s *Spider) recordPage(u string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, u)
}

func (s *Spider) recordFailure(u string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, Failure{URL: u, Err: err})
}

func (s *Spider) result(elapsed time.Duration) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &Result{
		Seed:     s.seed.String(),
		PagesHit: int(s.hits.Load()),
		Pages:    append([]string(nil), s.pages...),
		Visited:  s.visited.Keys(),
		Failed:   append([]Failure(nil), s.failed...),
		Duration: elapsed,
	}
}
