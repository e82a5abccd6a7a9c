package purger

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nao1215/varnisher/internal/crawler"
	"github.com/nao1215/varnisher/internal/model"
	"github.com/nao1215/varnisher/internal/urls"
	"github.com/nao1215/varnisher/internal/varnish"
)

// CrawlPurger crawls a host and purges every page the crawl hit.
type CrawlPurger struct {
	base

	// spider performs the crawl.
	spider *crawler.Spider
}

// NewCrawlPurger creates a CrawlPurger.
func NewCrawlPurger(client *varnish.Client, spider *crawler.Spider, opts ...Option) *CrawlPurger {
	return &CrawlPurger{
		base:   newBase(client, opts),
		spider: spider,
	}
}

// Purge crawls target and then purges the pages hit. The proxy is checked
// before the crawl starts, so a wrong proxy address fails fast with
// ErrConfiguration.
func (c *CrawlPurger) Purge(ctx context.Context, target string) (*model.Report, error) {
	report := model.NewReport(model.CommandCrawlPurge, target)
	report.Proxy = c.client.Addr()

	if err := ctx.Err(); err != nil {
		return finish(report, err)
	}
	if err := c.client.Check(ctx); err != nil {
		return finish(report, fmt.Errorf("%w: %w", ErrConfiguration, err))
	}

	result, err := c.spider.Run(ctx, target)
	if result != nil {
		FillCrawl(report, result)
	}
	if err != nil {
		return finish(report, err)
	}

	seed, err := url.Parse(result.Seed)
	if err != nil {
		return finish(report, fmt.Errorf("%w: %w", urls.ErrUnparseableURL, err))
	}

	return finish(report, c.purgeAll(ctx, report, purgeTargets(result.Pages, seed.Host)))
}

// FillCrawl copies the outcome of a crawl into report.
func FillCrawl(report *model.Report, result *crawler.Result) {
	report.PagesHit = result.PagesHit
	report.Pages = result.Pages
	for _, f := range result.Failed {
		report.AddFetchFailure(f.URL, f.Err)
	}
}

// purgeTargets turns crawled pages into PURGE targets: https pages are
// purged through their http form and duplicates are dropped.
func purgeTargets(pages []string, host string) []string {
	seen := make(map[string]struct{}, len(pages))
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		u, err := url.Parse(p)
		if err != nil {
			continue
		}
		u = urls.AsHTTP(u)
		if !urls.IsPurgeable(u, host) {
			continue
		}
		s := u.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
