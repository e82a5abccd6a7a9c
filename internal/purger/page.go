package purger

import (
	"bytes"
	"context"
	"net/url"

	"github.com/nao1215/varnisher/internal/extract"
	"github.com/nao1215/varnisher/internal/fetcher"
	"github.com/nao1215/varnisher/internal/model"
	"github.com/nao1215/varnisher/internal/urls"
	"github.com/nao1215/varnisher/internal/varnish"
)

// PagePurger purges a page and the resources it references.
type PagePurger struct {
	base

	// fetcher downloads the page to find its resources.
	fetcher *fetcher.Fetcher
}

// NewPagePurger creates a PagePurger.
func NewPagePurger(client *varnish.Client, f *fetcher.Fetcher, opts ...Option) *PagePurger {
	return &PagePurger{
		base:    newBase(client, opts),
		fetcher: f,
	}
}

// Purge purges rawURL, then fetches it and purges every stylesheet, script
// and image on the same host, concurrently.
//
// The returned report is never nil. The error is non-nil when rawURL is not
// an absolute http URL, when the proxy is unreachable, or when ctx was
// canceled.
func (p *PagePurger) Purge(ctx context.Context, rawURL string) (*model.Report, error) {
	report := model.NewReport(model.CommandPage, rawURL)
	report.Proxy = p.client.Addr()

	u, err := urls.SeedURL(rawURL)
	if err != nil {
		return finish(report, err)
	}

	if err := p.purgeFirst(ctx, report, u.String(), varnish.Page); err != nil {
		return finish(report, err)
	}

	resources, err := p.resources(ctx, u)
	if err != nil {
		p.logger.Warn("failed to fetch page, no resources to purge", "url", u.String(), "error", err)
		report.AddFetchFailure(u.String(), err)
		return finish(report, ctx.Err())
	}
	report.PagesHit = 1
	report.Pages = []string{u.String()}
	report.Resources = resources

	if len(resources) == 0 {
		p.logger.Info("no resources found", "url", u.String())
		return finish(report, nil)
	}

	p.logger.Info("purging resources", "url", u.String(), "count", len(resources))
	return finish(report, p.purgeAll(ctx, report, resources))
}

// resources fetches u and returns its purgeable resource URLs, normalized
// and deduplicated, without u itself.
func (p *PagePurger) resources(ctx context.Context, u *url.URL) ([]string, error) {
	page, err := p.fetcher.Follow(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	if !page.IsHTML() {
		return nil, nil
	}

	doc := extract.Parse(bytes.NewReader(page.Body))

	var found []*url.URL
	for _, r := range extract.Resources(doc) {
		ref, err := urls.Resolve(page.URL, r.URL)
		if err != nil {
			p.logger.Debug("skipping resource", "ref", r.URL, "error", err)
			continue
		}
		if !urls.IsPurgeable(ref, u.Host) {
			p.logger.Debug("skipping resource on another host or scheme", "url", ref.String())
			continue
		}
		found = append(found, ref)
	}

	self := urls.Canonical(u, p.policy)
	out := make([]string, 0, len(found))
	for _, ref := range urls.Dedupe(found, p.policy) {
		if s := ref.String(); s != self {
			out = append(out, s)
		}
	}
	return out, nil
}
