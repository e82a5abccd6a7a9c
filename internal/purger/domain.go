package purger

import (
	"context"
	"fmt"
	"strings"

	"github.com/nao1215/varnisher/internal/model"
	"github.com/nao1215/varnisher/internal/urls"
	"github.com/nao1215/varnisher/internal/varnish"
)

// DomainPurger evicts every cached object of a host.
type DomainPurger struct {
	base
}

// NewDomainPurger creates a DomainPurger.
func NewDomainPurger(client *varnish.Client, opts ...Option) *DomainPurger {
	return &DomainPurger{base: newBase(client, opts)}
}

// Purge sends one DOMAINPURGE for host. An unreachable proxy is returned as
// ErrConfiguration; any other failure is only recorded in the report.
func (d *DomainPurger) Purge(ctx context.Context, host string) (*model.Report, error) {
	host = strings.TrimSpace(host)
	report := model.NewReport(model.CommandDomain, host)
	report.Proxy = d.client.Addr()

	if !urls.IsHostname(host) {
		return finish(report, fmt.Errorf("%w: %q is not a hostname", urls.ErrUnparseableURL, host))
	}

	if err := d.purgeFirst(ctx, report, host, varnish.Domain); err != nil {
		return finish(report, err)
	}
	return finish(report, ctx.Err())
}
