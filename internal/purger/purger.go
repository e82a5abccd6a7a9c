package purger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/varnisher/internal/model"
	"github.com/nao1215/varnisher/internal/pipeline"
	"github.com/nao1215/varnisher/internal/urls"
	"github.com/nao1215/varnisher/internal/varnish"
)

// base holds what every purge workflow shares.
type base struct {
	// client sends the purge requests.
	client *varnish.Client

	// workers is the number of concurrent purges.
	workers int

	// policy decides which resource URLs are the same.
	policy urls.Policy

	// logger reports every purge.
	logger *slog.Logger
}

// Option configures a purger.
type Option func(*base)

// WithConcurrency sets the number of concurrent purge requests.
func WithConcurrency(n int) Option {
	return func(b *base) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithPolicy sets the URL normalization policy used to dedupe resources.
func WithPolicy(p urls.Policy) Option {
	return func(b *base) {
		b.policy = p
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

func newBase(client *varnish.Client, opts []Option) base {
	b := base{
		client:  client,
		workers: pipeline.DefaultWorkers,
		policy:  urls.DefaultPolicy(),
	}

	for _, opt := range opts {
		opt(&b)
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}

	return b
}

// purge sends one request, logs it and adds it to report.
func (b *base) purge(ctx context.Context, report *model.Report, target string, kind varnish.Kind) varnish.Result {
	res := b.client.Purge(ctx, target, kind)
	report.AddPurge(toPurgeResult(res))

	if res.Purged {
		b.logger.Info("purged", "url", target, "method", res.Method, "elapsed", res.Duration)
	} else {
		b.logger.Warn("purge failed", "url", target, "method", res.Method, "error", res.Err)
	}

	return res
}

// purgeFirst sends the first purge of a run. An unreachable proxy means the
// configuration is wrong, so it is returned as ErrConfiguration.
func (b *base) purgeFirst(ctx context.Context, report *model.Report, target string, kind varnish.Kind) error {
	res := b.purge(ctx, report, target, kind)
	if err := ctx.Err(); err != nil {
		return err
	}
	if errors.Is(res.Err, varnish.ErrProxyUnreachable) {
		return fmt.Errorf("%w: %w", ErrConfiguration, res.Err)
	}
	return nil
}

// purgeAll purges every URL concurrently with PURGE.
func (b *base) purgeAll(ctx context.Context, report *model.Report, targets []string) error {
	if len(targets) == 0 {
		return nil
	}

	pool := pipeline.NewPool(
		pipeline.WithWorkers(b.workers),
		pipeline.WithLogger(b.logger),
	)

	startTime := time.Now()
	b.logger.Debug("purging", "count", len(targets), "workers", pool.Workers())

	err := pool.ForEach(ctx, targets, func(ctx context.Context, target string) {
		b.purge(ctx, report, target, varnish.Page)
	})

	b.logger.Debug("purging finished", "count", len(targets), "elapsed", time.Since(startTime))
	return err
}

// finish stamps the report and passes err through.
func finish(report *model.Report, err error) (*model.Report, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		report.Interrupted = true
	}
	report.Finish(err)
	return report, err
}

func toPurgeResult(res varnish.Result) model.PurgeResult {
	p := model.PurgeResult{
		URL:        res.Target,
		Method:     res.Method,
		StatusCode: res.StatusCode,
		Outcome:    model.Outcome(res.Outcome()),
		Duration:   res.Duration,
	}
	if res.Err != nil {
		p.Error = res.Err.Error()
	}
	return p
}
