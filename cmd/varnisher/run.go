package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nao1215/varnisher/internal/config"
	"github.com/nao1215/varnisher/internal/crawler"
	"github.com/nao1215/varnisher/internal/database"
	"github.com/nao1215/varnisher/internal/fetcher"
	applog "github.com/nao1215/varnisher/internal/log"
	"github.com/nao1215/varnisher/internal/metrics"
	"github.com/nao1215/varnisher/internal/model"
	"github.com/nao1215/varnisher/internal/purger"
	"github.com/nao1215/varnisher/internal/report"
	"github.com/nao1215/varnisher/internal/urls"
	"github.com/nao1215/varnisher/internal/varnish"
	"github.com/spf13/cobra"
)

// session holds everything one purge or spider run shares.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Collector

	// stdout receives the report when no report file is set.
	stdout io.Writer

	// logFile is the rotating log file, nil when logging to stderr.
	logFile io.Closer
}

// newSession validates cfg and sets up logging and metrics.
func newSession(cmd *cobra.Command, cfg *config.Config) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	s := &session{
		cfg:     cfg,
		metrics: metrics.NewCollector(),
		stdout:  cmd.OutOrStdout(),
	}

	level := applog.LevelFor(cfg.Verbose, cfg.Quiet)
	if cfg.OutputFile != "" {
		// The log file holds one JSON object per line.
		f := applog.OpenFile(cfg.OutputFile)
		s.logFile = f
		s.logger = applog.NewJSONLogger(f, level)
	} else {
		s.logger = applog.NewLogger(cmd.ErrOrStderr(), level)
	}

	return s, nil
}

// Close releases the log file.
func (s *session) Close() error {
	if s.logFile == nil {
		return nil
	}
	return s.logFile.Close()
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// serveMetrics exposes metrics until ctx is canceled, when an address is
// configured.
func (s *session) serveMetrics(ctx context.Context) {
	if s.cfg.MetricsAddr == "" {
		return
	}
	go func() {
		if err := s.metrics.Serve(ctx, s.cfg.MetricsAddr, s.logger); err != nil {
			s.logger.Error("metrics server stopped", "error", err)
		}
	}()
}

// newClient creates the purge client for the target's cache proxy.
func (s *session) newClient() (*varnish.Client, error) {
	seed, err := urls.SeedURL(s.cfg.Target)
	if err != nil {
		return nil, err
	}
	return varnish.NewClient(
		s.cfg.ProxyAddr(seed.Host),
		varnish.WithTimeout(s.cfg.Timeout),
		varnish.WithMetrics(s.metrics),
	), nil
}

// newFetcher creates the fetcher used for crawl requests.
func (s *session) newFetcher() *fetcher.Fetcher {
	s.logger.Debug("crawl request settings",
		"user_agent", s.cfg.UserAgent,
		"cookie", s.cfg.Cookie,
		"headers", s.cfg.Headers,
		"crawl_proxy", s.cfg.CrawlProxy,
		"max_redirects", s.cfg.MaxRedirects,
	)

	return fetcher.NewFetcher(
		fetcher.WithTimeout(s.cfg.Timeout),
		fetcher.WithUserAgent(s.cfg.UserAgent),
		fetcher.WithHeaders(s.cfg.Headers),
		fetcher.WithCookie(s.cfg.Cookie),
		fetcher.WithMaxRedirects(s.cfg.MaxRedirects),
		fetcher.WithMaxBodySize(s.cfg.MaxBodySize),
		fetcher.WithSOCKS5(s.cfg.CrawlProxy),
		fetcher.WithMetrics(s.metrics),
	)
}

// newSpider creates a spider configured from the session.
func (s *session) newSpider() *crawler.Spider {
	return crawler.NewSpider(s.newFetcher(),
		crawler.WithMaxPages(s.cfg.MaxPages),
		crawler.WithConcurrency(s.cfg.Concurrency),
		crawler.WithRate(s.cfg.Rate),
		crawler.WithPolicy(s.cfg.Policy()),
		crawler.WithScope(s.cfg.Scope),
		crawler.WithIgnorePatterns(s.cfg.IgnorePatterns),
		crawler.WithFollowPatterns(s.cfg.FollowPatterns),
		crawler.WithLogger(s.logger),
		crawler.WithMetrics(s.metrics),
	)
}

// purgerOptions returns the options shared by every purger.
func (s *session) purgerOptions() []purger.Option {
	return []purger.Option{
		purger.WithConcurrency(s.cfg.Concurrency),
		purger.WithPolicy(s.cfg.Policy()),
		purger.WithLogger(s.logger),
	}
}

// finish writes and stores the report of a run and returns the error the
// command should exit with. Per-URL failures are part of the report and do
// not fail the command.
func (s *session) finish(ctx context.Context, r *model.Report, runErr error) error {
	if r == nil {
		return runErr
	}

	if err := s.writeReport(r); err != nil {
		s.logger.Error("failed to write report", "error", err)
	}

	// The run context may already be canceled; the history row is still
	// worth keeping.
	if err := s.saveReport(context.WithoutCancel(ctx), r); err != nil {
		s.logger.Error("failed to save run", "id", r.ID, "error", err)
	}

	if errors.Is(runErr, context.Canceled) {
		s.logger.Warn("run interrupted", "id", r.ID)
	}

	return runErr
}

// writeReport outputs the report in the configured format.
func (s *session) writeReport(r *model.Report) error {
	output := s.stdout
	if s.cfg.ReportFile != "" {
		dir := filepath.Dir(s.cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(s.cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	w := newReportWriter(s.cfg, output)
	if s.cfg.SummaryOnly {
		_, err := w.WriteSummary(r.Summarize())
		return err
	}
	_, err := w.Write(r)
	return err
}

// newReportWriter selects the report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// saveReport records the run in the history database when enabled.
func (s *session) saveReport(ctx context.Context, r *model.Report) error {
	if !s.cfg.SaveToDB {
		return nil
	}

	db, err := database.Open(s.cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.SaveRun(ctx, r); err != nil {
		return err
	}

	s.logger.Debug("run saved to history", "id", r.ID, "db", db.Path())
	return nil
}
