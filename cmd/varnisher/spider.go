package main

import (
	"github.com/nao1215/varnisher/internal/model"
	"github.com/nao1215/varnisher/internal/purger"
	"github.com/spf13/cobra"
)

// NewSpiderCmd creates the spider command.
func NewSpiderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spider <url|hostname>",
		Short: "Crawl a site, optionally purging every page found",
		Long: `Spider crawls every page of one host reachable from the target.

Links are followed only on the target's host. Pages differing only by
#fragment are visited once (disable with --ignore-hashes=false), and with
--ignore-query-strings the same goes for ?query. Crawling stops after
--num-pages pages.

Crawling alone warms the cache. With --purge, every page the crawl hit is
purged afterwards.

Examples:
  # Crawl a site
  varnisher spider www.example.com

  # Crawl at most 100 pages and purge them
  varnisher spider --purge -n 100 http://www.example.com/

  # Only follow links in the main content and skip the admin area
  varnisher spider -s "#content" --ignore-pattern "/admin/*" www.example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runSpiderCmd,
	}

	addProxyFlags(cmd)
	addCrawlFlags(cmd)
	cmd.Flags().Bool("purge", false, "Purge every page the crawl hit")

	return cmd
}

// runSpiderCmd executes the spider command.
func runSpiderCmd(cmd *cobra.Command, args []string) error {
	purge, err := cmd.Flags().GetBool("purge")
	if err != nil {
		return err
	}

	cfg, err := buildConfig(cmd, args[0])
	if err != nil {
		return err
	}

	s, err := newSession(cmd, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	s.serveMetrics(ctx)

	spider := s.newSpider()

	if purge {
		client, err := s.newClient()
		if err != nil {
			return err
		}
		r, err := purger.NewCrawlPurger(client, spider, s.purgerOptions()...).Purge(ctx, cfg.Target)
		return purgeError(s.finish(ctx, r, err))
	}

	r := model.NewReport(model.CommandSpider, cfg.Target)
	result, err := spider.Run(ctx, cfg.Target)
	if result == nil {
		return err
	}
	purger.FillCrawl(r, result)
	r.Interrupted = err != nil && ctx.Err() != nil
	r.Finish(err)

	return s.finish(ctx, r, err)
}
