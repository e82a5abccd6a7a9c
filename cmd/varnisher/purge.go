package main

import (
	"errors"
	"fmt"

	"github.com/nao1215/varnisher/internal/model"
	"github.com/nao1215/varnisher/internal/purger"
	"github.com/nao1215/varnisher/internal/urls"
	"github.com/spf13/cobra"
)

// NewPurgeCmd creates the purge command.
func NewPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge <url|hostname>",
		Short: "Purge a page and its resources, or a whole domain",
		Long: `Purge invalidates cached objects in Varnish.

When the target is a URL, the page is purged first. It is then fetched, and
every stylesheet, script and image it references on the same host is purged
too.

When the target is a bare hostname, a single DOMAINPURGE request asks the
cache to drop every object of that host. Your VCL must handle DOMAINPURGE.

Examples:
  # Purge a page and its resources through the proxy at the page's host
  varnisher purge http://www.example.com/news/

  # Purge a whole domain through a proxy on another host
  varnisher purge -H cache.internal -p 6081 www.example.com

  # Write a Markdown report
  varnisher purge --markdown -r purge.md http://www.example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runPurgeCmd,
	}

	addProxyFlags(cmd)

	return cmd
}

// runPurgeCmd executes the purge command.
func runPurgeCmd(cmd *cobra.Command, args []string) error {
	kind, err := urls.ClassifyTarget(args[0])
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

	client, err := s.newClient()
	if err != nil {
		return err
	}

	var r *model.Report
	switch kind {
	case urls.TargetDomain:
		r, err = purger.NewDomainPurger(client, s.purgerOptions()...).Purge(ctx, cfg.Target)
	default:
		r, err = purger.NewPagePurger(client, s.newFetcher(), s.purgerOptions()...).Purge(ctx, cfg.Target)
	}

	return purgeError(s.finish(ctx, r, err))
}

// purgeError adds a hint to configuration errors.
func purgeError(err error) error {
	if errors.Is(err, purger.ErrConfiguration) {
		return fmt.Errorf("%w (check --hostname and --port)", err)
	}
	return err
}
