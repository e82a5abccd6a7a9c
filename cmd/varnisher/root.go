// Package main provides the entry point for the varnisher CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for varnisher.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "varnisher",
		Short: "Purge pages, resources and whole sites from a Varnish cache",
		Long: `varnisher invalidates entries in a Varnish cache.

It sends PURGE requests for single URLs and DOMAINPURGE requests for whole
hosts. To find what to purge it fetches a page and purges the stylesheets,
scripts and images it references, or crawls every page of a site.

Settings are read from a .varnishrc file (see "varnisher init") and can be
overridden with command-line flags.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewPurgeCmd())
	cmd.AddCommand(NewSpiderCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
