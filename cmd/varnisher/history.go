package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/varnisher/internal/config"
	"github.com/nao1215/varnisher/internal/database"
	"github.com/spf13/cobra"
)

// historyDateFormat is the timestamp layout of history listings.
const historyDateFormat = "2006-01-02 15:04:05"

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past purge and spider runs",
		Long: `History shows the runs recorded in the history database.

Without arguments the most recent runs are listed. With a run ID the full
report of that run is printed. With --url every recorded purge of one URL
is listed, which answers "when was this page last purged?".

The history is an audit log. It is never used to skip purges or pages.

Examples:
  # List the last 20 runs
  varnisher history

  # List the runs against one target
  varnisher history --target www.example.com

  # Show the report of a run as Markdown
  varnisher history --markdown 0b6f1c2e-8a8c-4a53-9d0e-0f6c7c0f6a1d

  # Show when a URL was purged
  varnisher history --url http://www.example.com/main.css`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("target", "", "Only list runs against this target")
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit, "Maximum number of runs to list (0 for all)")
	cmd.Flags().StringP("url", "u", "", "List the recorded purges of this URL")
	cmd.Flags().BoolP("json", "j", false,
		"Print a run report in JSON format (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Print a run report in Markdown format (mutually exclusive with --json)")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()

	cfg := config.NewConfig()
	var err error
	if cfg.DBDir, err = f.GetString("db-dir"); err != nil {
		return err
	}
	if cfg.JSONReport, err = f.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = f.GetBool("markdown"); err != nil {
		return err
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return config.ErrConflictingReportFormats
	}

	target, err := f.GetString("target")
	if err != nil {
		return err
	}
	limit, err := f.GetInt("limit")
	if err != nil {
		return err
	}
	rawURL, err := f.GetString("url")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := database.Open(cfg.DBDir, database.Options{CreateIfNotExists: false})
	if errors.Is(err, database.ErrDatabaseNotFound) {
		fmt.Fprintln(out, "No runs recorded yet.")
		fmt.Fprintln(out, "\nUse 'varnisher purge <target>' or 'varnisher spider <target>' to record one.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	switch {
	case len(args) == 1:
		return showRun(ctx, out, db, cfg, args[0])
	case rawURL != "":
		return listURLHistory(ctx, out, db, rawURL)
	default:
		return listRuns(ctx, out, db, target, limit)
	}
}

// listRuns prints the most recent runs.
func listRuns(ctx context.Context, out io.Writer, db *database.HistoryDB, target string, limit int) error {
	runs, err := db.ListRuns(ctx, target, limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return nil
	}

	fmt.Fprintf(out, "Runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-11s  %6s  %6s  %6s  %s\n",
		"ID", "Date", "Command", "Pages", "Purged", "Failed", "Target")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 110))

	for _, run := range runs {
		label := run.Target
		switch {
		case run.Error != "":
			label += " (error)"
		case run.Interrupted:
			label += " (interrupted)"
		}
		fmt.Fprintf(out, "  %-36s  %-19s  %-11s  %6d  %6d  %6d  %s\n",
			run.ID,
			run.StartedAt.Local().Format(historyDateFormat),
			run.Command,
			run.PagesHit,
			run.Purged,
			run.Failed,
			label,
		)
	}

	fmt.Fprintln(out, "\nUse 'varnisher history <id>' to see the report of a run.")
	return nil
}

// showRun prints the stored report of one run.
func showRun(ctx context.Context, out io.Writer, db *database.HistoryDB, cfg *config.Config, id string) error {
	r, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}

	_, err = newReportWriter(cfg, out).Write(r)
	return err
}

// listURLHistory prints every recorded purge of rawURL.
func listURLHistory(ctx context.Context, out io.Writer, db *database.HistoryDB, rawURL string) error {
	purges, err := db.URLHistory(ctx, rawURL)
	if err != nil {
		return err
	}

	if len(purges) == 0 {
		fmt.Fprintf(out, "No purges recorded for %s\n", rawURL)
		return nil
	}

	fmt.Fprintf(out, "Purges of %s (%d):\n\n", rawURL, len(purges))
	fmt.Fprintf(out, "  %-19s  %-11s  %-6s  %-11s  %s\n", "Date", "Method", "Status", "Outcome", "Run")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 90))

	for _, p := range purges {
		status := "-"
		if p.StatusCode != 0 {
			status = fmt.Sprint(p.StatusCode)
		}
		fmt.Fprintf(out, "  %-19s  %-11s  %-6s  %-11s  %s\n",
			p.StartedAt.Local().Format(historyDateFormat),
			p.Method,
			status,
			p.Outcome,
			p.RunID,
		)
	}

	return nil
}
