package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/varnisher/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with plain ASCII section
// formatting that pipes cleanly to files.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose lists successful purges and crawled pages too.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *model.Report) (int, error) {
	summary := report.Summarize()

	var sb strings.Builder
	w.writeHeader(&sb, report, summary)
	w.writeSummary(&sb, summary)
	w.writePurges(&sb, report.SortedPurges())
	w.writeFailures(&sb, report.FetchFailures)
	if w.verbose {
		w.writePages(&sb, report.Pages)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs only the summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary model.Summary) (int, error) {
	var sb strings.Builder
	w.writeSummary(&sb, summary)
	return w.output.Write([]byte(sb.String()))
}

func section(sb *strings.Builder, name string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(name)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.Report, s model.Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         VARNISHER REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Run:        %s\n", report.ID))
	sb.WriteString(fmt.Sprintf("Command:    %s\n", title(string(report.Command))))
	sb.WriteString(fmt.Sprintf("Target:     %s\n", report.Target))
	if report.Proxy != "" {
		sb.WriteString(fmt.Sprintf("Proxy:      %s\n", report.Proxy))
	}
	sb.WriteString(fmt.Sprintf("Started:    %s\n", report.StartedAt.Format(dateFormat)))
	sb.WriteString(fmt.Sprintf("Duration:   %s\n", formatDuration(s.Duration)))
	sb.WriteString(fmt.Sprintf("Status:     %s\n", statusText(s)))
	sb.WriteString("\n")
}

// writeSummary writes the outcome counts.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, s model.Summary) {
	section(sb, "SUMMARY")

	sb.WriteString(fmt.Sprintf("  PAGES HIT:      %d\n", s.PagesHit))
	sb.WriteString(fmt.Sprintf("  FETCH FAILURES: %d\n", s.FetchFailures))
	sb.WriteString("\n")

	for _, o := range model.Outcomes {
		if s.ByOutcome[o] == 0 && !w.showEmpty {
			continue
		}
		label := strings.ToUpper(string(o)) + ":"
		sb.WriteString(fmt.Sprintf("  %-15s %d\n", label, s.ByOutcome[o]))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  TOTAL:          %d purges\n", s.Purged+s.Failed))
	sb.WriteString("\n")
}

// writePurges writes the failed purges, and the successful ones when verbose.
func (w *SimpleWriter) writePurges(sb *strings.Builder, purges []model.PurgeResult) {
	var shown []model.PurgeResult
	for _, p := range purges {
		if w.verbose || !p.Purged() {
			shown = append(shown, p)
		}
	}
	if len(shown) == 0 && !w.showEmpty {
		return
	}

	if w.verbose {
		section(sb, "PURGES")
	} else {
		section(sb, "FAILED PURGES")
	}

	if len(shown) == 0 {
		sb.WriteString("  None\n\n")
		return
	}

	for _, p := range shown {
		indicator := "+"
		if !p.Purged() {
			indicator = "!"
		}
		sb.WriteString(fmt.Sprintf("  [%s] %s %s\n", indicator, p.Method, p.URL))
		if p.StatusCode != 0 {
			sb.WriteString(fmt.Sprintf("      Status: %d\n", p.StatusCode))
		}
		if p.Error != "" {
			sb.WriteString(fmt.Sprintf("      Error: %s\n", p.Error))
		}
	}
	sb.WriteString("\n")
}

// writeFailures writes the pages that could not be fetched.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, failures []model.FetchFailure) {
	if len(failures) == 0 && !w.showEmpty {
		return
	}

	section(sb, "FETCH FAILURES")

	if len(failures) == 0 {
		sb.WriteString("  None\n\n")
		return
	}

	for _, f := range failures {
		sb.WriteString(fmt.Sprintf("  [!] %s\n", f.URL))
		sb.WriteString(fmt.Sprintf("      Error: %s\n", f.Error))
	}
	sb.WriteString("\n")
}

// writePages lists the crawled pages.
func (w *SimpleWriter) writePages(sb *strings.Builder, pages []string) {
	if len(pages) == 0 {
		return
	}

	section(sb, "PAGES")
	for _, p := range pages {
		sb.WriteString(fmt.Sprintf("  [+] %s\n", p))
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by varnisher\n")
	sb.WriteString("https://github.com/nao1215/varnisher\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
