package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/varnisher/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing, such as attaching
// a purge run to a deploy ticket.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	summary := report.Summarize()
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report, summary)
	w.writeSummary(md, summary)
	w.writePurges(md, report.SortedPurges())
	w.writeFailures(md, report.FetchFailures)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)
	w.writeSummary(md, summary)
	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report, s model.Summary) {
	md.H1("Varnisher Report")
	md.PlainText("")

	rows := [][]string{
		{"Run", "`" + report.ID + "`"},
		{"Command", title(string(report.Command))},
		{"Target", "`" + report.Target + "`"},
	}
	if report.Proxy != "" {
		rows = append(rows, []string{"Proxy", "`" + report.Proxy + "`"})
	}
	rows = append(rows,
		[]string{"Started", report.StartedAt.Format(dateFormat)},
		[]string{"Duration", formatDuration(s.Duration)},
		[]string{"Pages Hit", strconv.Itoa(s.PagesHit)},
		[]string{"Status", statusText(s)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSummary writes the outcome table, chart and alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s model.Summary) {
	md.H2("Purge Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(model.Outcomes)+1)
	for _, o := range model.Outcomes {
		rows = append(rows, []string{title(string(o)), strconv.Itoa(s.ByOutcome[o])})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(s.Purged+s.Failed) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.Purged+s.Failed > 0 {
		w.writePieChart(md, s)
	}

	w.writeAlert(md, s)
}

// writePieChart writes a mermaid pie chart of purge outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Purge Outcomes"),
		piechart.WithShowData(true),
	)

	for _, o := range model.Outcomes {
		if n := s.ByOutcome[o]; n > 0 {
			chart.LabelAndIntValue(title(string(o)), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the run outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s model.Summary) {
	switch {
	case s.Error != "":
		md.Cautionf("The run failed: %s", s.Error)
	case s.Interrupted:
		md.Warningf("The run was interrupted. Some URLs were not purged.")
	case s.Failed > 0 && s.Purged == 0:
		md.Cautionf("No purge succeeded. %d purge(s) failed.", s.Failed)
	case s.Failed > 0:
		md.Warningf("%d purge(s) failed. Stale objects may still be cached.", s.Failed)
	case s.FetchFailures > 0:
		md.Importantf("%d page(s) could not be fetched and were not purged.", s.FetchFailures)
	case s.Purged > 0:
		md.Tip("Every purge succeeded.")
	default:
		md.Note("No purge was sent.")
	}
	md.PlainText("")
}

// writePurges writes a table of every purge.
func (w *MarkdownWriter) writePurges(md *markdown.Markdown, purges []model.PurgeResult) {
	md.H2("Purges")
	md.PlainText("")

	if len(purges) == 0 {
		md.PlainText("No purges were sent.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(purges))
	for i, p := range purges {
		status := "-"
		if p.StatusCode != 0 {
			status = strconv.Itoa(p.StatusCode)
		}
		rows[i] = []string{
			"`" + truncateString(p.URL, 80) + "`",
			p.Method,
			status,
			title(string(p.Outcome)),
			formatDuration(p.Duration),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Method", "Status", "Outcome", "Duration"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, p := range purges {
		if p.Error != "" {
			md.Details(p.URL, p.Error)
		}
	}
	md.PlainText("")
}

// writeFailures lists the pages that could not be fetched.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, failures []model.FetchFailure) {
	if len(failures) == 0 {
		return
	}

	md.H2("Fetch Failures")
	md.PlainText("")

	items := make([]string, len(failures))
	for i, f := range failures {
		items[i] = "`" + f.URL + "`: " + f.Error
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [varnisher](https://github.com/nao1215/varnisher)*")
}
