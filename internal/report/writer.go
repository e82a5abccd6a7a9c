package report

import (
	"io"
	"time"

	"github.com/nao1215/varnisher/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Writer defines the interface for report output.
// Implementations write run results in various formats.
type Writer interface {
	// Write outputs the full report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.Report) (int, error)

	// WriteSummary outputs only the counts of a run.
	WriteSummary(summary model.Summary) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(summary model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// dateFormat is used for every timestamp in text reports.
const dateFormat = "2006-01-02 15:04:05 MST"

// title capitalizes labels such as outcome and command names.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

// statusText describes how a run ended.
func statusText(s model.Summary) string {
	switch {
	case s.Interrupted:
		return "Interrupted (partial results)"
	case s.Error != "":
		return "Error - " + s.Error
	case s.Failed > 0:
		return "Completed with failures"
	default:
		return "Complete"
	}
}

// formatDuration rounds d for display.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(10 * time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(time.Millisecond).String()
	default:
		return d.String()
	}
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
