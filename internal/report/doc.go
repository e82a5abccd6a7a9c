// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: GitHub Flavored Markdown with a mermaid outcome chart
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
