package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/scrollcrawl/internal/model"
)

// ErrUnknownFormat is returned by NewWriter for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown report format")

// Writer outputs a crawl report.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(report *model.CrawlReport) (int, error)
}

// NewWriter returns the writer for format ("text", "json" or "markdown").
// version is recorded by formats that carry metadata.
func NewWriter(format string, output io.Writer, version string) (Writer, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return NewSimpleWriter(output), nil
	case "json":
		return NewJSONWriter(output, version, WithPrettyPrint()), nil
	case "markdown", "md":
		return NewMarkdownWriter(output), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// MultiWriter writes to multiple Writers in order and stops at the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
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

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

const timeLayout = "2006-01-02 15:04:05 MST"

// formatDuration rounds d for display.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

// runDuration returns how long the whole run took.
func runDuration(report *model.CrawlReport) time.Duration {
	if report.FinishedAt.IsZero() {
		return 0
	}
	return report.FinishedAt.Sub(report.StartedAt)
}
