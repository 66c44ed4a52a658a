package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/scrollcrawl/internal/model"
)

// SimpleWriter outputs a plain text report for terminals.
type SimpleWriter struct {
	baseWriter

	// verbose adds the full counter set of every site.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

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

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSites(&sb, report)
	w.writeTotals(&sb, report)

	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                       SCROLLCRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run ID:    %s\n", report.RunID)
	fmt.Fprintf(sb, "Started:   %s\n", report.StartedAt.Format(timeLayout))
	fmt.Fprintf(sb, "Duration:  %s\n", formatDuration(runDuration(report)))
	fmt.Fprintf(sb, "Sites:     %d (%d exhausted, %d failed, %d cancelled)\n",
		len(report.Sites),
		report.CountByStatus(model.SiteStatusExhausted),
		report.CountByStatus(model.SiteStatusFailed),
		report.CountByStatus(model.SiteStatusCancelled),
	)
	sb.WriteString("\n")
}

// writeSites writes one block per site.
func (w *SimpleWriter) writeSites(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SITES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")

	for _, site := range report.Sites {
		fmt.Fprintf(sb, "\n[%s] %s\n", strings.ToUpper(site.Status.String()), site.Site)
		if site.Error != "" {
			fmt.Fprintf(sb, "  Error:     %s\n", site.Error)
		}
		fmt.Fprintf(sb, "  Duration:  %s\n", formatDuration(site.Duration()))
		fmt.Fprintf(sb, "  Articles:  %d written from %d pages\n", site.Stats.ArticlesWritten, site.Stats.PagesFetched)

		if w.verbose {
			writeStats(sb, site.Stats, "  ")
		}
	}
	sb.WriteString("\n")
}

// writeTotals writes the counters summed over all sites.
func (w *SimpleWriter) writeTotals(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("TOTALS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")

	writeStats(sb, report.Totals(), "")

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

func writeStats(sb *strings.Builder, s model.CrawlStats, indent string) {
	rows := []struct {
		label string
		value int
	}{
		{"Discovery rounds", s.DiscoveryRounds},
		{"Empty rounds", s.EmptyRounds},
		{"Links enqueued", s.LinksEnqueued},
		{"Pages fetched", s.PagesFetched},
		{"Articles written", s.ArticlesWritten},
		{"Not articles", s.ExtractionFailures},
		{"Dropped URLs", s.RenderDrops},
		{"Write failures", s.WriteFailures},
	}
	for _, r := range rows {
		fmt.Fprintf(sb, "%s%-18s %d\n", indent, r.label+":", r.value)
	}
}
