package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/scrollcrawl/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSites(md, report)
	w.writeTotals(md, report)
	w.writeErrors(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information and the outcome alert.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + report.RunID + "`"},
			{"Started", report.StartedAt.Format(timeLayout)},
			{"Duration", formatDuration(runDuration(report))},
			{"Sites", strconv.Itoa(len(report.Sites))},
		},
	})
	md.PlainText("")

	failed := report.CountByStatus(model.SiteStatusFailed)
	cancelled := report.CountByStatus(model.SiteStatusCancelled)
	switch {
	case failed > 0:
		md.Warningf("%d of %d site(s) failed to crawl.", failed, len(report.Sites))
	case cancelled > 0:
		md.Importantf("The crawl was stopped before %d site(s) were exhausted.", cancelled)
	default:
		md.Tip("Every site was crawled until no new links were found.")
	}
	md.PlainText("")
}

// writeSites writes one table row per site and the status chart.
func (w *MarkdownWriter) writeSites(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Sites")
	md.PlainText("")

	rows := make([][]string, len(report.Sites))
	for i, s := range report.Sites {
		rows[i] = []string{
			s.Site,
			statusText(s.Status),
			strconv.Itoa(s.Stats.PagesFetched),
			strconv.Itoa(s.Stats.ArticlesWritten),
			strconv.Itoa(s.Stats.RenderDrops),
			formatDuration(s.Duration()),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Site", "Status", "Pages", "Articles", "Dropped", "Duration"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(report.Sites) > 1 {
		w.writePieChart(md, report)
	}
}

// writePieChart writes a mermaid pie chart of articles per site.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.CrawlReport) {
	if report.Totals().ArticlesWritten == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Articles per Site"),
		piechart.WithShowData(true),
	)
	for _, s := range report.Sites {
		if s.Stats.ArticlesWritten > 0 {
			chart.LabelAndIntValue(s.Site, uint64(s.Stats.ArticlesWritten))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeTotals writes the summed counters.
func (w *MarkdownWriter) writeTotals(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Totals")
	md.PlainText("")

	t := report.Totals()
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Discovery rounds", strconv.Itoa(t.DiscoveryRounds)},
			{"Empty rounds", strconv.Itoa(t.EmptyRounds)},
			{"Links enqueued", strconv.Itoa(t.LinksEnqueued)},
			{"Pages fetched", strconv.Itoa(t.PagesFetched)},
			{"Articles written", strconv.Itoa(t.ArticlesWritten)},
			{"Not articles", strconv.Itoa(t.ExtractionFailures)},
			{"Dropped URLs", strconv.Itoa(t.RenderDrops)},
			{"Write failures", strconv.Itoa(t.WriteFailures)},
		},
	})
	md.PlainText("")
}

// writeErrors lists why sites failed or stopped.
func (w *MarkdownWriter) writeErrors(md *markdown.Markdown, report *model.CrawlReport) {
	var lines []string
	for _, s := range report.Sites {
		if s.Error != "" {
			lines = append(lines, "**"+s.Site+"**: "+truncateString(s.Error, 200))
		}
	}
	if len(lines) == 0 {
		return
	}

	md.H2("Errors")
	md.PlainText("")
	md.BulletList(lines...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [scrollcrawl](https://github.com/nao1215/scrollcrawl)*")
}

func statusText(s model.SiteStatus) string {
	switch s {
	case model.SiteStatusExhausted:
		return "✅ Exhausted"
	case model.SiteStatusFailed:
		return "❌ Failed"
	case model.SiteStatusCancelled:
		return "⚠️ Cancelled"
	}
	return string(s)
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
