// Package report writes crawl reports.
//
// Three formats are available, selected by name through NewWriter:
//   - text: aligned plain text for terminals and log files
//   - json: the CrawlReport as JSON with the tool version attached
//   - markdown: tables and a status chart for sharing a run's outcome
package report
