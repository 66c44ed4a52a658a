// Package model defines the records that flow between the crawl components.
//
// This package contains the following main types:
//   - RenderedDocument: a URL and the HTML snapshot a renderer produced for it
//   - PageRecord: the archived article page, keyed by URL
//   - ArticleRecord: the structured article, keyed by ArticleID(site, headline, date)
//   - CrawlReport: per-site terminal status and counters for one crawl run
//
// The models live in their own package because the adapter, sink, crawler and
// report packages all exchange them; keeping them here prevents import cycles.
// Every record is serializable to JSON, which is the storage format of all sinks.
package model
