// Package main provides the entry point for the scrollcrawl CLI.
//
// scrollcrawl crawls news sites whose article lists grow by infinite scroll.
// One worker per configured site scrolls the listing, queues article links and
// stores every extracted article in the configured sink.
//
// Usage:
//
//	scrollcrawl init
//	scrollcrawl crawl --sites scrollcrawl.yaml
//	scrollcrawl migrate --from articles --to unique-articles
//
// See --help for all available options.
package main

// main is the entry point for scrollcrawl.
func main() {
	Execute()
}
