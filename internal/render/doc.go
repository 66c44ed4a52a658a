// Package render turns URLs into document snapshots for the crawl workers.
//
// A Provider opens Sessions. A Session is one rendering context, comparable
// to a browser tab: it loads a URL, scrolls the current document further and
// returns the serialized DOM after each step. Workers open two sessions, one
// for the listing page and one for articles, and close both on every exit path.
//
// Two providers exist:
//   - RodProvider drives headless Chrome through go-rod and waits until the
//     document is complete and its scroll height has stopped growing.
//   - HTTPProvider fetches static HTML. Scrolling is emulated with a pagination
//     query parameter when the site has one.
//
// Renderer wraps a Session with a per-attempt deadline and a RetryPolicy.
// Every failure it returns is a *RenderError of kind timeout or navigation,
// unless the caller's own context was cancelled.
package render
