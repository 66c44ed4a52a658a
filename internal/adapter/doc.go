// Package adapter holds the per-site rulesets that tell a crawl worker which
// links belong to a site's article namespace, how to canonicalize them, and
// how to read an article out of a rendered page.
//
// A worker resolves its Adapter once, at construction, through New and the
// extraction rule id of its Site. All site-specific behaviour lives behind the
// Adapter interface; the worker never branches on the site name.
//
// Rules shipped with scrollcrawl:
//   - ign, gameinformer, pcgamer: CSS selector rules built on goquery
//   - readability: a generic rule built on go-readability and meta tags
//
// Additional rules are added with Register.
package adapter
