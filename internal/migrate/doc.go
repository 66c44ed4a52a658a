// Package migrate copies stored articles into a collection keyed by their
// deterministic article id.
//
// Older crawls wrote articles under ids that did not follow ArticleID, and
// some wrote the byline as "author" with the body as a list of paragraphs.
// A migration reads every record of the source collection, normalizes it to
// the current ArticleRecord shape, recomputes the id and writes each id once
// to the target collection. Records already present in the target count as
// duplicates, so a migration can be re-run safely.
package migrate
