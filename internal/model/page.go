package model

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxSnapshotSize is the maximum size of an HTML snapshot kept on a PageRecord.
// Article pages with embedded scripts and inline JSON can be several megabytes;
// archiving more than this adds nothing for downstream search.
const MaxSnapshotSize = 2 * 1024 * 1024 // 2 MB

// RenderedDocument is the snapshot a renderer produces for one URL.
// HTML is the serialized DOM at the moment the renderer considered the page ready,
// which for infinitely scrolling listings includes everything loaded so far.
type RenderedDocument struct {
	// URL is the address that was requested. It is never the post-redirect URL
	// so that records stay keyed by the link that was discovered.
	URL string `json:"url"`

	// HTML is the document snapshot.
	HTML string `json:"html"`

	// RenderedAt is when the snapshot was taken.
	RenderedAt time.Time `json:"rendered_at"`
}

// NewRenderedDocument creates a RenderedDocument stamped with the current time.
func NewRenderedDocument(rawURL, html string) *RenderedDocument {
	return &RenderedDocument{
		URL:        rawURL,
		HTML:       html,
		RenderedAt: time.Now().UTC(),
	}
}

// PageRecord is the archived form of an article page.
// Its identity is the URL: upserting the same URL twice overwrites the record.
type PageRecord struct {
	// URL is the normalized absolute URL and the record id.
	URL string `json:"url"`

	// Site is the configured site name the page was crawled for.
	Site string `json:"site"`

	// Domain is the host the page was fetched from.
	Domain string `json:"domain"`

	// RunID identifies the crawl run that fetched the page.
	RunID string `json:"run_id,omitempty"`

	// FetchedAt is when the page was rendered.
	FetchedAt time.Time `json:"fetched_at"`

	// HTML is the rendered snapshot, truncated to MaxSnapshotSize.
	HTML string `json:"html,omitempty"`

	// Hash is the SHA-256 of the full snapshot before truncation.
	Hash string `json:"hash,omitempty"`
}

// NewPageRecord builds the PageRecord for a rendered document.
func NewPageRecord(site, runID string, doc *RenderedDocument) *PageRecord {
	p := &PageRecord{
		URL:       doc.URL,
		Site:      site,
		RunID:     runID,
		FetchedAt: doc.RenderedAt,
		HTML:      doc.HTML,
	}
	if u, err := url.Parse(doc.URL); err == nil {
		p.Domain = strings.ToLower(u.Hostname())
	}
	p.ComputeHash()
	p.TruncateSnapshot()
	return p
}

// ID returns the record id in the pages collection.
func (p *PageRecord) ID() string {
	return p.URL
}

// ComputeHash calculates and sets the SHA-256 hash of the snapshot.
// An empty snapshot produces an empty hash.
func (p *PageRecord) ComputeHash() {
	if p.HTML == "" {
		p.Hash = ""
		return
	}

	hash := sha256.Sum256([]byte(p.HTML))
	p.Hash = hex.EncodeToString(hash[:])
}

// TruncateSnapshot ensures the snapshot doesn't exceed MaxSnapshotSize.
// The cut never splits a UTF-8 sequence.
func (p *PageRecord) TruncateSnapshot() {
	if len(p.HTML) <= MaxSnapshotSize {
		return
	}
	n := MaxSnapshotSize
	for n > 0 && !utf8.RuneStart(p.HTML[n]) {
		n--
	}
	p.HTML = p.HTML[:n]
}
