// Package types defines the core data structures for the bbstats analysis
// pipeline: raw forum records (posts), extracted facts (quote edges, link
// records) and the baked aggregate rows derived from them.
package types

// LinkType classifies an extracted link by the markup tag it came from.
type LinkType string

// Link type constants
const (
	// LinkTypeLink is a plain hyperlink ([url] / [url=...]).
	LinkTypeLink LinkType = "link"

	// LinkTypeImage is an embedded image ([img]).
	LinkTypeImage LinkType = "image"

	// LinkTypeVideo is an embedded video ([video], [video play], [video autoplay]).
	LinkTypeVideo LinkType = "video"
)

// ValidLinkTypes lists all link types for validation.
var ValidLinkTypes = []LinkType{LinkTypeLink, LinkTypeImage, LinkTypeVideo}

// IsValid reports whether t is one of the known link types.
func (t LinkType) IsValid() bool {
	for _, v := range ValidLinkTypes {
		if t == v {
			return true
		}
	}
	return false
}

// QuoteEdge is a directed citation from one post to another, extracted from
// a depth-1 [quote=tid,pid,"user"] tag. Keyed by (PID, QuotedPID); Count
// accumulates across occurrences and across re-runs via additive upserts.
type QuoteEdge struct {
	// PID is the citing post.
	PID int64

	// QuotedPID is the cited post. Always a member of the known post-ID
	// universe; edges to unknown posts are dropped before they get here.
	QuotedPID int64

	// Count is the number of occurrences observed (1 per extraction).
	Count int64
}

// LinkRecord is an outbound link, image or video extracted from a post.
// Keyed by (PID, URL, Type); Count accumulates via additive upserts.
//
// URL is always normalized to an absolute form before storage and capped in
// length to bound index size. An empty URL is valid: it records the literal
// presence of an empty media tag such as [img][/img].
type LinkRecord struct {
	PID    int64
	URL    string
	Type   LinkType
	Domain string
	Count  int64
}
