// Package analyze turns raw post markup into structured facts: quote edges
// between posts and normalized outbound links. All per-item failures are
// recoverable — they are logged with the offending post ID and the post
// continues processing. Nothing in this package returns an error to the
// caller; only the facts that survive validation are emitted.
package analyze

import (
	"github.com/scrypster/bbstats/internal/bbcode"
	"github.com/scrypster/bbstats/pkg/types"
)

// Emitter receives extracted facts. Implementations batch and flush them;
// the analyzer never pre-aggregates, repeated pairs within one post emit
// repeatedly and accumulate through the sink's additive upsert.
type Emitter interface {
	QuoteEdge(edge types.QuoteEdge)
	LinkRecord(rec types.LinkRecord)
}

// Membership answers whether a post ID exists in the known post universe.
// The implementation must be safe for concurrent readers.
type Membership interface {
	Contains(pid int64) bool
}

// Config carries the normalization parameters for link extraction.
type Config struct {
	// ForumBaseURL is prefixed to URLs starting with "/" (site-absolute
	// paths), e.g. "http://forum.mods.de".
	ForumBaseURL string

	// BoardBasePath is prefixed to URLs starting with "./" (board-relative
	// paths), e.g. "http://forum.mods.de/bb/".
	BoardBasePath string

	// URLMaxLength caps stored URLs to bound index size.
	URLMaxLength int
}

// Analyzer extracts quote edges and link records from posts.
type Analyzer struct {
	universe Membership
	emit     Emitter
	cfg      Config
}

// New creates an Analyzer. The universe must stay immutable for the
// duration of the run.
func New(universe Membership, emit Emitter, cfg Config) *Analyzer {
	return &Analyzer{universe: universe, emit: emit, cfg: cfg}
}

// AnalyzePost scans one post's content and emits every fact it yields.
func (a *Analyzer) AnalyzePost(post *types.Post) {
	if post.Content == "" {
		return
	}
	bbcode.Scan(post.Content, &postHandler{a: a, pid: post.PID})
}

// postHandler binds scanner events to one citing post.
type postHandler struct {
	a   *Analyzer
	pid int64
}

func (h *postHandler) QuoteTag(tag string) {
	h.a.extractQuote(h.pid, tag)
}

func (h *postHandler) Link(raw string, linkType types.LinkType) {
	h.a.extractLink(h.pid, raw, linkType)
}
