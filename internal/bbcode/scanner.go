// Package bbcode implements a single-pass scanner for the bracket-delimited
// pseudo-markup used in forum post bodies ([tag]...[/tag], [tag=param]).
//
// The scanner is deliberately not a parser: only a small fixed set of tags
// carries meaning (quote, url, img, video) and malformed or unknown markup
// must never abort processing, so a linear character walk with O(1) state
// beats building a tag tree. Recoverable mismatches simply produce no event.
package bbcode

import (
	"strings"

	"github.com/scrypster/bbstats/pkg/types"
)

// Handler receives the scanner's semantic events.
type Handler interface {
	// QuoteTag is called for each quote tag with an inline parameter that
	// opens quote nesting depth 1, i.e. the outermost quote of a reply.
	// The tag text includes the "quote=" prefix. Nested quotes (depth > 1)
	// are suppressed: they cite through the quoting post, not the author.
	QuoteTag(tag string)

	// Link is called for each content tag at quote depth 0 with the raw
	// (unnormalized) link text: either the inline parameter of [url=...]
	// or the text bracketed between a bare opening tag and its closer.
	Link(raw string, linkType types.LinkType)
}

// Scan walks one post's content and dispatches events to h. It never fails;
// unknown tags and stray closers fall through without an event.
//
// A double quote inside a tag toggles quoted-string state so that bracket
// characters inside user-supplied parameter values, such as
// [quote=1,100,"[weird name]"], do not open or close tags.
func Scan(content string, h Handler) {
	var (
		inTag           bool
		inQuotedString  bool
		captureContents bool
		quoteDepth      int
		currentTag      strings.Builder
		tagContents     strings.Builder
	)

	for _, char := range content {
		switch {
		case char == '"' && inTag:
			inQuotedString = !inQuotedString
			currentTag.WriteRune(char)

		case char == '[' && !inQuotedString:
			// Restarts accumulation even when already inside a tag, so a
			// dangling "[" never swallows the rest of the post.
			inTag = true
			currentTag.Reset()

		case char == ']' && !inQuotedString:
			if !inTag {
				continue
			}
			inTag = false
			tag := currentTag.String()

			if strings.HasPrefix(tag, "quote") {
				quoteDepth++
			} else if tag == "/quote" {
				quoteDepth--
			}

			if quoteDepth == 1 && strings.HasPrefix(tag, "quote=") {
				h.QuoteTag(tag)
			}

			if quoteDepth == 0 {
				captureContents = dispatchContentTag(tag, captureContents, &tagContents, h)
			}

		case inTag:
			currentTag.WriteRune(char)

		case captureContents:
			tagContents.WriteRune(char)
		}
	}
}

// dispatchContentTag classifies a tag seen outside any quote nesting and
// returns the new capture state.
//
// The two forms are asymmetric on purpose: an inline parameter emits its
// link immediately, while a bare opening tag arms capture until the matching
// closer. A closer without an armed capture is silently ignored.
func dispatchContentTag(tag string, capturing bool, contents *strings.Builder, h Handler) bool {
	switch {
	case strings.HasPrefix(tag, "url="):
		h.Link(tag[len("url="):], types.LinkTypeLink)

	case tag == "url" || tag == "img" ||
		tag == "video" || tag == "video play" || tag == "video autoplay":
		contents.Reset()
		return true

	case tag == "/url" && capturing:
		h.Link(contents.String(), types.LinkTypeLink)
		contents.Reset()
		return false

	case tag == "/img" && capturing:
		h.Link(contents.String(), types.LinkTypeImage)
		contents.Reset()
		return false

	case tag == "/video" && capturing:
		h.Link(contents.String(), types.LinkTypeVideo)
		contents.Reset()
		return false
	}

	return capturing
}
