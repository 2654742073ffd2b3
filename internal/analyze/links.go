package analyze

import (
	"log"
	"net/url"
	"strings"

	"github.com/scrypster/bbstats/pkg/types"
)

// extractLink normalizes one raw link text and emits a LinkRecord.
//
// Normalization steps, in order, each conditional on the one before:
//  1. reject data: URLs outright (unbounded inline payloads)
//  2. truncate to the configured cap
//  3. strip a matching pair of surrounding quote characters
//  4. site-absolute paths ("/...") get the forum origin prefixed
//  5. board-relative paths ("./...") get the board base prefixed
//  6. anything still without "://" is treated as a bare host, "http://" is
//     prefixed
//  7. parse the result to pull out the domain; a parse failure drops the
//     record
//
// Empty input is not an error: an [img][/img] with no content records the
// literal presence of an empty media tag, with empty URL and domain.
func (a *Analyzer) extractLink(pid int64, raw string, linkType types.LinkType) {
	u := raw
	var domain string

	if u != "" {
		if strings.HasPrefix(u, "data:") {
			log.Printf("PID %d: dropping data: URL (%d bytes)", pid, len(u))
			return
		}

		u = truncate(u, a.cfg.URLMaxLength)

		if len(u) >= 2 && u[0] == u[len(u)-1] && (u[0] == '\'' || u[0] == '"') {
			u = u[1 : len(u)-1]
		}

		if strings.HasPrefix(u, "/") {
			u = a.cfg.ForumBaseURL + u
		} else if strings.HasPrefix(u, "./") {
			u = a.cfg.BoardBasePath + u[2:]
		}

		if !strings.Contains(u, "://") {
			u = "http://" + u
		}

		parsed, err := url.Parse(u)
		if err != nil {
			log.Printf("PID %d: could not parse URL %q: %v", pid, u, err)
			return
		}
		domain = parsed.Host
	}

	a.emit.LinkRecord(types.LinkRecord{
		PID:    pid,
		URL:    u,
		Type:   linkType,
		Domain: domain,
		Count:  1,
	})
}

// truncate cuts s to at most max runes without splitting a multi-byte
// character.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
