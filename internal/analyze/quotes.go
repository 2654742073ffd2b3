package analyze

import (
	"log"
	"strconv"
	"strings"

	"github.com/scrypster/bbstats/pkg/types"
)

// extractQuote parses a depth-1 quote tag of the shape
//
//	quote=<tid>,<pid>,<user label>
//
// and emits one QuoteEdge occurrence. The label may contain commas, brackets
// and quotes, so the parameter string splits into at most 3 parts with the
// remainder kept as the label; only the first two fields are structural.
//
// Every failure mode is per-item recoverable: malformed parameters, a
// non-numeric cited PID, or a cited PID that is not on record each drop this
// one occurrence and nothing else.
func (a *Analyzer) extractQuote(pid int64, tag string) {
	_, params, _ := strings.Cut(tag, "=")

	parts := strings.SplitN(params, ",", 3)
	if len(parts) < 2 {
		log.Printf("PID %d: malformed quote= tag %q", pid, tag)
		return
	}

	quotedPID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		log.Printf("PID %d: malformed quote= tag %q: %v", pid, tag, err)
		return
	}

	// Values outside the universe's ID domain (including anything beyond
	// 32 bits) come back false here, they are simply not on record.
	if !a.universe.Contains(quotedPID) {
		log.Printf("PID %d: quoted PID not on record: %d", pid, quotedPID)
		return
	}

	a.emit.QuoteEdge(types.QuoteEdge{PID: pid, QuotedPID: quotedPID, Count: 1})
}
