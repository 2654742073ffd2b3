// Package storage defines the interfaces between the analysis pipeline and
// the relational store. The interfaces are small and focused so workers can
// own their connections outright and tests can substitute fakes without a
// database.
package storage

import (
	"context"
	"errors"

	"github.com/scrypster/bbstats/pkg/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: record not found")

// PostSource streams posts for analysis.
type PostSource interface {
	// ScanPosts invokes fn for every post with lo <= pid <= hi, in
	// ascending pid order. Ascending order is load-bearing: checkpoint
	// resume assumes no pid below the last reported one was skipped.
	// Implementations chunk the underlying query; fn returning an error
	// stops the scan and propagates.
	ScanPosts(ctx context.Context, lo, hi int64, fn func(*types.Post) error) error
}

// FactFlusher persists batches of extracted facts with additive upsert
// semantics: a key conflict adds the new count to the stored count instead
// of overwriting it, so re-processing a post accumulates rather than
// duplicates.
type FactFlusher interface {
	FlushQuotes(ctx context.Context, edges []types.QuoteEdge) error
	FlushLinks(ctx context.Context, links []types.LinkRecord) error
}

// UniverseLoader yields the complete set of known post IDs.
type UniverseLoader interface {
	// PostIDs returns every known post ID. The result feeds the immutable
	// run universe; order is not significant.
	PostIDs(ctx context.Context) ([]int64, error)
}
