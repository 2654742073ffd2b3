// Package sink buffers extracted facts and flushes them to the store in
// batches. One Sink belongs to exactly one worker; it is not safe for
// concurrent use, matching the one-pipeline-per-partition model.
package sink

import (
	"context"

	"github.com/scrypster/bbstats/internal/storage"
	"github.com/scrypster/bbstats/pkg/types"
)

// Sink accumulates quote edges and link records and flushes each buffer
// once it crosses the batch size, plus a final flush at end-of-stream.
//
// Flush failures are sticky: after the first store error the sink drops
// further input and Flush returns that error. A failed flush means the
// store is unhealthy, which is partition-fatal, not per-item recoverable.
type Sink struct {
	flusher   storage.FactFlusher
	batchSize int

	quotes []types.QuoteEdge
	links  []types.LinkRecord

	quotesFlushed int64
	linksFlushed  int64

	err error
}

// New creates a Sink flushing through flusher whenever a buffer reaches
// batchSize records.
func New(flusher storage.FactFlusher, batchSize int) *Sink {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Sink{
		flusher:   flusher,
		batchSize: batchSize,
		quotes:    make([]types.QuoteEdge, 0, batchSize),
		links:     make([]types.LinkRecord, 0, batchSize),
	}
}

// QuoteEdge buffers one quote edge occurrence.
func (s *Sink) QuoteEdge(edge types.QuoteEdge) {
	if s.err != nil {
		return
	}
	s.quotes = append(s.quotes, edge)
	if len(s.quotes) >= s.batchSize {
		s.flushQuotes(context.Background())
	}
}

// LinkRecord buffers one link record.
func (s *Sink) LinkRecord(rec types.LinkRecord) {
	if s.err != nil {
		return
	}
	s.links = append(s.links, rec)
	if len(s.links) >= s.batchSize {
		s.flushLinks(context.Background())
	}
}

// Flush writes out any buffered records and returns the first error the
// sink encountered, if any. Call once at end-of-stream.
func (s *Sink) Flush(ctx context.Context) error {
	if s.err == nil && len(s.quotes) > 0 {
		s.flushQuotes(ctx)
	}
	if s.err == nil && len(s.links) > 0 {
		s.flushLinks(ctx)
	}
	return s.err
}

// Err returns the sticky error, if any, without flushing.
func (s *Sink) Err() error { return s.err }

// QuotesFlushed returns the number of quote edges written so far.
func (s *Sink) QuotesFlushed() int64 { return s.quotesFlushed }

// LinksFlushed returns the number of link records written so far.
func (s *Sink) LinksFlushed() int64 { return s.linksFlushed }

func (s *Sink) flushQuotes(ctx context.Context) {
	if err := s.flusher.FlushQuotes(ctx, s.quotes); err != nil {
		s.err = err
		return
	}
	s.quotesFlushed += int64(len(s.quotes))
	s.quotes = s.quotes[:0]
}

func (s *Sink) flushLinks(ctx context.Context) {
	if err := s.flusher.FlushLinks(ctx, s.links); err != nil {
		s.err = err
		return
	}
	s.linksFlushed += int64(len(s.links))
	s.links = s.links[:0]
}
