package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/scrypster/bbstats/pkg/types"
)

// memFlusher is an in-memory FactFlusher with additive upsert semantics,
// mirroring what the PostgreSQL flusher does with ON CONFLICT.
type memFlusher struct {
	quoteCounts map[[2]int64]int64
	linkCounts  map[string]int64
	flushCalls  int
	failNext    error
}

func newMemFlusher() *memFlusher {
	return &memFlusher{
		quoteCounts: make(map[[2]int64]int64),
		linkCounts:  make(map[string]int64),
	}
}

func (m *memFlusher) FlushQuotes(_ context.Context, edges []types.QuoteEdge) error {
	if m.failNext != nil {
		return m.failNext
	}
	m.flushCalls++
	for _, e := range edges {
		m.quoteCounts[[2]int64{e.PID, e.QuotedPID}] += e.Count
	}
	return nil
}

func (m *memFlusher) FlushLinks(_ context.Context, links []types.LinkRecord) error {
	if m.failNext != nil {
		return m.failNext
	}
	m.flushCalls++
	for _, l := range links {
		m.linkCounts[l.URL+"|"+string(l.Type)] += l.Count
	}
	return nil
}

func TestFlushAtThreshold(t *testing.T) {
	fl := newMemFlusher()
	s := New(fl, 3)

	for i := 0; i < 3; i++ {
		s.QuoteEdge(types.QuoteEdge{PID: 10, QuotedPID: int64(i), Count: 1})
	}

	// Threshold reached: flush happened without an explicit Flush call.
	if fl.flushCalls != 1 {
		t.Errorf("flushCalls: got %d, want 1", fl.flushCalls)
	}
	if got := s.QuotesFlushed(); got != 3 {
		t.Errorf("QuotesFlushed: got %d, want 3", got)
	}
}

func TestFinalFlushWritesRemainder(t *testing.T) {
	fl := newMemFlusher()
	s := New(fl, 100)

	s.QuoteEdge(types.QuoteEdge{PID: 1, QuotedPID: 2, Count: 1})
	s.LinkRecord(types.LinkRecord{PID: 1, URL: "http://a.example", Type: types.LinkTypeLink, Count: 1})

	if fl.flushCalls != 0 {
		t.Fatalf("flushCalls before Flush: got %d, want 0", fl.flushCalls)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}
	if fl.flushCalls != 2 {
		t.Errorf("flushCalls: got %d, want 2", fl.flushCalls)
	}
	if got := fl.quoteCounts[[2]int64{1, 2}]; got != 1 {
		t.Errorf("quote count: got %d, want 1", got)
	}
}

func TestAdditiveAccumulationAcrossRuns(t *testing.T) {
	// Analyzing the same post twice must sum counts, never reset them.
	fl := newMemFlusher()

	for run := 0; run < 2; run++ {
		s := New(fl, 10)
		s.QuoteEdge(types.QuoteEdge{PID: 101, QuotedPID: 100, Count: 1})
		s.QuoteEdge(types.QuoteEdge{PID: 101, QuotedPID: 100, Count: 1})
		s.LinkRecord(types.LinkRecord{PID: 101, URL: "http://x.example", Type: types.LinkTypeLink, Count: 1})
		if err := s.Flush(context.Background()); err != nil {
			t.Fatalf("run %d: Flush() failed: %v", run, err)
		}
	}

	if got := fl.quoteCounts[[2]int64{101, 100}]; got != 4 {
		t.Errorf("quote count after two runs: got %d, want 4", got)
	}
	if got := fl.linkCounts["http://x.example|link"]; got != 2 {
		t.Errorf("link count after two runs: got %d, want 2", got)
	}
}

func TestFlushErrorIsSticky(t *testing.T) {
	fl := newMemFlusher()
	wantErr := errors.New("store unavailable")
	fl.failNext = wantErr

	s := New(fl, 1)
	s.QuoteEdge(types.QuoteEdge{PID: 1, QuotedPID: 2, Count: 1})

	if !errors.Is(s.Err(), wantErr) {
		t.Fatalf("Err(): got %v, want %v", s.Err(), wantErr)
	}

	// Later input is dropped, the error stays.
	fl.failNext = nil
	s.QuoteEdge(types.QuoteEdge{PID: 3, QuotedPID: 4, Count: 1})
	if err := s.Flush(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("Flush(): got %v, want sticky %v", err, wantErr)
	}
	if got := s.QuotesFlushed(); got != 0 {
		t.Errorf("QuotesFlushed after failure: got %d, want 0", got)
	}
}
