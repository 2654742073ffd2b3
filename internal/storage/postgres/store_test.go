package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scrypster/bbstats/pkg/types"
)

func TestAggregateQuotesFoldsDuplicateKeys(t *testing.T) {
	// A post quoting the same post several times arrives as separate
	// emissions; a multi-row upsert cannot touch one row twice.
	edges := []types.QuoteEdge{
		{PID: 10, QuotedPID: 5, Count: 1},
		{PID: 10, QuotedPID: 6, Count: 1},
		{PID: 10, QuotedPID: 5, Count: 1},
		{PID: 11, QuotedPID: 5, Count: 1},
		{PID: 10, QuotedPID: 5, Count: 1},
	}

	got := aggregateQuotes(edges)

	want := []types.QuoteEdge{
		{PID: 10, QuotedPID: 5, Count: 3},
		{PID: 10, QuotedPID: 6, Count: 1},
		{PID: 11, QuotedPID: 5, Count: 1},
	}
	assert.Equal(t, want, got)
}

func TestAggregateLinksFoldsDuplicateKeys(t *testing.T) {
	links := []types.LinkRecord{
		{PID: 1, URL: "http://a.example/x", Type: types.LinkTypeLink, Domain: "a.example", Count: 1},
		{PID: 1, URL: "http://a.example/x", Type: types.LinkTypeImage, Domain: "a.example", Count: 1},
		{PID: 1, URL: "http://a.example/x", Type: types.LinkTypeLink, Domain: "a.example", Count: 1},
	}

	got := aggregateLinks(links)

	want := []types.LinkRecord{
		{PID: 1, URL: "http://a.example/x", Type: types.LinkTypeLink, Domain: "a.example", Count: 2},
		{PID: 1, URL: "http://a.example/x", Type: types.LinkTypeImage, Domain: "a.example", Count: 1},
	}
	assert.Equal(t, want, got)
}

func TestAggregateEmptyBatches(t *testing.T) {
	assert.Empty(t, aggregateQuotes(nil))
	assert.Empty(t, aggregateLinks(nil))
}
