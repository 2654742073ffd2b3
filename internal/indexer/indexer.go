// Package indexer pushes analyzed post text to an external search index.
// Indexing is strictly best-effort: the pipeline enqueues documents and
// moves on, a single consumer goroutine drains the queue, and every failure
// is logged and counted but never surfaces to the analysis pass.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Document is one post as submitted to the search index.
type Document struct {
	ID        string `json:"id"`
	RunID     string `json:"run_id"`
	PID       int64  `json:"pid"`
	TID       int64  `json:"tid"`
	PosterUID int64  `json:"poster_uid"`
	Timestamp int64  `json:"timestamp"`
	Title     string `json:"title"`
	Content   string `json:"content"`
}

// Config holds the indexer settings. An empty URL disables indexing.
type Config struct {
	// URL is the index endpoint documents are POSTed to.
	URL string

	// QueueSize bounds the in-flight queue. Enqueue blocks when the queue
	// is full so a slow index throttles producers instead of growing an
	// unbounded backlog.
	QueueSize int

	// RateLimit caps pushes per second. Zero or negative means unlimited.
	RateLimit float64

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// queueMsg carries either a document or the shutdown sentinel.
type queueMsg struct {
	doc    Document
	poison bool
}

// Indexer is the queue front half plus its consumer goroutine. Enqueue may
// be called from multiple workers; Close must be called exactly once, after
// all producers have stopped.
type Indexer struct {
	url     string
	runID   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter

	queue chan queueMsg
	done  chan struct{}

	// Written only by the consumer goroutine, read after done is closed.
	pushed int64
	failed int64
}

// New starts an Indexer for one run. Returns nil when no endpoint is
// configured; a nil *Indexer is a valid no-op receiver for Enqueue and
// Close, so callers never branch on whether indexing is on.
func New(cfg Config, runID string) *Indexer {
	if cfg.URL == "" {
		return nil
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 256
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	ix := &Indexer{
		url:    cfg.URL,
		runID:  runID,
		client: client,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "search-index",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("indexer: circuit %s -> %s", from, to)
			},
		}),
		limiter: rate.NewLimiter(limit, 1),
		queue:   make(chan queueMsg, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	go ix.consume()
	return ix
}

// Enqueue submits one document, blocking while the queue is full.
func (ix *Indexer) Enqueue(doc Document) {
	if ix == nil {
		return
	}
	doc.ID = uuid.NewString()
	doc.RunID = ix.runID
	ix.queue <- queueMsg{doc: doc}
}

// Close delivers the shutdown sentinel, waits for the consumer to drain the
// queue, and logs the final tally.
func (ix *Indexer) Close() {
	if ix == nil {
		return
	}
	ix.queue <- queueMsg{poison: true}
	<-ix.done
	log.Printf("indexer: run %s: %d documents indexed, %d failed", ix.runID, ix.pushed, ix.failed)
}

// Pushed returns how many documents were indexed. Valid after Close.
func (ix *Indexer) Pushed() int64 {
	if ix == nil {
		return 0
	}
	return ix.pushed
}

// Failed returns how many documents could not be indexed. Valid after Close.
func (ix *Indexer) Failed() int64 {
	if ix == nil {
		return 0
	}
	return ix.failed
}

func (ix *Indexer) consume() {
	defer close(ix.done)
	for msg := range ix.queue {
		if msg.poison {
			return
		}
		if err := ix.push(msg.doc); err != nil {
			ix.failed++
			log.Printf("indexer: push pid %d failed: %v", msg.doc.PID, err)
			continue
		}
		ix.pushed++
	}
}

func (ix *Indexer) push(doc Document) error {
	if err := ix.limiter.Wait(context.Background()); err != nil {
		return fmt.Errorf("indexer: rate limiter: %w", err)
	}

	_, err := ix.breaker.Execute(func() (interface{}, error) {
		body, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("indexer: encode document: %w", err)
		}
		resp, err := ix.client.Post(ix.url, "application/json", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("indexer: index returned %s", resp.Status)
		}
		return nil, nil
	})
	return err
}
