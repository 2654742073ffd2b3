// Package pipeline fans the post-analysis pass out over a fixed pool of
// partition workers and multiplexes their progress back into a single
// reporter. Each worker owns one contiguous slice of the post-ID universe
// and its own store connections; the only thing workers share is the
// read-only universe and the coordinator's progress channel.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/scrypster/bbstats/internal/universe"
)

// ProcessFunc processes one partition of the post-ID universe. The
// contract mirrors the isolation the pipeline needs:
//
//   - each invocation opens its own store connections; nothing stateful is
//     shared across workers
//   - posts are processed in ascending pid order within the partition
//   - report is called with small batched deltas, not per post
//
// Per-post extraction failures are recovered inside the implementation and
// never surface here. A returned error means the partition failed as a
// whole, which fails the run.
type ProcessFunc func(ctx context.Context, part Partition, report func(delta int64)) error

// Config holds the driver settings.
type Config struct {
	// Workers is the fixed parallelism; the universe splits into this many
	// equal-count partitions.
	Workers int

	// ProgressLabel prefixes the progress bar.
	ProgressLabel string

	// ProgressWriter receives progress output; defaults to os.Stderr.
	ProgressWriter io.Writer

	// RunID labels this run in logs and results. Generated when empty.
	RunID string
}

// Result summarizes a completed run.
type Result struct {
	// RunID identifies this run in logs and downstream side effects.
	RunID string

	// PostsProcessed is the aggregated progress delta total.
	PostsProcessed int64

	// Partitions is the number of partitions actually worked.
	Partitions int

	// MaxPID is the largest ID of the full universe, which is the
	// checkpoint value to persist after a fully successful run. Zero when
	// the universe was empty.
	MaxPID int64
}

// progressMsg is one message on the multiplexed worker channel: either a
// batched delta or the completion sentinel (done=true) that lets the
// coordinator reap the worker.
type progressMsg struct {
	worker int
	delta  int64
	done   bool
	err    error
}

// Driver coordinates one analysis pass.
type Driver struct {
	cfg     Config
	process ProcessFunc
}

// NewDriver creates a Driver running process over each partition.
func NewDriver(cfg Config, process ProcessFunc) *Driver {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ProgressWriter == nil {
		cfg.ProgressWriter = os.Stderr
	}
	if cfg.ProgressLabel == "" {
		cfg.ProgressLabel = "Analyzing posts"
	}
	return &Driver{cfg: cfg, process: process}
}

// Run processes the universe once. With hasCheckpoint set, partition
// boundaries are still computed from the full universe and only the prefix
// up to and including checkpoint is skipped, so a resumed run walks the
// same ranges as the interrupted one.
//
// A worker that fails (error or panic) fails the run. Completed partitions
// are not rolled back; additive upserts make their replay on the next
// invocation safe. The checkpoint is never written here; the caller
// persists Result.MaxPID only when Run returns nil.
func (d *Driver) Run(ctx context.Context, u *universe.Universe, checkpoint int64, hasCheckpoint bool) (*Result, error) {
	runID := d.cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	result := &Result{RunID: runID}

	if u.IsEmpty() {
		log.Printf("pipeline: run %s: post universe is empty, nothing to analyze", result.RunID)
		return result, nil
	}
	result.MaxPID = u.Max()

	parts, err := Split(u, d.cfg.Workers)
	if err != nil {
		return nil, err
	}
	if hasCheckpoint {
		parts = clipToCheckpoint(u, parts, checkpoint)
	}
	if len(parts) == 0 {
		log.Printf("pipeline: run %s: checkpoint %d already covers the universe", result.RunID, checkpoint)
		return result, nil
	}
	result.Partitions = len(parts)

	var total int64
	for _, p := range parts {
		total += int64(p.Count)
	}
	log.Printf("pipeline: run %s: %d posts across %d partitions", result.RunID, total, len(parts))

	// Buffered so a finishing worker never blocks behind a slow render.
	progress := make(chan progressMsg, len(parts)*2)

	for _, part := range parts {
		go d.runWorker(ctx, part, progress)
	}

	bar := NewProgressBar(d.cfg.ProgressWriter, d.cfg.ProgressLabel, total)
	var failures []error

	// Readiness-multiplexed wait: every worker reports on the same
	// channel, the coordinator drains until it has seen one completion
	// sentinel per worker. A worker whose sentinel never arrives would
	// hang the run, which is the desired surfacing of a lost worker.
	for remaining := len(parts); remaining > 0; {
		msg := <-progress
		if msg.done {
			remaining--
			if msg.err != nil {
				failures = append(failures, fmt.Errorf("pipeline: partition %d failed: %w", msg.worker, msg.err))
			}
			continue
		}
		bar.Update(msg.delta)
	}
	bar.Finish()

	if len(failures) > 0 {
		return nil, errors.Join(failures...)
	}

	result.PostsProcessed = bar.Pos()
	log.Printf("pipeline: run %s: processed %d posts", result.RunID, result.PostsProcessed)
	return result, nil
}

// runWorker executes one partition and always delivers the completion
// sentinel, converting a panic into a partition failure so one crashed
// worker cannot corrupt the coordinator or wedge the run.
func (d *Driver) runWorker(ctx context.Context, part Partition, progress chan<- progressMsg) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker crashed: %v", r)
		}
		progress <- progressMsg{worker: part.Index, done: true, err: err}
	}()

	err = d.process(ctx, part, func(delta int64) {
		progress <- progressMsg{worker: part.Index, delta: delta}
	})
}
