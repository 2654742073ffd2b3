package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ProgressBar renders a single-line progress indicator with elapsed time
// and throughput, in the spirit of a classic terminal progress bar:
//
//	Analyzing posts  [#########---------------------------]  1234567/4000000
//
// It is driven solely by the coordinator goroutine; it is not safe for
// concurrent use and does not need to be.
type ProgressBar struct {
	w       io.Writer
	label   string
	total   int64
	pos     int64
	width   int
	started time.Time
}

// NewProgressBar creates a bar writing to w. A nil or zero total renders
// positions only.
func NewProgressBar(w io.Writer, label string, total int64) *ProgressBar {
	return &ProgressBar{
		w:       w,
		label:   label,
		total:   total,
		width:   36,
		started: time.Now(),
	}
}

// Update advances the bar by delta and re-renders.
func (b *ProgressBar) Update(delta int64) {
	b.pos += delta
	b.render()
}

// Pos returns the current position.
func (b *ProgressBar) Pos() int64 { return b.pos }

// Elapsed returns the time since the bar was created.
func (b *ProgressBar) Elapsed() time.Duration { return time.Since(b.started) }

// Finish renders the final state and appends elapsed time and throughput.
func (b *ProgressBar) Finish() {
	b.render()
	elapsed := b.Elapsed().Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(b.pos) / elapsed
	}
	fmt.Fprintf(b.w, " ... elapsed %.1f s (%.0f posts/s)\n", elapsed, rate)
}

func (b *ProgressBar) render() {
	if b.total > 0 {
		filled := int(int64(b.width) * b.pos / b.total)
		if filled > b.width {
			filled = b.width
		}
		bar := strings.Repeat("#", filled) + strings.Repeat("-", b.width-filled)
		fmt.Fprintf(b.w, "\r%s  [%s]  %d/%d", b.label, bar, b.pos, b.total)
		return
	}
	fmt.Fprintf(b.w, "\r%s  %d", b.label, b.pos)
}
