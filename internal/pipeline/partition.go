package pipeline

import (
	"fmt"

	"github.com/scrypster/bbstats/internal/universe"
)

// Partition is one contiguous, disjoint sub-range of the sorted post-ID
// universe, assigned to exactly one worker. Bounds are inclusive.
type Partition struct {
	Index int
	Lo    int64
	Hi    int64

	// Count is the number of known post IDs inside [Lo, Hi].
	Count uint64
}

// Split cuts the universe into at most n equal-count contiguous partitions
// using percentile cut-points (rank/select), not equal-width ID ranges: ID
// density is uneven, and equal-count ranges bound per-worker skew.
//
// The union of the returned partitions covers the universe exactly once, no
// gaps and no overlaps. An empty universe yields no partitions; n is capped
// at the universe's cardinality so no partition is ever empty.
func Split(u *universe.Universe, n int) ([]Partition, error) {
	card := u.Cardinality()
	if card == 0 {
		return nil, nil
	}
	if n < 1 {
		n = 1
	}
	if uint64(n) > card {
		n = int(card)
	}

	parts := make([]Partition, 0, n)
	for i := 0; i < n; i++ {
		startRank := uint64(i) * card / uint64(n)
		endRank := uint64(i+1)*card/uint64(n) - 1

		lo, err := u.Select(startRank)
		if err != nil {
			return nil, fmt.Errorf("pipeline: partition %d lower bound: %w", i, err)
		}
		hi, err := u.Select(endRank)
		if err != nil {
			return nil, fmt.Errorf("pipeline: partition %d upper bound: %w", i, err)
		}

		parts = append(parts, Partition{
			Index: i,
			Lo:    lo,
			Hi:    hi,
			Count: endRank - startRank + 1,
		})
	}
	return parts, nil
}

// clipToCheckpoint drops the already-completed prefix from a partition
// list computed over the full universe. Partitions entirely at or below the
// checkpoint disappear; a partition straddling it keeps its upper part.
// Partition boundaries themselves are preserved so a resumed run walks the
// same ranges as the interrupted one.
func clipToCheckpoint(u *universe.Universe, parts []Partition, checkpoint int64) []Partition {
	clipped := make([]Partition, 0, len(parts))
	for _, p := range parts {
		if p.Hi <= checkpoint {
			continue
		}
		if p.Lo <= checkpoint {
			p.Lo = checkpoint + 1
			p.Count = u.CountInRange(p.Lo, p.Hi)
		}
		clipped = append(clipped, p)
	}
	return clipped
}
