// Package universe holds the compact set of all known post IDs for one
// analysis run. The set is backed by a roaring bitmap: membership tests and
// rank/select percentile access stay cheap at tens of millions of IDs, and
// the structure is shared read-only across all partition workers.
package universe

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// Universe is an immutable set of post IDs. It must not be mutated after
// construction; all read methods are safe for concurrent use.
type Universe struct {
	bm *roaring.Bitmap
}

// FromIDs builds a Universe from a list of post IDs. Post IDs are assigned
// by the forum software as positive 32-bit integers; anything outside that
// domain is a corrupt input and rejected.
func FromIDs(pids []int64) (*Universe, error) {
	bm := roaring.New()
	for _, pid := range pids {
		if pid < 0 || pid > math.MaxUint32 {
			return nil, fmt.Errorf("universe: post ID %d outside the 32-bit ID domain", pid)
		}
		bm.Add(uint32(pid))
	}
	return &Universe{bm: bm}, nil
}

// fromBitmap wraps an existing bitmap; the caller hands over ownership.
func fromBitmap(bm *roaring.Bitmap) *Universe {
	return &Universe{bm: bm}
}

// Contains reports whether pid is a known post. IDs outside the 32-bit
// domain are never members, which makes the membership check safe against
// absurdly large parsed values.
func (u *Universe) Contains(pid int64) bool {
	if pid < 0 || pid > math.MaxUint32 {
		return false
	}
	return u.bm.Contains(uint32(pid))
}

// Cardinality returns the number of known post IDs.
func (u *Universe) Cardinality() uint64 {
	return u.bm.GetCardinality()
}

// IsEmpty reports whether the universe holds no IDs.
func (u *Universe) IsEmpty() bool {
	return u.bm.IsEmpty()
}

// Max returns the largest known post ID. The universe must not be empty.
func (u *Universe) Max() int64 {
	return int64(u.bm.Maximum())
}

// Min returns the smallest known post ID. The universe must not be empty.
func (u *Universe) Min() int64 {
	return int64(u.bm.Minimum())
}

// Select returns the post ID at the given 0-based rank in ascending order.
// Used to compute equal-count percentile cut-points for partitioning.
func (u *Universe) Select(rank uint64) (int64, error) {
	if rank > math.MaxUint32 {
		return 0, fmt.Errorf("universe: rank %d out of range", rank)
	}
	pid, err := u.bm.Select(uint32(rank))
	if err != nil {
		return 0, fmt.Errorf("universe: select rank %d: %w", rank, err)
	}
	return int64(pid), nil
}

// Above returns a new Universe containing only the IDs strictly greater
// than pid. Used when resuming from a checkpoint. The receiver is not
// modified.
func (u *Universe) Above(pid int64) *Universe {
	if pid < 0 {
		return fromBitmap(u.bm.Clone())
	}
	if pid >= math.MaxUint32 {
		return fromBitmap(roaring.New())
	}
	clone := u.bm.Clone()
	clone.RemoveRange(0, uint64(pid)+1)
	return fromBitmap(clone)
}

// CountInRange returns how many known IDs fall into [lo, hi].
func (u *Universe) CountInRange(lo, hi int64) uint64 {
	if hi < lo || hi < 0 || lo > math.MaxUint32 {
		return 0
	}
	if lo < 0 {
		lo = 0
	}
	if hi > math.MaxUint32 {
		hi = math.MaxUint32
	}
	// Rank(x) counts members <= x.
	count := u.bm.Rank(uint32(hi))
	if lo > 0 {
		count -= u.bm.Rank(uint32(lo - 1))
	}
	return count
}
