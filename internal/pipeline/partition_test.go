package pipeline

import (
	"math/rand"
	"testing"

	"github.com/scrypster/bbstats/internal/universe"
)

func mustUniverse(t *testing.T, ids []int64) *universe.Universe {
	t.Helper()
	u, err := universe.FromIDs(ids)
	if err != nil {
		t.Fatalf("FromIDs() failed: %v", err)
	}
	return u
}

// sparseIDs generates a sorted, gappy ID sequence so the partitioner has to
// cope with uneven density, just like real post IDs with deleted ranges.
func sparseIDs(seed int64, n int) []int64 {
	rng := rand.New(rand.NewSource(seed))
	ids := make([]int64, 0, n)
	next := int64(1)
	for i := 0; i < n; i++ {
		next += 1 + rng.Int63n(50)
		ids = append(ids, next)
	}
	return ids
}

func TestSplitCoversUniverseExactlyOnce(t *testing.T) {
	for _, tc := range []struct {
		name    string
		ids     []int64
		workers int
	}{
		{"dense", []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 3},
		{"single worker", sparseIDs(1, 500), 1},
		{"sparse even", sparseIDs(2, 1000), 8},
		{"sparse odd", sparseIDs(3, 997), 7},
		{"more workers than ids", []int64{5, 9, 42}, 16},
	} {
		t.Run(tc.name, func(t *testing.T) {
			u := mustUniverse(t, tc.ids)
			parts, err := Split(u, tc.workers)
			if err != nil {
				t.Fatalf("Split() failed: %v", err)
			}

			if len(parts) == 0 {
				t.Fatal("Split() returned no partitions for a non-empty universe")
			}
			if len(parts) > tc.workers {
				t.Errorf("partitions: got %d, want at most %d", len(parts), tc.workers)
			}

			// Contiguous and disjoint: each partition starts strictly after
			// the previous one ends.
			for i := 1; i < len(parts); i++ {
				if parts[i].Lo <= parts[i-1].Hi {
					t.Errorf("partition %d overlaps partition %d: [%d,%d] then [%d,%d]",
						i-1, i, parts[i-1].Lo, parts[i-1].Hi, parts[i].Lo, parts[i].Hi)
				}
			}

			// Every ID lands in exactly one partition, and the per-partition
			// counts add up to the whole universe.
			var total uint64
			for _, p := range parts {
				if got := u.CountInRange(p.Lo, p.Hi); got != p.Count {
					t.Errorf("partition %d: Count %d but range holds %d IDs", p.Index, p.Count, got)
				}
				total += p.Count
			}
			if total != u.Cardinality() {
				t.Errorf("total partition count: got %d, want %d", total, u.Cardinality())
			}

			for _, id := range tc.ids {
				hits := 0
				for _, p := range parts {
					if id >= p.Lo && id <= p.Hi {
						hits++
					}
				}
				if hits != 1 {
					t.Errorf("ID %d covered by %d partitions, want 1", id, hits)
				}
			}

			// Equal-count property: sizes differ by at most one.
			min, max := parts[0].Count, parts[0].Count
			for _, p := range parts[1:] {
				if p.Count < min {
					min = p.Count
				}
				if p.Count > max {
					max = p.Count
				}
			}
			if max-min > 1 {
				t.Errorf("partition size skew: min %d, max %d", min, max)
			}
		})
	}
}

func TestSplitEmptyUniverse(t *testing.T) {
	u := mustUniverse(t, nil)
	parts, err := Split(u, 4)
	if err != nil {
		t.Fatalf("Split() failed: %v", err)
	}
	if len(parts) != 0 {
		t.Errorf("partitions: got %d, want 0", len(parts))
	}
}

func TestClipToCheckpoint(t *testing.T) {
	ids := sparseIDs(7, 200)
	u := mustUniverse(t, ids)
	parts, err := Split(u, 5)
	if err != nil {
		t.Fatalf("Split() failed: %v", err)
	}

	// Checkpoint in the middle of the third partition.
	mid := parts[2].Lo + (parts[2].Hi-parts[2].Lo)/2
	clipped := clipToCheckpoint(u, parts, mid)

	var remaining uint64
	for _, p := range clipped {
		if p.Lo <= mid {
			t.Errorf("partition %d still reaches below checkpoint: Lo=%d, checkpoint=%d", p.Index, p.Lo, mid)
		}
		remaining += p.Count
	}
	if want := u.Above(mid).Cardinality(); remaining != want {
		t.Errorf("remaining IDs: got %d, want %d", remaining, want)
	}

	// Boundaries above the checkpoint are untouched.
	if clipped[len(clipped)-1].Hi != parts[len(parts)-1].Hi {
		t.Errorf("final boundary moved: got %d, want %d",
			clipped[len(clipped)-1].Hi, parts[len(parts)-1].Hi)
	}

	// Checkpoint at the universe max clips everything away.
	if got := clipToCheckpoint(u, parts, u.Max()); len(got) != 0 {
		t.Errorf("partitions after complete checkpoint: got %d, want 0", len(got))
	}
}
