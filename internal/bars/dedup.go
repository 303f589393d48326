package bars

import (
	"slices"
	"time"
)

// DedupTicks returns ticks sorted by timestamp with one row per timestamp.
// When timestamps collide the row that appears later in the input wins.
// The input slice is not modified.
func DedupTicks(ticks []Tick) []Tick {
	return dedupLast(ticks, func(t Tick) time.Time { return t.Timestamp })
}

// MergeTicks concatenates batches in ingestion order and deduplicates them,
// so a batch merged later overrides earlier ones on shared timestamps.
func MergeTicks(batches ...[]Tick) []Tick {
	return DedupTicks(slices.Concat(batches...))
}

// DedupBars is DedupTicks for bar tables keyed on Bar.Timestamp.
func DedupBars(rows []Bar) []Bar {
	return dedupLast(rows, func(b Bar) time.Time { return b.Timestamp })
}

// MergeBars concatenates existing and new bar tables, keeping the newest row
// per timestamp.
func MergeBars(batches ...[]Bar) []Bar {
	return DedupBars(slices.Concat(batches...))
}

func dedupLast[T any](rows []T, key func(T) time.Time) []T {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b T) int {
		return key(a).Compare(key(b))
	})

	out := make([]T, 0, len(sorted))
	for _, r := range sorted {
		if n := len(out); n > 0 && key(out[n-1]).Equal(key(r)) {
			out[n-1] = r
			continue
		}
		out = append(out, r)
	}
	return out
}
