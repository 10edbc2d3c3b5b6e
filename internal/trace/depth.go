package trace

import (
	"fmt"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
)

// ComputeDepth returns a copy of t with per-stream nesting depths filled in.
//
// If any row already carries a depth above zero the reader resolved nesting
// itself and the copy is returned unchanged. Otherwise each stream is swept
// in start order (ties: longest first) with a stack of open intervals; a
// row's depth is the stack size after it is pushed, so the outermost rows get
// depth 1. Streams are independent and are processed on up to workers
// goroutines (<= 0 means GOMAXPROCS).
func ComputeDepth(t Table, workers int) (Table, error) {
	out := t.Clone()
	if out.MaxDepth() > 0 {
		return out, nil
	}

	for i := range out {
		if out[i].Finish < out[i].Start {
			return nil, fmt.Errorf("%w: row %d on stream %q finishes at %d before its start %d",
				ErrInvariant, i, out[i].Stream, out[i].Finish, out[i].Start)
		}
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, rows := range StreamRows(out) {
		g.Go(func() error {
			assignDepths(out, rows)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// StreamRows groups row indices by stream, keeping table order inside each group.
func StreamRows(t Table) map[string][]int {
	groups := make(map[string][]int)
	for i := range t {
		groups[t[i].Stream] = append(groups[t[i].Stream], i)
	}
	return groups
}

// SortByStart stably orders rows by start ascending and, for equal starts, by
// finish descending so that an enclosing interval precedes what it contains.
func SortByStart(t Table, rows []int) {
	slices.SortStableFunc(rows, func(a, b int) int {
		ea, eb := &t[a], &t[b]
		switch {
		case ea.Start < eb.Start:
			return -1
		case ea.Start > eb.Start:
			return 1
		case ea.Finish > eb.Finish:
			return -1
		case ea.Finish < eb.Finish:
			return 1
		}
		return 0
	})
}

// assignDepths writes depths for one stream. Only the rows listed are touched,
// so concurrent calls for different streams never share a write.
func assignDepths(t Table, rows []int) {
	SortByStart(t, rows)

	stack := make([]int64, 0, 16) // finish times of open intervals
	for _, idx := range rows {
		start := t[idx].Start
		for len(stack) > 0 && stack[len(stack)-1] <= start {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, t[idx].Finish)
		t[idx].Depth = len(stack)
	}
}
