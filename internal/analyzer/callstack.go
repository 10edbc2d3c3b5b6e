package analyzer

import (
	"fmt"

	"traceview-mcp/internal/trace"
)

// Frame is one interval of a call chain.
type Frame struct {
	Row      int // Index in the table passed to CallChain
	Label    string
	Start    int64
	Finish   int64
	Duration int64
	Depth    int
	Parent   string  // Label of the enclosing frame, empty for the outermost
	Share    float64 // Duration as a percentage of the enclosing frame's, 0 for the outermost
}

// CallChain returns the interval at row followed by the intervals enclosing
// it on its stream, innermost first.
func CallChain(t trace.Table, row int) ([]Frame, error) {
	if row < 0 || row >= len(t) {
		return nil, fmt.Errorf("row %d out of range [0, %d)", row, len(t))
	}

	parents := make([]int, len(t))
	sweep(t, func(r, parent int) {
		parents[r] = parent
	})

	var frames []Frame
	for r := row; r >= 0; r = parents[r] {
		e := &t[r]
		f := Frame{
			Row:      r,
			Label:    e.Label,
			Start:    e.Start,
			Finish:   e.Finish,
			Duration: e.Duration,
			Depth:    e.Depth,
		}
		if p := parents[r]; p >= 0 {
			f.Parent = t[p].Label
			if t[p].Duration > 0 {
				f.Share = float64(e.Duration) / float64(t[p].Duration) * 100.0
			}
		}
		frames = append(frames, f)
	}
	return frames, nil
}
