package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"traceview-mcp/internal/trace"
)

// Hotspot is the time spent in one label across all streams.
type Hotspot struct {
	Label      string
	Count      int      // Number of intervals with this label
	TotalTime  int64    // Inclusive time, nanoseconds
	SelfTime   int64    // Inclusive time minus directly nested intervals
	Percentage float64  // SelfTime as a share of the summed busy time of all streams
	Streams    []string // Streams the label occurs on, natural order
}

// sweep visits every stream in natural order and, within a stream, every row
// in start order. parent is the innermost row still open when row starts, or
// -1 when row is outermost.
func sweep(t trace.Table, visit func(row, parent int)) {
	groups := trace.StreamRows(t)
	streams := make([]string, 0, len(groups))
	for s := range groups {
		streams = append(streams, s)
	}
	trace.SortNatural(streams)

	for _, s := range streams {
		rows := groups[s]
		trace.SortByStart(t, rows)
		stack := make([]int, 0, 16)
		for _, idx := range rows {
			for len(stack) > 0 && t[stack[len(stack)-1]].Finish <= t[idx].Start {
				stack = stack[:len(stack)-1]
			}
			parent := -1
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			visit(idx, parent)
			stack = append(stack, idx)
		}
	}
}

// nesting is the result of one sweep over a table.
type nesting struct {
	self  []int64          // per row: duration minus directly nested time
	leaf  []bool           // per row: nothing nested inside
	busy  map[string]int64 // per stream: summed duration of outermost rows
	total int64            // sum of busy
}

func measure(t trace.Table) nesting {
	n := nesting{
		self: make([]int64, len(t)),
		leaf: make([]bool, len(t)),
		busy: make(map[string]int64),
	}
	for i := range t {
		n.self[i] = t[i].Duration
		n.leaf[i] = true
	}
	sweep(t, func(row, parent int) {
		if parent < 0 {
			n.busy[t[row].Stream] += t[row].Duration
			n.total += t[row].Duration
			return
		}
		n.leaf[parent] = false
		covered := min(t[row].Finish, t[parent].Finish) - t[row].Start
		if covered > 0 {
			n.self[parent] -= covered
		}
	})
	return n
}

// FindHotspots aggregates time per label and returns the topN labels by self
// time, descending. topN <= 0 returns every label.
func FindHotspots(t trace.Table, topN int) []Hotspot {
	n := measure(t)
	return collect(t, n, func(int) bool { return true }, topN)
}

// FindLeafHotspots is FindHotspots restricted to intervals with nothing nested
// inside them. These are usually where the work actually happens.
func FindLeafHotspots(t trace.Table, topN int) []Hotspot {
	n := measure(t)
	return collect(t, n, func(row int) bool { return n.leaf[row] }, topN)
}

func collect(t trace.Table, n nesting, keep func(row int) bool, topN int) []Hotspot {
	hotspotMap := make(map[string]*Hotspot)
	streamSets := make(map[string]map[string]struct{})
	for i := range t {
		if !keep(i) {
			continue
		}
		e := &t[i]
		hs, ok := hotspotMap[e.Label]
		if !ok {
			hs = &Hotspot{Label: e.Label}
			hotspotMap[e.Label] = hs
			streamSets[e.Label] = make(map[string]struct{})
		}
		hs.Count++
		hs.TotalTime += e.Duration
		hs.SelfTime += n.self[i]
		streamSets[e.Label][e.Stream] = struct{}{}
	}

	hotspots := make([]Hotspot, 0, len(hotspotMap))
	for label, hs := range hotspotMap {
		if n.total > 0 {
			hs.Percentage = float64(hs.SelfTime) / float64(n.total) * 100.0
		}
		for s := range streamSets[label] {
			hs.Streams = append(hs.Streams, s)
		}
		trace.SortNatural(hs.Streams)
		hotspots = append(hotspots, *hs)
	}

	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].SelfTime != hotspots[j].SelfTime {
			return hotspots[i].SelfTime > hotspots[j].SelfTime
		}
		return trace.NaturalLess(hotspots[i].Label, hotspots[j].Label)
	})

	if topN > 0 && topN < len(hotspots) {
		return hotspots[:topN]
	}
	return hotspots
}

// StreamBusyTime returns, per stream, the summed duration of its outermost
// intervals.
func StreamBusyTime(t trace.Table) map[string]int64 {
	return measure(t).busy
}

// FormatHotspot returns a human-readable rendering of a hotspot.
func FormatHotspot(hs Hotspot, rank int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("#%d: %s\n", rank, hs.Label))
	sb.WriteString(fmt.Sprintf("    Self time: %s (%.2f%%)\n", trace.PrettyDuration(hs.SelfTime), hs.Percentage))
	sb.WriteString(fmt.Sprintf("    Total time: %s\n", trace.PrettyDuration(hs.TotalTime)))
	sb.WriteString(fmt.Sprintf("    Intervals: %d\n", hs.Count))
	if len(hs.Streams) <= 8 {
		sb.WriteString(fmt.Sprintf("    Streams: %s\n", strings.Join(hs.Streams, ", ")))
	} else {
		sb.WriteString(fmt.Sprintf("    Streams: %s, ... (%d total)\n", strings.Join(hs.Streams[:8], ", "), len(hs.Streams)))
	}

	return sb.String()
}
