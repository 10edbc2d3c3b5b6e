package analyzer

import (
	"fmt"
	"math"
	"sort"

	"traceview-mcp/internal/trace"
)

// TraceStatistics summarises a depth-resolved table. Times are nanoseconds;
// BusyTime is summed over all streams.
type TraceStatistics struct {
	TotalEvents   int
	TotalStreams  int
	TotalLabels   int
	MinDepth      int
	MaxDepth      int
	AverageDepth  float64
	FirstStart    int64
	LastFinish    int64
	Span          int64
	BusyTime      int64
	BusiestStream string
	BusiestTime   int64
	IdlestStream  string
	IdlestTime    int64
}

// ComputeStatistics calculates statistics for the table.
func ComputeStatistics(t trace.Table) TraceStatistics {
	stats := TraceStatistics{
		TotalEvents:  len(t),
		TotalStreams: len(t.Streams()),
		TotalLabels:  len(t.Labels()),
	}
	if stats.TotalEvents == 0 {
		return stats
	}

	totalDepth := 0
	stats.MinDepth = math.MaxInt32
	stats.FirstStart = math.MaxInt64
	stats.LastFinish = math.MinInt64
	for _, e := range t {
		totalDepth += e.Depth
		stats.MinDepth = min(stats.MinDepth, e.Depth)
		stats.MaxDepth = max(stats.MaxDepth, e.Depth)
		stats.FirstStart = min(stats.FirstStart, e.Start)
		stats.LastFinish = max(stats.LastFinish, e.Finish)
	}
	stats.AverageDepth = float64(totalDepth) / float64(stats.TotalEvents)
	stats.Span = stats.LastFinish - stats.FirstStart

	loads := streamLoads(StreamBusyTime(t))
	for _, l := range loads {
		stats.BusyTime += l.busy
	}
	stats.BusiestStream, stats.BusiestTime = loads[0].stream, loads[0].busy
	last := loads[len(loads)-1]
	stats.IdlestStream, stats.IdlestTime = last.stream, last.busy

	return stats
}

type streamLoad struct {
	stream string
	busy   int64
}

// streamLoads orders streams by busy time descending, ties in natural order.
func streamLoads(busy map[string]int64) []streamLoad {
	loads := make([]streamLoad, 0, len(busy))
	for s, b := range busy {
		loads = append(loads, streamLoad{stream: s, busy: b})
	}
	sort.Slice(loads, func(i, j int) bool {
		if loads[i].busy != loads[j].busy {
			return loads[i].busy > loads[j].busy
		}
		return trace.NaturalLess(loads[i].stream, loads[j].stream)
	})
	return loads
}

// LabelFrequency is how many intervals carry a label.
type LabelFrequency struct {
	Label      string
	Count      int
	Percentage float64 // of all intervals
}

// GetLabelFrequencies returns labels sorted by how many intervals carry them.
func GetLabelFrequencies(t trace.Table) []LabelFrequency {
	counts := make(map[string]int)
	for _, e := range t {
		counts[e.Label]++
	}

	frequencies := make([]LabelFrequency, 0, len(counts))
	for label, n := range counts {
		frequencies = append(frequencies, LabelFrequency{
			Label:      label,
			Count:      n,
			Percentage: float64(n) / float64(len(t)) * 100.0,
		})
	}

	sort.Slice(frequencies, func(i, j int) bool {
		if frequencies[i].Count != frequencies[j].Count {
			return frequencies[i].Count > frequencies[j].Count
		}
		return trace.NaturalLess(frequencies[i].Label, frequencies[j].Label)
	})

	return frequencies
}

// PerformanceIssue is one finding of DetectPerformanceIssues.
type PerformanceIssue struct {
	Severity    string // "Critical", "High", "Medium", "Low"
	Category    string // e.g. "Dominant Label", "Load Imbalance"
	Description string
	Label       string
	Stream      string
	Impact      float64 // % of total busy time, or 0 when not time based
}

var severityRank = map[string]int{"Critical": 0, "High": 1, "Medium": 2, "Low": 3}

// DetectPerformanceIssues applies simple heuristics to a depth-resolved table.
// Issues are ordered by severity, then impact.
func DetectPerformanceIssues(t trace.Table) []PerformanceIssue {
	issues := []PerformanceIssue{}
	if len(t) == 0 {
		return issues
	}
	stats := ComputeStatistics(t)

	if stats.MaxDepth > 50 {
		issues = append(issues, PerformanceIssue{
			Severity:    "High",
			Category:    "Deep Nesting",
			Description: fmt.Sprintf("Maximum nesting depth of %d detected. This may indicate deep recursion or unbalanced regions.", stats.MaxDepth),
		})
	}

	for _, hs := range FindHotspots(t, 10) {
		severity := ""
		switch {
		case hs.Percentage > 20.0:
			severity = "Critical"
		case hs.Percentage > 10.0:
			severity = "High"
		default:
			continue
		}
		issues = append(issues, PerformanceIssue{
			Severity:    severity,
			Category:    "Dominant Label",
			Description: fmt.Sprintf("%s accounts for %.2f%% of busy time (self)", hs.Label, hs.Percentage),
			Label:       hs.Label,
			Impact:      hs.Percentage,
		})
	}

	if stats.TotalLabels > 1 {
		for _, freq := range GetLabelFrequencies(t) {
			if freq.Percentage <= 80.0 {
				break
			}
			issues = append(issues, PerformanceIssue{
				Severity:    "Medium",
				Category:    "Event Flood",
				Description: fmt.Sprintf("%s makes up %.2f%% of all intervals", freq.Label, freq.Percentage),
				Label:       freq.Label,
			})
		}
	}

	if stats.TotalStreams > 1 && stats.IdlestTime > 0 {
		ratio := float64(stats.BusiestTime) / float64(stats.IdlestTime)
		severity := ""
		switch {
		case ratio >= 2.0:
			severity = "High"
		case ratio >= 1.5:
			severity = "Medium"
		}
		if severity != "" {
			issues = append(issues, PerformanceIssue{
				Severity: severity,
				Category: "Load Imbalance",
				Description: fmt.Sprintf("Stream %s is busy %s while %s is busy %s (%.2fx)",
					stats.BusiestStream, trace.PrettyDuration(stats.BusiestTime),
					stats.IdlestStream, trace.PrettyDuration(stats.IdlestTime), ratio),
				Stream: stats.BusiestStream,
				Impact: float64(stats.BusiestTime-stats.IdlestTime) / float64(stats.BusyTime) * 100.0,
			})
		}
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if severityRank[issues[i].Severity] != severityRank[issues[j].Severity] {
			return severityRank[issues[i].Severity] < severityRank[issues[j].Severity]
		}
		return issues[i].Impact > issues[j].Impact
	})

	return issues
}
