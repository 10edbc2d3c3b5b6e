package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"traceview-mcp/internal/analyzer"
	"traceview-mcp/internal/session"
	"traceview-mcp/internal/trace"
)

const rule = "═══════════════════════════════════════════════════\n\n"

type handlers struct {
	session   *session.Session
	viewLimit int
}

// tools returns every tool the server offers, bound to h.
func tools(h *handlers) []server.ServerTool {
	return []server.ServerTool{
		{Tool: mcp.NewTool("load_trace",
			mcp.WithDescription("Load a trace file (.csv, .otf2, .pallas or .evt) and reconstruct call depths. Replaces the current trace; on failure the current trace is kept."),
			mcp.WithString("file_path",
				mcp.Required(),
				mcp.Description("Path to the trace file"),
			),
		), Handler: h.loadTrace},

		{Tool: mcp.NewTool("list_streams",
			mcp.WithDescription("List the streams (threads or CPUs) of the loaded trace in natural order, marking the ones currently visible."),
		), Handler: h.listStreams},

		{Tool: mcp.NewTool("list_labels",
			mcp.WithDescription("List the labels (function or region names) of the loaded trace with their interval counts."),
		), Handler: h.listLabels},

		{Tool: mcp.NewTool("set_active_streams",
			mcp.WithDescription("Restrict views and analyses to a subset of streams. An empty list makes every stream visible again."),
			mcp.WithArray("streams",
				mcp.WithStringItems(),
				mcp.Description("Stream names as returned by list_streams"),
			),
		), Handler: h.setActiveStreams},

		{Tool: mcp.NewTool("filtered_view",
			mcp.WithDescription("Page through the intervals of the visible streams in file order, with depth and layout coordinates."),
			mcp.WithNumber("offset",
				mcp.Description("Index of the first row to return (default: 0)"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of rows to return (default: server view limit)"),
			),
		), Handler: h.filteredView},

		{Tool: mcp.NewTool("find_hotspots",
			mcp.WithDescription("Find the labels with the most self time on the visible streams. This is the most important tool for identifying where time goes."),
			mcp.WithNumber("top_n",
				mcp.Description("Number of top hotspots to return (default: 10)"),
			),
		), Handler: h.findHotspots},

		{Tool: mcp.NewTool("find_leaf_hotspots",
			mcp.WithDescription("Find the labels with the most time among intervals that contain no nested intervals, where the actual work happens."),
			mcp.WithNumber("top_n",
				mcp.Description("Number of top labels to return (default: 10)"),
			),
		), Handler: h.findLeafHotspots},

		{Tool: mcp.NewTool("analyze_streams",
			mcp.WithDescription("Show the busy time of each visible stream. Useful for spotting load imbalance between threads or CPUs."),
		), Handler: h.analyzeStreams},

		{Tool: mcp.NewTool("get_statistics",
			mcp.WithDescription("Get statistics about the visible part of the trace: event counts, depth range, time span and busiest stream."),
		), Handler: h.getStatistics},

		{Tool: mcp.NewTool("detect_performance_issues",
			mcp.WithDescription("Automatically detect potential performance issues using heuristics. This is a great starting point for trace analysis."),
		), Handler: h.detectPerformanceIssues},

		{Tool: mcp.NewTool("view_callstack",
			mcp.WithDescription("View an interval and the chain of intervals enclosing it on its stream, innermost first, with each duration as a share of its parent. Useful for understanding execution flow."),
			mcp.WithNumber("row",
				mcp.Required(),
				mcp.Description("Row index as shown by filtered_view (0-based)"),
			),
		), Handler: h.viewCallstack},

		{Tool: mcp.NewTool("format_duration",
			mcp.WithDescription(`Render a nanosecond count split into hours down to nanoseconds, e.g. "1m 2s 0ms 0us 7ns".`),
			mcp.WithNumber("nanoseconds",
				mcp.Required(),
				mcp.Description("Duration in nanoseconds, may be negative"),
			),
		), Handler: h.formatDuration},
	}
}

func registerTools(s *server.MCPServer, h *handlers) {
	s.AddTools(tools(h)...)
}

// view returns the visible rows, or a tool error when nothing is loaded.
func (h *handlers) view() (trace.Table, *mcp.CallToolResult) {
	if !h.session.Loaded() {
		return nil, mcp.NewToolResultError("No trace loaded. Use load_trace tool first")
	}
	return h.session.FilteredView(), nil
}

func (h *handlers) loadTrace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filePath, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	summary, err := h.session.Load(filePath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load trace: %v", err)), nil
	}

	result := fmt.Sprintf(`Trace loaded successfully!

File: %s
Format: %s
Trace ID: %s
Events: %s
Streams: %s
Labels: %s
Max depth: %d
Load time: %s

Use other tools to analyze this trace.
`,
		summary.Path,
		summary.Format,
		summary.ID,
		humanize.Comma(int64(summary.Events)),
		humanize.Comma(int64(summary.Streams)),
		humanize.Comma(int64(summary.Labels)),
		summary.MaxDepth,
		summary.Elapsed,
	)

	return mcp.NewToolResultText(result), nil
}

func (h *handlers) listStreams(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, errResult := h.view(); errResult != nil {
		return errResult, nil
	}

	streams := h.session.Streams()
	active := make(map[string]bool)
	for _, s := range h.session.ActiveStreams() {
		active[s] = true
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🧵 STREAMS (%d visible of %d)\n", len(active), len(streams)))
	sb.WriteString(rule)
	for _, s := range streams {
		mark := " "
		if active[s] {
			mark = "x"
		}
		sb.WriteString(fmt.Sprintf("[%s] %s\n", mark, s))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (h *handlers) listLabels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, errResult := h.view(); errResult != nil {
		return errResult, nil
	}

	counts := make(map[string]int)
	for _, freq := range analyzer.GetLabelFrequencies(h.session.Table()) {
		counts[freq.Label] = freq.Count
	}
	labels := h.session.Labels()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🏷️  LABELS (%d)\n", len(labels)))
	sb.WriteString(rule)
	for _, l := range labels {
		sb.WriteString(fmt.Sprintf("%s: %s intervals\n", l, humanize.Comma(int64(counts[l]))))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (h *handlers) setActiveStreams(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, errResult := h.view(); errResult != nil {
		return errResult, nil
	}

	streams := request.GetStringSlice("streams", nil)
	if err := h.session.SetActiveStreams(streams); err != nil {
		var unknown *trace.UnknownStreamError
		if errors.As(err, &unknown) {
			return mcp.NewToolResultError(fmt.Sprintf("%v. Use list_streams to see the available streams", err)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	active := h.session.ActiveStreams()
	if len(streams) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("All %d streams are visible.\n", len(active))), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Visible streams (%d): %s\n", len(active), strings.Join(active, ", "))), nil
}

func (h *handlers) filteredView(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, errResult := h.view()
	if errResult != nil {
		return errResult, nil
	}

	offset := request.GetInt("offset", 0)
	limit := request.GetInt("limit", h.viewLimit)
	if offset < 0 {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid offset %d", offset)), nil
	}
	if limit <= 0 {
		limit = h.viewLimit
	}
	end := min(len(table), offset+limit)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 INTERVALS %d-%d of %s\n", min(offset, len(table)), end, humanize.Comma(int64(len(table)))))
	sb.WriteString(rule)
	sb.WriteString("stream\tlabel\tstart\tfinish\tduration\tdepth\ttop\tbottom\tcolor\n")
	for i := offset; i < end; i++ {
		e := &table[i]
		sb.WriteString(fmt.Sprintf("%s\t%s\t%d\t%d\t%d\t%d\t%.2f\t%.2f\t%s\n",
			e.Stream, e.Label, e.Start, e.Finish, e.Duration, e.Depth, e.Top, e.Bottom, e.Color))
	}
	if end < len(table) {
		sb.WriteString(fmt.Sprintf("\n%s more rows; call again with offset %d.\n", humanize.Comma(int64(len(table)-end)), end))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (h *handlers) findHotspots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, errResult := h.view()
	if errResult != nil {
		return errResult, nil
	}

	hotspots := analyzer.FindHotspots(table, request.GetInt("top_n", 10))

	var sb strings.Builder
	sb.WriteString("🔥 TOP HOTSPOTS (Labels With Most Self Time)\n")
	sb.WriteString(rule)

	if len(hotspots) == 0 {
		sb.WriteString("No hotspots found.\n")
	} else {
		for i, hs := range hotspots {
			sb.WriteString(analyzer.FormatHotspot(hs, i+1))
			sb.WriteString("\n")
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (h *handlers) findLeafHotspots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, errResult := h.view()
	if errResult != nil {
		return errResult, nil
	}

	hotspots := analyzer.FindLeafHotspots(table, request.GetInt("top_n", 10))

	var sb strings.Builder
	sb.WriteString("🎯 LEAF INTERVALS (Where Actual Work Happens)\n")
	sb.WriteString(rule)
	sb.WriteString("These intervals contain no nested intervals.\n")
	sb.WriteString("Optimizing them has direct impact.\n\n")

	if len(hotspots) == 0 {
		sb.WriteString("No leaf intervals found.\n")
	} else {
		for i, hs := range hotspots {
			sb.WriteString(analyzer.FormatHotspot(hs, i+1))
			sb.WriteString("\n")
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (h *handlers) analyzeStreams(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, errResult := h.view()
	if errResult != nil {
		return errResult, nil
	}

	busy := analyzer.StreamBusyTime(table)
	var total int64
	for _, b := range busy {
		total += b
	}
	streams := make([]string, 0, len(busy))
	for s := range busy {
		streams = append(streams, s)
	}
	trace.SortNatural(streams)

	var sb strings.Builder
	sb.WriteString("🧵 STREAM BUSY TIME\n")
	sb.WriteString(rule)

	for i, s := range streams {
		pct := 0.0
		if total > 0 {
			pct = float64(busy[s]) / float64(total) * 100.0
		}
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, s))
		sb.WriteString(fmt.Sprintf("   Busy: %s (%.2f%%)\n", trace.PrettyDuration(busy[s]), pct))

		barLength := min(int(pct/2), 50)
		sb.WriteString("   ")
		sb.WriteString(strings.Repeat("█", barLength))
		sb.WriteString("\n\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (h *handlers) getStatistics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, errResult := h.view()
	if errResult != nil {
		return errResult, nil
	}

	stats := analyzer.ComputeStatistics(table)

	var sb strings.Builder
	sb.WriteString("📊 TRACE STATISTICS\n")
	sb.WriteString(rule)

	sb.WriteString(fmt.Sprintf("Total Events: %s\n", humanize.Comma(int64(stats.TotalEvents))))
	sb.WriteString(fmt.Sprintf("Streams: %d\n", stats.TotalStreams))
	sb.WriteString(fmt.Sprintf("Labels: %d\n\n", stats.TotalLabels))

	if stats.TotalEvents > 0 {
		sb.WriteString("Depth Statistics:\n")
		sb.WriteString(fmt.Sprintf("  Average: %.2f\n", stats.AverageDepth))
		sb.WriteString(fmt.Sprintf("  Maximum: %d\n", stats.MaxDepth))
		sb.WriteString(fmt.Sprintf("  Minimum: %d\n\n", stats.MinDepth))

		sb.WriteString("Time:\n")
		sb.WriteString(fmt.Sprintf("  First start: %s ns\n", humanize.Comma(stats.FirstStart)))
		sb.WriteString(fmt.Sprintf("  Last finish: %s ns\n", humanize.Comma(stats.LastFinish)))
		sb.WriteString(fmt.Sprintf("  Span: %s\n", trace.PrettyDuration(stats.Span)))
		sb.WriteString(fmt.Sprintf("  Busy (all streams): %s\n\n", trace.PrettyDuration(stats.BusyTime)))

		sb.WriteString("Streams:\n")
		sb.WriteString(fmt.Sprintf("  Busiest: %s (%s)\n", stats.BusiestStream, trace.PrettyDuration(stats.BusiestTime)))
		sb.WriteString(fmt.Sprintf("  Least busy: %s (%s)\n", stats.IdlestStream, trace.PrettyDuration(stats.IdlestTime)))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (h *handlers) detectPerformanceIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, errResult := h.view()
	if errResult != nil {
		return errResult, nil
	}

	issues := analyzer.DetectPerformanceIssues(table)

	var sb strings.Builder
	sb.WriteString("⚠️  AUTOMATED PERFORMANCE ISSUE DETECTION\n")
	sb.WriteString(rule)

	if len(issues) == 0 {
		sb.WriteString("✅ No significant performance issues detected!\n")
		return mcp.NewToolResultText(sb.String()), nil
	}

	bySeverity := make(map[string][]analyzer.PerformanceIssue)
	for _, issue := range issues {
		bySeverity[issue.Severity] = append(bySeverity[issue.Severity], issue)
	}

	sections := []struct{ severity, title string }{
		{"Critical", "🔴 CRITICAL ISSUES:"},
		{"High", "🟠 HIGH PRIORITY ISSUES:"},
		{"Medium", "🟡 MEDIUM PRIORITY ISSUES:"},
		{"Low", "🔵 LOW PRIORITY ISSUES:"},
	}
	for _, section := range sections {
		group := bySeverity[section.severity]
		if len(group) == 0 {
			continue
		}
		sb.WriteString(section.title + "\n\n")
		for i, issue := range group {
			sb.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, issue.Category, issue.Description))
			if issue.Label != "" {
				sb.WriteString(fmt.Sprintf("   Label: %s\n", issue.Label))
			}
			if issue.Stream != "" {
				sb.WriteString(fmt.Sprintf("   Stream: %s\n", issue.Stream))
			}
			if issue.Impact > 0 {
				sb.WriteString(fmt.Sprintf("   Impact: %.2f%% of busy time\n", issue.Impact))
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("📊 SUMMARY:\n")
	for _, section := range sections {
		sb.WriteString(fmt.Sprintf("   %s: %d\n", section.severity, len(bySeverity[section.severity])))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (h *handlers) viewCallstack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, errResult := h.view()
	if errResult != nil {
		return errResult, nil
	}

	row, err := request.RequireFloat("row")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	index := int(row)
	if row != float64(index) || index < 0 || index >= len(table) {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid row %v. Valid range: 0-%d", row, len(table)-1)), nil
	}

	frames, err := analyzer.CallChain(table, index)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📞 CALLSTACK OF ROW %d\n", index))
	sb.WriteString(rule)
	sb.WriteString(fmt.Sprintf("Stream: %s\n", table[index].Stream))
	sb.WriteString(fmt.Sprintf("Stack Depth: %d frames\n\n", len(frames)))

	sb.WriteString("Call Stack (innermost first):\n\n")
	for i, f := range frames {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, f.Label))
		sb.WriteString(fmt.Sprintf("   Start: %s\n", trace.PrettyDuration(f.Start)))
		sb.WriteString(fmt.Sprintf("   Finish: %s\n", trace.PrettyDuration(f.Finish)))
		if f.Parent != "" && f.Share > 0 {
			sb.WriteString(fmt.Sprintf("   Duration: %s (%.2f%% of %s)\n", trace.PrettyDuration(f.Duration), f.Share, f.Parent))
		} else {
			sb.WriteString(fmt.Sprintf("   Duration: %s\n", trace.PrettyDuration(f.Duration)))
		}
		sb.WriteString(fmt.Sprintf("   Depth: %d\n", f.Depth))
		sb.WriteString(fmt.Sprintf("   [row %d]\n\n", f.Row))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (h *handlers) formatDuration(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ns, err := request.RequireFloat("nanoseconds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ns != float64(int64(ns)) {
		return mcp.NewToolResultError(fmt.Sprintf("nanoseconds must be an integer, got %v", ns)), nil
	}

	return mcp.NewToolResultText(trace.PrettyDuration(int64(ns))), nil
}
