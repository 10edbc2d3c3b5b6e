package formats

import (
	"fmt"
	"iter"

	"go.uber.org/zap"

	"traceview-mcp/internal/trace"
)

// EventKind is the type of an event in a hierarchical enter/leave trace.
type EventKind int

const (
	KindOther EventKind = iota
	KindThreadBegin
	KindThreadEnd
	KindEnter
	KindLeave
)

var eventKindNames = map[string]EventKind{
	"ThreadBegin": KindThreadBegin,
	"ThreadEnd":   KindThreadEnd,
	"Enter":       KindEnter,
	"Leave":       KindLeave,
}

// ParseEventKind maps an event type name to its kind. Unknown names are KindOther.
func ParseEventKind(s string) EventKind {
	return eventKindNames[s]
}

// HierarchicalEvent is one decoded event of an enter/leave trace.
type HierarchicalEvent struct {
	Kind     EventKind
	Location string // Stream the event happened on
	Region   string // Entered region, empty for other kinds
	Time     int64  // Nanoseconds
}

// EventDecoder yields the events of a hierarchical trace file in trace order.
// An error ends the sequence.
type EventDecoder interface {
	Events(path string) iter.Seq2[HierarchicalEvent, error]
}

// RootLabel labels the synthetic interval opened by a thread-begin event.
const RootLabel = "main"

// HierarchicalFormat rebuilds intervals from enter/leave events by keeping
// one call stack per location. Depths come from the stacks, so the depth pass
// leaves its output alone once anything is nested.
//
// A leave (or thread end) on a location with nothing open fails the read.
// Intervals still open when the trace ends are dropped with a warning.
type HierarchicalFormat struct {
	Decoder EventDecoder
	Logger  *zap.Logger
}

func (*HierarchicalFormat) Name() string         { return "hierarchical" }
func (*HierarchicalFormat) Extensions() []string { return []string{".otf2"} }

func (h *HierarchicalFormat) Read(path string) (trace.Table, error) {
	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var table trace.Table
	stacks := make(map[string][]trace.Event)
	n := 0
	for ev, err := range h.Decoder.Events(path) {
		if err != nil {
			return nil, &trace.DecoderError{Path: path, Err: err}
		}
		n++

		stack := stacks[ev.Location]
		switch ev.Kind {
		case KindThreadBegin:
			if len(stack) > 0 {
				logger.Warn("thread begin on a location with open regions, discarding them",
					zap.String("path", path),
					zap.String("location", ev.Location),
					zap.Int("open", len(stack)))
			}
			stacks[ev.Location] = []trace.Event{{
				Stream: ev.Location,
				Label:  RootLabel,
				Start:  ev.Time,
			}}
		case KindEnter:
			depth := 0
			if len(stack) > 0 {
				depth = stack[len(stack)-1].Depth + 1
			}
			stacks[ev.Location] = append(stack, trace.Event{
				Stream: ev.Location,
				Label:  ev.Region,
				Start:  ev.Time,
				Depth:  depth,
			})
		case KindLeave, KindThreadEnd:
			if len(stack) == 0 {
				return nil, &trace.MalformedInputError{
					Path:   path,
					Reason: fmt.Sprintf("event %d: leave at %d on location %q without a matching enter", n, ev.Time, ev.Location),
				}
			}
			top := stack[len(stack)-1]
			stacks[ev.Location] = stack[:len(stack)-1]
			top.Finish = ev.Time
			top.Duration = top.Finish - top.Start
			table = append(table, top)
		}
	}

	open := 0
	for _, s := range stacks {
		open += len(s)
	}
	if open > 0 {
		logger.Warn("trace ended with open regions, dropping them",
			zap.String("path", path),
			zap.Int("open", open))
	}
	return table, nil
}
