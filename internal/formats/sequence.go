package formats

import (
	"fmt"

	"traceview-mcp/internal/trace"
)

// Sequence is a run of already materialized, non-overlapping segments on one
// thread. Timestamps and Durations are parallel arrays in nanoseconds.
type Sequence interface {
	Timestamps() []int64
	Durations() []int64
	// GuessName infers a region label for the sequence as seen from thread.
	GuessName(thread int) string
}

// SequenceThread is one thread of an archive.
type SequenceThread struct {
	ID        int
	Sequences []Sequence
}

// SequenceArchive groups the threads stored together in a trace.
type SequenceArchive struct {
	Threads []SequenceThread
}

// SequenceTrace is a decoded multi-archive, multi-thread sequence trace.
type SequenceTrace struct {
	Archives  []SequenceArchive
	Locations map[int]string // Thread ID to stream name
}

// SequenceDecoder opens a sequence trace.
type SequenceDecoder interface {
	Open(path string) (*SequenceTrace, error)
}

// SequenceFormat flattens pre-segmented sequence traces. It does not know
// about nesting, so every row leaves with depth 0.
type SequenceFormat struct {
	Decoder SequenceDecoder
}

func (*SequenceFormat) Name() string         { return "sequence" }
func (*SequenceFormat) Extensions() []string { return []string{".pallas"} }

func (s *SequenceFormat) Read(path string) (trace.Table, error) {
	tr, err := s.Decoder.Open(path)
	if err != nil {
		return nil, &trace.DecoderError{Path: path, Err: err}
	}

	var table trace.Table
	for a, archive := range tr.Archives {
		for _, thread := range archive.Threads {
			stream, ok := tr.Locations[thread.ID]
			if !ok {
				return nil, &trace.MalformedInputError{
					Path:   path,
					Reason: fmt.Sprintf("archive %d: thread %d has no location", a, thread.ID),
				}
			}
			for i, seq := range thread.Sequences {
				ts, ds := seq.Timestamps(), seq.Durations()
				if len(ts) != len(ds) {
					return nil, &trace.MalformedInputError{
						Path: path,
						Reason: fmt.Sprintf("archive %d thread %d sequence %d: %d timestamps but %d durations",
							a, thread.ID, i, len(ts), len(ds)),
					}
				}
				label := seq.GuessName(thread.ID)
				for k := range ts {
					table = append(table, trace.Event{
						Stream:   stream,
						Label:    label,
						Start:    ts[k],
						Finish:   ts[k] + ds[k],
						Duration: ds[k],
					})
				}
			}
		}
	}
	return table, nil
}
