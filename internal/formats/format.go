// Package formats turns trace files of several encodings into the canonical
// trace.Table. Every encoding is a TraceFormat; a Registry picks one by file
// extension.
package formats

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"traceview-mcp/internal/trace"
)

// TraceFormat reads one on-disk trace encoding into an unsorted canonical
// table. Only Stream, Label, Start, Finish, Duration and Depth are populated.
type TraceFormat interface {
	Name() string
	Extensions() []string
	Read(path string) (trace.Table, error)
}

// Registry dispatches trace files to the format registered for their extension.
type Registry struct {
	formats []TraceFormat
	byExt   map[string]TraceFormat
}

// NewRegistry registers formats in order; a later format claiming an
// extension already taken replaces the earlier one for that extension.
func NewRegistry(formats ...TraceFormat) *Registry {
	r := &Registry{byExt: make(map[string]TraceFormat)}
	for _, f := range formats {
		r.formats = append(r.formats, f)
		for _, ext := range f.Extensions() {
			r.byExt[strings.ToLower(ext)] = f
		}
	}
	return r
}

// NewDefaultRegistry wires every built-in format to its default decoder:
// .csv tabular, .otf2 hierarchical, .pallas sequence and .evt raw event log.
func NewDefaultRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return NewRegistry(
		&TabularFormat{},
		&HierarchicalFormat{Decoder: JSONLinesDecoder{}, Logger: logger},
		&SequenceFormat{Decoder: YAMLArchiveDecoder{}},
		&RawLogFormat{Decoder: MmapRecordDecoder{}},
	)
}

// Lookup returns the format that handles path.
func (r *Registry) Lookup(path string) (TraceFormat, error) {
	ext := strings.ToLower(filepath.Ext(path))
	f, ok := r.byExt[ext]
	if !ok {
		return nil, &trace.UnsupportedFormatError{Path: path, Ext: ext}
	}
	return f, nil
}

// Read reads path with the format registered for its extension and reports
// which format was used.
func (r *Registry) Read(path string) (trace.Table, TraceFormat, error) {
	f, err := r.Lookup(path)
	if err != nil {
		return nil, nil, err
	}
	table, err := f.Read(path)
	if err != nil {
		return nil, f, err
	}
	return table, f, nil
}

// Formats returns the registered formats in registration order.
func (r *Registry) Formats() []TraceFormat {
	out := make([]TraceFormat, len(r.formats))
	copy(out, r.formats)
	return out
}
