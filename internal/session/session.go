// Package session owns the trace currently shown to a client: the canonical
// table of the last successful load, the streams the client wants to see and
// the display parameters used to annotate views of it.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"traceview-mcp/internal/formats"
	"traceview-mcp/internal/trace"
)

// snapshot is the immutable state produced by one load. Selecting streams
// produces a new snapshot sharing the table.
type snapshot struct {
	id       uuid.UUID
	path     string
	format   string
	loadedAt time.Time

	table   trace.Table // depth resolved, annotated against all streams
	streams []string    // natural order
	labels  []string    // natural order
	index   map[string]uint
	active  *bitset.BitSet // bit i set when streams[i] is visible
}

func (s *snapshot) withActive(active *bitset.BitSet) *snapshot {
	next := *s
	next.active = active
	return &next
}

func (s *snapshot) activeStreams() []string {
	out := make([]string, 0, s.active.Count())
	for i, ok := s.active.NextSet(0); ok; i, ok = s.active.NextSet(i + 1) {
		out = append(out, s.streams[i])
	}
	return out
}

// LoadSummary describes a successful load.
type LoadSummary struct {
	ID       uuid.UUID
	Path     string
	Format   string
	Events   int
	Streams  int
	Labels   int
	MaxDepth int
	Elapsed  time.Duration
}

// Options configure a Session.
type Options struct {
	Registry     *formats.Registry
	Logger       *zap.Logger
	DepthWorkers int // <= 0 uses GOMAXPROCS
	Layout       trace.Layout
	Palette      trace.Palette
}

// Session holds the current trace. All methods are safe for concurrent use;
// a load swaps in a complete new state, so readers never see a half loaded trace.
type Session struct {
	registry *formats.Registry
	logger   *zap.Logger
	workers  int

	// loadMu serializes Load so two loads never interleave their read and swap.
	loadMu sync.Mutex

	mu      sync.RWMutex
	current *snapshot
	layout  trace.Layout
	palette trace.Palette
}

// New returns an empty session.
func New(opts Options) *Session {
	s := &Session{
		registry: opts.Registry,
		logger:   opts.Logger,
		workers:  opts.DepthWorkers,
		layout:   opts.Layout,
		palette:  opts.Palette,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.registry == nil {
		s.registry = formats.NewDefaultRegistry(s.logger)
	}
	if len(s.palette) == 0 {
		s.palette = trace.Set3
	}
	return s
}

// Load reads path with the format matching its extension, reconstructs
// depths and replaces the current trace. On error the current trace is kept.
// Every stream of the new trace starts out active. Concurrent calls run one
// at a time, in the order they acquire the session.
func (s *Session) Load(path string) (LoadSummary, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	begin := time.Now()
	logger := s.logger.With(zap.String("path", path))
	logger.Info("loading trace")

	table, format, err := s.registry.Read(path)
	if err != nil {
		logger.Error("failed to read trace", zap.Error(err))
		return LoadSummary{}, err
	}
	read := time.Since(begin)

	resolved, err := trace.ComputeDepth(table, s.workers)
	if err != nil {
		logger.Error("failed to compute depth", zap.Error(err))
		return LoadSummary{}, fmt.Errorf("failed to compute depth for %s: %w", path, err)
	}
	logger.Debug("depth resolved", zap.Duration("elapsed", time.Since(begin)-read))

	streams := resolved.Streams()
	labels := resolved.Labels()
	index := make(map[string]uint, len(streams))
	for i, name := range streams {
		index[name] = uint(i)
	}
	active := bitset.New(uint(len(streams)))
	active.FlipRange(0, uint(len(streams)))

	s.mu.Lock()
	defer s.mu.Unlock()

	next := &snapshot{
		id:       uuid.New(),
		path:     path,
		format:   format.Name(),
		loadedAt: time.Now(),
		table:    trace.Annotate(resolved, streams, labels, s.palette, s.layout),
		streams:  streams,
		labels:   labels,
		index:    index,
		active:   active,
	}
	s.current = next

	summary := LoadSummary{
		ID:       next.id,
		Path:     path,
		Format:   next.format,
		Events:   len(next.table),
		Streams:  len(streams),
		Labels:   len(labels),
		MaxDepth: next.table.MaxDepth(),
		Elapsed:  time.Since(begin),
	}
	logger.Info("trace loaded",
		zap.String("id", summary.ID.String()),
		zap.String("format", summary.Format),
		zap.Int("events", summary.Events),
		zap.Int("streams", summary.Streams),
		zap.Int("labels", summary.Labels),
		zap.Duration("read", read),
		zap.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

func (s *Session) snapshot() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Loaded reports whether a trace has been loaded.
func (s *Session) Loaded() bool {
	return s.snapshot() != nil
}

// Current returns the ID and path of the loaded trace.
func (s *Session) Current() (uuid.UUID, string, error) {
	snap := s.snapshot()
	if snap == nil {
		return uuid.Nil, "", trace.ErrNoTrace
	}
	return snap.id, snap.path, nil
}

// Table returns a copy of the full annotated table in reader order.
func (s *Session) Table() trace.Table {
	snap := s.snapshot()
	if snap == nil {
		return trace.Table{}
	}
	return snap.table.Clone()
}

// Streams returns every stream of the loaded trace in natural order.
func (s *Session) Streams() []string {
	snap := s.snapshot()
	if snap == nil {
		return []string{}
	}
	return append([]string(nil), snap.streams...)
}

// ActiveStreams returns the visible streams in natural order.
func (s *Session) ActiveStreams() []string {
	snap := s.snapshot()
	if snap == nil {
		return []string{}
	}
	return snap.activeStreams()
}

// Labels returns every label of the loaded trace in natural order.
func (s *Session) Labels() []string {
	snap := s.snapshot()
	if snap == nil {
		return []string{}
	}
	return append([]string(nil), snap.labels...)
}

// SetActiveStreams restricts views to subset. An empty subset makes every
// stream visible again. Names the trace does not contain are rejected with
// an *trace.UnknownStreamError and leave the selection unchanged.
func (s *Session) SetActiveStreams(subset []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.current
	if snap == nil {
		if len(subset) == 0 {
			return nil
		}
		return &trace.UnknownStreamError{Streams: subset}
	}

	active := bitset.New(uint(len(snap.streams)))
	if len(subset) == 0 {
		active.FlipRange(0, uint(len(snap.streams)))
	}
	var unknown []string
	for _, name := range subset {
		i, ok := snap.index[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		active.Set(i)
	}
	if len(unknown) > 0 {
		return &trace.UnknownStreamError{Streams: unknown}
	}

	s.current = snap.withActive(active)
	s.logger.Debug("active streams changed", zap.Uint("active", active.Count()), zap.Int("streams", len(snap.streams)))
	return nil
}

// SetLayout changes how subsequent views stack rows.
func (s *Session) SetLayout(l trace.Layout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout = l
}

// SetPalette changes the colours of subsequent views. An empty palette
// restores the default.
func (s *Session) SetPalette(p trace.Palette) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(p) == 0 {
		p = trace.Set3
	}
	s.palette = append(trace.Palette(nil), p...)
}

// FilteredView returns the rows on active streams in reader order, annotated
// against the active streams only so that hidden streams leave no gap. It is
// recomputed on every call.
func (s *Session) FilteredView() trace.Table {
	s.mu.RLock()
	snap, layout, palette := s.current, s.layout, s.palette
	s.mu.RUnlock()

	if snap == nil {
		return trace.Table{}
	}
	return trace.Annotate(snap.table, snap.activeStreams(), snap.labels, palette, layout)
}
