package session

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"traceview-mcp/internal/formats"
	"traceview-mcp/internal/trace"
)

const ringTrace = `Thread,Function,Start,Finish,Duration
P10T0,main,0,100,100
P2T0,main,0,90,90
P10T0,MPI_Send,10,50,40
P1T0,main,0,80,80
P2T0,MPI_Recv,20,30,10
P10T0,MPI_Recv,60,90,30
`

func writeTrace(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newSession(t *testing.T) *Session {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return New(Options{
		Registry:     formats.NewDefaultRegistry(logger),
		Logger:       logger,
		DepthWorkers: 2,
	})
}

func TestLoad(t *testing.T) {
	s := newSession(t)
	assert.False(t, s.Loaded())
	assert.Empty(t, s.FilteredView())

	summary, err := s.Load(writeTrace(t, "ring.csv", ringTrace))
	require.NoError(t, err)
	assert.Equal(t, "tabular", summary.Format)
	assert.Equal(t, 6, summary.Events)
	assert.Equal(t, 3, summary.Streams)
	assert.Equal(t, 3, summary.Labels)
	assert.Equal(t, 2, summary.MaxDepth)

	assert.True(t, s.Loaded())
	assert.Equal(t, []string{"P1T0", "P2T0", "P10T0"}, s.Streams())
	assert.Equal(t, s.Streams(), s.ActiveStreams())
	assert.Equal(t, []string{"MPI_Recv", "MPI_Send", "main"}, s.Labels())

	table := s.Table()
	require.Len(t, table, 6)
	want := []int{1, 1, 2, 1, 2, 2}
	for i, e := range table {
		assert.Equal(t, want[i], e.Depth, "row %d", i)
		assert.NotEmpty(t, e.Color)
	}

	id, path, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, summary.ID, id)
	assert.Equal(t, summary.Path, path)
}

func TestFilteredView(t *testing.T) {
	s := newSession(t)
	_, err := s.Load(writeTrace(t, "ring.csv", ringTrace))
	require.NoError(t, err)

	full := s.FilteredView()
	assert.Equal(t, s.Table(), full)

	require.NoError(t, s.SetActiveStreams([]string{"P10T0"}))
	assert.Equal(t, []string{"P10T0"}, s.ActiveStreams())

	view := s.FilteredView()
	require.Len(t, view, 3)
	assert.Equal(t, "main", view[0].Label)
	assert.Equal(t, "MPI_Send", view[1].Label)
	assert.Equal(t, "MPI_Recv", view[2].Label)
	for _, e := range view {
		assert.Equal(t, "P10T0", e.Stream)
	}
	// P10T0 is the only visible stream, so it moves to the bottom band.
	assert.InDelta(t, 0.25+0.1, view[0].Bottom, 1e-9)
	// Colours stay tied to the full label set.
	assert.Equal(t, full[0].Color, view[0].Color)

	// Empty subset shows everything again.
	require.NoError(t, s.SetActiveStreams(nil))
	assert.Len(t, s.FilteredView(), 6)
}

func TestSetActiveStreamsUnknown(t *testing.T) {
	s := newSession(t)

	err := s.SetActiveStreams([]string{"P0T0"})
	var unknown *trace.UnknownStreamError
	require.True(t, errors.As(err, &unknown))

	_, err = s.Load(writeTrace(t, "ring.csv", ringTrace))
	require.NoError(t, err)
	require.NoError(t, s.SetActiveStreams([]string{"P2T0"}))

	err = s.SetActiveStreams([]string{"P2T0", "P3T0", "nope"})
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, []string{"P3T0", "nope"}, unknown.Streams)
	// Selection unchanged.
	assert.Equal(t, []string{"P2T0"}, s.ActiveStreams())
}

func TestFailedLoadKeepsPreviousTrace(t *testing.T) {
	s := newSession(t)
	first, err := s.Load(writeTrace(t, "ring.csv", ringTrace))
	require.NoError(t, err)
	require.NoError(t, s.SetActiveStreams([]string{"P1T0"}))

	_, err = s.Load(writeTrace(t, "trace.json", "{}"))
	var unsupported *trace.UnsupportedFormatError
	require.True(t, errors.As(err, &unsupported))

	_, err = s.Load(writeTrace(t, "bad.csv", "Thread,Function\nT,f\n"))
	var malformed *trace.MalformedInputError
	require.True(t, errors.As(err, &malformed))

	_, err = s.Load(writeTrace(t, "backwards.csv", "Thread,Function,Start,Finish,Duration\nT,f,10,5,-5\n"))
	assert.ErrorIs(t, err, trace.ErrInvariant)

	id, _, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, first.ID, id)
	assert.Equal(t, []string{"P1T0"}, s.ActiveStreams())
	assert.Len(t, s.FilteredView(), 1)
}

func TestLoadReplacesTrace(t *testing.T) {
	s := newSession(t)
	_, err := s.Load(writeTrace(t, "ring.csv", ringTrace))
	require.NoError(t, err)
	require.NoError(t, s.SetActiveStreams([]string{"P1T0"}))

	var buf []formats.Record
	for _, ts := range []int64{100, 250, 400} {
		var r formats.Record
		r[formats.FieldTime] = ts
		r[formats.FieldCode] = formats.SentinelCode
		r[formats.FieldCPU] = 1
		buf = append(buf, r)
	}
	path := filepath.Join(t.TempDir(), "cpu.evt")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, formats.WriteRecords(f, buf))
	require.NoError(t, f.Close())

	summary, err := s.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "rawlog", summary.Format)
	assert.Equal(t, []string{"1"}, s.Streams())
	assert.Equal(t, []string{"1"}, s.ActiveStreams())

	view := s.FilteredView()
	require.Len(t, view, 2)
	// Flat per-CPU intervals are siblings.
	assert.Equal(t, 1, view[0].Depth)
	assert.Equal(t, 1, view[1].Depth)
}

func TestLayoutAndPalette(t *testing.T) {
	s := newSession(t)
	_, err := s.Load(writeTrace(t, "ring.csv", ringTrace))
	require.NoError(t, err)

	s.SetLayout(trace.LayoutGantt)
	s.SetPalette(trace.Palette{"red", "green", "blue"})
	view := s.FilteredView()
	for _, e := range view {
		assert.InDelta(t, 0.9, e.Bottom-e.Top, 1e-9)
		assert.Contains(t, []string{"red", "green", "blue"}, e.Color)
	}
}

func TestConcurrentReadsDuringLoad(t *testing.T) {
	s := newSession(t)
	path := writeTrace(t, "ring.csv", ringTrace)
	_, err := s.Load(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.Load(path)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.Len(t, s.FilteredView(), 6)
		}()
	}
	wg.Wait()
}

// slowFormat reads tabular files slowly and records how many reads overlap.
type slowFormat struct {
	formats.TabularFormat
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *slowFormat) Name() string         { return "slow" }
func (f *slowFormat) Extensions() []string { return []string{".slow"} }

func (f *slowFormat) Read(path string) (trace.Table, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return f.TabularFormat.Read(path)
}

func TestConcurrentLoadsSerialize(t *testing.T) {
	format := &slowFormat{}
	logger := zaptest.NewLogger(t)
	s := New(Options{Registry: formats.NewRegistry(format), Logger: logger, DepthWorkers: 2})

	ring := writeTrace(t, "ring.slow", ringTrace)
	single := writeTrace(t, "single.slow", "Thread,Function,Start,Finish,Duration\nT9,idle,0,5,5\n")
	streams := map[string][]string{
		ring:   {"P1T0", "P2T0", "P10T0"},
		single: {"T9"},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		path := ring
		if i%2 == 1 {
			path = single
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Load(path)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), format.peak.Load())

	_, path, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, streams[path], s.Streams())
	assert.Equal(t, streams[path], s.ActiveStreams())
	for _, e := range s.Table() {
		assert.Contains(t, streams[path], e.Stream)
	}
}
