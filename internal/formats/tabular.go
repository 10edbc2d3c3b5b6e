package formats

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"traceview-mcp/internal/trace"
)

// Canonical column names of the tabular format.
const (
	ColumnThread   = "Thread"
	ColumnFunction = "Function"
	ColumnStart    = "Start"
	ColumnFinish   = "Finish"
	ColumnDuration = "Duration"
	ColumnDepth    = "Depth"
)

// CanonicalHeader is the header written for canonical tabular traces.
var CanonicalHeader = []string{ColumnThread, ColumnFunction, ColumnStart, ColumnFinish, ColumnDuration, ColumnDepth}

// TabularFormat reads comma separated traces with one interval per row.
type TabularFormat struct{}

func (*TabularFormat) Name() string         { return "tabular" }
func (*TabularFormat) Extensions() []string { return []string{".csv"} }

func (*TabularFormat) Read(path string) (trace.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return ReadTabular(path, f)
}

// timeColumn is a Start/Finish/Duration column. Whether it holds integer
// nanoseconds or floating-point milliseconds is decided on the first data row.
type timeColumn struct {
	name    string
	idx     int
	millis  bool
	decided bool
}

func (c *timeColumn) parse(field string) (int64, error) {
	if !c.decided {
		c.millis = strings.ContainsAny(field, ".eE")
		c.decided = true
	}
	if c.millis {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return 0, err
		}
		return int64(v * 1e6), nil
	}
	return strconv.ParseInt(field, 10, 64)
}

const utf8BOM = "\ufeff"

// ReadTabular parses a tabular trace from r. name is used in errors only.
// A leading UTF-8 byte order mark is skipped.
func ReadTabular(name string, r io.Reader) (trace.Table, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && string(prefix) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &trace.MalformedInputError{Path: name, Line: 1, Reason: "empty file, expected a header"}
	}
	if err != nil {
		return nil, &trace.MalformedInputError{Path: name, Line: 1, Reason: "unreadable header", Err: err}
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	column := func(n string) (int, error) {
		i, ok := index[n]
		if !ok {
			return 0, &trace.MalformedInputError{Path: name, Line: 1, Reason: fmt.Sprintf("missing required column %q", n)}
		}
		return i, nil
	}

	threadIdx, err := column(ColumnThread)
	if err != nil {
		return nil, err
	}
	functionIdx, err := column(ColumnFunction)
	if err != nil {
		return nil, err
	}
	times := make([]*timeColumn, 0, 3)
	for _, n := range []string{ColumnStart, ColumnFinish, ColumnDuration} {
		i, err := column(n)
		if err != nil {
			return nil, err
		}
		times = append(times, &timeColumn{name: n, idx: i})
	}
	start, finish, duration := times[0], times[1], times[2]

	// Depth is optional; without it every row is unresolved (depth 0).
	depthIdx, hasDepth := index[ColumnDepth]

	width := max(threadIdx, functionIdx, start.idx, finish.idx, duration.idx)
	if hasDepth {
		width = max(width, depthIdx)
	}

	var table trace.Table
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, &trace.MalformedInputError{Path: name, Line: line, Reason: "unreadable row", Err: err}
		}
		line, _ := cr.FieldPos(0)
		if len(record) <= width {
			return nil, &trace.MalformedInputError{
				Path:   name,
				Line:   line,
				Reason: fmt.Sprintf("row has %d fields, want at least %d", len(record), width+1),
			}
		}

		e := trace.Event{
			Stream: record[threadIdx],
			Label:  record[functionIdx],
		}
		for _, c := range times {
			field := strings.TrimSpace(record[c.idx])
			v, err := c.parse(field)
			if err != nil {
				return nil, &trace.MalformedInputError{
					Path:   name,
					Line:   line,
					Reason: fmt.Sprintf("invalid %s value %q", c.name, field),
					Err:    err,
				}
			}
			switch c {
			case start:
				e.Start = v
			case finish:
				e.Finish = v
			case duration:
				e.Duration = v
			}
		}
		if hasDepth {
			d, err := parseDepth(strings.TrimSpace(record[depthIdx]))
			if err != nil {
				return nil, &trace.MalformedInputError{
					Path:   name,
					Line:   line,
					Reason: fmt.Sprintf("invalid %s value %q", ColumnDepth, record[depthIdx]),
					Err:    err,
				}
			}
			e.Depth = d
		}
		table = append(table, e)
	}
	return table, nil
}

// parseDepth accepts integers and integral floats ("2.0"), which is how
// spreadsheet tools tend to write the column back.
func parseDepth(field string) (int, error) {
	if d, err := strconv.Atoi(field); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("negative depth %d", d)
		}
		return d, nil
	}
	f, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(int(f)) {
		return 0, fmt.Errorf("depth %v is not a non-negative integer", f)
	}
	return int(f), nil
}

// WriteTabular writes t in the canonical tabular schema with integer
// nanosecond times, so ReadTabular gives back the same table.
func WriteTabular(w io.Writer, t trace.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CanonicalHeader); err != nil {
		return err
	}
	row := make([]string, len(CanonicalHeader))
	for i := range t {
		e := &t[i]
		row[0] = e.Stream
		row[1] = e.Label
		row[2] = strconv.FormatInt(e.Start, 10)
		row[3] = strconv.FormatInt(e.Finish, 10)
		row[4] = strconv.FormatInt(e.Duration, 10)
		row[5] = strconv.Itoa(e.Depth)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
