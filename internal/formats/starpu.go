package formats

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"traceview-mcp/internal/trace"
)

// Positions of the canonical fields in a StarPU tasks export. The export's
// header repeats "type" and is ignored.
var starPUColumns = struct {
	thread, start, finish, duration, depth, function int
}{
	thread:   1,
	start:    3,
	finish:   4,
	duration: 5,
	depth:    6,
	function: 7,
}

const starPUWidth = 8

// ConvertStarPU rewrites a StarPU export into the canonical tabular schema.
// Values are copied verbatim, so millisecond floats stay millisecond floats.
// It returns the number of rows written; name is used in errors only.
func ConvertStarPU(name string, r io.Reader, w io.Writer) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, &trace.MalformedInputError{Path: name, Line: 1, Reason: "empty file, expected a header"}
		}
		return 0, &trace.MalformedInputError{Path: name, Line: 1, Reason: "unreadable header", Err: err}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CanonicalHeader); err != nil {
		return 0, err
	}

	rows := 0
	out := make([]string, len(CanonicalHeader))
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, &trace.MalformedInputError{Path: name, Reason: "unreadable row", Err: err}
		}
		if len(record) < starPUWidth {
			line, _ := cr.FieldPos(0)
			return rows, &trace.MalformedInputError{
				Path:   name,
				Line:   line,
				Reason: fmt.Sprintf("row has %d fields, want %d", len(record), starPUWidth),
			}
		}
		c := starPUColumns
		out[0] = record[c.thread]
		out[1] = record[c.function]
		out[2] = record[c.start]
		out[3] = record[c.finish]
		out[4] = record[c.duration]
		out[5] = record[c.depth]
		if err := cw.Write(out); err != nil {
			return rows, err
		}
		rows++
	}

	cw.Flush()
	return rows, cw.Error()
}
