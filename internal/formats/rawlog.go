package formats

import (
	"strconv"

	"go.uber.org/multierr"

	"traceview-mcp/internal/trace"
)

// Layout of a raw event-log record.
const (
	MaxParams    = 16
	RecordFields = 7 + MaxParams

	FieldEventID    = 0
	FieldTime       = 1 // Nanoseconds
	FieldCode       = 2
	FieldParamCount = 3
	FieldCPU        = 4
	FieldTID        = 5
	FieldRaw        = 6
	FieldParams     = 7 // p0..p15 follow
)

// SentinelCode marks a context switch; consecutive sentinels on a CPU bound
// one interval.
const SentinelCode = 269

// rawLogLabel is the label of every interval derived from a raw event log.
const rawLogLabel = "0"

// Record is one fixed-width raw event-log record.
type Record [RecordFields]int64

// RecordSet gives indexed access to the records of a loaded raw event log.
type RecordSet interface {
	Len() int
	Record(i int) Record
	Close() error
}

// RecordDecoder loads a raw event log.
type RecordDecoder interface {
	Load(path string) (RecordSet, error)
}

// Records is an in-memory RecordSet.
type Records []Record

func (r Records) Len() int            { return len(r) }
func (r Records) Record(i int) Record { return r[i] }
func (Records) Close() error          { return nil }

// RawLogFormat derives flat per-CPU intervals from context switch sentinels.
//
// The first sentinel seen on a CPU opens a pending interval. Its start is
// taken from the record's first embedded parameter scaled from microseconds
// when the record carries one, otherwise from the record's own timestamp; this
// mirrors how the trace producer stores the switch-in time and only applies to
// the first sentinel. Every later sentinel closes the pending interval at its
// own timestamp and opens the next one there.
type RawLogFormat struct {
	Decoder RecordDecoder
}

func (*RawLogFormat) Name() string         { return "rawlog" }
func (*RawLogFormat) Extensions() []string { return []string{".evt"} }

func (f *RawLogFormat) Read(path string) (table trace.Table, err error) {
	set, err := f.Decoder.Load(path)
	if err != nil {
		return nil, &trace.DecoderError{Path: path, Err: err}
	}
	defer multierr.AppendInvoke(&err, multierr.Close(set))

	return PairSentinels(set), nil
}

// PairSentinels turns the sentinel records of set into intervals, one stream per CPU.
func PairSentinels(set RecordSet) trace.Table {
	table := trace.Table{}
	pending := make(map[int64]int64)
	for i := 0; i < set.Len(); i++ {
		r := set.Record(i)
		if r[FieldCode] != SentinelCode {
			continue
		}
		cpu, t := r[FieldCPU], r[FieldTime]

		start, ok := pending[cpu]
		if !ok {
			pending[cpu] = firstSentinelStart(r)
			continue
		}
		table = append(table, trace.Event{
			Stream:   strconv.FormatInt(cpu, 10),
			Label:    rawLogLabel,
			Start:    start,
			Finish:   t,
			Duration: t - start,
		})
		pending[cpu] = t
	}
	return table
}

func firstSentinelStart(r Record) int64 {
	if r[FieldParamCount] >= 1 && r[FieldParams] != 0 {
		return r[FieldParams] * 1000
	}
	return r[FieldTime]
}
