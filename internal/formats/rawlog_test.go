package formats

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traceview-mcp/internal/trace"
)

func sentinel(cpu, t int64) Record {
	var r Record
	r[FieldTime] = t
	r[FieldCode] = SentinelCode
	r[FieldCPU] = cpu
	return r
}

func TestPairSentinels(t *testing.T) {
	other := sentinel(0, 120)
	other[FieldCode] = 42

	records := Records{
		sentinel(0, 100),
		sentinel(1, 110),
		other,
		sentinel(0, 250),
		sentinel(0, 400),
	}
	table := PairSentinels(records)

	want := trace.Table{
		{Stream: "0", Label: "0", Start: 100, Finish: 250, Duration: 150},
		{Stream: "0", Label: "0", Start: 250, Finish: 400, Duration: 150},
	}
	assert.Equal(t, want, table)
}

func TestPairSentinelsEmbeddedStart(t *testing.T) {
	first := sentinel(3, 100)
	first[FieldParamCount] = 2
	first[FieldParams] = 0 // ignored, falls back to record time
	second := sentinel(3, 250)
	second[FieldParamCount] = 2
	second[FieldParams] = 999 // only the first sentinel's parameter counts

	table := PairSentinels(Records{first, second})
	require.Len(t, table, 1)
	assert.Equal(t, int64(100), table[0].Start)

	first[FieldParams] = 90
	table = PairSentinels(Records{first, second, sentinel(3, 300)})
	require.Len(t, table, 2)
	assert.Equal(t, int64(90000), table[0].Start)
	assert.Equal(t, int64(250), table[0].Finish)
	assert.Equal(t, int64(250), table[1].Start)
}

func TestPairSentinelsNoParamCount(t *testing.T) {
	first := sentinel(0, 100)
	first[FieldParams] = 90 // present in the array but not declared
	table := PairSentinels(Records{first, sentinel(0, 200)})
	require.Len(t, table, 1)
	assert.Equal(t, int64(100), table[0].Start)
}

func TestRawLogFormatMmapRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	records := []Record{sentinel(0, 100), sentinel(2, 5), sentinel(0, 250), sentinel(0, 400)}
	records[1][FieldParams+15] = -7
	require.NoError(t, WriteRecords(&buf, records))

	path := filepath.Join(t.TempDir(), "sched.evt")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	set, err := MmapRecordDecoder{}.Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, set.Len())
	assert.Equal(t, records[1], set.Record(1))
	require.NoError(t, set.Close())

	table, err := (&RawLogFormat{Decoder: MmapRecordDecoder{}}).Read(path)
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, int64(100), table[0].Start)
	assert.Equal(t, int64(400), table[1].Finish)
}

func TestRawLogFormatTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.evt")
	require.NoError(t, os.WriteFile(path, make([]byte, recordSize+3), 0o644))

	_, err := (&RawLogFormat{Decoder: MmapRecordDecoder{}}).Read(path)
	var decErr *trace.DecoderError
	require.True(t, errors.As(err, &decErr), "got %v", err)
	assert.Equal(t, path, decErr.Path)
}

func TestRawLogFormatEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.evt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	table, err := (&RawLogFormat{Decoder: MmapRecordDecoder{}}).Read(path)
	require.NoError(t, err)
	assert.Empty(t, table)
}
