package formats

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traceview-mcp/internal/trace"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadTabularIntegerNanoseconds(t *testing.T) {
	in := "Thread,Function,Start,Finish,Duration,Depth\n" +
		"P0T0,main,0,100,100,0\n" +
		"P0T0,MPI_Send,10,50,40,1\n"

	table, err := ReadTabular("ring.csv", strings.NewReader(in))
	require.NoError(t, err)

	want := trace.Table{
		{Stream: "P0T0", Label: "main", Start: 0, Finish: 100, Duration: 100, Depth: 0},
		{Stream: "P0T0", Label: "MPI_Send", Start: 10, Finish: 50, Duration: 40, Depth: 1},
	}
	if diff := cmp.Diff(want, table); diff != "" {
		t.Errorf("ReadTabular() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadTabularFloatMillisecondsWithoutDepth(t *testing.T) {
	in := "Function,Thread,Duration,Start,Finish\n" +
		"compute,T1,0.5,1.25,1.75\n" +
		"idle,T1,2,3,5\n"

	table, err := ReadTabular("ms.csv", strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, table, 2)

	assert.Equal(t, int64(1250000), table[0].Start)
	assert.Equal(t, int64(1750000), table[0].Finish)
	assert.Equal(t, int64(500000), table[0].Duration)
	assert.Equal(t, 0, table[0].Depth)
	// Column encoding is decided on the first row.
	assert.Equal(t, int64(3000000), table[1].Start)
	assert.Equal(t, int64(2000000), table[1].Duration)
}

func TestReadTabularByteOrderMark(t *testing.T) {
	for name, header := range map[string]string{
		"bare":   "\ufeffThread,Function,Start,Finish,Duration\n",
		"quoted": "\ufeff\"Thread\",\"Function\",Start,Finish,Duration\n",
	} {
		table, err := ReadTabular("excel.csv", strings.NewReader(header+"P0T0,main,0,100,100\n"))
		require.NoError(t, err, name)
		require.Len(t, table, 1, name)
		assert.Equal(t, "P0T0", table[0].Stream, name)
	}

	// Only a leading mark is skipped.
	_, err := ReadTabular("late.csv", strings.NewReader("Function,\ufeffThread,Start,Finish,Duration\nmain,P0T0,0,1,1\n"))
	var malformed *trace.MalformedInputError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Reason, "Thread")
}

func TestReadTabularPerColumnEncoding(t *testing.T) {
	in := "Thread,Function,Start,Finish,Duration\n" +
		"T,f,1000,2000,0.001\n"
	table, err := ReadTabular("mixed.csv", strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), table[0].Start)
	assert.Equal(t, int64(1000), table[0].Duration)
}

func TestReadTabularErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		line int
	}{
		{"empty", "", 1},
		{"missing column", "Thread,Function,Start,Finish\nT,f,1,2\n", 1},
		{"short row", "Thread,Function,Start,Finish,Duration\nT,f,1,2\n", 2},
		{"bad number", "Thread,Function,Start,Finish,Duration\nT,f,1,2,1\nT,f,x,2,1\n", 3},
		{"float after int", "Thread,Function,Start,Finish,Duration\nT,f,1,2,1\nT,f,1.5,2,1\n", 3},
		{"negative depth", "Thread,Function,Start,Finish,Duration,Depth\nT,f,1,2,1,-1\n", 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadTabular("bad.csv", strings.NewReader(tc.in))
			require.Error(t, err)
			var malformed *trace.MalformedInputError
			require.True(t, errors.As(err, &malformed), "got %T: %v", err, err)
			assert.Equal(t, tc.line, malformed.Line)
			assert.Equal(t, "bad.csv", malformed.Path)
		})
	}
}

func TestTabularFormatRead(t *testing.T) {
	path := writeFile(t, "trace.csv", "Thread,Function,Start,Finish,Duration,Depth\nP1T0,f,5,9,4,2.0\n")
	table, err := (&TabularFormat{}).Read(path)
	require.NoError(t, err)
	require.Len(t, table, 1)
	assert.Equal(t, 2, table[0].Depth)

	_, err = (&TabularFormat{}).Read(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestWriteTabular(t *testing.T) {
	in := trace.Table{
		{Stream: "P0T0", Label: "main", Start: 0, Finish: 100, Duration: 100, Depth: 1},
		{Stream: "P0T0", Label: "say, \"hi\"", Start: 10, Finish: 50, Duration: 40, Depth: 2},
	}

	var sb strings.Builder
	require.NoError(t, WriteTabular(&sb, in))
	assert.True(t, strings.HasPrefix(sb.String(), "Thread,Function,Start,Finish,Duration,Depth\n"))

	out, err := ReadTabular("out.csv", strings.NewReader(sb.String()))
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}
