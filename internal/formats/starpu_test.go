package formats

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traceview-mcp/internal/trace"
)

func TestConvertStarPU(t *testing.T) {
	in := "type,Thread,type,Start,Finish,Duration,Depth,Function\n" +
		"State,CPU0,Task,1.5,2.5,1.0,0,dgemm\n" +
		"State,CUDA0,Task,3,4,1,1,dpotrf\n"

	var out bytes.Buffer
	n, err := ConvertStarPU("tasks.csv", strings.NewReader(in), &out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "Thread,Function,Start,Finish,Duration,Depth\n"+
		"CPU0,dgemm,1.5,2.5,1.0,0\n"+
		"CUDA0,dpotrf,3,4,1,1\n", out.String())

	// The result is readable as a canonical trace.
	table, err := ReadTabular("converted.csv", &out)
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, int64(1500000), table[0].Start)
	assert.Equal(t, "dpotrf", table[1].Label)
}

func TestConvertStarPUShortRow(t *testing.T) {
	in := "type,Thread,type,Start,Finish,Duration,Depth,Function\nState,CPU0,Task,1\n"
	_, err := ConvertStarPU("tasks.csv", strings.NewReader(in), &bytes.Buffer{})
	var malformed *trace.MalformedInputError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 2, malformed.Line)
}
