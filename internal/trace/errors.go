package trace

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvariant marks a canonical table that breaks an invariant the depth pass
// relies on, such as an interval finishing before it starts.
var ErrInvariant = errors.New("trace invariant violated")

// ErrNoTrace is returned by operations that need a loaded trace.
var ErrNoTrace = errors.New("no trace loaded")

// UnsupportedFormatError reports a file whose extension no reader handles.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return fmt.Sprintf("unsupported trace format for %s: no file extension", e.Path)
	}
	return fmt.Sprintf("unsupported trace format %q for %s", e.Ext, e.Path)
}

// MalformedInputError reports missing fields, unparseable values or events
// that cannot be paired. Line is 1-based and 0 when not applicable.
type MalformedInputError struct {
	Path   string
	Line   int
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	var sb strings.Builder
	sb.WriteString("malformed trace ")
	sb.WriteString(e.Path)
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf(" (line %d)", e.Line))
	}
	sb.WriteString(": ")
	sb.WriteString(e.Reason)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// UnknownStreamError lists the requested streams that the loaded trace does not contain.
type UnknownStreamError struct {
	Streams []string
}

func (e *UnknownStreamError) Error() string {
	return fmt.Sprintf("unknown stream(s): %s", strings.Join(e.Streams, ", "))
}

// DecoderError wraps a failure surfaced by a format decoder.
type DecoderError struct {
	Path string
	Err  error
}

func (e *DecoderError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Path, e.Err)
}

func (e *DecoderError) Unwrap() error { return e.Err }
