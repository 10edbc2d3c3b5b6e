package trace

import (
	"fmt"
	"strings"
)

// DurationParts is the unit breakdown of a signed nanosecond count.
type DurationParts struct {
	Negative     bool
	Hours        int64 // Unbounded
	Minutes      int64 // [0, 59]
	Seconds      int64 // [0, 59]
	Milliseconds int64 // [0, 999]
	Microseconds int64 // [0, 999]
	Nanoseconds  int64 // [0, 999]
}

// SplitDuration breaks ns down into hours, minutes, seconds, milliseconds,
// microseconds and nanoseconds of its magnitude, keeping the sign apart.
func SplitDuration(ns int64) DurationParts {
	var p DurationParts
	// uint64 holds the magnitude of math.MinInt64.
	mag := uint64(ns)
	if ns < 0 {
		p.Negative = true
		mag = -mag
	}

	p.Nanoseconds = int64(mag % 1000)
	mag /= 1000
	p.Microseconds = int64(mag % 1000)
	mag /= 1000
	p.Milliseconds = int64(mag % 1000)
	mag /= 1000
	p.Seconds = int64(mag % 60)
	mag /= 60
	p.Minutes = int64(mag % 60)
	p.Hours = int64(mag / 60)
	return p
}

// Total recombines the parts into a signed nanosecond count.
func (p DurationParts) Total() int64 {
	mag := uint64(p.Hours)
	mag = mag*60 + uint64(p.Minutes)
	mag = mag*60 + uint64(p.Seconds)
	mag = mag*1000 + uint64(p.Milliseconds)
	mag = mag*1000 + uint64(p.Microseconds)
	mag = mag*1000 + uint64(p.Nanoseconds)
	if p.Negative {
		return int64(-mag)
	}
	return int64(mag)
}

// PrettyDuration renders ns starting from its largest non-zero unit, e.g. "-1m 2s 0ms 0us 7ns".
func PrettyDuration(ns int64) string {
	p := SplitDuration(ns)
	units := []struct {
		v      int64
		suffix string
	}{
		{p.Hours, "h"},
		{p.Minutes, "m"},
		{p.Seconds, "s"},
		{p.Milliseconds, "ms"},
		{p.Microseconds, "us"},
		{p.Nanoseconds, "ns"},
	}

	first := len(units) - 1
	for i, u := range units {
		if u.v > 0 {
			first = i
			break
		}
	}

	var sb strings.Builder
	if p.Negative {
		sb.WriteByte('-')
	}
	for i := first; i < len(units); i++ {
		if i > first {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d%s", units[i].v, units[i].suffix)
	}
	return sb.String()
}
