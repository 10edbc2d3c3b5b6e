package trace

import "fmt"

// Layout selects how Annotate stacks rows vertically.
type Layout int

const (
	// LayoutFlame draws thin nested bands, one per depth level.
	LayoutFlame Layout = iota
	// LayoutGantt draws one full-height bar per stream.
	LayoutGantt
)

func (l Layout) String() string {
	switch l {
	case LayoutFlame:
		return "flame"
	case LayoutGantt:
		return "gantt"
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

// ParseLayout accepts "flame" or "gantt".
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "flame":
		return LayoutFlame, nil
	case "gantt":
		return LayoutGantt, nil
	}
	return 0, fmt.Errorf("unknown layout %q (want flame or gantt)", s)
}

// UnmarshalText lets a Layout be read from configuration.
func (l *Layout) UnmarshalText(text []byte) error {
	parsed, err := ParseLayout(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Palette is an ordered list of categorical colours.
type Palette []string

// Set3 is the 12-colour qualitative palette used by default.
var Set3 = Palette{
	"#8dd3c7", "#ffffb3", "#bebada", "#fb8072", "#80b1d3", "#fdb462",
	"#b3de69", "#fccde5", "#d9d9d9", "#bc80bd", "#ccebc5", "#ffed6f",
}

const minPaletteSize = 3

// ChoosePalette returns the first k colours of p, where k is n clamped to
// [3, len(p)].
func ChoosePalette(p Palette, n int) Palette {
	k := max(minPaletteSize, min(n, len(p)))
	if k > len(p) {
		k = len(p)
	}
	return p[:k]
}

const (
	rowOffset = 0.75
	ganttSpan = 0.9
	levelSpan = 0.1
)

// Annotate returns a copy of t with Top, Bottom and Color filled in. streams
// gives the visible streams in display order; rows on other streams are left
// out of the copy. labels fixes the colour of every label, so it should hold
// all labels of the trace and not only the visible ones.
func Annotate(t Table, streams, labels []string, palette Palette, layout Layout) Table {
	if len(palette) == 0 {
		palette = Set3
	}
	used := ChoosePalette(palette, len(labels))

	rank := make(map[string]int, len(streams))
	for i, s := range streams {
		rank[s] = i
	}
	colour := make(map[string]string, len(labels))
	for i, l := range labels {
		colour[l] = used[i%len(used)]
	}

	out := make(Table, 0, len(t))
	for _, e := range t {
		r, ok := rank[e.Stream]
		if !ok {
			continue
		}
		base := float64(len(streams)-r) - rowOffset
		switch layout {
		case LayoutGantt:
			e.Top = base
			e.Bottom = base + ganttSpan
		default:
			e.Bottom = base + float64(e.Depth)*levelSpan
			e.Top = base + float64(e.Depth+1)*levelSpan
		}
		e.Color = colour[e.Label]
		out = append(out, e)
	}
	return out
}
