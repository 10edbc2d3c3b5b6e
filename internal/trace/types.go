package trace

// Event is one row of the canonical trace table.
type Event struct {
	Stream   string // Thread name or CPU index
	Label    string // Function or region name, opaque
	Start    int64  // Nanoseconds
	Finish   int64  // Nanoseconds
	Duration int64  // Nanoseconds, Finish - Start once finalized
	Depth    int    // Nesting level within Stream

	// Presentation only, derived by Annotate
	Top    float64
	Bottom float64
	Color  string
}

// Table is the canonical, format-independent event table. Row position is the
// identity of an event.
type Table []Event

// Clone returns a copy of the table that shares no rows with t.
func (t Table) Clone() Table {
	if t == nil {
		return nil
	}
	out := make(Table, len(t))
	copy(out, t)
	return out
}

// Streams returns the unique stream names in natural order.
func (t Table) Streams() []string {
	return uniqueNatural(t, func(e *Event) string { return e.Stream })
}

// Labels returns the unique labels in natural order.
func (t Table) Labels() []string {
	return uniqueNatural(t, func(e *Event) string { return e.Label })
}

// MaxDepth returns the largest depth in the table, or 0 for an empty table.
func (t Table) MaxDepth() int {
	maxDepth := 0
	for i := range t {
		if t[i].Depth > maxDepth {
			maxDepth = t[i].Depth
		}
	}
	return maxDepth
}

func uniqueNatural(t Table, key func(*Event) string) []string {
	seen := make(map[string]struct{})
	values := []string{}
	for i := range t {
		k := key(&t[i])
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		values = append(values, k)
	}
	SortNatural(values)
	return values
}
