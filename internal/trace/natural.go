package trace

import (
	"sort"

	"github.com/facette/natsort"
)

// NaturalLess orders strings so that embedded runs of digits compare by
// numeric value: "P2T0" sorts before "P10T0". Strings that natsort treats as
// equal ("7" and "007") fall back to length, then bytes, so the order is strict.
func NaturalLess(a, b string) bool {
	ab, ba := natsort.Compare(a, b), natsort.Compare(b, a)
	if ab != ba {
		return ab
	}
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// SortNatural sorts values in place in natural order.
func SortNatural(values []string) {
	sort.SliceStable(values, func(i, j int) bool {
		return NaturalLess(values[i], values[j])
	})
}
