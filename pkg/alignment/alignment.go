// Package alignment maps depth indices of one volume onto the depth axis of
// a reference volume so that two unlinked windows can follow each other.
package alignment

import (
	"fmt"

	"volview/internal/models"
)

// None marks a reference index without a correspondence.
const None = -1

// Map is the correspondence table from reference depth indices to target
// depth indices. It is read-only once built.
type Map struct {
	// Start and End are the inclusive reference bounds; End < Start means the
	// target runs backwards along the reference
	Start, End int

	// Target is the target depth range the reference bounds are spread over
	Target models.Range

	table []int
}

// Build spreads the target range evenly over the reference positions
// [start, end]. The reference span must be at least as long as the target
// range.
func Build(start, end, refLength int, target models.Range) (*Map, error) {
	if refLength < 1 {
		return nil, models.Invalid("build alignment", models.ErrInvalidArgument, "reference length %d", refLength)
	}
	full := models.Full(refLength)
	if !full.Contains(start) || !full.Contains(end) {
		return nil, models.Invalid("build alignment", models.ErrInvalidArgument,
			"bounds [%d,%d] outside reference axis of length %d", start, end, refLength)
	}
	if target.Min > target.Max || target.Min < 0 {
		return nil, models.Invalid("build alignment", models.ErrInvalidArgument, "target range %v", target)
	}
	dir := 1
	if end < start {
		dir = -1
	}
	n := (end-start)*dir + 1
	rangeLen := target.Len()
	if n < rangeLen {
		return nil, models.Invalid("build alignment", models.ErrRangeTooShort,
			"%d reference slices for %d target slices", n, rangeLen)
	}

	m := &Map{Start: start, End: end, Target: target, table: make([]int, refLength)}
	for i := range m.table {
		m.table[i] = None
	}
	for i := 0; i < n; i++ {
		// integer i*L/n; i/(n/L) in floating point can drop a step early
		m.table[start+dir*i] = i*rangeLen/n + target.Min
	}
	return m, nil
}

// Len returns the reference axis length.
func (m *Map) Len() int { return len(m.table) }

// Forward returns the target index for reference index ref, or None.
func (m *Map) Forward(ref int) int {
	if ref < 0 || ref >= len(m.table) {
		return None
	}
	return m.table[ref]
}

// Reverse returns the reference index for target index t. When several
// reference indices share t the middle one of the run is returned. It
// returns None when t is not mapped.
func (m *Map) Reverse(t int) int {
	first, last := None, None
	for ref, v := range m.table {
		if v != t {
			continue
		}
		if first == None {
			first = ref
		}
		last = ref
	}
	if first == None {
		return None
	}
	return (first + last) / 2
}

func (m *Map) String() string {
	return fmt.Sprintf("alignment [%d,%d] -> %v", m.Start, m.End, m.Target)
}
