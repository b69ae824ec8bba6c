package models

import (
	"fmt"
)

// Permutation selects which volume axis is drawn along the raster rows,
// which along the raster columns and which is the depth axis.
type Permutation [3]int

// The three canonical permutations, one per depth axis.
var (
	PermZ = Permutation{AxisRow, AxisCol, AxisDepth}
	PermY = Permutation{AxisDepth, AxisCol, AxisRow}
	PermX = Permutation{AxisRow, AxisDepth, AxisCol}
)

// Row returns the volume axis bound to raster rows.
func (p Permutation) Row() int { return p[0] }

// Col returns the volume axis bound to raster columns.
func (p Permutation) Col() int { return p[1] }

// Depth returns the volume axis bound to slice/projection selection.
func (p Permutation) Depth() int { return p[2] }

// Validate returns ErrInvariant unless p is one of the canonical permutations.
func (p Permutation) Validate() error {
	switch p {
	case PermZ, PermY, PermX:
		return nil
	}
	return fmt.Errorf("permutation %v: %w", [3]int(p), ErrInvariant)
}

// Range is an inclusive integer interval [Min, Max].
type Range struct {
	Min, Max int
}

// Len returns the number of integers in the range.
func (r Range) Len() int {
	return r.Max - r.Min + 1
}

// Contains reports whether i lies inside the range.
func (r Range) Contains(i int) bool {
	return i >= r.Min && i <= r.Max
}

// Clamp returns i limited to the range.
func (r Range) Clamp(i int) int {
	if i < r.Min {
		return r.Min
	}
	if i > r.Max {
		return r.Max
	}
	return i
}

// Full returns the range covering an axis of length n.
func Full(n int) Range {
	if n < 1 {
		return Range{}
	}
	return Range{0, n - 1}
}

// ViewRange holds one inclusive range per volume axis (row, col, depth).
type ViewRange [3]Range

// FullView returns the view range covering the whole of extent.
func FullView(extent [3]int) ViewRange {
	return ViewRange{Full(extent[0]), Full(extent[1]), Full(extent[2])}
}

// Clip limits every bound to [0, extent-1] and repairs min > max.
func (v ViewRange) Clip(extent [3]int) ViewRange {
	for ax := range v {
		full := Full(extent[ax])
		r := v[ax]
		r.Min = full.Clamp(r.Min)
		r.Max = full.Clamp(r.Max)
		if r.Min > r.Max {
			r.Min = r.Max
		}
		v[ax] = r
	}
	return v
}

// ClampPoint moves p inside the view range.
func (v ViewRange) ClampPoint(p Point3) Point3 {
	for ax := range p {
		p[ax] = v[ax].Clamp(p[ax])
	}
	return p
}

// Contains reports whether p lies inside the range on every axis.
func (v ViewRange) Contains(p Point3) bool {
	for ax := range p {
		if !v[ax].Contains(p[ax]) {
			return false
		}
	}
	return true
}
