// Package view holds the per-window axis and depth selection: which volume
// axis is the depth axis, whether one index or a range is displayed, where
// the cursor is and which part of the volume is visible.
package view

import (
	"fmt"

	"golang.org/x/exp/constraints"

	"volview/internal/models"
)

// DepthAxis names the volume axis bound to slice/projection selection.
type DepthAxis int

const (
	Z DepthAxis = iota
	Y
	X
)

// Perm returns the fixed axis permutation for a depth axis.
func (a DepthAxis) Perm() models.Permutation {
	switch a {
	case Y:
		return models.PermY
	case X:
		return models.PermX
	}
	return models.PermZ
}

// Axis returns the volume axis index of a.
func (a DepthAxis) Axis() int {
	return a.Perm().Depth()
}

func (a DepthAxis) String() string {
	switch a {
	case Z:
		return "z"
	case Y:
		return "y"
	case X:
		return "x"
	}
	return fmt.Sprintf("DepthAxis(%d)", int(a))
}

// ParseDepthAxis accepts "x", "y" or "z".
func ParseDepthAxis(s string) (DepthAxis, error) {
	switch s {
	case "z", "Z":
		return Z, nil
	case "y", "Y":
		return Y, nil
	case "x", "X":
		return X, nil
	}
	return Z, models.Invalid("parse depth axis", models.ErrInvalidArgument, "unknown axis %q", s)
}

// Mode selects between a single depth index and a depth range.
type Mode int

const (
	Slice Mode = iota
	Projection
)

func (m Mode) String() string {
	if m == Projection {
		return "projection"
	}
	return "slice"
}

// State is the view of one window.
type State struct {
	// Depth is the axis stepped through by the index controls
	Depth DepthAxis

	// Mode is slice or projection
	Mode Mode

	// Perm is derived from Depth
	Perm models.Permutation

	// Index is the cursor in volume-axis order, always inside Range
	Index models.Point3

	// Range is the visible part of the volume in volume-axis order
	Range models.ViewRange

	// Extent is the (row, col, depth) size of the displayed volume or
	// stitched composite
	Extent [3]int

	// Downsample is the stride used when fetching planes, at least 1
	Downsample int

	// Stale is set whenever the raster geometry changes and cleared by the
	// renderer
	Stale bool

	// held is set once the user edits Range; Reshape then clips it instead
	// of resetting it
	held bool
}

// New returns a slice-mode Z view covering extent with the cursor in the
// middle of the depth axis.
func New(extent [3]int) *State {
	s := &State{
		Depth:      Z,
		Perm:       models.PermZ,
		Extent:     extent,
		Range:      models.FullView(extent),
		Downsample: 1,
		Stale:      true,
	}
	s.Index[models.AxisDepth] = (extent[models.AxisDepth] - 1) / 2
	s.Index = s.Range.ClampPoint(s.Index)
	return s
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SetDepthAxis selects the depth axis, derives the permutation and clamps
// the depth component of the index.
func (s *State) SetDepthAxis(a DepthAxis) error {
	if a < Z || a > X {
		return models.Invalid("set depth axis", models.ErrInvalidArgument, "unknown axis %d", a)
	}
	perm := a.Perm()
	if err := perm.Validate(); err != nil {
		return err
	}
	s.Depth, s.Perm = a, perm
	ax := perm.Depth()
	s.Index[ax] = s.Range[ax].Clamp(s.Index[ax])
	s.Stale = true
	return nil
}

// SetMode switches between slice and projection.
func (s *State) SetMode(m Mode) error {
	if m != Slice && m != Projection {
		return models.Invalid("set mode", models.ErrInvalidArgument, "unknown mode %d", m)
	}
	s.Mode = m
	s.Stale = true
	return nil
}

// SetIndex moves the cursor, clamped to the view range.
func (s *State) SetIndex(p models.Point3) {
	s.Index = s.Range.ClampPoint(p)
}

// DepthIndex returns the cursor position on the depth axis.
func (s *State) DepthIndex() int {
	return s.Index[s.Perm.Depth()]
}

// SetDepthIndex moves the cursor along the depth axis only.
func (s *State) SetDepthIndex(i int) {
	ax := s.Perm.Depth()
	s.Index[ax] = s.Range[ax].Clamp(i)
}

// StepIndex moves the cursor delta steps along the depth axis.
func (s *State) StepIndex(delta int) {
	s.SetDepthIndex(s.DepthIndex() + delta)
}

// DepthRange returns the view range along the depth axis.
func (s *State) DepthRange() models.Range {
	return s.Range[s.Perm.Depth()]
}

// SetRange replaces the view range. Bounds are clipped to the extent and the
// cursor is clamped into the result. The range is kept across reshapes.
func (s *State) SetRange(r models.ViewRange) {
	s.Range = r.Clip(s.Extent)
	s.Index = s.Range.ClampPoint(s.Index)
	s.held = true
	s.Stale = true
}

// SetAxisRange replaces the bounds of one volume axis.
func (s *State) SetAxisRange(axis int, r models.Range) error {
	if axis < models.AxisRow || axis > models.AxisDepth {
		return models.Invalid("set range", models.ErrInvalidArgument, "axis %d", axis)
	}
	if r.Min > r.Max {
		r.Min, r.Max = r.Max, r.Min
	}
	v := s.Range
	v[axis] = r
	s.SetRange(v)
	return nil
}

// ResetRange returns to the full extent.
func (s *State) ResetRange() {
	s.Range = models.FullView(s.Extent)
	s.Index = s.Range.ClampPoint(s.Index)
	s.held = false
	s.Stale = true
}

// Held reports whether the range was set explicitly.
func (s *State) Held() bool { return s.held }

// Reshape adopts a new extent after the displayed data changed shape.
func (s *State) Reshape(extent [3]int) {
	if extent == s.Extent {
		return
	}
	s.Extent = extent
	if s.held {
		s.Range = s.Range.Clip(extent)
	} else {
		s.Range = models.FullView(extent)
	}
	s.Index = s.Range.ClampPoint(s.Index)
	s.Stale = true
}

// SetDownsample sets the plane fetch stride.
func (s *State) SetDownsample(f int) {
	f = clamp(f, 1, max(1, s.Extent[s.Perm.Row()], s.Extent[s.Perm.Col()]))
	if f != s.Downsample {
		s.Downsample = f
		s.Stale = true
	}
}

// RasterSize returns the displayed (rows, cols) before downsampling.
func (s *State) RasterSize() (rows, cols int) {
	return s.Extent[s.Perm.Row()], s.Extent[s.Perm.Col()]
}

// Clone returns an independent copy.
func (s *State) Clone() *State {
	c := *s
	return &c
}

// CopyFrom makes s identical to o. Used by linked windows.
func (s *State) CopyFrom(o *State) {
	*s = *o
}

func (s *State) String() string {
	return fmt.Sprintf("%s %s index=%v range=%v", s.Depth, s.Mode, s.Index, s.Range)
}
