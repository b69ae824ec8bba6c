package models

import (
	"fmt"
)

// Volume axes. A volume is stored as (height, width, depth, channel), so the
// spatial axes are numbered in that order.
const (
	AxisRow   = 0 // height, the Y axis
	AxisCol   = 1 // width, the X axis
	AxisDepth = 2 // depth, the Z axis
)

// Shape holds the dimensions of a volume
type Shape struct {
	// H is the number of rows (Y)
	H int

	// W is the number of columns (X)
	W int

	// D is the number of slices (Z)
	D int

	// C is the number of channels
	C int
}

// Dim returns the extent of the given spatial axis.
func (s Shape) Dim(axis int) int {
	switch axis {
	case AxisRow:
		return s.H
	case AxisCol:
		return s.W
	case AxisDepth:
		return s.D
	}
	return 0
}

// Spatial returns the three spatial extents in volume-axis order.
func (s Shape) Spatial() [3]int {
	return [3]int{s.H, s.W, s.D}
}

// Voxels returns the number of samples per channel.
func (s Shape) Voxels() int {
	return s.H * s.W * s.D
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", s.H, s.W, s.D, s.C)
}

// BitDepth is the number of bits per stored sample.
type BitDepth int

const (
	Bits8  BitDepth = 8
	Bits16 BitDepth = 16
)

// MaxValue returns the largest sample value representable at this bit depth.
func (b BitDepth) MaxValue() float64 {
	if b == Bits16 {
		return 65535
	}
	return 255
}

// Valid reports whether b is a supported bit depth.
func (b BitDepth) Valid() bool {
	return b == Bits8 || b == Bits16
}

// PixelSize is the physical size of a voxel in micrometres. A zero component
// means the size along that axis is unknown.
type PixelSize struct {
	Y, X, Z float64
}

// Axis returns the size along the given volume axis.
func (p PixelSize) Axis(axis int) float64 {
	switch axis {
	case AxisRow:
		return p.Y
	case AxisCol:
		return p.X
	case AxisDepth:
		return p.Z
	}
	return 0
}

// Point3 is an integer position in volume-axis order (row, col, depth).
type Point3 [3]int

// Add returns p+q component-wise.
func (p Point3) Add(q Point3) Point3 {
	return Point3{p[0] + q[0], p[1] + q[1], p[2] + q[2]}
}

// Sub returns p-q component-wise.
func (p Point3) Sub(q Point3) Point3 {
	return Point3{p[0] - q[0], p[1] - q[1], p[2] - q[2]}
}

// ColorMask is the subset of display components {R,G,B} a channel is drawn into.
type ColorMask uint8

const (
	Red   ColorMask = 1 << iota
	Green
	Blue

	Magenta = Red | Blue
	Gray    = Red | Green | Blue
)

// Has reports whether component k (0=R, 1=G, 2=B) is part of the mask.
func (m ColorMask) Has(k int) bool {
	return m&(1<<uint(k)) != 0
}

func (m ColorMask) String() string {
	switch m {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	case Magenta:
		return "magenta"
	case Gray:
		return "gray"
	}
	return fmt.Sprintf("rgb(%03b)", uint8(m))
}

// ParseColor converts a colour preset name into a mask.
func ParseColor(name string) (ColorMask, error) {
	switch name {
	case "red", "Red", "r":
		return Red, nil
	case "green", "Green", "g":
		return Green, nil
	case "blue", "Blue", "b":
		return Blue, nil
	case "magenta", "Magenta", "m":
		return Magenta, nil
	case "gray", "Gray", "grey", "Grey":
		return Gray, nil
	}
	return 0, Invalid("parse color", ErrInvalidArgument, "unknown colour %q", name)
}

// DefaultColors returns the colour assignment used for a freshly loaded
// volume with n channels: magenta/green for two channels, R/G/B for three,
// gray for everything else.
func DefaultColors(n int) []ColorMask {
	colors := make([]ColorMask, n)
	switch n {
	case 2:
		colors[0], colors[1] = Magenta, Green
	case 3:
		colors[0], colors[1], colors[2] = Red, Green, Blue
	default:
		for i := range colors {
			colors[i] = Gray
		}
	}
	return colors
}
