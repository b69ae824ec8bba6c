// Package landmark keeps the user-placed points of one window and pairs
// them with another window's points for warping.
package landmark

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"volview/internal/models"
)

// Point is a landmark position in volume-axis order. Positions are
// zero-based and may be fractional.
type Point struct {
	Row, Col, Depth float64
}

// Axis returns the coordinate along a volume axis.
func (p Point) Axis(axis int) float64 {
	switch axis {
	case models.AxisRow:
		return p.Row
	case models.AxisCol:
		return p.Col
	}
	return p.Depth
}

// Set is an ordered list of landmarks. Order matters: the i-th landmark of
// one set is paired with the i-th landmark of another.
type Set struct {
	points []Point
	tree   *kdtree.Tree
}

// Len returns the number of landmarks.
func (s *Set) Len() int { return len(s.points) }

// Points returns a copy of the landmarks.
func (s *Set) Points() []Point {
	return append([]Point(nil), s.points...)
}

// Add appends a landmark.
func (s *Set) Add(p Point) {
	s.points = append(s.points, p)
	s.tree = nil
}

// Remove deletes landmark i.
func (s *Set) Remove(i int) error {
	if i < 0 || i >= len(s.points) {
		return models.Invalid("remove landmark", models.ErrInvalidArgument, "landmark %d of %d", i, len(s.points))
	}
	s.points = append(s.points[:i], s.points[i+1:]...)
	s.tree = nil
	return nil
}

// Replace swaps in a whole list, as when loading saved points.
func (s *Set) Replace(points []Point) {
	s.points = append([]Point(nil), points...)
	s.tree = nil
}

// Clear removes all landmarks.
func (s *Set) Clear() {
	s.points = nil
	s.tree = nil
}

// OnSlice returns the indices of the landmarks lying on depth index along
// the given volume axis.
func (s *Set) OnSlice(axis, index int) []int {
	var out []int
	for i, p := range s.points {
		if int(math.Round(p.Axis(axis))) == index {
			out = append(out, i)
		}
	}
	return out
}

// Slice returns the landmarks lying on depth index along axis as a new set,
// in their original order.
func (s *Set) Slice(axis, index int) *Set {
	sub := &Set{}
	for _, i := range s.OnSlice(axis, index) {
		sub.points = append(sub.points, s.points[i])
	}
	return sub
}

// Pair returns the first min(len(src), len(dst)) landmarks of both sets.
// At least two pairs are needed.
func Pair(src, dst *Set) ([]Point, []Point, error) {
	n := min(src.Len(), dst.Len())
	if n < 2 {
		return nil, nil, models.Invalid("pair landmarks", models.ErrInsufficientLandmarks,
			"%d paired landmarks, need at least 2", n)
	}
	return src.Points()[:n], dst.Points()[:n], nil
}

// Nearest returns the index of the landmark closest to q, provided it is
// within maxDist.
func (s *Set) Nearest(q Point, maxDist float64) (int, bool) {
	if len(s.points) == 0 {
		return -1, false
	}
	if s.tree == nil {
		pts := make(indexedPoints, len(s.points))
		for i, p := range s.points {
			pts[i] = indexedPoint{Point: p, index: i}
		}
		s.tree = kdtree.New(pts, false)
	}
	c, d := s.tree.Nearest(indexedPoint{Point: q, index: -1})
	if c == nil || d > maxDist*maxDist {
		return -1, false
	}
	return c.(indexedPoint).index, true
}

func (s *Set) String() string {
	return fmt.Sprintf("%d landmarks", len(s.points))
}

// indexedPoint remembers its position in the set
type indexedPoint struct {
	Point
	index int
}

// Compare implements the kdtree.Comparable interface
func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(indexedPoint)
	return p.Axis(int(d)) - q.Axis(int(d))
}

// Dims returns the number of dimensions for the KD-tree
func (p indexedPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(indexedPoint)
	dr, dc, dd := p.Row-q.Row, p.Col-q.Col, p.Depth-q.Depth
	return dr*dr + dc*dc + dd*dd
}

// indexedPoints satisfies kdtree.Interface
type indexedPoints []indexedPoint

func (p indexedPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p indexedPoints) Len() int                              { return len(p) }
func (p indexedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p indexedPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(plane{indexedPoints: p, Dim: d}, kdtree.MedianOfRandoms(plane{indexedPoints: p, Dim: d}, 100))
}

// plane implements kdtree.SortSlicer along one dimension
type plane struct {
	indexedPoints
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	return p.indexedPoints[i].Axis(int(p.Dim)) < p.indexedPoints[j].Axis(int(p.Dim))
}

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{indexedPoints: p.indexedPoints[start:end], Dim: p.Dim}
}

func (p plane) Swap(i, j int) {
	p.indexedPoints[i], p.indexedPoints[j] = p.indexedPoints[j], p.indexedPoints[i]
}
