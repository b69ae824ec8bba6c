// Package stitch computes where each tile of a stitched window sits in the
// combined volume.
package stitch

import (
	"fmt"
	"math"

	"volview/internal/models"
	"volview/pkg/logging"
)

// Tile is the geometry of one stitched volume.
type Tile struct {
	// Extent is the (row, col, depth) size of the tile
	Extent [3]int

	// Stage is the physical stage position (row, col, depth) or nil
	Stage *[3]float64

	// PixelSize converts stage positions to pixels; zero means 1
	PixelSize models.PixelSize
}

// OverlapMode decides which tile wins where tiles overlap.
type OverlapMode int

const (
	// Max keeps the per-pixel maximum of all tiles
	Max OverlapMode = iota
	// Replace draws later tiles over earlier ones
	Replace
)

func (m OverlapMode) String() string {
	if m == Replace {
		return "replace"
	}
	return "max"
}

// ParseOverlap accepts "max" or "replace".
func ParseOverlap(s string) (OverlapMode, error) {
	switch s {
	case "", "max":
		return Max, nil
	case "replace":
		return Replace, nil
	}
	return Max, models.Invalid("parse overlap", models.ErrInvalidArgument, "unknown overlap mode %q", s)
}

// Nudge step sizes in pixels.
const (
	Fine   = 1
	Medium = 10
	Coarse = 100
)

// Placement is the result of placing a list of tiles.
type Placement struct {
	// Offsets holds one (row, col, depth) offset per tile
	Offsets []models.Point3

	// Extents holds the tile extents the offsets were computed for
	Extents [][3]int

	// Shape is the combined (row, col, depth) extent
	Shape [3]int
}

// Place computes offsets for tiles. When every tile has a stage position the
// positions are converted to pixels and used directly. Otherwise tiles are
// laid out on a grid of ceil(sqrt(n)) columns.
func Place(tiles []Tile) *Placement {
	p := &Placement{
		Offsets: make([]models.Point3, len(tiles)),
		Extents: make([][3]int, len(tiles)),
	}
	for i, t := range tiles {
		p.Extents[i] = t.Extent
	}
	if len(tiles) == 0 {
		return p
	}
	if allStaged(tiles) {
		for i, t := range tiles {
			for ax := 0; ax < 3; ax++ {
				ps := t.PixelSize.Axis(ax)
				if ps == 0 {
					ps = 1
				}
				p.Offsets[i][ax] = int(math.Round(t.Stage[ax] / ps))
			}
		}
		logging.Debugf("placed %d tiles from stage positions", len(tiles))
	} else {
		p.grid()
	}
	p.Recompute()
	return p
}

func allStaged(tiles []Tile) bool {
	for _, t := range tiles {
		if t.Stage == nil {
			return false
		}
	}
	return true
}

// grid lays the tiles out in rows of ceil(sqrt(n)) columns.
func (p *Placement) grid() {
	n := len(p.Extents)
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	row, col, rowHeight := 0, 0, 0
	for i, e := range p.Extents {
		if i > 0 && i%cols == 0 {
			row += rowHeight
			col, rowHeight = 0, 0
		}
		p.Offsets[i] = models.Point3{row, col, 0}
		col += e[models.AxisCol]
		rowHeight = max(rowHeight, e[models.AxisRow])
	}
}

// Recompute subtracts the per-axis minimum offset so that it is exactly
// zero and updates the combined shape.
func (p *Placement) Recompute() {
	p.Shape = [3]int{}
	if len(p.Offsets) == 0 {
		return
	}
	lo := p.Offsets[0]
	for _, o := range p.Offsets[1:] {
		for ax := range o {
			lo[ax] = min(lo[ax], o[ax])
		}
	}
	for i := range p.Offsets {
		p.Offsets[i] = p.Offsets[i].Sub(lo)
		for ax := 0; ax < 3; ax++ {
			p.Shape[ax] = max(p.Shape[ax], p.Offsets[i][ax]+p.Extents[i][ax])
		}
	}
}

func (p *Placement) check(op string, i int) error {
	if i < 0 || i >= len(p.Offsets) {
		return models.Invalid(op, models.ErrInvalidArgument, "tile %d of %d", i, len(p.Offsets))
	}
	return nil
}

// Resize records a new extent for tile i, as after a resample or rotation.
func (p *Placement) Resize(i int, extent [3]int) error {
	if err := p.check("resize tile", i); err != nil {
		return err
	}
	p.Extents[i] = extent
	p.Recompute()
	return nil
}

// Nudge moves the selected tiles by step pixels along axis.
func (p *Placement) Nudge(tiles []int, axis, step int) error {
	if axis < models.AxisRow || axis > models.AxisDepth {
		return models.Invalid("nudge", models.ErrInvalidArgument, "axis %d", axis)
	}
	for _, i := range tiles {
		if err := p.check("nudge", i); err != nil {
			return err
		}
	}
	for _, i := range tiles {
		p.Offsets[i][axis] += step
	}
	p.Recompute()
	return nil
}

// Swap exchanges the list positions of tiles i and j. Offsets stay with
// their tiles; only the draw order changes.
func (p *Placement) Swap(i, j int) error {
	if err := p.check("swap", i); err != nil {
		return err
	}
	if err := p.check("swap", j); err != nil {
		return err
	}
	p.Offsets[i], p.Offsets[j] = p.Offsets[j], p.Offsets[i]
	p.Extents[i], p.Extents[j] = p.Extents[j], p.Extents[i]
	return nil
}

// Remove drops tile i.
func (p *Placement) Remove(i int) error {
	if err := p.check("remove tile", i); err != nil {
		return err
	}
	p.Offsets = append(p.Offsets[:i], p.Offsets[i+1:]...)
	p.Extents = append(p.Extents[:i], p.Extents[i+1:]...)
	p.Recompute()
	return nil
}

// SetOffsets replaces all offsets, as when loading saved positions.
func (p *Placement) SetOffsets(offsets []models.Point3) error {
	if len(offsets) != len(p.Offsets) {
		return models.Invalid("set offsets", models.ErrShapeMismatch,
			"%d positions for %d tiles", len(offsets), len(p.Offsets))
	}
	copy(p.Offsets, offsets)
	p.Recompute()
	return nil
}

// Local translates a combined-volume position into tile i's coordinates.
// ok is false when the position falls outside the tile.
func (p *Placement) Local(i int, q models.Point3) (local models.Point3, ok bool) {
	local = q.Sub(p.Offsets[i])
	for ax := range local {
		if local[ax] < 0 || local[ax] >= p.Extents[i][ax] {
			return local, false
		}
	}
	return local, true
}

// LocalRange translates a combined-volume view range into tile i's
// coordinates and intersects it with the tile. ok is false when nothing of
// the tile is inside the range.
func (p *Placement) LocalRange(i int, r models.ViewRange) (local models.ViewRange, ok bool) {
	for ax := range r {
		lo := r[ax].Min - p.Offsets[i][ax]
		hi := r[ax].Max - p.Offsets[i][ax]
		lo, hi = max(lo, 0), min(hi, p.Extents[i][ax]-1)
		if lo > hi {
			return local, false
		}
		local[ax] = models.Range{Min: lo, Max: hi}
	}
	return local, true
}

func (p *Placement) String() string {
	return fmt.Sprintf("%d tiles, shape %v", len(p.Offsets), p.Shape)
}
