// Package composite renders the volumes of one window into an RGB raster.
//
// Every channel is fetched for the current slice or projection, mapped
// through its level window and gamma and accumulated into the colour
// components it is assigned to. Channels of one volume combine by maximum.
// Volumes are then drawn in list order: over-blended with their opacity in a
// plain window, or resolved with the overlap mode in a stitched window.
package composite

import (
	"image"
	"image/color"
	"math"

	"volview/internal/models"
	"volview/pkg/annotation"
	"volview/pkg/logging"
	"volview/pkg/stitch"
	"volview/pkg/view"
	"volview/pkg/volume"
)

// displayMax is the full-scale display intensity.
const displayMax = 255

// Layer is one volume drawn into the window.
type Layer struct {
	Volume *volume.Volume

	// Channels lists the channels to draw; nil draws all of them and an
	// empty list draws none
	Channels []int
}

// Request describes one frame.
type Request struct {
	View   *view.State
	Layers []Layer

	// Placement is set for stitched windows, one tile per layer
	Placement *stitch.Placement
	Overlap   stitch.OverlapMode

	// Normalize stretches the finished frame to the full display range
	Normalize bool

	// Atlas and Regions select contour overlays
	Atlas        *annotation.Atlas
	Regions      []string
	ContourColor color.RGBA
}

// Raster is a rendered frame.
type Raster struct {
	Image *image.RGBA

	// Downsample is the stride the frame was sampled with
	Downsample int

	// Perm is the axis permutation the frame was drawn with
	Perm models.Permutation

	// Skipped lists the stitched tiles that had nothing at the current index
	Skipped []int
}

// Crop returns the part of the frame inside vr. The result shares pixels
// with the frame.
func (r *Raster) Crop(vr models.ViewRange) *image.RGBA {
	rows, cols := vr[r.Perm.Row()], vr[r.Perm.Col()]
	ds := r.Downsample
	rect := image.Rect(cols.Min/ds, rows.Min/ds, cols.Max/ds+1, rows.Max/ds+1)
	return r.Image.SubImage(rect.Intersect(r.Image.Bounds())).(*image.RGBA)
}

// canvas holds the frame in display units, one plane per colour component.
type canvas struct {
	rows, cols int
	rgb        [3][]float64
}

func newCanvas(rows, cols int) *canvas {
	c := &canvas{rows: rows, cols: cols}
	for k := range c.rgb {
		c.rgb[k] = make([]float64, rows*cols)
	}
	return c
}

// Render draws one frame.
func Render(req Request) (*Raster, error) {
	s := req.View
	if s == nil {
		return nil, models.Invalid("render", models.ErrInvalidArgument, "no view state")
	}
	if err := s.Perm.Validate(); err != nil {
		return nil, err
	}
	stitched := req.Placement != nil
	if stitched && len(req.Placement.Offsets) != len(req.Layers) {
		return nil, models.Invalid("render", models.ErrShapeMismatch,
			"%d tiles placed for %d layers", len(req.Placement.Offsets), len(req.Layers))
	}
	for i, l := range req.Layers {
		if l.Volume == nil {
			return nil, models.Invalid("render", models.ErrInvalidArgument, "layer %d has no volume", i)
		}
	}

	ds := max(s.Downsample, 1)
	rows, cols := s.RasterSize()
	cv := newCanvas((rows+ds-1)/ds, (cols+ds-1)/ds)
	out := &Raster{Downsample: ds, Perm: s.Perm}

	for i, l := range req.Layers {
		var offset models.Point3
		if stitched {
			offset = req.Placement.Offsets[i]
		}
		rng, ok := depthRange(s, l.Volume.Shape(), offset)
		if !ok {
			logging.Debugf("tile %d (%s) has no data at depth %d, skipped", i, l.Volume.Name, s.DepthIndex())
			out.Skipped = append(out.Skipped, i)
			continue
		}
		if err := cv.drawLayer(s, l, rng, offset, stitched, req.Overlap); err != nil {
			return nil, err
		}
	}

	if req.Normalize {
		cv.normalize()
	}
	out.Image = cv.image()

	for _, region := range req.Regions {
		if err := drawContour(out, req.Atlas, region, s, req.ContourColor); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// depthRange returns the layer-local depth range to reduce over, or false
// when the layer has nothing at the current index or range.
func depthRange(s *view.State, shape models.Shape, offset models.Point3) (models.Range, bool) {
	ax := s.Perm.Depth()
	n := shape.Dim(ax)
	off := offset[ax]
	if s.Mode == view.Slice {
		i := s.DepthIndex() - off
		if i < 0 || i >= n {
			return models.Range{}, false
		}
		return models.Range{Min: i, Max: i}, true
	}
	r := s.DepthRange()
	lo, hi := max(r.Min-off, 0), min(r.Max-off, n-1)
	if lo > hi {
		return models.Range{}, false
	}
	return models.Range{Min: lo, Max: hi}, true
}

// drawLayer accumulates the channels of one volume and blends the result
// into the canvas.
func (cv *canvas) drawLayer(s *view.State, l Layer, rng models.Range, offset models.Point3,
	stitched bool, overlap stitch.OverlapMode) error {
	v := l.Volume
	channels := l.Channels
	if channels != nil && len(channels) == 0 {
		return nil
	}
	if channels == nil {
		channels = make([]int, v.Shape().C)
		for c := range channels {
			channels[c] = c
		}
	}
	planes, err := v.Projection(s.Perm, rng, channels)
	if err != nil {
		return err
	}
	var alpha []float32
	if !stitched {
		alpha = v.AlphaProjection(s.Perm, rng)
	}

	var touched [3]bool
	for _, c := range channels {
		for k := range touched {
			touched[k] = touched[k] || v.Channels[c].Color.Has(k)
		}
	}

	ds := max(s.Downsample, 1)
	offRow, offCol := offset[s.Perm.Row()], offset[s.Perm.Col()]
	tileRows, tileCols := planes[0].Rows, planes[0].Cols

	// canvas rows/cols whose sample position falls inside the tile
	r0, r1 := ceilDiv(offRow, ds), min(cv.rows, ceilDiv(offRow+tileRows, ds))
	c0, c1 := ceilDiv(offCol, ds), min(cv.cols, ceilDiv(offCol+tileCols, ds))

	var px [3]float64
	for r := r0; r < r1; r++ {
		tr := r*ds - offRow
		for c := c0; c < c1; c++ {
			tc := c*ds - offCol
			px = [3]float64{}
			for i, ch := range channels {
				d := v.Channels[ch]
				val := d.Apply(float64(planes[i].At(tr, tc)), displayMax)
				for k := range px {
					if d.Color.Has(k) && val > px[k] {
						px[k] = val
					}
				}
			}
			idx := r*cv.cols + c
			a := v.Alpha
			if alpha != nil {
				a *= float64(alpha[tr*tileCols+tc])
			}
			for k := range px {
				if !touched[k] {
					continue
				}
				dst := &cv.rgb[k][idx]
				switch {
				case !stitched:
					*dst = *dst*(1-a) + px[k]*a
				case overlap == stitch.Replace:
					*dst = px[k]
				default:
					*dst = math.Max(*dst, px[k])
				}
			}
		}
	}
	return nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// normalize stretches all components together to [0, displayMax].
func (cv *canvas) normalize() {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range cv.rgb {
		for _, v := range p {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if !(hi > lo) {
		return
	}
	scale := displayMax / (hi - lo)
	for _, p := range cv.rgb {
		for i, v := range p {
			p[i] = (v - lo) * scale
		}
	}
}

func (cv *canvas) image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cv.cols, cv.rows))
	for i := 0; i < cv.rows*cv.cols; i++ {
		o := i * 4
		for k := 0; k < 3; k++ {
			img.Pix[o+k] = uint8(math.Max(0, math.Min(displayMax, math.Round(cv.rgb[k][i]))))
		}
		img.Pix[o+3] = 0xff
	}
	return img
}
