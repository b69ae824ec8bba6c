package volume

import (
	"volview/internal/models"
)

// Plane is a 2D array of samples in raster order.
type Plane struct {
	Rows, Cols int
	Pix        []uint16
}

// At returns the sample at raster position (r, c).
func (p Plane) At(r, c int) uint16 {
	return p.Pix[r*p.Cols+c]
}

// Extent returns the volume extents in raster (rows, cols, depth) order for
// the given permutation.
func Extent(shape models.Shape, perm models.Permutation) [3]int {
	s := shape.Spatial()
	return [3]int{s[perm.Row()], s[perm.Col()], s[perm.Depth()]}
}

// Slice returns, for each requested channel, the plane at depth index along
// perm's depth axis.
func (v *Volume) Slice(perm models.Permutation, index int, channels []int) ([]Plane, error) {
	return v.Projection(perm, models.Range{Min: index, Max: index}, channels)
}

// Projection returns, for each requested channel, the element-wise maximum
// over the inclusive depth range rng along perm's depth axis.
func (v *Volume) Projection(perm models.Permutation, rng models.Range, channels []int) ([]Plane, error) {
	if err := perm.Validate(); err != nil {
		return nil, err
	}
	depthLen := v.shape.Dim(perm.Depth())
	if rng.Min < 0 || rng.Max >= depthLen || rng.Min > rng.Max {
		return nil, models.Invalid("projection", models.ErrInvalidArgument,
			"range [%d,%d] outside depth axis of length %d", rng.Min, rng.Max, depthLen)
	}
	for _, c := range channels {
		if err := v.checkChannel("projection", c); err != nil {
			return nil, err
		}
	}

	ext := Extent(v.shape, perm)
	out := make([]Plane, len(channels))
	for i, c := range channels {
		p := Plane{Rows: ext[0], Cols: ext[1], Pix: make([]uint16, ext[0]*ext[1])}
		var err error
		switch perm.Depth() {
		case models.AxisDepth:
			err = v.projectZ(p, c, rng)
		case models.AxisRow:
			err = v.projectY(p, c, rng)
		default:
			err = v.projectX(p, c, rng)
		}
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// projectZ reduces stored planes directly: rows=H, cols=W.
func (v *Volume) projectZ(out Plane, c int, rng models.Range) error {
	for z := rng.Min; z <= rng.Max; z++ {
		src, err := v.plane(z, c)
		if err != nil {
			return err
		}
		for i, s := range src {
			if s > out.Pix[i] {
				out.Pix[i] = s
			}
		}
	}
	return nil
}

// projectY uses rows=D, cols=W and reduces over image rows.
func (v *Volume) projectY(out Plane, c int, rng models.Range) error {
	w := v.shape.W
	for z := 0; z < v.shape.D; z++ {
		src, err := v.plane(z, c)
		if err != nil {
			return err
		}
		dst := out.Pix[z*w : (z+1)*w]
		for y := rng.Min; y <= rng.Max; y++ {
			for x, s := range src[y*w : (y+1)*w] {
				if s > dst[x] {
					dst[x] = s
				}
			}
		}
	}
	return nil
}

// projectX uses rows=H, cols=D and reduces over image columns.
func (v *Volume) projectX(out Plane, c int, rng models.Range) error {
	w, d := v.shape.W, v.shape.D
	for z := 0; z < d; z++ {
		src, err := v.plane(z, c)
		if err != nil {
			return err
		}
		for y := 0; y < v.shape.H; y++ {
			row := src[y*w : (y+1)*w]
			m := out.Pix[y*d+z]
			for x := rng.Min; x <= rng.Max; x++ {
				if row[x] > m {
					m = row[x]
				}
			}
			out.Pix[y*d+z] = m
		}
	}
	return nil
}

// AlphaProjection returns the per-pixel opacity for the same geometry as
// Projection, reduced by maximum. It returns nil when the volume has no
// alpha mask.
func (v *Volume) AlphaProjection(perm models.Permutation, rng models.Range) []float32 {
	if v.alpha == nil || perm.Validate() != nil {
		return nil
	}
	ext := Extent(v.shape, perm)
	out := make([]float32, ext[0]*ext[1])
	var q [3]int
	for r := 0; r < ext[0]; r++ {
		q[perm.Row()] = r
		for col := 0; col < ext[1]; col++ {
			q[perm.Col()] = col
			var m float32
			for d := rng.Min; d <= rng.Max; d++ {
				q[perm.Depth()] = d
				if a := v.alpha[(q[2]*v.shape.H+q[0])*v.shape.W+q[1]]; a > m {
					m = a
				}
			}
			out[r*ext[1]+col] = m
		}
	}
	return out
}
