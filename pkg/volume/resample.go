package volume

import (
	"math"

	"gonum.org/v1/gonum/interp"

	"volview/internal/models"
	"volview/pkg/logging"
)

// Resample rescales the volume by a factor per spatial axis (row, col,
// depth). Axes that shrink are area-averaged, axes that grow are linearly
// interpolated. Known pixel sizes are divided by the factor.
func (v *Volume) Resample(scale [3]float64) error {
	newExt := v.shape.Spatial()
	for ax, s := range scale {
		if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return models.Invalid("resample", models.ErrInvalidArgument, "scale %g on axis %d", s, ax)
		}
		newExt[ax] = int(math.Max(1, math.Round(float64(newExt[ax])*s)))
	}
	if newExt == v.shape.Spatial() {
		return nil
	}
	if err := v.materialize(); err != nil {
		return err
	}
	t := logging.NewTimer()

	max := v.MaxValue()
	shape := models.Shape{H: newExt[0], W: newExt[1], D: newExt[2], C: v.shape.C}
	planes := make([][][]uint16, shape.C)
	for c := range planes {
		data, ext := v.channelFloat(c), v.shape.Spatial()
		for ax := 0; ax < 3; ax++ {
			data, ext = resampleAxis(data, ext, ax, newExt[ax])
		}
		planes[c] = make([][]uint16, shape.D)
		n := shape.H * shape.W
		for z := range planes[c] {
			p := make([]uint16, n)
			for i, f := range data[z*n : (z+1)*n] {
				p[i] = uint16(math.Max(0, math.Min(max, math.Round(f))))
			}
			planes[c][z] = p
		}
	}

	var alpha []float32
	if v.alpha != nil {
		data := make([]float64, len(v.alpha))
		for i, a := range v.alpha {
			data[i] = float64(a)
		}
		ext := v.shape.Spatial()
		for ax := 0; ax < 3; ax++ {
			data, ext = resampleAxis(data, ext, ax, newExt[ax])
		}
		alpha = make([]float32, len(data))
		for i, a := range data {
			alpha[i] = float32(math.Max(0, math.Min(1, a)))
		}
	}

	if v.PixelSize.Y > 0 {
		v.PixelSize.Y /= scale[0]
	}
	if v.PixelSize.X > 0 {
		v.PixelSize.X /= scale[1]
	}
	if v.PixelSize.Z > 0 {
		v.PixelSize.Z /= scale[2]
	}
	old := v.shape
	v.setShape(shape, planes, alpha)
	t.Infof("resampled %s from %v to %v", v.Name, old, shape)
	return nil
}

// channelFloat copies channel c into a float buffer, index (z*H+y)*W+x.
func (v *Volume) channelFloat(c int) []float64 {
	n := v.shape.H * v.shape.W
	out := make([]float64, v.shape.Voxels())
	for z, p := range v.planes[c] {
		for i, s := range p {
			out[z*n+i] = float64(s)
		}
	}
	return out
}

// resampleAxis changes the length of one axis of a (row, col, depth) float
// volume stored as (z*H+y)*W+x.
func resampleAxis(data []float64, ext [3]int, axis, n2 int) ([]float64, [3]int) {
	n := ext[axis]
	if n == n2 {
		return data, ext
	}
	out := ext
	out[axis] = n2

	// strides of the three axes in the input and output layouts
	stride := func(e [3]int) [3]int { return [3]int{e[1], 1, e[0] * e[1]} }
	si, so := stride(ext), stride(out)

	res := make([]float64, out[0]*out[1]*out[2])
	line := make([]float64, n)
	dst := make([]float64, n2)
	var lin interp.PiecewiseLinear
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}

	// iterate over every line along axis
	o1, o2 := (axis+1)%3, (axis+2)%3
	for i := 0; i < ext[o1]; i++ {
		for j := 0; j < ext[o2]; j++ {
			base := i*si[o1] + j*si[o2]
			for k := 0; k < n; k++ {
				line[k] = data[base+k*si[axis]]
			}
			if n2 < n {
				areaAverage(line, dst)
			} else {
				linear(&lin, xs, line, dst)
			}
			obase := i*so[o1] + j*so[o2]
			for k := 0; k < n2; k++ {
				res[obase+k*so[axis]] = dst[k]
			}
		}
	}
	return res, out
}

// areaAverage shrinks src into dst; every output sample is the mean of the
// input interval it covers, with fractional weights at the edges.
func areaAverage(src, dst []float64) {
	ratio := float64(len(src)) / float64(len(dst))
	for i := range dst {
		lo, hi := float64(i)*ratio, float64(i+1)*ratio
		var sum float64
		for j := int(lo); j < len(src) && float64(j) < hi; j++ {
			w := math.Min(hi, float64(j+1)) - math.Max(lo, float64(j))
			sum += w * src[j]
		}
		dst[i] = sum / ratio
	}
}

// linear grows src into dst by sampling a piecewise-linear fit at the
// centres of the output samples.
func linear(lin *interp.PiecewiseLinear, xs, src, dst []float64) {
	if len(src) == 1 {
		for i := range dst {
			dst[i] = src[0]
		}
		return
	}
	lin.Fit(xs, src)
	scale := float64(len(src)) / float64(len(dst))
	for i := range dst {
		dst[i] = lin.Predict((float64(i)+0.5)*scale - 0.5)
	}
}
