package volume

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"volview/internal/models"
	"volview/pkg/logging"
)

func checkAxis(op string, axis int) error {
	if axis < models.AxisRow || axis > models.AxisDepth {
		return models.Invalid(op, models.ErrInvalidArgument, "axis %d is not a spatial axis", axis)
	}
	return nil
}

func checkPair(op string, pair [2]int) error {
	if err := checkAxis(op, pair[0]); err != nil {
		return err
	}
	if err := checkAxis(op, pair[1]); err != nil {
		return err
	}
	if pair[0] == pair[1] {
		return models.Invalid(op, models.ErrInvalidArgument, "axis pair %v repeats an axis", pair)
	}
	return nil
}

// remap rebuilds every channel (and the alpha mask) into a volume with the
// given spatial extent. src maps a destination coordinate (row, col, depth)
// to the source coordinate it is copied from.
func (v *Volume) remap(ext [3]int, src func(q [3]int) [3]int) {
	h, w := v.shape.H, v.shape.W
	shape := models.Shape{H: ext[0], W: ext[1], D: ext[2], C: v.shape.C}
	planes := make([][][]uint16, shape.C)
	for c := range planes {
		planes[c] = make([][]uint16, shape.D)
		for z := range planes[c] {
			dst := make([]uint16, shape.H*shape.W)
			for y := 0; y < shape.H; y++ {
				for x := 0; x < shape.W; x++ {
					o := src([3]int{y, x, z})
					dst[y*shape.W+x] = v.planes[c][o[2]][o[0]*w+o[1]]
				}
			}
			planes[c][z] = dst
		}
	}
	var alpha []float32
	if v.alpha != nil {
		alpha = make([]float32, shape.Voxels())
		for z := 0; z < shape.D; z++ {
			for y := 0; y < shape.H; y++ {
				for x := 0; x < shape.W; x++ {
					o := src([3]int{y, x, z})
					alpha[(z*shape.H+y)*shape.W+x] = v.alpha[(o[2]*h+o[0])*w+o[1]]
				}
			}
		}
	}
	v.setShape(shape, planes, alpha)
}

// Flip mirrors the volume along one spatial axis. The shape is unchanged.
func (v *Volume) Flip(axis int) error {
	if err := checkAxis("flip", axis); err != nil {
		return err
	}
	if err := v.materialize(); err != nil {
		return err
	}
	ext := v.shape.Spatial()
	version := v.version
	v.remap(ext, func(q [3]int) [3]int {
		q[axis] = ext[axis] - 1 - q[axis]
		return q
	})
	// a flip never changes the shape
	v.version = version
	return nil
}

// Rotate90 rotates the volume by 90 degrees in the plane of the axis pair.
// dir > 0 turns from the second axis towards the first (counter-clockwise
// for the (row, col) pair), dir < 0 turns the other way. The extents of the
// two axes are swapped, as are their pixel sizes.
func (v *Volume) Rotate90(pair [2]int, dir int) error {
	if err := checkPair("rotate90", pair); err != nil {
		return err
	}
	if dir == 0 {
		return models.Invalid("rotate90", models.ErrInvalidArgument, "direction must be non-zero")
	}
	if err := v.materialize(); err != nil {
		return err
	}
	a, b := pair[0], pair[1]
	old := v.shape.Spatial()
	ext := old
	ext[a], ext[b] = old[b], old[a]
	v.remap(ext, func(q [3]int) [3]int {
		o := q
		if dir > 0 {
			o[a], o[b] = q[b], old[b]-1-q[a]
		} else {
			o[a], o[b] = old[a]-1-q[b], q[a]
		}
		return o
	})
	ps := [3]float64{v.PixelSize.Y, v.PixelSize.X, v.PixelSize.Z}
	ps[a], ps[b] = ps[b], ps[a]
	v.PixelSize = models.PixelSize{Y: ps[0], X: ps[1], Z: ps[2]}
	return nil
}

// Rotate turns every plane spanned by the axis pair by angle degrees
// (counter-clockwise as displayed) using bilinear resampling. The canvas
// grows to the bounding box of the rotated plane; uncovered samples are 0.
func (v *Volume) Rotate(angle float64, pair [2]int) error {
	if err := checkPair("rotate", pair); err != nil {
		return err
	}
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return models.Invalid("rotate", models.ErrInvalidArgument, "angle %g", angle)
	}
	if err := v.materialize(); err != nil {
		return err
	}
	t := logging.NewTimer()
	a, b := pair[0], pair[1]
	rest := 3 - a - b
	old := v.shape.Spatial()

	theta := angle * math.Pi / 180
	sin, cos := math.Sincos(theta)
	// quarter turns must map pixel centres exactly
	sin, cos = snap(sin), snap(cos)
	// rows of the rotated plane run along axis a, columns along axis b
	srcW, srcH := float64(old[b]), float64(old[a])
	dstW := int(math.Ceil(math.Abs(srcW*cos)+math.Abs(srcH*sin)-1e-9))
	dstH := int(math.Ceil(math.Abs(srcW*sin)+math.Abs(srcH*cos)-1e-9))
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}
	cx, cy := srcW/2, srcH/2
	dx, dy := float64(dstW)/2, float64(dstH)/2
	s2d := f64.Aff3{
		cos, sin, dx - cos*cx - sin*cy,
		-sin, cos, dy + sin*cx - cos*cy,
	}

	ext := old
	ext[a], ext[b] = dstH, dstW
	shape := models.Shape{H: ext[0], W: ext[1], D: ext[2], C: v.shape.C}

	planes := make([][][]uint16, shape.C)
	for c := range planes {
		planes[c] = make([][]uint16, shape.D)
		for z := range planes[c] {
			planes[c][z] = make([]uint16, shape.H*shape.W)
		}
	}
	var alpha []float32
	if v.alpha != nil {
		alpha = make([]float32, shape.Voxels())
	}

	get := func(c int, q [3]int) uint16 { return v.planes[c][q[2]][q[0]*old[1]+q[1]] }
	set := func(c int, q [3]int, s uint16) { planes[c][q[2]][q[0]*ext[1]+q[1]] = s }
	getAlpha := func(q [3]int) uint16 {
		return uint16(v.alpha[(q[2]*old[0]+q[0])*old[1]+q[1]]*65535 + 0.5)
	}
	setAlpha := func(q [3]int, s uint16) {
		alpha[(q[2]*ext[0]+q[0])*ext[1]+q[1]] = float32(s) / 65535
	}

	src := image.NewGray16(image.Rect(0, 0, old[b], old[a]))
	dst := image.NewGray16(image.Rect(0, 0, dstW, dstH))
	rotate := func(read func(q [3]int) uint16, write func(q [3]int, s uint16), k int) {
		var q [3]int
		q[rest] = k
		for y := 0; y < old[a]; y++ {
			for x := 0; x < old[b]; x++ {
				q[a], q[b] = y, x
				putGray16(src, x, y, read(q))
			}
		}
		clear(dst.Pix)
		draw.BiLinear.Transform(dst, s2d, src, src.Bounds(), draw.Src, nil)
		for y := 0; y < dstH; y++ {
			for x := 0; x < dstW; x++ {
				q[a], q[b] = y, x
				write(q, getGray16(dst, x, y))
			}
		}
	}

	for k := 0; k < old[rest]; k++ {
		for c := 0; c < shape.C; c++ {
			c := c
			rotate(func(q [3]int) uint16 { return get(c, q) },
				func(q [3]int, s uint16) { set(c, q, s) }, k)
		}
		if alpha != nil {
			rotate(getAlpha, setAlpha, k)
		}
	}
	v.setShape(shape, planes, alpha)
	t.Infof("rotated %s by %.1f degrees to %v", v.Name, angle, shape)
	return nil
}

func snap(f float64) float64 {
	if r := math.Round(f); math.Abs(f-r) < 1e-12 {
		return r
	}
	return f
}

func putGray16(img *image.Gray16, x, y int, s uint16) {
	i := img.PixOffset(x, y)
	img.Pix[i] = uint8(s >> 8)
	img.Pix[i+1] = uint8(s)
}

func getGray16(img *image.Gray16, x, y int) uint16 {
	i := img.PixOffset(x, y)
	return uint16(img.Pix[i])<<8 | uint16(img.Pix[i+1])
}
