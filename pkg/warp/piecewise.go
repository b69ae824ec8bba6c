package warp

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/mat"

	"volview/internal/models"
	"volview/pkg/logging"
)

// boundaryRing returns the corners and edge midpoints of r.
func boundaryRing(r image.Rectangle) []Vec {
	x0, y0 := float64(r.Min.X), float64(r.Min.Y)
	x1, y1 := float64(r.Max.X), float64(r.Max.Y)
	xm, ym := (x0+x1)/2, (y0+y1)/2
	return []Vec{
		{x0, y0}, {xm, y0}, {x1, y0}, {x1, ym},
		{x1, y1}, {xm, y1}, {x0, y1}, {x0, ym},
	}
}

// triangleAffine solves for the affine taking the three src corners onto
// the three dst corners.
func triangleAffine(src, dst [3]Vec) (Affine, bool) {
	a := mat.NewDense(3, 3, []float64{
		src[0].X, src[0].Y, 1,
		src[1].X, src[1].Y, 1,
		src[2].X, src[2].Y, 1,
	})
	b := mat.NewDense(3, 2, []float64{
		dst[0].X, dst[0].Y,
		dst[1].X, dst[1].Y,
		dst[2].X, dst[2].Y,
	})
	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		return Affine{}, false
	}
	return Affine{
		x.At(0, 0), x.At(1, 0), x.At(2, 0),
		x.At(0, 1), x.At(1, 1), x.At(2, 1),
	}.snap(), true
}

// contains reports whether p lies in the closed triangle t, either winding.
func contains(t [3]Vec, p Vec) bool {
	const eps = 1e-9
	neg, pos := false, false
	for k := 0; k < 3; k++ {
		a, b := t[k], t[(k+1)%3]
		d := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
		neg = neg || d < -eps
		pos = pos || d > eps
	}
	return !(neg && pos)
}

// triangleMask marks the pixels of bounds whose centre lies in t and that
// no earlier triangle took. owned is indexed like the mask and updated.
func triangleMask(bounds image.Rectangle, t [3]Vec, owned []bool) *image.Alpha {
	mask := image.NewAlpha(bounds)
	x0 := math.Floor(math.Min(t[0].X, math.Min(t[1].X, t[2].X)))
	x1 := math.Ceil(math.Max(t[0].X, math.Max(t[1].X, t[2].X)))
	y0 := math.Floor(math.Min(t[0].Y, math.Min(t[1].Y, t[2].Y)))
	y1 := math.Ceil(math.Max(t[0].Y, math.Max(t[1].Y, t[2].Y)))
	box := image.Rect(int(x0), int(y0), int(x1), int(y1)).Intersect(bounds)
	w := bounds.Dx()
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			i := (y-bounds.Min.Y)*w + (x - bounds.Min.X)
			if owned[i] || !contains(t, Vec{float64(x) + 0.5, float64(y) + 0.5}) {
				continue
			}
			owned[i] = true
			mask.Pix[mask.PixOffset(x, y)] = 0xff
		}
	}
	return mask
}

// Piecewise warps src into dst with one affine per triangle of the
// landmark triangulation. srcPts[i] in src corresponds to dstPts[i] in dst;
// only the first min(len) pairs are used and at least two are required.
// The corners and edge midpoints of dst's bounds are added to both sets so
// the triangulation covers the whole destination. Each destination pixel is
// drawn by exactly one triangle, the first containing its centre.
func Piecewise(dst draw.Image, src image.Image, srcPts, dstPts []Vec) error {
	n := min(len(srcPts), len(dstPts))
	if n < 2 {
		return models.Invalid("piecewise warp", models.ErrInsufficientLandmarks,
			"%d paired landmarks, need at least 2", n)
	}
	ring := boundaryRing(dst.Bounds())
	s := append(append([]Vec(nil), srcPts[:n]...), ring...)
	d := append(append([]Vec(nil), dstPts[:n]...), ring...)

	tris := Delaunay(d)
	bounds := dst.Bounds()
	owned := make([]bool, bounds.Dx()*bounds.Dy())
	t := logging.NewTimer()
	drawn := 0
	for _, tr := range tris {
		dt := [3]Vec{d[tr[0]], d[tr[1]], d[tr[2]]}
		st := [3]Vec{s[tr[0]], s[tr[1]], s[tr[2]]}
		a, ok := triangleAffine(st, dt)
		if !ok {
			logging.Debugf("skipping degenerate triangle %v", dt)
			continue
		}
		mask := triangleMask(bounds, dt, owned)
		draw.BiLinear.Transform(dst, f64.Aff3(a), src, src.Bounds(), draw.Src,
			&draw.Options{DstMask: mask, DstMaskP: image.Point{}})
		drawn++
	}
	t.Debugf("piecewise warp: %d of %d triangles from %d landmarks", drawn, len(tris), n)
	return nil
}
