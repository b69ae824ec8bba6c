// Package warp maps a moving raster into the frame of a reference raster,
// either with one global affine per slice or with a landmark-driven
// piecewise-affine transform.
//
// Coordinates follow golang.org/x/image/draw: x runs along columns, y along
// rows, and the centre of pixel (i, j) is at (i+0.5, j+0.5).
package warp

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Affine is a 2x3 matrix mapping a source position (x, y) to
// (A[0]*x + A[1]*y + A[2], A[3]*x + A[4]*y + A[5]).
type Affine [6]float64

// Identity is the affine that leaves positions unchanged.
var Identity = Affine{1, 0, 0, 0, 1, 0}

// Apply maps a position.
func (a Affine) Apply(x, y float64) (float64, float64) {
	return a[0]*x + a[1]*y + a[2], a[3]*x + a[4]*y + a[5]
}

// Det returns the determinant of the linear part.
func (a Affine) Det() float64 {
	return a[0]*a[4] - a[1]*a[3]
}

// Invert returns the inverse mapping. ok is false for singular matrices.
func (a Affine) Invert() (inv Affine, ok bool) {
	det := a.Det()
	if math.Abs(det) < 1e-12 {
		return inv, false
	}
	inv[0], inv[1] = a[4]/det, -a[1]/det
	inv[3], inv[4] = -a[3]/det, a[0]/det
	inv[2] = -(inv[0]*a[2] + inv[1]*a[5])
	inv[5] = -(inv[3]*a[2] + inv[4]*a[5])
	return inv.snap(), true
}

// snap rounds coefficients that are integers up to rounding noise, so that
// identities and pure shifts sample pixel centres exactly.
func (a Affine) snap() Affine {
	for i, v := range a {
		if r := math.Round(v); math.Abs(v-r) < 1e-9 {
			a[i] = r
		}
	}
	return a
}

// Warp draws src into dst through a, which maps source positions to
// destination positions. Destination pixels with no source are left alone.
func (a Affine) Warp(dst draw.Image, src image.Image) {
	draw.BiLinear.Transform(dst, f64.Aff3(a.snap()), src, src.Bounds(), draw.Src, nil)
}

func (a Affine) String() string {
	return fmt.Sprintf("[%.4g %.4g %.4g; %.4g %.4g %.4g]", a[0], a[1], a[2], a[3], a[4], a[5])
}
