package warp

import (
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"volview/internal/models"
	"volview/pkg/logging"
	"volview/pkg/volume"
)

// Mask is a binary silhouette stored as 0/1 floats in raster order.
type Mask struct {
	Rows, Cols int
	Pix        []float64
}

// Silhouette thresholds a plane into a binary mask. A threshold <= 0 uses
// the mean sample value of the plane.
func Silhouette(p volume.Plane, threshold float64) *Mask {
	m := &Mask{Rows: p.Rows, Cols: p.Cols, Pix: make([]float64, len(p.Pix))}
	for i, s := range p.Pix {
		m.Pix[i] = float64(s)
	}
	if threshold <= 0 {
		threshold = stat.Mean(m.Pix, nil)
	}
	for i, s := range m.Pix {
		if s > threshold {
			m.Pix[i] = 1
		} else {
			m.Pix[i] = 0
		}
	}
	return m
}

// Empty reports whether no pixel is set.
func (m *Mask) Empty() bool {
	for _, v := range m.Pix {
		if v != 0 {
			return false
		}
	}
	return true
}

// sample returns the bilinear interpolation of the mask at continuous
// position (x, y); outside the mask is 0.
func (m *Mask) sample(x, y float64) float64 {
	x, y = x-0.5, y-0.5
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)
	at := func(c, r int) float64 {
		if c < 0 || r < 0 || c >= m.Cols || r >= m.Rows {
			return 0
		}
		return m.Pix[r*m.Cols+c]
	}
	top := at(ix, iy)*(1-fx) + at(ix+1, iy)*fx
	bot := at(ix, iy+1)*(1-fx) + at(ix+1, iy+1)*fx
	return top*(1-fy) + bot*fy
}

// Options controls the global affine optimiser.
type Options struct {
	// MaxIterations bounds the major iterations of the optimiser
	MaxIterations int

	// Tolerance is the absolute change in correlation treated as converged
	Tolerance float64

	// SimplexSize is the initial simplex size in parameter units; the
	// translation parameters are measured in image sizes
	SimplexSize float64
}

// DefaultOptions are used for zero fields.
var DefaultOptions = Options{MaxIterations: 400, Tolerance: 1e-6, SimplexSize: 0.05}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultOptions.MaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultOptions.Tolerance
	}
	if o.SimplexSize <= 0 {
		o.SimplexSize = DefaultOptions.SimplexSize
	}
	return o
}

// frame relates the optimiser parameters to a destination-to-source affine.
// The linear part acts about the image centres, so the zero vector is the
// identity for equally sized masks.
type frame struct {
	ref, mov *Mask
}

func (f frame) dstToSrc(p []float64) Affine {
	cdx, cdy := float64(f.ref.Cols)/2, float64(f.ref.Rows)/2
	csx, csy := float64(f.mov.Cols)/2, float64(f.mov.Rows)/2
	a, b := 1+p[0], p[1]
	c, d := p[2], 1+p[3]
	tx, ty := p[4]*float64(f.ref.Cols), p[5]*float64(f.ref.Rows)
	return Affine{
		a, b, csx + tx - a*cdx - b*cdy,
		c, d, csy + ty - c*cdx - d*cdy,
	}
}

// warped resamples the moving mask into the reference frame.
func (f frame) warped(p []float64, out []float64) {
	m := f.dstToSrc(p)
	for r := 0; r < f.ref.Rows; r++ {
		y := float64(r) + 0.5
		for c := 0; c < f.ref.Cols; c++ {
			sx, sy := m.Apply(float64(c)+0.5, y)
			out[r*f.ref.Cols+c] = f.mov.sample(sx, sy)
		}
	}
}

// EstimateGlobal finds the affine that maps mov onto ref by maximising the
// Pearson correlation of the two silhouettes. The translation is
// initialised from the peak of their cross-correlation and refined together
// with the linear part by Nelder-Mead. It returns the source-to-destination
// affine and the correlation reached.
func EstimateGlobal(ref, mov *Mask, opt Options) (Affine, float64, error) {
	if ref.Empty() || mov.Empty() {
		return Identity, 0, models.Invalid("estimate affine", models.ErrInvalidArgument, "empty silhouette")
	}
	opt = opt.withDefaults()
	f := frame{ref: ref, mov: mov}

	dx, dy := crossCorrelationShift(ref, mov)
	// shift about the centres instead of the origins
	tx := float64(dx) - (float64(mov.Cols)-float64(ref.Cols))/2
	ty := float64(dy) - (float64(mov.Rows)-float64(ref.Rows))/2
	x0 := []float64{0, 0, 0, 0, tx / float64(ref.Cols), ty / float64(ref.Rows)}

	buf := make([]float64, len(ref.Pix))
	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			f.warped(p, buf)
			corr := stat.Correlation(ref.Pix, buf, nil)
			if math.IsNaN(corr) {
				return 1
			}
			return -corr
		},
	}
	settings := &optimize.Settings{
		MajorIterations: opt.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   opt.Tolerance,
			Iterations: 20,
		},
	}
	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{SimplexSize: opt.SimplexSize})
	if result == nil {
		return Identity, 0, err
	}
	if err != nil {
		logging.Debugf("affine optimiser stopped early: %v", err)
	}

	d2s := f.dstToSrc(result.Location.X)
	s2d, ok := d2s.Invert()
	if !ok {
		return Identity, 0, models.Invalid("estimate affine", models.ErrInvalidArgument, "optimiser produced a singular matrix")
	}
	corr := -result.Location.F
	logging.Debugf("affine %v, correlation %.4f after %d evaluations", s2d, corr, result.Stats.FuncEvaluations)
	return s2d, corr, nil
}
