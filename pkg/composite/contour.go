package composite

import (
	"image/color"

	"volview/internal/models"
	"volview/pkg/annotation"
	"volview/pkg/view"
)

// drawContour paints the external outline of region over the frame.
func drawContour(out *Raster, atlas *annotation.Atlas, region string, s *view.State, c color.RGBA) error {
	if atlas == nil {
		return models.Invalid("contour", models.ErrUnknownRegion, "no atlas loaded for %q", region)
	}
	if atlas.Extent != s.Extent {
		return models.Invalid("contour", models.ErrShapeMismatch,
			"atlas extent %v, view extent %v", atlas.Extent, s.Extent)
	}
	rng := s.DepthRange()
	if s.Mode == view.Slice {
		rng = models.Range{Min: s.DepthIndex(), Max: s.DepthIndex()}
	}
	mask, err := atlas.Mask(region, s.Perm, rng)
	if err != nil {
		return err
	}

	b := out.Image.Bounds()
	rows, cols := b.Dy(), b.Dx()
	ds := out.Downsample
	in := make([]bool, rows*cols)
	for r := 0; r < rows; r++ {
		for col := 0; col < cols; col++ {
			in[r*cols+col] = mask.At(r*ds, col*ds)
		}
	}
	for _, p := range externalContour(in, rows, cols) {
		out.Image.SetRGBA(p%cols, p/cols, c)
	}
	return nil
}

// externalContour returns the indices of member pixels that touch the
// background connected to the border. Outlines of holes are not included.
func externalContour(in []bool, rows, cols int) []int {
	// outside marks background reachable from the frame edge
	outside := make([]bool, len(in))
	var stack []int
	push := func(r, c int) {
		i := r*cols + c
		if !in[i] && !outside[i] {
			outside[i] = true
			stack = append(stack, i)
		}
	}
	for c := 0; c < cols; c++ {
		push(0, c)
		push(rows-1, c)
	}
	for r := 0; r < rows; r++ {
		push(r, 0)
		push(r, cols-1)
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		r, c := i/cols, i%cols
		if r > 0 {
			push(r-1, c)
		}
		if r < rows-1 {
			push(r+1, c)
		}
		if c > 0 {
			push(r, c-1)
		}
		if c < cols-1 {
			push(r, c+1)
		}
	}

	var contour []int
	for i, member := range in {
		if !member {
			continue
		}
		r, c := i/cols, i%cols
		// the frame edge counts as outside
		if r == 0 || c == 0 || r == rows-1 || c == cols-1 ||
			outside[i-cols] || outside[i+cols] || outside[i-1] || outside[i+1] {
			contour = append(contour, i)
		}
	}
	return contour
}
