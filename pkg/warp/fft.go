package warp

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// fft2D transforms a rows x cols complex image in place, rows first and then
// columns. inverse selects the unnormalised inverse transform.
func fft2D(data []complex128, rows, cols int, inverse bool) {
	rowFFT := fourier.NewCmplxFFT(cols)
	for r := 0; r < rows; r++ {
		line := data[r*cols : (r+1)*cols]
		if inverse {
			rowFFT.Sequence(line, line)
		} else {
			rowFFT.Coefficients(line, line)
		}
	}
	colFFT := fourier.NewCmplxFFT(rows)
	col := make([]complex128, rows)
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			col[r] = data[r*cols+c]
		}
		if inverse {
			colFFT.Sequence(col, col)
		} else {
			colFFT.Coefficients(col, col)
		}
		for r := 0; r < rows; r++ {
			data[r*cols+c] = col[r]
		}
	}
}

// crossCorrelationShift returns the integer shift (dx, dy) for which
// mov(x+dx, y+dy) best matches ref(x, y). Both masks are zero padded to
// twice the larger extent so the correlation does not wrap.
func crossCorrelationShift(ref, mov *Mask) (dx, dy int) {
	rows := 2 * max(ref.Rows, mov.Rows)
	cols := 2 * max(ref.Cols, mov.Cols)
	pad := func(m *Mask) []complex128 {
		out := make([]complex128, rows*cols)
		for r := 0; r < m.Rows; r++ {
			for c := 0; c < m.Cols; c++ {
				out[r*cols+c] = complex(m.Pix[r*m.Cols+c], 0)
			}
		}
		return out
	}
	f, g := pad(ref), pad(mov)
	fft2D(f, rows, cols, false)
	fft2D(g, rows, cols, false)
	for i := range f {
		f[i] = cmplx.Conj(f[i]) * g[i]
	}
	fft2D(f, rows, cols, true)

	best, bi := real(f[0]), 0
	for i, v := range f {
		if real(v) > best {
			best, bi = real(v), i
		}
	}
	dy, dx = bi/cols, bi%cols
	if dy >= rows/2 {
		dy -= rows
	}
	if dx >= cols/2 {
		dx -= cols
	}
	return dx, dy
}
