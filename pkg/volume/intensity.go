package volume

import (
	"math"

	"volview/internal/models"
)

// NormalizeMode selects the extent over which intensities are stretched.
type NormalizeMode int

const (
	PerVolume NormalizeMode = iota
	PerSlice
)

// ConvertBitDepth rescales every sample to the new bit depth. Stored level
// windows are rescaled by the same factor so the display does not change.
func (v *Volume) ConvertBitDepth(to models.BitDepth) error {
	if !to.Valid() {
		return models.Invalid("convert bit depth", models.ErrInvalidArgument, "unsupported bit depth %d", to)
	}
	if to == v.bits {
		return nil
	}
	if err := v.materialize(); err != nil {
		return err
	}
	from, max := v.bits.MaxValue(), to.MaxValue()
	for _, ch := range v.planes {
		for _, p := range ch {
			for i, s := range p {
				p[i] = uint16(math.Min(max, math.Round(float64(s)*max/from)))
			}
		}
	}
	for c := range v.Channels {
		v.Channels[c].Low = v.Channels[c].Low * max / from
		v.Channels[c].High = v.Channels[c].High * max / from
	}
	v.bits = to
	return nil
}

// Invert replaces every sample s with max-s.
func (v *Volume) Invert() error {
	if err := v.materialize(); err != nil {
		return err
	}
	max := uint16(v.MaxValue())
	for _, ch := range v.planes {
		for _, p := range ch {
			for i, s := range p {
				p[i] = max - s
			}
		}
	}
	return nil
}

// NormalizeIntensity stretches each channel linearly so its minimum maps to
// 0 and its maximum to the full-scale value, either over the whole volume or
// independently for every depth slice. Constant regions are left alone.
func (v *Volume) NormalizeIntensity(mode NormalizeMode) error {
	if mode != PerVolume && mode != PerSlice {
		return models.Invalid("normalize", models.ErrInvalidArgument, "unknown mode %d", mode)
	}
	if err := v.materialize(); err != nil {
		return err
	}
	max := v.MaxValue()
	for _, ch := range v.planes {
		if mode == PerSlice {
			for _, p := range ch {
				lo, hi := minMax(p)
				stretch(p, lo, hi, max)
			}
			continue
		}
		lo, hi := uint16(math.MaxUint16), uint16(0)
		for _, p := range ch {
			l, h := minMax(p)
			if l < lo {
				lo = l
			}
			if h > hi {
				hi = h
			}
		}
		for _, p := range ch {
			stretch(p, lo, hi, max)
		}
	}
	return nil
}

func minMax(p []uint16) (lo, hi uint16) {
	lo = math.MaxUint16
	for _, s := range p {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	return lo, hi
}

func stretch(p []uint16, lo, hi uint16, max float64) {
	if hi <= lo {
		return
	}
	scale := max / float64(hi-lo)
	for i, s := range p {
		p[i] = uint16(math.Round(float64(s-lo) * scale))
	}
}
