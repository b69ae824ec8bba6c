package volume

import (
	"math"

	"volview/internal/models"
)

// Display holds the parameters that turn one channel's samples into display
// intensities.
type Display struct {
	// Low and High are the level window in sample units
	Low, High float64

	// Gamma is applied after the level window; 1 is linear
	Gamma float64

	// Color selects the RGB components the channel is drawn into
	Color models.ColorMask

	// Binary thresholds at High instead of applying the level window
	Binary bool
}

func defaultDisplay(bits models.BitDepth, color models.ColorMask) Display {
	return Display{Low: 0, High: bits.MaxValue(), Gamma: 1, Color: color}
}

// Apply maps one sample to display units in [0, maxVal].
func (d Display) Apply(in, maxVal float64) float64 {
	if d.Binary {
		if in >= d.High {
			return maxVal
		}
		return 0
	}
	width := d.High - d.Low
	if width <= 0 {
		width = 1
	}
	out := in - d.Low
	if out < 0 {
		out = 0
	} else if out > width {
		out = width
	}
	out *= maxVal / width
	if d.Gamma != 1 {
		out = math.Pow(out/maxVal, d.Gamma) * maxVal
	}
	return out
}

func (v *Volume) checkChannel(op string, c int) error {
	if c < 0 || c >= v.shape.C {
		return models.Invalid(op, models.ErrInvalidArgument, "channel %d outside [0,%d)", c, v.shape.C)
	}
	return nil
}

// SetLevels sets the level window of channel c. Values are clamped to
// [0, max] and high is kept above low.
func (v *Volume) SetLevels(c int, low, high float64) error {
	if err := v.checkChannel("set levels", c); err != nil {
		return err
	}
	max := v.MaxValue()
	low = math.Max(0, math.Min(low, max-1))
	high = math.Max(low+1, math.Min(high, max))
	v.Channels[c].Low, v.Channels[c].High = low, high
	return nil
}

// Gamma bounds applied by SetGamma.
const (
	MinGamma = 0.05
	MaxGamma = 3.0
)

// SetGamma sets the gamma of channel c, clamped to [MinGamma, MaxGamma].
func (v *Volume) SetGamma(c int, gamma float64) error {
	if err := v.checkChannel("set gamma", c); err != nil {
		return err
	}
	if math.IsNaN(gamma) {
		return models.Invalid("set gamma", models.ErrInvalidArgument, "gamma is NaN")
	}
	v.Channels[c].Gamma = math.Max(MinGamma, math.Min(MaxGamma, gamma))
	return nil
}

// SetColor assigns channel c to a set of display components.
func (v *Volume) SetColor(c int, color models.ColorMask) error {
	if err := v.checkChannel("set color", c); err != nil {
		return err
	}
	if color == 0 || color > models.Gray {
		return models.Invalid("set color", models.ErrInvalidArgument, "empty colour mask")
	}
	v.Channels[c].Color = color
	return nil
}

// SetBinary switches channel c between level-window and threshold display.
func (v *Volume) SetBinary(c int, on bool) error {
	if err := v.checkChannel("set binary", c); err != nil {
		return err
	}
	v.Channels[c].Binary = on
	return nil
}

// SetAlpha sets the scalar opacity, clamped to [0,1].
func (v *Volume) SetAlpha(alpha float64) {
	v.Alpha = math.Max(0, math.Min(1, alpha))
}

// ResetDisplay restores full-range levels, gamma 1 and opacity 1 for the
// given channels. Colours are kept.
func (v *Volume) ResetDisplay(channels []int) error {
	for _, c := range channels {
		if err := v.checkChannel("reset display", c); err != nil {
			return err
		}
	}
	for _, c := range channels {
		v.Channels[c].Low = 0
		v.Channels[c].High = v.MaxValue()
		v.Channels[c].Gamma = 1
		v.Channels[c].Binary = false
	}
	v.Alpha = 1
	return nil
}

// Histogram counts samples of the given channels in 256 equal-width bins
// covering [0, max].
func (v *Volume) Histogram(channels []int) ([256]int, error) {
	var hist [256]int
	scale := 256 / (v.MaxValue() + 1)
	for _, c := range channels {
		if err := v.checkChannel("histogram", c); err != nil {
			return hist, err
		}
		for z := 0; z < v.shape.D; z++ {
			p, err := v.plane(z, c)
			if err != nil {
				return hist, err
			}
			for _, s := range p {
				hist[int(float64(s)*scale)]++
			}
		}
	}
	return hist, nil
}
