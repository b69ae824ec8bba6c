package session

import (
	"math"
	"slices"

	"volview/internal/models"
	"volview/pkg/view"
	"volview/pkg/volume"
)

// SetDepthAxis selects the axis stepped through by the index controls.
func (s *Session) SetDepthAxis(a view.DepthAxis) error {
	err := s.fanOut(func(w *Window) error {
		return w.View.SetDepthAxis(a)
	})
	s.propagate()
	return err
}

// SetMode switches between slice and projection display.
func (s *Session) SetMode(m view.Mode) error {
	return s.fanOut(func(w *Window) error {
		return w.View.SetMode(m)
	})
}

// SetIndex moves the cursor of the active window.
func (s *Session) SetIndex(p models.Point3) error {
	err := s.fanOut(func(w *Window) error {
		w.View.SetIndex(p)
		return nil
	})
	s.propagate()
	return err
}

// StepIndex moves the cursor delta steps along the depth axis.
func (s *Session) StepIndex(delta int) error {
	err := s.fanOut(func(w *Window) error {
		w.View.StepIndex(delta)
		return nil
	})
	s.propagate()
	return err
}

// SetRange replaces the view range.
func (s *Session) SetRange(r models.ViewRange) error {
	for a := range r {
		if r[a].Min > r[a].Max {
			return models.Invalid("set range", models.ErrInvalidArgument, "axis %d bounds %v", a, r[a])
		}
	}
	return s.fanOut(func(w *Window) error {
		w.View.SetRange(r)
		return nil
	})
}

// ResetRange returns to the full extent.
func (s *Session) ResetRange() error {
	return s.fanOut(func(w *Window) error {
		w.View.ResetRange()
		return nil
	})
}

// SetDownsample sets the plane fetch stride.
func (s *Session) SetDownsample(f int) error {
	return s.fanOut(func(w *Window) error {
		w.View.SetDownsample(f)
		return nil
	})
}

// ShowChannels limits volume vi of the window to the given channels. A nil
// list shows every channel, an empty one hides the volume.
func (s *Session) ShowChannels(vi int, channels []int) error {
	return s.fanOut(func(w *Window) error {
		v, err := w.volume(vi)
		if err != nil {
			return err
		}
		for _, c := range channels {
			if c < 0 || c >= v.Shape().C {
				return models.Invalid("show channels", models.ErrInvalidArgument, "%s has no channel %d", v.Name, c)
			}
		}
		w.Channels[vi] = slices.Clone(channels)
		w.View.Stale = true
		return nil
	})
}

// SetNormalize switches frame renormalisation.
func (s *Session) SetNormalize(on bool) error {
	return s.fanOut(func(w *Window) error {
		w.Normalize = on
		w.View.Stale = true
		return nil
	})
}

// SetRegions selects the atlas regions outlined in the window.
func (s *Session) SetRegions(regions []string) error {
	if len(regions) > 0 && s.Atlas == nil {
		return models.Invalid("set regions", models.ErrUnknownRegion, "no atlas loaded")
	}
	names := map[string]bool{}
	if s.Atlas != nil {
		for _, n := range s.Atlas.RegionNames() {
			names[n] = true
		}
	}
	for _, r := range regions {
		if !names[r] {
			return models.Invalid("set regions", models.ErrUnknownRegion, "%q", r)
		}
	}
	return s.fanOut(func(w *Window) error {
		w.Regions = append([]string(nil), regions...)
		w.View.Stale = true
		return nil
	})
}

func (w *Window) volume(vi int) (*volume.Volume, error) {
	if vi < 0 || vi >= len(w.Volumes) {
		return nil, models.Invalid("volume", models.ErrInvalidArgument, "window %d has no volume %d", w.ID, vi)
	}
	return w.Volumes[vi], nil
}

// display applies op to volume vi of every target window.
func (s *Session) display(vi int, op func(v *volume.Volume) error) error {
	return s.fanOut(func(w *Window) error {
		v, err := w.volume(vi)
		if err != nil {
			return err
		}
		if err := op(v); err != nil {
			return err
		}
		w.View.Stale = true
		return nil
	})
}

// SetChannelColor assigns channel c of volume vi to a set of components.
func (s *Session) SetChannelColor(vi, c int, color models.ColorMask) error {
	return s.display(vi, func(v *volume.Volume) error {
		return v.SetColor(c, color)
	})
}

// SetLevels sets the level window of channel c of volume vi.
func (s *Session) SetLevels(vi, c int, low, high float64) error {
	return s.display(vi, func(v *volume.Volume) error {
		return v.SetLevels(c, low, high)
	})
}

// SetGamma sets the gamma of channel c of volume vi, clamped to the
// configured bounds.
func (s *Session) SetGamma(vi, c int, gamma float64) error {
	if math.IsNaN(gamma) {
		return models.Invalid("set gamma", models.ErrInvalidArgument, "gamma is NaN")
	}
	gamma = math.Max(s.cfg.Display.MinGamma, math.Min(s.cfg.Display.MaxGamma, gamma))
	return s.display(vi, func(v *volume.Volume) error {
		return v.SetGamma(c, gamma)
	})
}

// SetBinary switches channel c of volume vi to threshold display.
func (s *Session) SetBinary(vi, c int, on bool) error {
	return s.display(vi, func(v *volume.Volume) error {
		return v.SetBinary(c, on)
	})
}

// SetAlpha sets the opacity of volume vi.
func (s *Session) SetAlpha(vi int, alpha float64) error {
	return s.display(vi, func(v *volume.Volume) error {
		v.SetAlpha(alpha)
		return nil
	})
}

// ResetLevels restores the default display of volume vi. Nil channels
// resets all of them.
func (s *Session) ResetLevels(vi int, channels []int) error {
	return s.display(vi, func(v *volume.Volume) error {
		cs := channels
		if cs == nil {
			cs = allChannels(v)
		}
		return v.ResetDisplay(cs)
	})
}

// Histogram returns the 256-bin histogram of volume vi of the active window.
func (s *Session) Histogram(vi int, channels []int) ([256]int, error) {
	w := s.ActiveWindow()
	if w == nil {
		return [256]int{}, models.Invalid("histogram", models.ErrInvalidArgument, "no open window")
	}
	v, err := w.volume(vi)
	if err != nil {
		return [256]int{}, err
	}
	if channels == nil {
		channels = allChannels(v)
	}
	return v.Histogram(channels)
}

func allChannels(v *volume.Volume) []int {
	cs := make([]int, v.Shape().C)
	for c := range cs {
		cs[c] = c
	}
	return cs
}
