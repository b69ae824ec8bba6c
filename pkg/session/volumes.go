package session

import (
	"slices"

	"volview/internal/models"
	"volview/pkg/logging"
	"volview/pkg/stitch"
	"volview/pkg/volume"
)

// guard returns the selected volumes if every window that shows one of them
// either shows only selected volumes or is stitched. Otherwise an in-place
// change would leave a window with volumes of different shapes.
func (s *Session) guard(op string) ([]*volume.Volume, error) {
	sel := s.selection()
	if len(sel) == 0 {
		return nil, models.Invalid(op, models.ErrInvalidArgument, "no volume selected")
	}
	for _, w := range s.Windows {
		if w.Stitched {
			continue
		}
		shown, all := false, true
		for _, v := range w.Volumes {
			if s.Selected[v.ID] {
				shown = true
			} else {
				all = false
			}
		}
		if shown && !all {
			return nil, models.Invalid(op, models.ErrShapeMismatch,
				"window %d also shows volumes that are not selected", w.ID)
		}
	}
	return sel, nil
}

// mutate applies fn to every selected volume after the guard passed, then
// re-derives the geometry of every window. A failure stops at that volume;
// volumes changed before it keep their change.
func (s *Session) mutate(op string, fn func(v *volume.Volume) error) error {
	sel, err := s.guard(op)
	if err != nil {
		return err
	}
	t := logging.NewTimer()
	defer s.refresh()
	for _, v := range sel {
		if err := fn(v); err != nil {
			return err
		}
	}
	t.Debugf("%s on %d volumes", op, len(sel))
	return nil
}

// refresh re-derives the placement and view range of every window whose
// volumes changed shape since it last looked.
func (s *Session) refresh() {
	for _, w := range s.Windows {
		current := versions(w.Volumes)
		if slices.Equal(current, w.versions) {
			w.View.Stale = true
			continue
		}
		if w.Stitched && w.Placement != nil {
			for i, v := range w.Volumes {
				if err := w.Placement.Resize(i, v.Shape().Spatial()); err != nil {
					logging.Errorf("window %d: %v", w.ID, err)
				}
			}
		}
		w.View.Reshape(w.extent())
		w.View.Stale = true
		w.versions = current
		if a := s.Alignment; a != nil && (a.Ref == w || a.Target == w) {
			logging.Warningf("window %d changed shape, alignment dropped", w.ID)
			s.Alignment = nil
		}
		logging.Debugf("re-derived %s", w)
	}
}

// Flip mirrors the selected volumes along a volume axis.
func (s *Session) Flip(axis int) error {
	return s.mutate("flip", func(v *volume.Volume) error { return v.Flip(axis) })
}

// Rotate90 turns the selected volumes by a quarter turn.
func (s *Session) Rotate90(pair [2]int, dir int) error {
	return s.mutate("rotate90", func(v *volume.Volume) error { return v.Rotate90(pair, dir) })
}

// Rotate turns the selected volumes by angle degrees.
func (s *Session) Rotate(angle float64, pair [2]int) error {
	return s.mutate("rotate", func(v *volume.Volume) error { return v.Rotate(angle, pair) })
}

// Resample scales the selected volumes per axis.
func (s *Session) Resample(scale [3]float64) error {
	return s.mutate("resample", func(v *volume.Volume) error { return v.Resample(scale) })
}

// ConvertBitDepth converts the selected volumes.
func (s *Session) ConvertBitDepth(to models.BitDepth) error {
	return s.mutate("convert bit depth", func(v *volume.Volume) error { return v.ConvertBitDepth(to) })
}

// Invert inverts the intensities of the selected volumes.
func (s *Session) Invert() error {
	return s.mutate("invert", func(v *volume.Volume) error { return v.Invert() })
}

// Normalize stretches the intensities of the selected volumes.
func (s *Session) Normalize(mode volume.NormalizeMode) error {
	return s.mutate("normalize", func(v *volume.Volume) error { return v.NormalizeIntensity(mode) })
}

// MoveVolume moves volume from to position to in the active window's draw
// order. Stitched tiles keep their offsets.
func (s *Session) MoveVolume(from, to int) error {
	w := s.ActiveWindow()
	if w == nil {
		return models.Invalid("move volume", models.ErrInvalidArgument, "no open window")
	}
	if _, err := w.volume(from); err != nil {
		return err
	}
	if _, err := w.volume(to); err != nil {
		return err
	}
	step := 1
	if to < from {
		step = -1
	}
	for i := from; i != to; i += step {
		j := i + step
		w.Volumes[i], w.Volumes[j] = w.Volumes[j], w.Volumes[i]
		w.Channels[i], w.Channels[j] = w.Channels[j], w.Channels[i]
		w.versions[i], w.versions[j] = w.versions[j], w.versions[i]
		if w.Placement != nil {
			if err := w.Placement.Swap(i, j); err != nil {
				return err
			}
		}
	}
	w.View.Stale = true
	return nil
}

// RemoveVolumes unloads the selected volumes. They disappear from every
// window; windows left empty are closed.
func (s *Session) RemoveVolumes() error {
	sel := s.selection()
	if len(sel) == 0 {
		return models.Invalid("remove volumes", models.ErrInvalidArgument, "no volume selected")
	}
	for i := len(s.Windows) - 1; i >= 0; i-- {
		w := s.Windows[i]
		for j := len(w.Volumes) - 1; j >= 0; j-- {
			if !s.Selected[w.Volumes[j].ID] {
				continue
			}
			if w.Placement != nil {
				if err := w.Placement.Remove(j); err != nil {
					return err
				}
			}
			w.Volumes = slices.Delete(w.Volumes, j, j+1)
			w.Channels = slices.Delete(w.Channels, j, j+1)
			w.versions = slices.Delete(w.versions, j, j+1)
		}
		if len(w.Volumes) == 0 {
			if err := s.CloseWindow(i); err != nil {
				return err
			}
			continue
		}
		w.View.Reshape(w.extent())
		w.View.Stale = true
	}
	s.Volumes = slices.DeleteFunc(s.Volumes, func(v *volume.Volume) bool { return s.Selected[v.ID] })
	logging.Infof("removed %d volumes", len(sel))
	clear(s.Selected)
	return nil
}

// Stitch places the volumes of the active window side by side.
func (s *Session) Stitch() error {
	w := s.ActiveWindow()
	if w == nil {
		return models.Invalid("stitch", models.ErrInvalidArgument, "no open window")
	}
	if s.Linked {
		return models.Invalid("stitch", models.ErrInvalidArgument, "windows are linked")
	}
	tiles := make([]stitch.Tile, len(w.Volumes))
	for i, v := range w.Volumes {
		tiles[i] = stitch.Tile{Extent: v.Shape().Spatial(), Stage: v.Stage, PixelSize: v.PixelSize}
	}
	w.Placement = stitch.Place(tiles)
	w.Stitched = true
	w.View.Reshape(w.extent())
	logging.Infof("stitched window %d: %v", w.ID, w.Placement)
	return nil
}

// Unstitch overlays the volumes of the active window again. They must share
// one spatial shape.
func (s *Session) Unstitch() error {
	w := s.ActiveWindow()
	if w == nil || !w.Stitched {
		return models.Invalid("unstitch", models.ErrInvalidArgument, "active window is not stitched")
	}
	if err := sameShape("unstitch", w.Volumes); err != nil {
		return err
	}
	w.Stitched = false
	w.Placement = nil
	w.View.Reshape(w.extent())
	return nil
}

func (s *Session) stitched(op string) (*Window, error) {
	w := s.ActiveWindow()
	if w == nil || !w.Stitched {
		return nil, models.Invalid(op, models.ErrInvalidArgument, "active window is not stitched")
	}
	return w, nil
}

// NudgeTiles moves tiles of the stitched active window by step pixels.
func (s *Session) NudgeTiles(tiles []int, axis, step int) error {
	w, err := s.stitched("nudge tiles")
	if err != nil {
		return err
	}
	if err := w.Placement.Nudge(tiles, axis, step); err != nil {
		return err
	}
	w.View.Reshape(w.extent())
	w.View.Stale = true
	return nil
}

// SetTileOffsets replaces the tile offsets of the stitched active window.
func (s *Session) SetTileOffsets(offsets []models.Point3) error {
	w, err := s.stitched("set tile offsets")
	if err != nil {
		return err
	}
	if err := w.Placement.SetOffsets(offsets); err != nil {
		return err
	}
	w.View.Reshape(w.extent())
	w.View.Stale = true
	return nil
}

// SetOverlap selects how overlapping tiles are resolved.
func (s *Session) SetOverlap(m stitch.OverlapMode) error {
	w, err := s.stitched("set overlap")
	if err != nil {
		return err
	}
	w.Overlap = m
	w.View.Stale = true
	return nil
}
