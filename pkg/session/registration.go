package session

import (
	"image"
	"image/color"

	"volview/internal/models"
	"volview/pkg/alignment"
	"volview/pkg/composite"
	"volview/pkg/landmark"
	"volview/pkg/logging"
	"volview/pkg/warp"
)

// ActivateAlignment ties the depth index of window target to window ref.
// The inclusive ref depth range [start, end] is spread evenly over target's
// depth range; start > end reverses the direction.
func (s *Session) ActivateAlignment(ref, target, start, end int) error {
	rw, err := s.window(ref)
	if err != nil {
		return err
	}
	tw, err := s.window(target)
	if err != nil {
		return err
	}
	if rw == tw {
		return models.Invalid("activate alignment", models.ErrInvalidArgument, "window aligned to itself")
	}
	refLength := rw.View.Extent[rw.View.Perm.Depth()]
	m, err := alignment.Build(start, end, refLength, tw.View.DepthRange())
	if err != nil {
		return err
	}
	s.Alignment = &Alignment{Ref: rw, Target: tw, Map: m, RefAxis: rw.View.Depth, TargetAxis: tw.View.Depth}
	logging.Infof("aligned window %d to window %d: %v", tw.ID, rw.ID, m)
	s.follow(rw)
	return nil
}

// DeactivateAlignment stops index propagation.
func (s *Session) DeactivateAlignment() {
	s.Alignment = nil
}

// activeAlignment returns the alignment, dropping it first if either of
// its windows changed depth axis since it was built.
func (s *Session) activeAlignment() *Alignment {
	a := s.Alignment
	if a == nil {
		return nil
	}
	if a.Ref.View.Depth != a.RefAxis || a.Target.View.Depth != a.TargetAxis {
		logging.Warningf("window %d or %d changed depth axis, alignment dropped", a.Ref.ID, a.Target.ID)
		s.Alignment = nil
		return nil
	}
	return a
}

// propagate carries an index change of the active window across the
// alignment. Linked windows already move together.
func (s *Session) propagate() {
	if s.activeAlignment() == nil || s.Linked {
		return
	}
	if w := s.ActiveWindow(); w != nil {
		s.follow(w)
	}
}

// follow moves the other side of the alignment to match w.
func (s *Session) follow(w *Window) {
	a := s.Alignment
	switch w {
	case a.Ref:
		if t := a.Map.Forward(w.View.DepthIndex()); t != alignment.None {
			a.Target.View.SetDepthIndex(t)
		}
	case a.Target:
		if r := a.Map.Reverse(w.View.DepthIndex()); r != alignment.None {
			a.Ref.View.SetDepthIndex(r)
		}
	}
}

// AddLandmark appends a point to the active window's landmarks.
func (s *Session) AddLandmark(p landmark.Point) error {
	w := s.ActiveWindow()
	if w == nil {
		return models.Invalid("add landmark", models.ErrInvalidArgument, "no open window")
	}
	w.Landmarks.Add(p)
	return nil
}

// RemoveLandmark deletes landmark i of the active window.
func (s *Session) RemoveLandmark(i int) error {
	w := s.ActiveWindow()
	if w == nil {
		return models.Invalid("remove landmark", models.ErrInvalidArgument, "no open window")
	}
	return w.Landmarks.Remove(i)
}

// PickLandmark returns the landmark of the active window closest to p
// within maxDist.
func (s *Session) PickLandmark(p landmark.Point, maxDist float64) (int, bool) {
	w := s.ActiveWindow()
	if w == nil {
		return 0, false
	}
	return w.Landmarks.Nearest(p, maxDist)
}

// rasterPoints projects landmarks onto the raster plane of w.
func rasterPoints(w *Window, pts []landmark.Point) []warp.Vec {
	perm := w.View.Perm
	ds := float64(max(w.View.Downsample, 1))
	out := make([]warp.Vec, len(pts))
	for i, p := range pts {
		out[i] = warp.Vec{X: (p.Axis(perm.Col()) + 0.5) / ds, Y: (p.Axis(perm.Row()) + 0.5) / ds}
	}
	return out
}

// WarpLandmarks renders window src and warps the frame onto the raster of
// window dst so that src's landmarks land on dst's. Only the landmarks on
// each window's current depth index take part.
func (s *Session) WarpLandmarks(src, dst int) (*image.RGBA, error) {
	sw, err := s.window(src)
	if err != nil {
		return nil, err
	}
	dw, err := s.window(dst)
	if err != nil {
		return nil, err
	}
	sp, dp, err := landmark.Pair(
		sw.Landmarks.Slice(sw.View.Perm.Depth(), sw.View.DepthIndex()),
		dw.Landmarks.Slice(dw.View.Perm.Depth(), dw.View.DepthIndex()))
	if err != nil {
		return nil, err
	}
	frame, err := s.Render(src)
	if err != nil {
		return nil, err
	}
	ds := max(dw.View.Downsample, 1)
	rows, cols := dw.View.RasterSize()
	out := image.NewRGBA(image.Rect(0, 0, (cols+ds-1)/ds, (rows+ds-1)/ds))
	if err := warp.Piecewise(out, frame.Image, rasterPoints(sw, sp), rasterPoints(dw, dp)); err != nil {
		return nil, err
	}
	return out, nil
}

// EstimateAffine registers the first volume of window mov to the first
// volume of window ref slice by slice. With an active alignment between the
// two windows each moving slice is matched to its aligned reference slice.
func (s *Session) EstimateAffine(ref, mov int, threshold float64) (*warp.Transform, error) {
	rw, err := s.window(ref)
	if err != nil {
		return nil, err
	}
	mw, err := s.window(mov)
	if err != nil {
		return nil, err
	}
	refIndex := func(z int) int { return z }
	if a := s.activeAlignment(); a != nil && a.Ref == rw && a.Target == mw {
		refIndex = a.Map.Reverse
	}
	opt := warp.Options{
		MaxIterations: s.cfg.Warp.MaxIterations,
		Tolerance:     s.cfg.Warp.Tolerance,
		SimplexSize:   s.cfg.Warp.SimplexSize,
	}
	return warp.EstimateStack(rw.Volumes[0], mw.Volumes[0], refIndex, threshold, opt)
}

// ApplyTransform resamples the first volume of window mov with t and opens
// the result in a new window.
func (s *Session) ApplyTransform(mov int, t *warp.Transform) (*Window, error) {
	mw, err := s.window(mov)
	if err != nil {
		return nil, err
	}
	v, err := warp.ApplyTransform(mw.Volumes[0], t)
	if err != nil {
		return nil, err
	}
	return s.OpenWindow(v)
}

// Render draws window i.
func (s *Session) Render(i int) (*composite.Raster, error) {
	w, err := s.window(i)
	if err != nil {
		return nil, err
	}
	req := composite.Request{
		View:      w.View,
		Layers:    make([]composite.Layer, len(w.Volumes)),
		Overlap:   w.Overlap,
		Normalize: w.Normalize,
		Atlas:     s.Atlas,
		Regions:   w.Regions,
	}
	cc := s.cfg.Display.ContourColor
	req.ContourColor = color.RGBA{R: uint8(cc[0]), G: uint8(cc[1]), B: uint8(cc[2]), A: 255}
	for j, v := range w.Volumes {
		req.Layers[j] = composite.Layer{Volume: v, Channels: w.Channels[j]}
	}
	if w.Stitched {
		req.Placement = w.Placement
	}
	r, err := composite.Render(req)
	if err != nil {
		return nil, err
	}
	w.View.Stale = false
	return r, nil
}
