package session

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"volview/internal/models"
	"volview/pkg/landmark"
	"volview/pkg/stitch"
	"volview/pkg/view"
	"volview/pkg/volume"
)

func newVolume(t *testing.T, name string, h, w, d int) *volume.Volume {
	t.Helper()
	shape := models.Shape{H: h, W: w, D: d, C: 1}
	samples := make([]uint16, shape.Voxels())
	for i := range samples {
		samples[i] = uint16(i % 251)
	}
	v, err := volume.FromSamples(name, shape, models.Bits8, samples)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestOpenWindowShapeMismatch(t *testing.T) {
	s := New(nil)
	a := newVolume(t, "a", 4, 5, 2)
	b := newVolume(t, "b", 4, 6, 2)
	if _, err := s.OpenWindow(a, b); !errors.Is(err, models.ErrShapeMismatch) {
		t.Errorf("Expected shape mismatch, got %v", err)
	}
	if len(s.Windows) != 0 || len(s.Volumes) != 0 {
		t.Error("Expected no state change after a rejected open")
	}
	w, err := s.OpenWindow(a)
	if err != nil {
		t.Fatal(err)
	}
	if w.View.Extent != [3]int{4, 5, 2} {
		t.Errorf("Expected extent (4,5,2), got %v", w.View.Extent)
	}
}

func TestShapeChangeGuard(t *testing.T) {
	s := New(nil)
	a := newVolume(t, "a", 4, 6, 2)
	b := newVolume(t, "b", 4, 6, 2)
	w, err := s.OpenWindow(a, b)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Rotate90([2]int{0, 1}, 1); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected invalid argument without selection, got %v", err)
	}

	s.Select(a)
	if err := s.Rotate90([2]int{0, 1}, 1); !errors.Is(err, models.ErrShapeMismatch) {
		t.Fatalf("Expected shape mismatch, got %v", err)
	}
	if a.Shape().Spatial() != [3]int{4, 6, 2} {
		t.Fatal("Expected rejected rotation to leave the volume untouched")
	}

	if err := s.SelectWindow(0); err != nil {
		t.Fatal(err)
	}
	if err := s.Rotate90([2]int{0, 1}, 1); err != nil {
		t.Fatalf("Rotate90 failed: %v", err)
	}
	if w.View.Extent != [3]int{6, 4, 2} {
		t.Errorf("Expected view extent (6,4,2), got %v", w.View.Extent)
	}
	if w.View.Range[models.AxisRow].Max != 5 {
		t.Errorf("Expected range reset to the new extent, got %v", w.View.Range)
	}
}

func TestGuardAllowsStitchedWindows(t *testing.T) {
	s := New(nil)
	a := newVolume(t, "a", 50, 50, 1)
	b := newVolume(t, "b", 50, 50, 1)
	w, _ := s.OpenWindow(a, b)
	if err := s.Stitch(); err != nil {
		t.Fatal(err)
	}
	if w.View.Extent != [3]int{50, 100, 1} {
		t.Fatalf("Expected stitched extent (50,100,1), got %v", w.View.Extent)
	}

	s.Select(b)
	if err := s.Resample([3]float64{0.5, 0.5, 1}); err != nil {
		t.Fatalf("Expected stitched window to tolerate a single tile change, got %v", err)
	}
	if w.Placement.Extents[1] != [3]int{25, 25, 1} {
		t.Errorf("Expected tile extent (25,25,1), got %v", w.Placement.Extents[1])
	}
	if w.View.Extent != [3]int{50, 75, 1} {
		t.Errorf("Expected combined extent (50,75,1), got %v", w.View.Extent)
	}

	if err := s.Unstitch(); !errors.Is(err, models.ErrShapeMismatch) {
		t.Errorf("Expected shape mismatch when unstitching different shapes, got %v", err)
	}
}

func TestHeldRangeIsClipped(t *testing.T) {
	s := New(nil)
	a := newVolume(t, "a", 10, 10, 4)
	w, _ := s.OpenWindow(a)
	r := models.ViewRange{{Min: 2, Max: 9}, {Min: 0, Max: 9}, {Min: 0, Max: 3}}
	if err := s.SetRange(r); err != nil {
		t.Fatal(err)
	}
	s.Select(a)
	if err := s.Resample([3]float64{0.5, 1, 1}); err != nil {
		t.Fatal(err)
	}
	want := models.ViewRange{{Min: 2, Max: 4}, {Min: 0, Max: 9}, {Min: 0, Max: 3}}
	if w.View.Range != want {
		t.Errorf("Expected held range clipped to %v, got %v", want, w.View.Range)
	}
}

func TestLinkedFanOut(t *testing.T) {
	s := New(nil)
	a := newVolume(t, "a", 8, 8, 6)
	b := newVolume(t, "b", 8, 8, 6)
	w1, _ := s.OpenWindow(a)
	w2, _ := s.OpenWindow(a, b)
	if err := s.SetActive(0); err != nil {
		t.Fatal(err)
	}
	if err := s.Link(); err != nil {
		t.Fatal(err)
	}

	if err := s.SetDepthAxis(view.X); err != nil {
		t.Fatal(err)
	}
	if err := s.SetIndex(models.Point3{1, 6, 4}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(w1.View.Index, w2.View.Index); diff != "" {
		t.Errorf("Linked indices differ (-active +linked):\n%s", diff)
	}
	if w2.View.Depth != view.X {
		t.Error("Expected linked window to follow the depth axis")
	}

	// the active window has one volume, so the second target fails
	if err := s.SetAlpha(1, 0.5); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected invalid argument from the active window, got %v", err)
	}
	if err := s.SetActive(1); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAlpha(1, 0.5); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected the first error of the fan-out, got %v", err)
	}
	if b.Alpha != 0.5 {
		t.Error("Expected the update of the first window to be kept")
	}

	if err := s.Stitch(); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected stitching to be refused while linked, got %v", err)
	}
}

func TestLinkRequiresSameShape(t *testing.T) {
	s := New(nil)
	s.OpenWindow(newVolume(t, "a", 8, 8, 6))
	s.OpenWindow(newVolume(t, "b", 8, 9, 6))
	if err := s.Link(); !errors.Is(err, models.ErrShapeMismatch) {
		t.Errorf("Expected shape mismatch, got %v", err)
	}
	if s.Linked {
		t.Error("Expected windows to stay unlinked")
	}
}

func TestAlignmentPropagation(t *testing.T) {
	s := New(nil)
	ref, _ := s.OpenWindow(newVolume(t, "ref", 4, 4, 20))
	tgt, _ := s.OpenWindow(newVolume(t, "tgt", 4, 4, 10))

	if err := s.ActivateAlignment(0, 1, 0, 4); !errors.Is(err, models.ErrRangeTooShort) {
		t.Errorf("Expected range too short, got %v", err)
	}
	if err := s.ActivateAlignment(0, 1, 0, 19); err != nil {
		t.Fatal(err)
	}

	s.SetActive(0)
	if err := s.SetIndex(models.Point3{0, 0, 7}); err != nil {
		t.Fatal(err)
	}
	if got := tgt.View.DepthIndex(); got != 3 {
		t.Errorf("Expected target depth 3, got %d", got)
	}

	s.SetActive(1)
	if err := s.StepIndex(1); err != nil {
		t.Fatal(err)
	}
	// reference indices 8 and 9 map to 4
	if got := ref.View.DepthIndex(); got != 8 {
		t.Errorf("Expected reference depth 8, got %d", got)
	}

	s.DeactivateAlignment()
	s.StepIndex(1)
	if ref.View.DepthIndex() != 8 {
		t.Error("Expected no propagation after deactivation")
	}
}

func TestAlignmentDroppedOnAxisChange(t *testing.T) {
	s := New(nil)
	ref, _ := s.OpenWindow(newVolume(t, "ref", 4, 4, 20))
	s.OpenWindow(newVolume(t, "tgt", 4, 4, 10))
	if err := s.ActivateAlignment(0, 1, 0, 19); err != nil {
		t.Fatal(err)
	}
	s.SetActive(0)
	if err := s.SetIndex(models.Point3{0, 0, 12}); err != nil {
		t.Fatal(err)
	}

	s.SetActive(1)
	if err := s.SetDepthAxis(view.X); err != nil {
		t.Fatal(err)
	}
	if s.Alignment != nil {
		t.Fatal("Expected the alignment to be dropped after a depth axis change")
	}
	if got := ref.View.DepthIndex(); got != 12 {
		t.Errorf("Expected reference depth to stay at 12, got %d", got)
	}
	s.StepIndex(1)
	if got := ref.View.DepthIndex(); got != 12 {
		t.Errorf("Expected reference depth to stay at 12, got %d", got)
	}
}

func TestStitchAndReorder(t *testing.T) {
	s := New(nil)
	a := newVolume(t, "a", 50, 50, 1)
	b := newVolume(t, "b", 50, 50, 1)
	w, _ := s.OpenWindow(a, b)
	if err := s.NudgeTiles([]int{1}, models.AxisCol, stitch.Fine); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected nudge to need a stitched window, got %v", err)
	}
	s.Stitch()
	want := []models.Point3{{0, 0, 0}, {0, 50, 0}}
	if diff := cmp.Diff(want, w.Placement.Offsets); diff != "" {
		t.Errorf("Unexpected offsets (-want +got):\n%s", diff)
	}

	if err := s.NudgeTiles([]int{1}, models.AxisCol, -stitch.Medium); err != nil {
		t.Fatal(err)
	}
	if w.View.Extent != [3]int{50, 90, 1} {
		t.Errorf("Expected extent (50,90,1), got %v", w.View.Extent)
	}

	if err := s.MoveVolume(1, 0); err != nil {
		t.Fatal(err)
	}
	if w.Volumes[0] != b || w.Placement.Offsets[0] != (models.Point3{0, 40, 0}) {
		t.Errorf("Expected b first with its offset kept, got %s at %v", w.Volumes[0].Name, w.Placement.Offsets[0])
	}

	if err := s.SetOverlap(stitch.Replace); err != nil {
		t.Fatal(err)
	}
	r, err := s.Render(0)
	if err != nil {
		t.Fatal(err)
	}
	if b := r.Image.Bounds(); b.Dx() != 90 || b.Dy() != 50 {
		t.Errorf("Expected 90x50 raster, got %v", b)
	}
}

func TestRemoveVolumes(t *testing.T) {
	s := New(nil)
	a := newVolume(t, "a", 4, 4, 1)
	b := newVolume(t, "b", 4, 4, 1)
	s.OpenWindow(a)
	w, _ := s.OpenWindow(a, b)
	s.Select(a)
	if err := s.RemoveVolumes(); err != nil {
		t.Fatal(err)
	}
	if len(s.Windows) != 1 || s.Windows[0] != w {
		t.Fatalf("Expected only the second window to remain, got %d windows", len(s.Windows))
	}
	if len(w.Volumes) != 1 || w.Volumes[0] != b || len(s.Volumes) != 1 {
		t.Error("Expected b to be the only volume left")
	}
	if len(s.Selected) != 0 {
		t.Error("Expected selection to be cleared")
	}
}

func TestDisplayCommands(t *testing.T) {
	s := New(nil)
	v := newVolume(t, "a", 4, 4, 1)
	s.OpenWindow(v)
	if err := s.SetGamma(0, 0, 10); err != nil {
		t.Fatal(err)
	}
	if v.Channels[0].Gamma != 3 {
		t.Errorf("Expected gamma clamped to 3, got %g", v.Channels[0].Gamma)
	}
	if err := s.SetLevels(0, 0, 10, 100); err != nil {
		t.Fatal(err)
	}
	if err := s.SetChannelColor(0, 0, models.Green); err != nil {
		t.Fatal(err)
	}
	if err := s.ResetLevels(0, nil); err != nil {
		t.Fatal(err)
	}
	d := v.Channels[0]
	if d.Low != 0 || d.High != 255 || d.Gamma != 1 || d.Color != models.Green {
		t.Errorf("Unexpected display after reset: %+v", d)
	}
	if err := s.SetRegions([]string{"cortex"}); !errors.Is(err, models.ErrUnknownRegion) {
		t.Errorf("Expected unknown region without an atlas, got %v", err)
	}
	if _, err := s.Histogram(0, nil); err != nil {
		t.Errorf("Histogram failed: %v", err)
	}
}

func TestShowNoChannels(t *testing.T) {
	s := New(nil)
	w, _ := s.OpenWindow(newVolume(t, "a", 4, 4, 1))
	if err := s.ShowChannels(0, []int{}); err != nil {
		t.Fatal(err)
	}
	if w.Channels[0] == nil {
		t.Fatal("Expected an empty channel list, got nil")
	}
	r, err := s.Render(0)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Image.RGBAAt(1, 1); got.R != 0 || got.G != 0 || got.B != 0 {
		t.Errorf("Expected nothing drawn, got %v", got)
	}

	if err := s.ShowChannels(0, nil); err != nil {
		t.Fatal(err)
	}
	r, err = s.Render(0)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Image.RGBAAt(1, 1); got.R != 5 {
		t.Errorf("Expected every channel drawn, got %v", got)
	}
}

func TestWarpLandmarks(t *testing.T) {
	s := New(nil)
	s.OpenWindow(newVolume(t, "a", 12, 16, 1))
	s.OpenWindow(newVolume(t, "b", 12, 16, 1))

	pts := []landmark.Point{{Row: 3, Col: 4}, {Row: 8, Col: 11}, {Row: 2, Col: 12}}
	s.SetActive(0)
	s.AddLandmark(pts[0])
	if _, err := s.WarpLandmarks(0, 1); !errors.Is(err, models.ErrInsufficientLandmarks) {
		t.Errorf("Expected insufficient landmarks, got %v", err)
	}
	for _, p := range pts[1:] {
		s.AddLandmark(p)
	}
	s.SetActive(1)
	for _, p := range pts {
		s.AddLandmark(p)
	}

	got, err := s.WarpLandmarks(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := s.Render(0)
	if diff := cmp.Diff(want.Image.Pix, got.Pix); diff != "" {
		t.Errorf("Expected identical landmarks to reproduce the frame (-want +got):\n%s", diff)
	}

	if i, ok := s.PickLandmark(landmark.Point{Row: 8.2, Col: 10.9}, 1); !ok || i != 1 {
		t.Errorf("Expected landmark 1, got %d %v", i, ok)
	}
}

func TestWarpLandmarksUsesCurrentSlice(t *testing.T) {
	s := New(nil)
	s.OpenWindow(newVolume(t, "a", 12, 16, 5))
	s.OpenWindow(newVolume(t, "b", 12, 16, 5))
	for i := range s.Windows {
		s.SetActive(i)
		p := s.ActiveWindow().View.Index
		p[models.AxisDepth] = 0
		if err := s.SetIndex(p); err != nil {
			t.Fatal(err)
		}
	}

	onSlice := []landmark.Point{{Row: 3, Col: 4}, {Row: 8, Col: 11}, {Row: 2, Col: 12}}
	s.SetActive(0)
	s.AddLandmark(landmark.Point{Row: 2, Col: 2, Depth: 4})
	for _, p := range onSlice {
		s.AddLandmark(p)
	}
	s.SetActive(1)
	for _, p := range onSlice {
		s.AddLandmark(p)
	}
	s.AddLandmark(landmark.Point{Row: 9, Col: 13, Depth: 4})

	got, err := s.WarpLandmarks(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := s.Render(0)
	if diff := cmp.Diff(want.Image.Pix, got.Pix); diff != "" {
		t.Errorf("Expected landmarks on other slices to be ignored (-want +got):\n%s", diff)
	}
}

func TestEstimateAndApplyTransform(t *testing.T) {
	s := New(nil)
	shape := models.Shape{H: 24, W: 24, D: 2, C: 1}
	samples := make([]uint16, shape.Voxels())
	for z := 0; z < 2; z++ {
		for r := 6; r < 18; r++ {
			for c := 4; c < 14+r/2; c++ {
				samples[(z*24+r)*24+c] = 200
			}
		}
	}
	ref, _ := volume.FromSamples("ref", shape, models.Bits8, samples)
	mov, _ := volume.FromSamples("mov", shape, models.Bits8, samples)
	s.OpenWindow(ref)
	s.OpenWindow(mov)

	tr, err := s.EstimateAffine(0, 1, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.Slices) != 2 {
		t.Fatalf("Expected 2 slice transforms, got %d", len(tr.Slices))
	}
	w, err := s.ApplyTransform(1, tr)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Windows) != 3 || w.Volumes[0].Shape() != shape {
		t.Errorf("Expected a third window with shape %v", shape)
	}
}

func TestOpenStitchedHeterogeneous(t *testing.T) {
	s := New(nil)
	a := newVolume(t, "a", 10, 20, 3)
	b := newVolume(t, "b", 30, 5, 1)
	w, err := s.OpenStitched(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !w.Stitched || w.View.Extent != [3]int{30, 25, 3} {
		t.Errorf("Expected stitched extent (30,25,3), got %v", w.View.Extent)
	}
	// b has a single slice, so it has nothing to show at depth 2
	s.SetIndex(models.Point3{0, 0, 2})
	r, err := s.Render(0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1}, r.Skipped); diff != "" {
		t.Errorf("Unexpected skipped tiles (-want +got):\n%s", diff)
	}
}
