// Package session holds the volumes and windows of one viewer session and
// implements the commands that act on them.
//
// A window displays an ordered list of volumes through its own view state,
// either overlaid or stitched side by side. Volumes are shared between
// windows, so commands that mutate a volume in place are checked against
// every window that shows it. Linked windows receive every view command the
// active window receives; an active alignment keeps the depth index of two
// unlinked windows in step.
package session

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"volview/internal/models"
	"volview/pkg/alignment"
	"volview/pkg/annotation"
	"volview/pkg/config"
	"volview/pkg/landmark"
	"volview/pkg/logging"
	"volview/pkg/stitch"
	"volview/pkg/view"
	"volview/pkg/volume"
)

// Window is one display of a list of volumes.
type Window struct {
	// ID is unique within the session
	ID int

	// View is the axis, index and range state of the window
	View *view.State

	// Volumes are drawn in list order
	Volumes []*volume.Volume

	// Channels holds the displayed channels per volume; nil shows all and
	// an empty list none
	Channels [][]int

	// Stitched places the volumes side by side instead of overlaying them
	Stitched  bool
	Placement *stitch.Placement
	Overlap   stitch.OverlapMode

	// Normalize stretches every frame to the full display range
	Normalize bool

	// Regions lists the atlas regions outlined on top of the frame
	Regions []string

	// Landmarks are the points placed in this window
	Landmarks *landmark.Set

	// versions records the volume versions the geometry was derived from
	versions []int
}

// extent returns the (row, col, depth) size the window displays.
func (w *Window) extent() [3]int {
	if w.Stitched && w.Placement != nil {
		return w.Placement.Shape
	}
	if len(w.Volumes) == 0 {
		return [3]int{1, 1, 1}
	}
	return w.Volumes[0].Shape().Spatial()
}

func (w *Window) String() string {
	names := make([]string, len(w.Volumes))
	for i, v := range w.Volumes {
		names[i] = v.Name
	}
	mode := "overlay"
	if w.Stitched {
		mode = "stitched"
	}
	return fmt.Sprintf("window %d (%s) %v: %s", w.ID, mode, names, w.View)
}

// Alignment ties the depth index of Target to that of Ref. The map only
// holds for the depth axes the two windows had when it was built.
type Alignment struct {
	Ref, Target *Window
	Map         *alignment.Map

	RefAxis, TargetAxis view.DepthAxis
}

// Session is the set of loaded volumes and open windows.
type Session struct {
	cfg *config.Config

	// Volumes holds every loaded volume
	Volumes []*volume.Volume

	// Windows holds the open windows; Active indexes the one commands target
	Windows []*Window
	Active  int

	// Selected holds the volumes that in-place operations act on
	Selected map[uuid.UUID]bool

	// Linked makes view commands apply to every window
	Linked bool

	Atlas     *annotation.Atlas
	Alignment *Alignment

	nextID int
}

// New creates an empty session. A nil cfg uses the defaults.
func New(cfg *config.Config) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Session{cfg: cfg, Selected: make(map[uuid.UUID]bool)}
}

// Config returns the configuration the session was created with.
func (s *Session) Config() *config.Config { return s.cfg }

// AddVolume registers v with the session.
func (s *Session) AddVolume(v *volume.Volume) {
	if !slices.Contains(s.Volumes, v) {
		s.Volumes = append(s.Volumes, v)
	}
}

// OpenWindow shows vols in a new window and makes it active. Overlaid
// volumes must share one spatial shape.
func (s *Session) OpenWindow(vols ...*volume.Volume) (*Window, error) {
	if len(vols) == 0 {
		return nil, models.Invalid("open window", models.ErrInvalidArgument, "no volumes")
	}
	if err := sameShape("open window", vols); err != nil {
		return nil, err
	}
	w, err := s.newWindow(vols)
	if err != nil {
		return nil, err
	}
	logging.Infof("opened %s", w)
	return w, nil
}

// OpenStitched shows vols stitched side by side in a new window and makes
// it active. The volumes may differ in shape.
func (s *Session) OpenStitched(vols ...*volume.Volume) (*Window, error) {
	if len(vols) == 0 {
		return nil, models.Invalid("open stitched", models.ErrInvalidArgument, "no volumes")
	}
	if s.Linked {
		return nil, models.Invalid("open stitched", models.ErrInvalidArgument, "windows are linked")
	}
	w, err := s.newWindow(vols)
	if err != nil {
		return nil, err
	}
	if err := s.Stitch(); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Session) newWindow(vols []*volume.Volume) (*Window, error) {
	overlap, err := stitch.ParseOverlap(s.cfg.Stitch.Overlap)
	if err != nil {
		return nil, err
	}
	for _, v := range vols {
		s.AddVolume(v)
	}
	s.nextID++
	w := &Window{
		ID:        s.nextID,
		Volumes:   append([]*volume.Volume(nil), vols...),
		Channels:  make([][]int, len(vols)),
		Overlap:   overlap,
		Normalize: s.cfg.Display.Normalize,
		Landmarks: &landmark.Set{},
	}
	w.View = view.New(w.extent())
	w.versions = versions(w.Volumes)
	s.Windows = append(s.Windows, w)
	s.Active = len(s.Windows) - 1
	return w, nil
}

// CloseWindow removes window i. Volumes stay loaded.
func (s *Session) CloseWindow(i int) error {
	w, err := s.window(i)
	if err != nil {
		return err
	}
	if s.Alignment != nil && (s.Alignment.Ref == w || s.Alignment.Target == w) {
		s.Alignment = nil
	}
	s.Windows = slices.Delete(s.Windows, i, i+1)
	s.Active = min(s.Active, max(0, len(s.Windows)-1))
	if len(s.Windows) < 2 {
		s.Linked = false
	}
	return nil
}

// SetActive selects the window commands act on.
func (s *Session) SetActive(i int) error {
	if _, err := s.window(i); err != nil {
		return err
	}
	s.Active = i
	return nil
}

// ActiveWindow returns the window commands act on, or nil.
func (s *Session) ActiveWindow() *Window {
	if s.Active < 0 || s.Active >= len(s.Windows) {
		return nil
	}
	return s.Windows[s.Active]
}

func (s *Session) window(i int) (*Window, error) {
	if i < 0 || i >= len(s.Windows) {
		return nil, models.Invalid("window", models.ErrInvalidArgument, "no window %d", i)
	}
	return s.Windows[i], nil
}

// Select replaces the selection with vols.
func (s *Session) Select(vols ...*volume.Volume) {
	clear(s.Selected)
	for _, v := range vols {
		s.Selected[v.ID] = true
	}
}

// SelectWindow selects every volume shown in window i.
func (s *Session) SelectWindow(i int) error {
	w, err := s.window(i)
	if err != nil {
		return err
	}
	s.Select(w.Volumes...)
	return nil
}

// selection returns the selected volumes in session order.
func (s *Session) selection() []*volume.Volume {
	var out []*volume.Volume
	for _, v := range s.Volumes {
		if s.Selected[v.ID] {
			out = append(out, v)
		}
	}
	return out
}

// targets returns the windows a view command applies to: every window when
// linked, otherwise the active one.
func (s *Session) targets() ([]*Window, error) {
	w := s.ActiveWindow()
	if w == nil {
		return nil, models.Invalid("command", models.ErrInvalidArgument, "no open window")
	}
	if !s.Linked {
		return []*Window{w}, nil
	}
	out := []*Window{w}
	for _, o := range s.Windows {
		if o != w {
			out = append(out, o)
		}
	}
	return out, nil
}

// fanOut runs op on every target window in turn and stops at the first
// error. Windows updated before the failure keep their update.
func (s *Session) fanOut(op func(w *Window) error) error {
	ws, err := s.targets()
	if err != nil {
		return err
	}
	for _, w := range ws {
		if err := op(w); err != nil {
			return fmt.Errorf("window %d: %w", w.ID, err)
		}
	}
	return nil
}

// Link makes every view command apply to all windows. All windows must
// show the same spatial shape and none may be stitched.
func (s *Session) Link() error {
	w := s.ActiveWindow()
	if w == nil {
		return models.Invalid("link", models.ErrInvalidArgument, "no open window")
	}
	for _, o := range s.Windows {
		if o.Stitched {
			return models.Invalid("link", models.ErrInvalidArgument, "window %d is stitched", o.ID)
		}
		if o.extent() != w.extent() {
			return models.Invalid("link", models.ErrShapeMismatch,
				"window %d shows %v, window %d shows %v", o.ID, o.extent(), w.ID, w.extent())
		}
	}
	for _, o := range s.Windows {
		if o != w {
			o.View.CopyFrom(w.View)
		}
	}
	s.Linked = true
	logging.Infof("linked %d windows", len(s.Windows))
	return nil
}

// Unlink lets windows move independently again.
func (s *Session) Unlink() {
	s.Linked = false
}

func sameShape(op string, vols []*volume.Volume) error {
	for _, v := range vols[1:] {
		if v.Shape().Spatial() != vols[0].Shape().Spatial() {
			return models.Invalid(op, models.ErrShapeMismatch, "%s is %v but %s is %v",
				v.Name, v.Shape(), vols[0].Name, vols[0].Shape())
		}
	}
	return nil
}

func versions(vols []*volume.Volume) []int {
	out := make([]int, len(vols))
	for i, v := range vols {
		out[i] = v.Version()
	}
	return out
}
