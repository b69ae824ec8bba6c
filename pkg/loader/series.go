package loader

import (
	"fmt"
	"path/filepath"

	"volview/internal/models"
	"volview/pkg/logging"
	"volview/pkg/volume"
)

// Order is how the files of a multi-channel series are interleaved.
type Order int

const (
	// Alternating lists all channels of slice 0, then all of slice 1, ...
	Alternating Order = iota
	// Blocks lists every slice of channel 0, then every slice of channel 1, ...
	Blocks
)

func (o Order) String() string {
	if o == Blocks {
		return "blocks"
	}
	return "alternating"
}

// ParseOrder converts a name to an Order.
func ParseOrder(name string) (Order, error) {
	switch name {
	case "", "alternating":
		return Alternating, nil
	case "blocks":
		return Blocks, nil
	}
	return 0, models.Invalid("parse order", models.ErrInvalidArgument, "unknown series order %q", name)
}

// Options controls how a series is loaded.
type Options struct {
	// Lazy decodes planes on demand instead of up front
	Lazy bool

	// CacheSlices is the number of decoded planes kept by a lazy volume
	CacheSlices int
}

// Series is an image stack with one file per (slice, channel). Files may
// have different sizes; each is centred on the largest extent.
type Series struct {
	paths    []string
	channels int
	order    Order
	sizes    []size
	shape    models.Shape
	bits     models.BitDepth
}

type size struct {
	rows, cols int
}

// NewSeries reads the headers of paths and works out the stack shape. The
// number of files must be a multiple of channels.
func NewSeries(paths []string, channels int, order Order) (*Series, error) {
	if channels < 1 || len(paths) == 0 || len(paths)%channels != 0 {
		return nil, models.Invalid("load series", models.ErrInvalidArgument,
			"%d files cannot be split into %d channels", len(paths), channels)
	}
	s := &Series{
		paths:    append([]string(nil), paths...),
		channels: channels,
		order:    order,
		sizes:    make([]size, len(paths)),
		bits:     models.Bits8,
	}
	for i, p := range paths {
		cfg, err := decodeConfig(p)
		if err != nil {
			return nil, err
		}
		s.sizes[i] = size{rows: cfg.Height, cols: cfg.Width}
		s.shape.H = max(s.shape.H, cfg.Height)
		s.shape.W = max(s.shape.W, cfg.Width)
		if _, bits := describe(cfg.ColorModel); bits == models.Bits16 {
			s.bits = models.Bits16
		}
	}
	s.shape.D = len(paths) / channels
	s.shape.C = channels
	return s, nil
}

// Shape returns the stack shape.
func (s *Series) Shape() models.Shape { return s.shape }

// BitDepth returns the widest bit depth found among the files.
func (s *Series) BitDepth() models.BitDepth { return s.bits }

// fileIndex returns the position in paths of slice z, channel c.
func (s *Series) fileIndex(z, c int) int {
	if s.order == Blocks {
		return c*s.shape.D + z
	}
	return z*s.channels + c
}

// OffsetForSlice returns the (row, col) offset at which the file of slice z
// and channel 0 is placed so that it is centred in the stack.
func (s *Series) OffsetForSlice(z int) (int, int) {
	return s.offset(s.fileIndex(z, 0))
}

func (s *Series) offset(i int) (int, int) {
	sz := s.sizes[i]
	return (s.shape.H - sz.rows) / 2, (s.shape.W - sz.cols) / 2
}

// Plane decodes the file of slice z, channel c into a centred H*W plane.
func (s *Series) Plane(z, c int) ([]uint16, error) {
	if z < 0 || z >= s.shape.D || c < 0 || c >= s.channels {
		return nil, models.Invalid("read plane", models.ErrInvalidArgument, "plane (%d,%d) outside %v", z, c, s.shape)
	}
	i := s.fileIndex(z, c)
	img, err := decode(s.paths[i])
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dy() != s.sizes[i].rows || b.Dx() != s.sizes[i].cols {
		return nil, fmt.Errorf("%s changed size from %dx%d to %dx%d", s.paths[i],
			s.sizes[i].cols, s.sizes[i].rows, b.Dx(), b.Dy())
	}
	src := samples(img, -1, s.bits)
	if b.Dy() == s.shape.H && b.Dx() == s.shape.W {
		return src, nil
	}
	dy, dx := s.offset(i)
	out := make([]uint16, s.shape.H*s.shape.W)
	for y := 0; y < b.Dy(); y++ {
		copy(out[(y+dy)*s.shape.W+dx:], src[y*b.Dx():(y+1)*b.Dx()])
	}
	return out, nil
}

// FromSeries loads an image series as a volume.
func FromSeries(paths []string, channels int, order Order, opts Options) (*volume.Volume, error) {
	s, err := NewSeries(paths, channels, order)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(paths[0])
	if opts.Lazy {
		v, err := volume.NewLazy(name, s.shape, s.bits, s, opts.CacheSlices)
		if err != nil {
			return nil, err
		}
		logging.Infof("opened lazy series %s: %d files as %v", name, len(paths), s.shape)
		return v, nil
	}

	t := logging.NewTimer()
	n := s.shape.H * s.shape.W
	data := make([]uint16, s.shape.Voxels()*s.shape.C)
	for c := 0; c < s.shape.C; c++ {
		for z := 0; z < s.shape.D; z++ {
			p, err := s.Plane(z, c)
			if err != nil {
				return nil, err
			}
			copy(data[(c*s.shape.D+z)*n:], p)
		}
	}
	v, err := volume.FromSamples(name, s.shape, s.bits, data)
	if err != nil {
		return nil, err
	}
	t.Infof("loaded series %s: %d files as %v (%s)", name, len(paths), s.shape, order)
	return v, nil
}
