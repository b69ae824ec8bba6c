// Package volume owns the samples of one multi-channel volume together with
// its per-channel display parameters, and implements the geometry and
// intensity operations that mutate it in place.
//
// Samples are kept as uint16 regardless of bit depth. Storage is either eager
// (all planes in memory) or lazy (planes decoded on demand from a PlaneSource
// and kept in an LRU cache); callers only ever see Slice and Projection.
package volume

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"volview/internal/models"
	"volview/pkg/logging"
)

// PlaneSource supplies one (row, col) plane of a lazily loaded volume.
// The returned slice has H*W samples in row-major order and must not be
// retained by the source after it is returned.
type PlaneSource interface {
	Plane(z, c int) ([]uint16, error)
}

type planeKey struct {
	z, c int
}

// Volume is a (H, W, D, C) array of unsigned samples plus display state.
type Volume struct {
	// ID identifies the volume across windows
	ID uuid.UUID

	// Name is a display name, usually the source file
	Name string

	// Channels holds the per-channel display parameters
	Channels []Display

	// Alpha is the scalar opacity used when blending over other volumes
	Alpha float64

	// PixelSize is the physical voxel size; zero components are unknown
	PixelSize models.PixelSize

	// Stage is the physical stage position (row, col, depth) or nil
	Stage *[3]float64

	shape models.Shape
	bits  models.BitDepth

	// planes[c][z] holds H*W samples when the volume is eager
	planes [][][]uint16

	source PlaneSource
	cache  *lru.Cache[planeKey, []uint16]

	// alpha holds one opacity per voxel, index (z*H+y)*W+x, or nil
	alpha []float32

	version int
}

// New creates an eager, zero-filled volume.
func New(name string, shape models.Shape, bits models.BitDepth) (*Volume, error) {
	if err := checkShape(shape, bits); err != nil {
		return nil, err
	}
	planes := make([][][]uint16, shape.C)
	for c := range planes {
		planes[c] = make([][]uint16, shape.D)
		for z := range planes[c] {
			planes[c][z] = make([]uint16, shape.H*shape.W)
		}
	}
	v := newVolume(name, shape, bits)
	v.planes = planes
	logging.Debugf("created volume %s %v, %s", name, shape, humanize.Bytes(v.Bytes()))
	return v, nil
}

// FromSamples creates an eager volume from samples laid out channel-major:
// index ((c*D+z)*H+y)*W+x. The samples are copied.
func FromSamples(name string, shape models.Shape, bits models.BitDepth, samples []uint16) (*Volume, error) {
	if err := checkShape(shape, bits); err != nil {
		return nil, err
	}
	if len(samples) != shape.Voxels()*shape.C {
		return nil, models.Invalid("from samples", models.ErrShapeMismatch,
			"%d samples for shape %v", len(samples), shape)
	}
	v, err := New(name, shape, bits)
	if err != nil {
		return nil, err
	}
	n := shape.H * shape.W
	max := uint16(bits.MaxValue())
	for c := 0; c < shape.C; c++ {
		for z := 0; z < shape.D; z++ {
			off := (c*shape.D + z) * n
			for i, s := range samples[off : off+n] {
				if s > max {
					s = max
				}
				v.planes[c][z][i] = s
			}
		}
	}
	return v, nil
}

// NewLazy creates a volume whose planes are read from src on demand.
// cacheSize is the number of decoded planes kept in memory.
func NewLazy(name string, shape models.Shape, bits models.BitDepth, src PlaneSource, cacheSize int) (*Volume, error) {
	if err := checkShape(shape, bits); err != nil {
		return nil, err
	}
	if cacheSize < 1 {
		cacheSize = 1
	}
	cache, err := lru.New[planeKey, []uint16](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create plane cache: %w", err)
	}
	v := newVolume(name, shape, bits)
	v.source = src
	v.cache = cache
	logging.Debugf("created lazy volume %s %v, %d cached planes", name, shape, cacheSize)
	return v, nil
}

func newVolume(name string, shape models.Shape, bits models.BitDepth) *Volume {
	v := &Volume{
		ID:    uuid.New(),
		Name:  name,
		Alpha: 1,
		shape: shape,
		bits:  bits,
	}
	v.Channels = make([]Display, shape.C)
	colors := models.DefaultColors(shape.C)
	for c := range v.Channels {
		v.Channels[c] = defaultDisplay(bits, colors[c])
	}
	return v
}

func checkShape(shape models.Shape, bits models.BitDepth) error {
	if shape.H < 1 || shape.W < 1 || shape.D < 1 || shape.C < 1 {
		return models.Invalid("new volume", models.ErrInvalidArgument, "shape %v has an empty axis", shape)
	}
	if !bits.Valid() {
		return models.Invalid("new volume", models.ErrInvalidArgument, "unsupported bit depth %d", bits)
	}
	return nil
}

// Shape returns the current shape.
func (v *Volume) Shape() models.Shape { return v.shape }

// BitDepth returns the current bit depth.
func (v *Volume) BitDepth() models.BitDepth { return v.bits }

// MaxValue returns the largest sample value at the current bit depth.
func (v *Volume) MaxValue() float64 { return v.bits.MaxValue() }

// Version increases every time an operation changes the shape. Windows use
// it to notice that their ViewRange and tile placement need re-deriving.
func (v *Volume) Version() int { return v.version }

// Lazy reports whether planes are still read from a PlaneSource.
func (v *Volume) Lazy() bool { return v.source != nil }

// Bytes returns the in-memory size of the samples once fully loaded.
func (v *Volume) Bytes() uint64 {
	return uint64(v.shape.Voxels()) * uint64(v.shape.C) * 2
}

func (v *Volume) String() string {
	return fmt.Sprintf("%s %v %d-bit", v.Name, v.shape, v.bits)
}

// plane returns the stored plane for (z, c). The result must not be modified
// unless the volume is eager and the caller is a mutating operation.
func (v *Volume) plane(z, c int) ([]uint16, error) {
	if z < 0 || z >= v.shape.D || c < 0 || c >= v.shape.C {
		return nil, fmt.Errorf("plane (z=%d, c=%d) outside %v: %w", z, c, v.shape, models.ErrInvariant)
	}
	if v.source == nil {
		return v.planes[c][z], nil
	}
	key := planeKey{z, c}
	if p, ok := v.cache.Get(key); ok {
		return p, nil
	}
	p, err := v.source.Plane(z, c)
	if err != nil {
		return nil, fmt.Errorf("failed to load plane z=%d c=%d of %s: %w", z, c, v.Name, err)
	}
	if len(p) != v.shape.H*v.shape.W {
		return nil, fmt.Errorf("plane z=%d c=%d of %s has %d samples, want %d: %w",
			z, c, v.Name, len(p), v.shape.H*v.shape.W, models.ErrInvariant)
	}
	v.cache.Add(key, p)
	return p, nil
}

// materialize loads every plane so that the volume can be mutated in place.
func (v *Volume) materialize() error {
	if v.source == nil {
		return nil
	}
	t := logging.NewTimer()
	planes := make([][][]uint16, v.shape.C)
	for c := range planes {
		planes[c] = make([][]uint16, v.shape.D)
		for z := range planes[c] {
			p, err := v.plane(z, c)
			if err != nil {
				return err
			}
			planes[c][z] = append([]uint16(nil), p...)
		}
	}
	v.planes = planes
	v.source = nil
	v.cache = nil
	t.Infof("loaded %s into memory (%s)", v.Name, humanize.Bytes(v.Bytes()))
	return nil
}

// SetAlphaMask attaches a per-voxel opacity in [0,1], index (z*H+y)*W+x.
// A nil mask removes it.
func (v *Volume) SetAlphaMask(mask []float32) error {
	if mask != nil && len(mask) != v.shape.Voxels() {
		return models.Invalid("set alpha mask", models.ErrShapeMismatch,
			"%d values for %d voxels", len(mask), v.shape.Voxels())
	}
	v.alpha = mask
	return nil
}

// HasAlphaMask reports whether a per-voxel opacity is attached.
func (v *Volume) HasAlphaMask() bool { return v.alpha != nil }

// setShape installs new storage and bumps the version.
func (v *Volume) setShape(shape models.Shape, planes [][][]uint16, alpha []float32) {
	v.shape = shape
	v.planes = planes
	v.alpha = alpha
	v.version++
}
