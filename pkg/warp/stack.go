package warp

import (
	"image"

	"volview/internal/models"
	"volview/pkg/logging"
	"volview/pkg/volume"
)

// Transform is a per-slice global affine registration of a moving volume to
// a reference frame of TargetShape (rows, cols, depth).
type Transform struct {
	TargetShape [3]int
	Slices      []Affine
}

// silhouetteAt thresholds the maximum over all channels of slice z.
func silhouetteAt(v *volume.Volume, z int, threshold float64) (*Mask, error) {
	channels := make([]int, v.Shape().C)
	for c := range channels {
		channels[c] = c
	}
	planes, err := v.Slice(models.PermZ, z, channels)
	if err != nil {
		return nil, err
	}
	combined := planes[0]
	for _, p := range planes[1:] {
		for i, s := range p.Pix {
			combined.Pix[i] = max(combined.Pix[i], s)
		}
	}
	return Silhouette(combined, threshold), nil
}

// EstimateStack registers every Z slice of mov to a slice of ref.
// refIndex(z) names the reference slice for moving slice z, or a negative
// value to keep that slice unchanged. Slices with an empty silhouette keep
// the identity.
func EstimateStack(ref, mov *volume.Volume, refIndex func(z int) int, threshold float64, opt Options) (*Transform, error) {
	rs := ref.Shape()
	t := &Transform{
		TargetShape: [3]int{rs.H, rs.W, rs.D},
		Slices:      make([]Affine, mov.Shape().D),
	}
	timer := logging.NewTimer()
	for z := range t.Slices {
		t.Slices[z] = Identity
		rz := refIndex(z)
		if rz < 0 || rz >= rs.D {
			continue
		}
		refMask, err := silhouetteAt(ref, rz, threshold)
		if err != nil {
			return nil, err
		}
		movMask, err := silhouetteAt(mov, z, threshold)
		if err != nil {
			return nil, err
		}
		if refMask.Empty() || movMask.Empty() {
			logging.Debugf("slice %d has an empty silhouette, keeping identity", z)
			continue
		}
		a, corr, err := EstimateGlobal(refMask, movMask, opt)
		if err != nil {
			return nil, err
		}
		t.Slices[z] = a
		logging.Debugf("slice %d -> %d: correlation %.3f", z, rz, corr)
	}
	timer.Infof("estimated %d slice transforms for %s", len(t.Slices), mov.Name)
	return t, nil
}

// ApplyTransform returns a new volume holding mov resampled into the
// transform's target rows and columns. Display settings are copied.
func ApplyTransform(mov *volume.Volume, t *Transform) (*volume.Volume, error) {
	ms := mov.Shape()
	if len(t.Slices) != ms.D {
		return nil, models.Invalid("apply transform", models.ErrShapeMismatch,
			"%d slice transforms for depth %d", len(t.Slices), ms.D)
	}
	if t.TargetShape[0] < 1 || t.TargetShape[1] < 1 {
		return nil, models.Invalid("apply transform", models.ErrInvalidArgument, "target shape %v", t.TargetShape)
	}
	out := models.Shape{H: t.TargetShape[0], W: t.TargetShape[1], D: ms.D, C: ms.C}
	n := out.H * out.W
	samples := make([]uint16, out.Voxels()*out.C)

	src := image.NewGray16(image.Rect(0, 0, ms.W, ms.H))
	dst := image.NewGray16(image.Rect(0, 0, out.W, out.H))
	for z := 0; z < ms.D; z++ {
		for c := 0; c < ms.C; c++ {
			planes, err := mov.Slice(models.PermZ, z, []int{c})
			if err != nil {
				return nil, err
			}
			for i, s := range planes[0].Pix {
				src.Pix[2*i], src.Pix[2*i+1] = uint8(s>>8), uint8(s)
			}
			clear(dst.Pix)
			t.Slices[z].Warp(dst, src)
			off := (c*out.D + z) * n
			for i := 0; i < n; i++ {
				samples[off+i] = uint16(dst.Pix[2*i])<<8 | uint16(dst.Pix[2*i+1])
			}
		}
	}
	v, err := volume.FromSamples(mov.Name+" (registered)", out, mov.BitDepth(), samples)
	if err != nil {
		return nil, err
	}
	copy(v.Channels, mov.Channels)
	v.Alpha = mov.Alpha
	v.PixelSize = mov.PixelSize
	return v, nil
}
