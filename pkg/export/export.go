// Package export writes rendered rasters and raw volume slices to image
// files. The encoding is chosen from the file extension.
package export

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"volview/internal/models"
	"volview/pkg/composite"
	"volview/pkg/logging"
	"volview/pkg/volume"
)

// DefaultJPEGQuality is used for .jpg output.
const DefaultJPEGQuality = 90

// Encode writes img in the format named by ext (with or without the dot).
func Encode(w io.Writer, img image.Image, ext string) error {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		return png.Encode(w, img)
	case "tif", "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case "jpg", "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: DefaultJPEGQuality})
	case "bmp":
		return bmp.Encode(w, img)
	}
	return models.Invalid("export", models.ErrInvalidArgument, "unsupported image format %q", ext)
}

// Scale resizes img by factor with bilinear interpolation. Factors of 1 or
// less than or equal to 0 return img unchanged.
func Scale(img image.Image, factor float64) image.Image {
	if factor <= 0 || factor == 1 {
		return img
	}
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*factor+0.5))
	h := max(1, int(float64(b.Dy())*factor+0.5))
	return resize.Resize(uint(w), uint(h), img, resize.Bilinear)
}

// SaveImage writes img to path, scaled by factor.
func SaveImage(path string, img image.Image, factor float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(file, Scale(img, factor), filepath.Ext(path)); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("failed to export %s: %w", path, err)
	}
	return file.Close()
}

// SaveRaster writes the part of r inside vr to path.
func SaveRaster(path string, r *composite.Raster, vr models.ViewRange, factor float64) error {
	img := r.Crop(vr)
	if err := SaveImage(path, img, factor); err != nil {
		return err
	}
	logging.Infof("exported %dx%d raster to %s", img.Bounds().Dx(), img.Bounds().Dy(), path)
	return nil
}

// SequenceName returns the file name of depth index i of a sequence.
func SequenceName(dir, name string, i int, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%d.%s", name, i, strings.TrimPrefix(ext, ".")))
}

// SaveSequence writes one image per depth index in rng, as produced by
// render, to dir/name_<i>.ext. It returns the written paths.
func SaveSequence(dir, name, ext string, rng models.Range, factor float64, render func(i int) (image.Image, error)) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	t := logging.NewTimer()
	var paths []string
	for i := rng.Min; i <= rng.Max; i++ {
		img, err := render(i)
		if err != nil {
			return paths, fmt.Errorf("failed to render index %d: %w", i, err)
		}
		path := SequenceName(dir, name, i, ext)
		if err := SaveImage(path, img, factor); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	t.Infof("exported %d images to %s", len(paths), dir)
	return paths, nil
}

// SliceImage returns the raw samples of one channel of a volume slice as a
// 16-bit gray image. 8-bit samples are widened so that full scale stays full
// scale.
func SliceImage(v *volume.Volume, perm models.Permutation, index, channel int) (*image.Gray16, error) {
	planes, err := v.Slice(perm, index, []int{channel})
	if err != nil {
		return nil, err
	}
	p := planes[0]
	scale := uint16(65535 / uint32(v.MaxValue()))
	img := image.NewGray16(image.Rect(0, 0, p.Cols, p.Rows))
	for r := 0; r < p.Rows; r++ {
		for c := 0; c < p.Cols; c++ {
			img.SetGray16(c, r, color.Gray16{Y: p.At(r, c) * scale})
		}
	}
	return img, nil
}

// SaveVolume writes every slice of one channel along perm's depth axis as
// raw samples, named after the volume.
func SaveVolume(dir, ext string, v *volume.Volume, perm models.Permutation, channel int) ([]string, error) {
	depth := volume.Extent(v.Shape(), perm)[2]
	name := strings.TrimSuffix(v.Name, filepath.Ext(v.Name))
	return SaveSequence(dir, name, ext, models.Full(depth), 1, func(i int) (image.Image, error) {
		return SliceImage(v, perm, i, channel)
	})
}
