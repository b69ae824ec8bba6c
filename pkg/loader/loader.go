// Package loader turns image files and in-memory arrays into volumes.
//
// Single images become one-slice volumes. Image series become stacks, one
// file per (slice, channel), either decoded up front or on demand through the
// volume's plane cache.
package loader

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"volview/internal/models"
	"volview/pkg/logging"
	"volview/pkg/volume"
)

// Extensions lists the file extensions ListImages picks up.
var Extensions = []string{".tif", ".tiff", ".png", ".jpg", ".jpeg", ".bmp"}

// FromArray wraps samples laid out channel-major, index ((c*D+z)*H+y)*W+x.
func FromArray(name string, shape models.Shape, bits models.BitDepth, samples []uint16) (*volume.Volume, error) {
	v, err := volume.FromSamples(name, shape, bits, samples)
	if err != nil {
		return nil, fmt.Errorf("failed to load array %s: %w", name, err)
	}
	return v, nil
}

// decode reads and decodes one image file.
func decode(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// decodeConfig reads only the header of an image file.
func decodeConfig(path string) (image.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return image.Config{}, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	return cfg, nil
}

// describe returns the channel count and bit depth a colour model maps to.
func describe(m color.Model) (int, models.BitDepth) {
	switch m {
	case color.GrayModel:
		return 1, models.Bits8
	case color.Gray16Model:
		return 1, models.Bits16
	case color.RGBA64Model, color.NRGBA64Model:
		return 3, models.Bits16
	}
	return 3, models.Bits8
}

// samples extracts one channel of img into a rows x cols plane. Gray
// channels are the luminance, colour channels 0..2 are R, G and B.
func samples(img image.Image, c int, bits models.BitDepth) []uint16 {
	b := img.Bounds()
	out := make([]uint16, b.Dx()*b.Dy())
	shift := uint(0)
	if bits == models.Bits8 {
		shift = 8
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			col := img.At(x, y)
			var s uint32
			switch c {
			case -1:
				s = uint32(color.Gray16Model.Convert(col).(color.Gray16).Y)
			case 0:
				s, _, _, _ = col.RGBA()
			case 1:
				_, s, _, _ = col.RGBA()
			default:
				_, _, s, _ = col.RGBA()
			}
			out[i] = uint16(s >> shift)
			i++
		}
	}
	return out
}

// FromFile loads a single 2D image as a one-slice volume. Gray images give
// one channel, colour images three. 16-bit images give a 16-bit volume.
func FromFile(path string) (*volume.Volume, error) {
	img, err := decode(path)
	if err != nil {
		return nil, err
	}
	nc, bits := describe(img.ColorModel())
	b := img.Bounds()
	shape := models.Shape{H: b.Dy(), W: b.Dx(), D: 1, C: nc}
	data := make([]uint16, 0, shape.Voxels()*nc)
	if nc == 1 {
		data = append(data, samples(img, -1, bits)...)
	} else {
		for c := 0; c < nc; c++ {
			data = append(data, samples(img, c, bits)...)
		}
	}
	v, err := volume.FromSamples(filepath.Base(path), shape, bits, data)
	if err != nil {
		return nil, err
	}
	logging.Infof("loaded %s as %v, %d-bit", path, shape, bits)
	return v, nil
}

// extractNumber returns the digits of a file's base name as an integer, or
// 0 when it has none.
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	num, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return num
}

// SortByNumber orders paths by the number embedded in their base names,
// falling back to the name for equal numbers.
func SortByNumber(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		ni, nj := extractNumber(paths[i]), extractNumber(paths[j])
		if ni != nj {
			return ni < nj
		}
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})
}

// ListImages returns the image files of dir in slice order.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range Extensions {
			if ext == want {
				paths = append(paths, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}
	SortByNumber(paths)
	return paths, nil
}
