// Package persist reads and writes the viewer's small binary artifacts:
// view ranges, stitch positions, landmark points and slice transforms.
//
// Every artifact is a headerless little-endian array. The element count is
// implied by the file length.
package persist

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"volview/internal/models"
	"volview/pkg/landmark"
	"volview/pkg/warp"
)

var order = binary.LittleEndian

// WriteRange writes the three inclusive (min, max) bounds as 6 int64.
func WriteRange(w io.Writer, r models.ViewRange) error {
	var buf [6]int64
	for a := 0; a < 3; a++ {
		buf[2*a], buf[2*a+1] = int64(r[a].Min), int64(r[a].Max)
	}
	return binary.Write(w, order, buf)
}

// ReadRange reads a range written by WriteRange.
func ReadRange(r io.Reader) (models.ViewRange, error) {
	var buf [6]int64
	var out models.ViewRange
	if err := binary.Read(r, order, &buf); err != nil {
		return out, fmt.Errorf("failed to read range: %w", err)
	}
	for a := 0; a < 3; a++ {
		out[a] = models.Range{Min: int(buf[2*a]), Max: int(buf[2*a+1])}
		if out[a].Min > out[a].Max {
			return out, models.Invalid("read range", models.ErrInvalidArgument, "axis %d bounds %v", a, out[a])
		}
	}
	return out, nil
}

// WritePositions writes one (row, col, depth) int64 triple per tile.
func WritePositions(w io.Writer, offsets []models.Point3) error {
	buf := make([]int64, 0, 3*len(offsets))
	for _, o := range offsets {
		buf = append(buf, int64(o[0]), int64(o[1]), int64(o[2]))
	}
	return binary.Write(w, order, buf)
}

// ReadPositions reads tile offsets written by WritePositions.
func ReadPositions(r io.Reader) ([]models.Point3, error) {
	data, err := readRecords(r, 3*8, "positions")
	if err != nil {
		return nil, err
	}
	buf := make([]int64, len(data)/8)
	if err := binary.Read(bytes.NewReader(data), order, buf); err != nil {
		return nil, err
	}
	out := make([]models.Point3, len(buf)/3)
	for i := range out {
		out[i] = models.Point3{int(buf[3*i]), int(buf[3*i+1]), int(buf[3*i+2])}
	}
	return out, nil
}

// WritePoints writes landmarks as one-based (col, row, depth) float64.
func WritePoints(w io.Writer, pts []landmark.Point) error {
	buf := make([]float64, 0, 3*len(pts))
	for _, p := range pts {
		buf = append(buf, p.Col+1, p.Row+1, p.Depth+1)
	}
	return binary.Write(w, order, buf)
}

// ReadPoints reads landmarks written by WritePoints.
func ReadPoints(r io.Reader) ([]landmark.Point, error) {
	data, err := readRecords(r, 3*8, "points")
	if err != nil {
		return nil, err
	}
	buf := make([]float64, len(data)/8)
	if err := binary.Read(bytes.NewReader(data), order, buf); err != nil {
		return nil, err
	}
	out := make([]landmark.Point, len(buf)/3)
	for i := range out {
		out[i] = landmark.Point{Row: buf[3*i+1] - 1, Col: buf[3*i] - 1, Depth: buf[3*i+2] - 1}
	}
	return out, nil
}

// WriteTransform writes the target shape as 3 int64 followed by six
// float64 coefficients per slice.
func WriteTransform(w io.Writer, t *warp.Transform) error {
	shape := [3]int64{int64(t.TargetShape[0]), int64(t.TargetShape[1]), int64(t.TargetShape[2])}
	if err := binary.Write(w, order, shape); err != nil {
		return err
	}
	buf := make([]float64, 0, 6*len(t.Slices))
	for _, a := range t.Slices {
		buf = append(buf, a[:]...)
	}
	return binary.Write(w, order, buf)
}

// ReadTransform reads a transform written by WriteTransform.
func ReadTransform(r io.Reader) (*warp.Transform, error) {
	var shape [3]int64
	if err := binary.Read(r, order, &shape); err != nil {
		return nil, fmt.Errorf("failed to read transform shape: %w", err)
	}
	data, err := readRecords(r, 6*8, "transform")
	if err != nil {
		return nil, err
	}
	buf := make([]float64, len(data)/8)
	if err := binary.Read(bytes.NewReader(data), order, buf); err != nil {
		return nil, err
	}
	t := &warp.Transform{
		TargetShape: [3]int{int(shape[0]), int(shape[1]), int(shape[2])},
		Slices:      make([]warp.Affine, len(buf)/6),
	}
	for i := range t.Slices {
		copy(t.Slices[i][:], buf[6*i:6*i+6])
	}
	return t, nil
}

// readRecords reads the rest of r and checks it holds whole records.
func readRecords(r io.Reader, size int, what string) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", what, err)
	}
	if len(data)%size != 0 {
		return nil, models.Invalid("read "+what, models.ErrInvalidArgument,
			"%d bytes is not a multiple of the %d-byte record", len(data), size)
	}
	return data, nil
}

// Save creates path and writes an artifact to it with write.
func Save(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load opens path and reads an artifact from it with read.
func Load[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	v, err := read(bufio.NewReader(f))
	if err != nil {
		return v, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return v, nil
}
