package annotation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"volview/internal/models"
)

// newTestAtlas builds a 4x4x3 atlas with a 2x2 block of label 5 at depth 1
// and label 7 filling depth 2
func newTestAtlas(t *testing.T) *Atlas {
	t.Helper()
	extent := [3]int{4, 4, 3}
	labels := make([]int32, 48)
	for y := 1; y <= 2; y++ {
		for x := 1; x <= 2; x++ {
			labels[(1*4+y)*4+x] = 5
		}
	}
	for i := 32; i < 48; i++ {
		labels[i] = 7
	}
	a, err := New(extent, labels)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	a.Regions["block"] = []int32{5}
	a.Regions["floor"] = []int32{7}
	return a
}

// TestMaskSlice verifies membership in a Z slice
func TestMaskSlice(t *testing.T) {
	a := newTestAtlas(t)
	m, err := a.Mask("block", models.PermZ, models.Range{Min: 1, Max: 1})
	if err != nil {
		t.Fatal(err)
	}
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			want := r >= 1 && r <= 2 && c >= 1 && c <= 2
			if m.At(r, c) != want {
				t.Errorf("At(%d,%d) = %v, want %v", r, c, m.At(r, c), want)
			}
		}
	}
	m, err = a.Mask("block", models.PermZ, models.Range{Min: 0, Max: 0})
	if err != nil {
		t.Fatal(err)
	}
	for _, in := range m.In {
		if in {
			t.Fatal("Expected empty mask at depth 0")
		}
	}
}

// TestMaskProjection verifies that a range is the union over depth
func TestMaskProjection(t *testing.T) {
	a := newTestAtlas(t)
	m, err := a.Mask("floor", models.PermY, models.Range{Min: 0, Max: 3})
	if err != nil {
		t.Fatal(err)
	}
	if m.Rows != 3 || m.Cols != 4 {
		t.Fatalf("Expected 3x4 mask for Y depth, got %dx%d", m.Rows, m.Cols)
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			if m.At(r, c) != (r == 2) {
				t.Errorf("At(%d,%d) = %v", r, c, m.At(r, c))
			}
		}
	}
}

// TestMaskErrors verifies unknown regions and bad ranges
func TestMaskErrors(t *testing.T) {
	a := newTestAtlas(t)
	if _, err := a.Mask("nowhere", models.PermZ, models.Range{}); !errors.Is(err, models.ErrUnknownRegion) {
		t.Errorf("Expected unknown region, got %v", err)
	}
	if _, err := a.Mask("block", models.PermZ, models.Range{Min: 0, Max: 3}); err == nil {
		t.Error("Expected error for range past the depth axis")
	}
	if _, err := New([3]int{2, 2, 2}, make([]int32, 7)); !errors.Is(err, models.ErrShapeMismatch) {
		t.Errorf("Expected shape mismatch, got %v", err)
	}
}

// TestLoadRegions verifies the YAML region table
func TestLoadRegions(t *testing.T) {
	a := newTestAtlas(t)
	path := filepath.Join(t.TempDir(), "regions.yaml")
	data := "regions:\n  cortex: [1, 2, 3]\n  block: [5, 6]\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	if err := a.LoadRegions(path); err != nil {
		t.Fatalf("LoadRegions failed: %v", err)
	}
	if diff := cmp.Diff([]string{"block", "cortex", "floor"}, a.RegionNames()); diff != "" {
		t.Errorf("Unexpected region names (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int32{5, 6}, a.Regions["block"]); diff != "" {
		t.Errorf("Unexpected labels (-want +got):\n%s", diff)
	}
	if err := a.LoadRegions(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
