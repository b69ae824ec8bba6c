package stitch

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"volview/internal/models"
)

// TestPlaceTwoTiles verifies the side-by-side layout of two equal tiles
func TestPlaceTwoTiles(t *testing.T) {
	tiles := []Tile{{Extent: [3]int{50, 50, 1}}, {Extent: [3]int{50, 50, 1}}}
	p := Place(tiles)

	want := []models.Point3{{0, 0, 0}, {0, 50, 0}}
	if diff := cmp.Diff(want, p.Offsets); diff != "" {
		t.Errorf("Unexpected offsets (-want +got):\n%s", diff)
	}
	if p.Shape != [3]int{50, 100, 1} {
		t.Errorf("Expected combined shape (50,100,1), got %v", p.Shape)
	}
}

// TestPlaceGridWrap verifies the row wrap after ceil(sqrt(n)) columns
func TestPlaceGridWrap(t *testing.T) {
	tiles := []Tile{
		{Extent: [3]int{10, 20, 3}},
		{Extent: [3]int{30, 10, 1}},
		{Extent: [3]int{5, 5, 2}},
		{Extent: [3]int{10, 10, 1}},
		{Extent: [3]int{10, 10, 1}},
	}
	p := Place(tiles)

	want := []models.Point3{
		{0, 0, 0}, {0, 20, 0}, {0, 30, 0},
		{30, 0, 0}, {30, 10, 0},
	}
	if diff := cmp.Diff(want, p.Offsets); diff != "" {
		t.Errorf("Unexpected offsets (-want +got):\n%s", diff)
	}
	if p.Shape != [3]int{40, 35, 3} {
		t.Errorf("Expected combined shape (40,35,3), got %v", p.Shape)
	}
}

// TestPlaceStage verifies conversion of stage positions to pixels
func TestPlaceStage(t *testing.T) {
	a, b := [3]float64{100, 50, 0}, [3]float64{110, 80, 4}
	ps := models.PixelSize{Y: 0.5, X: 0.5, Z: 2}
	p := Place([]Tile{
		{Extent: [3]int{40, 40, 3}, Stage: &a, PixelSize: ps},
		{Extent: [3]int{40, 40, 3}, Stage: &b, PixelSize: ps},
	})
	want := []models.Point3{{0, 0, 0}, {20, 60, 2}}
	if diff := cmp.Diff(want, p.Offsets); diff != "" {
		t.Errorf("Unexpected offsets (-want +got):\n%s", diff)
	}
	if p.Shape != [3]int{60, 100, 5} {
		t.Errorf("Expected combined shape (60,100,5), got %v", p.Shape)
	}

	// one missing stage position falls back to the grid
	p = Place([]Tile{
		{Extent: [3]int{40, 40, 3}, Stage: &a, PixelSize: ps},
		{Extent: [3]int{40, 40, 3}},
	})
	if p.Offsets[1] != (models.Point3{0, 40, 0}) {
		t.Errorf("Expected grid fallback, got %v", p.Offsets)
	}
}

// TestMinimumOffsetIsZero checks normalisation after random edits
func TestMinimumOffsetIsZero(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var tiles []Tile
	for i := 0; i < 9; i++ {
		tiles = append(tiles, Tile{Extent: [3]int{1 + rng.Intn(30), 1 + rng.Intn(30), 1 + rng.Intn(4)}})
	}
	p := Place(tiles)
	steps := []int{-Coarse, -Medium, -Fine, Fine, Medium, Coarse}
	for i := 0; i < 200 && len(p.Offsets) > 0; i++ {
		switch rng.Intn(4) {
		case 0, 1:
			if err := p.Nudge([]int{rng.Intn(len(p.Offsets))}, rng.Intn(3), steps[rng.Intn(len(steps))]); err != nil {
				t.Fatal(err)
			}
		case 2:
			if err := p.Resize(rng.Intn(len(p.Offsets)), [3]int{1 + rng.Intn(30), 1 + rng.Intn(30), 1}); err != nil {
				t.Fatal(err)
			}
		case 3:
			if len(p.Offsets) > 1 && rng.Intn(10) == 0 {
				if err := p.Remove(rng.Intn(len(p.Offsets))); err != nil {
					t.Fatal(err)
				}
			}
		}
		for ax := 0; ax < 3; ax++ {
			lo := p.Offsets[0][ax]
			for _, o := range p.Offsets {
				lo = min(lo, o[ax])
			}
			if lo != 0 {
				t.Fatalf("step %d: minimum offset on axis %d is %d", i, ax, lo)
			}
		}
	}
}

// TestNudgeAndSwap verifies nudging, reordering and invalid tiles
func TestNudgeAndSwap(t *testing.T) {
	p := Place([]Tile{{Extent: [3]int{50, 50, 1}}, {Extent: [3]int{50, 50, 1}}})
	if err := p.Nudge([]int{1}, models.AxisCol, -Medium); err != nil {
		t.Fatal(err)
	}
	if p.Offsets[1] != (models.Point3{0, 40, 0}) || p.Shape != [3]int{50, 90, 1} {
		t.Errorf("Expected overlap after nudge, got %v %v", p.Offsets, p.Shape)
	}
	if err := p.Nudge([]int{0}, models.AxisRow, Fine); err != nil {
		t.Fatal(err)
	}
	if p.Offsets[0] != (models.Point3{1, 0, 0}) || p.Offsets[1] != (models.Point3{0, 40, 0}) {
		t.Errorf("Unexpected offsets %v", p.Offsets)
	}
	if err := p.Swap(0, 1); err != nil {
		t.Fatal(err)
	}
	if p.Offsets[0] != (models.Point3{0, 40, 0}) {
		t.Errorf("Expected swapped offsets, got %v", p.Offsets)
	}
	if err := p.Nudge([]int{2}, 0, 1); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected invalid argument for unknown tile, got %v", err)
	}
	if err := p.SetOffsets([]models.Point3{{0, 0, 0}}); !errors.Is(err, models.ErrShapeMismatch) {
		t.Errorf("Expected shape mismatch for wrong position count, got %v", err)
	}
}

// TestLocal verifies translation into tile coordinates
func TestLocal(t *testing.T) {
	p := Place([]Tile{{Extent: [3]int{50, 50, 4}}, {Extent: [3]int{50, 50, 2}}})
	if q, ok := p.Local(1, models.Point3{10, 60, 1}); !ok || q != (models.Point3{10, 10, 1}) {
		t.Errorf("Expected local (10,10,1), got %v %v", q, ok)
	}
	if _, ok := p.Local(1, models.Point3{10, 60, 3}); ok {
		t.Error("Expected depth 3 to be outside the second tile")
	}

	r, ok := p.LocalRange(1, models.ViewRange{{Min: 0, Max: 49}, {Min: 40, Max: 70}, {Min: 0, Max: 3}})
	want := models.ViewRange{{Min: 0, Max: 49}, {Min: 0, Max: 20}, {Min: 0, Max: 1}}
	if !ok || r != want {
		t.Errorf("Expected %v, got %v (%v)", want, r, ok)
	}
	if _, ok := p.LocalRange(1, models.ViewRange{{Min: 0, Max: 49}, {Min: 0, Max: 49}, {Min: 0, Max: 3}}); ok {
		t.Error("Expected no intersection with the second tile")
	}
}

// TestParseOverlap verifies overlap mode names
func TestParseOverlap(t *testing.T) {
	for _, name := range []string{"max", "replace"} {
		m, err := ParseOverlap(name)
		if err != nil || m.String() != name {
			t.Errorf("ParseOverlap(%q) = %v, %v", name, m, err)
		}
	}
	if _, err := ParseOverlap("blend"); err == nil {
		t.Error("Expected error for unknown mode")
	}
}
