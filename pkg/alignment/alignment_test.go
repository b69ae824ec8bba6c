package alignment

import (
	"errors"
	"testing"

	"volview/internal/models"
)

// TestBuildOneToOne checks a reference span as long as the target range
func TestBuildOneToOne(t *testing.T) {
	m, err := Build(10, 19, 30, models.Range{Min: 0, Max: 9})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if m.Reverse(0) != 10 || m.Reverse(9) != 19 {
		t.Errorf("Expected target 0 and 9 at reference 10 and 19, got %d and %d", m.Reverse(0), m.Reverse(9))
	}
	if m.Forward(10) != 0 || m.Forward(19) != 9 {
		t.Errorf("Expected forward 0 and 9, got %d and %d", m.Forward(10), m.Forward(19))
	}
	for _, ref := range []int{0, 9, 20, 29, -1, 30} {
		if m.Forward(ref) != None {
			t.Errorf("Expected no correspondence at %d, got %d", ref, m.Forward(ref))
		}
	}
}

// TestBuildOffsetTarget checks a target range that does not start at zero
func TestBuildOffsetTarget(t *testing.T) {
	m, err := Build(10, 19, 20, models.Range{Min: 10, Max: 19})
	if err != nil {
		t.Fatal(err)
	}
	if m.Forward(10) != 10 || m.Forward(19) != 19 {
		t.Errorf("Expected identity over [10,19], got %d..%d", m.Forward(10), m.Forward(19))
	}
}

// TestRoundTrip checks reverse(forward(i)) == i without compression
func TestRoundTrip(t *testing.T) {
	m, err := Build(3, 12, 15, models.Range{Min: 5, Max: 14})
	if err != nil {
		t.Fatal(err)
	}
	for ref := 3; ref <= 12; ref++ {
		if got := m.Reverse(m.Forward(ref)); got != ref {
			t.Errorf("Round trip of %d gave %d", ref, got)
		}
	}
}

// TestCompression checks the many-to-one table and midpoint lookup
func TestCompression(t *testing.T) {
	m, err := Build(0, 9, 10, models.Range{Min: 0, Max: 2})
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0, 0, 0, 0, 1, 1, 1, 2, 2, 2}
	for ref, w := range want {
		if m.Forward(ref) != w {
			t.Errorf("Forward(%d) = %d, want %d", ref, m.Forward(ref), w)
		}
	}
	if m.Reverse(0) != 1 || m.Reverse(1) != 5 || m.Reverse(2) != 8 {
		t.Errorf("Expected run midpoints 1, 5, 8, got %d, %d, %d", m.Reverse(0), m.Reverse(1), m.Reverse(2))
	}
	if m.Reverse(3) != None {
		t.Errorf("Expected unmapped target, got %d", m.Reverse(3))
	}
}

// TestExactSpread checks the spread uses exact integer arithmetic, which
// keeps i*L/n from rounding down a step early
func TestExactSpread(t *testing.T) {
	m, err := Build(0, 17, 18, models.Range{Min: 0, Max: 13})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := m.Forward(9); got != 7 {
		t.Errorf("Expected reference 9 at target 7, got %d", got)
	}
	prev := m.Forward(0)
	for ref := 1; ref < 18; ref++ {
		got := m.Forward(ref)
		if got < prev || got > prev+1 {
			t.Fatalf("Expected a non-decreasing unit-step spread, got %d after %d at %d", got, prev, ref)
		}
		prev = got
	}
	if prev != 13 {
		t.Errorf("Expected the last reference index at target 13, got %d", prev)
	}
}

// TestReversedDirection checks end < start
func TestReversedDirection(t *testing.T) {
	m, err := Build(19, 10, 20, models.Range{Min: 0, Max: 9})
	if err != nil {
		t.Fatal(err)
	}
	if m.Forward(19) != 0 || m.Forward(10) != 9 {
		t.Errorf("Expected 19->0 and 10->9, got %d and %d", m.Forward(19), m.Forward(10))
	}
	if m.Reverse(0) != 19 {
		t.Errorf("Expected reverse 0 -> 19, got %d", m.Reverse(0))
	}
}

// TestBuildErrors checks rejected inputs
func TestBuildErrors(t *testing.T) {
	if _, err := Build(10, 14, 20, models.Range{Min: 0, Max: 9}); !errors.Is(err, models.ErrRangeTooShort) {
		t.Errorf("Expected range too short, got %v", err)
	}
	if _, err := Build(10, 25, 20, models.Range{Min: 0, Max: 9}); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected invalid argument for bounds outside the axis, got %v", err)
	}
	if !models.IsValidation(func() error { _, err := Build(0, 0, 0, models.Range{}); return err }()) {
		t.Error("Expected validation error for empty reference axis")
	}
}
