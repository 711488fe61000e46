package reflow

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestProfileConsecutive(t *testing.T) {
	p := NewProfile([]Obstacle{{Width: 4, Height: 2}, {Width: 6, Height: 3}}, StackConsecutive)
	cases := []struct {
		y    float64
		want float64
	}{
		{0, 4},
		{1.9, 4},
		{2, 6},
		{4.9, 6},
		{5, 0},
		{100, 0},
	}
	for _, c := range cases {
		if got := p.OccupiedWidth(c.y); got != c.want {
			t.Errorf("OccupiedWidth(%g) = %g, want %g", c.y, got, c.want)
		}
	}
	if p.Bottom() != 5 {
		t.Fatalf("Bottom() = %g, want 5", p.Bottom())
	}
	want := []Span{{Top: 0, Bottom: 2, Width: 4}, {Top: 2, Bottom: 5, Width: 6}}
	if diff := cmp.Diff(want, p.Spans()); diff != "" {
		t.Fatalf("spans mismatch (-want +got):\n%s", diff)
	}
}

func TestProfileOverlayTakesWidest(t *testing.T) {
	p := NewProfile([]Obstacle{{Width: 6, Height: 2}, {Width: 4, Height: 5}}, StackOverlay)
	if got := p.OccupiedWidth(1); got != 6 {
		t.Fatalf("y=1: got %g, want 6 (max, not sum)", got)
	}
	if got := p.OccupiedWidth(3); got != 4 {
		t.Fatalf("y=3: got %g, want 4", got)
	}
	if got := p.OccupiedWidth(5); got != 0 {
		t.Fatalf("y=5: got %g, want 0", got)
	}
}

func TestProfileEmptyAndNegative(t *testing.T) {
	empty := NewProfile(nil, StackConsecutive)
	for _, y := range []float64{0, 1, 1e9} {
		if got := empty.OccupiedWidth(y); got != 0 {
			t.Fatalf("empty profile at %g: got %g", y, got)
		}
	}

	p := NewProfile([]Obstacle{{Width: -3, Height: 5}, {Width: 2, Height: -1}, {Width: 1, Height: 1}}, StackConsecutive)
	if got := p.OccupiedWidth(0); got != 1 {
		t.Fatalf("negative sizes should clamp to 0, got %g at y=0", got)
	}
	if p.Bottom() != 6 {
		t.Fatalf("Bottom() = %g, want 6", p.Bottom())
	}
}

func TestProfileZeroBeyondBottom(t *testing.T) {
	sets := [][]Obstacle{
		{{Width: 1, Height: 1}},
		{{Width: 10, Height: 0.5}, {Width: 3, Height: 7}, {Width: 9, Height: 2}},
		{{Width: 5, Height: 4}, {Width: 0, Height: 4}},
	}
	for _, stacking := range []Stacking{StackConsecutive, StackOverlay} {
		for i, obs := range sets {
			p := NewProfile(obs, stacking)
			for _, dy := range []float64{0, 0.001, 1, 50} {
				if got := p.OccupiedWidth(p.Bottom() + dy); got != 0 {
					t.Fatalf("%s set %d: width %g below bottom+%g", stacking, i, got, dy)
				}
			}
		}
	}
}
