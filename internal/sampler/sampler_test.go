package sampler

import (
	"testing"

	"github.com/logvision/backend/internal/models"
)

func series(n int) []models.FlatPoint {
	points := make([]models.FlatPoint, n)
	for i := range points {
		points[i] = models.FlatPoint{Timestamp: int64(i)}
	}
	return points
}

func TestSampleUnderBudgetIsIdentity(t *testing.T) {
	points := series(1000)
	got := Sample(points, 1000)
	if len(got) != 1000 {
		t.Fatalf("Expected 1000 points, got %d", len(got))
	}
	if &got[0] != &points[0] {
		t.Error("Expected the same backing array when under budget")
	}
}

func TestSampleStride(t *testing.T) {
	cases := []struct {
		n, budget, want, stride int
	}{
		{2500, 1000, 834, 3},
		{1001, 1000, 501, 2},
		{10, 3, 3, 4},
		{100000, 1000, 1000, 100},
	}
	for _, tc := range cases {
		got, stats := SampleWithStats(series(tc.n), tc.budget)
		if len(got) != tc.want {
			t.Errorf("n=%d budget=%d: got %d points, want %d", tc.n, tc.budget, len(got), tc.want)
		}
		if len(got) > tc.budget {
			t.Errorf("n=%d budget=%d: %d points exceed budget", tc.n, tc.budget, len(got))
		}
		if stats.Stride != tc.stride {
			t.Errorf("n=%d budget=%d: stride %d, want %d", tc.n, tc.budget, stats.Stride, tc.stride)
		}
		for i, p := range got {
			if p.Timestamp != int64(i*tc.stride) {
				t.Fatalf("n=%d: point %d has index %d, want %d", tc.n, i, p.Timestamp, i*tc.stride)
			}
		}
	}
}

func TestSampleNoBudget(t *testing.T) {
	points := series(5000)
	if got := Sample(points, 0); len(got) != 5000 {
		t.Errorf("Expected no sampling for zero budget, got %d", len(got))
	}
}
