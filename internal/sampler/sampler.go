// Package sampler decimates a series down to a display budget.
package sampler

import "github.com/logvision/backend/internal/models"

// DefaultBudget is the default maximum number of displayed points.
const DefaultBudget = 1000

// Stats summarizes a sampling decision.
type Stats struct {
	Total     int `json:"total"`
	Displayed int `json:"displayed"`
	Stride    int `json:"stride"`
}

// Stride returns the step that keeps n points within budget. It is 1 when
// no decimation is needed.
func Stride(n, budget int) int {
	if budget <= 0 || n <= budget {
		return 1
	}
	return (n + budget - 1) / budget
}

// Sample keeps every stride-th point starting with the first. When the input
// already fits the budget the same slice is returned without copying. No
// aggregation happens, so a spike narrower than the stride can be dropped.
func Sample(points []models.FlatPoint, budget int) []models.FlatPoint {
	stride := Stride(len(points), budget)
	if stride == 1 {
		return points
	}
	out := make([]models.FlatPoint, 0, (len(points)+stride-1)/stride)
	for i := 0; i < len(points); i += stride {
		out = append(out, points[i])
	}
	return out
}

// SampleWithStats samples and reports what was kept.
func SampleWithStats(points []models.FlatPoint, budget int) ([]models.FlatPoint, Stats) {
	out := Sample(points, budget)
	return out, Stats{
		Total:     len(points),
		Displayed: len(out),
		Stride:    Stride(len(points), budget),
	}
}
