// Package segment partitions a formatted series into time segments and
// extracts time ranges from it.
package segment

import (
	"fmt"
	"sort"
	"time"

	"github.com/logvision/backend/internal/models"
)

// Strategy selects how a series is partitioned.
type Strategy string

const (
	StrategyNone       Strategy = "none"
	StrategyByCount    Strategy = "by-count"
	StrategyByDuration Strategy = "by-duration"
)

// Defaults.
const (
	DefaultPointsPerSegment = 5000
	DefaultWindowMinutes    = 15
)

// Options configures segmentation.
type Options struct {
	Strategy         Strategy `json:"strategy"`
	PointsPerSegment int      `json:"pointsPerSegment,omitempty"`
	WindowMinutes    int      `json:"windowMinutes,omitempty"`
}

// DefaultOptions segments by count with DefaultPointsPerSegment.
func DefaultOptions() Options {
	return Options{
		Strategy:         StrategyByCount,
		PointsPerSegment: DefaultPointsPerSegment,
		WindowMinutes:    DefaultWindowMinutes,
	}
}

// Validate reports unknown strategies and non-positive sizes.
func (o Options) Validate() error {
	switch o.Strategy {
	case StrategyNone, "":
	case StrategyByCount:
		if o.PointsPerSegment < 0 {
			return fmt.Errorf("points per segment must be positive, got %d", o.PointsPerSegment)
		}
	case StrategyByDuration:
		if o.WindowMinutes < 0 {
			return fmt.Errorf("window minutes must be positive, got %d", o.WindowMinutes)
		}
	default:
		return fmt.Errorf("unknown segmentation strategy: %q", o.Strategy)
	}
	return nil
}

// Build partitions points according to opts. The result is contiguous and
// exhaustive: every point lands in exactly one segment.
func Build(points []models.FlatPoint, opts Options) ([]models.TimeSegment, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch opts.Strategy {
	case StrategyByCount:
		n := opts.PointsPerSegment
		if n == 0 {
			n = DefaultPointsPerSegment
		}
		return ByCount(points, n), nil
	case StrategyByDuration:
		m := opts.WindowMinutes
		if m == 0 {
			m = DefaultWindowMinutes
		}
		return ByDuration(points, time.Duration(m)*time.Minute), nil
	default:
		return Whole(points), nil
	}
}

// Whole returns a single segment holding every point.
func Whole(points []models.FlatPoint) []models.TimeSegment {
	if len(points) == 0 {
		return nil
	}
	return []models.TimeSegment{newSegment(0, points[0].Time(), points[len(points)-1].Time(), points)}
}

// ByCount splits points into consecutive runs of n, keeping their order.
// The last segment may be shorter. Start and end are the timestamps of the
// first and last point of each segment.
func ByCount(points []models.FlatPoint, n int) []models.TimeSegment {
	if len(points) == 0 || n <= 0 {
		return nil
	}
	segments := make([]models.TimeSegment, 0, (len(points)+n-1)/n)
	for i := 0; i < len(points); i += n {
		data := points[i:min(i+n, len(points))]
		segments = append(segments, newSegment(len(segments), data[0].Time(), data[len(data)-1].Time(), data))
	}
	return segments
}

// ByDuration buckets points into fixed windows on a grid anchored at the
// floored timestamp of the first point. Points are bucketed by key, so their
// input order does not matter; buckets are emitted by ascending start and
// empty ones are skipped. Within a bucket points keep their input order.
// A segment ends one window after it starts (exclusive).
func ByDuration(points []models.FlatPoint, window time.Duration) []models.TimeSegment {
	windowMs := window.Milliseconds()
	if len(points) == 0 || windowMs <= 0 {
		return nil
	}

	anchor := floorDiv(points[0].Timestamp, windowMs) * windowMs

	buckets := make(map[int64][]models.FlatPoint)
	for _, p := range points {
		start := anchor + floorDiv(p.Timestamp-anchor, windowMs)*windowMs
		buckets[start] = append(buckets[start], p)
	}

	starts := make([]int64, 0, len(buckets))
	for s := range buckets {
		starts = append(starts, s)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	segments := make([]models.TimeSegment, 0, len(starts))
	for _, s := range starts {
		begin := time.UnixMilli(s).UTC()
		segments = append(segments, newSegment(len(segments), begin, begin.Add(window), buckets[s]))
	}
	return segments
}

// ExtractRange returns the points with start <= t <= end, in their original order.
func ExtractRange(points []models.FlatPoint, start, end time.Time) []models.FlatPoint {
	lo, hi := start.UnixMilli(), end.UnixMilli()
	out := make([]models.FlatPoint, 0)
	for _, p := range points {
		if p.Timestamp >= lo && p.Timestamp <= hi {
			out = append(out, p)
		}
	}
	return out
}

// Locate returns the index of the segment whose time span contains t, or -1.
func Locate(segments []models.TimeSegment, t time.Time) int {
	for i, s := range segments {
		if !t.Before(s.StartTime) && !t.After(s.EndTime) {
			return i
		}
	}
	return -1
}

func newSegment(i int, start, end time.Time, data []models.FlatPoint) models.TimeSegment {
	return models.TimeSegment{
		ID:        fmt.Sprintf("segment-%d", i),
		StartTime: start,
		EndTime:   end,
		Data:      data,
	}
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
