// Package view holds the interactive state of a loaded series: zoom domain,
// active segment, panels and signal visibility. Zooming, paging and panel
// edits only re-slice and re-sample the formatted series; only Load runs
// the pipeline.
package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/pipeline"
	"github.com/logvision/backend/internal/sampler"
	"github.com/logvision/backend/internal/segment"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoSeries       = errors.New("no series loaded")
	ErrInvalidRange   = errors.New("invalid time range")
	ErrLastPanel      = errors.New("cannot remove the last panel")
	ErrUnknownPanel   = errors.New("unknown panel")
	ErrUnknownSignal  = errors.New("unknown signal")
	ErrUnknownSegment = errors.New("unknown segment")
	ErrSuperseded     = errors.New("load superseded by a newer one")
)

// Config holds the user-adjustable view settings.
type Config struct {
	Segmentation     segment.Options
	MaxDisplayPoints int
	ChartType        models.ChartType
}

// DefaultConfig returns count-based segments, a 1000 point budget and line charts.
func DefaultConfig() Config {
	return Config{
		Segmentation:     segment.DefaultOptions(),
		MaxDisplayPoints: sampler.DefaultBudget,
		ChartType:        models.ChartTypeLine,
	}
}

// Controller is safe for concurrent use. Readers get immutable snapshots.
type Controller struct {
	runner pipeline.Runner

	mu     sync.RWMutex
	gen    uint64
	cancel context.CancelFunc

	cfg       Config
	state     State
	progress  models.Progress
	warnings  []string
	series    []models.FlatPoint
	extent    *models.TimeRange
	signals   []models.Signal
	panels    []models.Panel
	nextPanel int

	timeRange *models.TimeRange
	working   []models.FlatPoint
	segments  []models.TimeSegment
	active    int
	domain    *models.TimeRange

	snap *Snapshot
}

// NewController creates a controller in the Empty state.
func NewController(runner pipeline.Runner, cfg Config) *Controller {
	if cfg.MaxDisplayPoints <= 0 {
		cfg.MaxDisplayPoints = sampler.DefaultBudget
	}
	if !cfg.ChartType.Valid() {
		cfg.ChartType = models.ChartTypeLine
	}
	c := &Controller{
		runner:    runner,
		cfg:       cfg,
		state:     StateEmpty,
		active:    -1,
		nextPanel: 1,
	}
	c.publish()
	return c
}

// Snapshot returns the current published view.
func (c *Controller) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Series returns the full formatted series of the last completed load.
func (c *Controller) Series() []models.FlatPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.series
}

// Load runs the pipeline on new input. Any load still in flight is
// cancelled and its result discarded. A load that was itself superseded
// returns ErrSuperseded.
func (c *Controller) Load(ctx context.Context, text string, patterns []models.Pattern) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = StateLoading
	c.progress = models.Progress{Stage: models.StageExtracting, Status: "Processing log data..."}
	c.warnings = nil
	c.publish()
	c.mu.Unlock()
	defer cancel()

	res, err := c.runner.Run(runCtx, text, patterns, func(p models.Progress) {
		c.setProgress(gen, p)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		log.Debug().Uint64("generation", gen).Msg("discarding stale load")
		return ErrSuperseded
	}
	c.cancel = nil

	if err != nil {
		c.reset()
		c.warnings = []string{err.Error()}
		c.publish()
		return err
	}

	c.apply(res)
	return nil
}

// Cancel stops the load in flight, if any. The controller returns to Empty.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	c.gen++
	c.reset()
	c.publish()
}

func (c *Controller) setProgress(gen uint64, p models.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.progress = p
	c.publish()
}

// reset drops all series state.
func (c *Controller) reset() {
	c.state = StateEmpty
	c.series = nil
	c.extent = nil
	c.signals = nil
	c.panels = nil
	c.nextPanel = 1
	c.timeRange = nil
	c.working = nil
	c.segments = nil
	c.active = -1
	c.domain = nil
}

func (c *Controller) apply(res *pipeline.Result) {
	c.reset()
	c.progress = models.Progress{Stage: models.StageComplete, Status: "Complete", Percent: 100}
	c.warnings = res.Messages()
	c.signals = append([]models.Signal(nil), res.Signals...)

	if len(c.signals) > 0 {
		ids := make([]string, len(c.signals))
		for i, s := range c.signals {
			ids[i] = s.ID
		}
		c.panels = []models.Panel{{ID: c.newPanelID(), Signals: ids}}
	}

	if res.Empty() {
		c.publish()
		return
	}

	c.series = res.Points
	c.extent = seriesExtent(res.Points)
	c.working = res.Points
	c.state = StateReady
	if err := c.resegment(); err != nil {
		// Options were validated when set; fall back to a single segment.
		c.segments = segment.Whole(c.working)
		c.active = 0
	}
	c.publish()
}

// resegment rebuilds segments from the working set and resets zoom.
func (c *Controller) resegment() error {
	segs, err := segment.Build(c.working, c.cfg.Segmentation)
	if err != nil {
		return err
	}
	c.segments = segs
	c.active = -1
	if len(segs) > 0 {
		c.active = 0
	}
	c.domain = nil
	if c.state == StateZoomed {
		c.state = StateReady
	}
	return nil
}

// base is the data the current view is cut from.
func (c *Controller) base() []models.FlatPoint {
	if c.active >= 0 && c.active < len(c.segments) {
		return c.segments[c.active].Data
	}
	return c.working
}

// Zoom restricts the display to [start, end]. The series is re-sampled,
// never re-extracted.
func (c *Controller) Zoom(start, end time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.HasSeries() {
		return ErrNoSeries
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidRange, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	c.domain = &models.TimeRange{Start: start, End: end}
	c.state = StateZoomed
	c.publish()
	return nil
}

// ResetZoom shows the whole active segment again.
func (c *Controller) ResetZoom() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.HasSeries() {
		return ErrNoSeries
	}
	c.domain = nil
	c.state = StateReady
	c.publish()
	return nil
}

// ZoomBy scales the current domain around its centre. A factor below 1
// zooms in; a domain that grows past the data returns to Ready.
func (c *Controller) ZoomBy(factor float64) error {
	if factor <= 0 {
		return fmt.Errorf("%w: zoom factor must be positive", ErrInvalidRange)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.HasSeries() {
		return ErrNoSeries
	}
	full := seriesExtent(c.base())
	if full == nil {
		return ErrNoSeries
	}
	cur := full
	if c.domain != nil {
		cur = c.domain
	}

	width := cur.End.Sub(cur.Start)
	newWidth := time.Duration(float64(width) * factor)
	if newWidth >= full.End.Sub(full.Start) {
		c.domain = nil
		c.state = StateReady
		c.publish()
		return nil
	}
	if newWidth < time.Millisecond {
		newWidth = time.Millisecond
	}
	centre := cur.Start.Add(width / 2)
	start := centre.Add(-newWidth / 2)
	c.domain = clampDomain(start, newWidth, full)
	c.state = StateZoomed
	c.publish()
	return nil
}

// ZoomIn halves the visible span.
func (c *Controller) ZoomIn() error { return c.ZoomBy(0.5) }

// ZoomOut doubles the visible span.
func (c *Controller) ZoomOut() error { return c.ZoomBy(2) }

// Pan shifts a zoomed domain by fraction of its width, staying within the
// data. It does nothing when not zoomed.
func (c *Controller) Pan(fraction float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.HasSeries() {
		return ErrNoSeries
	}
	if c.domain == nil {
		return nil
	}
	full := seriesExtent(c.base())
	if full == nil {
		return nil
	}
	width := c.domain.End.Sub(c.domain.Start)
	shift := time.Duration(float64(width) * fraction)
	c.domain = clampDomain(c.domain.Start.Add(shift), width, full)
	c.publish()
	return nil
}

// Brush zooms to the span between two indices of the displayed points.
// Indices are clamped; a selection with start >= end is ignored.
func (c *Controller) Brush(startIndex, endIndex int) error {
	snap := c.Snapshot()
	if !snap.State.HasSeries() {
		return ErrNoSeries
	}
	startIndex = max(0, startIndex)
	endIndex = min(len(snap.Points)-1, endIndex)
	if startIndex >= endIndex {
		return nil
	}
	return c.Zoom(snap.Points[startIndex].Time(), snap.Points[endIndex].Time())
}

// SetTimeRange restricts the working set to [start, end] and re-segments it.
func (c *Controller) SetTimeRange(start, end time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.HasSeries() {
		return ErrNoSeries
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end before start", ErrInvalidRange)
	}
	c.timeRange = &models.TimeRange{Start: start, End: end}
	c.working = segment.ExtractRange(c.series, start, end)
	c.state = StateReady
	if err := c.resegment(); err != nil {
		return err
	}
	c.publish()
	return nil
}

// ClearTimeRange restores the full series as the working set.
func (c *Controller) ClearTimeRange() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.HasSeries() {
		return ErrNoSeries
	}
	c.timeRange = nil
	c.working = c.series
	c.state = StateReady
	if err := c.resegment(); err != nil {
		return err
	}
	c.publish()
	return nil
}

// SetSegmentation re-partitions the working set.
func (c *Controller) SetSegmentation(opts segment.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg.Segmentation = opts
	if c.state.HasSeries() {
		if err := c.resegment(); err != nil {
			return err
		}
	}
	c.publish()
	return nil
}

// NextSegment moves to the following segment, wrapping to the first.
func (c *Controller) NextSegment() error {
	return c.stepSegment(1)
}

// PrevSegment moves to the preceding segment, wrapping to the last.
func (c *Controller) PrevSegment() error {
	return c.stepSegment(-1)
}

func (c *Controller) stepSegment(delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.HasSeries() || len(c.segments) == 0 {
		return ErrNoSeries
	}
	n := len(c.segments)
	c.active = ((c.active+delta)%n + n) % n
	c.domain = nil
	c.state = StateReady
	c.publish()
	return nil
}

// SelectSegment activates the segment with the given ID.
func (c *Controller) SelectSegment(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.HasSeries() {
		return ErrNoSeries
	}
	for i, s := range c.segments {
		if s.ID == id {
			c.active = i
			c.domain = nil
			c.state = StateReady
			c.publish()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownSegment, id)
}

// SegmentData returns the points of a segment.
func (c *Controller) SegmentData(id string) ([]models.FlatPoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, s := range c.segments {
		if s.ID == id {
			return s.Data, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSegment, id)
}

// SetMaxDisplayPoints changes the sampling budget.
func (c *Controller) SetMaxDisplayPoints(n int) error {
	if n <= 0 {
		return fmt.Errorf("max display points must be positive, got %d", n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.MaxDisplayPoints = n
	c.publish()
	return nil
}

// SetChartType switches between line and bar rendering. Data is unaffected.
func (c *Controller) SetChartType(t models.ChartType) error {
	if !t.Valid() {
		return fmt.Errorf("unknown chart type: %q", t)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.ChartType = t
	c.publish()
	return nil
}

// publish builds a new snapshot from the current state. Callers hold mu.
func (c *Controller) publish() {
	s := &Snapshot{
		Generation:       c.gen,
		State:            c.state,
		Progress:         c.progress,
		Signals:          append([]models.Signal(nil), c.signals...),
		Panels:           clonePanels(c.panels),
		ActiveSegment:    c.active,
		ChartType:        c.cfg.ChartType,
		Segmentation:     c.cfg.Segmentation,
		MaxDisplayPoints: c.cfg.MaxDisplayPoints,
		Warnings:         append([]string(nil), c.warnings...),
		Points:           []models.FlatPoint{},
		Segments:         make([]SegmentInfo, len(c.segments)),
	}
	for i, seg := range c.segments {
		s.Segments[i] = SegmentInfo{ID: seg.ID, StartTime: seg.StartTime, EndTime: seg.EndTime, PointCount: len(seg.Data)}
	}

	if c.state.HasSeries() {
		view := c.base()
		if c.domain != nil {
			d := *c.domain
			s.Domain = &d
			view = segment.ExtractRange(view, d.Start, d.End)
		}
		points, stats := sampler.SampleWithStats(view, c.cfg.MaxDisplayPoints)
		s.Points = points
		s.Stats = Stats{Total: stats.Total, Displayed: stats.Displayed, SamplingRate: stats.Stride}
		if len(c.segments) > 1 {
			s.Stats.Segment = c.active + 1
			s.Stats.Segments = len(c.segments)
		}
	}

	if c.extent != nil {
		s.DataRange = &models.DataTimeRange{Min: c.extent.Start, Max: c.extent.End}
		if c.timeRange != nil {
			tr := *c.timeRange
			s.DataRange.Selected = &tr
		}
	}
	c.snap = s
}

func seriesExtent(points []models.FlatPoint) *models.TimeRange {
	if len(points) == 0 {
		return nil
	}
	lo, hi := points[0].Timestamp, points[0].Timestamp
	for _, p := range points[1:] {
		lo = min(lo, p.Timestamp)
		hi = max(hi, p.Timestamp)
	}
	return &models.TimeRange{Start: time.UnixMilli(lo).UTC(), End: time.UnixMilli(hi).UTC()}
}

func clampDomain(start time.Time, width time.Duration, full *models.TimeRange) *models.TimeRange {
	if start.Before(full.Start) {
		start = full.Start
	}
	end := start.Add(width)
	if end.After(full.End) {
		end = full.End
		start = end.Add(-width)
		if start.Before(full.Start) {
			start = full.Start
		}
	}
	return &models.TimeRange{Start: start, End: end}
}
