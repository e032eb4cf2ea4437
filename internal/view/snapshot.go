package view

import (
	"time"

	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/segment"
)

// State is the lifecycle state of a Controller.
type State string

const (
	StateEmpty   State = "empty"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateZoomed  State = "zoomed"
)

// HasSeries reports whether a formatted series is available.
func (s State) HasSeries() bool {
	return s == StateReady || s == StateZoomed
}

// SegmentInfo describes a segment without its points.
type SegmentInfo struct {
	ID         string    `json:"id"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	PointCount int       `json:"pointCount"`
}

// Stats is the "data stats" line shown above a chart.
type Stats struct {
	Total        int `json:"total"`
	Displayed    int `json:"displayed"`
	SamplingRate int `json:"samplingRate"`
	Segment      int `json:"segment,omitempty"`  // 1-based
	Segments     int `json:"segments,omitempty"` // total
}

// Snapshot is an immutable picture of the controller. Callers must not
// modify it; every change publishes a new Snapshot.
type Snapshot struct {
	Generation       uint64                `json:"generation"`
	State            State                 `json:"state"`
	Progress         models.Progress       `json:"progress"`
	Signals          []models.Signal       `json:"signals"`
	Panels           []models.Panel        `json:"panels"`
	Segments         []SegmentInfo         `json:"segments"`
	ActiveSegment    int                   `json:"activeSegment"` // -1 when there are none
	Domain           *models.TimeRange     `json:"domain,omitempty"`
	DataRange        *models.DataTimeRange `json:"dataRange,omitempty"`
	Points           []models.FlatPoint    `json:"points"`
	Stats            Stats                 `json:"stats"`
	ChartType        models.ChartType      `json:"chartType"`
	Segmentation     segment.Options       `json:"segmentation"`
	MaxDisplayPoints int                   `json:"maxDisplayPoints"`
	Warnings         []string              `json:"warnings,omitempty"`
}

// ActiveSegmentID returns the ID of the active segment, or "".
func (s *Snapshot) ActiveSegmentID() string {
	if s.ActiveSegment < 0 || s.ActiveSegment >= len(s.Segments) {
		return ""
	}
	return s.Segments[s.ActiveSegment].ID
}

// Signal returns the signal with the given ID.
func (s *Snapshot) Signal(id string) (models.Signal, bool) {
	for _, sig := range s.Signals {
		if sig.ID == id {
			return sig, true
		}
	}
	return models.Signal{}, false
}

// PanelSignals returns the visible signals of a panel, in panel order.
func (s *Snapshot) PanelSignals(panelID string) []models.Signal {
	for _, p := range s.Panels {
		if p.ID != panelID {
			continue
		}
		out := make([]models.Signal, 0, len(p.Signals))
		for _, id := range p.Signals {
			if sig, ok := s.Signal(id); ok && sig.Visible {
				out = append(out, sig)
			}
		}
		return out
	}
	return nil
}
