package preview

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/pipeline"
	"github.com/logvision/backend/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func point(offset time.Duration, cpu float64, state string) models.FlatPoint {
	p := models.FlatPoint{
		Timestamp: start.Add(offset).UnixMilli(),
		Values:    map[string]float64{"cpu": cpu},
	}
	if state != "" {
		p.Originals = map[string]string{"state": state}
	}
	return p
}

var signals = []models.Signal{
	{ID: "s-cpu", Name: "cpu", Pattern: models.Pattern{ID: "p-7f3a", Name: "cpu"}, Color: "#3B82F6", Visible: true},
	{ID: "s-state", Name: "state", Pattern: models.Pattern{ID: "p-91c2", Name: "state"}, Color: "#10B981", Visible: true},
}

func TestSeries(t *testing.T) {
	points := []models.FlatPoint{
		{Values: map[string]float64{"b": 3}},
		{Values: map[string]float64{"a": 1, "b": 4}},
		{Values: map[string]float64{"b": 5}},
	}
	got := Series(points, []string{"a", "b"})
	assert.Equal(t, [][]float64{{0, 1, 1}, {3, 4, 5}}, got)
}

func TestSteps(t *testing.T) {
	assert.Equal(t, []float64{1, 1, 2, 2}, steps([]float64{1, 2}))
}

func TestChartEmpty(t *testing.T) {
	out := Chart(nil, signals, models.ChartTypeLine, Options{Width: 10, Height: 3})
	assert.NotEmpty(t, out)

	hidden := []models.Signal{{ID: "x", Visible: false}}
	out = Chart([]models.FlatPoint{point(0, 1, "")}, hidden, models.ChartTypeLine, Options{Width: 10, Height: 3})
	assert.NotEmpty(t, out)
}

func TestChartLabels(t *testing.T) {
	points := []models.FlatPoint{point(0, 1, ""), point(30*time.Second, 5, ""), point(time.Minute, 2, "")}
	for _, ct := range []models.ChartType{models.ChartTypeLine, models.ChartTypeBar} {
		out := Chart(points, signals[:1], ct, Options{Width: 40, Height: 6})
		assert.Contains(t, out, "10:00:00")
		assert.Contains(t, out, "10:01:00")
	}
}

func TestLegend(t *testing.T) {
	out := Legend(signals, "")
	assert.Contains(t, out, "cpu")
	assert.Contains(t, out, "state")

	out = Legend([]models.Signal{{Name: "hidden"}}, "")
	assert.Contains(t, out, "no visible signals")
}

func TestTopValues(t *testing.T) {
	var points []models.FlatPoint
	for i := 0; i < 12; i++ {
		state := "OK"
		if i%4 == 0 {
			state = "FAIL"
		}
		points = append(points, point(time.Duration(i)*time.Second, float64(i), state))
	}

	top := TopValues(points, signals, Options{TopK: 3, Window: 60})
	require.Len(t, top, 1, "numeric signals are skipped")
	assert.Equal(t, "state", top[0].Signal)
	require.NotEmpty(t, top[0].Values)
	assert.Equal(t, "OK", top[0].Values[0].Value)
	assert.LessOrEqual(t, len(top[0].Values), 2)
}

func TestPipelineSignalsWithGeneratedIDs(t *testing.T) {
	text := `2024-01-01 10:00:00.000 cpu=10 status=OK
2024-01-01 10:00:01.000 cpu=90 status=FAIL
2024-01-01 10:00:02.000 cpu=40 status=OK
2024-01-01 10:00:03.000 cpu=70 status=OK
`
	patterns := []models.Pattern{
		{ID: "default-cpu", Name: "CPU Usage", Pattern: `cpu=(\d+)`},
		{ID: "0b5e6f2c-7d1a-4c4e-9a57-2f1d3b8e6c90", Name: "status", Pattern: `status=(\w+)`},
	}
	res, err := pipeline.New(pipeline.Options{}).Run(context.Background(), text, patterns, nil)
	require.NoError(t, err)
	require.Len(t, res.Points, 4)

	values := Series(res.Points, []string{res.Signals[0].Name})
	assert.Equal(t, []float64{10, 90, 40, 70}, values[0])

	stripped := make([]models.FlatPoint, len(res.Points))
	for i, p := range res.Points {
		stripped[i] = models.FlatPoint{Timestamp: p.Timestamp}
	}
	opts := Options{Width: 40, Height: 8}
	assert.NotEqual(t,
		Chart(stripped, res.Signals[:1], models.ChartTypeLine, opts),
		Chart(res.Points, res.Signals[:1], models.ChartTypeLine, opts))

	top := TopValues(res.Points, res.Signals, Options{TopK: 2, Window: 60})
	require.Len(t, top, 1)
	assert.Equal(t, "status", top[0].Signal)
	require.NotEmpty(t, top[0].Values)
	assert.Equal(t, "OK", top[0].Values[0].Value)
}

func TestTopValuesNoCategorical(t *testing.T) {
	points := []models.FlatPoint{point(0, 1, ""), point(time.Second, 2, "")}
	assert.Empty(t, TopValues(points, signals, Options{}))
}

func TestRender(t *testing.T) {
	snap := &view.Snapshot{
		State:     view.StateReady,
		Signals:   signals,
		Panels:    []models.Panel{{ID: "panel-1", Signals: []string{"s-cpu", "s-state"}}},
		Points:    []models.FlatPoint{point(0, 1, "OK"), point(time.Second, 3, "OK"), point(2*time.Second, 2, "FAIL")},
		Stats:     view.Stats{Total: 3, Displayed: 3, SamplingRate: 1},
		ChartType: models.ChartTypeLine,
		Warnings:  []string{"partial series"},
	}

	out := Render(snap, Options{Width: 40, Height: 5})
	assert.Contains(t, out, "3 of 3 points (all points)")
	assert.Contains(t, out, "WARNING: partial series")
	assert.Contains(t, out, "#1")

	snap.Stats = view.Stats{Total: 3000, Displayed: 1000, SamplingRate: 3, Segment: 2, Segments: 4}
	header := Header(snap)
	assert.Contains(t, header, "every 3")
	assert.Contains(t, header, "segment 2/4")
}

func TestHeaderLoading(t *testing.T) {
	snap := &view.Snapshot{
		State:    view.StateLoading,
		Progress: models.Progress{Status: "Processing log data...", Percent: 42},
	}
	header := Header(snap)
	assert.True(t, strings.Contains(header, "42%"), header)
}
