package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/logvision/backend/internal/extract"
	"github.com/logvision/backend/internal/format"
	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `2024-01-01 10:00:00.000 CPU_USAGE cpu=50%
2024-01-01 10:00:01.000 job status=OK
2024-01-01 10:00:02.000 CPU_USAGE cpu=70%
not a data line
2024-01-01 10:00:03.000 job status=FAIL`

func TestRun(t *testing.T) {
	patterns := []models.Pattern{
		{ID: "cpu", Name: "cpu", Pattern: `cpu=(\d+)%`},
		{ID: "status", Name: "status", Pattern: `status=(\w+)`},
	}

	var progress []models.Progress
	res, err := New(Options{}).Run(context.Background(), sampleLog, patterns, func(p models.Progress) {
		progress = append(progress, p)
	})
	require.NoError(t, err)

	assert.Equal(t, 4, res.RecordCount)
	require.Len(t, res.Points, 4)
	assert.Empty(t, res.Warnings)

	require.Len(t, res.Signals, 2)
	assert.Equal(t, "cpu", res.Signals[0].Name)
	assert.Equal(t, models.ChartColors[0], res.Signals[0].Color)
	assert.Equal(t, models.ChartColors[1], res.Signals[1].Color)
	assert.True(t, res.Signals[0].Visible)
	assert.True(t, strings.HasPrefix(res.Signals[0].ID, "signal-"))

	// Line 2 carries cpu forward and adds status.
	p := res.Points[1]
	assert.Equal(t, 50.0, p.Values["cpu"])
	assert.Equal(t, 1.0, p.Values["status"]) // FAIL=0, OK=1
	assert.Equal(t, "OK", p.Originals["status"])

	last := res.Points[3]
	assert.Equal(t, 70.0, last.Values["cpu"])
	assert.Equal(t, 0.0, last.Values["status"])

	require.NotEmpty(t, progress)
	assert.Equal(t, models.StageComplete, progress[len(progress)-1].Stage)
	assert.Equal(t, 100.0, progress[len(progress)-1].Percent)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i].Percent, progress[i-1].Percent)
	}
}

func TestRunNoMatchingData(t *testing.T) {
	patterns := []models.Pattern{{Name: "mem", Pattern: `memory=(\d+)`}}

	res, err := New(Options{}).Run(context.Background(), sampleLog, patterns, nil)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], extract.ErrNoMatchingData)
}

func TestRunIsolatesInvalidPatterns(t *testing.T) {
	patterns := []models.Pattern{
		{Name: "broken", Pattern: `cpu=(\d+`},
		{Name: "cpu", Pattern: `cpu=(\d+)%`},
	}

	res, err := New(Options{}).Run(context.Background(), sampleLog, patterns, nil)
	require.NoError(t, err)
	require.Len(t, res.PatternErrors, 1)

	var ipe *pattern.InvalidPatternError
	assert.True(t, errors.As(res.PatternErrors[0], &ipe))
	assert.Len(t, res.Signals, 1)
	assert.Len(t, res.Points, 2)
	assert.Len(t, res.Messages(), 1)
}

func TestRunPartialFormat(t *testing.T) {
	patterns := []models.Pattern{{Name: "cpu", Pattern: `cpu=(\d+)%`}}
	opts := Options{Format: format.Options{
		BatchSize:    1,
		MinBatchSize: 1,
		Flatten: func(rec models.LogRecord, interns *extract.InternTable) (models.FlatPoint, error) {
			if rec.Values["cpu"].Num == 70 {
				return models.FlatPoint{}, errors.New("bad record")
			}
			return format.Flatten(rec, interns)
		},
	}}

	res, err := New(opts).Run(context.Background(), sampleLog, patterns, nil)
	require.NoError(t, err)
	assert.Len(t, res.Points, 1)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], format.ErrPartialFormat)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(Options{}).Run(ctx, sampleLog, pattern.Defaults(), nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildSignalsWrapsPalette(t *testing.T) {
	var patterns []models.Pattern
	for i := 0; i < 12; i++ {
		patterns = append(patterns, models.Pattern{Name: string(rune('a' + i)), Pattern: `(\d)`})
	}
	matchers, _ := pattern.CompileSet(patterns)

	signals := BuildSignals(matchers, nil)
	require.Len(t, signals, 12)
	assert.Equal(t, models.ChartColors[0], signals[10].Color)
	assert.Equal(t, models.ChartColors[1], signals[11].Color)
}

func TestRunSkipsDuplicateNames(t *testing.T) {
	patterns := []models.Pattern{
		{ID: "a", Name: "x", Pattern: `cpu=(\d+)%`},
		{ID: "b", Name: "x", Pattern: `status=(\w+)`},
	}

	res, err := New(Options{}).Run(context.Background(), sampleLog, patterns, nil)
	require.NoError(t, err)

	require.Len(t, res.Signals, 1)
	assert.Equal(t, "a", res.Signals[0].Pattern.ID)
	require.Len(t, res.PatternErrors, 1)
	var ve *pattern.ValidationError
	assert.True(t, errors.As(res.PatternErrors[0], &ve))

	assert.Equal(t, 2, res.RecordCount)
	for _, p := range res.Points {
		assert.Empty(t, p.Originals, "status values never reach the cpu signal")
	}
}
