package format

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/logvision/backend/internal/extract"
	"github.com/logvision/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func makeRecords(n int) []models.LogRecord {
	recs := make([]models.LogRecord, n)
	for i := range recs {
		recs[i] = models.LogRecord{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Values:    map[string]models.Value{"v": models.NumericValue(float64(i))},
		}
	}
	return recs
}

func TestFlatten(t *testing.T) {
	tbl := extract.NewInternTable()
	require.NoError(t, tbl.Observe("status", "FAIL"))
	require.NoError(t, tbl.Observe("status", "OK"))
	tbl.Freeze()

	rec := models.LogRecord{
		Timestamp: base,
		Values: map[string]models.Value{
			"cpu":    models.NumericValue(42.5),
			"status": models.StringValue("OK"),
			"level":  models.StringValue("never-seen"),
			"unset":  {},
		},
	}

	p, err := Flatten(rec, tbl)
	require.NoError(t, err)

	assert.Equal(t, base.UnixMilli(), p.Timestamp)
	assert.Equal(t, 42.5, p.Values["cpu"])
	assert.Equal(t, 1.0, p.Values["status"])
	assert.Equal(t, "OK", p.Originals["status"])
	assert.Equal(t, float64(models.UnresolvedIndex), p.Values["level"])
	assert.Equal(t, "never-seen", p.Originals["level"])
	assert.Equal(t, float64(MissingValue), p.Values["unset"])
	_, hasOriginal := p.Originals["cpu"]
	assert.False(t, hasOriginal)
}

func TestFlattenKeepsResolvedIndex(t *testing.T) {
	rec := models.LogRecord{
		Timestamp: base,
		Values:    map[string]models.Value{"s": models.InternedValue("b", 3)},
	}
	p, err := Flatten(rec, nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, p.Values["s"])
}

func TestFormatBatches(t *testing.T) {
	recs := makeRecords(23)

	var progress []models.Progress
	yields := 0
	res, err := Format(context.Background(), recs, nil, Options{
		BatchSize:  10,
		OnProgress: func(p models.Progress) { progress = append(progress, p) },
		Yield: func(ctx context.Context) error {
			yields++
			return nil
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Points, 23)
	assert.False(t, res.Partial())
	assert.Equal(t, 3, yields)

	for i, p := range res.Points {
		assert.Equal(t, float64(i), p.Values["v"])
	}
	require.Len(t, progress, 3)
	assert.InDelta(t, 100.0, progress[2].Percent, 0.001)
	assert.Equal(t, models.StageFormatting, progress[0].Stage)
}

func TestFormatRetriesWithSmallerBatch(t *testing.T) {
	recs := makeRecords(40)

	// Fails once on record 25, then succeeds.
	failed := false
	flaky := func(rec models.LogRecord, interns *extract.InternTable) (models.FlatPoint, error) {
		if rec.Values["v"].Num == 25 && !failed {
			failed = true
			return models.FlatPoint{}, errors.New("transient")
		}
		return Flatten(rec, interns)
	}

	res, err := Format(context.Background(), recs, nil, Options{BatchSize: 16, MinBatchSize: 2, Flatten: flaky})
	require.NoError(t, err)
	assert.False(t, res.Partial())
	assert.Equal(t, 1, res.Retries)
	require.Len(t, res.Points, 40)
	for i, p := range res.Points {
		assert.Equal(t, float64(i), p.Values["v"], "point %d", i)
	}
}

func TestFormatReturnsPartialAtFloor(t *testing.T) {
	recs := makeRecords(40)

	poisoned := func(rec models.LogRecord, interns *extract.InternTable) (models.FlatPoint, error) {
		if rec.Values["v"].Num == 30 {
			panic("corrupt record")
		}
		return Flatten(rec, interns)
	}

	res, err := Format(context.Background(), recs, nil, Options{BatchSize: 16, MinBatchSize: 4, Flatten: poisoned})
	require.NoError(t, err)
	require.True(t, res.Partial())

	// 16 ok, then [16,32) fails -> 8: [16,24) ok, [24,32) fails -> 4: [24,28) ok, [28,32) fails at floor.
	assert.Len(t, res.Points, 28)
	assert.Equal(t, 28, res.Failure.Offset)
	assert.Equal(t, 4, res.Failure.BatchSize)
	assert.Equal(t, 2, res.Retries)
	assert.ErrorIs(t, res.Failure, ErrPartialFormat)
	assert.Contains(t, res.Failure.Error(), "corrupt record")
}

func TestFormatCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Format(ctx, makeRecords(5), nil, Options{})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatEmpty(t *testing.T) {
	res, err := Format(context.Background(), nil, nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Points)
}

func TestBatchSizeFor(t *testing.T) {
	assert.Equal(t, 5_000, BatchSizeFor(100))
	assert.Equal(t, 2_500, BatchSizeFor(50_000))
	assert.Equal(t, 1_000, BatchSizeFor(500_000))
	assert.Equal(t, 500, BatchSizeFor(5_000_000))
	assert.Greater(t, BatchSizeFor(10), BatchSizeFor(10_000_000))
}
