// store_test.go - Tests for DuckDB-backed pattern and series storage
package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestPatternStore(t *testing.T) *PatternStore {
	t.Helper()
	s, err := OpenPatternStore(filepath.Join(t.TempDir(), "patterns.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPatternStoreDefaults(t *testing.T) {
	s := openTestPatternStore(t)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pattern.Defaults(), got)

	changed, err := s.HasRemoteChanges(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestPatternStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := openTestPatternStore(t)

	set := []models.Pattern{
		{ID: "b", Name: "temp", Pattern: `temp=(\d+)`, Description: "temperature"},
		{ID: "a", Name: "mode", Pattern: `mode=(\w+)`},
		{Name: "fresh", Pattern: `x=(\d+)`},
	}
	require.NoError(t, s.Save(ctx, set))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "temp", got[0].Name, "order is preserved")
	assert.Equal(t, "temperature", got[0].Description)
	assert.Equal(t, "mode", got[1].Name)
	assert.NotEmpty(t, got[2].ID, "missing ids are assigned")
}

func TestPatternStoreSharedTier(t *testing.T) {
	ctx := context.Background()
	s := openTestPatternStore(t)

	local := []models.Pattern{{ID: "a", Name: "a", Pattern: `a=(\d+)`}}
	shared := []models.Pattern{
		{ID: "a", Name: "a", Pattern: `a=(\d+)`},
		{ID: "b", Name: "b", Pattern: `b=(\d+)`},
	}
	require.NoError(t, s.Save(ctx, local))
	require.NoError(t, s.Publish(ctx, shared))

	changed, err := s.HasRemoteChanges(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, shared, got)

	changed, err = s.HasRemoteChanges(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "load syncs shared into local")
}

func TestPatternStoreSaveAfterPublish(t *testing.T) {
	ctx := context.Background()
	s := openTestPatternStore(t)

	require.NoError(t, s.Publish(ctx, []models.Pattern{{ID: "s1", Name: "shared", Pattern: `s=(\d+)`}}))
	mine := []models.Pattern{{ID: "l1", Name: "mine", Pattern: `m=(\d+)`}}
	require.NoError(t, s.Save(ctx, mine))

	for i := 0; i < 2; i++ {
		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, mine, got)
	}

	changed, err := s.HasRemoteChanges(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestPatternStoreSatisfiesLoadOrDefault(t *testing.T) {
	s := openTestPatternStore(t)
	assert.Len(t, pattern.LoadOrDefault(context.Background(), s), len(pattern.Defaults()))
}

func TestSeriesStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewSeriesStore(t.TempDir(), "test")
	require.NoError(t, err)
	defer s.Close()

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	points := []models.FlatPoint{
		{Timestamp: base.UnixMilli(), Values: map[string]float64{"cpu": 50}},
		{Timestamp: base.Add(time.Second).UnixMilli(), Values: map[string]float64{"cpu": 50, "state": 1}, Originals: map[string]string{"state": "OK"}},
		{Timestamp: base.Add(2 * time.Second).UnixMilli(), Values: map[string]float64{"cpu": 70, "state": 0}, Originals: map[string]string{"state": "FAIL"}},
		{Timestamp: base.Add(3 * time.Second).UnixMilli(), Values: map[string]float64{"cpu": 20}},
	}
	require.NoError(t, s.Write(ctx, points))
	assert.Equal(t, 4, s.Len())

	tr := s.TimeRange()
	require.NotNil(t, tr)
	assert.True(t, tr.Start.Equal(base))
	assert.True(t, tr.End.Equal(base.Add(3*time.Second)))

	got, err := s.QueryRange(ctx, base.Add(time.Second), base.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, points[1:3], got, "range is inclusive at both ends")

	all, err := s.QueryRange(ctx, base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Nil(t, all[0].Originals)

	none, err := s.QueryRange(ctx, base.Add(time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSeriesStoreAppends(t *testing.T) {
	ctx := context.Background()
	s, err := NewSeriesStore("", "mem")
	require.NoError(t, err)
	defer s.Close()

	assert.Nil(t, s.TimeRange())
	require.NoError(t, s.Write(ctx, []models.FlatPoint{{Timestamp: 2000, Values: map[string]float64{"x": 1}}}))
	require.NoError(t, s.Write(ctx, []models.FlatPoint{{Timestamp: 1000, Values: map[string]float64{"x": 2}}}))

	got, err := s.QueryRange(ctx, time.UnixMilli(0), time.UnixMilli(5000))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].Values["x"], "insertion order, not time order")
	assert.Equal(t, int64(1000), s.TimeRange().Start.UnixMilli())
}
