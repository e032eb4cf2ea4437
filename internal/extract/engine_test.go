package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, patterns ...models.Pattern) []*pattern.Matcher {
	t.Helper()
	matchers, errs := pattern.CompileSet(patterns)
	require.Empty(t, errs)
	return matchers
}

func TestExtractNumeric(t *testing.T) {
	text := "2024/01/01 10:00:00.000 CPU_USAGE cpu=50%\n2024/01/01 10:00:01.000 CPU_USAGE cpu=70%"
	matchers := compile(t, models.Pattern{Name: "cpu", Pattern: `cpu=(\d+)%`})

	res, err := Extract(context.Background(), text, matchers, Options{})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	assert.Equal(t, models.NumericValue(50), res.Records[0].Values["cpu"])
	assert.Equal(t, models.NumericValue(70), res.Records[1].Values["cpu"])
	assert.Equal(t, 0, res.Interns.Len())
	require.NotNil(t, res.TimeRange)
	assert.Equal(t, time1(0), res.TimeRange.Start)
	assert.Equal(t, time1(1), res.TimeRange.End)
	assert.NoError(t, res.Warning())
}

func TestExtractCategorical(t *testing.T) {
	text := strings.Join([]string{
		"2024-01-01 10:00:00 job status=OK",
		"2024-01-01 10:00:01 job status=FAIL",
		"2024-01-01 10:00:02 job status=OK",
		"2024-01-01 10:00:03 job status=FAIL",
		"2024-01-01 10:00:04 job status=OK",
	}, "\n")
	matchers := compile(t, models.Pattern{Name: "status", Pattern: `status=(OK|FAIL)`})

	res, err := Extract(context.Background(), text, matchers, Options{})
	require.NoError(t, err)
	require.Len(t, res.Records, 5)

	assert.Equal(t, map[string]map[string]int{"status": {"FAIL": 0, "OK": 1}}, res.Interns.Map())
	assert.Equal(t, models.InternedValue("OK", 1), res.Records[0].Values["status"])
	assert.Equal(t, models.InternedValue("FAIL", 0), res.Records[1].Values["status"])
}

func TestExtractInternRankIsAlphabetical(t *testing.T) {
	// "alpha" appears only on the last line but must still get index 0.
	text := strings.Join([]string{
		"2024-01-01 10:00:00 state=gamma",
		"2024-01-01 10:00:01 state=beta",
		"2024-01-01 10:00:02 state=alpha",
	}, "\n")
	matchers := compile(t, models.Pattern{Name: "state", Pattern: `state=(\w+)`})

	res, err := Extract(context.Background(), text, matchers, Options{ChunkSize: 1})
	require.NoError(t, err)
	require.Len(t, res.Records, 3)

	assert.Equal(t, 2, res.Records[0].Values["state"].Index)
	assert.Equal(t, 1, res.Records[1].Values["state"].Index)
	assert.Equal(t, 0, res.Records[2].Values["state"].Index)
}

func TestExtractCarryForward(t *testing.T) {
	// P matches on lines 2 and 7; Q matches on every line.
	var lines []string
	for i := 1; i <= 8; i++ {
		line := fmt.Sprintf("2024-01-01 10:00:%02d q=%d", i, i)
		switch i {
		case 2:
			line += " p=5"
		case 7:
			line += " p=9"
		}
		lines = append(lines, line)
	}
	matchers := compile(t,
		models.Pattern{Name: "p", Pattern: `p=(\d+)`},
		models.Pattern{Name: "q", Pattern: `q=(\d+)`},
	)

	res, err := Extract(context.Background(), strings.Join(lines, "\n"), matchers, Options{ChunkSize: 3})
	require.NoError(t, err)
	require.Len(t, res.Records, 8)

	_, has := res.Records[0].Values["p"]
	assert.False(t, has, "no p before its first match")
	for i := 1; i <= 5; i++ {
		assert.Equal(t, 5.0, res.Records[i].Values["p"].Num, "line %d", i+1)
	}
	assert.Equal(t, 9.0, res.Records[6].Values["p"].Num)
	assert.Equal(t, 9.0, res.Records[7].Values["p"].Num)
}

func TestExtractDropsCarryOnlyLines(t *testing.T) {
	text := strings.Join([]string{
		"2024-01-01 10:00:00 cpu=10",
		"2024-01-01 10:00:01 heartbeat",
		"2024-01-01 10:00:02 cpu=20",
	}, "\n")
	matchers := compile(t, models.Pattern{Name: "cpu", Pattern: `cpu=(\d+)`})

	res, err := Extract(context.Background(), text, matchers, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
}

func TestExtractSkipsLinesWithoutTimestamp(t *testing.T) {
	text := strings.Join([]string{
		"starting up cpu=99",
		"2024-01-01 10:00:00 cpu=10",
		"   continuation cpu=98",
		"",
		"2024-13-45 10:00:00 cpu=97",
	}, "\n")
	matchers := compile(t, models.Pattern{Name: "cpu", Pattern: `cpu=(\d+)`})

	res, err := Extract(context.Background(), text, matchers, Options{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 10.0, res.Records[0].Values["cpu"].Num)
}

func TestExtractSortsStable(t *testing.T) {
	text := strings.Join([]string{
		"2024-01-01 10:00:05 v=1",
		"2024-01-01 10:00:01 v=2",
		"2024-01-01 10:00:05 v=3",
		"2024-01-01 10:00:03 v=4",
	}, "\n")
	matchers := compile(t, models.Pattern{Name: "v", Pattern: `v=(\d+)`})

	res, err := Extract(context.Background(), text, matchers, Options{})
	require.NoError(t, err)

	var got []float64
	for _, r := range res.Records {
		got = append(got, r.Values["v"].Num)
	}
	assert.Equal(t, []float64{2, 4, 1, 3}, got)
	assert.Equal(t, time1(1), res.TimeRange.Start)
	assert.Equal(t, time1(5), res.TimeRange.End)
}

func TestExtractNoMatchingData(t *testing.T) {
	matchers := compile(t, models.Pattern{Name: "cpu", Pattern: `cpu=(\d+)`})

	res, err := Extract(context.Background(), "2024-01-01 10:00:00 nothing here", matchers, Options{})
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.ErrorIs(t, res.Warning(), ErrNoMatchingData)
	assert.Nil(t, res.TimeRange)
}

func TestExtractNumericEdgeCases(t *testing.T) {
	text := strings.Join([]string{
		"2024-01-01 10:00:00 v=1.5e3",
		"2024-01-01 10:00:01 v=NaN",
		"2024-01-01 10:00:02 v=-4",
		"2024-01-01 10:00:03 v=",
	}, "\n")
	matchers := compile(t, models.Pattern{Name: "v", Pattern: `v=(\S*)`})

	res, err := Extract(context.Background(), text, matchers, Options{})
	require.NoError(t, err)
	require.Len(t, res.Records, 3)

	assert.Equal(t, models.NumericValue(1500), res.Records[0].Values["v"])
	assert.Equal(t, models.InternedValue("NaN", 0), res.Records[1].Values["v"])
	assert.Equal(t, models.NumericValue(-4), res.Records[2].Values["v"])
}

func TestExtractYieldsBetweenChunks(t *testing.T) {
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf("2024-01-01 10:00:%02d v=%d", i, i))
	}
	matchers := compile(t, models.Pattern{Name: "v", Pattern: `v=(\d+)`})

	yields := 0
	var progress []models.Progress
	res, err := Extract(context.Background(), strings.Join(lines, "\n"), matchers, Options{
		ChunkSize: 4,
		Yield: func(ctx context.Context) error {
			yields++
			return nil
		},
		OnProgress: func(p models.Progress) { progress = append(progress, p) },
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 6, yields, "one yield per chunk per pass")

	require.Len(t, progress, 6)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i].Percent, progress[i-1].Percent)
	}
	assert.InDelta(t, 100.0, progress[len(progress)-1].Percent, 0.001)
	assert.Contains(t, progress[len(progress)-1].Status, "chunk 3 of 3")
}

func TestExtractCancelled(t *testing.T) {
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf("2024-01-01 10:00:%02d v=%d", i, i))
	}
	matchers := compile(t, models.Pattern{Name: "v", Pattern: `v=(\d+)`})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	res, err := Extract(ctx, strings.Join(lines, "\n"), matchers, Options{
		ChunkSize: 2,
		Yield: func(ctx context.Context) error {
			calls++
			if calls == 2 {
				cancel()
			}
			return Yield(ctx)
		},
	})
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 2, calls)
}

func TestChunkSizeFor(t *testing.T) {
	assert.Equal(t, 10_000, ChunkSizeFor(0))
	assert.Equal(t, 10_000, ChunkSizeFor(999_999))
	assert.Equal(t, 15_000, ChunkSizeFor(1_000_000))
	assert.Equal(t, 25_000, ChunkSizeFor(10_000_000))
	assert.Equal(t, 50_000, ChunkSizeFor(50_000_000))
}
