// Package extract turns raw log text into time-ordered records of signal
// values. It runs two passes over the lines: the first collects every
// categorical capture into an InternTable, the second parses timestamps,
// applies the matchers and carries forward last-seen values.
package extract

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/pattern"
	"github.com/rs/zerolog/log"
)

// ErrNoMatchingData reports a run that produced no records. It is a soft
// condition: Extract still returns a result and a nil error.
var ErrNoMatchingData = errors.New("no matching data found in log")

// YieldFunc runs between chunks. A non-nil error aborts the run.
type YieldFunc func(ctx context.Context) error

// Yield is the default YieldFunc: it stops on cancellation and otherwise
// lets other goroutines run before the next chunk.
func Yield(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runtime.Gosched()
	return nil
}

// Chunk size tiers keyed by total input size.
const (
	smallInput  = 1_000_000
	mediumInput = 10_000_000
	largeInput  = 50_000_000
)

// ChunkSizeFor picks the number of lines per chunk for an input of
// totalBytes. Larger inputs get larger chunks.
func ChunkSizeFor(totalBytes int) int {
	switch {
	case totalBytes < smallInput:
		return 10_000
	case totalBytes < mediumInput:
		return 15_000
	case totalBytes < largeInput:
		return 25_000
	default:
		return 50_000
	}
}

// Share of the extraction progress taken by the first pass.
const collectShare = 30.0

// Options tunes an extraction run. The zero value is usable.
type Options struct {
	// ChunkSize overrides the adaptive lines-per-chunk when positive.
	ChunkSize int
	// Location is applied to parsed timestamps. Defaults to UTC.
	Location *time.Location
	// Yield runs between chunks. Defaults to Yield.
	Yield YieldFunc
	// OnProgress receives a status update after every chunk.
	OnProgress func(models.Progress)
}

// Result is the outcome of an extraction run.
type Result struct {
	Records   []models.LogRecord
	Interns   *InternTable
	Lines     int
	Chunks    int
	TimeRange *models.TimeRange
}

// Empty reports whether no record was produced.
func (r *Result) Empty() bool {
	return len(r.Records) == 0
}

// Warning returns ErrNoMatchingData for an empty result, nil otherwise.
func (r *Result) Warning() error {
	if r.Empty() {
		return ErrNoMatchingData
	}
	return nil
}

// extraction carries the state of one run between chunk calls.
type extraction struct {
	matchers []*pattern.Matcher
	interns  *InternTable
	loc      *time.Location

	lastSeen map[string]models.Value
	records  []models.LogRecord
	minTs    time.Time
	maxTs    time.Time
}

// Extract runs both passes over text. Chunks are processed strictly in
// order; ctx is checked at every chunk boundary and a cancelled run returns
// ctx.Err() with no result.
func Extract(ctx context.Context, text string, matchers []*pattern.Matcher, opts Options) (*Result, error) {
	start := time.Now()

	lines := splitLines(text)
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = ChunkSizeFor(len(text))
	}
	yield := opts.Yield
	if yield == nil {
		yield = Yield
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	x := &extraction{
		matchers: matchers,
		interns:  NewInternTable(),
		loc:      loc,
		lastSeen: make(map[string]models.Value, len(matchers)),
	}

	chunks := (len(lines) + chunkSize - 1) / chunkSize
	report := func(pass string, chunk int, from, span float64) {
		if opts.OnProgress == nil || chunks == 0 {
			return
		}
		pct := from + span*float64(chunk)/float64(chunks)
		opts.OnProgress(models.Progress{
			Stage:   models.StageExtracting,
			Status:  fmt.Sprintf("%s chunk %d of %d (%d%%)", pass, chunk, chunks, int(pct)),
			Percent: pct,
		})
	}

	log.Debug().Int("lines", len(lines)).Int("chunkSize", chunkSize).Int("patterns", len(matchers)).Msg("extraction started")

	for i := 0; i < chunks; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		x.collectChunk(lines[i*chunkSize : min((i+1)*chunkSize, len(lines))])
		report("Scanning", i+1, 0, collectShare)
		if err := yield(ctx); err != nil {
			return nil, err
		}
	}

	x.interns.Freeze()

	for i := 0; i < chunks; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		x.extractChunk(lines[i*chunkSize : min((i+1)*chunkSize, len(lines))])
		report("Processing", i+1, collectShare, 100-collectShare)
		if err := yield(ctx); err != nil {
			return nil, err
		}
	}

	res := &Result{
		Records: x.records,
		Interns: x.interns,
		Lines:   len(lines),
		Chunks:  chunks,
	}
	if len(x.records) == 0 {
		log.Info().Int("lines", len(lines)).Msg("extraction produced no records")
		return res, nil
	}

	sort.SliceStable(res.Records, func(i, j int) bool {
		return res.Records[i].Timestamp.Before(res.Records[j].Timestamp)
	})
	res.TimeRange = &models.TimeRange{Start: x.minTs, End: x.maxTs}

	log.Debug().
		Int("records", len(res.Records)).
		Int("categorical", x.interns.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("extraction complete")
	return res, nil
}

// collectChunk is the first pass: every non-numeric capture is observed.
func (x *extraction) collectChunk(lines []string) {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		for _, m := range x.matchers {
			raw, ok := m.Extract(line)
			if !ok {
				continue
			}
			if _, numeric, empty := classify(raw); !numeric && !empty {
				// The table is only frozen after this pass.
				_ = x.interns.Observe(m.Name(), raw)
			}
		}
	}
}

// extractChunk is the second pass over one chunk.
func (x *extraction) extractChunk(lines []string) {
	for _, line := range lines {
		ts, ok := ParseTimestampPrefix(line, x.loc)
		if !ok {
			continue
		}

		values := make(map[string]models.Value, len(x.matchers))
		hasNew := false
		for _, m := range x.matchers {
			name := m.Name()
			if v, ok := x.match(m, line); ok {
				x.lastSeen[name] = v
				values[name] = v
				hasNew = true
			} else if last, ok := x.lastSeen[name]; ok {
				values[name] = last
			}
		}

		if !hasNew || len(values) == 0 {
			continue
		}

		if len(x.records) == 0 || ts.Before(x.minTs) {
			x.minTs = ts
		}
		if ts.After(x.maxTs) {
			x.maxTs = ts
		}
		x.records = append(x.records, models.LogRecord{Timestamp: ts, Values: values})
	}
}

func (x *extraction) match(m *pattern.Matcher, line string) (models.Value, bool) {
	raw, ok := m.Extract(line)
	if !ok {
		return models.Value{}, false
	}
	f, numeric, empty := classify(raw)
	switch {
	case empty:
		return models.Value{}, false
	case numeric:
		return models.NumericValue(f), true
	}
	idx, ok := x.interns.Index(m.Name(), raw)
	if !ok {
		idx = models.UnresolvedIndex
	}
	return models.InternedValue(raw, idx), true
}

// classify decides whether a capture is a number. Blank captures carry no value.
func classify(raw string) (f float64, numeric bool, empty bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, false
	}
	return f, true, false
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
