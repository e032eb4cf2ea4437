// Package format flattens extracted records into chart-ready points.
package format

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/logvision/backend/internal/extract"
	"github.com/logvision/backend/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrPartialFormat is wrapped by BatchFailure when formatting stopped early.
var ErrPartialFormat = errors.New("formatting stopped early, result is partial")

// DefaultMinBatchSize is the floor batch size is never halved below.
const DefaultMinBatchSize = 50

// MissingValue is written for a signal whose value in a record is unset.
const MissingValue = 0

// BatchFailure describes the batch that could not be formatted even at the
// minimum batch size.
type BatchFailure struct {
	Offset    int // index of the first record of the failed batch
	BatchSize int
	Err       error
}

func (e *BatchFailure) Error() string {
	return fmt.Sprintf("%v: batch at record %d (size %d): %v", ErrPartialFormat, e.Offset, e.BatchSize, e.Err)
}

func (e *BatchFailure) Unwrap() []error {
	return []error{ErrPartialFormat, e.Err}
}

// FlattenFunc turns one record into a point.
type FlattenFunc func(rec models.LogRecord, interns *extract.InternTable) (models.FlatPoint, error)

// Options tunes a formatting run. The zero value is usable.
type Options struct {
	// BatchSize overrides the adaptive batch size when positive.
	BatchSize int
	// MinBatchSize is the floor for halving. Defaults to DefaultMinBatchSize.
	MinBatchSize int
	// Flatten replaces the default Flatten.
	Flatten FlattenFunc
	// Yield runs between batches. Defaults to extract.Yield.
	Yield extract.YieldFunc
	// OnProgress receives an update after every batch.
	OnProgress func(models.Progress)
}

// Result is the outcome of a formatting run.
type Result struct {
	Points  []models.FlatPoint
	Retries int
	// Failure is set when the run stopped early and Points is partial.
	Failure *BatchFailure
}

// Partial reports whether some records were not formatted.
func (r *Result) Partial() bool {
	return r.Failure != nil
}

// BatchSizeFor picks a batch size inversely proportional to the record count.
func BatchSizeFor(records int) int {
	switch {
	case records <= 10_000:
		return 5_000
	case records <= 100_000:
		return 2_500
	case records <= 1_000_000:
		return 1_000
	default:
		return 500
	}
}

// Format flattens records in batches. A batch that fails is discarded and
// retried from its first record with half the batch size; once the size is
// at the floor a further failure ends the run with the points formatted so
// far and a BatchFailure. Only ctx cancellation returns an error.
func Format(ctx context.Context, records []models.LogRecord, interns *extract.InternTable, opts Options) (*Result, error) {
	start := time.Now()

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = BatchSizeFor(len(records))
	}
	floor := opts.MinBatchSize
	if floor <= 0 {
		floor = DefaultMinBatchSize
	}
	if batchSize < floor {
		floor = batchSize
	}
	flatten := opts.Flatten
	if flatten == nil {
		flatten = Flatten
	}
	yield := opts.Yield
	if yield == nil {
		yield = extract.Yield
	}

	res := &Result{Points: make([]models.FlatPoint, 0, len(records))}

	for offset := 0; offset < len(records); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(offset+batchSize, len(records))
		batch, err := formatBatch(records[offset:end], interns, flatten)
		if err != nil {
			if batchSize <= floor {
				res.Failure = &BatchFailure{Offset: offset, BatchSize: batchSize, Err: err}
				log.Warn().Err(err).Int("offset", offset).Int("formatted", len(res.Points)).Msg("formatting stopped, returning partial result")
				break
			}
			batchSize = max(batchSize/2, floor)
			res.Retries++
			log.Debug().Err(err).Int("offset", offset).Int("batchSize", batchSize).Msg("batch failed, retrying with smaller batch")
			continue
		}

		res.Points = append(res.Points, batch...)
		offset = end

		if opts.OnProgress != nil {
			pct := float64(offset) * 100 / float64(len(records))
			opts.OnProgress(models.Progress{
				Stage:   models.StageFormatting,
				Status:  fmt.Sprintf("Formatting data: %d of %d records (%d%%)", offset, len(records), int(pct)),
				Percent: pct,
			})
		}
		if err := yield(ctx); err != nil {
			return nil, err
		}
	}

	log.Debug().Int("points", len(res.Points)).Int("retries", res.Retries).Dur("elapsed", time.Since(start)).Msg("formatting complete")
	return res, nil
}

// formatBatch is all-or-nothing: a panic inside flatten fails the batch.
func formatBatch(records []models.LogRecord, interns *extract.InternTable, flatten FlattenFunc) (out []models.FlatPoint, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("flatten panicked: %v", r)
		}
	}()

	out = make([]models.FlatPoint, 0, len(records))
	for _, rec := range records {
		p, err := flatten(rec, interns)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Flatten is the default FlattenFunc. Numbers pass through, categorical
// values become their intern index with the original kept alongside, and
// unset values become MissingValue. A string with no table entry gets
// models.UnresolvedIndex.
func Flatten(rec models.LogRecord, interns *extract.InternTable) (models.FlatPoint, error) {
	p := models.FlatPoint{
		Timestamp: rec.Timestamp.UnixMilli(),
		Values:    make(map[string]float64, len(rec.Values)),
	}

	for name, v := range rec.Values {
		switch v.Kind {
		case 0:
			p.Values[name] = MissingValue
		case models.KindNumeric:
			p.Values[name] = v.Num
		case models.KindString:
			idx := v.Index
			if idx == models.UnresolvedIndex && interns != nil {
				if i, ok := interns.Index(name, v.Str); ok {
					idx = i
				}
			}
			p.Values[name] = float64(idx)
			if p.Originals == nil {
				p.Originals = make(map[string]string)
			}
			p.Originals[name] = v.Str
		default:
			return models.FlatPoint{}, fmt.Errorf("signal %q: unknown value kind %d", name, v.Kind)
		}
	}
	return p, nil
}
