// Package pipeline runs a complete extraction: compile patterns, extract
// records, format points. It is the single entry point the view controller,
// the session manager and the CLI build on.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/logvision/backend/internal/extract"
	"github.com/logvision/backend/internal/format"
	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/pattern"
	"github.com/rs/zerolog/log"
)

// Share of overall progress given to extraction; formatting gets the rest.
const extractShare = 70.0

// Options tunes the stages of a run.
type Options struct {
	Extract extract.Options
	Format  format.Options
	// Palette colours signals round-robin. Defaults to models.ChartColors.
	Palette []string
}

// Result is everything a run produced.
type Result struct {
	Signals       []models.Signal
	Points        []models.FlatPoint
	Interns       *extract.InternTable
	RecordCount   int
	TimeRange     *models.TimeRange
	PatternErrors []error
	// Warnings holds soft failures: extract.ErrNoMatchingData or a
	// *format.BatchFailure for a partial series.
	Warnings []error
	Elapsed  time.Duration
}

// Empty reports whether the run produced no points.
func (r *Result) Empty() bool {
	return len(r.Points) == 0
}

// Messages returns warnings and pattern errors as strings.
func (r *Result) Messages() []string {
	var out []string
	for _, err := range r.PatternErrors {
		out = append(out, err.Error())
	}
	for _, err := range r.Warnings {
		out = append(out, err.Error())
	}
	return out
}

// Runner runs the pipeline. *Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, text string, patterns []models.Pattern, onProgress func(models.Progress)) (*Result, error)
}

// Pipeline runs extraction and formatting with fixed options.
type Pipeline struct {
	opts Options
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	return &Pipeline{opts: opts}
}

// Run executes the pipeline. Invalid patterns are reported in
// Result.PatternErrors and skipped. Only cancellation returns an error;
// a run that matched nothing returns an empty Result with a warning.
func (p *Pipeline) Run(ctx context.Context, text string, patterns []models.Pattern, onProgress func(models.Progress)) (*Result, error) {
	start := time.Now()

	matchers, patternErrs := pattern.CompileSet(patterns)
	for _, err := range patternErrs {
		log.Warn().Err(err).Msg("skipping invalid pattern")
	}

	emit := func(pr models.Progress) {
		if onProgress != nil {
			onProgress(pr)
		}
	}

	xopts := p.opts.Extract
	xopts.OnProgress = func(pr models.Progress) {
		pr.Percent = pr.Percent * extractShare / 100
		emit(pr)
	}
	emit(models.Progress{Stage: models.StageExtracting, Status: "Processing log data...", Percent: 0})

	extracted, err := extract.Extract(ctx, text, matchers, xopts)
	if err != nil {
		return nil, fmt.Errorf("extracting: %w", err)
	}

	res := &Result{
		Signals:       BuildSignals(matchers, p.opts.Palette),
		Interns:       extracted.Interns,
		RecordCount:   len(extracted.Records),
		TimeRange:     extracted.TimeRange,
		PatternErrors: patternErrs,
	}

	if extracted.Empty() {
		res.Warnings = append(res.Warnings, extracted.Warning())
		res.Elapsed = time.Since(start)
		emit(models.Progress{Stage: models.StageComplete, Status: "No matching data found", Percent: 100})
		return res, nil
	}

	fopts := p.opts.Format
	fopts.OnProgress = func(pr models.Progress) {
		pr.Percent = extractShare + pr.Percent*(100-extractShare)/100
		emit(pr)
	}

	formatted, err := format.Format(ctx, extracted.Records, extracted.Interns, fopts)
	if err != nil {
		return nil, fmt.Errorf("formatting: %w", err)
	}
	res.Points = formatted.Points
	if formatted.Partial() {
		res.Warnings = append(res.Warnings, formatted.Failure)
	}

	res.Elapsed = time.Since(start)
	emit(models.Progress{
		Stage:   models.StageComplete,
		Status:  fmt.Sprintf("Processed %d records for %d signals", res.RecordCount, len(res.Signals)),
		Percent: 100,
	})

	log.Info().
		Int("records", res.RecordCount).
		Int("points", len(res.Points)).
		Int("signals", len(res.Signals)).
		Dur("elapsed", res.Elapsed).
		Msg("pipeline complete")
	return res, nil
}

// BuildSignals creates one visible signal per matcher, coloured round-robin.
func BuildSignals(matchers []*pattern.Matcher, palette []string) []models.Signal {
	if len(palette) == 0 {
		palette = models.ChartColors
	}
	run := uuid.NewString()[:8]
	signals := make([]models.Signal, len(matchers))
	for i, m := range matchers {
		signals[i] = models.Signal{
			ID:      fmt.Sprintf("signal-%s-%d", run, i),
			Name:    m.Name(),
			Pattern: m.Pattern(),
			Color:   palette[i%len(palette)],
			Visible: true,
		}
	}
	return signals
}
