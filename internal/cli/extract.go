package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/logvision/backend/internal/extract"
	"github.com/logvision/backend/internal/format"
	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/pattern"
	"github.com/logvision/backend/internal/pipeline"
	"github.com/logvision/backend/internal/segment"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	extractPatterns   patternFlags
	extractSegments   segmentFlags
	extractFormat     string
	extractOutputFile string
	extractChunkSize  int
	extractTimeout    time.Duration
	extractSegmented  bool
)

func newExtractCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract signals from a log file or stdin",
		Long: `Extract signals and write them as JSON or YAML.

Examples:
  logvision extract app.log
  logvision extract -p patterns.yaml -f yaml app.log
  cat app.log | logvision extract --segments --points-per-segment 1000`,
		Args: cobra.MaximumNArgs(1),
		RunE: runExtract,
	}

	extractPatterns.register(cmd)
	extractSegments.register(cmd)
	cmd.Flags().StringVarP(&extractFormat, "format", "f", "json", "output format (json, yaml)")
	cmd.Flags().StringVarP(&extractOutputFile, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().IntVar(&extractChunkSize, "chunk-size", 0, "lines per extraction chunk (0 picks by input size)")
	cmd.Flags().DurationVar(&extractTimeout, "timeout", 5*time.Minute, "extraction timeout")
	cmd.Flags().BoolVar(&extractSegmented, "segments", false, "include segment boundaries")
	return cmd
}

// segmentSummary is a segment without its data.
type segmentSummary struct {
	ID         string    `json:"id" yaml:"id"`
	StartTime  time.Time `json:"startTime" yaml:"startTime"`
	EndTime    time.Time `json:"endTime" yaml:"endTime"`
	PointCount int       `json:"pointCount" yaml:"pointCount"`
}

type extractOutput struct {
	Signals     []models.Signal           `json:"signals" yaml:"signals"`
	Points      []map[string]interface{}  `json:"points" yaml:"points"`
	Interns     map[string]map[string]int `json:"interns,omitempty" yaml:"interns,omitempty"`
	RecordCount int                       `json:"recordCount" yaml:"recordCount"`
	TimeRange   *models.TimeRange         `json:"timeRange,omitempty" yaml:"timeRange,omitempty"`
	Segments    []segmentSummary          `json:"segments,omitempty" yaml:"segments,omitempty"`
	Warnings    []string                  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	outFormat, err := pattern.ParseFormat(extractFormat)
	if err != nil {
		return err
	}
	segOpts, err := extractSegments.options()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), extractTimeout)
	defer cancel()

	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	patterns, err := extractPatterns.load(ctx)
	if err != nil {
		return err
	}

	res, err := runPipeline(ctx, text, patterns, extractChunkSize)
	if err != nil {
		return err
	}

	out := extractOutput{
		Signals:     res.Signals,
		Points:      make([]map[string]interface{}, len(res.Points)),
		RecordCount: res.RecordCount,
		TimeRange:   res.TimeRange,
		Warnings:    res.Messages(),
	}
	for i, p := range res.Points {
		out.Points[i] = p.Flat()
	}
	if res.Interns != nil {
		out.Interns = res.Interns.Map()
	}
	if extractSegmented {
		segs, err := segment.Build(res.Points, segOpts)
		if err != nil {
			return err
		}
		for _, s := range segs {
			out.Segments = append(out.Segments, segmentSummary{
				ID:         s.ID,
				StartTime:  s.StartTime,
				EndTime:    s.EndTime,
				PointCount: len(s.Data),
			})
		}
	}

	var data []byte
	if outFormat == pattern.FormatYAML {
		data, err = yaml.Marshal(out)
	} else {
		data, err = json.MarshalIndent(out, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return writeOutput(cmd, extractOutputFile, data)
}

// runPipeline runs one extraction and logs its progress at debug level.
func runPipeline(ctx context.Context, text string, patterns []models.Pattern, chunkSize int) (*pipeline.Result, error) {
	p := pipeline.New(pipeline.Options{
		Extract: extract.Options{ChunkSize: chunkSize},
		Format:  format.Options{},
	})
	return p.Run(ctx, text, patterns, func(pr models.Progress) {
		log.Debug().Str("stage", string(pr.Stage)).Float64("percent", pr.Percent).Msg(pr.Status)
	})
}
