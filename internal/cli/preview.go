package cli

import (
	"fmt"

	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/pipeline"
	"github.com/logvision/backend/internal/preview"
	"github.com/logvision/backend/internal/tui"
	"github.com/logvision/backend/internal/view"
	"github.com/spf13/cobra"
)

// viewFlags configures a view controller.
type viewFlags struct {
	segments  segmentFlags
	maxPoints int
	chartType string
}

func (f *viewFlags) register(cmd *cobra.Command) {
	f.segments.register(cmd)
	cmd.Flags().IntVar(&f.maxPoints, "max-points", 1000, "maximum points drawn per chart")
	cmd.Flags().StringVar(&f.chartType, "chart", string(models.ChartTypeLine), "chart type (line, bar)")
}

func (f *viewFlags) controller() (*view.Controller, error) {
	segOpts, err := f.segments.options()
	if err != nil {
		return nil, err
	}
	if f.maxPoints <= 0 {
		return nil, fmt.Errorf("--max-points must be positive")
	}
	chart := models.ChartType(f.chartType)
	if !chart.Valid() {
		return nil, fmt.Errorf("unknown chart type %q", f.chartType)
	}
	return view.NewController(pipeline.New(pipeline.Options{}), view.Config{
		Segmentation:     segOpts,
		MaxDisplayPoints: f.maxPoints,
		ChartType:        chart,
	}), nil
}

var (
	previewPatterns patternFlags
	previewView     viewFlags
	previewOptions  = preview.DefaultOptions()
	previewSegment  int
)

func newPreviewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview [file]",
		Short: "Print a chart of the extracted signals",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPreview,
	}

	previewPatterns.register(cmd)
	previewView.register(cmd)
	cmd.Flags().IntVar(&previewOptions.Width, "width", previewOptions.Width, "chart width in columns")
	cmd.Flags().IntVar(&previewOptions.Height, "height", previewOptions.Height, "chart height in rows")
	cmd.Flags().IntVar(&previewOptions.TopK, "top", previewOptions.TopK, "top categorical values to list")
	cmd.Flags().DurationVar(&previewOptions.Tick, "tick", previewOptions.Tick, "bucket width of the top value window")
	cmd.Flags().IntVar(&previewOptions.Window, "window", previewOptions.Window, "top value window in ticks")
	cmd.Flags().IntVar(&previewSegment, "segment", 0, "segment to show, 0-based")
	return cmd
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctl, err := previewView.controller()
	if err != nil {
		return err
	}
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	patterns, err := previewPatterns.load(cmd.Context())
	if err != nil {
		return err
	}

	if err := ctl.Load(cmd.Context(), text, patterns); err != nil {
		return err
	}
	if previewSegment > 0 {
		if err := ctl.SelectSegment(fmt.Sprintf("segment-%d", previewSegment)); err != nil {
			return err
		}
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), preview.Render(ctl.Snapshot(), previewOptions))
	return err
}

var (
	viewPatterns patternFlags
	viewView     viewFlags
)

func newViewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view file",
		Short: "Browse the extracted signals interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := viewView.controller()
			if err != nil {
				return err
			}
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			patterns, err := viewPatterns.load(cmd.Context())
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), ctl, text, patterns)
		},
	}

	viewPatterns.register(cmd)
	viewView.register(cmd)
	return cmd
}
