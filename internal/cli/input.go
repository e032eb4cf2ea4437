package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/pattern"
	"github.com/logvision/backend/internal/segment"
	"github.com/logvision/backend/internal/store"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// patternFlags selects where a command's patterns come from.
type patternFlags struct {
	file string
	db   string
}

func (f *patternFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "patterns", "p", "", "pattern file (.json, .yaml)")
	cmd.Flags().StringVar(&f.db, "pattern-db", "", "pattern database; ignored when --patterns is set")
}

// load reads the pattern file, else the database, else the built-in set.
func (f *patternFlags) load(ctx context.Context) ([]models.Pattern, error) {
	switch {
	case f.file != "":
		return readPatternFile(f.file)
	case f.db != "":
		db, err := store.OpenPatternStore(f.db)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return pattern.LoadOrDefault(ctx, db), nil
	default:
		return pattern.Defaults(), nil
	}
}

func readPatternFile(path string) ([]models.Pattern, error) {
	format, err := pattern.ParseFormat(filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading patterns: %w", err)
	}
	patterns, err := pattern.Import(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return patterns, nil
}

// readInput returns the named file, or stdin without arguments.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := afero.ReadFile(fs, args[0])
	if err != nil {
		return "", fmt.Errorf("reading log: %w", err)
	}
	return string(data), nil
}

// writeOutput writes data to path, or to the command's stdout when path is
// empty.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// segmentFlags configures segmentation.
type segmentFlags struct {
	strategy         string
	pointsPerSegment int
	windowMinutes    int
}

func (f *segmentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.strategy, "strategy", string(segment.StrategyByCount), "segmentation (by-count, by-duration, none)")
	cmd.Flags().IntVar(&f.pointsPerSegment, "points-per-segment", segment.DefaultPointsPerSegment, "points per segment for by-count")
	cmd.Flags().IntVar(&f.windowMinutes, "window-minutes", segment.DefaultWindowMinutes, "window length for by-duration")
}

func (f *segmentFlags) options() (segment.Options, error) {
	opts := segment.Options{
		Strategy:         segment.Strategy(f.strategy),
		PointsPerSegment: f.pointsPerSegment,
		WindowMinutes:    f.windowMinutes,
	}
	return opts, opts.Validate()
}
