package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/pattern"
	"github.com/logvision/backend/internal/store"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	patternsDB     string
	patternsFormat string
	patternsOutput string
)

func newPatternsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Manage the stored pattern set",
	}
	cmd.PersistentFlags().StringVar(&patternsDB, "db", "./data/patterns.duckdb", "pattern database")

	export := &cobra.Command{
		Use:   "export",
		Short: "Write the stored patterns as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE:  runPatternsExport,
	}
	export.Flags().StringVarP(&patternsFormat, "format", "f", "json", "output format (json, yaml)")
	export.Flags().StringVarP(&patternsOutput, "output", "o", "", "write to file instead of stdout")

	imp := &cobra.Command{
		Use:   "import file",
		Short: "Replace the stored patterns with a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE:  runPatternsImport,
	}

	validate := &cobra.Command{
		Use:   "validate file",
		Short: "Check a pattern file without storing it",
		Args:  cobra.ExactArgs(1),
		RunE:  runPatternsValidate,
	}

	cmd.AddCommand(export, imp, validate)
	return cmd
}

func runPatternsExport(cmd *cobra.Command, _ []string) error {
	format, err := pattern.ParseFormat(patternsFormat)
	if err != nil {
		return err
	}
	db, err := store.OpenPatternStore(patternsDB)
	if err != nil {
		return err
	}
	defer db.Close()

	data, err := pattern.Export(pattern.LoadOrDefault(cmd.Context(), db), format)
	if err != nil {
		return err
	}
	return writeOutput(cmd, patternsOutput, data)
}

func runPatternsImport(cmd *cobra.Command, args []string) error {
	patterns, err := readPatternFile(args[0])
	if err != nil {
		return err
	}
	patterns = pattern.EnsureIDs(patterns)
	if err := pattern.ValidateSet(patterns); err != nil {
		return err
	}

	db, err := store.OpenPatternStore(patternsDB)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Save(cmd.Context(), patterns); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d patterns into %s\n", len(patterns), filepath.Base(patternsDB))
	return nil
}

// decodePatternFile reads a pattern list without compiling it.
func decodePatternFile(path string) ([]models.Pattern, error) {
	format, err := pattern.ParseFormat(filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading patterns: %w", err)
	}

	var patterns []models.Pattern
	if format == pattern.FormatYAML {
		err = yaml.Unmarshal(data, &patterns)
	} else {
		err = json.Unmarshal(data, &patterns)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pattern.EnsureIDs(patterns), nil
}

func runPatternsValidate(cmd *cobra.Command, args []string) error {
	patterns, err := decodePatternFile(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	invalid := 0
	for _, p := range patterns {
		if err := pattern.Validate(p); err != nil {
			invalid++
			fmt.Fprintf(out, "FAIL %s: %v\n", p.Name, err)
			continue
		}
		fmt.Fprintf(out, "ok   %s\n", p.Name)
	}
	if err := pattern.ValidateSet(patterns); err != nil {
		return err
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d patterns are invalid", invalid, len(patterns))
	}
	return nil
}
