package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qlarr-surveys/survey-engine/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                  `json:"valid"`
	Hash   string                `json:"hash"`
	Errors []compiler.Diagnostic `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <survey-file>",
		Short: "Check a survey definition for errors",
		Long: `Check a survey definition without writing or storing anything.

Runs the full compiler and lists structural, expression, reference and
skip errors with the component and instruction that carries each one.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cs, err := compileFile(cmd.Context(), formatter, path)
	if err != nil {
		return err
	}
	diags := compiler.Diagnostics(cs.Survey)
	result := ValidationResult{Valid: len(diags) == 0, Hash: cs.Hash, Errors: diags}

	if !result.Valid {
		return outputDesignErrors(formatter, "validation", result, diags)
	}
	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s is valid\n", path)
	return nil
}
