package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qlarr-surveys/survey-engine/internal/compiler"
	"github.com/qlarr-surveys/survey-engine/internal/expr"
	"github.com/qlarr-surveys/survey-engine/internal/ir"
	"github.com/qlarr-surveys/survey-engine/internal/loader"
	"github.com/qlarr-surveys/survey-engine/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output   string // output file path
	Store    string // design store path
	SurveyID string // survey id for the stored revision
}

// CompileResult summarizes a compiled design.
type CompileResult struct {
	Hash       string                `json:"hash"`
	Valid      bool                  `json:"valid"`
	Components int                   `json:"components"`
	Guarded    int                   `json:"guarded"`
	Schema     []ir.ResponseField    `json:"schema"`
	Errors     []compiler.Diagnostic `json:"errors,omitempty"`
	Output     string                `json:"output,omitempty"`
	Revision   *store.Revision       `json:"revision,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <survey-file>",
		Short: "Compile a survey definition",
		Long: `Compile a survey definition (.yaml, .json or .cue) into a design.

The compiler checks structure, expressions, references and skip logic,
synthesizes relevance and validity, and reports every error it finds.
The compiled design can be written to a file and saved in a design store.

Exit codes:
  0 - Design compiled without errors
  1 - Design carries errors (still written and stored when requested)
  2 - Command error (unreadable file, store failure)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the compiled design to this file")
	cmd.Flags().StringVar(&opts.Store, "store", "", "save the design in this SQLite store")
	cmd.Flags().StringVar(&opts.SurveyID, "survey-id", "", "survey id for the stored revision (default: file name)")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	cs, err := compileFile(ctx, formatter, path)
	if err != nil {
		return err
	}
	result := newCompileResult(cs)

	if opts.Output != "" {
		if err := writeDesign(cs, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), err)
		}
		result.Output = opts.Output
	}

	if dbPath := opts.storePath(opts.Store); dbPath != "" {
		surveyID := opts.SurveyID
		if surveyID == "" {
			surveyID = surveyIDFromPath(path)
		}
		rev, err := saveDesign(ctx, dbPath, surveyID, cs)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("saving design: %v", err), err)
		}
		result.Revision = &rev
	}

	if !result.Valid {
		return outputDesignErrors(formatter, "compilation", result, result.Errors)
	}
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %s\n\n", path)
	fmt.Fprintf(formatter.Writer, "  hash:       %s\n", result.Hash)
	fmt.Fprintf(formatter.Writer, "  components: %d\n", result.Components)
	fmt.Fprintf(formatter.Writer, "  guarded:    %d\n", result.Guarded)
	fmt.Fprintf(formatter.Writer, "  schema:     %d field(s)\n", len(result.Schema))
	printArtifacts(formatter, result)
	return nil
}

func newCompileResult(cs *ir.CompiledSurvey) *CompileResult {
	diags := compiler.Diagnostics(cs.Survey)
	schema := cs.Schema
	if schema == nil {
		schema = []ir.ResponseField{}
	}
	return &CompileResult{
		Hash:       cs.Hash,
		Valid:      len(diags) == 0,
		Components: len(cs.Index),
		Guarded:    len(cs.SkipManifesto),
		Schema:     schema,
		Errors:     diags,
	}
}

func printArtifacts(f *OutputFormatter, result *CompileResult) {
	if result.Output != "" {
		fmt.Fprintf(f.Writer, "\nWrote compiled design to %s\n", result.Output)
	}
	if rev := result.Revision; rev != nil {
		fmt.Fprintf(f.Writer, "Stored revision %s of survey %q (seq %d)\n", rev.ID, rev.SurveyID, rev.Seq)
	}
}

// compileFile loads and compiles a survey definition. Load failures are
// written through f and returned as command errors.
func compileFile(ctx context.Context, f *OutputFormatter, path string) (*ir.CompiledSurvey, error) {
	f.VerboseLog("Loading %s", path)
	survey, err := loader.Load(path)
	if err != nil {
		var loadErr *loader.LoadError
		if errors.As(err, &loadErr) {
			return nil, f.Fail(ExitCommandError, loadErr.Code, loadErrorMessage(loadErr), err)
		}
		return nil, f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), err)
	}

	cs, err := compiler.Compile(ctx, survey, expr.NewHCLValidator())
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("compiling: %v", err), err)
	}
	f.VerboseLog("Compiled %d component(s), design hash %s", len(cs.Index), cs.Hash)
	return cs, nil
}

func loadErrorMessage(e *loader.LoadError) string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	case e.File != "":
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// outputDesignErrors reports the errors carried by a compiled design.
// Designs with errors are a failure, not a command error.
func outputDesignErrors(f *OutputFormatter, what string, data any, diags []compiler.Diagnostic) error {
	msg := fmt.Sprintf("%s found %d error(s)", what, len(diags))
	if f.IsJSON() {
		if err := f.encode(CLIResponse{
			Status: "error",
			Data:   data,
			Error: &CLIError{
				Code:    ErrCodeDesignErrors,
				Message: msg,
				Details: diags,
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	fmt.Fprintf(f.Writer, "✗ %s%s\n\n", strings.ToUpper(msg[:1]), msg[1:])
	for _, d := range diags {
		fmt.Fprintf(f.Writer, "  %s\n", d.Error())
	}
	if result, ok := data.(*CompileResult); ok {
		printArtifacts(f, result)
	}
	return NewExitError(ExitFailure, msg)
}

// writeDesign writes the compiled design as indented JSON.
func writeDesign(cs *ir.CompiledSurvey, filename string) error {
	data, err := json.MarshalIndent(cs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling design: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

func saveDesign(ctx context.Context, dbPath, surveyID string, cs *ir.CompiledSurvey) (store.Revision, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return store.Revision{}, err
	}
	defer st.Close()
	return st.SaveDesign(ctx, surveyID, cs)
}

func surveyIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
