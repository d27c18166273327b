package cli

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qlarr-surveys/survey-engine/internal/engine"
	"github.com/qlarr-surveys/survey-engine/internal/ir"
	"github.com/qlarr-surveys/survey-engine/internal/store"
)

// ResponseOptions holds flags for the response command.
type ResponseOptions struct {
	*RootOptions
	Store     string
	Component string // optional - only this component's values
}

// ResponseView is the stored state of one respondent.
type ResponseView struct {
	ID         string                 `json:"id"`
	DesignHash string                 `json:"design_hash"`
	Index      ir.NavigationIndexJSON `json:"index"`
	Position   string                 `json:"position"`
	Mode       ir.NavigationMode      `json:"mode"`
	Lang       string                 `json:"lang"`
	Seq        int64                  `json:"seq"`
	Values     engine.Values          `json:"values"`
}

// NewResponseCommand creates the response command.
func NewResponseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResponseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "response <id>",
		Short: "Show a stored response",
		Long: `Show the stored state of a respondent: the design it runs on, its
navigation index, mode and language, and the saved values.

Examples:
  surveyc response r1 --store surveys.db
  surveyc response r1 --store surveys.db --component Q1
  surveyc response r1 --store surveys.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResponse(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Store, "store", "", "SQLite design store")
	cmd.Flags().StringVar(&opts.Component, "component", "", "only show values of this component")

	return cmd
}

func runResponse(opts *ResponseOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	dbPath := opts.storePath(opts.Store)
	if dbPath == "" {
		return formatter.Fail(ExitCommandError, ErrCodeBadArgument, "no store: pass --store or set [store] path", nil)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("opening store: %v", err), err)
	}
	defer st.Close()

	resp, err := st.LoadResponse(cmd.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("response %s not found", id), err)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("loading response: %v", err), err)
	}

	view := ResponseView{
		ID:         resp.ID,
		DesignHash: resp.DesignHash,
		Index:      ir.NavigationIndexJSON{NavigationIndex: resp.Index},
		Position:   ir.IndexString(resp.Index),
		Mode:       resp.Mode,
		Lang:       resp.Lang,
		Seq:        resp.Seq,
		Values:     filterValues(resp.Values, opts.Component),
	}

	if formatter.IsJSON() {
		return formatter.Success(view)
	}
	fmt.Fprintf(formatter.Writer, "Response %s (seq %d)\n\n", view.ID, view.Seq)
	fmt.Fprintf(formatter.Writer, "  design:   %s\n", view.DesignHash)
	fmt.Fprintf(formatter.Writer, "  position: %s\n", view.Position)
	fmt.Fprintf(formatter.Writer, "  mode:     %s\n", view.Mode)
	fmt.Fprintf(formatter.Writer, "  lang:     %s\n", view.Lang)
	if len(view.Values) == 0 {
		return nil
	}
	fmt.Fprintln(formatter.Writer, "\nValues:")
	for _, key := range slices.Sorted(maps.Keys(view.Values)) {
		fmt.Fprintf(formatter.Writer, "  %s = %v\n", key, view.Values[key])
	}
	return nil
}

// filterValues keeps the values of one component. An empty component
// keeps everything.
func filterValues(values map[string]any, component string) engine.Values {
	out := make(engine.Values, len(values))
	for key, v := range values {
		if component == "" || strings.HasPrefix(key, component+".") {
			out[key] = v
		}
	}
	return out
}
