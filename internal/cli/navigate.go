package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qlarr-surveys/survey-engine/internal/compiler"
	"github.com/qlarr-surveys/survey-engine/internal/engine"
	"github.com/qlarr-surveys/survey-engine/internal/expr"
	"github.com/qlarr-surveys/survey-engine/internal/ir"
	"github.com/qlarr-surveys/survey-engine/internal/store"
)

// NavigateOptions holds flags for the navigate command.
type NavigateOptions struct {
	*RootOptions
	Design      string // design hash in the store
	Store       string // design store path
	Response    string // stored response id
	Direction   string
	Index       string // current index, or jump target
	Mode        string
	Lang        string
	Values      string // JSON file of "Component.field" values
	SkipInvalid bool
	Seed        string
}

// NavigateResult is the outcome of one navigation step.
type NavigateResult struct {
	Index      ir.NavigationIndexJSON `json:"index"`
	Position   string                 `json:"position"`
	Questions  []string               `json:"questions"`
	Values     engine.Values          `json:"values"`
	Seed       string                 `json:"seed,omitempty"`
	DesignHash string                 `json:"design_hash"`
	ResponseID string                 `json:"response_id,omitempty"`
}

// navState is what one step starts from.
type navState struct {
	design   *ir.CompiledSurvey
	current  ir.NavigationIndex
	mode     ir.NavigationMode
	lang     string
	values   engine.Values
	response string
}

// NewNavigateCommand creates the navigate command.
func NewNavigateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NavigateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "navigate [survey-file]",
		Short: "Run one navigation step",
		Long: `Run one navigation step against a survey design.

The design comes from a survey file, from --design (a hash in the store),
or from the stored response named by --response. With --response the
step starts from the stored index, mode, language and values, and the
new position is saved back.

Indexes are given as JSON ({"type":"group","id":"G1"}) or in compact
form (Group(G1), Groups(G1,G2), Question(Q3), End(Gend); a trailing !
shows errors). For --direction jump, --index is the target.

Examples:
  surveyc navigate survey.yaml --direction start
  surveyc navigate survey.yaml --direction next --index 'Group(G1)' --values answers.json
  surveyc navigate --store surveys.db --response r1 --direction next --values answers.json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ""
			if len(args) == 1 {
				file = args[0]
			}
			return runNavigate(opts, file, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Design, "design", "", "design hash in the store")
	cmd.Flags().StringVar(&opts.Store, "store", "", "SQLite design store")
	cmd.Flags().StringVar(&opts.Response, "response", "", "stored response to continue and update")
	cmd.Flags().StringVarP(&opts.Direction, "direction", "d", "start", "start|next|previous|jump|resume|change_language")
	cmd.Flags().StringVar(&opts.Index, "index", "", "current index, or the target of a jump")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "group_by_group|question_by_question|all_in_one")
	cmd.Flags().StringVar(&opts.Lang, "lang", "", "survey language")
	cmd.Flags().StringVar(&opts.Values, "values", "", "JSON file of Component.field values")
	cmd.Flags().BoolVar(&opts.SkipInvalid, "skip-invalid", false, "move past invalid units")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "fixed seed for randomization")

	return cmd
}

func runNavigate(opts *NavigateOptions, file string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	cfg := opts.config()

	if file != "" && opts.Design != "" {
		return formatter.Fail(ExitCommandError, ErrCodeBadArgument, "give either a survey file or --design, not both", nil)
	}
	dbPath := opts.storePath(opts.Store)
	if dbPath == "" && (opts.Design != "" || opts.Response != "") {
		return formatter.Fail(ExitCommandError, ErrCodeBadArgument, "--design and --response need a store", nil)
	}

	var st *store.Store
	if dbPath != "" {
		var err error
		if st, err = store.Open(dbPath); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("opening store: %v", err), err)
		}
		defer st.Close()
	}

	ns, err := resolveNavState(ctx, formatter, opts, st, file)
	if err != nil {
		return err
	}

	dir, err := parseDirection(opts.Direction, opts.Index)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadArgument, err.Error(), err)
	}
	if opts.Index != "" && !isJump(dir) {
		if ns.current, err = parseIndex(opts.Index); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadArgument, err.Error(), err)
		}
	}
	if ns.mode == "" {
		ns.mode = cfg.Mode()
	}
	if opts.Mode != "" {
		if ns.mode, err = ir.ParseNavigationMode(opts.Mode); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadArgument, err.Error(), err)
		}
	}
	if ns.lang == "" {
		ns.lang = cfg.Navigation.Lang
	}
	if opts.Lang != "" {
		ns.lang = opts.Lang
	}
	if opts.Values != "" {
		input, err := readValues(opts.Values)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadArgument, err.Error(), err)
		}
		maps.Copy(ns.values, input)
	}

	var engineOpts []engine.EngineOption
	if opts.Seed != "" {
		engineOpts = append(engineOpts, engine.WithSeedGenerator(engine.NewFixedGenerator(opts.Seed)))
	}
	eng := engine.New(expr.NewHCLEvaluator(), engineOpts...)

	formatter.VerboseLog("Navigating %s from %s (mode %s)", ir.DirectionName(dir), ir.IndexString(ns.current), ns.mode)
	res, err := eng.Navigate(ctx, ns.design, engine.Request{
		Current:     ns.current,
		Direction:   dir,
		Mode:        ns.mode,
		Lang:        ns.lang,
		Values:      ns.values,
		SkipInvalid: opts.SkipInvalid || cfg.Navigation.SkipInvalid,
	})
	if err != nil {
		return navigationFailure(formatter, err)
	}
	maps.Copy(ns.values, res.Values)

	result := NavigateResult{
		Index:      ir.NavigationIndexJSON{NavigationIndex: res.Index},
		Position:   ir.IndexString(res.Index),
		Questions:  engine.Questions(res.Survey),
		Values:     ns.values,
		Seed:       res.Seed,
		DesignHash: ns.design.Hash,
	}

	if ns.response != "" {
		saved, err := st.SaveResponse(ctx, store.Response{
			ID:         ns.response,
			DesignHash: ns.design.Hash,
			Index:      res.Index,
			Mode:       ns.mode,
			Lang:       ns.lang,
			Values:     ns.values,
		})
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("saving response: %v", err), err)
		}
		result.ResponseID = saved.ID
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "→ %s\n", result.Position)
	if len(result.Questions) > 0 {
		fmt.Fprintf(formatter.Writer, "  questions: %s\n", strings.Join(result.Questions, ", "))
	}
	if result.Seed != "" {
		fmt.Fprintf(formatter.Writer, "  seed: %s\n", result.Seed)
	}
	if result.ResponseID != "" {
		fmt.Fprintf(formatter.Writer, "  saved response %s\n", result.ResponseID)
	}
	if opts.Verbose {
		for _, key := range slices.Sorted(maps.Keys(result.Values)) {
			fmt.Fprintf(formatter.Writer, "  %s = %v\n", key, result.Values[key])
		}
	}
	return nil
}

// resolveNavState picks the design and the starting state. A file wins
// over --design, which wins over the stored response's design.
func resolveNavState(ctx context.Context, f *OutputFormatter, opts *NavigateOptions, st *store.Store, file string) (*navState, error) {
	ns := &navState{values: engine.Values{}, response: opts.Response}

	var stored *store.Response
	if opts.Response != "" {
		resp, err := st.LoadResponse(ctx, opts.Response)
		switch {
		case errors.Is(err, store.ErrNotFound):
			f.VerboseLog("Response %s not found, starting a new one", opts.Response)
		case err != nil:
			return nil, f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("loading response: %v", err), err)
		default:
			stored = &resp
			ns.current, ns.mode, ns.lang = resp.Index, resp.Mode, resp.Lang
			maps.Copy(ns.values, resp.Values)
		}
	}

	switch {
	case file != "":
		cs, err := compileFile(ctx, f, file)
		if err != nil {
			return nil, err
		}
		if cs.HasErrors() {
			return nil, outputDesignErrors(f, "compilation", nil, compiler.Diagnostics(cs.Survey))
		}
		if st != nil && opts.Response != "" {
			if _, err := st.SaveDesign(ctx, surveyIDFromPath(file), cs); err != nil {
				return nil, f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("saving design: %v", err), err)
			}
		}
		ns.design = cs
	case opts.Design != "":
		cs, err := loadStoredDesign(ctx, f, st, opts.Design)
		if err != nil {
			return nil, err
		}
		ns.design = cs
	case stored != nil:
		cs, err := loadStoredDesign(ctx, f, st, stored.DesignHash)
		if err != nil {
			return nil, err
		}
		ns.design = cs
	default:
		return nil, f.Fail(ExitCommandError, ErrCodeBadArgument, "no design: give a survey file, --design or an existing --response", nil)
	}

	if stored != nil && stored.DesignHash != ns.design.Hash {
		f.VerboseLog("Response %s was saved against design %s, continuing on %s", stored.ID, stored.DesignHash, ns.design.Hash)
	}
	return ns, nil
}

func loadStoredDesign(ctx context.Context, f *OutputFormatter, st *store.Store, hash string) (*ir.CompiledSurvey, error) {
	cs, err := st.LoadDesign(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("design %s not found", hash), err)
	}
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("loading design: %v", err), err)
	}
	return cs, nil
}

func navigationFailure(f *OutputFormatter, err error) error {
	if errors.Is(err, engine.ErrDesignHasErrors) {
		return f.Fail(ExitFailure, ErrCodeDesignErrors, err.Error(), err)
	}
	var navErr *engine.NavigationError
	if errors.As(err, &navErr) {
		return f.Fail(ExitCommandError, ErrCodeNavigation, navErr.Error(), err)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("navigating: %v", err), err)
}

// parseDirection parses a direction name. A jump takes its target from index.
func parseDirection(name, index string) (ir.NavigationDirection, error) {
	if strings.EqualFold(strings.TrimSpace(name), "jump") {
		if index == "" {
			return nil, errors.New("jump needs --index")
		}
		target, err := parseIndex(index)
		if err != nil {
			return nil, err
		}
		return ir.JumpDirection{Index: target}, nil
	}
	return ir.ParseDirectionName(name)
}

func isJump(d ir.NavigationDirection) bool {
	_, ok := d.(ir.JumpDirection)
	return ok
}

// parseIndex accepts the JSON or the compact form of an index.
func parseIndex(s string) (ir.NavigationIndex, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		idx, err := ir.UnmarshalNavigationIndex([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("invalid index %s: %w", s, err)
		}
		return idx, nil
	}
	return ir.ParseIndexString(s)
}

// readValues reads a JSON object of "Component.field" values. Numbers stay
// json.Number so large integers survive.
func readValues(path string) (engine.Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading values: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var values engine.Values
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("parsing values %s: %w", path, err)
	}
	if values == nil {
		values = engine.Values{}
	}
	return values, nil
}
