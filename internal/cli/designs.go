package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/qlarr-surveys/survey-engine/internal/store"
)

// DesignsOptions holds flags for the designs command.
type DesignsOptions struct {
	*RootOptions
	Store string
}

// NewDesignsCommand creates the designs command.
func NewDesignsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DesignsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "designs",
		Short: "List stored design revisions",
		Long: `List every design revision in the store, oldest first.

A revision is written each time compile --store saves a design whose hash
differs from the survey's latest one.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDesigns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Store, "store", "", "SQLite design store")

	return cmd
}

func runDesigns(opts *DesignsOptions, cmd *cobra.Command) error {
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

	revs, err := st.ListDesigns(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("listing designs: %v", err), err)
	}

	if formatter.IsJSON() {
		return formatter.Success(revs)
	}
	if len(revs) == 0 {
		fmt.Fprintln(formatter.Writer, "No designs stored.")
		return nil
	}
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSURVEY\tHASH\tERRORS\tREVISION")
	for _, rev := range revs {
		errs := "no"
		if rev.HasErrors {
			errs = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", rev.Seq, rev.SurveyID, rev.DesignHash, errs, rev.ID)
	}
	return tw.Flush()
}
