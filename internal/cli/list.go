package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/syncstore"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "Show the lab's documents in a collection",
		Long: `Show the merged view of a collection for the configured lab.

Examples:
  labsync list supplies --lab lab-1
  labsync list tasks --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runList(opts *RootOptions, collection string, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.cfg.Lab == "" {
		_ = s.out.Error(string(syncstore.CodeMissingLab), syncstore.MsgMissingLab, nil)
		return NewExitError(ExitCommandError, "no lab configured")
	}

	ss, err := s.syncStore(collection, false)
	if err != nil {
		return err
	}
	defer ss.Dispose()

	view := ss.MergedView()
	text, err := entitiesText(view)
	if err != nil {
		return err
	}
	return s.out.Result(text, view)
}

// entitiesText renders one row per entity: the id and its fields as
// canonical JSON.
func entitiesText(entities []doc.Entity) (string, error) {
	if len(entities) == 0 {
		return "No documents.\n", nil
	}
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFIELDS")
	for _, e := range entities {
		fields, err := doc.MarshalCanonical(e.Fields)
		if err != nil {
			return "", fmt.Errorf("render %s: %w", e.ID, err)
		}
		fmt.Fprintf(w, "%s\t%s\n", e.ID, fields)
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
