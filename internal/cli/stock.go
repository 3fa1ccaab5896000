package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/inventory"
	"github.com/roach88/labsync/internal/remote"
	"github.com/roach88/labsync/internal/syncstore"
)

const suppliesCollection = "supplies"

// StockReport lists the supplies that need ordering.
type StockReport struct {
	Policy      inventory.Policy       `json:"policy"`
	Suggestions []inventory.Suggestion `json:"suggestions"`
}

// NewStockCommand creates the stock command and its check subcommand.
func NewStockCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Show supplies that need ordering",
		Long: `Show every supply at or below its minimum, or that will run out within
its lead time plus the configured weeks of cover, most urgent first.

Examples:
  labsync stock --lab lab-1
  labsync stock check sup-1 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStockReport(rootOpts, cmd)
		},
	}
	cmd.AddCommand(newStockCheckCommand(rootOpts))
	return cmd
}

func runStockReport(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	entities, err := labEntities(s, suppliesCollection)
	if err != nil {
		return err
	}
	suggestions, err := inventory.ReorderReport(entities, s.cfg.Inventory)
	if err != nil {
		_ = s.out.Error(ErrCodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "malformed supplies", err)
	}

	report := StockReport{Policy: s.cfg.Inventory, Suggestions: suggestions}
	return s.out.Result(stockText(suggestions), report)
}

func stockText(suggestions []inventory.Suggestion) string {
	if len(suggestions) == 0 {
		return "✓ Stock is healthy\n"
	}
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tHEALTH\tORDER\tREASON")
	for _, sg := range suggestions {
		fmt.Fprintf(w, "%s\t%s\t%d%% %s\t%d\t%s\n",
			sg.ID, sg.Name, sg.Health.Percent, sg.Health.Level, sg.Qty, sg.Reason)
	}
	_ = w.Flush()
	return buf.String()
}

// StockCheckResult is the outcome of a saved stock count.
type StockCheckResult struct {
	ID     string                `json:"id"`
	Qty    int64                 `json:"qty"`
	Health inventory.Health      `json:"health"`
	Order  *inventory.Suggestion `json:"order,omitempty"`
}

func newStockCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutationOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "check <id> <qty>",
		Short: "Save a counted quantity for a supply",
		Long: `Save a stock count. The quantity must be a whole, non-negative number.
If the save fails the previous count is kept and the command exits 1.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStockCheck(opts, args[0], args[1], cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.Fail, "fail", false, "reject the remote write to see the rollback")
	return cmd
}

func runStockCheck(opts *MutationOptions, id, input string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	qty, err := inventory.ParseQuantity(input)
	if err != nil {
		_ = s.out.Error(string(syncstore.CodeInvalidInput), err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid quantity", err)
	}

	ss, err := s.syncStore(suppliesCollection, opts.Fail)
	if err != nil {
		return err
	}
	defer ss.Dispose()

	if err := ss.Update(cmd.Context(), id, doc.Object{inventory.FieldQty: doc.Int(qty)}); err != nil {
		return s.out.MutationFailed(err, s.notes.All())
	}

	e, _ := ss.Get(id)
	supply, err := inventory.SupplyFrom(e)
	if err != nil {
		return WrapExitError(ExitCommandError, "malformed supply", err)
	}
	result := StockCheckResult{ID: id, Qty: qty, Health: inventory.StockHealth(supply)}
	text := fmt.Sprintf("✓ %s: %d (%d%% %s)\n", id, qty, result.Health.Percent, result.Health.Level)
	if sg, ok := inventory.SuggestReorder(supply, s.cfg.Inventory); ok {
		result.Order = &sg
		text += fmt.Sprintf("  order %d: %s\n", sg.Qty, sg.Reason)
	}
	return s.out.Result(text, result)
}

// labEntities returns the lab's confirmed documents in a collection.
func labEntities(s *session, collection string) ([]doc.Entity, error) {
	if s.cfg.Lab == "" {
		_ = s.out.Error(string(syncstore.CodeMissingLab), syncstore.MsgMissingLab, nil)
		return nil, NewExitError(ExitCommandError, "no lab configured")
	}
	entities, err := s.db.Collection(collection).List(context.Background(),
		remote.Filter{doc.FieldLabID: doc.String(s.cfg.Lab)})
	if err != nil {
		_ = s.out.Error(ErrCodeDatabase, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to read "+collection, err)
	}
	return entities, nil
}
