package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/labsync/internal/inventory"
)

// MaintenanceOptions holds flags for the maintenance command.
type MaintenanceOptions struct {
	*RootOptions
	Today string // YYYY-MM-DD; empty means the current date
	All   bool   // include equipment that is not due
}

// NewMaintenanceCommand creates the maintenance command.
func NewMaintenanceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MaintenanceOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Show equipment due for maintenance",
		Long: fmt.Sprintf(`Show equipment whose maintenance is overdue or due within %d days,
ordered by due date. Retired equipment is skipped.

Examples:
  labsync maintenance --lab lab-1
  labsync maintenance --today 2024-03-20 --all`, inventory.WarningDays),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMaintenance(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Today, "today", "", "evaluate as of this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "include equipment that is not due")
	return cmd
}

func runMaintenance(opts *MaintenanceOptions, cmd *cobra.Command) error {
	now := time.Now()
	if opts.Today != "" {
		t, err := time.Parse(time.DateOnly, opts.Today)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --today", err)
		}
		now = t
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	entities, err := labEntities(s, "equipment")
	if err != nil {
		return err
	}

	report := []inventory.Maintenance{}
	for _, m := range inventory.MaintenanceReport(entities, now) {
		if opts.All || m.State == inventory.MaintenanceDue || m.State == inventory.MaintenanceOverdue {
			report = append(report, m)
		}
	}
	return s.out.Result(maintenanceText(report), report)
}

func maintenanceText(report []inventory.Maintenance) string {
	if len(report) == 0 {
		return "✓ No maintenance due\n"
	}
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tDUE\tDAYS")
	for _, m := range report {
		due, days := "-", "-"
		if m.State != inventory.MaintenanceUnknown {
			due = m.Due.Format(time.DateOnly)
			days = fmt.Sprint(m.DaysLeft)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.Name, m.State, due, days)
	}
	_ = w.Flush()
	return buf.String()
}
