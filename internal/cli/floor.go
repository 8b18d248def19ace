package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/shopfloor/backend/internal/app"
	"github.com/kimhsiao/shopfloor/backend/internal/db"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
)

// NewMachinesCommand creates the machines command group.
func NewMachinesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "machines",
		Short: "List machines or change their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				machines, err := a.Repos.Machines.List(ctx)
				if err != nil {
					return err
				}
				active, err := a.Repos.Downtime.ActiveByMachine(ctx)
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(machines, func(w io.Writer) {
					for _, m := range machines {
						fmt.Fprintf(w, "%-6s %-14s %-8s %s", m.ID, m.Name, m.Type, m.Status)
						if e, ok := active[m.ID]; ok {
							fmt.Fprintf(w, "  down since %s (%s)", e.StartTime.Local().Format(time.TimeOnly), e.ID)
						}
						fmt.Fprintln(w)
					}
				})
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set-status MACHINE_ID RUN|IDLE|OFF",
		Short: "Set a machine's run status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				m, err := a.Repos.Machines.UpdateStatus(ctx, args[0], models.MachineStatus(strings.ToUpper(args[1])))
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(m, func(w io.Writer) {
					fmt.Fprintf(w, "%s is now %s\n", m.ID, m.Status)
				})
			})
		},
	})
	return cmd
}

// NewDowntimeCommand creates the downtime command group.
func NewDowntimeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "downtime",
		Short: "Record machine downtime",
	}
	cmd.AddCommand(newDowntimeListCommand(rootOpts))
	cmd.AddCommand(&cobra.Command{
		Use:   "start MACHINE_ID",
		Short: "Open a downtime event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				e, err := a.Repos.Downtime.Start(ctx, args[0])
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(e, func(w io.Writer) {
					fmt.Fprintf(w, "downtime %s started on %s\n", e.ID, e.MachineID)
				})
			})
		},
	})
	cmd.AddCommand(newDowntimeEndCommand(rootOpts))
	cmd.AddCommand(&cobra.Command{
		Use:   "notes EVENT_ID NOTES",
		Short: "Replace the notes of a downtime event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				e, err := a.Repos.Downtime.AmendNotes(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(e, func(w io.Writer) {
					fmt.Fprintf(w, "notes updated on %s\n", e.ID)
				})
			})
		},
	})
	return cmd
}

func newDowntimeEndCommand(rootOpts *RootOptions) *cobra.Command {
	var in models.EndDowntimeInput

	cmd := &cobra.Command{
		Use:   "end EVENT_ID",
		Short: "Close a downtime event with a reason",
		Long: `Close a downtime event with a reason.

The reason is either a code with its parent (--reason BREAKDOWN --parent
MECHANICAL) or a path (--reason MECH/BREAKDOWN). Run "shopfloor reasons"
for the tree.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				e, err := a.Repos.Downtime.End(ctx, args[0], in)
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(e, func(w io.Writer) {
					fmt.Fprintf(w, "downtime %s closed after %s: %s\n",
						e.ID, e.Duration(a.Store.Now()).Round(time.Second), reasonText(e))
				})
			})
		},
	}
	cmd.Flags().StringVar(&in.ReasonCode, "reason", "", "reason code or PARENT/CHILD path (required)")
	cmd.Flags().StringVar(&in.ReasonLabel, "label", "", "reason label, required for custom codes")
	cmd.Flags().StringVar(&in.ParentReasonCode, "parent", "", "parent reason code")
	cmd.Flags().StringVar(&in.PhotoRef, "photo", "", "reference to a photo of the fault")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "free-text notes")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newDowntimeListCommand(rootOpts *RootOptions) *cobra.Command {
	var f db.DowntimeFilter
	var today bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List downtime events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if today {
					from := a.Store.Now().UTC().Truncate(24 * time.Hour)
					f.StartedFrom = &from
				}
				events, err := a.Repos.Downtime.List(ctx, f)
				if err != nil {
					return err
				}
				now := a.Store.Now()
				return rootOpts.out(cmd).success(events, func(w io.Writer) {
					for i := range events {
						e := &events[i]
						state := "closed"
						if e.IsOpen() {
							state = "open"
						}
						fmt.Fprintf(w, "%s  %-6s %-6s %8s  %s  %s\n",
							e.StartTime.Local().Format(time.DateTime), e.MachineID, state,
							e.Duration(now).Round(time.Second), reasonText(e), syncedText(e.Synced))
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&f.MachineID, "machine", "", "only events for this machine")
	cmd.Flags().BoolVar(&f.OpenOnly, "open", false, "only open events")
	cmd.Flags().BoolVar(&today, "today", false, "only events started today (UTC)")
	return cmd
}

// NewMaintenanceCommand creates the maintenance command group.
func NewMaintenanceCommand(rootOpts *RootOptions) *cobra.Command {
	var machineID string

	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "List and complete scheduled maintenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				items, err := a.Repos.Maintenance.List(ctx, machineID)
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(items, func(w io.Writer) {
					for _, it := range items {
						fmt.Fprintf(w, "%-7s %-6s %-8s due %s  %s  %s\n",
							it.ID, it.MachineID, it.Status, it.DueDate.Local().Format(time.DateOnly), it.Title, syncedText(it.Synced))
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&machineID, "machine", "", "only items for this machine")

	var doneNotes string
	done := &cobra.Command{
		Use:   "done ITEM_ID",
		Short: "Mark a maintenance item as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				it, err := a.Repos.Maintenance.MarkAsDone(ctx, args[0], doneNotes)
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(it, func(w io.Writer) {
					fmt.Fprintf(w, "%s done by %s\n", it.ID, it.CompletedBy)
				})
			})
		},
	}
	done.Flags().StringVar(&doneNotes, "notes", "", "completion notes")
	cmd.AddCommand(done)

	cmd.AddCommand(&cobra.Command{
		Use:   "note ITEM_ID NOTES",
		Short: "Replace the notes of a maintenance item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				it, err := a.Repos.Maintenance.AddNote(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(it, func(w io.Writer) {
					fmt.Fprintf(w, "notes updated on %s\n", it.ID)
				})
			})
		},
	})
	return cmd
}

// NewKPICommand creates the kpi command.
func NewKPICommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "kpi",
		Short: "Show today's floor KPIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				k, err := a.KPI.Compute(ctx)
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(k, func(w io.Writer) {
					fmt.Fprintf(w, "downtime today: %d events, %d min\n", k.DowntimeEventsToday, k.DowntimeMinutesToday)
					fmt.Fprintf(w, "alerts:         %d open, %d cleared, %d total\n", k.AlertsOpen, k.AlertsCleared, k.AlertsTotal)
					fmt.Fprintf(w, "machines:       %d running, %d down\n", k.MachinesRunning, k.MachinesDown)
					fmt.Fprintf(w, "maintenance:    %d/%d done (%.0f%%)\n", k.MaintenanceCompleted, k.MaintenanceTotal, k.MaintenancePercentage)
				})
			})
		},
	}
}

// NewReasonsCommand creates the reasons command.
func NewReasonsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reasons",
		Short: "Print the downtime reason tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.out(cmd).success(models.ReasonTree, func(w io.Writer) {
				for _, p := range models.ReasonTree {
					fmt.Fprintf(w, "%s  %s\n", p.Code, p.Label)
					for _, c := range p.Children {
						fmt.Fprintf(w, "  %s/%s  %s\n", p.Code, c.Code, c.Label)
					}
				}
			})
		},
	}
}

func reasonText(e *models.DowntimeEvent) string {
	if e.ParentReasonLabel != "" {
		return e.ParentReasonLabel + " / " + e.ReasonLabel
	}
	return e.ReasonLabel
}

func syncedText(synced bool) string {
	if synced {
		return "synced"
	}
	return "not synced"
}
