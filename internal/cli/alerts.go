package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/shopfloor/backend/internal/app"
	"github.com/kimhsiao/shopfloor/backend/internal/db"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
	"github.com/kimhsiao/shopfloor/backend/internal/repository"
)

// NewAlertsCommand creates the alerts command group.
func NewAlertsCommand(rootOpts *RootOptions) *cobra.Command {
	var f db.AlertFilter
	var status string

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List, raise, acknowledge and clear alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = models.AlertStatus(status)
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				alerts, err := a.Repos.Alerts.List(ctx, f)
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(alerts, func(w io.Writer) {
					for _, al := range alerts {
						fmt.Fprintf(w, "%s  %-8s %-12s %-6s %s  %s\n",
							al.CreatedAt.Local().Format(time.DateTime), al.Severity, al.Status, al.MachineID, al.Message, al.ID)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only alerts in this status (created|acknowledged|cleared)")
	cmd.Flags().StringVar(&f.MachineID, "machine", "", "only alerts for this machine")
	cmd.Flags().BoolVar(&f.OpenOnly, "open", false, "only alerts not yet cleared")

	var severity string
	create := &cobra.Command{
		Use:   "create MACHINE_ID MESSAGE",
		Short: "Raise an alert",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				al, err := a.Repos.Alerts.Create(ctx, repository.NewAlert{
					MachineID: args[0],
					Message:   args[1],
					Severity:  models.AlertSeverity(severity),
				})
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(al, func(w io.Writer) {
					fmt.Fprintf(w, "alert %s raised on %s\n", al.ID, al.MachineName)
				})
			})
		},
	}
	create.Flags().StringVar(&severity, "severity", string(models.SeverityMedium), "low|medium|high|critical")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Raise one simulated alert",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				al, err := a.Alerts.Generate(ctx)
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(al, func(w io.Writer) {
					if al == nil {
						fmt.Fprintln(w, "no machines to raise an alert on")
						return
					}
					fmt.Fprintf(w, "%s alert on %s: %s\n", al.Severity, al.MachineName, al.Message)
				})
			})
		},
	})

	cmd.AddCommand(alertTransitionCommand(rootOpts, "ack", "Acknowledge an alert",
		func(ctx context.Context, a *app.App, id string) (*models.Alert, error) {
			return a.Repos.Alerts.Acknowledge(ctx, id)
		}))
	cmd.AddCommand(alertTransitionCommand(rootOpts, "clear", "Clear an alert",
		func(ctx context.Context, a *app.App, id string) (*models.Alert, error) {
			return a.Repos.Alerts.Clear(ctx, id)
		}))
	return cmd
}

func alertTransitionCommand(rootOpts *RootOptions, use, short string,
	apply func(ctx context.Context, a *app.App, id string) (*models.Alert, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ALERT_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				al, err := apply(ctx, a, args[0])
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(al, func(w io.Writer) {
					fmt.Fprintf(w, "alert %s is now %s\n", al.ID, al.Status)
				})
			})
		},
	}
}
