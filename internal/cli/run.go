package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/shopfloor/backend/internal/app"
	syncpkg "github.com/kimhsiao/shopfloor/backend/internal/sync"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/scheduler"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the background sync controller until interrupted",
		Long: `Run connectivity polling and the sync controller in the foreground.

Local writes made by other shopfloor commands against the same data
directory are picked up on the next interval tick.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := rootOpts.openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			a.Start(ctx)
			<-ctx.Done()
			return nil
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity and pending sync work",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				a.Controller.CheckConnectivity(ctx)
				if _, err := a.Engine.RefreshPending(ctx); err != nil {
					return err
				}
				s := a.Controller.Status()
				return rootOpts.out(cmd).success(s, func(w io.Writer) {
					writeStatus(w, s)
				})
			})
		},
	}
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				result, err := a.Controller.ForceSync(ctx)
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(result, func(w io.Writer) {
					writeResult(w, result)
				})
			})
		},
	}
}

func (o *RootOptions) out(cmd *cobra.Command) output {
	return output{format: o.Format, w: cmd.OutOrStdout()}
}

func writeStatus(w io.Writer, s scheduler.Status) {
	online := "offline"
	if s.IsOnline {
		online = "online"
	}
	fmt.Fprintf(w, "connectivity: %s\n", online)
	fmt.Fprintf(w, "pending:      %d\n", s.PendingCount)
	if s.LastSyncTime != nil {
		fmt.Fprintf(w, "last sync:    %s\n", s.LastSyncTime.Local().Format(time.DateTime))
	}
	if s.LastError != "" {
		fmt.Fprintf(w, "last error:   %s\n", s.LastError)
	}
}

func writeResult(w io.Writer, r *syncpkg.Result) {
	if r.Skipped {
		fmt.Fprintln(w, "a sync pass is already running")
		return
	}
	fmt.Fprintf(w, "synced %d, failed %d, passed through %d, deferred %d in %s\n",
		r.Synced, r.Failed, r.PassedThrough, r.Deferred, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "pending: %d\n", r.PendingCount)
}
