package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/shopfloor/backend/internal/app"
	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/queue"
)

// NewQueueCommand creates the queue diagnostics command group.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the sync queue",
	}
	cmd.AddCommand(newQueueStatsCommand(rootOpts))
	cmd.AddCommand(newQueueListCommand(rootOpts))
	cmd.AddCommand(newQueuePurgeCommand(rootOpts))
	return cmd
}

func newQueueStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count queue records by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				stats, err := a.Outbox.GetStats(ctx)
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(stats, func(w io.Writer) {
					fmt.Fprintf(w, "total %d: pending %d, syncing %d, synced %d, failed %d (%d exhausted)\n",
						stats.Total, stats.Pending, stats.Syncing, stats.Synced, stats.Failed, stats.Exhausted)
				})
			})
		},
	}
}

func newQueueListCommand(rootOpts *RootOptions) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue records, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := queue.ListFilter{Status: models.SyncStatus(status), Limit: limit}
			if status != "" && !f.Status.Valid() {
				return apperrors.Newf(apperrors.ErrValidation, "invalid status %q", status)
			}
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				items, err := a.Outbox.List(ctx, f)
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(items, func(w io.Writer) {
					for _, it := range items {
						fmt.Fprintf(w, "%s  %-8s %-11s/%-6s %s retries=%d",
							it.CreatedAt.Local().Format(time.DateTime), it.Status, it.EntityType, it.Action, it.EntityID, it.RetryCount)
						if it.ErrorMessage != "" {
							fmt.Fprintf(w, " error=%q", it.ErrorMessage)
						}
						fmt.Fprintln(w)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only records in this status (pending|syncing|synced|failed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records to list (0 for all)")
	return cmd
}

func newQueuePurgeCommand(rootOpts *RootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete synced records older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < 0 {
				return apperrors.New(apperrors.ErrValidation, "--older-than must not be negative")
			}
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Outbox.Purge(ctx, a.Store.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(map[string]int{"purged": n}, func(w io.Writer) {
					fmt.Fprintf(w, "purged %d synced records\n", n)
				})
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "age of synced records to delete")
	return cmd
}
