// Package cli implements the shopfloor command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/shopfloor/backend/internal/app"
	"github.com/kimhsiao/shopfloor/backend/internal/config"
	"github.com/kimhsiao/shopfloor/backend/internal/connectivity"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DataDir    string
	Format     string // "json" | "text"
	Verbose    bool
	Offline    bool

	// Log replaces the logger built from the configuration. Tests set it.
	Log *logging.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the shopfloor CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shopfloor",
		Short: "Shop-floor offline data layer",
		Long: `Record machine downtime, maintenance and alerts on the device and
sync them to the plant backend whenever a connection is available.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "directory holding the local database")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().BoolVar(&opts.Offline, "offline", false, "treat the remote as unreachable")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewMachinesCommand(opts))
	cmd.AddCommand(NewDowntimeCommand(opts))
	cmd.AddCommand(NewMaintenanceCommand(opts))
	cmd.AddCommand(NewAlertsCommand(opts))
	cmd.AddCommand(NewKPICommand(opts))
	cmd.AddCommand(NewReasonsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig applies the global flags on top of the loaded configuration.
// One-shot commands log warnings only unless --verbose is set.
func (o *RootOptions) loadConfig(daemon bool) (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}
	switch {
	case o.Verbose:
		cfg.Log.Level = string(logging.LevelDebug)
	case !daemon:
		cfg.Log.Level = string(logging.LevelWarn)
	}
	return cfg, nil
}

// openApp builds the application for one command. The caller closes it.
func (o *RootOptions) openApp(ctx context.Context, daemon bool) (*app.App, error) {
	cfg, err := o.loadConfig(daemon)
	if err != nil {
		return nil, err
	}
	appOpts := app.Options{Log: o.Log}
	if o.Offline {
		appOpts.Network = connectivity.NewManual(false)
	}
	a, err := app.New(ctx, cfg, appOpts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open local store", err)
	}
	return a, nil
}

// withApp opens the application, runs fn and closes it.
func (o *RootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := o.openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
