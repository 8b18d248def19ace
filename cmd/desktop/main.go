// Package main runs the device as a localhost REST and WebSocket server for
// the desktop shell.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/shopfloor/backend/cmd/desktop/handlers"
	"github.com/kimhsiao/shopfloor/backend/internal/app"
	"github.com/kimhsiao/shopfloor/backend/internal/config"
	"github.com/kimhsiao/shopfloor/backend/internal/repository"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/scheduler"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var configPath, addr string
	cmd := &cobra.Command{
		Use:           "shopfloor-desktop",
		Short:         "Serve the shop-floor data layer on localhost",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Desktop.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

// serve runs the device until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config) error {
	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	hub := NewWSHub(a.Log)
	defer hub.Close()
	detach := attachHub(a, hub)
	defer detach()

	a.Start(ctx)

	ln, err := net.Listen("tcp", cfg.Desktop.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           newMux(a, hub),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	a.Log.Info("desktop server listening", map[string]interface{}{"addr": ln.Addr().String()})

	select {
	case err := <-errCh:
		if !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.Log.Info("desktop server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// attachHub forwards sync events, status changes and local writes to the hub.
func attachHub(a *app.App, hub *WSHub) (detach func()) {
	a.Engine.AddEventHandler(hub)
	unsubStatus := a.Controller.Subscribe(func(s scheduler.Status) { hub.BroadcastStatus(s) })
	unsubChanges := a.Repos.Changes.Subscribe(func(c repository.Change) { hub.BroadcastChange(c) })
	return func() {
		unsubStatus()
		unsubChanges()
	}
}

// newMux registers every route served to the desktop shell.
func newMux(a *app.App, hub *WSHub) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		s := a.Controller.Status()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"shopfloor-desktop","online":%t,"pending":%d}`,
			s.IsOnline, s.PendingCount)
	})

	handlers.NewFloorHandler(a.Repos, a.KPI).Register(mux)
	handlers.NewSyncHandler(a.Controller).Register(mux)
	mux.HandleFunc("GET /ws", HandleWebSocket(hub))
	if a.Metrics != nil {
		mux.Handle("GET /metrics", a.Metrics.Handler())
	}
	return mux
}
