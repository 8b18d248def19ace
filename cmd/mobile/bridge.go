// Package main is the shared library loaded by the mobile shell. Every
// exported call takes and returns JSON strings. On failure the call returns
// NULL and GetLastError describes the error as {"code":..., "message":...}.
package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"

	"github.com/kimhsiao/shopfloor/backend/internal/app"
	"github.com/kimhsiao/shopfloor/backend/internal/config"
	"github.com/kimhsiao/shopfloor/backend/internal/connectivity"
	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
)

// bridge owns the single App instance behind the exported functions.
type bridge struct {
	mu     sync.Mutex
	app    *app.App
	cancel context.CancelFunc

	errMu   sync.RWMutex
	lastErr string
}

var core bridge

// open initializes the device under dataDir. configPath may be empty. The
// shell reports connectivity through SetOnline, so the device starts offline.
func (b *bridge) open(dataDir, configPath string, opts app.Options) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.app != nil {
		return apperrors.New(apperrors.ErrValidation, "core already initialized")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	cfg.Log.Format = "json"
	if opts.Network == nil {
		opts.Network = connectivity.NewManual(false)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a, err := app.New(ctx, cfg, opts)
	if err != nil {
		cancel()
		return err
	}
	a.Start(ctx)
	b.app, b.cancel = a, cancel
	return nil
}

// close stops the device. Closing an uninitialized bridge is a no-op.
func (b *bridge) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.app == nil {
		return nil
	}
	err := b.app.Close()
	b.cancel()
	b.app, b.cancel = nil, nil
	return err
}

// setOnline forwards the shell's connectivity.
func (b *bridge) setOnline(online bool) error {
	return b.with(func(_ context.Context, a *app.App) error {
		a.Network.Set(online)
		return nil
	})
}

func (b *bridge) with(fn func(ctx context.Context, a *app.App) error) error {
	b.mu.Lock()
	a := b.app
	b.mu.Unlock()
	if a == nil {
		return apperrors.New(apperrors.ErrInternal, "core not initialized")
	}
	return fn(context.Background(), a)
}

// call runs fn against the App and encodes its result. Errors are recorded
// for GetLastError.
func (b *bridge) call(fn func(ctx context.Context, a *app.App) (interface{}, error)) (string, bool) {
	var result interface{}
	err := b.with(func(ctx context.Context, a *app.App) error {
		var err error
		result, err = fn(ctx, a)
		return err
	})
	if err != nil {
		b.setError(err)
		return "", false
	}
	data, err := json.Marshal(result)
	if err != nil {
		b.setError(apperrors.Wrap(apperrors.ErrInternal, "encode result", err))
		return "", false
	}
	return string(data), true
}

// status records err for GetLastError and reports success.
func (b *bridge) status(err error) bool {
	if err != nil {
		b.setError(err)
		return false
	}
	return true
}

func (b *bridge) setError(err error) {
	message := err.Error()
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	}
	data, _ := json.Marshal(map[string]string{
		"code":    string(apperrors.CodeOf(err)),
		"message": message,
	})

	b.errMu.Lock()
	defer b.errMu.Unlock()
	b.lastErr = string(data)
}

func (b *bridge) lastError() string {
	b.errMu.RLock()
	defer b.errMu.RUnlock()
	return b.lastErr
}

// decodeArg parses a JSON argument. An empty string leaves v untouched.
func decodeArg(s string, v interface{}) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "invalid JSON argument", err)
	}
	return nil
}

func main() {}
