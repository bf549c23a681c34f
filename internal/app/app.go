// Package app wires the server components together and owns their
// lifecycle: config validation, store open, blob store, registry,
// delivery pipeline, scheduler and the HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"chatrelay/internal/sweeper"
	"chatrelay/pkg/blob"
	"chatrelay/pkg/config"
	"chatrelay/pkg/delivery"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/registry"
	"chatrelay/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	reg  *registry.Registry
	pipe *delivery.Pipeline
	srv  *http.Server
}

// New initializes everything that does not need a running context: config
// validation, runtime signing keys, the pebble store, the blob store and
// the delivery pipeline. Call Run to start the scheduler and HTTP server.
func New(ctx context.Context, eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	runtimeCfg := &config.RuntimeConfig{SigningKeys: map[string]struct{}{}}
	for _, k := range eff.Config.Security.SigningKeys {
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	blobs, err := blob.NewFromConfig(ctx, eff.Config.Blob)
	if err != nil {
		return nil, fmt.Errorf("failed to init blob store: %w", err)
	}

	reg := registry.New()
	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		reg:       reg,
		pipe:      delivery.New(reg, blobs),
	}
	return a, nil
}

// Run starts the sweeper and the HTTP server, and blocks until ctx is
// cancelled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	stopSweeper, err := sweeper.Start(ctx, a.eff.Config.Maintenance, a.reg)
	if err != nil {
		return err
	}
	defer stopSweeper()

	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown drains live connections and stops the HTTP server.
func (a *App) Shutdown(ctx context.Context) error {
	a.reg.Shutdown()
	var err error
	if a.srv != nil {
		err = a.srv.Shutdown(ctx)
	}
	if cerr := store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	logger.Info("server_stopped")
	return err
}

// validateConfig rejects configs that cannot possibly serve.
func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.Addr == "" {
		return fmt.Errorf("listen address required")
	}
	if eff.DBPath == "" {
		return fmt.Errorf("db path required")
	}
	cfg := eff.Config
	if cfg == nil {
		return fmt.Errorf("config required")
	}
	cert, key := cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile
	if (cert == "") != (key == "") {
		return fmt.Errorf("tls requires both cert_file and key_file")
	}
	if cfg.Blob.Bucket != "" && cfg.Blob.Region == "" && cfg.Blob.Endpoint == "" {
		return fmt.Errorf("blob storage requires a region or endpoint")
	}
	if cfg.Live.PingIntervalSecs < 0 || cfg.Live.SendBuffer < 0 {
		return fmt.Errorf("live settings must be non-negative")
	}
	return nil
}

// GracefulTimeout bounds how long Shutdown waits for in-flight requests.
const GracefulTimeout = 10 * time.Second
