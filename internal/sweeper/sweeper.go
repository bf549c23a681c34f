// Package sweeper runs scheduled maintenance: reaping registry sessions
// whose transport died without a close frame, and refreshing store gauges.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chatrelay/pkg/config"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/registry"
	"chatrelay/pkg/store"
)

// Start launches the sweep scheduler when enabled. Returns a cancel func.
func Start(ctx context.Context, cfg config.MaintenanceConfig, reg *registry.Registry) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("sweeper_disabled")
		return func() {}, nil
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "*/5 * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("sweeper_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid maintenance cron expression: %s", cfg.Cron)
	}

	logger.Info("sweeper_enabled", "cron", cronExpr)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, reg)
	return cancel, nil
}

// runScheduler computes the next tick with gronx and sleeps until then.
func runScheduler(ctx context.Context, cronExpr string, reg *registry.Registry) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			// fall back to a coarse cadence rather than dying
			logger.Error("sweeper_next_tick_failed", "error", err)
			next = now.Add(30 * time.Second)
		}

		select {
		case <-ctx.Done():
			logger.Info("sweeper_stopping")
			return
		case <-time.After(next.Sub(now)):
		}

		runOnce(reg)
	}
}

func runOnce(reg *registry.Registry) {
	start := time.Now()
	reaped := reg.Sweep()
	store.RefreshGauges()
	logger.Info("sweep_complete", "reaped", reaped, "online", reg.Count(), "elapsed", time.Since(start).String())
}
