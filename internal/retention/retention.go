// Package retention implements C10: scheduled cleanup of telemetry and
// resolved alert history, plus the liveness checks /health reports (spec
// §4.10). Cleanup runs on its own cron schedule, decoupled from probing, so
// a slow or failing cleanup cycle can never stall monitoring.
package retention

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fleetwatch/monitor/internal/domain/alert"
	"github.com/fleetwatch/monitor/internal/platform/logger"
)

// PingStore is the narrow slice of the telemetry backend retention needs:
// deleting rows older than a cutoff. The telemetry client itself is
// write-only (spec §4.5), so this is satisfied by a direct database handle
// to the time-series backend, not the ingestion client.
type PingStore interface {
	DeletePingResultsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config controls retention horizons and the cron schedule.
type Config struct {
	PingRetentionDays  int
	AlertRetentionDays int
	// Schedule is a standard 5-field cron expression; defaults to once
	// daily at 02:00.
	Schedule string
}

func (c Config) withDefaults() Config {
	if c.PingRetentionDays <= 0 {
		c.PingRetentionDays = 90
	}
	if c.AlertRetentionDays <= 0 {
		c.AlertRetentionDays = 365
	}
	if c.Schedule == "" {
		c.Schedule = "0 2 * * *"
	}
	return c
}

// Maintainer owns the cron scheduler running cleanup jobs.
type Maintainer struct {
	cfg        Config
	pingStore  PingStore
	alertStore alert.Store
	log        *logger.Logger
	cron       *cron.Cron
}

// New constructs a Maintainer. pingStore may be nil if no time-series
// backend is configured, in which case ping cleanup is a no-op.
func New(cfg Config, pingStore PingStore, alertStore alert.Store, log *logger.Logger) *Maintainer {
	cfg = cfg.withDefaults()
	return &Maintainer{
		cfg:        cfg,
		pingStore:  pingStore,
		alertStore: alertStore,
		log:        log,
		cron:       cron.New(),
	}
}

// Start registers the cleanup job and starts the cron scheduler in its own
// goroutine. Returns an error only if the schedule expression is invalid.
func (m *Maintainer) Start() error {
	_, err := m.cron.AddFunc(m.cfg.Schedule, func() {
		m.runCleanup(context.Background())
	})
	if err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// Stop blocks until any in-flight cleanup finishes, then stops the cron
// scheduler.
func (m *Maintainer) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

// RunNow runs one cleanup cycle synchronously, for ops tooling or tests
// that don't want to wait on the cron schedule.
func (m *Maintainer) RunNow(ctx context.Context) {
	m.runCleanup(ctx)
}

func (m *Maintainer) runCleanup(ctx context.Context) {
	now := time.Now().UTC()

	if m.pingStore != nil {
		cutoff := now.AddDate(0, 0, -m.cfg.PingRetentionDays)
		n, err := m.pingStore.DeletePingResultsBefore(ctx, cutoff)
		if err != nil {
			m.log.With("error", err).Warn("retention: ping cleanup failed")
		} else {
			m.log.With("deleted", n).With("cutoff", cutoff).Info("retention: ping results cleaned up")
		}
	}

	if m.alertStore != nil {
		cutoff := now.AddDate(0, 0, -m.cfg.AlertRetentionDays)
		n, err := m.alertStore.DeleteResolvedBefore(ctx, cutoff)
		if err != nil {
			m.log.With("error", err).Warn("retention: alert history cleanup failed")
		} else {
			m.log.With("deleted", n).With("cutoff", cutoff).Info("retention: resolved alert history cleaned up")
		}
	}
}
