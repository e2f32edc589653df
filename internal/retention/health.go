package retention

import (
	"context"
	"fmt"
)

// Pinger is satisfied by *sqlx.DB and the cache/telemetry clients'
// reachability probes; kept minimal so this package doesn't import sqlx or
// redis directly.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// QueueDepthReporter exposes the scheduler's current backlog so the health
// check can flag a worker pool that isn't keeping up (spec §4.10 "queue
// depth").
type QueueDepthReporter interface {
	QueueDepth() int
}

// HealthChecker builds the named check functions the HTTP /health endpoint
// runs on every request.
type HealthChecker struct {
	DB              Pinger
	Cache           Pinger
	Scheduler       QueueDepthReporter
	QueueDepthAlarm int
}

// Checks returns a name -> check function map suitable for
// httpapi.Deps.HealthCheckers.
func (h *HealthChecker) Checks() map[string]func() error {
	checks := map[string]func() error{}

	if h.DB != nil {
		checks["database"] = func() error {
			return h.DB.PingContext(context.Background())
		}
	}
	if h.Cache != nil {
		checks["cache"] = func() error {
			return h.Cache.PingContext(context.Background())
		}
	}
	if h.Scheduler != nil {
		checks["scheduler_queue"] = func() error {
			depth := h.Scheduler.QueueDepth()
			alarm := h.QueueDepthAlarm
			if alarm <= 0 {
				alarm = 1000
			}
			if depth >= alarm {
				return fmt.Errorf("queue depth %d at or above alarm threshold %d", depth, alarm)
			}
			return nil
		}
	}

	return checks
}
