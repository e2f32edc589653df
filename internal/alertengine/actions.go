package alertengine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fleetwatch/monitor/internal/cache"
	"github.com/fleetwatch/monitor/internal/domain/alert"
)

// fire opens a History row for fp if none is already open, per the
// batch-fetched existing state. An already-open alert is left untouched:
// firing is idempotent, never re-triggering or bumping TriggeredAt while the
// condition continues to hold.
func (e *Engine) fire(ctx context.Context, rule *alert.Rule, fp alert.Fingerprint, deviceID uuid.UUID, interfaceID *uuid.UUID, ispProvider, snapshot string, existing *alert.History) {
	if existing != nil {
		return
	}

	h := &alert.History{
		RuleID:        &rule.ID,
		DeviceID:      deviceID,
		InterfaceID:   interfaceID,
		Severity:      rule.Severity,
		Message:       fmt.Sprintf("%s: %s", rule.Name, snapshot),
		ValueSnapshot: snapshot,
		TriggeredAt:   time.Now().UTC(),
		ISPProvider:   ispProvider,
		FaultClass:    string(rule.Condition.Kind),
	}
	if err := e.store.CreateHistory(ctx, h); err != nil {
		e.log.With("rule_id", rule.ID).With("device_id", deviceID).With("error", err).Warn("alertengine: failed to create alert history")
		return
	}
	e.invalidate(ctx)
	e.log.With("rule_id", rule.ID).With("device_id", deviceID).With("severity", rule.Severity).Info("alert fired")
	if e.onFired != nil {
		e.onFired(h)
	}
}

// resolve closes fp's open History row, if any, per the batch-fetched
// existing state. Called every cycle a rule no longer matches, so
// resolution never depends on a separate sweep.
func (e *Engine) resolve(ctx context.Context, existing *alert.History) {
	if existing == nil {
		return
	}
	if err := e.store.ResolveHistory(ctx, existing.ID, time.Now().UTC()); err != nil {
		e.log.With("alert_id", existing.ID).With("error", err).Warn("alertengine: failed to resolve alert history")
		return
	}
	e.invalidate(ctx)
	e.log.With("alert_id", existing.ID).Info("alert auto-resolved")
	if e.onResolved != nil {
		e.onResolved(existing)
	}
}

// Acknowledge records an operator acknowledgement (who and when) on an
// alert. Acknowledging does not resolve it: the alert stays open until its
// condition stops holding.
func (e *Engine) Acknowledge(ctx context.Context, alertID uuid.UUID, by string) error {
	if err := e.store.AcknowledgeHistory(ctx, alertID, by, time.Now().UTC()); err != nil {
		return err
	}
	e.invalidate(ctx)
	return nil
}

func (e *Engine) invalidate(ctx context.Context) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, cache.KeyActiveAlerts); err != nil {
		e.log.With("error", err).Debug("alertengine: cache invalidation failed")
	}
	if err := e.cache.Invalidate(ctx, cache.KeyDashboardStats); err != nil {
		e.log.With("error", err).Debug("alertengine: cache invalidation failed")
	}
}
