// Package alertengine implements C7: the alert evaluator (spec §4.7). Rules
// are matched against live device/interface state and the most recent
// probe metrics, deduplicated by fingerprint, and automatically resolved
// once their condition stops holding.
package alertengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetwatch/monitor/internal/cache"
	"github.com/fleetwatch/monitor/internal/domain/alert"
	"github.com/fleetwatch/monitor/internal/domain/device"
	"github.com/fleetwatch/monitor/internal/platform/logger"
	"github.com/fleetwatch/monitor/internal/platform/metrics"
	"github.com/fleetwatch/monitor/internal/status"
)

// deviceMetrics is the most recently observed sample set for one device,
// fed by the scheduler's OnSample hook (spec §4.5: telemetry storage is
// write-only, so threshold rules read from here rather than round-tripping
// through the external backend).
type deviceMetrics struct {
	lossPct float64
	rttMs   *float64
	snmp    map[string]float64
}

// Engine evaluates alert rules against device/interface state and recent
// metrics, maintaining at most one open History row per rule fingerprint.
type Engine struct {
	store    alert.Store
	registry device.Registry
	cache    cache.Cache
	metrics  *metrics.Metrics
	log      *logger.Logger

	mu     sync.RWMutex
	latest map[uuid.UUID]*deviceMetrics

	onFired    func(*alert.History)
	onResolved func(*alert.History)
}

// New constructs an Engine. cache may be nil, in which case cache
// invalidation is skipped (e.g. in tests).
func New(store alert.Store, registry device.Registry, c cache.Cache, m *metrics.Metrics, log *logger.Logger) *Engine {
	return &Engine{
		store:    store,
		registry: registry,
		cache:    c,
		metrics:  m,
		log:      log,
		latest:   make(map[uuid.UUID]*deviceMetrics),
	}
}

// OnFired registers a hook invoked whenever a new alert opens, intended to
// be wired to a broadcaster so connected clients see alert_fired pushes.
func (e *Engine) OnFired(fn func(*alert.History)) {
	e.onFired = fn
}

// OnResolved registers a hook invoked whenever an open alert auto-resolves.
func (e *Engine) OnResolved(fn func(*alert.History)) {
	e.onResolved = fn
}

// RecordSample updates the latest-metrics snapshot for deviceID. Intended
// to be wired directly to scheduler.Scheduler.OnSample.
func (e *Engine) RecordSample(deviceID uuid.UUID, metric string, value float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	dm, ok := e.latest[deviceID]
	if !ok {
		dm = &deviceMetrics{snmp: make(map[string]float64)}
		e.latest[deviceID] = dm
	}
	switch metric {
	case "ping_loss_pct":
		dm.lossPct = value
	case "ping_rtt_avg_ms":
		v := value
		dm.rttMs = &v
	default:
		dm.snmp[metric] = value
	}
}

func (e *Engine) metricsFor(deviceID uuid.UUID) deviceMetrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	dm, ok := e.latest[deviceID]
	if !ok {
		return deviceMetrics{}
	}
	return *dm
}

// openIndex is a batch-fetched snapshot of every unresolved History row,
// keyed by fingerprint, so one evaluation cycle touches the store exactly
// once to resolve dedup state instead of once per rule per device (spec
// §4.7 "the engine MUST query all needed state in a single batch per
// cycle").
type openIndex map[alert.Fingerprint]*alert.History

func (e *Engine) buildOpenIndex(ctx context.Context) (openIndex, error) {
	open, err := e.store.ListOpenHistory(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(openIndex, len(open))
	for _, h := range open {
		idx[h.Fingerprint()] = h
	}
	return idx, nil
}

// HandleTransition reacts immediately to a status-engine transition rather
// than waiting for the next full sweep. Intended to be wired to
// scheduler.Scheduler.OnTransition.
func (e *Engine) HandleTransition(ctx context.Context, tr status.Transition) {
	dev, err := e.registry.Get(ctx, tr.DeviceID)
	if err != nil || dev == nil {
		return
	}
	rules, err := e.store.ListEnabledRules(ctx)
	if err != nil {
		e.log.With("error", err).Warn("alertengine: failed to list rules for transition handling")
		return
	}
	idx, err := e.buildOpenIndex(ctx)
	if err != nil {
		e.log.With("error", err).Warn("alertengine: failed to batch-fetch open history for transition handling")
		return
	}
	for _, rule := range rules {
		if !deviceScoped(rule.Condition.Kind) || !ruleAppliesToDevice(rule, dev) {
			continue
		}
		e.syncDeviceRule(ctx, rule, dev, idx)
	}
}

// EvaluateAll runs one full evaluation cycle: every enabled rule against
// every enabled device (and, for interface-scoped rules, every interface).
// Run on a timer (spec config AlertEvalInterval) so duration-based and
// interface-level conditions — which have no single triggering event — are
// still caught. All open-alert state needed for dedup is fetched once up
// front (spec §4.7); no rule/device iteration below issues its own store
// lookup.
func (e *Engine) EvaluateAll(ctx context.Context) error {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.AlertCycleDuration.Observe(time.Since(start).Seconds())
		}
	}()

	rules, err := e.store.ListEnabledRules(ctx)
	if err != nil {
		return fmt.Errorf("list enabled rules: %w", err)
	}
	devices, err := e.registry.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list enabled devices: %w", err)
	}
	idx, err := e.buildOpenIndex(ctx)
	if err != nil {
		return fmt.Errorf("batch-fetch open history: %w", err)
	}

	for _, rule := range rules {
		for _, dev := range devices {
			if !ruleAppliesToDevice(rule, dev) {
				continue
			}
			if deviceScoped(rule.Condition.Kind) {
				e.syncDeviceRule(ctx, rule, dev, idx)
				continue
			}
			ifaces, err := e.registry.InterfacesForDevice(ctx, dev.ID)
			if err != nil {
				e.log.With("device_id", dev.ID).With("error", err).Warn("alertengine: failed to list interfaces")
				continue
			}
			for _, iface := range ifaces {
				e.syncInterfaceRule(ctx, rule, dev, iface, idx)
			}
		}
	}

	if e.metrics != nil {
		e.refreshOpenGaugeFrom(idx)
	}
	return nil
}

func (e *Engine) refreshOpenGaugeFrom(idx openIndex) {
	counts := map[alert.Severity]int{}
	for _, h := range idx {
		counts[h.Severity]++
	}
	for _, sev := range []alert.Severity{alert.SeverityCritical, alert.SeverityHigh, alert.SeverityMedium, alert.SeverityLow, alert.SeverityInfo} {
		e.metrics.AlertsOpen.WithLabelValues(string(sev)).Set(float64(counts[sev]))
	}
}

func deviceScoped(kind alert.ConditionKind) bool {
	switch kind {
	case alert.ConditionInterfaceOperDown, alert.ConditionISPLinkDown:
		return false
	default:
		return true
	}
}

func ruleAppliesToDevice(rule *alert.Rule, dev *device.Device) bool {
	switch rule.ScopeKind {
	case alert.ScopeAll, "":
		return true
	case alert.ScopeBranch:
		return dev.BranchID != nil && dev.BranchID.String() == rule.ScopeValue
	case alert.ScopeDeviceTag:
		return dev.DeviceType == rule.ScopeValue
	default:
		return false
	}
}
