package alertengine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwatch/monitor/internal/cache"
	"github.com/fleetwatch/monitor/internal/domain/alert"
	"github.com/fleetwatch/monitor/internal/domain/device"
	"github.com/fleetwatch/monitor/internal/platform/logger"
	"github.com/fleetwatch/monitor/internal/platform/metrics"
	"github.com/fleetwatch/monitor/internal/status"
)

func newTestEngine(t *testing.T) (*Engine, alert.Store, device.Registry) {
	t.Helper()
	store := alert.NewMemoryStore()
	registry := device.NewMemoryRegistry()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e := New(store, registry, cache.NewMemoryCache(time.Minute), m, logger.NewDefault("alertengine_test"))
	return e, store, registry
}

func mustRule(t *testing.T, expr string, sev alert.Severity) *alert.Rule {
	t.Helper()
	cond, err := alert.ParseCondition(expr)
	require.NoError(t, err)
	return &alert.Rule{ID: uuid.New(), Name: expr, Expression: expr, Condition: cond, Severity: sev, Enabled: true, ScopeKind: alert.ScopeAll}
}

func TestEvaluateAll_FiresDeviceDownAndResolvesOnRecovery(t *testing.T) {
	e, store, registry := newTestEngine(t)
	ctx := context.Background()

	rule := mustRule(t, "device_down", alert.SeverityCritical)
	require.NoError(t, store.CreateRule(ctx, rule))

	down := time.Now().UTC()
	dev := &device.Device{ID: uuid.New(), IP: "10.0.1.1", Enabled: true, DownSince: &down}
	require.NoError(t, registry.Create(ctx, dev))

	require.NoError(t, e.EvaluateAll(ctx))
	open, err := store.ListOpenHistory(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, dev.ID, open[0].DeviceID)

	// Recovery: DownSince clears, the alert must auto-resolve.
	dev.DownSince = nil
	require.NoError(t, registry.Update(ctx, dev))
	require.NoError(t, e.EvaluateAll(ctx))

	open, err = store.ListOpenHistory(ctx)
	require.NoError(t, err)
	assert.Empty(t, open, "alert must auto-resolve once the device recovers")
}

func TestEvaluateAll_IsIdempotentWhileConditionHolds(t *testing.T) {
	e, store, registry := newTestEngine(t)
	ctx := context.Background()

	rule := mustRule(t, "device_down", alert.SeverityCritical)
	require.NoError(t, store.CreateRule(ctx, rule))

	down := time.Now().UTC()
	dev := &device.Device{ID: uuid.New(), IP: "10.0.1.2", Enabled: true, DownSince: &down}
	require.NoError(t, registry.Create(ctx, dev))

	require.NoError(t, e.EvaluateAll(ctx))
	require.NoError(t, e.EvaluateAll(ctx))

	open, err := store.ListOpenHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1, "repeated cycles must not re-fire an already-open alert")
}

func TestEvaluateAll_PacketLossUsesRecordedSample(t *testing.T) {
	e, store, registry := newTestEngine(t)
	ctx := context.Background()

	rule := mustRule(t, "packet_loss{pct=20}", alert.SeverityMedium)
	require.NoError(t, store.CreateRule(ctx, rule))

	dev := &device.Device{ID: uuid.New(), IP: "10.0.1.3", Enabled: true}
	require.NoError(t, registry.Create(ctx, dev))

	e.RecordSample(dev.ID, "ping_loss_pct", 45.0)
	require.NoError(t, e.EvaluateAll(ctx))

	open, err := store.ListOpenHistory(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Contains(t, open[0].ValueSnapshot, "loss=45.0")
}

func TestEvaluateAll_InterfaceOperDownIgnoresAdminDown(t *testing.T) {
	e, store, registry := newTestEngine(t)
	ctx := context.Background()

	rule := mustRule(t, "interface_oper_down{name_pattern=.*}", alert.SeverityMedium)
	require.NoError(t, store.CreateRule(ctx, rule))

	dev := &device.Device{ID: uuid.New(), IP: "10.0.1.4", Enabled: true}
	require.NoError(t, registry.Create(ctx, dev))
	require.NoError(t, registry.UpsertInterfaces(ctx, dev.ID, []*device.Interface{
		{ID: uuid.New(), DeviceID: dev.ID, IfName: "Gi0/1", OperStatus: "down", AdminStatus: "down"},
	}))

	require.NoError(t, e.EvaluateAll(ctx))
	open, err := store.ListOpenHistory(ctx)
	require.NoError(t, err)
	assert.Empty(t, open, "an administratively shut interface is not a fault")
}

func TestEvaluateAll_ISPLinkDownMatchesProviderAndClass(t *testing.T) {
	e, store, registry := newTestEngine(t)
	ctx := context.Background()

	rule := mustRule(t, "isp_link_down{provider=Comcast}", alert.SeverityCritical)
	require.NoError(t, store.CreateRule(ctx, rule))

	dev := &device.Device{ID: uuid.New(), IP: "10.0.1.5", Enabled: true}
	require.NoError(t, registry.Create(ctx, dev))
	require.NoError(t, registry.UpsertInterfaces(ctx, dev.ID, []*device.Interface{
		{ID: uuid.New(), DeviceID: dev.ID, IfName: "Gi0/2", IfAlias: "to Comcast ISP", OperStatus: "down",
			Classification: device.ClassISP, ISPProvider: "Comcast"},
	}))

	require.NoError(t, e.EvaluateAll(ctx))
	open, err := store.ListOpenHistory(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Comcast", open[0].ISPProvider)
}

func TestHandleTransition_FastPathFiresWithoutWaitingForSweep(t *testing.T) {
	e, store, registry := newTestEngine(t)
	ctx := context.Background()

	rule := mustRule(t, "device_down", alert.SeverityCritical)
	require.NoError(t, store.CreateRule(ctx, rule))

	down := time.Now().UTC()
	dev := &device.Device{ID: uuid.New(), IP: "10.0.1.6", Enabled: true, DownSince: &down}
	require.NoError(t, registry.Create(ctx, dev))

	e.HandleTransition(ctx, status.Transition{DeviceID: dev.ID, From: status.StatusUP, To: status.StatusDown, Timestamp: down})

	open, err := store.ListOpenHistory(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
}

func TestAcknowledge_SetsAcknowledgedFields(t *testing.T) {
	e, store, registry := newTestEngine(t)
	ctx := context.Background()

	rule := mustRule(t, "device_down", alert.SeverityCritical)
	require.NoError(t, store.CreateRule(ctx, rule))
	down := time.Now().UTC()
	dev := &device.Device{ID: uuid.New(), IP: "10.0.1.7", Enabled: true, DownSince: &down}
	require.NoError(t, registry.Create(ctx, dev))
	require.NoError(t, e.EvaluateAll(ctx))

	open, err := store.ListOpenHistory(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, e.Acknowledge(ctx, open[0].ID, "noc-oncall"))

	open, err = store.ListOpenHistory(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "noc-oncall", open[0].AcknowledgedBy)
}

func TestRuleAppliesToDevice_ScopesFilterCorrectly(t *testing.T) {
	branchID := uuid.New()
	rule := &alert.Rule{ScopeKind: alert.ScopeBranch, ScopeValue: branchID.String()}
	inScope := &device.Device{BranchID: &branchID}
	outOfScope := &device.Device{BranchID: nil}
	assert.True(t, ruleAppliesToDevice(rule, inScope))
	assert.False(t, ruleAppliesToDevice(rule, outOfScope))

	tagRule := &alert.Rule{ScopeKind: alert.ScopeDeviceTag, ScopeValue: "router"}
	assert.True(t, ruleAppliesToDevice(tagRule, &device.Device{DeviceType: "router"}))
	assert.False(t, ruleAppliesToDevice(tagRule, &device.Device{DeviceType: "switch"}))
}
