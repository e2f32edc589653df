package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwatch/monitor/internal/domain/device"
	"github.com/fleetwatch/monitor/internal/domain/telemetry"
	"github.com/fleetwatch/monitor/internal/platform/logger"
	"github.com/fleetwatch/monitor/internal/platform/metrics"
	"github.com/fleetwatch/monitor/internal/status"
)

func newTestMetrics() *metrics.Metrics {
	return metrics.NewWithRegistry(prometheus.NewRegistry())
}

type fakePinger struct {
	result telemetry.PingResult
	err    error
	calls  int
}

func (f *fakePinger) Ping(ip string) (telemetry.PingResult, error) {
	f.calls++
	r := f.result
	r.DeviceIP = ip
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	return r, f.err
}

type fakeSNMPPoller struct {
	result telemetry.SNMPPollResult
	calls  int
}

func (f *fakeSNMPPoller) Poll(dev *device.Device, cred *device.SNMPCredential, items []*device.MonitoringItem) telemetry.SNMPPollResult {
	f.calls++
	r := f.result
	r.DeviceID = dev.ID
	return r
}

func newTestScheduler(t *testing.T, reg device.Registry, p pinger, sp snmpPoller) *Scheduler {
	t.Helper()
	return New(
		Config{Tick: 10 * time.Millisecond, QueueHighWater: 2},
		reg,
		p,
		sp,
		status.NewEngine(newTestMetrics()),
		nil,
		newTestMetrics(),
		logger.NewDefault("scheduler_test"),
	)
}

func TestQueue_PushDropsOldestPingOnOverflow(t *testing.T) {
	q := newJobQueue(1)
	id1, id2, id3 := uuid.New(), uuid.New(), uuid.New()

	require.True(t, q.push(job{kind: jobPing, deviceID: id1}))
	require.True(t, q.push(job{kind: jobPing, deviceID: id2}))
	require.True(t, q.push(job{kind: jobPing, deviceID: id3}))

	assert.LessOrEqual(t, q.len(), 2)
	j, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, id2, j.deviceID, "oldest ping job should have been evicted")
}

func TestQueue_PushSNMPNeverDrops(t *testing.T) {
	q := newJobQueue(1)
	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
		q.pushSNMP(job{kind: jobSNMP, deviceID: ids[i]})
	}
	assert.Equal(t, 5, q.len())
}

func TestQueue_PopUnblocksOnCloseAndDrain(t *testing.T) {
	q := newJobQueue(10)
	q.pushSNMP(job{kind: jobSNMP, deviceID: uuid.New()})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := q.pop()
		assert.True(t, ok, "queued job should still be popped after close")
		_, ok = q.pop()
		assert.False(t, ok, "pop should unblock with false once drained and closed")
	}()

	q.closeAndDrain()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pop did not unblock after closeAndDrain")
	}
}

func TestMaybeEnqueuePing_SkipsWhenNotDue(t *testing.T) {
	reg := device.NewMemoryRegistry()
	s := newTestScheduler(t, reg, &fakePinger{}, &fakeSNMPPoller{})
	d := &device.Device{ID: uuid.New(), IP: "10.0.0.1", Enabled: true}
	now := time.Now().UTC()

	s.lastPing[d.ID] = now
	s.maybeEnqueuePing(context.Background(), d, now)
	assert.Equal(t, 0, s.queue.len(), "ping should not be enqueued before PingInterval elapses")
}

func TestMaybeEnqueuePing_EnqueuesWhenDueAndGuardsInFlight(t *testing.T) {
	reg := device.NewMemoryRegistry()
	s := newTestScheduler(t, reg, &fakePinger{}, &fakeSNMPPoller{})
	d := &device.Device{ID: uuid.New(), IP: "10.0.0.1", Enabled: true}
	now := time.Now().UTC()

	s.maybeEnqueuePing(context.Background(), d, now)
	assert.Equal(t, 1, s.queue.len())

	// A second call before the in-flight job clears must not double-enqueue.
	s.maybeEnqueuePing(context.Background(), d, now)
	assert.Equal(t, 1, s.queue.len())
}

func TestMaybeEnqueueSNMP_NoopWithNoMonitoringItems(t *testing.T) {
	reg := device.NewMemoryRegistry()
	ctx := context.Background()
	d := &device.Device{ID: uuid.New(), IP: "10.0.0.2", Enabled: true}
	require.NoError(t, reg.Create(ctx, d))

	s := newTestScheduler(t, reg, &fakePinger{}, &fakeSNMPPoller{})
	s.lastSNMP[d.ID] = time.Now().UTC().Add(-30 * time.Second)

	s.maybeEnqueueSNMP(ctx, d, time.Now().UTC())
	assert.Equal(t, 0, s.queue.len(), "a device with no monitoring items has nothing to poll")
}

func TestRunPing_TransitionHookFiresOnStatusChange(t *testing.T) {
	reg := device.NewMemoryRegistry()
	ctx := context.Background()
	d := &device.Device{ID: uuid.New(), IP: "10.0.0.3", Enabled: true}
	require.NoError(t, reg.Create(ctx, d))

	now := time.Now().UTC()
	fp := &fakePinger{result: telemetry.PingResult{Reachable: true, PacketsSent: 5, PacketsRecv: 5, Timestamp: now}}
	s := newTestScheduler(t, reg, fp, &fakeSNMPPoller{})

	var got *status.Transition
	s.OnTransition(func(tr status.Transition) { got = &tr })

	// The first observation only establishes a baseline; it never itself
	// produces a Transition.
	s.runPing(ctx, job{kind: jobPing, deviceID: d.ID, ip: d.IP})
	assert.Nil(t, got, "the first-ever observation should establish a baseline without firing a transition")

	fp.result = telemetry.PingResult{Reachable: false, PacketsSent: 5, Timestamp: now.Add(time.Second)}
	s.runPing(ctx, job{kind: jobPing, deviceID: d.ID, ip: d.IP})
	require.NotNil(t, got, "a reachability change from the baseline must fire a transition")
	assert.Equal(t, status.StatusDown, got.To)
}

func TestRunPing_DiscardsResultForDisabledDevice(t *testing.T) {
	reg := device.NewMemoryRegistry()
	ctx := context.Background()
	d := &device.Device{ID: uuid.New(), IP: "10.0.0.4", Enabled: false}
	require.NoError(t, reg.Create(ctx, d))

	fp := &fakePinger{result: telemetry.PingResult{Reachable: true}}
	s := newTestScheduler(t, reg, fp, &fakeSNMPPoller{})

	s.runPing(ctx, job{kind: jobPing, deviceID: d.ID, ip: d.IP})

	got, err := reg.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastCheck, "a disabled device must not have probe results persisted onto it")
}

func TestRunSNMP_SetsCredentialErrorWithoutTouchingStatusEngine(t *testing.T) {
	reg := device.NewMemoryRegistry()
	ctx := context.Background()
	d := &device.Device{ID: uuid.New(), IP: "10.0.0.5", Enabled: true}
	require.NoError(t, reg.Create(ctx, d))

	sp := &fakeSNMPPoller{result: telemetry.SNMPPollResult{CredentialError: true}}
	s := newTestScheduler(t, reg, &fakePinger{}, sp)

	s.runSNMP(ctx, job{kind: jobSNMP, deviceID: d.ID})

	got, err := reg.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, got.CredentialError)
	_, hasSnapshot := s.engine.Snapshot(d.ID)
	assert.False(t, hasSnapshot, "a credential failure must never create a status-engine record")
}

func TestInFlightKey_IsDistinctPerKindAndDevice(t *testing.T) {
	id := uuid.New()
	assert.NotEqual(t, inFlightKey("ping", id), inFlightKey("snmp", id))
}
