// Package scheduler implements C3: the probe scheduler (spec §4.2). It
// drives periodic ICMP and SNMP work at configured intervals through a
// bounded worker pool, using a single coarse tick (spec §9 design note)
// rather than a timer per device.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetwatch/monitor/internal/domain/device"
	"github.com/fleetwatch/monitor/internal/domain/telemetry"
	"github.com/fleetwatch/monitor/internal/platform/logger"
	"github.com/fleetwatch/monitor/internal/platform/metrics"
	"github.com/fleetwatch/monitor/internal/status"
	"github.com/fleetwatch/monitor/internal/telemetrystore"
)

// pinger is satisfied by *prober.Prober. Scheduling depends on the
// interface, not the concrete ICMP implementation, so dispatch/backpressure
// logic can be tested without opening raw sockets.
type pinger interface {
	Ping(ip string) (telemetry.PingResult, error)
}

// snmpPoller is satisfied by *snmp.Poller.
type snmpPoller interface {
	Poll(dev *device.Device, cred *device.SNMPCredential, items []*device.MonitoringItem) telemetry.SNMPPollResult
}

// Config controls dispatch cadence, concurrency, and backpressure.
type Config struct {
	Tick            time.Duration
	WorkerPoolSize  int
	PingInterval    time.Duration
	ICMPTimeout     time.Duration
	ICMPPacketCount int
	SNMPTimeout     time.Duration
	QueueHighWater  int
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.WorkerPoolSize <= 0 {
		c.WorkerPoolSize = 50
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.ICMPTimeout <= 0 {
		c.ICMPTimeout = time.Second
	}
	if c.SNMPTimeout <= 0 {
		c.SNMPTimeout = 2 * time.Second
	}
	if c.QueueHighWater <= 0 {
		c.QueueHighWater = 500
	}
	if c.ICMPPacketCount <= 0 {
		c.ICMPPacketCount = 5
	}
	return c
}

// Scheduler dispatches per-device ping and SNMP jobs onto a bounded worker
// pool, never holding a worker while waiting on unbounded resources.
type Scheduler struct {
	cfg       Config
	registry  device.Registry
	prober    pinger
	poller    snmpPoller
	engine    *status.Engine
	telemetry *telemetrystore.Client
	metrics   *metrics.Metrics
	log       *logger.Logger

	queue *jobQueue

	mu       sync.Mutex
	inFlight map[string]bool
	lastPing map[uuid.UUID]time.Time
	lastSNMP map[uuid.UUID]time.Time

	onTransition func(status.Transition)
	onSample     func(deviceID uuid.UUID, metric string, value float64)

	wg sync.WaitGroup
}

// QueueDepth reports the current number of queued jobs awaiting a worker,
// used by the health check to detect a backlog building up (spec §4.10).
func (s *Scheduler) QueueDepth() int {
	return s.queue.len()
}

// OnTransition registers a hook invoked synchronously whenever a ping job
// produces a status-engine transition. The alert engine, cache invalidator,
// and broadcaster subscribe through this single point (spec §9 "cache
// invalidation... explicit invalidation tokens produced by writers").
func (s *Scheduler) OnTransition(fn func(status.Transition)) {
	s.onTransition = fn
}

// OnSample registers a hook invoked synchronously for every normalized
// ping/SNMP metric value as it's produced, independent of telemetry
// delivery. The alert engine's threshold conditions (high_latency,
// packet_loss, metric_threshold) consume this directly rather than reading
// back from the external telemetry store, which is write-only (spec §4.5).
func (s *Scheduler) OnSample(fn func(deviceID uuid.UUID, metric string, value float64)) {
	s.onSample = fn
}

// New constructs a Scheduler. Collaborators are injected so ping/SNMP
// execution, status tracking, and telemetry submission stay independently
// testable.
func New(
	cfg Config,
	registry device.Registry,
	prb pinger,
	poller snmpPoller,
	engine *status.Engine,
	telemetry *telemetrystore.Client,
	m *metrics.Metrics,
	log *logger.Logger,
) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		cfg:       cfg,
		registry:  registry,
		prober:    prb,
		poller:    poller,
		engine:    engine,
		telemetry: telemetry,
		metrics:   m,
		log:       log,
		queue:     newJobQueue(cfg.QueueHighWater),
		inFlight:  make(map[string]bool),
		lastPing:  make(map[uuid.UUID]time.Time),
		lastSNMP:  make(map[uuid.UUID]time.Time),
	}
}

// Run starts the dispatcher and worker pool; it blocks until ctx is
// cancelled, then waits for in-flight jobs to drain (spec §4.2
// "in-flight jobs for that device are allowed to complete").
func (s *Scheduler) Run(ctx context.Context) {
	for i := 0; i < s.cfg.WorkerPoolSize; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	s.dispatchLoop(ctx)
	s.queue.closeAndDrain()
	s.wg.Wait()
}

func (s *Scheduler) dispatchLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context) {
	devices, err := s.registry.ListEnabled(ctx)
	if err != nil {
		s.log.With("error", err).Warn("scheduler: failed to list enabled devices")
		return
	}

	now := time.Now().UTC()
	for _, d := range devices {
		s.maybeEnqueuePing(ctx, d, now)
		s.maybeEnqueueSNMP(ctx, d, now)
	}
	if s.metrics != nil {
		s.metrics.ProbeJobsQueued.Set(float64(s.queue.len()))
	}
}

func (s *Scheduler) maybeEnqueuePing(ctx context.Context, d *device.Device, now time.Time) {
	key := inFlightKey("ping", d.ID)

	s.mu.Lock()
	due := now.Sub(s.lastPing[d.ID]) >= s.cfg.PingInterval
	busy := s.inFlight[key]
	if due && !busy {
		s.inFlight[key] = true
	}
	s.mu.Unlock()

	if !due || busy {
		return
	}

	if !s.queue.push(job{kind: jobPing, deviceID: d.ID, ip: d.IP, enqueuedAt: now}) {
		s.clearInFlight(key)
		if s.metrics != nil {
			s.metrics.ProbeJobsDropped.WithLabelValues("ping").Inc()
		}
	}
}

func (s *Scheduler) maybeEnqueueSNMP(ctx context.Context, d *device.Device, now time.Time) {
	items, err := s.registry.ItemsForDevice(ctx, d.ID)
	if err != nil || len(items) == 0 {
		return
	}

	due := make([]*device.MonitoringItem, 0, len(items))
	for _, it := range items {
		if !it.Enabled {
			continue
		}
		interval := time.Duration(it.IntervalSeconds) * time.Second
		if interval <= 0 {
			interval = 30 * time.Second
		}
		if now.Sub(s.lastSNMP[d.ID]) >= interval {
			due = append(due, it)
		}
	}
	if len(due) == 0 {
		return
	}

	key := inFlightKey("snmp", d.ID)
	s.mu.Lock()
	busy := s.inFlight[key]
	if !busy {
		s.inFlight[key] = true
	}
	s.mu.Unlock()
	if busy {
		return
	}

	// SNMP polls are never dropped for backpressure (spec §4.2): pushSNMP
	// enqueues even past the high-water mark rather than discarding a
	// requested poll.
	s.queue.pushSNMP(job{kind: jobSNMP, deviceID: d.ID, items: due, enqueuedAt: now})
}

func (s *Scheduler) clearInFlight(key string) {
	s.mu.Lock()
	delete(s.inFlight, key)
	s.mu.Unlock()
}

func inFlightKey(kind string, id uuid.UUID) string {
	return kind + ":" + id.String()
}
