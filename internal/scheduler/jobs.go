package scheduler

import (
	"context"
	"time"

	"github.com/fleetwatch/monitor/internal/domain/device"
	platformerrors "github.com/fleetwatch/monitor/internal/platform/errors"
	"github.com/fleetwatch/monitor/internal/status"
)

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		j, ok := s.queue.pop()
		if !ok {
			return
		}
		s.execute(ctx, j)
	}
}

// execute runs one job. A worker crash (panic) is contained to its own
// job and never brings down the pool (spec §4.2 "a worker crash is fatal
// for its job only").
func (s *Scheduler) execute(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.With("device_id", j.deviceID).With("panic", r).Error("scheduler: job panic recovered")
		}
	}()

	switch j.kind {
	case jobPing:
		s.runPing(ctx, j)
	case jobSNMP:
		s.runSNMP(ctx, j)
	}
}

func (s *Scheduler) runPing(_ context.Context, j job) {
	start := time.Now()
	result, pingErr := s.prober.Ping(j.ip)
	if s.metrics != nil {
		s.metrics.ProbeDuration.WithLabelValues("ping").Observe(time.Since(start).Seconds())
	}
	if pingErr != nil {
		s.log.With("device_id", j.deviceID).With("error", pingErr).Debug("ping probe unavailable")
	}
	id := j.deviceID
	result.DeviceID = &id

	s.submitPingSample(j.deviceID, j.ip, result)

	bg := context.Background()
	d, err := s.registry.Get(bg, j.deviceID)
	if err != nil || d == nil || !d.Enabled {
		// The device was disabled or removed while this job was in flight
		// (spec §4.2): drop the result rather than applying a transition,
		// persisting state, or firing alerts/broadcasts for it.
		s.mu.Lock()
		s.lastPing[j.deviceID] = result.Timestamp
		delete(s.inFlight, inFlightKey("ping", j.deviceID))
		s.mu.Unlock()
		return
	}

	obs := status.Observation{
		Reachable:   result.Reachable,
		Timestamp:   result.Timestamp,
		RTTMillis:   result.AvgRTTMillis,
		Unavailable: result.Unavailable,
	}
	transition, applyErr := s.engine.Apply(j.deviceID, obs)
	if applyErr != nil && applyErr != status.ErrOutOfOrderDiscarded {
		s.log.With("device_id", j.deviceID).With("error", applyErr).Warn("status engine rejected observation")
	}

	if snap, ok := s.engine.Snapshot(j.deviceID); ok {
		d.DownSince = snap.DownSince
		d.IsFlapping = snap.IsFlapping
		d.FlapCount = snap.FlapCount
		d.FlappingSince = snap.FlappingSince
		lc := result.Timestamp
		d.LastCheck = &lc
		d.LastRTTMillis = result.AvgRTTMillis
		if err := s.registry.ApplyProbeResult(bg, j.deviceID, d); err != nil {
			s.log.With("device_id", j.deviceID).With("error", err).Warn("failed to persist probe result")
		}
	}

	if transition != nil && s.onTransition != nil {
		s.onTransition(*transition)
	}

	s.mu.Lock()
	s.lastPing[j.deviceID] = result.Timestamp
	delete(s.inFlight, inFlightKey("ping", j.deviceID))
	s.mu.Unlock()
}

func (s *Scheduler) runSNMP(ctx context.Context, j job) {
	d, err := s.registry.Get(ctx, j.deviceID)
	if err != nil || d == nil {
		s.mu.Lock()
		delete(s.inFlight, inFlightKey("snmp", j.deviceID))
		s.mu.Unlock()
		return
	}

	cred, err := s.registry.CredentialForDevice(ctx, j.deviceID)
	if err != nil {
		s.log.With("device_id", j.deviceID).With("error", err).Warn("failed to load snmp credential")
	}

	start := time.Now()
	result := s.poller.Poll(d, cred, j.items)
	if s.metrics != nil {
		s.metrics.ProbeDuration.WithLabelValues("snmp").Observe(time.Since(start).Seconds())
	}
	for name, itemErr := range result.ItemErrors {
		s.log.With("device_id", j.deviceID).With("item", name).With("error", itemErr).Warn("snmp item poll failed")
		if s.metrics != nil {
			s.metrics.SNMPPollErrors.WithLabelValues(kindLabel(itemErr)).Inc()
		}
	}

	s.submitSNMPSamples(d, result)

	// Re-check enabled state at completion, not just at dispatch (spec
	// §4.2): the device may have been disabled while this poll was in
	// flight.
	bg := context.Background()
	if d2, err := s.registry.Get(bg, j.deviceID); err == nil && d2 != nil && d2.Enabled {
		d2.CredentialError = result.CredentialError
		if err := s.registry.ApplyProbeResult(bg, j.deviceID, d2); err != nil {
			s.log.With("device_id", j.deviceID).With("error", err).Warn("failed to persist snmp probe result")
		}
		if len(result.Interfaces) > 0 {
			ifaces := make([]*device.Interface, 0, len(result.Interfaces))
			for _, snap := range result.Interfaces {
				class, provider := device.Classify(snap.IfName, snap.IfAlias)
				ifaces = append(ifaces, &device.Interface{
					DeviceID:       j.deviceID,
					IfIndex:        snap.IfIndex,
					IfName:         snap.IfName,
					IfAlias:        snap.IfAlias,
					IfType:         snap.IfType,
					AdminStatus:    snap.AdminStatus,
					OperStatus:     snap.OperStatus,
					Speed:          snap.Speed,
					MTU:            snap.MTU,
					Classification: class,
					ISPProvider:    provider,
					IsCritical:     class == device.ClassISP,
				})
			}
			if err := s.registry.UpsertInterfaces(bg, j.deviceID, ifaces); err != nil {
				s.log.With("device_id", j.deviceID).With("error", err).Warn("failed to persist interfaces")
			}
		}
	}

	s.mu.Lock()
	s.lastSNMP[j.deviceID] = time.Now().UTC()
	delete(s.inFlight, inFlightKey("snmp", j.deviceID))
	s.mu.Unlock()
}

func kindLabel(err error) string {
	var se *platformerrors.ServiceError
	if platformerrors.As(err, &se) {
		return string(se.Kind)
	}
	return "unknown"
}
