// Package status implements C6: the per-device UP/DOWN/FLAPPING state
// machine (spec §4.6). Every device's state is serialized through its own
// record lock so concurrent probe completions for different devices never
// contend, while same-device completions are strictly ordered.
package status

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetwatch/monitor/internal/platform/metrics"
)

// Status is the closed set of externally-observable device states.
type Status string

const (
	StatusUP       Status = "up"
	StatusDown     Status = "down"
	StatusFlapping Status = "flapping"
)

const (
	flapThreshold = 3
	flapWindow    = 5 * time.Minute
	flapCooldown  = 10 * time.Minute
)

// Observation is one probe outcome fed into the engine.
type Observation struct {
	Reachable   bool
	Timestamp   time.Time
	RTTMillis   *float64
	Unavailable bool
}

// Transition is emitted whenever a device's externally-observable state
// changes. Callers (the alert engine, the broadcaster, cache invalidation)
// act on this, not on every Observation.
type Transition struct {
	DeviceID        uuid.UUID
	From            Status
	To              Status
	Timestamp       time.Time
	RTTMillis       *float64
	EnteredFlapping bool
	ExitedFlapping  bool
}

// ErrOutOfOrderDiscarded is returned when an observation arrives with an
// older timestamp than one already committed and contradicts it (spec §4.6
// tie-break rules). The caller should log and move on; it is not a fault.
var ErrOutOfOrderDiscarded = errors.New("observation discarded: out of order and contradicts a newer committed observation")

// Snapshot is a read-only view of one device's current engine state, used
// by the HTTP API and registry sync.
type Snapshot struct {
	Current       Status
	DownSince     *time.Time
	IsFlapping    bool
	FlapCount     int
	FlappingSince *time.Time
	LastCheck     time.Time
	LastRTTMillis *float64
}

type record struct {
	mu sync.Mutex

	initialized bool
	underlying  Status // UP or DOWN only, never FLAPPING
	current     Status // what's reported externally; may be FLAPPING

	downSince     *time.Time
	isFlapping    bool
	flapCount     int
	flappingSince *time.Time

	lastEventTime      time.Time
	lastReachable      bool
	lastTransitionTime time.Time
	transitionWindow   []time.Time
}

// Engine is the status-engine runtime: one record per device, serialized
// independently.
type Engine struct {
	mu      sync.Mutex
	records map[uuid.UUID]*record
	metrics *metrics.Metrics
}

// NewEngine constructs an empty Engine.
func NewEngine(m *metrics.Metrics) *Engine {
	return &Engine{records: make(map[uuid.UUID]*record), metrics: m}
}

func (e *Engine) recordFor(id uuid.UUID) *record {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.records[id]
	if !ok {
		r = &record{}
		e.records[id] = r
	}
	return r
}

// Apply feeds one probe observation through the state machine for a single
// device. It returns a non-nil Transition only when the device's
// externally-observable state actually changed; a nil Transition with a
// nil error means the observation was accepted but didn't change anything
// (first-ever baseline, a repeat of the current state, or a harmless
// out-of-order duplicate).
func (e *Engine) Apply(deviceID uuid.UUID, obs Observation) (*Transition, error) {
	if obs.Unavailable {
		// Spec §4.6: "a single unavailable is treated as no observation";
		// it neither confirms UP nor DOWN and never reorders history.
		return nil, nil
	}

	r := e.recordFor(deviceID)
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		e.applyInitial(r, obs)
		return nil, nil
	}

	if obs.Timestamp.Before(r.lastEventTime) {
		if obs.Reachable != r.lastReachable {
			return nil, ErrOutOfOrderDiscarded
		}
		// Agrees with the newer observation already committed: harmless.
		return nil, nil
	}

	from := r.current
	r.lastEventTime = obs.Timestamp
	r.lastReachable = obs.Reachable

	newUnderlying := underlyingFor(obs.Reachable)
	if newUnderlying == r.underlying {
		return nil, nil
	}

	r.underlying = newUnderlying
	r.lastTransitionTime = obs.Timestamp
	r.transitionWindow = pruneWindow(append(r.transitionWindow, obs.Timestamp), obs.Timestamp)

	if newUnderlying == StatusDown {
		t := obs.Timestamp
		r.downSince = &t
	} else {
		r.downSince = nil
	}

	var transition *Transition
	if r.current != StatusFlapping {
		r.current = newUnderlying
		transition = &Transition{
			DeviceID: deviceID, From: from, To: r.current,
			Timestamp: obs.Timestamp, RTTMillis: obs.RTTMillis,
		}
	}

	if !r.isFlapping && len(r.transitionWindow) >= flapThreshold {
		r.isFlapping = true
		fs := obs.Timestamp
		r.flappingSince = &fs
		r.flapCount++
		r.current = StatusFlapping
		transition = &Transition{
			DeviceID: deviceID, From: from, To: StatusFlapping,
			Timestamp: obs.Timestamp, RTTMillis: obs.RTTMillis, EnteredFlapping: true,
		}
	}

	if transition != nil && e.metrics != nil {
		e.metrics.DeviceStateTransitions.WithLabelValues(string(transition.To)).Inc()
	}
	return transition, nil
}

func (e *Engine) applyInitial(r *record, obs Observation) {
	r.initialized = true
	r.lastEventTime = obs.Timestamp
	r.lastReachable = obs.Reachable
	r.lastTransitionTime = obs.Timestamp
	r.underlying = underlyingFor(obs.Reachable)
	r.current = r.underlying
	if r.underlying == StatusDown {
		t := obs.Timestamp
		r.downSince = &t
	}
}

func underlyingFor(reachable bool) Status {
	if reachable {
		return StatusUP
	}
	return StatusDown
}

func pruneWindow(ts []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-flapWindow)
	out := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// SweepFlapping clears FLAPPING for any device that has had zero
// transitions in the last 10 minutes as of now, reverting it to its
// current underlying stable state (spec §4.6 FLAPPING exit row). Callers
// run this on a timer; it is not triggered by Apply because the exit
// condition is an absence of events, not an event itself.
func (e *Engine) SweepFlapping(now time.Time) []Transition {
	e.mu.Lock()
	ids := make([]uuid.UUID, 0, len(e.records))
	recs := make([]*record, 0, len(e.records))
	for id, r := range e.records {
		ids = append(ids, id)
		recs = append(recs, r)
	}
	e.mu.Unlock()

	var out []Transition
	for i, r := range recs {
		r.mu.Lock()
		if r.isFlapping && now.Sub(r.lastTransitionTime) >= flapCooldown {
			from := r.current
			r.isFlapping = false
			r.flappingSince = nil
			r.current = r.underlying
			out = append(out, Transition{
				DeviceID: ids[i], From: from, To: r.current,
				Timestamp: now, ExitedFlapping: true,
			})
			if e.metrics != nil {
				e.metrics.DeviceStateTransitions.WithLabelValues(string(r.current)).Inc()
			}
		}
		r.mu.Unlock()
	}
	return out
}

// Snapshot returns the current view of one device, or ok=false if the
// engine has never observed it.
func (e *Engine) Snapshot(deviceID uuid.UUID) (Snapshot, bool) {
	e.mu.Lock()
	r, ok := e.records[deviceID]
	e.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Current:       r.current,
		DownSince:     r.downSince,
		IsFlapping:    r.isFlapping,
		FlapCount:     r.flapCount,
		FlappingSince: r.flappingSince,
		LastCheck:     r.lastEventTime,
		LastRTTMillis: nil,
	}, true
}
