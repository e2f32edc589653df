package status

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func mustApply(t *testing.T, e *Engine, id uuid.UUID, reachable bool, ts time.Time) *Transition {
	t.Helper()
	tr, err := e.Apply(id, Observation{Reachable: reachable, Timestamp: ts})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tr
}

func TestEngine_FirstProbeEstablishesBaselineWithoutTransition(t *testing.T) {
	e := NewEngine(nil)
	id := uuid.New()
	base := time.Now().UTC()

	tr := mustApply(t, e, id, true, base)
	if tr != nil {
		t.Fatalf("expected no transition on first-ever probe, got %+v", tr)
	}
	snap, ok := e.Snapshot(id)
	if !ok || snap.Current != StatusUP {
		t.Fatalf("expected baseline UP, got %+v ok=%v", snap, ok)
	}
}

func TestEngine_DownDetection(t *testing.T) {
	e := NewEngine(nil)
	id := uuid.New()
	base := time.Now().UTC()

	mustApply(t, e, id, true, base)
	tr := mustApply(t, e, id, false, base.Add(time.Second))
	if tr == nil || tr.To != StatusDown || tr.From != StatusUP {
		t.Fatalf("expected UP->DOWN transition, got %+v", tr)
	}

	snap, _ := e.Snapshot(id)
	if snap.DownSince == nil || !snap.DownSince.Equal(base.Add(time.Second)) {
		t.Fatalf("expected down_since set to event timestamp, got %+v", snap.DownSince)
	}
}

func TestEngine_Recovery(t *testing.T) {
	e := NewEngine(nil)
	id := uuid.New()
	base := time.Now().UTC()

	mustApply(t, e, id, true, base)
	mustApply(t, e, id, false, base.Add(time.Second))
	tr := mustApply(t, e, id, true, base.Add(200*time.Second))
	if tr == nil || tr.From != StatusDown || tr.To != StatusUP {
		t.Fatalf("expected DOWN->UP transition, got %+v", tr)
	}
	snap, _ := e.Snapshot(id)
	if snap.DownSince != nil {
		t.Fatalf("expected down_since cleared on recovery, got %v", snap.DownSince)
	}
}

// TestEngine_FlappingExactlyOnThirdTransition pins spec §8: "Exactly at the
// flapping threshold (3 transitions in 5 minutes) the device transitions to
// FLAPPING on the 3rd event, not the 2nd."
func TestEngine_FlappingExactlyOnThirdTransition(t *testing.T) {
	e := NewEngine(nil)
	id := uuid.New()
	base := time.Now().UTC()

	mustApply(t, e, id, true, base) // baseline UP

	tr1 := mustApply(t, e, id, false, base.Add(20*time.Second)) // transition 1
	if tr1 == nil || tr1.To != StatusDown {
		t.Fatalf("expected toggle 1 to DOWN, got %+v", tr1)
	}

	tr2 := mustApply(t, e, id, true, base.Add(40*time.Second)) // transition 2
	if tr2 == nil || tr2.To != StatusUP {
		t.Fatalf("expected toggle 2 to UP, got %+v", tr2)
	}

	tr3 := mustApply(t, e, id, false, base.Add(60*time.Second)) // transition 3 -> FLAPPING
	if tr3 == nil || !tr3.EnteredFlapping || tr3.To != StatusFlapping {
		t.Fatalf("expected 3rd transition to enter FLAPPING, got %+v", tr3)
	}

	snap, _ := e.Snapshot(id)
	if !snap.IsFlapping || snap.FlapCount != 1 {
		t.Fatalf("expected is_flapping=true, flap_count=1, got %+v", snap)
	}
	if snap.DownSince == nil {
		t.Fatalf("expected down_since set: last event was unreachable while flapping")
	}
}

func TestEngine_FlappingExitAfterCooldownWithNoTransitions(t *testing.T) {
	e := NewEngine(nil)
	id := uuid.New()
	base := time.Now().UTC()

	mustApply(t, e, id, true, base)
	mustApply(t, e, id, false, base.Add(20*time.Second))
	mustApply(t, e, id, true, base.Add(40*time.Second))
	mustApply(t, e, id, false, base.Add(60*time.Second)) // enters FLAPPING, underlying=DOWN

	exits := e.SweepFlapping(base.Add(60*time.Second + 10*time.Minute))
	if len(exits) != 1 || !exits[0].ExitedFlapping {
		t.Fatalf("expected exactly one flapping-exit transition, got %+v", exits)
	}
	if exits[0].To != StatusDown {
		t.Fatalf("expected exit to revert to underlying DOWN, got %v", exits[0].To)
	}

	snap, _ := e.Snapshot(id)
	if snap.IsFlapping {
		t.Fatalf("expected is_flapping cleared after cooldown sweep")
	}
}

func TestEngine_SweepFlappingNoOpBeforeCooldownElapses(t *testing.T) {
	e := NewEngine(nil)
	id := uuid.New()
	base := time.Now().UTC()

	mustApply(t, e, id, true, base)
	mustApply(t, e, id, false, base.Add(20*time.Second))
	mustApply(t, e, id, true, base.Add(40*time.Second))
	mustApply(t, e, id, false, base.Add(60*time.Second))

	exits := e.SweepFlapping(base.Add(60*time.Second + 5*time.Minute))
	if len(exits) != 0 {
		t.Fatalf("expected no exit before 10 minute cooldown elapses, got %+v", exits)
	}
}

func TestEngine_OutOfOrderContradictingObservationIsDiscarded(t *testing.T) {
	e := NewEngine(nil)
	id := uuid.New()
	base := time.Now().UTC()

	mustApply(t, e, id, true, base)
	mustApply(t, e, id, false, base.Add(10*time.Second))

	_, err := e.Apply(id, Observation{Reachable: true, Timestamp: base.Add(5 * time.Second)})
	if err != ErrOutOfOrderDiscarded {
		t.Fatalf("expected ErrOutOfOrderDiscarded, got %v", err)
	}

	snap, _ := e.Snapshot(id)
	if snap.Current != StatusDown {
		t.Fatalf("expected committed DOWN state to survive the discarded stale observation, got %v", snap.Current)
	}
}

func TestEngine_OutOfOrderAgreeingObservationIsHarmlessNoOp(t *testing.T) {
	e := NewEngine(nil)
	id := uuid.New()
	base := time.Now().UTC()

	mustApply(t, e, id, true, base)
	mustApply(t, e, id, false, base.Add(10*time.Second))

	tr, err := e.Apply(id, Observation{Reachable: false, Timestamp: base.Add(5 * time.Second)})
	if err != nil || tr != nil {
		t.Fatalf("expected a harmless no-op, got tr=%+v err=%v", tr, err)
	}
}

func TestEngine_UnavailableIsNotAnObservation(t *testing.T) {
	e := NewEngine(nil)
	id := uuid.New()
	base := time.Now().UTC()

	mustApply(t, e, id, true, base)
	tr, err := e.Apply(id, Observation{Unavailable: true, Timestamp: base.Add(time.Second)})
	if err != nil || tr != nil {
		t.Fatalf("expected unavailable observation to be a no-op, got tr=%+v err=%v", tr, err)
	}
	snap, _ := e.Snapshot(id)
	if snap.Current != StatusUP {
		t.Fatalf("expected state to remain UP after an unavailable probe, got %v", snap.Current)
	}
}

func TestEngine_DuplicateReachableIsNotATransition(t *testing.T) {
	e := NewEngine(nil)
	id := uuid.New()
	base := time.Now().UTC()

	mustApply(t, e, id, true, base)
	tr := mustApply(t, e, id, true, base.Add(time.Second))
	if tr != nil {
		t.Fatalf("expected idempotent duplicate probe application, got %+v", tr)
	}
}
