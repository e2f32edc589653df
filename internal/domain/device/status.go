package device

import "time"

// Status is the closed set of device status strings surfaced on read paths
// (spec §6 "GET /devices?...&status=", §7 user-visible behaviour).
type Status string

const (
	StatusUp              Status = "up"
	StatusDown            Status = "down"
	StatusFlapping        Status = "flapping"
	StatusStale           Status = "stale"
	StatusCredentialError Status = "credential_error"
)

// CurrentStatus derives the device's user-visible status from registry
// state, in the precedence spec §7 implies: a rejected credential is called
// out as its own badge distinct from DOWN; staleness (no recent probe)
// overrides a possibly-outdated UP/DOWN view; flapping overrides a plain
// DOWN/UP read; otherwise the device reports its last authoritative
// down_since state.
func (d *Device) CurrentStatus(pingInterval time.Duration, now time.Time) Status {
	switch {
	case d.CredentialError:
		return StatusCredentialError
	case d.Stale(pingInterval, now):
		return StatusStale
	case d.IsFlapping:
		return StatusFlapping
	case d.DownSince != nil:
		return StatusDown
	default:
		return StatusUp
	}
}

// DashboardBucket collapses CurrentStatus into the three buckets spec §6's
// dashboard stats contract reports (`online`, `offline`, `warning`).
func (d *Device) DashboardBucket(pingInterval time.Duration, now time.Time) string {
	switch d.CurrentStatus(pingInterval, now) {
	case StatusUp:
		return "online"
	case StatusDown:
		return "offline"
	default:
		return "warning"
	}
}
