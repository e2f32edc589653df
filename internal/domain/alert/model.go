// Package alert holds alert rules, evaluated history, and the closed
// condition grammar used to express rule expressions (spec §4.7).
package alert

import (
	"time"

	"github.com/google/uuid"
)

// Severity is the closed set of alert severities (spec §3 Data Model).
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// ScopeKind narrows a rule to a subset of devices/interfaces.
type ScopeKind string

const (
	ScopeAll       ScopeKind = "all"
	ScopeBranch    ScopeKind = "branch"
	ScopeDeviceTag ScopeKind = "device_type"
)

// Rule is a persisted alert rule. Expression is never a free-form script;
// it is parsed once at load time into a Condition (spec §9 decision).
type Rule struct {
	ID          uuid.UUID
	Name        string
	Description string
	Expression  string
	Condition   Condition
	Severity    Severity
	Enabled     bool
	ScopeKind   ScopeKind
	ScopeValue  string
}

// History is one row of alert_history: a single open-or-resolved firing of
// a rule (or a ping-only alert, where RuleID is nil) against one device and
// optionally one interface.
type History struct {
	ID             uuid.UUID  `db:"id"`
	RuleID         *uuid.UUID `db:"rule_id"`
	DeviceID       uuid.UUID  `db:"device_id"`
	InterfaceID    *uuid.UUID `db:"interface_id"`
	Severity       Severity   `db:"severity"`
	Message        string     `db:"message"`
	ValueSnapshot  string     `db:"value_snapshot"`
	TriggeredAt    time.Time  `db:"triggered_at"`
	ResolvedAt     *time.Time `db:"resolved_at"`
	AcknowledgedAt *time.Time `db:"acknowledged_at"`
	AcknowledgedBy string     `db:"acknowledged_by"`
	ISPProvider    string     `db:"isp_provider"`
	FaultClass     string     `db:"fault_class"`
}

// Open reports whether this alert is still unresolved.
func (h *History) Open() bool { return h.ResolvedAt == nil }

// Fingerprint identifies the at-most-one-unresolved-alert slot this history
// row occupies (spec §4.7, DB-enforced via a partial unique index).
type Fingerprint struct {
	RuleID      *uuid.UUID
	DeviceID    uuid.UUID
	InterfaceID *uuid.UUID
}

func (h *History) Fingerprint() Fingerprint {
	return Fingerprint{RuleID: h.RuleID, DeviceID: h.DeviceID, InterfaceID: h.InterfaceID}
}
