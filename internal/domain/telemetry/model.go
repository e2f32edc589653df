// Package telemetry holds the shapes emitted by the probe scheduler and
// consumed by the telemetry store and status engine (spec §3, §4.3-§4.6).
package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// PingResult is one ICMP probe outcome for a device IP.
type PingResult struct {
	DeviceIP     string     `json:"device_ip" db:"device_ip"`
	DeviceID     *uuid.UUID `json:"device_id,omitempty" db:"device_id"`
	PacketsSent  int        `json:"packets_sent" db:"packets_sent"`
	PacketsRecv  int        `json:"packets_recv" db:"packets_recv"`
	LossPct      float64    `json:"loss_pct" db:"loss_pct"`
	MinRTTMillis *float64   `json:"min_rtt_ms,omitempty" db:"min_rtt_ms"`
	AvgRTTMillis *float64   `json:"avg_rtt_ms,omitempty" db:"avg_rtt_ms"`
	MaxRTTMillis *float64   `json:"max_rtt_ms,omitempty" db:"max_rtt_ms"`
	// Reachable is false both when every packet was lost and when the
	// probe itself could not run (no socket permission); Unavailable
	// distinguishes the latter so the status engine never records a false
	// DOWN transition for a probing-infrastructure fault (spec §4.4, §7).
	Reachable   bool      `json:"reachable" db:"reachable"`
	Unavailable bool      `json:"-" db:"-"`
	Timestamp   time.Time `json:"ts" db:"ts"`
}

// SNMPValue is a single polled OID, normalized to a closed tagged variant so
// callers never need to type-switch on interface{} (spec §9 decision).
type SNMPValue struct {
	OID        string    `json:"oid"`
	Name       string    `json:"name"`
	Type       ValueKind `json:"type"`
	IntValue   int64     `json:"int_value,omitempty"`
	FloatValue float64   `json:"float_value,omitempty"`
	StrValue   string    `json:"str_value,omitempty"`
	Timestamp  time.Time `json:"ts"`
}

// ValueKind is the closed set of normalized SNMP value shapes.
type ValueKind string

const (
	KindInt    ValueKind = "int"
	KindFloat  ValueKind = "float"
	KindString ValueKind = "string"
)

// SNMPPollResult is the outcome of polling every monitoring item for one
// device in a single poll cycle. A per-item failure never aborts the rest
// of the batch (spec §4.5 "single item failure isolation").
type SNMPPollResult struct {
	DeviceID        uuid.UUID        `json:"device_id"`
	Values          []SNMPValue      `json:"values"`
	ItemErrors      map[string]error `json:"-"`
	Interfaces      []InterfaceSnap  `json:"interfaces,omitempty"`
	CredentialError bool             `json:"credential_error"`
	Timestamp       time.Time        `json:"ts"`
}

// InterfaceSnap is one polled interface row from an IF-MIB walk.
type InterfaceSnap struct {
	IfIndex     int    `json:"if_index"`
	IfName      string `json:"if_name"`
	IfAlias     string `json:"if_alias"`
	IfType      string `json:"if_type"`
	AdminStatus string `json:"admin_status"`
	OperStatus  string `json:"oper_status"`
	Speed       int64  `json:"speed"`
	MTU         int    `json:"mtu"`
}

// DeviceStatusHistory records one status-engine transition (spec §4.6).
type DeviceStatusHistory struct {
	DeviceID  uuid.UUID `json:"device_id" db:"device_id"`
	OldStatus string    `json:"old_status" db:"old_status"`
	NewStatus string    `json:"new_status" db:"new_status"`
	Timestamp time.Time `json:"ts" db:"ts"`
	RTTMillis *float64  `json:"rtt_ms,omitempty" db:"rtt_ms"`
}
