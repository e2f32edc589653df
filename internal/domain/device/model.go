// Package device holds the Device Registry (spec §4.1, §3): devices,
// branches, monitoring items, SNMP credentials and interfaces.
package device

import (
	"time"

	"github.com/google/uuid"
)

// SNMPVersion is a closed set of supported SNMP versions.
type SNMPVersion string

const (
	SNMPv2c SNMPVersion = "v2c"
	SNMPv3  SNMPVersion = "v3"
)

// ValueType is the closed set of SNMP monitoring-item value types.
type ValueType string

const (
	ValueInteger ValueType = "integer"
	ValueFloat   ValueType = "float"
	ValueString  ValueType = "string"
	ValueCounter ValueType = "counter"
)

// Device is the authoritative record for one monitored network element.
// Identity is Device.ID alone: IP uniqueness is NOT enforced (spec §3).
type Device struct {
	ID            uuid.UUID  `db:"id"`
	IP            string     `db:"ip"`
	Hostname      string     `db:"hostname"`
	Vendor        string     `db:"vendor"`
	Model         string     `db:"model"`
	DeviceType    string     `db:"device_type"`
	DeviceSubtype string     `db:"device_subtype"`
	BranchID      *uuid.UUID `db:"branch_id"`

	Enabled bool        `db:"enabled"`
	SNMPVer SNMPVersion `db:"snmp_version"`
	SSHPort int         `db:"ssh_port"`
	SSHUser string      `db:"ssh_user"`

	// Status-engine fields, mirrored here for registry reads; the
	// authoritative copy lives in the status engine's in-memory map while
	// the process is running and is flushed back on every transition.
	DownSince     *time.Time `db:"down_since"`
	IsFlapping    bool       `db:"is_flapping"`
	FlapCount     int        `db:"flap_count"`
	FlappingSince *time.Time `db:"flapping_since"`
	LastCheck     *time.Time `db:"last_check"`
	LastRTTMillis *float64   `db:"last_rtt_ms"`

	// CredentialError is set when the most recent SNMP poll failed
	// authentication; distinct from DOWN per spec §7.
	CredentialError bool `db:"credential_error"`
}

// Stale reports whether the device hasn't been probed recently enough to
// trust its current status, per spec §7 ("last_check > 3x interval").
func (d *Device) Stale(interval time.Duration, now time.Time) bool {
	if d.LastCheck == nil {
		return false
	}
	return now.Sub(*d.LastCheck) > 3*interval
}

// Branch groups devices by region/site.
type Branch struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	DisplayName string    `db:"display_name"`
	Region      string    `db:"region"`
	BranchCode  string    `db:"branch_code"`
	Active      bool      `db:"active"`
}

// MonitoringItem is a per-device SNMP metric collected on its own interval.
type MonitoringItem struct {
	ID              uuid.UUID `db:"id"`
	DeviceID        uuid.UUID `db:"device_id"`
	OID             string    `db:"oid"`
	Name            string    `db:"name"`
	IntervalSeconds int       `db:"interval_seconds"`
	ValueType       ValueType `db:"value_type"`
	Units           string    `db:"units"`
	Enabled         bool      `db:"enabled"`
}

// SNMPCredential holds per-device SNMP auth material. Encrypted* fields hold
// ciphertext produced by internal/domain/device/credential.go; plaintext
// never touches this struct outside of the SNMP client call site.
type SNMPCredential struct {
	DeviceID           uuid.UUID   `db:"device_id"`
	Version            SNMPVersion `db:"version"`
	CommunityEncrypted string      `db:"community_encrypted"`

	// v3 only. Username and protocol names are not secret and are stored in
	// the clear; AuthEncrypted/PrivEncrypted hold the passphrase ciphertext.
	Username      string `db:"username"`
	AuthProtocol  string `db:"auth_protocol"`
	AuthEncrypted string `db:"auth_encrypted"`
	PrivProtocol  string `db:"priv_protocol"`
	PrivEncrypted string `db:"priv_encrypted"`

	Port int `db:"port"`
}

// InterfaceClass is the closed set of interface classifications derived
// offline from if_alias/if_name (spec §3 "Interface (optional)").
type InterfaceClass string

const (
	ClassISP    InterfaceClass = "isp"
	ClassTrunk  InterfaceClass = "trunk"
	ClassAccess InterfaceClass = "access"
	ClassOther  InterfaceClass = "other"
)

// Interface is a per-device SNMP interface snapshot.
type Interface struct {
	ID             uuid.UUID      `db:"id"`
	DeviceID       uuid.UUID      `db:"device_id"`
	IfIndex        int            `db:"if_index"`
	IfName         string         `db:"if_name"`
	IfAlias        string         `db:"if_alias"`
	IfType         string         `db:"if_type"`
	AdminStatus    string         `db:"admin_status"`
	OperStatus     string         `db:"oper_status"`
	Speed          int64          `db:"speed"`
	MTU            int            `db:"mtu"`
	Classification InterfaceClass `db:"classification"`
	ISPProvider    string         `db:"isp_provider"`
	IsCritical     bool           `db:"is_critical"`
}
