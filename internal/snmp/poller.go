package snmp

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/fleetwatch/monitor/internal/domain/device"
	"github.com/fleetwatch/monitor/internal/domain/telemetry"
)

// IF-MIB column OIDs walked to build the per-device interface snapshot.
const (
	oidIfDescr      = "1.3.6.1.2.1.2.2.1.2"
	oidIfType       = "1.3.6.1.2.1.2.2.1.3"
	oidIfMtu        = "1.3.6.1.2.1.2.2.1.4"
	oidIfSpeed      = "1.3.6.1.2.1.2.2.1.5"
	oidIfAdminState = "1.3.6.1.2.1.2.2.1.7"
	oidIfOperState  = "1.3.6.1.2.1.2.2.1.8"
	oidIfAlias      = "1.3.6.1.2.1.31.1.1.1.18"
)

// Poller issues GET/WALK SNMP polls for a device's enabled monitoring items
// plus an IF-MIB interface snapshot, decrypting credentials only for the
// lifetime of a single poll call.
type Poller struct {
	masterKey []byte
	cfg       SessionConfig
}

// New constructs a Poller. masterKey must be the same 32-byte key used to
// seal credentials via internal/domain/device.EncryptSecret.
func New(masterKey []byte, cfg SessionConfig) *Poller {
	return &Poller{masterKey: masterKey, cfg: cfg.withDefaults()}
}

// Poll runs one poll cycle for dev against its enabled monitoring items. A
// credential failure sets CredentialError and returns no values or interface
// rows, but is not itself an error — the caller MUST NOT treat it as a DOWN
// observation (spec §4.4, §7, scenario 5). A single item's failure is
// recorded in ItemErrors and never aborts its siblings.
func (p *Poller) Poll(dev *device.Device, cred *device.SNMPCredential, items []*device.MonitoringItem) telemetry.SNMPPollResult {
	now := time.Now().UTC()
	result := telemetry.SNMPPollResult{
		DeviceID:   dev.ID,
		ItemErrors: make(map[string]error),
		Timestamp:  now,
	}

	if cred == nil {
		result.CredentialError = true
		return result
	}

	g, err := newSession(p.masterKey, dev.IP, cred, p.cfg)
	if err != nil {
		if isAuthFailure(err) {
			result.CredentialError = true
			return result
		}
		result.ItemErrors["__session__"] = err
		return result
	}
	defer g.Conn.Close()

	for _, item := range items {
		if !item.Enabled {
			continue
		}
		v, err := p.pollItem(g, item)
		if err != nil {
			if isAuthFailure(err) {
				result.CredentialError = true
				result.Values = nil
				return result
			}
			result.ItemErrors[item.Name] = err
			continue
		}
		result.Values = append(result.Values, v)
	}

	ifaces, err := p.walkInterfaces(g)
	if err != nil {
		result.ItemErrors["__interfaces__"] = err
	} else {
		result.Interfaces = ifaces
	}

	return result
}

func (p *Poller) pollItem(g *gosnmp.GoSNMP, item *device.MonitoringItem) (telemetry.SNMPValue, error) {
	now := time.Now().UTC()
	pdu, err := getWithFallback(g, item.OID)
	if err != nil {
		return telemetry.SNMPValue{}, classify("snmp_get_failed", err)
	}

	v, err := normalize(pdu, item.ValueType)
	if err != nil {
		return telemetry.SNMPValue{}, classify("snmp_normalize_failed", err)
	}
	v.OID = item.OID
	v.Name = item.Name
	v.Timestamp = now
	return v, nil
}

// getWithFallback tries a direct GET first (correct for scalar .0
// instances); when the agent reports NoSuchInstance/NoSuchObject — common
// for tabular OIDs addressed without an instance suffix — it falls back to
// GETNEXT, which returns the first value in the subtree.
func getWithFallback(g *gosnmp.GoSNMP, oid string) (gosnmp.SnmpPDU, error) {
	resp, err := g.Get([]string{oid})
	if err == nil && len(resp.Variables) > 0 {
		v := resp.Variables[0]
		if v.Type != gosnmp.NoSuchInstance && v.Type != gosnmp.NoSuchObject && v.Type != gosnmp.EndOfMibView {
			return v, nil
		}
	}

	base := strings.TrimSuffix(oid, ".0")
	next, nerr := g.GetNext([]string{base})
	if nerr != nil {
		if err != nil {
			return gosnmp.SnmpPDU{}, err
		}
		return gosnmp.SnmpPDU{}, nerr
	}
	if len(next.Variables) == 0 {
		return gosnmp.SnmpPDU{}, fmt.Errorf("nosuchname: %s", oid)
	}
	name := strings.TrimPrefix(next.Variables[0].Name, ".")
	if !strings.HasPrefix(name, base) {
		return gosnmp.SnmpPDU{}, fmt.Errorf("nosuchname: %s", oid)
	}
	return next.Variables[0], nil
}

// normalize maps a raw PDU value onto the item's declared value type,
// rejecting mismatches rather than silently coercing them (spec §4.4
// "unknown or mismatched types are reported as errors").
func normalize(pdu gosnmp.SnmpPDU, declared device.ValueType) (telemetry.SNMPValue, error) {
	switch declared {
	case device.ValueInteger, device.ValueCounter:
		i, err := toInt64(pdu.Value)
		if err != nil {
			return telemetry.SNMPValue{}, fmt.Errorf("parse: %w", err)
		}
		return telemetry.SNMPValue{Type: telemetry.KindInt, IntValue: i}, nil
	case device.ValueFloat:
		f, err := toFloat64(pdu.Value)
		if err != nil {
			return telemetry.SNMPValue{}, fmt.Errorf("parse: %w", err)
		}
		return telemetry.SNMPValue{Type: telemetry.KindFloat, FloatValue: f}, nil
	case device.ValueString:
		s, err := toDisplayString(pdu.Value)
		if err != nil {
			return telemetry.SNMPValue{}, fmt.Errorf("parse: %w", err)
		}
		return telemetry.SNMPValue{Type: telemetry.KindString, StrValue: s}, nil
	default:
		return telemetry.SNMPValue{}, fmt.Errorf("parse: unrecognized declared value type %q", declared)
	}
}

func (p *Poller) walkInterfaces(g *gosnmp.GoSNMP) ([]telemetry.InterfaceSnap, error) {
	descr, err := walkColumn(g, oidIfDescr)
	if err != nil {
		return nil, classify("snmp_walk_failed", err)
	}

	typ, _ := walkColumn(g, oidIfType)
	mtu, _ := walkColumn(g, oidIfMtu)
	speed, _ := walkColumn(g, oidIfSpeed)
	admin, _ := walkColumn(g, oidIfAdminState)
	oper, _ := walkColumn(g, oidIfOperState)
	alias, _ := walkColumn(g, oidIfAlias)

	out := make([]telemetry.InterfaceSnap, 0, len(descr))
	for idx, pdu := range descr {
		name, _ := toDisplayString(pdu.Value)
		snap := telemetry.InterfaceSnap{IfIndex: idx, IfName: name}
		if v, ok := typ[idx]; ok {
			if n, err := toInt64(v.Value); err == nil {
				snap.IfType = ifTypeName(n)
			}
		}
		if v, ok := mtu[idx]; ok {
			if n, err := toInt64(v.Value); err == nil {
				snap.MTU = int(n)
			}
		}
		if v, ok := speed[idx]; ok {
			if n, err := toInt64(v.Value); err == nil {
				snap.Speed = n
			}
		}
		if v, ok := admin[idx]; ok {
			if n, err := toInt64(v.Value); err == nil {
				snap.AdminStatus = ifStatusName(n)
			}
		}
		if v, ok := oper[idx]; ok {
			if n, err := toInt64(v.Value); err == nil {
				snap.OperStatus = ifStatusName(n)
			}
		}
		if v, ok := alias[idx]; ok {
			if s, err := toDisplayString(v.Value); err == nil {
				snap.IfAlias = s
			}
		}
		out = append(out, snap)
	}
	return out, nil
}

// walkColumn walks one IF-MIB column and returns its values keyed by the
// trailing ifIndex suffix of the returned OID.
func walkColumn(g *gosnmp.GoSNMP, columnOID string) (map[int]gosnmp.SnmpPDU, error) {
	pdus, err := g.WalkAll(columnOID)
	if err != nil {
		return nil, err
	}
	out := make(map[int]gosnmp.SnmpPDU, len(pdus))
	for _, pdu := range pdus {
		idx, ok := lastIndexSuffix(pdu.Name)
		if !ok {
			continue
		}
		out[idx] = pdu
	}
	return out, nil
}

// lastIndexSuffix extracts the trailing ifIndex from a fully-qualified
// tabular OID, e.g. ".1.3.6.1.2.1.2.2.1.2.3" -> 3.
func lastIndexSuffix(oid string) (int, bool) {
	name := strings.TrimPrefix(oid, ".")
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return 0, false
	}
	idx, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return 0, false
	}
	return idx, true
}

func ifTypeName(n int64) string {
	switch n {
	case 6:
		return "ethernetCsmacd"
	case 24:
		return "softwareLoopback"
	case 131:
		return "tunnel"
	case 135:
		return "l2vlan"
	default:
		return strconv.FormatInt(n, 10)
	}
}

func ifStatusName(n int64) string {
	switch n {
	case 1:
		return "up"
	case 2:
		return "down"
	case 3:
		return "testing"
	default:
		return "unknown"
	}
}

func isAuthFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "authentication") || strings.Contains(msg, "decrypt")
}
