package snmp

import (
	"testing"

	"github.com/gosnmp/gosnmp"

	"github.com/fleetwatch/monitor/internal/domain/device"
	"github.com/fleetwatch/monitor/internal/domain/telemetry"
)

func TestNormalize_Integer(t *testing.T) {
	v, err := normalize(gosnmp.SnmpPDU{Value: int(42)}, device.ValueInteger)
	if err != nil || v.Type != telemetry.KindInt || v.IntValue != 42 {
		t.Fatalf("unexpected result: %+v, err=%v", v, err)
	}
}

func TestNormalize_Counter(t *testing.T) {
	v, err := normalize(gosnmp.SnmpPDU{Value: uint32(7)}, device.ValueCounter)
	if err != nil || v.Type != telemetry.KindInt || v.IntValue != 7 {
		t.Fatalf("unexpected result: %+v, err=%v", v, err)
	}
}

func TestNormalize_Float(t *testing.T) {
	v, err := normalize(gosnmp.SnmpPDU{Value: float64(3.5)}, device.ValueFloat)
	if err != nil || v.Type != telemetry.KindFloat || v.FloatValue != 3.5 {
		t.Fatalf("unexpected result: %+v, err=%v", v, err)
	}
}

func TestNormalize_String(t *testing.T) {
	v, err := normalize(gosnmp.SnmpPDU{Value: []byte("fw-v2.1")}, device.ValueString)
	if err != nil || v.Type != telemetry.KindString || v.StrValue != "fw-v2.1" {
		t.Fatalf("unexpected result: %+v, err=%v", v, err)
	}
}

func TestNormalize_MismatchedTypeIsRejected(t *testing.T) {
	_, err := normalize(gosnmp.SnmpPDU{Value: "not-a-number"}, device.ValueInteger)
	if err == nil {
		t.Fatalf("expected a parse error for a string value declared as integer")
	}
}

func TestNormalize_UnrecognizedDeclaredTypeIsRejected(t *testing.T) {
	_, err := normalize(gosnmp.SnmpPDU{Value: int(1)}, device.ValueType("bogus"))
	if err == nil {
		t.Fatalf("expected error for unrecognized declared value type")
	}
}

func TestLastIndexSuffix_ParsesTrailingIndex(t *testing.T) {
	pdus := []gosnmp.SnmpPDU{
		{Name: ".1.3.6.1.2.1.2.2.1.2.1", Value: []byte("eth0")},
		{Name: ".1.3.6.1.2.1.2.2.1.2.2", Value: []byte("eth1")},
	}
	out := make(map[int]gosnmp.SnmpPDU, len(pdus))
	for _, pdu := range pdus {
		idx, ok := lastIndexSuffix(pdu.Name)
		if !ok {
			t.Fatalf("expected a parseable suffix for %s", pdu.Name)
		}
		out[idx] = pdu
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
}
