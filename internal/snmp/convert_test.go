package snmp

import "testing"

func TestToInt64_WidensAllNumericVariants(t *testing.T) {
	cases := []interface{}{int(5), int32(5), int64(5), uint(5), uint32(5), uint64(5)}
	for _, c := range cases {
		v, err := toInt64(c)
		if err != nil || v != 5 {
			t.Fatalf("toInt64(%v) = %v, %v", c, v, err)
		}
	}
}

func TestToInt64_RejectsNonNumeric(t *testing.T) {
	if _, err := toInt64("not a number"); err == nil {
		t.Fatalf("expected error for non-numeric value")
	}
}

func TestToDisplayString_StripsNulBytes(t *testing.T) {
	s, err := toDisplayString([]byte("router-1\x00\x00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "router-1" {
		t.Fatalf("expected nul bytes stripped, got %q", s)
	}
}

func TestToDisplayString_TruncatesOversizedValues(t *testing.T) {
	huge := make([]byte, 2000)
	for i := range huge {
		huge[i] = 'a'
	}
	s, err := toDisplayString(huge)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != 1024 {
		t.Fatalf("expected truncation to 1024 bytes, got %d", len(s))
	}
}

func TestIfStatusName_MapsKnownCodes(t *testing.T) {
	if ifStatusName(1) != "up" || ifStatusName(2) != "down" || ifStatusName(99) != "unknown" {
		t.Fatalf("unexpected status mapping")
	}
}
