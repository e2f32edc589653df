package alert

import "testing"

func TestParseCondition_DeviceDown(t *testing.T) {
	c, err := ParseCondition("device_down")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Kind != ConditionDeviceDown {
		t.Fatalf("expected ConditionDeviceDown, got %v", c.Kind)
	}
}

func TestParseCondition_DeviceDownFor(t *testing.T) {
	c, err := ParseCondition("device_down_for{seconds=300}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Kind != ConditionDeviceDownFor || c.DownForSeconds != 300 {
		t.Fatalf("unexpected condition: %+v", c)
	}
}

func TestParseCondition_HighLatency(t *testing.T) {
	c, err := ParseCondition("high_latency{ms=150}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.LatencyThresholdMillis != 150 {
		t.Fatalf("expected 150ms, got %v", c.LatencyThresholdMillis)
	}
}

func TestParseCondition_InterfaceOperDown(t *testing.T) {
	c, err := ParseCondition(`interface_oper_down{name_pattern=^Gi0/.*}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.NamePattern.MatchString("Gi0/1") {
		t.Fatalf("expected pattern to match Gi0/1")
	}
}

func TestParseCondition_MetricThreshold(t *testing.T) {
	c, err := ParseCondition("metric_threshold{oid_name=cpu_util,op=gte,value=90}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.OIDName != "cpu_util" || c.Op != OpGE || c.Threshold != 90 {
		t.Fatalf("unexpected condition: %+v", c)
	}
}

func TestParseCondition_MetricThreshold_UnknownOp(t *testing.T) {
	if _, err := ParseCondition("metric_threshold{oid_name=cpu_util,op=near,value=90}"); err == nil {
		t.Fatalf("expected error for unknown op")
	}
}

func TestParseCondition_UnrecognizedExpressionIsRejected(t *testing.T) {
	if _, err := ParseCondition("something_made_up{x=1}"); err == nil {
		t.Fatalf("expected unrecognized expression to be rejected, not partially matched")
	}
}

func TestParseCondition_MissingRequiredArgument(t *testing.T) {
	if _, err := ParseCondition("packet_loss{}"); err == nil {
		t.Fatalf("expected missing pct argument to fail parsing")
	}
}
