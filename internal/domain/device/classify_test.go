package device

import "testing"

func TestClassify_ISPWithKnownProvider(t *testing.T) {
	class, provider := Classify("Gi0/0/1", "Comcast Business Circuit #4421")
	if class != ClassISP {
		t.Fatalf("expected ClassISP, got %v", class)
	}
	if provider != "Comcast" {
		t.Fatalf("expected Comcast, got %q", provider)
	}
}

func TestClassify_Trunk(t *testing.T) {
	class, _ := Classify("Te1/1/1", "Core trunk to DC2")
	if class != ClassTrunk {
		t.Fatalf("expected ClassTrunk, got %v", class)
	}
}

func TestClassify_Access(t *testing.T) {
	class, _ := Classify("Gi0/3", "Branch workstation VLAN")
	if class != ClassAccess {
		t.Fatalf("expected ClassAccess, got %v", class)
	}
}

func TestClassify_Empty(t *testing.T) {
	class, provider := Classify("", "")
	if class != ClassOther {
		t.Fatalf("expected ClassOther, got %v", class)
	}
	if provider != "" {
		t.Fatalf("expected empty provider, got %q", provider)
	}
}

func TestClassify_GenericISPHintFallsBackToAliasToken(t *testing.T) {
	class, provider := Classify("Gi0/0", "ISP uplink circuit-4471")
	if class != ClassISP {
		t.Fatalf("expected ClassISP, got %v", class)
	}
	if provider == "" {
		t.Fatalf("expected a non-empty fallback provider")
	}
}
