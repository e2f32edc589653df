package snmp

import (
	"errors"
	"strings"
	"testing"

	platformerrors "github.com/fleetwatch/monitor/internal/platform/errors"
)

func TestClassify_TimeoutKind(t *testing.T) {
	e := classify("code", errors.New("request timeout"))
	if !platformerrors.Is(e, platformerrors.KindTimeout) {
		t.Fatalf("expected timeout kind, got %v", e.Kind)
	}
}

func TestClassify_AuthKindNeverEmbedsSecret(t *testing.T) {
	e := classify("code", errors.New("authenticationFailure community=supersecretvalue"))
	if !platformerrors.Is(e, platformerrors.KindAuth) {
		t.Fatalf("expected auth kind, got %v", e.Kind)
	}
	if strings.Contains(e.Error(), "supersecretvalue") {
		t.Fatalf("secret leaked into error text: %s", e.Error())
	}
}

func TestClassify_NoSuchNameKind(t *testing.T) {
	e := classify("code", errors.New("NoSuchInstance returned for oid"))
	if !platformerrors.Is(e, platformerrors.KindValidation) {
		t.Fatalf("expected validation kind, got %v", e.Kind)
	}
}

func TestClassify_DefaultsToTransientIO(t *testing.T) {
	e := classify("code", errors.New("connection reset by peer"))
	if !platformerrors.Is(e, platformerrors.KindTransientIO) {
		t.Fatalf("expected transient_io kind, got %v", e.Kind)
	}
}
