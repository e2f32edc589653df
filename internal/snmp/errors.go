package snmp

import (
	"errors"
	"strings"

	platformerrors "github.com/fleetwatch/monitor/internal/platform/errors"
	"github.com/fleetwatch/monitor/internal/platform/redact"
)

// classify turns a raw gosnmp/decrypt error into a sanitized ServiceError
// that summarizes the failure kind — auth, timeout, no-such-name, parse. The
// original error text, which in the worst case could echo back a community
// string or passphrase, is kept as the cause only after redact.String has
// masked it (spec §4.4).
func classify(code string, err error) *platformerrors.ServiceError {
	msg := strings.ToLower(err.Error())
	safeCause := errors.New(redact.String(err.Error()))

	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "i/o timeout"):
		return platformerrors.Wrap(platformerrors.KindTimeout, code, "snmp request timed out", safeCause)
	case strings.Contains(msg, "auth") || strings.Contains(msg, "badsecuritylevel") ||
		strings.Contains(msg, "unknownusername") || strings.Contains(msg, "wrongdigest") ||
		strings.Contains(msg, "decrypt"):
		return platformerrors.Wrap(platformerrors.KindAuth, code, "snmp authentication failed", safeCause)
	case strings.Contains(msg, "nosuchname") || strings.Contains(msg, "no such name") ||
		strings.Contains(msg, "nosuchobject") || strings.Contains(msg, "nosuchinstance"):
		return platformerrors.Wrap(platformerrors.KindValidation, code, "snmp no-such-name", safeCause)
	case strings.Contains(msg, "parse") || strings.Contains(msg, "malformed") || strings.Contains(msg, "asn1"):
		return platformerrors.Wrap(platformerrors.KindValidation, code, "snmp response parse failure", safeCause)
	default:
		return platformerrors.Wrap(platformerrors.KindTransientIO, code, "snmp transient I/O error", safeCause)
	}
}

func classifyAuthErr(err error) *platformerrors.ServiceError {
	return platformerrors.Wrap(platformerrors.KindAuth, "credential_decrypt_failed", "failed to decrypt snmp credential", nil)
}

func classifyConnectErr(err error) *platformerrors.ServiceError {
	return classify("snmp_connect_failed", err)
}
