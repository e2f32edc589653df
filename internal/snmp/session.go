// Package snmp implements C5: the SNMP poller (spec §4.4). It issues GET
// (falling back to GETNEXT for tabular/zero-instance OIDs) against each
// enabled monitoring item, normalizing results into the closed
// telemetry.SNMPValue variant. Session construction is generalized from the
// community/version-switched pattern used across the retrieved SNMP
// collectors, binding credentials only at the point of use so plaintext
// secrets never outlive a single poll call.
package snmp

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/fleetwatch/monitor/internal/domain/device"
)

// Credential-envelope "info" labels, binding ciphertext to the secret kind
// they were sealed under (see device.EncryptSecret/DecryptSecret).
const (
	infoCommunity = "snmp_community"
	infoAuth      = "snmp_auth"
	infoPriv      = "snmp_priv"
)

// SessionConfig bounds one poll's connection parameters, independent of the
// credential material itself.
type SessionConfig struct {
	Timeout time.Duration
	Retries int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	if c.Retries <= 0 {
		c.Retries = 1
	}
	return c
}

// newSession decrypts cred's secret material and builds a connected
// gosnmp session for target. The decrypted secrets live only in the
// returned session, so the caller MUST close it promptly.
func newSession(masterKey []byte, target string, cred *device.SNMPCredential, cfg SessionConfig) (*gosnmp.GoSNMP, error) {
	cfg = cfg.withDefaults()

	g := &gosnmp.GoSNMP{
		Target:  target,
		Port:    uint16(cred.Port),
		Timeout: cfg.Timeout,
		Retries: cfg.Retries,
		MaxOids: 60,
	}
	if g.Port == 0 {
		g.Port = 161
	}

	switch cred.Version {
	case device.SNMPv2c:
		g.Version = gosnmp.Version2c
		community, err := device.DecryptSecret(masterKey, cred.DeviceID, infoCommunity, cred.CommunityEncrypted)
		if err != nil {
			return nil, classifyAuthErr(err)
		}
		g.Community = community

	case device.SNMPv3:
		g.Version = gosnmp.Version3
		g.SecurityModel = gosnmp.UserSecurityModel

		authPass, err := device.DecryptSecret(masterKey, cred.DeviceID, infoAuth, cred.AuthEncrypted)
		if err != nil {
			return nil, classifyAuthErr(err)
		}
		privPass, err := device.DecryptSecret(masterKey, cred.DeviceID, infoPriv, cred.PrivEncrypted)
		if err != nil {
			return nil, classifyAuthErr(err)
		}

		g.MsgFlags = v3MsgFlags(cred.AuthProtocol, cred.PrivProtocol)
		g.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 cred.Username,
			AuthenticationProtocol:   mapAuthProto(cred.AuthProtocol),
			AuthenticationPassphrase: authPass,
			PrivacyProtocol:          mapPrivProto(cred.PrivProtocol),
			PrivacyPassphrase:        privPass,
		}

	default:
		return nil, fmt.Errorf("unsupported snmp version %q", cred.Version)
	}

	if err := g.Connect(); err != nil {
		return nil, classifyConnectErr(err)
	}
	return g, nil
}

func v3MsgFlags(authProto, privProto string) gosnmp.SnmpV3MsgFlags {
	hasAuth := authProto != "" && !strings.EqualFold(authProto, "noauth")
	hasPriv := privProto != "" && !strings.EqualFold(privProto, "nopriv")
	switch {
	case hasAuth && hasPriv:
		return gosnmp.AuthPriv
	case hasAuth:
		return gosnmp.AuthNoPriv
	default:
		return gosnmp.NoAuthNoPriv
	}
}

func mapAuthProto(s string) gosnmp.SnmpV3AuthProtocol {
	switch strings.ToLower(s) {
	case "md5":
		return gosnmp.MD5
	case "sha":
		return gosnmp.SHA
	case "sha224":
		return gosnmp.SHA224
	case "sha256":
		return gosnmp.SHA256
	case "sha384":
		return gosnmp.SHA384
	case "sha512":
		return gosnmp.SHA512
	default:
		return gosnmp.NoAuth
	}
}

func mapPrivProto(s string) gosnmp.SnmpV3PrivProtocol {
	switch strings.ToLower(s) {
	case "des":
		return gosnmp.DES
	case "aes":
		return gosnmp.AES
	case "aes192":
		return gosnmp.AES192
	case "aes256":
		return gosnmp.AES256
	case "aes192c":
		return gosnmp.AES192C
	case "aes256c":
		return gosnmp.AES256C
	default:
		return gosnmp.NoPriv
	}
}
