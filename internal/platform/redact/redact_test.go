package redact

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString_MasksCommunity(t *testing.T) {
	in := `failed snmp get: community=public-readonly timeout`
	out := String(in)
	assert.NotContains(t, out, "public-readonly")
	assert.Contains(t, out, "[REDACTED_COMMUNITY]")
}

func TestString_MasksAuthAndPriv(t *testing.T) {
	in := "auth_passphrase=sup3rSecret priv_key=anotherSecret"
	out := String(in)
	assert.NotContains(t, out, "sup3rSecret")
	assert.NotContains(t, out, "anotherSecret")
}

func TestError_NilIsEmpty(t *testing.T) {
	assert.Equal(t, "", Error(nil))
}

func TestError_MasksWrappedMessage(t *testing.T) {
	err := errors.New("auth failure community=hunter2")
	assert.NotContains(t, Error(err), "hunter2")
}

func TestIsSensitiveKey(t *testing.T) {
	assert.True(t, IsSensitiveKey("SNMPCommunity"))
	assert.True(t, IsSensitiveKey("auth_passphrase"))
	assert.False(t, IsSensitiveKey("device_id"))
}

func TestFields_RedactsSensitiveValues(t *testing.T) {
	out := Fields(map[string]any{
		"community": "public",
		"device_id": "dev-1",
	})
	assert.Equal(t, "[REDACTED]", out["community"])
	assert.Equal(t, "dev-1", out["device_id"])
}
