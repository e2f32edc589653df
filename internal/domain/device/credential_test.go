package device

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func testKey() []byte {
	return []byte("01234567890123456789012345678901")
}

func TestEncryptDecryptSecret_RoundTrips(t *testing.T) {
	id := uuid.New()
	ct, err := EncryptSecret(testKey(), id, "community", "public")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !strings.HasPrefix(ct, credentialEnvelopeVersion) {
		t.Fatalf("expected versioned ciphertext, got %q", ct)
	}
	pt, err := DecryptSecret(testKey(), id, "community", ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if pt != "public" {
		t.Fatalf("expected public, got %q", pt)
	}
}

func TestEncryptSecret_EmptyPlaintextIsEmpty(t *testing.T) {
	ct, err := EncryptSecret(testKey(), uuid.New(), "community", "")
	if err != nil || ct != "" {
		t.Fatalf("expected empty ciphertext, got %q err=%v", ct, err)
	}
}

func TestDecryptSecret_WrongDeviceFails(t *testing.T) {
	id := uuid.New()
	other := uuid.New()
	ct, _ := EncryptSecret(testKey(), id, "community", "public")
	if _, err := DecryptSecret(testKey(), other, "community", ct); err == nil {
		t.Fatalf("expected decrypt to fail for a different device id")
	}
}

func TestEncryptSecret_NeverLeaksPlaintextInCiphertext(t *testing.T) {
	ct, _ := EncryptSecret(testKey(), uuid.New(), "community", "hunter2-secret")
	if strings.Contains(ct, "hunter2") {
		t.Fatalf("ciphertext must not contain plaintext fragments: %q", ct)
	}
}
