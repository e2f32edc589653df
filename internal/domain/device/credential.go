package device

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const credentialEnvelopeVersion = "v1:"

// credentialAEAD derives a per-device, per-purpose AES-GCM instance from
// masterKey. Binding the device id and info string into the HKDF salt
// means a community string encrypted for device A can never be swapped
// onto device B's row and decrypt cleanly, and a v3 auth key can never be
// mistaken for a priv key even if both were sealed under the same master
// key. Spec §3: "Secrets never leave this table in plaintext except to
// the SNMP client at use time."
func credentialAEAD(masterKey []byte, deviceID uuid.UUID, info string) (cipher.AEAD, error) {
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(masterKey))
	}

	salt := make([]byte, 0, len(deviceID)+1+len(info))
	salt = append(salt, deviceID[:]...)
	salt = append(salt, 0)
	salt = append(salt, info...)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, salt, []byte("fleetwatch-credential")), key); err != nil {
		return nil, fmt.Errorf("derive credential key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func credentialAAD(deviceID uuid.UUID, info string) []byte {
	aad := make([]byte, 0, len(deviceID)+1+len(info))
	aad = append(aad, deviceID[:]...)
	aad = append(aad, 0)
	aad = append(aad, info...)
	return aad
}

// EncryptSecret seals an SNMP community string or v3 auth/priv passphrase
// for storage on the owning device's row.
func EncryptSecret(masterKey []byte, deviceID uuid.UUID, info string, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	aead, err := credentialAEAD(masterKey, deviceID, info)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), credentialAAD(deviceID, info))
	return credentialEnvelopeVersion + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// DecryptSecret reverses EncryptSecret. Returned errors never embed the
// ciphertext or key material.
func DecryptSecret(masterKey []byte, deviceID uuid.UUID, info string, encoded string) (string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return "", nil
	}
	encoded = strings.TrimPrefix(encoded, credentialEnvelopeVersion)

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode credential envelope")
	}

	aead, err := credentialAEAD(masterKey, deviceID, info)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("credential envelope truncated")
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, credentialAAD(deviceID, info))
	if err != nil {
		return "", fmt.Errorf("decrypt credential envelope")
	}
	return string(plaintext), nil
}
