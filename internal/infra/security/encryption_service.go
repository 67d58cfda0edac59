// File: internal/infra/security/encryption_service.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedCiphertext is returned for input that was not produced by Encrypt.
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// EncryptionService seals tenant credentials with AES-GCM. The tenant id is
// bound as additional data, so a token copied to another tenant fails to open.
// Stored format: base64(nonce || ciphertext).
type EncryptionService struct {
	gcm cipher.AEAD
}

// NewEncryptionService accepts a raw 16/24/32 byte key or the base64 form of one.
func NewEncryptionService(key string) (*EncryptionService, error) {
	k, err := parseKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &EncryptionService{gcm: gcm}, nil
}

func parseKey(key string) ([]byte, error) {
	if validKeyLen(len(key)) {
		return []byte(key), nil
	}
	if dec, err := base64.StdEncoding.DecodeString(key); err == nil && validKeyLen(len(dec)) {
		return dec, nil
	}
	return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes (raw or base64); got %d", len(key))
}

func validKeyLen(n int) bool { return n == 16 || n == 24 || n == 32 }

// Encrypt seals plaintext for tenantID.
func (e *EncryptionService) Encrypt(tenantID, plaintext string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := e.gcm.Seal(nonce, nonce, []byte(plaintext), []byte(tenantID))
	return base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt opens a value produced by Encrypt for the same tenantID.
func (e *EncryptionService) Decrypt(tenantID, b64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	ns := e.gcm.NonceSize()
	if len(data) < ns+e.gcm.Overhead() {
		return "", ErrMalformedCiphertext
	}
	nonce, ct := data[:ns], data[ns:]
	pt, err := e.gcm.Open(nil, nonce, ct, []byte(tenantID))
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}
