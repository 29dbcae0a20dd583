package secret

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// EnvelopePrefix and EnvelopeSuffix wrap every encrypted value. Their
	// presence is the only thing distinguishing an envelope from plaintext.
	EnvelopePrefix = "ENC["
	EnvelopeSuffix = "]"

	// KeySize is the required root key length in bytes.
	KeySize = chacha20poly1305.KeySize

	tagSize = 16
)

var (
	// ErrNotEncrypted signals that a value does not carry the envelope
	// wrapper. Callers treat this as "the value was plaintext", which is
	// ambiguous with a caller mistakenly passing plaintext – a known
	// limitation of the sentinel-based format.
	ErrNotEncrypted = errors.New("secret: value is not an encrypted envelope")

	// ErrKeyMissing is returned when no root key has been provisioned.
	ErrKeyMissing = errors.New("secret: root key not found, run provisioning")

	// ErrDecrypt covers both malformed envelope segments and authentication
	// failures; no partial plaintext is ever returned.
	ErrDecrypt = errors.New("secret: decryption failed")
)

// Encrypt seals plaintext with the root key and returns the envelope string
// {prefix}{nonce}:{tag}:{ciphertext}{suffix}, all segments base64. A fresh
// nonce is drawn from crypto/rand on every call; nonce reuse under the same
// key would void the cipher's guarantees.
func Encrypt(plaintext string, key []byte) (string, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secret: failed to draw nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]
	enc := base64.StdEncoding
	return EnvelopePrefix +
		enc.EncodeToString(nonce) + ":" +
		enc.EncodeToString(tag) + ":" +
		enc.EncodeToString(ciphertext) +
		EnvelopeSuffix, nil
}

// Decrypt opens an envelope produced by Encrypt. It returns ErrNotEncrypted
// for any value failing the structural check, and ErrDecrypt when a
// well-formed envelope does not verify (tampered or wrong key).
func Decrypt(value string, key []byte) (string, error) {
	if !IsEncrypted(value) {
		return "", ErrNotEncrypted
	}
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}
	body := value[len(EnvelopePrefix) : len(value)-len(EnvelopeSuffix)]
	segments := strings.Split(body, ":")
	if len(segments) != 3 {
		return "", fmt.Errorf("%w: expected 3 segments, had %d", ErrDecrypt, len(segments))
	}
	enc := base64.StdEncoding
	nonce, err := enc.DecodeString(segments[0])
	if err != nil || len(nonce) != aead.NonceSize() {
		return "", fmt.Errorf("%w: invalid nonce", ErrDecrypt)
	}
	tag, err := enc.DecodeString(segments[1])
	if err != nil || len(tag) != tagSize {
		return "", fmt.Errorf("%w: invalid auth tag", ErrDecrypt)
	}
	ciphertext, err := enc.DecodeString(segments[2])
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext", ErrDecrypt)
	}
	plaintext, err := aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecrypt)
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether value carries the envelope wrapper. It is a
// purely structural check used by configuration loaders to decide whether
// Decrypt applies at all.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EnvelopePrefix) &&
		strings.HasSuffix(value, EnvelopeSuffix) &&
		len(value) > len(EnvelopePrefix)+len(EnvelopeSuffix)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) == 0 {
		return nil, ErrKeyMissing
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("secret: root key must be %d bytes, had %d", KeySize, len(key))
	}
	return chacha20poly1305.New(key)
}
