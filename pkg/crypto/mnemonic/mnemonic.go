// Package mnemonic handles the encrypted-at-rest service mnemonic. The key
// schedule is PBKDF2-HMAC-SHA256 over the operator passphrase, the payload
// is AES-256-GCM, base64-encoded as nonce||ciphertext.
package mnemonic

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfIterations = 100000
	kdfKeyLen     = 32
)

// kdfSalt is fixed: the encryption key itself is the secret input.
var kdfSalt = []byte("wallet-service-salt")

// ErrSecurity wraps any failure to recover the mnemonic. It is fatal at
// service startup.
var ErrSecurity = errors.New("mnemonic security error")

// Decrypt recovers the clear mnemonic from its base64 envelope.
func Decrypt(encrypted, encryptionKey string) (string, error) {
	if encryptionKey == "" {
		return "", fmt.Errorf("%w: encryption key not set", ErrSecurity)
	}
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: bad envelope encoding: %s", ErrSecurity, err)
	}

	aead, err := newAEAD(encryptionKey)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("%w: envelope too short", ErrSecurity)
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	clear, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrSecurity, err)
	}
	return string(clear), nil
}

// Encrypt produces the envelope Decrypt understands. Used by the key
// rotation tooling and tests.
func Encrypt(clear, encryptionKey string) (string, error) {
	if encryptionKey == "" {
		return "", fmt.Errorf("%w: encryption key not set", ErrSecurity)
	}
	aead, err := newAEAD(encryptionKey)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: %s", ErrSecurity, err)
	}
	sealed := aead.Seal(nil, nonce, []byte(clear), nil)
	return base64.StdEncoding.EncodeToString(append(nonce, sealed...)), nil
}

func newAEAD(encryptionKey string) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(encryptionKey), kdfSalt, kdfIterations, kdfKeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSecurity, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSecurity, err)
	}
	return aead, nil
}
