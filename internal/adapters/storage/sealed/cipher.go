package sealed

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Cipher encrypts and decrypts stored values.
type Cipher interface {
	Seal(plaintext []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

// The version prefix leaves room for key or algorithm rotation.
const (
	prefixV1    = "v1:"
	prefixPlain = "plain:"
)

// ErrNotSealed is returned by Open for values without a known prefix.
var ErrNotSealed = errors.New("value is not sealed")

// AESGCM implements Cipher with AES-256-GCM.
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM builds an AESGCM cipher. key must be 32 bytes.
func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("aes-gcm key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCM{aead: aead}, nil
}

// Seal encrypts plaintext under a random nonce and returns "v1:" followed by
// base64(nonce||ciphertext).
func (c *AESGCM) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	buf := c.aead.Seal(nonce, nonce, plaintext, nil)
	return prefixV1 + base64.StdEncoding.EncodeToString(buf), nil
}

// Open reverses Seal. Values written by Plain are accepted as well.
func (c *AESGCM) Open(sealed string) ([]byte, error) {
	if strings.HasPrefix(sealed, prefixPlain) {
		return Plain{}.Open(sealed)
	}
	if !strings.HasPrefix(sealed, prefixV1) {
		return nil, ErrNotSealed
	}
	data, err := base64.StdEncoding.DecodeString(sealed[len(prefixV1):])
	if err != nil {
		return nil, fmt.Errorf("decode sealed value: %w", err)
	}
	n := c.aead.NonceSize()
	if len(data) < n {
		return nil, errors.New("sealed value too short")
	}
	return c.aead.Open(nil, data[:n], data[n:], nil)
}

// Plain marks values without encrypting them. Useful in tests.
type Plain struct{}

func (Plain) Seal(plaintext []byte) (string, error) {
	return prefixPlain + base64.StdEncoding.EncodeToString(plaintext), nil
}

func (Plain) Open(sealed string) ([]byte, error) {
	if !strings.HasPrefix(sealed, prefixPlain) {
		return nil, ErrNotSealed
	}
	return base64.StdEncoding.DecodeString(sealed[len(prefixPlain):])
}
