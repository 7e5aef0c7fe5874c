package bootstrap

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/AI-Team-Dev/jobportal/internal/adapters/storage/sealed"
)

// CreateCipher builds the AES-GCM cipher for sealed storage. A 64 character
// hex key is decoded as is; any other key is hashed down to 32 bytes.
func CreateCipher(key string) (*sealed.AESGCM, error) {
	if key == "" {
		return nil, errors.New("encryption key is required")
	}
	var keyBytes []byte
	if decoded, err := hex.DecodeString(key); err == nil && len(decoded) == 32 {
		keyBytes = decoded
	} else {
		hash := sha256.Sum256([]byte(key))
		keyBytes = hash[:]
	}
	return sealed.NewAESGCM(keyBytes)
}
