package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StorageBackend selects where persisted client state lives.
type StorageBackend string

const (
	// StorageMemory keeps state for the life of the process only.
	StorageMemory StorageBackend = "memory"
	// StorageFile keeps one file per key under Dir; other processes see changes.
	StorageFile StorageBackend = "file"
	// StorageRedis shares state through Redis keys and pub/sub.
	StorageRedis StorageBackend = "redis"
	// StoragePostgres shares state through a table and LISTEN/NOTIFY.
	StoragePostgres StorageBackend = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for StorageBackend.
func (b *StorageBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch StorageBackend(v) {
	case StorageMemory, StorageFile, StorageRedis, StoragePostgres:
		*b = StorageBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid StorageBackend: %q (valid options: memory, file, redis, postgres)", v)
	}
}

// StorageConfig controls the persisted state backend.
type StorageConfig struct {
	Backend StorageBackend `env:"BACKEND" envDefault:"file"`

	// Dir is the file backend root. Empty resolves to the XDG state directory.
	Dir string `env:"DIR"`

	// Namespace prefixes keys and names the change channel for redis and postgres.
	Namespace string `env:"NAMESPACE" envDefault:"jobportal"`

	// EncryptionKey enables AES-GCM sealing of stored values. A 64 character
	// hex string is used as the raw key; anything else is hashed.
	EncryptionKey string `env:"ENCRYPTION_KEY"`
	// AcceptPlaintext keeps values written before sealing was enabled readable.
	AcceptPlaintext bool `env:"ACCEPT_PLAINTEXT" envDefault:"true"`
}

// Sanitize fills the directory and namespace defaults.
func (s *StorageConfig) Sanitize() {
	if s.Backend == "" {
		s.Backend = StorageFile
	}
	s.Dir = strings.TrimSpace(s.Dir)
	if s.Dir == "" {
		s.Dir = defaultStateDir()
	}
	s.EncryptionKey = strings.TrimSpace(s.EncryptionKey)
	s.Namespace = strings.TrimSpace(s.Namespace)
	if s.Namespace == "" {
		s.Namespace = "jobportal"
	}
}

func defaultStateDir() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "jobportal")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "jobportal")
	}
	return filepath.Join(home, ".local", "state", "jobportal")
}
