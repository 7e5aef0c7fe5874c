// Package sealed wraps a StateStorage so values are encrypted at rest. Keys
// stay in the clear so change notifications keep working.
package sealed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

// Options configures Wrap.
type Options struct {
	Cipher Cipher
	// AcceptPlaintext returns unsealed values as-is so state written before
	// encryption was enabled stays readable. They are sealed on the next write.
	AcceptPlaintext bool
	Logger          *slog.Logger
}

// Store is a StateStorage decorator.
type Store struct {
	inner  ports.StateStorage
	cipher Cipher
	plain  bool
	logger *slog.Logger
}

// Wrap returns inner with sealing applied.
func Wrap(inner ports.StateStorage, opts Options) (*Store, error) {
	if inner == nil {
		return nil, errors.New("inner storage is required")
	}
	if opts.Cipher == nil {
		return nil, errors.New("cipher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		inner:  inner,
		cipher: opts.Cipher,
		plain:  opts.AcceptPlaintext,
		logger: logger.With("component", "sealed_storage"),
	}, nil
}

// Get implements ports.StateStorage. A value that cannot be opened is
// reported as missing, the same way a corrupt slice is.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	pt, err := s.cipher.Open(raw)
	switch {
	case err == nil:
		return string(pt), true, nil
	case errors.Is(err, ErrNotSealed) && s.plain:
		return raw, true, nil
	default:
		s.logger.WarnContext(ctx, "cannot open stored value", "key", key, "error", err)
		return "", false, nil
	}
}

// Set implements ports.StateStorage.
func (s *Store) Set(ctx context.Context, key, value string) error {
	sealed, err := s.cipher.Seal([]byte(value))
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return s.inner.Set(ctx, key, sealed)
}

// Delete implements ports.StateStorage.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	return s.inner.Delete(ctx, keys...)
}

// Watch implements ports.StateStorage.
func (s *Store) Watch(ctx context.Context, onChange func(key string)) (func(), error) {
	return s.inner.Watch(ctx, onChange)
}

var _ ports.StateStorage = (*Store)(nil)
