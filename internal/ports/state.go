package ports

// Package ports defines the interfaces (hexagonal ports) the client core depends on.
// Implementations live in internal/adapters; orchestration in internal/store.

import (
	"context"
	"errors"
)

// ErrStorageUnavailable is returned by storage adapters that have been closed or
// whose backend cannot be reached at all.
var ErrStorageUnavailable = errors.New("state storage unavailable")

// StateStorage is the persistent key/value store shared by every client context
// (process, terminal, tab) of one user. Values are opaque strings, usually JSON.
type StateStorage interface {
	// Get returns the value for key. ok is false when the key does not exist.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes the keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Watch calls onChange for every key written or deleted by another client
	// context. An empty key means any key may have changed. Writes made through
	// this handle are not reported back to it. stop releases the subscription.
	Watch(ctx context.Context, onChange func(key string)) (stop func(), err error)
}
