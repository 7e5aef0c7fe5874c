// Package token holds the bearer credential used for backend calls.
//
// The in-memory copy is authoritative. The persisted copy only lets a freshly
// started process pick up a credential left by a previous run; after Clear it is
// gone for good.
package token

import (
	"context"
	"log/slog"
	"sync"

	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

// StorageKey is the key the credential is persisted under.
const StorageKey = "jwtToken"

// HolderOptions groups dependencies for Holder.
type HolderOptions struct {
	Storage ports.StateStorage
	Key     string // optional; defaults to StorageKey
	Logger  *slog.Logger
}

// Holder is safe for concurrent use.
type Holder struct {
	storage ports.StateStorage
	key     string
	logger  *slog.Logger

	mu     sync.Mutex
	token  string
	loaded bool
}

// NewHolder constructs a Holder. A nil storage keeps the credential in memory only.
func NewHolder(opts HolderOptions) *Holder {
	key := opts.Key
	if key == "" {
		key = StorageKey
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Holder{storage: opts.Storage, key: key, logger: logger.With("component", "token_holder")}
}

// Get returns the current credential. When the in-memory value is empty the
// persisted copy is read once.
func (h *Holder) Get(ctx context.Context) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.token == "" && !h.loaded {
		h.token = h.readLocked(ctx)
		h.loaded = true
	}
	return h.token
}

// Set replaces the credential and persists it. An empty value behaves like Clear.
func (h *Holder) Set(ctx context.Context, token string) {
	if token == "" {
		h.Clear(ctx)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
	h.loaded = true
	if h.storage == nil {
		return
	}
	if err := h.storage.Set(ctx, h.key, token); err != nil {
		h.logger.WarnContext(ctx, "failed to persist token", "key", h.key, "error", err)
	}
}

// Clear empties the credential and erases the persisted copy. A cleared holder
// does not lazily reload a stale value afterwards.
func (h *Holder) Clear(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = ""
	h.loaded = true
	if h.storage == nil {
		return
	}
	if err := h.storage.Delete(ctx, h.key); err != nil {
		h.logger.WarnContext(ctx, "failed to erase persisted token", "key", h.key, "error", err)
	}
}

// Reload re-reads the persisted copy, replacing the in-memory value. Used when
// another client context changed the shared storage.
func (h *Holder) Reload(ctx context.Context) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = h.readLocked(ctx)
	h.loaded = true
	return h.token
}

// Key returns the storage key the credential is persisted under.
func (h *Holder) Key() string { return h.key }

func (h *Holder) readLocked(ctx context.Context) string {
	if h.storage == nil {
		return ""
	}
	v, ok, err := h.storage.Get(ctx, h.key)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read persisted token", "key", h.key, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}
