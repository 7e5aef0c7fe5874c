// Package mirror persists named slices of client state to a StateStorage and
// reports when another client context changes them.
//
// Storage is best effort: write failures are logged and swallowed, and reads
// fall back to the caller's default on a missing key or undecodable value.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	apperrors "github.com/AI-Team-Dev/jobportal/internal/errors"
	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

// Slice names a persisted piece of state. The values are the storage keys.
type Slice string

// Registered slices.
const (
	SliceAuth                  Slice = "authState"
	SliceApplicantAuth         Slice = "applicantAuthState"
	SliceApplicantProfile      Slice = "applicantProfileState"
	SliceApplicantApplications Slice = "applicantApplicationsState"
	SliceApplicantSavedJobs    Slice = "applicantSavedJobsState"
	SliceUser                  Slice = "authUser"
)

// LegacyJobsKey held a cached job list in older releases. It is deleted on
// startup and never read.
const LegacyJobsKey = "jobsState"

// Slices lists every registered slice in a stable order.
func Slices() []Slice {
	return []Slice{
		SliceAuth,
		SliceApplicantAuth,
		SliceApplicantProfile,
		SliceApplicantApplications,
		SliceApplicantSavedJobs,
		SliceUser,
	}
}

// Registered reports whether s is a known slice.
func Registered(s Slice) bool {
	return slices.Contains(Slices(), s)
}

// Options configures Mirror.
type Options struct {
	Storage ports.StateStorage
	// WatchKeys are extra storage keys (outside the slice registry) whose
	// external changes also trigger the change callback, e.g. the token key.
	WatchKeys []string
	Logger    *slog.Logger
}

// Mirror is safe for concurrent use.
type Mirror struct {
	storage   ports.StateStorage
	watchKeys []string
	logger    *slog.Logger

	mu    sync.Mutex
	stops []func()
}

// New constructs a Mirror.
func New(opts Options) *Mirror {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		storage:   opts.Storage,
		watchKeys: slices.Clone(opts.WatchKeys),
		logger:    logger.With("component", "mirror"),
	}
}

func (m *Mirror) check(op string, s Slice) bool {
	if Registered(s) {
		return true
	}
	m.logger.Warn("rejected unregistered slice",
		"op", op,
		"key", string(s),
		"error", apperrors.ValidationField("slice", "unregistered slice"),
	)
	return false
}

// Write serializes v and stores it under s.
func (m *Mirror) Write(ctx context.Context, s Slice, v any) {
	if !m.check("write", s) || m.storage == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		m.logger.WarnContext(ctx, "serialize slice failed", "key", string(s), "error", err)
		return
	}
	if err := m.storage.Set(ctx, string(s), string(raw)); err != nil {
		m.logger.WarnContext(ctx, "persist slice failed", "key", string(s), "error", err)
	}
}

// Read decodes the stored value of s into out. It returns false, leaving out
// untouched, when the key is missing or the value cannot be decoded; callers
// pre-fill out with their fallback.
func (m *Mirror) Read(ctx context.Context, s Slice, out any) bool {
	if !m.check("read", s) || m.storage == nil {
		return false
	}
	raw, ok, err := m.storage.Get(ctx, string(s))
	if err != nil {
		m.logger.WarnContext(ctx, "read slice failed", "key", string(s), "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := decodeInto([]byte(raw), out); err != nil {
		m.logger.WarnContext(ctx, "decode slice failed", "key", string(s), "error", err)
		return false
	}
	return true
}

// decodeInto unmarshals into a scratch value first so a partial decode never
// clobbers the fallback.
func decodeInto(raw []byte, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return apperrors.Internal("decode target must be a non-nil pointer")
	}
	if string(bytes.TrimSpace(raw)) == "null" {
		return apperrors.Validation("null value")
	}
	scratch := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(raw, scratch.Interface()); err != nil {
		return err
	}
	rv.Elem().Set(scratch.Elem())
	return nil
}

// Remove deletes s.
func (m *Mirror) Remove(ctx context.Context, s Slice) {
	if !m.check("remove", s) || m.storage == nil {
		return
	}
	if err := m.storage.Delete(ctx, string(s)); err != nil {
		m.logger.WarnContext(ctx, "remove slice failed", "key", string(s), "error", err)
	}
}

// Clear deletes every registered slice.
func (m *Mirror) Clear(ctx context.Context) {
	if m.storage == nil {
		return
	}
	keys := make([]string, 0, len(Slices()))
	for _, s := range Slices() {
		keys = append(keys, string(s))
	}
	if err := m.storage.Delete(ctx, keys...); err != nil {
		m.logger.WarnContext(ctx, "clear slices failed", "error", err)
	}
}

// PurgeLegacy deletes the legacy cached job list.
func (m *Mirror) PurgeLegacy(ctx context.Context) {
	if m.storage == nil {
		return
	}
	if err := m.storage.Delete(ctx, LegacyJobsKey); err != nil {
		m.logger.WarnContext(ctx, "purge legacy slice failed", "key", LegacyJobsKey, "error", err)
	}
}

// SubscribeExternalChange calls fn whenever another client context changes a
// registered slice or one of the extra watch keys. fn receives no payload; it
// is expected to re-read everything it cares about.
func (m *Mirror) SubscribeExternalChange(ctx context.Context, fn func()) (func(), error) {
	if m.storage == nil {
		return func() {}, nil
	}
	stop, err := m.storage.Watch(ctx, func(key string) {
		if key != "" && !m.relevant(key) {
			return
		}
		fn()
	})
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.stops = append(m.stops, stop)
	m.mu.Unlock()
	return stop, nil
}

func (m *Mirror) relevant(key string) bool {
	return Registered(Slice(key)) || slices.Contains(m.watchKeys, key)
}

// Close stops every subscription created through this mirror.
func (m *Mirror) Close() {
	m.mu.Lock()
	stops := m.stops
	m.stops = nil
	m.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
}
