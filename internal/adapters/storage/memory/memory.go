// Package memory provides an in-process StateStorage. Handles created with Peer
// share one key space and see each other's writes through Watch, which models
// several client contexts attached to the same persistent storage.
package memory

import (
	"context"
	"sync"

	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

type watcher struct {
	origin *Store
	fn     func(key string)
}

type space struct {
	mu       sync.RWMutex
	values   map[string]string
	watchers map[int]watcher
	nextID   int
}

// Store is safe for concurrent use.
type Store struct {
	space *space

	mu     sync.Mutex
	closed bool
}

// New returns an empty store.
func New() *Store {
	return &Store{space: &space{values: map[string]string{}, watchers: map[int]watcher{}}}
}

// Peer returns another handle on the same key space.
func (s *Store) Peer() *Store {
	return &Store{space: s.space}
}

// Close detaches the handle. Later calls return ports.ErrStorageUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.space.mu.Lock()
	for id, w := range s.space.watchers {
		if w.origin == s {
			delete(s.space.watchers, id)
		}
	}
	s.space.mu.Unlock()
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Get implements ports.StateStorage.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := s.check(ctx); err != nil {
		return "", false, err
	}
	s.space.mu.RLock()
	defer s.space.mu.RUnlock()
	v, ok := s.space.values[key]
	return v, ok, nil
}

// Set implements ports.StateStorage.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.space.mu.Lock()
	s.space.values[key] = value
	targets := s.othersLocked()
	s.space.mu.Unlock()
	notify(targets, key)
	return nil
}

// Delete implements ports.StateStorage.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.space.mu.Lock()
	var removed []string
	for _, k := range keys {
		if _, ok := s.space.values[k]; ok {
			delete(s.space.values, k)
			removed = append(removed, k)
		}
	}
	targets := s.othersLocked()
	s.space.mu.Unlock()
	for _, k := range removed {
		notify(targets, k)
	}
	return nil
}

// Watch implements ports.StateStorage. Callbacks run synchronously on the
// writer's goroutine.
func (s *Store) Watch(ctx context.Context, onChange func(key string)) (func(), error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.space.mu.Lock()
	id := s.space.nextID
	s.space.nextID++
	s.space.watchers[id] = watcher{origin: s, fn: onChange}
	s.space.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.space.mu.Lock()
			delete(s.space.watchers, id)
			s.space.mu.Unlock()
		})
	}, nil
}

// Keys returns the stored keys. Test helper.
func (s *Store) Keys() []string {
	s.space.mu.RLock()
	defer s.space.mu.RUnlock()
	out := make([]string, 0, len(s.space.values))
	for k := range s.space.values {
		out = append(out, k)
	}
	return out
}

func (s *Store) othersLocked() []func(string) {
	var out []func(string)
	for _, w := range s.space.watchers {
		if w.origin != s {
			out = append(out, w.fn)
		}
	}
	return out
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.isClosed() {
		return ports.ErrStorageUnavailable
	}
	return nil
}

func notify(targets []func(string), key string) {
	for _, fn := range targets {
		fn(key)
	}
}

var _ ports.StateStorage = (*Store)(nil)
