// Package redis provides a Redis-backed StateStorage. Writes are announced on a
// pub/sub channel so other client contexts sharing the namespace can rehydrate.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/AI-Team-Dev/jobportal/internal/errors"
	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

// DefaultNamespace prefixes keys and names the change channel.
const DefaultNamespace = "jobportal"

// change is the pub/sub payload.
type change struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
}

// Options configures StateStore.
type Options struct {
	Client    redis.UniversalClient
	Namespace string
	Logger    *slog.Logger
}

// StateStore is safe for concurrent use.
type StateStore struct {
	client  redis.UniversalClient
	prefix  string
	channel string
	origin  string
	logger  *slog.Logger
}

// NewStateStore constructs a StateStore. Each instance has its own origin id so
// it can skip its own change announcements.
func NewStateStore(opts Options) (*StateStore, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	ns := strings.Trim(strings.TrimSpace(opts.Namespace), ":")
	if ns == "" {
		ns = DefaultNamespace
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StateStore{
		client:  opts.Client,
		prefix:  ns + ":state:",
		channel: ns + ":changes",
		origin:  uuid.NewString(),
		logger:  logger.With("component", "redis_storage", "namespace", ns),
	}, nil
}

// Channel returns the pub/sub channel name.
func (s *StateStore) Channel() string { return s.channel }

// Get implements ports.StateStorage.
func (s *StateStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, apperrors.Storage(err, "redis get")
	}
	return v, true, nil
}

// Set implements ports.StateStorage. Values do not expire.
func (s *StateStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return apperrors.Validation("key cannot be empty")
	}
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return apperrors.Storage(err, "redis set")
	}
	s.announce(ctx, key)
	return nil
}

// Delete implements ports.StateStorage.
func (s *StateStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.prefix + k
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return apperrors.Storage(err, "redis del")
	}
	for _, k := range keys {
		s.announce(ctx, k)
	}
	return nil
}

// announce is best effort: a lost notification only delays other contexts.
func (s *StateStore) announce(ctx context.Context, key string) {
	payload, err := json.Marshal(change{Origin: s.origin, Key: key})
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		s.logger.WarnContext(ctx, "publish state change failed", "key", key, "error", err)
	}
}

// Watch subscribes to the change channel.
func (s *StateStore) Watch(ctx context.Context, onChange func(key string)) (func(), error) {
	sub := s.client.Subscribe(ctx, s.channel)
	// Receive blocks until the subscription is confirmed so no change published
	// after Watch returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, apperrors.Storage(err, "redis subscribe")
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ch := sub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				s.dispatch(msg.Payload, onChange)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			if err := sub.Close(); err != nil {
				s.logger.Debug("close subscription", "error", err)
			}
			wg.Wait()
		})
	}, nil
}

func (s *StateStore) dispatch(payload string, onChange func(string)) {
	var c change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		s.logger.Debug("ignoring malformed change", "error", fmt.Errorf("decode: %w", err))
		onChange("")
		return
	}
	if c.Origin == s.origin {
		return
	}
	onChange(c.Key)
}

// Health pings the server.
func (s *StateStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ ports.StateStorage = (*StateStore)(nil)
