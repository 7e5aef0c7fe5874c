package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

type recorder struct {
	mu   sync.Mutex
	seen []ports.Notification
}

func (r *recorder) Deliver(_ context.Context, n ports.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
	return nil
}

func TestDispatcherRespectsMinLevel(t *testing.T) {
	all, errorsOnly := &recorder{}, &recorder{}
	d := NewDispatcher(Options{Sinks: []Registration{
		{Name: "all", Sink: all},
		{Name: "errors", Sink: errorsOnly, MinLevel: ports.LevelError},
		{Name: "nil"},
	}})
	require.True(t, d.Enabled())

	ctx := context.Background()
	d.Notify(ctx, ports.Notification{Level: ports.LevelSuccess, Source: "apply", Message: "Application submitted"})
	d.Notify(ctx, ports.Notification{Level: ports.LevelError, Source: "login_hr", Message: "Invalid email or password"})
	d.Notify(ctx, ports.Notification{Message: "Your session has expired. Please log in again."})
	d.Notify(ctx, ports.Notification{Level: ports.LevelError})

	assert.Len(t, all.seen, 3)
	assert.Equal(t, ports.LevelInfo, all.seen[2].Level, "missing level defaults to info")
	require.Len(t, errorsOnly.seen, 1)
	assert.Equal(t, "login_hr", errorsOnly.seen[0].Source)
}

func TestDispatcherLogsSinkErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ok := &recorder{}
	d := NewDispatcher(Options{
		Logger: logger,
		Sinks: []Registration{
			{Name: "broken", Sink: SinkFunc(func(context.Context, ports.Notification) error { return errors.New("webhook down") })},
			{Name: "ok", Sink: ok},
		},
	})

	d.Notify(context.Background(), ports.Notification{Level: ports.LevelError, Source: "apply", Message: "boom"})

	assert.Len(t, ok.seen, 1, "one failing sink does not block the others")
	assert.Contains(t, buf.String(), "webhook down")
	assert.Contains(t, buf.String(), `"sink":"broken"`)
}

func TestDispatcherWithoutSinks(t *testing.T) {
	d := NewDispatcher(Options{})
	assert.False(t, d.Enabled())
	d.Notify(context.Background(), ports.Notification{Message: "ignored"})
}

func TestConsoleFormatsByLevel(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true)
	ctx := context.Background()

	require.NoError(t, c.Deliver(ctx, ports.Notification{Level: ports.LevelError, Message: "Failed to load jobs"}))
	require.NoError(t, c.Deliver(ctx, ports.Notification{Level: ports.LevelSuccess, Message: "Application submitted"}))
	require.NoError(t, c.Deliver(ctx, ports.Notification{Level: ports.LevelInfo, Message: "Your session has expired. Please log in again."}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"✗ Failed to load jobs",
		"✓ Application submitted",
		"• Your session has expired. Please log in again.",
	}, lines)
}

func TestLogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, l.Deliver(context.Background(), ports.Notification{Level: ports.LevelError, Source: "apply", Message: "nope"}))
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"source":"apply"`)
}
