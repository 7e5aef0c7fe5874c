// Package notify delivers user-facing notifications (toasts, banners) to one or
// more sinks: the terminal, the structured log, or a chat webhook.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

// Sink describes a destination capable of delivering a notification.
type Sink interface {
	Deliver(ctx context.Context, n ports.Notification) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, n ports.Notification) error

// Deliver implements the Sink interface.
func (f SinkFunc) Deliver(ctx context.Context, n ports.Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, n)
}

// Registration pairs a sink with a name for logging and the lowest level it
// receives.
type Registration struct {
	Name     string
	Sink     Sink
	MinLevel ports.Level // empty means every level
}

// Options configures the Dispatcher.
type Options struct {
	Logger *slog.Logger
	Sinks  []Registration
}

// Dispatcher fans notifications out to every registered sink. It implements
// ports.Notifier.
type Dispatcher struct {
	logger *slog.Logger
	sinks  []Registration
}

// NewDispatcher constructs a Dispatcher. Nil sinks are dropped.
func NewDispatcher(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "notifier")
	}

	var sinks []Registration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		if entry.Name == "" {
			entry.Name = "sink"
		}
		sinks = append(sinks, entry)
	}

	return &Dispatcher{logger: logger, sinks: sinks}
}

// Notify delivers n to every sink whose minimum level it meets and waits for
// all deliveries. Delivery errors are logged.
func (d *Dispatcher) Notify(ctx context.Context, n ports.Notification) {
	if len(d.sinks) == 0 || n.Message == "" {
		return
	}
	if n.Level == "" {
		n.Level = ports.LevelInfo
	}

	var wg sync.WaitGroup
	for _, entry := range d.sinks {
		if rank(n.Level) < rank(entry.MinLevel) {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.Deliver(ctx, n); err != nil {
				d.logger.ErrorContext(ctx, "notification delivery error",
					"sink", entry.Name,
					"source", n.Source,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the dispatcher has any active sinks.
func (d *Dispatcher) Enabled() bool {
	return len(d.sinks) > 0
}

func rank(l ports.Level) int {
	switch l {
	case ports.LevelError:
		return 2
	case ports.LevelSuccess:
		return 1
	default:
		return 0
	}
}

var _ ports.Notifier = (*Dispatcher)(nil)
