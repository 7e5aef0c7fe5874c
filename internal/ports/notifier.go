package ports

import "context"

// Level is the severity of a user-facing notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a transient message for the user (a toast or banner).
type Notification struct {
	Level   Level
	Source  string // operation that raised it, e.g. "login_hr"
	Message string
}

// Notifier is the side channel store operations use to surface errors without
// returning them through the call chain.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to the Notifier interface (useful for tests).
type NotifierFunc func(ctx context.Context, n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	if f != nil {
		f(ctx, n)
	}
}
