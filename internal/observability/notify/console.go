package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

// Console prints notifications as coloured one-line banners.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	info    *color.Color
	success *color.Color
	failure *color.Color
}

// NewConsole writes to w. Colour follows fatih/color's terminal detection
// unless noColor forces it off.
func NewConsole(w io.Writer, noColor bool) *Console {
	c := &Console{
		w:       w,
		info:    color.New(color.FgCyan),
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed, color.Bold),
	}
	if noColor {
		c.info.DisableColor()
		c.success.DisableColor()
		c.failure.DisableColor()
	}
	return c
}

// Deliver implements Sink.
func (c *Console) Deliver(_ context.Context, n ports.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		mark string
		col  *color.Color
	)
	switch n.Level {
	case ports.LevelError:
		mark, col = "✗", c.failure
	case ports.LevelSuccess:
		mark, col = "✓", c.success
	default:
		mark, col = "•", c.info
	}
	_, err := fmt.Fprintln(c.w, col.Sprintf("%s %s", mark, n.Message))
	return err
}
