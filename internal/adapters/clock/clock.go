// Package clock provides ports.Clock implementations: the system clock and a
// manually advanced clock for tests.
package clock

import (
	"sort"
	"sync"
	"time"

	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

var (
	_ ports.Clock = System{}
	_ ports.Clock = (*Manual)(nil)
)

// System implements ports.Clock using real system time.
type System struct{}

// Now returns the current system time.
func (System) Now() time.Time { return time.Now() }

// AfterFunc schedules f on its own goroutine after d.
func (System) AfterFunc(d time.Duration, f func()) ports.Timer {
	return time.AfterFunc(d, f)
}

// Manual is a clock that only moves when Advance or Set is called. Deferred calls
// whose deadline is reached run synchronously inside Advance, in deadline order.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

// NewManual creates a Manual clock starting at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc registers f to run once the clock has advanced by d.
func (m *Manual) AfterFunc(d time.Duration, f func()) ports.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{clock: m, at: m.now.Add(d), seq: m.seq, fn: f}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward by d and runs every due call.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()
	m.Set(target)
}

// Set moves the clock to t and runs every due call. Moving backwards only
// changes Now.
func (m *Manual) Set(t time.Time) {
	for {
		m.mu.Lock()
		due := m.nextDueLocked(t)
		if due == nil {
			m.now = t
			m.mu.Unlock()
			return
		}
		if due.at.After(m.now) {
			m.now = due.at
		}
		m.removeLocked(due)
		m.mu.Unlock()
		due.fn()
	}
}

// Pending returns the number of scheduled calls that have not fired.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

func (m *Manual) nextDueLocked(limit time.Time) *manualTimer {
	if len(m.timers) == 0 {
		return nil
	}
	sort.Slice(m.timers, func(i, j int) bool {
		if !m.timers[i].at.Equal(m.timers[j].at) {
			return m.timers[i].at.Before(m.timers[j].at)
		}
		return m.timers[i].seq < m.timers[j].seq
	})
	if m.timers[0].at.After(limit) {
		return nil
	}
	return m.timers[0]
}

func (m *Manual) removeLocked(t *manualTimer) bool {
	for i, cur := range m.timers {
		if cur == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return true
		}
	}
	return false
}

type manualTimer struct {
	clock *Manual
	at    time.Time
	seq   int
	fn    func()
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.clock.removeLocked(t)
}
