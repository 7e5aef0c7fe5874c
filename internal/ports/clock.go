package ports

import "time"

// Timer is a pending deferred call.
type Timer interface {
	// Stop prevents the call from firing. It returns false if the call already
	// fired or was stopped.
	Stop() bool
}

// Clock provides time and deferred execution so tests can control both.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}
