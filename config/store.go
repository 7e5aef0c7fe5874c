package config

import "time"

// StoreConfig tunes application store behaviour.
type StoreConfig struct {
	// SaveRequiresLogin rejects bookmark toggles without an applicant session.
	// When false, anonymous toggles are kept locally.
	SaveRequiresLogin bool `env:"SAVE_REQUIRES_LOGIN" envDefault:"true"`

	// RollbackOnFailure restores a job when its optimistic backend write fails.
	RollbackOnFailure bool `env:"ROLLBACK_ON_FAILURE" envDefault:"false"`

	ApplicantRefreshDelay time.Duration `env:"APPLICANT_REFRESH_DELAY" envDefault:"100ms"`
	ApplyRefreshDelay     time.Duration `env:"APPLY_REFRESH_DELAY"     envDefault:"500ms"`
	JobsRetryDelay        time.Duration `env:"JOBS_RETRY_DELAY"        envDefault:"5s"`
}

// Sanitize clamps the delays to sane bounds.
func (s *StoreConfig) Sanitize() {
	s.ApplicantRefreshDelay = clampDuration(s.ApplicantRefreshDelay, 0, time.Minute)
	s.ApplyRefreshDelay = clampDuration(s.ApplyRefreshDelay, 0, time.Minute)
	if s.JobsRetryDelay <= 0 {
		s.JobsRetryDelay = 5 * time.Second
	}
	s.JobsRetryDelay = clampDuration(s.JobsRetryDelay, 100*time.Millisecond, time.Hour)
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
