package store

import (
	"encoding/json"

	"github.com/AI-Team-Dev/jobportal/internal/domain/auth"
	"github.com/AI-Team-Dev/jobportal/internal/domain/membership"
	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
)

// Reason distinguishes why an operation did not succeed.
type Reason string

const (
	ReasonNotLoggedIn                Reason = "not_logged_in"
	ReasonProfileIncomplete          Reason = "profile_incomplete"
	ReasonProfileRequirementsMissing Reason = "profile_requirements_missing"
	ReasonNotAuthenticated           Reason = "not_authenticated"
	ReasonInvalidData                Reason = "invalid_data"
	ReasonNetworkError               Reason = "network_error"
	ReasonFailed                     Reason = "failed"
	ReasonUnauthorized               Reason = "unauthorized"
	ReasonInvalidResponse            Reason = "invalid_response"
	ReasonSkipped                    Reason = "skipped"
	ReasonForbidden                  Reason = "forbidden"
)

// User-facing messages.
const (
	msgInvalidResponse   = "Invalid response from server"
	msgLoginFailed       = "Login failed"
	msgSignupFailed      = "Signup failed"
	msgOTPFailed         = "OTP verification failed"
	msgResendFailed      = "Failed to resend OTP"
	msgApplyFailed       = "Failed to apply"
	msgJobsFailed        = "Failed to load jobs"
	msgApplicationsFail  = "Failed to fetch applications"
	msgUnauthorized      = "Unauthorized"
	msgJobUpdateFailed   = "Failed to update job"
	msgNotLoggedIn       = "Please log in as an applicant first."
	msgProfileIncomplete = "Please complete your profile before applying."
	msgProfileMissing    = "Please upload a resume and add at least one education entry with degree and institution."
	msgAddJobNoToken     = "You must be logged in to create a job. Please log in and try again."
	msgAddJobAuth        = "Authentication failed. Please log in again."
	msgAddJobInvalid     = "Invalid job data. Please check all fields."
	msgAddJobNetwork     = "Cannot connect to server. Please check if the backend is running."
	msgAddJobFailed      = "Failed to create job. Please try again."
)

// Result is the outcome of a store operation. Operations never return raw
// errors; Err carries the underlying cause when there is one.
type Result struct {
	OK      bool
	Reason  Reason
	Message string
	Err     error
	// Data is the raw backend payload for signup, verify, resend and job creation.
	Data json.RawMessage
	// Saved is the resulting saved state for ToggleSaveJob.
	Saved bool
}

func ok() Result { return Result{OK: true} }

func fail(reason Reason, message string, err error) Result {
	return Result{Reason: reason, Message: message, Err: err}
}

// Snapshot is a detached copy of the whole store state.
type Snapshot struct {
	Jobs        []model.Job
	JobsLoading bool
	JobsError   string

	HR          auth.Session
	Applicant   auth.Session
	User        *auth.User
	AuthLoading bool
	AuthError   string

	Profile model.ApplicantProfile
	Applied membership.Applied
	Saved   membership.Saved
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.snapshot()
}

func (st *state) snapshot() Snapshot {
	snap := Snapshot{
		Jobs:        cloneJobs(st.jobs),
		JobsLoading: st.jobsLoading,
		JobsError:   st.jobsError,
		HR:          st.hr,
		Applicant:   st.applicant,
		AuthLoading: st.authLoading,
		AuthError:   st.authError,
		Profile:     st.profile.Clone(),
		Applied:     st.applied.Clone(),
		Saved:       st.saved.Clone(),
	}
	if st.user != nil {
		u := cloneUser(*st.user)
		snap.User = &u
	}
	return snap
}

func cloneJobs(in []model.Job) []model.Job {
	out := make([]model.Job, len(in))
	for i, j := range in {
		out[i] = j.Clone()
	}
	return out
}
