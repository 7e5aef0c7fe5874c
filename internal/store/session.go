package store

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/AI-Team-Dev/jobportal/internal/domain/auth"
	"github.com/AI-Team-Dev/jobportal/internal/domain/membership"
	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
	apperrors "github.com/AI-Team-Dev/jobportal/internal/errors"
	"github.com/AI-Team-Dev/jobportal/internal/mirror"
	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

// LoginHR exchanges credentials for an HR session.
func (s *Store) LoginHR(ctx context.Context, in auth.Credentials) Result {
	return s.instrument("login_hr", func() Result {
		s.beginAuth(ctx)
		res, err := s.gw.LoginHR(ctx, in)
		if r, failed := s.authFailure(ctx, "login_hr", res, err, msgLoginFailed); failed {
			return r
		}
		s.establishHR(ctx, res, in.Email)
		return ok()
	})
}

// LoginApplicant exchanges credentials for an applicant session. The local
// profile is seeded from the server copy when the response carries one,
// otherwise only its email is filled in. Applicant data is refreshed shortly
// after.
func (s *Store) LoginApplicant(ctx context.Context, in auth.Credentials) Result {
	return s.instrument("login_applicant", func() Result {
		s.beginAuth(ctx)
		res, err := s.gw.LoginApplicant(ctx, in)
		if r, failed := s.authFailure(ctx, "login_applicant", res, err, msgLoginFailed); failed {
			return r
		}

		email := res.User.Email
		if email == "" {
			email = in.Email
		}
		user := cloneUser(*res.User)
		s.tokens.Set(ctx, res.Token)
		s.update(ctx, func(st *state) []mirror.Slice {
			st.applicant = auth.ApplicantSession(email)
			st.user = &user
			st.authLoading = false
			st.authError = ""
			if user.Profile != nil {
				seeded := user.Profile.Clone()
				seeded.Completed = seeded.Completed || st.profile.Completed
				st.profile = seeded
			} else {
				st.profile = model.ProfilePatch{Email: &email}.Apply(st.profile)
			}
			return []mirror.Slice{mirror.SliceApplicantAuth, mirror.SliceUser, mirror.SliceApplicantProfile}
		})

		s.FetchJobs(ctx)
		s.after(s.policy.ApplicantRefreshDelay, func(ctx context.Context) {
			s.FetchApplicantData(ctx)
		})
		return ok()
	})
}

// SignupHR creates an HR account. No session is established.
func (s *Store) SignupHR(ctx context.Context, in model.HRSignup) Result {
	return s.instrument("signup_hr", func() Result {
		return s.authCall(ctx, "signup_hr", msgSignupFailed, func() (json.RawMessage, error) {
			return s.gw.SignupHR(ctx, in)
		})
	})
}

// SignupApplicant creates an applicant account. The account stays inactive
// until VerifyApplicantOTP succeeds.
func (s *Store) SignupApplicant(ctx context.Context, in model.ApplicantSignup) Result {
	return s.instrument("signup_applicant", func() Result {
		return s.authCall(ctx, "signup_applicant", msgSignupFailed, func() (json.RawMessage, error) {
			return s.gw.SignupApplicant(ctx, in)
		})
	})
}

// VerifyHROTP completes HR signup. A response carrying a token and user
// establishes the HR session exactly like LoginHR.
func (s *Store) VerifyHROTP(ctx context.Context, in model.OTPVerification) Result {
	return s.instrument("verify_hr", func() Result {
		var login auth.LoginResult
		r := s.authCall(ctx, "verify_hr", msgOTPFailed, func() (json.RawMessage, error) {
			var (
				raw json.RawMessage
				err error
			)
			login, raw, err = s.gw.VerifyHROTP(ctx, in)
			return raw, err
		})
		if r.OK && login.Valid() {
			s.establishHR(ctx, login, in.Email)
		}
		return r
	})
}

// VerifyApplicantOTP completes applicant signup.
func (s *Store) VerifyApplicantOTP(ctx context.Context, in model.OTPVerification) Result {
	return s.instrument("verify_applicant", func() Result {
		return s.authCall(ctx, "verify_applicant", msgOTPFailed, func() (json.RawMessage, error) {
			return s.gw.VerifyApplicantOTP(ctx, in)
		})
	})
}

// ResendHROTP re-sends the HR verification code. Session state is untouched.
func (s *Store) ResendHROTP(ctx context.Context, in model.OTPResend) Result {
	return s.instrument("resend_hr", func() Result {
		return s.resend(ctx, "resend_hr", func() (json.RawMessage, error) {
			return s.gw.ResendHROTP(ctx, in)
		})
	})
}

// ResendApplicantOTP re-sends the applicant verification code.
func (s *Store) ResendApplicantOTP(ctx context.Context, in model.OTPResend) Result {
	return s.instrument("resend_applicant", func() Result {
		return s.resend(ctx, "resend_applicant", func() (json.RawMessage, error) {
			return s.gw.ResendApplicantOTP(ctx, in)
		})
	})
}

// Logout resets every entity to its default, clears the credential and user,
// and erases every persisted slice. Calling it on a clean store is a no-op.
// Jobs the HR session could see but applicants cannot are dropped from the
// list until the next fetch.
func (s *Store) Logout(ctx context.Context) Result {
	return s.instrument("logout", func() Result {
		s.mu.Lock()
		next := initialState()
		for _, j := range s.st.jobs {
			if j.IsEnabled() {
				next.jobs = append(next.jobs, j)
			}
		}
		next.jobsError = s.st.jobsError
		s.st = next
		s.mu.Unlock()

		s.tokens.Clear(ctx)
		s.mirror.Clear(ctx)
		s.publish()
		return ok()
	})
}

func (s *Store) establishHR(ctx context.Context, res auth.LoginResult, fallbackEmail string) {
	email := res.User.Email
	if email == "" {
		email = fallbackEmail
	}
	user := cloneUser(*res.User)
	s.tokens.Set(ctx, res.Token)
	s.update(ctx, func(st *state) []mirror.Slice {
		st.hr = auth.HRSession(email)
		st.user = &user
		st.authLoading = false
		st.authError = ""
		return []mirror.Slice{mirror.SliceAuth, mirror.SliceUser}
	})
	s.FetchJobs(ctx)
}

func (s *Store) beginAuth(ctx context.Context) {
	s.update(ctx, func(st *state) []mirror.Slice {
		st.authLoading = true
		st.authError = ""
		return nil
	})
}

func (s *Store) endAuth(ctx context.Context, message string) {
	s.update(ctx, func(st *state) []mirror.Slice {
		st.authLoading = false
		st.authError = message
		return nil
	})
}

// authFailure settles a failed or malformed login. It reports true when the
// caller should return r.
func (s *Store) authFailure(ctx context.Context, op string, res auth.LoginResult, err error, fallback string) (Result, bool) {
	switch {
	case err != nil:
		msg := apperrors.MessageOf(err, fallback)
		s.endAuth(ctx, msg)
		s.notify(ctx, ports.LevelError, op, msg)
		return fail(reasonOf(err), msg, err), true
	case !res.Valid():
		s.endAuth(ctx, msgInvalidResponse)
		s.notify(ctx, ports.LevelError, op, msgInvalidResponse)
		return fail(ReasonInvalidResponse, msgInvalidResponse, nil), true
	default:
		return Result{}, false
	}
}

// authCall runs a signup or verification request with the session loading
// and error flags.
func (s *Store) authCall(ctx context.Context, op, fallback string, call func() (json.RawMessage, error)) Result {
	s.beginAuth(ctx)
	raw, err := call()
	if err != nil {
		msg := apperrors.MessageOf(err, fallback)
		s.endAuth(ctx, msg)
		s.notify(ctx, ports.LevelError, op, msg)
		return fail(reasonOf(err), msg, err)
	}
	s.endAuth(ctx, "")
	return Result{OK: true, Data: raw}
}

func (s *Store) resend(ctx context.Context, op string, call func() (json.RawMessage, error)) Result {
	raw, err := call()
	if err != nil {
		msg := apperrors.MessageOf(err, msgResendFailed)
		s.notify(ctx, ports.LevelError, op, msg)
		return fail(reasonOf(err), msg, err)
	}
	return Result{OK: true, Data: raw}
}

// reasonOf classifies a gateway error.
func reasonOf(err error) Reason {
	switch {
	case apperrors.IsNetwork(err):
		return ReasonNetworkError
	case apperrors.StatusOf(err) == http.StatusUnauthorized, apperrors.StatusOf(err) == http.StatusForbidden:
		return ReasonNotAuthenticated
	case apperrors.StatusOf(err) == http.StatusBadRequest:
		return ReasonInvalidData
	default:
		return ReasonFailed
	}
}

// hydrate loads every slice from the mirror and replaces the in-memory copy
// of each one that differs. With external set, the credential is re-read too
// and a session change triggers a background refetch.
func (s *Store) hydrate(ctx context.Context, external bool) {
	var hr, applicant auth.Session
	s.mirror.Read(ctx, mirror.SliceAuth, &hr)
	s.mirror.Read(ctx, mirror.SliceApplicantAuth, &applicant)
	profile := model.DefaultProfile()
	s.mirror.Read(ctx, mirror.SliceApplicantProfile, &profile)
	applied := membership.NewApplied()
	s.mirror.Read(ctx, mirror.SliceApplicantApplications, &applied)
	saved := membership.Saved{}
	s.mirror.Read(ctx, mirror.SliceApplicantSavedJobs, &saved)
	var user *auth.User
	var u auth.User
	if s.mirror.Read(ctx, mirror.SliceUser, &u) {
		user = &u
	}

	hr = hr.Normalize()
	applicant = applicant.Normalize()
	profile = profile.Clone()
	applied = applied.Clone()
	saved = membership.Reconcile(applied, saved)

	if external {
		s.tokens.Reload(ctx)
	}

	s.mu.Lock()
	st := &s.st
	sessionChanged := st.hr.LoggedIn != hr.LoggedIn || st.applicant.LoggedIn != applicant.LoggedIn
	changed := false
	if !sameJSON(st.hr, hr) {
		st.hr = hr
		changed = true
	}
	if !sameJSON(st.applicant, applicant) {
		st.applicant = applicant
		changed = true
	}
	if !sameJSON(st.profile, profile) {
		st.profile = profile
		changed = true
	}
	if !sameJSON(st.applied, applied) {
		st.applied = applied
		changed = true
	}
	if !sameJSON(st.saved, saved) {
		st.saved = saved
		changed = true
	}
	if !sameJSON(st.user, user) {
		changed = true
	}
	st.user = user
	applicantIn := st.applicant.LoggedIn
	s.mu.Unlock()

	if changed {
		s.publish()
	}
	if external && sessionChanged {
		s.goTracked(func(ctx context.Context) {
			s.FetchJobs(ctx)
			if applicantIn {
				s.FetchApplicantData(ctx)
			}
		})
	}
}

// reconcile is the external change callback.
func (s *Store) reconcile(ctx context.Context) {
	s.logger.Debug("reconciling with persisted state")
	s.hydrate(ctx, true)
}

func sameJSON(a, b any) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ra, rb)
}
