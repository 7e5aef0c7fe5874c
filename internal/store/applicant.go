package store

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/AI-Team-Dev/jobportal/internal/domain/membership"
	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
	apperrors "github.com/AI-Team-Dev/jobportal/internal/errors"
	"github.com/AI-Team-Dev/jobportal/internal/mirror"
	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

// FetchApplicantData rebuilds the applied and saved sets from the backend. It
// is skipped unless an applicant session with a credential exists. A list that
// fails to load keeps its previous contents.
func (s *Store) FetchApplicantData(ctx context.Context) Result {
	return s.instrument("fetch_applicant_data", func() Result {
		var loggedIn bool
		s.read(func(st *state) { loggedIn = st.applicant.LoggedIn })
		if !loggedIn || s.tokens.Get(ctx) == "" {
			return Result{OK: true, Reason: ReasonSkipped}
		}

		var (
			appliedIDs       []model.ID
			savedJobs        []model.SavedJob
			appsErr, saveErr error
			g                errgroup.Group
		)
		g.Go(func() error {
			appliedIDs, appsErr = s.gw.ListMyApplications(ctx)
			return nil
		})
		g.Go(func() error {
			savedJobs, saveErr = s.gw.ListSavedJobs(ctx)
			return nil
		})
		_ = g.Wait()

		s.update(ctx, func(st *state) []mirror.Slice {
			// A logout while the requests were in flight wins.
			if !st.applicant.LoggedIn {
				return nil
			}
			if appsErr == nil {
				st.applied = membership.NewApplied(appliedIDs...)
			}
			if saveErr == nil {
				saved := membership.Saved{}
				for _, sj := range savedJobs {
					saved = saved.With(sj.JobID, sj.SavedAt)
				}
				st.saved = saved
			}
			st.saved = membership.Reconcile(st.applied, st.saved)
			return []mirror.Slice{mirror.SliceApplicantApplications, mirror.SliceApplicantSavedJobs}
		})

		if err := errors.Join(appsErr, saveErr); err != nil {
			s.logger.WarnContext(ctx, "fetch applicant data failed",
				"applications_error", appsErr,
				"saved_error", saveErr,
			)
			return fail(reasonOf(err), apperrors.MessageOf(err, msgApplicationsFail), err)
		}
		return ok()
	})
}

// SaveApplicantProfile merges patch into the profile. With an applicant
// session the patch is also written to the backend; a failed write still keeps
// the local merge, reported through Result.Err.
func (s *Store) SaveApplicantProfile(ctx context.Context, patch model.ProfilePatch) Result {
	return s.instrument("save_profile", func() Result {
		var loggedIn bool
		s.read(func(st *state) { loggedIn = st.applicant.LoggedIn })

		var pushErr error
		if loggedIn {
			if pushErr = s.gw.UpsertProfile(ctx, patch); pushErr != nil {
				s.logger.WarnContext(ctx, "profile save failed, keeping local copy", "error", pushErr)
			}
		}
		s.update(ctx, func(st *state) []mirror.Slice {
			st.profile = patch.Apply(st.profile)
			return []mirror.Slice{mirror.SliceApplicantProfile}
		})
		return Result{OK: true, Err: pushErr}
	})
}

// MarkApplicantProfileCompleted sets the completion latch and pushes the full
// profile to the backend when a session exists. Push failures are only logged.
func (s *Store) MarkApplicantProfileCompleted(ctx context.Context) Result {
	return s.instrument("complete_profile", func() Result {
		var (
			loggedIn bool
			full     model.ApplicantProfile
		)
		s.update(ctx, func(st *state) []mirror.Slice {
			st.profile.Completed = true
			loggedIn = st.applicant.LoggedIn
			full = st.profile.Clone()
			return []mirror.Slice{mirror.SliceApplicantProfile}
		})
		if loggedIn {
			if err := s.gw.UpsertProfile(ctx, model.FullPatch(full)); err != nil {
				s.logger.WarnContext(ctx, "push completed profile failed", "error", err)
			}
		}
		return ok()
	})
}

// ApplyToJobAsApplicant submits an application. Preconditions are checked
// before any network call. On success the job joins the applied set, leaves
// the saved set, and applicant data is refreshed shortly after.
func (s *Store) ApplyToJobAsApplicant(ctx context.Context, jobID model.ID) Result {
	return s.instrument("apply", func() Result {
		var reason Reason
		s.read(func(st *state) { reason = st.applyBlocker() })
		if reason != "" {
			return fail(reason, blockerMessage(reason), nil)
		}

		if err := s.gw.Apply(ctx, jobID); err != nil {
			msg := apperrors.MessageOf(err, msgApplyFailed)
			s.notify(ctx, ports.LevelError, "apply", msg)
			return fail(reasonOf(err), msg, err)
		}

		s.update(ctx, func(st *state) []mirror.Slice {
			st.applied = st.applied.With(jobID)
			st.saved = st.saved.Without(jobID)
			return []mirror.Slice{mirror.SliceApplicantApplications, mirror.SliceApplicantSavedJobs}
		})
		s.notify(ctx, ports.LevelSuccess, "apply", "Application submitted")
		s.after(s.policy.ApplyRefreshDelay, func(ctx context.Context) {
			s.FetchApplicantData(ctx)
		})
		return ok()
	})
}

// ToggleSaveJob bookmarks or un-bookmarks a job. The backend decides the
// resulting state; when the request fails the local state is flipped instead.
func (s *Store) ToggleSaveJob(ctx context.Context, jobID model.ID) Result {
	return s.instrument("toggle_save", func() Result {
		var loggedIn bool
		s.read(func(st *state) { loggedIn = st.applicant.LoggedIn })
		if !loggedIn {
			if s.policy.SaveRequiresLogin {
				return fail(ReasonNotLoggedIn, msgNotLoggedIn, nil)
			}
			return Result{OK: true, Saved: s.flipSaved(ctx, jobID)}
		}

		saved, err := s.gw.ToggleSave(ctx, jobID)
		if err != nil {
			s.logger.WarnContext(ctx, "toggle save failed, toggling locally", "job_id", jobID.String(), "error", err)
			return Result{OK: true, Saved: s.flipSaved(ctx, jobID), Err: err}
		}
		now := s.clock.Now().UnixMilli()
		s.update(ctx, func(st *state) []mirror.Slice {
			if saved {
				st.saved = st.saved.With(jobID, now)
			} else {
				st.saved = st.saved.Without(jobID)
			}
			st.saved = membership.Reconcile(st.applied, st.saved)
			saved = st.saved.Has(jobID)
			return []mirror.Slice{mirror.SliceApplicantSavedJobs}
		})
		return Result{OK: true, Saved: saved}
	})
}

// flipSaved toggles jobID in the saved set from its current membership. An
// applied job never ends up saved.
func (s *Store) flipSaved(ctx context.Context, jobID model.ID) bool {
	var saved bool
	now := s.clock.Now().UnixMilli()
	s.update(ctx, func(st *state) []mirror.Slice {
		if st.saved.Has(jobID) {
			st.saved = st.saved.Without(jobID)
		} else {
			st.saved = st.saved.With(jobID, now)
		}
		st.saved = membership.Reconcile(st.applied, st.saved)
		saved = st.saved.Has(jobID)
		return []mirror.Slice{mirror.SliceApplicantSavedJobs}
	})
	return saved
}

// applyBlocker returns the first unmet apply precondition, or "".
func (st *state) applyBlocker() Reason {
	switch {
	case !st.applicant.LoggedIn:
		return ReasonNotLoggedIn
	case !st.profile.Completed:
		return ReasonProfileIncomplete
	case !st.profile.HasResume() || !st.profile.HasCompleteEducation():
		return ReasonProfileRequirementsMissing
	default:
		return ""
	}
}

func blockerMessage(r Reason) string {
	switch r {
	case ReasonNotLoggedIn:
		return msgNotLoggedIn
	case ReasonProfileIncomplete:
		return msgProfileIncomplete
	case ReasonProfileRequirementsMissing:
		return msgProfileMissing
	default:
		return ""
	}
}
