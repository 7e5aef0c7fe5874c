package store

import (
	"context"
	"net/http"

	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
	apperrors "github.com/AI-Team-Dev/jobportal/internal/errors"
	"github.com/AI-Team-Dev/jobportal/internal/mirror"
	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

// FetchJobs reloads the job list. An HR session sees disabled postings too.
// On failure the jobs error stays set until a later fetch succeeds.
func (s *Store) FetchJobs(ctx context.Context) Result {
	return s.instrument("fetch_jobs", func() Result {
		var all bool
		s.update(ctx, func(st *state) []mirror.Slice {
			all = st.hr.IsHR()
			st.jobsLoading = true
			return nil
		})

		jobs, err := s.gw.ListJobs(ctx, all)
		if err != nil {
			msg := apperrors.MessageOf(err, msgJobsFailed)
			s.update(ctx, func(st *state) []mirror.Slice {
				st.jobsLoading = false
				st.jobsError = msg
				return nil
			})
			s.logger.WarnContext(ctx, "fetch jobs failed", "all", all, "error", err)
			return fail(reasonOf(err), msg, err)
		}

		s.update(ctx, func(st *state) []mirror.Slice {
			st.jobs = cloneJobs(jobs)
			st.jobsLoading = false
			st.jobsError = ""
			return nil
		})
		return ok()
	})
}

// RunJobsRetry re-fetches jobs every JobsRetryDelay while the jobs error is
// set. It blocks until ctx is done or the store is closed.
func (s *Store) RunJobsRetry(ctx context.Context) {
	for {
		fire := make(chan struct{})
		t := s.clock.AfterFunc(s.policy.JobsRetryDelay, func() { close(fire) })
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-s.bgCtx.Done():
			t.Stop()
			return
		case <-fire:
		}

		var failing bool
		s.read(func(st *state) { failing = st.jobsError != "" })
		if failing {
			s.logger.DebugContext(ctx, "retrying job fetch")
			s.FetchJobs(ctx)
		}
	}
}

// AddJob creates a posting and reloads the list from the backend. It requires
// a credential and fails with a reason derived from the HTTP status.
func (s *Store) AddJob(ctx context.Context, in model.JobInput) Result {
	return s.instrument("add_job", func() Result {
		if s.tokens.Get(ctx) == "" {
			return fail(ReasonNotAuthenticated, msgAddJobNoToken, nil)
		}
		raw, err := s.gw.CreateJob(ctx, in)
		if err != nil {
			r := addJobFailure(err)
			s.notify(ctx, ports.LevelError, "add_job", r.Message)
			return r
		}
		s.FetchJobs(ctx)
		return Result{OK: true, Data: raw}
	})
}

func addJobFailure(err error) Result {
	status := apperrors.StatusOf(err)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fail(ReasonNotAuthenticated, msgAddJobAuth, err)
	case status == http.StatusBadRequest:
		return fail(ReasonInvalidData, serverMessage(err, msgAddJobInvalid), err)
	case apperrors.IsNetwork(err):
		return fail(ReasonNetworkError, msgAddJobNetwork, err)
	default:
		return fail(ReasonFailed, serverMessage(err, msgAddJobFailed), err)
	}
}

// serverMessage prefers the backend's error field, then its message field.
func serverMessage(err error, fallback string) string {
	if msg := apperrors.DetailString(err, "error"); msg != "" {
		return msg
	}
	if msg := apperrors.DetailString(err, "message"); msg != "" {
		return msg
	}
	return fallback
}

// SetJobEnabled flips a posting's visibility. The local change is applied
// first; the backend is only called when a credential exists.
func (s *Store) SetJobEnabled(ctx context.Context, id model.ID, enabled bool) Result {
	return s.instrument("set_job_enabled", func() Result {
		prev, found := s.mutateJob(ctx, id, func(j model.Job) model.Job {
			return j.WithEnabled(enabled)
		})
		if s.tokens.Get(ctx) == "" {
			return ok()
		}
		if err := s.gw.SetJobEnabled(ctx, id, enabled); err != nil {
			return s.jobWriteFailed(ctx, "set_job_enabled", id, prev, found, err)
		}
		return ok()
	})
}

// UpdateJob merges patch into a posting locally, writes it to the backend,
// then replaces the local copy with the server's version and reloads the list.
func (s *Store) UpdateJob(ctx context.Context, id model.ID, patch model.JobPatch) Result {
	return s.instrument("update_job", func() Result {
		prev, found := s.mutateJob(ctx, id, patch.Apply)
		if s.tokens.Get(ctx) == "" {
			return ok()
		}
		updated, err := s.gw.UpdateJob(ctx, id, patch)
		if err != nil {
			return s.jobWriteFailed(ctx, "update_job", id, prev, found, err)
		}
		if updated != nil {
			server := updated.Clone()
			s.mutateJob(ctx, id, func(model.Job) model.Job { return server })
		}
		s.FetchJobs(ctx)
		return ok()
	})
}

// mutateJob replaces the job with the given id by fn(job). It returns the
// previous value and whether the job was present.
func (s *Store) mutateJob(ctx context.Context, id model.ID, fn func(model.Job) model.Job) (model.Job, bool) {
	var (
		prev  model.Job
		found bool
	)
	id = model.NewID(id)
	s.update(ctx, func(st *state) []mirror.Slice {
		for i, j := range st.jobs {
			if model.NewID(j.ID) != id {
				continue
			}
			prev, found = j.Clone(), true
			st.jobs[i] = fn(j.Clone())
			break
		}
		return nil
	})
	return prev, found
}

func (s *Store) jobWriteFailed(ctx context.Context, op string, id model.ID, prev model.Job, found bool, err error) Result {
	rollback := s.policy.RollbackOnFailure && found
	s.logger.WarnContext(ctx, "job write failed",
		"op", op,
		"job_id", id.String(),
		"rolled_back", rollback,
		"error", err,
	)
	if rollback {
		s.mutateJob(ctx, id, func(model.Job) model.Job { return prev })
	}
	msg := apperrors.MessageOf(err, msgJobUpdateFailed)
	s.notify(ctx, ports.LevelError, op, msg)
	return fail(reasonOf(err), msg, err)
}

// FetchApplicationsForJob lists candidates for one posting. HR only.
func (s *Store) FetchApplicationsForJob(ctx context.Context, id model.ID) ([]model.Application, Result) {
	var apps []model.Application
	res := s.instrument("fetch_job_applications", func() Result {
		if r, allowed := s.requireHR(); !allowed {
			return r
		}
		var err error
		apps, err = s.gw.ListApplicationsForJob(ctx, id)
		if err != nil {
			return fail(reasonOf(err), apperrors.MessageOf(err, msgApplicationsFail), err)
		}
		return ok()
	})
	return apps, res
}

// FetchAllApplications lists candidates across all postings. HR only.
func (s *Store) FetchAllApplications(ctx context.Context) ([]model.Application, Result) {
	var apps []model.Application
	res := s.instrument("fetch_all_applications", func() Result {
		if r, allowed := s.requireHR(); !allowed {
			return r
		}
		var err error
		apps, err = s.gw.ListAllApplications(ctx)
		if err != nil {
			return fail(reasonOf(err), apperrors.MessageOf(err, msgApplicationsFail), err)
		}
		return ok()
	})
	return apps, res
}

func (s *Store) requireHR() (Result, bool) {
	var hr bool
	s.read(func(st *state) { hr = st.hr.IsHR() })
	if !hr {
		return fail(ReasonUnauthorized, msgUnauthorized, nil), false
	}
	return Result{}, true
}
