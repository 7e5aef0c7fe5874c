package store

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
	"github.com/AI-Team-Dev/jobportal/internal/testutil/fakeapi"
)

func findJob(t *testing.T, jobs []model.Job, id model.ID) model.Job {
	t.Helper()
	for _, j := range jobs {
		if j.ID == id {
			return j
		}
	}
	t.Fatalf("job %s not found", id)
	return model.Job{}
}

func TestStore_AddJobWithoutCredential(t *testing.T) {
	h := newHarness(t, newFakeBackend(t))
	calls := h.srv.TotalCalls()

	res := h.store.AddJob(context.Background(), model.JobInput{Title: "New", Company: "Acme"})
	assert.False(t, res.OK)
	assert.Equal(t, ReasonNotAuthenticated, res.Reason)
	assert.Equal(t, "You must be logged in to create a job. Please log in and try again.", res.Message)
	assert.Equal(t, calls, h.srv.TotalCalls(), "no request is issued")
}

func TestStore_AddJobRefreshesList(t *testing.T) {
	h := newHarness(t, newFakeBackend(t))
	h.loginHR(t)
	fetches := h.srv.Calls("GET /api/jobs/all")

	res := h.store.AddJob(context.Background(), model.JobInput{Title: "SRE", Company: "Acme", Location: "Lisbon"})
	require.True(t, res.OK, res.Message)
	assert.Contains(t, string(res.Data), `"SRE"`)
	assert.Equal(t, fetches+1, h.srv.Calls("GET /api/jobs/all"))

	var titles []string
	for _, j := range h.store.Snapshot().Jobs {
		titles = append(titles, j.Title)
	}
	assert.Contains(t, titles, "SRE")
}

func TestStore_AddJobFailureClassification(t *testing.T) {
	tests := []struct {
		name    string
		failure *fakeapi.Failure
		input   model.JobInput
		reason  Reason
		message string
	}{
		{
			name:    "validation from backend",
			input:   model.JobInput{Title: " ", Company: "Acme"},
			reason:  ReasonInvalidData,
			message: "Title and company are required",
		},
		{
			name:    "bad request without message",
			failure: &fakeapi.Failure{Status: http.StatusBadRequest, Body: map[string]any{}},
			input:   model.JobInput{Title: "x", Company: "y"},
			reason:  ReasonInvalidData,
			message: "Invalid job data. Please check all fields.",
		},
		{
			name:    "forbidden",
			failure: &fakeapi.Failure{Status: http.StatusForbidden, Body: map[string]any{"error": "nope"}},
			input:   model.JobInput{Title: "x", Company: "y"},
			reason:  ReasonNotAuthenticated,
			message: "Authentication failed. Please log in again.",
		},
		{
			name:    "server error with message",
			failure: &fakeapi.Failure{Status: http.StatusInternalServerError, Body: map[string]any{"message": "disk full"}},
			input:   model.JobInput{Title: "x", Company: "y"},
			reason:  ReasonFailed,
			message: "disk full",
		},
		{
			name:    "server error without message",
			failure: &fakeapi.Failure{Status: http.StatusServiceUnavailable},
			input:   model.JobInput{Title: "x", Company: "y"},
			reason:  ReasonFailed,
			message: "Failed to create job. Please try again.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeBackend(t)
			h := newHarness(t, srv)
			h.loginHR(t)
			if tt.failure != nil {
				srv.Fail("POST /api/jobs", *tt.failure)
			}

			res := h.store.AddJob(context.Background(), tt.input)
			assert.False(t, res.OK)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, tt.message, res.Message)
			assert.Error(t, res.Err)
		})
	}
}

func TestStore_AddJobNetworkError(t *testing.T) {
	srv := newFakeBackend(t)
	h := newHarness(t, srv)
	h.loginHR(t)
	srv.Close()

	res := h.store.AddJob(context.Background(), model.JobInput{Title: "x", Company: "y"})
	assert.False(t, res.OK)
	assert.Equal(t, ReasonNetworkError, res.Reason)
	assert.Equal(t, "Cannot connect to server. Please check if the backend is running.", res.Message)
}

func TestStore_SetJobEnabled(t *testing.T) {
	ctx := context.Background()

	t.Run("writes through with a credential", func(t *testing.T) {
		h := newHarness(t, newFakeBackend(t))
		h.loginHR(t)

		res := h.store.SetJobEnabled(ctx, "42", false)
		require.True(t, res.OK)
		assert.False(t, findJob(t, h.store.Snapshot().Jobs, "42").IsEnabled())
		assert.False(t, findJob(t, h.srv.Jobs(), "42").IsEnabled())
	})

	t.Run("local only without a credential", func(t *testing.T) {
		h := newHarness(t, newFakeBackend(t))
		calls := h.srv.TotalCalls()

		res := h.store.SetJobEnabled(ctx, model.NewID(43), false)
		require.True(t, res.OK)
		assert.False(t, findJob(t, h.store.Snapshot().Jobs, "43").IsEnabled())
		assert.Equal(t, calls, h.srv.TotalCalls())
	})

	t.Run("failure keeps optimistic value", func(t *testing.T) {
		h := newHarness(t, newFakeBackend(t))
		h.loginHR(t)
		h.srv.Fail("PATCH /api/jobs/42/enabled", fakeapi.Failure{Status: http.StatusInternalServerError, Body: map[string]any{"error": "boom"}})

		res := h.store.SetJobEnabled(ctx, "42", false)
		assert.False(t, res.OK)
		assert.Equal(t, "boom", res.Message)
		assert.False(t, findJob(t, h.store.Snapshot().Jobs, "42").IsEnabled())
	})

	t.Run("failure rolls back when configured", func(t *testing.T) {
		h := newHarness(t, newFakeBackend(t), withPolicy(func(p *Policy) { p.RollbackOnFailure = true }))
		h.loginHR(t)
		h.srv.Fail("PATCH /api/jobs/42/enabled", fakeapi.Failure{Status: http.StatusInternalServerError})

		res := h.store.SetJobEnabled(ctx, "42", false)
		assert.False(t, res.OK)
		assert.True(t, findJob(t, h.store.Snapshot().Jobs, "42").IsEnabled())
	})
}

func TestStore_UpdateJob(t *testing.T) {
	ctx := context.Background()

	t.Run("server copy replaces local merge", func(t *testing.T) {
		h := newHarness(t, newFakeBackend(t))
		h.loginHR(t)
		fetches := h.srv.Calls("GET /api/jobs/all")

		res := h.store.UpdateJob(ctx, "43", model.JobPatch{Title: model.Ptr("Senior Analyst"), Salary: model.Ptr("90k")})
		require.True(t, res.OK)

		job := findJob(t, h.store.Snapshot().Jobs, "43")
		assert.Equal(t, "Senior Analyst", job.Title)
		assert.Equal(t, "90k", job.Salary)
		assert.Equal(t, "Globex", job.Company)
		assert.Equal(t, "Senior Analyst", findJob(t, h.srv.Jobs(), "43").Title)
		assert.Equal(t, fetches+1, h.srv.Calls("GET /api/jobs/all"))
	})

	t.Run("failure keeps optimistic merge", func(t *testing.T) {
		h := newHarness(t, newFakeBackend(t))
		h.loginHR(t)
		h.srv.Fail("PUT /api/jobs/43", fakeapi.Failure{Status: http.StatusNotFound, Body: map[string]any{"error": "Job not found"}})

		res := h.store.UpdateJob(ctx, "43", model.JobPatch{Title: model.Ptr("Renamed")})
		assert.False(t, res.OK)
		assert.Equal(t, "Job not found", res.Message)
		assert.Equal(t, "Renamed", findJob(t, h.store.Snapshot().Jobs, "43").Title)
		assert.Equal(t, "Data Analyst", findJob(t, h.srv.Jobs(), "43").Title)
	})

	t.Run("failure rolls back when configured", func(t *testing.T) {
		h := newHarness(t, newFakeBackend(t), withPolicy(func(p *Policy) { p.RollbackOnFailure = true }))
		h.loginHR(t)
		h.srv.Fail("PUT /api/jobs/43", fakeapi.Failure{Status: http.StatusInternalServerError})

		h.store.UpdateJob(ctx, "43", model.JobPatch{Title: model.Ptr("Renamed")})
		assert.Equal(t, "Data Analyst", findJob(t, h.store.Snapshot().Jobs, "43").Title)
	})
}

func TestStore_HRReview(t *testing.T) {
	ctx := context.Background()
	srv := newFakeBackend(t)
	srv.AddApplication(applicantEmail, "42", model.Ptr(87.5))
	srv.AddApplication("bob@mail.test", "42", model.Ptr(35.0))
	srv.AddApplication("cat@mail.test", "43", nil)

	t.Run("applicant is rejected locally", func(t *testing.T) {
		h := newHarness(t, srv)
		h.loginApplicant(t)
		calls := srv.TotalCalls()

		apps, res := h.store.FetchAllApplications(ctx)
		assert.Nil(t, apps)
		assert.Equal(t, ReasonUnauthorized, res.Reason)
		assert.Equal(t, "Unauthorized", res.Message)

		_, res = h.store.FetchApplicationsForJob(ctx, "42")
		assert.Equal(t, ReasonUnauthorized, res.Reason)
		assert.Equal(t, calls, srv.TotalCalls())
	})

	t.Run("HR lists candidates", func(t *testing.T) {
		h := newHarness(t, srv)
		h.loginHR(t)

		apps, res := h.store.FetchApplicationsForJob(ctx, "42")
		require.True(t, res.OK)
		require.Len(t, apps, 2)
		assert.Equal(t, "Go Engineer", apps[0].JobTitle)

		all, res := h.store.FetchAllApplications(ctx)
		require.True(t, res.OK)
		assert.Len(t, all, 3)
	})

	t.Run("backend failure", func(t *testing.T) {
		h := newHarness(t, srv)
		h.loginHR(t)
		srv.Fail("GET /api/applications/all", fakeapi.Failure{Status: http.StatusInternalServerError, Body: map[string]any{}, Times: 1})

		_, res := h.store.FetchAllApplications(ctx)
		assert.False(t, res.OK)
		assert.Equal(t, "Internal Server Error", res.Message)
	})
}
