package store

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-Team-Dev/jobportal/internal/adapters/clock"
	"github.com/AI-Team-Dev/jobportal/internal/adapters/storage/memory"
	"github.com/AI-Team-Dev/jobportal/internal/apiclient"
	"github.com/AI-Team-Dev/jobportal/internal/backend"
	"github.com/AI-Team-Dev/jobportal/internal/domain/auth"
	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
	"github.com/AI-Team-Dev/jobportal/internal/mirror"
	"github.com/AI-Team-Dev/jobportal/internal/observability/statsd"
	"github.com/AI-Team-Dev/jobportal/internal/ports"
	"github.com/AI-Team-Dev/jobportal/internal/testutil/fakeapi"
	"github.com/AI-Team-Dev/jobportal/internal/token"
)

var testEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	hrEmail        = "hr@acme.test"
	applicantEmail = "ann@mail.test"
	password       = "pw"
)

type harness struct {
	srv     *fakeapi.Server
	storage *memory.Store
	clock   *clock.Manual
	tokens  *token.Holder
	metrics *statsd.Recorder
	store   *Store

	mu    sync.Mutex
	notes []ports.Notification
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	policy  Policy
	storage *memory.Store
	clock   *clock.Manual
	noStart bool
}

func withPolicy(fn func(*Policy)) harnessOption {
	return func(c *harnessConfig) { fn(&c.policy) }
}

func withStorage(st *memory.Store) harnessOption {
	return func(c *harnessConfig) { c.storage = st }
}

func withClock(clk *clock.Manual) harnessOption {
	return func(c *harnessConfig) { c.clock = clk }
}

func withoutStart() harnessOption {
	return func(c *harnessConfig) { c.noStart = true }
}

func newFakeBackend(t *testing.T) *fakeapi.Server {
	t.Helper()
	srv := fakeapi.New()
	t.Cleanup(srv.Close)
	srv.AddAccount(fakeapi.Account{Email: hrEmail, Password: password, Name: "Hana", Company: "Acme", HR: true})
	srv.AddAccount(fakeapi.Account{Email: applicantEmail, Password: password, Name: "Ann"})
	srv.AddJob(model.Job{ID: model.NewID(42), Title: "Go Engineer", Company: "Acme", Location: "Berlin", Description: "Build services"})
	srv.AddJob(model.Job{ID: model.NewID(43), Title: "Data Analyst", Company: "Globex", Location: "Remote"})
	srv.AddJob(model.Job{ID: model.NewID(44), Title: "Hidden Role", Company: "Acme", Location: "Paris", Enabled: model.Ptr(false)})
	return srv
}

func newHarness(t *testing.T, srv *fakeapi.Server, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.storage == nil {
		cfg.storage = memory.New()
	}
	if cfg.clock == nil {
		cfg.clock = clock.NewManual(testEpoch)
	}

	h := &harness{srv: srv, storage: cfg.storage, clock: cfg.clock, metrics: &statsd.Recorder{}}
	h.tokens = token.NewHolder(token.HolderOptions{Storage: cfg.storage})
	client, err := apiclient.New(apiclient.Options{BaseURL: srv.URL, Tokens: h.tokens, Dev: true})
	require.NoError(t, err)

	policy := cfg.policy
	h.store = New(Options{
		Gateway:      backend.New(backend.Options{Client: client}),
		Tokens:       h.tokens,
		Mirror:       mirror.New(mirror.Options{Storage: cfg.storage, WatchKeys: []string{h.tokens.Key()}}),
		Unauthorized: client,
		Notifier: ports.NotifierFunc(func(_ context.Context, n ports.Notification) {
			h.mu.Lock()
			h.notes = append(h.notes, n)
			h.mu.Unlock()
		}),
		Clock:   cfg.clock,
		Metrics: h.metrics,
		Policy:  &policy,
	})
	t.Cleanup(h.store.Close)
	if !cfg.noStart {
		require.NoError(t, h.store.Start(context.Background()))
	}
	return h
}

func (h *harness) notifications() []ports.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ports.Notification(nil), h.notes...)
}

func (h *harness) loginApplicant(t *testing.T) {
	t.Helper()
	res := h.store.LoginApplicant(context.Background(), auth.Credentials{Email: applicantEmail, Password: password})
	require.True(t, res.OK, res.Message)
}

func (h *harness) loginHR(t *testing.T) {
	t.Helper()
	res := h.store.LoginHR(context.Background(), auth.Credentials{Email: hrEmail, Password: password})
	require.True(t, res.OK, res.Message)
}

func jobIDs(jobs []model.Job) []model.ID {
	out := make([]model.ID, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}

func TestStore_StartPurgesLegacyJobsAndHydrates(t *testing.T) {
	ctx := context.Background()
	srv := newFakeBackend(t)
	st := memory.New()
	require.NoError(t, st.Set(ctx, mirror.LegacyJobsKey, `[{"id":1,"title":"stale"}]`))
	require.NoError(t, st.Set(ctx, string(mirror.SliceApplicantAuth), `{"isLoggedIn":true,"email":"ann@mail.test"}`))
	require.NoError(t, st.Set(ctx, string(mirror.SliceApplicantApplications), `{"42":true,"43":true}`))
	require.NoError(t, st.Set(ctx, string(mirror.SliceApplicantSavedJobs), `{"43":1700000000000}`))
	require.NoError(t, st.Set(ctx, string(mirror.SliceApplicantProfile), `{not json`))

	h := newHarness(t, srv, withStorage(st))

	_, ok, err := st.Get(ctx, mirror.LegacyJobsKey)
	require.NoError(t, err)
	assert.False(t, ok, "legacy job cache is deleted on start")

	snap := h.store.Snapshot()
	assert.Equal(t, auth.ApplicantSession(applicantEmail), snap.Applicant)
	assert.True(t, snap.Applied.Has("42"))
	assert.False(t, snap.Saved.Has("43"), "applied jobs are never also saved")
	assert.Equal(t, model.DefaultProfile(), snap.Profile, "corrupt slice falls back to default")
	assert.ElementsMatch(t, []model.ID{"42", "43"}, jobIDs(snap.Jobs))
	assert.Zero(t, srv.Calls("GET /api/applications"), "no credential, no applicant fetch")
}

func TestStore_FetchJobsAnonymousSeesEnabledOnly(t *testing.T) {
	h := newHarness(t, newFakeBackend(t))

	res := h.store.FetchJobs(context.Background())
	require.True(t, res.OK)

	jobs := h.store.Snapshot().Jobs
	assert.ElementsMatch(t, []model.ID{"42", "43"}, jobIDs(jobs))
	for _, j := range jobs {
		assert.True(t, j.IsEnabled())
	}
	assert.Zero(t, h.srv.Calls("GET /api/jobs/all"))
}

func TestStore_FetchJobsHRSeesAll(t *testing.T) {
	h := newHarness(t, newFakeBackend(t))
	h.loginHR(t)

	res := h.store.FetchJobs(context.Background())
	require.True(t, res.OK)
	assert.ElementsMatch(t, []model.ID{"42", "43", "44"}, jobIDs(h.store.Snapshot().Jobs))
	assert.Positive(t, h.srv.Calls("GET /api/jobs/all"))
	assert.Len(t, h.store.VisibleJobs(), 3)
}

func TestStore_FetchJobsErrorPersistsUntilSuccess(t *testing.T) {
	srv := newFakeBackend(t)
	srv.Fail("GET /api/jobs", fakeapi.Failure{Status: http.StatusInternalServerError, Body: map[string]any{"error": "db down"}, Times: 2})
	h := newHarness(t, srv)

	snap := h.store.Snapshot()
	assert.Equal(t, "db down", snap.JobsError)
	assert.False(t, snap.JobsLoading)

	res := h.store.FetchJobs(context.Background())
	assert.False(t, res.OK)
	assert.Equal(t, "db down", h.store.Snapshot().JobsError)

	res = h.store.FetchJobs(context.Background())
	require.True(t, res.OK)
	assert.Empty(t, h.store.Snapshot().JobsError)
	assert.Len(t, h.store.Snapshot().Jobs, 2)
}

func TestStore_RunJobsRetry(t *testing.T) {
	srv := newFakeBackend(t)
	srv.Fail("GET /api/jobs", fakeapi.Failure{Status: http.StatusBadGateway, Times: 1})
	h := newHarness(t, srv)
	require.NotEmpty(t, h.store.Snapshot().JobsError)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.store.RunJobsRetry(ctx)
	}()

	require.Eventually(t, func() bool { return h.clock.Pending() == 1 }, time.Second, 5*time.Millisecond)
	h.clock.Advance(DefaultPolicy().JobsRetryDelay)
	require.Eventually(t, func() bool { return h.store.Snapshot().JobsError == "" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, srv.Calls("GET /api/jobs"))

	// A healthy list is not refetched.
	require.Eventually(t, func() bool { return h.clock.Pending() == 1 }, time.Second, 5*time.Millisecond)
	h.clock.Advance(DefaultPolicy().JobsRetryDelay)
	require.Eventually(t, func() bool { return h.clock.Pending() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, srv.Calls("GET /api/jobs"))

	cancel()
	<-done
}

func TestStore_LoginApplicantScenario(t *testing.T) {
	srv := newFakeBackend(t)
	srv.Fail("POST /api/candidate/login", fakeapi.Failure{
		Status: http.StatusOK,
		Body:   map[string]any{"token": "t1", "user": map[string]any{"email": "a@b.com"}},
		Times:  1,
	})
	h := newHarness(t, srv)

	res := h.store.LoginApplicant(context.Background(), auth.Credentials{Email: "a@b.com", Password: "pw"})
	require.True(t, res.OK)

	snap := h.store.Snapshot()
	assert.Equal(t, auth.Session{LoggedIn: true, Email: "a@b.com"}, snap.Applicant)
	assert.False(t, snap.HR.LoggedIn)
	assert.Equal(t, "t1", h.tokens.Get(context.Background()))
	assert.Equal(t, "a@b.com", snap.Profile.Email, "email patched into the default profile")
	require.NotNil(t, snap.User)
	assert.Equal(t, "a@b.com", snap.User.Email)
	assert.False(t, snap.AuthLoading)
	assert.Empty(t, snap.AuthError)

	raw, ok, err := h.storage.Get(context.Background(), token.StorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "t1", raw)
	assert.Equal(t, 1, h.clock.Pending(), "applicant data refresh is deferred")
}

func TestStore_LoginApplicantWithLooselyTypedProfile(t *testing.T) {
	srv := newFakeBackend(t)
	srv.Fail("POST /api/candidate/login", fakeapi.Failure{
		Status: http.StatusOK,
		Body: map[string]any{"token": "t1", "user": map[string]any{
			"id":    7,
			"email": "a@b.com",
			"profile": map[string]any{
				"fullName":       "Ann Smith",
				"completed":      1,
				"resumeFileName": "ann.pdf",
				"education":      []any{map[string]any{"degree": "BSc", "institution": "TU", "year": 2020}},
			},
		}},
		Times: 1,
	})
	h := newHarness(t, srv)

	res := h.store.LoginApplicant(context.Background(), auth.Credentials{Email: "a@b.com", Password: "pw"})
	require.True(t, res.OK, res.Message)

	snap := h.store.Snapshot()
	assert.True(t, snap.Applicant.LoggedIn)
	assert.Equal(t, "Ann Smith", snap.Profile.FullName)
	assert.True(t, snap.Profile.Completed)
	require.Len(t, snap.Profile.Education, 1)
	assert.Equal(t, "2020", snap.Profile.Education[0].Year)
	ok, reason := h.store.CanApply()
	assert.True(t, ok, reason)
}

func TestStore_LoginApplicantIgnoresUndecodableProfile(t *testing.T) {
	srv := newFakeBackend(t)
	srv.Fail("POST /api/candidate/login", fakeapi.Failure{
		Status: http.StatusOK,
		Body:   map[string]any{"token": "t1", "user": map[string]any{"email": "a@b.com", "profile": []any{"x"}}},
		Times:  1,
	})
	h := newHarness(t, srv)

	res := h.store.LoginApplicant(context.Background(), auth.Credentials{Email: "a@b.com", Password: "pw"})
	require.True(t, res.OK, res.Message)
	assert.Equal(t, "a@b.com", h.store.Snapshot().Profile.Email, "falls back to the email patch")
}

func TestStore_LoginApplicantSeedsProfileAndRefreshes(t *testing.T) {
	srv := newFakeBackend(t)
	srv.SetProfile(applicantEmail, map[string]any{"fullName": "Ann Smith", "phone": "555", "completed": false})
	srv.AddApplication(applicantEmail, "43", nil)
	h := newHarness(t, srv)

	h.loginApplicant(t)
	snap := h.store.Snapshot()
	assert.Equal(t, "Ann Smith", snap.Profile.FullName)
	assert.Equal(t, "555", snap.Profile.Phone)
	assert.False(t, snap.Applied.Has("43"), "refresh has not fired yet")

	h.clock.Advance(DefaultPolicy().ApplicantRefreshDelay)
	assert.True(t, h.store.IsApplied(model.NewID(43)))
	assert.True(t, h.store.IsApplied("43"))
}

func TestStore_LoginFailures(t *testing.T) {
	tests := []struct {
		name    string
		failure *fakeapi.Failure
		creds   auth.Credentials
		reason  Reason
		message string
	}{
		{
			name:    "bad password",
			creds:   auth.Credentials{Email: hrEmail, Password: "nope"},
			reason:  ReasonNotAuthenticated,
			message: "Invalid email or password",
		},
		{
			name:    "malformed response",
			failure: &fakeapi.Failure{Status: http.StatusOK, Body: map[string]any{"token": "only-token"}},
			creds:   auth.Credentials{Email: hrEmail, Password: password},
			reason:  ReasonInvalidResponse,
			message: "Invalid response from server",
		},
		{
			name:    "server error without message",
			failure: &fakeapi.Failure{Status: http.StatusInternalServerError, Body: map[string]any{}},
			creds:   auth.Credentials{Email: hrEmail, Password: password},
			reason:  ReasonFailed,
			message: "Internal Server Error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeBackend(t)
			if tt.failure != nil {
				srv.Fail("POST /api/login", *tt.failure)
			}
			h := newHarness(t, srv)

			res := h.store.LoginHR(context.Background(), tt.creds)
			assert.False(t, res.OK)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, tt.message, res.Message)

			snap := h.store.Snapshot()
			assert.False(t, snap.HR.LoggedIn)
			assert.False(t, snap.AuthLoading)
			assert.Equal(t, tt.message, snap.AuthError)
			assert.Empty(t, h.tokens.Get(context.Background()))

			notes := h.notifications()
			require.NotEmpty(t, notes)
			last := notes[len(notes)-1]
			assert.Equal(t, ports.LevelError, last.Level)
			assert.Equal(t, "login_hr", last.Source)
			assert.Equal(t, tt.message, last.Message)
		})
	}
}

func TestStore_SignupVerifyResend(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newFakeBackend(t))

	res := h.store.SignupApplicant(ctx, model.ApplicantSignup{Name: "Bo", Email: "bo@mail.test", Password: "pw"})
	require.True(t, res.OK)
	assert.Contains(t, string(res.Data), "OTP sent")
	assert.False(t, h.store.Snapshot().Applicant.LoggedIn, "signup does not log in")

	res = h.store.SignupApplicant(ctx, model.ApplicantSignup{Name: "Ann", Email: applicantEmail, Password: "pw"})
	assert.False(t, res.OK)
	assert.Equal(t, "User already exists", res.Message)
	assert.Equal(t, "User already exists", h.store.Snapshot().AuthError)

	res = h.store.VerifyApplicantOTP(ctx, model.OTPVerification{Email: "bo@mail.test", OTP: "000000"})
	assert.False(t, res.OK)
	assert.Equal(t, "Invalid OTP", res.Message)

	res = h.store.VerifyApplicantOTP(ctx, model.OTPVerification{Email: "bo@mail.test", OTP: fakeapi.DefaultOTP})
	require.True(t, res.OK)
	assert.Empty(t, h.store.Snapshot().AuthError)
	assert.False(t, h.store.Snapshot().Applicant.LoggedIn)

	res = h.store.ResendApplicantOTP(ctx, model.OTPResend{Email: "ghost@mail.test"})
	assert.False(t, res.OK)
	assert.Equal(t, "Account not found", res.Message)
	assert.Empty(t, h.store.Snapshot().AuthError, "resend leaves session state alone")

	res = h.store.ResendHROTP(ctx, model.OTPResend{Email: hrEmail})
	assert.True(t, res.OK)
}

func TestStore_VerifyHROTPEstablishesSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newFakeBackend(t))

	require.True(t, h.store.SignupHR(ctx, model.HRSignup{FullName: "Max", Email: "max@corp.test", Password: "pw", Company: "Corp"}).OK)
	res := h.store.VerifyHROTP(ctx, model.OTPVerification{Email: "max@corp.test", OTP: fakeapi.DefaultOTP})
	require.True(t, res.OK)

	snap := h.store.Snapshot()
	assert.Equal(t, auth.HRSession("max@corp.test"), snap.HR)
	assert.NotEmpty(t, h.tokens.Get(ctx))
	require.NotNil(t, snap.User)
	assert.Equal(t, "Max", snap.User.DisplayName())
	assert.Len(t, snap.Jobs, 3, "HR sees disabled postings after verification")
}

func TestStore_LogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newFakeBackend(t))
	h.loginApplicant(t)
	h.store.SaveApplicantProfile(ctx, model.ProfilePatch{Phone: model.Ptr("123")})
	h.store.ToggleSaveJob(ctx, "43")
	h.store.MarkApplicantProfileCompleted(ctx)

	require.True(t, h.store.Logout(ctx).OK)
	first := h.store.Snapshot()
	require.True(t, h.store.Logout(ctx).OK)
	second := h.store.Snapshot()

	assert.Equal(t, first, second)
	assert.False(t, second.Applicant.LoggedIn)
	assert.False(t, second.HR.LoggedIn)
	assert.Nil(t, second.User)
	assert.Equal(t, model.DefaultProfile(), second.Profile)
	assert.Empty(t, second.Applied)
	assert.Empty(t, second.Saved)
	assert.Empty(t, h.tokens.Get(ctx))
	assert.Empty(t, h.storage.Keys(), "every persisted slice and the credential are erased")
}

func TestStore_LogoutOnCleanStore(t *testing.T) {
	h := newHarness(t, newFakeBackend(t))
	before := h.store.Snapshot()
	calls := h.srv.TotalCalls()

	require.True(t, h.store.Logout(context.Background()).OK)
	assert.Equal(t, before, h.store.Snapshot())
	assert.Equal(t, calls, h.srv.TotalCalls())
}

func TestStore_LogoutDropsHRonlyJobs(t *testing.T) {
	h := newHarness(t, newFakeBackend(t))
	h.loginHR(t)
	require.Len(t, h.store.Snapshot().Jobs, 3)

	h.store.Logout(context.Background())
	assert.ElementsMatch(t, []model.ID{"42", "43"}, jobIDs(h.store.Snapshot().Jobs))
}

func TestStore_UnauthorizedForcesLogout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newFakeBackend(t))
	h.loginApplicant(t)
	h.srv.RevokeTokens()

	res := h.store.FetchApplicantData(ctx)
	assert.False(t, res.OK)

	snap := h.store.Snapshot()
	assert.False(t, snap.Applicant.LoggedIn)
	assert.Empty(t, h.tokens.Get(ctx))
	assert.Empty(t, h.storage.Keys())

	var sawExpiry bool
	for _, n := range h.notifications() {
		if n.Source == "session" && n.Level == ports.LevelInfo {
			sawExpiry = true
		}
	}
	assert.True(t, sawExpiry)
}

func TestStore_CrossContextSync(t *testing.T) {
	ctx := context.Background()
	srv := newFakeBackend(t)
	shared := memory.New()
	a := newHarness(t, srv, withStorage(shared))
	b := newHarness(t, srv, withStorage(shared.Peer()))

	var mu sync.Mutex
	var published int
	unsubscribe := b.store.Subscribe(func(Snapshot) {
		mu.Lock()
		published++
		mu.Unlock()
	})
	defer unsubscribe()

	a.loginApplicant(t)
	assert.True(t, b.store.Snapshot().Applicant.LoggedIn, "other context sees the login")
	assert.Equal(t, a.tokens.Get(ctx), b.tokens.Get(ctx))
	mu.Lock()
	assert.Positive(t, published)
	mu.Unlock()

	a.store.SaveApplicantProfile(ctx, model.ProfilePatch{Phone: model.Ptr("777")})
	assert.Equal(t, "777", b.store.Snapshot().Profile.Phone)

	a.store.Logout(ctx)
	assert.False(t, b.store.Snapshot().Applicant.LoggedIn)
	assert.Empty(t, b.tokens.Get(ctx))
	assert.Equal(t, model.DefaultProfile(), b.store.Snapshot().Profile)
}

func TestStore_CloseCancelsDeferredRefresh(t *testing.T) {
	h := newHarness(t, newFakeBackend(t))
	h.loginApplicant(t)
	require.Equal(t, 1, h.clock.Pending())

	h.store.Close()
	assert.Equal(t, 0, h.clock.Pending())
	before := h.srv.Calls("GET /api/applications")
	h.clock.Advance(time.Second)
	assert.Equal(t, before, h.srv.Calls("GET /api/applications"))
	assert.ErrorIs(t, h.store.Start(context.Background()), ErrClosed)
}

func TestStore_EmitsOperationMetrics(t *testing.T) {
	h := newHarness(t, newFakeBackend(t))
	h.store.FetchJobs(context.Background())
	h.store.ApplyToJobAsApplicant(context.Background(), "42")

	var sawFetch, sawApply bool
	for _, m := range h.metrics.Named("store.operation") {
		switch m.Tags["operation"] {
		case "fetch_jobs":
			sawFetch = sawFetch || m.Tags["result"] == "success"
		case "apply":
			sawApply = m.Tags["result"] == "error" && m.Tags["reason"] == string(ReasonNotLoggedIn)
		}
	}
	assert.True(t, sawFetch)
	assert.True(t, sawApply)
}
