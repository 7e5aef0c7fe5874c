package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-Team-Dev/jobportal/internal/adapters/storage/memory"
	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
	"github.com/AI-Team-Dev/jobportal/internal/testutil/fakeapi"
)

const (
	hrEmail        = "hr@acme.test"
	applicantEmail = "ann@mail.test"
)

type cli struct {
	t       *testing.T
	srv     *fakeapi.Server
	storage *memory.Store
}

type result struct {
	code   int
	stdout string
	stderr string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("DEV", "true")
	t.Setenv(passwordEnv, "")
	srv := fakeapi.New()
	t.Cleanup(srv.Close)
	srv.AddAccount(fakeapi.Account{Email: hrEmail, Password: "pw", Name: "Hana", Company: "Acme", HR: true})
	srv.AddAccount(fakeapi.Account{Email: applicantEmail, Password: "pw", Name: "Ann"})
	srv.AddJob(model.Job{ID: model.NewID(42), Title: "Go Engineer", Company: "Acme", Location: "Berlin", Description: "Build services"})
	srv.AddJob(model.Job{ID: model.NewID(43), Title: "Data Analyst", Company: "Globex", Location: "Remote"})
	srv.AddJob(model.Job{ID: model.NewID(44), Title: "Hidden Role", Company: "Acme", Location: "Paris", Enabled: model.Ptr(false)})
	return &cli{t: t, srv: srv, storage: memory.New()}
}

// run executes one invocation against the shared storage, like separate
// processes sharing a state directory.
func (c *cli) run(stdin string, args ...string) result {
	c.t.Helper()
	var out, errOut bytes.Buffer
	a := &app{in: strings.NewReader(stdin), out: &out, errOut: &errOut, storage: c.storage}
	full := append([]string{"--api-url", c.srv.URL, "--no-color"}, args...)
	code := run(context.Background(), a, full)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func (c *cli) mustRun(args ...string) result {
	c.t.Helper()
	res := c.run("", args...)
	require.Equal(c.t, 0, res.code, "jobportal %s\nstdout: %s\nstderr: %s", strings.Join(args, " "), res.stdout, res.stderr)
	return res
}

func decodeJobs(t *testing.T, raw string) map[string]jobRow {
	t.Helper()
	var rows []jobRow
	require.NoError(t, json.Unmarshal([]byte(raw), &rows), raw)
	out := make(map[string]jobRow, len(rows))
	for _, r := range rows {
		out[r.ID.String()] = r
	}
	return out
}

func TestJobsListAnonymous(t *testing.T) {
	c := newCLI(t)

	res := c.mustRun("jobs", "list", "--json")
	jobs := decodeJobs(t, res.stdout)
	assert.Len(t, jobs, 2)
	assert.NotContains(t, jobs, "44")

	res = c.mustRun("jobs", "list")
	assert.Contains(t, res.stdout, "Go Engineer")
	assert.NotContains(t, res.stdout, "Hidden Role")
}

func TestJobsSearch(t *testing.T) {
	c := newCLI(t)

	jobs := decodeJobs(t, c.mustRun("jobs", "search", "--json", "--location", "remote").stdout)
	assert.Equal(t, []string{"43"}, keys(jobs))

	jobs = decodeJobs(t, c.mustRun("jobs", "search", "--json", "services").stdout)
	assert.Equal(t, []string{"42"}, keys(jobs))

	res := c.mustRun("jobs", "search", "nothing-matches")
	assert.Contains(t, res.stdout, "No jobs found.")
}

func keys(m map[string]jobRow) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestLoginFailureIsReportedOnce(t *testing.T) {
	c := newCLI(t)

	res := c.run("", "login", "hr", "--email", hrEmail, "--password", "wrong")
	assert.Equal(t, 1, res.code)
	assert.Equal(t, 1, strings.Count(res.stderr, "Invalid email or password"), res.stderr)

	res = c.mustRun("whoami")
	assert.Contains(t, res.stdout, "Not logged in")
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	c := newCLI(t)

	res := c.run("pw\n", "login", "applicant", "--email", applicantEmail)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Logged in as Ann")
}

func TestUnknownPortal(t *testing.T) {
	c := newCLI(t)

	res := c.run("", "login", "admin", "--email", hrEmail, "--password", "pw")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, `unknown portal "admin"`)
}

func TestApplicantFlow(t *testing.T) {
	c := newCLI(t)
	c.mustRun("login", "applicant", "--email", applicantEmail, "--password", "pw")

	var who whoami
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("whoami", "--json").stdout), &who))
	assert.Equal(t, "applicant", who.Kind)
	assert.Equal(t, applicantEmail, who.Applicant)
	assert.False(t, who.CanApply)

	res := c.run("", "apply", "42")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Please complete your profile before applying.")

	res = c.run("", "profile", "complete")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stdout, "Resume is required")

	resume := filepath.Join(t.TempDir(), "cv.pdf")
	require.NoError(t, os.WriteFile(resume, []byte("%PDF-1.4"), 0o600))
	c.mustRun("profile", "set",
		"--full-name", "Ann Smith",
		"--phone", "5551234",
		"--experience-level", model.ExperienceFresher,
		"--current-location", "Berlin",
		"--preferred-location", "Remote",
		"--resume", resume,
		"--education", "B.Tech;IIT Delhi;2021",
		"--education", "12th;DPS;2017",
		"--education", "10th;DPS;2015",
	)
	assert.Equal(t, "%PDF-1.4", c.srv.Resume(applicantEmail))

	c.mustRun("profile", "complete")

	var prof model.ApplicantProfile
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("profile", "show", "--json").stdout), &prof))
	assert.True(t, prof.Completed)
	assert.Equal(t, "cv.pdf", prof.ResumeFileName)
	assert.Len(t, prof.Education, 3)

	res = c.mustRun("save", "43")
	assert.Contains(t, res.stdout, "Saved job 43")
	saved := decodeJobs(t, c.mustRun("saved", "--json").stdout)
	assert.Contains(t, saved, "43")

	res = c.mustRun("apply", "42")
	assert.Contains(t, res.stdout, "Application submitted")

	res = c.mustRun("apply", "42")
	assert.Contains(t, res.stdout, "Already applied to 42")

	applied := decodeJobs(t, c.mustRun("applications", "--json").stdout)
	require.Contains(t, applied, "42")
	assert.True(t, applied["42"].Applied)

	c.mustRun("logout")
	assert.Empty(t, c.storage.Keys())
	res = c.run("", "applications")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "jobportal login applicant")
}

func TestSaveRequiresLogin(t *testing.T) {
	c := newCLI(t)

	res := c.run("", "save", "42")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Please log in as an applicant first.")
}

func TestRoute(t *testing.T) {
	c := newCLI(t)

	res := c.mustRun("route", "/jobs")
	assert.Contains(t, res.stdout, "/jobs is available")

	res = c.run("", "route", "/dashboard")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "/login/admin")
	assert.Contains(t, res.stderr, "jobportal login hr")
}

func TestHRFlow(t *testing.T) {
	c := newCLI(t)
	c.srv.AddApplication("bob@mail.test", "42", model.Ptr(91.0))
	c.srv.AddApplication("cat@mail.test", "42", model.Ptr(55.0))

	res := c.run("", "hr", "post", "--title", "SRE", "--company", "Acme")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "You must be logged in to create a job.")

	c.mustRun("login", "hr", "--email", hrEmail, "--password", "pw")

	jobs := decodeJobs(t, c.mustRun("jobs", "list", "--json").stdout)
	assert.Len(t, jobs, 3, "HR sees disabled postings")

	c.mustRun("hr", "post", "--title", "SRE", "--company", "Acme", "--location", "Lisbon")
	c.mustRun("hr", "edit", "43", "--salary", "90k")
	c.mustRun("hr", "disable", "42")

	var salary string
	for _, j := range c.srv.Jobs() {
		if j.ID == "43" {
			salary = j.Salary
		}
		if j.ID == "42" {
			assert.False(t, j.IsEnabled())
		}
	}
	assert.Equal(t, "90k", salary)

	res = c.run("", "hr", "edit", "43")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "nothing to change")

	var rows []candidateRow
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("hr", "candidates", "42", "--filter", "80+", "--json").stdout), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Excellent Match", rows[0].Label)

	res = c.mustRun("hr", "candidates")
	assert.Contains(t, res.stdout, "80+: 1")
	assert.Contains(t, res.stdout, "Fair Match")

	res = c.run("", "hr", "candidates", "--filter", "90+")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, `unknown filter "90+"`)
}

func TestHRCommandsNeedHRSession(t *testing.T) {
	c := newCLI(t)
	c.mustRun("login", "applicant", "--email", applicantEmail, "--password", "pw")

	res := c.run("", "hr", "disable", "42")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "jobportal login hr")
	assert.True(t, c.srv.Jobs()[0].IsEnabled())
}

func TestSignupAndVerify(t *testing.T) {
	c := newCLI(t)

	res := c.mustRun("signup", "hr", "--name", "Max", "--email", "max@corp.test", "--password", "pw", "--company", "Corp")
	assert.Contains(t, res.stdout, "Check max@corp.test")

	res = c.run("", "verify", "hr", "--email", "max@corp.test", "--otp", "000000")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Invalid OTP")

	res = c.mustRun("verify", "hr", "--email", "max@corp.test", "--otp", fakeapi.DefaultOTP)
	assert.Contains(t, res.stdout, "Logged in as max@corp.test")

	res = c.mustRun("resend", "applicant", "--email", applicantEmail, "--phone", "555")
	assert.Contains(t, res.stdout, "Verification code sent")
}

func TestWatchStopsAfterDuration(t *testing.T) {
	c := newCLI(t)

	res := c.mustRun("watch", "--for", "50ms")
	assert.Contains(t, res.stdout, "anonymous jobs=2 applied=0 saved=0")
}

func TestMetricsDump(t *testing.T) {
	c := newCLI(t)

	res := c.mustRun("jobs", "list", "--metrics-dump")
	assert.Contains(t, res.stderr, "Metrics")
	assert.Contains(t, res.stderr, "operation=fetch_jobs")
}

func TestInvalidStorageFlag(t *testing.T) {
	c := newCLI(t)

	res := c.run("", "--storage", "s3", "jobs", "list")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "s3")
}
