// Package fakeapi is an in-memory job portal backend served over httptest. It
// implements every endpoint the client uses, with knobs for injecting failures
// and alternative response shapes.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
)

// DefaultOTP is the code every signup accepts unless overridden.
const DefaultOTP = "123456"

// Account is a registered HR or applicant user.
type Account struct {
	ID       int64
	Email    string
	Password string
	Name     string
	Company  string
	Verified bool
	HR       bool
}

// Failure is a forced response for a route.
type Failure struct {
	Status int
	Body   any
	// Times limits how many requests fail. Zero means every request.
	Times int
}

type principal struct {
	email string
	hr    bool
}

type application struct {
	ID        int64
	JobID     model.ID
	Email     string
	AppliedAt time.Time
	Score     *float64
}

// Server is safe for concurrent use.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	nextID       int64
	jobs         []model.Job
	accounts     map[string]*Account
	tokens       map[string]principal
	applications []application
	saved        map[string]map[model.ID]time.Time
	profiles     map[string]map[string]any
	resumes      map[string]string
	failures     map[string]*Failure
	calls        map[string]int
	otp          string
	now          func() time.Time

	// WrapLists wraps list responses in an object ({"jobs": [...]}) instead of
	// returning bare arrays.
	WrapLists bool
	// Delay is applied before every response.
	Delay time.Duration
}

// New starts a fake backend. Call Close when done.
func New() *Server {
	s := &Server{
		nextID:   100,
		accounts: map[string]*Account{},
		tokens:   map[string]principal{},
		saved:    map[string]map[model.ID]time.Time{},
		profiles: map[string]map[string]any{},
		resumes:  map[string]string{},
		failures: map[string]*Failure{},
		calls:    map[string]int{},
		otp:      DefaultOTP,
		now:      time.Now,
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", s.handleLogin(true))
	mux.HandleFunc("POST /api/candidate/login", s.handleLogin(false))
	mux.HandleFunc("POST /api/signup", s.handleSignup(true))
	mux.HandleFunc("POST /api/candidate/signup", s.handleSignup(false))
	mux.HandleFunc("POST /api/verify-otp", s.handleVerify(true))
	mux.HandleFunc("POST /api/candidate/verify-otp", s.handleVerify(false))
	mux.HandleFunc("POST /api/resend-otp", s.handleResend(true))
	mux.HandleFunc("POST /api/candidate/resend-otp", s.handleResend(false))
	mux.HandleFunc("GET /api/jobs", s.handleListJobs(false))
	mux.HandleFunc("GET /api/jobs/all", s.handleListJobs(true))
	mux.HandleFunc("POST /api/jobs", s.handleCreateJob)
	mux.HandleFunc("PUT /api/jobs/{id}", s.handleUpdateJob)
	mux.HandleFunc("PATCH /api/jobs/{id}/enabled", s.handleSetEnabled)
	mux.HandleFunc("GET /api/jobs/{id}/applications", s.handleJobApplications)
	mux.HandleFunc("GET /api/applications/all", s.handleAllApplications)
	mux.HandleFunc("GET /api/applications", s.handleMyApplications)
	mux.HandleFunc("POST /api/applications", s.handleApply)
	mux.HandleFunc("GET /api/applications/saved", s.handleSavedJobs)
	mux.HandleFunc("POST /api/applications/save/{id}", s.handleToggleSave)
	mux.HandleFunc("POST /api/candidate/profile", s.handleProfile)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		if s.Delay > 0 {
			time.Sleep(s.Delay)
		}
		s.mu.Lock()
		s.calls[key]++
		f := s.failures[key]
		if f != nil && f.Times > 0 {
			f.Times--
			if f.Times == 0 {
				delete(s.failures, key)
			}
		}
		s.mu.Unlock()
		if f != nil {
			writeJSON(w, f.Status, f.Body)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

// AddJob seeds a job and returns it with its assigned id.
func (s *Server) AddJob(j model.Job) model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.ID.IsZero() {
		s.nextID++
		j.ID = model.NewID(s.nextID)
	}
	if j.Enabled == nil {
		j = j.WithEnabled(true)
	}
	if j.PostedOn == "" {
		j.PostedOn = s.now().Format("2006-01-02")
	}
	s.jobs = append(s.jobs, j)
	return j
}

// AddAccount seeds a verified account.
func (s *Server) AddAccount(a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		s.nextID++
		a.ID = s.nextID
	}
	a.Verified = true
	s.accounts[accountKey(a.Email, a.HR)] = &a
}

// AddApplication seeds an application by email for jobID.
func (s *Server) AddApplication(email string, jobID model.ID, score *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.applications = append(s.applications, application{ID: s.nextID, JobID: jobID, Email: email, AppliedAt: s.now(), Score: score})
}

// SetProfile seeds the server-side profile returned on applicant login.
func (s *Server) SetProfile(email string, profile map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[email] = profile
}

// Profile returns a copy of the stored profile fields for email.
func (s *Server) Profile(email string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]any{}
	for k, v := range s.profiles[email] {
		out[k] = v
	}
	return out
}

// Resume returns the uploaded resume content for email.
func (s *Server) Resume(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumes[email]
}

// IssueToken creates a token for an existing account without a login call.
func (s *Server) IssueToken(email string, hr bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(email, hr)
}

// RevokeTokens invalidates every issued token so the next call gets a 401.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = map[string]principal{}
}

// Fail forces responses for "METHOD /path".
func (s *Server) Fail(route string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = &f
}

// ClearFailures removes every forced failure.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = map[string]*Failure{}
}

// Calls returns how many times "METHOD /path" was requested.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// TotalCalls returns the number of requests received.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// Jobs returns a copy of the stored jobs.
func (s *Server) Jobs() []model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Job, len(s.jobs))
	for i, j := range s.jobs {
		out[i] = j.Clone()
	}
	return out
}

// SetOTP changes the accepted verification code.
func (s *Server) SetOTP(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otp = code
}

func accountKey(email string, hr bool) string {
	if hr {
		return "hr:" + strings.ToLower(email)
	}
	return "applicant:" + strings.ToLower(email)
}

func (s *Server) issueLocked(email string, hr bool) string {
	s.nextID++
	tok := fmt.Sprintf("tok-%d", s.nextID)
	s.tokens[tok] = principal{email: email, hr: hr}
	return tok
}

func (s *Server) principal(r *http.Request) (principal, bool) {
	h := r.Header.Get("Authorization")
	tok, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return principal{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.tokens[tok]
	return p, ok
}

func (s *Server) requireHR(w http.ResponseWriter, r *http.Request) (principal, bool) {
	p, ok := s.principal(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid or expired token"})
		return principal{}, false
	}
	if !p.hr {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "HR access required"})
		return principal{}, false
	}
	return p, true
}

func (s *Server) requireApplicant(w http.ResponseWriter, r *http.Request) (principal, bool) {
	p, ok := s.principal(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid or expired token"})
		return principal{}, false
	}
	if p.hr {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "Candidate access required"})
		return principal{}, false
	}
	return p, true
}

func (s *Server) handleLogin(hr bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if !decodeBody(w, r, &in) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		a := s.accounts[accountKey(in.Email, hr)]
		if a == nil || a.Password != in.Password {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid email or password"})
			return
		}
		if !a.Verified {
			writeJSON(w, http.StatusForbidden, map[string]any{"error": "Please verify your email first"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token": s.issueLocked(a.Email, hr),
			"user":  s.userLocked(a),
		})
	}
}

func (s *Server) userLocked(a *Account) map[string]any {
	u := map[string]any{"id": a.ID, "email": a.Email}
	if a.HR {
		u["fullName"] = a.Name
		u["role"] = "HR"
		if a.Company != "" {
			u["company"] = a.Company
		}
		return u
	}
	u["name"] = a.Name
	if p, ok := s.profiles[a.Email]; ok && len(p) > 0 {
		u["profile"] = p
	}
	return u
}

func (s *Server) handleSignup(hr bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Name     string `json:"name"`
			FullName string `json:"fullName"`
			Email    string `json:"email"`
			Password string `json:"password"`
			Company  string `json:"company"`
		}
		if !decodeBody(w, r, &in) {
			return
		}
		if in.Email == "" || in.Password == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Email and password are required"})
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		key := accountKey(in.Email, hr)
		if a, ok := s.accounts[key]; ok && a.Verified {
			writeJSON(w, http.StatusConflict, map[string]any{"error": "User already exists"})
			return
		}
		s.nextID++
		name := in.Name
		if hr {
			name = in.FullName
		}
		s.accounts[key] = &Account{ID: s.nextID, Email: in.Email, Password: in.Password, Name: name, Company: in.Company, HR: hr}
		writeJSON(w, http.StatusCreated, map[string]any{"message": "OTP sent to your email"})
	}
}

func (s *Server) handleVerify(hr bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.OTPVerification
		if !decodeBody(w, r, &in) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		a := s.accounts[accountKey(in.Email, hr)]
		if a == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "Account not found"})
			return
		}
		if in.OTP != s.otp {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid OTP"})
			return
		}
		a.Verified = true
		out := map[string]any{"message": "Email verified"}
		if hr {
			out["token"] = s.issueLocked(a.Email, true)
			out["user"] = s.userLocked(a)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleResend(hr bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.OTPResend
		if !decodeBody(w, r, &in) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.accounts[accountKey(in.Email, hr)] == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "Account not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "OTP resent"})
	}
}

func (s *Server) handleListJobs(all bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if all {
			if _, ok := s.requireHR(w, r); !ok {
				return
			}
		}
		s.mu.Lock()
		out := make([]model.Job, 0, len(s.jobs))
		for _, j := range s.jobs {
			if all || j.IsEnabled() {
				out = append(out, j.Clone())
			}
		}
		wrap := s.WrapLists
		s.mu.Unlock()
		if wrap {
			writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireHR(w, r); !ok {
		return
	}
	var in model.JobInput
	if !decodeBody(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Company) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Title and company are required"})
		return
	}
	j := s.AddJob(model.Job{
		Title:          in.Title,
		Company:        in.Company,
		Location:       in.Location,
		Salary:         in.Salary,
		ExperienceFrom: in.ExperienceFrom,
		ExperienceTo:   in.ExperienceTo,
		Description:    in.Description,
	})
	writeJSON(w, http.StatusCreated, j)
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireHR(w, r); !ok {
		return
	}
	var patch model.JobPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	id := model.NewID(r.PathValue("id"))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, j := range s.jobs {
		if j.ID == id {
			s.jobs[i] = patch.Apply(j)
			writeJSON(w, http.StatusOK, s.jobs[i])
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "Job not found"})
}

func (s *Server) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireHR(w, r); !ok {
		return
	}
	var in struct {
		Enabled *bool `json:"enabled"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "enabled is required"})
		return
	}
	id := model.NewID(r.PathValue("id"))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, j := range s.jobs {
		if j.ID == id {
			s.jobs[i] = j.WithEnabled(*in.Enabled)
			writeJSON(w, http.StatusOK, s.jobs[i])
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "Job not found"})
}

func (s *Server) applicationJSONLocked(a application) map[string]any {
	out := map[string]any{
		"id":        a.ID,
		"jobId":     a.JobID,
		"email":     a.Email,
		"status":    "applied",
		"appliedAt": a.AppliedAt.UTC().Format(time.RFC3339),
	}
	if acct := s.accounts[accountKey(a.Email, false)]; acct != nil {
		out["name"] = acct.Name
	}
	if a.Score != nil {
		out["matchScore"] = *a.Score
	}
	for _, j := range s.jobs {
		if j.ID == a.JobID {
			out["jobTitle"] = j.Title
		}
	}
	return out
}

func (s *Server) writeApplications(w http.ResponseWriter, match func(application) bool) {
	s.mu.Lock()
	out := []map[string]any{}
	for _, a := range s.applications {
		if match(a) {
			out = append(out, s.applicationJSONLocked(a))
		}
	}
	wrap := s.WrapLists
	s.mu.Unlock()
	if wrap {
		writeJSON(w, http.StatusOK, map[string]any{"applications": out})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleJobApplications(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireHR(w, r); !ok {
		return
	}
	id := model.NewID(r.PathValue("id"))
	s.writeApplications(w, func(a application) bool { return a.JobID == id })
}

func (s *Server) handleAllApplications(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireHR(w, r); !ok {
		return
	}
	s.writeApplications(w, func(application) bool { return true })
}

func (s *Server) handleMyApplications(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireApplicant(w, r)
	if !ok {
		return
	}
	// Nested job objects exercise the client's jobId extraction.
	s.mu.Lock()
	out := []map[string]any{}
	for _, a := range s.applications {
		if a.Email == p.email {
			out = append(out, map[string]any{"id": a.ID, "job": map[string]any{"id": a.JobID}, "status": "applied"})
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireApplicant(w, r)
	if !ok {
		return
	}
	var in struct {
		JobID model.ID `json:"jobId"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, j := range s.jobs {
		if j.ID == in.JobID && j.IsEnabled() {
			found = true
		}
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Job not found"})
		return
	}
	for _, a := range s.applications {
		if a.Email == p.email && a.JobID == in.JobID {
			writeJSON(w, http.StatusConflict, map[string]any{"error": "You have already applied to this job"})
			return
		}
	}
	s.nextID++
	s.applications = append(s.applications, application{ID: s.nextID, JobID: in.JobID, Email: p.email, AppliedAt: s.now()})
	delete(s.saved[p.email], in.JobID)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Application submitted", "id": s.nextID})
}

func (s *Server) handleSavedJobs(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireApplicant(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	out := []map[string]any{}
	for id, at := range s.saved[p.email] {
		out = append(out, map[string]any{"jobId": id.String(), "savedAt": at.UTC().Format(time.RFC3339Nano)})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleToggleSave(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireApplicant(w, r)
	if !ok {
		return
	}
	id := model.NewID(r.PathValue("id"))
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.saved[p.email]
	if set == nil {
		set = map[model.ID]time.Time{}
		s.saved[p.email] = set
	}
	if _, exists := set[id]; exists {
		delete(set, id)
		writeJSON(w, http.StatusOK, map[string]any{"saved": false})
		return
	}
	set[id] = s.now()
	writeJSON(w, http.StatusOK, map[string]any{"saved": true})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireApplicant(w, r)
	if !ok {
		return
	}
	fields := map[string]any{}
	resume := ""
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		for k, v := range r.MultipartForm.Value {
			fields[k] = decodeFormValue(v[0])
		}
		if f, hdr, err := r.FormFile("resume"); err == nil {
			b, _ := io.ReadAll(f)
			_ = f.Close()
			resume = string(b)
			if _, set := fields["resumeFileName"]; !set {
				fields["resumeFileName"] = hdr.Filename
			}
		}
	} else if !decodeBody(w, r, &fields) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prof := s.profiles[p.email]
	if prof == nil {
		prof = map[string]any{}
		s.profiles[p.email] = prof
	}
	for k, v := range fields {
		prof[k] = v
	}
	if resume != "" {
		s.resumes[p.email] = resume
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Profile saved", "profile": prof})
}

// decodeFormValue restores JSON-stringified arrays, objects and booleans.
func decodeFormValue(v string) any {
	trimmed := strings.TrimSpace(v)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		var out any
		if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
			return out
		}
	}
	if b, err := strconv.ParseBool(trimmed); err == nil && (trimmed == "true" || trimmed == "false") {
		return b
	}
	return v
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
