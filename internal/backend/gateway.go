// Package backend wraps every job portal REST endpoint in a typed method.
// Decoding is shape-tolerant: lists may arrive bare or wrapped in an object,
// and ids may be numbers or strings.
package backend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/AI-Team-Dev/jobportal/internal/apiclient"
	"github.com/AI-Team-Dev/jobportal/internal/domain/auth"
	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
	apperrors "github.com/AI-Team-Dev/jobportal/internal/errors"
)

// Endpoint paths.
const (
	PathLoginHR            = "/api/login"
	PathLoginApplicant     = "/api/candidate/login"
	PathSignupHR           = "/api/signup"
	PathSignupApplicant    = "/api/candidate/signup"
	PathVerifyHR           = "/api/verify-otp"
	PathVerifyApplicant    = "/api/candidate/verify-otp"
	PathResendHR           = "/api/resend-otp"
	PathResendApplicant    = "/api/candidate/resend-otp"
	PathJobs               = "/api/jobs"
	PathJobsAll            = "/api/jobs/all"
	PathApplications       = "/api/applications"
	PathApplicationsAll    = "/api/applications/all"
	PathSavedJobs          = "/api/applications/saved"
	PathCandidateProfile   = "/api/candidate/profile"
	resumeFormField        = "resume"
	errInvalidResponseText = "Invalid response from server"
)

// Doer is the subset of apiclient.Client the gateway needs.
type Doer interface {
	Do(ctx context.Context, path string, opts apiclient.RequestOptions) (*apiclient.Response, error)
}

// Options groups dependencies for Gateway.
type Options struct {
	Client Doer
	JMES   JMESPathEvaluator // optional
	Logger *slog.Logger
}

// Gateway is safe for concurrent use.
type Gateway struct {
	client Doer
	jp     JMESPathEvaluator
	logger *slog.Logger
}

// New constructs a Gateway.
func New(opts Options) *Gateway {
	jp := opts.JMES
	if jp == nil {
		jp = jmespathLibEvaluator{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{client: opts.Client, jp: jp, logger: logger.With("component", "backend")}
}

// LoginHR exchanges HR credentials for a token and user.
func (g *Gateway) LoginHR(ctx context.Context, in auth.Credentials) (auth.LoginResult, error) {
	return g.login(ctx, PathLoginHR, in)
}

// LoginApplicant exchanges applicant credentials for a token and user.
func (g *Gateway) LoginApplicant(ctx context.Context, in auth.Credentials) (auth.LoginResult, error) {
	return g.login(ctx, PathLoginApplicant, in)
}

func (g *Gateway) login(ctx context.Context, path string, in auth.Credentials) (auth.LoginResult, error) {
	resp, err := g.client.Do(ctx, path, apiclient.RequestOptions{Method: http.MethodPost, Body: in})
	if err != nil {
		return auth.LoginResult{}, err
	}
	return g.decodeLogin(ctx, resp), nil
}

// decodeLogin never fails: a body without a token and a user object yields an
// invalid result, which the caller reports as "Invalid response from server".
// The profile is decoded separately; when it cannot be decoded the user is
// returned without one.
func (g *Gateway) decodeLogin(ctx context.Context, resp *apiclient.Response) auth.LoginResult {
	data, err := g.generic(resp)
	if err != nil {
		return auth.LoginResult{}
	}
	body, ok := data.(map[string]any)
	if !ok {
		return auth.LoginResult{}
	}
	token, _ := body["token"].(string)
	fields, ok := body["user"].(map[string]any)
	if !ok {
		return auth.LoginResult{Token: token}
	}

	userFields := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != "profile" {
			userFields[k] = v
		}
	}
	var user auth.User
	if err := decodeLenient(userFields, &user); err != nil {
		g.logger.DebugContext(ctx, "user decoded partially", "error", err)
	}
	if raw, ok := fields["profile"]; ok && raw != nil {
		var p model.ApplicantProfile
		if _, isObj := raw.(map[string]any); !isObj {
			g.logger.WarnContext(ctx, "ignoring login profile", "error", "profile is not an object")
		} else if err := decodeLenient(raw, &p); err != nil {
			g.logger.WarnContext(ctx, "ignoring login profile", "error", err)
		} else {
			user.Profile = &p
		}
	}
	return auth.LoginResult{Token: token, User: &user}
}

// SignupHR creates an HR account.
func (g *Gateway) SignupHR(ctx context.Context, in model.HRSignup) (json.RawMessage, error) {
	return g.postRaw(ctx, PathSignupHR, in)
}

// SignupApplicant creates an applicant account and triggers OTP delivery.
func (g *Gateway) SignupApplicant(ctx context.Context, in model.ApplicantSignup) (json.RawMessage, error) {
	return g.postRaw(ctx, PathSignupApplicant, in)
}

// VerifyHROTP confirms an HR account. The response may carry a token and user.
func (g *Gateway) VerifyHROTP(ctx context.Context, in model.OTPVerification) (auth.LoginResult, json.RawMessage, error) {
	resp, err := g.client.Do(ctx, PathVerifyHR, apiclient.RequestOptions{Method: http.MethodPost, Body: in})
	if err != nil {
		return auth.LoginResult{}, nil, err
	}
	return g.decodeLogin(ctx, resp), rawOf(resp), nil
}

// VerifyApplicantOTP confirms an applicant account.
func (g *Gateway) VerifyApplicantOTP(ctx context.Context, in model.OTPVerification) (json.RawMessage, error) {
	return g.postRaw(ctx, PathVerifyApplicant, in)
}

// ResendHROTP re-sends the HR verification code.
func (g *Gateway) ResendHROTP(ctx context.Context, in model.OTPResend) (json.RawMessage, error) {
	return g.postRaw(ctx, PathResendHR, model.OTPResend{Email: in.Email})
}

// ResendApplicantOTP re-sends the applicant verification code.
func (g *Gateway) ResendApplicantOTP(ctx context.Context, in model.OTPResend) (json.RawMessage, error) {
	return g.postRaw(ctx, PathResendApplicant, in)
}

// ListJobs returns the public enabled-only list, or every job when all is set.
func (g *Gateway) ListJobs(ctx context.Context, all bool) ([]model.Job, error) {
	path := PathJobs
	if all {
		path = PathJobsAll
	}
	resp, err := g.client.Do(ctx, path, apiclient.RequestOptions{})
	if err != nil {
		return nil, err
	}
	data, err := g.generic(resp)
	if err != nil {
		return []model.Job{}, nil
	}
	elems := g.listOf(exprJobList, data)
	jobs := make([]model.Job, 0, len(elems))
	for _, e := range elems {
		if _, ok := e.(map[string]any); !ok {
			g.logger.DebugContext(ctx, "skipping job that is not an object")
			continue
		}
		var j model.Job
		if err := decodeLenient(e, &j); err != nil {
			g.logger.DebugContext(ctx, "job decoded partially", "job_id", j.ID.String(), "error", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// CreateJob posts a new job. The server assigns the id and defaults.
func (g *Gateway) CreateJob(ctx context.Context, in model.JobInput) (json.RawMessage, error) {
	return g.postRaw(ctx, PathJobs, in)
}

// UpdateJob replaces the editable fields of a job. The returned job is nil when
// the backend answers without a job representation.
func (g *Gateway) UpdateJob(ctx context.Context, id model.ID, patch model.JobPatch) (*model.Job, error) {
	resp, err := g.client.Do(ctx, jobPath(id), apiclient.RequestOptions{
		Method: http.MethodPut,
		Body:   patch,
		Route:  PathJobs + "/:id",
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || !resp.JSON {
		return nil, nil
	}
	data, err := g.generic(resp)
	if err != nil || data == nil {
		return nil, nil
	}
	elem, err := g.jp.Evaluate("job || data || @", data)
	if err != nil {
		return nil, nil
	}
	if _, ok := elem.(map[string]any); !ok {
		return nil, nil
	}
	var j model.Job
	if err := decodeLenient(elem, &j); err != nil {
		g.logger.DebugContext(ctx, "job decoded partially", "job_id", id.String(), "error", err)
	}
	if j.ID.IsZero() {
		return nil, nil
	}
	return &j, nil
}

// SetJobEnabled toggles job visibility for applicants.
func (g *Gateway) SetJobEnabled(ctx context.Context, id model.ID, enabled bool) error {
	_, err := g.client.Do(ctx, jobPath(id)+"/enabled", apiclient.RequestOptions{
		Method: http.MethodPatch,
		Body:   map[string]bool{"enabled": enabled},
		Route:  PathJobs + "/:id/enabled",
	})
	return err
}

// ListApplicationsForJob returns the applications for one job (HR).
func (g *Gateway) ListApplicationsForJob(ctx context.Context, id model.ID) ([]model.Application, error) {
	return g.listApplications(ctx, jobPath(id)+"/applications", PathJobs+"/:id/applications")
}

// ListAllApplications returns every application across the HR user's jobs.
func (g *Gateway) ListAllApplications(ctx context.Context) ([]model.Application, error) {
	return g.listApplications(ctx, PathApplicationsAll, "")
}

func (g *Gateway) listApplications(ctx context.Context, path, route string) ([]model.Application, error) {
	resp, err := g.client.Do(ctx, path, apiclient.RequestOptions{Route: route})
	if err != nil {
		return nil, err
	}
	data, err := g.generic(resp)
	if err != nil {
		return []model.Application{}, nil
	}
	elems := g.listOf(exprApplicationList, data)
	apps := make([]model.Application, 0, len(elems))
	for _, e := range elems {
		if _, ok := e.(map[string]any); !ok {
			g.logger.DebugContext(ctx, "skipping application that is not an object")
			continue
		}
		var a model.Application
		if err := decodeLenient(e, &a); err != nil {
			g.logger.DebugContext(ctx, "application decoded partially", "error", err)
		}
		if a.JobID.IsZero() {
			a.JobID = g.idOf(exprApplicationJob, e)
		}
		apps = append(apps, a)
	}
	return apps, nil
}

// ListMyApplications returns the ids of the jobs the applicant applied to.
func (g *Gateway) ListMyApplications(ctx context.Context) ([]model.ID, error) {
	resp, err := g.client.Do(ctx, PathApplications, apiclient.RequestOptions{})
	if err != nil {
		return nil, err
	}
	data, err := g.generic(resp)
	if err != nil {
		return []model.ID{}, nil
	}
	elems := g.listOf(exprApplicationList, data)
	ids := make([]model.ID, 0, len(elems))
	for _, e := range elems {
		if id := g.idOf(exprApplicationJob, e); !id.IsZero() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Apply submits an application for a job.
func (g *Gateway) Apply(ctx context.Context, jobID model.ID) error {
	_, err := g.client.Do(ctx, PathApplications, apiclient.RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]model.ID{"jobId": jobID},
	})
	return err
}

// ListSavedJobs returns the applicant's bookmarked jobs.
func (g *Gateway) ListSavedJobs(ctx context.Context) ([]model.SavedJob, error) {
	resp, err := g.client.Do(ctx, PathSavedJobs, apiclient.RequestOptions{})
	if err != nil {
		return nil, err
	}
	data, err := g.generic(resp)
	if err != nil {
		return []model.SavedJob{}, nil
	}
	elems := g.listOf(exprSavedList, data)
	out := make([]model.SavedJob, 0, len(elems))
	for _, e := range elems {
		id := g.idOf(exprSavedJob, e)
		if id.IsZero() {
			continue
		}
		var ts int64
		if v, err := g.jp.Evaluate(exprSavedAt, e); err == nil {
			ts = parseTimestamp(v)
		}
		out = append(out, model.SavedJob{JobID: id, SavedAt: ts})
	}
	return out, nil
}

// ToggleSave flips the saved state of a job on the server and returns the state
// the server settled on.
func (g *Gateway) ToggleSave(ctx context.Context, jobID model.ID) (bool, error) {
	resp, err := g.client.Do(ctx, PathApplications+"/save/"+url.PathEscape(jobID.String()), apiclient.RequestOptions{
		Method: http.MethodPost,
		Route:  PathApplications + "/save/:id",
	})
	if err != nil {
		return false, err
	}
	data, err := g.generic(resp)
	if err != nil || data == nil {
		return false, apperrors.Validation(errInvalidResponseText)
	}
	v, err := g.jp.Evaluate(exprSavedFlag, data)
	if err != nil {
		return false, apperrors.Validation(errInvalidResponseText)
	}
	saved, ok := v.(bool)
	if !ok {
		return false, apperrors.Validation(errInvalidResponseText)
	}
	return saved, nil
}

// UpsertProfile writes profile fields. A patch carrying a resume is sent as
// multipart form data with the file under "resume"; otherwise it is JSON.
func (g *Gateway) UpsertProfile(ctx context.Context, patch model.ProfilePatch) error {
	var body any = patch
	if patch.Resume != nil && patch.Resume.Content != nil {
		fields, err := patchFields(patch)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeValidation, "encode profile")
		}
		body = &apiclient.Multipart{
			Files: []apiclient.FilePart{{
				Field:       resumeFormField,
				FileName:    patch.Resume.Name,
				ContentType: patch.Resume.ContentType,
				Content:     patch.Resume.Content,
			}},
			Fields: fields,
		}
	}
	_, err := g.client.Do(ctx, PathCandidateProfile, apiclient.RequestOptions{Method: http.MethodPost, Body: body})
	return err
}

func patchFields(patch model.ProfilePatch) (map[string]any, error) {
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (g *Gateway) postRaw(ctx context.Context, path string, body any) (json.RawMessage, error) {
	resp, err := g.client.Do(ctx, path, apiclient.RequestOptions{Method: http.MethodPost, Body: body})
	if err != nil {
		return nil, err
	}
	return rawOf(resp), nil
}

func (g *Gateway) generic(resp *apiclient.Response) (any, error) {
	if resp == nil || !resp.JSON {
		return nil, nil
	}
	return decodeGeneric(resp.Body)
}

func rawOf(resp *apiclient.Response) json.RawMessage {
	if resp == nil || len(resp.Body) == 0 {
		return nil
	}
	if resp.JSON {
		return json.RawMessage(resp.Body)
	}
	raw, _ := json.Marshal(string(resp.Body))
	return raw
}

func jobPath(id model.ID) string {
	return PathJobs + "/" + url.PathEscape(id.String())
}
