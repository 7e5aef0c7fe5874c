// Package store is the application store: the single mutator of session, job,
// profile and membership state. Every operation returns a Result instead of an
// error, persists the slices it touched through the mirror, and publishes a
// Snapshot to subscribers.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/AI-Team-Dev/jobportal/internal/adapters/clock"
	"github.com/AI-Team-Dev/jobportal/internal/domain/auth"
	"github.com/AI-Team-Dev/jobportal/internal/domain/membership"
	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
	"github.com/AI-Team-Dev/jobportal/internal/mirror"
	"github.com/AI-Team-Dev/jobportal/internal/observability/metrics"
	"github.com/AI-Team-Dev/jobportal/internal/observability/statsd"
	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

// Gateway is the backend surface the store drives. *backend.Gateway satisfies it.
type Gateway interface {
	LoginHR(ctx context.Context, in auth.Credentials) (auth.LoginResult, error)
	LoginApplicant(ctx context.Context, in auth.Credentials) (auth.LoginResult, error)
	SignupHR(ctx context.Context, in model.HRSignup) (json.RawMessage, error)
	SignupApplicant(ctx context.Context, in model.ApplicantSignup) (json.RawMessage, error)
	VerifyHROTP(ctx context.Context, in model.OTPVerification) (auth.LoginResult, json.RawMessage, error)
	VerifyApplicantOTP(ctx context.Context, in model.OTPVerification) (json.RawMessage, error)
	ResendHROTP(ctx context.Context, in model.OTPResend) (json.RawMessage, error)
	ResendApplicantOTP(ctx context.Context, in model.OTPResend) (json.RawMessage, error)
	ListJobs(ctx context.Context, all bool) ([]model.Job, error)
	CreateJob(ctx context.Context, in model.JobInput) (json.RawMessage, error)
	UpdateJob(ctx context.Context, id model.ID, patch model.JobPatch) (*model.Job, error)
	SetJobEnabled(ctx context.Context, id model.ID, enabled bool) error
	ListApplicationsForJob(ctx context.Context, id model.ID) ([]model.Application, error)
	ListAllApplications(ctx context.Context) ([]model.Application, error)
	ListMyApplications(ctx context.Context) ([]model.ID, error)
	Apply(ctx context.Context, jobID model.ID) error
	ListSavedJobs(ctx context.Context) ([]model.SavedJob, error)
	ToggleSave(ctx context.Context, jobID model.ID) (bool, error)
	UpsertProfile(ctx context.Context, patch model.ProfilePatch) error
}

// Tokens holds the bearer credential. *token.Holder satisfies it.
type Tokens interface {
	Get(ctx context.Context) string
	Set(ctx context.Context, token string)
	Clear(ctx context.Context)
	Reload(ctx context.Context) string
}

// UnauthorizedRegistrar lets the store install its forced-logout hook on the
// HTTP client. *apiclient.Client satisfies it.
type UnauthorizedRegistrar interface {
	SetUnauthorizedHandler(fn func())
}

// Policy holds the behaviour switches and delays of the store.
type Policy struct {
	// SaveRequiresLogin rejects ToggleSaveJob without an applicant session.
	// When false, anonymous toggles are kept locally.
	SaveRequiresLogin bool
	// RollbackOnFailure restores the pre-mutation job when a backend job
	// write fails. When false the optimistic value is kept.
	RollbackOnFailure bool
	// ApplicantRefreshDelay defers the applicant data refresh after login.
	ApplicantRefreshDelay time.Duration
	// ApplyRefreshDelay defers the applicant data refresh after an apply.
	ApplyRefreshDelay time.Duration
	// JobsRetryDelay is the fixed wait between RunJobsRetry attempts.
	JobsRetryDelay time.Duration
}

// DefaultPolicy returns the stock policy.
func DefaultPolicy() Policy {
	return Policy{
		SaveRequiresLogin:     true,
		ApplicantRefreshDelay: 100 * time.Millisecond,
		ApplyRefreshDelay:     500 * time.Millisecond,
		JobsRetryDelay:        5 * time.Second,
	}
}

// Options groups dependencies for Store.
type Options struct {
	Gateway      Gateway
	Tokens       Tokens
	Mirror       *mirror.Mirror
	Unauthorized UnauthorizedRegistrar // optional
	Notifier     ports.Notifier        // optional
	Clock        ports.Clock           // optional, defaults to the system clock
	Metrics      statsd.Sink           // optional
	Logger       *slog.Logger          // optional
	Policy       *Policy               // optional, defaults to DefaultPolicy()
}

// state is the mutable core. It is only touched under Store.mu.
type state struct {
	jobs        []model.Job
	jobsLoading bool
	jobsError   string

	hr          auth.Session
	applicant   auth.Session
	user        *auth.User
	authLoading bool
	authError   string

	profile model.ApplicantProfile
	applied membership.Applied
	saved   membership.Saved
}

func initialState() state {
	return state{
		jobs:    []model.Job{},
		profile: model.DefaultProfile(),
		applied: membership.NewApplied(),
		saved:   membership.Saved{},
	}
}

// Store is safe for concurrent use. Network calls are never made while the
// state lock is held.
type Store struct {
	gw       Gateway
	tokens   Tokens
	mirror   *mirror.Mirror
	unauth   UnauthorizedRegistrar
	notifier ports.Notifier
	clock    ports.Clock
	metrics  statsd.Sink
	logger   *slog.Logger
	policy   Policy

	mu sync.Mutex
	st state

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int

	bgMu      sync.Mutex
	bgCtx     context.Context
	bgCancel  context.CancelFunc
	timers    map[int]ports.Timer
	nextTimer int
	closed    bool
	started   bool
	wg        sync.WaitGroup
	stopWatch func()
}

// New constructs a Store. Call Start to hydrate and begin syncing.
func New(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	policy := DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	bgCtx, cancel := context.WithCancel(context.Background())
	return &Store{
		gw:       opts.Gateway,
		tokens:   opts.Tokens,
		mirror:   opts.Mirror,
		unauth:   opts.Unauthorized,
		notifier: opts.Notifier,
		clock:    clk,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "store"),
		policy:   policy,
		st:       initialState(),
		subs:     make(map[int]func(Snapshot)),
		bgCtx:    bgCtx,
		bgCancel: cancel,
		timers:   make(map[int]ports.Timer),
	}
}

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("store closed")

// Start registers the forced-logout hook, drops the legacy job cache, hydrates
// from persisted state, subscribes to external changes and loads jobs. A
// failing change subscription is logged and the store keeps running without
// cross-context sync.
func (s *Store) Start(ctx context.Context) error {
	s.bgMu.Lock()
	if s.closed {
		s.bgMu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.bgMu.Unlock()
		return nil
	}
	s.started = true
	s.bgMu.Unlock()

	if s.unauth != nil {
		s.unauth.SetUnauthorizedHandler(s.handleUnauthorized)
	}
	s.mirror.PurgeLegacy(ctx)
	s.hydrate(ctx, false)

	stop, err := s.mirror.SubscribeExternalChange(s.bgCtx, func() {
		s.reconcile(s.bgCtx)
	})
	if err != nil {
		s.logger.Warn("external change subscription failed", "error", err)
	} else {
		s.bgMu.Lock()
		s.stopWatch = stop
		s.bgMu.Unlock()
	}

	s.FetchJobs(ctx)
	s.FetchApplicantData(ctx)
	return nil
}

// Close stops the change subscription, cancels deferred refreshes and waits
// for background work to finish. It is safe to call more than once.
func (s *Store) Close() {
	s.bgMu.Lock()
	if s.closed {
		s.bgMu.Unlock()
		return
	}
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	stop := s.stopWatch
	s.stopWatch = nil
	s.bgMu.Unlock()

	if stop != nil {
		stop()
	}
	if s.unauth != nil {
		s.unauth.SetUnauthorizedHandler(nil)
	}
	s.bgCancel()
	s.wg.Wait()
}

// Subscribe registers fn to receive a snapshot after every state change.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) publish() {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	if len(fns) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}

// update mutates state under the lock, then persists the slices fn reports
// as touched and publishes. Persistence runs outside the lock because storage
// backends may deliver change callbacks synchronously.
func (s *Store) update(ctx context.Context, fn func(st *state) []mirror.Slice) {
	s.mu.Lock()
	touched := fn(&s.st)
	values := make(map[mirror.Slice]any, len(touched))
	for _, sl := range touched {
		values[sl] = s.st.sliceValue(sl)
	}
	s.mu.Unlock()

	for _, sl := range touched {
		if v := values[sl]; v != nil {
			s.mirror.Write(ctx, sl, v)
		} else {
			s.mirror.Remove(ctx, sl)
		}
	}
	s.publish()
}

// sliceValue returns a detached copy of a persisted slice. A nil result means
// the slice should be removed.
func (st *state) sliceValue(sl mirror.Slice) any {
	switch sl {
	case mirror.SliceAuth:
		return st.hr
	case mirror.SliceApplicantAuth:
		return st.applicant
	case mirror.SliceApplicantProfile:
		return st.profile.Clone()
	case mirror.SliceApplicantApplications:
		return st.applied.Clone()
	case mirror.SliceApplicantSavedJobs:
		return st.saved.Clone()
	case mirror.SliceUser:
		if st.user == nil {
			return nil
		}
		u := cloneUser(*st.user)
		return &u
	default:
		return nil
	}
}

func (s *Store) read(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.st)
}

// after runs fn once d elapses unless the store is closed first.
func (s *Store) after(d time.Duration, fn func(ctx context.Context)) {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.closed {
		return
	}
	id := s.nextTimer
	s.nextTimer++
	s.timers[id] = s.clock.AfterFunc(d, func() {
		s.bgMu.Lock()
		delete(s.timers, id)
		if s.closed {
			s.bgMu.Unlock()
			return
		}
		s.wg.Add(1)
		s.bgMu.Unlock()
		defer s.wg.Done()
		fn(s.bgCtx)
	})
}

// goTracked runs fn on a new goroutine that Close waits for.
func (s *Store) goTracked(fn func(ctx context.Context)) {
	s.bgMu.Lock()
	if s.closed {
		s.bgMu.Unlock()
		return
	}
	s.wg.Add(1)
	s.bgMu.Unlock()
	go func() {
		defer s.wg.Done()
		fn(s.bgCtx)
	}()
}

func (s *Store) handleUnauthorized() {
	s.logger.Info("backend rejected credential, logging out")
	s.Logout(s.bgCtx)
	s.notify(s.bgCtx, ports.LevelInfo, "session", "Your session has expired. Please log in again.")
}

func (s *Store) notify(ctx context.Context, level ports.Level, source, message string) {
	if s.notifier == nil || message == "" {
		return
	}
	s.notifier.Notify(ctx, ports.Notification{Level: level, Source: source, Message: message})
}

// observe emits the store operation metric for res.
func (s *Store) observe(op string, start time.Time, res Result) {
	result := metrics.ResultSuccess
	switch {
	case res.Reason == ReasonSkipped:
		result = metrics.ResultNoop
	case !res.OK:
		result = metrics.ResultError
	}
	metrics.EmitStoreOperation(s.metrics, metrics.StoreOperationMetric{
		Operation: op,
		Result:    result,
		Reason:    string(res.Reason),
		Duration:  s.clock.Now().Sub(start),
	})
}

// instrument wraps an operation body with metrics.
func (s *Store) instrument(op string, body func() Result) Result {
	start := s.clock.Now()
	res := body()
	s.observe(op, start, res)
	return res
}

func cloneUser(u auth.User) auth.User {
	if u.Profile != nil {
		p := u.Profile.Clone()
		u.Profile = &p
	}
	return u
}
