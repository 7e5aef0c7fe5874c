package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/AI-Team-Dev/jobportal/config"
	"github.com/AI-Team-Dev/jobportal/internal/bootstrap"
	"github.com/AI-Team-Dev/jobportal/internal/observability/notify"
	"github.com/AI-Team-Dev/jobportal/internal/observability/statsd"
	"github.com/AI-Team-Dev/jobportal/internal/ports"
	"github.com/AI-Team-Dev/jobportal/internal/store"
)

// app carries the per-invocation state shared by every command.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// storage and clock replace the configured ones when set.
	storage ports.StateStorage
	clock   ports.Clock

	flags struct {
		envFile     string
		apiURL      string
		backend     string
		noColor     bool
		jsonOut     bool
		verbose     bool
		metricsDump bool
	}

	printer  *printer
	portal   *bootstrap.Portal
	recorder *statsd.Recorder

	mu       sync.Mutex
	notified map[string]bool
}

// errAlreadyReported marks a failure the user has already seen as a notification.
var errAlreadyReported = errors.New("already reported")

func run(ctx context.Context, a *app, args []string) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil {
		slog.Default().Warn("shutdown", "error", cerr)
	}
	if err == nil {
		return 0
	}
	if !errors.Is(err, errAlreadyReported) {
		a.console().Error("%s", err)
	}
	return 1
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "jobportal",
		Short: "Job portal client",
		Long: `jobportal talks to the job portal backend on behalf of an HR user or an
applicant. Sessions, the applicant profile, applications and bookmarks persist
between invocations and are shared with other clients using the same storage.

Example usage:
  jobportal jobs list
  jobportal login applicant --email ann@mail.test
  jobportal profile set --full-name "Ann Smith" --resume cv.pdf
  jobportal apply 42
  jobportal hr candidates 42 --filter 80+`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.envFile, "env-file", "", "dotenv file to load (default .env)")
	pf.StringVar(&a.flags.apiURL, "api-url", "", "backend base URL (overrides API_URL)")
	pf.StringVar(&a.flags.backend, "storage", "", "state backend: memory, file, redis, postgres (overrides STORAGE_BACKEND)")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "disable coloured output")
	pf.BoolVar(&a.flags.jsonOut, "json", false, "print results as JSON")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "debug logging on stderr")
	pf.BoolVar(&a.flags.metricsDump, "metrics-dump", false, "print collected metrics after the command")

	root.AddCommand(
		newJobsCmd(a),
		newLoginCmd(a),
		newSignupCmd(a),
		newVerifyCmd(a),
		newResendCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newRouteCmd(a),
		newProfileCmd(a),
		newApplyCmd(a),
		newSaveCmd(a),
		newApplicationsCmd(a),
		newSavedCmd(a),
		newHRCmd(a),
		newWatchCmd(a),
	)
	return root
}

// open loads config and starts the store on first use.
func (a *app) open(ctx context.Context) (*store.Store, error) {
	if a.portal != nil {
		return a.portal.Store, nil
	}

	var envFiles []string
	if a.flags.envFile != "" {
		envFiles = append(envFiles, a.flags.envFile)
	}
	cfg, err := bootstrap.LoadConfig(envFiles...)
	if err != nil {
		return nil, err
	}
	if err := a.applyOverrides(&cfg); err != nil {
		return nil, err
	}

	level := slog.LevelError
	if a.flags.verbose {
		level = bootstrap.LogLevel(true)
	}
	logger := bootstrap.InitLogger(a.errOut, level)

	var extra statsd.Sink
	if a.flags.metricsDump {
		a.recorder = &statsd.Recorder{}
		extra = a.recorder
	}

	p, err := bootstrap.BuildPortal(ctx, bootstrap.PortalOptions{
		Config:  &cfg,
		Logger:  logger,
		Sinks:   []notify.Registration{{Name: "console", Sink: notify.SinkFunc(a.deliver)}},
		Metrics: extra,
		Storage: a.storage,
		Clock:   a.clock,
	})
	if err != nil {
		return nil, err
	}
	a.portal = p
	if err := p.Store.Start(ctx); err != nil {
		return nil, err
	}
	return p.Store, nil
}

func (a *app) applyOverrides(cfg *config.AppConfig) error {
	if a.flags.apiURL != "" {
		cfg.API.URL = strings.TrimRight(strings.TrimSpace(a.flags.apiURL), "/")
	}
	if a.flags.backend != "" {
		var b config.StorageBackend
		if err := b.UnmarshalText([]byte(a.flags.backend)); err != nil {
			return err
		}
		cfg.Storage.Backend = b
	}
	return nil
}

func (a *app) close() error {
	if a.portal == nil {
		return nil
	}
	err := a.portal.Close()
	if a.recorder != nil {
		a.printMetrics(a.recorder.Metrics())
	}
	a.portal = nil
	return err
}

func (a *app) console() *printer {
	if a.printer == nil {
		a.printer = newPrinter(a.out, a.errOut, !a.flags.noColor, a.flags.jsonOut)
	}
	return a.printer
}

// deliver prints store notifications and remembers error messages so the
// same failure is not printed twice.
func (a *app) deliver(_ context.Context, n ports.Notification) error {
	p := a.console()
	switch n.Level {
	case ports.LevelError:
		a.mu.Lock()
		if a.notified == nil {
			a.notified = map[string]bool{}
		}
		a.notified[n.Message] = true
		a.mu.Unlock()
		p.Error("%s", n.Message)
	case ports.LevelSuccess:
		p.Success("%s", n.Message)
	default:
		p.Info("%s", n.Message)
	}
	return nil
}

// check converts a failed store result into a command error.
func (a *app) check(res store.Result) error {
	if res.OK {
		return nil
	}
	a.mu.Lock()
	seen := a.notified[res.Message]
	a.mu.Unlock()
	if seen {
		return errAlreadyReported
	}
	if res.Message == "" {
		return fmt.Errorf("%s", res.Reason)
	}
	return errors.New(res.Message)
}
