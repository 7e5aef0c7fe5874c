package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/AI-Team-Dev/jobportal/config"
	"github.com/AI-Team-Dev/jobportal/internal/apiclient"
	"github.com/AI-Team-Dev/jobportal/internal/backend"
	"github.com/AI-Team-Dev/jobportal/internal/mirror"
	"github.com/AI-Team-Dev/jobportal/internal/observability/notify"
	"github.com/AI-Team-Dev/jobportal/internal/observability/notify/slack"
	"github.com/AI-Team-Dev/jobportal/internal/observability/statsd"
	"github.com/AI-Team-Dev/jobportal/internal/ports"
	"github.com/AI-Team-Dev/jobportal/internal/store"
	"github.com/AI-Team-Dev/jobportal/internal/token"
)

// PortalOptions configures BuildPortal.
type PortalOptions struct {
	Config *config.AppConfig
	Logger *slog.Logger

	// Console receives user notifications; nil disables the terminal sink.
	Console io.Writer
	NoColor bool
	// Sinks are extra notification destinations.
	Sinks []notify.Registration

	// Metrics receives emissions in addition to the configured StatsD client.
	Metrics statsd.Sink
	// Storage overrides the configured backend.
	Storage ports.StateStorage
	Clock   ports.Clock
}

// Portal holds the wired client core.
type Portal struct {
	Store    *store.Store
	Tokens   *token.Holder
	Client   *apiclient.Client
	Gateway  *backend.Gateway
	Storage  ports.StateStorage
	Notifier *notify.Dispatcher

	closers []func() error
}

// BuildPortal wires storage, the token holder, the HTTP client, the backend
// gateway, the mirror, notifications and the store. The store is not started.
func BuildPortal(ctx context.Context, opts PortalOptions) (*Portal, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.API.URL == "" {
		return nil, errors.New("API_URL is required")
	}
	if cfg.InsecureAPI() {
		logger.Warn("backend API is reached over plain http", "api_url", cfg.API.URL)
	}

	p := &Portal{}

	st := opts.Storage
	if st == nil {
		res, err := BuildStorage(ctx, StorageDeps{
			Storage:  cfg.Storage,
			Postgres: cfg.Postgres,
			Redis:    cfg.Redis,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
		}
		st = res.Storage
		p.closers = append(p.closers, res.Close)
	}
	p.Storage = st

	metrics := statsd.Tee(buildMetricsSink(p, logger, cfg.Observability.Metrics), opts.Metrics)

	p.Tokens = token.NewHolder(token.HolderOptions{Storage: st, Logger: logger})
	client, err := apiclient.New(apiclient.Options{
		BaseURL:   cfg.API.URL,
		Timeout:   cfg.API.ClientTimeout(),
		UserAgent: cfg.API.UserAgent,
		Cookies:   cfg.API.CookiesEnabled,
		Tokens:    p.Tokens,
		Metrics:   metrics,
		Logger:    logger,
		Dev:       cfg.IsDev,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("build api client: %w", err), p.Close())
	}
	p.Client = client
	p.Gateway = backend.New(backend.Options{Client: client, Logger: logger})

	m := mirror.New(mirror.Options{Storage: st, WatchKeys: []string{p.Tokens.Key()}, Logger: logger})
	p.closers = append(p.closers, func() error { m.Close(); return nil })

	sinks := opts.Sinks
	if opts.Console != nil {
		sinks = append(sinks, notify.Registration{Name: "console", Sink: notify.NewConsole(opts.Console, opts.NoColor)})
	}
	p.Notifier = BuildNotifier(logger, cfg.Observability.Notifications, sinks...)

	policy := store.Policy{
		SaveRequiresLogin:     cfg.Store.SaveRequiresLogin,
		RollbackOnFailure:     cfg.Store.RollbackOnFailure,
		ApplicantRefreshDelay: cfg.Store.ApplicantRefreshDelay,
		ApplyRefreshDelay:     cfg.Store.ApplyRefreshDelay,
		JobsRetryDelay:        cfg.Store.JobsRetryDelay,
	}
	p.Store = store.New(store.Options{
		Gateway:      p.Gateway,
		Tokens:       p.Tokens,
		Mirror:       m,
		Unauthorized: client,
		Notifier:     p.Notifier,
		Clock:        opts.Clock,
		Metrics:      metrics,
		Logger:       logger,
		Policy:       &policy,
	})
	return p, nil
}

// Close stops the store and releases storage connections in reverse order.
func (p *Portal) Close() error {
	if p.Store != nil {
		p.Store.Close()
	}
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// buildMetricsSink dials StatsD when enabled. Failures are logged and metrics
// stay off.
func buildMetricsSink(p *Portal, logger *slog.Logger, cfg config.ObservabilityMetricsConfig) statsd.Sink {
	if !cfg.IsEnabled() {
		return nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  statsd.DefaultPrefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	p.closers = append(p.closers, client.Close)
	return client
}

// BuildNotifier assembles the notification fan-out: the structured log, the
// extra sinks, and Slack when configured.
func BuildNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig, extra ...notify.Registration) *notify.Dispatcher {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	sinks := append([]notify.Registration{{Name: "log", Sink: notify.NewLog(baseLogger)}}, extra...)

	if cfg.Enabled && cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
			PortalURL:  cfg.Slack.PortalURL,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, notify.Registration{
				Name:     "slack",
				Sink:     client,
				MinLevel: ports.Level(cfg.Slack.MinLevel),
			})
		}
	}

	return notify.NewDispatcher(notify.Options{
		Logger: baseLogger.With("component", "notifier"),
		Sinks:  sinks,
	})
}
