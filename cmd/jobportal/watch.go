package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AI-Team-Dev/jobportal/internal/store"
)

func newWatchCmd(a *app) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow state changes made by other clients",
		Long: `Print a summary line whenever the shared state changes, for example when
another terminal logs in or applies to a job. Failed job fetches are retried in
the background. Stops on Ctrl-C or after --for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			return a.watch(ctx, s)
		},
	}
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (default: until interrupted)")
	return cmd
}

func (a *app) watch(ctx context.Context, s *store.Store) error {
	lines := make(chan string, 16)
	last := summarize(s.Snapshot())
	a.console().Print("%s", last)

	unsubscribe := s.Subscribe(func(snap store.Snapshot) {
		select {
		case lines <- summarize(snap):
		default:
		}
	})
	defer unsubscribe()

	retryDone := make(chan struct{})
	go func() {
		defer close(retryDone)
		s.RunJobsRetry(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			<-retryDone
			return nil
		case line := <-lines:
			if line == last {
				continue
			}
			last = line
			a.console().Print("%s", line)
		}
	}
}

func summarize(snap store.Snapshot) string {
	session := "anonymous"
	switch {
	case snap.HR.LoggedIn && snap.Applicant.LoggedIn:
		session = fmt.Sprintf("hr=%s applicant=%s", snap.HR.Email, snap.Applicant.Email)
	case snap.HR.LoggedIn:
		session = "hr=" + snap.HR.Email
	case snap.Applicant.LoggedIn:
		session = "applicant=" + snap.Applicant.Email
	}
	line := fmt.Sprintf("%s jobs=%d applied=%d saved=%d", session, len(snap.Jobs), len(snap.Applied), len(snap.Saved))
	if snap.Profile.Completed {
		line += " profile=complete"
	}
	if snap.JobsError != "" {
		line += fmt.Sprintf(" jobs_error=%q", snap.JobsError)
	}
	return line
}
