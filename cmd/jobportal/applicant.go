package main

import (
	"github.com/spf13/cobra"

	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
	"github.com/AI-Team-Dev/jobportal/internal/store"
)

func newApplyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <job-id>",
		Short: "Apply to a job as the logged-in applicant",
		Long: `Apply to a job. Requires an applicant session and a complete profile with a
resume and at least one education entry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			id := model.NewID(args[0])
			if s.IsApplied(id) {
				a.console().Info("Already applied to %s", id)
				return nil
			}
			// The store prints its own success notification.
			return a.check(s.ApplyToJobAsApplicant(cmd.Context(), id))
		},
	}
}

func newSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save <job-id>",
		Short: "Bookmark a job, or remove the bookmark if it is already saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			id := model.NewID(args[0])
			res := s.ToggleSaveJob(cmd.Context(), id)
			if err := a.check(res); err != nil {
				return err
			}
			if res.Err != nil {
				a.console().Warning("Server unavailable, bookmark changed locally only: %v", res.Err)
			}
			if res.Saved {
				a.console().Success("Saved job %s", id)
			} else {
				a.console().Success("Removed job %s from saved jobs", id)
			}
			return nil
		},
	}
}

func newApplicationsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "applications",
		Short: "List the jobs you have applied to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.requireApplicant(s); err != nil {
				return err
			}
			return a.printJobs(withFlags(s, s.AppliedJobs()))
		},
	}
}

func newSavedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "saved",
		Short: "List bookmarked jobs, most recently saved first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJobs(withFlags(s, s.SavedJobs()))
		},
	}
}

// requireApplicant applies the navigation guard for applicant pages.
func (a *app) requireApplicant(s *store.Store) error {
	if d := s.AuthorizeRoute(store.RouteApplications); !d.Allowed {
		return errNotAllowed(d)
	}
	return nil
}
