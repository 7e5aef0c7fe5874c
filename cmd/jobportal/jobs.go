package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
	"github.com/AI-Team-Dev/jobportal/internal/store"
)

func newJobsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Browse job postings",
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the postings visible to the current session",
		Long: `List job postings. HR users also see disabled postings; everyone else sees
enabled postings only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if msg := s.Snapshot().JobsError; msg != "" {
				a.console().Warning("%s", msg)
			}
			return a.printJobs(withFlags(s, s.VisibleJobs()))
		},
	}

	var location string
	search := &cobra.Command{
		Use:   "search [keywords...]",
		Short: "Search enabled postings by keyword and location",
		Long: `Search enabled postings. Keywords match title, company and description;
--location matches a substring of the job location. Both are case-insensitive.

Examples:
  jobportal jobs search engineer
  jobportal jobs search --location berlin
  jobportal jobs search "data analyst" --location remote`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJobs(withFlags(s, s.SearchJobs(strings.Join(args, " "), location)))
		},
	}
	search.Flags().StringVarP(&location, "location", "l", "", "location substring")

	cmd.AddCommand(list, search)
	return cmd
}

func withFlags(s *store.Store, jobs []model.Job) []jobRow {
	snap := s.Snapshot()
	rows := make([]jobRow, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, jobRow{Job: j, Applied: snap.Applied.Has(j.ID), Saved: snap.Saved.Has(j.ID)})
	}
	return rows
}
