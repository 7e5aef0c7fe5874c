package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
	"github.com/AI-Team-Dev/jobportal/internal/domain/review"
	"github.com/AI-Team-Dev/jobportal/internal/store"
)

func newHRCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hr",
		Short: "Manage postings and review candidates (HR session required)",
	}
	cmd.AddCommand(
		newHRPostCmd(a),
		newHREditCmd(a),
		newHRToggleCmd(a, "enable", true),
		newHRToggleCmd(a, "disable", false),
		newHRCandidatesCmd(a),
	)
	return cmd
}

// jobFlags are the posting fields shared by post and edit.
var jobFlags = []struct {
	name, usage string
	input       func(*model.JobInput) *string
	patch       func(*model.JobPatch) **string
}{
	{"title", "job title", func(in *model.JobInput) *string { return &in.Title }, func(p *model.JobPatch) **string { return &p.Title }},
	{"company", "company name", func(in *model.JobInput) *string { return &in.Company }, func(p *model.JobPatch) **string { return &p.Company }},
	{"location", "job location", func(in *model.JobInput) *string { return &in.Location }, func(p *model.JobPatch) **string { return &p.Location }},
	{"salary", "salary range", func(in *model.JobInput) *string { return &in.Salary }, func(p *model.JobPatch) **string { return &p.Salary }},
	{"experience-from", "minimum years of experience", func(in *model.JobInput) *string { return &in.ExperienceFrom }, func(p *model.JobPatch) **string { return &p.ExperienceFrom }},
	{"experience-to", "maximum years of experience", func(in *model.JobInput) *string { return &in.ExperienceTo }, func(p *model.JobPatch) **string { return &p.ExperienceTo }},
	{"description", "job description", func(in *model.JobInput) *string { return &in.Description }, func(p *model.JobPatch) **string { return &p.Description }},
}

func addJobFlags(f *pflag.FlagSet) {
	for _, jf := range jobFlags {
		f.String(jf.name, "", jf.usage)
	}
}

func newHRPostCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Create a job posting",
		Example: `  jobportal hr post --title "Go Engineer" --company Acme --location Berlin \
    --salary "80-100k" --experience-from 3 --experience-to 6`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in model.JobInput
			for _, jf := range jobFlags {
				v, _ := cmd.Flags().GetString(jf.name)
				*jf.input(&in) = strings.TrimSpace(v)
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			res := s.AddJob(cmd.Context(), in)
			if err := a.check(res); err != nil {
				return err
			}
			a.console().Success("Posted %q", in.Title)
			return nil
		},
	}
	addJobFlags(cmd.Flags())
	return cmd
}

func newHREditCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <job-id>",
		Short: "Update fields of a posting; only the flags you pass change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch model.JobPatch
			changed := 0
			for _, jf := range jobFlags {
				if !cmd.Flags().Changed(jf.name) {
					continue
				}
				v, _ := cmd.Flags().GetString(jf.name)
				*jf.patch(&patch) = model.Ptr(strings.TrimSpace(v))
				changed++
			}
			if changed == 0 {
				return fmt.Errorf("nothing to change; pass at least one field flag")
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.requireHR(s); err != nil {
				return err
			}
			id := model.NewID(args[0])
			if err := a.check(s.UpdateJob(cmd.Context(), id, patch)); err != nil {
				return err
			}
			a.console().Success("Updated job %s", id)
			return nil
		},
	}
	addJobFlags(cmd.Flags())
	return cmd
}

func newHRToggleCmd(a *app, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <job-id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a posting for applicants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.requireHR(s); err != nil {
				return err
			}
			id := model.NewID(args[0])
			if err := a.check(s.SetJobEnabled(cmd.Context(), id, enabled)); err != nil {
				return err
			}
			a.console().Success("Job %s %sd", id, verb)
			return nil
		},
	}
}

type candidateRow struct {
	model.Application
	EffectiveScore float64 `json:"effectiveScore"`
	Label          string  `json:"label"`
}

func newHRCandidatesCmd(a *app) *cobra.Command {
	var filterID string
	ids := make([]string, len(review.Filters))
	for i, f := range review.Filters {
		ids[i] = f.ID
	}
	cmd := &cobra.Command{
		Use:   "candidates [job-id]",
		Short: "List applications, optionally for one job, filtered by match score",
		Example: `  jobportal hr candidates
  jobportal hr candidates 42 --filter 80+`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, ok := review.FilterByID(filterID)
			if !ok {
				return fmt.Errorf("unknown filter %q (valid options: %s)", filterID, strings.Join(ids, ", "))
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			var (
				apps []model.Application
				res  store.Result
			)
			if len(args) == 1 {
				apps, res = s.FetchApplicationsForJob(cmd.Context(), model.NewID(args[0]))
			} else {
				apps, res = s.FetchAllApplications(cmd.Context())
			}
			if err := a.check(res); err != nil {
				return err
			}

			shown := review.Apply(apps, filter)
			rows := make([]candidateRow, 0, len(shown))
			for _, app := range shown {
				score := app.EffectiveScore()
				rows = append(rows, candidateRow{Application: app, EffectiveScore: score, Label: review.Label(score)})
			}
			p := a.console()
			if a.flags.jsonOut {
				return p.JSON(rows)
			}

			p.Info("%s", formatCounts(review.Counts(apps)))
			if len(rows) == 0 {
				p.Info("No candidates in %s.", filter.Label)
				return nil
			}
			table := make([][]string, 0, len(rows))
			for _, r := range rows {
				job := r.JobTitle
				if job == "" {
					job = r.JobID.String()
				}
				table = append(table, []string{
					r.Name,
					r.Email,
					job,
					fmt.Sprintf("%.0f%%", r.EffectiveScore),
					p.badge(r.Label, tierColor(review.TierOf(r.EffectiveScore))),
					r.Status,
				})
			}
			return p.Table([]string{"NAME", "EMAIL", "JOB", "SCORE", "LABEL", "STATUS"}, table)
		},
	}
	cmd.Flags().StringVarP(&filterID, "filter", "f", "all", "score range: "+strings.Join(ids, ", "))
	_ = cmd.RegisterFlagCompletionFunc("filter", cobra.FixedCompletions(ids, cobra.ShellCompDirectiveNoFileComp))
	return cmd
}

func tierColor(t review.Tier) color.Attribute {
	switch {
	case t >= review.TierGood:
		return color.FgGreen
	case t >= review.TierModerate:
		return color.FgYellow
	default:
		return color.FgRed
	}
}

// formatCounts renders per-filter counts in display order.
func formatCounts(counts map[string]int) string {
	order := make(map[string]int, len(review.Filters))
	keys := make([]string, 0, len(counts))
	for i, f := range review.Filters {
		order[f.ID] = i
	}
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return order[keys[i]] < order[keys[j]] })
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, counts[k]))
	}
	return strings.Join(parts, "  ")
}

// requireHR applies the navigation guard for HR pages.
func (a *app) requireHR(s *store.Store) error {
	if d := s.AuthorizeRoute(store.RouteDashboard); !d.Allowed {
		return errNotAllowed(d)
	}
	return nil
}
