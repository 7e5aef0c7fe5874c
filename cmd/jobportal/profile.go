package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
)

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "View and edit the applicant profile",
	}
	cmd.AddCommand(newProfileShowCmd(a), newProfileSetCmd(a), newProfileCompleteCmd(a))
	return cmd
}

func newProfileShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			prof := s.Snapshot().Profile
			p := a.console()
			if a.flags.jsonOut {
				return p.JSON(prof)
			}
			rows := [][]string{
				{"full name", prof.FullName},
				{"email", prof.Email},
				{"phone", prof.Phone},
				{"experience", prof.ExperienceLevel},
				{"serving notice", prof.ServingNotice},
				{"notice period", prof.NoticePeriod},
				{"last working day", prof.LastWorkingDay},
				{"linkedin", prof.LinkedinURL},
				{"portfolio", prof.PortfolioURL},
				{"current location", prof.CurrentLocation},
				{"preferred location", prof.PreferredLocation},
				{"resume", prof.ResumeFileName},
			}
			for i, e := range prof.Education {
				rows = append(rows, []string{fmt.Sprintf("education %d", i+1), joinNonEmpty(e.Degree, e.Institution, e.Year)})
			}
			for i, c := range prof.Certifications {
				rows = append(rows, []string{fmt.Sprintf("certification %d", i+1), joinNonEmpty(c.Name, c.Issuer)})
			}
			for i, e := range prof.Experiences {
				rows = append(rows, []string{fmt.Sprintf("experience %d", i+1), joinNonEmpty(e.Company, e.Role)})
			}
			status := p.badge("incomplete", color.FgYellow)
			if prof.Completed {
				status = p.badge("complete", color.FgGreen)
			}
			rows = append(rows, []string{"status", status})
			return p.Table([]string{"FIELD", "VALUE"}, rows)
		},
	}
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0:0]
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ", ")
}

// profileFlags maps scalar flag names onto profile patch fields.
var profileFlags = []struct {
	name, usage string
	field       func(*model.ProfilePatch) **string
}{
	{"full-name", "full name", func(p *model.ProfilePatch) **string { return &p.FullName }},
	{"email", "contact email", func(p *model.ProfilePatch) **string { return &p.Email }},
	{"phone", "phone number", func(p *model.ProfilePatch) **string { return &p.Phone }},
	{"experience-level", "fresher or experienced", func(p *model.ProfilePatch) **string { return &p.ExperienceLevel }},
	{"serving-notice", "yes or no", func(p *model.ProfilePatch) **string { return &p.ServingNotice }},
	{"notice-period", "notice period, e.g. Immediate or 30 days", func(p *model.ProfilePatch) **string { return &p.NoticePeriod }},
	{"last-working-day", "last working day (YYYY-MM-DD)", func(p *model.ProfilePatch) **string { return &p.LastWorkingDay }},
	{"linkedin", "LinkedIn profile URL", func(p *model.ProfilePatch) **string { return &p.LinkedinURL }},
	{"portfolio", "portfolio URL", func(p *model.ProfilePatch) **string { return &p.PortfolioURL }},
	{"current-location", "current location", func(p *model.ProfilePatch) **string { return &p.CurrentLocation }},
	{"preferred-location", "preferred location", func(p *model.ProfilePatch) **string { return &p.PreferredLocation }},
}

func newProfileSetCmd(a *app) *cobra.Command {
	var (
		resume                      string
		education, certs, jobsHeld []string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update profile fields",
		Long: `Update profile fields. Only the flags you pass are changed. List flags
replace the whole list and may be repeated.

Examples:
  jobportal profile set --full-name "Ann Smith" --phone 5551234
  jobportal profile set --resume ./cv.pdf
  jobportal profile set --education "B.Tech;IIT Delhi;2021" --education "12th;DPS;2017"
  jobportal profile set --experience "Acme;Engineer" --certification "CKA;CNCF"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			patch, closeResume, err := buildProfilePatch(cmd.Flags(), resume, education, certs, jobsHeld)
			if err != nil {
				return err
			}
			defer closeResume()

			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			res := s.SaveApplicantProfile(cmd.Context(), patch)
			if err := a.check(res); err != nil {
				return err
			}
			if res.Err != nil {
				a.console().Warning("Saved locally; the server copy was not updated: %v", res.Err)
				return nil
			}
			a.console().Success("Profile saved")
			return nil
		},
	}
	f := cmd.Flags()
	for _, pf := range profileFlags {
		f.String(pf.name, "", pf.usage)
	}
	f.StringVar(&resume, "resume", "", "resume file to upload")
	f.StringArrayVar(&education, "education", nil, `education entry "degree;institution[;year]"`)
	f.StringArrayVar(&certs, "certification", nil, `certification "name[;issuer]"`)
	f.StringArrayVar(&jobsHeld, "experience", nil, `employment entry "company[;role]"`)
	return cmd
}

func buildProfilePatch(flags *pflag.FlagSet, resume string, education, certs, jobsHeld []string) (model.ProfilePatch, func(), error) {
	var patch model.ProfilePatch
	closeFn := func() {}

	for _, pf := range profileFlags {
		if !flags.Changed(pf.name) {
			continue
		}
		v, _ := flags.GetString(pf.name)
		*pf.field(&patch) = model.Ptr(strings.TrimSpace(v))
	}

	if flags.Changed("education") {
		list := make([]model.Education, 0, len(education))
		for _, raw := range education {
			parts := splitFields(raw, 3)
			if parts[0] == "" || parts[1] == "" {
				return patch, closeFn, fmt.Errorf("education %q: degree and institution are required", raw)
			}
			list = append(list, model.Education{Degree: parts[0], Institution: parts[1], Year: parts[2]})
		}
		patch.Education = &list
	}
	if flags.Changed("certification") {
		list := make([]model.Certification, 0, len(certs))
		for _, raw := range certs {
			parts := splitFields(raw, 2)
			if parts[0] == "" {
				return patch, closeFn, fmt.Errorf("certification %q: name is required", raw)
			}
			list = append(list, model.Certification{Name: parts[0], Issuer: parts[1]})
		}
		patch.Certifications = &list
	}
	if flags.Changed("experience") {
		list := make([]model.Experience, 0, len(jobsHeld))
		for _, raw := range jobsHeld {
			parts := splitFields(raw, 2)
			if parts[0] == "" {
				return patch, closeFn, fmt.Errorf("experience %q: company is required", raw)
			}
			list = append(list, model.Experience{Company: parts[0], Role: parts[1]})
		}
		patch.Experiences = &list
	}

	if resume != "" {
		f, err := os.Open(resume)
		if err != nil {
			return patch, closeFn, fmt.Errorf("open resume: %w", err)
		}
		closeFn = func() { _ = f.Close() }
		ctype := mime.TypeByExtension(filepath.Ext(resume))
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		patch.Resume = &model.ResumeFile{Name: filepath.Base(resume), ContentType: ctype, Content: f}
	}
	return patch, closeFn, nil
}

// splitFields splits a ';' separated value into exactly n trimmed fields.
func splitFields(raw string, n int) []string {
	parts := strings.SplitN(raw, ";", n)
	out := make([]string, n)
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

func newProfileCompleteCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Validate the profile and mark it complete",
		Long: `Validate the profile the way the profile form does and, if it passes,
mark it complete. A complete profile with a resume and an education entry is
required before applying.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			errs := model.ValidateProfileForm(s.Snapshot().Profile)
			if len(errs) > 0 {
				if err := a.printFieldErrors(errs); err != nil {
					return err
				}
				if !force {
					return fmt.Errorf("profile has %d invalid field(s)", len(errs))
				}
				a.console().Warning("Marking complete despite %d invalid field(s)", len(errs))
			}
			if err := a.check(s.MarkApplicantProfileCompleted(cmd.Context())); err != nil {
				return err
			}
			a.console().Success("Profile marked complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "mark complete even if validation fails")
	return cmd
}

func (a *app) printFieldErrors(errs model.FieldErrors) error {
	p := a.console()
	if a.flags.jsonOut {
		return p.JSON(errs)
	}
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, []string{f, errs[f]})
	}
	return p.Table([]string{"FIELD", "PROBLEM"}, rows)
}
