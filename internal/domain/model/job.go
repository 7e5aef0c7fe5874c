package model

import "strings"

// Job is a posting as returned by the backend.
type Job struct {
	ID             ID     `json:"id"`
	Title          string `json:"title"`
	Company        string `json:"company"`
	Location       string `json:"location"`
	Salary         string `json:"salary,omitempty"`
	ExperienceFrom string `json:"experienceFrom,omitempty"`
	ExperienceTo   string `json:"experienceTo,omitempty"`
	Description    string `json:"description,omitempty"`
	PostedOn       string `json:"postedOn,omitempty"`
	// Enabled is a pointer because the public endpoint may omit it; a missing
	// flag counts as enabled.
	Enabled *bool `json:"enabled,omitempty"`
}

// IsEnabled reports whether the job is visible to applicants (enabled != false).
func (j Job) IsEnabled() bool {
	return j.Enabled == nil || *j.Enabled
}

// WithEnabled returns a copy of j with the enabled flag set.
func (j Job) WithEnabled(enabled bool) Job {
	j.Enabled = &enabled
	return j
}

// Clone returns a deep copy.
func (j Job) Clone() Job {
	if j.Enabled != nil {
		v := *j.Enabled
		j.Enabled = &v
	}
	return j
}

// Matches reports whether the job matches a keyword query over title, company and
// description and a location substring. Empty filters match everything.
func (j Job) Matches(keywords, location string) bool {
	kw := strings.ToLower(strings.TrimSpace(keywords))
	loc := strings.ToLower(strings.TrimSpace(location))
	if kw != "" {
		haystack := strings.ToLower(strings.Join([]string{j.Title, j.Company, j.Description}, " "))
		if !strings.Contains(haystack, kw) {
			return false
		}
	}
	if loc != "" && !strings.Contains(strings.ToLower(j.Location), loc) {
		return false
	}
	return true
}

// JobInput is the body for creating a posting.
type JobInput struct {
	Title          string `json:"title"`
	Company        string `json:"company"`
	Location       string `json:"location"`
	Salary         string `json:"salary,omitempty"`
	ExperienceFrom string `json:"experienceFrom,omitempty"`
	ExperienceTo   string `json:"experienceTo,omitempty"`
	Description    string `json:"description,omitempty"`
}

// JobPatch carries a partial job update. Nil fields are left unchanged.
type JobPatch struct {
	Title          *string `json:"title,omitempty"`
	Company        *string `json:"company,omitempty"`
	Location       *string `json:"location,omitempty"`
	Salary         *string `json:"salary,omitempty"`
	ExperienceFrom *string `json:"experienceFrom,omitempty"`
	ExperienceTo   *string `json:"experienceTo,omitempty"`
	Description    *string `json:"description,omitempty"`
	Enabled        *bool   `json:"enabled,omitempty"`
}

// Apply merges the patch into j and returns the result.
func (p JobPatch) Apply(j Job) Job {
	out := j.Clone()
	setString(&out.Title, p.Title)
	setString(&out.Company, p.Company)
	setString(&out.Location, p.Location)
	setString(&out.Salary, p.Salary)
	setString(&out.ExperienceFrom, p.ExperienceFrom)
	setString(&out.ExperienceTo, p.ExperienceTo)
	setString(&out.Description, p.Description)
	if p.Enabled != nil {
		out = out.WithEnabled(*p.Enabled)
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T { return &v }
