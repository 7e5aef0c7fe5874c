package store

import (
	"path"
	"strings"

	"github.com/AI-Team-Dev/jobportal/internal/domain/auth"
	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
)

// IsApplied reports whether the applicant has applied to id. Numeric and
// string spellings of an id are equivalent.
func (s *Store) IsApplied(id model.ID) bool {
	var has bool
	s.read(func(st *state) { has = st.applied.Has(id) })
	return has
}

// IsSaved reports whether id is bookmarked.
func (s *Store) IsSaved(id model.ID) bool {
	var has bool
	s.read(func(st *state) { has = st.saved.Has(id) })
	return has
}

// CanApply evaluates the apply preconditions without calling the backend.
func (s *Store) CanApply() (bool, Reason) {
	var r Reason
	s.read(func(st *state) { r = st.applyBlocker() })
	return r == "", r
}

// CurrentKind reports which session drives navigation; HR wins over applicant.
func (s *Store) CurrentKind() auth.Kind {
	var k auth.Kind
	s.read(func(st *state) { k = auth.CurrentKind(st.hr, st.applicant) })
	return k
}

// VisibleJobs returns the jobs the current session may see: every posting for
// HR, enabled postings otherwise.
func (s *Store) VisibleJobs() []model.Job {
	var out []model.Job
	s.read(func(st *state) {
		hr := st.hr.IsHR()
		for _, j := range st.jobs {
			if hr || j.IsEnabled() {
				out = append(out, j.Clone())
			}
		}
	})
	return out
}

// SearchJobs filters enabled postings by keywords over title, company and
// description, and by a location substring.
func (s *Store) SearchJobs(keywords, location string) []model.Job {
	var out []model.Job
	s.read(func(st *state) {
		for _, j := range st.jobs {
			if j.IsEnabled() && j.Matches(keywords, location) {
				out = append(out, j.Clone())
			}
		}
	})
	return out
}

// AppliedJobs returns the loaded jobs the applicant has applied to.
func (s *Store) AppliedJobs() []model.Job {
	var out []model.Job
	s.read(func(st *state) {
		for _, j := range st.jobs {
			if st.applied.Has(j.ID) {
				out = append(out, j.Clone())
			}
		}
	})
	return out
}

// SavedJobs returns the loaded bookmarked jobs, most recently saved first.
// Saved ids with no loaded job are skipped.
func (s *Store) SavedJobs() []model.Job {
	var out []model.Job
	s.read(func(st *state) {
		byID := make(map[model.ID]model.Job, len(st.jobs))
		for _, j := range st.jobs {
			byID[model.NewID(j.ID)] = j
		}
		for _, sj := range st.saved.MostRecentFirst() {
			if j, ok := byID[sj.JobID]; ok {
				out = append(out, j.Clone())
			}
		}
	})
	return out
}

// Guarded routes.
const (
	RouteDashboard        = "/dashboard"
	RouteCandidates       = "/candidates"
	RouteApplications     = "/applications"
	RouteApplicantProfile = "/profile/applicant"
	RouteLoginHR          = "/login/admin"
	RouteLoginApplicant   = "/login/applicant"
)

// Decision is the navigation guard outcome for one route.
type Decision struct {
	Allowed bool
	// Redirect is the login route to send the user to when not allowed.
	Redirect string
	Reason   Reason
}

// AuthorizeRoute decides whether the current sessions may open route. HR
// pages need an HR session, applicant pages an applicant session, and every
// other route is public.
func (s *Store) AuthorizeRoute(route string) Decision {
	var hr, applicant bool
	s.read(func(st *state) {
		hr = st.hr.IsHR()
		applicant = st.applicant.LoggedIn
	})

	switch cleanRoute(route) {
	case RouteDashboard, RouteCandidates:
		if !hr {
			return Decision{Redirect: RouteLoginHR, Reason: ReasonForbidden}
		}
	case RouteApplications, RouteApplicantProfile:
		if !applicant {
			return Decision{Redirect: RouteLoginApplicant, Reason: ReasonNotLoggedIn}
		}
	}
	return Decision{Allowed: true}
}

func cleanRoute(route string) string {
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return path.Clean(route)
}
