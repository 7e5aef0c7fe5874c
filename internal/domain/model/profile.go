package model

import (
	"io"
	"slices"
	"strings"
)

// Experience levels.
const (
	ExperienceFresher     = "fresher"
	ExperienceExperienced = "experienced"
)

// NoticeImmediate is the notice period value that requires a last working day.
const NoticeImmediate = "Immediate"

// Education is one education entry on the applicant profile.
type Education struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	CGPA        string `json:"cgpa,omitempty"`
	StartMonth  string `json:"startMonth,omitempty"`
	EndMonth    string `json:"endMonth,omitempty"`
	Year        string `json:"year,omitempty"`
}

// Complete reports whether both degree and institution are filled in.
func (e Education) Complete() bool {
	return strings.TrimSpace(e.Degree) != "" && strings.TrimSpace(e.Institution) != ""
}

// Certification is one certification entry.
type Certification struct {
	Name          string `json:"name"`
	Issuer        string `json:"issuer,omitempty"`
	ValidTill     string `json:"validTill,omitempty"`
	ValidationURL string `json:"validationUrl,omitempty"`
	Status        string `json:"status,omitempty"`
}

// Experience is one employment entry.
type Experience struct {
	Company    string `json:"company"`
	Role       string `json:"role,omitempty"`
	StartMonth string `json:"startMonth,omitempty"`
	EndMonth   string `json:"endMonth,omitempty"`
	IsCurrent  bool   `json:"isCurrent,omitempty"`
}

// ApplicantProfile is owned by the applicant; HR never mutates it.
// Completed is a one-way latch that only a logout reset clears.
type ApplicantProfile struct {
	ExperienceLevel   string          `json:"experienceLevel"`
	ServingNotice     string          `json:"servingNotice"`
	FullName          string          `json:"fullName"`
	Email             string          `json:"email"`
	Phone             string          `json:"phone"`
	NoticePeriod      string          `json:"noticePeriod"`
	LastWorkingDay    string          `json:"lastWorkingDay"`
	LinkedinURL       string          `json:"linkedinUrl"`
	PortfolioURL      string          `json:"portfolioUrl"`
	CurrentLocation   string          `json:"currentLocation"`
	PreferredLocation string          `json:"preferredLocation"`
	ResumeFileName    string          `json:"resumeFileName"`
	Education         []Education     `json:"education"`
	Certifications    []Certification `json:"certifications"`
	Experiences       []Experience    `json:"experiences"`
	Completed         bool            `json:"completed"`
}

// DefaultProfile returns the empty profile used before login and after logout.
func DefaultProfile() ApplicantProfile {
	return ApplicantProfile{
		Education:      []Education{},
		Certifications: []Certification{},
		Experiences:    []Experience{},
	}
}

// Clone returns a deep copy.
func (p ApplicantProfile) Clone() ApplicantProfile {
	out := p
	out.Education = cloneOrEmpty(p.Education)
	out.Certifications = cloneOrEmpty(p.Certifications)
	out.Experiences = cloneOrEmpty(p.Experiences)
	return out
}

func cloneOrEmpty[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return slices.Clone(in)
}

// HasResume reports whether a resume has been attached.
func (p ApplicantProfile) HasResume() bool {
	return p.ResumeFileName != ""
}

// HasCompleteEducation reports whether at least one education entry has both
// degree and institution.
func (p ApplicantProfile) HasCompleteEducation() bool {
	return slices.ContainsFunc(p.Education, Education.Complete)
}

// ResumeFile is a resume attached to a profile save. It is uploaded as
// multipart form data and never persisted locally.
type ResumeFile struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// ProfilePatch carries a partial profile update. Nil fields are left unchanged.
type ProfilePatch struct {
	ExperienceLevel   *string          `json:"experienceLevel,omitempty"`
	ServingNotice     *string          `json:"servingNotice,omitempty"`
	FullName          *string          `json:"fullName,omitempty"`
	Email             *string          `json:"email,omitempty"`
	Phone             *string          `json:"phone,omitempty"`
	NoticePeriod      *string          `json:"noticePeriod,omitempty"`
	LastWorkingDay    *string          `json:"lastWorkingDay,omitempty"`
	LinkedinURL       *string          `json:"linkedinUrl,omitempty"`
	PortfolioURL      *string          `json:"portfolioUrl,omitempty"`
	CurrentLocation   *string          `json:"currentLocation,omitempty"`
	PreferredLocation *string          `json:"preferredLocation,omitempty"`
	ResumeFileName    *string          `json:"resumeFileName,omitempty"`
	Education         *[]Education     `json:"education,omitempty"`
	Certifications    *[]Certification `json:"certifications,omitempty"`
	Experiences       *[]Experience    `json:"experiences,omitempty"`
	Completed         *bool            `json:"completed,omitempty"`

	// Resume is sent to the backend only; it never reaches local state.
	Resume *ResumeFile `json:"-"`
}

// Apply merges the patch into p. A patch can set Completed to true but never
// back to false: the completion latch is only reset by logout.
func (patch ProfilePatch) Apply(p ApplicantProfile) ApplicantProfile {
	out := p.Clone()
	setString(&out.ExperienceLevel, patch.ExperienceLevel)
	setString(&out.ServingNotice, patch.ServingNotice)
	setString(&out.FullName, patch.FullName)
	setString(&out.Email, patch.Email)
	setString(&out.Phone, patch.Phone)
	setString(&out.NoticePeriod, patch.NoticePeriod)
	setString(&out.LastWorkingDay, patch.LastWorkingDay)
	setString(&out.LinkedinURL, patch.LinkedinURL)
	setString(&out.PortfolioURL, patch.PortfolioURL)
	setString(&out.CurrentLocation, patch.CurrentLocation)
	setString(&out.PreferredLocation, patch.PreferredLocation)
	setString(&out.ResumeFileName, patch.ResumeFileName)
	if patch.Education != nil {
		out.Education = cloneOrEmpty(*patch.Education)
	}
	if patch.Certifications != nil {
		out.Certifications = cloneOrEmpty(*patch.Certifications)
	}
	if patch.Experiences != nil {
		out.Experiences = cloneOrEmpty(*patch.Experiences)
	}
	if patch.Completed != nil && *patch.Completed {
		out.Completed = true
	}
	if patch.Resume != nil && patch.ResumeFileName == nil && patch.Resume.Name != "" {
		out.ResumeFileName = patch.Resume.Name
	}
	return out
}

// FullPatch builds a patch that sets every field of p. Used to push the whole
// profile to the backend.
func FullPatch(p ApplicantProfile) ProfilePatch {
	c := p.Clone()
	return ProfilePatch{
		ExperienceLevel:   &c.ExperienceLevel,
		ServingNotice:     &c.ServingNotice,
		FullName:          &c.FullName,
		Email:             &c.Email,
		Phone:             &c.Phone,
		NoticePeriod:      &c.NoticePeriod,
		LastWorkingDay:    &c.LastWorkingDay,
		LinkedinURL:       &c.LinkedinURL,
		PortfolioURL:      &c.PortfolioURL,
		CurrentLocation:   &c.CurrentLocation,
		PreferredLocation: &c.PreferredLocation,
		ResumeFileName:    &c.ResumeFileName,
		Education:         &c.Education,
		Certifications:    &c.Certifications,
		Experiences:       &c.Experiences,
		Completed:         &c.Completed,
	}
}
