package auth

// Package auth contains domain-level types for the two portal sessions (HR and
// applicant). It is pure and free of transport and storage concerns.

import (
	"strings"

	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
)

// Role is the role string carried on the HR session. Keep string form because
// it is persisted as-is.
type Role string

// RoleHR marks a session with job-posting privileges.
const RoleHR Role = "HR"

// Kind identifies which session is driving navigation.
type Kind int

const (
	KindNone Kind = iota
	KindHR
	KindApplicant
)

func (k Kind) String() string {
	switch k {
	case KindHR:
		return "hr"
	case KindApplicant:
		return "applicant"
	default:
		return "none"
	}
}

// Session is the persisted login flag for one portal. The HR and applicant
// sessions are stored separately and may both be set at once.
type Session struct {
	LoggedIn bool   `json:"isLoggedIn"`
	Role     Role   `json:"role,omitempty"`
	Email    string `json:"email"`
}

// HRSession returns a logged-in HR session.
func HRSession(email string) Session {
	return Session{LoggedIn: true, Role: RoleHR, Email: strings.TrimSpace(email)}
}

// ApplicantSession returns a logged-in applicant session.
func ApplicantSession(email string) Session {
	return Session{LoggedIn: true, Email: strings.TrimSpace(email)}
}

// Normalize enforces that a logged-out session carries no email or role.
func (s Session) Normalize() Session {
	if !s.LoggedIn {
		return Session{}
	}
	return s
}

// IsHR reports whether s is a logged-in HR session.
func (s Session) IsHR() bool { return s.LoggedIn && s.Role == RoleHR }

// CurrentKind resolves which session drives navigation. HR wins when both are set.
func CurrentKind(hr, applicant Session) Kind {
	switch {
	case hr.IsHR():
		return KindHR
	case applicant.LoggedIn:
		return KindApplicant
	default:
		return KindNone
	}
}

// User is the server-issued identity returned on login. It replaces the cached
// copy on every successful login and is cleared on logout.
type User struct {
	ID       model.ID                `json:"id,omitempty"`
	Email    string                  `json:"email,omitempty"`
	FullName string                  `json:"fullName,omitempty"`
	Name     string                  `json:"name,omitempty"`
	Role     string                  `json:"role,omitempty"`
	Company  string                  `json:"company,omitempty"`
	Profile  *model.ApplicantProfile `json:"profile,omitempty"`
}

// DisplayName prefers the full name and falls back to name, then email.
func (u User) DisplayName() string {
	switch {
	case u.FullName != "":
		return u.FullName
	case u.Name != "":
		return u.Name
	default:
		return u.Email
	}
}

// Credentials are the login inputs for either portal. Applicants may log in with
// an email or another identifier; the backend accepts both under "email".
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the backend login response. It is structurally valid only when
// both a token and a user are present.
type LoginResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Valid reports whether the response carries a token and a user.
func (r LoginResult) Valid() bool {
	return r.Token != "" && r.User != nil
}
