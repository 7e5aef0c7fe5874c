package auth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Normalize(t *testing.T) {
	s := Session{LoggedIn: false, Role: RoleHR, Email: "x@y.z"}
	assert.Equal(t, Session{}, s.Normalize())

	hr := HRSession(" hr@acme.io ")
	assert.Equal(t, hr, hr.Normalize())
	assert.Equal(t, "hr@acme.io", hr.Email)
}

func TestSession_JSONShape(t *testing.T) {
	out, err := json.Marshal(HRSession("hr@acme.io"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"isLoggedIn":true,"role":"HR","email":"hr@acme.io"}`, string(out))

	out, err = json.Marshal(ApplicantSession("a@b.com"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"isLoggedIn":true,"email":"a@b.com"}`, string(out))
}

func TestCurrentKind(t *testing.T) {
	tests := []struct {
		name      string
		hr        Session
		applicant Session
		want      Kind
	}{
		{"none", Session{}, Session{}, KindNone},
		{"hr only", HRSession("h"), Session{}, KindHR},
		{"applicant only", Session{}, ApplicantSession("a"), KindApplicant},
		{"both prefers hr", HRSession("h"), ApplicantSession("a"), KindHR},
		{"logged in without hr role", Session{LoggedIn: true}, Session{}, KindNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentKind(tt.hr, tt.applicant))
		})
	}
}

func TestLoginResult_Valid(t *testing.T) {
	var r LoginResult
	require.NoError(t, json.Unmarshal([]byte(`{"token":"t1","user":{"id":7,"email":"a@b.com"}}`), &r))
	assert.True(t, r.Valid())
	assert.Equal(t, "7", r.User.ID.String())

	assert.False(t, LoginResult{Token: "t"}.Valid())
	assert.False(t, LoginResult{User: &User{}}.Valid())
}

func TestUser_DisplayName(t *testing.T) {
	assert.Equal(t, "Full", User{FullName: "Full", Name: "n", Email: "e"}.DisplayName())
	assert.Equal(t, "n", User{Name: "n", Email: "e"}.DisplayName())
	assert.Equal(t, "e", User{Email: "e"}.DisplayName())
}
