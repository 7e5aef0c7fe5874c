package model

import "encoding/json"

// Application is a candidate's application as seen by HR reviewers.
// The backend attaches a match score under either matchScore or score.
type Application struct {
	ID          ID              `json:"id"`
	JobID       ID              `json:"jobId"`
	Name        string          `json:"name,omitempty"`
	Email       string          `json:"email,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	Status      string          `json:"status,omitempty"`
	AppliedAt   string          `json:"appliedAt,omitempty"`
	MatchScore  *float64        `json:"matchScore,omitempty"`
	Score       *float64        `json:"score,omitempty"`
	ResumeURL   string          `json:"resumeUrl,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`
	JobTitle    string          `json:"jobTitle,omitempty"`
	Experiences json.RawMessage `json:"experiences,omitempty"`
}

// EffectiveScore returns matchScore, else score, else 0.
func (a Application) EffectiveScore() float64 {
	if a.MatchScore != nil && *a.MatchScore != 0 {
		return *a.MatchScore
	}
	if a.Score != nil {
		return *a.Score
	}
	return 0
}

// SavedJob is a bookmarked job with its save time (unix milliseconds).
type SavedJob struct {
	JobID   ID    `json:"jobId"`
	SavedAt int64 `json:"savedAt"`
}
