// Package review implements the HR candidate review helpers: match-score range
// filters, per-filter counts and score labels.
package review

import (
	"math"
	"sort"

	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
)

// MaxScore is the top of the match-score scale.
const MaxScore = 100

// Filter is a match-score range. Scores match when Min <= score < Max; the
// range ending at MaxScore also includes MaxScore itself.
type Filter struct {
	ID    string
	Label string
	Min   float64
	Max   float64
}

// Filters lists the fixed ranges in display order. The first one shows everyone.
var Filters = []Filter{
	{ID: "all", Label: "All Candidates", Min: 0, Max: 100},
	{ID: "80+", Label: "> 80%", Min: 80, Max: 100},
	{ID: "70-80", Label: "70-80%", Min: 70, Max: 80},
	{ID: "60-70", Label: "60-70%", Min: 60, Max: 70},
	{ID: "50-60", Label: "50-60%", Min: 50, Max: 60},
	{ID: "40-50", Label: "40-50%", Min: 40, Max: 50},
	{ID: "30-40", Label: "30-40%", Min: 30, Max: 40},
	{ID: "<30", Label: "< 30%", Min: 0, Max: 30},
}

// FilterByID returns the filter with the given id.
func FilterByID(id string) (Filter, bool) {
	for _, f := range Filters {
		if f.ID == id {
			return f, true
		}
	}
	return Filter{}, false
}

// Matches reports whether score falls in the range.
func (f Filter) Matches(score float64) bool {
	if score < f.Min {
		return false
	}
	if score < f.Max {
		return true
	}
	return f.Max == MaxScore && score == MaxScore
}

// Apply returns the applications inside the range sorted by score, highest
// first. The input slice is not modified.
func Apply(apps []model.Application, f Filter) []model.Application {
	out := make([]model.Application, 0, len(apps))
	for _, a := range apps {
		if f.Matches(a.EffectiveScore()) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveScore() > out[j].EffectiveScore()
	})
	return out
}

// Counts returns how many applications each filter would show, keyed by filter id.
func Counts(apps []model.Application) map[string]int {
	out := make(map[string]int, len(Filters))
	for _, f := range Filters {
		out[f.ID] = 0
	}
	for _, a := range apps {
		score := a.EffectiveScore()
		for _, f := range Filters {
			if f.Matches(score) {
				out[f.ID]++
			}
		}
	}
	return out
}

// Tier is the qualitative bucket of a rounded match score.
type Tier int

const (
	TierPoor Tier = iota
	TierLow
	TierModerate
	TierFair
	TierGood
	TierGreat
	TierExcellent
)

var tierLabels = map[Tier]string{
	TierExcellent: "Excellent Match",
	TierGreat:     "Great Match",
	TierGood:      "Good Match",
	TierFair:      "Fair Match",
	TierModerate:  "Moderate Match",
	TierLow:       "Low Match",
	TierPoor:      "Poor Match",
}

func (t Tier) String() string { return tierLabels[t] }

// TierOf buckets a score after rounding it to the nearest integer.
func TierOf(score float64) Tier {
	s := math.Round(score)
	switch {
	case s >= 80:
		return TierExcellent
	case s >= 70:
		return TierGreat
	case s >= 60:
		return TierGood
	case s >= 50:
		return TierFair
	case s >= 40:
		return TierModerate
	case s >= 30:
		return TierLow
	default:
		return TierPoor
	}
}

// Label returns the display label for a score, e.g. "Good Match".
func Label(score float64) string {
	return TierOf(score).String()
}
