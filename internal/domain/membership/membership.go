// Package membership holds the applicant's applied and saved job sets.
//
// Job ids reach the client as JSON numbers on some endpoints and as strings on
// others. Every key goes through model.NewID so both spellings of one id land on
// the same entry, and a lookup by either form finds it.
package membership

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
)

// Applied is the set of job ids the applicant has applied to.
// Persisted as {"<jobId>": true}.
type Applied map[model.ID]bool

// NewApplied builds a set from ids of any supported form. Zero ids are dropped.
func NewApplied(ids ...model.ID) Applied {
	out := make(Applied, len(ids))
	for _, id := range ids {
		out.add(id)
	}
	return out
}

func (a Applied) add(id model.ID) {
	if id = model.NewID(id); !id.IsZero() {
		a[id] = true
	}
}

// Has reports whether id is in the set.
func (a Applied) Has(id model.ID) bool {
	return a[model.NewID(id)]
}

// With returns a copy of a with id added.
func (a Applied) With(id model.ID) Applied {
	out := a.Clone()
	out.add(id)
	return out
}

// Clone returns a copy that never aliases a. A nil set clones to an empty one.
func (a Applied) Clone() Applied {
	out := make(Applied, len(a))
	for k, v := range a {
		if v {
			out[k] = true
		}
	}
	return out
}

// IDs returns the members in ascending order.
func (a Applied) IDs() []model.ID {
	out := make([]model.ID, 0, len(a))
	for k, v := range a {
		if v {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// UnmarshalJSON accepts legacy dual-keyed maps and normalizes every key.
func (a *Applied) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode applied jobs: %w", err)
	}
	out := make(Applied, len(raw))
	for k, v := range raw {
		if truthy(v) {
			out.add(model.ID(k))
		}
	}
	*a = out
	return nil
}

// Saved maps bookmarked job ids to their save time in unix milliseconds.
// Persisted as {"<jobId>": <savedAt>}.
type Saved map[model.ID]int64

// Has reports whether id is saved.
func (s Saved) Has(id model.ID) bool {
	return s[model.NewID(id)] != 0
}

// With returns a copy of s with id saved at ts. A non-positive ts is bumped to 1
// so the entry still reads as present.
func (s Saved) With(id model.ID, ts int64) Saved {
	out := s.Clone()
	if id = model.NewID(id); id.IsZero() {
		return out
	}
	if ts <= 0 {
		ts = 1
	}
	out[id] = ts
	return out
}

// Without returns a copy of s with id removed.
func (s Saved) Without(id model.ID) Saved {
	out := s.Clone()
	delete(out, model.NewID(id))
	return out
}

// Clone returns a copy that never aliases s. A nil set clones to an empty one.
func (s Saved) Clone() Saved {
	out := make(Saved, len(s))
	for k, v := range s {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}

// MostRecentFirst lists saved jobs ordered by save time, newest first. Ties are
// broken by id so the order is stable.
func (s Saved) MostRecentFirst() []model.SavedJob {
	out := make([]model.SavedJob, 0, len(s))
	for k, v := range s {
		if v != 0 {
			out = append(out, model.SavedJob{JobID: k, SavedAt: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SavedAt != out[j].SavedAt {
			return out[i].SavedAt > out[j].SavedAt
		}
		return out[i].JobID < out[j].JobID
	})
	return out
}

// UnmarshalJSON accepts both timestamp values and the legacy boolean form.
func (s *Saved) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode saved jobs: %w", err)
	}
	out := make(Saved, len(raw))
	for k, v := range raw {
		id := model.NewID(k)
		if id.IsZero() {
			continue
		}
		switch t := v.(type) {
		case float64:
			if t > 0 {
				out[id] = int64(t)
			}
		case bool:
			if t {
				out[id] = 1
			}
		}
	}
	*s = out
	return nil
}

// Reconcile applies the mutual exclusion rule: a job that has been applied to is
// never also saved. It returns the saved set with every applied id removed.
func Reconcile(applied Applied, saved Saved) Saved {
	out := saved.Clone()
	for id := range out {
		if applied.Has(id) {
			delete(out, id)
		}
	}
	return out
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return v != nil
	}
}
