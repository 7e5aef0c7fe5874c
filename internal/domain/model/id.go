// Package model defines the job portal data types shared by the backend gateway,
// the state mirror and the application store.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ID identifies a backend record. The backend emits ids as JSON numbers on some
// endpoints and as strings on others; ID normalizes both to the same string form
// so the two spellings of one id always compare equal.
type ID string

// NewID normalizes an arbitrary id value (string, integer, float, json.Number, ID).
func NewID(v any) ID {
	switch t := v.(type) {
	case nil:
		return ""
	case ID:
		return ID(strings.TrimSpace(string(t)))
	case string:
		return ID(strings.TrimSpace(t))
	case json.Number:
		return NewID(string(t))
	case int:
		return ID(strconv.Itoa(t))
	case int32:
		return ID(strconv.FormatInt(int64(t), 10))
	case int64:
		return ID(strconv.FormatInt(t, 10))
	case uint:
		return ID(strconv.FormatUint(uint64(t), 10))
	case uint64:
		return ID(strconv.FormatUint(t, 10))
	case float64:
		// float64(math.MaxInt64) is 2^63, so the upper bound is exclusive.
		if t == math.Trunc(t) && t >= math.MinInt64 && t < math.MaxInt64 {
			return ID(strconv.FormatInt(int64(t), 10))
		}
		return ID(strconv.FormatFloat(t, 'f', -1, 64))
	case fmt.Stringer:
		return ID(strings.TrimSpace(t.String()))
	default:
		return ID(strings.TrimSpace(fmt.Sprint(t)))
	}
}

// String returns the normalized string form.
func (id ID) String() string { return string(id) }

// IsZero reports whether the id is empty.
func (id ID) IsZero() bool { return id == "" }

// Numeric reports whether the id is a base-10 integer.
func (id ID) Numeric() bool {
	if id == "" {
		return false
	}
	_, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil
}

// MarshalJSON emits integer ids as JSON numbers and everything else as strings,
// matching what the backend sent originally.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.Numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = NewID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = NewID(n)
	return nil
}
