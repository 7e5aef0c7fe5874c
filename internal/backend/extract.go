package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
)

// Response shapes differ between backend versions. These expressions pick the
// useful part out of whichever shape arrives.
const (
	exprJobList         = "jobs || data.jobs || @"
	exprApplicationList = "applications || data.applications || @"
	exprSavedList       = "savedJobs || saved || jobs || data || @"
	exprApplicationJob  = "jobId || job.id || job_id"
	exprSavedJob        = "jobId || job.id || job_id || id"
	exprSavedAt         = "savedAt || saved_at || createdAt || created_at"
	exprSavedFlag       = "saved"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// decodeGeneric turns a JSON body into the map/slice form JMESPath works on.
func decodeGeneric(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// listOf evaluates expr and returns the result when it is a JSON array. Any other
// shape yields an empty list.
func (g *Gateway) listOf(expr string, data any) []any {
	if data == nil {
		return []any{}
	}
	v, err := g.jp.Evaluate(expr, data)
	if err != nil {
		g.logger.Debug("list extraction failed", "expr", expr, "error", err)
		return []any{}
	}
	list, ok := v.([]any)
	if !ok {
		return []any{}
	}
	return list
}

// idOf evaluates expr against one element and normalizes the result.
func (g *Gateway) idOf(expr string, elem any) model.ID {
	v, err := g.jp.Evaluate(expr, elem)
	if err != nil || v == nil {
		return ""
	}
	switch v.(type) {
	case string, float64, json.Number:
		return model.NewID(v)
	default:
		return ""
	}
}

// remarshal converts a generic element into a typed value.
func remarshal(elem any, out any) error {
	raw, err := json.Marshal(elem)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

var (
	idType  = reflect.TypeOf(model.ID(""))
	rawType = reflect.TypeOf(json.RawMessage(nil))
)

// decodeLenient decodes a generic JSON object into out, which must be a pointer
// to a struct. A strict pass runs first. When a field has the wrong JSON type
// the object is decoded again with weak typing: numbers and bools become
// strings, numeric strings become numbers, and 0/1 or "true"/"false" become
// bools. Fields that still cannot be coerced stay zero and are reported in the
// returned error; every other field is kept.
func decodeLenient(elem any, out any) error {
	if err := remarshal(elem, out); err == nil {
		return nil
	}
	v := reflect.ValueOf(out).Elem()
	v.SetZero()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       jsonTypesHook,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(elem)
}

// jsonTypesHook covers the types whose JSON decoding is custom.
func jsonTypesHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	switch to {
	case idType:
		switch data.(type) {
		case string, float64, json.Number:
			return model.NewID(data), nil
		}
		return data, nil
	case rawType:
		return json.Marshal(data)
	}
	return data, nil
}

// parseTimestamp accepts unix milliseconds, unix seconds, or RFC 3339 strings and
// returns unix milliseconds. Unknown values yield 0.
func parseTimestamp(v any) int64 {
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return 0
		}
		if t < 1e12 {
			return int64(t * 1000)
		}
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parseTimestamp(float64(n))
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UnixMilli()
			}
		}
	}
	return 0
}
