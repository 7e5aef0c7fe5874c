package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/AI-Team-Dev/jobportal/internal/errors"
	"github.com/AI-Team-Dev/jobportal/internal/observability/statsd"
)

func TestEmitAPIRequest(t *testing.T) {
	rec := &statsd.Recorder{}
	EmitAPIRequest(rec, APIRequestMetric{
		Method:   "GET",
		Route:    "/api/jobs/:id/applications",
		Status:   503,
		Result:   ResultError,
		Duration: 20 * time.Millisecond,
		Err:      apperrors.Request(503, "Service Unavailable", nil),
	})

	counts := rec.Named("api.request")
	require.Len(t, counts, 1)
	assert.Equal(t, map[string]string{
		"method":      "GET",
		"route":       "/api/jobs/:id/applications",
		"result":      "error",
		"status":      "503",
		"error_class": "request_5xx",
	}, counts[0].Tags)

	timings := rec.Named("api.request.duration")
	require.Len(t, timings, 1)
	assert.Equal(t, 20*time.Millisecond, timings[0].Timing)
}

func TestEmitAPIRequest_NilSink(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitAPIRequest(nil, APIRequestMetric{Method: "GET"})
	})
}

func TestEmitStoreOperation(t *testing.T) {
	rec := &statsd.Recorder{}
	EmitStoreOperation(rec, StoreOperationMetric{Operation: "apply", Result: ResultError, Reason: "profile_incomplete"})

	counts := rec.Named("store.operation")
	require.Len(t, counts, 1)
	assert.Equal(t, "profile_incomplete", counts[0].Tags["reason"])
	assert.Empty(t, rec.Named("store.operation.duration"))
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))
	src := map[string]string{"a": "1", "": "x"}
	out := CloneTags(src)
	out["a"] = "2"
	assert.Equal(t, "1", src["a"])
	assert.NotContains(t, out, "")
}
