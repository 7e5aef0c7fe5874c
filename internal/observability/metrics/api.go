package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/AI-Team-Dev/jobportal/internal/observability/errors"
	"github.com/AI-Team-Dev/jobportal/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// APIRequestMetric captures one backend call for metric emission.
type APIRequestMetric struct {
	Method   string
	Route    string
	Status   int
	Result   string
	Duration time.Duration
	Err      error
}

// EmitAPIRequest emits standardised backend request metrics.
func EmitAPIRequest(sink statsd.Sink, in APIRequestMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"method": in.Method,
		"route":  in.Route,
		"result": in.Result,
	}
	if in.Status > 0 {
		tags["status"] = strconv.Itoa(in.Status)
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("api.request", 1, tags)

	if in.Duration > 0 {
		sink.Timing("api.request.duration", in.Duration, CloneTags(tags))
	}
}

// StoreOperationMetric captures the outcome of one store operation.
type StoreOperationMetric struct {
	Operation string
	Result    string
	Reason    string
	Duration  time.Duration
}

// EmitStoreOperation emits store operation outcome metrics.
func EmitStoreOperation(sink statsd.Sink, in StoreOperationMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"operation": in.Operation,
		"result":    in.Result,
	}
	if in.Reason != "" {
		tags["reason"] = in.Reason
	}

	sink.Count("store.operation", 1, tags)

	if in.Duration > 0 {
		sink.Timing("store.operation.duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
