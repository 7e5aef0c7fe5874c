package statsd

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestFallbackPrefix(t *testing.T) {
	t.Parallel()

	if got := fallbackPrefix("  "); got != DefaultPrefix {
		t.Fatalf("fallbackPrefix(blank) = %q, want %q", got, DefaultPrefix)
	}
	if got := fallbackPrefix("custom"); got != "custom" {
		t.Fatalf("fallbackPrefix(custom) = %q", got)
	}
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	r := &Recorder{}
	tags := map[string]string{"route": "/api/jobs"}
	r.Count("api.request", 1, tags)
	r.Timing("api.request.duration", 15*time.Millisecond, tags)
	tags["route"] = "mutated"

	got := r.Named("api.request")
	if len(got) != 1 || got[0].Value != 1 || got[0].Tags["route"] != "/api/jobs" {
		t.Fatalf("unexpected recorded metrics: %+v", got)
	}
	if n := len(r.Metrics()); n != 2 {
		t.Fatalf("len(Metrics()) = %d, want 2", n)
	}
}

func TestTee(t *testing.T) {
	t.Parallel()

	if Tee(nil, nil) != nil {
		t.Fatal("Tee of nil sinks should be nil")
	}
	a, b := &Recorder{}, &Recorder{}
	if Tee(a, nil) != Sink(a) {
		t.Fatal("Tee of a single sink should return it unchanged")
	}

	s := Tee(a, b)
	s.Count("store.operation", 1, nil)
	s.Gauge("store.jobs", 3, nil)
	s.Timing("store.operation.duration", time.Millisecond, nil)
	if len(a.Metrics()) != 3 || len(b.Metrics()) != 3 {
		t.Fatalf("expected both recorders to see 3 metrics, got %d and %d", len(a.Metrics()), len(b.Metrics()))
	}
}

func TestSanitizePrefix(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  metrics.app  ": "metrics.app",
		"..foo..":         "foo",
		".":               "",
		"":                "",
	}

	for input, want := range tests {
		if got := sanitizePrefix(input); got != want {
			t.Fatalf("sanitizePrefix(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeMetricName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" job/metric ":    "job_metric",
		"api.request":     "api.request",
		"route:/jobs/:id": "route__jobs__id",
		"foo..bar":        "foo.bar",
		"multi  space":    "multi__space",
		"slash/name/id":   "slash_name_id",
	}

	for input, want := range tests {
		if got := normalizeMetricName(input); got != want {
			t.Fatalf("normalizeMetricName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatTags(t *testing.T) {
	t.Parallel()

	global := map[string]string{
		"env": "prod",
		// Intentionally padded key/value to ensure trimming logic works.
		//nolint:gocritic // whitespace is part of the test case
		" service ": " rules ",
	}
	local := map[string]string{
		"result": " success ",
		"":       "ignored",
		"env":    "stage",
	}

	got := formatTags(global, local)
	want := "|#env:stage,result:success,service:rules"

	if got != want {
		t.Fatalf("formatTags mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestFormatTagsEmpty(t *testing.T) {
	t.Parallel()

	if got := formatTags(nil, nil); got != "" {
		t.Fatalf("formatTags(nil, nil) = %q, want empty string", got)
	}
}

func TestCloneTagsReturnsCopy(t *testing.T) {
	t.Parallel()

	original := map[string]string{
		"env": "prod",
		"":    "ignored",
	}

	cloned := cloneTags(original)
	if cloned == nil {
		t.Fatal("cloneTags returned nil map")
	}

	cloned["env"] = "stage"
	if original["env"] != "prod" {
		t.Fatal("cloneTags did not copy values")
	}

	if _, ok := cloned[""]; ok {
		t.Fatal("cloneTags kept empty key")
	}
}

func TestClientEnabledAndClose(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{
		enabled: true,
		conn:    clientConn,
	}

	if !client.Enabled() {
		t.Fatal("expected client.Enabled to report true with active connection")
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	if client.Enabled() {
		t.Fatal("expected client.Enabled to report false after Close")
	}

	// Verify Close can be called again without error.
	if err := client.Close(); err != nil {
		t.Fatalf("Close (second call) error: %v", err)
	}

	var nilClient *Client
	if nilClient.Enabled() {
		t.Fatal("nil client should report disabled")
	}
	if err := nilClient.Close(); err != nil {
		t.Fatalf("nil client Close error: %v", err)
	}
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{
		Enabled: true,
		Address: "   ",
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	if client.Enabled() {
		t.Fatal("expected client to stay disabled when address is empty")
	}
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{
		Enabled: true,
		Address: "bad address",
	})
	if err == nil {
		t.Fatal("expected NewClient to error for invalid address")
	}
	if !strings.Contains(err.Error(), "statsd dial") {
		t.Fatalf("unexpected error: %v", err)
	}
}
