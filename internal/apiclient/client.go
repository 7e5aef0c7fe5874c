// Package apiclient is the HTTP client the store uses to reach the job portal
// backend. It injects the bearer credential, enforces a timeout, turns non-2xx
// responses into request errors and calls a registered hook on HTTP 401.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	apperrors "github.com/AI-Team-Dev/jobportal/internal/errors"
	"github.com/AI-Team-Dev/jobportal/internal/observability/metrics"
	"github.com/AI-Team-Dev/jobportal/internal/observability/statsd"
)

// DefaultTimeout applies when Options.Timeout is zero.
const DefaultTimeout = 15 * time.Second

const (
	headerRequestID  = "X-Request-ID"
	maxResponseBytes = 10 << 20
)

// TokenSource supplies the bearer credential when a request does not carry one.
type TokenSource interface {
	Get(ctx context.Context) string
}

// Options configures Client.
type Options struct {
	BaseURL string
	// Timeout bounds each request. Zero means DefaultTimeout; negative disables it.
	Timeout   time.Duration
	UserAgent string
	// Cookies keeps a cookie jar so HttpOnly session cookies set by the backend are
	// replayed on later calls.
	Cookies    bool
	Tokens     TokenSource
	HTTPClient *http.Client
	Metrics    statsd.Sink
	Logger     *slog.Logger
	Dev        bool
}

// RequestOptions describes one call.
type RequestOptions struct {
	Method string
	// Body is JSON-encoded unless it is a *Multipart. Nil sends no body.
	Body any
	// Token overrides the TokenSource credential.
	Token string
	// Timeout overrides the client default. Negative disables the timeout.
	Timeout time.Duration
	Headers map[string]string
	// Route is the route template used for metric tags, e.g. "/api/jobs/:id".
	// Derived from the path when empty.
	Route string
}

// Response is a 2xx backend answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	// JSON is true when the backend declared an application/json body.
	JSON bool
}

// Decode unmarshals a JSON body into out. Non-JSON bodies are an error.
func (r *Response) Decode(out any) error {
	if r == nil || !r.JSON {
		return apperrors.Validation("response is not JSON")
	}
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "Invalid response from server")
	}
	return nil
}

// Text returns the raw body as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

// Client is safe for concurrent use.
type Client struct {
	baseURL   string
	timeout   time.Duration
	userAgent string
	tokens    TokenSource
	http      *http.Client
	metrics   statsd.Sink
	logger    *slog.Logger

	mu             sync.RWMutex
	onUnauthorized func()
}

// New builds a Client.
func New(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "apiclient")

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if opts.Cookies && hc.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		clone := *hc
		clone.Jar = jar
		hc = &clone
	}

	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if !opts.Dev && strings.HasPrefix(strings.ToLower(base), "http://") {
		logger.Warn("insecure API base URL over http", "base_url", base)
	}

	return &Client{
		baseURL:   base,
		timeout:   timeout,
		userAgent: strings.TrimSpace(opts.UserAgent),
		tokens:    opts.Tokens,
		http:      hc,
		metrics:   opts.Metrics,
		logger:    logger,
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// SetUnauthorizedHandler registers the hook called on every HTTP 401. Passing nil
// removes it.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// DoJSON performs the call and decodes a JSON answer into out (when non-nil).
func (c *Client) DoJSON(ctx context.Context, path string, opts RequestOptions, out any) error {
	resp, err := c.Do(ctx, path, opts)
	if err != nil {
		return err
	}
	if out == nil || !resp.JSON {
		return nil
	}
	return resp.Decode(out)
}

// Do performs the call. Errors are *errors.AppError with code network, request,
// canceled or validation.
func (c *Client) Do(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if method == "" {
		method = http.MethodGet
	}
	route := opts.Route
	if route == "" {
		route = RouteTemplate(path)
	}

	start := time.Now()
	resp, err := c.do(ctx, method, path, opts)

	m := metrics.APIRequestMetric{
		Method:   method,
		Route:    route,
		Result:   metrics.ResultSuccess,
		Duration: time.Since(start),
		Err:      err,
	}
	if resp != nil {
		m.Status = resp.Status
	}
	if err != nil {
		m.Result = metrics.ResultError
		m.Status = apperrors.StatusOf(err)
	}
	metrics.EmitAPIRequest(c.metrics, m)

	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, opts RequestOptions) (*Response, error) {
	parent := ctx
	timeout := c.timeout
	if opts.Timeout != 0 {
		timeout = opts.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, method, path, opts)
	if err != nil {
		return nil, err
	}

	res, err := c.http.Do(req)
	if err != nil {
		if parent.Err() != nil && errors.Is(err, context.Canceled) {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeCanceled, "Request canceled")
		}
		c.logger.DebugContext(parent, "network error calling API",
			"method", method,
			"url", req.URL.Redacted(),
			"error", err,
		)
		return nil, apperrors.Network(err)
	}

	body, isJSON, err := readBody(res)
	if err != nil {
		return nil, apperrors.Network(err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		if res.StatusCode == http.StatusUnauthorized {
			c.fireUnauthorized(parent)
		}
		return nil, requestError(res, body, isJSON)
	}

	return &Response{
		Status: res.StatusCode,
		Header: res.Header.Clone(),
		Body:   body,
		JSON:   isJSON,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, opts RequestOptions) (*http.Request, error) {
	var (
		reader      io.Reader
		contentType string
	)
	switch body := opts.Body.(type) {
	case nil:
	case *Multipart:
		if body != nil {
			buf, ct, err := body.encode()
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "encode multipart body")
			}
			reader, contentType = buf, ct
		}
	default:
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "encode request body")
		}
		reader, contentType = bytes.NewReader(raw), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, JoinURL(c.baseURL, path), reader)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "create request")
	}

	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get(headerRequestID) == "" {
		req.Header.Set(headerRequestID, uuid.NewString())
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	bearer := opts.Token
	if bearer == "" && c.tokens != nil {
		bearer = c.tokens.Get(ctx)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req, nil
}

func (c *Client) fireUnauthorized(ctx context.Context) {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.WarnContext(ctx, "unauthorized handler panicked", "panic", r)
		}
	}()
	fn()
}

func readBody(res *http.Response) ([]byte, bool, error) {
	isJSON := strings.Contains(strings.ToLower(res.Header.Get("Content-Type")), "application/json")
	body, readErr := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	closeErr := res.Body.Close()
	if readErr != nil {
		if closeErr != nil {
			return nil, isJSON, errors.Join(
				fmt.Errorf("read response body: %w", readErr),
				fmt.Errorf("close response body: %w", closeErr),
			)
		}
		return nil, isJSON, fmt.Errorf("read response body: %w", readErr)
	}
	return body, isJSON, nil
}

func requestError(res *http.Response, body []byte, isJSON bool) error {
	var details map[string]any
	if isJSON {
		if err := json.Unmarshal(body, &details); err != nil {
			details = map[string]any{}
		}
	}

	message := ""
	if details != nil {
		message = firstString(details, "error", "message")
	}
	if message == "" {
		message = statusText(res)
	}
	if message == "" {
		message = "Request failed"
	}
	if details == nil && len(body) > 0 {
		details = map[string]any{"body": string(body)}
	}
	return apperrors.Request(res.StatusCode, message, details)
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// statusText returns the reason phrase the server sent, e.g. "Not Found".
func statusText(res *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(res.Status, strconv.Itoa(res.StatusCode)))
	if text != "" {
		return text
	}
	return http.StatusText(res.StatusCode)
}

// JoinURL joins base and path. Absolute http(s) paths pass through; an empty
// base leaves the path untouched.
func JoinURL(base, path string) string {
	lower := strings.ToLower(path)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return path
	}
	if base == "" {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

var idSegment = regexp.MustCompile(`^(\d+|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}|[0-9a-fA-F]{24})$`)

// RouteTemplate replaces id-like path segments with ":id" and drops the query,
// so metric tags stay low-cardinality.
func RouteTemplate(path string) string {
	if u, err := url.Parse(path); err == nil {
		path = u.Path
	}
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if idSegment.MatchString(s) {
			segs[i] = ":id"
		}
	}
	return strings.Join(segs, "/")
}
