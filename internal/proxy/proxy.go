// Package proxy forwards browser requests to the ticketing API with the
// service credentials attached server-side.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cesdash/cesdash/internal/metrics"
	"github.com/cesdash/cesdash/internal/middleware"
	"github.com/cesdash/cesdash/internal/zendesk"
)

// UserAgent identifies forwarded requests.
const UserAgent = "cesdash-proxy/1.0"

// PathParam is the reserved query key naming the API path.
const PathParam = "path"

// Outcome labels for proxy metrics.
const (
	OutcomeUpstreamError  = "upstream_error"
	OutcomeTransportError = "transport_error"
	OutcomeBadRequest     = "bad_request"
)

const (
	defaultMaxBodyBytes     = 1 << 20
	defaultMaxResponseBytes = 32 << 20
)

// ErrNotConfigured is returned by New when the upstream host or the
// service credentials are missing.
var ErrNotConfigured = errors.New("proxy: upstream not configured")

// Options configures a Forwarder.
type Options struct {
	// BaseURL is the API root, e.g. https://acme.zendesk.com/api/v2.
	BaseURL     string
	Credentials zendesk.Credentials
	Timeout     time.Duration

	// MaxBodyBytes limits forwarded request bodies.
	MaxBodyBytes int64

	// Production hides stack traces in transport error responses.
	Production bool

	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    metrics.Recorder

	// RateLimit guards the proxy per client IP when enabled.
	RateLimit middleware.RateLimitConfig
}

// Forwarder is the request proxy.
type Forwarder struct {
	baseURL      string
	authHeader   string
	timeout      time.Duration
	maxBodyBytes int64
	production   bool
	client       *http.Client
	logger       *slog.Logger
	metrics      metrics.Recorder
	rateLimit    middleware.RateLimitConfig
}

// New creates a Forwarder.
func New(opts Options) (*Forwarder, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrNotConfigured)
	}
	if !opts.Credentials.Valid() {
		return nil, fmt.Errorf("%w: email and API token are required", ErrNotConfigured)
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid base URL: %v", ErrNotConfigured, err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = zendesk.DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = zendesk.NewHTTPClient(opts.Timeout)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}
	if opts.RateLimit.Logger == nil {
		opts.RateLimit.Logger = opts.Logger
	}

	return &Forwarder{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		authHeader:   opts.Credentials.AuthorizationHeader(),
		timeout:      opts.Timeout,
		maxBodyBytes: opts.MaxBodyBytes,
		production:   opts.Production,
		client:       opts.HTTPClient,
		logger:       opts.Logger.With("component", "proxy"),
		metrics:      opts.Metrics,
		rateLimit:    opts.RateLimit,
	}, nil
}

// Routes returns the proxy router, to be mounted at /proxy. It serves both
// /proxy/<api path> and /proxy?path=<api path>.
func (f *Forwarder) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.CORS(middleware.PermissiveCORSConfig()))
	r.Use(middleware.RateLimitIP(f.rateLimit))
	r.Use(middleware.MaxBodySize(f.maxBodyBytes))

	for _, pattern := range []string{"/", "/*"} {
		r.Get(pattern, f.Forward)
		r.Post(pattern, f.Forward)
		r.Put(pattern, f.Forward)
		r.Delete(pattern, f.Forward)
	}
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
	})

	return r
}

type upstreamErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	URL     string `json:"url"`
}

type internalErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Forward relays one request to the API and mirrors the response.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request) {
	apiPath, err := requestPath(r)
	if err != nil {
		f.metrics.IncProxyForward(OutcomeBadRequest)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	target := f.baseURL + "/" + apiPath
	if q := forwardQuery(r.URL.Query()); q != "" {
		target += "?" + q
	}

	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Body != nil {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				f.metrics.IncProxyForward(OutcomeBadRequest)
				writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Request body too large"})
				return
			}
			f.internalError(w, r, target, fmt.Errorf("read request body: %w", err))
			return
		}
		if len(data) > 0 {
			body = bytes.NewReader(data)
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		f.internalError(w, r, target, fmt.Errorf("build upstream request: %w", err))
		return
	}
	req.Header.Set("Authorization", f.authHeader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	f.logger.Debug("forwarding request",
		"method", r.Method,
		"path", apiPath,
		"request_id", middleware.GetRequestID(r.Context()),
	)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.metrics.ObserveUpstreamRequest("proxy", 0, time.Since(start))
		f.internalError(w, r, target, err)
		return
	}
	defer resp.Body.Close()
	f.metrics.ObserveUpstreamRequest("proxy", resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxResponseBytes))
	if err != nil {
		f.internalError(w, r, target, fmt.Errorf("read upstream response: %w", err))
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.metrics.IncProxyForward(OutcomeUpstreamError)
		f.logger.Warn("upstream API error",
			"method", r.Method,
			"path", apiPath,
			"status", resp.StatusCode,
			"request_id", middleware.GetRequestID(r.Context()),
		)

		details := string(data)
		if details == "" {
			details = "No error details"
		}
		writeJSON(w, resp.StatusCode, upstreamErrorResponse{
			Error:   fmt.Sprintf("Upstream API error: %d %s", resp.StatusCode, statusText(resp)),
			Details: details,
			URL:     target,
		})
		return
	}

	f.metrics.IncProxyForward(metrics.OutcomeSuccess)
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(data)
}

func (f *Forwarder) internalError(w http.ResponseWriter, r *http.Request, target string, err error) {
	f.metrics.IncProxyForward(OutcomeTransportError)
	f.logger.Error("proxy request failed",
		"method", r.Method,
		"url", target,
		"error", err,
		"request_id", middleware.GetRequestID(r.Context()),
	)

	resp := internalErrorResponse{
		Error:   "Internal server error",
		Message: err.Error(),
	}
	if !f.production {
		resp.Stack = string(debug.Stack())
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

// requestPath returns the API path from the wildcard route or, failing
// that, the reserved path query key. Repeated path values are joined.
func requestPath(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "*")
	if raw == "" {
		var parts []string
		for _, v := range r.URL.Query()[PathParam] {
			if v = strings.Trim(v, "/"); v != "" {
				parts = append(parts, v)
			}
		}
		raw = strings.Join(parts, "/")
	}

	raw = strings.Trim(raw, "/")
	if raw == "" {
		return "", errors.New("API path is required")
	}
	for _, seg := range strings.Split(raw, "/") {
		if seg == "." || seg == ".." {
			return "", errors.New("API path must not contain dot segments")
		}
	}
	return raw, nil
}

// forwardQuery drops the reserved path key and empty values.
func forwardQuery(in url.Values) string {
	out := url.Values{}
	for key, values := range in {
		if key == PathParam {
			continue
		}
		for _, v := range values {
			if v != "" {
				out.Add(key, v)
			}
		}
	}
	return out.Encode()
}

// statusText returns the reason phrase the upstream sent.
func statusText(resp *http.Response) string {
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" ")
	if text != "" && text != resp.Status {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
