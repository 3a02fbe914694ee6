// Package zendesk reads tickets from the Zendesk REST API (v2) and writes
// CES scores back to them, either directly or through the request proxy.
package zendesk

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cesdash/cesdash/internal/metrics"
)

// Mode selects how the client reaches the ticketing API.
type Mode string

const (
	// ModeDirect calls the ticketing API with the service credentials.
	ModeDirect Mode = "direct"
	// ModeProxy calls the request proxy, which injects credentials.
	ModeProxy Mode = "proxy"
)

// Page caps per mode.
const (
	DefaultMaxPagesDirect = 50
	DefaultMaxPagesProxy  = 10
)

// MaxPageSize is the largest per_page the ticketing API accepts.
const MaxPageSize = 100

// UserAgent identifies requests made by this service.
const UserAgent = "cesdash/1.0"

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 64 << 10

// Credentials is a service account for API token authentication.
type Credentials struct {
	Email string
	Token string
}

// AuthorizationHeader returns the Basic authorization value for API tokens.
func (c Credentials) AuthorizationHeader() string {
	raw := c.Email + "/token:" + c.Token
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// Valid reports whether both parts are set.
func (c Credentials) Valid() bool {
	return c.Email != "" && c.Token != ""
}

// FieldCache memoizes the resolved CES field ID outside the process.
type FieldCache interface {
	GetCESFieldID(ctx context.Context) (int64, error)
	SetCESFieldID(ctx context.Context, id int64) error
}

// Options configures a Client.
type Options struct {
	Mode        Mode
	BaseURL     string
	Credentials Credentials

	// CESFieldID is the custom field holding the score; 0 probes the catalog.
	CESFieldID int64

	Timeout    time.Duration
	MaxPages   int
	PageSize   int
	HTTPClient *http.Client
	FieldCache FieldCache
	Logger     *slog.Logger
	Metrics    metrics.Recorder
}

// Client is the ticket source adapter for the Zendesk API.
type Client struct {
	mode       Mode
	baseURL    string
	creds      Credentials
	timeout    time.Duration
	maxPages   int
	pageSize   int
	httpClient *http.Client
	fieldCache FieldCache
	logger     *slog.Logger
	metrics    metrics.Recorder

	configuredFieldID int64
	fieldGroup        singleflight.Group
	fieldMu           sync.RWMutex
	fieldResolved     bool
	resolvedFieldID   int64
}

// New creates a Client. Direct clients need a base URL and credentials;
// proxy clients only need the proxy base URL.
func New(opts Options) (*Client, error) {
	if opts.Mode == "" {
		opts.Mode = ModeDirect
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrNotConfigured)
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid base URL: %v", ErrNotConfigured, err)
	}
	if opts.Mode == ModeDirect && !opts.Credentials.Valid() {
		return nil, fmt.Errorf("%w: email and API token are required", ErrNotConfigured)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPagesDirect
		if opts.Mode == ModeProxy {
			opts.MaxPages = DefaultMaxPagesProxy
		}
	}
	if opts.PageSize <= 0 || opts.PageSize > MaxPageSize {
		opts.PageSize = MaxPageSize
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewHTTPClient(opts.Timeout)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}

	return &Client{
		mode:              opts.Mode,
		baseURL:           strings.TrimRight(opts.BaseURL, "/"),
		creds:             opts.Credentials,
		timeout:           opts.Timeout,
		maxPages:          opts.MaxPages,
		pageSize:          opts.PageSize,
		httpClient:        opts.HTTPClient,
		fieldCache:        opts.FieldCache,
		logger:            opts.Logger.With("component", "zendesk", "mode", string(opts.Mode)),
		metrics:           opts.Metrics,
		configuredFieldID: opts.CESFieldID,
	}, nil
}

// Name identifies the client's route to the API.
func (c *Client) Name() string {
	return string(c.mode)
}

// MaxPages returns the pagination cap.
func (c *Client) MaxPages() int {
	return c.maxPages
}

// do performs one upstream call bounded by the client timeout and decodes
// a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("zendesk %s: marshal body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("zendesk %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds.Valid() {
		req.Header.Set("Authorization", c.creds.AuthorizationHeader())
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstreamRequest(op, 0, time.Since(start))
		return fmt.Errorf("zendesk %s: %w", op, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveUpstreamRequest(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(data),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("zendesk %s: decode response: %w", op, err)
	}
	return nil
}

// Probe checks connectivity with a single-record ticket listing.
func (c *Client) Probe(ctx context.Context) error {
	query := url.Values{}
	query.Set("per_page", "1")

	var body map[string]json.RawMessage
	if err := c.do(ctx, "probe", http.MethodGet, "tickets.json", query, nil, &body); err != nil {
		return err
	}
	if _, ok := body["tickets"]; !ok {
		return fmt.Errorf("zendesk probe: response has no tickets key")
	}
	return nil
}
