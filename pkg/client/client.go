// Package client is the HTTP transport to the evaluation service: it
// transfers scan reports and requests check verdicts. Requests are sent
// once; there are no retries.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/exploopio/depaudit/pkg/check"
	"github.com/exploopio/depaudit/pkg/compress"
	"github.com/exploopio/depaudit/pkg/core"
	derrors "github.com/exploopio/depaudit/pkg/errors"
	"github.com/exploopio/depaudit/pkg/report"
)

// Version is reported in the User-Agent header.
var Version = "dev"

const (
	DefaultBaseURL = "https://demo-ecs.eacg.de"
	DefaultAPIPath = "/api/v1"

	scansPath = "scans"
	checkPath = "scans/check"
)

// Client talks to the evaluation service.
type Client struct {
	baseURL    string
	apiPath    string
	apiKey     string
	userName   string
	basicUser  string
	basicPass  string
	userAgent  string
	httpClient *http.Client
	compressor *compress.Compressor
	logger     core.Logger
	requestID  func() string
}

// Config holds client configuration.
type Config struct {
	BaseURL  string        `yaml:"base_url" json:"base_url"`
	APIPath  string        `yaml:"api_path" json:"api_path"`
	APIKey   string        `yaml:"api_key" json:"api_key"`
	UserName string        `yaml:"user_name" json:"user_name"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`

	// HTTP basic auth in front of the service (e.g. a reverse proxy)
	BasicAuthUser     string `yaml:"basic_auth_user" json:"basic_auth_user"`
	BasicAuthPassword string `yaml:"basic_auth_password" json:"basic_auth_password"`

	// Compression is "zstd", "gzip" or "" (off)
	Compression      string `yaml:"compression" json:"compression"`
	CompressionLevel int    `yaml:"compression_level" json:"compression_level"`
}

// DefaultConfig returns default client config.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: DefaultBaseURL,
		APIPath: DefaultAPIPath,
		Timeout: 30 * time.Second,
	}
}

// Option is a function that configures the client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client (the config timeout is ignored).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l core.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRequestID overrides the X-Request-ID generator.
func WithRequestID(fn func() string) Option {
	return func(c *Client) { c.requestID = fn }
}

// New creates a client. The compression setting must be valid; see
// compress.ParseAlgorithm.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{
		baseURL:    cfg.BaseURL,
		apiPath:    cfg.APIPath,
		apiKey:     cfg.APIKey,
		userName:   cfg.UserName,
		basicUser:  cfg.BasicAuthUser,
		basicPass:  cfg.BasicAuthPassword,
		userAgent:  "depaudit/" + Version,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		requestID:  func() string { return uuid.New().String() },
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}

	algo, err := compress.ParseAlgorithm(cfg.Compression)
	if err != nil {
		return nil, err
	}
	if algo != compress.AlgorithmNone {
		c.compressor = compress.NewCompressor(algo, compress.Level(cfg.CompressionLevel))
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = core.OrNop(c.logger)
	return c, nil
}

// =============================================================================
// Scans
// =============================================================================

// Response is the raw answer of the service.
type Response struct {
	StatusCode int
	Body       string
	RequestID  string
}

// Expect returns an *HTTPError unless the status is want.
func (r *Response) Expect(want int) error {
	if r.StatusCode == want {
		return nil
	}
	return &HTTPError{StatusCode: r.StatusCode, Body: r.Body, RequestID: r.RequestID}
}

// TransferScan posts the scan to {baseURL}{apiPath}/scans. The status is
// returned as is; the service signals success with 201 Created. Only
// failures to talk to the service are returned as errors.
func (c *Client) TransferScan(ctx context.Context, scan *report.Scan) (*Response, error) {
	return c.post(ctx, "client.TransferScan", scansPath, scan)
}

// CheckScan posts the scan to {baseURL}{apiPath}/scans/check and decodes
// the verdict when the service answers 200 OK. For any other status the
// results are nil.
func (c *Client) CheckScan(ctx context.Context, scan *report.Scan) (*check.Results, *Response, error) {
	resp, err := c.post(ctx, "client.CheckScan", checkPath, scan)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp, nil
	}

	var results check.Results
	if err := json.Unmarshal([]byte(resp.Body), &results); err != nil {
		return nil, resp, derrors.E(derrors.KindInvalidInput, "client.CheckScan", "decode check results", err)
	}
	return &results, resp, nil
}

// Endpoint returns the URL for a path below the API root.
func (c *Client) Endpoint(path string) string {
	url := strings.TrimRight(c.baseURL, "/")
	if p := strings.Trim(c.apiPath, "/"); p != "" {
		url += "/" + p
	}
	return url + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) post(ctx context.Context, op, path string, scan *report.Scan) (*Response, error) {
	body, err := json.Marshal(scan)
	if err != nil {
		return nil, derrors.E(derrors.KindInvalidInput, op, "marshal scan", err)
	}

	payload, encoding, stats, err := c.compressor.Encode(body)
	if err != nil {
		return nil, derrors.E(derrors.KindInternal, op, "compress body", err)
	}
	if encoding != "" {
		c.logger.Debug("Compressed request: %d -> %d bytes (%.1f%% savings)",
			stats.OriginalSize, stats.CompressedSize, stats.Savings)
	}

	url := c.Endpoint(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, derrors.E(derrors.KindInvalidInput, op, "create request", err)
	}

	requestID := c.requestID()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-ApiKey", c.apiKey)
	req.Header.Set("X-User", c.userName)
	req.Header.Set("X-Request-ID", requestID)
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}
	if accept := c.compressor.ContentEncoding(); accept != "" {
		req.Header.Set("Accept-Encoding", accept)
	}
	if c.basicUser != "" && c.basicPass != "" {
		req.SetBasicAuth(c.basicUser, c.basicPass)
	}

	c.logger.Debug("POST %s (request id %s, %d bytes)", url, requestID, len(payload))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, derrors.E(derrors.KindNetwork, op, "http request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, derrors.E(derrors.KindNetwork, op, "read response", err)
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "" && enc != "identity" {
		if data, err = compress.Decode(enc, data); err != nil {
			return nil, derrors.E(derrors.KindInvalidInput, op, "decode response", err)
		}
	}

	c.logger.Debug("Response status: %d", resp.StatusCode)
	return &Response{StatusCode: resp.StatusCode, Body: string(data), RequestID: requestID}, nil
}

// =============================================================================
// Errors
// =============================================================================

// HTTPError is an unexpected response status.
type HTTPError struct {
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *HTTPError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("http %d: %s (request_id: %s)", e.StatusCode, e.Body, e.RequestID)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// IsHTTPError checks if err is an HTTPError and returns it.
func IsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// IsClientError checks if the error is a 4xx client error.
func IsClientError(err error) bool {
	if httpErr, ok := IsHTTPError(err); ok {
		return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500
	}
	return false
}

// IsServerError checks if the error is a 5xx server error.
func IsServerError(err error) bool {
	if httpErr, ok := IsHTTPError(err); ok {
		return httpErr.StatusCode >= 500
	}
	return false
}

// IsAuthenticationError checks if the error is a 401 or 403.
func IsAuthenticationError(err error) bool {
	if httpErr, ok := IsHTTPError(err); ok {
		return httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden
	}
	return false
}
