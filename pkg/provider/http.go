package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vanderheijden86/depcity/pkg/debug"
	"github.com/vanderheijden86/depcity/pkg/loader"
	"github.com/vanderheijden86/depcity/pkg/model"
)

// contentRepoPlaceholder is sent as the url of content requests; the
// backend serves files of the last analysed repository.
const contentRepoPlaceholder = "dummy"

// maxErrorBody bounds how much of an error response is quoted.
const maxErrorBody = 512

// HTTPClient implements every provider against the analysis backend.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	warn    func(string)
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client. The client is never
// modified; WithTimeout applies to a copy.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.client = c }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTPClient) { h.timeout = d }
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(h *HTTPClient) {
		if perSecond <= 0 {
			h.limiter = nil
			return
		}
		h.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithWarningHandler receives snapshot normalization warnings.
func WithWarningHandler(fn func(string)) Option {
	return func(h *HTTPClient) { h.warn = fn }
}

// NewHTTPClient returns a client for the backend at baseURL
// (DefaultBaseURL when empty).
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	h := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: 120 * time.Second,
		limiter: rate.NewLimiter(rate.Limit(4), 4),
		warn:    func(msg string) { debug.Log("provider: %s", msg) },
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.client == nil {
		h.client = &http.Client{}
	}
	if h.timeout > 0 {
		c := *h.client
		c.Timeout = h.timeout
		h.client = &c
	}
	return h
}

// BaseURL returns the backend address.
func (h *HTTPClient) BaseURL() string { return h.baseURL }

type visualizeRequest struct {
	URL string `json:"url"`
}

type contentRequest struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

type contentResponse struct {
	Code string `json:"code"`
}

type explainRequest struct {
	Code string `json:"code"`
}

type explainResponse struct {
	Explanation string `json:"explanation"`
}

// Analyze asks the backend to analyse repoURL and returns the normalized
// snapshot, stamped with repoURL.
func (h *HTTPClient) Analyze(ctx context.Context, repoURL string) (model.Snapshot, error) {
	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" {
		return model.Snapshot{}, ErrEmptyRepoURL
	}
	body, err := h.post(ctx, "/visualize", visualizeRequest{URL: repoURL})
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("analyzing %s: %w", repoURL, err)
	}
	snap, err := loader.Decode(body, loader.ParseOptions{RepoURL: repoURL, WarningHandler: h.warn})
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("analyzing %s: %w", repoURL, err)
	}
	snap.RepoURL = repoURL
	return snap, nil
}

// FileContent fetches the source of path.
func (h *HTTPClient) FileContent(ctx context.Context, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}
	body, err := h.post(ctx, "/content", contentRequest{Path: path, URL: contentRepoPlaceholder})
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", path, err)
	}
	var resp contentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding content of %s: %w", path, err)
	}
	return resp.Code, nil
}

// Explain returns a markdown explanation of code, or ExplainFallback.
func (h *HTTPClient) Explain(ctx context.Context, code string) string {
	body, err := h.post(ctx, "/explain", explainRequest{Code: code})
	if err != nil {
		debug.Log("provider: explain failed: %v", err)
		return ExplainFallback
	}
	var resp explainResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Explanation == "" {
		debug.Log("provider: explain response unusable: %v", err)
		return ExplainFallback
	}
	return resp.Explanation
}

// post sends payload as JSON and returns the body of a 2xx response.
func (h *HTTPClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", path, err)
	}
	debug.LogTiming(fmt.Sprintf("provider POST %s [%s] %d", path, requestID[:8], resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Path: path, Code: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}
	return body, nil
}

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("POST %s: %d %s", e.Path, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("POST %s: %d %s: %s", e.Path, e.Code, http.StatusText(e.Code), e.Body)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
