package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

type backend struct {
	requests atomic.Int32

	mu       sync.Mutex
	lastBody map[string]any
	lastID   string
}

func (b *backend) last() (map[string]any, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastBody, b.lastID
}

func newBackend(t *testing.T, b *backend) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.requests.Add(1)
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		body := map[string]any{}
		json.Unmarshal(raw, &body)
		b.mu.Lock()
		b.lastID = r.Header.Get("X-Request-ID")
		b.lastBody = body
		b.mu.Unlock()

		switch r.URL.Path {
		case "/visualize":
			if body["url"] == "https://github.com/acme/broken" {
				http.Error(w, `{"detail":"clone failed"}`, http.StatusInternalServerError)
				return
			}
			io.WriteString(w, `{
				"nodes":[{"id":"src/a.py","label":"a.py","data":{"loc":10,"churn":2}},{"id":"src/b.py","label":"b.py"}],
				"edges":[{"source":"src/a.py","target":"src/b.py","isCyclic":false},{"source":"src/a.py","target":"gone.py"}],
				"tree":{"name":"root","type":"folder"}}`)
		case "/content":
			io.WriteString(w, `{"code":"print('hi')\n"}`)
		case "/explain":
			if body["code"] == "" {
				io.WriteString(w, `{"explanation":""}`)
				return
			}
			io.WriteString(w, `{"explanation":"# Summary\nPrints a greeting."}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClient_Analyze(t *testing.T) {
	b := &backend{}
	srv := newBackend(t, b)
	var warnings []string
	c := NewHTTPClient(srv.URL+"/", WithWarningHandler(func(m string) { warnings = append(warnings, m) }))

	snap, err := c.Analyze(context.Background(), "  https://github.com/acme/api ")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if snap.RepoURL != "https://github.com/acme/api" {
		t.Errorf("RepoURL = %q", snap.RepoURL)
	}
	if len(snap.Nodes) != 2 || len(snap.Edges) != 1 || snap.Nodes[0].Metadata.Churn != 2 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if len(warnings) != 1 {
		t.Errorf("expected the dangling edge to be reported, got %v", warnings)
	}
	body, id := b.last()
	if body["url"] != "https://github.com/acme/api" {
		t.Errorf("unexpected request body %v", body)
	}
	if len(id) != 36 {
		t.Errorf("expected a uuid request id, got %q", id)
	}
	if c.BaseURL() != srv.URL {
		t.Errorf("BaseURL = %q", c.BaseURL())
	}
}

func TestHTTPClient_AnalyzeErrors(t *testing.T) {
	b := &backend{}
	srv := newBackend(t, b)
	c := NewHTTPClient(srv.URL)

	if _, err := c.Analyze(context.Background(), " "); !errors.Is(err, ErrEmptyRepoURL) {
		t.Errorf("expected ErrEmptyRepoURL, got %v", err)
	}
	if b.requests.Load() != 0 {
		t.Error("an empty url must not reach the backend")
	}

	_, err := c.Analyze(context.Background(), "https://github.com/acme/broken")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError || !strings.Contains(se.Body, "clone failed") {
		t.Errorf("expected a 500 StatusError, got %v", err)
	}
}

func TestHTTPClient_FileContent(t *testing.T) {
	b := &backend{}
	c := NewHTTPClient(newBackend(t, b).URL)

	code, err := c.FileContent(context.Background(), "src/a.py")
	if err != nil {
		t.Fatalf("FileContent: %v", err)
	}
	if code != "print('hi')\n" {
		t.Errorf("code = %q", code)
	}
	if body, _ := b.last(); body["path"] != "src/a.py" || body["url"] != "dummy" {
		t.Errorf("unexpected request body %v", body)
	}
	if _, err := c.FileContent(context.Background(), ""); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("expected ErrEmptyPath, got %v", err)
	}
}

func TestHTTPClient_ExplainFallback(t *testing.T) {
	c := NewHTTPClient(newBackend(t, &backend{}).URL)

	if got := c.Explain(context.Background(), "print('hi')"); !strings.HasPrefix(got, "# Summary") {
		t.Errorf("unexpected explanation %q", got)
	}
	if got := c.Explain(context.Background(), ""); got != ExplainFallback {
		t.Errorf("empty explanation should fall back, got %q", got)
	}

	down := NewHTTPClient("http://127.0.0.1:1", WithTimeout(time.Second))
	if got := down.Explain(context.Background(), "x"); got != ExplainFallback {
		t.Errorf("unreachable backend should fall back, got %q", got)
	}
}

func TestHTTPClient_ContextCancelled(t *testing.T) {
	c := NewHTTPClient(newBackend(t, &backend{}).URL, WithRateLimit(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Analyze(ctx, "https://github.com/acme/api"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHTTPClient_RateLimited(t *testing.T) {
	c := NewHTTPClient(newBackend(t, &backend{}).URL, WithRateLimit(1, 1))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.FileContent(ctx, "a"); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}
	if _, err := c.FileContent(ctx, "a"); err == nil {
		t.Error("second request should be held back past the deadline")
	}
}

func TestDefaultBaseURL(t *testing.T) {
	if got := NewHTTPClient("").BaseURL(); got != DefaultBaseURL {
		t.Errorf("BaseURL = %q", got)
	}
}

func TestHTTPClient_TimeoutDoesNotTouchCallerClient(t *testing.T) {
	own := &http.Client{Timeout: 7 * time.Second}
	c := NewHTTPClient("", WithHTTPClient(own), WithTimeout(time.Second))
	if own.Timeout != 7*time.Second {
		t.Errorf("caller's client was modified: timeout %v", own.Timeout)
	}
	if c.client == own || c.client.Timeout != time.Second {
		t.Errorf("timeout should apply to a copy, got %v", c.client.Timeout)
	}

	// Option order does not matter, and a nil client falls back to a fresh one.
	c = NewHTTPClient("", WithTimeout(time.Second), WithHTTPClient(nil))
	if c.client == nil || c.client.Timeout != time.Second {
		t.Errorf("nil client: %+v", c.client)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	if got := truncate("  short  ", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	got := truncate(strings.Repeat("é", 600), maxErrorBody)
	if !utf8.ValidString(got) {
		t.Fatal("truncated body is not valid UTF-8")
	}
	if want := strings.Repeat("é", maxErrorBody) + "..."; got != want {
		t.Errorf("truncate kept %d runes", utf8.RuneCountInString(got))
	}
}
