package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/FocuswithJustin/Scribe/core/ir"
	_ "github.com/FocuswithJustin/Scribe/internal/embedded"
)

const asciidocSample = "= Title\n\nSome *bold* text.\n"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Version == "" {
		cfg.Version = "test"
	}
	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return w, env
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"short key", Config{Auth: AuthConfig{Keys: []string{"short"}}}},
		{"cert without key", Config{TLS: TLSConfig{CertFile: "cert.pem"}}},
		{"missing tls files", Config{TLS: TLSConfig{CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s, err := New(tt.cfg, nil); err == nil {
				s.Close()
				t.Error("New() succeeded, want error")
			}
		})
	}
}

func TestHandleRootAndHealth(t *testing.T) {
	s := newTestServer(t, Config{})

	w, env := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("GET / = %d %+v", w.Code, env)
	}

	w, env = do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	var health HealthInfo
	if err := json.Unmarshal(env.Data, &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "healthy" || health.Version != "test" || health.Readers == 0 {
		t.Errorf("health = %+v", health)
	}

	w, env = do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	if w.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("GET /missing = %d %+v", w.Code, env.Error)
	}

	w, _ = do(t, s.Handler(), httptest.NewRequest(http.MethodPost, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health = %d, want 405", w.Code)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	s := newTestServer(t, Config{})
	w, _ := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestHandleFormats(t *testing.T) {
	s := newTestServer(t, Config{})
	w, env := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/formats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /formats = %d", w.Code)
	}
	var formats []FormatInfo
	if err := json.Unmarshal(env.Data, &formats); err != nil {
		t.Fatal(err)
	}
	if env.Meta.Total != len(formats) {
		t.Errorf("meta total = %d, formats = %d", env.Meta.Total, len(formats))
	}
	found := false
	for _, f := range formats {
		if f.Format == "asciidoc" {
			found = len(f.Extensions) > 0 && f.Version != ""
		}
	}
	if !found {
		t.Errorf("asciidoc missing or incomplete in %+v", formats)
	}
}

func decodeResult(t *testing.T, env envelope) ir.Report {
	t.Helper()
	var raw struct {
		Format    string            `json:"format"`
		LossClass ir.LossClass      `json:"loss_class"`
		Document  map[string]any    `json:"document"`
		Warnings  []json.RawMessage `json:"warnings"`
	}
	if err := json.Unmarshal(env.Data, &raw); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if raw.Document["content"] == nil {
		t.Errorf("document has no content: %v", raw.Document)
	}
	if raw.Warnings == nil {
		t.Error("warnings should encode as an empty list, not null")
	}
	return ir.Report{Format: raw.Format, LossClass: raw.LossClass}
}

func TestHandleParse(t *testing.T) {
	s := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodPost, "/parse?format=asciidoc", strings.NewReader(asciidocSample))
	req.Header.Set("Content-Type", "text/plain")
	w, env := do(t, s.Handler(), req)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /parse = %d %+v", w.Code, env.Error)
	}
	if got := w.Header().Get("X-Cache"); got != "miss" {
		t.Errorf("first X-Cache = %q, want miss", got)
	}
	res := decodeResult(t, env)
	if res.Format != "asciidoc" || !res.LossClass.IsValid() {
		t.Errorf("result = %+v", res)
	}

	req = httptest.NewRequest(http.MethodPost, "/parse?format=asciidoc", strings.NewReader(asciidocSample))
	w, env = do(t, s.Handler(), req)
	if got := w.Header().Get("X-Cache"); got != "hit" {
		t.Errorf("second X-Cache = %q, want hit", got)
	}
	if !env.Meta.Cached {
		t.Error("meta.cached = false on a cache hit")
	}

	// Turning spans on is a different cache entry.
	req = httptest.NewRequest(http.MethodPost, "/parse?format=asciidoc&spans=true", strings.NewReader(asciidocSample))
	w, _ = do(t, s.Handler(), req)
	if got := w.Header().Get("X-Cache"); got != "miss" {
		t.Errorf("spans X-Cache = %q, want miss", got)
	}
}

func TestHandleParseJSONAndDetection(t *testing.T) {
	s := newTestServer(t, Config{})
	body, _ := json.Marshal(ParseRequest{Name: "notes.org", Source: "* Heading\n\nSome text.\n"})
	req := httptest.NewRequest(http.MethodPost, "/parse", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w, env := do(t, s.Handler(), req)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /parse = %d %+v", w.Code, env.Error)
	}
	if res := decodeResult(t, env); res.Format != "org" {
		t.Errorf("detected format = %q, want org", res.Format)
	}
}

func TestHandleParseErrors(t *testing.T) {
	s := newTestServer(t, Config{MaxBodyBytes: 64})

	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		wantStatus  int
		wantCode    string
	}{
		{"method", http.MethodGet, "/parse", "", "", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{"unknown format", http.MethodPost, "/parse?format=nosuch", "", "text", http.StatusBadRequest, "UNSUPPORTED_FORMAT"},
		{"invalid format name", http.MethodPost, "/parse?format=../x", "", "text", http.StatusBadRequest, "INVALID_REQUEST"},
		{"undetectable", http.MethodPost, "/parse", "", "plain words", http.StatusBadRequest, "INVALID_REQUEST"},
		{"binary", http.MethodPost, "/parse?format=rst", "", "\x00\x01\x02", http.StatusBadRequest, "INVALID_REQUEST"},
		{"invalid utf8", http.MethodPost, "/parse?format=rst", "", "bad \xff byte", http.StatusUnprocessableEntity, "PARSE_ERROR"},
		{"bad json", http.MethodPost, "/parse", "application/json", "{", http.StatusBadRequest, "INVALID_JSON"},
		{"bad spans", http.MethodPost, "/parse?format=rst&spans=maybe", "", "x", http.StatusBadRequest, "INVALID_REQUEST"},
		{"too large", http.MethodPost, "/parse?format=rst", "", strings.Repeat("a", 65), http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w, env := do(t, s.Handler(), req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if env.Success || env.Error == nil || env.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", env.Error, tt.wantCode)
			}
		})
	}
}

func TestServerAuth(t *testing.T) {
	key := "test-api-key-12345678"
	s := newTestServer(t, Config{Auth: AuthConfig{Keys: []string{key}}})

	w, _ := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/health without key = %d, want 200", w.Code)
	}
	w, _ = do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/formats", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("/formats without key = %d, want 401", w.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/formats", nil)
	req.Header.Set("X-API-Key", key)
	w, _ = do(t, s.Handler(), req)
	if w.Code != http.StatusOK {
		t.Errorf("/formats with key = %d, want 200", w.Code)
	}
}

func TestServerRateLimit(t *testing.T) {
	s := newTestServer(t, Config{RateLimitRequests: 1, RateLimitBurst: 2})
	var codes []int
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w, _ := do(t, s.Handler(), req)
		codes = append(codes, w.Code)
	}
	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d status = %d, want %d", i+1, codes[i], want[i])
		}
	}
}
