package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raaihank/blackout/internal/cache"
	"github.com/raaihank/blackout/internal/config"
	"github.com/raaihank/blackout/internal/export"
	"github.com/raaihank/blackout/internal/extract"
	"github.com/raaihank/blackout/internal/pipeline"
	"github.com/raaihank/blackout/internal/redact"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *config.Config) {
	t.Helper()
	cfg := config.GetDefaults()
	cfg.Server.UploadDir = filepath.Join(t.TempDir(), "uploads")
	cfg.Server.OutputDir = filepath.Join(t.TempDir(), "outputs")
	cfg.Server.RateLimit.Enabled = false
	cfg.WebSocket.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	engine, err := redact.New(redact.DefaultOptions(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	holder := redact.NewHolder(engine)

	p, err := pipeline.New(pipeline.Config{
		Extractor: extract.New(config.ExtractionConfig{}, zap.NewNop()),
		Engines:   holder,
		Exporters: []export.Exporter{&export.TextWriter{OutputDir: cfg.Server.OutputDir}},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	s, err := New(cfg, Deps{Engines: holder, Pipeline: p, Cache: cache.NewMemory("t:", time.Hour), Version: "test"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s, cfg
}

func upload(t *testing.T, field, name, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(body))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthAndInfo(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("health = %d %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info", nil))
	var info map[string]any
	decode(t, rec, &info)
	if info["glyph"] != "█" || info["overlap_policy"] != "sequential" || info["version"] != "test" {
		t.Errorf("info = %v", info)
	}
}

func TestRedactEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	do := func() RedactResponse {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/redact", strings.NewReader(`{"text":"SSN: 123-45-6789"}`))
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d: %s", rec.Code, rec.Body)
		}
		var resp RedactResponse
		decode(t, rec, &resp)
		return resp
	}

	first := do()
	if first.Text != "SSN: ███████████" || first.LabelMatches != 1 || first.CacheHit {
		t.Errorf("first = %+v", first)
	}
	if second := do(); !second.CacheHit || second.Text != first.Text {
		t.Errorf("second = %+v", second)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/redact", strings.NewReader(`{"body":1}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d", rec.Code)
	}
}

func TestProcessEndpoint(t *testing.T) {
	s, cfg := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, upload(t, "file", "intake.txt", "Email: jane@example.com\nnotes\n"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}

	var resp ProcessResponse
	decode(t, rec, &resp)
	if resp.Status != "success" || resp.Stats.LabelMatches != 1 || len(resp.OutputFiles) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if filepath.Dir(resp.OutputFiles[0]) != cfg.Server.OutputDir {
		t.Errorf("output in %s", resp.OutputFiles[0])
	}
	data, err := os.ReadFile(resp.OutputFiles[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Email: ████████████████\nnotes\n" {
		t.Errorf("output = %q", data)
	}
}

func TestProcessErrors(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"MissingFile", upload(t, "other", "a.txt", "x"), http.StatusBadRequest},
		{"Unsupported", upload(t, "file", "data.xlsx", "x"), http.StatusUnsupportedMediaType},
		{"HiddenName", upload(t, "file", "../.env", "x"), http.StatusBadRequest},
		{"NoText", upload(t, "file", "blank.txt", "   \n"), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, tt.req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) {
		c.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2}
	})

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/redact", strings.NewReader(`{"text":"hi"}`))
		req.RemoteAddr = "192.0.2.7:1234"
		s.Handler().ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}

	// Health is not rate limited
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) { c.Server.MaxUploadBytes = 16 })

	rec := httptest.NewRecorder()
	body := `{"text":"` + strings.Repeat("a", 64) + `"}`
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/redact", strings.NewReader(body)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(time.Hour)
	rl.Allow("b")
	if n := rl.Sweep(); n != 1 {
		t.Errorf("swept %d, want 1", n)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"scan.png":             "scan.png",
		"../../etc/passwd.txt": "passwd.txt",
		`C:\Users\me\form.pdf`: "form.pdf",
		".hidden.txt":          "",
		"..":                   "",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJobsDisabled(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestStartStop(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) { c.Server.Port = 0 })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- s.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := <-errc; err != nil {
		t.Errorf("Start returned %v", err)
	}
}
