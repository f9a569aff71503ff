package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/raaihank/blackout/internal/config"
	"go.uber.org/zap"
)

type stubCleaner struct {
	out string
	err error
}

func (s stubCleaner) Clean(context.Context, string) (string, error) { return s.out, s.err }

func TestWithFallback(t *testing.T) {
	ctx := context.Background()
	raw := "raw  ocr\ntext"

	tests := []struct {
		name  string
		inner TextCleaner
		want  string
	}{
		{"Success", stubCleaner{out: "clean text"}, "clean text"},
		{"Error", stubCleaner{err: errors.New("quota")}, raw},
		{"Blank", stubCleaner{out: " \n "}, raw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WithFallback(tt.inner, zap.NewNop()).Clean(ctx, raw)
			if err != nil {
				t.Fatalf("Clean: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	c, err := New(config.CleanupConfig{Provider: "gemini"}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(Passthrough); !ok {
		t.Errorf("gemini without key = %T, want Passthrough", c)
	}

	if _, err := New(config.CleanupConfig{Provider: "gpt"}, zap.NewNop()); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestGemini(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasSuffix(r.URL.Path, "/models/test-model:generateContent") {
				t.Errorf("path = %s", r.URL.Path)
			}
			if r.URL.Query().Get("key") != "secret" {
				t.Errorf("api key missing from query")
			}
			var req gmReq
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode: %v", err)
			}
			prompt := req.Contents[0].Parts[0].Text
			if !strings.Contains(prompt, "OCR_TEXT_START:\nraw text\nOCR_TEXT_END:") {
				t.Errorf("prompt does not wrap the text: %q", prompt)
			}
			_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"  Clean "},{"text":"text\n"}]}}]}`)
		}))
		defer srv.Close()

		g := NewGemini(config.GeminiConfig{APIKey: "secret", Model: "test-model", Endpoint: srv.URL}, zap.NewNop())
		got, err := g.Clean(context.Background(), "raw text")
		if err != nil {
			t.Fatalf("Clean: %v", err)
		}
		if got != "Clean text" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("EmptyCandidates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"candidates":[]}`)
		}))
		defer srv.Close()

		g := NewGemini(config.GeminiConfig{APIKey: "k", Endpoint: srv.URL}, zap.NewNop())
		if _, err := g.Clean(context.Background(), "x"); !errors.Is(err, ErrEmptyResponse) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("FallbackOnUpstreamError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := WithFallback(NewGemini(config.GeminiConfig{APIKey: "k", Endpoint: srv.URL}, zap.NewNop()), zap.NewNop())
		got, err := c.Clean(context.Background(), "keep me")
		if err != nil || got != "keep me" {
			t.Errorf("Clean = %q, %v", got, err)
		}
	})
}
