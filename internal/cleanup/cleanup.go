// Package cleanup reflows raw OCR text before redaction. Cleanup is best
// effort: callers wrap cleaners with WithFallback so that a failing or
// empty response never loses the extracted text.
package cleanup

import (
	"context"
	"fmt"
	"strings"

	"github.com/raaihank/blackout/internal/config"
	"go.uber.org/zap"
)

// TextCleaner rewrites extracted text
type TextCleaner interface {
	Clean(ctx context.Context, text string) (string, error)
}

// Passthrough returns text unchanged
type Passthrough struct{}

func (Passthrough) Clean(_ context.Context, text string) (string, error) {
	return text, nil
}

type fallback struct {
	inner  TextCleaner
	logger *zap.Logger
}

// WithFallback returns the raw text whenever inner errors or produces
// blank output
func WithFallback(inner TextCleaner, log *zap.Logger) TextCleaner {
	if log == nil {
		log = zap.NewNop()
	}
	return &fallback{inner: inner, logger: log}
}

func (f *fallback) Clean(ctx context.Context, text string) (string, error) {
	cleaned, err := f.inner.Clean(ctx, text)
	if err != nil {
		f.logger.Warn("Cleanup failed, using raw text", zap.Error(err))
		return text, nil
	}
	if strings.TrimSpace(cleaned) == "" {
		f.logger.Warn("Cleanup returned blank text, using raw text")
		return text, nil
	}
	return cleaned, nil
}

// New selects a cleaner from configuration. The Gemini provider without an
// API key degrades to Passthrough.
func New(cfg config.CleanupConfig, log *zap.Logger) (TextCleaner, error) {
	if log == nil {
		log = zap.NewNop()
	}

	switch cfg.Provider {
	case "", "none":
		return Passthrough{}, nil
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			log.Warn("Gemini cleanup requested without API key, cleanup disabled")
			return Passthrough{}, nil
		}
		return WithFallback(NewGemini(cfg.Gemini, log), log), nil
	default:
		return nil, fmt.Errorf("unknown cleanup provider: %s", cfg.Provider)
	}
}
