// Package export writes redacted documents to disk as DOCX, PDF or plain
// text, one paragraph per line.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/raaihank/blackout/internal/config"
	"github.com/raaihank/blackout/internal/document"
	"go.uber.org/zap"
)

const (
	cleanedSuffix  = "_cleaned_redacted"
	redactedSuffix = "_redacted"
)

// Exporter writes doc and returns the path it created
type Exporter interface {
	Format() string
	Export(ctx context.Context, doc document.Document, inputPath string) (string, error)
}

// outputPath names the output after the input's base name. An empty dir
// places it next to the input.
func outputPath(inputPath, dir, suffix, ext string) (string, error) {
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir %s: %w", dir, err)
	}
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(dir, base+suffix+ext), nil
}

// New builds one exporter per configured format
func New(cfg config.ExportConfig, glyph rune, log *zap.Logger) ([]Exporter, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var out []Exporter
	for _, f := range cfg.Formats {
		switch f {
		case "docx":
			out = append(out, &DOCXWriter{OutputDir: cfg.OutputDir, Heading: cfg.Heading})
		case "pdf":
			out = append(out, &PDFWriter{OutputDir: cfg.OutputDir, FontSize: cfg.FontSize, Glyph: glyph})
		case "txt":
			out = append(out, &TextWriter{OutputDir: cfg.OutputDir})
		default:
			return nil, fmt.Errorf("unknown export format: %s", f)
		}
	}

	log.Debug("Exporters configured", zap.Strings("formats", cfg.Formats))
	return out, nil
}

// TextWriter writes <name>_redacted.txt
type TextWriter struct {
	OutputDir string
}

func (w *TextWriter) Format() string { return "txt" }

func (w *TextWriter) Export(ctx context.Context, doc document.Document, inputPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := outputPath(inputPath, w.OutputDir, redactedSuffix, ".txt")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(doc.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
