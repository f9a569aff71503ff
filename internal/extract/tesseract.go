package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/raaihank/blackout/internal/config"
	"go.uber.org/zap"
)

// Tesseract runs the local tesseract binary. PDFs are rasterised with
// pdftoppm first, one PNG per page.
type Tesseract struct {
	binary   string
	pdftoppm string
	language string
	logger   *zap.Logger
}

// NewTesseract resolves the binaries on PATH. It returns nil when
// tesseract itself is missing.
func NewTesseract(cfg config.TesseractConfig, log *zap.Logger) *Tesseract {
	if log == nil {
		log = zap.NewNop()
	}
	bin, err := exec.LookPath(cfg.Binary)
	if err != nil {
		log.Info("Tesseract not available", zap.String("binary", cfg.Binary))
		return nil
	}
	t := &Tesseract{binary: bin, language: cfg.Language, logger: log}
	if t.language == "" {
		t.language = "eng"
	}
	if p, err := exec.LookPath(cfg.PDFToPPM); err == nil {
		t.pdftoppm = p
	}
	return t
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Extract(ctx context.Context, path string) (string, error) {
	ft, err := DetectType(path)
	if err != nil {
		return "", err
	}

	switch ft {
	case TypeImage:
		return t.recognize(ctx, path)
	case TypePDF:
		return t.recognizePDF(ctx, path)
	default:
		return "", fmt.Errorf("tesseract cannot read %s files", ft)
	}
}

func (t *Tesseract) recognizePDF(ctx context.Context, path string) (string, error) {
	if t.pdftoppm == "" {
		return "", fmt.Errorf("pdftoppm not available to rasterise %s", filepath.Base(path))
	}

	dir, err := os.MkdirTemp("", "blackout-pages-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	cmd := exec.CommandContext(ctx, t.pdftoppm, "-r", "200", "-png", path, filepath.Join(dir, "page"))
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(out)))
	}

	pages, err := filepath.Glob(filepath.Join(dir, "page*.png"))
	if err != nil {
		return "", err
	}
	sort.Strings(pages)

	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		text, err := t.recognize(ctx, p)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	t.logger.Debug("Tesseract PDF extraction finished", zap.Int("pages", len(pages)))
	return strings.Join(parts, "\n"), nil
}

func (t *Tesseract) recognize(ctx context.Context, image string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.binary, image, "stdout", "-l", t.language)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
