package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/raaihank/blackout/internal/config"
	"go.uber.org/zap"
)

// Router dispatches a file to the extractor configured for its type
type Router struct {
	byType map[FileType]TextExtractor
	logger *zap.Logger
}

// New wires extractors from configuration. OCR.space is used only when an
// API key is set and tesseract only when its binary is found. Scanned
// documents go to OCR first; the embedded PDF text layer is the last resort.
func New(cfg config.ExtractionConfig, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}

	var ocr []TextExtractor
	if cfg.OCRSpace.APIKey != "" {
		ocr = append(ocr, NewOCRSpace(cfg.OCRSpace, log.With(zap.String("extractor", "ocr.space"))))
	}
	if cfg.Tesseract.Enabled {
		if t := NewTesseract(cfg.Tesseract, log.With(zap.String("extractor", "tesseract"))); t != nil {
			ocr = append(ocr, t)
		}
	}

	image := TextExtractor(Noop{})
	if len(ocr) > 0 {
		image = NewChain(log, ocr...)
	}

	r := NewRouter(log, map[FileType]TextExtractor{
		TypeText:  PlainText{},
		TypeDOCX:  DOCX{},
		TypeImage: image,
		TypePDF:   NewChain(log, append(ocr, PDFText{})...),
	})

	log.Info("Extractors configured",
		zap.String("image", nameOf(image)),
		zap.String("pdf", nameOf(r.byType[TypePDF])))
	return r
}

// NewRouter builds a router from an explicit mapping
func NewRouter(log *zap.Logger, byType map[FileType]TextExtractor) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	m := make(map[FileType]TextExtractor, len(byType))
	for k, v := range byType {
		m[k] = v
	}
	return &Router{byType: m, logger: log}
}

// EmbeddedTextFirst returns a copy whose PDF chain reads the text layer
// before falling back to OCR. Used when redacting existing digital files.
func (r *Router) EmbeddedTextFirst() *Router {
	out := NewRouter(r.logger, r.byType)
	var rest []TextExtractor
	if c, ok := r.byType[TypePDF].(*Chain); ok {
		for _, e := range c.extractors {
			if _, isText := e.(PDFText); !isText {
				rest = append(rest, e)
			}
		}
	}
	out.byType[TypePDF] = NewChain(r.logger, append([]TextExtractor{PDFText{}}, rest...)...)
	return out
}

// Extract detects the file type and runs the matching extractor. Blank
// output is reported as ErrNoText.
func (r *Router) Extract(ctx context.Context, path string) (string, error) {
	ft, err := DetectType(path)
	if err != nil {
		return "", err
	}
	e, ok := r.byType[ft]
	if !ok {
		return "", fmt.Errorf("%w: no extractor for %s", ErrUnsupportedType, ft)
	}

	text, err := e.Extract(ctx, path)
	if err != nil {
		return "", fmt.Errorf("extracting %s: %w", filepath.Base(path), err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("extracting %s: %w", filepath.Base(path), ErrNoText)
	}
	return text, nil
}
