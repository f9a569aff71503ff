// Package extract turns uploaded documents into plain text. Each file type
// maps to a chain of extractors tried in order; the first non-blank result
// wins.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedType is returned for extensions outside the supported set
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrNoText is returned when every extractor came back empty
	ErrNoText = errors.New("no text extracted")
)

// FileType is the coarse document kind derived from the file extension
type FileType string

const (
	TypeImage FileType = "image"
	TypePDF   FileType = "pdf"
	TypeText  FileType = "text"
	TypeDOCX  FileType = "docx"
)

// DetectType classifies path by extension, case-insensitively
func DetectType(path string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif":
		return TypeImage, nil
	case ".pdf":
		return TypePDF, nil
	case ".txt":
		return TypeText, nil
	case ".docx":
		return TypeDOCX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, filepath.Ext(path))
	}
}

// TextExtractor reads the text content of a file
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Named is implemented by extractors that report a name in logs
type Named interface {
	Name() string
}

func nameOf(e TextExtractor) string {
	if n, ok := e.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", e)
}

// Noop never finds text. It stands in when no OCR backend is configured.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Extract(context.Context, string) (string, error) {
	return "", ErrNoText
}
