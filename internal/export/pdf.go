package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/raaihank/blackout/internal/document"
)

// PDFWriter writes <name>_cleaned_redacted.pdf with the same paragraph
// rule as DOCXWriter. The core PDF fonts cannot show the blackout glyph, so
// glyph runs are drawn as filled boxes of the same advance width.
type PDFWriter struct {
	OutputDir string
	FontSize  float64
	Glyph     rune
}

func (w *PDFWriter) Format() string { return "pdf" }

type segment struct {
	text  string
	boxes int // glyph count when the segment is a redacted run
	space bool
}

// layout carries page geometry for one export
type layout struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	lineH  float64
	boxW   float64
	left   float64
	right  float64
	bottom float64
	pageH  float64
}

func (w *PDFWriter) Export(ctx context.Context, doc document.Document, inputPath string) (string, error) {
	path, err := outputPath(inputPath, w.OutputDir, cleanedSuffix, ".pdf")
	if err != nil {
		return "", err
	}

	size := w.FontSize
	if size <= 0 {
		size = 11
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreator("blackout", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFillColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", size)
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	left, _, right, bottom := pdf.GetMargins()
	l := &layout{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		lineH:  size * 0.3528 * 1.4,
		boxW:   pdf.GetStringWidth("0"),
		left:   left,
		right:  pageW - right,
		bottom: bottom,
		pageH:  pageH,
	}

	for _, p := range doc.Paragraphs() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		l.paragraph(splitSegments(p, w.glyph()))
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

func (w *PDFWriter) glyph() rune {
	if w.Glyph == 0 {
		return '█'
	}
	return w.Glyph
}

// splitSegments cuts a line into words, single spaces and glyph runs
func splitSegments(line string, glyph rune) []segment {
	var (
		segs []segment
		cur  strings.Builder
		run  int
	)
	flushText := func() {
		if cur.Len() > 0 {
			segs = append(segs, segment{text: cur.String()})
			cur.Reset()
		}
	}
	flushRun := func() {
		if run > 0 {
			segs = append(segs, segment{boxes: run})
			run = 0
		}
	}

	for _, r := range line {
		switch {
		case r == glyph:
			flushText()
			run++
		case r == ' ' || r == '\t':
			flushText()
			flushRun()
			segs = append(segs, segment{space: true})
		default:
			flushRun()
			cur.WriteRune(r)
		}
	}
	flushText()
	flushRun()
	return segs
}

func (l *layout) newLine() {
	l.pdf.Ln(l.lineH)
	if l.pdf.GetY()+l.lineH > l.pageH-l.bottom {
		l.pdf.AddPage()
	}
}

func (l *layout) paragraph(segs []segment) {
	for _, s := range segs {
		x := l.pdf.GetX()
		switch {
		case s.space:
			w := l.pdf.GetStringWidth(" ")
			if x+w <= l.right {
				l.pdf.SetX(x + w)
			}
		case s.boxes > 0:
			l.boxes(s.boxes)
		default:
			text := l.tr(s.text)
			w := l.pdf.GetStringWidth(text)
			if x+w > l.right && x > l.left {
				l.newLine()
			}
			l.pdf.CellFormat(w, l.lineH, text, "", 0, "L", false, 0, "")
		}
	}
	l.newLine()
}

// boxes draws n glyph-wide filled boxes, wrapping across lines as needed
func (l *layout) boxes(n int) {
	pad := l.lineH * 0.15
	for n > 0 {
		x := l.pdf.GetX()
		fit := int((l.right - x) / l.boxW)
		if fit <= 0 {
			l.newLine()
			continue
		}
		if fit > n {
			fit = n
		}
		w := float64(fit) * l.boxW
		l.pdf.Rect(x, l.pdf.GetY()+pad, w, l.lineH-2*pad, "F")
		l.pdf.SetX(x + w)
		n -= fit
	}
}
