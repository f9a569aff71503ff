package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DOCX reads word/document.xml. Body paragraphs that carry text come first,
// followed by the text of every table cell.
type DOCX struct{}

func (DOCX) Name() string { return "docx" }

func (DOCX) Extract(_ context.Context, path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening docx %s: %w", path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("opening document.xml: %w", err)
		}
		defer rc.Close()

		paragraphs, cells, err := parseDocumentXML(rc)
		if err != nil {
			return "", fmt.Errorf("parsing document.xml: %w", err)
		}
		return strings.Join(append(paragraphs, cells...), "\n"), nil
	}

	return "", fmt.Errorf("docx %s has no word/document.xml", path)
}

func parseDocumentXML(r io.Reader) (paragraphs, cells []string, err error) {
	dec := xml.NewDecoder(r)

	var (
		tableDepth int
		inText     bool
		para       strings.Builder
		cellParts  []string
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return paragraphs, cells, nil
		}
		if err != nil {
			return nil, nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
			case "tc":
				cellParts = cellParts[:0]
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth--
			case "t":
				inText = false
			case "p":
				text := para.String()
				if tableDepth > 0 {
					cellParts = append(cellParts, text)
				} else if strings.TrimSpace(text) != "" {
					paragraphs = append(paragraphs, text)
				}
			case "tc":
				if cell := strings.Join(cellParts, "\n"); strings.TrimSpace(cell) != "" {
					cells = append(cells, cell)
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
}
