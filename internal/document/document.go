// Package document models cleaned text as an ordered list of lines.
package document

import "strings"

// Document is text split on line breaks. Blank lines are kept as empty
// strings; they mark paragraph breaks for the exporters.
type Document struct {
	Lines           []string
	TrailingNewline bool
}

// Parse splits text into lines. CRLF and lone CR are normalized to LF, so
// String returns the LF form of the input.
func Parse(text string) Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	if text == "" {
		return Document{}
	}

	doc := Document{}
	if strings.HasSuffix(text, "\n") {
		doc.TrailingNewline = true
		text = text[:len(text)-1]
	}
	doc.Lines = strings.Split(text, "\n")
	return doc
}

// String joins the lines back with LF
func (d Document) String() string {
	if len(d.Lines) == 0 {
		if d.TrailingNewline {
			return "\n"
		}
		return ""
	}
	s := strings.Join(d.Lines, "\n")
	if d.TrailingNewline {
		s += "\n"
	}
	return s
}

// Paragraphs returns the lines with surrounding whitespace removed; a blank
// line yields an empty string
func (d Document) Paragraphs() []string {
	out := make([]string, len(d.Lines))
	for i, l := range d.Lines {
		out[i] = strings.TrimSpace(l)
	}
	return out
}

// Len returns the number of lines
func (d Document) Len() int {
	return len(d.Lines)
}
