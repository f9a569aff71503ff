package redact

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultGlyph is the full block character
const DefaultGlyph = '█'

// Encoder replaces text with a run of glyphs of equal code-point length
type Encoder struct {
	glyph rune
	unit  string
}

// NewEncoder returns an encoder for glyph. The glyph must not be something
// a label or pattern could match, otherwise redaction stops being
// idempotent: letters, digits, whitespace, underscore and control
// characters are refused.
func NewEncoder(glyph rune) (*Encoder, error) {
	switch {
	case glyph == utf8.RuneError || !utf8.ValidRune(glyph):
		return nil, fmt.Errorf("invalid glyph %U", glyph)
	case unicode.IsLetter(glyph), unicode.IsDigit(glyph), unicode.IsNumber(glyph):
		return nil, fmt.Errorf("glyph %q is alphanumeric", glyph)
	case unicode.IsSpace(glyph), unicode.IsControl(glyph):
		return nil, fmt.Errorf("glyph %U is whitespace or control", glyph)
	case glyph == '_':
		return nil, fmt.Errorf("glyph %q is a word character", glyph)
	}
	return &Encoder{glyph: glyph, unit: string(glyph)}, nil
}

// ParseGlyph decodes a configured glyph. Empty means DefaultGlyph.
func ParseGlyph(s string) (rune, error) {
	if s == "" {
		return DefaultGlyph, nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("glyph must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

var defaultEncoder, _ = NewEncoder(DefaultGlyph)

// Blackout replaces every code point of s with DefaultGlyph
func Blackout(s string) string {
	return defaultEncoder.Blackout(s)
}

// Glyph returns the encoder's glyph
func (e *Encoder) Glyph() rune {
	return e.glyph
}

// Blackout replaces every code point of s with the glyph
func (e *Encoder) Blackout(s string) string {
	if s == "" {
		return s
	}
	return strings.Repeat(e.unit, utf8.RuneCountInString(s))
}

// BlackoutKeepLines is Blackout except that line breaks survive
func (e *Encoder) BlackoutKeepLines(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return e.Blackout(s)
	}
	var b strings.Builder
	b.Grow(len(s) * utf8.RuneLen(e.glyph))
	for _, r := range s {
		if r == '\n' || r == '\r' {
			b.WriteRune(r)
			continue
		}
		b.WriteString(e.unit)
	}
	return b.String()
}

// isBlank reports whether s is entirely made of the glyph
func (e *Encoder) isBlank(s string) bool {
	for _, r := range s {
		if r != e.glyph {
			return false
		}
	}
	return true
}
