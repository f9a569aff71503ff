package redact

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/raaihank/blackout/internal/catalog"
	"github.com/raaihank/blackout/internal/config"
	"go.uber.org/zap"
)

func glyphs(n int) string { return strings.Repeat("█", n) }

func newDefaultEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultOptions(), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestEncoder(t *testing.T) {
	t.Run("LengthPreserved", func(t *testing.T) {
		for _, in := range []string{"a", "héllo", "123-45-6789", "日本語"} {
			out := Blackout(in)
			if utf8.RuneCountInString(out) != utf8.RuneCountInString(in) {
				t.Errorf("Blackout(%q) = %q, length mismatch", in, out)
			}
			if strings.Trim(out, "█") != "" {
				t.Errorf("Blackout(%q) = %q contains non-glyph runes", in, out)
			}
		}
		if Blackout("") != "" {
			t.Error("empty input should stay empty")
		}
	})

	t.Run("KeepLines", func(t *testing.T) {
		enc, _ := NewEncoder(DefaultGlyph)
		if got := enc.BlackoutKeepLines("ab\r\ncd"); got != "██\r\n██" {
			t.Errorf("BlackoutKeepLines = %q", got)
		}
	})

	t.Run("GlyphValidation", func(t *testing.T) {
		for _, bad := range []rune{'a', 'Z', '7', '_', ' ', '\n', '\t', 'é'} {
			if _, err := NewEncoder(bad); err == nil {
				t.Errorf("NewEncoder(%q) should fail", bad)
			}
		}
		for _, good := range []rune{'█', '*', '#', '■'} {
			if _, err := NewEncoder(good); err != nil {
				t.Errorf("NewEncoder(%q): %v", good, err)
			}
		}
	})

	t.Run("ParseGlyph", func(t *testing.T) {
		if r, err := ParseGlyph(""); err != nil || r != DefaultGlyph {
			t.Errorf("ParseGlyph(\"\") = %q, %v", r, err)
		}
		if r, err := ParseGlyph("*"); err != nil || r != '*' {
			t.Errorf("ParseGlyph(\"*\") = %q, %v", r, err)
		}
		if _, err := ParseGlyph("**"); err == nil {
			t.Error("multi-character glyph should fail")
		}
	})
}

func TestLabelRedaction(t *testing.T) {
	e := newDefaultEngine(t)

	tests := []struct {
		name   string
		input  string
		want   string
		labels int
	}{
		{
			name:   "ColonSeparator",
			input:  "SSN: 123-45-6789",
			want:   "SSN: " + glyphs(11),
			labels: 1,
		},
		{
			name:   "EnDashSeparator",
			input:  "Tax ID – 12-3456789",
			want:   "Tax ID – " + glyphs(10),
			labels: 1,
		},
		{
			name:   "SpacedForm",
			input:  "Passport X1234567",
			want:   "Passport " + glyphs(8),
			labels: 1,
		},
		{
			name:   "SurroundingWhitespaceKept",
			input:  "Policy No:   AB 1234  \n",
			want:   "Policy No:   " + glyphs(7) + "  \n",
			labels: 1,
		},
		{
			name:   "OCRSpacing",
			input:  "Date  of   Birth: 01/02/1990",
			want:   "Date  of   Birth: " + glyphs(10),
			labels: 1,
		},
		{
			name:   "LineContainment",
			input:  "Email: foo@bar.com\nName: visible",
			want:   "Email: " + glyphs(11) + "\nName: visible",
			labels: 1,
		},
		{
			name:   "ShortAliasInsideWord",
			input:  "The invoice was paid in full",
			want:   "The invoice was paid in full",
			labels: 0,
		},
		{
			name:   "EmailAddress",
			input:  "Email Address: a@b.com",
			want:   "Email Address: " + glyphs(7),
			labels: 1,
		},
		{
			name:   "MedicalRecordNumber",
			input:  "Medical Record Number: 12345",
			want:   "Medical Record Number: " + glyphs(5),
			labels: 1,
		},
		{
			name:   "CreditCardNumber",
			input:  "Credit Card Number: 4111",
			want:   "Credit Card Number: " + glyphs(4),
			labels: 1,
		},
		{
			name:   "PassportNumber",
			input:  "Passport Number: X1234567",
			want:   "Passport Number: " + glyphs(8),
			labels: 1,
		},
		{
			name:   "DriverLicenseNumber",
			input:  "Driver License Number: D123",
			want:   "Driver License Number: " + glyphs(4),
			labels: 1,
		},
		{
			name:   "LongerLabelWithoutValue",
			input:  "Email Address:\nnext line",
			want:   "Email Address:\nnext line",
			labels: 0,
		},
		{
			name:   "EveryOccurrence",
			input:  "SSN: 1\nfoo\nSSN: 2",
			want:   "SSN: " + glyphs(1) + "\nfoo\nSSN: " + glyphs(1),
			labels: 2,
		},
		{
			name:   "SpacedFormTrailingWhitespace",
			input:  "Passport X1234567   \nnext",
			want:   "Passport " + glyphs(8) + "   \nnext",
			labels: 1,
		},
		{
			name:   "BlankValue",
			input:  "SSN:   \nnext line",
			want:   "SSN:   \nnext line",
			labels: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Redact(tt.input)
			if res.Text != tt.want {
				t.Errorf("Redact(%q)\n got %q\nwant %q", tt.input, res.Text, tt.want)
			}
			if res.LabelMatches != tt.labels {
				t.Errorf("LabelMatches = %d, want %d", res.LabelMatches, tt.labels)
			}
		})
	}
}

func TestLabelValueLength(t *testing.T) {
	e := newDefaultEngine(t)
	for _, value := range []string{"X1234567", "AB 12 CD", "näïve-01"} {
		for _, in := range []string{
			"Passport " + value + "  \t",
			"Passport:\t" + value + " ",
			"Passport Number " + value,
		} {
			res := e.Redact(in)
			want := utf8.RuneCountInString(value)
			if got := strings.Count(res.Text, "█"); got != want {
				t.Errorf("Redact(%q) = %q: %d glyphs, want %d", in, res.Text, got, want)
			}
			if !strings.HasPrefix(res.Text, strings.Fields(in)[0]) {
				t.Errorf("Redact(%q) = %q: label lost", in, res.Text)
			}
		}
	}
}

func TestEveryOccurrenceFinding(t *testing.T) {
	res := newDefaultEngine(t).Redact("SSN: 1\nfoo\nSSN: 2")
	want := []Finding{{Rule: "ssn", Category: "ssn", Kind: KindLabel, Count: 2}}
	if diff := cmp.Diff(want, res.Findings); diff != "" {
		t.Errorf("findings mismatch (-want +got):\n%s", diff)
	}
}

func TestNestedLabelsIdempotent(t *testing.T) {
	e := newDefaultEngine(t)
	for _, in := range []string{
		"ID: Passport X123",
		"Email Address: a@b.com",
		"Credit Card Number: 4111\nEmail Address:\n",
	} {
		first := e.Redact(in)
		if second := e.Redact(first.Text); second.Text != first.Text || second.Total() != 0 {
			t.Errorf("Redact(%q): second pass %q (%d matches), first %q", in, second.Text, second.Total(), first.Text)
		}
	}

	if got := e.Redact("ID: Passport X123").Text; got != "ID: Passport "+glyphs(4) {
		t.Errorf("got %q", got)
	}
}

func TestLabelPrecedence(t *testing.T) {
	res := newDefaultEngine(t).Redact("SSN: 123-45-6789")

	want := []Finding{{Rule: "ssn", Category: "ssn", Kind: KindLabel, Count: 1}}
	if diff := cmp.Diff(want, res.Findings); diff != "" {
		t.Errorf("findings mismatch (-want +got):\n%s", diff)
	}
	if res.PatternMatches != 0 {
		t.Errorf("PatternMatches = %d, label phase should have consumed the value", res.PatternMatches)
	}
}

func TestPatternRedaction(t *testing.T) {
	e := newDefaultEngine(t)

	t.Run("BareEmail", func(t *testing.T) {
		res := e.Redact("contact me at a@b.com for info")
		if want := "contact me at " + glyphs(7) + " for info"; res.Text != want {
			t.Errorf("got %q, want %q", res.Text, want)
		}
		if res.PatternMatches != 1 || res.LabelMatches != 0 {
			t.Errorf("matches = %d/%d", res.LabelMatches, res.PatternMatches)
		}
	})

	t.Run("CreditCardFullyRedacted", func(t *testing.T) {
		res := e.Redact("Paid with 4111-1111-1111-1111 yesterday")
		if want := "Paid with " + glyphs(19) + " yesterday"; res.Text != want {
			t.Errorf("got %q, want %q", res.Text, want)
		}
	})

	t.Run("Passthrough", func(t *testing.T) {
		in := "The quick brown fox jumps over the lazy dog.\n\nNothing to see here.\n"
		res := e.Redact(in)
		if res.Text != in {
			t.Errorf("text changed: %q", res.Text)
		}
		if res.Total() != 0 || len(res.Findings) != 0 {
			t.Errorf("unexpected findings: %+v", res.Findings)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if res := e.Redact(""); res.Text != "" || res.Total() != 0 {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("LineBreakInsideMatchKept", func(t *testing.T) {
		pe, err := New(Options{Patterns: []catalog.PatternRule{{Name: "Block", Expression: `BEGIN\n\w+\nEND`}}}, zap.NewNop())
		if err != nil {
			t.Fatal(err)
		}
		res := pe.Redact("x BEGIN\nsecret\nEND y")
		if want := "x " + glyphs(5) + "\n" + glyphs(6) + "\n" + glyphs(3) + " y"; res.Text != want {
			t.Errorf("got %q, want %q", res.Text, want)
		}
	})
}

func TestMalformedPatternIsolation(t *testing.T) {
	e, err := New(Options{
		Patterns: []catalog.PatternRule{
			{Name: "Broken", Expression: `(\d{3}`},
			{Name: "SSN", Expression: `\b\d{3}-\d{2}-\d{4}\b`},
		},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if e.Patterns().Len() != 1 {
		t.Fatalf("patterns = %d, want 1", e.Patterns().Len())
	}
	res := e.Redact("x 123-45-6789 y")
	if want := "x " + glyphs(11) + " y"; res.Text != want {
		t.Errorf("got %q, want %q", res.Text, want)
	}
}

func TestOverlapPolicy(t *testing.T) {
	rules := []catalog.PatternRule{
		{Name: "Short", Expression: `\d{3}`},
		{Name: "Long", Expression: `\d{3}-\d{4}`},
	}
	reversed := []catalog.PatternRule{rules[1], rules[0]}

	run := func(t *testing.T, patterns []catalog.PatternRule, policy OverlapPolicy) string {
		t.Helper()
		e, err := New(Options{Patterns: patterns, Policy: policy}, zap.NewNop())
		if err != nil {
			t.Fatal(err)
		}
		return e.Redact("x 555-1234").Text
	}

	t.Run("Sequential", func(t *testing.T) {
		if got, want := run(t, rules, Sequential), "x ███-███4"; got != want {
			t.Errorf("got %q, want %q", got, want)
		}
		if got, want := run(t, reversed, Sequential), "x ████████"; got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("Union", func(t *testing.T) {
		a, b := run(t, rules, Union), run(t, reversed, Union)
		if a != "x ████████" || a != b {
			t.Errorf("union results %q and %q", a, b)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if _, err := New(Options{Policy: "greedy"}, zap.NewNop()); err == nil {
			t.Error("expected error for unknown policy")
		}
	})
}

func TestIdempotence(t *testing.T) {
	input := strings.Join([]string{
		"Patient Intake Form",
		"",
		"SSN: 123-45-6789",
		"Date of Birth - 04/12/1985",
		"Email: jane.doe@example.com",
		"Call 555-123-4567 after 5pm.",
		"Card on file 4111 1111 1111 1111",
		"",
	}, "\n")

	want := strings.Join([]string{
		"Patient Intake Form",
		"",
		"SSN: " + glyphs(11),
		"Date of Birth - " + glyphs(10),
		"Email: " + glyphs(20),
		"Call " + glyphs(12) + " after 5pm.",
		"Card on file " + glyphs(19),
		"",
	}, "\n")

	// Under union the phone rule also sees the card digits, so it counts one more
	patternMatches := map[OverlapPolicy]int{Sequential: 2, Union: 3}

	for policy, wantPatterns := range patternMatches {
		t.Run(string(policy), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Policy = policy
			e, err := New(opts, zap.NewNop())
			if err != nil {
				t.Fatal(err)
			}

			first := e.Redact(input)
			if diff := cmp.Diff(want, first.Text); diff != "" {
				t.Errorf("first pass mismatch (-want +got):\n%s", diff)
			}
			if first.LabelMatches != 3 || first.PatternMatches != wantPatterns {
				t.Errorf("matches = %d/%d, want 3/%d", first.LabelMatches, first.PatternMatches, wantPatterns)
			}
			if utf8.RuneCountInString(first.Text) != utf8.RuneCountInString(input) {
				t.Error("redaction changed code-point length")
			}

			second := e.Redact(first.Text)
			if second.Text != first.Text {
				t.Errorf("second pass changed text:\n%q\n%q", first.Text, second.Text)
			}
			if second.Total() != 0 {
				t.Errorf("second pass counted %d matches", second.Total())
			}
		})
	}
}

func TestCustomGlyph(t *testing.T) {
	opts := DefaultOptions()
	opts.Glyph = '*'
	e, err := New(opts, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	first := e.Redact("SSN: 123-45-6789")
	if first.Text != "SSN: ***********" {
		t.Errorf("got %q", first.Text)
	}
	if second := e.Redact(first.Text); second.Text != first.Text || second.Total() != 0 {
		t.Errorf("second pass = %+v", second)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	t.Run("Extensions", func(t *testing.T) {
		e, err := NewFromConfig(config.RedactionConfig{
			ExtraLabels:   []string{"member id"},
			ExtraPatterns: []catalog.PatternRule{{Name: "Ticket", Expression: `TCK-\d+`}},
			Glyph:         "#",
			OverlapPolicy: "union",
		}, zap.NewNop())
		if err != nil {
			t.Fatalf("NewFromConfig: %v", err)
		}

		res := e.Redact("Member ID: 99812\nref TCK-42")
		if want := "Member ID: #####\nref ######"; res.Text != want {
			t.Errorf("got %q, want %q", res.Text, want)
		}
		if e.Policy() != Union {
			t.Errorf("policy = %s", e.Policy())
		}
	})

	t.Run("Replacement", func(t *testing.T) {
		opts, err := OptionsFromConfig(config.RedactionConfig{Labels: []string{"badge"}})
		if err != nil {
			t.Fatal(err)
		}
		want := []catalog.Label{{Alias: "badge", Category: catalog.CustomCategory}}
		if diff := cmp.Diff(want, opts.Labels); diff != "" {
			t.Errorf("labels mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("BadGlyph", func(t *testing.T) {
		if _, err := NewFromConfig(config.RedactionConfig{Glyph: "x"}, zap.NewNop()); err == nil {
			t.Error("expected error for letter glyph")
		}
	})
}

func TestFingerprint(t *testing.T) {
	a := newDefaultEngine(t)
	b := newDefaultEngine(t)
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical options should share a fingerprint")
	}

	opts := DefaultOptions()
	opts.Glyph = '*'
	c, _ := New(opts, zap.NewNop())
	if c.Fingerprint() == a.Fingerprint() {
		t.Error("glyph change should alter the fingerprint")
	}
}

func TestHolder(t *testing.T) {
	first, err := New(DefaultOptions(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	opts := DefaultOptions()
	opts.Glyph = '*'
	second, err := New(opts, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	h := NewHolder(first)
	held := h.Current()
	if prev := h.Swap(second); prev != first {
		t.Error("Swap did not return the previous engine")
	}
	if h.Current().Glyph() != '*' {
		t.Error("swap not visible")
	}
	if got := held.Redact("SSN: 12").Text; got != "SSN: ██" {
		t.Errorf("engine loaded before the swap changed output: %q", got)
	}
}
