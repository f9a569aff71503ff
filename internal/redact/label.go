package redact

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/raaihank/blackout/internal/catalog"
	"go.uber.org/zap"
)

const (
	// Label, optional horizontal space, a separator, optional space, value
	separatedValue = `([ \t]*[:\-–][ \t]*)([^\n\r]+)`
	// Label, horizontal space, value. A value that opens with a separator
	// belongs to the separated form.
	spacedValue = `[ \t]+([^\n\r:\-–][^\n\r]*)`
)

type labelMatcher struct {
	alias     string
	category  string
	separated *regexp.Regexp
	spaced    *regexp.Regexp
}

// LabelRedactor blacks out the value that follows a known label on the
// same line, leaving the label and separator readable
type LabelRedactor struct {
	matchers []labelMatcher
	head     *regexp.Regexp
	enc      *Encoder
	logger   *zap.Logger
}

// runeSpan is a value range in code points. Blackout keeps the code point
// count, so these offsets survive every rewrite within a pass.
type runeSpan struct {
	start, end int
}

// NewLabelRedactor compiles one matcher pair per alias, in catalog order
func NewLabelRedactor(labels *catalog.LabelCatalog, enc *Encoder, log *zap.Logger) *LabelRedactor {
	if log == nil {
		log = zap.NewNop()
	}

	entries := labels.Entries()
	r := &LabelRedactor{
		matchers: make([]labelMatcher, 0, len(entries)),
		enc:      enc,
		logger:   log,
	}
	heads := make([]string, 0, len(entries))
	for _, l := range entries {
		left, core, right := aliasExpr(l.Alias)
		heads = append(heads, left+core+right)
		r.matchers = append(r.matchers, labelMatcher{
			alias:     l.Alias,
			category:  l.Category,
			separated: regexp.MustCompile(`(?i)` + left + core + right + separatedValue),
			spaced:    regexp.MustCompile(`(?i)` + left + core + spacedValue),
		})
	}
	// Any alias directly followed by a separator
	if len(heads) > 0 {
		r.head = regexp.MustCompile(`(?i)^(?:` + strings.Join(heads, "|") + `)[ \t]*[:\-–]`)
	}
	return r
}

// aliasExpr escapes alias and lets its inner spaces absorb any run of
// horizontal whitespace. Word boundaries are added only on edges that are
// word characters, so "id" does not fire inside "paid" while "S.S.N." still
// matches after punctuation.
func aliasExpr(alias string) (left, core, right string) {
	words := strings.Fields(alias)
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	core = strings.Join(quoted, `[ \t]+`)

	joined := strings.Join(words, " ")
	if isWordByte(joined[0]) {
		left = `\b`
	}
	if isWordByte(joined[len(joined)-1]) {
		right = `\b`
	}
	return left, core, right
}

func isWordByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

// Name implements Stage
func (r *LabelRedactor) Name() string { return "labels" }

// Apply implements Stage. For each alias, longest first, the separated form
// runs before the spaced form; each consumes the previous output. A value
// already claimed by a longer alias in this pass is left to that alias.
func (r *LabelRedactor) Apply(text string) (string, []Finding) {
	var (
		findings []Finding
		claimed  []runeSpan
	)

	for _, m := range r.matchers {
		var sep, sp int
		text, sep = r.redactValues(text, m.separated, false, &claimed)
		text, sp = r.redactValues(text, m.spaced, true, &claimed)
		if count := sep + sp; count > 0 {
			findings = append(findings, Finding{Rule: m.alias, Category: m.category, Kind: KindLabel, Count: count})
			r.logger.Debug("Label values redacted",
				zap.String("label", m.alias),
				zap.String("category", m.category),
				zap.Int("count", count))
		}
	}

	return text, findings
}

// redactValues blacks out the trimmed value group (the last submatch) of
// every match and records the spans it claims. Only spans that actually
// change are counted.
func (r *LabelRedactor) redactValues(text string, re *regexp.Regexp, spaced bool, claimed *[]runeSpan) (string, int) {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, 0
	}

	spans := make([]MatchSpan, 0, len(matches))
	for _, loc := range matches {
		vs, ve := loc[len(loc)-2], loc[len(loc)-1]
		start, end := trimSpan(text, vs, ve)
		if start == end {
			continue
		}
		value := text[start:end]
		rs := runeSpan{start: utf8.RuneCountInString(text[:start])}
		rs.end = rs.start + utf8.RuneCountInString(value)

		// An already blacked-out value still belongs to its label
		if r.enc.isBlank(value) {
			if !overlapsAny(*claimed, rs) {
				*claimed = append(*claimed, rs)
			}
			continue
		}
		if spaced && r.partOfLongerLabel(text[loc[0]:loc[1]], value) {
			continue
		}
		if overlapsAny(*claimed, rs) {
			continue
		}
		*claimed = append(*claimed, rs)
		spans = append(spans, MatchSpan{Start: start, End: end, Replacement: r.enc.Blackout(value)})
	}

	return applySpans(text, spans), len(spans)
}

// partOfLongerLabel reports whether a spaced-form match is really the head
// of a longer label: "Email Address: x" must not read as label "Email" with
// value "Address: x". match starts at the label; value is its trimmed value.
func (r *LabelRedactor) partOfLongerLabel(match, value string) bool {
	if strings.ContainsRune(value, r.enc.Glyph()) {
		return true
	}
	if r.head == nil {
		return false
	}
	return r.head.MatchString(value) || r.head.MatchString(match)
}

func overlapsAny(spans []runeSpan, s runeSpan) bool {
	for _, c := range spans {
		if s.start < c.end && c.start < s.end {
			return true
		}
	}
	return false
}

// trimSpan narrows [start, end) to exclude surrounding whitespace
func trimSpan(text string, start, end int) (int, int) {
	value := text[start:end]
	trimmed := strings.TrimLeftFunc(value, isSpace)
	start += len(value) - len(trimmed)
	end = start + len(strings.TrimRightFunc(trimmed, isSpace))
	return start, end
}
