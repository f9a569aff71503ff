package redact

import (
	"sort"
	"strings"
	"unicode"
)

func isSpace(r rune) bool { return unicode.IsSpace(r) }

// applySpans rewrites text with non-overlapping spans ordered by Start
func applySpans(text string, spans []MatchSpan) string {
	if len(spans) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(spans)*8)
	last := 0
	for _, s := range spans {
		b.WriteString(text[last:s.Start])
		b.WriteString(s.Replacement)
		last = s.End
	}
	b.WriteString(text[last:])
	return b.String()
}

// mergeSpans sorts spans and joins the ones that overlap or touch.
// Replacements are dropped; callers recompute them over the merged range.
func mergeSpans(spans []MatchSpan) []MatchSpan {
	if len(spans) == 0 {
		return nil
	}
	sorted := make([]MatchSpan, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End > sorted[j].End
	})

	merged := []MatchSpan{{Start: sorted[0].Start, End: sorted[0].End}}
	for _, s := range sorted[1:] {
		cur := &merged[len(merged)-1]
		if s.Start <= cur.End {
			if s.End > cur.End {
				cur.End = s.End
			}
			continue
		}
		merged = append(merged, MatchSpan{Start: s.Start, End: s.End})
	}
	return merged
}
