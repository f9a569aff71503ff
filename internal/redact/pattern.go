package redact

import (
	"github.com/raaihank/blackout/internal/catalog"
	"go.uber.org/zap"
)

// PatternRedactor blacks out standalone PII shapes wherever they occur
type PatternRedactor struct {
	patterns []catalog.CompiledPattern
	policy   OverlapPolicy
	enc      *Encoder
	logger   *zap.Logger
}

// NewPatternRedactor uses the compiled rules of c. An unknown policy falls
// back to Sequential.
func NewPatternRedactor(c *catalog.PatternCatalog, policy OverlapPolicy, enc *Encoder, log *zap.Logger) *PatternRedactor {
	if log == nil {
		log = zap.NewNop()
	}
	if !policy.Valid() {
		policy = Sequential
	}
	return &PatternRedactor{
		patterns: c.Patterns(),
		policy:   policy,
		enc:      enc,
		logger:   log,
	}
}

// Name implements Stage
func (r *PatternRedactor) Name() string { return "patterns" }

// Policy returns the overlap policy in effect
func (r *PatternRedactor) Policy() OverlapPolicy { return r.policy }

// Apply implements Stage
func (r *PatternRedactor) Apply(text string) (string, []Finding) {
	if r.policy == Union {
		return r.applyUnion(text)
	}
	return r.applySequential(text)
}

func (r *PatternRedactor) applySequential(text string) (string, []Finding) {
	var findings []Finding

	for _, p := range r.patterns {
		locs := p.Re.FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			continue
		}

		spans := make([]MatchSpan, 0, len(locs))
		for _, loc := range locs {
			orig := text[loc[0]:loc[1]]
			repl := r.enc.BlackoutKeepLines(orig)
			if repl == orig {
				continue
			}
			spans = append(spans, MatchSpan{Start: loc[0], End: loc[1], Replacement: repl})
		}
		if len(spans) == 0 {
			continue
		}

		text = applySpans(text, spans)
		findings = append(findings, Finding{Rule: p.Rule.Name, Kind: KindPattern, Count: len(spans)})
		r.logger.Debug("Pattern matches redacted",
			zap.String("rule", p.Rule.Name),
			zap.Int("count", len(spans)))
	}

	return text, findings
}

func (r *PatternRedactor) applyUnion(text string) (string, []Finding) {
	var (
		findings []Finding
		all      []MatchSpan
	)

	for _, p := range r.patterns {
		count := 0
		for _, loc := range p.Re.FindAllStringIndex(text, -1) {
			orig := text[loc[0]:loc[1]]
			if r.enc.BlackoutKeepLines(orig) == orig {
				continue
			}
			all = append(all, MatchSpan{Start: loc[0], End: loc[1]})
			count++
		}
		if count > 0 {
			findings = append(findings, Finding{Rule: p.Rule.Name, Kind: KindPattern, Count: count})
		}
	}

	merged := mergeSpans(all)
	for i := range merged {
		merged[i].Replacement = r.enc.BlackoutKeepLines(text[merged[i].Start:merged[i].End])
	}

	r.logger.Debug("Pattern union applied",
		zap.Int("spans", len(all)),
		zap.Int("merged", len(merged)))

	return applySpans(text, merged), findings
}
