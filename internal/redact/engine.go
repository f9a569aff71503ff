// Package redact implements the two-phase redaction engine: label-driven
// value redaction followed by standalone pattern redaction. Redacted spans
// are replaced by a run of glyphs of the same code-point length so that
// document layout survives.
package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/raaihank/blackout/internal/catalog"
	"github.com/raaihank/blackout/internal/config"
	"go.uber.org/zap"
)

// Options selects the catalogs and output style of an Engine
type Options struct {
	Labels   []catalog.Label
	Patterns []catalog.PatternRule
	Glyph    rune
	Policy   OverlapPolicy
}

// DefaultOptions returns the built-in catalogs with the block glyph and
// sequential policy
func DefaultOptions() Options {
	return Options{
		Labels:   catalog.DefaultLabels(),
		Patterns: catalog.DefaultPatterns(),
		Glyph:    DefaultGlyph,
		Policy:   Sequential,
	}
}

// Engine runs text through the label stage then the pattern stage.
// It holds no mutable state and may be shared between goroutines.
type Engine struct {
	labels      *catalog.LabelCatalog
	patterns    *catalog.PatternCatalog
	enc         *Encoder
	policy      OverlapPolicy
	stages      []Stage
	fingerprint string
	logger      *zap.Logger
}

// New builds an engine. Malformed pattern rules are skipped with a warning;
// only an unusable glyph or policy is an error.
func New(opts Options, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Glyph == 0 {
		opts.Glyph = DefaultGlyph
	}
	if opts.Policy == "" {
		opts.Policy = Sequential
	}
	if !opts.Policy.Valid() {
		return nil, fmt.Errorf("unknown overlap policy %q", opts.Policy)
	}

	enc, err := NewEncoder(opts.Glyph)
	if err != nil {
		return nil, err
	}

	labels := catalog.NewLabelCatalog(opts.Labels, log)
	patterns := catalog.CompilePatterns(opts.Patterns, log)

	e := &Engine{
		labels:   labels,
		patterns: patterns,
		enc:      enc,
		policy:   opts.Policy,
		logger:   log,
	}
	e.stages = []Stage{
		NewLabelRedactor(labels, enc, log),
		NewPatternRedactor(patterns, opts.Policy, enc, log),
	}
	e.fingerprint = fingerprint(labels, patterns, enc.Glyph(), opts.Policy)

	log.Info("Redaction engine initialized",
		zap.Int("labels", labels.Len()),
		zap.Int("patterns", patterns.Len()),
		zap.Int("skipped_patterns", len(patterns.Errors())),
		zap.String("policy", string(opts.Policy)),
	)

	return e, nil
}

// NewFromConfig resolves the redaction section into engine options
func NewFromConfig(cfg config.RedactionConfig, log *zap.Logger) (*Engine, error) {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return New(opts, log)
}

// OptionsFromConfig starts from the built-in catalogs, then applies the
// labels file, replacements and extensions in that order
func OptionsFromConfig(cfg config.RedactionConfig) (Options, error) {
	opts := DefaultOptions()

	if cfg.LabelsFile != "" {
		f, err := catalog.LoadFile(cfg.LabelsFile)
		if err != nil {
			return Options{}, err
		}
		if len(f.Labels) > 0 {
			opts.Labels = catalog.Flatten(f.Labels)
		}
		if len(f.Patterns) > 0 {
			opts.Patterns = f.Patterns
		}
	}
	if len(cfg.Labels) > 0 {
		opts.Labels = customLabels(cfg.Labels)
	}
	opts.Labels = append(opts.Labels, customLabels(cfg.ExtraLabels)...)

	if len(cfg.Patterns) > 0 {
		opts.Patterns = append([]catalog.PatternRule(nil), cfg.Patterns...)
	}
	opts.Patterns = append(opts.Patterns, cfg.ExtraPatterns...)

	glyph, err := ParseGlyph(cfg.Glyph)
	if err != nil {
		return Options{}, err
	}
	opts.Glyph = glyph

	if cfg.OverlapPolicy != "" {
		opts.Policy = OverlapPolicy(cfg.OverlapPolicy)
	}
	return opts, nil
}

func customLabels(aliases []string) []catalog.Label {
	out := make([]catalog.Label, 0, len(aliases))
	for _, a := range aliases {
		out = append(out, catalog.Label{Alias: a, Category: catalog.CustomCategory})
	}
	return out
}

// Redact applies every stage in order. Empty input yields an empty result.
func (e *Engine) Redact(text string) Result {
	res := Result{Text: text}
	if text == "" {
		return res
	}

	for _, stage := range e.stages {
		var findings []Finding
		res.Text, findings = stage.Apply(res.Text)
		for _, f := range findings {
			switch f.Kind {
			case KindLabel:
				res.LabelMatches += f.Count
			case KindPattern:
				res.PatternMatches += f.Count
			}
		}
		res.Findings = append(res.Findings, findings...)
	}

	return res
}

// Labels returns the label catalog in use
func (e *Engine) Labels() *catalog.LabelCatalog { return e.labels }

// Patterns returns the compiled pattern catalog in use
func (e *Engine) Patterns() *catalog.PatternCatalog { return e.patterns }

// Glyph returns the blackout glyph
func (e *Engine) Glyph() rune { return e.enc.Glyph() }

// Policy returns the pattern overlap policy
func (e *Engine) Policy() OverlapPolicy { return e.policy }

// Encoder returns the glyph encoder, for renderers that need to recognise
// redacted runs
func (e *Engine) Encoder() *Encoder { return e.enc }

// Fingerprint identifies the catalogs and output style. Two engines with
// the same fingerprint produce the same output for the same input.
func (e *Engine) Fingerprint() string { return e.fingerprint }

func fingerprint(labels *catalog.LabelCatalog, patterns *catalog.PatternCatalog, glyph rune, policy OverlapPolicy) string {
	h := sha256.New()
	for _, a := range labels.Aliases() {
		fmt.Fprintf(h, "l:%s\x00", catalog.Normalize(a))
	}
	for _, p := range patterns.Patterns() {
		fmt.Fprintf(h, "p:%s\x00%t\x00%s\x00", p.Rule.Name, p.Rule.CaseInsensitive, p.Rule.Expression)
	}
	fmt.Fprintf(h, "g:%c\x00o:%s", glyph, strings.ToLower(string(policy)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
