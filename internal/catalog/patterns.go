package catalog

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"
)

// PatternRule is a named standalone PII shape
type PatternRule struct {
	Name            string `yaml:"name" mapstructure:"name" json:"name"`
	Expression      string `yaml:"expression" mapstructure:"expression" json:"expression"`
	CaseInsensitive bool   `yaml:"case_insensitive" mapstructure:"case_insensitive" json:"case_insensitive"`
}

// CompiledPattern is a rule paired with its compiled matcher
type CompiledPattern struct {
	Rule PatternRule
	Re   *regexp.Regexp
}

// PatternCatalog is an ordered list of compiled rules. Order is significant
// under the sequential overlap policy.
type PatternCatalog struct {
	patterns []CompiledPattern
	errors   []*CompileError
}

// CompileError reports a rule whose expression could not be compiled
type CompileError struct {
	Rule       string
	Expression string
	Err        error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("pattern %q: %v", e.Rule, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// CompilePatterns compiles rules in order. A malformed rule is logged and
// skipped; the rules after it still compile.
func CompilePatterns(rules []PatternRule, log *zap.Logger) *PatternCatalog {
	if log == nil {
		log = zap.NewNop()
	}

	c := &PatternCatalog{patterns: make([]CompiledPattern, 0, len(rules))}
	for _, rule := range rules {
		re, err := compileRule(rule)
		if err != nil {
			cerr := &CompileError{Rule: rule.Name, Expression: rule.Expression, Err: err}
			c.errors = append(c.errors, cerr)
			log.Warn("Skipping malformed pattern",
				zap.String("rule", rule.Name),
				zap.Error(err))
			continue
		}
		c.patterns = append(c.patterns, CompiledPattern{Rule: rule, Re: re})
	}

	log.Debug("Compiled pattern catalog",
		zap.Int("rules", len(c.patterns)),
		zap.Int("skipped", len(c.errors)))

	return c
}

func compileRule(rule PatternRule) (*regexp.Regexp, error) {
	if rule.Expression == "" {
		return nil, fmt.Errorf("empty expression")
	}
	expr := rule.Expression
	if rule.CaseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	if re.MatchString("") {
		return nil, fmt.Errorf("expression matches the empty string")
	}
	return re, nil
}

// Patterns returns the compiled rules in catalog order
func (c *PatternCatalog) Patterns() []CompiledPattern {
	out := make([]CompiledPattern, len(c.patterns))
	copy(out, c.patterns)
	return out
}

// Errors returns the rules skipped during compilation
func (c *PatternCatalog) Errors() []*CompileError {
	return c.errors
}

// Names returns rule names in catalog order
func (c *PatternCatalog) Names() []string {
	names := make([]string, len(c.patterns))
	for i, p := range c.patterns {
		names[i] = p.Rule.Name
	}
	return names
}

// Len returns the number of usable rules
func (c *PatternCatalog) Len() int {
	return len(c.patterns)
}
