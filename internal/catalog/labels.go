package catalog

import (
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// CustomCategory is assigned to labels supplied without a category
const CustomCategory = "custom"

// Label is a single alias phrase naming a PII field
type Label struct {
	Alias    string `yaml:"alias" mapstructure:"alias" json:"alias"`
	Category string `yaml:"category" mapstructure:"category" json:"category"`
}

// LabelCatalog is an immutable set of normalized label aliases.
// It is safe for concurrent use once constructed.
type LabelCatalog struct {
	entries []Label
	index   map[string]int
}

// NewLabelCatalog builds a catalog from labels in declaration order.
// Aliases that normalize to the same phrase collapse into one entry (the
// first declaration wins); empty aliases are skipped with a warning.
func NewLabelCatalog(labels []Label, log *zap.Logger) *LabelCatalog {
	if log == nil {
		log = zap.NewNop()
	}

	c := &LabelCatalog{
		entries: make([]Label, 0, len(labels)),
		index:   make(map[string]int, len(labels)),
	}

	for i, l := range labels {
		key := Normalize(l.Alias)
		if key == "" {
			log.Warn("Skipping empty label alias", zap.Int("position", i), zap.String("category", l.Category))
			continue
		}
		if _, dup := c.index[key]; dup {
			continue
		}
		if l.Category == "" {
			l.Category = CustomCategory
		}
		c.index[key] = len(c.entries)
		c.entries = append(c.entries, Label{Alias: strings.TrimSpace(l.Alias), Category: l.Category})
	}

	// Longest phrase first so "email address" claims a value before "email"
	sort.SliceStable(c.entries, func(i, j int) bool {
		return len([]rune(Normalize(c.entries[i].Alias))) > len([]rune(Normalize(c.entries[j].Alias)))
	})
	for i, e := range c.entries {
		c.index[Normalize(e.Alias)] = i
	}

	return c
}

// Contains reports whether candidate is a known alias, ignoring case and
// differences in whitespace
func (c *LabelCatalog) Contains(candidate string) bool {
	_, ok := c.index[Normalize(candidate)]
	return ok
}

// Category returns the category of a known alias
func (c *LabelCatalog) Category(candidate string) (string, bool) {
	i, ok := c.index[Normalize(candidate)]
	if !ok {
		return "", false
	}
	return c.entries[i].Category, true
}

// Entries returns the labels in match order. The returned slice is a copy.
func (c *LabelCatalog) Entries() []Label {
	out := make([]Label, len(c.entries))
	copy(out, c.entries)
	return out
}

// Aliases returns the alias phrases in match order: longest normalized
// alias first, ties in declaration order
func (c *LabelCatalog) Aliases() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Alias
	}
	return out
}

// Len returns the number of distinct aliases
func (c *LabelCatalog) Len() int {
	return len(c.entries)
}

// Normalize lower-cases s and collapses every run of whitespace to a
// single space
func Normalize(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), unicode.IsSpace), " ")
}
