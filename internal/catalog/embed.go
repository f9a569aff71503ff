// Package catalog holds the label and pattern catalogs that drive
// redaction. The default catalog ships embedded as defaults.yaml; callers
// may replace or extend it from configuration.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// File is the on-disk catalog layout shared by the embedded defaults and
// user supplied label files
type File struct {
	Labels   []LabelGroup  `yaml:"labels"`
	Patterns []PatternRule `yaml:"patterns"`
}

// LabelGroup lists the aliases of one PII category
type LabelGroup struct {
	Category string   `yaml:"category"`
	Aliases  []string `yaml:"aliases"`
}

// Flatten expands groups into labels, keeping declaration order
func Flatten(groups []LabelGroup) []Label {
	var out []Label
	for _, g := range groups {
		for _, a := range g.Aliases {
			out = append(out, Label{Alias: a, Category: g.Category})
		}
	}
	return out
}

// ParseFile decodes a catalog document
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return &f, nil
}

// LoadFile reads a catalog document from path. Either section may be empty.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return ParseFile(data)
}

var defaults *File

func init() {
	f, err := ParseFile(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("loading embedded catalog: %v", err))
	}
	defaults = f
}

// DefaultLabels returns the built-in label aliases in declaration order
func DefaultLabels() []Label {
	return Flatten(defaults.Labels)
}

// DefaultPatterns returns the built-in pattern rules in catalog order
func DefaultPatterns() []PatternRule {
	out := make([]PatternRule, len(defaults.Patterns))
	copy(out, defaults.Patterns)
	return out
}

// DefaultsYAML returns the raw embedded catalog
func DefaultsYAML() []byte { return defaultsYAML }
