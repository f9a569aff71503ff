package redact

// Kind tells which phase produced a finding
type Kind string

const (
	KindLabel   Kind = "label"
	KindPattern Kind = "pattern"
)

// OverlapPolicy controls how pattern rules interact when their matches overlap
type OverlapPolicy string

const (
	// Sequential applies rules in catalog order, each over the previous output
	Sequential OverlapPolicy = "sequential"
	// Union matches every rule against the same input and blacks out the
	// union of their spans
	Union OverlapPolicy = "union"
)

// Valid reports whether p names a known policy
func (p OverlapPolicy) Valid() bool {
	return p == Sequential || p == Union
}

// Finding counts the spans one rule redacted. Matched values are never kept.
type Finding struct {
	Rule     string `json:"rule"`
	Category string `json:"category,omitempty"`
	Kind     Kind   `json:"kind"`
	Count    int    `json:"count"`
}

// Result is the outcome of redacting one text
type Result struct {
	Text           string    `json:"text"`
	LabelMatches   int       `json:"label_matches"`
	PatternMatches int       `json:"pattern_matches"`
	Findings       []Finding `json:"findings"`
}

// Total returns the number of redacted spans across both phases
func (r Result) Total() int {
	return r.LabelMatches + r.PatternMatches
}

// MatchSpan is a byte range of the text being rewritten
type MatchSpan struct {
	Start       int
	End         int
	Replacement string
}

// Stage is one redaction phase. Stages are pure and safe for concurrent use.
type Stage interface {
	Name() string
	Apply(text string) (string, []Finding)
}
