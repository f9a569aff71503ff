package document

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Document
		back  string
	}{
		{name: "Empty", input: "", want: Document{}, back: ""},
		{name: "SingleLine", input: "hello", want: Document{Lines: []string{"hello"}}, back: "hello"},
		{
			name:  "BlankLinesKept",
			input: "a\n\nb\n",
			want:  Document{Lines: []string{"a", "", "b"}, TrailingNewline: true},
			back:  "a\n\nb\n",
		},
		{
			name:  "CRLFNormalized",
			input: "a\r\nb\rc",
			want:  Document{Lines: []string{"a", "b", "c"}},
			back:  "a\nb\nc",
		},
		{
			name:  "OnlyNewline",
			input: "\n",
			want:  Document{Lines: []string{""}, TrailingNewline: true},
			back:  "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
			if s := got.String(); s != tt.back {
				t.Errorf("String() = %q, want %q", s, tt.back)
			}
		})
	}
}

func TestParagraphs(t *testing.T) {
	doc := Parse("  Title  \n\n\tbody text\n")
	want := []string{"Title", "", "body text"}
	if diff := cmp.Diff(want, doc.Paragraphs()); diff != "" {
		t.Errorf("Paragraphs mismatch (-want +got):\n%s", diff)
	}
}
