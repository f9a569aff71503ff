package batch

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/raaihank/blackout/internal/config"
	"github.com/raaihank/blackout/internal/redact"
	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

func newProcessor(t *testing.T, workers, batchSize int) *Processor {
	t.Helper()
	e, err := redact.New(redact.DefaultOptions(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return NewProcessor(redact.NewHolder(e), config.BatchConfig{
		Workers:    workers,
		BatchSize:  batchSize,
		IDColumn:   "id",
		TextColumn: "text",
	}, zap.NewNop())
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func readJSONL(t *testing.T, path string) []RedactedRecord {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var out []RedactedRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r RedactedRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		out = append(out, r)
	}
	return out
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"a.csv":      FormatCSV,
		"b.PARQUET":  FormatParquet,
		"c.jsonl":    FormatJSONL,
		"d.ndjson":   FormatJSONL,
		"dir/e.json": FormatJSONL,
	}
	for in, want := range tests {
		if got, err := DetectFormat(in); err != nil || got != want {
			t.Errorf("DetectFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := DetectFormat("x.xlsx"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v", err)
	}
}

func TestCSVToJSONL(t *testing.T) {
	in := writeFile(t, "in.csv", "text,id,extra\n"+
		"\"SSN: 123-45-6789\",r1,x\n"+
		"nothing here,r2,y\n"+
		"\"multi\nline Email: a@b.com\",r3,z\n")
	out := filepath.Join(t.TempDir(), "out.jsonl")

	res, err := newProcessor(t, 2, 2).ProcessFile(context.Background(), in, out)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if res.TotalRecords != 3 || res.Batches != 2 || res.LabelMatches != 2 {
		t.Errorf("result = %+v", res)
	}

	want := []RedactedRecord{
		{ID: "r1", Text: "SSN: ███████████", LabelMatches: 1},
		{ID: "r2", Text: "nothing here"},
		{ID: "r3", Text: "multi\nline Email: ███████", LabelMatches: 1},
	}
	if diff := cmp.Diff(want, readJSONL(t, out)); diff != "" {
		t.Errorf("records (-want +got):\n%s", diff)
	}
}

func TestJSONLToCSV(t *testing.T) {
	in := writeFile(t, "in.jsonl",
		`{"id": 7, "text": "Phone Number: 555 123 4567"}`+"\n"+
			`{"text": "card 4111 1111 1111 1111"}`+"\n")
	out := filepath.Join(t.TempDir(), "out.csv")

	if _, err := newProcessor(t, 1, 10).ProcessFile(context.Background(), in, out); err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	want := [][]string{
		{"id", "text", "label_matches", "pattern_matches"},
		{"7", "Phone Number: ████████████", "1", "0"},
		{"2", "card ███████████████████", "0", "1"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestParquetRoundTrip(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.parquet")
	f, err := os.Create(in)
	if err != nil {
		t.Fatal(err)
	}
	pw := parquet.NewGenericWriter[Record](f)
	if _, err := pw.Write([]Record{{ID: "a", Text: "Email: x@y.org"}, {ID: "b", Text: "clean"}}); err != nil {
		t.Fatal(err)
	}
	if err := pw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out := filepath.Join(t.TempDir(), "out.parquet")
	if _, err := newProcessor(t, 2, 1).ProcessFile(context.Background(), in, out); err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}

	rf, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()
	pr := parquet.NewGenericReader[RedactedRecord](rf)
	defer pr.Close()
	got := make([]RedactedRecord, 4)
	n, _ := pr.Read(got)

	want := []RedactedRecord{
		{ID: "a", Text: "Email: ███████", LabelMatches: 1},
		{ID: "b", Text: "clean"},
	}
	if diff := cmp.Diff(want, got[:n]); diff != "" {
		t.Errorf("records (-want +got):\n%s", diff)
	}
}

func TestOrderPreserved(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("id,text\n")
	for i := range 50 {
		fmt.Fprintf(&sb, "%d,SSN: %d\n", i, i)
	}
	in := writeFile(t, "in.csv", sb.String())
	out := filepath.Join(t.TempDir(), "out.jsonl")

	res, err := newProcessor(t, 4, 7).ProcessFile(context.Background(), in, out)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalRecords != 50 || res.LabelMatches != 50 {
		t.Errorf("result = %+v", res)
	}
	for i, r := range readJSONL(t, out) {
		if r.ID != fmt.Sprint(i) {
			t.Fatalf("record %d has id %s", i, r.ID)
		}
	}
}

func TestMissingTextColumn(t *testing.T) {
	in := writeFile(t, "in.csv", "id,body\n1,x\n")
	_, err := newProcessor(t, 1, 1).ProcessFile(context.Background(), in, filepath.Join(t.TempDir(), "o.jsonl"))
	if err == nil || !strings.Contains(err.Error(), `"text"`) {
		t.Errorf("error = %v", err)
	}
}

func TestCancelled(t *testing.T) {
	in := writeFile(t, "in.csv", "id,text\n1,a\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newProcessor(t, 1, 1).ProcessFile(ctx, in, filepath.Join(t.TempDir(), "o.jsonl"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v", err)
	}
}
