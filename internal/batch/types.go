// Package batch redacts tabular datasets record by record. Inputs and
// outputs may be CSV, Parquet or JSON lines; output order matches input
// order.
package batch

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnsupportedFormat is returned for unknown dataset extensions
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// Record is one input row
type Record struct {
	ID   string `parquet:"id" json:"id"`
	Text string `parquet:"text" json:"text"`
}

// RedactedRecord is one output row
type RedactedRecord struct {
	ID             string `parquet:"id" json:"id"`
	Text           string `parquet:"text" json:"text"`
	LabelMatches   int64  `parquet:"label_matches" json:"label_matches"`
	PatternMatches int64  `parquet:"pattern_matches" json:"pattern_matches"`
}

// ProcessingResult represents the result of processing a dataset
type ProcessingResult struct {
	TotalRecords   int64         `json:"total_records"`
	Skipped        int64         `json:"skipped"`
	LabelMatches   int64         `json:"label_matches"`
	PatternMatches int64         `json:"pattern_matches"`
	Batches        int           `json:"batches"`
	Duration       time.Duration `json:"duration"`
	ReadTime       time.Duration `json:"read_time"`
	RedactTime     time.Duration `json:"redact_time"`
	WriteTime      time.Duration `json:"write_time"`
	Errors         []string      `json:"errors,omitempty"`
}

// Format represents supported dataset formats
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
	FormatJSONL   Format = "jsonl"
)

// DetectFormat detects the dataset format from the file extension
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".parquet":
		return FormatParquet, nil
	case ".jsonl", ".ndjson", ".json":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}
