// Package store records redaction jobs in PostgreSQL. Only metadata is kept:
// file names, counts, lengths and output paths. Document text never reaches
// the database.
package store

import (
	"time"

	"github.com/lib/pq"
)

// Job statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Job kinds
const (
	KindProcess = "process"
	KindRedact  = "redact"
	KindBatch   = "batch"
)

// Job is one row of redaction_jobs
type Job struct {
	ID             int64          `db:"id" json:"id"`
	Kind           string         `db:"kind" json:"kind"`
	Source         string         `db:"source" json:"source"`
	Fingerprint    string         `db:"fingerprint" json:"fingerprint"`
	Status         string         `db:"status" json:"status"`
	LabelMatches   int            `db:"label_matches" json:"label_matches"`
	PatternMatches int            `db:"pattern_matches" json:"pattern_matches"`
	RawLength      int            `db:"raw_length" json:"raw_length"`
	CleanedLength  int            `db:"cleaned_length" json:"cleaned_length"`
	RedactedLength int            `db:"redacted_length" json:"redacted_length"`
	OutputFiles    pq.StringArray `db:"output_files" json:"output_files"`
	Error          *string        `db:"error" json:"error,omitempty"`
	StartedAt      time.Time      `db:"started_at" json:"started_at"`
	FinishedAt     *time.Time     `db:"finished_at" json:"finished_at,omitempty"`
}

// Summary carries the figures recorded when a job completes
type Summary struct {
	LabelMatches   int
	PatternMatches int
	RawLength      int
	CleanedLength  int
	RedactedLength int
	OutputFiles    []string
}

// Stats aggregates the job table
type Stats struct {
	Total          int64 `db:"total" json:"total"`
	Completed      int64 `db:"completed" json:"completed"`
	Failed         int64 `db:"failed" json:"failed"`
	Running        int64 `db:"running" json:"running"`
	LabelMatches   int64 `db:"label_matches" json:"label_matches"`
	PatternMatches int64 `db:"pattern_matches" json:"pattern_matches"`
}
