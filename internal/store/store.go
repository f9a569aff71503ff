package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/raaihank/blackout/internal/config"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS redaction_jobs (
	id              BIGSERIAL PRIMARY KEY,
	kind            TEXT NOT NULL,
	source          TEXT NOT NULL,
	fingerprint     TEXT NOT NULL,
	status          TEXT NOT NULL,
	label_matches   INTEGER NOT NULL DEFAULT 0,
	pattern_matches INTEGER NOT NULL DEFAULT 0,
	raw_length      INTEGER NOT NULL DEFAULT 0,
	cleaned_length  INTEGER NOT NULL DEFAULT 0,
	redacted_length INTEGER NOT NULL DEFAULT 0,
	output_files    TEXT[] NOT NULL DEFAULT '{}',
	error           TEXT,
	started_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_redaction_jobs_started_at ON redaction_jobs (started_at DESC);`

// ErrNotFound is returned when a job id does not exist
var ErrNotFound = errors.New("job not found")

// JobStore persists job metadata
type JobStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// New connects to cfg.DatabaseURL and ensures the schema exists
func New(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*JobStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	s := NewWithDB(db, logger)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("Job store initialized",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns))

	return s, nil
}

// NewWithDB wraps an open connection
func NewWithDB(db *sqlx.DB, logger *zap.Logger) *JobStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobStore{db: db, logger: logger}
}

// Migrate creates the jobs table when missing
func (s *JobStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate job schema: %w", err)
	}
	return nil
}

// Insert inserts a running job and returns its id
func (s *JobStore) Insert(ctx context.Context, kind, source, fingerprint string) (int64, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO redaction_jobs (kind, source, fingerprint, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		kind, source, fingerprint, StatusRunning,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert job: %w", err)
	}

	s.logger.Debug("Job started", zap.Int64("job_id", id), zap.String("kind", kind))
	return id, nil
}

// Complete marks a job finished with its figures
func (s *JobStore) Complete(ctx context.Context, id int64, sum Summary) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE redaction_jobs SET
			status = $2,
			label_matches = $3,
			pattern_matches = $4,
			raw_length = $5,
			cleaned_length = $6,
			redacted_length = $7,
			output_files = $8,
			finished_at = now()
		WHERE id = $1`,
		id, StatusCompleted,
		sum.LabelMatches, sum.PatternMatches,
		sum.RawLength, sum.CleanedLength, sum.RedactedLength,
		pq.Array(sum.OutputFiles),
	)
	if err != nil {
		return fmt.Errorf("failed to complete job %d: %w", id, err)
	}
	return expectOne(res, id)
}

// Fail marks a job failed. reason must not contain document text.
func (s *JobStore) Fail(ctx context.Context, id int64, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE redaction_jobs SET status = $2, error = $3, finished_at = now()
		WHERE id = $1`,
		id, StatusFailed, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job %d failed: %w", id, err)
	}
	return expectOne(res, id)
}

// Get returns one job
func (s *JobStore) Get(ctx context.Context, id int64) (*Job, error) {
	var job Job
	err := s.db.GetContext(ctx, &job, `SELECT * FROM redaction_jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %d: %w", id, err)
	}
	return &job, nil
}

// Recent returns the newest jobs first
func (s *JobStore) Recent(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []Job
	if err := s.db.SelectContext(ctx, &jobs,
		`SELECT * FROM redaction_jobs ORDER BY started_at DESC, id DESC LIMIT $1`, limit); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Stats aggregates job counts and match totals
func (s *JobStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.GetContext(ctx, &st, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			COUNT(*) FILTER (WHERE status = 'running') AS running,
			COALESCE(SUM(label_matches), 0) AS label_matches,
			COALESCE(SUM(pattern_matches), 0) AS pattern_matches
		FROM redaction_jobs`)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}
	return &st, nil
}

// Close closes the database connection
func (s *JobStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func expectOne(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// maskDatabaseURL masks the password in a database URL for logging
func maskDatabaseURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userPart := url[:at]
	colon := strings.LastIndex(userPart, ":")
	scheme := strings.Index(userPart, "://")
	if colon < 0 || colon <= scheme+2 {
		return url
	}
	return userPart[:colon+1] + "***" + url[at:]
}
