package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/raaihank/blackout/internal/config"
	"github.com/raaihank/blackout/internal/redact"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// EngineProvider hands out the engine used for a whole dataset
type EngineProvider interface {
	Current() *redact.Engine
}

// Processor redacts datasets with a pool of workers
type Processor struct {
	engines EngineProvider
	config  config.BatchConfig
	logger  *zap.Logger
}

// NewProcessor creates a new dataset processor
func NewProcessor(engines EngineProvider, cfg config.BatchConfig, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.IDColumn == "" {
		cfg.IDColumn = "id"
	}
	if cfg.TextColumn == "" {
		cfg.TextColumn = "text"
	}
	return &Processor{engines: engines, config: cfg, logger: logger.With(zap.String("component", "batch"))}
}

// ProcessFile redacts the dataset at input into output. The formats are
// chosen by extension and may differ.
func (p *Processor) ProcessFile(ctx context.Context, input, output string) (*ProcessingResult, error) {
	r, err := OpenReader(input, Columns{ID: p.config.IDColumn, Text: p.config.TextColumn})
	if err != nil {
		return nil, err
	}
	defer r.Close()

	w, err := CreateWriter(output)
	if err != nil {
		return nil, err
	}

	result, err := p.Process(ctx, r, w)
	if cerr := w.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to finalize output: %w", cerr)
	}
	if err != nil {
		return result, err
	}

	p.logger.Info("Dataset redacted",
		zap.String("input", input),
		zap.String("output", output),
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("label_matches", result.LabelMatches),
		zap.Int64("pattern_matches", result.PatternMatches),
		zap.Duration("duration", result.Duration),
		zap.Duration("read_time", result.ReadTime),
		zap.Duration("redact_time", result.RedactTime),
		zap.Duration("write_time", result.WriteTime))

	return result, nil
}

// Process copies every record from r to w, redacted. One engine is used for
// the whole run even if a reload swaps it midway.
func (p *Processor) Process(ctx context.Context, r RecordReader, w RecordWriter) (*ProcessingResult, error) {
	start := time.Now()
	engine := p.engines.Current()
	result := &ProcessingResult{}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		readStart := time.Now()
		records, err := r.Next(p.config.BatchSize)
		result.ReadTime += time.Since(readStart)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && len(records) == 0 {
			return result, err
		}
		if err != nil {
			// Keep the rows read before the bad one, then stop
			result.Errors = append(result.Errors, err.Error())
		}

		redactStart := time.Now()
		out, rerr := p.redactBatch(ctx, engine, records)
		result.RedactTime += time.Since(redactStart)
		if rerr != nil {
			return result, rerr
		}

		writeStart := time.Now()
		if werr := w.Write(out); werr != nil {
			return result, fmt.Errorf("failed to write batch %d: %w", result.Batches+1, werr)
		}
		result.WriteTime += time.Since(writeStart)

		result.Batches++
		for _, rec := range out {
			result.TotalRecords++
			result.LabelMatches += rec.LabelMatches
			result.PatternMatches += rec.PatternMatches
			if rec.Text == "" {
				result.Skipped++
			}
		}

		p.logger.Debug("Batch redacted",
			zap.Int("batch", result.Batches),
			zap.Int("records", len(out)),
			zap.Int64("total_records", result.TotalRecords))

		if err != nil {
			return result, err
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// redactBatch spreads records over the worker pool. Each worker writes its
// own index so output order equals input order.
func (p *Processor) redactBatch(ctx context.Context, engine *redact.Engine, records []Record) ([]RedactedRecord, error) {
	out := make([]RedactedRecord, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)

	chunk := (len(records) + p.config.Workers - 1) / p.config.Workers
	for lo := 0; lo < len(records); lo += chunk {
		hi := min(lo+chunk, len(records))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				res := engine.Redact(records[i].Text)
				out[i] = RedactedRecord{
					ID:             records[i].ID,
					Text:           res.Text,
					LabelMatches:   int64(res.LabelMatches),
					PatternMatches: int64(res.PatternMatches),
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
