// Package pipeline turns an input document into redacted output files:
// extract, clean up, redact, export. Each collaborator is an interface so
// the steps can be swapped or stubbed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/raaihank/blackout/internal/cache"
	"github.com/raaihank/blackout/internal/cleanup"
	"github.com/raaihank/blackout/internal/document"
	"github.com/raaihank/blackout/internal/export"
	"github.com/raaihank/blackout/internal/extract"
	"github.com/raaihank/blackout/internal/logger"
	"github.com/raaihank/blackout/internal/redact"
	"github.com/raaihank/blackout/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoText means extraction produced nothing to redact
var ErrNoText = errors.New("no text could be extracted")

// EngineProvider hands out the engine to use for one document
type EngineProvider interface {
	Current() *redact.Engine
}

// Recorder receives job metadata. store.JobStore implements it.
type Recorder interface {
	Insert(ctx context.Context, kind, source, fingerprint string) (int64, error)
	Complete(ctx context.Context, id int64, sum store.Summary) error
	Fail(ctx context.Context, id int64, reason string) error
}

// Outcome describes one processed document. It carries lengths and counts,
// and the redacted result; the raw and cleaned text are not retained.
type Outcome struct {
	Source         string        `json:"source"`
	RawLength      int           `json:"raw_length"`
	CleanedLength  int           `json:"cleaned_length"`
	RedactedLength int           `json:"redacted_length"`
	Result         redact.Result `json:"-"`
	OutputFiles    []string      `json:"output_files"`
	Errors         []string      `json:"errors,omitempty"`
	CacheHit       bool          `json:"cache_hit"`
	Duration       time.Duration `json:"duration"`
}

// Config holds the collaborators of a Pipeline. Extractor and Engines are
// required. RedactExtractor defaults to Extractor, Cleaner to Passthrough
// and TextExporter to a TextWriter next to the input.
type Config struct {
	Extractor       extract.TextExtractor
	RedactExtractor extract.TextExtractor
	Cleaner         cleanup.TextCleaner
	Engines         EngineProvider
	Exporters       []export.Exporter
	TextExporter    export.Exporter
	Cache           cache.ResultCache
	Jobs            Recorder
	Concurrency     int
	DocumentTimeout time.Duration
}

// Pipeline runs documents through the configured collaborators. It is safe
// for concurrent use.
type Pipeline struct {
	cfg    Config
	logger *logger.Logger
}

// New validates cfg and fills in defaults
func New(cfg Config, log *logger.Logger) (*Pipeline, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("pipeline needs an extractor")
	}
	if cfg.Engines == nil || cfg.Engines.Current() == nil {
		return nil, fmt.Errorf("pipeline needs a redaction engine")
	}
	if cfg.RedactExtractor == nil {
		cfg.RedactExtractor = cfg.Extractor
	}
	if cfg.Cleaner == nil {
		cfg.Cleaner = cleanup.Passthrough{}
	}
	if cfg.TextExporter == nil {
		cfg.TextExporter = &export.TextWriter{}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Pipeline{cfg: cfg, logger: log.WithComponent("pipeline")}, nil
}

// Process runs the full pipeline on one file: extract, clean up, redact and
// write every configured export format. A failing exporter is recorded in
// Outcome.Errors and does not stop the others; the call fails only when no
// text could be extracted or no output was written.
func (p *Pipeline) Process(ctx context.Context, path string) (*Outcome, error) {
	return p.run(ctx, path, store.KindProcess, p.cfg.Extractor, p.cfg.Cleaner, p.cfg.Exporters)
}

// RedactFile redacts an existing digital file without layout cleanup and
// writes <name>_redacted.txt
func (p *Pipeline) RedactFile(ctx context.Context, path string) (*Outcome, error) {
	return p.run(ctx, path, store.KindRedact, p.cfg.RedactExtractor, cleanup.Passthrough{}, []export.Exporter{p.cfg.TextExporter})
}

func (p *Pipeline) run(ctx context.Context, path, kind string, ex extract.TextExtractor, cl cleanup.TextCleaner, exporters []export.Exporter) (*Outcome, error) {
	start := time.Now()
	name := filepath.Base(path)
	log := p.logger.WithDocument(name)
	engine := p.cfg.Engines.Current()
	out := &Outcome{Source: name}

	jobID := p.startJob(ctx, kind, name, engine.Fingerprint())

	raw, err := ex.Extract(ctx, path)
	if err != nil {
		if errors.Is(err, extract.ErrNoText) {
			err = fmt.Errorf("%w: %w", ErrNoText, err)
		}
		log.Warn("Extraction failed", zap.Error(err))
		p.failJob(ctx, jobID, err)
		return out, err
	}
	out.RawLength = utf8.RuneCountInString(raw)

	cleaned, err := cl.Clean(ctx, raw)
	if err != nil {
		log.Warn("Cleanup failed, using raw text", zap.Error(err))
		out.Errors = append(out.Errors, fmt.Sprintf("cleanup: %v", err))
		cleaned = raw
	}
	out.CleanedLength = utf8.RuneCountInString(cleaned)

	// Exporters see LF line endings; redaction runs on the same text so the
	// counts match what is written.
	doc := document.Parse(cleaned)
	out.Result, out.CacheHit = p.redact(ctx, engine, doc.String())
	out.RedactedLength = utf8.RuneCountInString(out.Result.Text)

	redacted := document.Parse(out.Result.Text)
	for _, exp := range exporters {
		file, err := exp.Export(ctx, redacted, path)
		if err != nil {
			log.Error("Export failed", zap.String("format", exp.Format()), zap.Error(err))
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", exp.Format(), err))
			continue
		}
		out.OutputFiles = append(out.OutputFiles, file)
	}
	out.Duration = time.Since(start)

	if len(exporters) > 0 && len(out.OutputFiles) == 0 {
		err := fmt.Errorf("no output written for %s", name)
		p.failJob(ctx, jobID, err)
		return out, err
	}

	p.completeJob(ctx, jobID, out)

	log.Info("Document processed",
		zap.String("kind", kind),
		zap.Int("raw_length", out.RawLength),
		zap.Int("cleaned_length", out.CleanedLength),
		zap.Int("label_matches", out.Result.LabelMatches),
		zap.Int("pattern_matches", out.Result.PatternMatches),
		zap.Int("outputs", len(out.OutputFiles)),
		zap.Bool("cache_hit", out.CacheHit),
		zap.Duration("duration", out.Duration))

	return out, nil
}

// redact consults the cache before running the engine. Cache failures are
// logged and ignored.
func (p *Pipeline) redact(ctx context.Context, engine *redact.Engine, text string) (redact.Result, bool) {
	if p.cfg.Cache == nil {
		return engine.Redact(text), false
	}

	fp := engine.Fingerprint()
	if res, ok, err := p.cfg.Cache.Get(ctx, fp, text); err == nil && ok {
		return res, true
	} else if err != nil {
		p.logger.Warn("Cache lookup failed", zap.Error(err))
	}

	res := engine.Redact(text)
	if err := p.cfg.Cache.Set(ctx, fp, text, res); err != nil {
		p.logger.Warn("Cache store failed", zap.Error(err))
	}
	return res, false
}

// ProcessAll runs Process over paths with bounded concurrency and a
// per-document deadline. Outcomes are returned in input order; a failed
// document yields its partial outcome and its error at the same index.
func (p *Pipeline) ProcessAll(ctx context.Context, paths []string) ([]*Outcome, []error) {
	return p.forEach(ctx, paths, p.Process)
}

// RedactAll is ProcessAll for RedactFile
func (p *Pipeline) RedactAll(ctx context.Context, paths []string) ([]*Outcome, []error) {
	return p.forEach(ctx, paths, p.RedactFile)
}

func (p *Pipeline) forEach(ctx context.Context, paths []string, fn func(context.Context, string) (*Outcome, error)) ([]*Outcome, []error) {
	outcomes := make([]*Outcome, len(paths))
	errs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for i, path := range paths {
		g.Go(func() error {
			dctx := gctx
			if p.cfg.DocumentTimeout > 0 {
				var cancel context.CancelFunc
				dctx, cancel = context.WithTimeout(gctx, p.cfg.DocumentTimeout)
				defer cancel()
			}
			outcomes[i], errs[i] = fn(dctx, path)
			// One bad document must not cancel the rest
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, errs
}

func (p *Pipeline) startJob(ctx context.Context, kind, source, fingerprint string) int64 {
	if p.cfg.Jobs == nil {
		return 0
	}
	id, err := p.cfg.Jobs.Insert(ctx, kind, source, fingerprint)
	if err != nil {
		p.logger.Warn("Failed to record job", zap.Error(err))
		return 0
	}
	return id
}

func (p *Pipeline) completeJob(ctx context.Context, id int64, out *Outcome) {
	if p.cfg.Jobs == nil || id == 0 {
		return
	}
	err := p.cfg.Jobs.Complete(ctx, id, store.Summary{
		LabelMatches:   out.Result.LabelMatches,
		PatternMatches: out.Result.PatternMatches,
		RawLength:      out.RawLength,
		CleanedLength:  out.CleanedLength,
		RedactedLength: out.RedactedLength,
		OutputFiles:    out.OutputFiles,
	})
	if err != nil {
		p.logger.Warn("Failed to complete job record", zap.Int64("job_id", id), zap.Error(err))
	}
}

func (p *Pipeline) failJob(ctx context.Context, id int64, cause error) {
	if p.cfg.Jobs == nil || id == 0 {
		return
	}
	// Job rows outlive the request; record the failure even if ctx expired
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.cfg.Jobs.Fail(rctx, id, cause.Error()); err != nil {
		p.logger.Warn("Failed to record job failure", zap.Int64("job_id", id), zap.Error(err))
	}
}
