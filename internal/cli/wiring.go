package cli

import (
	"context"
	"fmt"

	"github.com/raaihank/blackout/internal/cache"
	"github.com/raaihank/blackout/internal/cleanup"
	"github.com/raaihank/blackout/internal/config"
	"github.com/raaihank/blackout/internal/export"
	"github.com/raaihank/blackout/internal/extract"
	"github.com/raaihank/blackout/internal/pipeline"
	"github.com/raaihank/blackout/internal/redact"
	"github.com/raaihank/blackout/internal/store"
)

// services are the collaborators shared by serve, process and redact
type services struct {
	engines  *redact.Holder
	pipeline *pipeline.Pipeline
	cache    cache.ResultCache
	jobs     *store.JobStore
}

func (s *services) Close() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.jobs != nil {
		_ = s.jobs.Close()
	}
}

func (a *app) newEngine() (*redact.Engine, error) {
	return redact.NewFromConfig(a.cfg.Redaction, a.log.WithComponent("redact").Logger)
}

// newServices builds the engine holder and a pipeline around it. exportCfg
// lets serve default the output directory to its own.
func (a *app) newServices(ctx context.Context, exportCfg config.ExportConfig) (*services, error) {
	engine, err := a.newEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to build redaction engine: %w", err)
	}
	s := &services{engines: redact.NewHolder(engine)}

	s.cache = cache.New(a.cfg.Cache, a.log.WithComponent("cache").Logger)

	var jobs pipeline.Recorder
	if a.cfg.Store.Enabled {
		s.jobs, err = store.New(ctx, a.cfg.Store, a.log.WithComponent("store").Logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open job store: %w", err)
		}
		jobs = s.jobs
	}

	cleaner, err := cleanup.New(a.cfg.Cleanup, a.log.WithComponent("cleanup").Logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	exporters, err := export.New(exportCfg, engine.Glyph(), a.log.WithComponent("export").Logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	router := extract.New(a.cfg.Extraction, a.log.WithComponent("extract").Logger)
	s.pipeline, err = pipeline.New(pipeline.Config{
		Extractor:       router,
		RedactExtractor: router.EmbeddedTextFirst(),
		Cleaner:         cleaner,
		Engines:         s.engines,
		Exporters:       exporters,
		TextExporter:    &export.TextWriter{OutputDir: exportCfg.OutputDir},
		Cache:           s.cache,
		Jobs:            jobs,
		Concurrency:     a.cfg.Batch.Concurrency,
		DocumentTimeout: a.cfg.Batch.DocumentTimeout,
	}, a.log)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
