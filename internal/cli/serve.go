package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raaihank/blackout/internal/config"
	"github.com/raaihank/blackout/internal/redact"
	"github.com/raaihank/blackout/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return failed(a.serve(cmd.Context()))
		},
	}
}

func (a *app) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	exportCfg := a.cfg.Export
	if exportCfg.OutputDir == "" {
		exportCfg.OutputDir = a.cfg.Server.OutputDir
	}

	svc, err := a.newServices(ctx, exportCfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	deps := server.Deps{
		Engines:  svc.engines,
		Pipeline: svc.pipeline,
		Cache:    svc.cache,
		Version:  Version,
	}
	if svc.jobs != nil {
		deps.Jobs = svc.jobs
	}
	srv, err := server.New(a.cfg, deps, a.log)
	if err != nil {
		return err
	}

	a.log.Info("Starting Blackout",
		zap.String("version", Version),
		zap.String("commit", Commit),
		zap.String("build_date", BuildDate),
		zap.Int("port", a.cfg.Server.Port),
	)

	if config.File() != "" {
		if err := config.Watch(a.onConfigChange(svc.engines), a.log.WithComponent("config").Logger); err != nil {
			a.log.Warn("Config hot reload disabled", zap.Error(err))
		}
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start(ctx)
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		a.log.Info("Shutdown signal received")

		// Give in-flight documents time to finish
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			return err
		}
		a.log.Info("Server shutdown complete")
		return nil
	}
}

// onConfigChange rebuilds the engine from a changed config and swaps it in.
// Requests already running keep the engine they started with. The log level
// follows the file unless --log-level pinned it.
func (a *app) onConfigChange(holder *redact.Holder) func(*config.Config) {
	log := a.log.WithComponent("reload")
	return func(cfg *config.Config) {
		if a.logLevel == "" && cfg.Logging.Level != a.log.CurrentLevel() {
			if err := a.log.SetLevel(cfg.Logging.Level); err == nil {
				log.Info("Log level changed", zap.String("level", cfg.Logging.Level))
			}
		}

		engine, err := redact.NewFromConfig(cfg.Redaction, log.Logger)
		if err != nil {
			log.Warn("Keeping previous redaction engine", zap.Error(err))
			return
		}
		prev := holder.Swap(engine)
		if prev != nil && prev.Fingerprint() == engine.Fingerprint() {
			return
		}
		log.Info("Redaction engine reloaded",
			zap.String("fingerprint", engine.Fingerprint()),
			zap.Int("labels", engine.Labels().Len()),
			zap.Int("patterns", engine.Patterns().Len()))
	}
}
