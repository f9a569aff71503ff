package cache

import (
	"github.com/raaihank/blackout/internal/config"
	"go.uber.org/zap"
)

// New returns a Redis cache when caching is enabled, otherwise nil.
// A cache that cannot connect is logged and skipped.
func New(cfg config.CacheConfig, logger *zap.Logger) ResultCache {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rc, err := NewRedisCache(cfg, logger)
	if err != nil {
		logger.Warn("Result cache unavailable, continuing without it", zap.Error(err))
		return nil
	}
	return rc
}
