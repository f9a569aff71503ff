package extract

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// Chain tries extractors in order and returns the first non-blank text.
// Failures are logged and the next extractor is tried.
type Chain struct {
	extractors []TextExtractor
	logger     *zap.Logger
}

// NewChain skips nil entries
func NewChain(log *zap.Logger, extractors ...TextExtractor) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Chain{logger: log}
	for _, e := range extractors {
		if e != nil {
			c.extractors = append(c.extractors, e)
		}
	}
	return c
}

func (c *Chain) Name() string {
	names := make([]string, len(c.extractors))
	for i, e := range c.extractors {
		names[i] = nameOf(e)
	}
	return strings.Join(names, ",")
}

// Len returns the number of extractors in the chain
func (c *Chain) Len() int { return len(c.extractors) }

func (c *Chain) Extract(ctx context.Context, path string) (string, error) {
	var errs []error
	for _, e := range c.extractors {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := e.Extract(ctx, path)
		if err != nil {
			c.logger.Warn("Extractor failed, trying next",
				zap.String("extractor", nameOf(e)),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			c.logger.Debug("Text extracted",
				zap.String("extractor", nameOf(e)),
				zap.Int("length", len(text)))
			return text, nil
		}
	}
	return "", errors.Join(append([]error{ErrNoText}, errs...)...)
}
