// Package cache memoizes redaction results keyed by engine fingerprint and
// input digest. Entries hold redacted output and counts only; the raw input
// is never written to the backend.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/raaihank/blackout/internal/redact"
)

// ResultCache stores redaction results
type ResultCache interface {
	Get(ctx context.Context, fingerprint, text string) (redact.Result, bool, error)
	Set(ctx context.Context, fingerprint, text string, res redact.Result) error
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Entry is the serialized form of a cached result
type Entry struct {
	Fingerprint string        `json:"fingerprint"`
	Result      redact.Result `json:"result"`
	CachedAt    time.Time     `json:"cached_at"`
}

// Stats represents cache performance statistics
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	TotalKeys   int64   `json:"total_keys"`
	MemoryUsage int64   `json:"memory_usage_bytes,omitempty"`
}

func (s *Stats) computeHitRate() {
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total) * 100
	}
}

// Key derives the cache key for text under an engine fingerprint
func Key(prefix, fingerprint, text string) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return prefix + "result:" + fingerprint + ":" + hex.EncodeToString(h.Sum(nil))
}
