package redact

import "sync/atomic"

// Holder publishes the current engine. Callers load it once per document so
// a reload never changes catalogs halfway through a redaction.
type Holder struct {
	p atomic.Pointer[Engine]
}

// NewHolder returns a holder serving e
func NewHolder(e *Engine) *Holder {
	h := &Holder{}
	h.p.Store(e)
	return h
}

// Current returns the engine in use
func (h *Holder) Current() *Engine { return h.p.Load() }

// Swap installs e and returns the previous engine
func (h *Holder) Swap(e *Engine) *Engine { return h.p.Swap(e) }
