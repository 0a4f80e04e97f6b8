// Package engine provides the inference-engine bindings for the TTS
// gateway: the lazily initialized model handle shared by all requests, an
// HTTP binding for a standalone inference server, and an exec binding for
// the indextts command line tool.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/book-expert/logger"

	"github.com/book-expert/tts-gateway/internal/core"
)

// LoadFunc constructs the inference engine. It is invoked at most once
// concurrently; a failed invocation is retried on the next acquisition.
type LoadFunc func(ctx context.Context) (core.SpeechSynthesizer, error)

// Handle is the process-wide model handle: a thread-safe lazily
// initialized holder for the speech synthesizer. The mutex is held for the
// whole load, so concurrent first acquirers block until the single
// in-flight attempt resolves and then observe its outcome. A failure is
// retained for diagnostics but never cached as the final state; the next
// acquisition starts a fresh attempt.
type Handle struct {
	load LoadFunc
	log  *logger.Logger

	mutex       sync.Mutex
	synthesizer core.SpeechSynthesizer
	lastErr     error
	attempts    int
}

// NewHandle creates an unloaded handle around the given loader.
func NewHandle(load LoadFunc, log *logger.Logger) *Handle {
	return &Handle{
		load: load,
		log:  log,
	}
}

// Acquire returns the shared synthesizer, constructing it on first use.
// Load failures are wrapped in core.ErrModelLoad so callers can surface a
// service-unavailable class error.
func (h *Handle) Acquire(ctx context.Context) (core.SpeechSynthesizer, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.synthesizer != nil {
		return h.synthesizer, nil
	}

	h.attempts++
	h.log.Info("Loading inference engine (attempt %d)...", h.attempts)

	synthesizer, loadErr := h.load(ctx)
	if loadErr != nil {
		h.lastErr = loadErr
		h.log.Error("Inference engine load failed: %v", loadErr)

		return nil, fmt.Errorf("%w: %w", core.ErrModelLoad, loadErr)
	}

	h.synthesizer = synthesizer
	h.lastErr = nil
	h.log.Info("Inference engine loaded successfully.")

	return h.synthesizer, nil
}

// Loaded reports whether the engine has been constructed. It is what the
// health endpoint exposes as model_loaded.
func (h *Handle) Loaded() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.synthesizer != nil
}

// LoadAttempts returns how many load attempts have started.
func (h *Handle) LoadAttempts() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.attempts
}

// LastError returns the error retained from the most recent failed load,
// or nil after a successful one.
func (h *Handle) LastError() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.lastErr
}
