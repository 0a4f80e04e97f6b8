// Package core defines the domain types, capability interfaces, and error
// taxonomy shared by every component of the TTS gateway.
package core

import (
	"context"
	"errors"
	"io"
)

// Default request values applied when a field is omitted by the caller.
const (
	DefaultVoicePrompt = "examples/voice_01.wav"
	DefaultEmotion     = "neutral"
	DefaultSpeed       = 1.0
	DefaultPitch       = 1.0
)

// Error taxonomy. Every failure a component surfaces wraps exactly one of
// these sentinels so the transport boundary can map it to a status class.
var (
	// ErrValidation indicates a malformed or unacceptable request.
	ErrValidation = errors.New("validation failed")
	// ErrModelLoad indicates the inference engine failed to initialize.
	// The condition is retryable on a subsequent request.
	ErrModelLoad = errors.New("model load failed")
	// ErrSynthesis indicates the inference engine failed during invocation.
	ErrSynthesis = errors.New("synthesis failed")
	// ErrNotFound indicates a requested artifact does not exist.
	ErrNotFound = errors.New("artifact not found")
	// ErrStorage indicates the artifact store could not complete a write
	// or read for filesystem reasons.
	ErrStorage = errors.New("storage failure")
)

// SynthesisRequest describes a single speech-generation job. It is
// immutable once received; ApplyDefaults returns a filled copy rather than
// mutating in place.
type SynthesisRequest struct {
	Text        string  `json:"text"`
	VoicePrompt string  `json:"voice_prompt"`
	Emotion     string  `json:"emotion"`
	Speed       float64 `json:"speed"`
	Pitch       float64 `json:"pitch"`
}

// ApplyDefaults returns a copy of the request with omitted optional fields
// replaced by their documented defaults.
func (r SynthesisRequest) ApplyDefaults() SynthesisRequest {
	if r.VoicePrompt == "" {
		r.VoicePrompt = DefaultVoicePrompt
	}

	if r.Emotion == "" {
		r.Emotion = DefaultEmotion
	}

	if r.Speed == 0 {
		r.Speed = DefaultSpeed
	}

	if r.Pitch == 0 {
		r.Pitch = DefaultPitch
	}

	return r
}

// SynthesisResult is produced exactly once per accepted request.
type SynthesisResult struct {
	// AudioReference is the artifact identifier the generated audio was
	// stored under. It resolves to a readable artifact before the result
	// is returned to the caller.
	AudioReference  string
	DurationSeconds float64
	EchoedText      string
}

// Audio is the opaque product of one engine invocation.
type Audio struct {
	Data            []byte
	DurationSeconds float64
}

// ArtifactRef identifies a stored blob.
type ArtifactRef struct {
	ID   string
	Size int64
}

// VoiceRef describes one selectable voice prompt.
type VoiceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// SpeechSynthesizer is the capability interface for the inference engine.
// Implementations convert text plus voice parameters into audio bytes and
// a duration; they are constructed once and shared read-only by all
// requests after that.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (Audio, error)
}

// ArtifactStore is the interface for the blob store holding generated and
// uploaded audio. Implementations must not expose a blob under its final
// identifier until the write is complete.
type ArtifactStore interface {
	// Put writes data under a freshly generated identifier. A non-empty
	// suggestedName is sanitized and appended to the identifier.
	Put(ctx context.Context, data []byte, suggestedName string) (ArtifactRef, error)

	// Get returns the full contents of the artifact.
	Get(ctx context.Context, id string) ([]byte, error)

	// Open returns a reader over the artifact for streaming responses.
	Open(ctx context.Context, id string) (io.ReadCloser, error)

	// List enumerates artifacts whose names carry one of the given
	// extensions (e.g. ".wav"). Order is backend-dependent.
	List(ctx context.Context, extensions []string) ([]ArtifactRef, error)
}
