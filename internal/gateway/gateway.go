// Package gateway implements the synthesis gateway: the component that
// validates requests, acquires the model handle, invokes the inference
// engine, and records artifacts.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/tts-gateway/internal/artifact"
	"github.com/book-expert/tts-gateway/internal/core"
	"github.com/book-expert/tts-gateway/internal/text"
)

// Extensions of listable voice samples.
var voiceExtensions = []string{".wav", ".mp3"}

// URL and path prefixes.
const (
	voicePathPrefix = "examples/"
	audioURLPrefix  = "/api/tts/audio/"
)

// Static errors.
var (
	ErrTextEmpty    = errors.New("text cannot be empty or whitespace-only")
	ErrSpeedRange   = errors.New("speed must be greater than zero")
	ErrPitchRange   = errors.New("pitch must be greater than zero")
	ErrUploadNoData = errors.New("uploaded file is empty")
	ErrUnsafeUpload = errors.New("filename must not contain path separators or traversal sequences")
)

// ModelHandle is the gateway's view of the lazily initialized engine
// holder.
type ModelHandle interface {
	Acquire(ctx context.Context) (core.SpeechSynthesizer, error)
	Loaded() bool
}

// Notifier is told about completed syntheses. Implementations must be safe
// for concurrent use; delivery is best-effort and never fails a request.
type Notifier interface {
	AudioCreated(ctx context.Context, audioKey string) error
}

// Gateway mediates between transport handlers and the inference engine.
type Gateway struct {
	artifacts core.ArtifactStore
	voices    core.ArtifactStore
	handle    ModelHandle
	notifier  Notifier
	log       *logger.Logger

	synthesisTimeout time.Duration
	// slots bounds how many engine invocations run at once, so inference
	// blocking is isolated to at most maxWorkers request goroutines.
	slots chan struct{}
}

// New creates a gateway. notifier may be nil when no broker is configured.
func New(
	artifacts core.ArtifactStore,
	voices core.ArtifactStore,
	handle ModelHandle,
	notifier Notifier,
	synthesisTimeout time.Duration,
	maxWorkers int,
	log *logger.Logger,
) *Gateway {
	return &Gateway{
		artifacts:        artifacts,
		voices:           voices,
		handle:           handle,
		notifier:         notifier,
		log:              log,
		synthesisTimeout: synthesisTimeout,
		slots:            make(chan struct{}, maxWorkers),
	}
}

// Synthesize runs one speech-generation request end to end. Exactly one
// artifact exists after a successful call and zero after a failed one; the
// returned reference is verified readable before the result is returned.
func (g *Gateway) Synthesize(
	ctx context.Context,
	req core.SynthesisRequest,
) (core.SynthesisResult, error) {
	validated, validationErr := g.validate(req)
	if validationErr != nil {
		return core.SynthesisResult{}, validationErr
	}

	g.log.Info("Received synthesis request: text='%s', voice=%s",
		text.Preview(validated.Text), validated.VoicePrompt)

	slotErr := g.acquireSlot(ctx)
	if slotErr != nil {
		return core.SynthesisResult{}, slotErr
	}
	defer g.releaseSlot()

	synthesizer, acquireErr := g.handle.Acquire(ctx)
	if acquireErr != nil {
		return core.SynthesisResult{}, acquireErr
	}

	synthesisCtx, cancel := context.WithTimeout(ctx, g.synthesisTimeout)
	defer cancel()

	produced, synthesisErr := synthesizer.Synthesize(synthesisCtx, validated)
	if synthesisErr != nil {
		g.log.Error("Synthesis failed for text='%s': %v",
			text.Preview(validated.Text), synthesisErr)

		return core.SynthesisResult{}, synthesisErr
	}

	ref, putErr := g.artifacts.Put(ctx, produced.Data, "")
	if putErr != nil {
		g.log.Error("Failed to store synthesized audio: %v", putErr)

		return core.SynthesisResult{}, putErr
	}

	verifyErr := g.verifyReadable(ctx, ref.ID)
	if verifyErr != nil {
		return core.SynthesisResult{}, verifyErr
	}

	g.notifyCreated(ctx, ref.ID)

	g.log.Info("Speech generated successfully: %s (%.2fs, %d bytes)",
		ref.ID, produced.DurationSeconds, len(produced.Data))

	return core.SynthesisResult{
		AudioReference:  ref.ID,
		DurationSeconds: produced.DurationSeconds,
		EchoedText:      req.Text,
	}, nil
}

// UploadVoiceSample stores an uploaded voice sample under a generated
// identifier combined with the sanitized original filename.
func (g *Gateway) UploadVoiceSample(
	ctx context.Context,
	filename string,
	data []byte,
) (core.ArtifactRef, error) {
	nameErr := artifact.ValidateName(filename)
	if nameErr != nil {
		return core.ArtifactRef{}, fmt.Errorf("%w: %w: %q",
			core.ErrValidation, ErrUnsafeUpload, filename)
	}

	if len(data) == 0 {
		return core.ArtifactRef{}, fmt.Errorf("%w: %w", core.ErrValidation, ErrUploadNoData)
	}

	ref, putErr := g.artifacts.Put(ctx, data, filename)
	if putErr != nil {
		g.log.Error("Failed to store uploaded voice sample '%s': %v", filename, putErr)

		return core.ArtifactRef{}, putErr
	}

	g.log.Info("Voice sample uploaded successfully: %s (%d bytes)", ref.ID, ref.Size)

	return ref, nil
}

// FetchArtifact returns the full contents of a stored artifact.
func (g *Gateway) FetchArtifact(ctx context.Context, id string) ([]byte, error) {
	return g.artifacts.Get(ctx, id)
}

// OpenArtifact returns a reader over a stored artifact for streaming.
func (g *Gateway) OpenArtifact(ctx context.Context, id string) (io.ReadCloser, error) {
	return g.artifacts.Open(ctx, id)
}

// ListVoices enumerates the configured voice-sample directory.
func (g *Gateway) ListVoices(ctx context.Context) ([]core.VoiceRef, error) {
	refs, listErr := g.voices.List(ctx, voiceExtensions)
	if listErr != nil {
		return nil, listErr
	}

	voices := make([]core.VoiceRef, 0, len(refs))

	for _, ref := range refs {
		name := strings.TrimSuffix(ref.ID, ".wav")
		name = strings.TrimSuffix(name, ".mp3")

		voices = append(voices, core.VoiceRef{
			ID:   ref.ID,
			Name: name,
			Path: voicePathPrefix + ref.ID,
		})
	}

	return voices, nil
}

// ModelLoaded reports whether the inference engine has been constructed.
func (g *Gateway) ModelLoaded() bool {
	return g.handle.Loaded()
}

// AudioURL maps an artifact reference to the URL it is served under.
func AudioURL(id string) string {
	return audioURLPrefix + id
}

func (g *Gateway) validate(req core.SynthesisRequest) (core.SynthesisRequest, error) {
	normalized := text.Normalize(req.Text)
	if normalized == "" {
		return core.SynthesisRequest{}, fmt.Errorf("%w: %w", core.ErrValidation, ErrTextEmpty)
	}

	req.Text = normalized
	req = req.ApplyDefaults()

	if req.Speed <= 0 {
		return core.SynthesisRequest{}, fmt.Errorf("%w: %w: got %g",
			core.ErrValidation, ErrSpeedRange, req.Speed)
	}

	if req.Pitch <= 0 {
		return core.SynthesisRequest{}, fmt.Errorf("%w: %w: got %g",
			core.ErrValidation, ErrPitchRange, req.Pitch)
	}

	return req, nil
}

func (g *Gateway) acquireSlot(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: request canceled while waiting for a worker: %w",
			core.ErrSynthesis, ctx.Err())
	}
}

func (g *Gateway) releaseSlot() {
	<-g.slots
}

// verifyReadable enforces the no-dangling-reference invariant: the
// reference handed back to the caller must already resolve.
func (g *Gateway) verifyReadable(ctx context.Context, id string) error {
	reader, openErr := g.artifacts.Open(ctx, id)
	if openErr != nil {
		g.log.Error("Stored artifact %s is not readable: %v", id, openErr)

		return openErr
	}

	closeErr := reader.Close()
	if closeErr != nil {
		return fmt.Errorf("%w: failed to close artifact %s: %w", core.ErrStorage, id, closeErr)
	}

	return nil
}

func (g *Gateway) notifyCreated(ctx context.Context, audioKey string) {
	if g.notifier == nil {
		return
	}

	notifyErr := g.notifier.AudioCreated(ctx, audioKey)
	if notifyErr != nil {
		// Notification is best-effort; the artifact is already durable.
		g.log.Warn("Failed to publish audio-created notification for %s: %v",
			audioKey, notifyErr)
	}
}
