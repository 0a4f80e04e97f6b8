package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/book-expert/logger"

	"github.com/book-expert/tts-gateway/internal/audio"
	"github.com/book-expert/tts-gateway/internal/core"
)

// DefaultBinaryName is the command the process engine invokes when no
// explicit binary path is configured.
const DefaultBinaryName = "indextts"

// ProcessEngine implements core.SpeechSynthesizer by invoking the indextts
// command line tool per request. The tool writes a WAV file to a path the
// engine supplies; the engine reads it back and removes it.
type ProcessEngine struct {
	binary    string
	modelPath string
	useFP16   bool
	log       *logger.Logger
}

// NewProcessEngine creates an exec-based engine. An empty binary selects
// DefaultBinaryName resolved through PATH.
func NewProcessEngine(binary, modelPath string, useFP16 bool, log *logger.Logger) *ProcessEngine {
	if binary == "" {
		binary = DefaultBinaryName
	}

	return &ProcessEngine{
		binary:    binary,
		modelPath: modelPath,
		useFP16:   useFP16,
		log:       log,
	}
}

// Verify checks that the binary is resolvable. The model handle runs it as
// the load step so a missing installation surfaces as a retryable load
// failure instead of a per-request synthesis error.
func (p *ProcessEngine) Verify(_ context.Context) error {
	_, lookErr := exec.LookPath(p.binary)
	if lookErr != nil {
		return fmt.Errorf("inference binary %q not found: %w", p.binary, lookErr)
	}

	return nil
}

// Synthesize runs the binary and returns the produced audio. All failures
// wrap core.ErrSynthesis.
func (p *ProcessEngine) Synthesize(
	ctx context.Context,
	req core.SynthesisRequest,
) (core.Audio, error) {
	tempFile, createErr := os.CreateTemp("", "tts-output-*.wav")
	if createErr != nil {
		return core.Audio{}, fmt.Errorf("%w: failed to create temp file for engine output: %w",
			core.ErrSynthesis, createErr)
	}

	tempPath := tempFile.Name()

	closeErr := tempFile.Close()
	if closeErr != nil {
		return core.Audio{}, fmt.Errorf("%w: failed to close temp file: %w",
			core.ErrSynthesis, closeErr)
	}

	defer func() {
		removeErr := os.Remove(tempPath)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			p.log.Warn("Failed to remove temp file '%s': %v", tempPath, removeErr)
		}
	}()

	args := []string{
		"--model-dir", p.modelPath,
		"--text", req.Text,
		"--voice-prompt", req.VoicePrompt,
		"--emotion", req.Emotion,
		"--speed", strconv.FormatFloat(req.Speed, 'f', 2, 64),
		"--pitch", strconv.FormatFloat(req.Pitch, 'f', 2, 64),
		"--output", tempPath,
	}

	if p.useFP16 {
		args = append(args, "--fp16")
	}

	// #nosec G204 -- the request is validated by the gateway before it
	// reaches the engine, and every value is passed as a discrete argv
	// entry, never through a shell.
	cmd := exec.CommandContext(ctx, p.binary, args...)

	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		return core.Audio{}, fmt.Errorf("%w: %s execution failed: %w - output: %s",
			core.ErrSynthesis, p.binary, runErr, string(output))
	}

	audioData, readErr := os.ReadFile(tempPath)
	if readErr != nil {
		return core.Audio{}, fmt.Errorf("%w: failed to read audio data from temp file: %w",
			core.ErrSynthesis, readErr)
	}

	if len(audioData) == 0 {
		return core.Audio{}, fmt.Errorf("%w: %w", core.ErrSynthesis, ErrEmptyAudio)
	}

	duration, probeErr := audio.Duration(audioData)
	if probeErr != nil {
		return core.Audio{}, fmt.Errorf("%w: produced audio is not valid WAV: %w",
			core.ErrSynthesis, probeErr)
	}

	return core.Audio{
		Data:            audioData,
		DurationSeconds: duration,
	}, nil
}
