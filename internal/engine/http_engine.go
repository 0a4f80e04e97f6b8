package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/book-expert/tts-gateway/internal/audio"
	"github.com/book-expert/tts-gateway/internal/core"
)

// API endpoints and paths of the inference server.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType     = "Content-Type"
	headerAccept          = "Accept"
	headerDurationSeconds = "X-Duration-Seconds"
	contentTypeJSON       = "application/json"
	contentTypeWAV        = "audio/wav"
)

// Static errors.
var (
	ErrEmptyAudio            = errors.New("received empty audio data")
	ErrUnexpectedContentType = errors.New("unexpected content type")
)

// Error formats.
const (
	errFmtServiceErrorWithCode = "inference server error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus   = "inference server returned non-OK status: %s, body: %s"
)

// HTTPEngine binds the gateway to a standalone inference server over HTTP.
// It implements core.SpeechSynthesizer; one instance is shared read-only
// by all requests after the model handle constructs it.
type HTTPEngine struct {
	httpClient *http.Client
	baseURL    string
	useFP16    bool
}

// generateRequest is the JSON payload of a speech-generation call.
type generateRequest struct {
	Text        string  `json:"text"`
	VoicePrompt string  `json:"voice_prompt,omitempty"`
	Emotion     string  `json:"emotion,omitempty"`
	Speed       float64 `json:"speed"`
	Pitch       float64 `json:"pitch"`
	UseFP16     bool    `json:"use_fp16"`
}

// errorResponse is the structured error body of the inference server.
type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPEngine configures an engine for the inference server at baseURL
// (protocol and port included, e.g. "http://localhost:9880"). The timeout
// applies to every request the engine sends.
func NewHTTPEngine(baseURL string, useFP16 bool, timeout time.Duration) *HTTPEngine {
	return &HTTPEngine{
		baseURL: baseURL,
		useFP16: useFP16,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize sends a generation request and returns the produced audio.
// The duration comes from the server's X-Duration-Seconds header when
// present, and is measured from the WAV header otherwise. All failures
// wrap core.ErrSynthesis.
func (e *HTTPEngine) Synthesize(
	ctx context.Context,
	req core.SynthesisRequest,
) (core.Audio, error) {
	payload := generateRequest{
		Text:        req.Text,
		VoicePrompt: req.VoicePrompt,
		Emotion:     req.Emotion,
		Speed:       req.Speed,
		Pitch:       req.Pitch,
		UseFP16:     e.useFP16,
	}

	requestBody, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return core.Audio{}, fmt.Errorf("%w: failed to marshal request: %w",
			core.ErrSynthesis, marshalErr)
	}

	httpReq, reqErr := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		e.baseURL+apiGenerateSpeech,
		bytes.NewReader(requestBody),
	)
	if reqErr != nil {
		return core.Audio{}, fmt.Errorf("%w: failed to create request: %w",
			core.ErrSynthesis, reqErr)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, doErr := e.httpClient.Do(httpReq)
	if doErr != nil {
		return core.Audio{}, fmt.Errorf("%w: failed to reach inference server at %s: %w",
			core.ErrSynthesis, e.baseURL, doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.Audio{}, fmt.Errorf("%w: %w", core.ErrSynthesis, e.parseErrorResponse(resp))
	}

	return e.readAudioResponse(resp)
}

// HealthCheck verifies that the inference server is running and has its
// model loaded. The model handle runs it as the load step, so an
// unreachable server surfaces as a retryable load failure.
func (e *HTTPEngine) HealthCheck(ctx context.Context) error {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+apiHealth, http.NoBody)
	if reqErr != nil {
		return fmt.Errorf("failed to create health check request: %w", reqErr)
	}

	resp, doErr := e.httpClient.Do(req)
	if doErr != nil {
		return fmt.Errorf("health check failed for inference server at %s: %w", e.baseURL, doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

func (e *HTTPEngine) readAudioResponse(resp *http.Response) (core.Audio, error) {
	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeWAV {
		return core.Audio{}, fmt.Errorf("%w: %w: expected %s, got %s",
			core.ErrSynthesis, ErrUnexpectedContentType, contentTypeWAV, contentType)
	}

	audioData, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return core.Audio{}, fmt.Errorf("%w: failed to read audio data: %w",
			core.ErrSynthesis, readErr)
	}

	if len(audioData) == 0 {
		return core.Audio{}, fmt.Errorf("%w: %w", core.ErrSynthesis, ErrEmptyAudio)
	}

	duration, durationErr := e.resolveDuration(resp, audioData)
	if durationErr != nil {
		return core.Audio{}, fmt.Errorf("%w: produced audio is not valid WAV: %w",
			core.ErrSynthesis, durationErr)
	}

	return core.Audio{
		Data:            audioData,
		DurationSeconds: duration,
	}, nil
}

func (e *HTTPEngine) resolveDuration(resp *http.Response, audioData []byte) (float64, error) {
	if headerValue := resp.Header.Get(headerDurationSeconds); headerValue != "" {
		duration, parseErr := strconv.ParseFloat(headerValue, 64)
		if parseErr == nil && duration >= 0 {
			return duration, nil
		}
		// An unparseable header falls through to measurement.
	}

	duration, probeErr := audio.Duration(audioData)
	if probeErr != nil {
		return 0, probeErr
	}

	return duration, nil
}

// parseErrorResponse attempts to decode a structured JSON error from the
// inference server, falling back to the raw body so diagnostics are never
// lost.
func (e *HTTPEngine) parseErrorResponse(resp *http.Response) error {
	var errorResp errorResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&errorResp)
	if decodeErr == nil {
		return fmt.Errorf(errFmtServiceErrorWithCode,
			resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}
