// Package server_test drives the HTTP API end to end against a fake
// inference engine.
package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/tts-gateway/internal/artifact"
	"github.com/book-expert/tts-gateway/internal/core"
	"github.com/book-expert/tts-gateway/internal/engine"
	"github.com/book-expert/tts-gateway/internal/gateway"
	"github.com/book-expert/tts-gateway/internal/server"
)

var errEngineUnavailable = errors.New("engine unavailable")

// fakeSynthesizer returns canned audio for every request.
type fakeSynthesizer struct{}

func (f *fakeSynthesizer) Synthesize(
	_ context.Context,
	_ core.SynthesisRequest,
) (core.Audio, error) {
	return core.Audio{
		Data:            []byte("RIFF fake generated audio"),
		DurationSeconds: 1.5,
	}, nil
}

type apiFixture struct {
	client       *http.Client
	baseURL      string
	voicesDir    string
	artifactsDir string
}

func setupAPI(t *testing.T, load engine.LoadFunc) *apiFixture {
	t.Helper()

	log, err := logger.New(t.TempDir(), "server-test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = log.Close()
	})

	artifactsDir := t.TempDir()
	artifacts, err := artifact.NewDirectoryStore(artifactsDir)
	require.NoError(t, err)

	voicesDir := t.TempDir()
	voices, err := artifact.NewDirectoryStore(voicesDir)
	require.NoError(t, err)

	handle := engine.NewHandle(load, log)
	gw := gateway.New(artifacts, voices, handle, nil, 5*time.Second, 2, log)

	testServer := httptest.NewServer(server.New(gw, "127.0.0.1:0", log).Handler())
	t.Cleanup(testServer.Close)

	return &apiFixture{
		client:       testServer.Client(),
		baseURL:      testServer.URL,
		voicesDir:    voicesDir,
		artifactsDir: artifactsDir,
	}
}

func workingAPI(t *testing.T) *apiFixture {
	t.Helper()

	return setupAPI(t, func(_ context.Context) (core.SpeechSynthesizer, error) {
		return &fakeSynthesizer{}, nil
	})
}

func (f *apiFixture) getJSON(t *testing.T, path string, target any) *http.Response {
	t.Helper()

	resp, err := f.client.Get(f.baseURL + path)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = resp.Body.Close()
	})

	if target != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
	}

	return resp
}

func (f *apiFixture) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := f.client.Post(f.baseURL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = resp.Body.Close()
	})

	return resp
}

func TestRootReportsServiceIdentity(t *testing.T) {
	t.Parallel()

	fixture := workingAPI(t)

	var body map[string]string

	resp := fixture.getJSON(t, "/", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, server.ServiceName, body["service"])
	assert.Equal(t, "running", body["status"])
}

func TestHealthReflectsModelState(t *testing.T) {
	t.Parallel()

	fixture := workingAPI(t)

	var before map[string]any

	resp := fixture.getJSON(t, "/health", &before)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, before["model_loaded"])

	generateResp := fixture.postJSON(t, "/api/tts/generate",
		map[string]any{"text": "hello"})
	require.Equal(t, http.StatusCreated, generateResp.StatusCode)

	var after map[string]any

	fixture.getJSON(t, "/health", &after)
	assert.Equal(t, true, after["model_loaded"])
}

func TestGenerateThenFetchAudio(t *testing.T) {
	t.Parallel()

	fixture := workingAPI(t)

	resp := fixture.postJSON(t, "/api/tts/generate", map[string]any{
		"text":         "hello",
		"voice_prompt": "examples/voice_01.wav",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var generated map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&generated))

	audioURL, _ := generated["audio_url"].(string)
	require.NotEmpty(t, audioURL)
	assert.True(t, strings.HasPrefix(audioURL, "/api/tts/audio/"))
	assert.InEpsilon(t, 1.5, generated["duration"], 0.0001)
	assert.Equal(t, "hello", generated["text"])

	audioResp, err := fixture.client.Get(fixture.baseURL + audioURL)
	require.NoError(t, err)

	defer func() {
		_ = audioResp.Body.Close()
	}()

	require.Equal(t, http.StatusOK, audioResp.StatusCode)
	assert.Equal(t, "audio/wav", audioResp.Header.Get("Content-Type"))

	audioData, err := io.ReadAll(audioResp.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, audioData)

	// Fetching twice returns identical bytes.
	againResp, err := fixture.client.Get(fixture.baseURL + audioURL)
	require.NoError(t, err)

	defer func() {
		_ = againResp.Body.Close()
	}()

	againData, err := io.ReadAll(againResp.Body)
	require.NoError(t, err)
	assert.Equal(t, audioData, againData)
}

func TestGenerateRejectsEmptyText(t *testing.T) {
	t.Parallel()

	fixture := workingAPI(t)

	resp := fixture.postJSON(t, "/api/tts/generate", map[string]any{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerateRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	fixture := workingAPI(t)

	resp, err := fixture.client.Post(fixture.baseURL+"/api/tts/generate",
		"application/json", strings.NewReader("{not json"))
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerateReportsModelUnavailable(t *testing.T) {
	t.Parallel()

	fixture := setupAPI(t, func(_ context.Context) (core.SpeechSynthesizer, error) {
		return nil, errEngineUnavailable
	})

	resp := fixture.postJSON(t, "/api/tts/generate", map[string]any{"text": "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAudioUnknownFilenameIs404(t *testing.T) {
	t.Parallel()

	fixture := workingAPI(t)

	resp, err := fixture.client.Get(fixture.baseURL + "/api/tts/audio/never-issued.wav")
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadVoiceRoundTrip(t *testing.T) {
	t.Parallel()

	fixture := workingAPI(t)

	var form bytes.Buffer

	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("file", "my_voice.wav")
	require.NoError(t, err)

	sample := []byte("uploaded voice sample")
	_, err = part.Write(sample)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := fixture.client.Post(fixture.baseURL+"/api/tts/upload-voice",
		writer.FormDataContentType(), &form)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var uploaded map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uploaded))

	filename, _ := uploaded["filename"].(string)
	assert.Contains(t, filename, "my_voice.wav")
	assert.InEpsilon(t, float64(len(sample)), uploaded["size"], 0.0001)

	path, _ := uploaded["path"].(string)
	require.NotEmpty(t, path)

	fetchResp, err := fixture.client.Get(fixture.baseURL + path)
	require.NoError(t, err)

	defer func() {
		_ = fetchResp.Body.Close()
	}()

	require.Equal(t, http.StatusOK, fetchResp.StatusCode)

	fetched, err := io.ReadAll(fetchResp.Body)
	require.NoError(t, err)
	assert.Equal(t, sample, fetched)
}

// Multipart readers base-name the client-sent filename before the handler
// sees it, so a traversal path arrives as its final element and the bytes
// must land inside the store under that name.
func TestUploadVoiceTraversalFilenameStaysInStore(t *testing.T) {
	t.Parallel()

	fixture := workingAPI(t)

	var form bytes.Buffer

	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("file", "../../etc/passwd")
	require.NoError(t, err)

	_, err = part.Write([]byte("nope"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := fixture.client.Post(fixture.baseURL+"/api/tts/upload-voice",
		writer.FormDataContentType(), &form)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var uploaded map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uploaded))

	filename, _ := uploaded["filename"].(string)
	assert.True(t, strings.HasSuffix(filename, "_passwd"), "got %q", filename)
	assert.NotContains(t, filename, "/")

	entries, err := os.ReadDir(fixture.artifactsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filename, entries[0].Name())
}

// A bare ".." survives the reader's base-naming, so the handler must still
// reject it outright.
func TestUploadVoiceRejectsDotDotFilename(t *testing.T) {
	t.Parallel()

	fixture := workingAPI(t)

	var form bytes.Buffer

	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("file", "..")
	require.NoError(t, err)

	_, err = part.Write([]byte("nope"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := fixture.client.Post(fixture.baseURL+"/api/tts/upload-voice",
		writer.FormDataContentType(), &form)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	entries, err := os.ReadDir(fixture.artifactsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVoicesListsSampleDirectory(t *testing.T) {
	t.Parallel()

	fixture := workingAPI(t)

	require.NoError(t, writeFile(fixture.voicesDir+"/voice_01.wav", "wav"))
	require.NoError(t, writeFile(fixture.voicesDir+"/voice_02.mp3", "mp3"))
	require.NoError(t, writeFile(fixture.voicesDir+"/notes.txt", "txt"))

	var body struct {
		Voices []core.VoiceRef `json:"voices"`
	}

	resp := fixture.getJSON(t, "/api/tts/voices", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Voices, 2)
}

func TestVoicesEmptyDirectoryIsEmptyList(t *testing.T) {
	t.Parallel()

	fixture := workingAPI(t)

	raw := fixture.getJSON(t, "/api/tts/voices", nil)
	require.Equal(t, http.StatusOK, raw.StatusCode)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
