// Package server exposes the synthesis gateway over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/tts-gateway/internal/core"
	"github.com/book-expert/tts-gateway/internal/gateway"
)

// Service identity reported by the root and health endpoints.
const (
	ServiceName    = "IndexTTS Gateway"
	ServiceVersion = "2.0.0"
)

// Request limits and timeouts.
const (
	maxUploadBytes    = 64 << 20 // 64 MiB of multipart form data
	readHeaderTimeout = 10 * time.Second
)

// multipart form field carrying the uploaded voice sample.
const uploadFormField = "file"

// Server is the gateway HTTP server.
type Server struct {
	gateway    *gateway.Gateway
	log        *logger.Logger
	httpServer *http.Server
}

// New creates an HTTP server for the given gateway, listening on addr once
// started.
func New(gw *gateway.Gateway, addr string, log *logger.Logger) *Server {
	server := &Server{
		gateway:    gw,
		log:        log,
		httpServer: nil,
	}

	server.httpServer = &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return server
}

// Handler returns the route table. It is exposed separately so tests can
// drive the API through httptest without binding a socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/tts/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/tts/audio/{filename}", s.handleAudio)
	mux.HandleFunc("POST /api/tts/upload-voice", s.handleUploadVoice)
	mux.HandleFunc("GET /api/tts/voices", s.handleVoices)

	return mux
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("HTTP server listening on %s", s.httpServer.Addr)

		serveErr := s.httpServer.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.log.Error("HTTP server error: %v", serveErr)
		}
	}()
}

// Stop gracefully shuts the server down, waiting for in-flight requests
// until the context expires.
func (s *Server) Stop(ctx context.Context) error {
	shutdownErr := s.httpServer.Shutdown(ctx)
	if shutdownErr != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", shutdownErr)
	}

	return nil
}

func (s *Server) handleRoot(responseWriter http.ResponseWriter, _ *http.Request) {
	writeJSON(responseWriter, http.StatusOK, rootResponse{
		Service: ServiceName,
		Version: ServiceVersion,
		Status:  "running",
	})
}

func (s *Server) handleHealth(responseWriter http.ResponseWriter, _ *http.Request) {
	writeJSON(responseWriter, http.StatusOK, healthResponse{
		Status:      "healthy",
		ModelLoaded: s.gateway.ModelLoaded(),
	})
}

func (s *Server) handleGenerate(responseWriter http.ResponseWriter, request *http.Request) {
	var req core.SynthesisRequest

	decodeErr := decodeJSON(request, &req)
	if decodeErr != nil {
		writeError(responseWriter, http.StatusBadRequest, "invalid request body")

		return
	}

	result, synthesisErr := s.gateway.Synthesize(request.Context(), req)
	if synthesisErr != nil {
		s.writeDomainError(responseWriter, synthesisErr)

		return
	}

	writeJSON(responseWriter, http.StatusCreated, generateResponse{
		AudioURL:        gateway.AudioURL(result.AudioReference),
		DurationSeconds: result.DurationSeconds,
		Text:            result.EchoedText,
	})
}

func (s *Server) handleAudio(responseWriter http.ResponseWriter, request *http.Request) {
	filename := request.PathValue("filename")

	reader, openErr := s.gateway.OpenArtifact(request.Context(), filename)
	if openErr != nil {
		s.writeDomainError(responseWriter, openErr)

		return
	}

	defer func() {
		closeErr := reader.Close()
		if closeErr != nil {
			s.log.Warn("Failed to close artifact %s: %v", filename, closeErr)
		}
	}()

	responseWriter.Header().Set("Content-Type", "audio/wav")
	responseWriter.Header().Set("Content-Disposition",
		fmt.Sprintf("inline; filename=%q", filename))

	_, copyErr := io.Copy(responseWriter, reader)
	if copyErr != nil {
		// Headers are already sent; all that is left is to log it.
		s.log.Warn("Failed to stream artifact %s: %v", filename, copyErr)
	}
}

func (s *Server) handleUploadVoice(responseWriter http.ResponseWriter, request *http.Request) {
	file, header, formErr := readUpload(request)
	if formErr != nil {
		writeError(responseWriter, http.StatusBadRequest, formErr.Error())

		return
	}

	ref, uploadErr := s.gateway.UploadVoiceSample(request.Context(), header.Filename, file)
	if uploadErr != nil {
		s.writeDomainError(responseWriter, uploadErr)

		return
	}

	writeJSON(responseWriter, http.StatusOK, uploadResponse{
		Filename: ref.ID,
		Path:     gateway.AudioURL(ref.ID),
		Size:     ref.Size,
	})
}

func (s *Server) handleVoices(responseWriter http.ResponseWriter, request *http.Request) {
	voices, listErr := s.gateway.ListVoices(request.Context())
	if listErr != nil {
		s.writeDomainError(responseWriter, listErr)

		return
	}

	if voices == nil {
		voices = []core.VoiceRef{}
	}

	writeJSON(responseWriter, http.StatusOK, voicesResponse{Voices: voices})
}

// writeDomainError maps the error taxonomy to HTTP statuses. Only the
// message string of the wrapped error chain crosses the boundary.
func (s *Server) writeDomainError(responseWriter http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		writeError(responseWriter, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrNotFound):
		writeError(responseWriter, http.StatusNotFound, "audio file not found")
	case errors.Is(err, core.ErrModelLoad):
		writeError(responseWriter, http.StatusServiceUnavailable,
			"speech model is unavailable, retry later")
	default:
		// ErrSynthesis, ErrStorage, and anything unexpected.
		writeError(responseWriter, http.StatusInternalServerError,
			"speech generation failed")
	}
}
