package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/book-expert/tts-gateway/internal/core"
)

// API request and response bodies. Field names are part of the public
// contract and mirror the service's original API.
type rootResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

type generateResponse struct {
	AudioURL        string  `json:"audio_url"`
	DurationSeconds float64 `json:"duration"`
	Text            string  `json:"text"`
}

type uploadResponse struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
}

type voicesResponse struct {
	Voices []core.VoiceRef `json:"voices"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Static errors.
var ErrMissingUploadFile = errors.New("multipart form must carry a 'file' field")

func writeJSON(responseWriter http.ResponseWriter, status int, body any) {
	responseWriter.Header().Set("Content-Type", "application/json")
	responseWriter.WriteHeader(status)

	// The body is one of the fixed response structs above; encoding
	// cannot fail on them, and the status line is already written.
	_ = json.NewEncoder(responseWriter).Encode(body)
}

func writeError(responseWriter http.ResponseWriter, status int, message string) {
	writeJSON(responseWriter, status, errorBody{
		Error: message,
		Code:  status,
	})
}

func decodeJSON(request *http.Request, target any) error {
	decoder := json.NewDecoder(request.Body)

	decodeErr := decoder.Decode(target)
	if decodeErr != nil {
		return fmt.Errorf("failed to decode JSON body: %w", decodeErr)
	}

	return nil
}

// readUpload extracts the voice-sample file from a multipart request.
func readUpload(request *http.Request) ([]byte, *multipart.FileHeader, error) {
	parseErr := request.ParseMultipartForm(maxUploadBytes)
	if parseErr != nil {
		return nil, nil, fmt.Errorf("failed to parse multipart form: %w", parseErr)
	}

	file, header, formErr := request.FormFile(uploadFormField)
	if formErr != nil {
		return nil, nil, ErrMissingUploadFile
	}

	defer func() {
		_ = file.Close()
	}()

	data, readErr := io.ReadAll(file)
	if readErr != nil {
		return nil, nil, fmt.Errorf("failed to read uploaded file: %w", readErr)
	}

	return data, header, nil
}
