// main package for the tts-client command line tool, a small client for
// the TTS gateway HTTP API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// Flag names.
const (
	flagText    = "text"
	flagOutput  = "output"
	flagServer  = "server"
	flagVoice   = "voice"
	flagEmotion = "emotion"
	flagSpeed   = "speed"
	flagPitch   = "pitch"
	flagHealth  = "health"
	flagVoices  = "voices"
)

// Flag descriptions.
const (
	flagTextDesc    = "Text to convert to speech"
	flagOutputDesc  = "Output file path (.wav)"
	flagServerDesc  = "Base URL of the TTS gateway"
	flagVoiceDesc   = "Voice prompt path or identifier"
	flagEmotionDesc = "Emotion preset (e.g. neutral, happy)"
	flagSpeedDesc   = "Speech speed multiplier"
	flagPitchDesc   = "Speech pitch multiplier"
	flagHealthDesc  = "Check gateway health and exit"
	flagVoicesDesc  = "List available voice prompts and exit"
)

// Defaults.
const (
	defaultServerURL  = "http://localhost:8000"
	defaultOutputFile = "output.wav"
	requestTimeout    = 5 * time.Minute
)

// Static errors.
var (
	ErrTextRequired = errors.New("--text must be provided")
	ErrEmptyAudio   = errors.New("gateway returned empty audio")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text    string
	output  string
	server  string
	voice   string
	emotion string
	speed   float64
	pitch   float64
	health  bool
	voices  bool
}

func main() {
	err := run()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags()

	client := &http.Client{Timeout: requestTimeout}
	ctx := context.Background()

	switch {
	case flags.health:
		return checkHealth(ctx, client, flags.server)
	case flags.voices:
		return listVoices(ctx, client, flags.server)
	default:
		return generate(ctx, client, flags)
	}
}

func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.output, flagOutput, defaultOutputFile, flagOutputDesc)
	flag.StringVar(&flags.server, flagServer, defaultServerURL, flagServerDesc)
	flag.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flag.StringVar(&flags.emotion, flagEmotion, "", flagEmotionDesc)
	flag.Float64Var(&flags.speed, flagSpeed, 0, flagSpeedDesc)
	flag.Float64Var(&flags.pitch, flagPitch, 0, flagPitchDesc)
	flag.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)
	flag.BoolVar(&flags.voices, flagVoices, false, flagVoicesDesc)
	flag.Parse()

	return flags
}

func checkHealth(ctx context.Context, client *http.Client, serverURL string) error {
	body, err := getJSON(ctx, client, serverURL+"/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Printf("%s\n", body)

	return nil
}

func listVoices(ctx context.Context, client *http.Client, serverURL string) error {
	body, err := getJSON(ctx, client, serverURL+"/api/tts/voices")
	if err != nil {
		return fmt.Errorf("failed to list voices: %w", err)
	}

	fmt.Printf("%s\n", body)

	return nil
}

func generate(ctx context.Context, client *http.Client, flags appFlags) error {
	if flags.text == "" {
		return ErrTextRequired
	}

	audioURL, err := requestSynthesis(ctx, client, flags)
	if err != nil {
		return err
	}

	audioData, err := downloadAudio(ctx, client, flags.server+audioURL)
	if err != nil {
		return err
	}

	writeErr := os.WriteFile(flags.output, audioData, 0o600)
	if writeErr != nil {
		return fmt.Errorf("failed to write audio file: %w", writeErr)
	}

	fmt.Printf("Generated: %s (%d bytes)\n", flags.output, len(audioData))

	return nil
}

func requestSynthesis(ctx context.Context, client *http.Client, flags appFlags) (string, error) {
	payload := map[string]any{
		"text": flags.text,
	}

	if flags.voice != "" {
		payload["voice_prompt"] = flags.voice
	}

	if flags.emotion != "" {
		payload["emotion"] = flags.emotion
	}

	if flags.speed != 0 {
		payload["speed"] = flags.speed
	}

	if flags.pitch != 0 {
		payload["pitch"] = flags.pitch
	}

	requestBody, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return "", fmt.Errorf("failed to marshal request: %w", marshalErr)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost,
		flags.server+"/api/tts/generate", bytes.NewReader(requestBody))
	if reqErr != nil {
		return "", fmt.Errorf("failed to create request: %w", reqErr)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, doErr := client.Do(req)
	if doErr != nil {
		return "", fmt.Errorf("failed to reach gateway at %s: %w", flags.server, doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)

		return "", fmt.Errorf("gateway returned %s: %s", resp.Status, string(body))
	}

	var generated struct {
		AudioURL        string  `json:"audio_url"`
		DurationSeconds float64 `json:"duration"`
		Text            string  `json:"text"`
	}

	decodeErr := json.NewDecoder(resp.Body).Decode(&generated)
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode gateway response: %w", decodeErr)
	}

	fmt.Printf("Synthesized %.2fs of audio\n", generated.DurationSeconds)

	return generated.AudioURL, nil
}

func downloadAudio(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if reqErr != nil {
		return nil, fmt.Errorf("failed to create download request: %w", reqErr)
	}

	resp, doErr := client.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("failed to download audio: %w", doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audio download returned %s", resp.Status)
	}

	audioData, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", readErr)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}

func getJSON(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if reqErr != nil {
		return nil, fmt.Errorf("failed to create request: %w", reqErr)
	}

	resp, doErr := client.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("request failed: %w", doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request returned %s", resp.Status)
	}

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read response body: %w", readErr)
	}

	return body, nil
}
