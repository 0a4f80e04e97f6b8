// Package config_test tests the configuration loading for the TTS gateway.
package config_test

import (
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/tts-gateway/internal/config"
)

func TestUnmarshalTOML(t *testing.T) {
	t.Parallel()

	tomlData := `
[server]
host = "127.0.0.1"
port = 9000

[engine]
kind = "http"
url = "http://localhost:9880"
model_path = "/models/indextts"
use_fp16 = false
max_workers = 8
synthesis_timeout_seconds = 60

[paths]
output_path = "/data/output"
voices_path = "/data/examples"

[nats]
url = "nats://127.0.0.1:4222"
audio_chunk_created_subject = "audio.chunk.created"
`

	cfg := config.Default()

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, config.EngineKindHTTP, cfg.Engine.Kind)
	assert.Equal(t, "http://localhost:9880", cfg.Engine.URL)
	assert.Equal(t, "/models/indextts", cfg.Engine.ModelPath)
	assert.False(t, cfg.Engine.UseFP16)
	assert.Equal(t, 8, cfg.Engine.MaxWorkers)
	assert.Equal(t, 60, cfg.Engine.SynthesisTimeoutSeconds)
	assert.Equal(t, "/data/output", cfg.Paths.OutputPath)
	assert.Equal(t, "/data/examples", cfg.Paths.VoicesPath)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)

	require.NoError(t, cfg.Validate())
}

func TestEnvOverridesWinOverFileValues(t *testing.T) {
	t.Setenv("MODEL_PATH", "/env/checkpoints")
	t.Setenv("OUTPUT_PATH", "/env/output")
	t.Setenv("USE_FP16", "false")
	t.Setenv("MAX_WORKERS", "2")
	t.Setenv("TTS_GATEWAY_PORT", "8081")

	cfg := config.Default()
	cfg.Engine.URL = "http://localhost:9880"

	err := config.ApplyEnvOverrides(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "/env/checkpoints", cfg.Engine.ModelPath)
	assert.Equal(t, "/env/output", cfg.Paths.OutputPath)
	assert.False(t, cfg.Engine.UseFP16)
	assert.Equal(t, 2, cfg.Engine.MaxWorkers)
	assert.Equal(t, 8081, cfg.Server.Port)

	// Untouched fields keep their defaults.
	assert.Equal(t, config.DefaultHost, cfg.Server.Host)
	assert.Equal(t, config.DefaultVoicesPath, cfg.Paths.VoicesPath)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
	}{
		{
			name:    "zero workers",
			mutate:  func(c *config.Config) { c.Engine.MaxWorkers = 0 },
			wantErr: config.ErrMaxWorkersPositive,
		},
		{
			name:    "zero timeout",
			mutate:  func(c *config.Config) { c.Engine.SynthesisTimeoutSeconds = 0 },
			wantErr: config.ErrTimeoutPositive,
		},
		{
			name:    "port out of range",
			mutate:  func(c *config.Config) { c.Server.Port = 0 },
			wantErr: config.ErrPortRange,
		},
		{
			name:    "http engine without url",
			mutate:  func(c *config.Config) { c.Engine.URL = "" },
			wantErr: config.ErrEngineURLRequired,
		},
		{
			name:    "unknown engine kind",
			mutate:  func(c *config.Config) { c.Engine.Kind = "quantum" },
			wantErr: config.ErrUnknownEngineKind,
		},
		{
			name:    "empty output path",
			mutate:  func(c *config.Config) { c.Paths.OutputPath = "" },
			wantErr: config.ErrOutputPathEmpty,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			cfg.Engine.URL = "http://localhost:9880"
			testCase.mutate(&cfg)

			err := cfg.Validate()
			require.ErrorIs(t, err, testCase.wantErr)
		})
	}
}

func TestProcessEngineNeedsNoURL(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Engine.Kind = config.EngineKindProcess

	require.NoError(t, cfg.Validate())
}
