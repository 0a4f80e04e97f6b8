// Package config provides the configuration structure for the TTS gateway.
//
// Configuration is layered: a TOML document loaded through the central
// configurator supplies deployment defaults, and environment variables
// override individual fields afterwards. The environment always wins, so a
// container can be configured with nothing but MODEL_PATH, OUTPUT_PATH,
// USE_FP16 and MAX_WORKERS.
package config

import (
	"errors"
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/caarlos0/env/v11"
)

// Default values applied before the TOML and environment layers.
const (
	DefaultHost                    = "0.0.0.0"
	DefaultPort                    = 8000
	DefaultModelPath               = "/app/checkpoints"
	DefaultOutputPath              = "/app/output"
	DefaultVoicesPath              = "/app/examples"
	DefaultMaxWorkers              = 4
	DefaultSynthesisTimeoutSeconds = 120
	DefaultEngineKind              = "http"
)

// Engine kinds recognized in the [engine] section.
const (
	EngineKindHTTP    = "http"
	EngineKindProcess = "process"
)

// Static validation errors.
var (
	ErrPortRange          = errors.New("server port must be between 1 and 65535")
	ErrMaxWorkersPositive = errors.New("max workers must be positive")
	ErrTimeoutPositive    = errors.New("synthesis timeout must be positive")
	ErrUnknownEngineKind  = errors.New("unknown engine kind")
	ErrEngineURLRequired  = errors.New("engine url is required for the http engine")
	ErrOutputPathEmpty    = errors.New("output path cannot be empty")
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `env:"TTS_GATEWAY_HOST" toml:"host"`
	Port int    `env:"TTS_GATEWAY_PORT" toml:"port"`
}

// EngineConfig selects and parameterizes the inference engine binding.
type EngineConfig struct {
	// Kind is either "http" (standalone inference server) or "process"
	// (indextts CLI invoked per request).
	Kind string `env:"ENGINE"     toml:"kind"`
	URL  string `env:"ENGINE_URL" toml:"url"`

	ModelPath               string `env:"MODEL_PATH"                toml:"model_path"`
	UseFP16                 bool   `env:"USE_FP16"                  toml:"use_fp16"`
	MaxWorkers              int    `env:"MAX_WORKERS"               toml:"max_workers"`
	SynthesisTimeoutSeconds int    `env:"SYNTHESIS_TIMEOUT_SECONDS" toml:"synthesis_timeout_seconds"`
}

// PathsConfig holds the artifact and voice-sample directories.
type PathsConfig struct {
	// OutputPath is the artifact directory; it is created if absent.
	OutputPath string `env:"OUTPUT_PATH" toml:"output_path"`
	// VoicesPath is the fixed voice-sample directory listed by the
	// voices endpoint.
	VoicesPath string `env:"VOICES_PATH" toml:"voices_path"`
	LogDir     string `env:"LOG_DIR"     toml:"log_dir"`
}

// NATSConfig holds the optional NATS settings. An empty URL disables both
// the notifier and the JetStream artifact backend; a non-empty bucket
// moves artifact storage from the output directory into JetStream.
type NATSConfig struct {
	URL                      string `env:"NATS_URL"                   toml:"url"`
	AudioChunkCreatedSubject string `env:"NATS_AUDIO_CREATED_SUBJECT" toml:"audio_chunk_created_subject"`
	AudioObjectStoreBucket   string `env:"NATS_AUDIO_BUCKET"          toml:"audio_object_store_bucket"`
}

// Config is the root configuration structure.
type Config struct {
	Server ServerConfig `toml:"server"`
	Engine EngineConfig `toml:"engine"`
	Paths  PathsConfig  `toml:"paths"`
	NATS   NATSConfig   `toml:"nats"`
}

// Default returns a configuration populated with the built-in defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Engine: EngineConfig{
			Kind:                    DefaultEngineKind,
			URL:                     "",
			ModelPath:               DefaultModelPath,
			UseFP16:                 true,
			MaxWorkers:              DefaultMaxWorkers,
			SynthesisTimeoutSeconds: DefaultSynthesisTimeoutSeconds,
		},
		Paths: PathsConfig{
			OutputPath: DefaultOutputPath,
			VoicesPath: DefaultVoicesPath,
			LogDir:     "",
		},
		NATS: NATSConfig{
			URL:                      "",
			AudioChunkCreatedSubject: "audio.chunk.created",
			AudioObjectStoreBucket:   "",
		},
	}
}

// Load builds the effective configuration: defaults, then the TOML document
// resolved by the configurator, then environment overrides.
func Load(log *logger.Logger) (*Config, error) {
	cfg := Default()

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	overrideErr := ApplyEnvOverrides(&cfg)
	if overrideErr != nil {
		return nil, overrideErr
	}

	validationErr := cfg.Validate()
	if validationErr != nil {
		return nil, validationErr
	}

	return &cfg, nil
}

// ApplyEnvOverrides overwrites config fields from their associated
// environment variables. Unset variables leave existing values intact.
func ApplyEnvOverrides(cfg *Config) error {
	err := env.Parse(cfg)
	if err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return nil
}

// Validate checks the invariants the rest of the gateway relies on.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrPortRange, c.Server.Port)
	}

	if c.Engine.MaxWorkers < 1 {
		return fmt.Errorf("%w: got %d", ErrMaxWorkersPositive, c.Engine.MaxWorkers)
	}

	if c.Engine.SynthesisTimeoutSeconds < 1 {
		return fmt.Errorf("%w: got %d", ErrTimeoutPositive, c.Engine.SynthesisTimeoutSeconds)
	}

	if c.Paths.OutputPath == "" {
		return ErrOutputPathEmpty
	}

	switch c.Engine.Kind {
	case EngineKindHTTP:
		if c.Engine.URL == "" {
			return ErrEngineURLRequired
		}
	case EngineKindProcess:
		// The indextts binary resolves the model path at invocation
		// time; nothing further to check here.
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEngineKind, c.Engine.Kind)
	}

	return nil
}

// ListenAddr returns the host:port pair the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
