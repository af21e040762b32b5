// Package config provides the configuration structure for the speech service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// EnvConfigPath names the environment variable pointing at the TOML file.
const EnvConfigPath = "SPEECH_SERVICE_CONFIG"

const defaultConfigPath = "speech-service.toml"

// Recognized backend and engine names.
const (
	StorageBackendS3    = "s3"
	StorageBackendNATS  = "nats"
	MetadataBackendDyno = "dynamodb"
	MetadataBackendNATS = "nats"
	EnginePolly         = "polly"
	EngineHTTP          = "http"
)

// Defaults applied to unset fields.
const (
	defaultHost           = "0.0.0.0"
	defaultPort           = 8080
	defaultVoice          = "Joanna"
	defaultOutputFormat   = "mp3"
	defaultTimeoutSeconds = 30
	defaultSubject        = "speech.synthesize"
)

// Static validation errors.
var (
	ErrMissingInputBucket  = errors.New("storage input bucket cannot be empty")
	ErrMissingOutputBucket = errors.New("storage output bucket cannot be empty")
	ErrUnknownBackend      = errors.New("unknown storage backend")
	ErrUnknownMetadata     = errors.New("unknown metadata backend")
	ErrUnknownEngine       = errors.New("unknown synthesis engine")
	ErrMissingRegion       = errors.New("aws region cannot be empty")
	ErrMissingTable        = errors.New("metadata table cannot be empty")
	ErrMissingKVBucket     = errors.New("metadata kv bucket cannot be empty")
	ErrMissingNATSURL      = errors.New("nats url cannot be empty")
	ErrMissingServiceURL   = errors.New("synthesis service url cannot be empty")
)

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// StorageConfig selects the object store backend and its buckets.
type StorageConfig struct {
	Backend      string `toml:"backend"`
	InputBucket  string `toml:"input_bucket"`
	OutputBucket string `toml:"output_bucket"`
}

// MetadataConfig selects the metadata store backend.
type MetadataConfig struct {
	Backend  string `toml:"backend"`
	Table    string `toml:"table"`
	KVBucket string `toml:"kv_bucket"`
}

// AWSConfig holds the settings for the AWS-backed stores and engine.
type AWSConfig struct {
	Region string `toml:"region"`
}

// NATSConfig holds the settings for the NATS-backed stores and the worker.
type NATSConfig struct {
	URL               string `toml:"url"`
	SynthesizeSubject string `toml:"synthesize_subject"`
	WorkerEnabled     bool   `toml:"worker_enabled"`
}

// SynthesisConfig selects and tunes the TTS engine.
type SynthesisConfig struct {
	Engine         string `toml:"engine"`
	Voice          string `toml:"voice"`
	OutputFormat   string `toml:"output_format"`
	ServiceURL     string `toml:"service_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Metadata  MetadataConfig  `toml:"metadata"`
	AWS       AWSConfig       `toml:"aws"`
	NATS      NATSConfig      `toml:"nats"`
	Synthesis SynthesisConfig `toml:"synthesis"`
	Paths     PathsConfig     `toml:"paths"`
}

// Load reads the configuration from the TOML file named by SPEECH_SERVICE_CONFIG
// (falling back to speech-service.toml in the working directory). A .env file,
// if present, is loaded into the environment first.
func Load(log *logger.Logger) (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = defaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file '%s': %w", path, err)
	}

	var cfg Config

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file '%s': %w", path, err)
	}

	cfg.applyDefaults()

	err = cfg.validate()
	if err != nil {
		return nil, err
	}

	log.Info("Configuration loaded from %s", path)

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = defaultHost
	}

	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageBackendS3
	}

	if c.Metadata.Backend == "" {
		c.Metadata.Backend = MetadataBackendDyno
	}

	if c.Synthesis.Engine == "" {
		c.Synthesis.Engine = EnginePolly
	}

	if c.Synthesis.Voice == "" {
		c.Synthesis.Voice = defaultVoice
	}

	if c.Synthesis.OutputFormat == "" {
		c.Synthesis.OutputFormat = defaultOutputFormat
	}

	if c.Synthesis.TimeoutSeconds == 0 {
		c.Synthesis.TimeoutSeconds = defaultTimeoutSeconds
	}

	if c.NATS.SynthesizeSubject == "" {
		c.NATS.SynthesizeSubject = defaultSubject
	}

	if c.Paths.BaseLogsDir == "" {
		c.Paths.BaseLogsDir = os.TempDir()
	}
}

func (c *Config) validate() error {
	if c.Storage.InputBucket == "" {
		return ErrMissingInputBucket
	}

	if c.Storage.OutputBucket == "" {
		return ErrMissingOutputBucket
	}

	err := c.validateBackends()
	if err != nil {
		return err
	}

	return c.validateEngine()
}

func (c *Config) validateBackends() error {
	usesAWS := false
	usesNATS := c.NATS.WorkerEnabled

	switch c.Storage.Backend {
	case StorageBackendS3:
		usesAWS = true
	case StorageBackendNATS:
		usesNATS = true
	default:
		return fmt.Errorf("%w: '%s'", ErrUnknownBackend, c.Storage.Backend)
	}

	switch c.Metadata.Backend {
	case MetadataBackendDyno:
		usesAWS = true

		if c.Metadata.Table == "" {
			return ErrMissingTable
		}
	case MetadataBackendNATS:
		usesNATS = true

		if c.Metadata.KVBucket == "" {
			return ErrMissingKVBucket
		}
	default:
		return fmt.Errorf("%w: '%s'", ErrUnknownMetadata, c.Metadata.Backend)
	}

	if usesAWS && c.AWS.Region == "" {
		return ErrMissingRegion
	}

	if usesNATS && c.NATS.URL == "" {
		return ErrMissingNATSURL
	}

	return nil
}

func (c *Config) validateEngine() error {
	switch c.Synthesis.Engine {
	case EnginePolly:
		if c.AWS.Region == "" {
			return ErrMissingRegion
		}
	case EngineHTTP:
		if c.Synthesis.ServiceURL == "" {
			return ErrMissingServiceURL
		}
	default:
		return fmt.Errorf("%w: '%s'", ErrUnknownEngine, c.Synthesis.Engine)
	}

	return nil
}
