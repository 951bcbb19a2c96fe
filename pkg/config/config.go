// Package config loads the voxcad service configuration from defaults, an
// optional YAML file and VOXCAD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Kernel     KernelConfig     `mapstructure:"kernel"`
	Build      BuildConfig      `mapstructure:"build"`
	Parser     ParserConfig     `mapstructure:"parser"`
	Transcribe TranscribeConfig `mapstructure:"transcribe"`
	Audio      AudioConfig      `mapstructure:"audio"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RateLimitRPS is the per-client request rate; 0 disables limiting.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Addr returns the listen address for Port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// KernelConfig tunes the geometry backend.
type KernelConfig struct {
	MeshCells int `mapstructure:"mesh_cells"`
}

// BuildConfig bounds the build and export pipeline.
type BuildConfig struct {
	MaxConcurrent int64 `mapstructure:"max_concurrent"`
}

// ParserConfig configures the command parser.
type ParserConfig struct {
	StrictRadius bool `mapstructure:"strict_radius"`
}

// TranscribeConfig selects and configures the speech backend.
type TranscribeConfig struct {
	Backend  string        `mapstructure:"backend"` // "vosk", "whisper" or "none"
	Language string        `mapstructure:"language"`
	Vosk     VoskConfig    `mapstructure:"vosk"`
	Whisper  WhisperConfig `mapstructure:"whisper"`
}

// VoskConfig points at an unpacked vosk model directory.
type VoskConfig struct {
	ModelPath string `mapstructure:"model_path"`
}

// WhisperConfig configures an OpenAI-compatible transcription endpoint.
type WhisperConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AudioConfig configures upload transcoding.
type AudioConfig struct {
	FFmpegPath string `mapstructure:"ffmpeg_path"`
}

// CacheConfig selects the model cache.
type CacheConfig struct {
	Backend    string        `mapstructure:"backend"` // "memory", "redis" or "none"
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
	Redis      RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_body_bytes", 25<<20)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.rate_limit_rps", 0.0)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("kernel.mesh_cells", 120)
	v.SetDefault("build.max_concurrent", 1)
	v.SetDefault("parser.strict_radius", false)
	v.SetDefault("transcribe.backend", "vosk")
	v.SetDefault("transcribe.language", "zh")
	v.SetDefault("transcribe.vosk.model_path", "./model")
	v.SetDefault("transcribe.whisper.endpoint", "http://localhost:8000/v1/audio/transcriptions")
	v.SetDefault("transcribe.whisper.model", "whisper-1")
	v.SetDefault("transcribe.whisper.api_key", "")
	v.SetDefault("transcribe.whisper.timeout", 60*time.Second)
	v.SetDefault("audio.ffmpeg_path", "ffmpeg")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.max_entries", 64)
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads the configuration. If configFile is empty the file is searched
// for as voxcad.yaml in ., ./configs and /etc/voxcad; a missing file is not
// an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("voxcad")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/voxcad")
	}

	// VOXCAD_SERVER_PORT, VOXCAD_TRANSCRIBE_BACKEND, ...
	v.SetEnvPrefix("VOXCAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Transcribe.Whisper.APIKey = resolveEnvRef(cfg.Transcribe.Whisper.APIKey)
	cfg.Cache.Redis.Password = resolveEnvRef(cfg.Cache.Redis.Password)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: server.max_body_bytes must be positive")
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("config: server.rate_limit_rps must not be negative")
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("config: server.rate_limit_burst must be at least 1")
	}
	if c.Kernel.MeshCells < 8 {
		return fmt.Errorf("config: kernel.mesh_cells %d is below 8", c.Kernel.MeshCells)
	}
	if c.Build.MaxConcurrent < 1 {
		return fmt.Errorf("config: build.max_concurrent must be at least 1")
	}
	switch c.Transcribe.Backend {
	case "vosk", "whisper", "none":
	default:
		return fmt.Errorf("config: unknown transcribe.backend %q", c.Transcribe.Backend)
	}
	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("config: unknown cache.backend %q", c.Cache.Backend)
	}
	return nil
}

// resolveEnvRef expands a value of the form "${NAME}" from the environment.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		if env := os.Getenv(val[2 : len(val)-1]); env != "" {
			return env
		}
	}
	return val
}
