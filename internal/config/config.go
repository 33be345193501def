// Package config loads the quill configuration: built-in defaults, then an
// optional YAML file. Command-line flags are applied on top by cmd/quill.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText  = "text"
	FormatArrow = "arrow"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Dict      DictConfig      `yaml:"dict"`
	Input     InputConfig     `yaml:"input"`
	Output    OutputConfig    `yaml:"output"`
	Server    ServerConfig    `yaml:"server"`
	Forward   ForwardConfig   `yaml:"forward"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DictConfig points at the punctuation list or compiled snapshot. An empty
// path disables the punctuation pass.
type DictConfig struct {
	Path string `yaml:"path"`
}

type InputConfig struct {
	Path      string `yaml:"path"`
	Charset   string `yaml:"charset"`
	Normalize bool   `yaml:"normalize"`
	Separator string `yaml:"separator"`
}

type OutputConfig struct {
	Path    string `yaml:"path"`
	Charset string `yaml:"charset"`
	Format  string `yaml:"format"`
}

type ServerConfig struct {
	Listen        string `yaml:"listen"`
	Flight        string `yaml:"flight"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	Workers       int    `yaml:"workers"`
}

// ForwardConfig enables shipping token batches to a Longbow server.
type ForwardConfig struct {
	Addr        string        `yaml:"addr"`
	Dataset     string        `yaml:"dataset"`
	MaxFailures int           `yaml:"max_failures"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

type CacheConfig struct {
	Backend string        `yaml:"backend"`
	Addr    string        `yaml:"addr"`
	DB      int           `yaml:"db"`
	TTL     time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Dict: DictConfig{Path: "punctuation.txt"},
		Input: InputConfig{
			Path:      "-",
			Separator: "_",
		},
		Output: OutputConfig{
			Path:   "-",
			Format: FormatText,
		},
		Server: ServerConfig{
			MaxConcurrent: 16384,
			Workers:       8,
		},
		Forward: ForwardConfig{
			Dataset:     "quill_tokens",
			MaxFailures: 5,
			Cooldown:    30 * time.Second,
		},
		Cache: CacheConfig{
			Backend: CacheNone,
			Addr:    "localhost:6379",
			TTL:     time.Hour,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty file leaves the defaults untouched.
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values that flags and YAML cannot constrain by type.
func (c Config) Validate() error {
	if utf8.RuneCountInString(c.Input.Separator) != 1 {
		return fmt.Errorf("input.separator must be a single character, got %q", c.Input.Separator)
	}
	switch c.Output.Format {
	case FormatText, FormatArrow:
	default:
		return fmt.Errorf("output.format must be %q or %q, got %q", FormatText, FormatArrow, c.Output.Format)
	}
	switch c.Cache.Backend {
	case CacheNone, CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("cache.backend must be one of none, memory, redis, got %q", c.Cache.Backend)
	}
	if c.Server.MaxConcurrent <= 0 {
		return fmt.Errorf("server.max_concurrent must be positive, got %d", c.Server.MaxConcurrent)
	}
	return nil
}

// Separator returns the word/tag separator rune.
func (c Config) Separator() rune {
	r, _ := utf8.DecodeRuneInString(c.Input.Separator)
	return r
}
