// Package config loads the jitq command line configuration.
//
// Configuration comes from an optional YAML file (jitq.yaml by default),
// read in strict mode so unknown fields are rejected. A .env file in the
// working directory is loaded first, and ${VAR} / $VAR references in path
// values are expanded afterwards. Command line flags override the result.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "jitq.yaml"

// ErrConfigValidation is returned when configuration validation fails.
var ErrConfigValidation = errors.New("configuration validation failed")

// Config is the jitq configuration.
type Config struct {
	// Engine is the wazero backend: "compiler" or "interpreter".
	Engine string `yaml:"engine"`
	// Debug prints generated modules to stderr.
	Debug bool `yaml:"debug"`
	// Trace prints the document after every path segment.
	Trace bool `yaml:"trace"`
	// Break emits a debugBreak call at program entry.
	Break bool `yaml:"break"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Color is one of auto, always, never.
	Color  string       `yaml:"color"`
	Cache  CacheConfig  `yaml:"cache"`
	Parser ParserConfig `yaml:"parser"`
	REPL   REPLConfig   `yaml:"repl"`
}

// CacheConfig configures the program cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
}

// ParserConfig configures the parser.
type ParserConfig struct {
	MaxDepth int `yaml:"max_depth"`
}

// REPLConfig configures the interactive shell.
type REPLConfig struct {
	HistoryFile string `yaml:"history_file"`
	Prompt      string `yaml:"prompt"`
}

// Load loads configuration from path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("failed to load environment files: %w", err)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		config := Default()
		expandConfigEnvVars(config)
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, validates it and applies defaults.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.UnmarshalWithOptions(data, &config, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}

	applyDefaults(&config)
	expandConfigEnvVars(&config)
	return &config, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

// Validate checks a configuration after command line overrides.
func (c *Config) Validate() error {
	if err := validateConfig(c); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}
	return nil
}

func validateConfig(config *Config) error {
	switch config.Engine {
	case "", "compiler", "interpreter":
	default:
		return fmt.Errorf("invalid engine %q (want compiler or interpreter)", config.Engine)
	}
	switch config.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", config.LogLevel)
	}
	switch config.Color {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("invalid color %q (want auto, always or never)", config.Color)
	}
	if config.Cache.Size < 0 {
		return fmt.Errorf("cache.size must not be negative, got %d", config.Cache.Size)
	}
	if config.Parser.MaxDepth < 0 {
		return fmt.Errorf("parser.max_depth must not be negative, got %d", config.Parser.MaxDepth)
	}
	return nil
}

func applyDefaults(config *Config) {
	if config.Engine == "" {
		config.Engine = "compiler"
	}
	if config.LogLevel == "" {
		config.LogLevel = "warn"
	}
	if config.Color == "" {
		config.Color = "auto"
	}
	if config.Cache.Size == 0 {
		config.Cache.Size = 64
	}
	if config.REPL.HistoryFile == "" {
		config.REPL.HistoryFile = "${HOME}/.jitq_history"
	}
	if config.REPL.Prompt == "" {
		config.REPL.Prompt = "jitq> "
	}
}

// Level returns the slog level for LogLevel.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Interpreter reports whether the interpreter backend is selected.
func (c *Config) Interpreter() bool {
	return c.Engine == "interpreter"
}

// loadEnvFiles loads .env files if they exist.
func loadEnvFiles() error {
	if fileExists(".env") {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}
	return nil
}

var (
	bracedVar = regexp.MustCompile(`\$\{([^}]+)\}`)
	bareVar   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR.
func expandEnvVars(s string) string {
	s = bracedVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
	return bareVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[1:])
	})
}

func expandConfigEnvVars(config *Config) {
	config.REPL.HistoryFile = expandEnvVars(config.REPL.HistoryFile)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
