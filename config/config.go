package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the resolved application configuration
type Config struct {
	Storage      StorageConfig `mapstructure:"storage" yaml:"storage"`
	LLM          LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Log          LogConfig     `mapstructure:"log" yaml:"log"`
	PrioritySeed uint64        `mapstructure:"priority_seed" yaml:"priority_seed"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // json, sqlite, or memory
	Path    string `mapstructure:"path" yaml:"path"`
	Key     string `mapstructure:"key" yaml:"key"`
}

type LLMConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"` // gemini, openrouter, or none
	Model    string `mapstructure:"model" yaml:"model"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text or json
}

var (
	ErrUnknownBackend   = errors.New("unknown storage backend")
	ErrUnknownLogFormat = errors.New("unknown log format")
)

const envPrefix = "TASKLIST"

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "json",
			Path:    filepath.Join(DataDir(), "tasks.json"),
			Key:     "tasks",
		},
		LLM: LLMConfig{
			Provider: "gemini",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// DataDir returns ~/.tasklist, or .tasklist when there is no home directory
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tasklist"
	}
	return filepath.Join(home, ".tasklist")
}

// DefaultPaths lists where Load looks for a config file, in order
func DefaultPaths() []string {
	return []string{
		"tasklist.yaml",
		filepath.Join(DataDir(), "config.yaml"),
	}
}

// Load resolves configuration from defaults, a YAML file, TASKLIST_*
// environment variables and flags, later sources winning. An explicit path
// must exist; otherwise the first of DefaultPaths that exists is used.
// A .env file in the working directory is loaded into the environment first.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		for _, candidate := range DefaultPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Storage.Path = expandHome(cfg.Storage.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("storage.key", cfg.Storage.Key)
	v.SetDefault("llm.provider", cfg.LLM.Provider)
	v.SetDefault("llm.model", cfg.LLM.Model)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("priority_seed", cfg.PrioritySeed)
}

// flagKeys maps command-line flags onto config keys
var flagKeys = map[string]string{
	"backend":   "storage.backend",
	"path":      "storage.path",
	"key":       "storage.key",
	"provider":  "llm.provider",
	"model":     "llm.model",
	"log-level": "log.level",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Validate checks enumerated settings
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "json", "sqlite", "memory":
	default:
		return fmt.Errorf("%w: %q (use json, sqlite, or memory)", ErrUnknownBackend, c.Storage.Backend)
	}
	if c.Storage.Key == "" {
		return errors.New("storage.key cannot be empty")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q (use text or json)", ErrUnknownLogFormat, c.Log.Format)
	}
	return nil
}

// SlogLevel parses Level ("debug", "info", "warn", "error")
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	return level, nil
}

// WriteDefault writes the default configuration as YAML. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
