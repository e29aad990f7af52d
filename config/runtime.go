package config

import (
	"fmt"
	"io"
	"log/slog"

	"tasklist/storage"
)

// OpenKV opens the storage backend named by the configuration
func OpenKV(cfg *Config, logger *slog.Logger) (storage.KV, error) {
	switch cfg.Storage.Backend {
	case "json":
		kv, err := storage.NewJSONStore(cfg.Storage.Path, logger)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case "sqlite":
		kv, err := storage.NewSQLiteStore(cfg.Storage.Path, logger)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Storage.Backend)
	}
}

// NewLogger builds the application logger. The returned LevelVar lets the
// level be changed at runtime.
func NewLogger(cfg *Config, w io.Writer) (*slog.Logger, *slog.LevelVar, error) {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, nil, err
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(level)
	opts := &slog.HandlerOptions{Level: levelVar}

	var handler slog.Handler
	switch cfg.Log.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownLogFormat, cfg.Log.Format)
	}
	return slog.New(handler), levelVar, nil
}
