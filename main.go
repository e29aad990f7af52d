package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"tasklist/commands"
	"tasklist/config"
	"tasklist/llm"
	"tasklist/tasklist"
	"tasklist/view"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "tasklist [command] [args...]",
		Short: "A persistent task list with an optional assistant",
		Long: `Without arguments, tasklist starts an interactive session.
With arguments, it runs a single command and exits, e.g.

  tasklist add Buy milk
  tasklist toggle 3`,
		Version:      Version,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}

			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			if len(args) > 0 {
				return app.runOnce(strings.Join(args, " "))
			}
			return app.repl()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default ./tasklist.yaml or ~/.tasklist/config.yaml)")
	flags.String("backend", "", "storage backend: json, sqlite, or memory")
	flags.String("path", "", "storage file path")
	flags.String("key", "", "storage key holding the task list")
	flags.String("provider", "", "assistant provider: gemini, openrouter, or none")
	flags.String("model", "", "assistant model")
	flags.String("log-level", "", "log level: debug, info, warn, or error")

	cmd.AddCommand(configCmd())
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(config.DataDir(), "config.yaml")
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	})

	return cmd
}

// app holds everything a session needs
type app struct {
	store  *tasklist.Store
	logger *slog.Logger
	closer []io.Closer
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, level, err := config.NewLogger(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	commands.SetLogLevel(level)

	kv, err := config.OpenKV(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	a := &app{logger: logger, closer: []io.Closer{kv}}

	opts := []tasklist.Option{
		tasklist.WithKey(cfg.Storage.Key),
		tasklist.WithLogger(logger),
		tasklist.WithObserver(&view.Terminal{}),
	}
	if cfg.PrioritySeed != 0 {
		opts = append(opts, tasklist.WithRand(rand.New(rand.NewPCG(cfg.PrioritySeed, cfg.PrioritySeed))))
	}

	store, err := tasklist.New(kv, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	commands.SetStore(store)

	if cfg.LLM.Provider != "none" {
		client, err := llm.New(ctx, cfg.LLM.Provider, cfg.LLM.Model)
		if err != nil {
			logger.Warn("assistant unavailable", "provider", cfg.LLM.Provider, "error", err)
		} else {
			commands.SetLLMClient(client)
			a.closer = append(a.closer, client)
		}
	}

	logger.Debug("session ready", "backend", cfg.Storage.Backend, "path", cfg.Storage.Path, "key", cfg.Storage.Key)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closer) - 1; i >= 0; i-- {
		if err := a.closer[i].Close(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}

// runOnce executes a single command given on the command line
func (a *app) runOnce(input string) error {
	if _, err := commands.Execute(input); err != nil {
		return fmt.Errorf("%w (try: tasklist /help)", err)
	}
	return nil
}

func (a *app) repl() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     filepath.Join(config.DataDir(), "history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
	if err != nil {
		return fmt.Errorf("failed to start terminal: %w", err)
	}
	defer rl.Close()

	commands.SetConfirm(func(prompt string) bool {
		rl.SetPrompt(prompt + " [y/N] ")
		defer rl.SetPrompt("> ")
		line, err := rl.Readline()
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	})
	defer commands.SetConfirm(nil)

	fmt.Println("Welcome to your task list! Type /help for commands, or just ask the assistant.")
	a.store.Refresh()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if !strings.HasPrefix(input, "/") {
			input = "/chat " + input
		}

		if handleInput(input) {
			return nil
		}
	}
}

// handleInput runs one line of input and reports whether to quit. Chat runs
// live so confirmation prompts reach the terminal; other commands are
// captured and recorded as context for the assistant.
func handleInput(input string) bool {
	name := strings.ToLower(strings.Fields(input)[0])
	if name == "/chat" {
		quit, err := commands.Execute(input)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
		}
		return quit
	}

	quit, output, err := commands.ExecuteWithOutput(input)
	if err != nil {
		fmt.Printf("%v. Type /help for available commands.\n", err)
		return false
	}
	if output != "" {
		fmt.Println(output)
	}
	if !quit {
		commands.AddCommandContext(input, output)
	}
	return quit
}
