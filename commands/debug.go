package commands

import (
	"fmt"
	"log/slog"
)

var (
	debugMode bool
	logLevel  *slog.LevelVar
)

// SetLogLevel lets /debug switch the logger between its configured level
// and debug
func SetLogLevel(level *slog.LevelVar) {
	logLevel = level
}

func init() {
	var savedLevel slog.Level

	Register(&Command{
		Name:        "/debug",
		Description: "Toggle debug logging and assistant tool tracing",
		Hidden:      true,
		Handler: func(args []string) bool {
			debugMode = !debugMode
			if logLevel != nil {
				if debugMode {
					savedLevel = logLevel.Level()
					logLevel.Set(slog.LevelDebug)
				} else {
					logLevel.Set(savedLevel)
				}
			}

			if debugMode {
				fmt.Println("Debug mode: ON")
			} else {
				fmt.Println("Debug mode: OFF")
			}
			return false
		},
	})
}

// IsDebugMode returns whether debug mode is enabled
func IsDebugMode() bool {
	return debugMode
}
