package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/SentientNarrative/internal/config"
	"github.com/AaronLay10/SentientNarrative/internal/events"
	"github.com/AaronLay10/SentientNarrative/internal/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "orchestrator",
	Short:         "Sentient Narrative graph runner",
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "story.yaml", "Path to story.yaml")
	rootCmd.AddCommand(serveCmd, validateCmd, restoreCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadEnv reads the environment and installs the process logger.
func loadEnv() (*config.Env, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	logger := newLogger(env.LogLevel, env.LogFormat, os.Stderr)
	slog.SetDefault(logger)
	events.SetLogger(logger)
	return env, nil
}

// newLogger creates a slog.Logger for the given level and format.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}
