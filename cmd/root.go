// Package cmd holds the parley CLI.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parley",
		Short: "Discord chat bot with transcript-recovered channel settings",
		Long: "Parley answers Discord messages through OpenAI, Anthropic or DeepSeek.\n" +
			"It keeps no database: conversation context and per-channel settings are\n" +
			"rebuilt from the channel transcript itself whenever the process restarts.",
		Run: func(cmd *cobra.Command, args []string) {
			runGateway()
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	cmd.AddCommand(runCmd())
	cmd.AddCommand(configCmd())
	cmd.AddCommand(doctorCmd())
	return cmd
}

func Execute() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveConfigPath picks the config file: flag, then env, then the
// conventional location.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if p := os.Getenv("PARLEY_CONFIG"); p != "" {
		return p
	}
	return "parley.yaml"
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
