package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/user/connector/internal/config"
	"github.com/user/connector/internal/state"
	"github.com/user/connector/internal/types"
)

var (
	cfgPath string
	plain   bool
)

var rootCmd = &cobra.Command{
	Use:          "connector",
	Short:        "Chat with the event-discovery assistant",
	Long:         "Connector onboards you with a short profile questionnaire, then lets you chat with the assistant to find local events.",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		envErr := godotenv.Load()
		cfg := loadConfig()
		setupLogging(cfg.LogLevel)
		if envErr != nil {
			slog.Debug("no .env file found, using environment variables")
		}
	},
	RunE: runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config",
		filepath.Join(os.Getenv("HOME"), ".connector", "config.json"), "config file path")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "disable colors and markdown rendering")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the config file or exits.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(logLevel string) {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// openStore opens the configured key-value store. It returns nil when the
// store cannot be opened; identity then falls back to an ephemeral value.
func openStore(cfg *config.Config) types.KV {
	path := cfg.StoragePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		slog.Warn("create storage directory failed", "path", path, "error", err)
		return nil
	}
	kv, err := state.Open(cfg.Storage.Backend, path)
	if err != nil {
		slog.Warn("open storage failed", "backend", cfg.Storage.Backend, "path", path, "error", err)
		return nil
	}
	return kv
}
