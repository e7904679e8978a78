package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/connector/internal/config"
	"github.com/user/connector/internal/state"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		out := cmd.OutOrStdout()
		scanner := bufio.NewScanner(cmd.InOrStdin())

		fmt.Fprintln(out, "Connector Setup Wizard")
		fmt.Fprintln(out, "Press Enter to accept the default value shown in brackets.")
		fmt.Fprintln(out)

		runSetup(scanner, out, cfg)

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, "Configuration saved to", cfgPath)
		return nil
	},
}

func runSetup(scanner *bufio.Scanner, out io.Writer, cfg *config.Config) {
	// 1. Assistant base URL
	cfg.APIBaseURL = strings.TrimRight(prompt(scanner, out, "Assistant base URL", cfg.APIBaseURL), "/")

	// 2. Storage backend
	for {
		backend := prompt(scanner, out, "Storage backend (file|sqlite)", cfg.Storage.Backend)
		if backend == state.BackendFile || backend == state.BackendSQLite {
			cfg.Storage.Backend = backend
			break
		}
		fmt.Fprintf(out, "Unknown backend %q.\n", backend)
		if backend == cfg.Storage.Backend {
			// Input exhausted with an invalid default; keep the file store.
			cfg.Storage.Backend = state.BackendFile
			break
		}
	}

	// 3. Log level
	cfg.LogLevel = prompt(scanner, out, "Log level (debug|info|warn|error)", cfg.LogLevel)
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, out io.Writer, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
