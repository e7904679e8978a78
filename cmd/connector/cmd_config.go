package main

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/connector/internal/config"
	"github.com/user/connector/internal/state"
)

// envKeys maps config keys to the environment variables that override them.
var envKeys = map[string]string{
	"api_base_url": "API_BASE_URL",
	"data_dir":     "CONNECTOR_DATA_DIR",
	"log_level":    "CONNECTOR_LOG_LEVEL",
}

var logLevels = []string{"debug", "info", "warn", "error"}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List effective configuration values and where they come from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := config.ListValues(loadConfig())
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}

		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE\tSOURCE")
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%v\t%s\n", k, values[k], valueSource(k))
		}
		return w.Flush()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a value from the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, err := config.GetValue(cfgPath, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), val)
		if env := envKeys[args[0]]; env != "" && os.Getenv(env) != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "note: %s is set and overrides this value\n", env)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a value in the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := checkSetting(key, value); err != nil {
			return err
		}
		if err := config.SetValue(cfgPath, key, value); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

// valueSource reports whether key's effective value comes from the
// environment or the config file.
func valueSource(key string) string {
	if env := envKeys[key]; env != "" && os.Getenv(env) != "" {
		return "env " + env
	}
	return "file"
}

// checkSetting rejects values the client could not start with.
func checkSetting(key, value string) error {
	switch key {
	case "storage.backend":
		if err := state.CheckBackend(value); err != nil {
			return fmt.Errorf("%w (want %s or %s)", err, state.BackendFile, state.BackendSQLite)
		}
	case "log_level":
		if !slices.Contains(logLevels, value) {
			return fmt.Errorf("invalid log level %q (want one of %v)", value, logLevels)
		}
	case "api_base_url":
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid api_base_url %q: want an http(s) URL", value)
		}
	}
	return nil
}
