package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/user/connector/internal/identity"
)

func init() {
	rootCmd.AddCommand(identityCmd)
}

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Print this device's identity, creating it if absent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		kv := openStore(cfg)
		if kv != nil {
			defer kv.Close()
		}
		id := identity.New(kv).GetOrCreate(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}
