package main

import (
	"fmt"

	mappingvault "github.com/callmask/golang_services/internal/mapping_vault"
	"github.com/spf13/cobra"
)

func newGenKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-key",
		Short: "Print a new random MAPPING_KEY",
		Long: `Print a new base64 encoded 256 bit key for the mapping vault.
Rotating the key makes every live assignment unreadable; rotate between
assignment TTL windows or drain the pool first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := mappingvault.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}
