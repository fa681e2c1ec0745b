package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWhoAmICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Check the HF_TOKEN against the hub",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, id, err := a.login(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", id.Name, id.Type)
			if id.TokenName != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "token: %s [%s]\n", id.TokenName, id.TokenRole)
			}
			return nil
		},
	}
}
