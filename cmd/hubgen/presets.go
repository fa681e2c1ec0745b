package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPresetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := a.registry(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTASK\tMODEL\tDESCRIPTION")
			for _, name := range registry.Names() {
				p, _ := registry.Get(name)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.TaskOrDefault(), p.ModelID, p.Description)
			}
			return w.Flush()
		},
	}
}
