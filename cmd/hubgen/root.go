package main

import (
	"github.com/spf13/cobra"
)

const rootLongDesc string = `Run text generation and image captioning experiments against hosted models.

Each experiment is a preset: a model, a prompt, decoding parameters and the
post-processing applied to the output. Configuration comes from the
environment (HF_TOKEN, BACKEND, RESULTS_DB, ...); flags override it per run.`

// newRootCmd wires every subcommand to a. The caller closes a after Execute
// so run logs are flushed even when a command fails.
func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "hubgen",
		Short:        "Model hub generation experiments",
		Long:         rootLongDesc,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	cmd.AddCommand(
		newRunCmd(a),
		newCaptionCmd(a),
		newPresetsCmd(a),
		newWhoAmICmd(a),
		newHistoryCmd(a),
	)

	return cmd
}
