package main

import (
	"hubgen"

	"github.com/spf13/cobra"
)

const captionLongDesc string = `Caption an image with a captioning preset.

Examples:
  hubgen caption rabbit.jpg
  hubgen caption rabbit.png --preset caption-detailed
  hubgen caption rabbit.png --prompt "What is the rabbit eating?"`

const captionShortDesc string = "Caption an image"

func newCaptionCmd(a *app) *cobra.Command {
	flags := &runFlags{}
	var preset string

	cmd := &cobra.Command{
		Use:   "caption <image>",
		Short: captionShortDesc,
		Long:  captionLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img := hubgen.Image{Path: args[0]}
			// Fail on unreadable images before any backend login.
			if _, err := img.Bytes(); err != nil {
				return err
			}
			return execute(cmd.Context(), cmd, a, flags, preset, []hubgen.Image{img})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&preset, "preset", "caption", "Captioning preset")

	return cmd
}
