package main

import (
	"context"
	"fmt"
	"log/slog"

	"hubgen"
	"hubgen/generator/hub"
	"hubgen/runner"

	"github.com/spf13/cobra"
)

const runLongDesc string = `Run a preset once and print the generated text.

When the preset lists required sections and the output misses any of them,
the generation is retried exactly once with adjusted parameters.

Examples:
  hubgen run
  hubgen run story-outline --temperature 0.9
  hubgen run product-blurb --greedy
  hubgen run haiku --backend ollama --model llama3.2`

const runShortDesc string = "Run a generation preset"

const defaultPreset = "haiku"

// runFlags are per-run overrides shared by run and caption.
type runFlags struct {
	prompt  string
	modelID string
	backend string
	dump    bool
	greedy  bool
	params  hubgen.GenerationParams
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.prompt, "prompt", "", "Prompt overriding the preset's")
	cmd.Flags().StringVar(&f.modelID, "model", "", "Model id overriding the preset's")
	cmd.Flags().StringVar(&f.backend, "backend", "", "Backend: hub, bedrock, ollama or mock (default $BACKEND)")
	cmd.Flags().BoolVar(&f.dump, "dump", false, "Dump the full result to stderr")
	cmd.Flags().BoolVar(&f.greedy, "greedy", false, "Disable sampling even when the preset samples")
	cmd.Flags().Float64Var(&f.params.Temperature, "temperature", 0, "Sampling temperature")
	cmd.Flags().IntVar(&f.params.TopK, "top-k", 0, "Top-k sampling cutoff")
	cmd.Flags().Float64Var(&f.params.TopP, "top-p", 0, "Nucleus sampling probability")
	cmd.Flags().IntVar(&f.params.NumBeams, "num-beams", 0, "Beam count")
	cmd.Flags().IntVar(&f.params.MaxNewTokens, "max-new-tokens", 0, "Maximum number of generated tokens")
	cmd.Flags().Float64Var(&f.params.RepetitionPenalty, "repetition-penalty", 0, "Repetition penalty")
}

func newRunCmd(a *app) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [preset]",
		Short: runShortDesc,
		Long:  runLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := defaultPreset
			if len(args) == 1 {
				name = args[0]
			}
			return execute(cmd.Context(), cmd, a, flags, name, nil)
		},
	}
	flags.register(cmd)

	return cmd
}

// execute resolves the preset and backend, runs once, prints and notifies.
func execute(ctx context.Context, cmd *cobra.Command, a *app, flags *runFlags, presetName string, images []hubgen.Image) error {
	ctx, cancel := context.WithTimeout(ctx, a.run.RequestTimeout)
	defer cancel()

	if a.backend(flags.backend) == hub.Name {
		if err := a.hub.Validate(); err != nil {
			return err
		}
	}

	registry, err := a.registry(ctx)
	if err != nil {
		return err
	}
	preset, err := registry.Get(presetName)
	if err != nil {
		return err
	}

	gen, err := a.generator(ctx, flags.backend, preset)
	if err != nil {
		return err
	}

	sinks, err := a.sinks(ctx)
	if err != nil {
		return err
	}

	tel, err := a.telemetry(ctx)
	if err != nil {
		return err
	}

	in := runner.Input{
		Prompt:  flags.prompt,
		Images:  images,
		ModelID: flags.modelID,
		Params:  a.model.Params().Merge(flags.params),
		Greedy:  flags.greedy,
	}
	if in.ModelID == "" {
		in.ModelID = a.model.ModelID
	}

	modelID := in.ModelID
	if modelID == "" {
		modelID = preset.ModelFor(gen.Name())
	}
	if modelID == "" {
		modelID = gen.Name()
	}
	runLog, err := a.runLogger(modelID)
	if err != nil {
		return err
	}

	r := runner.NewRunner(gen, runner.Options{
		Logger: runLog,
		Sinks:  sinks,
		Tracer: tel.Tracer,
		Meter:  tel.Meter,
	})

	res, err := r.Run(ctx, preset, in)
	if res == nil {
		return err
	}
	if err != nil {
		slog.Warn("RESULT: Result was generated but not saved", "error", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Render())
	if !res.Complete {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: output is missing sections: %v\n", res.Missing)
	}
	if flags.dump {
		hubgen.Dump(cmd.ErrOrStderr(), res)
	}

	a.notify(ctx, res)
	return nil
}
