package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"hubgen"
	"hubgen/experiment"
	"hubgen/experiment/source"
	"hubgen/generator/bedrock"
	"hubgen/generator/hub"
	"hubgen/generator/ollama"
	"hubgen/runner"
	"hubgen/store"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Event struct {
	Preset      string `json:"preset"`
	Prompt      string `json:"prompt,omitempty"`
	ModelID     string `json:"model_id,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

type handler struct {
	registry *experiment.Registry
	runner   *runner.Runner
}

func (h *handler) Handle(ctx context.Context, ev Event) (*runner.Result, error) {
	name := ev.Preset
	if name == "" {
		name = "haiku"
	}
	preset, err := h.registry.Get(name)
	if err != nil {
		return nil, err
	}

	in := runner.Input{Prompt: ev.Prompt, ModelID: ev.ModelID}
	if ev.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(ev.ImageBase64)
		if err != nil {
			return nil, fmt.Errorf("%w: image_base64: %v", hubgen.ErrImageLoadFailed, err)
		}
		in.Images = []hubgen.Image{{Data: data}}
	}

	res, err := h.runner.Run(ctx, preset, in)
	if err != nil {
		slog.Error("RESULT: Error handling event", "preset", name, "error", err)
		return res, err
	}
	slog.Info("RESULT: Generated", "run_id", res.ID, "complete", res.Complete, "retried", res.Retried)
	return res, nil
}

// newGenerator builds the backend named by BACKEND. A hub token is checked
// with whoami so a bad token fails the cold start, not the first event.
func newGenerator(ctx context.Context, runConfig hubgen.RunConfig, hubConfig hubgen.HubConfig, awsCfg aws.Config) (hubgen.Generator, error) {
	httpClient := &http.Client{Timeout: runConfig.RequestTimeout}

	switch runConfig.Backend {
	case hub.Name:
		c, err := hub.NewClient(hub.ClientOpts{
			InferenceEndpoint: hubConfig.InferenceEndpoint,
			APIEndpoint:       hubConfig.APIEndpoint,
			Token:             hubConfig.Token,
			WaitForModel:      hubConfig.WaitForModel,
			HTTPClient:        httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create hub client: %w", err)
		}
		if _, err := c.WhoAmI(ctx); err != nil {
			return nil, fmt.Errorf("hub login failed: %w", err)
		}
		return c, nil

	case bedrock.Name:
		return bedrock.NewClient(bedrockruntime.NewFromConfig(awsCfg), bedrock.Options{}), nil

	case ollama.Name:
		return ollama.NewClient(ollama.ClientOpts{
			BaseEndpoint: runConfig.OllamaEndpoint,
			HTTPClient:   httpClient,
		}), nil

	default:
		return nil, fmt.Errorf("unknown backend %q (want hub, bedrock or ollama)", runConfig.Backend)
	}
}

func main() {
	ctx := context.Background()

	var hubConfig hubgen.HubConfig
	var runConfig hubgen.RunConfig
	var logConfig hubgen.LogConfig
	for _, target := range []any{&hubConfig, &runConfig, &logConfig} {
		if err := hubgen.LoadConfig(target); err != nil {
			log.Fatalf("SETUP: Failed to decode: %s", err)
		}
	}

	logger, _ := hubgen.NewLogger(logConfig)
	slog.SetDefault(logger)

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		log.Fatalf("SETUP: Failed to load AWS config: %s", err)
	}
	s3Client := s3.NewFromConfig(awsCfg)

	gen, err := newGenerator(ctx, runConfig, hubConfig, awsCfg)
	if err != nil {
		log.Fatalf("SETUP: Failed to create generator: %s", err)
	}

	registry := experiment.Builtin()
	if runConfig.PresetsS3Bucket != "" && runConfig.PresetsS3Key != "" {
		src := source.NewS3Loader(s3Client, runConfig.PresetsS3Bucket, runConfig.PresetsS3Key)
		if registry, err = experiment.LoadRegistry(ctx, src, runConfig.PresetsS3Key); err != nil {
			log.Fatalf("SETUP: Failed to load presets: %s", err)
		}
	}

	var sinks []store.Sink
	if runConfig.ResultsS3Bucket != "" {
		sinks = append(sinks, store.NewS3Sink(s3Client, runConfig.ResultsS3Bucket, runConfig.ResultsS3Prefix))
	}

	tel := hubgen.NoopTelemetry()
	if runConfig.OtelEnabled {
		if tel, err = hubgen.InitOtel(ctx); err != nil {
			log.Fatalf("SETUP: Failed to initialize OpenTelemetry: %s", err)
		}
	}

	slog.Info("SETUP: Lambda ready", "backend", gen.Name(), "presets", len(*registry), "sinks", len(sinks))

	h := &handler{
		registry: registry,
		runner: runner.NewRunner(gen, runner.Options{
			Logger: hubgen.NewStdoutRunLogger(),
			Sinks:  sinks,
			Tracer: tel.Tracer,
			Meter:  tel.Meter,
		}),
	}

	lambda.StartWithOptions(h.Handle, lambda.WithEnableSIGTERM(func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			slog.Error("SHUTDOWN: Failed to shutdown OpenTelemetry", "error", err)
		}
	}))
}
