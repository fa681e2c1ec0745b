package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"hubgen"
	"hubgen/experiment"
	"hubgen/experiment/source"
	"hubgen/generator/bedrock"
	"hubgen/generator/hub"
	"hubgen/generator/mock"
	"hubgen/generator/ollama"
	"hubgen/runner"
	"hubgen/slack"
	"hubgen/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// app holds the environment configuration and the resources opened from it
// for the lifetime of one command.
type app struct {
	hub   hubgen.HubConfig
	model hubgen.ModelConfig
	run   hubgen.RunConfig
	log   hubgen.LogConfig

	awsCfg  *aws.Config
	closers []func() error
}

func (a *app) load() error {
	for _, target := range []any{&a.hub, &a.model, &a.run, &a.log} {
		if err := hubgen.LoadConfig(target); err != nil {
			return fmt.Errorf("SETUP: failed to decode config: %w", err)
		}
	}

	logger, closeLog := hubgen.NewLogger(a.log)
	slog.SetDefault(logger)
	a.closers = append(a.closers, closeLog)
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) aws(ctx context.Context) (aws.Config, error) {
	if a.awsCfg != nil {
		return *a.awsCfg, nil
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	a.awsCfg = &cfg
	return cfg, nil
}

func (a *app) httpClient() *http.Client {
	return &http.Client{Timeout: a.run.RequestTimeout}
}

// login checks the hub token is present and accepted before any generation.
func (a *app) login(ctx context.Context) (*hub.Client, *hub.Identity, error) {
	if err := a.hub.Validate(); err != nil {
		return nil, nil, err
	}

	c, err := hub.NewClient(hub.ClientOpts{
		InferenceEndpoint: a.hub.InferenceEndpoint,
		APIEndpoint:       a.hub.APIEndpoint,
		Token:             a.hub.Token,
		WaitForModel:      a.hub.WaitForModel,
		HTTPClient:        a.httpClient(),
	})
	if err != nil {
		return nil, nil, err
	}

	id, err := c.WhoAmI(ctx)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("SETUP: Logged in to hub", "name", id.Name, "type", id.Type, "token", id.TokenName)
	return c, id, nil
}

func (a *app) backend(override string) string {
	if override != "" {
		return override
	}
	return a.run.Backend
}

func (a *app) generator(ctx context.Context, backend string, preset experiment.Preset) (hubgen.Generator, error) {
	switch backend = a.backend(backend); backend {
	case hub.Name:
		c, _, err := a.login(ctx)
		if err != nil {
			return nil, err
		}
		return c, nil

	case bedrock.Name:
		cfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		return bedrock.NewClient(bedrockruntime.NewFromConfig(cfg), bedrock.Options{}), nil

	case ollama.Name:
		return ollama.NewClient(ollama.ClientOpts{
			BaseEndpoint: a.run.OllamaEndpoint,
			HTTPClient:   a.httpClient(),
			Format:       preset.OutputSchema,
		}), nil

	case mock.Name:
		return mock.NewGenerator(), nil

	default:
		return nil, fmt.Errorf("unknown backend %q (want hub, bedrock, ollama or mock)", backend)
	}
}

func (a *app) registry(ctx context.Context) (*experiment.Registry, error) {
	switch {
	case a.run.PresetsS3Bucket != "" && a.run.PresetsS3Key != "":
		cfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		src := source.NewS3Loader(s3.NewFromConfig(cfg), a.run.PresetsS3Bucket, a.run.PresetsS3Key)
		return experiment.LoadRegistry(ctx, src, a.run.PresetsS3Key)

	case a.run.PresetsPath != "":
		return experiment.LoadRegistry(ctx, source.NewFileLoader(a.run.PresetsPath), a.run.PresetsPath)

	default:
		return experiment.Builtin(), nil
	}
}

func (a *app) sinks(ctx context.Context) ([]store.Sink, error) {
	var sinks []store.Sink

	if a.run.ResultsDir != "" {
		sinks = append(sinks, store.NewFileSink(a.run.ResultsDir))
	}

	if a.run.ResultsDB != "" {
		db, err := a.openLedger(ctx)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, db)
	}

	if a.run.ResultsS3Bucket != "" {
		cfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, store.NewS3Sink(s3.NewFromConfig(cfg), a.run.ResultsS3Bucket, a.run.ResultsS3Prefix))
	}

	return sinks, nil
}

func (a *app) openLedger(ctx context.Context) (*store.SQLiteSink, error) {
	if dir := filepath.Dir(a.run.ResultsDB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := store.OpenSQLite(ctx, a.run.ResultsDB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	return db, nil
}

func (a *app) telemetry(ctx context.Context) (hubgen.Telemetry, error) {
	if !a.run.OtelEnabled {
		return hubgen.NoopTelemetry(), nil
	}

	tel, err := hubgen.InitOtel(ctx)
	if err != nil {
		return hubgen.Telemetry{}, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.closers = append(a.closers, func() error {
		return tel.Shutdown(context.Background())
	})
	return tel, nil
}

// runLogger writes a JSON run log under RUN_LOG_DIR, or discards attempts when unset.
func (a *app) runLogger(modelID string) (hubgen.RunLogger, error) {
	if a.run.RunLogDir == "" {
		return hubgen.NewNoOpRunLogger(), nil
	}

	if err := os.MkdirAll(a.run.RunLogDir, 0o755); err != nil {
		return nil, err
	}
	path := hubgen.NewRunLogFilePath(a.run.RunLogDir, modelID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}

	logger := hubgen.NewFileRunLogger(f)
	a.closers = append(a.closers, func() error {
		return errors.Join(logger.Flush(), f.Close())
	})
	return logger, nil
}

func (a *app) notify(ctx context.Context, res *runner.Result) {
	if a.run.SlackWebhookURL == "" {
		return
	}
	var n hubgen.Notifier = slack.NewClient(a.run.SlackWebhookURL, a.httpClient())
	if err := n.PostMessage(ctx, a.run.SlackChannel, runner.FormatNotification(res)); err != nil {
		slog.Error("Failed to post result to Slack", "error", err)
	}
}
