package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hubgen"
	"hubgen/experiment"
	"hubgen/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

type Options struct {
	Logger hubgen.RunLogger
	Sinks  []store.Sink
	Tracer trace.Tracer
	Meter  metric.Meter
}

// Runner executes presets against a generator: one attempt, an optional
// retry when required sections are missing, post-processing, then persistence.
type Runner struct {
	gen    hubgen.Generator
	logger hubgen.RunLogger
	sinks  []store.Sink
	tracer trace.Tracer
	inst   instruments
}

type instruments struct {
	runs         metric.Int64Counter
	runsFailed   metric.Int64Counter
	attempts     metric.Int64Counter
	retries      metric.Int64Counter
	missing      metric.Int64Counter
	latency      metric.Float64Histogram
	outputLength metric.Int64Gauge
}

func NewRunner(gen hubgen.Generator, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = hubgen.NewNoOpRunLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = tracenoop.NewTracerProvider().Tracer(hubgen.TracerName)
	}
	if opts.Meter == nil {
		opts.Meter = metricnoop.NewMeterProvider().Meter(hubgen.TracerName)
	}

	return &Runner{
		gen:    gen,
		logger: opts.Logger,
		sinks:  opts.Sinks,
		tracer: opts.Tracer,
		inst:   newInstruments(opts.Meter),
	}
}

func newInstruments(m metric.Meter) instruments {
	var inst instruments
	inst.runs, _ = m.Int64Counter("hubgen_runs_total",
		metric.WithDescription("Total number of experiment runs started"))
	inst.runsFailed, _ = m.Int64Counter("hubgen_runs_failed_total",
		metric.WithDescription("Total number of experiment runs that failed"))
	inst.attempts, _ = m.Int64Counter("hubgen_attempts_total",
		metric.WithDescription("Total number of generation attempts"))
	inst.retries, _ = m.Int64Counter("hubgen_retries_total",
		metric.WithDescription("Total number of retries triggered by missing sections"))
	inst.missing, _ = m.Int64Counter("hubgen_missing_sections_total",
		metric.WithDescription("Total number of required sections missing from final outputs"))
	inst.latency, _ = m.Float64Histogram("generation_latency_seconds",
		metric.WithDescription("Time taken by the backend to generate in seconds"),
		metric.WithUnit("s"))
	inst.outputLength, _ = m.Int64Gauge("output_length_chars",
		metric.WithDescription("Length of the final output in characters"))
	return inst
}

// Run executes preset once, retrying a single time if required sections are missing.
func (r *Runner) Run(ctx context.Context, preset experiment.Preset, in Input) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "Runner.Run", trace.WithAttributes(
		attribute.String("preset", preset.Name),
		attribute.String("backend", r.gen.Name()),
	))
	defer span.End()

	attrs := metric.WithAttributes(
		attribute.String("preset", preset.Name),
		attribute.String("backend", r.gen.Name()),
	)
	r.inst.runs.Add(ctx, 1, attrs)

	fail := func(err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.inst.runsFailed.Add(ctx, 1, attrs)
		slog.Error("RUNNER: Run failed", "preset", preset.Name, "error", err)
		return nil, err
	}

	prompt := in.Prompt
	if prompt == "" {
		prompt = preset.Prompt
	}
	// An empty model id leaves the choice to the backend's default.
	modelID := in.ModelID
	if modelID == "" {
		modelID = preset.ModelFor(r.gen.Name())
	}
	params := preset.Params.Merge(in.Params)
	if in.Greedy {
		params.DoSample = false
	}
	params = params.WithDefaults()

	if err := params.Validate(); err != nil {
		return fail(err)
	}
	switch preset.TaskOrDefault() {
	case experiment.TaskCaption:
		if len(in.Images) == 0 {
			return fail(fmt.Errorf("%w: preset %q needs an image", hubgen.ErrImageLoadFailed, preset.Name))
		}
	default:
		if strings.TrimSpace(prompt) == "" {
			return fail(hubgen.ErrEmptyPrompt)
		}
	}

	res := &Result{
		ID:        uuid.NewString(),
		Preset:    preset.Name,
		Backend:   r.gen.Name(),
		ModelID:   modelID,
		Prompt:    prompt,
		Heading:   preset.HeadingOrDefault(),
		StartedAt: time.Now().UTC(),
	}
	span.SetAttributes(attribute.String("run_id", res.ID), attribute.String("model_id", modelID))

	slog.Info("RUNNER: Starting run", "run_id", res.ID, "preset", preset.Name, "backend", res.Backend, "model", modelID)

	req := hubgen.Request{
		ModelID: modelID,
		Prompt:  prompt,
		Images:  in.Images,
		Params:  params,
	}

	first, err := r.attempt(ctx, res, preset, 1, req)
	res.Attempts = append(res.Attempts, first)
	if err != nil {
		return fail(fmt.Errorf("generation failed: %w", err))
	}
	if first.ModelID != "" {
		res.ModelID = first.ModelID
	}

	chosen := first
	if len(first.Missing) > 0 {
		slog.Info("RUNNER: Required sections missing, retrying once", "run_id", res.ID, "missing", first.Missing)
		r.inst.retries.Add(ctx, 1, attrs)
		res.Retried = true

		req.Params = preset.EffectiveRetryParams(params)
		if in.Greedy {
			req.Params.DoSample = false
		}
		second, err := r.attempt(ctx, res, preset, 2, req)
		res.Attempts = append(res.Attempts, second)
		switch {
		case err != nil:
			slog.Warn("RUNNER: Retry failed, keeping first output", "run_id", res.ID, "error", err)
		case len(second.Missing) <= len(first.Missing):
			chosen = second
		default:
			slog.Info("RUNNER: Retry missed more sections, keeping first output", "run_id", res.ID,
				"first_missing", len(first.Missing), "retry_missing", len(second.Missing))
		}
	}

	res.Text = AppendBoilerplate(chosen.Output, preset.Boilerplate)
	res.Missing = chosen.Missing
	res.Complete = len(res.Missing) == 0
	res.Duration = time.Since(res.StartedAt)

	r.inst.missing.Add(ctx, int64(len(res.Missing)), attrs)
	r.inst.outputLength.Record(ctx, int64(len(res.Text)), attrs)
	span.SetAttributes(
		attribute.Bool("complete", res.Complete),
		attribute.Bool("retried", res.Retried),
		attribute.Int("attempts", len(res.Attempts)),
	)

	slog.Info("RUNNER: Run finished",
		"run_id", res.ID,
		"complete", res.Complete,
		"retried", res.Retried,
		"output_length", len(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
	)

	if err := r.save(ctx, res); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}

	span.SetStatus(codes.Ok, "")
	return res, nil
}

func (r *Runner) attempt(ctx context.Context, res *Result, preset experiment.Preset, n int, req hubgen.Request) (Attempt, error) {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("Runner.Attempt.%d", n), trace.WithAttributes(
		attribute.Int("attempt", n),
		attribute.Int("max_new_tokens", req.Params.MaxNewTokens),
		attribute.Float64("temperature", req.Params.Temperature),
	))
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("backend", r.gen.Name()), attribute.Int("attempt", n))
	r.inst.attempts.Add(ctx, 1, attrs)

	start := time.Now()
	resp, err := r.gen.Generate(ctx, req)
	latency := time.Since(start)
	if resp.Latency > 0 {
		latency = resp.Latency
	}
	r.inst.latency.Record(ctx, latency.Seconds(), attrs)

	a := Attempt{Number: n, Params: req.Params, Latency: latency}
	entry := hubgen.AttemptLog{
		RunID:     res.ID,
		Attempt:   n,
		Timestamp: start,
		Preset:    preset.Name,
		ModelID:   req.ModelID,
		Prompt:    req.Prompt,
		Params:    req.Params,
		LatencyMs: latency.Milliseconds(),
	}

	if err != nil {
		a.Error = err.Error()
		entry.Error = a.Error
		r.logAttempt(entry)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return a, err
	}

	a.ModelID = resp.ModelID
	a.Output = Clean(resp.Text, req.Prompt)
	a.Missing = MissingSections(a.Output, preset.RequiredSections)
	a.FinishReason = resp.FinishReason
	a.TokenCount = resp.TokenCount

	entry.Output = a.Output
	entry.Missing = a.Missing
	r.logAttempt(entry)

	span.SetAttributes(
		attribute.Int("output_length", len(a.Output)),
		attribute.Int("missing_sections", len(a.Missing)),
		attribute.String("finish_reason", a.FinishReason),
	)
	slog.Info("RUNNER: Attempt finished",
		"run_id", res.ID,
		"attempt", n,
		"latency_ms", latency.Milliseconds(),
		"output_length", len(a.Output),
		"missing", a.Missing,
	)
	return a, nil
}

func (r *Runner) logAttempt(entry hubgen.AttemptLog) {
	if err := r.logger.LogAttempt(entry); err != nil {
		slog.Warn("RUNNER: Failed to log attempt", "run_id", entry.RunID, "attempt", entry.Attempt, "error", err)
	}
}

// save writes res to every sink. Failures are logged; an error is returned
// only when every sink failed.
func (r *Runner) save(ctx context.Context, res *Result) error {
	if len(r.sinks) == 0 {
		return nil
	}

	rec := res.Record()
	var errs []error
	for _, sink := range r.sinks {
		if err := sink.Save(ctx, rec); err != nil {
			slog.Warn("RUNNER: Failed to save result", "run_id", res.ID, "sink", fmt.Sprintf("%T", sink), "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(r.sinks) {
		return fmt.Errorf("failed to save result: %w", errors.Join(errs...))
	}
	return nil
}
