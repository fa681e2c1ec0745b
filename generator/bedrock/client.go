package bedrock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hubgen"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const (
	Name = "bedrock"

	// defaultModelID is an inference profile ID, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type Options struct {
	// DefaultModelID is used when a request carries no model id.
	DefaultModelID string
}

type Client struct {
	brc  bedrockRuntimeClient
	opts Options
}

func NewClient(brc bedrockRuntimeClient, opts Options) *Client {
	if opts.DefaultModelID == "" {
		opts.DefaultModelID = defaultModelID
	}
	return &Client{
		brc:  brc,
		opts: opts,
	}
}

func (c *Client) Name() string { return Name }

// Generate sends a single user turn through the Converse API.
// Beam search and repetition penalty have no Converse equivalent and are ignored.
func (c *Client) Generate(ctx context.Context, req hubgen.Request) (hubgen.Response, error) {
	modelID := req.ModelID
	if modelID == "" {
		modelID = c.opts.DefaultModelID
	}

	slog.Info("BEDROCK_CLIENT: Invoked", "model", modelID, "prompt_len", len(req.Prompt), "images", len(req.Images))

	msg := types.Message{Role: types.ConversationRoleUser}
	for _, img := range req.Images {
		block, err := imageBlock(img)
		if err != nil {
			return hubgen.Response{}, err
		}
		msg.Content = append(msg.Content, block)
	}
	if strings.TrimSpace(req.Prompt) != "" {
		msg.Content = append(msg.Content, &types.ContentBlockMemberText{Value: req.Prompt})
	}
	if len(msg.Content) == 0 {
		return hubgen.Response{}, hubgen.ErrEmptyPrompt
	}

	in := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(modelID),
		Messages:        []types.Message{msg},
		InferenceConfig: inferenceConfig(req.Params),
	}
	if req.Params.TopK > 0 {
		in.AdditionalModelRequestFields = document.NewLazyDocument(map[string]any{"top_k": req.Params.TopK})
	}
	if req.Params.NumBeams > 1 || req.Params.RepetitionPenalty != 0 {
		slog.Debug("BEDROCK_CLIENT: ignoring unsupported params", "num_beams", req.Params.NumBeams, "repetition_penalty", req.Params.RepetitionPenalty)
	}

	start := time.Now()
	out, err := c.brc.Converse(ctx, in)
	if err != nil {
		slog.Error("BEDROCK_CLIENT: Converse failed", "error", err, "model", modelID)
		return hubgen.Response{}, fmt.Errorf("%w: %v", hubgen.ErrGenerationFailed, err)
	}
	latency := time.Since(start)

	var outputTokens int32
	if out.Usage != nil {
		outputTokens = aws.ToInt32(out.Usage.OutputTokens)
	}
	slog.Info("BEDROCK_CLIENT: Converse succeeded",
		"stop_reason", out.StopReason,
		"latency_ms", latency.Milliseconds(),
		"output_tokens", outputTokens,
	)

	resp := hubgen.Response{
		Text:         textFromOutput(out),
		ModelID:      modelID,
		TokenCount:   int(outputTokens),
		Latency:      latency,
		FinishReason: string(out.StopReason),
	}

	switch out.StopReason {
	case types.StopReasonMaxTokens:
		slog.Warn("BEDROCK_CLIENT: Model hit max tokens; returning partial text")
		resp.FinishReason = "length"
		return resp, nil

	case types.StopReasonGuardrailIntervened, types.StopReasonContentFiltered:
		slog.Warn("BEDROCK_CLIENT: Model response blocked by Bedrock safety filters")
		return hubgen.Response{}, fmt.Errorf("%w: response blocked by safety filters", hubgen.ErrGenerationFailed)

	default:
		return resp, nil
	}
}

func inferenceConfig(p hubgen.GenerationParams) *types.InferenceConfiguration {
	cfg := &types.InferenceConfiguration{}
	if p.MaxNewTokens > 0 {
		cfg.MaxTokens = aws.Int32(int32(p.MaxNewTokens))
	}
	// Converse has no do_sample switch; greedy decoding is temperature 0.
	if p.DoSample {
		cfg.Temperature = aws.Float32(float32(p.Temperature))
		if p.TopP > 0 {
			cfg.TopP = aws.Float32(float32(p.TopP))
		}
	} else {
		cfg.Temperature = aws.Float32(0)
	}
	if len(p.Stop) > 0 {
		cfg.StopSequences = p.Stop
	}
	return cfg
}

func imageBlock(img hubgen.Image) (types.ContentBlock, error) {
	data, err := img.Bytes()
	if err != nil {
		return nil, err
	}

	var format types.ImageFormat
	switch ct := img.ContentType(data); ct {
	case "image/png":
		format = types.ImageFormatPng
	case "image/jpeg":
		format = types.ImageFormatJpeg
	case "image/gif":
		format = types.ImageFormatGif
	case "image/webp":
		format = types.ImageFormatWebp
	default:
		return nil, fmt.Errorf("%w: unsupported image type %q", hubgen.ErrImageLoadFailed, ct)
	}

	return &types.ContentBlockMemberImage{Value: types.ImageBlock{
		Format: format,
		Source: &types.ImageSourceMemberBytes{Value: data},
	}}, nil
}

// textFromOutput joins the assistant's text blocks with '\n'.
func textFromOutput(out *bedrockruntime.ConverseOutput) string {
	if out == nil || out.Output == nil {
		return ""
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil || len(msg.Value.Content) == 0 {
		return ""
	}

	texts := make([]string, 0, len(msg.Value.Content))
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}
	return strings.Join(texts, "\n")
}

var _ hubgen.Generator = (*Client)(nil)
