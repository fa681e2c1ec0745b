package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"hubgen"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

const (
	Name = "ollama"

	defaultModelID = "llama3.2"
)

type options struct {
	NumPredict    int      `json:"num_predict,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	TopP          float64  `json:"top_p,omitempty"`
	RepeatPenalty float64  `json:"repeat_penalty,omitempty"`
	Seed          int64    `json:"seed,omitempty"`
	Stop          []string `json:"stop,omitempty"`
}

type Client struct {
	endpoint     string
	httpClient   hubgen.HTTPClient
	format       *jsonschema.Schema
	defaultModel string
}

type ClientOpts struct {
	BaseEndpoint string
	HTTPClient   hubgen.HTTPClient
	// DefaultModelID is sent when a request names no model. Defaults to llama3.2.
	DefaultModelID string
	// Format constrains output to a JSON schema when set.
	Format *jsonschema.Schema
}

func NewClient(opts ClientOpts) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.DefaultModelID == "" {
		opts.DefaultModelID = defaultModelID
	}
	return &Client{
		endpoint:     strings.TrimRight(opts.BaseEndpoint, "/") + "/api/generate",
		httpClient:   opts.HTTPClient,
		format:       opts.Format,
		defaultModel: opts.DefaultModelID,
	}
}

// WithFormat returns a copy of the client that requests schema-constrained output.
func (c *Client) WithFormat(schema *jsonschema.Schema) *Client {
	cp := *c
	cp.format = schema
	return &cp
}

func (c *Client) Name() string { return Name }

type wireRequest struct {
	Model   string             `json:"model"`
	Prompt  string             `json:"prompt"`
	Images  []string           `json:"images,omitempty"`
	Stream  bool               `json:"stream"`
	Format  *jsonschema.Schema `json:"format,omitempty"`
	Options options            `json:"options"`
}

type wireResponse struct {
	Model         string `json:"model"`
	Response      string `json:"response"`
	Done          bool   `json:"done"`
	DoneReason    string `json:"done_reason,omitempty"`
	EvalCount     int    `json:"eval_count,omitempty"`
	TotalDuration int64  `json:"total_duration,omitempty"`
}

// Generate calls /api/generate without streaming. Beam search is not
// available in Ollama and num_beams is ignored.
func (c *Client) Generate(ctx context.Context, req hubgen.Request) (hubgen.Response, error) {
	model := req.ModelID
	if model == "" {
		model = c.defaultModel
	}
	slog.Info("OLLAMA_CLIENT: Invoked", "model", model, "prompt_len", len(req.Prompt), "images", len(req.Images))

	if strings.TrimSpace(req.Prompt) == "" && !req.HasImages() {
		return hubgen.Response{}, hubgen.ErrEmptyPrompt
	}
	if req.Params.NumBeams > 1 {
		slog.Debug("OLLAMA_CLIENT: beam search unsupported, ignoring num_beams", "num_beams", req.Params.NumBeams)
	}

	wr := wireRequest{
		Model:   model,
		Prompt:  req.Prompt,
		Stream:  false,
		Format:  c.format,
		Options: toOptions(req.Params),
	}
	for _, img := range req.Images {
		data, err := img.Bytes()
		if err != nil {
			return hubgen.Response{}, err
		}
		wr.Images = append(wr.Images, base64.StdEncoding.EncodeToString(data))
	}

	reqBytes, err := json.Marshal(wr)
	if err != nil {
		return hubgen.Response{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(reqBytes))
	if err != nil {
		return hubgen.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return hubgen.Response{}, fmt.Errorf("%w: %v", hubgen.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return hubgen.Response{}, fmt.Errorf("%w: read response: %v", hubgen.ErrGenerationFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return hubgen.Response{}, fmt.Errorf("%w: OLLAMA_CLIENT: %s: %s", hubgen.ErrGenerationFailed, resp.Status, string(body))
	}

	var out wireResponse
	if err := json.Unmarshal(body, &out); err != nil {
		slog.Warn("OLLAMA_CLIENT: decode failed", "err", err, "body", string(body))
		return hubgen.Response{}, fmt.Errorf("%w: decode response: %v", hubgen.ErrGenerationFailed, err)
	}

	latency := time.Since(start)
	if out.TotalDuration > 0 {
		latency = time.Duration(out.TotalDuration)
	}

	finish := out.DoneReason
	if finish == "" && out.Done {
		finish = "stop"
	}

	return hubgen.Response{
		Text:         out.Response,
		ModelID:      model,
		FinishReason: finish,
		TokenCount:   out.EvalCount,
		Latency:      latency,
	}, nil
}

func toOptions(p hubgen.GenerationParams) options {
	o := options{
		NumPredict:    p.MaxNewTokens,
		TopK:          p.TopK,
		RepeatPenalty: p.RepetitionPenalty,
		Seed:          p.Seed,
		Stop:          p.Stop,
	}
	// Ollama always samples; greedy decoding is expressed as temperature 0.
	temp := 0.0
	if p.DoSample {
		temp = p.Temperature
		o.TopP = p.TopP
	}
	o.Temperature = &temp
	return o
}

var _ hubgen.Generator = (*Client)(nil)
