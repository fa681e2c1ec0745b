// Package hub generates text and captions through a hosted model hub's
// inference API, authenticating with a bearer token.
package hub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hubgen"
)

const Name = "hub"

type Client struct {
	inferenceEndpoint string
	apiEndpoint       string
	token             string
	waitForModel      bool
	httpClient        hubgen.HTTPClient
}

type ClientOpts struct {
	InferenceEndpoint string
	APIEndpoint       string
	Token             string
	WaitForModel      bool
	HTTPClient        hubgen.HTTPClient
}

func NewClient(opts ClientOpts) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, hubgen.ErrMissingToken
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Client{
		inferenceEndpoint: strings.TrimRight(opts.InferenceEndpoint, "/"),
		apiEndpoint:       strings.TrimRight(opts.APIEndpoint, "/"),
		token:             opts.Token,
		waitForModel:      opts.WaitForModel,
		httpClient:        opts.HTTPClient,
	}, nil
}

func (c *Client) Name() string { return Name }

type wireParameters struct {
	MaxNewTokens      int      `json:"max_new_tokens,omitempty"`
	NumBeams          int      `json:"num_beams,omitempty"`
	Temperature       float64  `json:"temperature,omitempty"`
	TopK              int      `json:"top_k,omitempty"`
	TopP              float64  `json:"top_p,omitempty"`
	RepetitionPenalty float64  `json:"repetition_penalty,omitempty"`
	DoSample          bool     `json:"do_sample"`
	EarlyStopping     bool     `json:"early_stopping,omitempty"`
	Seed              int64    `json:"seed,omitempty"`
	Stop              []string `json:"stop,omitempty"`
	ReturnFullText    *bool    `json:"return_full_text,omitempty"`
}

type wireOptions struct {
	WaitForModel bool `json:"wait_for_model"`
	UseCache     bool `json:"use_cache"`
}

type wireRequest struct {
	Inputs     any            `json:"inputs"`
	Parameters wireParameters `json:"parameters"`
	Options    wireOptions    `json:"options"`
}

type wireImageInput struct {
	Image string `json:"image"`
	Text  string `json:"text,omitempty"`
}

type wireGeneration struct {
	GeneratedText string `json:"generated_text"`
	Details       *struct {
		FinishReason    string `json:"finish_reason"`
		GeneratedTokens int    `json:"generated_tokens"`
	} `json:"details,omitempty"`
}

type wireError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`
}

// Generate calls the inference API for req.ModelID. Requests with images are
// sent as captioning requests.
func (c *Client) Generate(ctx context.Context, req hubgen.Request) (hubgen.Response, error) {
	if strings.TrimSpace(req.ModelID) == "" {
		return hubgen.Response{}, fmt.Errorf("%w: model id is required", hubgen.ErrGenerationFailed)
	}

	slog.Info("HUB_CLIENT: Invoked", "model", req.ModelID, "prompt_len", len(req.Prompt), "images", len(req.Images))

	body, contentType, err := c.buildRequest(req)
	if err != nil {
		return hubgen.Response{}, err
	}

	endpoint := c.inferenceEndpoint + "/models/" + escapeModelID(req.ModelID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return hubgen.Response{}, err
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	c.authorize(httpReq)
	if c.waitForModel {
		httpReq.Header.Set("X-Wait-For-Model", "true")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return hubgen.Response{}, fmt.Errorf("%w: %v", hubgen.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return hubgen.Response{}, fmt.Errorf("%w: read response: %v", hubgen.ErrGenerationFailed, err)
	}
	latency := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		return hubgen.Response{}, statusError(resp, respBody)
	}

	gen, err := decodeGeneration(respBody)
	if err != nil {
		slog.Warn("HUB_CLIENT: decode failed", "err", err, "body", truncate(string(respBody), 200))
		return hubgen.Response{}, fmt.Errorf("%w: %v", hubgen.ErrGenerationFailed, err)
	}

	out := hubgen.Response{
		Text:    gen.GeneratedText,
		ModelID: req.ModelID,
		Latency: latency,
	}
	if gen.Details != nil {
		out.FinishReason = gen.Details.FinishReason
		out.TokenCount = gen.Details.GeneratedTokens
	}

	slog.Info("HUB_CLIENT: Generation received", "model", req.ModelID, "text_len", len(out.Text), "latency_ms", latency.Milliseconds())
	return out, nil
}

// buildRequest returns the body and its content type. A caption request
// without a prompt is sent as raw image bytes.
func (c *Client) buildRequest(req hubgen.Request) ([]byte, string, error) {
	params := toWireParameters(req.Params)
	options := wireOptions{WaitForModel: c.waitForModel}

	if !req.HasImages() {
		if strings.TrimSpace(req.Prompt) == "" {
			return nil, "", hubgen.ErrEmptyPrompt
		}
		returnFull := false
		params.ReturnFullText = &returnFull
		b, err := json.Marshal(wireRequest{Inputs: req.Prompt, Parameters: params, Options: options})
		return b, "application/json", err
	}

	if len(req.Images) > 1 {
		slog.Warn("HUB_CLIENT: only the first image is captioned", "images", len(req.Images))
	}
	img := req.Images[0]
	data, err := img.Bytes()
	if err != nil {
		return nil, "", err
	}

	if strings.TrimSpace(req.Prompt) == "" {
		return data, img.ContentType(data), nil
	}

	b, err := json.Marshal(wireRequest{
		Inputs: wireImageInput{
			Image: base64.StdEncoding.EncodeToString(data),
			Text:  req.Prompt,
		},
		Parameters: params,
		Options:    options,
	})
	return b, "application/json", err
}

func toWireParameters(p hubgen.GenerationParams) wireParameters {
	return wireParameters{
		MaxNewTokens:      p.MaxNewTokens,
		NumBeams:          p.NumBeams,
		Temperature:       p.Temperature,
		TopK:              p.TopK,
		TopP:              p.TopP,
		RepetitionPenalty: p.RepetitionPenalty,
		DoSample:          p.DoSample,
		EarlyStopping:     p.EarlyStopping,
		Seed:              p.Seed,
		Stop:              p.Stop,
	}
}

// decodeGeneration accepts both the list form and the single object form.
func decodeGeneration(body []byte) (wireGeneration, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return wireGeneration{}, fmt.Errorf("empty response body")
	}

	if trimmed[0] == '[' {
		var list []wireGeneration
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return wireGeneration{}, err
		}
		if len(list) == 0 {
			return wireGeneration{}, fmt.Errorf("no generations returned")
		}
		return list[0], nil
	}

	var single wireGeneration
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return wireGeneration{}, err
	}
	return single, nil
}

func statusError(resp *http.Response, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var we wireError
	if json.Unmarshal(body, &we) == nil && we.Error != "" {
		msg = we.Error
		if we.EstimatedTime > 0 {
			msg = fmt.Sprintf("%s (estimated time %.0fs)", msg, we.EstimatedTime)
		}
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s: %s", hubgen.ErrUnauthorized, resp.Status, msg)
	default:
		return fmt.Errorf("%w: %s: %s", hubgen.ErrGenerationFailed, resp.Status, msg)
	}
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

// escapeModelID keeps the owner/name separator while escaping each segment.
func escapeModelID(id string) string {
	parts := strings.Split(id, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
