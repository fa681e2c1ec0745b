package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hubgen"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHTTPClient implements the HTTPClient interface for testing
type mockHTTPClient struct {
	response *http.Response
	err      error
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.response, m.err
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestNewClient(t *testing.T) {
	c := NewClient(ClientOpts{BaseEndpoint: "http://localhost:11434/"})
	assert.Equal(t, "http://localhost:11434/api/generate", c.endpoint)
	assert.Equal(t, "ollama", c.Name())
	assert.Equal(t, "llama3.2", c.defaultModel)
	assert.NotNil(t, c.httpClient)
}

func TestClient_GenerateDefaultModel(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got wireRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		models = append(models, got.Model)
		_, _ = w.Write([]byte(`{"response":"ok","done":true}`))
	}))
	defer srv.Close()

	params := hubgen.GenerationParams{MaxNewTokens: 5, NumBeams: 1}

	c := NewClient(ClientOpts{BaseEndpoint: srv.URL})
	resp, err := c.Generate(context.Background(), hubgen.Request{Prompt: "p", Params: params})
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", resp.ModelID)

	c = NewClient(ClientOpts{BaseEndpoint: srv.URL, DefaultModelID: "mistral"})
	_, err = c.Generate(context.Background(), hubgen.Request{Prompt: "p", Params: params})
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), hubgen.Request{ModelID: "llava", Prompt: "p", Params: params})
	require.NoError(t, err)

	assert.Equal(t, []string{"llama3.2", "mistral", "llava"}, models)
}

func TestClient_Generate(t *testing.T) {
	var got wireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.2","response":"Clover in the rain","done":true,"done_reason":"stop","eval_count":12,"total_duration":1500000000}`))
	}))
	defer srv.Close()

	c := NewClient(ClientOpts{BaseEndpoint: srv.URL, HTTPClient: srv.Client()})

	params := hubgen.DefaultParams()
	params.TopK = 30
	params.Seed = 7
	resp, err := c.Generate(context.Background(), hubgen.Request{
		ModelID: "llama3.2",
		Prompt:  "Write a haiku",
		Images:  []hubgen.Image{{Data: []byte("img")}},
		Params:  params,
	})
	require.NoError(t, err)

	assert.Equal(t, "Clover in the rain", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 12, resp.TokenCount)
	assert.Equal(t, int64(1500), resp.Latency.Milliseconds())

	assert.Equal(t, "llama3.2", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, []string{base64.StdEncoding.EncodeToString([]byte("img"))}, got.Images)
	assert.Equal(t, 50, got.Options.NumPredict)
	require.NotNil(t, got.Options.Temperature)
	assert.Equal(t, 0.7, *got.Options.Temperature)
	assert.Equal(t, 30, got.Options.TopK)
	assert.Equal(t, 0.9, got.Options.TopP)
	assert.Equal(t, 1.2, got.Options.RepeatPenalty)
	assert.Equal(t, int64(7), got.Options.Seed)
	assert.Nil(t, got.Format)
}

func TestClient_GenerateWithFormat(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"response":"{\"title\":\"x\"}","done":true}`))
	}))
	defer srv.Close()

	schema := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"title": {Type: "string"},
		},
		Required: []string{"title"},
	}
	c := NewClient(ClientOpts{BaseEndpoint: srv.URL}).WithFormat(schema)

	resp, err := c.Generate(context.Background(), hubgen.Request{ModelID: "m", Prompt: "p", Params: hubgen.GenerationParams{MaxNewTokens: 5, NumBeams: 1}})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"x"}`, resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)

	format, ok := raw["format"].(map[string]any)
	require.True(t, ok, "format should be sent as a JSON schema object")
	assert.Equal(t, "object", format["type"])

	opts := raw["options"].(map[string]any)
	assert.Equal(t, float64(0), opts["temperature"], "greedy decoding sends temperature 0")
}

func TestClient_GenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		doer    *mockHTTPClient
		req     hubgen.Request
		wantErr error
	}{
		{
			name:    "empty prompt",
			doer:    &mockHTTPClient{},
			req:     hubgen.Request{ModelID: "m"},
			wantErr: hubgen.ErrEmptyPrompt,
		},
		{
			name:    "http error",
			doer:    &mockHTTPClient{err: errors.New("connection refused")},
			req:     hubgen.Request{ModelID: "m", Prompt: "p"},
			wantErr: hubgen.ErrGenerationFailed,
		},
		{
			name:    "non-200",
			doer:    &mockHTTPClient{response: createMockResponse(404, `{"error":"model not found"}`)},
			req:     hubgen.Request{ModelID: "m", Prompt: "p"},
			wantErr: hubgen.ErrGenerationFailed,
		},
		{
			name:    "invalid json",
			doer:    &mockHTTPClient{response: createMockResponse(200, `not json`)},
			req:     hubgen.Request{ModelID: "m", Prompt: "p"},
			wantErr: hubgen.ErrGenerationFailed,
		},
		{
			name: "body read error",
			doer: &mockHTTPClient{response: &http.Response{
				StatusCode: 200,
				Body:       io.NopCloser(errReader{err: errors.New("unexpected EOF")}),
				Header:     make(http.Header),
			}},
			req:     hubgen.Request{ModelID: "m", Prompt: "p"},
			wantErr: hubgen.ErrGenerationFailed,
		},
		{
			name:    "bad image",
			doer:    &mockHTTPClient{},
			req:     hubgen.Request{ModelID: "m", Prompt: "p", Images: []hubgen.Image{{}}},
			wantErr: hubgen.ErrImageLoadFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(ClientOpts{BaseEndpoint: "http://localhost:11434", HTTPClient: tt.doer})
			_, err := c.Generate(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
