package bedrock

import (
	"context"
	"errors"
	"testing"

	"hubgen"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBedrockClient implements bedrockRuntimeClient for testing
type mockBedrockClient struct {
	response *bedrockruntime.ConverseOutput
	err      error
	input    *bedrockruntime.ConverseInput
}

func (m *mockBedrockClient) Converse(ctx context.Context, input *bedrockruntime.ConverseInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.input = input
	return m.response, m.err
}

func textOutput(stop types.StopReason, texts ...string) *bedrockruntime.ConverseOutput {
	var content []types.ContentBlock
	for _, t := range texts {
		content = append(content, &types.ContentBlockMemberText{Value: t})
	}
	return &bedrockruntime.ConverseOutput{
		StopReason: stop,
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{Role: types.ConversationRoleAssistant, Content: content},
		},
		Usage: &types.TokenUsage{
			InputTokens:  aws.Int32(10),
			OutputTokens: aws.Int32(20),
		},
		Metrics: &types.ConverseMetrics{LatencyMs: aws.Int64(100)},
	}
}

func TestNewClient(t *testing.T) {
	c := NewClient(&mockBedrockClient{}, Options{})
	assert.Equal(t, defaultModelID, c.opts.DefaultModelID)
	assert.Equal(t, "bedrock", c.Name())

	c = NewClient(&mockBedrockClient{}, Options{DefaultModelID: "custom-model"})
	assert.Equal(t, "custom-model", c.opts.DefaultModelID)
}

func TestClient_Generate(t *testing.T) {
	mock := &mockBedrockClient{response: textOutput(types.StopReasonEndTurn, "Morning meadow hush", "a rabbit twitches its nose")}
	c := NewClient(mock, Options{})

	params := hubgen.DefaultParams()
	params.TopK = 40
	params.Stop = []string{"###"}

	resp, err := c.Generate(context.Background(), hubgen.Request{ModelID: "anthropic.claude", Prompt: "Write a haiku", Params: params})
	require.NoError(t, err)
	assert.Equal(t, "Morning meadow hush\na rabbit twitches its nose", resp.Text)
	assert.Equal(t, 20, resp.TokenCount)
	assert.Equal(t, "end_turn", resp.FinishReason)

	in := mock.input
	require.NotNil(t, in)
	assert.Equal(t, "anthropic.claude", aws.ToString(in.ModelId))
	require.Len(t, in.Messages, 1)
	assert.Equal(t, types.ConversationRoleUser, in.Messages[0].Role)
	assert.Equal(t, int32(50), aws.ToInt32(in.InferenceConfig.MaxTokens))
	assert.InDelta(t, 0.7, aws.ToFloat32(in.InferenceConfig.Temperature), 1e-6)
	assert.InDelta(t, 0.9, aws.ToFloat32(in.InferenceConfig.TopP), 1e-6)
	assert.Equal(t, []string{"###"}, in.InferenceConfig.StopSequences)
	assert.NotNil(t, in.AdditionalModelRequestFields)
}

func TestClient_GenerateDefaultModelAndGreedy(t *testing.T) {
	mock := &mockBedrockClient{response: textOutput(types.StopReasonEndTurn, "ok")}
	c := NewClient(mock, Options{DefaultModelID: "fallback-model"})

	_, err := c.Generate(context.Background(), hubgen.Request{Prompt: "hi", Params: hubgen.GenerationParams{MaxNewTokens: 10, NumBeams: 1}})
	require.NoError(t, err)
	assert.Equal(t, "fallback-model", aws.ToString(mock.input.ModelId))
	assert.Equal(t, float32(0), aws.ToFloat32(mock.input.InferenceConfig.Temperature))
	assert.Nil(t, mock.input.InferenceConfig.TopP)
	assert.Nil(t, mock.input.AdditionalModelRequestFields)
}

func TestClient_GenerateImage(t *testing.T) {
	mock := &mockBedrockClient{response: textOutput(types.StopReasonEndTurn, "A rabbit in clover.")}
	c := NewClient(mock, Options{})

	png := []byte("\x89PNG\r\n\x1a\nbytes")
	resp, err := c.Generate(context.Background(), hubgen.Request{
		Prompt: "Caption this image.",
		Images: []hubgen.Image{{Data: png}},
		Params: hubgen.DefaultParams(),
	})
	require.NoError(t, err)
	assert.Equal(t, "A rabbit in clover.", resp.Text)

	content := mock.input.Messages[0].Content
	require.Len(t, content, 2)
	img, ok := content[0].(*types.ContentBlockMemberImage)
	require.True(t, ok)
	assert.Equal(t, types.ImageFormatPng, img.Value.Format)
	_, ok = content[1].(*types.ContentBlockMemberText)
	assert.True(t, ok)
}

func TestClient_GenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mock    *mockBedrockClient
		req     hubgen.Request
		wantErr error
	}{
		{
			name:    "converse error",
			mock:    &mockBedrockClient{err: errors.New("throttled")},
			req:     hubgen.Request{Prompt: "hi", Params: hubgen.DefaultParams()},
			wantErr: hubgen.ErrGenerationFailed,
		},
		{
			name:    "content filtered",
			mock:    &mockBedrockClient{response: textOutput(types.StopReasonContentFiltered)},
			req:     hubgen.Request{Prompt: "hi", Params: hubgen.DefaultParams()},
			wantErr: hubgen.ErrGenerationFailed,
		},
		{
			name:    "empty request",
			mock:    &mockBedrockClient{},
			req:     hubgen.Request{Params: hubgen.DefaultParams()},
			wantErr: hubgen.ErrEmptyPrompt,
		},
		{
			name:    "unsupported image type",
			mock:    &mockBedrockClient{},
			req:     hubgen.Request{Prompt: "hi", Images: []hubgen.Image{{Data: []byte("plain text, not an image")}}},
			wantErr: hubgen.ErrImageLoadFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.mock, Options{})
			_, err := c.Generate(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_GenerateMaxTokensReturnsPartial(t *testing.T) {
	mock := &mockBedrockClient{response: textOutput(types.StopReasonMaxTokens, "Title: The Burrow")}
	c := NewClient(mock, Options{})

	resp, err := c.Generate(context.Background(), hubgen.Request{Prompt: "outline", Params: hubgen.DefaultParams()})
	require.NoError(t, err)
	assert.Equal(t, "Title: The Burrow", resp.Text)
	assert.Equal(t, "length", resp.FinishReason)
}

func TestTextFromOutput(t *testing.T) {
	assert.Equal(t, "", textFromOutput(nil))
	assert.Equal(t, "", textFromOutput(&bedrockruntime.ConverseOutput{}))
	assert.Equal(t, "one", textFromOutput(textOutput(types.StopReasonEndTurn, "one", "")))
}
