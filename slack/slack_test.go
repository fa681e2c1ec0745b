package slack_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"hubgen/slack"

	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"
)

type mockDoer struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockDoer) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func ok(req *http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString("ok"))}, nil
}

func TestPostMessage(t *testing.T) {
	tests := []struct {
		name    string
		doFunc  func(req *http.Request) (*http.Response, error)
		wantErr error
	}{
		{
			name:    "success",
			doFunc:  ok,
			wantErr: nil,
		},
		{
			name: "failure status",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusForbidden, Status: "403 Forbidden", Body: io.NopCloser(bytes.NewBufferString("invalid_token"))}, nil
			},
			wantErr: fmt.Errorf("failed to post message: 403 Forbidden"),
		},
		{
			name: "do error",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("network error")
			},
			wantErr: fmt.Errorf("network error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := slack.NewClient("http://example.com/webhook", &mockDoer{doFunc: tt.doFunc})
			err := client.PostMessage(context.Background(), "#experiments", "*haiku* on hub")
			should.Equal(t, tt.wantErr, err)
		})
	}
}

func TestPostMessagePayload(t *testing.T) {
	var got map[string]any
	doer := &mockDoer{doFunc: func(req *http.Request) (*http.Response, error) {
		must.Equal(t, "application/json", req.Header.Get("Content-Type"))
		must.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		return ok(req)
	}}

	client := slack.NewClient("http://example.com/webhook", doer)
	must.NoError(t, client.PostMessage(context.Background(), "#experiments", "Generated Haiku:"))

	should.Equal(t, "#experiments", got["channel"])
	should.Equal(t, "Generated Haiku:", got["text"])
	should.Equal(t, "hubgen", got["username"])
	should.Equal(t, true, got["mrkdwn"])
}

func TestPostMessageNoWebhook(t *testing.T) {
	client := slack.NewClient("", nil)
	err := client.PostMessage(context.Background(), "", "hi")
	should.ErrorIs(t, err, slack.ErrNoWebhook)
}
