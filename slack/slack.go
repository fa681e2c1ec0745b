package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"hubgen"
)

var ErrNoWebhook = errors.New("slack: webhook url is not set")

// Client posts experiment results to an incoming webhook.
type Client struct {
	webhookURL string
	username   string
	httpClient hubgen.HTTPClient
}

func NewClient(webhookURL string, httpClient hubgen.HTTPClient) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		webhookURL: webhookURL,
		username:   "hubgen",
		httpClient: httpClient,
	}
}

type payload struct {
	Channel  string `json:"channel,omitempty"`
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
	Markdown bool   `json:"mrkdwn"`
}

// PostMessage sends message to channel. An empty channel uses the webhook's default.
func (c *Client) PostMessage(ctx context.Context, channel string, message string) error {
	if c.webhookURL == "" {
		return ErrNoWebhook
	}

	body, err := json.Marshal(payload{
		Channel:  channel,
		Text:     message,
		Username: c.username,
		Markdown: true,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}

	return nil
}

var _ hubgen.Notifier = (*Client)(nil)
