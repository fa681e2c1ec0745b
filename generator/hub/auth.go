package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"hubgen"
)

// Identity describes the account behind the bearer token.
type Identity struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	TokenName string `json:"token_name,omitempty"`
	TokenRole string `json:"token_role,omitempty"`
}

type wireWhoAmI struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Auth struct {
		AccessToken struct {
			DisplayName string `json:"displayName"`
			Role        string `json:"role"`
		} `json:"accessToken"`
	} `json:"auth"`
}

// WhoAmI verifies the token against the hub API. It is the login step run
// before any generation.
func (c *Client) WhoAmI(ctx context.Context) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiEndpoint+"/api/whoami-v2", nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whoami request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whoami read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, body)
	}

	var w wireWhoAmI
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("decode whoami: %w", err)
	}

	id := &Identity{
		Name:      w.Name,
		Type:      w.Type,
		TokenName: w.Auth.AccessToken.DisplayName,
		TokenRole: w.Auth.AccessToken.Role,
	}
	slog.Info("HUB_CLIENT: Authenticated", "name", id.Name, "token_role", id.TokenRole)
	return id, nil
}

var _ hubgen.Generator = (*Client)(nil)
